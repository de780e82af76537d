package auth

import "errors"

var (
	// ErrInvalidCredentials indica e-mail ou senha incorretos no login.
	ErrInvalidCredentials = errors.New("credenciais inválidas")
	// ErrAccountDisabled indica principal ainda não ativado ou desativado.
	ErrAccountDisabled = errors.New("conta desativada")
	// ErrInvalidToken indica token malformado, sem assinatura válida ou de tipo errado.
	ErrInvalidToken = errors.New("token inválido")
	// ErrTokenNotFound indica refresh token sem registro no ledger.
	ErrTokenNotFound = errors.New("refresh token não encontrado")
	// ErrOwnerMismatch indica refresh token registrado para outro principal.
	ErrOwnerMismatch = errors.New("refresh token pertence a outro usuário")
	// ErrTokenRevoked indica refresh token já rotacionado ou revogado.
	ErrTokenRevoked = errors.New("refresh token revogado")
	// ErrTokenExpired indica token vencido.
	ErrTokenExpired = errors.New("token expirado")
	// ErrUnauthorized indica ausência de chamador resolvível.
	ErrUnauthorized = errors.New("não autenticado")
	// ErrForbidden indica chamador sem papel ou permissão suficiente.
	ErrForbidden = errors.New("acesso negado")
	// ErrPrincipalNotFound indica que o subject do token não existe mais.
	ErrPrincipalNotFound = errors.New("usuário não encontrado")
	// ErrStoreUnavailable indica falha transitória do armazenamento; pode ser repetida.
	ErrStoreUnavailable = errors.New("armazenamento indisponível")
)
