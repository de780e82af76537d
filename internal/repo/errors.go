package repo

import "errors"

var (
	// ErrNotFound é retornado quando nenhum principal corresponde à busca.
	ErrNotFound = errors.New("principal não encontrado")
	// ErrCorruptRow indica linha com valor fora do domínio (ex.: papel desconhecido).
	ErrCorruptRow = errors.New("registro inconsistente")
)
