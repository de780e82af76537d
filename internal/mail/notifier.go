// Package mail define o colaborador de envio de e-mails transacionais.
package mail

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// Kind identifica o tipo de mensagem.
type Kind string

const (
	KindActivation    Kind = "activation"
	KindPasswordReset Kind = "password_reset"
)

// Message é o envelope entregue ao transporte de e-mail.
type Message struct {
	Kind            Kind
	To              string
	Link            string
	UnsubscribeLink string
}

// Notifier entrega mensagens. A renderização do corpo fica com o transporte.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier apenas registra a mensagem; usado em desenvolvimento.
type LogNotifier struct{}

// Send registra o envio sem expor o token do link.
func (LogNotifier) Send(ctx context.Context, msg Message) error {
	log.Info().
		Str("kind", string(msg.Kind)).
		Str("to", msg.To).
		Str("link", redact(msg.Link)).
		Msg("mail: mensagem enfileirada")
	return nil
}

// Links monta URLs do frontend que carregam tokens de uso único.
type Links struct {
	BaseURL string
}

// Activation aponta para a rota de ativação da conta.
func (l Links) Activation(email, token string) string {
	return l.build("/activate-account", url.Values{"email": {email}, "token": {token}})
}

// Unsubscribe aponta para a página de cancelamento de inscrição.
func (l Links) Unsubscribe(email, token string) string {
	return l.build("/unsubscribe", url.Values{"email": {email}, "token": {token}})
}

// PasswordReset aponta para a página de nova senha.
func (l Links) PasswordReset(token string) string {
	return l.build("/new-password", url.Values{"token": {token}})
}

func (l Links) build(path string, query url.Values) string {
	return strings.TrimRight(l.BaseURL, "/") + path + "?" + query.Encode()
}

func redact(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "***")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
