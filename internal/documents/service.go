// Package documents publica arquivos da cooperativa com visibilidade por tipo.
package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mpcoop/portal/internal/access"
	"github.com/mpcoop/portal/internal/auth"
	"github.com/mpcoop/portal/internal/storage"
	"github.com/mpcoop/portal/internal/util"
)

// ErrInvalidUpload indica dados de upload rejeitados.
var ErrInvalidUpload = errors.New("upload inválido")

type documentRepository interface {
	Create(ctx context.Context, doc Document, upload func(ctx context.Context) error) error
	Get(ctx context.Context, id uuid.UUID) (Document, error)
	List(ctx context.Context, docType *Type) ([]Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service aplica guarda de escrita e política de leitura sobre os documentos.
type Service struct {
	repo        documentRepository
	store       storage.Store
	clock       util.Clock
	downloadTTL time.Duration
}

// NewService cria o serviço de documentos.
func NewService(repo documentRepository, store storage.Store, clock util.Clock, downloadTTL time.Duration) *Service {
	if clock == nil {
		clock = util.SystemClock{}
	}
	if downloadTTL <= 0 {
		downloadTTL = 15 * time.Minute
	}
	return &Service{repo: repo, store: store, clock: clock, downloadTTL: downloadTTL}
}

// UploadInput descreve um novo documento.
type UploadInput struct {
	Name         string
	Type         Type
	ContentType  string
	Body         []byte
	AllowedUsers []string
}

// Upload publica documento. Só papéis de escrita do tipo podem publicar.
func (s *Service) Upload(ctx context.Context, caller auth.Identity, in UploadInput) (*Document, error) {
	if !auth.Authorize(caller.Role, WriteRoles(in.Type)...) {
		return nil, auth.ErrForbidden
	}
	if err := util.RequireString(in.Name, "nome"); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidUpload, err)
	}
	if len(in.Body) == 0 {
		return nil, fmt.Errorf("%w: arquivo vazio", ErrInvalidUpload)
	}

	// a regra compara ids como texto; só a forma canônica casa com o chamador
	allowed := make([]string, 0, len(in.AllowedUsers))
	for _, id := range in.AllowedUsers {
		if id = strings.TrimSpace(id); id == "" {
			continue
		}
		canonical, ok := util.CanonicalID(id)
		if !ok {
			return nil, fmt.Errorf("%w: usuário autorizado inválido %q", ErrInvalidUpload, id)
		}
		allowed = append(allowed, canonical)
	}

	rule, err := DefaultRule(in.Type, allowed)
	if err != nil {
		if errors.Is(err, ErrInvalidType) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidUpload, err)
	}

	callerID, err := uuid.Parse(caller.ID)
	if err != nil {
		return nil, auth.ErrUnauthorized
	}

	id := uuid.New()
	doc := Document{
		ID:          id,
		Name:        strings.TrimSpace(in.Name),
		Type:        in.Type,
		Key:         fmt.Sprintf("%s/%s", in.Type, id),
		ContentType: in.ContentType,
		Size:        int64(len(in.Body)),
		Rule:        rule,
		UploadedBy:  callerID,
		CreatedAt:   s.clock.Now(),
	}

	err = s.repo.Create(ctx, doc, func(ctx context.Context) error {
		_, err := s.store.Upload(ctx, storage.UploadInput{
			Key:         doc.Key,
			Body:        in.Body,
			ContentType: in.ContentType,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("document_id", id.String()).Str("type", string(in.Type)).Str("uploaded_by", caller.ID).Msg("documento publicado")
	return &doc, nil
}

// List devolve os documentos visíveis ao chamador (nil = anônimo).
func (s *Service) List(ctx context.Context, caller *auth.Identity, docType *Type) ([]Document, error) {
	docs, err := s.repo.List(ctx, docType)
	if err != nil {
		return nil, err
	}

	visible := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if access.CanRead(doc.Rule, caller) {
			visible = append(visible, doc)
		}
	}
	return visible, nil
}

// DownloadURL gera link temporário quando o chamador pode ler o documento.
func (s *Service) DownloadURL(ctx context.Context, caller *auth.Identity, id uuid.UUID) (string, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}

	if !access.CanRead(doc.Rule, caller) {
		if caller == nil {
			return "", auth.ErrUnauthorized
		}
		return "", auth.ErrForbidden
	}

	return s.store.PresignGet(ctx, doc.Key, s.downloadTTL)
}

// Delete remove metadado e arquivo. Falha ao remover o arquivo só é registrada.
func (s *Service) Delete(ctx context.Context, caller auth.Identity, id uuid.UUID) error {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !auth.Authorize(caller.Role, WriteRoles(doc.Type)...) {
		return auth.ErrForbidden
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, doc.Key); err != nil {
		log.Warn().Err(err).Str("document_id", id.String()).Msg("documento removido, arquivo mantido no storage")
	}
	return nil
}
