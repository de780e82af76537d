package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config descreve o bucket e as credenciais de um endpoint S3/R2/MinIO.
type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	PublicDomain string
}

func (c S3Config) validate() error {
	switch {
	case strings.TrimSpace(c.Bucket) == "":
		return errors.New("storage: bucket obrigatório")
	case strings.TrimSpace(c.Region) == "":
		return errors.New("storage: região obrigatória")
	case c.AccessKey == "" || c.SecretKey == "":
		return errors.New("storage: credenciais obrigatórias")
	}
	return nil
}

// S3Store implementa Store com o SDK oficial.
type S3Store struct {
	cfg     S3Config
	client  *s3.Client
	presign *s3.PresignClient
}

// NewS3Store carrega a configuração AWS com credenciais estáticas.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: carregar configuração aws: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(strings.TrimRight(cfg.Endpoint, "/"))
			o.UsePathStyle = true
		}
	})

	return &S3Store{cfg: cfg, client: client, presign: s3.NewPresignClient(client)}, nil
}

// Upload envia o arquivo para o bucket configurado.
func (s *S3Store) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	key := strings.TrimLeft(strings.TrimSpace(input.Key), "/")
	if key == "" {
		return nil, errors.New("storage: chave do objeto obrigatória")
	}
	if len(input.Body) == 0 {
		return nil, errors.New("storage: corpo vazio")
	}

	contentType := strings.TrimSpace(input.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	put := &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(input.Body),
		ContentLength: aws.Int64(int64(len(input.Body))),
		ContentType:   aws.String(contentType),
	}
	if cc := strings.TrimSpace(input.CacheControl); cc != "" {
		put.CacheControl = aws.String(cc)
	}

	out, err := s.client.PutObject(ctx, put)
	if err != nil {
		return nil, fmt.Errorf("storage: upload %s: %w", key, err)
	}

	return &UploadResult{
		Key:  key,
		URL:  s.publicURL(key),
		ETag: strings.Trim(aws.ToString(out.ETag), `"`),
	}, nil
}

// PresignGet gera URL temporária de download.
func (s *S3Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("storage: presign %s: %w", key, err)
	}
	return req.URL, nil
}

// Delete remove o objeto; objeto inexistente não é erro no S3.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) publicURL(key string) string {
	domain := strings.TrimRight(strings.TrimSpace(s.cfg.PublicDomain), "/")
	if domain == "" {
		return ""
	}
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	return domain + "/" + (&url.URL{Path: key}).EscapedPath()
}
