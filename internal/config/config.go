package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backends aceitos para o ledger de refresh tokens.
const (
	LedgerRedis    = "redis"
	LedgerPostgres = "postgres"
	LedgerMemory   = "memory"
)

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Port           int
	DBDSN          string
	RedisURL       string
	MigrateOnStart bool

	LedgerBackend string
	StoreTimeout  time.Duration

	JWTSecret      string
	JWTAlgorithm   string
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	ActivationTTL  time.Duration
	UnsubscribeTTL time.Duration
	ResetTTL       time.Duration
	// AcceptRefreshAsIdentity mantém o comportamento legado em que refresh
	// tokens também identificam o chamador.
	AcceptRefreshAsIdentity bool

	CookieDomain string
	CookieSecure bool

	FrontendBaseURL string
	AllowOrigins    []string
	RateLimitPublic RateLimitConfig
	RateLimitAuth   RateLimitConfig

	S3             S3Config
	DownloadTTL    time.Duration
	MaxUploadBytes int64

	Monitoring MonitoringConfig
}

// MonitoringConfig controla as verificações periódicas e os alertas.
type MonitoringConfig struct {
	Enabled         bool
	Interval        time.Duration
	SlackWebhookURL string
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// S3Config descreve o bucket de documentos. Bucket vazio desativa uploads.
type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	PublicDomain string
}

// Enabled indica se há bucket configurado.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// Load carrega variáveis de ambiente e aplica defaults seguros.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	cfg.DBDSN = getEnv("DB_DSN", "")
	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN obrigatório")
	}

	if cfg.MigrateOnStart, err = parseBoolEnv("MIGRATE_ON_START", true); err != nil {
		return nil, err
	}

	cfg.LedgerBackend = strings.ToLower(strings.TrimSpace(getEnv("LEDGER_BACKEND", LedgerRedis)))
	switch cfg.LedgerBackend {
	case LedgerRedis, LedgerPostgres, LedgerMemory:
	default:
		return nil, fmt.Errorf("LEDGER_BACKEND inválido: %q", cfg.LedgerBackend)
	}

	cfg.RedisURL = getEnv("REDIS_URL", "")
	if cfg.RedisURL == "" && cfg.LedgerBackend == LedgerRedis {
		return nil, errors.New("REDIS_URL obrigatório")
	}

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET deve ter pelo menos 32 caracteres")
	}
	cfg.JWTAlgorithm = strings.ToUpper(strings.TrimSpace(getEnv("JWT_ALGORITHM", "HS256")))
	switch cfg.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return nil, fmt.Errorf("JWT_ALGORITHM não suportado: %q", cfg.JWTAlgorithm)
	}

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"STORE_TIMEOUT", 2 * time.Second, &cfg.StoreTimeout},
		{"JWT_ACCESS_TTL", 15 * time.Minute, &cfg.AccessTTL},
		{"JWT_REFRESH_TTL", 7 * 24 * time.Hour, &cfg.RefreshTTL},
		{"ACTIVATION_TOKEN_TTL", time.Hour, &cfg.ActivationTTL},
		{"UNSUBSCRIBE_TOKEN_TTL", 15 * time.Minute, &cfg.UnsubscribeTTL},
		{"RESET_TOKEN_TTL", 3 * time.Minute, &cfg.ResetTTL},
		{"DOWNLOAD_URL_TTL", 15 * time.Minute, &cfg.DownloadTTL},
		{"MONITOR_INTERVAL", time.Minute, &cfg.Monitoring.Interval},
	}
	for _, d := range durations {
		val, err := parseDurationEnv(d.key, d.def)
		if err != nil {
			return nil, err
		}
		if val <= 0 {
			return nil, errors.New(d.key + " deve ser positivo")
		}
		*d.dest = val
	}

	if cfg.AcceptRefreshAsIdentity, err = parseBoolEnv("AUTH_ACCEPT_REFRESH_AS_IDENTITY", false); err != nil {
		return nil, err
	}

	cfg.CookieDomain = strings.TrimSpace(getEnv("COOKIE_DOMAIN", ""))
	if cfg.CookieSecure, err = parseBoolEnv("COOKIE_SECURE", true); err != nil {
		return nil, err
	}

	cfg.FrontendBaseURL = strings.TrimRight(strings.TrimSpace(getEnv("FRONTEND_BASE_URL", "http://localhost:5173")), "/")

	allowOrigins := strings.Split(getEnv("ALLOW_ORIGINS", ""), ",")
	cfg.AllowOrigins = nil
	for _, origin := range allowOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}

	if cfg.RateLimitPublic, err = parseRateLimitEnv("RATE_LIMIT_PUBLIC", RateLimitConfig{RequestsPerSecond: 10, Burst: 20}); err != nil {
		return nil, err
	}
	if cfg.RateLimitAuth, err = parseRateLimitEnv("RATE_LIMIT_AUTH", RateLimitConfig{RequestsPerSecond: 1, Burst: 10}); err != nil {
		return nil, err
	}

	cfg.S3 = S3Config{
		Endpoint:     strings.TrimSpace(getEnv("S3_ENDPOINT", "")),
		Region:       strings.TrimSpace(getEnv("S3_REGION", "us-east-1")),
		Bucket:       strings.TrimSpace(getEnv("S3_BUCKET", "")),
		AccessKey:    strings.TrimSpace(getEnv("S3_ACCESS_KEY", "")),
		SecretKey:    strings.TrimSpace(getEnv("S3_SECRET_KEY", "")),
		PublicDomain: strings.TrimSpace(getEnv("S3_PUBLIC_DOMAIN", "")),
	}

	maxUpload, err := strconv.ParseInt(getEnv("MAX_UPLOAD_BYTES", "26214400"), 10, 64)
	if err != nil || maxUpload <= 0 {
		return nil, errors.New("MAX_UPLOAD_BYTES inválido")
	}
	cfg.MaxUploadBytes = maxUpload

	if cfg.Monitoring.Enabled, err = parseBoolEnv("MONITOR_ENABLED", true); err != nil {
		return nil, err
	}
	cfg.Monitoring.SlackWebhookURL = strings.TrimSpace(getEnv("SLACK_WEBHOOK_URL", ""))

	return cfg, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, errors.New(key + " inválido")
	}
	return b, nil
}

// parseRateLimitEnv lê o formato "<req/s>:<burst>", ex.: "10:20".
func parseRateLimitEnv(key string, def RateLimitConfig) (RateLimitConfig, error) {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def, nil
	}
	rps, burst, ok := strings.Cut(val, ":")
	if !ok {
		return RateLimitConfig{}, errors.New(key + " deve estar no formato req/s:burst")
	}
	r, err := strconv.ParseFloat(rps, 64)
	if err != nil || r <= 0 {
		return RateLimitConfig{}, errors.New(key + " inválido")
	}
	b, err := strconv.Atoi(burst)
	if err != nil || b <= 0 {
		return RateLimitConfig{}, errors.New(key + " inválido")
	}
	return RateLimitConfig{RequestsPerSecond: r, Burst: b}, nil
}
