// Package monitor verifica periodicamente as dependências do portal e faz a
// limpeza física do ledger de refresh tokens.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mpcoop/portal/internal/obs"
	"github.com/mpcoop/portal/internal/util"
)

// Check verifica uma dependência; erro significa indisponível.
type Check func(ctx context.Context) error

// Purger remove registros vencidos. Backends com expiração própria (Redis)
// não precisam de um.
type Purger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// Config controla o loop periódico.
type Config struct {
	Enabled      bool
	Interval     time.Duration
	CheckTimeout time.Duration
}

// Service executa verificações periódicas e alerta em mudanças de estado.
type Service struct {
	cfg      Config
	checks   map[string]Check
	purger   Purger
	clock    util.Clock
	metrics  *obs.Metrics
	notifier Notifier
	logger   zerolog.Logger

	mu     sync.Mutex
	status map[string]bool

	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

func NewService(cfg Config, checks map[string]Check, purger Purger, clock util.Clock, metrics *obs.Metrics, notifier Notifier, logger zerolog.Logger) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 5 * time.Second
	}
	if clock == nil {
		clock = util.SystemClock{}
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Service{
		cfg:      cfg,
		checks:   checks,
		purger:   purger,
		clock:    clock,
		metrics:  metrics,
		notifier: notifier,
		logger:   logger,
		status:   make(map[string]bool),
	}
}

// Start inicia loop periódico. Safe para chamar múltiplas vezes.
func (s *Service) Start(parent context.Context) {
	if !s.cfg.Enabled {
		return
	}
	s.once.Do(func() {
		ctx, cancel := context.WithCancel(parent)
		s.cancel = cancel
		s.done = make(chan struct{})
		go s.runLoop(ctx)
	})
}

// Stop encerra o loop e aguarda a execução corrente.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Service) runLoop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.cfg.Interval).Msg("monitor: loop iniciado")

	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error().Err(err).Msg("monitor: primeira execução falhou")
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("monitor: loop encerrado")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error().Err(err).Msg("monitor: execução periódica falhou")
			}
		}
	}
}

// RunOnce verifica todas as dependências e, havendo purger, limpa o ledger.
// Só a falha da limpeza é retornada; falhas de dependência viram alerta.
func (s *Service) RunOnce(ctx context.Context) error {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		s.probe(ctx, name, s.checks[name])
	}

	if s.purger == nil {
		return nil
	}
	n, err := s.purger.PurgeExpired(ctx, s.clock.Now())
	if err != nil {
		return fmt.Errorf("limpar ledger: %w", err)
	}
	s.metrics.TokensPurged(n)
	if n > 0 {
		s.logger.Info().Int64("removed", n).Msg("monitor: refresh tokens vencidos removidos")
	}
	return nil
}

func (s *Service) probe(ctx context.Context, name string, check Check) {
	checkCtx, cancel := context.WithTimeout(ctx, s.cfg.CheckTimeout)
	err := check(checkCtx)
	cancel()

	up := err == nil
	s.metrics.DependencyStatus(name, up)

	s.mu.Lock()
	prev, seen := s.status[name]
	s.status[name] = up
	s.mu.Unlock()

	var msg *AlertMessage
	switch {
	case !up && (!seen || prev):
		s.logger.Warn().Err(err).Str("dependency", name).Msg("monitor: dependência indisponível")
		msg = &AlertMessage{
			Title:    "Dependência indisponível: " + name,
			Text:     err.Error(),
			Severity: SeverityCritical,
		}
	case up && seen && !prev:
		msg = &AlertMessage{
			Title:    "Dependência recuperada: " + name,
			Text:     "verificação voltou a responder",
			Severity: SeverityInfo,
		}
	}
	if msg == nil {
		return
	}
	if err := s.notifier.Notify(ctx, *msg); err != nil {
		s.logger.Warn().Err(err).Str("dependency", name).Msg("monitor: falha ao enviar alerta")
	}
}

// Status devolve o último estado conhecido de cada dependência.
func (s *Service) Status() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.status))
	for k, v := range s.status {
		out[k] = v
	}
	return out
}
