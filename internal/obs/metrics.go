// Package obs concentra métricas Prometheus do portal.
package obs

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mpcoop/portal/internal/auth"
)

// Metrics agrupa os coletores registrados pelo processo.
type Metrics struct {
	registry *prometheus.Registry

	authEvents   *prometheus.CounterVec
	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	dependencyUp *prometheus.GaugeVec
	tokensPurged prometheus.Counter
}

// NewMetrics cria registro próprio com coletores de processo e Go.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_auth_events_total",
			Help: "Resultados das operações de autenticação.",
		}, []string{"operation", "outcome"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portal_http_in_flight_requests",
			Help: "Requisições HTTP em andamento.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "Total de requisições HTTP.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "Latência das requisições HTTP em segundos.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		dependencyUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "portal_dependency_up",
			Help: "1 quando a última verificação da dependência teve sucesso.",
		}, []string{"dependency"}),
		tokensPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_refresh_tokens_purged_total",
			Help: "Refresh tokens vencidos removidos fisicamente do ledger.",
		}),
	}

	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.authEvents,
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.dependencyUp,
		m.tokensPurged,
	)
	return m
}

// Registry expõe o registro (útil em testes).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serve /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// DependencyStatus registra o resultado da última verificação.
func (m *Metrics) DependencyStatus(name string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.dependencyUp.WithLabelValues(name).Set(v)
}

// TokensPurged soma registros removidos pela limpeza periódica.
func (m *Metrics) TokensPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.tokensPurged.Add(float64(n))
}

// AuthEvent contabiliza o resultado de uma operação de autenticação.
// Aceita receptor nil para que serviços funcionem sem métricas.
func (m *Metrics) AuthEvent(operation string, err error) {
	if m == nil {
		return
	}
	m.authEvents.WithLabelValues(operation, Outcome(err)).Inc()
}

// Outcome traduz o erro em rótulo de baixa cardinalidade.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, auth.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, auth.ErrAccountDisabled):
		return "account_disabled"
	case errors.Is(err, auth.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, auth.ErrTokenRevoked):
		return "token_revoked"
	case errors.Is(err, auth.ErrTokenNotFound):
		return "token_not_found"
	case errors.Is(err, auth.ErrOwnerMismatch):
		return "owner_mismatch"
	case errors.Is(err, auth.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, auth.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, auth.ErrPrincipalNotFound):
		return "principal_not_found"
	case errors.Is(err, auth.ErrForbidden):
		return "forbidden"
	}
	return "error"
}

// Instrument mede latência, total e requisições em andamento por rota chi.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := []string{r.Method, routePattern(r), strconv.Itoa(status)}
		m.httpRequests.WithLabelValues(labels...).Inc()
		m.httpDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	})
}

// routePattern usa o padrão da rota para evitar um rótulo por id.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
