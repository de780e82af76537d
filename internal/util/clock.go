package util

import (
	"sync"
	"time"
)

// Clock abstrai a fonte de tempo usada pelos componentes de autenticação.
type Clock interface {
	Now() time.Time
}

// SystemClock usa o relógio do sistema em UTC.
type SystemClock struct{}

// Now retorna o instante atual em UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ManualClock é um relógio controlado manualmente, útil em testes.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock cria relógio parado no instante informado.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start.UTC()}
}

// Now retorna o instante corrente do relógio manual.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance move o relógio para frente.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
