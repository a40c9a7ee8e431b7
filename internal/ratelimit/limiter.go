package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// Defaults del bucket permisivo que se crea cuando un venue no tiene
// configuración: en la práctica no limita nada.
const (
	defaultCapacity = 1000
	defaultRefill   = 1000.0
)

// BucketConfig son los parámetros de un token bucket: capacidad máxima y
// tokens repuestos por segundo.
type BucketConfig struct {
	Capacity int     `json:"capacity" yaml:"capacity"`
	Refill   float64 `json:"refill" yaml:"refill"`
}

// Config es la configuración completa: venue → endpoint-class → bucket.
//
//	{"aster": {"global": {"capacity": 20, "refill": 10}, "depth": {...}}}
type Config map[string]map[string]BucketConfig

// ParseConfig convierte el blob JSON genérico de admin_config en Config.
func ParseConfig(raw any) (Config, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("ratelimit.ParseConfig: marshal: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("ratelimit.ParseConfig: unmarshal: %w", err)
	}
	return cfg, nil
}

// Limiter reparte token buckets por (venue, endpoint-class). Todas las
// llamadas salientes a venues pasan por Acquire antes de tocar la red.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[string]*rate.Limiter
}

// New crea el limiter; cfg puede ser nil (solo buckets por defecto).
func New(cfg Config) *Limiter {
	l := &Limiter{buckets: make(map[string]*rate.Limiter)}
	if cfg != nil {
		l.Update(cfg)
	}
	return l
}

func key(venue, endpoint string) string {
	return venue + ":" + endpoint
}

// Update reemplaza los parámetros de todos los buckets de cfg de golpe.
// Reconstruye cada bucket, descartando los tokens acumulados; las goroutines
// bloqueadas en Acquire terminan su espera contra el bucket en el que
// empezaron. Es un knob de operador, no un camino caliente.
func (l *Limiter) Update(cfg Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for venue, endpoints := range cfg {
		for ep, bc := range endpoints {
			l.buckets[key(venue, ep)] = rate.NewLimiter(rate.Limit(bc.Refill), bc.Capacity)
		}
	}
}

// Acquire bloquea hasta que haya weight tokens en el bucket del
// (venue, endpoint) y los consume. Si no hay bucket para el endpoint cae a
// (venue, "global"), y si tampoco existe crea uno permisivo por defecto.
// Solo falla si el contexto se cancela o weight excede la capacidad.
func (l *Limiter) Acquire(ctx context.Context, venue, endpoint string, weight int) error {
	b := l.lookup(venue, endpoint)
	if err := b.WaitN(ctx, weight); err != nil {
		return fmt.Errorf("ratelimit.Acquire %s:%s: %w", venue, endpoint, err)
	}
	return nil
}

func (l *Limiter) lookup(venue, endpoint string) *rate.Limiter {
	l.mu.RLock()
	if b, ok := l.buckets[key(venue, endpoint)]; ok {
		l.mu.RUnlock()
		return b
	}
	if b, ok := l.buckets[key(venue, "global")]; ok {
		l.mu.RUnlock()
		return b
	}
	l.mu.RUnlock()
	return l.lookupSlow(venue, endpoint)
}

// lookupSlow reintenta ambas claves con el lock de escritura: otro Acquire
// o un Update pueden haber creado el bucket entre los dos locks.
func (l *Limiter) lookupSlow(venue, endpoint string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[key(venue, endpoint)]; ok {
		return b
	}
	if b, ok := l.buckets[key(venue, "global")]; ok {
		return b
	}
	b := rate.NewLimiter(rate.Limit(defaultRefill), defaultCapacity)
	l.buckets[key(venue, "global")] = b
	return b
}
