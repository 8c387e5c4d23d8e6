// Package breaker wraps sony/gobreaker to give the ingestion driver a
// windowed error-count circuit breaker. The breaker trips on a raw failure
// count within a fixed window rather than a failure ratio over a request
// count, since a line-oriented ingestion feed has no notion of "request".
// The window does not slide: while Closed, the failure count is cleared at
// the end of each ErrorWindow interval.
package breaker

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Config controls the breaker's window, threshold, cooldown, ring size and
// log sampling; zero values fall back to the internal/config defaults.
type Config struct {
	ErrorThreshold int
	ErrorWindow    time.Duration
	CooldownPeriod time.Duration
	RingBufferSize int
	LogSampleRate  int
}

// FailureRecord is one truncated failing line kept for diagnostics.
type FailureRecord struct {
	Line string
	Err  string
	TsNs int64
}

// Breaker guards the parse step of the ingestion driver. While Open, callers
// should skip parsing entirely (Attempt returns gobreaker.ErrOpenState) so
// the driver can keep draining the ingress source without back-pressuring
// the producer.
type Breaker struct {
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger

	mu       sync.Mutex
	ring     []FailureRecord
	ringHead int
	ringLen  int
	ringCap  int

	sampleRate int
	sampleSeq  atomic.Int64
}

// New builds a Breaker from cfg.
func New(name string, cfg Config, logger *zap.Logger) *Breaker {
	if cfg.RingBufferSize <= 0 {
		cfg.RingBufferSize = 256
	}
	if cfg.LogSampleRate <= 0 {
		cfg.LogSampleRate = 10
	}
	if cfg.ErrorThreshold <= 0 {
		cfg.ErrorThreshold = 100
	}
	if cfg.ErrorWindow <= 0 {
		cfg.ErrorWindow = 60 * time.Second
	}
	if cfg.CooldownPeriod <= 0 {
		cfg.CooldownPeriod = 30 * time.Second
	}

	b := &Breaker{
		logger:     logger,
		ring:       make([]FailureRecord, cfg.RingBufferSize),
		ringCap:    cfg.RingBufferSize,
		sampleRate: cfg.LogSampleRate,
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.ErrorWindow,
		Timeout:     cfg.CooldownPeriod,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return int(counts.TotalFailures) >= cfg.ErrorThreshold
		},
		OnStateChange: func(n string, from, to gobreaker.State) {
			logger.Info("circuit breaker state change",
				zap.String("breaker", n),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	b.cb = gobreaker.NewCircuitBreaker(settings)
	return b
}

// ErrOpen is returned by Attempt when the breaker is Open and the caller
// must drop the line without parsing it.
var ErrOpen = gobreaker.ErrOpenState

// Attempt runs fn under the breaker. When Open, fn is not invoked and
// ErrOpen is returned -- the driver still consumed the line from the
// source, it simply never reached the parser. On failure, line is recorded
// (truncated) into the ring buffer and logged at a sampled rate.
func (b *Breaker) Attempt(line []byte, fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}

	b.record(line, err)
	return err
}

func (b *Breaker) record(line []byte, err error) {
	b.mu.Lock()
	rec := FailureRecord{Line: truncate(line, 256), Err: err.Error(), TsNs: time.Now().UnixNano()}
	idx := (b.ringHead + b.ringLen) % b.ringCap
	b.ring[idx] = rec
	if b.ringLen < b.ringCap {
		b.ringLen++
	} else {
		b.ringHead = (b.ringHead + 1) % b.ringCap
	}
	b.mu.Unlock()

	seq := b.sampleSeq.Add(1)
	if b.sampleRate <= 1 || seq%int64(b.sampleRate) == 0 {
		b.logger.Warn("ingestion parse/validation failure",
			zap.String("error", rec.Err),
			zap.String("line", rec.Line),
		)
	}
}

// RecentFailures returns the currently-retained failure records, oldest
// first.
func (b *Breaker) RecentFailures() []FailureRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]FailureRecord, b.ringLen)
	for i := 0; i < b.ringLen; i++ {
		out[i] = b.ring[(b.ringHead+i)%b.ringCap]
	}
	return out
}

// State returns the breaker's current gobreaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func truncate(line []byte, max int) string {
	if len(line) <= max {
		return string(line)
	}
	return string(line[:max]) + "...(truncated)"
}
