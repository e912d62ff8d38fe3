package outbox

import (
	"context"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "outbox-producer",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerProducer stops publishing for a while once the broker keeps failing.
type BreakerProducer struct {
	next Producer
	cb   *gobreaker.CircuitBreaker[struct{}]
}

func NewBreakerProducer(next Producer, cfg BreakerConfig, logger *slog.Logger) *BreakerProducer {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			}
		},
	}
	return &BreakerProducer{next: next, cb: gobreaker.NewCircuitBreaker[struct{}](settings)}
}

func (p *BreakerProducer) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	_, err := p.cb.Execute(func() (struct{}, error) {
		return struct{}{}, p.next.Publish(ctx, topic, key, payload, headers)
	})
	return err
}

// State reports the breaker state for health output.
func (p *BreakerProducer) State() string {
	return p.cb.State().String()
}

var _ Producer = (*BreakerProducer)(nil)
