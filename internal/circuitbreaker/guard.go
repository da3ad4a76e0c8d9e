// v3
// internal/circuitbreaker/guard.go
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Guard adds per-attempt timeouts and back-off retries on top of a Breaker. A disabled
// Guard (or a nil one) runs operations directly.
type Guard struct {
	enabled          bool
	failureThreshold int
	timeout          time.Duration
	backoff          time.Duration
	breaker          *Breaker
}

// Enabled reports whether breaker protections are active.
func (g *Guard) Enabled() bool {
	return g != nil && g.enabled && g.breaker != nil
}

// Breaker exposes the underlying breaker for inspection and testing.
func (g *Guard) Breaker() *Breaker {
	if g == nil {
		return nil
	}
	return g.breaker
}

// NewGuardFromEnv builds a Guard for one collaborator kind (KAFKA, MQTT, AMQP, STORE).
// It understands the following keys, with <KIND> upper-cased:
//   - CB_ENABLED (default: false)
//   - CB_<KIND>_FAILURE_THRESHOLD (default: 5)
//   - CB_<KIND>_SUCCESS_THRESHOLD (default: 2)
//   - CB_<KIND>_OPEN_SECONDS (default: 30)
//   - CB_<KIND>_TIMEOUT_MS (default: 3000)
//   - CB_<KIND>_BACKOFF_MS (default: 200)
//
// Example:
//
//	guard, _ := circuitbreaker.NewGuardFromEnv("kafka", "ventilation-writer", nil, logger)
//	writer := circuitbreaker.NewCBKafkaWriter(&kafka.Writer{Addr: kafka.TCP("kafka:9092")}, guard)
func NewGuardFromEnv(kind, name string, probe func(ctx context.Context) error, logger *slog.Logger) (*Guard, error) {
	prefix := "CB_" + strings.ToUpper(kind) + "_"
	enabled := parseEnvBool("CB_ENABLED")

	failureThreshold, err := parseEnvInt(prefix+"FAILURE_THRESHOLD", 5)
	if err != nil {
		return nil, err
	}
	successThreshold, err := parseEnvInt(prefix+"SUCCESS_THRESHOLD", 2)
	if err != nil {
		return nil, err
	}
	openSeconds, err := parseEnvFloat(prefix+"OPEN_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	timeoutMS, err := parseEnvInt(prefix+"TIMEOUT_MS", 3000)
	if err != nil {
		return nil, err
	}
	backoffMS, err := parseEnvInt(prefix+"BACKOFF_MS", 200)
	if err != nil {
		return nil, err
	}

	if failureThreshold < 1 {
		return nil, fmt.Errorf("%sFAILURE_THRESHOLD must be >= 1", prefix)
	}
	if successThreshold < 1 {
		return nil, fmt.Errorf("%sSUCCESS_THRESHOLD must be >= 1", prefix)
	}
	if openSeconds <= 0 {
		return nil, fmt.Errorf("%sOPEN_SECONDS must be > 0", prefix)
	}
	if timeoutMS < 0 {
		return nil, fmt.Errorf("%sTIMEOUT_MS must be >= 0", prefix)
	}
	if backoffMS < 0 {
		return nil, fmt.Errorf("%sBACKOFF_MS must be >= 0", prefix)
	}

	g := &Guard{
		enabled:          enabled,
		failureThreshold: failureThreshold,
		timeout:          time.Duration(timeoutMS) * time.Millisecond,
		backoff:          time.Duration(backoffMS) * time.Millisecond,
	}
	if enabled {
		cfg := Config{
			MaxFailures:      failureThreshold,
			ResetTimeout:     time.Duration(openSeconds * float64(time.Second)),
			SuccessesToClose: successThreshold,
		}
		g.breaker = New(name, cfg, probe, logger)
	}
	return g, nil
}

// Do runs op with breaker protection. Plain failures are retried up to the failure
// threshold; while the breaker is open Do keeps backing off until it lets a call
// through or ctx ends.
func (g *Guard) Do(ctx context.Context, op func(ctx context.Context) error) error {
	return g.do(ctx, op, true)
}

// DoBlocking is Do without the per-attempt deadline, for operations such as consumer
// fetches that legitimately block until data arrives. Only ctx bounds each attempt.
func (g *Guard) DoBlocking(ctx context.Context, op func(ctx context.Context) error) error {
	return g.do(ctx, op, false)
}

func (g *Guard) do(ctx context.Context, op func(ctx context.Context) error, bounded bool) error {
	if !g.Enabled() {
		return op(ctx)
	}
	attempts := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		attempts++
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if bounded {
			attemptCtx, cancel = g.withAttemptContext(ctx)
		}
		err := g.breaker.Execute(attemptCtx, op)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrOpen) {
			if waitErr := g.waitBackoff(ctx); waitErr != nil {
				return waitErr
			}
			continue
		}
		if attempts >= g.failureThreshold {
			return err
		}
		if waitErr := g.waitBackoff(ctx); waitErr != nil {
			return waitErr
		}
	}
}

func (g *Guard) withAttemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *Guard) waitBackoff(ctx context.Context) error {
	if g.backoff <= 0 {
		return nil
	}
	timer := time.NewTimer(g.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseEnvInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseEnvFloat(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseEnvBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
