// Package breach checks candidate passwords against a k-anonymity range
// service. Only the first five hex characters of the password's SHA-1
// digest ever leave the process; the service answers with suffixes and
// counts for that prefix.
//
// The check is soft protection: it fails open. Timeouts, transport errors,
// unexpected statuses, and an open circuit all report "not known breached"
// so the check can never block a signup or reset.
package breach

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

// DefaultEndpoint is the public range-query API.
const DefaultEndpoint = "https://api.pwnedpasswords.com/range/"

// DefaultTimeout bounds each range query.
const DefaultTimeout = time.Second

// Config tunes a Checker.
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// Checker performs range queries with a circuit breaker in front of the
// upstream, so a degraded service stops being probed for a while instead
// of costing every flow a full timeout.
type Checker struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[bool]
	logger   *slog.Logger
}

// NewChecker returns a Checker. Zero-value cfg fields fall back to the
// defaults above; a nil logger falls back to slog.Default().
func NewChecker(cfg Config, logger *slog.Logger) *Checker {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:     "breach-range-query",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("breach checker circuit state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	return &Checker{
		endpoint: strings.TrimRight(cfg.Endpoint, "/") + "/",
		client:   &http.Client{Timeout: cfg.Timeout},
		breaker:  gobreaker.NewCircuitBreaker[bool](settings),
		logger:   logger,
	}
}

// IsCommon reports whether password appears in the breach corpus. Any
// failure reports false.
func (c *Checker) IsCommon(ctx context.Context, password string) bool {
	digest := sha1.Sum([]byte(password))
	full := strings.ToUpper(hex.EncodeToString(digest[:]))
	prefix, suffix := full[:5], full[5:]

	found, err := c.breaker.Execute(func() (bool, error) {
		return c.query(ctx, prefix, suffix)
	})
	if err != nil {
		c.logger.Debug("breach check failed open", slog.String("error", err.Error()))
		return false
	}
	return found
}

func (c *Checker) query(ctx context.Context, prefix, suffix string) (bool, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.endpoint+prefix, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	// Response is one "SUFFIX:COUNT" entry per line for the whole prefix
	// bucket.
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		candidate, _, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(candidate), suffix) {
			return true, nil
		}
	}
	return false, scanner.Err()
}
