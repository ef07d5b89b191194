package translate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// ---------------------------------------------------------------------------
// Rate limit state (global pause for concurrent languages)
// ---------------------------------------------------------------------------

type rateLimitState struct {
	mu       sync.Mutex
	paused   int32 // atomic: 1 = paused
	pauseEnd time.Time
}

func (r *rateLimitState) isPaused() bool {
	return atomic.LoadInt32(&r.paused) == 1
}

func (r *rateLimitState) pause(duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pauseEnd = time.Now().Add(duration)
	atomic.StoreInt32(&r.paused, 1)
}

func (r *rateLimitState) unpause() {
	atomic.StoreInt32(&r.paused, 0)
}

// waitIfPaused blocks until the rate limit pause is over.
func (r *rateLimitState) waitIfPaused(ctx context.Context) error {
	for r.isPaused() {
		r.mu.Lock()
		remaining := time.Until(r.pauseEnd)
		r.mu.Unlock()
		if remaining <= 0 {
			r.unpause()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(min(remaining, 100*time.Millisecond)):
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ---------------------------------------------------------------------------
// Retry classification
// ---------------------------------------------------------------------------

const defaultRetryDelay = 65 * time.Second // 60s + 5s buffer

// retryDelay extracts the delay from Google's RetryInfo error detail.
// Returns the delay plus a 5s buffer, defaulting to 65s.
func retryDelay(apiErr genai.APIError) time.Duration {
	for _, detail := range apiErr.Details {
		typ, _ := detail["@type"].(string)
		delay, _ := detail["retryDelay"].(string)
		if !strings.Contains(typ, "RetryInfo") || delay == "" {
			continue
		}
		// Durations look like "30s" or "45.123s".
		if secs, err := strconv.ParseFloat(strings.TrimSuffix(delay, "s"), 64); err == nil {
			return time.Duration(secs*1000)*time.Millisecond + 5*time.Second
		}
	}
	return defaultRetryDelay
}

type retryKind int

const (
	noRetry retryKind = iota
	retryBackoff
	retryRateLimit
)

func classify(err error) retryKind {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return noRetry
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return retryRateLimit
		case apiErr.Code >= 500:
			return retryBackoff
		}
		return noRetry
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return retryBackoff
	}
	return noRetry
}

func backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

// ---------------------------------------------------------------------------
// Calls with retries
// ---------------------------------------------------------------------------

// retry runs fn until it succeeds, fails permanently or runs out of retries.
func (s *Service) retry(ctx context.Context, op string, fn func() error) error {
	maxRetries := s.opts.effectiveMaxRetries()

	for attempt := 0; ; attempt++ {
		// Wait if globally paused (rate limit from another language)
		if err := s.rl.waitIfPaused(ctx); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}

		kind := classify(err)
		if kind == noRetry || attempt >= maxRetries {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if kind != noRetry {
				return fmt.Errorf("%w: %s failed after %d retries: %w", ErrExternalService, op, maxRetries, err)
			}
			return fmt.Errorf("%w: %s: %w", ErrExternalService, op, err)
		}

		var wait time.Duration
		if kind == retryRateLimit {
			var apiErr genai.APIError
			errors.As(err, &apiErr)
			wait = retryDelay(apiErr)
			s.rl.pause(wait)
			s.opts.log("Rate limited, waiting %v before retry (attempt %d/%d)", wait, attempt+1, maxRetries)
		} else {
			wait = backoff(attempt)
			s.opts.log("%s failed: %s, retrying in %v", op, truncate(err.Error(), 200), wait)
		}
		s.log.Warn("retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err))

		if err := s.wait(ctx, wait); err != nil {
			return err
		}
		if kind == retryRateLimit {
			s.rl.unpause()
		}
	}
}

func (s *Service) generate(ctx context.Context, req Request) (Response, error) {
	var resp Response
	err := s.retry(ctx, "generate", func() error {
		var err error
		resp, err = s.gen.Generate(ctx, req)
		return err
	})
	return resp, err
}

func (s *Service) countTokens(ctx context.Context, model, content string) (int, error) {
	var n int
	err := s.retry(ctx, "count tokens", func() error {
		var err error
		n, err = s.gen.CountTokens(ctx, model, content)
		return err
	})
	return n, err
}
