package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fluxbatch/internal/infra"
	"fluxbatch/internal/providers/replicate"
)

var (
	// ErrCanceled reports that the run's cancellation signal was observed.
	ErrCanceled = errors.New("run canceled")
	// ErrPollTimeout reports that the attempt budget was exhausted before the
	// job reached a terminal state.
	ErrPollTimeout = errors.New("job polling attempt budget exhausted")
	// ErrRemoteFailed reports that the provider marked the job failed.
	ErrRemoteFailed = errors.New("remote job failed")
)

const (
	defaultPollInterval    = 5 * time.Second
	defaultPollMaxAttempts = 60
)

// Poller drives a remote job to a terminal state by fetching its status at a
// fixed interval. A single fetch failure is fatal to the poll: transient
// network blips are not retried, matching the upstream contract.
type Poller struct {
	fetch       StatusFetcher
	interval    time.Duration
	maxAttempts int
	logger      infra.Logger
}

// NewPoller constructs a poller; zero interval or attempts take the defaults
// (5 seconds, 60 attempts).
func NewPoller(fetch StatusFetcher, interval time.Duration, maxAttempts int, logger infra.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultPollMaxAttempts
	}
	return &Poller{fetch: fetch, interval: interval, maxAttempts: maxAttempts, logger: logger}
}

// Poll fetches the job status until success, remote failure, attempt budget
// exhaustion, or cancellation. Cancellation is checked immediately before
// each fetch and during the inter-poll wait, so a cancel request is honored
// within one interval. On success it returns the provider-reported output
// URLs.
func (p *Poller) Poll(ctx context.Context, token string, handle JobHandle, sig *Signal) ([]string, error) {
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if sig.Canceled() {
			return nil, ErrCanceled
		}

		update, err := p.fetch.Fetch(ctx, token, handle.ID)
		if err != nil {
			return nil, fmt.Errorf("fetch job status: %w", err)
		}

		switch update.Status {
		case replicate.StatusSucceeded:
			p.logger.Debug().
				Str("job_id", handle.ID).
				Int("attempts", attempt).
				Int("outputs", len(update.Output)).
				Msg("poll: job succeeded")
			return update.Output, nil
		case replicate.StatusFailed, replicate.StatusCanceled:
			if update.Error != "" {
				return nil, fmt.Errorf("%w: %s", ErrRemoteFailed, update.Error)
			}
			return nil, ErrRemoteFailed
		}

		if attempt == p.maxAttempts {
			break
		}
		if err := p.wait(ctx, sig); err != nil {
			return nil, err
		}
	}
	return nil, ErrPollTimeout
}

// wait is the poll's only suspension point: a cancellable timer that yields
// to either the run signal or context cancellation without waiting for the
// timer to fire.
func (p *Poller) wait(ctx context.Context, sig *Signal) error {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-sig.Done():
		return ErrCanceled
	case <-ctx.Done():
		return ctx.Err()
	}
}
