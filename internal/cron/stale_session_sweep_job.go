package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/lumea-app/lumea-backend/pkg/logger"
)

const (
	defaultStaleAge   = 6 * time.Hour
	defaultSweepLimit = 100
)

// StaleSessionSweepJobParams configure the abandoned-session sweeper.
type StaleSessionSweepJobParams struct {
	Logger   *logger.Logger
	Sessions sessionSweeper
	StaleAge time.Duration
	Limit    int
}

type sessionSweeper interface {
	SweepStale(ctx context.Context, staleAge time.Duration, limit int) (int, error)
}

// NewStaleSessionSweepJob builds the cron job that force-settles sessions
// whose client never sent an end signal. Settlement itself is clamped to the
// session length cap, so a sweep never bills more than a live end would.
func NewStaleSessionSweepJob(params StaleSessionSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session sweeper required")
	}
	staleAge := params.StaleAge
	if staleAge <= 0 {
		staleAge = defaultStaleAge
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	return &staleSessionSweepJob{
		logg:     params.Logger,
		sessions: params.Sessions,
		staleAge: staleAge,
		limit:    limit,
	}, nil
}

type staleSessionSweepJob struct {
	logg     *logger.Logger
	sessions sessionSweeper
	staleAge time.Duration
	limit    int
}

func (j *staleSessionSweepJob) Name() string { return "stale-session-sweep" }

func (j *staleSessionSweepJob) Run(ctx context.Context) error {
	swept, err := j.sessions.SweepStale(ctx, j.staleAge, j.limit)
	if err != nil {
		return fmt.Errorf("stale session sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"stale_age": j.staleAge.String(),
		"limit":     j.limit,
		"swept":     swept,
	})
	j.logg.Info(logCtx, "stale session sweep complete")
	return nil
}
