package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/lorrc/rx-dashboard-backend/internal/core/errors"
	"github.com/lorrc/rx-dashboard-backend/internal/core/ports"
	"github.com/lorrc/rx-dashboard-backend/internal/core/presenter"
	"github.com/lorrc/rx-dashboard-backend/internal/infrastructure/logging"
)

const (
	// maxConcurrentCharts bounds the warehouse reads of one refresh.
	maxConcurrentCharts = 4

	maxErrorBackoff = 5 * time.Minute
)

// ChartSource computes charts on demand.
type ChartSource interface {
	Chart(ctx context.Context, name presenter.Name, opts ports.ChartOptions) (*presenter.Chart, error)
}

// Refresher recomputes every subscribed chart on a fixed interval and pushes
// the result to the chart's room. Nothing is computed while no one listens.
type Refresher struct {
	hub      *Hub
	source   ChartSource
	interval time.Duration
	logger   *slog.Logger

	consecutiveErrors int
	lastErrorTime     time.Time
	// failingRounds mirrors consecutiveErrors for readers outside Run.
	failingRounds atomic.Int64
}

// NewRefresher creates a refresher for hub
func NewRefresher(hub *Hub, source ChartSource, interval time.Duration, logger *slog.Logger) *Refresher {
	return &Refresher{
		hub:      hub,
		source:   source,
		interval: interval,
		logger:   logger.With("component", "chart_refresher"),
	}
}

// Run refreshes until ctx is cancelled. New rooms are filled immediately
// instead of waiting for the next tick.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case sub := <-r.hub.Subscribed():
			r.refresh(ctx, []Subscription{sub})

		case <-ticker.C:
			subs := r.hub.Subscriptions()
			if len(subs) == 0 {
				continue
			}
			r.refresh(ctx, subs)
		}
	}
}

// refresh computes each subscription from scratch and broadcasts it.
func (r *Refresher) refresh(ctx context.Context, subs []Subscription) {
	start := time.Now()
	failures := make([]error, len(subs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentCharts)
	for i, sub := range subs {
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					logging.LogPanic(gctx, r.logger.With("subscription", sub.String()), p)
					failures[i] = fmt.Errorf("refresh %s: panic: %v", sub, p)
				}
			}()
			failures[i] = r.push(gctx, sub)
			return nil
		})
	}
	_ = g.Wait()

	r.recordOutcome(errors.Join(failures...))

	r.logger.Debug("charts refreshed",
		"subscriptions", len(subs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// push computes one chart and broadcasts the update or the failure.
func (r *Refresher) push(ctx context.Context, sub Subscription) error {
	ctx = logging.WithChart(ctx, string(sub.Chart))
	if sub.Granularity != "" {
		ctx = logging.WithGranularity(ctx, string(sub.Granularity))
	}

	chart, err := r.source.Chart(ctx, sub.Chart, ports.ChartOptions{Granularity: sub.Granularity})
	if err != nil {
		msg := ServerMessage{
			Type:        TypeError,
			Chart:       sub.Chart,
			Granularity: sub.Granularity,
			Error:       publicMessage(err),
		}

		// A chart that cannot exist will never refresh; release its room.
		if errors.Is(err, apperrors.ErrUnknownChart) || errors.Is(err, apperrors.ErrInvalidGranularity) {
			r.hub.CloseRoom(sub, msg)
			return nil
		}
		r.hub.Broadcast(sub, msg)
		return err
	}

	r.hub.Broadcast(sub, ServerMessage{
		Type:        TypeChartUpdated,
		Chart:       sub.Chart,
		Granularity: chart.Granularity,
		Data:        chart,
	})
	return nil
}

// recordOutcome logs failures with exponential backoff so an outage does
// not flood the log.
func (r *Refresher) recordOutcome(err error) {
	if err == nil {
		if r.consecutiveErrors > 0 {
			r.logger.Info("chart refresh recovered", "failed_rounds", r.consecutiveErrors)
			r.consecutiveErrors = 0
			r.failingRounds.Store(0)
		}
		return
	}

	r.consecutiveErrors++
	r.failingRounds.Store(int64(r.consecutiveErrors))
	now := time.Now()

	backoff := time.Duration(1<<uint(min(r.consecutiveErrors-1, 8))) * time.Second
	if backoff > maxErrorBackoff {
		backoff = maxErrorBackoff
	}

	if r.lastErrorTime.IsZero() || now.Sub(r.lastErrorTime) >= backoff {
		r.logger.Error("chart refresh failed",
			"consecutive_errors", r.consecutiveErrors,
			"backoff", backoff,
			"error", err,
		)
		r.lastErrorTime = now
	}
}

// Check reports an error while the most recent refresh rounds are failing.
func (r *Refresher) Check(context.Context) error {
	if n := r.failingRounds.Load(); n > 0 {
		return fmt.Errorf("last %d refresh rounds failed", n)
	}
	return nil
}

func publicMessage(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrUnknownChart):
		return "chart not found"
	case errors.Is(err, apperrors.ErrInvalidGranularity):
		return "invalid granularity"
	case errors.Is(err, apperrors.ErrInvalidDate):
		return "the warehouse returned an invalid date"
	case errors.Is(err, apperrors.ErrWarehouseUnavailable):
		return "the data warehouse is currently unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "the data warehouse did not respond in time"
	default:
		return "chart refresh failed"
	}
}
