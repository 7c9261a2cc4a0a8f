package lifecycle

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"NairaOfframp/internal/models"
)

// WatchdogStore extends the manager's store contract with the scans the
// watchdog needs.
type WatchdogStore interface {
	Store
	ListStaleSessions(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
	ListTrackedOrders(ctx context.Context, limit int) ([]*models.Order, error)
}

// Watchdog periodically forces order replacement for sessions whose
// refresh window has elapsed and polls the status of tracked orders.
// Status polling per order is bounded: it stops after StatusPollAttempts
// checks or as soon as a terminal status is observed.
type Watchdog struct {
	Manager            *Manager
	Store              WatchdogStore
	Log                *zap.SugaredLogger
	Interval           time.Duration
	StatusPollAttempts int
	SessionBatch       int
}

func (w *Watchdog) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := w.Tick(ctx); err != nil {
			w.Log.Warnw("watchdog tick failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Watchdog) Tick(ctx context.Context) error {
	batch := w.SessionBatch
	if batch <= 0 {
		batch = 100
	}

	cutoff := w.Manager.clock.Now().UTC().Add(-w.Manager.RefreshWindow())
	stale, err := w.Store.ListStaleSessions(ctx, cutoff, batch)
	if err != nil {
		return err
	}
	for _, sessionID := range stale {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := w.Manager.EnsureActiveOrder(ctx, sessionID, true); err != nil {
			w.Log.Warnw("forced replacement failed", "session", sessionID, "error", err)
		}
	}

	return w.pollStatuses(ctx, batch)
}

func (w *Watchdog) pollStatuses(ctx context.Context, batch int) error {
	orders, err := w.Store.ListTrackedOrders(ctx, batch)
	if err != nil {
		return err
	}
	for _, order := range orders {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attempts := w.pollCount(ctx, order.SessionID)
		if attempts >= w.maxAttempts() {
			continue
		}

		st := w.Manager.CheckStatus(ctx, order.SessionID, order.ID)
		if st.Terminal() {
			w.Log.Infow("order reached terminal status",
				"session", order.SessionID, "order", order.ID, "status", st)
			continue
		}
		if err := w.Store.SetState(ctx, order.SessionID, StatePollAttempts,
			strconv.Itoa(attempts+1)); err != nil {
			w.Log.Warnw("persist poll count failed", "session", order.SessionID, "error", err)
		}
	}
	return nil
}

func (w *Watchdog) pollCount(ctx context.Context, sessionID string) int {
	v, err := w.Store.GetState(ctx, sessionID, StatePollAttempts)
	if err != nil || v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func (w *Watchdog) maxAttempts() int {
	if w.StatusPollAttempts <= 0 {
		return 10
	}
	return w.StatusPollAttempts
}
