package notes

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MonitorInterval is the default delay between two connectivity probes.
const MonitorInterval = 10 * time.Second

type (
	// A Pinger checks the backend reachability.
	// It is implemented by *mirror.Mirror.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// A Monitor probes the backend periodically and reports connectivity transitions.
	Monitor struct {
		pinger   Pinger
		interval time.Duration
		log      logrus.FieldLogger

		// OnOnline is called on every offline to online transition.
		OnOnline func(ctx context.Context)
		// OnOffline is called on every online to offline transition.
		OnOffline func(err error)

		mu     sync.Mutex
		online bool
	}
)

// NewMonitor returns a new Monitor. The backend is assumed reachable until the first failed probe.
func NewMonitor(pinger Pinger, interval time.Duration, log logrus.FieldLogger) *Monitor {
	if interval <= 0 {
		interval = MonitorInterval
	}

	return &Monitor{
		pinger:   pinger,
		interval: interval,
		log:      log,
		online:   true,
	}
}

// Online returns the last known connectivity.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Run probes the backend until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check probes the backend once and fires the transition callbacks.
func (m *Monitor) Check(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, m.interval)
	err := m.pinger.Ping(pctx)
	cancel()

	m.mu.Lock()
	previous := m.online
	m.online = err == nil
	m.mu.Unlock()

	switch {
	case previous && err != nil:
		m.log.WithError(err).Warn("Backend unreachable")
		if m.OnOffline != nil {
			m.OnOffline(err)
		}
	case !previous && err == nil:
		m.log.Info("Backend reachable again")
		if m.OnOnline != nil {
			m.OnOnline(ctx)
		}
	}

	return err == nil
}

// AutoSync returns an OnOnline callback that syncs local-only notes when cloud sync is enabled.
func AutoSync(r *Reconciler) func(ctx context.Context) {
	return func(ctx context.Context) {
		if !r.CloudEnabled() {
			return
		}
		if err := r.SyncWithRemote(ctx); err != nil {
			r.app.Logger.WithError(err).Error("Auto sync failed")
		}
	}
}
