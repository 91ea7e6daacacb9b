package simulation

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Ticker is anything advanced by the monitor.
type Ticker interface {
	Tick()
}

// Monitor drives a Ticker at a fixed interval on its own goroutine.
type Monitor struct {
	target   Ticker
	interval time.Duration
	logger   *logrus.Logger

	mutex  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewMonitor(target Ticker, interval time.Duration, logger *logrus.Logger) *Monitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &Monitor{
		target:   target,
		interval: interval,
		logger:   logger,
	}
}

// Start begins ticking. Calling it on a running monitor does nothing.
func (m *Monitor) Start(ctx context.Context) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.cancel != nil {
		m.logger.Warn("Monitor already started, ignoring start")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.run(ctx, m.done)
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Infof("Starting monitor (interval %s)", m.interval)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Stopping monitor")
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				m.logger.Info("Stopping monitor")
				return
			}
			m.target.Tick()
		}
	}
}

// Stop halts the monitor and waits for an in-flight tick to finish. No tick
// fires after Stop returns. Stopping an idle monitor does nothing.
func (m *Monitor) Stop() {
	m.mutex.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mutex.Unlock()

	if cancel == nil {
		m.logger.Debug("Monitor not running, ignoring stop")
		return
	}

	cancel()
	<-done
}

func (m *Monitor) Running() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.cancel != nil
}
