package syncer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carbsync/carbsync/internal/metrics"
)

// DefaultPollInterval is how often the ongoing meal is re-imported.
const DefaultPollInterval = 5 * time.Second

//go:generate mockgen -source=poller.go -destination=mock_ongoing_importer_test.go -package=syncer -mock_names=ongoingImporter=MockOngoingImporter

// ongoingImporter is the subset of Importer the poller drives. Extracted
// for testability.
type ongoingImporter interface {
	ImportOngoing(ctx context.Context) (Report, error)
}

// pollRun is one Start/Stop cycle of the poller loop.
type pollRun struct {
	stop chan struct{}
	done chan struct{}
}

// Poller re-imports the ongoing meal on a fixed interval while a consumer
// observes it. It is Idle until Start and returns to Idle on Stop.
//
// At most one import is in flight. A tick that arrives while an import is
// running is dropped, not queued.
type Poller struct {
	importer ongoingImporter
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu  sync.Mutex
	run *pollRun

	inFlight atomic.Bool
}

// NewPoller creates an idle poller. A non-positive interval uses
// DefaultPollInterval.
func NewPoller(importer *Importer, interval time.Duration, m *metrics.Metrics, logger *slog.Logger) *Poller {
	return newPoller(importer, interval, m, logger)
}

func newPoller(importer ongoingImporter, interval time.Duration, m *metrics.Metrics, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return &Poller{importer: importer, interval: interval, metrics: m, logger: logger}
}

// Running reports whether the poller is in the Polling state.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.run != nil
}

// Start begins polling. Imports use ctx, so cancelling it abandons an
// in-flight read; the loop also ends when ctx is done. Starting an
// already running poller does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.run != nil {
		return
	}

	run := &pollRun{stop: make(chan struct{}), done: make(chan struct{})}
	p.run = run

	go p.loop(ctx, run)

	p.logger.Debug("ongoing poller started", slog.Duration("interval", p.interval))
}

// Stop ends polling and waits for the loop to exit. No import is started
// after Stop returns; one already in flight may still complete, but
// nothing is scheduled after it. Stopping an idle poller does nothing.
func (p *Poller) Stop() {
	p.mu.Lock()
	run := p.run
	p.run = nil
	p.mu.Unlock()

	if run == nil {
		return
	}

	close(run.stop)
	<-run.done

	p.logger.Debug("ongoing poller stopped")
}

func (p *Poller) loop(ctx context.Context, run *pollRun) {
	defer close(run.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx, run)

	for {
		select {
		case <-run.stop:
			return

		case <-ctx.Done():
			p.mu.Lock()
			if p.run == run {
				p.run = nil
			}
			p.mu.Unlock()

			return

		case <-ticker.C:
			p.tick(ctx, run)
		}
	}
}

// tick starts an import unless one is still running or the run was
// stopped. The stop check and the start happen on the loop goroutine, so
// once Stop has closed run.stop and the loop has exited no new import can
// begin.
func (p *Poller) tick(ctx context.Context, run *pollRun) {
	select {
	case <-run.stop:
		return
	default:
	}

	if !p.inFlight.CompareAndSwap(false, true) {
		p.metrics.DroppedTick()
		p.logger.Debug("poll tick dropped, import still in flight")

		return
	}

	go func() {
		defer p.inFlight.Store(false)

		if _, err := p.importer.ImportOngoing(ctx); err != nil {
			p.logger.Warn("ongoing import failed", slog.String("error", err.Error()))
		}
	}()
}
