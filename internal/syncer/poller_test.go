package syncer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/carbsync/carbsync/internal/metrics"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestNewPoller_DefaultInterval(t *testing.T) {
	p := newPoller(nil, 0, nil, testLogger)
	assert.Equal(t, DefaultPollInterval, p.interval)
	assert.False(t, p.Running())
}

func TestPoller_ImportsImmediatelyOnStart(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMockOngoingImporter(ctrl)
	p := newPoller(mock, time.Hour, nil, testLogger)

	var calls atomic.Int32
	mock.EXPECT().ImportOngoing(gomock.Any()).DoAndReturn(func(context.Context) (Report, error) {
		calls.Add(1)
		return Report{}, nil
	}).Times(1)

	p.Start(context.Background())
	assert.True(t, p.Running())

	waitFor(t, time.Second, func() bool { return calls.Load() == 1 })
	waitFor(t, time.Second, func() bool { return !p.inFlight.Load() })

	p.Stop()
	assert.False(t, p.Running())
}

func TestPoller_DoubleStartSingleTimer(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMockOngoingImporter(ctrl)
	p := newPoller(mock, time.Hour, nil, testLogger)

	var calls atomic.Int32
	mock.EXPECT().ImportOngoing(gomock.Any()).DoAndReturn(func(context.Context) (Report, error) {
		calls.Add(1)
		return Report{}, nil
	}).Times(1)

	ctx := context.Background()
	p.Start(ctx)
	p.Start(ctx)

	waitFor(t, time.Second, func() bool { return calls.Load() == 1 })
	time.Sleep(50 * time.Millisecond)
	waitFor(t, time.Second, func() bool { return !p.inFlight.Load() })

	p.Stop()
	assert.Equal(t, int32(1), calls.Load())
}

func TestPoller_DropsTickWhileBusy(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMockOngoingImporter(ctrl)
	m := metrics.New()
	p := newPoller(mock, 5*time.Millisecond, m, testLogger)

	release := make(chan struct{})
	var calls, running, maxRunning atomic.Int32

	mock.EXPECT().ImportOngoing(gomock.Any()).DoAndReturn(func(context.Context) (Report, error) {
		calls.Add(1)
		n := running.Add(1)
		if n > maxRunning.Load() {
			maxRunning.Store(n)
		}
		<-release
		running.Add(-1)
		return Report{}, nil
	}).MinTimes(1)

	p.Start(context.Background())

	waitFor(t, time.Second, func() bool { return droppedTicks(m) >= 3 })
	assert.Equal(t, int32(1), calls.Load())

	p.Stop()
	close(release)
	waitFor(t, time.Second, func() bool { return !p.inFlight.Load() })

	assert.Equal(t, int32(1), maxRunning.Load())
	assert.Equal(t, int32(1), calls.Load())
}

func TestPoller_NoImportAfterStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMockOngoingImporter(ctrl)
	p := newPoller(mock, 2*time.Millisecond, nil, testLogger)

	var calls atomic.Int32
	mock.EXPECT().ImportOngoing(gomock.Any()).DoAndReturn(func(context.Context) (Report, error) {
		calls.Add(1)
		return Report{}, nil
	}).MinTimes(1)

	p.Start(context.Background())
	waitFor(t, time.Second, func() bool { return calls.Load() >= 3 })

	p.Stop()
	waitFor(t, time.Second, func() bool { return !p.inFlight.Load() })
	after := calls.Load()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, calls.Load())
	assert.False(t, p.Running())
}

func TestPoller_StopIdleIsNoop(t *testing.T) {
	p := newPoller(nil, time.Second, nil, testLogger)
	p.Stop()
	assert.False(t, p.Running())
}

func TestPoller_RestartAfterStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMockOngoingImporter(ctrl)
	p := newPoller(mock, time.Hour, nil, testLogger)

	var calls atomic.Int32
	mock.EXPECT().ImportOngoing(gomock.Any()).DoAndReturn(func(context.Context) (Report, error) {
		calls.Add(1)
		return Report{}, nil
	}).Times(2)

	p.Start(context.Background())
	waitFor(t, time.Second, func() bool { return calls.Load() == 1 && !p.inFlight.Load() })
	p.Stop()

	p.Start(context.Background())
	waitFor(t, time.Second, func() bool { return calls.Load() == 2 && !p.inFlight.Load() })
	p.Stop()
}

func TestPoller_ContextCancelReturnsToIdle(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMockOngoingImporter(ctrl)
	p := newPoller(mock, time.Hour, nil, testLogger)

	mock.EXPECT().ImportOngoing(gomock.Any()).Return(Report{}, nil).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()

	waitFor(t, time.Second, func() bool { return !p.Running() && !p.inFlight.Load() })
	p.Stop()
}

func TestPoller_ImportErrorKeepsPolling(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMockOngoingImporter(ctrl)
	p := newPoller(mock, 2*time.Millisecond, nil, testLogger)

	var calls atomic.Int32
	mock.EXPECT().ImportOngoing(gomock.Any()).DoAndReturn(func(context.Context) (Report, error) {
		calls.Add(1)
		return Report{}, errors.New("shared storage unavailable")
	}).MinTimes(2)

	p.Start(context.Background())
	waitFor(t, time.Second, func() bool { return calls.Load() >= 2 })

	p.Stop()
	waitFor(t, time.Second, func() bool { return !p.inFlight.Load() })
}

func droppedTicks(m *metrics.Metrics) float64 {
	mfs, err := m.Registry().Gather()
	if err != nil {
		return 0
	}

	for _, mf := range mfs {
		if mf.GetName() == "carbsync_poller_dropped_ticks_total" {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}

	return 0
}
