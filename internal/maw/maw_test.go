package maw

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arconyx/fuc/internal/ratelimit"
	"github.com/arconyx/fuc/internal/types"
)

// newTestMaw starts a coordinator whose workers are replaced by stub.
func newTestMaw(t *testing.T, stub func(id string)) *Maw {
	t.Helper()
	api := &APIContext{Limiter: ratelimit.NewDefault(), Label: "LABEL"}
	m := New(context.Background(), api, slog.Default())
	m.runWorker = stub
	t.Cleanup(m.Die)
	return m
}

// spawnRecorder counts worker spawns per id without letting them finish.
type spawnRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func newSpawnRecorder() *spawnRecorder {
	return &spawnRecorder{counts: make(map[string]int)}
}

func (r *spawnRecorder) spawn(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[id]++
}

func (r *spawnRecorder) count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[id]
}

func TestQueueDeduplicatesInFlight(t *testing.T) {
	rec := newSpawnRecorder()
	m := newTestMaw(t, rec.spawn)

	m.Queue("a")
	m.Queue("a")
	m.Queue("a")

	// Status flushes the mailbox: every Queue above is ordered before it.
	status := m.Status()
	assert.Equal(t, 1, status.Active)
	require.Eventually(t, func() bool { return rec.count("a") == 1 },
		time.Second, 5*time.Millisecond, "exactly one worker per in-flight id")
}

func TestQueueDistinctIDsAllSpawn(t *testing.T) {
	rec := newSpawnRecorder()
	m := newTestMaw(t, rec.spawn)

	m.Queue("a")
	m.Queue("b")
	m.Queue("c")

	status := m.Status()
	assert.Equal(t, 3, status.Active)
	require.Eventually(t, func() bool {
		return rec.count("a") == 1 && rec.count("b") == 1 && rec.count("c") == 1
	}, time.Second, 5*time.Millisecond)
}

func TestOutcomeCounters(t *testing.T) {
	m := newTestMaw(t, func(id string) {})

	m.Queue("ok")
	m.finish("ok")
	m.Queue("bad")
	m.abandon("bad")
	m.Queue("dup")
	m.cancel("dup")

	status := m.Status()
	assert.Equal(t, 0, status.Active)
	assert.Equal(t, 1, status.Successes)
	assert.Equal(t, 1, status.Failures, "abandon counts as a failure")
}

func TestRestartRespawnsAndCountsFailure(t *testing.T) {
	rec := newSpawnRecorder()
	m := newTestMaw(t, rec.spawn)

	m.Queue("a")
	m.restart("a")
	m.restart("a")

	status := m.Status()
	assert.Equal(t, 1, status.Active, "restart keeps the id active and counted once")
	assert.Equal(t, 2, status.Failures, "failures count attempts, not distinct messages")
	require.Eventually(t, func() bool { return rec.count("a") == 3 }, time.Second, 5*time.Millisecond)
}

func TestCircuitBreakerBlocksNewAdmissions(t *testing.T) {
	rec := newSpawnRecorder()
	m := newTestMaw(t, rec.spawn)

	// Seven retry failures, zero successes: score 1.0 > 0.6.
	m.Queue("sick")
	for i := 0; i < 7; i++ {
		m.restart("sick")
	}

	m.Queue("fresh")
	status := m.Status()
	assert.Equal(t, 7, status.Failures)
	assert.Equal(t, 1, status.Active, "only the pre-existing id stays active")
	// All eight spawns for the sick id land before fresh could have.
	require.Eventually(t, func() bool { return rec.count("sick") == 8 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, rec.count("fresh"), "breaker must not spawn new work")
}

func TestCircuitBreakerSparesInFlightRestarts(t *testing.T) {
	rec := newSpawnRecorder()
	m := newTestMaw(t, rec.spawn)

	m.Queue("sick")
	for i := 0; i < 7; i++ {
		m.restart("sick")
	}
	m.restart("sick")

	// Restarts keep flowing even with the breaker open; it only gates
	// Queue.
	require.Eventually(t, func() bool { return rec.count("sick") == 9 }, time.Second, 5*time.Millisecond)
}

func TestWorkerPanicBecomesRestart(t *testing.T) {
	var calls atomic.Int32
	m := newTestMaw(t, func(id string) {
		if calls.Add(1) == 1 {
			panic("worker exploded")
		}
	})

	m.Queue("a")

	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	status := m.Status()
	assert.Equal(t, 1, status.Failures, "crash recovery goes through the restart path")
	assert.Equal(t, 1, status.Active)
}

func TestDieStopsAdmission(t *testing.T) {
	rec := newSpawnRecorder()
	m := newTestMaw(t, rec.spawn)

	m.Die()
	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("coordinator did not terminate")
	}

	m.Queue("late")
	assert.Equal(t, 0, rec.count("late"))
	assert.Equal(t, types.Status{}, m.Status(), "a dead coordinator reports the zero status")
}

func TestWorkerReportsAfterDieAreDropped(t *testing.T) {
	m := newTestMaw(t, func(id string) {})
	m.Queue("a")
	m.Die()
	<-m.Done()

	done := make(chan struct{})
	go func() {
		m.finish("a") // must not block forever
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("outcome report blocked on a dead coordinator")
	}
}
