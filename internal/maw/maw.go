// Package maw implements the ingestion pipeline: a single sequential
// coordinator actor (the maw) that deduplicates in-flight messages,
// spawns one isolated worker per message, tracks outcome statistics, and
// trips a circuit breaker under sustained failure; the workers that fetch,
// parse, and persist each message; and the feed walker that pages the
// mailbox listing into the maw.
package maw

import (
	"context"
	"log/slog"

	gm "google.golang.org/api/gmail/v1"

	"github.com/arconyx/fuc/internal/ratelimit"
	"github.com/arconyx/fuc/internal/types"
)

// failureThreshold is the circuit-breaker cutoff on the failure score
// (failures - successes) / (successes + failures). Evaluated only at
// Queue time: it dampens new admissions against an impaired upstream but
// never cancels work already in flight.
const failureThreshold = 0.6

// MailService is the slice of the Gmail API the pipeline consumes.
type MailService interface {
	FetchMessage(ctx context.Context, id string) (*gm.Message, error)
	ListMessages(ctx context.Context, labelID, pageToken string) ([]string, string, error)
}

// Store is the persistence surface workers write through.
type Store interface {
	IsProcessed(id string) (*types.ProcessedEmail, error)
	MarkProcessed(id string, success bool) error
	SaveResults(updates []types.Update, receivedAt int64) error
}

// APIContext is the immutable bundle shared by reference into every
// worker: storage, the mail client (whose HTTP client carries the current
// access token), the label under ingestion, and the shared rate limiter.
// It is never mutated; a token refresh means building a new APIContext
// and starting a new maw generation.
type APIContext struct {
	Store   Store
	Mail    MailService
	Limiter *ratelimit.Limiter
	Label   string
}

type msgKind int

const (
	msgQueue msgKind = iota
	msgFinish
	msgRestart
	msgAbandon
	msgCancel
	msgDie
	msgStatus
)

type message struct {
	kind  msgKind
	id    string
	reply chan types.Status
}

// Maw is the ingestion coordinator. All queue state (the active set and
// the outcome counters) is owned exclusively by its actor goroutine and
// mutated one mailbox message at a time, in arrival order.
type Maw struct {
	api  *APIContext
	ctx  context.Context
	msgs chan message
	done chan struct{}
	log  *slog.Logger

	// runWorker is the worker entry point, replaceable in tests.
	runWorker func(id string)
}

// New starts a coordinator for the given context and returns it.
func New(ctx context.Context, api *APIContext, log *slog.Logger) *Maw {
	m := &Maw{
		api:  api,
		ctx:  ctx,
		msgs: make(chan message, 128),
		done: make(chan struct{}),
		log:  log.With("component", "maw"),
	}
	m.runWorker = func(id string) {
		newWorker(m, api, id, m.log).run(ctx)
	}
	go m.loop()
	return m
}

// Queue asks the coordinator to ingest a message id. Duplicate ids
// already in flight are ignored, as is everything while the breaker is
// open or after Die.
func (m *Maw) Queue(id string) {
	m.send(message{kind: msgQueue, id: id})
}

// Die stops the coordinator from admitting further work and terminates
// the actor. Already-running workers are left to finish; their reports
// are dropped.
func (m *Maw) Die() {
	m.send(message{kind: msgDie})
}

// Status returns a snapshot of the queue counters. After the coordinator
// has died it returns the zero Status.
func (m *Maw) Status() types.Status {
	reply := make(chan types.Status, 1)
	if !m.send(message{kind: msgStatus, reply: reply}) {
		return types.Status{}
	}
	select {
	case s := <-reply:
		return s
	case <-m.done:
		return types.Status{}
	}
}

// Done is closed once the actor has terminated.
func (m *Maw) Done() <-chan struct{} {
	return m.done
}

// Worker outcome reports. Sends after Die are dropped.

func (m *Maw) finish(id string)  { m.send(message{kind: msgFinish, id: id}) }
func (m *Maw) restart(id string) { m.send(message{kind: msgRestart, id: id}) }
func (m *Maw) abandon(id string) { m.send(message{kind: msgAbandon, id: id}) }
func (m *Maw) cancel(id string)  { m.send(message{kind: msgCancel, id: id}) }
func (m *Maw) die()              { m.send(message{kind: msgDie}) }

func (m *Maw) send(msg message) bool {
	select {
	case m.msgs <- msg:
		return true
	case <-m.done:
		return false
	}
}

// loop is the actor body. It owns the active set and counters; nothing
// else may touch them.
func (m *Maw) loop() {
	active := make(map[string]struct{})
	var processing, successes, failures int

	for msg := range m.msgs {
		switch msg.kind {
		case msgQueue:
			if _, inFlight := active[msg.id]; inFlight {
				m.log.Debug("already in flight", "id", msg.id)
				continue
			}
			status := types.Status{Successes: successes, Failures: failures}
			if score := status.FailureScore(); score > failureThreshold {
				m.log.Warn("circuit open, skipping message",
					"id", msg.id, "score", score,
					"successes", successes, "failures", failures)
				continue
			}
			active[msg.id] = struct{}{}
			processing++
			m.spawn(msg.id)

		case msgFinish:
			delete(active, msg.id)
			processing--
			successes++

		case msgRestart:
			// The id stays active and processing stays counted; only
			// the failure tally moves.
			failures++
			m.spawn(msg.id)

		case msgAbandon:
			delete(active, msg.id)
			processing--
			failures++

		case msgCancel:
			delete(active, msg.id)
			processing--

		case msgStatus:
			msg.reply <- types.Status{
				Active:    processing,
				Successes: successes,
				Failures:  failures,
			}

		case msgDie:
			m.log.Info("coordinator dying",
				"active", processing, "successes", successes, "failures", failures)
			close(m.done)
			return
		}
	}
}

// spawn runs one worker in its own goroutine. The worker reports its own
// outcome on every detected path; a panic that escapes it is trapped here
// and converted into the same Restart used for detected failures, so
// crash recovery and failure recovery are one mechanism.
func (m *Maw) spawn(id string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				m.log.Error("worker crashed", "id", id, "panic", r)
				m.restart(id)
			}
		}()
		m.runWorker(id)
	}()
}
