package maw

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"google.golang.org/api/googleapi"

	"github.com/arconyx/fuc/internal/gmail"
	"github.com/arconyx/fuc/internal/parser"
)

// Backoff windows. The rate-limit window is deliberately wide and
// randomized so concurrent retries desynchronize instead of hammering
// the upstream in lockstep.
const (
	rateLimitBackoffMin = 15 * time.Second
	rateLimitBackoffMax = 75 * time.Second
	serverBackoffMin    = 1 * time.Second
	serverBackoffMax    = 6 * time.Second
	transportBackoff    = 10 * time.Second
)

// reporter is the worker's view of the coordinator: every terminal
// condition becomes exactly one of these calls, never a propagated error.
type reporter interface {
	finish(id string)
	restart(id string)
	abandon(id string)
	cancel(id string)
	die()
}

// worker handles exactly one message id end to end, then terminates.
type worker struct {
	rep   reporter
	api   *APIContext
	id    string
	log   *slog.Logger
	sleep func(time.Duration)
}

func newWorker(rep reporter, api *APIContext, id string, log *slog.Logger) *worker {
	return &worker{
		rep:   rep,
		api:   api,
		id:    id,
		log:   log.With("message", id),
		sleep: time.Sleep,
	}
}

func (w *worker) run(ctx context.Context) {
	// Two spawns can race onto the same id; whoever sees an existing
	// terminal record stands down without touching the counters.
	rec, err := w.api.Store.IsProcessed(w.id)
	if err != nil {
		w.log.Error("check processed", "error", err)
		w.rep.restart(w.id)
		return
	}
	if rec != nil {
		w.rep.cancel(w.id)
		return
	}

	if err := w.api.Limiter.Wait(ctx, gmail.CostMessageGet); err != nil {
		w.log.Error("rate limiter wait", "error", err)
		w.rep.restart(w.id)
		return
	}

	msg, err := w.api.Mail.FetchMessage(ctx, w.id)
	if err != nil {
		w.classify(err)
		return
	}

	body, err := gmail.PlainTextBody(msg)
	if err != nil {
		// Undecodable bodies are as permanent as unparsable ones.
		w.abandonUnparsable(err)
		return
	}

	updates, err := parser.Parse(body)
	if err != nil {
		w.abandonUnparsable(err)
		return
	}

	// Race guard: another worker may have finished this id while we were
	// fetching. Cancel, never a duplicate Finish.
	rec, err = w.api.Store.IsProcessed(w.id)
	if err != nil {
		w.log.Error("re-check processed", "error", err)
		w.rep.restart(w.id)
		return
	}
	if rec != nil {
		w.rep.cancel(w.id)
		return
	}

	if err := w.api.Store.SaveResults(updates, msg.InternalDate); err != nil {
		// Work upserts are idempotent and the processed marker is not yet
		// set, so redoing the whole message is safe.
		w.log.Error("persist results", "error", err)
		w.rep.restart(w.id)
		return
	}

	if err := w.api.Store.MarkProcessed(w.id, true); err != nil {
		// Downgraded on purpose: a rare duplicate re-processing beats a
		// message stuck in the active set forever.
		w.log.Warn("mark processed failed, accepting duplicate risk", "error", err)
	}
	w.log.Info("message ingested", "updates", len(updates))
	w.rep.finish(w.id)
}

// abandonUnparsable records a permanently unparsable message and reports
// Abandon. These are never retried.
func (w *worker) abandonUnparsable(cause error) {
	w.log.Error("unparsable message", "error", cause)
	if err := w.api.Store.MarkProcessed(w.id, false); err != nil {
		w.log.Warn("mark abandoned failed", "error", err)
	}
	w.rep.abandon(w.id)
}

// classify maps a fetch failure onto the coordinator protocol.
func (w *worker) classify(err error) {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		// Transport-level failure, nothing definitive from upstream.
		w.log.Warn("fetch transport error", "error", err)
		w.sleep(transportBackoff)
		w.rep.restart(w.id)
		return
	}

	switch gerr.Code {
	case 400:
		w.log.Error("malformed request", "error", err)
		w.rep.abandon(w.id)
	case 401:
		// Credentials are dead for every request, not just this one.
		w.log.Error("credentials rejected, stopping ingestion", "error", err)
		w.rep.die()
	case 403, 429:
		backoff := randomBetween(rateLimitBackoffMin, rateLimitBackoffMax)
		w.log.Warn("rate limited by upstream", "status", gerr.Code, "backoff", backoff)
		w.sleep(backoff)
		w.rep.restart(w.id)
	case 500:
		backoff := randomBetween(serverBackoffMin, serverBackoffMax)
		w.log.Warn("upstream server error", "backoff", backoff)
		w.sleep(backoff)
		w.rep.restart(w.id)
	default:
		// Known gap: the message stays in the active set with no outcome
		// report. Kept as-is so the behaviour is observable.
		w.log.Error("unhandled status from upstream", "status", gerr.Code, "error", err)
	}
}

func randomBetween(min, max time.Duration) time.Duration {
	return min + rand.N(max-min)
}
