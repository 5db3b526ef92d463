package maw

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arconyx/fuc/internal/gmail"
)

// Walker pages the label's message listing and feeds every id into the
// coordinator. It runs as its own sequential task; queueing never blocks
// on the workers it fans out to.
type Walker struct {
	api *APIContext
	maw *Maw
	log *slog.Logger
}

// NewWalker returns a walker feeding the given coordinator.
func NewWalker(api *APIContext, m *Maw, log *slog.Logger) *Walker {
	return &Walker{api: api, maw: m, log: log.With("component", "walker")}
}

// Walk runs one full pass over the label's messages, page by page. It
// stops early when the coordinator dies (there is nobody left to queue
// into) or the context is cancelled.
func (w *Walker) Walk(ctx context.Context) error {
	pageToken := ""
	pages := 0
	queued := 0

	for {
		select {
		case <-w.maw.Done():
			w.log.Info("coordinator gone, stopping walk", "pages", pages, "queued", queued)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := w.api.Limiter.Wait(ctx, gmail.CostMessageList); err != nil {
			return fmt.Errorf("rate limiter wait: %w", err)
		}

		ids, next, err := w.api.Mail.ListMessages(ctx, w.api.Label, pageToken)
		if err != nil {
			return fmt.Errorf("list page %d: %w", pages, err)
		}
		pages++

		for _, id := range ids {
			w.maw.Queue(id)
			queued++
		}

		if next == "" {
			w.log.Info("walk complete", "pages", pages, "queued", queued)
			return nil
		}
		pageToken = next
	}
}
