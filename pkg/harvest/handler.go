package harvest

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/tagpages/pkg/client"
	"github.com/Sternrassler/tagpages/pkg/store"
)

// pageHandler processes the pages of one worker.
type pageHandler struct {
	worker  int
	fetcher client.PageFetcher
	retry   *client.RetryPolicy
	store   *store.Store
	logger  zerolog.Logger
}

// HandlePage fetches a page and persists it. Errors are terminal for the page.
func (h *pageHandler) HandlePage(ctx context.Context, page int) error {
	// Another process may have written the page since the scan.
	if h.store.Exists(page) {
		err := fmt.Errorf("page %d: %w", page, store.ErrArtifactAlreadyExists)
		h.logFailure(page, 0, err)
		return err
	}

	attempt, err := h.retry.Fetch(ctx, page)
	if err != nil {
		h.logFailure(page, attempt.Calls, err)
		return err
	}

	if err := h.store.Write(page, attempt.Body); err != nil {
		h.logFailure(page, attempt.Calls, err)
		return err
	}

	h.logger.Debug().
		Int("page", page).
		Int("attempt", attempt.Calls).
		Int("tags", len(attempt.Result.Tags)).
		Msg("Page written")

	return nil
}

func (h *pageHandler) logFailure(page, calls int, err error) {
	kind := client.Classify(err)
	if kind == client.KindCancelled {
		h.logger.Debug().Int("page", page).Msg("Page abandoned (cancelled)")
		return
	}
	event := h.logger.Warn().
		Err(err).
		Int("page", page).
		Int("attempt", calls).
		Str("kind", string(kind))

	var decodeErr *client.DeserializationError
	if errors.As(err, &decodeErr) {
		event = event.Str("body", decodeErr.Snippet())
	}
	event.Msg("Page failed")
}
