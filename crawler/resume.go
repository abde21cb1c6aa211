package crawler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aluiziolira/go-books-catalog/parser"
	"github.com/aluiziolira/go-books-catalog/scraper"
)

// NextPage picks the general catalog page an automatic crawl should visit.
// It tries the page after the last logged one and, if that page has no
// books, scans from page 1 for the first page missing from the log.
func (e *Engine) NextPage(ctx context.Context) (int, error) {
	page, _, err := e.plan(ctx)
	return page, err
}

// plan returns the chosen page along with its document when the candidate
// was already fetched and verified, so the caller need not fetch it again.
func (e *Engine) plan(ctx context.Context) (int, *scraper.Page, error) {
	last, ok, err := e.stores.Logs.LastPage(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("read crawl log: %w", err)
	}
	if !ok {
		return 1, nil, nil
	}

	candidate := last + 1
	doc, err := e.verifyPage(ctx, candidate)
	if err == nil && doc != nil {
		return candidate, doc, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, nil, ctxErr
	}
	e.logger.Info("resume candidate has no books, scanning the log",
		slog.Int("candidate", candidate),
		slog.Any("error", err),
	)

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}

		logged, err := e.stores.Logs.PageLogged(ctx, page)
		if err != nil {
			return 0, nil, fmt.Errorf("check crawl log for page %d: %w", page, err)
		}
		if logged {
			continue
		}

		// The candidate was just fetched, so do not fetch it twice.
		if page == candidate {
			return page, nil, nil
		}

		doc, err := e.verifyPage(ctx, page)
		if doc != nil {
			return page, doc, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, nil, ctxErr
		}
		e.logger.Info("first unlogged page has no books, treating it as the end of the catalog",
			slog.Int("page", page),
			slog.Any("error", err),
		)
		return page, nil, nil
	}
}

// verifyPage fetches a general catalog page and returns it only when it has
// at least one item card.
func (e *Engine) verifyPage(ctx context.Context, page int) (*scraper.Page, error) {
	doc, err := e.fetcher.Fetch(ctx, e.pageURL(page))
	if err != nil {
		return nil, err
	}
	if len(parser.ListItemCards(doc.Doc)) == 0 {
		return nil, nil
	}
	return doc, nil
}
