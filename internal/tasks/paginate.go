package tasks

import (
	"context"
	"fmt"

	"github.com/spotik/spotik/internal/shared"
)

// maxPages is a defensive ceiling on cursor-following. The remote
// controls pagination length, so the limit only trips when the remote
// keeps handing out fresh cursors forever.
const maxPages = 10000

// PageFetcher fetches a single page and returns its items plus the next
// page URL, or "" when the listing is exhausted.
type PageFetcher[T any] func(ctx context.Context, pageURL string) ([]T, string, error)

// CollectAll materializes a full remote collection by following next
// cursors from startURL.
//
// Remote order is preserved and nothing is deduplicated. Any page
// failure aborts the whole walk with no partial result. A cursor seen
// twice, or more than maxPages pages, fails with
// [shared.ErrPaginationLoop].
func CollectAll[T any](ctx context.Context, startURL string, fetch PageFetcher[T]) ([]T, error) {
	var all []T
	seen := map[string]bool{}

	pageURL := startURL
	for pages := 0; pageURL != ""; pages++ {
		if pages >= maxPages {
			return nil, fmt.Errorf("%w: exceeded %d pages from %s", shared.ErrPaginationLoop, maxPages, startURL)
		}
		if seen[pageURL] {
			return nil, fmt.Errorf("%w: remote repeated cursor %s", shared.ErrPaginationLoop, pageURL)
		}
		seen[pageURL] = true

		items, next, err := fetch(ctx, pageURL)
		if err != nil {
			return nil, err
		}

		all = append(all, items...)
		pageURL = next
	}

	return all, nil
}
