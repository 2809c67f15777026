package pagination

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/Sternrassler/vk-client/pkg/params"
	"github.com/Sternrassler/vk-client/pkg/results"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for pagination.
var (
	vkPagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vk_pagination_pages_total",
		Help: "Total pages fetched for paginated calls by method",
	}, []string{"method"})

	vkItemsMergedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vk_pagination_items_total",
		Help: "Total items merged into paginated results by method",
	}, []string{"method"})

	vkPaginationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vk_pagination_duration_seconds",
		Help:    "Duration of complete paginated calls by method",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"method"})
)

// PageFetcher is the interface the VK client implements for single-page fetching.
type PageFetcher interface {
	// FetchPage fetches count items of method starting at offset.
	FetchPage(ctx context.Context, method results.Method, args params.Args, offset, count int) (results.Page, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, method results.Method, args params.Args, offset, count int) (results.Page, error)

// FetchPage implements PageFetcher.
func (f PageFetcherFunc) FetchPage(ctx context.Context, method results.Method, args params.Args, offset, count int) (results.Page, error) {
	return f(ctx, method, args, offset, count)
}

// Collect fetches every page of method one request at a time and returns the merged result.
// Paging stops when a page has no items or the offset reaches the reported total.
func Collect(ctx context.Context, fetcher PageFetcher, method results.Method, args params.Args) (*results.Result, error) {
	agg, err := results.New(method, args)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		vkPaginationDuration.WithLabelValues(string(method)).Observe(time.Since(start).Seconds())
	}()

	next, stop := iter.Pull(agg.BatchSizes())
	defer stop()

	offset := 0
	pages := 0
	for {
		if err := ctx.Err(); err != nil {
			return agg.Result(), err
		}

		size, _ := next()

		page, err := fetcher.FetchPage(ctx, method, args, offset, size)
		if err != nil {
			return agg.Result(), fmt.Errorf("fetch %s at offset %d: %w", method, offset, err)
		}
		vkPagesFetchedTotal.WithLabelValues(string(method)).Inc()
		pages++

		if !agg.IsNewItems(page) {
			break
		}

		agg.Update(page)
		vkItemsMergedTotal.WithLabelValues(string(method)).Add(float64(len(page.Items)))

		// offsets are positional: servers may return short pages when items were removed
		offset += size
		if offset >= page.Count {
			break
		}
	}

	res := agg.Result()
	log.Debug().
		Str("method", string(method)).
		Int("pages", pages).
		Int("items", len(res.Items)).
		Int("count", res.Count).
		Dur("duration", time.Since(start)).
		Msg("Pagination complete")

	return res, nil
}
