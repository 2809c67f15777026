package pagination

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/Sternrassler/vk-client/pkg/params"
	"github.com/Sternrassler/vk-client/pkg/results"
	"github.com/rs/zerolog/log"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel requests
	MaxConcurrency int
	// Timeout per page fetch
	Timeout time.Duration
	// Buffer size for channels (default: estimated total pages)
	BufferSize int
}

// DefaultConfig returns safe default configuration for VK
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 3,
		Timeout:        15 * time.Second,
		BufferSize:     100,
	}
}

// pageJob is one page request: the positional offset and the requested size.
type pageJob struct {
	Offset int
	Count  int
}

// PageResult represents the result of fetching a single page
type PageResult struct {
	Offset int
	Page   results.Page
}

// BatchFetcher handles parallel fetching of multiple pages
type BatchFetcher struct {
	fetcher PageFetcher
	config  Config
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(fetcher PageFetcher, config Config) *BatchFetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 100
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchAll fetches all pages of method in parallel using a worker pool and merges them in offset order.
// On a worker error it returns the result merged up to the first missing page together with the error.
func (bf *BatchFetcher) FetchAll(ctx context.Context, method results.Method, args params.Args) (*results.Result, error) {
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

	// Fetch first page to learn the total count
	firstSize, _ := next()
	first, err := bf.fetcher.FetchPage(ctx, method, args, 0, firstSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}
	vkPagesFetchedTotal.WithLabelValues(string(method)).Inc()

	if !agg.IsNewItems(first) {
		return agg.Result(), nil
	}
	agg.Update(first)
	vkItemsMergedTotal.WithLabelValues(string(method)).Add(float64(len(first.Items)))

	var jobs []pageJob
	for offset := firstSize; offset < first.Count; {
		size, _ := next()
		jobs = append(jobs, pageJob{Offset: offset, Count: size})
		offset += size
	}

	log.Info().
		Str("method", string(method)).
		Int("count", first.Count).
		Int("total_pages", len(jobs)+1).
		Msg("Starting parallel page fetch")

	// Single page optimization
	if len(jobs) == 0 {
		log.Info().
			Str("method", string(method)).
			Int("pages", 1).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete (single page)")
		return agg.Result(), nil
	}

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Create channels
	pageQueue := make(chan pageJob, bf.config.BufferSize)
	pageResults := make(chan PageResult, bf.config.BufferSize)
	errCh := make(chan error, bf.config.MaxConcurrency)

	go func() {
		defer close(pageQueue)
		for _, job := range jobs {
			select {
			case pageQueue <- job:
			case <-workCtx.Done():
				return
			}
		}
	}()

	// Start worker pool
	var wg sync.WaitGroup
	for i := 0; i < bf.config.MaxConcurrency; i++ {
		wg.Add(1)
		go bf.worker(workCtx, cancel, method, args, pageQueue, pageResults, errCh, &wg, i)
	}

	// Close results channel when all workers done
	go func() {
		wg.Wait()
		close(pageResults)
		close(errCh)
	}()

	// Collect results
	pages := make(map[int]results.Page, len(jobs))
	fetchedPages := 1 // First page already fetched
	totalPages := len(jobs) + 1
	for result := range pageResults {
		pages[result.Offset] = result.Page
		fetchedPages++
		vkPagesFetchedTotal.WithLabelValues(string(method)).Inc()

		// Progress logging every 50 pages
		if fetchedPages%50 == 0 {
			log.Info().
				Int("fetched", fetchedPages).
				Int("total", totalPages).
				Float64("progress_pct", float64(fetchedPages)/float64(totalPages)*100).
				Msg("Fetch progress")
		}
	}

	// Merge serially in offset order; the first gap or empty page ends the listing
	merged := 1
	complete := true
	for _, job := range jobs {
		page, ok := pages[job.Offset]
		if !ok {
			complete = false
			break
		}
		if !agg.IsNewItems(page) {
			break
		}
		agg.Update(page)
		vkItemsMergedTotal.WithLabelValues(string(method)).Add(float64(len(page.Items)))
		merged++
	}

	// Check for errors
	if err := <-errCh; err != nil {
		log.Warn().
			Err(err).
			Int("fetched_pages", fetchedPages).
			Int("merged_pages", merged).
			Int("total_pages", totalPages).
			Msg("Worker error - returning partial results")
		return agg.Result(), fmt.Errorf("worker error (partial data: %d/%d pages): %w", merged, totalPages, err)
	}

	// Workers and the producer stop silently on cancellation
	if !complete {
		err := ctx.Err()
		if err == nil {
			err = fmt.Errorf("page at offset %d was never fetched", jobs[merged-1].Offset)
		}
		log.Warn().
			Err(err).
			Int("merged_pages", merged).
			Int("total_pages", totalPages).
			Msg("Fetch interrupted - returning partial results")
		return agg.Result(), fmt.Errorf("fetch interrupted (partial data: %d/%d pages): %w", merged, totalPages, err)
	}

	log.Info().
		Str("method", string(method)).
		Int("pages", fetchedPages).
		Int("items", len(agg.Result().Items)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return agg.Result(), nil
}

// worker processes pages from the queue
// abort stops the other workers once this one fails.
func (bf *BatchFetcher) worker(ctx context.Context, abort context.CancelFunc, method results.Method, args params.Args, pageQueue <-chan pageJob, out chan<- PageResult, errCh chan<- error, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	pagesProcessed := 0

	for job := range pageQueue {
		// Check context cancellation
		select {
		case <-ctx.Done():
			log.Debug().
				Int("worker_id", workerID).
				Int("pages_processed", pagesProcessed).
				Msg("Worker stopping (context cancelled)")
			return
		default:
		}

		// Fetch page with timeout
		pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
		page, err := bf.fetcher.FetchPage(pageCtx, method, args, job.Offset, job.Count)
		cancel()

		if err != nil {
			log.Warn().
				Err(err).
				Int("worker_id", workerID).
				Int("offset", job.Offset).
				Msg("Page fetch failed")

			// Non-blocking error send
			select {
			case errCh <- fmt.Errorf("offset %d: %w", job.Offset, err):
			default:
			}
			abort()
			return
		}

		// Send result
		select {
		case out <- PageResult{Offset: job.Offset, Page: page}:
		case <-ctx.Done():
			log.Debug().
				Int("worker_id", workerID).
				Int("pages_processed", pagesProcessed).
				Msg("Worker stopping (context cancelled after fetch)")
			return
		}

		pagesProcessed++
	}

	if pagesProcessed > 0 {
		log.Debug().
			Int("worker_id", workerID).
			Int("pages_processed", pagesProcessed).
			Msg("Worker completed")
	}
}
