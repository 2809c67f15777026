// Package pagination drives paginated VK list methods and merges the pages
// through a results.Aggregator.
//
// VK list methods take offset and count parameters and report the total
// number of items in every response. Two drivers are provided:
//
//	// Sequential: one request at a time, stops on the first empty page
//	res, err := pagination.Collect(ctx, vkClient, results.MethodWallGet, args)
//
//	// Parallel: first page learns the total, remaining offsets go to a worker pool
//	fetcher := pagination.NewBatchFetcher(vkClient, pagination.DefaultConfig())
//	res, err := fetcher.FetchAll(ctx, results.MethodWallGet, args)
//
// Both feed pages to the aggregator serially and in offset order, so the
// merged item list keeps server order no matter how pages were fetched.
package pagination
