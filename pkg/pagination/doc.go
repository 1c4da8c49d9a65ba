// Package pagination fetches every page of a paginated case list.
//
// The backend reports the total record count with each page. The fetcher
// requests page 1, computes ceil(total/pageSize) pages and requests the rest
// in chunks of a fixed number of concurrent requests. A chunk starts only
// after the previous one has completed.
//
// Example usage:
//
//	fetcher := pagination.NewBatchFetcher(apiClient, pagination.DefaultConfig())
//	records, err := fetcher.FetchAll(ctx, client.EndpointPersonal, payload, 50, 5)
//	if client.IsAborted(err) {
//	    return nil // user stopped the fetch
//	}
//
// The batch fetcher:
//   - Keeps page order in the result, independent of request completion order
//   - Fails as a whole when any page fails; partial data is discarded
//   - Reports cancellation as client.ErrAborted, not as a failure
package pagination
