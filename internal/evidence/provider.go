package evidence

import "context"

// Source fetches one upstream feed for a resolved identity. Implementations
// enforce their own timeout and retry budget and report failure as a
// *SourceUnavailableError.
type Source interface {
	Name() SourceName
	Fetch(ctx context.Context, id Identity, window Window) (SourcePayload, error)
}

// FetchFunc performs one upstream fetch on behalf of the cache.
type FetchFunc func(ctx context.Context) (SourcePayload, error)

// PayloadCache serves source payloads within their freshness window and
// collapses concurrent misses for the same key into one fetch.
type PayloadCache interface {
	GetOrFetch(ctx context.Context, source SourceName, id Identity, fetch FetchFunc) (SourcePayload, FetchOutcome, error)
}

// Resolver maps a region and crop to the identifiers every source needs.
type Resolver interface {
	Resolve(region, crop string) (Identity, error)
}
