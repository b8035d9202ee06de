package model

import "github.com/m-mizutani/goerr/v2"

// Error tags classify failures for callers. A tag survives wrapping, so the
// original engine error stays in the chain while the kind remains checkable
// via goerr.HasTag.
var (
	// TagEmbeddingUnavailable marks failures of the embedding provider
	// (unreachable or timed out). Never retried inside the core.
	TagEmbeddingUnavailable = goerr.NewTag("embedding_unavailable")

	// TagStorageWriteFailed marks engine-level write failures.
	TagStorageWriteFailed = goerr.NewTag("storage_write_failed")

	// TagStorageReadFailed marks engine-level read failures.
	TagStorageReadFailed = goerr.NewTag("storage_read_failed")

	// TagDimensionMismatch marks an embedding dimensionality conflict between
	// query and stored vectors. Fatal to the call, not to the process.
	TagDimensionMismatch = goerr.NewTag("dimension_mismatch")

	// TagInvalidArgument marks caller-supplied invalid input such as
	// limit <= 0 or empty content.
	TagInvalidArgument = goerr.NewTag("invalid_argument")
)
