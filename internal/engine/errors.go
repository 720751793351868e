package engine

import "errors"

var (
	// ErrNoGenerator is returned by New without a language model
	ErrNoGenerator = errors.New("generator is required")

	// ErrNoChain is returned by New without an extraction chain
	ErrNoChain = errors.New("extraction chain is required")

	// ErrAllChunksFailed is reported when no chunk produced output
	ErrAllChunksFailed = errors.New("all chunks failed")
)
