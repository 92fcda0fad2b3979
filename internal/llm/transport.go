package llm

import "context"

// rawKind tags one decoded unit of provider output, before the Client turns
// it into the public StreamEvent sequence (accumulating content, attaching
// usage, and applying retry policy around it).
type rawKind int

const (
	rawContent rawKind = iota
	rawTruncated
	rawUsage
	rawError
	rawDone
)

type rawChunk struct {
	kind rawKind

	content string

	usage Usage

	errCode    int
	errMessage string
	retryable  bool
}

// Transport issues one streaming call to a single provider and decodes its
// wire format into rawChunks. Each vendor prefix in a ModelID is routed to
// exactly one Transport by Dispatch; the retry loop, circuit breaker, and
// usage/timing bookkeeping all live one layer up in Client, so a Transport
// only has to know how to talk to its one upstream API.
type Transport interface {
	Stream(ctx context.Context, model ModelID, msgs []Message, params Params) (<-chan rawChunk, error)
}
