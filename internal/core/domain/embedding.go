package domain

// EmbedRequest is one text submitted for embedding.
type EmbedRequest struct {
	// ID optionally identifies the item for the caller (e.g. a fragment index).
	ID string

	// Text is the content to embed. It is normalised before submission.
	Text string
}

// EmbedOutcome is the tagged result for a single EmbedRequest.
// Exactly one of Vector or Err is set.
type EmbedOutcome struct {
	// Vector is the embedding on success.
	Vector []float32

	// Err describes why the item has no vector.
	Err error

	// Batch is the 0-based index of the batch the item was submitted in.
	// It is -1 for items rejected before submission.
	Batch int
}

// OK reports whether the item was embedded.
func (o EmbedOutcome) OK() bool {
	return o.Err == nil && len(o.Vector) > 0
}

// BatchResult aggregates the outcome of embedding a list of requests.
type BatchResult struct {
	// Outcomes has one entry per request, in request order.
	Outcomes []EmbedOutcome

	// Usage is the total provider-reported token usage.
	Usage int

	// Succeeded is the number of items that received a vector.
	Succeeded int

	// Errors holds one human-readable entry per failed batch or rejected item.
	Errors []string
}

// Failed returns the number of items without a vector.
func (r *BatchResult) Failed() int {
	return len(r.Outcomes) - r.Succeeded
}

// BatchProgress is reported after each batch completes, whether it succeeded or not.
type BatchProgress struct {
	// Processed is the number of items handled so far.
	Processed int

	// Total is the number of items in the call.
	Total int

	// Batch is the 0-based index of the batch just completed.
	Batch int

	// Batches is the total number of batches.
	Batches int
}
