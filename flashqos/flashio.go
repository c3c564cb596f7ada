package flashqos

// FlashIO is the out-of-scope flash device driver: asynchronous submission
// and completion plumbing, one independent queue pair per worker. Preserves
// no ordering across submissions.
type FlashIO interface {
	// Capacity reports the device queue's outstanding-command ceiling and
	// current outstanding count for worker id, used to gate dispatch
	// ("FlashIO has room").
	Capacity(worker WorkerID) (outstanding, max int)

	// Submit hands a dequeued request to the device for worker id,
	// returning a FlashHandle for later correlation, or an error if the
	// device queue is momentarily full despite the capacity check having
	// passed (that combination is a fatal invariant violation, not a
	// recoverable condition — see spec §4.5 "Failure semantics").
	Submit(worker WorkerID, req *Request) (FlashHandle, error)

	// Poll drains completed operations for worker id without blocking.
	Poll(worker WorkerID) []FlashCompletion
}

// FlashHandle correlates a Submit call with its eventual FlashCompletion.
type FlashHandle uint64

// FlashCompletion is one finished device operation.
type FlashCompletion struct {
	Handle        FlashHandle
	TenantID      TenantID
	ClientCookie  uint64
	PayloadHandle PayloadHandle
	Status        CompletionStatus
	ServiceTimeUs int64
}
