package flashqos

// NetIO is the out-of-scope line-rate network front end. It delivers
// decoded requests into a worker's software queues and accepts completions
// to forward back to clients. Implementations guarantee at-most-once
// delivery per request.
type NetIO interface {
	// DrainInto pulls any requests that have arrived for worker id and
	// enqueues them via enqueue (typically QueueTable.Enqueue). Called once
	// per tick by TickDriver, before the scheduler round.
	DrainInto(worker WorkerID, enqueue func(*Request) error)

	// Complete delivers a finished request's outcome back to the
	// originating connection. If the connection is already gone (torn
	// down), implementations drop the completion silently (spec §5,
	// "Cancellation").
	Complete(c Completion)

	// FlushResponses flushes any buffered outbound responses for worker id.
	// Called once per tick by TickDriver, after the scheduler round.
	FlushResponses(worker WorkerID)
}

// CompletionStatus classifies how a dispatched Request concluded.
type CompletionStatus uint8

const (
	StatusOK CompletionStatus = iota
	StatusDeviceError
)

// Completion is the outbound record TickDriver/DispatchShim hand to NetIO
// once a dispatched request's device I/O finishes. Modeled as a typed
// variant record rather than a direct callback fan-out (SPEC_FULL.md §9).
type Completion struct {
	TenantID      TenantID
	ClientCookie  uint64
	PayloadHandle PayloadHandle
	Status        CompletionStatus
	ServiceTimeUs int64
}
