package flashqos

import "errors"

// Error kinds surfaced to callers (NetIO / the control plane). Transient
// FlashIO BUSY is not an error kind here — the scheduler just defers the
// tenant and resumes next tick.
var (
	// ErrCannotMeetSLO is returned by TenantRegistry.RegisterFlow when
	// admitting the tenant would push the LC reservation sum above the
	// device's committed token rate. The tenant is left unregistered.
	ErrCannotMeetSLO = errors.New("flashqos: cannot meet requested SLO")

	// ErrNoSpace is returned by SoftwareQueue.Enqueue when the tenant's
	// bounded FIFO is full. The caller (NetIO) must apply backpressure.
	ErrNoSpace = errors.New("flashqos: software queue full")

	// ErrNoMemory indicates allocation of tenant or request state failed.
	// The caller should close the offending connection.
	ErrNoMemory = errors.New("flashqos: allocation failed")

	// ErrDeviceError wraps a non-OK completion status from FlashIO. It
	// does not disturb scheduler accounting: the request's tokens were
	// already debited at dispatch time.
	ErrDeviceError = errors.New("flashqos: device completion error")

	// ErrInvalidRequest indicates a malformed header or out-of-range LBA.
	// The caller should close the connection.
	ErrInvalidRequest = errors.New("flashqos: invalid request")

	// ErrSchedulerNotImplemented is returned by NewLCOrder for scheduler
	// modes that are declared but intentionally unimplemented (wfq, wdrr,
	// less_v1, less_v2) — see SPEC_FULL.md Open Questions.
	ErrSchedulerNotImplemented = errors.New("flashqos: scheduler mode not implemented")
)
