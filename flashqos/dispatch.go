package flashqos

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// BufferPool releases a dispatched request's payload buffer once its
// completion has been delivered. Out of scope to implement (spec's
// collaborator boundary); a no-op implementation is a valid BufferPool.
type BufferPool interface {
	Release(h PayloadHandle)
}

// DispatchShim bridges the scheduler's dequeue decisions to FlashIO, and
// FlashIO's completions back out to NetIO. Grounded on the completion
// dispatch loop of the teacher's simulation event handling, reshaped
// around a pull-style Poll instead of a callback fan-out (SPEC_FULL.md §9).
type DispatchShim struct {
	flash FlashIO
	netio NetIO
	pool  BufferPool
}

// NewDispatchShim constructs a shim wiring flash and netio together. pool
// may be nil, in which case payload release is skipped.
func NewDispatchShim(flash FlashIO, netio NetIO, pool BufferPool) *DispatchShim {
	return &DispatchShim{flash: flash, netio: netio, pool: pool}
}

// Dispatch hands req to FlashIO for worker. The scheduler only calls this
// after confirming via FlashIO.Capacity that the device has room; a Submit
// failure at that point means the capacity check and the device's actual
// state have diverged, which is a fatal invariant violation rather than a
// condition callers can recover from.
func (d *DispatchShim) Dispatch(worker WorkerID, req *Request) {
	if _, err := d.flash.Submit(worker, req); err != nil {
		panic(fmt.Sprintf("flashqos: FlashIO.Submit failed for worker %d after its capacity gate passed: %v", worker, err))
	}
}

// PollCompletions drains worker's finished device operations, forwards each
// to NetIO, releases its payload buffer, and — via lookup — increments the
// owning tenant's completion counter. Completions for a tenant lookup finds
// gone are still forwarded to NetIO, which is responsible for dropping them
// if the originating connection has already torn down.
func (d *DispatchShim) PollCompletions(worker WorkerID, lookup func(TenantID) (*Tenant, bool)) {
	for _, c := range d.flash.Poll(worker) {
		if c.Status == StatusDeviceError {
			logrus.WithFields(logrus.Fields{
				"worker":    worker,
				"tenant_id": c.TenantID,
				"handle":    c.Handle,
			}).Warn("flashqos: device completion error")
		}

		if tenant, ok := lookup(c.TenantID); ok {
			tenant.Completions++
		}

		d.netio.Complete(Completion{
			TenantID:      c.TenantID,
			ClientCookie:  c.ClientCookie,
			PayloadHandle: c.PayloadHandle,
			Status:        c.Status,
			ServiceTimeUs: c.ServiceTimeUs,
		})

		if d.pool != nil {
			d.pool.Release(c.PayloadHandle)
		}
	}
}
