// Implements TickDriver, the cooperative per-worker loop: poll device
// completions, drain inbound requests, run one scheduling round, flush
// outbound responses, repeat. Grounded on the teacher's per-instance
// simulation loop (cluster.InstanceSimulator.Run), generalized from a
// fixed-step discrete-event loop to a free-running cooperative one with an
// idle backoff, since this domain has no simulated clock to advance.
package flashqos

import (
	"context"
	"time"
)

// defaultIdleBackoff is how long TickDriver sleeps after a tick that found
// nothing to do — no active tenants and nothing newly enqueued. Keeps an
// idle worker from spinning its pinned core at 100%.
const defaultIdleBackoff = 200 * time.Microsecond

// TickDriver owns one worker's entire hot-path loop. Every field is
// worker-local except Registry and the pool inside Scheduler, which are
// shared and internally synchronized.
type TickDriver struct {
	Worker    WorkerID
	NetIO     NetIO
	Dispatch  *DispatchShim
	Scheduler *Scheduler
	Queues    *QueueTable
	Manager   *TenantManager
	Registry  *TenantRegistry

	// Clock returns the current time in microseconds; defaults to the real
	// wall clock if left nil.
	Clock func() int64

	// IdleBackoff overrides defaultIdleBackoff when positive. A negative
	// value disables backoff entirely (every tick runs immediately, for
	// tests that want tight control over tick count); zero means "use
	// defaultIdleBackoff".
	IdleBackoff time.Duration
}

// Run drives ticks until ctx is cancelled. Intended to run on its own
// goroutine, pinned to an OS thread by the caller (cluster.Worker) via
// runtime.LockOSThread, matching the teacher's one-goroutine-per-instance
// placement.
func (d *TickDriver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !d.tick() {
			backoff := d.IdleBackoff
			if backoff == 0 {
				backoff = defaultIdleBackoff
			}
			if backoff > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(backoff):
				}
			}
		}
	}
}

// tick runs one full cycle and reports whether it did any real work, for
// Run's idle-backoff decision.
func (d *TickDriver) tick() bool {
	did := false

	before := d.Manager.LC.Len() + d.Manager.BE.Len()

	d.Dispatch.PollCompletions(d.Worker, d.Registry.Lookup)

	d.NetIO.DrainInto(d.Worker, func(r *Request) error {
		if err := d.enqueue(r); err != nil {
			return err
		}
		did = true
		return nil
	})

	now := d.now()
	d.Scheduler.Schedule(now)
	d.NetIO.FlushResponses(d.Worker)

	if before > 0 || d.Manager.LC.Len()+d.Manager.BE.Len() > 0 {
		did = true
	}
	return did
}

func (d *TickDriver) now() int64 {
	if d.Clock != nil {
		return d.Clock()
	}
	return time.Now().UnixMicro()
}

// enqueue appends r onto its tenant's queue and activates the tenant in
// its worker's LC or BE ring. The scheduler drops a tenant from its ring
// again once its queue is empty.
func (d *TickDriver) enqueue(r *Request) error {
	q := d.Queues.Get(r.TenantID)
	if q == nil {
		return ErrInvalidRequest
	}
	if err := q.Enqueue(r); err != nil {
		return err
	}
	tenant, ok := d.Registry.Lookup(r.TenantID)
	if !ok {
		return ErrInvalidRequest
	}
	if tenant.LatencyCritical {
		d.Manager.LC.Activate(r.TenantID)
		tenant.State = TenantActiveLC
	} else {
		d.Manager.BE.Activate(r.TenantID)
		tenant.State = TenantActiveBE
	}
	return nil
}
