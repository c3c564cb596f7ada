package flashqos

import "fmt"

// WorkerMetrics aggregates per-worker scheduling stats for diagnostics.
// Populated by reading TenantManager/TenantRegistry state; nothing here
// participates in the hot-path dispatch decision.
type WorkerMetrics struct {
	Worker       WorkerID
	NumLCTenants int
	NumBETenants int

	// CompletedRequests sums Tenant.Completions across every tenant this
	// worker owns.
	CompletedRequests uint64

	// QueueDepthLC/QueueDepthBE sum SoftwareQueue.Len() across the LC and BE
	// rings respectively, a cheap proxy for backlog.
	QueueDepthLC int
	QueueDepthBE int
}

// Snapshot walks manager's active rings (queue depths) and every queue in
// queues (completion counts) to build a WorkerMetrics for one worker. lookup resolves a tenant id to its *Tenant (typically
// TenantRegistry.Lookup).
func Snapshot(worker WorkerID, manager *TenantManager, queues *QueueTable, lookup func(TenantID) (*Tenant, bool)) WorkerMetrics {
	m := WorkerMetrics{
		Worker:       worker,
		NumLCTenants: manager.NumLCTenants(),
		NumBETenants: manager.NumBETenants(),
	}

	manager.LC.Each(func(id TenantID) {
		if q := queues.Get(id); q != nil {
			m.QueueDepthLC += q.Len()
		}
	})
	manager.BE.Each(func(id TenantID) {
		if q := queues.Get(id); q != nil {
			m.QueueDepthBE += q.Len()
		}
	})
	for id := range queues.queues {
		if t, ok := lookup(id); ok {
			m.CompletedRequests += t.Completions
		}
	}

	return m
}

// Print writes a one-line human-readable summary, matching the teacher's
// end-of-run metrics dump style.
func (m WorkerMetrics) Print() {
	fmt.Printf("worker %d: lc_tenants=%d be_tenants=%d lc_queued=%d be_queued=%d completed=%d\n",
		m.Worker, m.NumLCTenants, m.NumBETenants, m.QueueDepthLC, m.QueueDepthBE, m.CompletedRequests)
}
