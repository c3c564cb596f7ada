package flashqos

// WorkerID identifies a single pinned worker (one per CPU core).
type WorkerID int

// TenantState is the per-tenant-in-scheduler state machine:
//
//	INACTIVE -> (enqueue) -> ActiveLC|ActiveBE -> (queue drains) -> INACTIVE
//	INACTIVE -> (conn_ref_count hits zero) -> Removed
//
// Transitions are performed only by the tenant's owning worker.
type TenantState uint8

const (
	TenantInactive TenantState = iota
	TenantActiveLC
	TenantActiveBE
	TenantRemoved
)

// Tenant holds the identity and SLO of one registered flow group. Fields are
// immutable after registration except ConnRefCount (monotone up then down)
// and the derived rate fields touched only while the registry mutex is held
// (RegisterFlow/UnregisterFlow, and the rare lc_boost_no_BE recompute).
type Tenant struct {
	ID             TenantID
	LatencyCritical bool // true iff LatencyUsSLO > 0
	LatencyUsSLO   uint32
	IOPSSLO        uint64
	RWRatioPct     uint8 // 0-100
	OwnerWorker    WorkerID

	// ScaledIOPSLimit is the tenant's reserved token rate (tokens/second),
	// computed once at registration from CostModel.ScaledIOPS.
	ScaledIOPSLimit int64

	// ScaledIOPuSLimit is ScaledIOPSLimit (plus any lc_boost_no_BE share)
	// expressed per microsecond; this is what sub-round 1 multiplies by
	// Δt_us at credit-grant time. LC tenants only.
	ScaledIOPuSLimit float64

	ConnRefCount int
	State        TenantState

	// Completions counts dispatched requests that have received a
	// completion callback; incremented by DispatchShim.
	Completions uint64
}
