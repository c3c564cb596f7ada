// Implements the TenantRegistry admission-control algorithm (spec §4.3).
// All global-aggregate mutation is serialized by one mutex, held only for
// the short duration of RegisterFlow/UnregisterFlow — never on the hot
// dispatch path.

package flashqos

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// TenantRegistry holds per-tenant identity/SLO state plus the shared global
// device aggregates described in spec §3 ("Global device state"). Safe for
// concurrent use: RegisterFlow/UnregisterFlow take the registry mutex;
// BETokenRatePerTenant is a plain atomic read from the hot path.
type TenantRegistry struct {
	cost   CostModel
	device *DeviceModel

	mu      sync.Mutex
	tenants map[TenantID]*Tenant

	globalTokenRate      float64 // tokens/s; strictest LC latency SLO's budget
	globalLCSumTokenRate int64
	numLCTenantsGlobal   int
	numBETenantsGlobal   int
	lcBoostNoBE          int64 // leftover split evenly among LC tenants when no BE exist
	readonlyFlag         bool  // true iff every registered LC tenant is 100% read

	beTokenRatePerTenant atomic.Int64
}

// unlimitedTokenRate stands in for "+Inf tokens/s" once it must flow through
// the scheduler's integer budget arithmetic. Used whenever globalTokenRate
// itself is unbounded (spec §4.2: the default/fake/unbounded device models
// return ∞, and so does a registry with no LC tenant yet), since converting
// +Inf to int64 directly is implementation-defined (MinInt64 on amd64,
// MaxInt64 on arm64) and must never reach here.
const unlimitedTokenRate = int64(1) << 40

// NewTenantRegistry creates an empty registry backed by the given cost and
// device models. Initial global_token_rate is +Inf (no tenants registered
// yet) and readonly_flag starts true (vacuously, no LC tenant violates it).
func NewTenantRegistry(cost CostModel, device *DeviceModel) *TenantRegistry {
	return &TenantRegistry{
		cost:         cost,
		device:       device,
		tenants:      make(map[TenantID]*Tenant),
		globalTokenRate: math.Inf(1),
		readonlyFlag: true,
	}
}

// BETokenRatePerTenant returns the current per-BE-tenant token rate
// (tokens/s), recomputed on every RegisterFlow/UnregisterFlow. Lock-free:
// read from the scheduler's hot path every tick.
func (r *TenantRegistry) BETokenRatePerTenant() int64 {
	return r.beTokenRatePerTenant.Load()
}

// Lookup returns the tenant for id, if registered.
func (r *TenantRegistry) Lookup(id TenantID) (*Tenant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tenants[id]
	return t, ok
}

func sameSLO(t *Tenant, latencyUs uint32, iops uint64, rwPct uint8) bool {
	return t.LatencyUsSLO == latencyUs && t.IOPSSLO == iops && t.RWRatioPct == rwPct
}

// RegisterFlow admits tenant id with the given SLO, owned by owner.
//
//   - Same tenant_id, identical SLO: increments ConnRefCount (no aggregate
//     change).
//   - Same tenant_id, different SLO: overwrites — the old SLO's accounting
//     is reversed and the new SLO is registered from scratch for every
//     connection sharing the tenant id (see SPEC_FULL.md Open Question 1;
//     this is documented coarse behavior, not a bug).
//   - New tenant_id: runs the admission check below.
//
// LC admission check: the device can only commit to the strictest latency
// target outstanding, so a new LC tenant's request rate is checked against
// min(current global rate, DeviceModel.Lookup(latency)). If the LC
// reservation sum would exceed that, the tenant is rejected with
// ErrCannotMeetSLO and no state changes. BE tenants are always admitted.
func (r *TenantRegistry) RegisterFlow(id TenantID, latencyUs uint32, iops uint64, rwPct uint8, owner WorkerID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, hasExisting := r.tenants[id]
	if hasExisting && sameSLO(existing, latencyUs, iops, rwPct) {
		existing.ConnRefCount++
		return nil
	}

	reqRate := r.cost.ScaledIOPS(iops, rwPct)
	latencyCritical := latencyUs > 0

	// Admission is checked against the aggregates as they would be with any
	// existing registration for this tenant id already reversed — but
	// without actually mutating anything yet, so a rejection leaves the
	// prior registration completely untouched (spec §4.3).
	baseLCSum := r.globalLCSumTokenRate
	baseGlobalRate, baseReadonly := r.globalTokenRate, r.readonlyFlag
	if hasExisting && existing.LatencyCritical {
		baseLCSum -= existing.ScaledIOPSLimit
		baseGlobalRate, baseReadonly = r.strictestLCBudgetLocked(id, true)
	}

	tenant := &Tenant{
		ID:              id,
		LatencyCritical: latencyCritical,
		LatencyUsSLO:    latencyUs,
		IOPSSLO:         iops,
		RWRatioPct:      rwPct,
		OwnerWorker:     owner,
		ScaledIOPSLimit: reqRate,
		ConnRefCount:    1,
		State:           TenantInactive,
	}

	var newGlobalRate float64
	var tentativeReadonly bool
	if latencyCritical {
		tentativeReadonly = baseReadonly
		if rwPct < 100 {
			tentativeReadonly = false
		}
		newGlobalRate = r.device.Lookup(latencyUs, tentativeReadonly)
		if newGlobalRate > baseGlobalRate {
			newGlobalRate = baseGlobalRate
		}
		newLCSum := baseLCSum + reqRate

		if float64(newLCSum) > newGlobalRate {
			return ErrCannotMeetSLO
		}
	}

	if hasExisting {
		logrus.WithField("tenant_id", id).Warn(
			"tenant re-registered with a different SLO; overwriting previous SLO for all of this tenant's connections")
		r.unregisterLocked(existing)
	}

	if latencyCritical {
		r.globalTokenRate = newGlobalRate
		r.globalLCSumTokenRate = baseLCSum + reqRate
		r.readonlyFlag = tentativeReadonly
		r.numLCTenantsGlobal++
	} else {
		r.numBETenantsGlobal++
	}

	r.tenants[id] = tenant
	r.recomputeRatesLocked()
	return nil
}

// UnregisterFlow decrements id's connection ref count; when it reaches zero
// the tenant is fully retired: its reservation is subtracted from the
// global aggregates and global_token_rate is recomputed by re-scanning the
// remaining LC tenants for the new strictest SLO.
func (r *TenantRegistry) UnregisterFlow(id TenantID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tenant, ok := r.tenants[id]
	if !ok {
		return nil
	}
	tenant.ConnRefCount--
	if tenant.ConnRefCount > 0 {
		return nil
	}
	r.unregisterLocked(tenant)
	return nil
}

// unregisterLocked fully removes tenant's reservation and map entry. Caller
// must hold r.mu.
func (r *TenantRegistry) unregisterLocked(tenant *Tenant) {
	delete(r.tenants, tenant.ID)
	tenant.State = TenantRemoved

	if tenant.LatencyCritical {
		r.numLCTenantsGlobal--
		r.globalLCSumTokenRate -= tenant.ScaledIOPSLimit
		r.globalTokenRate, r.readonlyFlag = r.strictestLCBudgetLocked(0, false)
	} else {
		r.numBETenantsGlobal--
	}

	r.recomputeRatesLocked()
}

// strictestLCBudgetLocked rescans tenants for the strictest LC latency SLO
// and whether every remaining LC tenant is 100% read, returning
// (device.Lookup(strictest, readonly), readonly) or (+Inf, true) if no LC
// tenant remains. With exclude set, tenant excludeID is skipped as though it
// had already been torn down — used by RegisterFlow to check admission for a
// re-registration before actually reversing the old one. Caller must hold
// r.mu.
func (r *TenantRegistry) strictestLCBudgetLocked(excludeID TenantID, exclude bool) (rate float64, readonly bool) {
	strictest := uint32(math.MaxUint32)
	readonly = true
	found := false
	for id, t := range r.tenants {
		if exclude && id == excludeID {
			continue
		}
		if !t.LatencyCritical {
			continue
		}
		found = true
		if t.LatencyUsSLO < strictest {
			strictest = t.LatencyUsSLO
		}
		if t.RWRatioPct < 100 {
			readonly = false
		}
	}
	if !found {
		return math.Inf(1), true
	}
	return r.device.Lookup(strictest, readonly), readonly
}

// recomputeRatesLocked recomputes be_token_rate_per_tenant and
// lc_boost_no_BE from the current aggregates, and — if lc_boost_no_BE
// changed — re-derives every LC tenant's ScaledIOPuSLimit. Caller must hold
// r.mu.
func (r *TenantRegistry) recomputeRatesLocked() {
	var beRate int64
	var lcBoost int64

	unbounded := math.IsInf(r.globalTokenRate, 1)
	residual := r.globalTokenRate - float64(r.globalLCSumTokenRate)
	switch {
	case r.numBETenantsGlobal > 0:
		if unbounded {
			beRate = unlimitedTokenRate
		} else {
			beRate = int64(residual / float64(r.numBETenantsGlobal))
		}
	case r.numLCTenantsGlobal > 0:
		if unbounded {
			lcBoost = unlimitedTokenRate
		} else {
			lcBoost = int64(residual / float64(r.numLCTenantsGlobal))
		}
	}
	r.beTokenRatePerTenant.Store(beRate)

	if lcBoost != r.lcBoostNoBE {
		r.lcBoostNoBE = lcBoost
		for _, t := range r.tenants {
			if t.LatencyCritical {
				t.ScaledIOPuSLimit = float64(t.ScaledIOPSLimit+r.lcBoostNoBE) / 1e6
			}
		}
	} else {
		// Still need to set it for brand-new LC tenants on this call even
		// when the shared boost value itself hasn't changed.
		for _, t := range r.tenants {
			if t.LatencyCritical && t.ScaledIOPuSLimit == 0 {
				t.ScaledIOPuSLimit = float64(t.ScaledIOPSLimit+r.lcBoostNoBE) / 1e6
			}
		}
	}
}
