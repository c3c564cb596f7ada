package flashqos

import (
	"math"
	"testing"
)

func testCostModel() CostModel {
	return CostModel{ReadCost4K: 1, WriteCost4K: 4}
}

func TestRegisterFlow_FirstLCTenantAdmitted(t *testing.T) {
	r := NewTenantRegistry(testCostModel(), NewUnboundedDeviceModel())
	if err := r.RegisterFlow(1, 100, 1000, 100, 0); err != nil {
		t.Fatalf("RegisterFlow: %v", err)
	}
	tenant, ok := r.Lookup(1)
	if !ok {
		t.Fatal("tenant must be registered")
	}
	if !tenant.LatencyCritical {
		t.Error("tenant with latency SLO > 0 must be LatencyCritical")
	}
	if tenant.ScaledIOPSLimit != 1000 {
		t.Errorf("ScaledIOPSLimit = %d, want 1000", tenant.ScaledIOPSLimit)
	}
}

func TestRegisterFlow_BETenantAlwaysAdmitted(t *testing.T) {
	device := NewDeviceModel([]CalibrationPoint{{LatencyP95Us: 100, MaxTokenRate: 10, MaxReadonlyTokenRate: 10}})
	r := NewTenantRegistry(testCostModel(), device)
	// Saturate the tiny device budget with an LC tenant first.
	if err := r.RegisterFlow(1, 100, 10, 100, 0); err != nil {
		t.Fatalf("RegisterFlow LC: %v", err)
	}
	// A BE tenant (latency_us_SLO == 0) must be admitted regardless of the
	// exhausted LC budget.
	if err := r.RegisterFlow(2, 0, 1_000_000, 0, 0); err != nil {
		t.Fatalf("RegisterFlow BE: %v", err)
	}
	tenant, _ := r.Lookup(2)
	if tenant.LatencyCritical {
		t.Error("tenant with latency SLO 0 must not be LatencyCritical")
	}
}

func TestRegisterFlow_RejectsWhenLCSumWouldExceedDeviceBudget(t *testing.T) {
	device := NewDeviceModel([]CalibrationPoint{{LatencyP95Us: 100, MaxTokenRate: 1000, MaxReadonlyTokenRate: 1000}})
	r := NewTenantRegistry(testCostModel(), device)
	if err := r.RegisterFlow(1, 100, 900, 100, 0); err != nil {
		t.Fatalf("first RegisterFlow: %v", err)
	}
	err := r.RegisterFlow(2, 100, 200, 100, 0)
	if err != ErrCannotMeetSLO {
		t.Fatalf("second RegisterFlow = %v, want ErrCannotMeetSLO", err)
	}
	if _, ok := r.Lookup(2); ok {
		t.Error("rejected tenant must not be registered")
	}
	// First tenant's state must be untouched by the rejected attempt.
	tenant, _ := r.Lookup(1)
	if tenant.ScaledIOPSLimit != 900 {
		t.Errorf("existing tenant mutated by a rejected registration: ScaledIOPSLimit = %d", tenant.ScaledIOPSLimit)
	}
}

func TestRegisterFlow_SameSLOIncrementsRefCount(t *testing.T) {
	r := NewTenantRegistry(testCostModel(), NewUnboundedDeviceModel())
	r.RegisterFlow(1, 100, 1000, 100, 0)
	if err := r.RegisterFlow(1, 100, 1000, 100, 0); err != nil {
		t.Fatalf("RegisterFlow repeat: %v", err)
	}
	tenant, _ := r.Lookup(1)
	if tenant.ConnRefCount != 2 {
		t.Errorf("ConnRefCount = %d, want 2", tenant.ConnRefCount)
	}
}

func TestRegisterFlow_DifferentSLOOverwrites(t *testing.T) {
	r := NewTenantRegistry(testCostModel(), NewUnboundedDeviceModel())
	r.RegisterFlow(1, 100, 1000, 100, 0)
	if err := r.RegisterFlow(1, 200, 2000, 100, 0); err != nil {
		t.Fatalf("RegisterFlow with new SLO: %v", err)
	}
	tenant, _ := r.Lookup(1)
	if tenant.LatencyUsSLO != 200 || tenant.IOPSSLO != 2000 {
		t.Errorf("tenant not overwritten: %+v", tenant)
	}
	if tenant.ConnRefCount != 1 {
		t.Errorf("ConnRefCount after overwrite = %d, want 1 (fresh registration)", tenant.ConnRefCount)
	}
}

func TestUnregisterFlow_DecrementsUntilZero(t *testing.T) {
	r := NewTenantRegistry(testCostModel(), NewUnboundedDeviceModel())
	r.RegisterFlow(1, 100, 1000, 100, 0)
	r.RegisterFlow(1, 100, 1000, 100, 0) // ConnRefCount = 2

	if err := r.UnregisterFlow(1); err != nil {
		t.Fatalf("UnregisterFlow: %v", err)
	}
	if _, ok := r.Lookup(1); !ok {
		t.Fatal("tenant must still be registered with one reference remaining")
	}

	if err := r.UnregisterFlow(1); err != nil {
		t.Fatalf("UnregisterFlow: %v", err)
	}
	if _, ok := r.Lookup(1); ok {
		t.Fatal("tenant must be fully retired once ConnRefCount reaches zero")
	}
}

func TestUnregisterFlow_UnknownTenantIsNoOp(t *testing.T) {
	r := NewTenantRegistry(testCostModel(), NewUnboundedDeviceModel())
	if err := r.UnregisterFlow(999); err != nil {
		t.Errorf("UnregisterFlow on unknown tenant = %v, want nil", err)
	}
}

func TestUnregisterFlow_RecomputesStrictestRemainingSLO(t *testing.T) {
	device := NewDeviceModel([]CalibrationPoint{
		{LatencyP95Us: 100, MaxTokenRate: 1000, MaxReadonlyTokenRate: 1000},
		{LatencyP95Us: 1000, MaxTokenRate: 5000, MaxReadonlyTokenRate: 5000},
	})
	r := NewTenantRegistry(testCostModel(), device)
	r.RegisterFlow(1, 100, 10, 100, 0)  // strictest: 100us
	r.RegisterFlow(2, 1000, 10, 100, 0) // looser: 1000us

	if err := r.UnregisterFlow(1); err != nil {
		t.Fatalf("UnregisterFlow: %v", err)
	}
	// Only tenant 2 remains, with a 1000us SLO; global_token_rate should now
	// track that looser budget rather than the retired 100us one.
	if r.globalTokenRate != device.Lookup(1000, false) {
		t.Errorf("globalTokenRate = %v, want the remaining tenant's budget %v", r.globalTokenRate, device.Lookup(1000, false))
	}
}

func TestUnregisterFlow_LastLCTenantResetsToUnbounded(t *testing.T) {
	device := NewDeviceModel([]CalibrationPoint{{LatencyP95Us: 100, MaxTokenRate: 1000, MaxReadonlyTokenRate: 1000}})
	r := NewTenantRegistry(testCostModel(), device)
	r.RegisterFlow(1, 100, 10, 100, 0)
	r.UnregisterFlow(1)

	if !math.IsInf(r.globalTokenRate, 1) {
		t.Errorf("globalTokenRate after last LC tenant leaves = %v, want +Inf", r.globalTokenRate)
	}
	if !r.readonlyFlag {
		t.Error("readonlyFlag must reset to true (vacuously) once no LC tenant remains")
	}
}

func TestRegisterFlow_ReadonlyFlagTracksMixedWorkloads(t *testing.T) {
	device := NewDeviceModel([]CalibrationPoint{{LatencyP95Us: 100, MaxTokenRate: 1000, MaxReadonlyTokenRate: 2000}})
	r := NewTenantRegistry(testCostModel(), device)
	r.RegisterFlow(1, 100, 10, 100, 0) // 100% read
	if !r.readonlyFlag {
		t.Fatal("single all-read LC tenant should keep readonlyFlag true")
	}
	r.RegisterFlow(2, 100, 10, 80, 0) // 80% read, not pure
	if r.readonlyFlag {
		t.Error("readonlyFlag must go false once any LC tenant has writes")
	}
}

func TestRecomputeRatesLocked_BEGetsResidualShare(t *testing.T) {
	device := NewDeviceModel([]CalibrationPoint{{LatencyP95Us: 100, MaxTokenRate: 1000, MaxReadonlyTokenRate: 1000}})
	r := NewTenantRegistry(testCostModel(), device)
	r.RegisterFlow(1, 100, 400, 100, 0) // LC reserves 400
	r.RegisterFlow(2, 0, 1, 0, 0)       // BE tenant #1
	r.RegisterFlow(3, 0, 1, 0, 0)       // BE tenant #2

	// residual = 1000 - 400 = 600, split over 2 BE tenants = 300 each.
	if got := r.BETokenRatePerTenant(); got != 300 {
		t.Errorf("BETokenRatePerTenant = %d, want 300", got)
	}
}

func TestRecomputeRatesLocked_LCBoostWhenNoBE(t *testing.T) {
	device := NewDeviceModel([]CalibrationPoint{{LatencyP95Us: 100, MaxTokenRate: 1000, MaxReadonlyTokenRate: 1000}})
	r := NewTenantRegistry(testCostModel(), device)
	r.RegisterFlow(1, 100, 400, 100, 0)
	r.RegisterFlow(2, 100, 200, 100, 0)

	// residual = 1000 - 600 = 400, split over 2 LC tenants = 200 each boost.
	t1, _ := r.Lookup(1)
	t2, _ := r.Lookup(2)
	wantT1 := float64(400+200) / 1e6
	wantT2 := float64(200+200) / 1e6
	if t1.ScaledIOPuSLimit != wantT1 {
		t.Errorf("tenant 1 ScaledIOPuSLimit = %v, want %v", t1.ScaledIOPuSLimit, wantT1)
	}
	if t2.ScaledIOPuSLimit != wantT2 {
		t.Errorf("tenant 2 ScaledIOPuSLimit = %v, want %v", t2.ScaledIOPuSLimit, wantT2)
	}
}
