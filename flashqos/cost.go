package flashqos

// CostModel converts (opcode, size) pairs into the scheduler's abstract
// "token" currency. The token's absolute scale is arbitrary; what matters is
// the ratio between read and write cost and that DeviceModel rates are
// calibrated in the same unit.
type CostModel struct {
	// ReadCost4K and WriteCost4K are the base, per-4KiB-chunk token costs.
	// Typical device ratios are around 1:20 (writes much pricier than reads).
	ReadCost4K  int64
	WriteCost4K int64
}

const sectorChunkBytes = 4096

func ceilDiv(n, d int64) int64 {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}

// BaseCost returns the per-chunk token cost for the given opcode.
func (cm CostModel) BaseCost(op Opcode) int64 {
	if op == OpRead {
		return cm.ReadCost4K
	}
	return cm.WriteCost4K
}

// Cost computes cost(op, len_bytes) = base_cost(op) * ceil(len_bytes / 4096).
func (cm CostModel) Cost(op Opcode, lenBytes int64) int64 {
	return cm.BaseCost(op) * ceilDiv(lenBytes, sectorChunkBytes)
}

// ScaledIOPS converts a tenant's human-facing IOPS SLO (assumed 4 KiB
// requests) into its reserved token rate:
//
//	scaledIOPS = IOPS*(rw/100)*cost(READ,4096) + IOPS*(1-rw/100)*cost(WRITE,4096)
//
// rwPct is 0-100, the percentage of the mix that is reads. Rounds to the
// nearest integer token, matching the source's "+0.5" rounding convention.
func (cm CostModel) ScaledIOPS(iops uint64, rwPct uint8) int64 {
	rw := float64(rwPct) / 100.0
	readCost := float64(cm.Cost(OpRead, sectorChunkBytes))
	writeCost := float64(cm.Cost(OpWrite, sectorChunkBytes))
	scaled := float64(iops)*rw*readCost + float64(iops)*(1-rw)*writeCost
	return int64(scaled + 0.5)
}
