package flashqos

import (
	"math"
	"sort"
)

// CalibrationPoint is one row of a device model's latency -> rate table.
type CalibrationPoint struct {
	LatencyP95Us         uint32
	MaxTokenRate         float64
	MaxReadonlyTokenRate float64
}

// DeviceModel maps a latency SLO to a device token-rate budget via a sorted
// table of calibration points. Two sentinel models exist outside this type:
// "default" (no limits) and "fake" (for testing, DispatchShim short-circuits
// the device); both are represented by NewUnboundedDeviceModel.
type DeviceModel struct {
	points []CalibrationPoint
}

// NewDeviceModel builds a DeviceModel from calibration points, sorting them
// by latency ascending. Panics if points is empty (a named device model with
// no calibration data is a configuration error, caught at load time).
func NewDeviceModel(points []CalibrationPoint) *DeviceModel {
	if len(points) == 0 {
		panic("flashqos: device model requires at least one calibration point")
	}
	sorted := append([]CalibrationPoint(nil), points...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LatencyP95Us < sorted[j].LatencyP95Us })
	return &DeviceModel{points: sorted}
}

// NewUnboundedDeviceModel returns a DeviceModel whose Lookup always returns
// +Inf, for the "default" and "fake" sentinel models.
func NewUnboundedDeviceModel() *DeviceModel {
	return &DeviceModel{}
}

// Lookup returns the token rate budget for the given latency SLO (in
// microseconds). Below the first calibration point it returns point 0's
// rate; above the last it returns the last point's rate; otherwise it
// linearly interpolates between the bracketing points. readonly selects
// MaxReadonlyTokenRate instead of MaxTokenRate.
func (dm *DeviceModel) Lookup(latencyUs uint32, readonly bool) float64 {
	if len(dm.points) == 0 {
		return math.Inf(1)
	}
	rate := func(p CalibrationPoint) float64 {
		if readonly {
			return p.MaxReadonlyTokenRate
		}
		return p.MaxTokenRate
	}

	if latencyUs <= dm.points[0].LatencyP95Us {
		return rate(dm.points[0])
	}
	last := dm.points[len(dm.points)-1]
	if latencyUs >= last.LatencyP95Us {
		return rate(last)
	}

	// Find the bracketing pair: points[i-1].Latency < latencyUs <= points[i].Latency
	idx := sort.Search(len(dm.points), func(i int) bool {
		return dm.points[i].LatencyP95Us >= latencyUs
	})
	p0, p1 := dm.points[idx-1], dm.points[idx]
	x0, x1 := float64(p0.LatencyP95Us), float64(p1.LatencyP95Us)
	y0, y1 := rate(p0), rate(p1)
	frac := (float64(latencyUs) - x0) / (x1 - x0)
	return y0 + (y1-y0)*frac
}
