package flashqos

import "testing"

func TestCostModel_BaseCost(t *testing.T) {
	cm := CostModel{ReadCost4K: 1, WriteCost4K: 4}
	if got := cm.BaseCost(OpRead); got != 1 {
		t.Errorf("BaseCost(OpRead) = %d, want 1", got)
	}
	if got := cm.BaseCost(OpWrite); got != 4 {
		t.Errorf("BaseCost(OpWrite) = %d, want 4", got)
	}
}

func TestCostModel_Cost(t *testing.T) {
	cases := []struct {
		name     string
		op       Opcode
		lenBytes int64
		want     int64
	}{
		{"read exactly one chunk", OpRead, 4096, 1},
		{"read partial chunk rounds up", OpRead, 1, 1},
		{"read two full chunks", OpRead, 8192, 2},
		{"read just over one chunk", OpRead, 4097, 2},
		{"write one chunk", OpWrite, 4096, 4},
		{"write three chunks", OpWrite, 4096*3 - 1, 12},
	}
	cm := CostModel{ReadCost4K: 1, WriteCost4K: 4}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := cm.Cost(c.op, c.lenBytes); got != c.want {
				t.Errorf("Cost(%v, %d) = %d, want %d", c.op, c.lenBytes, got, c.want)
			}
		})
	}
}

func TestCostModel_ScaledIOPS(t *testing.T) {
	cm := CostModel{ReadCost4K: 1, WriteCost4K: 4}
	cases := []struct {
		name  string
		iops  uint64
		rwPct uint8
		want  int64
	}{
		{"all reads", 1000, 100, 1000},
		{"all writes", 1000, 0, 4000},
		{"half and half", 1000, 50, 2500},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := cm.ScaledIOPS(c.iops, c.rwPct); got != c.want {
				t.Errorf("ScaledIOPS(%d, %d) = %d, want %d", c.iops, c.rwPct, got, c.want)
			}
		})
	}
}
