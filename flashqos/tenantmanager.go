// Implements TenantManager, the per-worker bookkeeping of which tenants
// currently have work. Modeled as two explicit ring buffers (LC, BE) with a
// round-robin cursor each, per SPEC_FULL.md §9: no intrusive list, no head
// aliasing — a slice plus a cursor, grown by append and compacted when
// tenants drain.

package flashqos

// activeSet is a round-robin working set of tenant ids: a slice in ring
// order plus a cursor that survives compaction. Dispatch loops call
// ForEachFromCursor, which resumes exactly where the previous tick left
// off — the mechanism behind §8 property 6 (round-robin progress) and the
// S6 scenario (resume at the BUSY tenant, not the ring's start).
type activeSet struct {
	ids           []TenantID
	cursor        int
	pendingRemove map[TenantID]bool
}

func newActiveSet() *activeSet {
	return &activeSet{pendingRemove: make(map[TenantID]bool)}
}

func (s *activeSet) Len() int { return len(s.ids) }

func (s *activeSet) IsActive(id TenantID) bool {
	for _, x := range s.ids {
		if x == id {
			return true
		}
	}
	return false
}

// Activate adds id to the ring if not already present (a no-op otherwise —
// a tenant can only be active once).
func (s *activeSet) Activate(id TenantID) {
	if s.IsActive(id) {
		delete(s.pendingRemove, id) // re-enqueued before its removal was swept
		return
	}
	s.ids = append(s.ids, id)
}

// MarkRemove flags id to be dropped from the ring at the next Sweep.
func (s *activeSet) MarkRemove(id TenantID) {
	s.pendingRemove[id] = true
}

// Sweep drops every tenant flagged by MarkRemove since the last Sweep,
// preserving ring order and keeping the cursor pointed at the same logical
// tenant it was on before the sweep (or clamped into range if that tenant
// was itself removed).
func (s *activeSet) Sweep() {
	if len(s.pendingRemove) == 0 {
		return
	}
	var at TenantID
	hadCursor := len(s.ids) > 0
	if hadCursor {
		at = s.ids[s.cursor%len(s.ids)]
	}

	kept := s.ids[:0:0]
	for _, id := range s.ids {
		if !s.pendingRemove[id] {
			kept = append(kept, id)
		}
	}
	s.ids = kept
	s.pendingRemove = make(map[TenantID]bool)

	if len(s.ids) == 0 {
		s.cursor = 0
		return
	}
	if hadCursor {
		for i, id := range s.ids {
			if id == at {
				s.cursor = i
				return
			}
		}
	}
	s.cursor = s.cursor % len(s.ids)
}

// ForEachFromCursor visits every tenant currently in the ring exactly once,
// starting at the cursor and wrapping around. fn returns true to keep
// going, false to stop early (e.g. FlashIO is out of room); on early stop
// the cursor is left pointing at the tenant fn stopped on, so the next call
// resumes there.
func (s *activeSet) ForEachFromCursor(fn func(id TenantID) (cont bool)) {
	n := len(s.ids)
	if n == 0 {
		return
	}
	for i := 0; i < n; i++ {
		pos := (s.cursor + i) % n
		if !fn(s.ids[pos]) {
			s.cursor = pos
			return
		}
	}
	s.cursor = (s.cursor + n) % n
}

// MinLCTenantStats rescans the LC tenants currently in this worker's active
// ring for the smallest ScaledIOPSLimit and how many tenants share it; LC
// tenants registered on this worker but not in the ring are not counted. A read-only diagnostic
// aid, not consulted by Schedule; mirrors the minimum-rate tracking the
// ReFlex source keeps per worker and prints as a warning when the minimum
// tenant is torn down. lookup resolves a tenant id to its *Tenant, typically
// TenantRegistry.Lookup.
func (m *TenantManager) MinLCTenantStats(lookup func(TenantID) (*Tenant, bool)) (minRate int64, count int) {
	first := true
	m.LC.Each(func(id TenantID) {
		t, ok := lookup(id)
		if !ok {
			return
		}
		switch {
		case first:
			minRate = t.ScaledIOPSLimit
			count = 1
			first = false
		case t.ScaledIOPSLimit < minRate:
			minRate = t.ScaledIOPSLimit
			count = 1
		case t.ScaledIOPSLimit == minRate:
			count++
		}
	})
	return minRate, count
}

// Each visits every tenant currently in the ring exactly once, in ring
// order, without consulting or moving the cursor. Used where sub-round 2
// needs a total over all active BE tenants before any dispatch happens.
func (s *activeSet) Each(fn func(id TenantID)) {
	for _, id := range s.ids {
		fn(id)
	}
}

// AdvanceCursorToNext moves the cursor forward by one ring slot. Used by
// sub-round 2 after a full BE sweep (§4.5): "advance be_round_robin_cursor
// by one position".
func (s *activeSet) AdvanceCursorToNext() {
	if len(s.ids) == 0 {
		return
	}
	s.cursor = (s.cursor + 1) % len(s.ids)
}

// TenantManager tracks, for one worker, which of its tenants currently have
// pending work, split into latency-critical
// and best-effort rings, plus how many tenants of each class this worker
// owns in total.
type TenantManager struct {
	LC *activeSet
	BE *activeSet

	numLCTenants int
	numBETenants int
}

func NewTenantManager() *TenantManager {
	return &TenantManager{LC: newActiveSet(), BE: newActiveSet()}
}

func (m *TenantManager) NumLCTenants() int { return m.numLCTenants }
func (m *TenantManager) NumBETenants() int { return m.numBETenants }

// OnTenantRegistered is called by the owning worker when a new tenant it
// owns is admitted.
func (m *TenantManager) OnTenantRegistered(t *Tenant) {
	if t.LatencyCritical {
		m.numLCTenants++
	} else {
		m.numBETenants++
	}
}

// OnTenantRemoved is called by the owning worker when one of its tenants is
// fully retired (conn_ref_count reached zero).
func (m *TenantManager) OnTenantRemoved(t *Tenant) {
	if t.LatencyCritical {
		m.numLCTenants--
		m.LC.MarkRemove(t.ID)
		m.LC.Sweep()
	} else {
		m.numBETenants--
		m.BE.MarkRemove(t.ID)
		m.BE.Sweep()
	}
}
