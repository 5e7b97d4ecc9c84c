package engine

import (
	"github.com/gridcalc/gridcalc/pkg/value"
)

// spillRecord is the footprint of one array-producing formula. The area
// includes the origin.
type spillRecord struct {
	origin value.CellRef
	area   value.Area
}

// spillManager tracks which cells belong to which spill and which origins
// are waiting for their footprint to clear.
type spillManager struct {
	records map[value.CellRef]*spillRecord
	// owners maps each covered cell other than the origin to its origin.
	owners map[value.CellRef]value.CellRef
	// blocked maps an origin holding #SPILL! to the area it wanted.
	blocked map[value.CellRef]value.Area
}

func newSpillManager() *spillManager {
	return &spillManager{
		records: make(map[value.CellRef]*spillRecord),
		owners:  make(map[value.CellRef]value.CellRef),
		blocked: make(map[value.CellRef]value.Area),
	}
}

// extent returns the current footprint of origin.
func (s *spillManager) extent(origin value.CellRef) (value.Area, bool) {
	rec, ok := s.records[origin]
	if !ok {
		return value.Area{}, false
	}
	return rec.area, true
}

// owner returns the origin whose spill covers c. Origins do not own
// themselves.
func (s *spillManager) owner(c value.CellRef) (value.CellRef, bool) {
	origin, ok := s.owners[c]
	return origin, ok
}

// claim sets the footprint of origin to area and returns the cells whose
// ownership changed: released ones first, then newly claimed ones.
func (s *spillManager) claim(origin value.CellRef, area value.Area) []value.CellRef {
	var changed []value.CellRef
	old, had := s.records[origin]
	if had && old.area == area {
		return nil
	}
	if had {
		forEachCell(old.area, func(a value.Addr) {
			if a == origin.Addr || area.Contains(a) {
				return
			}
			c := value.CellRef{Sheet: origin.Sheet, Addr: a}
			delete(s.owners, c)
			changed = append(changed, c)
		})
	}
	forEachCell(area, func(a value.Addr) {
		if a == origin.Addr || (had && old.area.Contains(a)) {
			return
		}
		c := value.CellRef{Sheet: origin.Sheet, Addr: a}
		s.owners[c] = origin
		changed = append(changed, c)
	})
	s.records[origin] = &spillRecord{origin: origin, area: area}
	delete(s.blocked, origin)
	return changed
}

// release destroys the spill of origin and returns the cells it covered.
func (s *spillManager) release(origin value.CellRef) []value.CellRef {
	rec, ok := s.records[origin]
	if !ok {
		return nil
	}
	var freed []value.CellRef
	forEachCell(rec.area, func(a value.Addr) {
		if a == origin.Addr {
			return
		}
		c := value.CellRef{Sheet: origin.Sheet, Addr: a}
		delete(s.owners, c)
		freed = append(freed, c)
	})
	delete(s.records, origin)
	return freed
}

func (s *spillManager) block(origin value.CellRef, want value.Area) {
	s.blocked[origin] = want
}

func (s *spillManager) unblock(origin value.CellRef) {
	delete(s.blocked, origin)
}

func (s *spillManager) isBlocked(origin value.CellRef) bool {
	_, ok := s.blocked[origin]
	return ok
}

// blockedBy returns the blocked origins whose wanted area intersects area.
func (s *spillManager) blockedBy(sheet value.SheetID, area value.Area) []value.CellRef {
	found := make(map[value.CellRef]struct{})
	for origin, want := range s.blocked {
		if origin.Sheet == sheet && want.Intersects(area) {
			found[origin] = struct{}{}
		}
	}
	return sortedCells(found)
}

// originsIn returns the origins whose footprint intersects area, in cell
// order.
func (s *spillManager) originsIn(sheet value.SheetID, area value.Area) []value.CellRef {
	found := make(map[value.CellRef]struct{})
	for origin, rec := range s.records {
		if origin.Sheet == sheet && rec.area.Intersects(area) {
			found[origin] = struct{}{}
		}
	}
	return sortedCells(found)
}

func forEachCell(area value.Area, fn func(value.Addr)) {
	for r := area.Start.Row; r <= area.End.Row; r++ {
		for c := area.Start.Col; c <= area.End.Col; c++ {
			fn(value.Addr{Row: r, Col: c})
		}
	}
}
