package engine

import (
	"sort"

	"github.com/gridcalc/gridcalc/pkg/value"
)

// deps counts the edges from one precedent to each dependent, so the same
// area read statically and dynamically survives removal of either edge.
type deps map[value.CellRef]int

func (d deps) add(c value.CellRef) { d[c]++ }

// remove reports whether the set became empty.
func (d deps) remove(c value.CellRef) bool {
	if n := d[c]; n > 1 {
		d[c] = n - 1
	} else {
		delete(d, c)
	}
	return len(d) == 0
}

// refIndex maps precedent cells and multi-cell areas to the formula cells
// reading them.
type refIndex struct {
	cells map[value.SheetID]map[uint64]deps
	areas map[value.SheetID]map[value.Area]deps
}

func newRefIndex() refIndex {
	return refIndex{
		cells: make(map[value.SheetID]map[uint64]deps),
		areas: make(map[value.SheetID]map[value.Area]deps),
	}
}

func (ix refIndex) add(ref *value.Reference, dep value.CellRef) {
	for _, area := range ref.Areas {
		if area.Start == area.End {
			sheetCells := ix.cells[ref.Sheet]
			if sheetCells == nil {
				sheetCells = make(map[uint64]deps)
				ix.cells[ref.Sheet] = sheetCells
			}
			key := area.Start.Pack()
			if sheetCells[key] == nil {
				sheetCells[key] = make(deps)
			}
			sheetCells[key].add(dep)
			continue
		}
		sheetAreas := ix.areas[ref.Sheet]
		if sheetAreas == nil {
			sheetAreas = make(map[value.Area]deps)
			ix.areas[ref.Sheet] = sheetAreas
		}
		if sheetAreas[area] == nil {
			sheetAreas[area] = make(deps)
		}
		sheetAreas[area].add(dep)
	}
}

func (ix refIndex) remove(ref *value.Reference, dep value.CellRef) {
	for _, area := range ref.Areas {
		if area.Start == area.End {
			key := area.Start.Pack()
			if d := ix.cells[ref.Sheet][key]; d != nil && d.remove(dep) {
				delete(ix.cells[ref.Sheet], key)
			}
			continue
		}
		if d := ix.areas[ref.Sheet][area]; d != nil && d.remove(dep) {
			delete(ix.areas[ref.Sheet], area)
		}
	}
}

// collect adds every formula cell reading any cell of area to out.
func (ix refIndex) collect(sheet value.SheetID, area value.Area, out map[value.CellRef]struct{}) {
	if sheetCells := ix.cells[sheet]; len(sheetCells) > 0 {
		if area.Size() <= uint64(len(sheetCells)) {
			for r := area.Start.Row; r <= area.End.Row; r++ {
				for c := area.Start.Col; c <= area.End.Col; c++ {
					for dep := range sheetCells[value.Addr{Row: r, Col: c}.Pack()] {
						out[dep] = struct{}{}
					}
				}
			}
		} else {
			for key, d := range sheetCells {
				if !area.Contains(value.UnpackAddr(key)) {
					continue
				}
				for dep := range d {
					out[dep] = struct{}{}
				}
			}
		}
	}
	for observed, d := range ix.areas[sheet] {
		if !observed.Intersects(area) {
			continue
		}
		for dep := range d {
			out[dep] = struct{}{}
		}
	}
}

// edges is everything one formula cell is known to read.
type edges struct {
	static  []*value.Reference
	dynamic []*value.Reference
	spills  []value.CellRef
}

// graph is the precedent/dependent index of a workbook. Static edges come
// from compilation and change only with the formula; dynamic edges are
// replaced wholesale after each evaluation.
type graph struct {
	refs   refIndex
	spills map[value.CellRef]deps
	edges  map[value.CellRef]*edges
}

func newGraph() *graph {
	return &graph{
		refs:   newRefIndex(),
		spills: make(map[value.CellRef]deps),
		edges:  make(map[value.CellRef]*edges),
	}
}

func (g *graph) entry(dep value.CellRef) *edges {
	e := g.edges[dep]
	if e == nil {
		e = &edges{}
		g.edges[dep] = e
	}
	return e
}

// setStatic replaces the compile-time precedents of dep.
func (g *graph) setStatic(dep value.CellRef, refs []*value.Reference, spills []value.CellRef) {
	e := g.entry(dep)
	for _, ref := range e.static {
		g.refs.remove(ref, dep)
	}
	for _, origin := range e.spills {
		if d := g.spills[origin]; d != nil && d.remove(dep) {
			delete(g.spills, origin)
		}
	}
	e.static = refs
	e.spills = spills
	for _, ref := range refs {
		g.refs.add(ref, dep)
	}
	for _, origin := range spills {
		if g.spills[origin] == nil {
			g.spills[origin] = make(deps)
		}
		g.spills[origin].add(dep)
	}
}

// setDynamic replaces the run-time precedents of dep and reports whether
// they differ from the previous set.
func (g *graph) setDynamic(dep value.CellRef, refs []*value.Reference) bool {
	refs = dedupeRefs(refs)
	e := g.entry(dep)
	if sameRefs(e.dynamic, refs) {
		return false
	}
	for _, ref := range e.dynamic {
		g.refs.remove(ref, dep)
	}
	e.dynamic = refs
	for _, ref := range refs {
		g.refs.add(ref, dep)
	}
	return true
}

// remove drops every edge into dep.
func (g *graph) remove(dep value.CellRef) {
	e, ok := g.edges[dep]
	if !ok {
		return
	}
	g.setStatic(dep, nil, nil)
	for _, ref := range e.dynamic {
		g.refs.remove(ref, dep)
	}
	delete(g.edges, dep)
}

// dependents returns the formula cells reading any cell of area, in cell
// order. Readers of a spill range are included when area holds its origin.
func (g *graph) dependents(sheet value.SheetID, area value.Area) []value.CellRef {
	found := make(map[value.CellRef]struct{})
	g.refs.collect(sheet, area, found)
	for origin, d := range g.spills {
		if origin.Sheet != sheet || !area.Contains(origin.Addr) {
			continue
		}
		for dep := range d {
			found[dep] = struct{}{}
		}
	}
	return sortedCells(found)
}

// precedents returns the static and dynamic precedents of dep without
// duplicates.
func (g *graph) precedents(dep value.CellRef) []*value.Reference {
	e, ok := g.edges[dep]
	if !ok {
		return nil
	}
	all := make([]*value.Reference, 0, len(e.static)+len(e.dynamic))
	all = append(all, e.static...)
	all = append(all, e.dynamic...)
	return dedupeRefs(all)
}

func (g *graph) dynamic(dep value.CellRef) []*value.Reference {
	if e, ok := g.edges[dep]; ok {
		return e.dynamic
	}
	return nil
}

func dedupeRefs(refs []*value.Reference) []*value.Reference {
	if len(refs) < 2 {
		return refs
	}
	seen := make(map[string]bool, len(refs))
	out := make([]*value.Reference, 0, len(refs))
	for _, ref := range refs {
		key := refKey(ref)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ref)
	}
	return out
}

func sameRefs(a, b []*value.Reference) bool {
	if len(a) != len(b) {
		return false
	}
	keys := make(map[string]int, len(a))
	for _, ref := range a {
		keys[refKey(ref)]++
	}
	for _, ref := range b {
		key := refKey(ref)
		if keys[key] == 0 {
			return false
		}
		keys[key]--
	}
	return true
}

func refKey(ref *value.Reference) string {
	return ref.String()
}

func sortedCells(set map[value.CellRef]struct{}) []value.CellRef {
	if len(set) == 0 {
		return nil
	}
	out := make([]value.CellRef, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sortCells(out)
	return out
}

func sortCells(cells []value.CellRef) {
	sort.Slice(cells, func(i, j int) bool { return cells[i].Less(cells[j]) })
}
