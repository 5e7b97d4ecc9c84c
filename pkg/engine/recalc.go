package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/gridcalc/gridcalc/pkg/telemetry"
	"github.com/gridcalc/gridcalc/pkg/value"
)

const (
	// maxRetries bounds re-evaluations of a cell inside one visit when
	// evaluation reads precedents that are still dirty.
	maxRetries = 8

	// maxEvaluations bounds the evaluations of one cell per pass. A cell
	// over the limit does not settle, e.g. a spill feeding its own inputs.
	maxEvaluations = 32
)

// outcome is the result of evaluating one formula cell.
type outcome struct {
	value    value.Value
	observed []*value.Reference
	vm       bool
	skipped  bool
}

// evaluate runs fc against the current workbook state. It only reads, so
// parallel workers may call it concurrently.
func (w *Workbook) evaluate(fc *formulaCell) outcome {
	f := w.ev.Frame(fc.ref)
	if fc.program != nil {
		raw := fc.program.Run(f)
		return outcome{value: f.Result(raw), observed: f.Observed(), vm: true}
	}
	raw := f.Eval(fc.expr, nil)
	return outcome{value: f.Result(raw), observed: f.Observed()}
}

// Recalculate brings every dirty formula cell up to date. Circular
// references do not abort the pass: their cells hold #CALC! and the
// report lists one CYCLE error per cycle. The returned error is non-nil
// only when ctx ends the pass early, leaving the remaining cells dirty.
func (w *Workbook) Recalculate(ctx context.Context, mode Mode) (*Report, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	passID := uuid.New().String()
	ctx, span := w.tel.Tracer.StartRecalcSpan(ctx, passID, mode.String())
	defer span.End()
	timer := telemetry.NewTimer()

	if w.mutated {
		for _, fc := range w.volatileCells() {
			w.markDirty(fc)
		}
		w.mutated = false
	}

	p := newPass(w, passID, mode)
	p.report.Dirty = len(w.dirty)

	var err error
	if mode == Parallel {
		err = p.runParallel(ctx)
	} else {
		err = p.runSingle(ctx)
	}
	p.finish()

	r := p.report
	r.Duration = timer.Duration()

	telemetry.SetAttributes(span,
		telemetry.AttrDirtyCells.Int(r.Dirty),
		telemetry.AttrEvaluated.Int(r.Evaluated),
		telemetry.AttrCycles.Int(len(r.Cycles)),
		telemetry.AttrSpillsBlocked.Int(len(r.SpillsBlocked)),
	)
	m := w.tel.Metrics
	m.RecordRecalcPass(mode.String(), r.Duration)
	m.RecordCellsEvaluated("vm", r.VM)
	m.RecordCellsEvaluated("tree", r.Tree)
	m.RecordCycles(len(r.Cycles))
	m.SetProgramCacheSize(w.cache.Len())

	p.log.WithFields(map[string]interface{}{
		"mode":        mode.String(),
		"dirty":       r.Dirty,
		"evaluated":   r.Evaluated,
		"changed":     len(r.Changed),
		"cycles":      len(r.Cycles),
		"duration_ms": r.Duration.Milliseconds(),
	}).Debug("Recalculation finished")

	if perr := w.tel.Events.PublishRecalcCompleted(passID, mode.String(), r.Evaluated, len(r.Cycles), r.Duration); perr != nil {
		p.log.WithError(perr).Debug("Event dropped")
	}

	if err != nil {
		m.RecordError(string(ErrCodeInternal))
		telemetry.RecordError(span, err)
		return r, err
	}
	telemetry.RecordSuccess(span)
	return r, nil
}

func (w *Workbook) volatileCells() []*formulaCell {
	out := make([]*formulaCell, 0, len(w.volatile))
	for _, fc := range w.volatile {
		out = append(out, fc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ref.Less(out[j].ref) })
	return out
}

func (w *Workbook) dirtyCells() []*formulaCell {
	out := make([]*formulaCell, 0, len(w.dirty))
	for _, fc := range w.dirty {
		out = append(out, fc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ref.Less(out[j].ref) })
	return out
}

// pass holds the bookkeeping of one Recalculate call.
type pass struct {
	w      *Workbook
	report *Report
	log    *telemetry.Logger

	// stack is the chain of cells under evaluation, outermost first.
	stack  []*formulaCell
	cyclic map[value.CellRef]bool
	cycles map[string]bool
	evals  map[value.CellRef]int

	changed map[value.CellRef]struct{}
	blocked map[value.CellRef]struct{}

	// redirtied counts cells made dirty again by spill changes.
	redirtied int
}

func newPass(w *Workbook, passID string, mode Mode) *pass {
	return &pass{
		w:       w,
		report:  &Report{PassID: passID, Mode: mode},
		log:     w.log.WithPassID(passID),
		cyclic:  make(map[value.CellRef]bool),
		cycles:  make(map[string]bool),
		evals:   make(map[value.CellRef]int),
		changed: make(map[value.CellRef]struct{}),
		blocked: make(map[value.CellRef]struct{}),
	}
}

// runSingle visits dirty cells in cell order, evaluating precedents
// depth-first. Spill changes can dirty cells again, so it loops until
// nothing is dirty.
func (p *pass) runSingle(ctx context.Context) error {
	for len(p.w.dirty) > 0 {
		for _, fc := range p.w.dirtyCells() {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.visit(fc)
		}
	}
	return nil
}

// runParallel evaluates the dirty cells level by level on the worker
// pool. Cells whose reads are not covered by static edges, cells reading
// cells still pending, and everything after a spill change are finished
// by a single-threaded follow-up.
func (p *pass) runParallel(ctx context.Context) error {
	w := p.w
	levels := buildLevels(w.dirtyCells(), w.dependentsOf, (*formulaCell).hazard).Levels()
	p.report.Levels = len(levels)
	sched := newLevelScheduler(w.opts.MaxWorkers)

	for _, level := range levels {
		if err := ctx.Err(); err != nil {
			return err
		}
		results := sched.run(ctx, level, w.evaluate)
		for i, fc := range level {
			out := results[i]
			if out.skipped || fc.state != StateDirty {
				continue
			}
			p.count(fc, out)
			if len(p.pending(out.observed)) > 0 {
				continue
			}
			p.commit(fc, out)
		}
		if p.redirtied > 0 {
			break
		}
	}

	before := p.report.Evaluated
	err := p.runSingle(ctx)
	p.report.FollowUp = p.report.Evaluated - before
	return err
}

func (p *pass) visit(fc *formulaCell) {
	switch fc.state {
	case StateEvaluating:
		p.cycle(fc)
		return
	case StateDirty:
	default:
		return
	}

	fc.state = StateEvaluating
	p.stack = append(p.stack, fc)
	defer func() { p.stack = p.stack[:len(p.stack)-1] }()

	for _, ref := range fc.static.Refs {
		p.visitRef(ref)
	}
	for _, ref := range p.w.graph.dynamic(fc.ref) {
		p.visitRef(ref)
	}
	for _, origin := range fc.static.Spills {
		if dep := p.w.formulaAt(origin); dep != nil {
			p.visit(dep)
		}
	}

	for attempt := 0; ; attempt++ {
		if p.cyclic[fc.ref] {
			p.settle(fc)
			return
		}
		if p.evals[fc.ref] >= maxEvaluations {
			p.diverged(fc)
			return
		}
		out := p.w.evaluate(fc)
		p.count(fc, out)
		pending := p.pending(out.observed)
		if len(pending) == 0 || attempt >= maxRetries {
			p.commit(fc, out)
			return
		}
		for _, dep := range pending {
			p.visit(dep)
		}
	}
}

func (p *pass) visitRef(ref *value.Reference) {
	for _, area := range ref.Areas {
		for _, dep := range p.unsettled(ref.Sheet, area) {
			p.visit(dep)
		}
	}
}

// unsettled returns the dirty or evaluating formula cells whose value
// shows up in area: cells inside it and origins of spills reaching it.
func (p *pass) unsettled(sheet value.SheetID, area value.Area) []*formulaCell {
	w := p.w
	sh := w.sheet(sheet)
	if sh == nil {
		return nil
	}
	set := make(map[value.CellRef]*formulaCell)
	add := func(fc *formulaCell) {
		if fc != nil && (fc.state == StateDirty || fc.state == StateEvaluating) {
			set[fc.ref] = fc
		}
	}
	if area.Size() <= uint64(len(sh.formulas)) {
		forEachCell(area, func(a value.Addr) {
			add(sh.formulas[a.Pack()])
		})
	} else {
		for _, fc := range sh.formulas {
			if area.Contains(fc.ref.Addr) {
				add(fc)
			}
		}
	}
	for _, origin := range w.spills.originsIn(sheet, area) {
		add(w.formulaAt(origin))
	}

	out := make([]*formulaCell, 0, len(set))
	for _, fc := range set {
		out = append(out, fc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ref.Less(out[j].ref) })
	return out
}

// pending returns the unsettled cells behind the references an
// evaluation read.
func (p *pass) pending(observed []*value.Reference) []*formulaCell {
	var out []*formulaCell
	seen := make(map[value.CellRef]bool)
	for _, ref := range observed {
		for _, area := range ref.Areas {
			for _, fc := range p.unsettled(ref.Sheet, area) {
				if !seen[fc.ref] {
					seen[fc.ref] = true
					out = append(out, fc)
				}
			}
		}
	}
	return out
}

func (p *pass) count(fc *formulaCell, out outcome) {
	p.evals[fc.ref]++
	p.report.Evaluated++
	if out.vm {
		p.report.VM++
	} else {
		p.report.Tree++
	}
}

// cycle records the circular reference closed by revisiting fc. Every
// member shows #CALC! at once so cells reading the cycle see the error.
func (p *pass) cycle(fc *formulaCell) {
	start := -1
	for i, s := range p.stack {
		if s == fc {
			start = i
			break
		}
	}
	if start < 0 {
		return
	}
	members := p.stack[start:]

	path := make([]string, 0, len(members)+1)
	keys := make([]string, 0, len(members))
	for _, m := range members {
		name := p.w.cellName(m.ref)
		path = append(path, name)
		keys = append(keys, name)
		if !p.cyclic[m.ref] {
			p.cyclic[m.ref] = true
			p.show(m, value.Error(value.ErrCalc))
		}
	}
	path = append(path, p.w.cellName(fc.ref))

	sort.Strings(keys)
	key := strings.Join(keys, ",")
	if p.cycles[key] {
		return
	}
	p.cycles[key] = true

	text := formatCycle(path)
	err := NewError(ErrCodeCycle, "circular reference: "+text, nil).
		WithCell(path[0]).
		WithOperation("Recalculate").
		WithDetail("path", path)
	p.report.Cycles = append(p.report.Cycles, err)
	p.w.tel.Metrics.RecordError(string(ErrCodeCycle))
	p.log.WithCell(path[0]).WithField("path", text).Warn("Circular reference")
	if perr := p.w.tel.Events.PublishCycleDetected(p.report.PassID, path[0], text); perr != nil {
		p.log.WithError(perr).Debug("Event dropped")
	}
}

// diverged settles a cell that kept being re-evaluated.
func (p *pass) diverged(fc *formulaCell) {
	name := p.w.cellName(fc.ref)
	err := NewError(ErrCodeCycle, "value does not converge: "+name, nil).
		WithCell(name).
		WithOperation("Recalculate").
		WithDetail("evaluations", p.evals[fc.ref])
	p.report.Cycles = append(p.report.Cycles, err)
	p.w.tel.Metrics.RecordError(string(ErrCodeCycle))
	p.log.WithCell(name).Warn("Cell does not converge")
	p.settle(fc)
}

// settle leaves fc holding #CALC! without a spill.
func (p *pass) settle(fc *formulaCell) {
	w := p.w
	fc.result = value.Error(value.ErrCalc)
	p.show(fc, fc.result)
	fc.state = StateError
	delete(w.dirty, fc.ref)

	freed := w.spills.release(fc.ref)
	w.spills.unblock(fc.ref)
	for _, c := range freed {
		p.changed[c] = struct{}{}
		p.redirtied += w.spillChanged(c, fc.ref)
	}
}

func (p *pass) commit(fc *formulaCell, out outcome) {
	w := p.w
	w.graph.setDynamic(fc.ref, out.observed)
	fc.result = out.value

	display, touched := p.applySpill(fc, out.value)
	fc.state = StateClean
	delete(w.dirty, fc.ref)
	p.show(fc, display)

	for _, c := range touched {
		p.changed[c] = struct{}{}
		p.redirtied += w.spillChanged(c, fc.ref)
	}
}

// show sets the displayed value of fc and records a change.
func (p *pass) show(fc *formulaCell, v value.Value) {
	if !value.Identical(fc.value, v) {
		p.changed[fc.ref] = struct{}{}
	}
	fc.value = v
}

// applySpill places an array result. It returns what the origin shows
// and the cells whose spill ownership changed.
func (p *pass) applySpill(fc *formulaCell, v value.Value) (value.Value, []value.CellRef) {
	w := p.w
	origin := fc.ref

	if v.Kind() != value.KindArray || v.Array().IsScalar() {
		w.spills.unblock(origin)
		return displayed(value.Scalar(v)), w.spills.release(origin)
	}

	arr := v.Array()
	sh := w.sheet(origin.Sheet)
	end, ok := origin.Addr.Offset(int64(arr.Rows-1), int64(arr.Cols-1))
	if !ok || end.Row >= sh.rows || end.Col >= sh.cols {
		freed := w.spills.release(origin)
		w.spills.unblock(origin)
		p.spillBlocked(fc, "sheet edge")
		return value.Error(value.ErrSpill), freed
	}

	want := value.NewArea(origin.Addr, end)
	if blocker, found := w.spillBlocker(origin, want); found {
		freed := w.spills.release(origin)
		w.spills.block(origin, want)
		p.spillBlocked(fc, w.cellName(blocker))
		return value.Error(value.ErrSpill), freed
	}

	touched := w.spills.claim(origin, want)
	sh.grow(want)
	return displayed(arr.At(0, 0)), touched
}

func (p *pass) spillBlocked(fc *formulaCell, blocker string) {
	p.blocked[fc.ref] = struct{}{}
	name := p.w.cellName(fc.ref)
	p.w.tel.Metrics.RecordSpillBlocked()
	p.log.WithCell(name).WithField("blocker", blocker).Debug("Spill blocked")
	if err := p.w.tel.Events.PublishSpillBlocked(p.report.PassID, name, blocker); err != nil {
		p.log.WithError(err).Debug("Event dropped")
	}
}

// spillBlocker returns the first cell of area, in row-major order, that
// keeps origin from spilling: an external override, a formula, a
// non-blank literal or another spill.
func (w *Workbook) spillBlocker(origin value.CellRef, area value.Area) (value.CellRef, bool) {
	sh := w.sheet(origin.Sheet)
	var blocker value.CellRef
	found := false
	forEachCell(area, func(a value.Addr) {
		if found || a == origin.Addr {
			return
		}
		c := value.CellRef{Sheet: origin.Sheet, Addr: a}
		key := a.Pack()
		_, external := w.view.ExternalValue(c)
		lit, hasLit := sh.values[key]
		owner, owned := w.spills.owner(c)
		if external || sh.formulas[key] != nil || (hasLit && !lit.IsBlank()) || (owned && owner != origin) {
			blocker, found = c, true
		}
	})
	return blocker, found
}

// displayed is what a cell shows for a scalar result. A formula
// producing blank shows 0.
func displayed(v value.Value) value.Value {
	if v.IsBlank() {
		return value.Number(0)
	}
	return v
}

func (p *pass) finish() {
	r := p.report
	r.Changed = sortedCells(p.changed)

	blocked := make(map[value.CellRef]struct{})
	for origin := range p.blocked {
		fc := p.w.formulaAt(origin)
		if fc != nil && fc.value.IsError() && fc.value.Err() == value.ErrSpill {
			blocked[origin] = struct{}{}
		}
	}
	r.SpillsBlocked = sortedCells(blocked)
	if len(r.SpillsBlocked) > 0 {
		p.log.WithField("origins", len(r.SpillsBlocked)).Warn("Spills blocked")
	}
}
