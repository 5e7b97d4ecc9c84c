package engine

import (
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gridcalc/gridcalc/pkg/compiler"
	"github.com/gridcalc/gridcalc/pkg/eval"
	"github.com/gridcalc/gridcalc/pkg/formula"
	"github.com/gridcalc/gridcalc/pkg/functions"
	"github.com/gridcalc/gridcalc/pkg/locale"
	"github.com/gridcalc/gridcalc/pkg/telemetry"
	"github.com/gridcalc/gridcalc/pkg/value"
	"github.com/gridcalc/gridcalc/pkg/vm"
)

// Options configures a Workbook.
type Options struct {
	// Locale reads and writes formula text. Nil selects the canonical
	// locale.
	Locale *locale.Locale

	// Style is the reference notation formulas are written in.
	Style compiler.Style

	DateSystem functions.DateSystem

	// MaxDepth bounds nested name and lambda evaluation.
	MaxDepth int

	// MaxWorkers bounds the worker pool of parallel passes.
	MaxWorkers int

	// MaxArrayCells bounds the arrays this workbook's formulas produce.
	// Zero, or a value above the process ceiling value.MaxArrayCells,
	// selects that ceiling.
	MaxArrayCells int

	// Rows is the height of new sheets.
	Rows uint32

	// Clock backs NOW and TODAY.
	Clock func() time.Time

	// External shadows computed values and blocks spills.
	External ExternalSource

	Telemetry *telemetry.Telemetry
}

// DefaultOptions returns options with every limit at its default.
func DefaultOptions() Options {
	return Options{
		Locale:     locale.Canonical(),
		Style:      compiler.StyleA1,
		DateSystem: functions.Date1900,
		MaxDepth:   eval.DefaultMaxDepth,
		MaxWorkers: runtime.GOMAXPROCS(0),
		Rows:       value.DefaultMaxRows,
		Clock:      time.Now,
	}
}

// ExternalSource lets a host shadow cell values. An override wins over
// whatever the cell holds and blocks spills into the cell.
// Implementations must allow concurrent reads.
type ExternalSource interface {
	ExternalValue(c value.CellRef) (value.Value, bool)
}

type formulaCell struct {
	ref     value.CellRef
	src     *formula.Formula
	text    string
	expr    compiler.Expr
	feat    compiler.Features
	static  compiler.Precedents
	program *vm.Program
	key     string
	state   State

	// result is the sanitized outcome of the last evaluation and value is
	// what the cell shows: a spill origin shows its top-left element.
	result value.Value
	value  value.Value
}

// hazard reports whether the cell may read cells its static precedents
// do not cover. Such cells are kept out of parallel levels.
func (fc *formulaCell) hazard() bool {
	f := fc.feat
	return f.HasDynamicDeps() || f.Names || f.NameCalls || f.TableRefs
}

type sheet struct {
	id       value.SheetID
	name     string
	rows     uint32
	cols     uint32
	values   map[uint64]value.Value
	formulas map[uint64]*formulaCell

	// usedRows and usedCols are one past the furthest cell ever written.
	usedRows uint32
	usedCols uint32
}

func (s *sheet) grow(area value.Area) {
	if area.End.Row+1 > s.usedRows {
		s.usedRows = area.End.Row + 1
	}
	if area.End.Col+1 > s.usedCols {
		s.usedCols = area.End.Col + 1
	}
}

func (s *sheet) sortedFormulas() []*formulaCell {
	out := make([]*formulaCell, 0, len(s.formulas))
	for _, fc := range s.formulas {
		out = append(out, fc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ref.Less(out[j].ref) })
	return out
}

// Workbook is a mutable grid of sheets with incremental recalculation.
// Mutations mark cells dirty; Recalculate brings them up to date. All
// methods are safe for concurrent use and serialize on one lock.
type Workbook struct {
	mu   sync.Mutex
	id   string
	opts Options
	loc  *locale.Locale

	sheets []*sheet
	byName map[string]*sheet
	names  map[nameKey]*definedName
	tables map[string]*table

	graph    *graph
	spills   *spillManager
	cache    *vm.Cache
	programs map[string]int

	dirty    map[value.CellRef]*formulaCell
	volatile map[value.CellRef]*formulaCell
	external map[value.CellRef]value.Value
	// mutated is set by every mutation and cleared by Recalculate.
	mutated bool

	tel  *telemetry.Telemetry
	log  *telemetry.Logger
	view *view
	ev   *eval.Evaluator
}

// NewWorkbook creates an empty workbook. Zero option fields take their
// defaults.
func NewWorkbook(opts Options) *Workbook {
	def := DefaultOptions()
	if opts.Locale == nil {
		opts.Locale = def.Locale
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = def.MaxDepth
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = def.MaxWorkers
	}
	if opts.Rows == 0 {
		opts.Rows = def.Rows
	}
	if opts.Clock == nil {
		opts.Clock = def.Clock
	}
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.Nop()
	}
	w := &Workbook{
		id:       uuid.New().String(),
		opts:     opts,
		loc:      opts.Locale,
		byName:   make(map[string]*sheet),
		names:    make(map[nameKey]*definedName),
		tables:   make(map[string]*table),
		graph:    newGraph(),
		spills:   newSpillManager(),
		cache:    vm.NewCache(),
		programs: make(map[string]int),
		dirty:    make(map[value.CellRef]*formulaCell),
		volatile: make(map[value.CellRef]*formulaCell),
		external: make(map[value.CellRef]value.Value),
		tel:      opts.Telemetry,
	}
	w.log = opts.Telemetry.Logger.NewComponentLogger("engine").WithField("workbook", w.id)
	w.view = &view{w: w}
	w.ev = eval.New(w.view, eval.Options{
		MaxDepth:      opts.MaxDepth,
		MaxArrayCells: opts.MaxArrayCells,
	})
	w.opts.MaxArrayCells = w.ev.Options().MaxArrayCells
	return w
}

// ID returns the workbook's unique identifier.
func (w *Workbook) ID() string { return w.id }

// Locale returns the locale formula text is read and written in.
func (w *Workbook) Locale() *locale.Locale { return w.loc }

// Resolver returns the lock-free read view evaluation uses. It must not
// be used concurrently with mutations.
func (w *Workbook) Resolver() Resolver { return w.view }

// AddSheet appends a sheet and returns its id. Formulas and names that
// referred to the sheet before it existed are recompiled.
func (w *Workbook) AddSheet(name string) (value.SheetID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, "![]*?:/\\") {
		return 0, invalid("invalid sheet name %q", name).WithOperation("AddSheet")
	}
	key := value.FoldText(name)
	if _, exists := w.byName[key]; exists {
		return 0, invalid("sheet %q already exists", name).WithOperation("AddSheet")
	}

	sh := &sheet{
		id:       value.SheetID(len(w.sheets) + 1),
		name:     name,
		rows:     w.opts.Rows,
		cols:     value.MaxCols,
		values:   make(map[uint64]value.Value),
		formulas: make(map[uint64]*formulaCell),
	}
	w.sheets = append(w.sheets, sh)
	w.byName[key] = sh
	w.mutated = true

	w.recompileNames()
	w.recompileFormulas()
	w.log.WithField("sheet", name).Debug("Sheet added")
	return sh.id, nil
}

// Sheets returns the sheet names in id order.
func (w *Workbook) Sheets() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.sheets))
	for i, sh := range w.sheets {
		out[i] = sh.name
	}
	return out
}

// Cell parses "Sheet!A1", "'My Sheet'!$B$2" or "A1" (first sheet).
func (w *Workbook) Cell(ref string) (value.CellRef, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.parseCell(ref)
}

// CellName formats c as Sheet!A1.
func (w *Workbook) CellName(c value.CellRef) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cellName(c)
}

func (w *Workbook) parseCell(ref string) (value.CellRef, error) {
	sh, addr, err := w.splitSheet(ref)
	if err != nil {
		return value.CellRef{}, err
	}
	a, ok := value.ParseA1(strings.ReplaceAll(addr, "$", ""))
	if !ok {
		return value.CellRef{}, invalid("invalid cell address %q", ref)
	}
	if a.Row >= sh.rows || a.Col >= sh.cols {
		return value.CellRef{}, invalid("cell %q is outside the sheet", ref)
	}
	return value.CellRef{Sheet: sh.id, Addr: a}, nil
}

// parseArea parses "A1:C3" or a single cell on one sheet.
func (w *Workbook) parseArea(ref string) (*sheet, value.Area, error) {
	sh, addr, err := w.splitSheet(ref)
	if err != nil {
		return nil, value.Area{}, err
	}
	parts := strings.Split(strings.ReplaceAll(addr, "$", ""), ":")
	if len(parts) > 2 {
		return nil, value.Area{}, invalid("invalid range %q", ref)
	}
	start, ok := value.ParseA1(parts[0])
	if !ok {
		return nil, value.Area{}, invalid("invalid range %q", ref)
	}
	end := start
	if len(parts) == 2 {
		if end, ok = value.ParseA1(parts[1]); !ok {
			return nil, value.Area{}, invalid("invalid range %q", ref)
		}
	}
	area := value.NewArea(start, end)
	if area.End.Row >= sh.rows || area.End.Col >= sh.cols {
		return nil, value.Area{}, invalid("range %q is outside the sheet", ref)
	}
	return sh, area, nil
}

func (w *Workbook) splitSheet(ref string) (*sheet, string, error) {
	ref = strings.TrimSpace(ref)
	i := strings.LastIndexByte(ref, '!')
	if i < 0 {
		if len(w.sheets) == 0 {
			return nil, "", notFound("workbook has no sheets")
		}
		return w.sheets[0], ref, nil
	}
	name := ref[:i]
	if len(name) >= 2 && name[0] == '\'' && name[len(name)-1] == '\'' {
		name = strings.ReplaceAll(name[1:len(name)-1], "''", "'")
	}
	sh, ok := w.byName[value.FoldText(name)]
	if !ok {
		return nil, "", notFound("unknown sheet %q", name)
	}
	return sh, ref[i+1:], nil
}

func (w *Workbook) sheet(id value.SheetID) *sheet {
	if id == 0 || int(id) > len(w.sheets) {
		return nil
	}
	return w.sheets[id-1]
}

func (w *Workbook) sheetFor(c value.CellRef, op string) (*sheet, error) {
	sh := w.sheet(c.Sheet)
	if sh == nil {
		return nil, notFound("unknown sheet id %d", c.Sheet).WithOperation(op)
	}
	if c.Row >= sh.rows || c.Col >= sh.cols {
		return nil, invalid("cell is outside the sheet").WithCell(c.String()).WithOperation(op)
	}
	return sh, nil
}

func (w *Workbook) cellName(c value.CellRef) string {
	sh := w.sheet(c.Sheet)
	if sh == nil {
		return c.String()
	}
	return formula.FormatSheetName(sh.name, false) + "!" + c.Addr.String()
}

func (w *Workbook) formulaAt(c value.CellRef) *formulaCell {
	sh := w.sheet(c.Sheet)
	if sh == nil {
		return nil
	}
	return sh.formulas[c.Pack()]
}

// SetValue stores a literal. Blank clears the cell. Arrays, references
// and lambdas cannot be stored.
func (w *Workbook) SetValue(c value.CellRef, v value.Value) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	sh, err := w.sheetFor(c, "SetValue")
	if err != nil {
		return err
	}
	if err := storable(v); err != nil {
		return err.WithCell(w.cellName(c)).WithOperation("SetValue")
	}

	w.dropFormula(sh, c)
	key := c.Pack()
	if v.IsBlank() {
		delete(sh.values, key)
	} else {
		sh.values[key] = v
		sh.grow(value.SingleCell(c.Addr))
	}
	w.written(c)
	return nil
}

func storable(v value.Value) *Error {
	switch v.Kind() {
	case value.KindArray, value.KindReference, value.KindLambda, value.KindSpill:
		return invalid("cannot store a %s value in a cell", v.Kind())
	}
	return nil
}

// SetFormula parses text in the workbook locale and stores it in c. The
// cell is dirty until the next Recalculate.
func (w *Workbook) SetFormula(c value.CellRef, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	sh, err := w.sheetFor(c, "SetFormula")
	if err != nil {
		return err
	}
	f, err := formula.Parse(text, w.loc)
	if err != nil {
		return NewError(ErrCodeParse, "formula does not parse", err).
			WithCell(w.cellName(c)).WithOperation("SetFormula")
	}
	fc, err := w.compileCell(c, f)
	if err != nil {
		return NewError(ErrCodeCompile, "formula does not compile", err).
			WithCell(w.cellName(c)).WithOperation("SetFormula")
	}

	w.dropFormula(sh, c)
	delete(sh.values, c.Pack())
	w.install(sh, fc)
	w.setDirty(fc)
	w.written(c)
	return nil
}

// ClearFormula removes the formula in c, leaving the cell blank. Cells
// without a formula are left alone.
func (w *Workbook) ClearFormula(c value.CellRef) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	sh, err := w.sheetFor(c, "ClearFormula")
	if err != nil {
		return err
	}
	if sh.formulas[c.Pack()] == nil {
		return nil
	}
	w.dropFormula(sh, c)
	w.written(c)
	return nil
}

// ClearCell returns c to the default state. Sparse storage forgets it.
func (w *Workbook) ClearCell(c value.CellRef) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	sh, err := w.sheetFor(c, "ClearCell")
	if err != nil {
		return err
	}
	w.dropFormula(sh, c)
	delete(sh.values, c.Pack())
	w.written(c)
	return nil
}

// SetExternalValue installs a host override for c.
func (w *Workbook) SetExternalValue(c value.CellRef, v value.Value) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.sheetFor(c, "SetExternalValue"); err != nil {
		return err
	}
	if err := storable(v); err != nil {
		return err.WithCell(w.cellName(c)).WithOperation("SetExternalValue")
	}
	w.external[c] = v
	w.written(c)
	return nil
}

// ClearExternalValue removes the host override for c.
func (w *Workbook) ClearExternalValue(c value.CellRef) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.external[c]; !ok {
		return
	}
	delete(w.external, c)
	w.written(c)
}

// NotifyExternalChange tells the workbook that the ExternalSource from
// Options changed its answer for cells.
func (w *Workbook) NotifyExternalChange(cells ...value.CellRef) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range cells {
		w.written(c)
	}
}

// Value returns what c shows: a literal, a formula result, an element of
// a spill, an external override or Blank.
func (w *Workbook) Value(c value.CellRef) value.Value {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.view.CellValue(c)
}

// Formula returns the canonical text of the formula in c with a leading
// "=".
func (w *Workbook) Formula(c value.CellRef) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fc := w.formulaAt(c)
	if fc == nil {
		return "", false
	}
	return "=" + fc.text, true
}

// FormulaText renders the formula in c for loc. A nil loc uses the
// workbook locale.
func (w *Workbook) FormulaText(c value.CellRef, loc *locale.Locale) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fc := w.formulaAt(c)
	if fc == nil {
		return "", false
	}
	if loc == nil {
		loc = w.loc
	}
	return "=" + fc.src.Format(loc), true
}

// CellContent is what a cell stores, as opposed to what it shows.
type CellContent struct {
	Cell value.CellRef
	// Formula is the formula text in the workbook locale, with "=".
	// Empty for literal cells.
	Formula string
	// Value is the literal of a cell without a formula.
	Value value.Value
}

// Contents returns every stored literal and formula in sheet, row,
// column order. Computed values and external overrides are not included.
func (w *Workbook) Contents() []CellContent {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []CellContent
	for _, sh := range w.sheets {
		start := len(out)
		for key, v := range sh.values {
			out = append(out, CellContent{Cell: value.CellRef{Sheet: sh.id, Addr: value.UnpackAddr(key)}, Value: v})
		}
		for _, fc := range sh.formulas {
			out = append(out, CellContent{Cell: fc.ref, Formula: "=" + fc.src.Format(w.loc)})
		}
		part := out[start:]
		sort.Slice(part, func(i, j int) bool { return part[i].Cell.Less(part[j].Cell) })
	}
	return out
}

// State returns the recalculation state of the formula in c.
func (w *Workbook) State(c value.CellRef) (State, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fc := w.formulaAt(c)
	if fc == nil {
		return StateClean, false
	}
	return fc.state, true
}

// SpillExtent returns the range a spill origin currently fills.
func (w *Workbook) SpillExtent(origin value.CellRef) (*value.Reference, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	area, ok := w.spills.extent(origin)
	if !ok {
		return nil, false
	}
	return value.NewReference(origin.Sheet, area), true
}

// SpillOrigin returns the origin of the spill covering c. An origin is
// its own origin.
func (w *Workbook) SpillOrigin(c value.CellRef) (value.CellRef, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.spills.extent(c); ok {
		return c, true
	}
	return w.spills.owner(c)
}

// Precedents returns the static and last observed dynamic precedents of
// the formula in c.
func (w *Workbook) Precedents(c value.CellRef) []*value.Reference {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.graph.precedents(c)
}

// Dependents returns the formula cells reading c directly, in cell order.
func (w *Workbook) Dependents(c value.CellRef) []value.CellRef {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.graph.dependents(c.Sheet, value.SingleCell(c.Addr))
}

// ProgramCount returns the number of distinct bytecode programs cached.
func (w *Workbook) ProgramCount() int {
	return w.cache.Len()
}

// DependencyDOT renders every formula cell in Graphviz DOT format,
// grouped by dependency level.
func (w *Workbook) DependencyDOT() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var cells []*formulaCell
	for _, sh := range w.sheets {
		cells = append(cells, sh.sortedFormulas()...)
	}
	return buildLevels(cells, w.dependentsOf, nil).ToDOT(w.cellName)
}

func (w *Workbook) env(c value.CellRef, mode compiler.Mode) compiler.Env {
	return compiler.Env{
		Sheet:   c.Sheet,
		Cell:    c.Addr,
		Style:   w.opts.Style,
		Mode:    mode,
		Catalog: w.view,
	}
}

func (w *Workbook) compileCell(c value.CellRef, f *formula.Formula) (*formulaCell, error) {
	expr, err := compiler.CompileFormula(f, w.env(c, compiler.Offsets))
	if err != nil {
		return nil, err
	}
	fc := &formulaCell{ref: c, src: f, text: f.String(), state: StateDirty}
	w.attach(fc, expr)
	return fc, nil
}

// attach sets the compiled form of fc. Formulas the VM cannot run are
// left to the tree walker.
func (w *Workbook) attach(fc *formulaCell, expr compiler.Expr) {
	fc.expr = expr
	fc.feat = compiler.Analyze(expr)
	fc.static = compiler.References(expr, fc.ref)
	fc.program, fc.key = nil, ""
	if fc.feat.NeedsTreeWalker() {
		return
	}
	prog, key, err := w.cache.Load(expr)
	if err != nil {
		w.log.WithCell(w.cellName(fc.ref)).WithError(err).Debug("Formula left to the tree walker")
		return
	}
	fc.program, fc.key = prog, key
}

func (w *Workbook) install(sh *sheet, fc *formulaCell) {
	sh.formulas[fc.ref.Pack()] = fc
	sh.grow(value.SingleCell(fc.ref.Addr))
	w.link(fc)
}

// link registers the compiled form of fc: program reference count, static
// edges and volatility.
func (w *Workbook) link(fc *formulaCell) {
	if fc.key != "" {
		w.programs[fc.key]++
	}
	w.graph.setStatic(fc.ref, fc.static.Refs, fc.static.Spills)
	if fc.feat.Volatile {
		w.volatile[fc.ref] = fc
	} else {
		delete(w.volatile, fc.ref)
	}
}

func (w *Workbook) unlink(fc *formulaCell) {
	if fc.key == "" {
		return
	}
	w.programs[fc.key]--
	if w.programs[fc.key] <= 0 {
		delete(w.programs, fc.key)
		w.cache.Invalidate(fc.key)
	}
}

// dropFormula removes the formula in c with its edges and spill.
func (w *Workbook) dropFormula(sh *sheet, c value.CellRef) {
	fc := sh.formulas[c.Pack()]
	if fc == nil {
		return
	}
	w.unlink(fc)
	w.graph.remove(c)
	delete(w.dirty, c)
	delete(w.volatile, c)
	delete(sh.formulas, c.Pack())
	freed := w.spills.release(c)
	w.spills.unblock(c)
	for _, cell := range freed {
		w.spillChanged(cell, c)
	}
}

// recompileFormulas compiles every formula again and re-links those whose
// IR changed, such as references to a sheet that now exists.
func (w *Workbook) recompileFormulas() {
	for _, sh := range w.sheets {
		for _, fc := range sh.sortedFormulas() {
			expr, err := compiler.CompileFormula(fc.src, w.env(fc.ref, compiler.Offsets))
			if err != nil || compiler.Fingerprint(expr) == compiler.Fingerprint(fc.expr) {
				continue
			}
			w.unlink(fc)
			w.attach(fc, expr)
			w.link(fc)
			w.markDirty(fc)
		}
	}
}

// written records a mutation of c.
func (w *Workbook) written(c value.CellRef) {
	w.mutated = true
	w.touch(c)
}

// touch invalidates everything that may read a written cell: its
// dependents, the spill covering it and blocked spills that want it. It
// returns the number of formula cells newly marked dirty.
func (w *Workbook) touch(c value.CellRef) int {
	n := 0
	if origin, ok := w.spills.owner(c); ok {
		n += w.markDirty(w.formulaAt(origin))
	}
	return n + w.spillChanged(c, c)
}

// spillChanged invalidates the readers of a cell that a spill claimed or
// released, and the blocked spills other than self that want it.
func (w *Workbook) spillChanged(c, self value.CellRef) int {
	n := 0
	for _, origin := range w.spills.blockedBy(c.Sheet, value.SingleCell(c.Addr)) {
		if origin != self {
			n += w.markDirty(w.formulaAt(origin))
		}
	}
	return n + w.invalidate(c.Sheet, value.SingleCell(c.Addr))
}

func (w *Workbook) setDirty(fc *formulaCell) {
	fc.state = StateDirty
	w.dirty[fc.ref] = fc
}

// markDirty marks fc and its transitive dependents dirty. Cells already
// dirty or under evaluation are skipped.
func (w *Workbook) markDirty(fc *formulaCell) int {
	if fc == nil || fc.state == StateDirty || fc.state == StateEvaluating {
		return 0
	}
	w.setDirty(fc)
	sheet, area := w.outputs(fc)
	return 1 + w.invalidate(sheet, area)
}

// invalidate marks the transitive dependents of area dirty.
func (w *Workbook) invalidate(sheet value.SheetID, area value.Area) int {
	type span struct {
		sheet value.SheetID
		area  value.Area
	}
	n := 0
	queue := []span{{sheet, area}}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, dep := range w.graph.dependents(s.sheet, s.area) {
			fc := w.formulaAt(dep)
			if fc == nil || fc.state == StateDirty || fc.state == StateEvaluating {
				continue
			}
			w.setDirty(fc)
			n++
			sh, ar := w.outputs(fc)
			queue = append(queue, span{sh, ar})
		}
	}
	return n
}

// outputs is where the value of fc shows up: its cell and spill footprint.
func (w *Workbook) outputs(fc *formulaCell) (value.SheetID, value.Area) {
	if area, ok := w.spills.extent(fc.ref); ok {
		return fc.ref.Sheet, area
	}
	return fc.ref.Sheet, value.SingleCell(fc.ref.Addr)
}

// dependentsOf lists the formula cells reading the outputs of fc.
func (w *Workbook) dependentsOf(fc *formulaCell) []value.CellRef {
	sheet, area := w.outputs(fc)
	return w.graph.dependents(sheet, area)
}
