package functions

import (
	"math"
	"testing"
	"time"

	"github.com/gridcalc/gridcalc/pkg/value"
)

// testContext serves cell values from a map and applies lambdas whose
// bodies are Go closures.
type testContext struct {
	cells    map[value.CellRef]value.Value
	observed []*value.Reference
	sheets   map[string]value.SheetID
	dates    DateSystem
	now      time.Time
}

func newTestContext() *testContext {
	return &testContext{
		cells:  map[value.CellRef]value.Value{},
		sheets: map[string]value.SheetID{"Sheet1": 1, "Data": 2},
		now:    time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC),
	}
}

func (c *testContext) set(a1 string, v value.Value) {
	addr, ok := value.ParseA1(a1)
	if !ok {
		panic("bad address " + a1)
	}
	c.cells[value.CellRef{Sheet: 1, Addr: addr}] = v
}

func (c *testContext) ref(a1 string) value.Value {
	from, to := a1, a1
	for i := range a1 {
		if a1[i] == ':' {
			from, to = a1[:i], a1[i+1:]
		}
	}
	start, _ := value.ParseA1(from)
	end, _ := value.ParseA1(to)
	return value.FromReference(value.NewReference(1, value.NewArea(start, end)))
}

func (c *testContext) Caller() value.CellRef { return value.Cell(1, 9, 9) }

func (c *testContext) Deref(v value.Value) value.Value {
	if v.Kind() != value.KindReference {
		return v
	}
	area := v.Ref().First()
	out, _ := value.NewArray(area.Rows(), area.Cols())
	for r := 0; r < area.Rows(); r++ {
		for col := 0; col < area.Cols(); col++ {
			cell := value.Cell(v.Ref().Sheet, area.Start.Row+uint32(r), area.Start.Col+uint32(col))
			out.Set(r, col, c.cells[cell])
		}
	}
	if out.IsScalar() {
		return out.At(0, 0)
	}
	return value.FromArray(out)
}

func (c *testContext) Observe(ref *value.Reference) { c.observed = append(c.observed, ref) }

func (c *testContext) SheetID(name string) (value.SheetID, bool) {
	id, ok := c.sheets[name]
	return id, ok
}

func (c *testContext) SheetDimensions(value.SheetID) (uint32, uint32) {
	return value.DefaultMaxRows, value.MaxCols
}

func (c *testContext) Apply(fn value.Value, args []value.Value) value.Value {
	body := fn.Lambda().Body.(func([]value.Value) value.Value)
	return body(args)
}

func (c *testContext) DateSystem() DateSystem { return c.dates }
func (c *testContext) Now() time.Time         { return c.now }

func goLambda(params []string, body func([]value.Value) value.Value) value.Value {
	return value.FromLambda(&value.Lambda{Params: params, Body: body})
}

func call(t *testing.T, ctx Context, name string, args ...value.Value) value.Value {
	t.Helper()
	b, ok := Lookup(name)
	if !ok {
		t.Fatalf("Expected builtin %s to be registered", name)
	}
	return Call(ctx, b, args)
}

func num(n float64) value.Value { return value.Number(n) }
func text(s string) value.Value { return value.Text(s) }

func row(vs ...float64) value.Value {
	out := make([]value.Value, len(vs))
	for i, v := range vs {
		out[i] = num(v)
	}
	return value.Row(out...)
}

func expectNumber(t *testing.T, got value.Value, want float64) {
	t.Helper()
	if got.Kind() != value.KindNumber {
		t.Fatalf("Expected number %v, got %v (%v)", want, got, got.Kind())
	}
	if math.Abs(got.Num()-want) > 1e-9 {
		t.Errorf("Expected %v, got %v", want, got.Num())
	}
}

func expectError(t *testing.T, got value.Value, want value.ErrorKind) {
	t.Helper()
	if !got.IsError() || got.Err() != want {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func expectArray(t *testing.T, got value.Value, want string) {
	t.Helper()
	if got.String() != want {
		t.Errorf("Expected %s, got %s", want, got.String())
	}
}

func TestBinary_BroadcastRowByColumn(t *testing.T) {
	got := Binary(OpAdd, row(1, 2, 3), value.Column(num(10), num(20)))
	expectArray(t, got, "{11,12,13;21,22,23}")
}

func TestBinary_MismatchedShapes(t *testing.T) {
	got := Binary(OpMul, row(1, 2, 3), row(1, 2))
	expectArray(t, got, "{1,4,#N/A}")
}

func TestBinary_ErrorsAndPower(t *testing.T) {
	expectError(t, Binary(OpDiv, num(1), num(0)), value.ErrDiv0)
	expectError(t, Binary(OpPow, num(0), num(0)), value.ErrNum)
	expectError(t, Binary(OpAdd, text("x"), num(1)), value.ErrValue)
	expectNumber(t, Binary(OpAdd, text("2"), value.Bool(true)), 3)
	if got := Binary(OpEq, text("abc"), text("ABC")); !got.Truth() {
		t.Errorf("Expected case-insensitive equality, got %v", got)
	}
	expectNumber(t, Unary(OpPercent, num(50)), 0.5)
}

func TestSum_SkipsTextInRanges(t *testing.T) {
	ctx := newTestContext()
	ctx.set("A1", num(1))
	ctx.set("A2", text("2"))
	ctx.set("A3", value.Bool(true))
	ctx.set("A4", num(4))
	expectNumber(t, call(t, ctx, "SUM", ctx.ref("A1:A4")), 5)
	expectNumber(t, call(t, ctx, "SUM", text("2"), value.Bool(true)), 3)
	expectError(t, call(t, ctx, "SUM", text("x")), value.ErrValue)

	ctx.set("A5", value.Error(value.ErrNA))
	expectError(t, call(t, ctx, "SUM", ctx.ref("A1:A5")), value.ErrNA)
}

func TestSumIf_Scenario(t *testing.T) {
	ctx := newTestContext()
	got := call(t, ctx, "SUMIF", row(1, 2, 3, 4), text(">2"), row(10, 20, 30, 40))
	expectNumber(t, got, 70)
}

func TestSumIf_ArrayCriteriaLift(t *testing.T) {
	ctx := newTestContext()
	got := call(t, ctx, "COUNTIF", row(1, 2, 3, 4), value.Column(text(">1"), text(">3")))
	expectArray(t, got, "{3;1}")
}

func TestCountIf_BoolTextIsExact(t *testing.T) {
	ctx := newTestContext()
	got := call(t, ctx, "COUNTIF", value.Row(text("true"), text("TRUE"), value.Bool(true)), value.Bool(true))
	expectNumber(t, got, 2)
}

func TestSumIfs_RequiresMatchingShapes(t *testing.T) {
	ctx := newTestContext()
	got := call(t, ctx, "SUMIFS", row(1, 2, 3), row(1, 2, 3), text(">1"), row(1, 2), text(">0"))
	expectError(t, got, value.ErrValue)

	got = call(t, ctx, "SUMIFS", row(10, 20, 30), row(1, 2, 3), text(">1"), row(5, 5, 6), text("5"))
	expectNumber(t, got, 20)
}

func TestAverageIf_NoMatches(t *testing.T) {
	ctx := newTestContext()
	expectError(t, call(t, ctx, "AVERAGEIF", row(1, 2), text(">5")), value.ErrDiv0)
}

func TestRound_DecimalHalfUp(t *testing.T) {
	ctx := newTestContext()
	tests := []struct {
		fn     string
		x      float64
		digits float64
		want   float64
	}{
		{"ROUND", 2.675, 2, 2.68},
		{"ROUND", -2.5, 0, -3},
		{"ROUND", 1234.5, -2, 1200},
		{"ROUNDUP", 3.14159, 3, 3.142},
		{"ROUNDUP", -3.14159, 1, -3.2},
		{"ROUNDDOWN", 3.99, 0, 3},
		{"ROUNDDOWN", -3.99, 1, -3.9},
	}
	for _, tt := range tests {
		expectNumber(t, call(t, ctx, tt.fn, num(tt.x), num(tt.digits)), tt.want)
	}
}

func TestMod_SignFollowsDivisor(t *testing.T) {
	ctx := newTestContext()
	expectNumber(t, call(t, ctx, "MOD", num(-3), num(2)), 1)
	expectNumber(t, call(t, ctx, "MOD", num(3), num(-2)), -1)
	expectError(t, call(t, ctx, "MOD", num(3), num(0)), value.ErrDiv0)
}

func TestBinomDist_DegenerateProbabilities(t *testing.T) {
	ctx := newTestContext()
	expectNumber(t, call(t, ctx, "BINOM.DIST", num(0), num(5), num(0), value.Bool(false)), 1)
	expectNumber(t, call(t, ctx, "BINOM.DIST", num(2), num(5), num(0), value.Bool(false)), 0)
	expectNumber(t, call(t, ctx, "BINOM.DIST", num(5), num(5), num(1), value.Bool(false)), 1)
	expectNumber(t, call(t, ctx, "BINOM.DIST", num(4), num(5), num(1), value.Bool(true)), 0)
	expectNumber(t, call(t, ctx, "BINOM.DIST", num(3), num(10), num(0.5), value.Bool(false)), 0.1171875)
	expectError(t, call(t, ctx, "BINOM.DIST", num(3), num(10), num(1.5), value.Bool(false)), value.ErrNum)
	expectError(t, call(t, ctx, "BINOM.DIST", num(11), num(10), num(0.5), value.Bool(false)), value.ErrNum)
}

func TestNormDist(t *testing.T) {
	ctx := newTestContext()
	expectNumber(t, call(t, ctx, "NORM.S.DIST", num(0), value.Bool(true)), 0.5)
	expectNumber(t, call(t, ctx, "NORM.INV", num(0.5), num(10), num(2)), 10)
	expectError(t, call(t, ctx, "NORM.DIST", num(1), num(0), num(0), value.Bool(true)), value.ErrNum)
	expectError(t, call(t, ctx, "NORM.INV", num(1), num(0), num(1)), value.ErrNum)
}

func TestStatistics(t *testing.T) {
	ctx := newTestContext()
	expectNumber(t, call(t, ctx, "AVERAGE", row(2, 4, 6)), 4)
	expectNumber(t, call(t, ctx, "MEDIAN", row(5, 1, 3, 2)), 2.5)
	expectNumber(t, call(t, ctx, "VAR.S", row(1, 2, 3, 4)), 1.6666666666666667)
	expectError(t, call(t, ctx, "STDEV.S", num(1)), value.ErrDiv0)
	expectNumber(t, call(t, ctx, "MAX", row(-1, -5)), -1)
	expectNumber(t, call(t, ctx, "COUNT", row(1, 2), text("3"), text("x")), 3)

	ctx.set("B1", text(""))
	ctx.set("B2", num(0))
	expectNumber(t, call(t, ctx, "COUNTBLANK", ctx.ref("B1:B3")), 2)
	expectNumber(t, call(t, ctx, "COUNTA", ctx.ref("B1:B3")), 2)
}

func TestIfs_NoMatchIsNA(t *testing.T) {
	ctx := newTestContext()
	got := call(t, ctx, "IFS", value.Bool(false), num(1), value.Bool(false), num(2))
	expectError(t, got, value.ErrNA)
	expectNumber(t, call(t, ctx, "IFS", value.Bool(false), num(1), value.Bool(true), num(2)), 2)
}

func TestIf_ArrayCondition(t *testing.T) {
	ctx := newTestContext()
	cond := value.Row(value.Bool(true), value.Bool(false))
	expectArray(t, call(t, ctx, "IF", cond, text("y"), text("n")), `{"y","n"}`)
	expectError(t, call(t, ctx, "IF", text("maybe"), num(1)), value.ErrValue)
}

func TestIfError_And_Switch(t *testing.T) {
	ctx := newTestContext()
	expectNumber(t, call(t, ctx, "IFERROR", value.Error(value.ErrDiv0), num(0)), 0)
	expectError(t, call(t, ctx, "IFNA", value.Error(value.ErrDiv0), num(0)), value.ErrDiv0)
	expectArray(t, call(t, ctx, "IFERROR", value.Row(num(1), value.Error(value.ErrNum)), num(9)), "{1,9}")
	expectNumber(t, call(t, ctx, "SWITCH", text("b"), text("a"), num(1), text("B"), num(2), num(3)), 2)
	expectError(t, call(t, ctx, "SWITCH", num(9), num(1), num(2)), value.ErrNA)
}

func TestLogicalFolds(t *testing.T) {
	ctx := newTestContext()
	if got := call(t, ctx, "AND", value.Bool(true), num(1)); !got.Truth() {
		t.Errorf("Expected TRUE, got %v", got)
	}
	if got := call(t, ctx, "XOR", value.Bool(true), value.Bool(true)); got.Truth() {
		t.Errorf("Expected FALSE, got %v", got)
	}
	expectError(t, call(t, ctx, "OR", ctx.ref("Z1:Z3")), value.ErrValue)
}

func TestTextFunctions(t *testing.T) {
	ctx := newTestContext()
	tests := []struct {
		name string
		args []value.Value
		want string
	}{
		{"LEFT", []value.Value{text("Straße"), num(4)}, "Stra"},
		{"RIGHT", []value.Value{text("Straße"), num(2)}, "ße"},
		{"MID", []value.Value{text("abcdef"), num(2), num(3)}, "bcd"},
		{"UPPER", []value.Value{text("straße")}, "STRASSE"},
		{"TRIM", []value.Value{text("  a   b ")}, "a b"},
		{"REPT", []value.Value{text("ab"), num(3)}, "ababab"},
		{"CONCAT", []value.Value{row(1, 2), text("x")}, "12x"},
		{"TEXTJOIN", []value.Value{text("-"), value.Bool(true), value.Row(text("a"), text(""), text("b"))}, "a-b"},
	}
	for _, tt := range tests {
		got := call(t, ctx, tt.name, tt.args...)
		if got.Kind() != value.KindText || got.Str() != tt.want {
			t.Errorf("%s: expected %q, got %v", tt.name, tt.want, got)
		}
	}
	expectNumber(t, call(t, ctx, "LEN", text("Straße")), 6)
	expectNumber(t, call(t, ctx, "VALUE", text(" 12.5% ")), 0.125)
	expectError(t, call(t, ctx, "MID", text("a"), num(0), num(1)), value.ErrValue)
}

func TestLookup_IndexMatchVLookup(t *testing.T) {
	ctx := newTestContext()
	ctx.set("A1", text("apple"))
	ctx.set("A2", text("banana"))
	ctx.set("A3", text("cherry"))
	ctx.set("B1", num(1))
	ctx.set("B2", num(2))
	ctx.set("B3", num(3))

	expectNumber(t, call(t, ctx, "MATCH", text("BAN*"), ctx.ref("A1:A3"), num(0)), 2)
	expectNumber(t, call(t, ctx, "VLOOKUP", text("cherry"), ctx.ref("A1:B3"), num(2), value.Bool(false)), 3)
	expectError(t, call(t, ctx, "VLOOKUP", text("kiwi"), ctx.ref("A1:B3"), num(2), value.Bool(false)), value.ErrNA)
	expectError(t, call(t, ctx, "VLOOKUP", text("kiwi"), ctx.ref("A1:B3"), num(3)), value.ErrRef)
	expectNumber(t, call(t, ctx, "MATCH", num(2.5), ctx.ref("B1:B3")), 2)

	idx := call(t, ctx, "INDEX", ctx.ref("A1:B3"), num(2), num(2))
	if idx.Kind() != value.KindReference || idx.Ref().TopLeft().String() != value.Cell(1, 1, 1).String() {
		t.Fatalf("Expected reference to B2, got %v", idx)
	}
	expectNumber(t, ctx.Deref(idx), 2)
	expectError(t, call(t, ctx, "INDEX", ctx.ref("A1:B3"), num(4), num(1)), value.ErrRef)
}

func TestLookup_XLookup(t *testing.T) {
	ctx := newTestContext()
	keys := value.Column(num(10), num(20), num(30))
	vals := value.Column(text("a"), text("b"), text("c"))
	got := call(t, ctx, "XLOOKUP", num(25), keys, vals, text("none"), num(-1))
	if got.Str() != "b" {
		t.Errorf("Expected b, got %v", got)
	}
	got = call(t, ctx, "XLOOKUP", num(25), keys, vals, text("none"), num(1))
	if got.Str() != "c" {
		t.Errorf("Expected c, got %v", got)
	}
	got = call(t, ctx, "XLOOKUP", num(99), keys, vals, text("none"))
	if got.Str() != "none" {
		t.Errorf("Expected none, got %v", got)
	}
}

func TestLookup_IndirectObserves(t *testing.T) {
	ctx := newTestContext()
	got := call(t, ctx, "INDIRECT", text("Data!$B$2:C3"))
	if got.Kind() != value.KindReference {
		t.Fatalf("Expected reference, got %v", got)
	}
	if got.Ref().Sheet != 2 || got.Ref().First().Rows() != 2 {
		t.Errorf("Unexpected reference %v", got.Ref())
	}
	if len(ctx.observed) != 1 {
		t.Errorf("Expected 1 observed reference, got %d", len(ctx.observed))
	}
	expectError(t, call(t, ctx, "INDIRECT", text("Nope!A1")), value.ErrRef)

	rel := call(t, ctx, "INDIRECT", text("R[-1]C[1]"), value.Bool(false))
	if rel.Kind() != value.KindReference || rel.Ref().TopLeft() != value.Cell(1, 8, 10) {
		t.Errorf("Expected R1C1 reference relative to caller, got %v", rel)
	}
}

func TestLookup_Offset(t *testing.T) {
	ctx := newTestContext()
	got := call(t, ctx, "OFFSET", ctx.ref("A1"), num(1), num(2), num(2), num(3))
	if got.Kind() != value.KindReference {
		t.Fatalf("Expected reference, got %v", got)
	}
	area := got.Ref().First()
	if area.Start != (value.Addr{Row: 1, Col: 2}) || area.Rows() != 2 || area.Cols() != 3 {
		t.Errorf("Unexpected area %v", area)
	}
	expectError(t, call(t, ctx, "OFFSET", ctx.ref("A1"), num(-1), num(0)), value.ErrRef)
}

func TestDynamic_Sequence(t *testing.T) {
	ctx := newTestContext()
	expectArray(t, call(t, ctx, "SEQUENCE", num(2), num(2), num(1), num(1)), "{1,2;3,4}")
	expectArray(t, call(t, ctx, "SEQUENCE", num(3)), "{1;2;3}")
	expectError(t, call(t, ctx, "SEQUENCE", num(0)), value.ErrCalc)
}

func TestDynamic_FilterSortUnique(t *testing.T) {
	ctx := newTestContext()
	data := value.Column(num(3), num(1), num(2), num(1))
	keep := value.Column(value.Bool(true), value.Bool(false), value.Bool(true), value.Bool(true))
	expectArray(t, call(t, ctx, "FILTER", data, keep), "{3;2;1}")
	expectArray(t, call(t, ctx, "SORT", data), "{1;1;2;3}")
	expectArray(t, call(t, ctx, "SORT", data, num(1), num(-1)), "{3;2;1;1}")
	expectArray(t, call(t, ctx, "UNIQUE", data), "{3;1;2}")
	expectArray(t, call(t, ctx, "UNIQUE", data, value.Bool(false), value.Bool(true)), "{3;2}")
	none := value.Column(value.Bool(false), value.Bool(false), value.Bool(false), value.Bool(false))
	expectError(t, call(t, ctx, "FILTER", data, none), value.ErrCalc)
}

func TestLambdaHelpers(t *testing.T) {
	ctx := newTestContext()
	double := goLambda([]string{"X"}, func(a []value.Value) value.Value {
		return Binary(OpMul, a[0], num(2))
	})
	add := goLambda([]string{"A", "B"}, func(a []value.Value) value.Value {
		return Binary(OpAdd, a[0], a[1])
	})
	sum := goLambda([]string{"R"}, func(a []value.Value) value.Value {
		return fnSum(ctx, a)
	})

	expectArray(t, call(t, ctx, "MAP", row(1, 2, 3), double), "{2,4,6}")
	expectNumber(t, call(t, ctx, "REDUCE", num(0), row(1, 2, 3), add), 6)
	expectArray(t, call(t, ctx, "SCAN", num(0), row(1, 2, 3), add), "{1,3,6}")
	expectArray(t, call(t, ctx, "MAKEARRAY", num(2), num(2), add), "{2,3;3,4}")

	square, _ := value.ArrayFrom([][]value.Value{{num(1), num(2)}, {num(3), num(4)}})
	expectArray(t, call(t, ctx, "BYROW", value.FromArray(square), sum), "{3;7}")
	expectArray(t, call(t, ctx, "BYCOL", value.FromArray(square), sum), "{4,6}")
	expectError(t, call(t, ctx, "MAP", row(1), add), value.ErrValue)
}

func TestEngineering_TwosComplement(t *testing.T) {
	ctx := newTestContext()
	expectNumber(t, call(t, ctx, "BIN2DEC", text("1111111111")), -1)
	expectNumber(t, call(t, ctx, "BIN2DEC", text("111111111")), 511)
	expectNumber(t, call(t, ctx, "HEX2DEC", text("FFFFFFFFFF")), -1)
	expectNumber(t, call(t, ctx, "HEX2DEC", text("FFFFFFFFF")), 68719476735)
	expectNumber(t, call(t, ctx, "OCT2DEC", text("7777777770")), -8)
	expectError(t, call(t, ctx, "BIN2DEC", text("12")), value.ErrNum)
	expectError(t, call(t, ctx, "BIN2DEC", text("11111111111")), value.ErrNum)

	tests := []struct {
		name string
		args []value.Value
		want string
	}{
		{"DEC2BIN", []value.Value{num(-1)}, "1111111111"},
		{"DEC2BIN", []value.Value{num(5), num(8)}, "00000101"},
		{"DEC2HEX", []value.Value{num(255)}, "FF"},
		{"DEC2HEX", []value.Value{num(-2)}, "FFFFFFFFFE"},
		{"DEC2OCT", []value.Value{num(8)}, "10"},
		{"BIN2HEX", []value.Value{text("1111111111")}, "FFFFFFFFFF"},
		{"HEX2BIN", []value.Value{text("F")}, "1111"},
	}
	for _, tt := range tests {
		got := call(t, ctx, tt.name, tt.args...)
		if got.Str() != tt.want {
			t.Errorf("%s(%v): expected %s, got %v", tt.name, tt.args, tt.want, got)
		}
	}
	expectError(t, call(t, ctx, "DEC2BIN", num(512)), value.ErrNum)
	expectError(t, call(t, ctx, "DEC2BIN", num(5), num(2)), value.ErrNum)
}

func TestDates_1900System(t *testing.T) {
	ctx := newTestContext()
	expectNumber(t, call(t, ctx, "DATE", num(1900), num(1), num(1)), 1)
	expectNumber(t, call(t, ctx, "DATE", num(1900), num(3), num(1)), 61)
	expectNumber(t, call(t, ctx, "DATE", num(2024), num(1), num(31)), 45322)
	expectNumber(t, call(t, ctx, "DATE", num(2023), num(14), num(1)), 45323)
	expectNumber(t, call(t, ctx, "DAY", num(60)), 29)
	expectNumber(t, call(t, ctx, "MONTH", num(60)), 2)
	expectNumber(t, call(t, ctx, "YEAR", num(45322)), 2024)
	expectNumber(t, call(t, ctx, "EDATE", num(45322), num(1)), 45351)
	expectNumber(t, call(t, ctx, "EOMONTH", num(45322), num(1)), 45351)
	expectNumber(t, call(t, ctx, "EOMONTH", num(45322), num(-1)), 45291)
	expectNumber(t, call(t, ctx, "WEEKDAY", num(1)), 1)
	expectNumber(t, call(t, ctx, "WEEKDAY", num(45322), num(2)), 3)
	expectNumber(t, call(t, ctx, "TODAY"), 45366)
	expectNumber(t, call(t, ctx, "NOW"), 45366.5)
}

func TestDates_1904System(t *testing.T) {
	ctx := newTestContext()
	ctx.dates = Date1904
	expectNumber(t, call(t, ctx, "DATE", num(1904), num(1), num(1)), 0)
	expectNumber(t, call(t, ctx, "DATE", num(2024), num(1), num(31)), 45322-offset1904)
	expectNumber(t, call(t, ctx, "WEEKDAY", num(0)), 6)
	expectError(t, call(t, ctx, "DATE", num(1903), num(12), num(31)), value.ErrNum)
}

func TestCall_ArityMismatch(t *testing.T) {
	ctx := newTestContext()
	expectError(t, call(t, ctx, "ABS"), value.ErrValue)
	b, _ := Lookup("abs")
	if b == nil || b.Name != "ABS" {
		t.Errorf("Expected case-insensitive lookup")
	}
	if !b.AcceptsArgs(1) || b.AcceptsArgs(2) {
		t.Errorf("Unexpected arity for ABS")
	}
}
