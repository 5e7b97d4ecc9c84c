package vm

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gridcalc/gridcalc/pkg/compiler"
	"github.com/gridcalc/gridcalc/pkg/eval"
	"github.com/gridcalc/gridcalc/pkg/formula"
	"github.com/gridcalc/gridcalc/pkg/functions"
	"github.com/gridcalc/gridcalc/pkg/value"
)

type gridHost struct {
	cells map[value.CellRef]value.Value
}

func newGridHost() *gridHost {
	h := &gridHost{cells: map[value.CellRef]value.Value{}}
	for r := uint32(0); r < 5; r++ {
		h.cells[value.Cell(1, r, 0)] = value.Number(float64(r + 1))
		h.cells[value.Cell(1, r, 1)] = value.Text(strings.Repeat("x", int(r)))
	}
	h.cells[value.Cell(1, 0, 2)] = value.Text("A3")
	return h
}

func (h *gridHost) CellValue(c value.CellRef) value.Value { return h.cells[c] }
func (h *gridHost) UsedRange(value.SheetID) (uint32, uint32) {
	return 5, 3
}
func (h *gridHost) SheetID(name string) (value.SheetID, bool) {
	return 1, strings.EqualFold(name, "Sheet1")
}
func (h *gridHost) SheetDimensions(value.SheetID) (uint32, uint32) { return 1000, 50 }
func (h *gridHost) TablesAt(value.SheetID, value.Addr) []string     { return nil }
func (h *gridHost) ResolveName(_ value.SheetID, name string, _ bool) (compiler.Expr, bool) {
	if strings.EqualFold(name, "Rate") {
		return &compiler.Literal{Value: value.Number(0.25)}, true
	}
	return nil, false
}
func (h *gridHost) ResolveTable(formula.TableSpec, value.CellRef) (*value.Reference, bool) {
	return nil, false
}
func (h *gridHost) SpillExtent(value.CellRef) (*value.Reference, bool) { return nil, false }
func (h *gridHost) DateSystem() functions.DateSystem                 { return functions.Date1900 }
func (h *gridHost) Now() time.Time {
	return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
}

var caller = value.Cell(1, 9, 9)

func compileText(t *testing.T, h *gridHost, text string) compiler.Expr {
	t.Helper()
	f, err := formula.Parse(text, nil)
	if err != nil {
		t.Fatalf("Expected %q to parse, got: %v", text, err)
	}
	expr, err := compiler.CompileFormula(f, compiler.Env{Sheet: 1, Cell: caller.Addr, Catalog: h})
	if err != nil {
		t.Fatalf("Expected %q to compile, got: %v", text, err)
	}
	return expr
}

func TestEmit_RefusesScopedExpressions(t *testing.T) {
	h := newGridHost()
	for _, text := range []string{
		"=LET(x, 1, x)",
		"=LAMBDA(x, x)(1)",
		"=MyFunc(1)",
		"=MAP(A1:A3, LAMBDA(v, v))",
	} {
		if _, err := Emit(compileText(t, h, text)); !errors.Is(err, ErrNotCompilable) {
			t.Errorf("Expected %s to be refused, got %v", text, err)
		}
	}
}

func TestEmit_Disassembly(t *testing.T) {
	h := newGridHost()
	p, err := Emit(compileText(t, h, "=SUM(A1:A5, 2)*-B1"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	dis := p.String()
	for _, want := range []string{"load-ref", "call", "SUM/2", "unary", "binary", "return"} {
		if !strings.Contains(dis, want) {
			t.Errorf("Expected disassembly to contain %q:\n%s", want, dis)
		}
	}
	if p.MaxStack != 2 {
		t.Errorf("Expected max stack 2, got %d", p.MaxStack)
	}
}

func TestRun_MatchesTreeWalker(t *testing.T) {
	h := newGridHost()
	ev := eval.New(h, eval.Options{})
	formulas := []string{
		"=1+2*3",
		"=-2^2",
		"=SUM(A1:A5)",
		"=SUM(A:A)",
		"=A1:A3*10",
		"={1,2;3,4}+1",
		"={1,A2;A3,4}",
		`=A1&"-"&B3`,
		"=IF(A1>0, \"pos\", 1/0)",
		"=IF(A1:A3>1, A1:A3, 0)",
		"=IFERROR(1/0, Rate)",
		"=CHOOSE(2, A1, A2, A3)",
		"=INDIRECT(C1)+1",
		"=SUM(A1:INDEX(A1:A5, 3))",
		"=SUM((A1, A3:A4))",
		"=SUMIF(A1:A5, \">2\")",
		"=COUNTIF(B1:B5, \"x*\")",
		"=UNKNOWNNAME",
		"=ROUND(2.345, 2)",
		"=SEQUENCE(2, 3)",
		"=TODAY()",
		"=XLOOKUP(3, A1:A5, B1:B5)",
	}
	for _, text := range formulas {
		t.Run(text, func(t *testing.T) {
			expr := compileText(t, h, text)
			want := ev.Evaluate(expr, caller)

			p, err := Emit(expr)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			f := ev.Frame(caller)
			got := f.Result(p.Run(f))
			if !value.Identical(got, want.Value) {
				t.Errorf("Expected %s, got %s", want.Value, got)
			}
			if len(f.Observed()) != len(want.Observed) {
				t.Errorf("Expected %d observed references, got %d", len(want.Observed), len(f.Observed()))
			}
		})
	}
}

func TestCache_LoadAndInvalidate(t *testing.T) {
	h := newGridHost()
	c := NewCache()

	a, keyA, err := c.Load(compileText(t, h, "=SUM(A1:A5)"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	b, keyB, _ := c.Load(compileText(t, h, "=sum(A1:A5)"))
	if a != b || keyA != keyB {
		t.Error("Expected equal expressions to share one program")
	}
	if _, _, err := c.Load(compileText(t, h, "=A1*2")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if c.Len() != 2 {
		t.Errorf("Expected 2 programs, got %d", c.Len())
	}

	c.Invalidate(keyA)
	if _, ok := c.Get(keyA); ok {
		t.Error("Expected program to be dropped")
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 program, got %d", c.Len())
	}

	_, _, err = c.Load(compileText(t, h, "=LET(x, 1, x)"))
	if !errors.Is(err, ErrNotCompilable) {
		t.Errorf("Expected ErrNotCompilable, got %v", err)
	}
	if c.Len() != 1 {
		t.Errorf("Expected refused programs not to be cached, got %d", c.Len())
	}

	c.Reset()
	if c.Len() != 0 {
		t.Errorf("Expected empty cache, got %d", c.Len())
	}
}

func TestCache_ConcurrentReaders(t *testing.T) {
	h := newGridHost()
	c := NewCache()
	expr := compileText(t, h, "=SUM(A1:A5)*2")
	ev := eval.New(h, eval.Options{})

	var wg sync.WaitGroup
	results := make([]value.Value, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, _, err := c.Load(expr)
			if err != nil {
				t.Errorf("Expected no error, got: %v", err)
				return
			}
			f := ev.Frame(caller)
			results[i] = f.Result(p.Run(f))
		}(i)
	}
	wg.Wait()

	for i, v := range results {
		if v.Num() != 30 {
			t.Errorf("Expected reader %d to get 30, got %s", i, v)
		}
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 program, got %d", c.Len())
	}
}
