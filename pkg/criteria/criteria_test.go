package criteria

import (
	"testing"

	"github.com/gridcalc/gridcalc/pkg/value"
)

func mustParse(t *testing.T, v value.Value) *Criteria {
	t.Helper()
	c, ek := Parse(v)
	if ek != value.NoError {
		t.Fatalf("Expected criteria for %v, got error %v", v, ek)
	}
	return c
}

func TestParse_BlankMatchesEmptyText(t *testing.T) {
	c := mustParse(t, value.Blank())
	if !c.Matches(value.Text("")) {
		t.Errorf("Expected blank criteria to match empty text")
	}
	if !c.Matches(value.Blank()) {
		t.Errorf("Expected blank criteria to match blank")
	}
	if c.Matches(value.Number(0)) {
		t.Errorf("Expected blank criteria not to match 0")
	}
}

func TestParse_NotEqualEmpty(t *testing.T) {
	c := mustParse(t, value.Text("<>"))
	if c.Op != Ne || !c.Operand.IsBlank() {
		t.Fatalf("Expected <> with blank operand, got %v %v", c.Op, c.Operand)
	}
	for _, v := range []value.Value{value.Number(0), value.Text("x"), value.Bool(false), value.Error(value.ErrNA)} {
		if !c.Matches(v) {
			t.Errorf("Expected <> to match %v", v)
		}
	}
	for _, v := range []value.Value{value.Blank(), value.Text("")} {
		if c.Matches(v) {
			t.Errorf("Expected <> not to match %v", v)
		}
	}
}

func TestParse_EmptyInequalityRejected(t *testing.T) {
	for _, s := range []string{">", "<", ">=", "<="} {
		if _, ek := Parse(value.Text(s)); ek != value.ErrValue {
			t.Errorf("Expected #VALUE! for %q, got %v", s, ek)
		}
	}
}

func TestParse_RejectsNonScalars(t *testing.T) {
	arr := value.Row(value.Number(1), value.Number(2))
	ref := value.FromReference(value.CellReference(value.Cell(1, 0, 0)))
	lam := value.FromLambda(&value.Lambda{Params: []string{"X"}})
	for _, v := range []value.Value{arr, ref, lam} {
		if _, ek := Parse(v); ek != value.ErrValue {
			t.Errorf("Expected #VALUE! for %v, got %v", v.Kind(), ek)
		}
	}
}

func TestParse_OperandOrder(t *testing.T) {
	tests := []struct {
		in   string
		op   Op
		kind value.Kind
	}{
		{">5", Gt, value.KindNumber},
		{"<=2.5", Le, value.KindNumber},
		{"=#N/A", Eq, value.KindError},
		{"<>TRUE", Ne, value.KindBool},
		{"FALSE", Eq, value.KindBool},
		{"false", Eq, value.KindText},
		{"<>True", Ne, value.KindText},
		{"12", Eq, value.KindNumber},
		{"ap*", Eq, value.KindText},
		{">=m", Ge, value.KindText},
	}
	for _, tt := range tests {
		c := mustParse(t, value.Text(tt.in))
		if c.Op != tt.op || c.Operand.Kind() != tt.kind {
			t.Errorf("%q: expected %v/%v, got %v/%v", tt.in, tt.op, tt.kind, c.Op, c.Operand.Kind())
		}
	}
}

func TestCriteria_Matches_Numbers(t *testing.T) {
	c := mustParse(t, value.Text(">2"))
	tests := []struct {
		in   value.Value
		want bool
	}{
		{value.Number(3), true},
		{value.Number(2), false},
		{value.Text("10"), true},
		{value.Text("abc"), false},
		{value.Blank(), false},
		{value.Bool(true), false},
	}
	for _, tt := range tests {
		if got := c.Matches(tt.in); got != tt.want {
			t.Errorf("Matches(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}

	zero := mustParse(t, value.Number(0))
	if !zero.Matches(value.Blank()) {
		t.Errorf("Expected 0 to match blank")
	}
}

func TestCriteria_Matches_Bool(t *testing.T) {
	c := mustParse(t, value.Bool(false))
	if !c.Matches(value.Blank()) {
		t.Errorf("Expected FALSE to match blank")
	}
	if !c.Matches(value.Text("FALSE")) {
		t.Errorf("Expected FALSE to match text \"FALSE\"")
	}
	if c.Matches(value.Text("no")) {
		t.Errorf("Expected FALSE not to match \"no\"")
	}
	if c.Matches(value.Number(0)) {
		t.Errorf("Expected FALSE not to match 0")
	}
}

func TestCriteria_Matches_BoolTextIsCaseSensitive(t *testing.T) {
	tests := []struct {
		criterion value.Value
		candidate value.Value
		want      bool
	}{
		{value.Bool(true), value.Text("TRUE"), true},
		{value.Bool(true), value.Text("true"), false},
		{value.Bool(true), value.Text("True"), false},
		{value.Bool(false), value.Text("false"), false},
		{value.Text("TRUE"), value.Text("TRUE"), true},
		{value.Text("TRUE"), value.Text("true"), false},
		{value.Text("<>TRUE"), value.Text("true"), true},
		{value.Text("true"), value.Text("TRUE"), true},
		{value.Text("true"), value.Bool(true), false},
	}
	for _, tt := range tests {
		c := mustParse(t, tt.criterion)
		if got := c.Matches(tt.candidate); got != tt.want {
			t.Errorf("Parse(%v).Matches(%v) = %v, want %v", tt.criterion, tt.candidate, got, tt.want)
		}
	}
}

func TestCriteria_Matches_Wildcards(t *testing.T) {
	tests := []struct {
		pattern string
		in      string
		want    bool
	}{
		{"ap*", "Apple", true},
		{"ap*", "grape", false},
		{"?at", "cat", true},
		{"?at", "coat", false},
		{"*~*", "5*", true},
		{"*~*", "55", false},
		{"a~?", "a?", true},
		{"a~?", "ab", false},
		{"STRASSE", "strasse", true},
		{"[x]", "[X]", true},
		{"{a,b}", "{A,B}", true},
	}
	for _, tt := range tests {
		c := mustParse(t, value.Text(tt.pattern))
		if got := c.Matches(value.Text(tt.in)); got != tt.want {
			t.Errorf("%q matches %q = %v, want %v", tt.pattern, tt.in, got, tt.want)
		}
	}
}

func TestCriteria_Matches_TextInequality(t *testing.T) {
	c := mustParse(t, value.Text("<m"))
	if !c.Matches(value.Text("Apple")) {
		t.Errorf("Expected Apple < m")
	}
	if c.Matches(value.Text("zebra")) {
		t.Errorf("Expected zebra not < m")
	}
	if c.Matches(value.Number(1)) {
		t.Errorf("Expected numbers never to satisfy text inequality")
	}
}

func TestCriteria_Matches_Errors(t *testing.T) {
	c := mustParse(t, value.Text("#DIV/0!"))
	if !c.Matches(value.Error(value.ErrDiv0)) {
		t.Errorf("Expected #DIV/0! to match")
	}
	if c.Matches(value.Error(value.ErrNA)) {
		t.Errorf("Expected #N/A not to match #DIV/0!")
	}
	ne := mustParse(t, value.Text("<>#N/A"))
	if !ne.Matches(value.Number(1)) {
		t.Errorf("Expected <>#N/A to match a number")
	}
}

func TestCriteria_SumIfScenario(t *testing.T) {
	c := mustParse(t, value.Text(">2"))
	keys := []float64{1, 2, 3, 4}
	sums := []float64{10, 20, 30, 40}
	total := 0.0
	for i, k := range keys {
		if c.Matches(value.Number(k)) {
			total += sums[i]
		}
	}
	if total != 70 {
		t.Errorf("Expected 70, got %v", total)
	}
}
