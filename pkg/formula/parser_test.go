package formula

import (
	"errors"
	"strings"
	"testing"

	"github.com/xuri/efp"

	"github.com/gridcalc/gridcalc/pkg/locale"
	"github.com/gridcalc/gridcalc/pkg/value"
)

func TestParse_Precedence(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"=1+2*3", "1+2*3"},
		{"=-2^2", "-2^2"},
		{"=2^3^2", "2^3^2"},
		{"=A1:B2", "A1:B2"},
		{"=50%", "50%"},
		{"=\"a\"&\"b\"=\"ab\"", "\"a\"&\"b\"=\"ab\""},
	}

	for _, tt := range tests {
		f, err := Parse(tt.text, nil)
		if err != nil {
			t.Fatalf("Parse(%s): expected no error, got: %v", tt.text, err)
		}
		if got := f.String(); got != tt.want {
			t.Errorf("Parse(%s): expected %s, got %s", tt.text, tt.want, got)
		}
	}
}

func TestParse_UnaryBindsTighterThanPower(t *testing.T) {
	f := MustParse("=-2^2")
	bin, ok := f.Root.(*Binary)
	if !ok || bin.Op != "^" {
		t.Fatalf("Expected ^ at the root, got %T", f.Root)
	}
	if _, ok := bin.Left.(*Unary); !ok {
		t.Errorf("Expected unary minus as the left operand, got %T", bin.Left)
	}
}

func TestParse_PowerIsLeftAssociative(t *testing.T) {
	f := MustParse("2^3^2")
	bin := f.Root.(*Binary)
	if _, ok := bin.Left.(*Binary); !ok {
		t.Errorf("Expected (2^3)^2, got right operand %T", bin.Right)
	}
}

func TestParse_References(t *testing.T) {
	f := MustParse("='My Sheet'!A1:B2+Sheet2!$C$3")
	bin := f.Root.(*Binary)

	rng, ok := bin.Left.(*Range)
	if !ok {
		t.Fatalf("Expected range, got %T", bin.Left)
	}
	sr, ok := rng.Left.(*SheetRef)
	if !ok || sr.Sheet != "My Sheet" || !sr.Quoted {
		t.Errorf("Expected quoted sheet 'My Sheet', got %+v", rng.Left)
	}

	sr2, ok := bin.Right.(*SheetRef)
	if !ok || sr2.Sheet != "Sheet2" {
		t.Fatalf("Expected Sheet2 reference, got %T", bin.Right)
	}
	if id := sr2.Target.(*Ident); id.Name != "$C$3" {
		t.Errorf("Expected $C$3, got %s", id.Name)
	}
}

func TestParse_FunctionCallAndMissingArgs(t *testing.T) {
	f := MustParse("=IF(A1,,2)")
	call, ok := f.Root.(*Call)
	if !ok {
		t.Fatalf("Expected call, got %T", f.Root)
	}
	if len(call.Args) != 3 {
		t.Fatalf("Expected 3 args, got %d", len(call.Args))
	}
	if _, ok := call.Args[1].(*Missing); !ok {
		t.Errorf("Expected missing second argument, got %T", call.Args[1])
	}
}

func TestParse_XlfnPrefixIsStripped(t *testing.T) {
	call := MustParse("=_xlfn.XLOOKUP(1,A1:A3,B1:B3)").Root.(*Call)
	if call.Name != "XLOOKUP" {
		t.Errorf("Expected XLOOKUP, got %s", call.Name)
	}
	if call.Original != "_xlfn.XLOOKUP" {
		t.Errorf("Expected original spelling to be kept, got %s", call.Original)
	}
}

func TestParse_GermanLocale(t *testing.T) {
	f, err := Parse("=SUMME(1,5;2.000;WAHR)", locale.German())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	call := f.Root.(*Call)
	if call.Name != "SUM" || call.Original != "SUMME" {
		t.Errorf("Expected SUM/SUMME, got %s/%s", call.Name, call.Original)
	}
	if n := call.Args[0].(*Number); n.Value != 1.5 {
		t.Errorf("Expected 1.5, got %v", n.Value)
	}
	if n := call.Args[1].(*Number); n.Value != 2000 {
		t.Errorf("Expected 2000, got %v", n.Value)
	}
	if b, ok := call.Args[2].(*Bool); !ok || !b.Value {
		t.Errorf("Expected WAHR to parse as TRUE, got %T", call.Args[2])
	}

	if got := f.String(); got != "SUM(1.5,2000,TRUE)" {
		t.Errorf("Expected canonical SUM(1.5,2000,TRUE), got %s", got)
	}
	if got := f.Format(locale.German()); got != "SUMME(1,5;2000;WAHR)" {
		t.Errorf("Expected localized SUMME(1,5;2000;WAHR), got %s", got)
	}
}

func TestParse_ArrayLiteral(t *testing.T) {
	arr, ok := MustParse("={1,2;3,4}").Root.(*Array)
	if !ok {
		t.Fatal("Expected array literal")
	}
	if len(arr.Rows) != 2 || len(arr.Rows[1]) != 2 {
		t.Errorf("Expected 2x2 array, got %d rows", len(arr.Rows))
	}

	de, err := Parse("={1;2|3;4}", locale.German())
	if err != nil {
		t.Fatalf("Expected German array to parse, got: %v", err)
	}
	if got := de.String(); got != "{1,2;3,4}" {
		t.Errorf("Expected {1,2;3,4}, got %s", got)
	}

	if _, err := Parse("={1,2;3}", nil); err == nil {
		t.Error("Expected ragged array to be rejected")
	}
}

func TestParse_StructuredReferences(t *testing.T) {
	tests := []struct {
		text string
		spec TableSpec
	}{
		{"Sales[Amount]", TableSpec{Table: "Sales", ColumnStart: "Amount"}},
		{"[@Qty]", TableSpec{Section: SectionThisRow, ColumnStart: "Qty"}},
		{"Sales[[#Headers],[Amount]]", TableSpec{Table: "Sales", Section: SectionHeaders, ColumnStart: "Amount"}},
		{"Sales[[A]:[B]]", TableSpec{Table: "Sales", ColumnStart: "A", ColumnEnd: "B"}},
		{"Sales[#All]", TableSpec{Table: "Sales", Section: SectionAll}},
		{"Sales[[Unit '[USD']]]", TableSpec{Table: "Sales", ColumnStart: "Unit [USD]"}},
	}

	for _, tt := range tests {
		f, err := Parse(tt.text, nil)
		if err != nil {
			t.Fatalf("Parse(%s): expected no error, got: %v", tt.text, err)
		}
		sr, ok := f.Root.(*StructRef)
		if !ok {
			t.Fatalf("Parse(%s): expected structured reference, got %T", tt.text, f.Root)
		}
		if sr.Spec != tt.spec {
			t.Errorf("Parse(%s): expected %+v, got %+v", tt.text, tt.spec, sr.Spec)
		}
		again := MustParse(f.String())
		if !Equal(f.Root, again.Root) {
			t.Errorf("Parse(%s): round trip through %s changed the reference", tt.text, f.String())
		}
	}
}

func TestParse_R1C1Tokens(t *testing.T) {
	f := MustParse("=R[-1]C[2]+RC[1]+R2C3")
	var names []string
	Walk(f.Root, func(n Node) bool {
		if id, ok := n.(*Ident); ok {
			names = append(names, id.Name)
		}
		return true
	})
	if strings.Join(names, " ") != "R[-1]C[2] RC[1] R2C3" {
		t.Errorf("Unexpected identifiers: %v", names)
	}
}

func TestParse_InvokeAndSpill(t *testing.T) {
	inv, ok := MustParse("=LAMBDA(x,x+1)(2)").Root.(*Invoke)
	if !ok {
		t.Fatal("Expected postfix invocation")
	}
	if _, ok := inv.Callee.(*Call); !ok {
		t.Errorf("Expected LAMBDA call as callee, got %T", inv.Callee)
	}

	pf, ok := MustParse("=SUM(A1#)").Root.(*Call).Args[0].(*Postfix)
	if !ok || pf.Op != "#" {
		t.Error("Expected spill-range postfix")
	}
}

func TestParse_Union(t *testing.T) {
	u, ok := MustParse("=SUM((A1,B2:C3))").Root.(*Call).Args[0].(*Union)
	if !ok || len(u.Items) != 2 {
		t.Fatal("Expected a two-item union")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		text   string
		kind   ErrorKind
		offset int
	}{
		{"=1+", ErrUnexpectedEOF, 3},
		{"=SUM(1", ErrUnexpectedEOF, 6},
		{"=1 2", ErrTrailingInput, 3},
		{"=1e", ErrInvalidNumber, 1},
		{"=\"abc", ErrUnexpectedEOF, 5},
		{"=SUM(1;2)", ErrExpectedChar, 6},
		{"=1+?", ErrUnexpectedChar, 3},
		{"=)", ErrUnexpectedChar, 1},
	}

	for _, tt := range tests {
		_, err := Parse(tt.text, nil)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("Parse(%s): expected ParseError, got %v", tt.text, err)
		}
		if pe.Kind != tt.kind || pe.Offset != tt.offset {
			t.Errorf("Parse(%s): expected %s at %d, got %s at %d", tt.text, tt.kind, tt.offset, pe.Kind, pe.Offset)
		}
		if !errors.Is(err, &ParseError{Kind: tt.kind}) {
			t.Errorf("Parse(%s): expected errors.Is to match kind %s", tt.text, tt.kind)
		}
	}
}

func TestParse_Backslash(t *testing.T) {
	f, err := Parse("=\\abc", nil)
	if err != nil {
		t.Fatalf("Expected \\abc to parse as a name, got: %v", err)
	}
	if id, ok := f.Root.(*Ident); !ok || id.Name != "\\abc" {
		t.Errorf("Expected identifier \\abc, got %#v", f.Root)
	}

	tests := []struct {
		text   string
		loc    *locale.Locale
		kind   ErrorKind
		offset int
	}{
		{"=\\", nil, ErrUnexpectedChar, 1},
		{"=1+\\", nil, ErrUnexpectedChar, 3},
		{"=SUM(\\)", nil, ErrUnexpectedChar, 5},
		{"={1;2\\3;4}", locale.German(), ErrExpectedChar, 5},
	}

	for _, tt := range tests {
		_, err := Parse(tt.text, tt.loc)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("Parse(%s): expected ParseError, got %v", tt.text, err)
		}
		if pe.Kind != tt.kind || pe.Offset != tt.offset {
			t.Errorf("Parse(%s): expected %s at %d, got %s at %d", tt.text, tt.kind, tt.offset, pe.Kind, pe.Offset)
		}
	}

	if _, err := Tokenize("\\", nil); err == nil {
		t.Error("Expected Tokenize to reject a lone backslash")
	}
}

func TestParse_ErrorLiterals(t *testing.T) {
	call := MustParse("=IFERROR(#DIV/0!,#n/a)").Root.(*Call)
	if e := call.Args[0].(*ErrorLit); e.Kind != value.ErrDiv0 {
		t.Errorf("Expected #DIV/0!, got %v", e.Kind)
	}
	if e := call.Args[1].(*ErrorLit); e.Kind != value.ErrNA {
		t.Errorf("Expected #N/A, got %v", e.Kind)
	}
}

func TestFormula_RoundTrip(t *testing.T) {
	formulas := []string{
		"=SUM(A1:B2,Sheet2!C3)*2",
		"=IF(A1>0,\"pos\",IF(A1<0,\"neg\",\"zero\"))",
		"=-(1+2)^2%",
		"=0.1+0.2",
		"=1E+300*12345.678",
		"=LET(x,1,y,x+1,x*y)",
		"=MAP(A1:A3,LAMBDA(v,v*2))",
		"=XLOOKUP(\"a\"\"b\",Tbl[Key],Tbl[Val],#N/A)",
		"='Q1 Sales'!A:A",
		"=SUM(1:3)",
		"={1,-2.5;\"x\",TRUE}",
		"=A1#",
		"=R[-1]C+1",
	}

	for _, text := range formulas {
		first, err := Parse(text, nil)
		if err != nil {
			t.Fatalf("Parse(%s): expected no error, got: %v", text, err)
		}
		for _, loc := range []*locale.Locale{locale.Canonical(), locale.German(), locale.French()} {
			out := first.Format(loc)
			second, err := Parse(out, loc)
			if err != nil {
				t.Fatalf("Reparse of %s in %s failed: %v", out, loc.Name(), err)
			}
			if !Equal(first.Root, second.Root) {
				t.Errorf("Round trip of %s through %s (%s) changed the AST", text, loc.Name(), out)
			}
		}
	}
}

// Function names seen by an independent tokenizer must match the calls in
// our AST.
func TestParse_AgreesWithEFPOnFunctionNames(t *testing.T) {
	formulas := []string{
		"=SUM(A1:A3,MAX(B1,B2))",
		"=IF(AND(A1>1,B1<2),CONCATENATE(\"a\",\"b\"),ROUND(C1,2))",
		"=SUMIF(A1:A4,\">2\",B1:B4)+COUNTIF(A1:A4,\"<>\")",
		"=INDEX(A1:C3,MATCH(1,A1:A3,0),2)",
	}

	for _, text := range formulas {
		ps := efp.ExcelParser()
		var want []string
		for _, tok := range ps.Parse(strings.TrimPrefix(text, "=")) {
			if tok.TType == efp.TokenTypeFunction && tok.TSubType == efp.TokenSubTypeStart {
				want = append(want, strings.ToUpper(tok.TValue))
			}
		}

		var got []string
		Walk(MustParse(text).Root, func(n Node) bool {
			if c, ok := n.(*Call); ok {
				got = append(got, c.Name)
			}
			return true
		})

		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("%s: expected functions %v, got %v", text, want, got)
		}
	}
}
