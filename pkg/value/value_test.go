package value

import (
	"testing"
)

func TestErrorKind_ParseRoundTrip(t *testing.T) {
	for _, lit := range ErrorLiterals() {
		kind, ok := ParseErrorKind(lit)
		if !ok {
			t.Fatalf("Expected %s to parse", lit)
		}
		if kind.String() != lit {
			t.Errorf("Expected %s, got %s", lit, kind.String())
		}
	}

	if _, ok := ParseErrorKind("#bogus!"); ok {
		t.Error("Expected unknown literal to be rejected")
	}

	if kind, ok := ParseErrorKind("#n/a"); !ok || kind != ErrNA {
		t.Errorf("Expected case-insensitive match for #n/a, got %v %v", kind, ok)
	}
}

func TestAddr_A1(t *testing.T) {
	tests := []struct {
		text string
		addr Addr
	}{
		{"A1", Addr{Row: 0, Col: 0}},
		{"Z10", Addr{Row: 9, Col: 25}},
		{"AA1", Addr{Row: 0, Col: 26}},
		{"XFD1048576", Addr{Row: 1048575, Col: 16383}},
	}

	for _, tt := range tests {
		got, ok := ParseA1(tt.text)
		if !ok {
			t.Fatalf("Expected %s to parse", tt.text)
		}
		if got != tt.addr {
			t.Errorf("ParseA1(%s): expected %+v, got %+v", tt.text, tt.addr, got)
		}
		if got.String() != tt.text {
			t.Errorf("Expected %s to format back, got %s", tt.text, got.String())
		}
	}

	for _, bad := range []string{"", "A", "1", "A0", "XFE1", "A01", "A1B"} {
		if _, ok := ParseA1(bad); ok {
			t.Errorf("Expected %q to be rejected", bad)
		}
	}
}

func TestAddr_PackUnpack(t *testing.T) {
	addr := Addr{Row: 4000000000, Col: MaxCols - 1}
	if got := UnpackAddr(addr.Pack()); got != addr {
		t.Errorf("Expected %+v, got %+v", addr, got)
	}
}

func TestArea_Intersect(t *testing.T) {
	a := NewArea(Addr{Row: 3, Col: 3}, Addr{Row: 0, Col: 0})
	b := NewArea(Addr{Row: 2, Col: 2}, Addr{Row: 5, Col: 5})

	got, ok := a.Intersect(b)
	if !ok {
		t.Fatal("Expected areas to intersect")
	}
	if got.String() != "C3:D4" {
		t.Errorf("Expected C3:D4, got %s", got.String())
	}

	if _, ok := a.Intersect(NewArea(Addr{Row: 9, Col: 9}, Addr{Row: 9, Col: 9})); ok {
		t.Error("Expected disjoint areas not to intersect")
	}
}

func TestNewArray_Limits(t *testing.T) {
	if _, ek := NewArray(0, 3); ek != ErrCalc {
		t.Errorf("Expected #CALC! for empty array, got %v", ek)
	}

	SetMaxArrayCells(10)
	defer SetMaxArrayCells(0)

	if _, ek := NewArray(4, 3); ek != ErrNum {
		t.Errorf("Expected #NUM! above the ceiling, got %v", ek)
	}
	if _, ek := NewArray(2, 5); ek != NoError {
		t.Errorf("Expected array at the ceiling to be allowed, got %v", ek)
	}
}

func TestArray_Transpose(t *testing.T) {
	arr, _ := ArrayFrom([][]Value{{Number(1), Number(2), Number(3)}})
	tr := arr.Transpose()
	if tr.Rows != 3 || tr.Cols != 1 {
		t.Fatalf("Expected 3x1, got %dx%d", tr.Rows, tr.Cols)
	}
	if tr.At(2, 0).Num() != 3 {
		t.Errorf("Expected 3 at (2,0), got %v", tr.At(2, 0))
	}
}

func TestToNumber(t *testing.T) {
	tests := []struct {
		in   Value
		want float64
		err  ErrorKind
	}{
		{Blank(), 0, NoError},
		{Bool(true), 1, NoError},
		{Text(" 12.5 "), 12.5, NoError},
		{Text("50%"), 0.5, NoError},
		{Text("1e3"), 1000, NoError},
		{Text("abc"), 0, ErrValue},
		{Text(""), 0, ErrValue},
		{Text("0x10"), 0, ErrValue},
		{Text("inf"), 0, ErrValue},
		{Error(ErrDiv0), 0, ErrDiv0},
		{FromLambda(&Lambda{}), 0, ErrCalc},
	}

	for _, tt := range tests {
		got, ek := ToNumber(tt.in)
		if ek != tt.err {
			t.Errorf("ToNumber(%v): expected error %v, got %v", tt.in, tt.err, ek)
			continue
		}
		if ek == NoError && got != tt.want {
			t.Errorf("ToNumber(%v): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestToBool_TextMustBeExact(t *testing.T) {
	if b, ek := ToBool(Text("true")); ek != NoError || !b {
		t.Errorf("Expected TRUE, got %v %v", b, ek)
	}
	if _, ek := ToBool(Text("yes")); ek != ErrValue {
		t.Errorf("Expected #VALUE! for \"yes\", got %v", ek)
	}
	if _, ek := ToBool(Text("1")); ek != ErrValue {
		t.Errorf("Expected #VALUE! for \"1\", got %v", ek)
	}
}

func TestFormatNumber(t *testing.T) {
	tests := map[float64]string{
		0:            "0",
		42:           "42",
		-3.5:         "-3.5",
		0.1 + 0.2:    "0.3",
		1.0 / 3.0:    "0.333333333333333",
		1e20:         "1E+20",
		123456789012: "123456789012",
	}

	for in, want := range tests {
		if got := FormatNumber(in); got != want {
			t.Errorf("FormatNumber(%v): expected %s, got %s", in, want, got)
		}
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b Value
		want int
	}{
		{Number(1), Number(2), -1},
		{Text("apple"), Text("APPLE"), 0},
		{Text("b"), Text("A"), 1},
		{Number(100), Text("1"), -1},
		{Text("z"), Bool(false), -1},
		{Blank(), Number(0), 0},
		{Blank(), Text(""), 0},
		{Blank(), Bool(false), 0},
		{Blank(), Number(-1), 1},
	}

	for _, tt := range tests {
		if got := Compare(tt.a, tt.b); got != tt.want {
			t.Errorf("Compare(%v, %v): expected %d, got %d", tt.a, tt.b, tt.want, got)
		}
	}
}

func TestSanitize_LambdaInsideArray(t *testing.T) {
	arr, _ := ArrayFrom([][]Value{{Number(1), FromLambda(&Lambda{})}})
	out := Sanitize(FromArray(arr))

	if out.Kind() != KindArray {
		t.Fatalf("Expected array, got %v", out.Kind())
	}
	if got := out.Array().At(0, 1); got.Err() != ErrCalc {
		t.Errorf("Expected #CALC! in place of the lambda, got %v", got)
	}
	if arr.At(0, 1).Kind() != KindLambda {
		t.Error("Expected the original array to be left untouched")
	}
	if Sanitize(FromLambda(&Lambda{})).Err() != ErrCalc {
		t.Error("Expected a bare lambda to become #CALC!")
	}
}

func TestScope_CaptureIsSnapshot(t *testing.T) {
	var root *Scope
	s1 := root.Bind("x", Number(1))
	captured := s1
	s2 := s1.Bind("y", Number(2)).Bind("X", Number(3))

	if v, _ := captured.Lookup("x"); v.Num() != 1 {
		t.Errorf("Expected captured x = 1, got %v", v)
	}
	if _, ok := captured.Lookup("y"); ok {
		t.Error("Expected y to be invisible to the captured scope")
	}
	if v, _ := s2.Lookup("x"); v.Num() != 3 {
		t.Errorf("Expected shadowed x = 3, got %v", v)
	}
	if _, ok := root.Lookup("x"); ok {
		t.Error("Expected empty scope lookup to fail")
	}
}

func TestValue_String(t *testing.T) {
	arr, _ := ArrayFrom([][]Value{{Number(1), Text(`a"b`)}, {Bool(true), Error(ErrNA)}})
	if got := FromArray(arr).String(); got != `{1,"a""b";TRUE,#N/A}` {
		t.Errorf("Unexpected array rendering: %s", got)
	}
}
