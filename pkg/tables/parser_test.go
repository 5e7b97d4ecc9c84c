package tables

import (
	"errors"
	"testing"
)

func TestParse_Precedence(t *testing.T) {
	e, err := Parse("=1 + 2 * 3 ^ 2")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	b, ok := e.(Binary)
	if !ok || b.Op != "+" {
		t.Fatalf("Expected + at the root, got %#v", e)
	}
	mul, ok := b.R.(Binary)
	if !ok || mul.Op != "*" {
		t.Fatalf("Expected * on the right, got %#v", b.R)
	}
	if pow, ok := mul.R.(Binary); !ok || pow.Op != "^" {
		t.Errorf("Expected ^ below *, got %#v", mul.R)
	}
}

func TestParse_ColumnForms(t *testing.T) {
	tests := []struct {
		src   string
		table string
		col   string
	}{
		{"[Unit Price]", "", "Unit Price"},
		{"Sales[Qty]", "Sales", "Qty"},
		{"'Sales 2024'[Qty]", "Sales 2024", "Qty"},
		{"[Odd]]Name]", "", "Odd]Name"},
	}
	for _, tt := range tests {
		e, err := Parse(tt.src)
		if err != nil {
			t.Errorf("Parse(%q) failed: %v", tt.src, err)
			continue
		}
		ref, ok := e.(ColumnRef)
		if !ok || ref.Table != tt.table || ref.Column != tt.col {
			t.Errorf("Parse(%q) = %#v", tt.src, e)
		}
	}
}

func TestParse_VarReturn(t *testing.T) {
	e, err := Parse("VAR a = [X] VAR b = a * [Y] RETURN a + b")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	l, ok := e.(Let)
	if !ok || len(l.Bindings) != 2 {
		t.Fatalf("Expected a Let with 2 bindings, got %#v", e)
	}

	refs := References(e)
	if len(refs) != 2 || refs[0].Column != "X" || refs[1].Column != "Y" {
		t.Errorf("Expected references through bindings [X Y], got %v", refs)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		src    string
		offset int
	}{
		{"1 +", 3},
		{"unknown + 1", 0},
		{"VAR a = 1", 9},
		{"IF(1, 2", 7},
		{`"open`, 0},
		{"  = [A] $", 8},
	}
	for _, tt := range tests {
		_, err := Parse(tt.src)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("Parse(%q): expected ParseError, got %v", tt.src, err)
			continue
		}
		if pe.Offset != tt.offset {
			t.Errorf("Parse(%q): expected offset %d, got %d (%s)", tt.src, tt.offset, pe.Offset, pe.Message)
		}
	}
}

func TestParse_VariablesAreScoped(t *testing.T) {
	if _, err := Parse("(VAR a = 1 RETURN a) + a"); err == nil {
		t.Error("Expected a to be out of scope after RETURN")
	}
}
