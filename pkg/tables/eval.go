package tables

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/gridcalc/gridcalc/pkg/functions"
	"github.com/gridcalc/gridcalc/pkg/value"
)

var (
	upperCaser = cases.Upper(language.Und)
	lowerCaser = cases.Lower(language.Und)
)

// rowContext evaluates formulas against one row of a table.
type rowContext struct {
	table *Table
	row   []value.Value
	vars  map[string]value.Value
}

// evalError aborts evaluation of a row. ERROR() raises it with the
// user's message.
type evalError struct {
	msg string
}

func (e *evalError) Error() string { return e.msg }

func (rc *rowContext) eval(e Expr) (value.Value, error) {
	switch n := e.(type) {
	case NumberLit:
		return value.Number(n.Value), nil
	case StringLit:
		return value.Text(n.Value), nil
	case BoolLit:
		return value.Bool(n.Value), nil
	case ColumnRef:
		idx, ok := rc.table.column(n.Column)
		if !ok {
			return value.Value{}, &evalError{msg: "unknown column [" + n.Column + "]"}
		}
		return rc.row[idx], nil
	case VarRef:
		v, ok := rc.vars[value.FoldText(n.Name)]
		if !ok {
			return value.Value{}, &evalError{msg: "unbound variable " + n.Name}
		}
		return v, nil
	case Let:
		saved := rc.vars
		rc.vars = make(map[string]value.Value, len(saved)+len(n.Bindings))
		for k, v := range saved {
			rc.vars[k] = v
		}
		defer func() { rc.vars = saved }()
		for _, b := range n.Bindings {
			v, err := rc.eval(b.Value)
			if err != nil {
				return value.Value{}, err
			}
			rc.vars[value.FoldText(b.Name)] = v
		}
		return rc.eval(n.Body)
	case Unary:
		x, err := rc.eval(n.X)
		if err != nil {
			return value.Value{}, err
		}
		f, ek := value.ToNumber(x)
		if ek != value.NoError {
			return value.Error(ek), nil
		}
		if n.Op == "-" {
			f = -f
		}
		return value.Number(f), nil
	case Binary:
		return rc.binary(n)
	case Call:
		return rc.call(n)
	}
	return value.Value{}, fmt.Errorf("unsupported expression %T", e)
}

func (rc *rowContext) binary(n Binary) (value.Value, error) {
	// Logical operators short-circuit.
	if n.Op == "&&" || n.Op == "||" {
		l, err := rc.truth(n.L)
		if err != nil || (n.Op == "&&" && !l) || (n.Op == "||" && l) {
			return value.Bool(l), err
		}
		r, err := rc.truth(n.R)
		return value.Bool(r), err
	}

	l, err := rc.eval(n.L)
	if err != nil {
		return value.Value{}, err
	}
	r, err := rc.eval(n.R)
	if err != nil {
		return value.Value{}, err
	}
	if l.IsError() {
		return l, nil
	}
	if r.IsError() {
		return r, nil
	}

	switch n.Op {
	case "&":
		a, _ := value.ToText(l)
		b, _ := value.ToText(r)
		return value.Text(a + b), nil
	case "=", "<>", "<", "<=", ">", ">=":
		c := value.Compare(l, r)
		var ok bool
		switch n.Op {
		case "=":
			ok = c == 0
		case "<>":
			ok = c != 0
		case "<":
			ok = c < 0
		case "<=":
			ok = c <= 0
		case ">":
			ok = c > 0
		case ">=":
			ok = c >= 0
		}
		return value.Bool(ok), nil
	}

	a, ek := value.ToNumber(l)
	if ek != value.NoError {
		return value.Error(ek), nil
	}
	b, ek := value.ToNumber(r)
	if ek != value.NoError {
		return value.Error(ek), nil
	}
	var out float64
	switch n.Op {
	case "+":
		out = a + b
	case "-":
		out = a - b
	case "*":
		out = a * b
	case "/":
		if b == 0 {
			return value.Error(value.ErrDiv0), nil
		}
		out = a / b
	case "^":
		out = math.Pow(a, b)
	default:
		return value.Value{}, fmt.Errorf("unsupported operator %s", n.Op)
	}
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return value.Error(value.ErrNum), nil
	}
	return value.Number(out), nil
}

func (rc *rowContext) truth(e Expr) (bool, error) {
	v, err := rc.eval(e)
	if err != nil {
		return false, err
	}
	b, ek := value.ToBool(v)
	if ek != value.NoError {
		return false, &evalError{msg: "expected a logical value, got " + v.String()}
	}
	return b, nil
}

func arity(n Call, lo, hi int) error {
	if len(n.Args) < lo || len(n.Args) > hi {
		return &evalError{msg: fmt.Sprintf("%s takes %d to %d arguments, got %d", n.Name, lo, hi, len(n.Args))}
	}
	return nil
}

func (rc *rowContext) args(n Call) ([]value.Value, error) {
	out := make([]value.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := rc.eval(a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (rc *rowContext) call(n Call) (value.Value, error) {
	switch n.Name {
	case "IF":
		if err := arity(n, 2, 3); err != nil {
			return value.Value{}, err
		}
		cond, err := rc.truth(n.Args[0])
		if err != nil {
			return value.Value{}, err
		}
		switch {
		case cond:
			return rc.eval(n.Args[1])
		case len(n.Args) == 3:
			return rc.eval(n.Args[2])
		}
		return value.Blank(), nil
	case "AND", "OR":
		if err := arity(n, 2, 2); err != nil {
			return value.Value{}, err
		}
		op := "&&"
		if n.Name == "OR" {
			op = "||"
		}
		return rc.binary(Binary{Op: op, L: n.Args[0], R: n.Args[1]})
	case "NOT":
		if err := arity(n, 1, 1); err != nil {
			return value.Value{}, err
		}
		b, err := rc.truth(n.Args[0])
		return value.Bool(!b), err
	case "BLANK":
		if err := arity(n, 0, 0); err != nil {
			return value.Value{}, err
		}
		return value.Blank(), nil
	case "TRUE", "FALSE":
		if err := arity(n, 0, 0); err != nil {
			return value.Value{}, err
		}
		return value.Bool(n.Name == "TRUE"), nil
	}

	if err := rc.checkArity(n); err != nil {
		return value.Value{}, err
	}
	args, err := rc.args(n)
	if err != nil {
		return value.Value{}, err
	}
	if n.Name == "ISBLANK" {
		return value.Bool(args[0].IsBlank()), nil
	}
	if n.Name == "ERROR" {
		msg, _ := value.ToText(args[0])
		return value.Value{}, &evalError{msg: msg}
	}
	for _, a := range args {
		if a.IsError() {
			return a, nil
		}
	}

	switch n.Name {
	case "DIVIDE":
		a, ek := value.ToNumber(args[0])
		if ek != value.NoError {
			return value.Error(ek), nil
		}
		b, ek := value.ToNumber(args[1])
		if ek != value.NoError {
			return value.Error(ek), nil
		}
		if b == 0 {
			if len(args) == 3 {
				return args[2], nil
			}
			return value.Blank(), nil
		}
		return value.Number(a / b), nil
	case "ABS":
		a, ek := value.ToNumber(args[0])
		if ek != value.NoError {
			return value.Error(ek), nil
		}
		return value.Number(math.Abs(a)), nil
	case "ROUND":
		a, ek := value.ToNumber(args[0])
		if ek != value.NoError {
			return value.Error(ek), nil
		}
		d, ek := value.ToNumber(args[1])
		if ek != value.NoError {
			return value.Error(ek), nil
		}
		return value.Number(functions.Round(a, int(math.Trunc(d)))), nil
	case "UPPER", "LOWER", "LEN":
		s, _ := value.ToText(args[0])
		switch n.Name {
		case "UPPER":
			return value.Text(upperCaser.String(s)), nil
		case "LOWER":
			return value.Text(lowerCaser.String(s)), nil
		}
		return value.Number(float64(utf8.RuneCountInString(s))), nil
	case "LEFT", "RIGHT":
		s, _ := value.ToText(args[0])
		count := 1.0
		if len(args) == 2 {
			var ek value.ErrorKind
			if count, ek = value.ToNumber(args[1]); ek != value.NoError {
				return value.Error(ek), nil
			}
		}
		if count < 0 {
			return value.Error(value.ErrValue), nil
		}
		runes := []rune(s)
		k := min(int(count), len(runes))
		if n.Name == "LEFT" {
			return value.Text(string(runes[:k])), nil
		}
		return value.Text(string(runes[len(runes)-k:])), nil
	case "CONCATENATE":
		var sb strings.Builder
		for _, a := range args {
			s, _ := value.ToText(a)
			sb.WriteString(s)
		}
		return value.Text(sb.String()), nil
	}
	return value.Value{}, &evalError{msg: "unknown function " + n.Name}
}

var arities = map[string][2]int{
	"ISBLANK":     {1, 1},
	"ERROR":       {1, 1},
	"DIVIDE":      {2, 3},
	"ABS":         {1, 1},
	"ROUND":       {2, 2},
	"UPPER":       {1, 1},
	"LOWER":       {1, 1},
	"LEN":         {1, 1},
	"LEFT":        {1, 2},
	"RIGHT":       {1, 2},
	"CONCATENATE": {2, 2},
}

func (rc *rowContext) checkArity(n Call) error {
	a, ok := arities[n.Name]
	if !ok {
		return &evalError{msg: "unknown function " + n.Name}
	}
	return arity(n, a[0], a[1])
}
