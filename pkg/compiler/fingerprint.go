package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/gridcalc/gridcalc/pkg/value"
)

// Fingerprint returns a stable key for e. Two expressions with the same
// fingerprint evaluate identically from the same base cell, and in
// Offsets mode from any base cell.
func Fingerprint(e Expr) string {
	sum := sha256.Sum256([]byte(Dump(e)))
	return hex.EncodeToString(sum[:])
}

// Dump renders e as an s-expression.
func Dump(e Expr) string {
	var sb strings.Builder
	dump(&sb, e)
	return sb.String()
}

func dump(sb *strings.Builder, e Expr) {
	switch n := e.(type) {
	case *Literal:
		sb.WriteString("(lit ")
		dumpValue(sb, n.Value)
		sb.WriteByte(')')
	case *RefExpr:
		sb.WriteString("(ref ")
		dumpRef(sb, n.Ref)
		sb.WriteByte(')')
	case *Name:
		sb.WriteString("(name ")
		if n.Qualified {
			sb.WriteString(strconv.FormatUint(uint64(n.Sheet), 10))
			sb.WriteByte('!')
		}
		sb.WriteString(n.Name)
		sb.WriteByte(')')
	case *Local:
		sb.WriteString("(local " + n.Name + ")")
	case *TableRef:
		s := n.Spec
		sb.WriteString("(table " + strconv.Quote(s.Table) + " " + s.Section.String() + " " +
			strconv.Quote(s.ColumnStart) + " " + strconv.Quote(s.ColumnEnd) + ")")
	case *Unary:
		sb.WriteString("(unary " + n.Op.String() + " ")
		dump(sb, n.X)
		sb.WriteByte(')')
	case *Binary:
		sb.WriteString("(binary " + n.Op.String() + " ")
		dump(sb, n.L)
		sb.WriteByte(' ')
		dump(sb, n.R)
		sb.WriteByte(')')
	case *Call:
		dumpList(sb, "call "+n.Name, n.Args)
	case *CallName:
		sb.WriteString("(callname ")
		dump(sb, &n.Name)
		dumpArgs(sb, n.Args)
		sb.WriteByte(')')
	case *CallLocal:
		dumpList(sb, "calllocal "+n.Name, n.Args)
	case *Invoke:
		sb.WriteString("(invoke ")
		dump(sb, n.Callee)
		dumpArgs(sb, n.Args)
		sb.WriteByte(')')
	case *Lambda:
		sb.WriteString("(lambda (" + strings.Join(n.Params, " ") + ") ")
		dump(sb, n.Body)
		sb.WriteByte(')')
	case *Let:
		sb.WriteString("(let")
		for i, name := range n.Names {
			sb.WriteString(" (" + name + " ")
			dump(sb, n.Values[i])
			sb.WriteByte(')')
		}
		sb.WriteByte(' ')
		dump(sb, n.Body)
		sb.WriteByte(')')
	case *ArrayLit:
		dumpList(sb, "array "+strconv.Itoa(n.Rows)+"x"+strconv.Itoa(n.Cols), n.Elems)
	case *Union:
		dumpList(sb, "union", n.Items)
	case *RangeOp:
		sb.WriteString("(range ")
		dump(sb, n.L)
		sb.WriteByte(' ')
		dump(sb, n.R)
		sb.WriteByte(')')
	case *SpillRef:
		sb.WriteString("(spill ")
		dump(sb, n.X)
		sb.WriteByte(')')
	default:
		sb.WriteString("(?)")
	}
}

func dumpList(sb *strings.Builder, head string, items []Expr) {
	sb.WriteString("(" + head)
	dumpArgs(sb, items)
	sb.WriteByte(')')
}

func dumpArgs(sb *strings.Builder, items []Expr) {
	for _, it := range items {
		sb.WriteByte(' ')
		dump(sb, it)
	}
}

func dumpValue(sb *strings.Builder, v value.Value) {
	switch v.Kind() {
	case value.KindNumber:
		sb.WriteString(strconv.FormatFloat(v.Num(), 'g', -1, 64))
	case value.KindText:
		sb.WriteString(strconv.Quote(v.Str()))
	case value.KindArray:
		arr := v.Array()
		sb.WriteString("{" + strconv.Itoa(arr.Rows) + "x" + strconv.Itoa(arr.Cols))
		for _, el := range arr.Data {
			sb.WriteByte(' ')
			dumpValue(sb, el)
		}
		sb.WriteByte('}')
	default:
		sb.WriteString(v.Kind().String() + ":" + v.String())
	}
}

func dumpRef(sb *strings.Builder, r Ref) {
	sb.WriteString(strconv.FormatUint(uint64(r.Sheet), 10))
	sb.WriteByte('!')
	sb.WriteString(r.Kind.String())
	sb.WriteByte(' ')
	dumpCoord(sb, r.Start.Row)
	sb.WriteByte(',')
	dumpCoord(sb, r.Start.Col)
	sb.WriteByte(':')
	dumpCoord(sb, r.End.Row)
	sb.WriteByte(',')
	dumpCoord(sb, r.End.Col)
}

func dumpCoord(sb *strings.Builder, c Coord) {
	if c.Rel {
		sb.WriteByte('[')
		sb.WriteString(strconv.FormatInt(c.N, 10))
		sb.WriteByte(']')
		return
	}
	sb.WriteString(strconv.FormatInt(c.N, 10))
}
