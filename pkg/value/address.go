package value

import (
	"fmt"
	"strconv"
	"strings"
)

// SheetID is the stable integer id a sheet name resolves to.
type SheetID uint32

const (
	// MaxCols bounds column indexes so that (row, col) packs into 64 bits.
	MaxCols = 16384

	// DefaultMaxRows is the grid height used when a sheet does not
	// declare its own dimensions.
	DefaultMaxRows = 1048576

	colBits = 14
)

// Addr is a zero-based (row, column) position on a sheet.
type Addr struct {
	Row uint32
	Col uint32
}

// Pack packs the address into a single 64-bit key.
func (a Addr) Pack() uint64 {
	return uint64(a.Row)<<colBits | uint64(a.Col)
}

// UnpackAddr reverses Addr.Pack.
func UnpackAddr(key uint64) Addr {
	return Addr{Row: uint32(key >> colBits), Col: uint32(key & (1<<colBits - 1))}
}

// String formats the address in A1 notation.
func (a Addr) String() string {
	return ColumnName(a.Col) + strconv.FormatUint(uint64(a.Row)+1, 10)
}

// Offset moves the address by the given deltas, reporting false when
// the result leaves the grid.
func (a Addr) Offset(dRow, dCol int64) (Addr, bool) {
	r := int64(a.Row) + dRow
	c := int64(a.Col) + dCol
	if r < 0 || c < 0 || r > int64(^uint32(0)) || c >= MaxCols {
		return Addr{}, false
	}
	return Addr{Row: uint32(r), Col: uint32(c)}, true
}

// CellRef addresses one cell in a workbook.
type CellRef struct {
	Sheet SheetID
	Addr
}

// Cell builds a CellRef.
func Cell(sheet SheetID, row, col uint32) CellRef {
	return CellRef{Sheet: sheet, Addr: Addr{Row: row, Col: col}}
}

func (c CellRef) String() string {
	return fmt.Sprintf("%d!%s", c.Sheet, c.Addr.String())
}

// Less orders cells by sheet, row, then column.
func (c CellRef) Less(o CellRef) bool {
	if c.Sheet != o.Sheet {
		return c.Sheet < o.Sheet
	}
	if c.Row != o.Row {
		return c.Row < o.Row
	}
	return c.Col < o.Col
}

// Area is an inclusive rectangle of cells. Start is always the top-left
// corner once normalized.
type Area struct {
	Start Addr
	End   Addr
}

// NewArea builds a normalized area from two corners.
func NewArea(a, b Addr) Area {
	ar := Area{Start: a, End: b}
	if ar.Start.Row > ar.End.Row {
		ar.Start.Row, ar.End.Row = ar.End.Row, ar.Start.Row
	}
	if ar.Start.Col > ar.End.Col {
		ar.Start.Col, ar.End.Col = ar.End.Col, ar.Start.Col
	}
	return ar
}

// SingleCell returns the one-cell area at a.
func SingleCell(a Addr) Area {
	return Area{Start: a, End: a}
}

// Rows returns the height of the area.
func (a Area) Rows() int { return int(a.End.Row-a.Start.Row) + 1 }

// Cols returns the width of the area.
func (a Area) Cols() int { return int(a.End.Col-a.Start.Col) + 1 }

// Size returns the number of cells covered.
func (a Area) Size() uint64 { return uint64(a.Rows()) * uint64(a.Cols()) }

// Contains reports whether addr lies inside the area.
func (a Area) Contains(addr Addr) bool {
	return addr.Row >= a.Start.Row && addr.Row <= a.End.Row &&
		addr.Col >= a.Start.Col && addr.Col <= a.End.Col
}

// Intersects reports whether two areas overlap.
func (a Area) Intersects(o Area) bool {
	return a.Start.Row <= o.End.Row && o.Start.Row <= a.End.Row &&
		a.Start.Col <= o.End.Col && o.Start.Col <= a.End.Col
}

// Intersect returns the overlap of two areas.
func (a Area) Intersect(o Area) (Area, bool) {
	if !a.Intersects(o) {
		return Area{}, false
	}
	return Area{
		Start: Addr{Row: max(a.Start.Row, o.Start.Row), Col: max(a.Start.Col, o.Start.Col)},
		End:   Addr{Row: min(a.End.Row, o.End.Row), Col: min(a.End.Col, o.End.Col)},
	}, true
}

func (a Area) String() string {
	if a.Start == a.End {
		return a.Start.String()
	}
	return a.Start.String() + ":" + a.End.String()
}

// ColumnName converts a zero-based column index to letters (0 -> "A").
func ColumnName(col uint32) string {
	var buf [4]byte
	i := len(buf)
	n := int64(col) + 1
	for n > 0 {
		n--
		i--
		buf[i] = byte('A' + n%26)
		n /= 26
	}
	return string(buf[i:])
}

// ColumnIndex converts column letters to a zero-based index. It is
// case-insensitive and rejects columns beyond MaxCols.
func ColumnIndex(letters string) (uint32, bool) {
	if letters == "" || len(letters) > 3 {
		return 0, false
	}
	n := 0
	for _, ch := range strings.ToUpper(letters) {
		if ch < 'A' || ch > 'Z' {
			return 0, false
		}
		n = n*26 + int(ch-'A'+1)
	}
	if n > MaxCols {
		return 0, false
	}
	return uint32(n - 1), true
}

// ParseA1 parses a plain A1 address without sheet or $ markers.
func ParseA1(s string) (Addr, bool) {
	i := 0
	for i < len(s) && isASCIILetter(s[i]) {
		i++
	}
	if i == 0 || i == len(s) {
		return Addr{}, false
	}
	col, ok := ColumnIndex(s[:i])
	if !ok {
		return Addr{}, false
	}
	row, err := strconv.ParseUint(s[i:], 10, 32)
	if err != nil || row == 0 || s[i] == '0' {
		return Addr{}, false
	}
	return Addr{Row: uint32(row - 1), Col: col}, true
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
