package value

import (
	"strconv"
	"strings"
)

// Reference is a single rectangular range, or a union of ranges, scoped to
// one sheet.
type Reference struct {
	Sheet SheetID
	Areas []Area
}

// NewReference builds a one-area reference.
func NewReference(sheet SheetID, area Area) *Reference {
	return &Reference{Sheet: sheet, Areas: []Area{area}}
}

// CellReference builds a reference to one cell.
func CellReference(c CellRef) *Reference {
	return NewReference(c.Sheet, SingleCell(c.Addr))
}

// IsSingleCell reports whether the reference covers exactly one cell.
func (r *Reference) IsSingleCell() bool {
	return len(r.Areas) == 1 && r.Areas[0].Start == r.Areas[0].End
}

// First returns the first area of the reference.
func (r *Reference) First() Area {
	return r.Areas[0]
}

// TopLeft returns the top-left cell of the first area.
func (r *Reference) TopLeft() CellRef {
	return CellRef{Sheet: r.Sheet, Addr: r.Areas[0].Start}
}

// Size returns the total number of cells across all areas.
func (r *Reference) Size() uint64 {
	var n uint64
	for _, a := range r.Areas {
		n += a.Size()
	}
	return n
}

// Contains reports whether cell lies inside any area of the reference.
func (r *Reference) Contains(c CellRef) bool {
	if c.Sheet != r.Sheet {
		return false
	}
	for _, a := range r.Areas {
		if a.Contains(c.Addr) {
			return true
		}
	}
	return false
}

// Union concatenates the areas of two references on the same sheet. It
// returns nil when the sheets differ.
func (r *Reference) Union(o *Reference) *Reference {
	if r.Sheet != o.Sheet {
		return nil
	}
	areas := make([]Area, 0, len(r.Areas)+len(o.Areas))
	areas = append(areas, r.Areas...)
	areas = append(areas, o.Areas...)
	return &Reference{Sheet: r.Sheet, Areas: areas}
}

// Equal compares two references area by area.
func (r *Reference) Equal(o *Reference) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.Sheet != o.Sheet || len(r.Areas) != len(o.Areas) {
		return false
	}
	for i := range r.Areas {
		if r.Areas[i] != o.Areas[i] {
			return false
		}
	}
	return true
}

func (r *Reference) String() string {
	parts := make([]string, len(r.Areas))
	for i, a := range r.Areas {
		parts[i] = a.String()
	}
	s := strings.Join(parts, ",")
	if len(parts) > 1 {
		s = "(" + s + ")"
	}
	return strconv.FormatUint(uint64(r.Sheet), 10) + "!" + s
}
