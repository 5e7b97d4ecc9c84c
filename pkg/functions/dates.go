package functions

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gridcalc/gridcalc/pkg/value"
)

// DateSystem selects how date serial numbers map to calendar days.
type DateSystem uint8

const (
	// Date1900 counts 1900-01-01 as day 1 and keeps the legacy
	// 1900-02-29 at serial 60.
	Date1900 DateSystem = iota
	// Date1904 counts 1904-01-01 as day 0.
	Date1904
)

func (d DateSystem) String() string {
	if d == Date1904 {
		return "1904"
	}
	return "1900"
}

// ParseDateSystem accepts "1900" or "1904".
func ParseDateSystem(s string) (DateSystem, error) {
	switch strings.TrimSpace(s) {
	case "", "1900":
		return Date1900, nil
	case "1904":
		return Date1904, nil
	}
	return Date1900, fmt.Errorf("unknown date system %q", s)
}

var (
	epoch1900 = time.Date(1899, time.December, 31, 0, 0, 0, 0, time.UTC)
	epoch1904 = time.Date(1904, time.January, 1, 0, 0, 0, 0, time.UTC)
	march1900 = time.Date(1900, time.March, 1, 0, 0, 0, 0, time.UTC)
)

const (
	// offset1904 converts 1904 serials to 1900 serials.
	offset1904 = 1462
	maxSerial  = 2958465 // 9999-12-31
)

// Serial converts a calendar day to its serial number.
func (d DateSystem) Serial(t time.Time) float64 {
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if d == Date1904 {
		return math.Round(t.Sub(epoch1904).Hours() / 24)
	}
	n := math.Round(t.Sub(epoch1900).Hours() / 24)
	if !t.Before(march1900) {
		n++
	}
	return n
}

// Civil returns year, month and day for a serial. Serial 0 in the 1900
// system is the fictitious 1900-01-00, serial 60 is 1900-02-29.
func (d DateSystem) Civil(serial float64) (int, int, int, bool) {
	n := math.Floor(serial)
	if n < 0 || n > maxSerial {
		return 0, 0, 0, false
	}
	if d == Date1904 {
		t := epoch1904.AddDate(0, 0, int(n))
		return t.Year(), int(t.Month()), t.Day(), true
	}
	switch {
	case n == 0:
		return 1900, 1, 0, true
	case n == 60:
		return 1900, 2, 29, true
	case n > 60:
		n--
	}
	t := epoch1900.AddDate(0, 0, int(n))
	return t.Year(), int(t.Month()), t.Day(), true
}

func init() {
	register("DATE", 3, 3, 0, fnDate)
	register("YEAR", 1, 1, 0, datePart(func(y, m, d int) int { return y }))
	register("MONTH", 1, 1, 0, datePart(func(y, m, d int) int { return m }))
	register("DAY", 1, 1, 0, datePart(func(y, m, d int) int { return d }))
	register("EDATE", 2, 2, 0, shiftMonths(false))
	register("EOMONTH", 2, 2, 0, shiftMonths(true))
	register("WEEKDAY", 1, 2, 0, fnWeekday)
	register("TODAY", 0, 0, Volatile, func(ctx Context, _ []value.Value) value.Value {
		return value.Number(ctx.DateSystem().Serial(ctx.Now()))
	})
	register("NOW", 0, 0, Volatile, func(ctx Context, _ []value.Value) value.Value {
		now := ctx.Now()
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		frac := now.Sub(midnight).Seconds() / 86400
		return value.Number(ctx.DateSystem().Serial(now) + frac)
	})
}

func fnDate(ctx Context, args []value.Value) value.Value {
	sys := ctx.DateSystem()
	return BroadcastN(derefAll(ctx, args), func(xs []value.Value) value.Value {
		nums, errv, ok := numbers(xs)
		if !ok {
			return errv
		}
		y, m, d := int(math.Trunc(nums[0])), int(math.Trunc(nums[1])), int(math.Trunc(nums[2]))
		if y < 0 || y >= 10000 {
			return value.Error(value.ErrNum)
		}
		if y < 1900 {
			y += 1900
		}
		t := time.Date(y, time.Month(1), 1, 0, 0, 0, 0, time.UTC).AddDate(0, m-1, d-1)
		serial := sys.Serial(t)
		if serial < 0 || serial > maxSerial {
			return value.Error(value.ErrNum)
		}
		return value.Number(serial)
	})
}

func datePart(pick func(y, m, d int) int) Func {
	return func(ctx Context, args []value.Value) value.Value {
		sys := ctx.DateSystem()
		return Map(ctx.Deref(args[0]), func(v value.Value) value.Value {
			n, errv, ok := numberArg(v)
			if !ok {
				return errv
			}
			y, m, d, ok := sys.Civil(n)
			if !ok {
				return value.Error(value.ErrNum)
			}
			return value.Number(float64(pick(y, m, d)))
		})
	}
}

func daysIn(y, m int) int {
	return time.Date(y, time.Month(m)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func shiftMonths(endOfMonth bool) Func {
	return func(ctx Context, args []value.Value) value.Value {
		sys := ctx.DateSystem()
		return BroadcastN(derefAll(ctx, args), func(xs []value.Value) value.Value {
			nums, errv, ok := numbers(xs)
			if !ok {
				return errv
			}
			y, m, d, ok := sys.Civil(nums[0])
			if !ok {
				return value.Error(value.ErrNum)
			}
			total := y*12 + (m - 1) + int(math.Trunc(nums[1]))
			ty, tm := total/12, total%12+1
			if total < 0 {
				return value.Error(value.ErrNum)
			}
			last := daysIn(ty, tm)
			if endOfMonth || d > last {
				d = last
			}
			if d < 1 {
				d = 1
			}
			serial := sys.Serial(time.Date(ty, time.Month(tm), d, 0, 0, 0, 0, time.UTC))
			if serial < 0 || serial > maxSerial {
				return value.Error(value.ErrNum)
			}
			return value.Number(serial)
		})
	}
}

func fnWeekday(ctx Context, args []value.Value) value.Value {
	sys := ctx.DateSystem()
	vals := derefAll(ctx, args)
	if len(vals) == 1 {
		vals = append(vals, value.Number(1))
	}
	return BroadcastN(vals, func(xs []value.Value) value.Value {
		serial, errv, ok := numberArg(xs[0])
		if !ok {
			return errv
		}
		kind := 1.0
		if !xs[1].IsBlank() {
			if kind, errv, ok = numberArg(xs[1]); !ok {
				return errv
			}
		}
		n := math.Floor(serial)
		if n < 0 || n > maxSerial {
			return value.Error(value.ErrNum)
		}
		if sys == Date1904 {
			n += offset1904
		}
		// 0 = Sunday. The 1900 system counts serial 1 as a Sunday.
		dow := int(math.Mod(n+6, 7))
		switch int(kind) {
		case 1:
			return value.Number(float64(dow + 1))
		case 2:
			return value.Number(float64((dow+6)%7 + 1))
		case 3:
			return value.Number(float64((dow + 6) % 7))
		}
		return value.Error(value.ErrNum)
	})
}
