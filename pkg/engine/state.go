package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gridcalc/gridcalc/pkg/value"
)

// State is the recalculation state of a formula cell.
type State uint8

const (
	// StateClean means the stored result is current.
	StateClean State = iota

	// StateDirty means a precedent changed since the last evaluation.
	StateDirty

	// StateEvaluating marks a cell whose evaluation is in progress in the
	// current pass. Reaching it again means a cycle.
	StateEvaluating

	// StateError means the cell sits on a dependency cycle and holds #CALC!.
	StateError
)

var stateNames = map[State]string{
	StateClean:      "clean",
	StateDirty:      "dirty",
	StateEvaluating: "evaluating",
	StateError:      "error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// IsSettled reports whether no evaluation is pending for the cell.
func (s State) IsSettled() bool {
	return s == StateClean || s == StateError
}

// Mode selects how a recalculation pass schedules dirty cells.
type Mode uint8

const (
	// SingleThreaded evaluates on demand in depth-first order, visiting
	// dirty cells in sheet, row, column order. Results are deterministic.
	SingleThreaded Mode = iota

	// Parallel evaluates dependency levels across a worker pool and
	// finishes hazardous cells in a single-threaded follow-up.
	Parallel
)

func (m Mode) String() string {
	switch m {
	case SingleThreaded:
		return "single"
	case Parallel:
		return "parallel"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode converts "single" or "parallel" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single", "single-threaded", "":
		return SingleThreaded, nil
	case "parallel":
		return Parallel, nil
	default:
		return SingleThreaded, invalid("unknown recalculation mode %q", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (m *Mode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	mode, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// Report summarizes one recalculation pass.
type Report struct {
	// PassID identifies the pass in logs, traces and events.
	PassID string `json:"pass_id"`

	Mode Mode `json:"mode"`

	// Dirty is the number of formula cells dirty when the pass started.
	Dirty int `json:"dirty"`

	// Evaluated counts formula evaluations, including re-evaluations.
	Evaluated int `json:"evaluated"`

	// VM and Tree split Evaluated by execution path.
	VM   int `json:"vm"`
	Tree int `json:"tree"`

	// Levels is the number of dependency levels run in parallel mode.
	Levels int `json:"levels,omitempty"`

	// FollowUp counts cells finished by the single-threaded follow-up of a
	// parallel pass.
	FollowUp int `json:"follow_up,omitempty"`

	// Changed lists cells whose stored value changed, in cell order.
	Changed []value.CellRef `json:"-"`

	// SpillsBlocked lists origins left holding #SPILL!.
	SpillsBlocked []value.CellRef `json:"-"`

	// Cycles holds one CYCLE error per circular reference found.
	Cycles []*Error `json:"cycles,omitempty"`

	Duration time.Duration `json:"duration"`
}

// Err joins the cycle errors of the pass, or returns nil.
func (r *Report) Err() error {
	if len(r.Cycles) == 0 {
		return nil
	}
	errs := make([]error, len(r.Cycles))
	for i, c := range r.Cycles {
		errs[i] = c
	}
	return errors.Join(errs...)
}
