package stores

import (
	"context"
	"errors"
	"time"

	"github.com/gridcalc/gridcalc/pkg/engine"
)

// ErrNotFound is wrapped by lookups that match nothing.
var ErrNotFound = errors.New("not found")

// CellKind tags how a stored cell is encoded.
type CellKind string

const (
	CellKindNumber  CellKind = "number"
	CellKindText    CellKind = "text"
	CellKindBool    CellKind = "bool"
	CellKindError   CellKind = "error"
	CellKindFormula CellKind = "formula"
)

// Snapshot is the stored content of a workbook: literals, formulas,
// names and tables. Computed values are not stored; a restored workbook
// recalculates them.
type Snapshot struct {
	ID         string                   `json:"id"`
	WorkbookID string                   `json:"workbook_id"`
	Label      string                   `json:"label"`
	Locale     string                   `json:"locale"` // BCP 47 tag formula text is written in
	Sheets     []string                 `json:"sheets"`
	Cells      []CellRecord             `json:"cells"`
	Names      []engine.NameDefinition  `json:"names,omitempty"`
	Tables     []engine.TableDefinition `json:"tables,omitempty"`
	CreatedAt  time.Time                `json:"created_at"`
}

// CellRecord is one stored cell.
type CellRecord struct {
	Sheet   string   `json:"sheet"`
	Row     uint32   `json:"row"` // 0-based
	Col     uint32   `json:"col"` // 0-based
	Kind    CellKind `json:"kind"`
	Formula string   `json:"formula,omitempty"`
	Number  float64  `json:"number,omitempty"` // number, and 1/0 for bool
	Text    string   `json:"text,omitempty"`   // text, or the error literal
}

// SnapshotInfo summarizes a snapshot without its content.
type SnapshotInfo struct {
	ID         string    `json:"id"`
	WorkbookID string    `json:"workbook_id"`
	Label      string    `json:"label"`
	Locale     string    `json:"locale"`
	Cells      int       `json:"cells"`
	CreatedAt  time.Time `json:"created_at"`
}

// PassRecord is the stored summary of a recalculation pass.
type PassRecord struct {
	ID            int64         `json:"id"`
	WorkbookID    string        `json:"workbook_id"`
	PassID        string        `json:"pass_id"`
	Mode          string        `json:"mode"`
	Dirty         int           `json:"dirty"`
	Evaluated     int           `json:"evaluated"`
	VM            int           `json:"vm"`
	Tree          int           `json:"tree"`
	Cycles        int           `json:"cycles"`
	SpillsBlocked int           `json:"spills_blocked"`
	Duration      time.Duration `json:"duration"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Snapshot operations
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
	GetSnapshot(ctx context.Context, id string) (*Snapshot, error)
	LatestSnapshot(ctx context.Context, workbookID string) (*Snapshot, error)
	ListSnapshots(ctx context.Context, limit, offset int) ([]*SnapshotInfo, error)
	DeleteSnapshot(ctx context.Context, id string) error

	// Recalculation history
	RecordPass(ctx context.Context, workbookID string, report *engine.Report) error
	ListPasses(ctx context.Context, workbookID string, limit int) ([]*PassRecord, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
