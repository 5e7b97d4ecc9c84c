package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/gridcalc/gridcalc/pkg/engine"
	"github.com/gridcalc/gridcalc/pkg/value"
)

// setupTestStore creates a migrated SQLite store in a temp dir
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "gridcalc.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	return store
}

func newWorkbook(t *testing.T) *engine.Workbook {
	t.Helper()
	wb := engine.NewWorkbook(engine.Options{})
	for _, name := range []string{"Sheet1", "Data"} {
		if _, err := wb.AddSheet(name); err != nil {
			t.Fatalf("AddSheet failed: %v", err)
		}
	}
	set := func(ref string, v value.Value) {
		c, err := wb.Cell(ref)
		if err != nil {
			t.Fatal(err)
		}
		if err := wb.SetValue(c, v); err != nil {
			t.Fatalf("SetValue(%s) failed: %v", ref, err)
		}
	}
	setFormula := func(ref, text string) {
		c, err := wb.Cell(ref)
		if err != nil {
			t.Fatal(err)
		}
		if err := wb.SetFormula(c, text); err != nil {
			t.Fatalf("SetFormula(%s) failed: %v", ref, err)
		}
	}

	set("Data!A1", value.Text("Qty"))
	set("Data!A2", value.Number(4))
	set("Data!A3", value.Number(6))
	set("Sheet1!A1", value.Number(10))
	set("Sheet1!A2", value.Bool(true))
	set("Sheet1!A3", value.Error(value.ErrNA))

	if err := wb.DefineName("", "Rate", "=0.5"); err != nil {
		t.Fatalf("DefineName failed: %v", err)
	}
	err := wb.DefineTable(engine.TableDefinition{Name: "Orders", Sheet: "Data", Range: "A1:A3", Header: true})
	if err != nil {
		t.Fatalf("DefineTable failed: %v", err)
	}
	setFormula("Sheet1!B1", "=A1*Rate")
	setFormula("Sheet1!B2", "=SUM(Orders[Qty])")
	return wb
}

func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "lifecycle.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestStoreMigrations_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	if err := store.Migrate(context.Background()); err != nil {
		t.Errorf("second migration failed: %v", err)
	}
}

func TestSQLiteStore_SnapshotRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	wb := newWorkbook(t)
	snap := Capture(wb, "before import")
	if err := store.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if snap.ID == "" || snap.CreatedAt.IsZero() {
		t.Fatal("Expected SaveSnapshot to assign an ID and timestamp")
	}

	got, err := store.GetSnapshot(ctx, snap.ID)
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if got.WorkbookID != wb.ID() || got.Label != "before import" || got.Locale != "en-US" {
		t.Errorf("unexpected snapshot header %+v", got)
	}
	if len(got.Sheets) != 2 || got.Sheets[0] != "Sheet1" || got.Sheets[1] != "Data" {
		t.Errorf("Expected sheets [Sheet1 Data], got %v", got.Sheets)
	}
	if len(got.Cells) != len(snap.Cells) {
		t.Fatalf("Expected %d cells, got %d", len(snap.Cells), len(got.Cells))
	}
	for i := range snap.Cells {
		if got.Cells[i] != snap.Cells[i] {
			t.Errorf("cell %d: expected %+v, got %+v", i, snap.Cells[i], got.Cells[i])
		}
	}
	if len(got.Names) != 1 || got.Names[0].Name != "Rate" {
		t.Errorf("Expected name Rate, got %+v", got.Names)
	}
	if len(got.Tables) != 1 || got.Tables[0].Name != "Orders" || len(got.Tables[0].Columns) != 1 {
		t.Errorf("Expected table Orders with one column, got %+v", got.Tables)
	}
}

func TestSnapshot_Restore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	snap := Capture(newWorkbook(t), "")
	if err := store.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	loaded, err := store.GetSnapshot(ctx, snap.ID)
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}

	wb, err := loaded.Restore(engine.Options{})
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if _, err := wb.Recalculate(ctx, engine.SingleThreaded); err != nil {
		t.Fatalf("Recalculate failed: %v", err)
	}

	tests := []struct {
		ref  string
		want value.Value
	}{
		{"Sheet1!B1", value.Number(5)},
		{"Sheet1!B2", value.Number(10)},
		{"Sheet1!A2", value.Bool(true)},
		{"Sheet1!A3", value.Error(value.ErrNA)},
		{"Data!A1", value.Text("Qty")},
	}
	for _, tt := range tests {
		c, err := wb.Cell(tt.ref)
		if err != nil {
			t.Fatal(err)
		}
		if got := wb.Value(c); !value.Identical(got, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.ref, tt.want, got)
		}
	}
}

func TestSQLiteStore_ListAndDeleteSnapshots(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	wb := newWorkbook(t)

	first := Capture(wb, "first")
	first.CreatedAt = time.Now().Add(-time.Hour).UTC()
	if err := store.SaveSnapshot(ctx, first); err != nil {
		t.Fatal(err)
	}
	second := Capture(wb, "second")
	if err := store.SaveSnapshot(ctx, second); err != nil {
		t.Fatal(err)
	}

	infos, err := store.ListSnapshots(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	if len(infos) != 2 || infos[0].Label != "second" {
		t.Fatalf("Expected newest first, got %+v", infos)
	}
	if infos[0].Cells != len(second.Cells) {
		t.Errorf("Expected %d cells, got %d", len(second.Cells), infos[0].Cells)
	}

	latest, err := store.LatestSnapshot(ctx, wb.ID())
	if err != nil || latest.ID != second.ID {
		t.Errorf("Expected latest snapshot %s, got %v (%v)", second.ID, latest, err)
	}

	if err := store.DeleteSnapshot(ctx, second.ID); err != nil {
		t.Fatalf("DeleteSnapshot failed: %v", err)
	}
	if _, err := store.GetSnapshot(ctx, second.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := store.DeleteSnapshot(ctx, second.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for second delete, got %v", err)
	}
	if _, err := store.LatestSnapshot(ctx, "no-such-workbook"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown workbook, got %v", err)
	}
}

func TestSQLiteStore_RecordPass(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	wb := newWorkbook(t)
	for _, mode := range []engine.Mode{engine.SingleThreaded, engine.Parallel} {
		c, _ := wb.Cell("Sheet1!A1")
		if err := wb.SetValue(c, value.Number(float64(mode)+1)); err != nil {
			t.Fatal(err)
		}
		report, err := wb.Recalculate(ctx, mode)
		if err != nil {
			t.Fatalf("Recalculate failed: %v", err)
		}
		if err := store.RecordPass(ctx, wb.ID(), report); err != nil {
			t.Fatalf("RecordPass failed: %v", err)
		}
	}

	passes, err := store.ListPasses(ctx, wb.ID(), 10)
	if err != nil {
		t.Fatalf("ListPasses failed: %v", err)
	}
	if len(passes) != 2 {
		t.Fatalf("Expected 2 passes, got %d", len(passes))
	}
	if passes[0].Mode != "parallel" || passes[1].Mode != "single" {
		t.Errorf("Expected newest first, got %s then %s", passes[0].Mode, passes[1].Mode)
	}
	if passes[1].Evaluated == 0 {
		t.Error("Expected the first pass to evaluate cells")
	}
}
