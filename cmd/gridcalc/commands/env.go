package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gridcalc/gridcalc/pkg/config"
	"github.com/gridcalc/gridcalc/pkg/engine"
	"github.com/gridcalc/gridcalc/pkg/telemetry"
	"github.com/gridcalc/gridcalc/pkg/workbook"
)

// env is what every command needs: the merged engine configuration and
// the telemetry built from it.
type env struct {
	cfg config.EngineConfig
	tel *telemetry.Telemetry
	log *telemetry.Logger
}

// newEnv loads the configuration named by --config. metricsAddr enables
// the metrics endpoint when non-empty.
func newEnv(cmd *cobra.Command, metricsAddr string) (*env, error) {
	cfg, err := config.Load(cmd.Context(), configPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if modeFlag != "" {
		if _, err := engine.ParseMode(modeFlag); err != nil {
			return nil, err
		}
		cfg.Mode = modeFlag
	}

	tcfg := cfg.Telemetry
	if tcfg == nil {
		tcfg = telemetry.DefaultConfig()
		tcfg.Metrics.Enabled = false
	}
	tcfg.ServiceVersion = buildVersion
	tcfg.Logging.NoColor = tcfg.Logging.NoColor || !isatty.IsTerminal(os.Stderr.Fd())
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" && cfg.Telemetry == nil {
		tcfg.Logging.Level = lvl
	}
	if verbose {
		tcfg.Logging.Level = "debug"
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if metricsAddr != "" {
		tcfg.Metrics.Enabled = true
		tcfg.Metrics.ListenAddress = metricsAddr
	}

	tel, err := telemetry.NewTelemetry(tcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	return &env{
		cfg: cfg,
		tel: tel,
		log: tel.Logger.NewComponentLogger("cli"),
	}, nil
}

func (e *env) close(ctx context.Context) {
	if err := e.tel.Flush(ctx); err != nil {
		e.log.WithError(err).Warn("Telemetry flush failed")
	}
	if err := e.tel.Shutdown(ctx); err != nil {
		e.log.WithError(err).Warn("Telemetry shutdown failed")
	}
}

// mode returns the recalculation mode from --mode or the config.
func (e *env) mode() (engine.Mode, error) {
	return e.cfg.RecalcMode()
}

// options returns workbook options built from the config.
func (e *env) options() (engine.Options, error) {
	return e.cfg.Options(e.tel)
}

// newWorkbook returns an empty workbook with one sheet.
func (e *env) newWorkbook(sheet string) (*engine.Workbook, error) {
	opts, err := e.options()
	if err != nil {
		return nil, err
	}
	wb := engine.NewWorkbook(opts)
	if _, err := wb.AddSheet(sheet); err != nil {
		return nil, err
	}
	return wb, nil
}

// start begins an instrumented operation that carries this env's
// telemetry.
func (e *env) start(ctx context.Context, name string, attrs ...attribute.KeyValue) *telemetry.Operation {
	return telemetry.StartOperation(e.tel.WithContext(ctx), name, attrs...)
}

// load reads and builds a workbook document. The workbook is not yet
// recalculated.
func (e *env) load(ctx context.Context, path string) (res *workbook.Result, err error) {
	op := e.start(ctx, "workbook.load", telemetry.AttrSource.String(path))
	defer func() { op.End(err) }()

	doc, err := workbook.Load(path)
	if err != nil {
		return nil, err
	}
	opts, err := e.options()
	if err != nil {
		return nil, err
	}
	res, err = doc.Build(opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	op.Logger.WithFields(map[string]interface{}{
		"path":     path,
		"workbook": res.Workbook.ID(),
		"sheets":   len(doc.Sheets),
		"models":   len(doc.Models),
	}).Debug("Workbook loaded")
	return res, nil
}

// recalc runs one pass and logs its outcome. Cycles are logged, not
// returned.
func (e *env) recalc(ctx context.Context, wb *engine.Workbook) (report *engine.Report, err error) {
	mode, err := e.mode()
	if err != nil {
		return nil, err
	}
	op := e.start(ctx, "workbook.recalc",
		telemetry.AttrRecalcMode.String(mode.String()),
		attribute.String("workbook.id", wb.ID()),
	)
	defer func() { op.End(err) }()

	report, err = wb.Recalculate(op.Ctx, mode)
	if err != nil {
		return nil, err
	}

	l := op.Logger.WithPassID(report.PassID)
	if cerr := report.Err(); cerr != nil {
		l.WithError(cerr).Warn("Circular references found")
	}
	for _, origin := range report.SpillsBlocked {
		l.WithCell(wb.CellName(origin)).Warn("Spill blocked")
	}
	l.WithFields(map[string]interface{}{
		"mode":      report.Mode.String(),
		"dirty":     report.Dirty,
		"evaluated": report.Evaluated,
		"changed":   len(report.Changed),
		"duration":  report.Duration.String(),
	}).Info("Recalculation finished")
	return report, nil
}
