package config

import (
	"fmt"
	"time"

	"github.com/gridcalc/gridcalc/pkg/compiler"
	"github.com/gridcalc/gridcalc/pkg/engine"
	"github.com/gridcalc/gridcalc/pkg/functions"
	"github.com/gridcalc/gridcalc/pkg/locale"
	"github.com/gridcalc/gridcalc/pkg/telemetry"
)

// EngineConfig holds the settings a workbook is created with.
type EngineConfig struct {
	// Mode is the default recalculation mode (single, parallel).
	Mode string `yaml:"mode" json:"mode" validate:"required,oneof=single parallel"`

	// MaxWorkers bounds the worker pool of parallel passes. Zero uses
	// GOMAXPROCS.
	MaxWorkers int `yaml:"max_workers" json:"max_workers" validate:"gte=0,lte=1024"`

	// MaxArrayCells lowers the array ceiling of each workbook when positive.
	MaxArrayCells int `yaml:"max_array_cells" json:"max_array_cells" validate:"gte=0"`

	// MaxDepth bounds nested name and lambda evaluation.
	MaxDepth int `yaml:"max_depth" json:"max_depth" validate:"gt=0,lte=100000"`

	// Rows is the height of new sheets.
	Rows uint32 `yaml:"rows" json:"rows" validate:"gt=0"`

	// DateSystem is the serial date epoch (1900, 1904).
	DateSystem string `yaml:"date_system" json:"date_system" validate:"required,oneof=1900 1904"`

	// ReferenceStyle is the notation formulas are written in (A1, R1C1).
	ReferenceStyle string `yaml:"reference_style" json:"reference_style" validate:"required,oneof=A1 R1C1"`

	// Locale is a BCP 47 tag selecting the formula locale.
	Locale string `yaml:"locale" json:"locale" validate:"omitempty,bcp47_language_tag"`

	// Telemetry configures logging, tracing, metrics and events.
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty" json:"telemetry,omitempty"`
}

// ParsedConfig is the result of loading configuration sources.
type ParsedConfig struct {
	// Engine is the decoded configuration, with defaults applied.
	Engine EngineConfig `json:"engine"`

	// SourceFiles are the files that were read.
	SourceFiles []string `json:"source_files"`

	// ParsedAt is when the configuration was parsed.
	ParsedAt time.Time `json:"parsed_at"`

	// Errors lists any validation errors.
	Errors []ValidationError `json:"errors,omitempty"`
}

// Err folds Errors into a single error, or returns nil.
func (pc *ParsedConfig) Err() error {
	if len(pc.Errors) == 0 {
		return nil
	}
	if len(pc.Errors) == 1 {
		return pc.Errors[0]
	}
	return fmt.Errorf("%w (and %d more)", pc.Errors[0], len(pc.Errors)-1)
}

// ValidationError represents a validation error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the field path to the error (e.g., "engine.max_depth").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`

	// Severity is the error severity (error, warning, info).
	Severity string `json:"severity" validate:"required,oneof=error warning info"`
}

func (e ValidationError) Error() string {
	loc := e.File
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", e.File, e.Line, e.Column)
	}
	switch {
	case loc != "" && e.Path != "":
		return fmt.Sprintf("%s: %s: %s", loc, e.Path, e.Message)
	case loc != "":
		return fmt.Sprintf("%s: %s", loc, e.Message)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Default returns the configuration a workbook gets when nothing is set.
func Default() EngineConfig {
	return EngineConfig{
		Mode:           "single",
		MaxDepth:       engine.DefaultOptions().MaxDepth,
		Rows:           engine.DefaultOptions().Rows,
		DateSystem:     "1900",
		ReferenceStyle: "A1",
		Locale:         "en-US",
	}
}

// RecalcMode returns the parsed default recalculation mode.
func (c EngineConfig) RecalcMode() (engine.Mode, error) {
	return engine.ParseMode(c.Mode)
}

// Options converts the configuration to engine options. tel may be nil.
func (c EngineConfig) Options(tel *telemetry.Telemetry) (engine.Options, error) {
	opts := engine.DefaultOptions()

	loc, err := locale.ForTag(c.Locale)
	if err != nil {
		return opts, err
	}
	opts.Locale = loc

	switch c.ReferenceStyle {
	case "", "A1":
		opts.Style = compiler.StyleA1
	case "R1C1":
		opts.Style = compiler.StyleR1C1
	default:
		return opts, fmt.Errorf("unknown reference style %q", c.ReferenceStyle)
	}

	switch c.DateSystem {
	case "", "1900":
		opts.DateSystem = functions.Date1900
	case "1904":
		opts.DateSystem = functions.Date1904
	default:
		return opts, fmt.Errorf("unknown date system %q", c.DateSystem)
	}

	if c.MaxDepth > 0 {
		opts.MaxDepth = c.MaxDepth
	}
	if c.MaxWorkers > 0 {
		opts.MaxWorkers = c.MaxWorkers
	}
	if c.Rows > 0 {
		opts.Rows = c.Rows
	}
	opts.MaxArrayCells = c.MaxArrayCells
	opts.Telemetry = tel
	return opts, nil
}
