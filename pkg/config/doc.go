// Package config loads engine settings for gridcalc workbooks.
//
// # Overview
//
// Settings live under a top-level "engine" field in CUE, YAML or JSON
// files. Sources are unified, so a base file can be refined by a second
// one, and the result is checked against the built-in #Engine schema,
// which also fills in defaults for anything left unset.
//
// # Components
//
// CUEParser: Loads files and directories (as CUE packages), applies the
// schema, decodes an EngineConfig and checks its validate tags.
//
// SchemaRegistry: Holds CUE schemas by definition name. The built-in
// sources register "engine" and "telemetry"; custom schemas can be added.
//
// EngineConfig: The decoded settings. Options converts them to
// engine.Options.
//
// # Usage Example
//
//	cfg, err := config.Load(ctx, "gridcalc.cue")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	opts, err := cfg.Options(tel)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	wb := engine.NewWorkbook(opts)
//
// A minimal file:
//
//	engine: {
//	    mode:      "parallel"
//	    locale:    "de-DE"
//	    max_depth: 256
//	}
//
// # Error Handling
//
// Parse reports schema and tag violations in ParsedConfig.Errors, each
// with location information where the source provides it:
//
//	ValidationError{
//	    File: "gridcalc.cue",
//	    Line: 3,
//	    Column: 16,
//	    Path: "max_depth",
//	    Message: "invalid value 0 (out of bound >0)",
//	    Severity: "error",
//	}
//
// Only I/O and decoding failures are returned as errors.
//
// # Thread Safety
//
// SchemaRegistry is safe for concurrent use. A CUEParser shares one CUE
// context and should not be used from several goroutines at once.
package config
