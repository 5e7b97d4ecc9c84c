package config

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/gridcalc/gridcalc/pkg/telemetry"
)

// CUEParser loads engine configuration from CUE, YAML and JSON files.
// All sources are unified under the top-level "engine" field and checked
// against the built-in #Engine schema, which also supplies defaults.
type CUEParser struct {
	ctx            *cue.Context
	schemaRegistry *SchemaRegistry
	validator      *validator.Validate
}

// NewCUEParser creates a new CUE parser.
func NewCUEParser() *CUEParser {
	sr := NewSchemaRegistry()
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &CUEParser{
		ctx:            sr.Context(),
		schemaRegistry: sr,
		validator:      v,
	}
}

// Load parses sources and returns the engine configuration, failing on
// the first validation error.
func Load(ctx context.Context, sources ...string) (EngineConfig, error) {
	if len(sources) == 0 {
		return Default(), nil
	}
	pc, err := NewCUEParser().Parse(ctx, sources)
	if err != nil {
		return EngineConfig{}, err
	}
	if err := pc.Err(); err != nil {
		return EngineConfig{}, err
	}
	return pc.Engine, nil
}

// Parse parses configuration from the given files and directories.
// Directories are loaded as CUE packages.
func (cp *CUEParser) Parse(ctx context.Context, sources []string) (*ParsedConfig, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources provided")
	}

	var cueValue cue.Value
	var sourceFiles []string
	var parseErrors []ValidationError

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := os.Stat(source)
		if err != nil {
			return nil, fmt.Errorf("failed to stat source %s: %w", source, err)
		}

		var val cue.Value
		var errs []ValidationError
		if info.IsDir() {
			var files []string
			val, files, errs = cp.loadDirectory(source)
			sourceFiles = append(sourceFiles, files...)
		} else {
			val, errs = cp.loadFile(source)
			sourceFiles = append(sourceFiles, source)
		}
		parseErrors = append(parseErrors, errs...)
		if val.Exists() {
			if cueValue.Exists() {
				cueValue = cueValue.Unify(val)
			} else {
				cueValue = val
			}
		}
	}

	if len(parseErrors) > 0 {
		return &ParsedConfig{
			SourceFiles: sourceFiles,
			ParsedAt:    time.Now(),
			Errors:      parseErrors,
		}, nil
	}

	return cp.extractConfig(cueValue, sourceFiles)
}

// ParseInline parses inline CUE (or JSON) content.
func (cp *CUEParser) ParseInline(ctx context.Context, content string) (*ParsedConfig, error) {
	val := cp.ctx.CompileString(content, cue.Filename("inline"))
	if err := val.Err(); err != nil {
		return &ParsedConfig{
			SourceFiles: []string{"inline"},
			ParsedAt:    time.Now(),
			Errors:      cp.convertCUEErrors(err),
		}, nil
	}

	return cp.extractConfig(val, []string{"inline"})
}

// loadDirectory loads a directory as a CUE package.
func (cp *CUEParser) loadDirectory(dir string) (cue.Value, []string, []ValidationError) {
	buildInstances := load.Instances([]string{dir}, nil)
	if len(buildInstances) == 0 {
		return cue.Value{}, nil, []ValidationError{{
			File:     dir,
			Message:  "no CUE files found",
			Severity: "error",
		}}
	}

	inst := buildInstances[0]
	if inst.Err != nil {
		return cue.Value{}, nil, cp.convertCUEErrors(inst.Err)
	}

	val := cp.ctx.BuildInstance(inst)
	if err := val.Err(); err != nil {
		return cue.Value{}, nil, cp.convertCUEErrors(err)
	}

	var files []string
	for _, file := range inst.Files {
		if file.Filename != "" {
			files = append(files, file.Filename)
		}
	}

	return val, files, nil
}

// loadFile loads a single file. YAML is decoded with yaml.v3 and encoded
// into CUE; CUE and JSON are compiled directly.
func (cp *CUEParser) loadFile(path string) (cue.Value, []ValidationError) {
	content, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, []ValidationError{{
			File:     path,
			Message:  fmt.Sprintf("failed to read file: %v", err),
			Severity: "error",
		}}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc map[string]interface{}
		if err := yaml.Unmarshal(content, &doc); err != nil {
			return cue.Value{}, []ValidationError{yamlError(path, err)}
		}
		if doc == nil {
			doc = map[string]interface{}{}
		}
		val := cp.ctx.Encode(doc)
		if err := val.Err(); err != nil {
			return cue.Value{}, cp.convertCUEErrors(err)
		}
		return val, nil
	}

	val := cp.ctx.CompileString(string(content), cue.Filename(path))
	if err := val.Err(); err != nil {
		return cue.Value{}, cp.convertCUEErrors(err)
	}

	return val, nil
}

func yamlError(path string, err error) ValidationError {
	ve := ValidationError{File: path, Message: err.Error(), Severity: "error"}
	var te *yaml.TypeError
	if stderrors.As(err, &te) && len(te.Errors) > 0 {
		ve.Message = te.Errors[0]
	}
	return ve
}

// extractConfig applies the engine schema to the "engine" field of val
// and decodes the result.
func (cp *CUEParser) extractConfig(val cue.Value, sourceFiles []string) (*ParsedConfig, error) {
	parsedConfig := &ParsedConfig{
		SourceFiles: sourceFiles,
		ParsedAt:    time.Now(),
	}

	schema, ok := cp.schemaRegistry.GetSchema("engine")
	if !ok {
		return nil, fmt.Errorf("engine schema not registered")
	}

	engineVal := val.LookupPath(cue.ParsePath("engine"))
	if !engineVal.Exists() {
		engineVal = cp.ctx.CompileString("{}")
	}

	unified := schema.Unify(engineVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		parsedConfig.Errors = cp.convertCUEErrors(err)
		return parsedConfig, nil
	}

	var cfg EngineConfig
	if err := unified.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode engine config: %w", err)
	}

	if tv := unified.LookupPath(cue.ParsePath("telemetry")); tv.Exists() {
		tc := telemetry.DefaultConfig()
		if err := tv.Decode(tc); err != nil {
			return nil, fmt.Errorf("failed to decode telemetry config: %w", err)
		}
		if err := tc.Validate(); err != nil {
			parsedConfig.Errors = append(parsedConfig.Errors, ValidationError{
				Path:     "engine.telemetry",
				Message:  err.Error(),
				Severity: "error",
			})
		}
		cfg.Telemetry = tc
	}

	parsedConfig.Errors = append(parsedConfig.Errors, cp.validateStruct(cfg)...)
	parsedConfig.Engine = cfg
	return parsedConfig, nil
}

// Validate checks cfg against the struct tags and the engine schema.
func (cp *CUEParser) Validate(ctx context.Context, cfg EngineConfig) error {
	if errs := cp.validateStruct(cfg); len(errs) > 0 {
		return (&ParsedConfig{Errors: errs}).Err()
	}
	return cp.schemaRegistry.ValidateEngine(ctx, cfg)
}

func (cp *CUEParser) validateStruct(cfg EngineConfig) []ValidationError {
	err := cp.validator.Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return []ValidationError{{Message: err.Error(), Severity: "error"}}
	}
	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		path := fe.Namespace()
		if i := strings.IndexByte(path, '.'); i >= 0 {
			path = path[i+1:]
		}
		msg := "failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		out = append(out, ValidationError{
			Path:     "engine." + path,
			Message:  fmt.Sprintf("%s (value %v)", msg, fe.Value()),
			Severity: "error",
		})
	}
	return out
}

// convertCUEErrors converts CUE errors to ValidationError slice.
func (cp *CUEParser) convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	for _, e := range errors.Errors(err) {
		pos := errors.Positions(e)
		var file string
		var line, column int

		if len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ValidationError{
			File:     file,
			Line:     line,
			Column:   column,
			Path:     strings.Join(e.Path(), "."),
			Message:  strings.TrimSpace(errors.Details(e, nil)),
			Severity: "error",
		})
	}

	return validationErrors
}

// GetSchemaRegistry returns the schema registry.
func (cp *CUEParser) GetSchemaRegistry() *SchemaRegistry {
	return cp.schemaRegistry
}
