package config

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for validation. Every definition in
// a registered source is available under its name, lowercased and
// without the leading "#".
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}
	if err := sr.RegisterSchema("builtin", builtinEngineSchema); err != nil {
		panic(err)
	}
	return sr
}

// Context returns the CUE context schemas are compiled in. Values unified
// with a schema must come from the same context.
func (sr *SchemaRegistry) Context() *cue.Context {
	return sr.ctx
}

// RegisterSchema compiles src and registers each of its definitions.
// name labels compile errors.
func (sr *SchemaRegistry) RegisterSchema(name, src string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(src, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	iter, err := val.Fields(cue.Definitions(true))
	if err != nil {
		return fmt.Errorf("failed to read schema %s: %w", name, err)
	}
	found := 0
	for iter.Next() {
		sel := iter.Selector()
		if !sel.IsDefinition() {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(sel.String(), "#"))
		sr.schemas[key] = iter.Value()
		found++
	}
	if found == 0 {
		return fmt.Errorf("schema %s declares no definitions", name)
	}
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[strings.ToLower(name)]
	return val, ok
}

// ValidateAgainstSchema validates data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	// Convert data to CUE value
	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	// Unify with schema (validates)
	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// ValidateEngine validates an engine configuration against the engine schema.
func (sr *SchemaRegistry) ValidateEngine(ctx context.Context, cfg EngineConfig) error {
	return sr.ValidateAgainstSchema(ctx, "engine", cfg)
}

// ListSchemas returns all registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Built-in schema definitions

const builtinEngineSchema = `
// Engine holds the settings a workbook is created with.
#Engine: {
	// Default recalculation mode
	mode: *"single" | "parallel"

	// Worker pool bound for parallel passes, 0 means GOMAXPROCS
	max_workers: *0 | (int & >=0 & <=1024)

	// Array ceiling override, 0 keeps the built-in ceiling
	max_array_cells: *0 | (int & >=0)

	// Nested name and lambda evaluation bound
	max_depth: *512 | (int & >0 & <=100000)

	// Height of new sheets
	rows: *1048576 | (int & >0 & <=4294967295)

	date_system:     *"1900" | "1904"
	reference_style: *"A1" | "R1C1"

	// BCP 47 tag of the formula locale
	locale: *"en-US" | (string & =~"^[A-Za-z]{2,3}(-[A-Za-z0-9]{2,8})*$")

	telemetry?: #Telemetry
}

// Telemetry mirrors the telemetry configuration. Unlisted fields keep
// their defaults.
#Telemetry: {
	service_name?:    string & !=""
	service_version?: string & !=""
	environment?:     string

	logging?: {
		level?:  "trace" | "debug" | "info" | "warn" | "error" | "fatal"
		format?: "console" | "json"
		output?: string
		...
	}

	tracing?: {
		enabled?:       bool
		exporter?:      "otlp" | "stdout" | "none"
		sampling_rate?: number & >=0 & <=1
		...
	}

	metrics?: {
		enabled?: bool
		...
	}

	events?: {
		enabled?:     bool
		buffer_size?: int & >=0
		...
	}
	...
}
`
