package solution

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages the CUE schemas the parser validates documents
// against before mapping them into descriptor types.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with the built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}
	sr.registerBuiltInSchemas()
	return sr
}

func (sr *SchemaRegistry) registerBuiltInSchemas() {
	// Registration of built-in schemas cannot fail; they are compile-checked
	// by the schema tests.
	_ = sr.RegisterSchema("solution", builtinSolutionSchema)
	_ = sr.RegisterSchema("project", builtinProjectSchema)
	_ = sr.RegisterSchema("defaults", builtinDefaultsSchema)
}

// RegisterSchema compiles and registers a CUE schema under the given name.
// The schema source must define a definition named #Document.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	def := val.LookupPath(cue.ParsePath("#Document"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("schema %s does not define #Document: %w", name, err)
	}

	sr.schemas[name] = def
	return nil
}

// Validate validates a decoded YAML document against a named schema.
func (sr *SchemaRegistry) Validate(schemaName string, data interface{}) error {
	sr.mu.RLock()
	schema, ok := sr.schemas[schemaName]
	sr.mu.RUnlock()
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// Built-in schema definitions.

const builtinSolutionSchema = `
#Name: string & =~"^[A-Za-z0-9][A-Za-z0-9_-]*$"

#Type: {
	name:       #Name
	device?:    string
	board?:     string
	toolchain?: string
	vars?: {[string]: string}
}

#Document: {
	solution: {
		name?:          #Name
		description?:   string
		"output-dir"?:  string
		"use-defaults"?: bool
		"frozen-packs"?: bool
		projects: [...{project: string}]
		"build-types": [...#Type]
		"target-types": [...#Type]
		packs?: [...{pack: string}]
	}
}
`

const builtinProjectSchema = `
#Document: {
	project: {
		name?:       string & =~"^[A-Za-z0-9][A-Za-z0-9_-]*$"
		description?: string
		toolchain?:  string
		device?:     string
		board?:      string
		components?: [...{component: string}]
		packs?: [...{pack: string}]
		vars?: {[string]: string}
	}
}
`

const builtinDefaultsSchema = `
#Document: {
	defaults: {
		toolchain?: string
		vars?: {[string]: string}
	}
}
`
