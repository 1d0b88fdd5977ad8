package harness

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

var (
	schemaOnce sync.Once
	schemaVal  cue.Value
	schemaErr  error
)

// compileSchema compiles the embedded scenario schema once per process.
func compileSchema() (cue.Value, error) {
	schemaOnce.Do(func() {
		ctx := cuecontext.New()
		root := ctx.CompileString(schemaCUE)
		if err := root.Err(); err != nil {
			schemaErr = fmt.Errorf("compile schema.cue: %w", err)
			return
		}
		schemaVal = root.LookupPath(cue.ParsePath("#Scenario"))
		if err := schemaVal.Err(); err != nil {
			schemaErr = fmt.Errorf("lookup #Scenario: %w", err)
		}
	})
	return schemaVal, schemaErr
}

// ValidateSchema checks raw scenario YAML against the embedded CUE
// schema. Schema errors carry field paths, so a scenario author sees
// "steps.2.advance: invalid value" rather than a decode type mismatch.
func ValidateSchema(data []byte) error {
	schema, err := compileSchema()
	if err != nil {
		return err
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse YAML: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("scenario document is empty")
	}

	ctx := schema.Context()
	unified := schema.Unify(ctx.Encode(doc))
	if err := unified.Err(); err != nil {
		return fmt.Errorf("schema mismatch: %w", err)
	}
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema mismatch: %w", err)
	}
	return nil
}
