package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario: a unit-of-work flow against a
// fresh store, plus assertions on the resulting trace and committed state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog lists CUE document catalogs to register, relative to the
	// scenario file when loaded with LoadScenario.
	Catalog []string `yaml:"catalog"`

	// Setup steps run before the flow in their own session, which is saved
	// at the end. Every setup step must succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow steps run in order on one session.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace and committed state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one session operation.
type Step struct {
	// Op is one of store, delete, save, discard, load, query, where.
	Op string `yaml:"op"`

	// Type is the document type name (all ops except save and discard).
	Type string `yaml:"type,omitempty"`

	// Docs are the bodies to store.
	Docs []map[string]any `yaml:"docs,omitempty"`

	// IDs are the ids to delete, or the single id to load.
	IDs []any `yaml:"ids,omitempty"`

	// Filter and OrderBy are raw SQL fragments for query.
	Filter  string `yaml:"filter,omitempty"`
	OrderBy string `yaml:"order_by,omitempty"`

	// Match is a set of field equalities for where. Order lists fields to
	// sort by, "-" prefixed for descending, with an optional ":number" or
	// ":bool" kind suffix.
	Match map[string]any `yaml:"match,omitempty"`
	Order []string       `yaml:"order,omitempty"`
	Limit int            `yaml:"limit,omitempty"`

	// Expect validates the step. Without it the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Outcome is "ok" (default), "not_found", "unregistered",
	// "identity_missing", "serialization", "execution", "session_closed"
	// or "error".
	Outcome string `yaml:"outcome,omitempty"`

	// Docs is the exact result of a read, in order.
	Docs []map[string]any `yaml:"docs,omitempty"`

	// Count is the number of documents a read returns.
	Count *int `yaml:"count,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event with the label (and outcome, if given) occurred
	// - "trace_order": labels occur in this order
	// - "trace_count": label occurs exactly Count times
	// - "final_state": committed documents of a type
	Type string `yaml:"type"`

	// Event is an event label such as "save" or "store Person".
	Event string `yaml:"event,omitempty"`

	// Outcome narrows trace_contains to events with this outcome.
	Outcome string `yaml:"outcome,omitempty"`

	// Events is the expected label order (trace_order).
	Events []string `yaml:"events,omitempty"`

	// Count is the expected number of occurrences (trace_count) or of
	// committed documents (final_state).
	Count *int `yaml:"count,omitempty"`

	// Doc is the document type (final_state).
	Doc string `yaml:"doc,omitempty"`

	// ID selects one committed document (final_state). Expect is then a
	// subset match against it; an empty Expect asserts it is absent.
	ID any `yaml:"id,omitempty"`

	// Expect contains expected field values (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// Step operations.
const (
	OpStore   = "store"
	OpDelete  = "delete"
	OpSave    = "save"
	OpDiscard = "discard"
	OpLoad    = "load"
	OpQuery   = "query"
	OpWhere   = "where"
)

var typedOps = []string{OpStore, OpDelete, OpLoad, OpQuery, OpWhere}

// LoadScenario reads and parses a scenario YAML file, resolving catalog
// paths relative to the file. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving catalog paths relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, catalogPath := range scenario.Catalog {
		if !filepath.IsAbs(catalogPath) && basePath != "" {
			scenario.Catalog[i] = filepath.Join(basePath, catalogPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Catalog) == 0 {
		return fmt.Errorf("catalog list is required and must be non-empty")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, catalogPath := range s.Catalog {
		if _, err := os.Stat(catalogPath); os.IsNotExist(err) {
			return fmt.Errorf("catalog file not found: %s", catalogPath)
		}
	}

	for i, step := range s.Setup {
		if err := validateStep(fmt.Sprintf("setup[%d]", i), step); err != nil {
			return err
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is not allowed in setup", i)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(fmt.Sprintf("flow[%d]", i), step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(where string, step Step) error {
	switch step.Op {
	case OpStore:
		if len(step.Docs) == 0 {
			return fmt.Errorf("%s: docs are required for store", where)
		}
	case OpDelete:
		if len(step.IDs) == 0 {
			return fmt.Errorf("%s: ids are required for delete", where)
		}
	case OpLoad:
		if len(step.IDs) != 1 {
			return fmt.Errorf("%s: load takes exactly one id", where)
		}
	case OpSave, OpDiscard, OpQuery, OpWhere:
	case "":
		return fmt.Errorf("%s: op is required", where)
	default:
		return fmt.Errorf("%s: unknown op %q", where, step.Op)
	}

	if slices.Contains(typedOps, step.Op) && step.Type == "" {
		return fmt.Errorf("%s: type is required for %s", where, step.Op)
	}
	if step.Limit < 0 {
		return fmt.Errorf("%s: limit must be non-negative", where)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for trace_count", index)
		}
	case AssertFinalState:
		if a.Doc == "" {
			return fmt.Errorf("assertions[%d]: doc is required for final_state", index)
		}
		if a.ID == nil && a.Count == nil {
			return fmt.Errorf("assertions[%d]: id or count is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
