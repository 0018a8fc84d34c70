package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a sequence of adapter operations with expected outcomes.
type Scenario struct {
	// Name uniquely identifies this scenario. Also the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Setup steps establish data. They must succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Steps are executed in order, each optionally checked against Expect.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final data.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one adapter operation.
type Step struct {
	// Op is get, find, query, insert, update or delete.
	Op string `yaml:"op"`

	// Table is the logical table name, possibly dotted ("Customers.Orders").
	Table string `yaml:"table"`

	// Key holds positional key values (get).
	Key []any `yaml:"key,omitempty"`

	// Where is filter text (find, query, update, delete).
	Where string `yaml:"where,omitempty"`

	// Data is the payload of insert and update.
	Data map[string]any `yaml:"data,omitempty"`

	// ResultRequired asks insert to return the stored entry.
	ResultRequired bool `yaml:"result_required,omitempty"`

	// Query clauses.
	Select     []string `yaml:"select,omitempty"`
	CountOnly  bool     `yaml:"count_only,omitempty"`
	Expand     []string `yaml:"expand,omitempty"`
	OrderBy    []string `yaml:"order_by,omitempty"`
	Skip       *int     `yaml:"skip,omitempty"`
	Take       *int     `yaml:"take,omitempty"`
	TotalCount bool     `yaml:"total_count,omitempty"`

	// Expect specifies the expected outcome. Nil expects success.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Error is the expected adapter.CodeOf classification.
	Error string `yaml:"error,omitempty"`

	// Count is the number of rows returned or affected.
	Count *int `yaml:"count,omitempty"`

	// Total is the total count reported by a total_count query.
	Total *int64 `yaml:"total,omitempty"`

	// Record is a subset match of the single or first row.
	Record map[string]any `yaml:"record,omitempty"`

	// Rows are subset matches of every row, in order.
	Rows []map[string]any `yaml:"rows,omitempty"`
}

// Assertion validates the final data.
type Assertion struct {
	// Type is final_state or row_count.
	Type string `yaml:"type"`

	// Table is the logical table queried.
	Table string `yaml:"table"`

	// Where is filter text selecting the rows.
	Where string `yaml:"where,omitempty"`

	// Expect contains expected field values (final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of matching rows (row_count).
	Count int `yaml:"count,omitempty"`
}

// Step operations.
const (
	OpGet    = "get"
	OpFind   = "find"
	OpQuery  = "query"
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Assertion type constants.
const (
	AssertFinalState = "final_state"
	AssertRowCount   = "row_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
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
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(fmt.Sprintf("setup[%d]", i), step); err != nil {
			return err
		}
		if step.Op != OpInsert && step.Op != OpUpdate && step.Op != OpDelete {
			return fmt.Errorf("setup[%d]: setup steps must write, got %q", i, step.Op)
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: setup steps take no expect clause", i)
		}
	}
	for i, step := range s.Steps {
		if err := validateStep(fmt.Sprintf("steps[%d]", i), step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(where string, step Step) error {
	if step.Table == "" {
		return fmt.Errorf("%s: table is required", where)
	}
	switch step.Op {
	case OpGet:
		if len(step.Key) == 0 {
			return fmt.Errorf("%s: key is required for get", where)
		}
	case OpInsert:
		if step.Where != "" {
			return fmt.Errorf("%s: insert takes no where", where)
		}
	case OpUpdate:
		if step.Data == nil {
			return fmt.Errorf("%s: data is required for update", where)
		}
	case OpFind, OpQuery, OpDelete:
	case "":
		return fmt.Errorf("%s: op is required", where)
	default:
		return fmt.Errorf("%s: unknown op %q", where, step.Op)
	}
	if step.Op != OpQuery && hasQueryClauses(step) {
		return fmt.Errorf("%s: query clauses require op query", where)
	}
	if step.CountOnly && len(step.Select) > 0 {
		return fmt.Errorf("%s: count_only and select are exclusive", where)
	}
	return nil
}

func hasQueryClauses(step Step) bool {
	return len(step.Select) > 0 || step.CountOnly || len(step.Expand) > 0 ||
		len(step.OrderBy) > 0 || step.Skip != nil || step.Take != nil || step.TotalCount
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	if a.Table == "" {
		return fmt.Errorf("assertions[%d]: table is required", index)
	}
	switch a.Type {
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRowCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
