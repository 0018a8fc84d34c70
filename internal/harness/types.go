package harness

// StepTrace records what one step sent and what came back.
type StepTrace struct {
	Step    int    `json:"step"`
	Op      string `json:"op"`
	Table   string `json:"table"`
	Command string `json:"command,omitempty"`

	// Count is the number of rows returned, or affected by a write.
	Count int    `json:"count"`
	Total *int64 `json:"total,omitempty"`
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace has one entry per step, in order. Setup steps are not traced.
	Trace []StepTrace `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []StepTrace{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
