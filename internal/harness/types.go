package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Phase   string `json:"phase"` // "setup" or "flow"
	Op      string `json:"op"`
	Type    string `json:"type,omitempty"`
	IDs     []any  `json:"ids,omitempty"`
	Outcome string `json:"outcome"`

	// Stores and Deletes are the pending counts a save applied.
	Stores  int `json:"stores,omitempty"`
	Deletes int `json:"deletes,omitempty"`

	// Docs are the documents a read returned.
	Docs []map[string]any `json:"docs,omitempty"`
}

// Label is how assertions refer to the event: "save", "store Person".
func (e TraceEvent) Label() string {
	if e.Type == "" {
		return e.Op
	}
	return e.Op + " " + e.Type
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every executed step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEvent appends an event to the trace.
func (r *Result) AddEvent(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}
