package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/docstore/internal/querysql"
	"github.com/roach88/docstore/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s -> %s\n", event.Seq, event.Label(), event.Outcome)
		}
	}

	return buf.String()
}

// checkExpect compares an executed step against its expect clause and
// returns one message per mismatch. A step without expect must succeed.
func checkExpect(step Step, event TraceEvent, err error) []string {
	want := OutcomeOK
	if step.Expect != nil && step.Expect.Outcome != "" {
		want = step.Expect.Outcome
	}

	var problems []string
	if event.Outcome != want {
		msg := fmt.Sprintf("outcome %s, want %s", event.Outcome, want)
		if err != nil {
			msg += fmt.Sprintf(" (%v)", err)
		}
		problems = append(problems, msg)
	}
	if step.Expect == nil {
		return problems
	}

	if step.Expect.Count != nil && len(event.Docs) != *step.Expect.Count {
		problems = append(problems, fmt.Sprintf("%d document(s), want %d", len(event.Docs), *step.Expect.Count))
	}
	if step.Expect.Docs != nil {
		if diff := cmp.Diff(normalize(step.Expect.Docs), normalize(event.Docs)); diff != "" {
			problems = append(problems, fmt.Sprintf("documents mismatch (-want +got):\n%s", diff))
		}
	}
	return problems
}

// normalize round-trips v through JSON so YAML ints, json.Number and
// float64 compare by value.
func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("unencodable %T: %v", v, err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Sprintf("undecodable %T: %v", v, err)
	}
	return out
}

// assertTraceContains checks if the trace contains an event with the label
// and, when given, the outcome.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Label() == assertion.Event && (assertion.Outcome == "" || event.Outcome == assertion.Outcome) {
			return nil
		}
	}

	expected := assertion.Event
	if assertion.Outcome != "" {
		expected += " with outcome " + assertion.Outcome
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if events appear in the specified order.
// Events don't need to be consecutive (intervening events are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(assertion.Events) && event.Label() == assertion.Events[next] {
			next++
		}
	}
	if next == len(assertion.Events) {
		return nil
	}

	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("events in order: %v", assertion.Events),
		Actual:   fmt.Sprintf("%s not found after %v", assertion.Events[next], assertion.Events[:next]),
		Trace:    trace,
	}
}

// assertTraceCount checks if the event appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	want := 0
	if assertion.Count != nil {
		want = *assertion.Count
	}

	count := 0
	for _, event := range trace {
		if event.Label() == assertion.Event {
			count++
		}
	}

	if count != want {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", want, assertion.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState checks committed documents of a type through a fresh
// session: the number stored, and/or one document by id (subset match on
// Expect, or absence when Expect is empty).
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	s := st.OpenSession()
	defer s.Close()

	if assertion.Count != nil {
		storage, err := st.Registry().StorageForName(assertion.Doc)
		if err != nil {
			return err
		}
		docs, err := s.QueryRaw(ctx, assertion.Doc, querysql.BuildSelect(storage, "", ""))
		if err != nil {
			return err
		}
		if len(docs) != *assertion.Count {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%d %s document(s)", *assertion.Count, assertion.Doc),
				Actual:   fmt.Sprintf("%d document(s)", len(docs)),
			}
		}
	}

	if assertion.ID == nil {
		return nil
	}

	doc, err := s.LoadRaw(ctx, assertion.Doc, assertion.ID)
	if err != nil {
		return err
	}

	if len(assertion.Expect) == 0 {
		if doc != nil {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("no %s with id %v", assertion.Doc, assertion.ID),
				Actual:   fmt.Sprintf("found %v", doc.Body),
			}
		}
		return nil
	}

	if doc == nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s with id %v", assertion.Doc, assertion.ID),
			Actual:   "document not found",
		}
	}

	actual, _ := normalize(doc.Body).(map[string]any)
	for key, expectedValue := range assertion.Expect {
		actualValue, exists := actual[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in %v", key, doc.Body),
			}
		}
		if diff := cmp.Diff(normalize(expectedValue), actualValue); diff != "" {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v", key, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v (-want +got):\n%s", key, actualValue, diff),
			}
		}
	}

	return nil
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
