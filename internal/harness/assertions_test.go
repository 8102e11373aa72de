package harness

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docstore/internal/mapping"
	"github.com/roach88/docstore/internal/testutil"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Phase: "flow", Op: OpStore, Type: "Person", Outcome: OutcomeOK},
		{Seq: 2, Phase: "flow", Op: OpDelete, Type: "Person", Outcome: OutcomeOK},
		{Seq: 3, Phase: "flow", Op: OpSave, Outcome: OutcomeExecution},
		{Seq: 4, Phase: "flow", Op: OpSave, Outcome: OutcomeOK},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Event: "store Person"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Event: "save", Outcome: OutcomeExecution}))

	err := assertTraceContains(trace, Assertion{Event: "delete Person", Outcome: OutcomeUnregistered})
	var assertErr *AssertionError
	require.ErrorAs(t, err, &assertErr)
	assert.Equal(t, AssertTraceContains, assertErr.Type)
	assert.Contains(t, err.Error(), "delete Person with outcome unregistered")
	assert.Contains(t, err.Error(), "[3] save -> execution")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Events: []string{"store Person", "save"}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Events: []string{"delete Person", "save", "save"}}))

	err := assertTraceOrder(trace, Assertion{Events: []string{"save", "store Person"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store Person not found after [save]")

	err = assertTraceOrder(trace, Assertion{Events: []string{"load Person"}})
	require.Error(t, err)
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Event: "save", Count: intPtr(2)}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Event: "discard", Count: intPtr(0)}))

	err := assertTraceCount(trace, Assertion{Event: "store Person", Count: intPtr(3)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 occurrences of store Person")
	assert.Contains(t, err.Error(), "Actual: 1 occurrences")
}

func TestAssertFinalState(t *testing.T) {
	st := testutil.NewStore(t)
	ctx := context.Background()

	s := st.OpenSession()
	require.NoError(t, s.Store(&testutil.Counter{ID: 7, Count: 3}, &testutil.Counter{ID: 8, Count: 5}))
	require.NoError(t, s.SaveChanges(ctx))

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"count", Assertion{Doc: "Counter", Count: intPtr(2)}, ""},
		{"count mismatch", Assertion{Doc: "Counter", Count: intPtr(1)}, "1 Counter document(s)"},
		{"subset match", Assertion{Doc: "Counter", ID: 7, Expect: map[string]any{"Count": 3}}, ""},
		{"value mismatch", Assertion{Doc: "Counter", ID: 7, Expect: map[string]any{"Count": 4}}, `field "Count" = 4`},
		{"missing field", Assertion{Doc: "Counter", ID: 7, Expect: map[string]any{"Total": 1}}, `field "Total" to exist`},
		{"missing document", Assertion{Doc: "Counter", ID: 9, Expect: map[string]any{"Count": 1}}, "document not found"},
		{"absent", Assertion{Doc: "Counter", ID: 9}, ""},
		{"not absent", Assertion{Doc: "Counter", ID: 8}, "no Counter with id 8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(ctx, st, tt.assertion)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	err := assertFinalState(ctx, st, Assertion{Doc: "Ghost", Count: intPtr(0)})
	assert.True(t, mapping.IsUnregistered(err))
}

func TestCheckExpect(t *testing.T) {
	docs := []map[string]any{{"id": "p1", "age": json.Number("36")}}

	assert.Empty(t, checkExpect(Step{}, TraceEvent{Outcome: OutcomeOK}, nil))

	problems := checkExpect(Step{}, TraceEvent{Outcome: OutcomeExecution}, errors.New("boom"))
	assert.Equal(t, []string{"outcome execution, want ok (boom)"}, problems)

	step := Step{Expect: &Expect{Docs: []map[string]any{{"id": "p1", "age": 36}}, Count: intPtr(1)}}
	assert.Empty(t, checkExpect(step, TraceEvent{Outcome: OutcomeOK, Docs: docs}, nil))

	step = Step{Expect: &Expect{Outcome: OutcomeNotFound}}
	assert.Empty(t, checkExpect(step, TraceEvent{Outcome: OutcomeNotFound}, nil))

	step = Step{Expect: &Expect{Docs: []map[string]any{{"id": "p1", "age": 37}}}}
	problems = checkExpect(step, TraceEvent{Outcome: OutcomeOK, Docs: docs}, nil)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "documents mismatch")
}

func TestEvaluateAssertions(t *testing.T) {
	result := &Result{Trace: sampleTrace()}
	assertions := []Assertion{
		{Type: AssertTraceContains, Event: "store Person"},
		{Type: AssertTraceCount, Event: "save", Count: intPtr(5)},
		{Type: AssertFinalState, Doc: "Person", Count: intPtr(0)},
		{Type: "vibes"},
	}

	errs := EvaluateAssertions(result, assertions, nil)
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "trace_count")
	assert.Contains(t, errs[1], "final_state requires database context")
	assert.Contains(t, errs[2], `unknown assertion type "vibes"`)
}
