package jobs

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

const validOutput = `{
  "epics": [
    {
      "title": "Core platform",
      "tasks": [
        {"title": "REST API", "role": "Backend", "pert_hours": {"optimistic": 1, "most_likely": 2, "pessimistic": 4}},
        {"title": "Admin UI", "role": "Frontend", "pert_hours": {"optimistic": 2, "most_likely": 4, "pessimistic": 8}}
      ]
    }
  ],
  "assumptions": ["single environment"],
  "risks": ["unclear integrations"]
}`

func TestParseBreakdownValid(t *testing.T) {
	result, err := ParseBreakdown(validOutput)
	if err != nil {
		t.Fatalf("ParseBreakdown: %v", err)
	}
	if len(result.Epics) != 1 || len(result.Epics[0].Tasks) != 2 {
		t.Fatalf("unexpected shape: %+v", result)
	}
	if result.Epics[0].Tasks[0].Role != "Backend" {
		t.Fatalf("unexpected role: %s", result.Epics[0].Tasks[0].Role)
	}
}

func TestParseBreakdownToleratesSurroundingProse(t *testing.T) {
	wrapped := "Here is the breakdown:\n```json\n" + validOutput + "\n```\nHope this helps!"
	result, err := ParseBreakdown(wrapped)
	if err != nil {
		t.Fatalf("ParseBreakdown: %v", err)
	}
	if len(result.Epics) != 1 {
		t.Fatalf("unexpected shape: %+v", result)
	}
}

func TestParseBreakdownInvalidJSON(t *testing.T) {
	for _, raw := range []string{
		"no json here at all",
		`{"epics": [`,
		`{"epics": "oops}`,
	} {
		_, err := ParseBreakdown(raw)
		var invalid *InvalidJSONError
		if !errors.As(err, &invalid) {
			t.Fatalf("raw %q: expected InvalidJSONError, got %v", raw, err)
		}
	}
}

func TestParseBreakdownUnknownRole(t *testing.T) {
	raw := `{"epics":[{"title":"E","tasks":[{"title":"T","role":"Wizard","pert_hours":{"optimistic":1,"most_likely":2,"pessimistic":3}}]}]}`
	_, err := ParseBreakdown(raw)
	var schemaErr *SchemaViolationsError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaViolationsError, got %v", err)
	}
	if len(schemaErr.Violations) == 0 {
		t.Fatal("expected at least one violation")
	}
}

func TestParseBreakdownRequiresPertHoursKey(t *testing.T) {
	// The estimate object must be named pert_hours; any other key on the
	// task is rejected outright.
	raw := `{"epics":[{"title":"E","tasks":[{"title":"T","role":"QA","hours":{"optimistic":1,"most_likely":2,"pessimistic":3}}]}]}`
	_, err := ParseBreakdown(raw)
	var schemaErr *SchemaViolationsError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaViolationsError, got %v", err)
	}
	joined := strings.Join(schemaErr.Violations, "; ")
	if !strings.Contains(joined, "pert_hours") {
		t.Fatalf("violations should name the missing pert_hours key: %s", joined)
	}
}

func TestTaskMarshalsEstimateAsPertHours(t *testing.T) {
	result, err := ParseBreakdown(validOutput)
	if err != nil {
		t.Fatalf("ParseBreakdown: %v", err)
	}
	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"pert_hours"`) || strings.Contains(string(data), `"hours"`) {
		t.Fatalf("stored payload must use the pert_hours key: %s", data)
	}
}

func TestParseBreakdownMissingFields(t *testing.T) {
	raw := `{"epics":[{"title":"E","tasks":[{"title":"T","role":"QA"}]}]}`
	_, err := ParseBreakdown(raw)
	var schemaErr *SchemaViolationsError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaViolationsError, got %v", err)
	}
}

func TestParseBreakdownHourOrdering(t *testing.T) {
	raw := `{"epics":[{"title":"E","tasks":[{"title":"T","role":"QA","pert_hours":{"optimistic":5,"most_likely":2,"pessimistic":3}}]}]}`
	_, err := ParseBreakdown(raw)
	var schemaErr *SchemaViolationsError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaViolationsError, got %v", err)
	}
	if !strings.Contains(schemaErr.Violations[0], "optimistic <= most_likely <= pessimistic") {
		t.Fatalf("unexpected violation: %s", schemaErr.Violations[0])
	}
}

func TestParseBreakdownEmptyEpics(t *testing.T) {
	_, err := ParseBreakdown(`{"epics": []}`)
	var schemaErr *SchemaViolationsError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaViolationsError, got %v", err)
	}
}

func TestCheckRolesNarrowedSet(t *testing.T) {
	result, err := ParseBreakdown(validOutput)
	if err != nil {
		t.Fatalf("ParseBreakdown: %v", err)
	}

	if violations := CheckRoles(result, []string{"Backend", "Frontend"}); len(violations) != 0 {
		t.Fatalf("expected no violations, got %v", violations)
	}
	violations := CheckRoles(result, []string{"Backend"})
	if len(violations) != 1 {
		t.Fatalf("expected one violation, got %v", violations)
	}
	if !strings.Contains(violations[0], "Frontend") {
		t.Fatalf("unexpected violation: %s", violations[0])
	}
	if violations := CheckRoles(result, nil); violations != nil {
		t.Fatalf("empty set should validate nothing, got %v", violations)
	}
}

func TestComputeEstimates(t *testing.T) {
	result, err := ParseBreakdown(validOutput)
	if err != nil {
		t.Fatalf("ParseBreakdown: %v", err)
	}
	if err := ComputeEstimates(&result, 0.5); err != nil {
		t.Fatalf("ComputeEstimates: %v", err)
	}

	if got := result.Epics[0].Tasks[0].Hours.Expected; got != 2.0 {
		t.Fatalf("task 0 expected = %g, want 2.0", got)
	}
	if got := result.Epics[0].Tasks[1].Hours.Expected; got != 4.5 {
		t.Fatalf("task 1 expected = %g, want 4.5", got)
	}
	if got := result.Totals.ExpectedHours; got != 6.5 {
		t.Fatalf("totals = %g, want 6.5", got)
	}
	if got := result.Totals.ByRole["Backend"]; got != 2.0 {
		t.Fatalf("backend role total = %g, want 2.0", got)
	}
}
