package jobs

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed llm_output_schema.json
var schemaText string

var outputSchema = jsonschema.MustCompileString("llm_output_schema.json", schemaText)

// AllowedRoles is the closed set of roles the model may assign to a task.
var AllowedRoles = []string{"Backend", "Frontend", "QA", "DevOps", "Analyst", "Designer", "PM"}

// SchemaText returns the JSON schema the model output must satisfy, for
// embedding into prompts.
func SchemaText() string { return schemaText }

// PERTHours holds the three-point estimate for a task. Expected is filled
// in after validation; the model never supplies it.
type PERTHours struct {
	Optimistic  float64 `json:"optimistic"`
	MostLikely  float64 `json:"most_likely"`
	Pessimistic float64 `json:"pessimistic"`
	Expected    float64 `json:"expected,omitempty"`
}

// Task is a single unit of work inside an epic.
type Task struct {
	Title string    `json:"title"`
	Role  string    `json:"role"`
	Hours PERTHours `json:"pert_hours"`
}

// Epic groups related tasks.
type Epic struct {
	Title string `json:"title"`
	Tasks []Task `json:"tasks"`
}

// Totals aggregates expected hours across the breakdown.
type Totals struct {
	ExpectedHours float64            `json:"expected_hours"`
	ByRole        map[string]float64 `json:"by_role,omitempty"`
}

// AnalysisResult is the validated, enriched work breakdown stored per
// result version.
type AnalysisResult struct {
	Epics       []Epic   `json:"epics"`
	Assumptions []string `json:"assumptions,omitempty"`
	Risks       []string `json:"risks,omitempty"`
	Totals      Totals   `json:"totals"`
}

// InvalidJSONError indicates the model output contained no parseable JSON
// object.
type InvalidJSONError struct {
	Err error
}

func (e *InvalidJSONError) Error() string { return fmt.Sprintf("invalid json output: %v", e.Err) }

func (e *InvalidJSONError) Unwrap() error { return e.Err }

// SchemaViolationsError indicates the output parsed but failed schema or
// ordering validation. Violations are human-readable, one per problem.
type SchemaViolationsError struct {
	Violations []string
}

func (e *SchemaViolationsError) Error() string {
	return fmt.Sprintf("schema validation failed: %s", strings.Join(e.Violations, "; "))
}

// ParseBreakdown extracts the first JSON object from raw model output and
// validates it. Returns *InvalidJSONError when no object parses, or
// *SchemaViolationsError when the object violates the schema or the
// optimistic <= most_likely <= pessimistic ordering.
func ParseBreakdown(raw string) (AnalysisResult, error) {
	objText, err := extractJSONObject(raw)
	if err != nil {
		return AnalysisResult{}, &InvalidJSONError{Err: err}
	}

	var generic any
	if err := json.Unmarshal([]byte(objText), &generic); err != nil {
		return AnalysisResult{}, &InvalidJSONError{Err: err}
	}

	if err := outputSchema.Validate(generic); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return AnalysisResult{}, &SchemaViolationsError{Violations: flattenValidation(ve)}
		}
		return AnalysisResult{}, &SchemaViolationsError{Violations: []string{err.Error()}}
	}

	var result AnalysisResult
	if err := json.Unmarshal([]byte(objText), &result); err != nil {
		return AnalysisResult{}, &InvalidJSONError{Err: err}
	}

	if violations := checkHourOrdering(result); len(violations) > 0 {
		return AnalysisResult{}, &SchemaViolationsError{Violations: violations}
	}
	return result, nil
}

// CheckRoles verifies every task role against a narrowed allowed set. An
// empty set means the full enumeration, which the schema already enforces.
func CheckRoles(result AnalysisResult, allowed []string) []string {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[role] = struct{}{}
	}
	var violations []string
	for ei, epic := range result.Epics {
		for ti, task := range epic.Tasks {
			if _, ok := set[task.Role]; !ok {
				violations = append(violations, fmt.Sprintf(
					"epics[%d].tasks[%d].role: %q is not in the allowed set [%s]",
					ei, ti, task.Role, strings.Join(allowed, ", "),
				))
			}
		}
	}
	return violations
}

// checkHourOrdering enforces 0 <= optimistic <= most_likely <= pessimistic
// per task. The schema covers non-negativity; ordering needs code.
func checkHourOrdering(result AnalysisResult) []string {
	var violations []string
	for ei, epic := range result.Epics {
		for ti, task := range epic.Tasks {
			h := task.Hours
			if h.Optimistic > h.MostLikely || h.MostLikely > h.Pessimistic {
				violations = append(violations, fmt.Sprintf(
					"epics[%d].tasks[%d].pert_hours: expected optimistic <= most_likely <= pessimistic, got %g/%g/%g",
					ei, ti, h.Optimistic, h.MostLikely, h.Pessimistic,
				))
			}
		}
	}
	return violations
}

// extractJSONObject returns the first balanced top-level {...} in s,
// tolerating prose or markdown fences around it.
func extractJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", errors.New("no json object found")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", errors.New("unbalanced json object")
}

func flattenValidation(ve *jsonschema.ValidationError) []string {
	var out []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			out = append(out, fmt.Sprintf("%s: %s", loc, e.Message))
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(ve)
	return out
}
