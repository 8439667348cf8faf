package jobs

import (
	"fmt"
	"strings"
)

// maxPromptChars caps the document text embedded into a prompt. Local
// models degrade badly past this point and the breakdown only needs the
// substance of the document.
const maxPromptChars = 12000

const jsonSkeleton = `{
  "epics": [
    {
      "title": "string",
      "tasks": [
        {
          "title": "string",
          "role": "one of the allowed roles",
          "pert_hours": {"optimistic": 0, "most_likely": 0, "pessimistic": 0}
        }
      ]
    }
  ],
  "assumptions": ["string"],
  "risks": ["string"]
}`

// SystemPrompt builds the instruction block sent with every attempt. The
// roles slice narrows the allowed set; empty means all roles.
func SystemPrompt(roles []string) string {
	if len(roles) == 0 {
		roles = AllowedRoles
	}

	var b strings.Builder
	b.WriteString("You are an experienced presale analyst. Read the project documentation and produce a work breakdown: epics, tasks, and PERT three-point hour estimates per task.\n\n")
	b.WriteString("Rules:\n")
	fmt.Fprintf(&b, "- role must be exactly one of: %s\n", strings.Join(roles, ", "))
	b.WriteString("- pert_hours must satisfy optimistic <= most_likely <= pessimistic, all >= 0\n")
	b.WriteString("- respond with a single JSON object and nothing else: no prose, no markdown fences\n\n")
	b.WriteString("The JSON must match this schema:\n")
	b.WriteString(SchemaText())
	b.WriteString("\n\nShape example:\n")
	b.WriteString(jsonSkeleton)
	return b.String()
}

// UserPrompt wraps the extracted document text, truncated to the prompt
// cap. extra carries submitter instructions and goes in front so truncation
// only ever eats document text.
func UserPrompt(documentText, extra string) string {
	var b strings.Builder
	if extra = strings.TrimSpace(extra); extra != "" {
		b.WriteString("Additional instructions from the submitter:\n")
		b.WriteString(extra)
		b.WriteString("\n\n")
	}
	b.WriteString("Project documentation:\n\n")
	b.WriteString(TruncatePromptText(documentText))
	return b.String()
}

// RepairPrompt asks the model to fix its previous output. It restates the
// contract, lists what was wrong, and includes the prior raw output so the
// model can correct rather than regenerate.
func RepairPrompt(violations []string, priorOutput string) string {
	var b strings.Builder
	b.WriteString("Your previous response was rejected. Return a corrected version as a single JSON object, no prose, no markdown fences.\n\n")
	b.WriteString("The JSON must match this schema:\n")
	b.WriteString(SchemaText())
	b.WriteString("\n\nShape example:\n")
	b.WriteString(jsonSkeleton)
	b.WriteString("\n\nProblems found:\n")
	if len(violations) == 0 {
		b.WriteString("- the response was not valid JSON\n")
	}
	for _, v := range violations {
		fmt.Fprintf(&b, "- %s\n", v)
	}
	b.WriteString("\nYour previous response:\n")
	b.WriteString(TruncatePromptText(priorOutput))
	return b.String()
}

// JoinFileSections combines per-file extracted text into one document,
// with a header naming each file.
func JoinFileSections(names, texts []string) string {
	if len(names) == 1 {
		return texts[0]
	}
	var b strings.Builder
	for i := range names {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "----- FILE: %s -----\n", names[i])
		b.WriteString(texts[i])
	}
	return b.String()
}

// TruncatePromptText trims text to the prompt cap on a rune boundary.
func TruncatePromptText(text string) string {
	if len(text) <= maxPromptChars {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxPromptChars {
		return text
	}
	return string(runes[:maxPromptChars])
}
