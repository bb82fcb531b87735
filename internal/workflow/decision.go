package workflow

import (
	"encoding/json"
	"regexp"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Decision is the structured outcome demanded from the decision phase.
type Decision struct {
	// Action is the tool to execute.
	Action string `json:"action"`

	// Args are the tool arguments.
	Args map[string]any `json:"args,omitempty"`

	// Reasoning is the model's stated rationale.
	Reasoning string `json:"reasoning,omitempty"`

	// Confidence is the model's self-reported confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Plan is an optional ordered sequence of future tool invocations.
	Plan []PlanStep `json:"plan,omitempty"`
}

// FallbackAction is the safe no-op decision used when parsing fails.
const FallbackAction = "ignore"

// FallbackConfidence is the confidence attached to a fallback decision.
const FallbackConfidence = 0.3

// FallbackDecision returns the deterministic safe decision used whenever the
// completion output cannot be coerced into a valid decision object. The
// workflow must always produce some decision; it never propagates a parse
// failure.
func FallbackDecision() *Decision {
	return &Decision{Action: FallbackAction, Confidence: FallbackConfidence}
}

const decisionSchemaJSON = `{
	"type": "object",
	"required": ["action"],
	"properties": {
		"action": {"type": "string", "minLength": 1},
		"args": {"type": "object"},
		"reasoning": {"type": "string"},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"plan": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["tool"],
				"properties": {
					"step": {"type": "integer"},
					"tool": {"type": "string", "minLength": 1},
					"args": {"type": "object"},
					"description": {"type": "string"}
				}
			}
		}
	}
}`

var decisionSchema = struct {
	once   sync.Once
	schema *jsonschema.Schema
	err    error
}{}

func compiledDecisionSchema() (*jsonschema.Schema, error) {
	decisionSchema.once.Do(func() {
		decisionSchema.schema, decisionSchema.err =
			jsonschema.CompileString("decision", decisionSchemaJSON)
	})
	return decisionSchema.schema, decisionSchema.err
}

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ParseDecision coerces free-form completion output into a Decision. It
// prefers a fenced code block, falls back to the first brace-delimited
// object, strips control characters, and validates the parsed object against
// a strict schema. The second return value reports whether the decision came
// from the model; false means the named fallback branch fired.
func ParseDecision(content string) (*Decision, bool) {
	raw := extractJSONObject(content)
	if raw == "" {
		return FallbackDecision(), false
	}
	raw = stripControlChars(raw)

	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return FallbackDecision(), false
	}

	schema, err := compiledDecisionSchema()
	if err != nil || schema.Validate(payload) != nil {
		return FallbackDecision(), false
	}

	var d Decision
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return FallbackDecision(), false
	}
	if d.Confidence == 0 {
		// The schema allows omitted confidence; treat it as middling
		// rather than certain-zero.
		d.Confidence = 0.5
	}
	normalizePlan(&d)
	return &d, true
}

// extractJSONObject locates the decision object inside arbitrary text:
// a fenced code block first, else the first balanced brace-delimited object.
func extractJSONObject(content string) string {
	if m := fencedBlockRe.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return firstBraceObject(content)
}

// firstBraceObject scans for the first balanced {...} span, honoring string
// literals and escapes.
func firstBraceObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
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
				return s[start : i+1]
			}
		}
	}
	return ""
}

// stripControlChars removes ASCII control characters that models sometimes
// emit inside JSON, preserving the whitespace JSON permits.
func stripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)
}

// normalizePlan renumbers plan steps sequentially from 1 so downstream
// indexing never depends on model-supplied numbering.
func normalizePlan(d *Decision) {
	for i := range d.Plan {
		d.Plan[i].Step = i + 1
		if d.Plan[i].Args == nil {
			d.Plan[i].Args = map[string]any{}
		}
	}
}
