package agents

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/okian/greenroom/internal/domain/model"
)

// Schemas the model backend's JSON output must satisfy before unmarshaling.
const feedbackSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["commentary", "strengths", "weaknesses", "suggestions", "score"],
	"properties": {
		"commentary": {"type": "string"},
		"strengths": {"type": "array", "items": {"type": "string"}},
		"weaknesses": {"type": "array", "items": {"type": "string"}},
		"suggestions": {"type": "array", "items": {"type": "string"}},
		"score": {"type": "integer", "minimum": 0, "maximum": 10}
	}
}`

const summarySchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["patterns", "strengths", "weaknesses", "improvement_areas"],
	"properties": {
		"patterns": {"type": "array", "items": {"type": "string"}},
		"strengths": {"type": "array", "items": {"type": "string"}},
		"weaknesses": {"type": "array", "items": {"type": "string"}},
		"improvement_areas": {"type": "array", "items": {"type": "string"}}
	}
}`

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// extractJSON pulls the outermost JSON object out of free text. Models wrap
// JSON in prose and code fences often enough that strict decoding alone is
// not workable.
func extractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: no JSON object in output", ErrMalformedOutput)
	}
	candidate := text[start : end+1]
	if !json.Valid([]byte(candidate)) {
		candidate = trailingCommaRe.ReplaceAllString(candidate, "$1")
	}
	if !json.Valid([]byte(candidate)) {
		return "", fmt.Errorf("%w: invalid JSON object in output", ErrMalformedOutput)
	}
	return candidate, nil
}

func validate(schema, doc string) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewStringLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrMalformedOutput, strings.Join(msgs, "; "))
	}
	return nil
}

// ParseFeedback extracts and validates a structured feedback object from
// model output.
func ParseFeedback(text string) (model.Feedback, error) {
	doc, err := extractJSON(text)
	if err != nil {
		return model.Feedback{}, err
	}
	if err := validate(feedbackSchema, doc); err != nil {
		return model.Feedback{}, err
	}
	var fb model.Feedback
	if err := json.Unmarshal([]byte(doc), &fb); err != nil {
		return model.Feedback{}, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}
	return fb, nil
}

// ParseSummary extracts and validates a final summary object from model
// output. Resources are attached later by the search step, not parsed here.
func ParseSummary(text string) (model.Summary, error) {
	doc, err := extractJSON(text)
	if err != nil {
		return model.Summary{}, err
	}
	if err := validate(summarySchema, doc); err != nil {
		return model.Summary{}, err
	}
	var s model.Summary
	if err := json.Unmarshal([]byte(doc), &s); err != nil {
		return model.Summary{}, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}
	return s, nil
}
