package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openintake/plaint/internal/registry"
)

// Result is the structured output of one classification.
type Result struct {
	IsComplaint bool   `json:"isComplaint"`
	Summary     string `json:"summary"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
}

// ParseError means the model answered but the answer could not be
// interpreted as a classification result.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not interpret classifier response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Chatter is the chat completion call the classifier depends on.
type Chatter interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// Classifier turns normalized complaint text into a Result using a single
// LLM call. There is no retry: upstream and parse failures propagate.
type Classifier struct {
	client   Chatter
	registry *registry.Registry
}

// New creates a Classifier biased by the given registry.
func New(client Chatter, reg *registry.Registry) *Classifier {
	return &Classifier{client: client, registry: reg}
}

// Classify sends text to the model with the current registry snapshot as
// hints, decodes the result, and records any novel labels.
func (c *Classifier) Classify(ctx context.Context, text string) (Result, error) {
	system := BuildSystemPrompt(c.registry.Snapshot())

	raw, err := c.client.Chat(ctx, system, text)
	if err != nil {
		return Result{}, fmt.Errorf("classification call: %w", err)
	}

	result, err := Decode(raw)
	if err != nil {
		slog.Warn("classifier returned unparseable output", "error", err)
		return Result{}, err
	}

	c.registry.Record(result.Category, result.Subcategory)
	return result, nil
}

// Decode parses a model completion into a Result. Models are told to return
// bare JSON but routinely wrap it in markdown fences or a "json" language
// tag anyway; those artifacts are stripped before parsing. Anything still
// unparseable is a ParseError — field values are never guessed.
func Decode(raw string) (Result, error) {
	cleaned := stripArtifacts(raw)

	dec := json.NewDecoder(strings.NewReader(cleaned))
	var result Result
	if err := dec.Decode(&result); err != nil {
		return Result{}, &ParseError{Raw: raw, Err: err}
	}
	if dec.More() {
		return Result{}, &ParseError{Raw: raw, Err: fmt.Errorf("trailing content after JSON object")}
	}
	return result, nil
}

// stripArtifacts removes markdown code fences and a leading "json" language
// tag from a completion.
func stripArtifacts(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	if strings.HasPrefix(strings.ToLower(s), "json") {
		s = strings.TrimSpace(s[len("json"):])
	}
	return s
}
