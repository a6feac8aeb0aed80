package gemini

import (
	"context"
	"encoding/json"
	"strings"
)

// analysisPrompt asks the model to decide whether a chat exchange belongs
// in the requirements history and to categorize it.
const analysisPrompt = `Analyze the following chat exchange and decide whether it should be recorded in the requirements history.

Record when:
- a feature or behavior changed
- the user made a request or stated an opinion
Do not record:
- pure design tweaks (color, size, position)
- trivial corrections

Respond with JSON:
{
  "shouldRecord": true/false,
  "category": "ui" | "function" | "style" | "bug" | "other",
  "summary": "one-line summary",
  "location": "location info",
  "priority": "P0" | "P1" | "P2"
}`

// Analysis is the structured verdict extracted from the model's reply.
type Analysis struct {
	ShouldRecord bool   `json:"shouldRecord"`
	Category     string `json:"category"`
	Summary      string `json:"summary"`
	Location     string `json:"location"`
	Priority     string `json:"priority"`
}

// AnalyzeForHistory asks the model whether chatContent should become a
// history item. A reply that is not JSON, or that only embeds JSON in
// surrounding prose, is handled by extracting the first well-formed JSON
// object; when none parses the verdict is "do not record", never an error.
// Transport failures are still returned so the caller can decide how loudly
// to fail.
func (c *Client) AnalyzeForHistory(ctx context.Context, chatContent string) (Analysis, error) {
	reply, err := c.GenerateContent(ctx, chatContent, "", analysisPrompt)
	if err != nil {
		return Analysis{}, err
	}

	raw, ok := ExtractJSON(reply)
	if !ok {
		return Analysis{}, nil
	}

	var a Analysis
	if err := json.Unmarshal(raw, &a); err != nil {
		return Analysis{}, nil
	}
	return a, nil
}

// ExtractJSON finds the first well-formed JSON object embedded in s and
// returns it. Models wrap JSON in prose or code fences often enough that
// scanning is the only reliable option.
func ExtractJSON(s string) (json.RawMessage, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == nil {
			return raw, true
		}
	}
	return nil, false
}
