package tagging

import (
	"context"
	_ "embed"
	"encoding/json"
	"strings"
	"text/template"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/listener/pkg/adapter"
	"github.com/m-mizutani/listener/pkg/model"
	"github.com/m-mizutani/listener/pkg/utils/logging"
	"google.golang.org/genai"
)

//go:embed prompt/tags.md
var tagsPromptRaw string

var tagsPrompt = template.Must(template.New("tags").Parse(tagsPromptRaw))

// resultSchema pins the shape the oracle is asked to return. Anything that
// does not validate is treated as a malformed response.
var resultSchema = func() *jsonschema.Resolved {
	schema := &jsonschema.Schema{
		Type:     "object",
		Required: []string{"active_tags", "suggested_tags"},
		Properties: map[string]*jsonschema.Schema{
			"active_tags":    {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
			"suggested_tags": {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
		},
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		panic(err)
	}
	return resolved
}()

// Result is the outcome of classifying one conversation. Active is always a
// subset of the vocabulary passed to Classify; Suggested holds new tag names
// the oracle proposed.
type Result struct {
	Active    []string
	Suggested []string
}

// Classifier presents transcripts to the completion oracle and parses its
// structured answer. The oracle is untrusted: any malformed response degrades
// to an empty Result instead of an error.
type Classifier struct {
	gemini adapter.Gemini
}

func NewClassifier(gemini adapter.Gemini) *Classifier {
	return &Classifier{gemini: gemini}
}

// Classify asks the oracle which vocabulary tags apply to the conversation.
// The leading system instruction is stripped before presentation. A non-nil
// error is returned only for transport failures; unparseable responses yield
// empty tag sets and a nil error.
func (c *Classifier) Classify(ctx context.Context, conv *model.Conversation, vocabulary []string) (*Result, error) {
	transcript, err := json.Marshal(conv.Transcript())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal transcript", goerr.V("session_id", conv.SessionID))
	}

	var prompt strings.Builder
	if err := tagsPrompt.Execute(&prompt, map[string]string{
		"Tags":         strings.Join(vocabulary, ", "),
		"Conversation": string(transcript),
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to render tag prompt")
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.5),
	}
	contents := []*genai.Content{
		genai.NewContentFromText(prompt.String(), genai.RoleUser),
	}

	resp, err := c.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to classify conversation", goerr.V("session_id", conv.SessionID))
	}

	result, err := parseResult(adapter.ResponseText(resp), vocabulary)
	if err != nil {
		// Degrade to no tags: one bad response must not stop the batch
		logging.From(ctx).Warn("failed to parse classifier response",
			"session_id", conv.SessionID, "error", err)
		return &Result{}, nil
	}
	return result, nil
}

func parseResult(text string, vocabulary []string) (*Result, error) {
	raw := stripFences(text)
	if raw == "" {
		return nil, goerr.New("empty classifier response")
	}

	var instance any
	if err := json.Unmarshal([]byte(raw), &instance); err != nil {
		return nil, goerr.Wrap(err, "classifier response is not JSON")
	}
	if err := resultSchema.Validate(instance); err != nil {
		return nil, goerr.Wrap(err, "classifier response has unexpected shape")
	}

	var payload struct {
		ActiveTags    []string `json:"active_tags"`
		SuggestedTags []string `json:"suggested_tags"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, goerr.Wrap(err, "failed to decode classifier response")
	}

	known := make(map[string]bool, len(vocabulary))
	for _, tag := range vocabulary {
		known[tag] = true
	}

	result := &Result{}
	for _, tag := range payload.ActiveTags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		// Tolerate oracle answers outside the vocabulary
		if known[tag] {
			result.Active = append(result.Active, tag)
		}
	}
	for _, tag := range payload.SuggestedTags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" && !known[tag] {
			result.Suggested = append(result.Suggested, tag)
		}
	}
	return result, nil
}

// stripFences removes a surrounding markdown code fence from the response,
// which many models add around JSON output.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:] // drop the language hint line
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
