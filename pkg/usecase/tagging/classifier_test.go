package tagging_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/listener/pkg/model"
	"github.com/m-mizutani/listener/pkg/usecase/tagging"
	"google.golang.org/genai"
)

// mockGemini is a mock implementation of adapter.Gemini for testing
type mockGemini struct {
	generateFunc func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	calls        int
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.calls++
	if m.generateFunc != nil {
		return m.generateFunc(ctx, contents, config)
	}
	return nil, errors.New("not implemented")
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(text, genai.RoleModel)},
		},
	}
}

func testConversation() *model.Conversation {
	conv := model.NewConversation("s1", "secret system instruction")
	conv.Messages = append(conv.Messages,
		model.Message{Role: model.RoleUser, Content: "I could not sleep all week"},
		model.Message{Role: model.RoleAssistant, Content: "That sounds exhausting"},
	)
	return conv
}

func TestClassifyParsesOracleResponse(t *testing.T) {
	ctx := context.Background()
	vocabulary := []string{"anxious", "sad", "sleepless"}

	mock := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse(`{"active_tags": ["sleepless", "Anxious"], "suggested_tags": ["Burnout"]}`), nil
		},
	}

	result, err := tagging.NewClassifier(mock).Classify(ctx, testConversation(), vocabulary)
	gt.NoError(t, err)
	gt.Equal(t, result.Active, []string{"sleepless", "anxious"})
	gt.Equal(t, result.Suggested, []string{"burnout"})
}

func TestClassifyStripsCodeFences(t *testing.T) {
	ctx := context.Background()

	mock := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse("```json\n{\"active_tags\": [\"sad\"], \"suggested_tags\": []}\n```"), nil
		},
	}

	result, err := tagging.NewClassifier(mock).Classify(ctx, testConversation(), []string{"sad"})
	gt.NoError(t, err)
	gt.Equal(t, result.Active, []string{"sad"})
}

func TestClassifyMalformedResponseDegradesToEmpty(t *testing.T) {
	ctx := context.Background()

	responses := []string{
		"I think this conversation is about sleep.",
		`{"active_tags": "sleepless"}`,
		`{"suggested_tags": []}`,
		`["sleepless"]`,
		"",
	}

	for _, text := range responses {
		mock := &mockGemini{
			generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return textResponse(text), nil
			},
		}

		result, err := tagging.NewClassifier(mock).Classify(ctx, testConversation(), []string{"sleepless"})
		gt.NoError(t, err)
		gt.Equal(t, len(result.Active), 0)
		gt.Equal(t, len(result.Suggested), 0)
	}
}

func TestClassifyFiltersUnknownActiveTags(t *testing.T) {
	ctx := context.Background()

	mock := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse(`{"active_tags": ["sleepless", "made_up"], "suggested_tags": ["sleepless"]}`), nil
		},
	}

	result, err := tagging.NewClassifier(mock).Classify(ctx, testConversation(), []string{"sleepless"})
	gt.NoError(t, err)
	gt.Equal(t, result.Active, []string{"sleepless"})
	// Suggestions already in the vocabulary are dropped too
	gt.Equal(t, len(result.Suggested), 0)
}

func TestClassifyTransportErrorIsReturned(t *testing.T) {
	ctx := context.Background()

	mock := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return nil, errors.New("oracle unavailable")
		},
	}

	_, err := tagging.NewClassifier(mock).Classify(ctx, testConversation(), []string{"sleepless"})
	gt.Error(t, err)
}

func TestClassifyPromptExcludesSystemMessage(t *testing.T) {
	ctx := context.Background()

	var prompt string
	mock := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gt.Equal(t, len(contents), 1)
			for _, part := range contents[0].Parts {
				prompt += part.Text
			}
			return textResponse(`{"active_tags": [], "suggested_tags": []}`), nil
		},
	}

	_, err := tagging.NewClassifier(mock).Classify(ctx, testConversation(), []string{"anxious", "sleepless"})
	gt.NoError(t, err)
	gt.S(t, prompt).Contains("anxious, sleepless")
	gt.S(t, prompt).Contains("I could not sleep all week")
	gt.S(t, prompt).NotContains("secret system instruction")
}
