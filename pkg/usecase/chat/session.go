package chat

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/listener/pkg/adapter"
	"github.com/m-mizutani/listener/pkg/model"
	"github.com/m-mizutani/listener/pkg/repository"
	"google.golang.org/genai"
)

//go:embed prompt/coach.md
var coachPromptRaw string

// Session manages one journaling conversation. The full transcript is saved
// after every turn; the stored history is replaced wholesale, appending
// happens here.
type Session struct {
	repo   repository.Repository
	gemini adapter.Gemini
	conv   *model.Conversation
}

// NewInput contains parameters for opening a chat session
type NewInput struct {
	Repo      repository.Repository
	Gemini    adapter.Gemini
	SessionID model.SessionID
}

// New opens a session for the given ID, resuming the stored conversation if
// one exists and seeding a fresh transcript otherwise.
func New(ctx context.Context, input NewInput) (*Session, error) {
	if input.SessionID == "" {
		return nil, goerr.New("session ID is required")
	}

	conv, err := input.Repo.GetConversation(ctx, input.SessionID)
	if err != nil {
		if !errors.Is(err, model.ErrConversationNotFound) {
			return nil, goerr.Wrap(err, "failed to load conversation")
		}
		conv = model.NewConversation(input.SessionID, coachPromptRaw)
	}

	return &Session{
		repo:   input.Repo,
		gemini: input.Gemini,
		conv:   conv,
	}, nil
}

// Send appends the user message, asks the oracle for a reply with the full
// history as context, appends the reply and persists the transcript.
func (s *Session) Send(ctx context.Context, message string) (string, error) {
	if message == "" {
		return "", goerr.New("message is empty")
	}

	// The session timestamp is fixed at the first user turn
	if s.conv.CreatedAt.IsZero() {
		s.conv.CreatedAt = time.Now()
	}

	s.conv.Messages = append(s.conv.Messages, model.Message{
		Role:    model.RoleUser,
		Content: message,
	})

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(s.systemInstruction(), ""),
	}

	resp, err := s.gemini.GenerateContent(ctx, s.contents(), config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate reply", goerr.V("session_id", s.conv.SessionID))
	}

	reply := adapter.ResponseText(resp)
	if reply == "" {
		return "", goerr.New("oracle returned an empty reply", goerr.V("session_id", s.conv.SessionID))
	}

	s.conv.Messages = append(s.conv.Messages, model.Message{
		Role:    model.RoleAssistant,
		Content: reply,
	})

	if err := s.repo.PutConversation(ctx, s.conv); err != nil {
		return "", goerr.Wrap(err, "failed to save conversation", goerr.V("session_id", s.conv.SessionID))
	}

	return reply, nil
}

// Messages returns the current transcript including the system instruction
func (s *Session) Messages() []model.Message {
	return s.conv.Messages
}

func (s *Session) systemInstruction() string {
	if len(s.conv.Messages) > 0 && s.conv.Messages[0].Role == model.RoleSystem {
		return s.conv.Messages[0].Content
	}
	return coachPromptRaw
}

func (s *Session) contents() []*genai.Content {
	contents := make([]*genai.Content, 0, len(s.conv.Messages))
	for _, msg := range s.conv.Transcript() {
		role := genai.Role(genai.RoleUser)
		if msg.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return contents
}
