package tagging_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/listener/pkg/model"
	"github.com/m-mizutani/listener/pkg/repository"
	"github.com/m-mizutani/listener/pkg/usecase/tagging"
	"google.golang.org/genai"
)

func newPipelineRepo(t *testing.T) repository.Repository {
	t.Helper()

	repo, err := repository.NewSQLite(filepath.Join(t.TempDir(), "listener.db"))
	gt.NoError(t, err)
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})

	ctx := context.Background()
	for _, tag := range []string{"anxious", "sad", "sleepless"} {
		gt.NoError(t, repo.RegisterTag(ctx, tag))
	}
	return repo
}

func putConversation(t *testing.T, repo repository.Repository, id string) {
	t.Helper()

	conv := model.NewConversation(model.SessionID(id), "coach instruction")
	conv.CreatedAt = time.Now()
	conv.Messages = append(conv.Messages,
		model.Message{Role: model.RoleUser, Content: "I keep worrying at night"},
	)
	gt.NoError(t, repo.PutConversation(context.Background(), conv))
}

func TestProcessUnclassified(t *testing.T) {
	ctx := context.Background()
	repo := newPipelineRepo(t)
	putConversation(t, repo, "s1")
	putConversation(t, repo, "s2")

	mock := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse(`{"active_tags": ["anxious", "sleepless"], "suggested_tags": ["night"]}`), nil
		},
	}
	pipeline := tagging.NewPipeline(repo, tagging.NewClassifier(mock))

	processed, err := pipeline.ProcessUnclassified(ctx)
	gt.NoError(t, err)
	gt.Equal(t, processed, 2)
	gt.Equal(t, mock.calls, 2)

	rows, err := repo.ListTagged(ctx, time.Time{})
	gt.NoError(t, err)
	gt.Equal(t, len(rows), 2)
	for _, row := range rows {
		gt.True(t, row.Active["anxious"])
		gt.True(t, row.Active["sleepless"])
		gt.False(t, row.Active["sad"])
		// Suggested tags are never promoted to the vocabulary
		_, ok := row.Active["night"]
		gt.False(t, ok)
	}
}

func TestProcessUnclassifiedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newPipelineRepo(t)
	putConversation(t, repo, "s1")

	mock := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse(`{"active_tags": [], "suggested_tags": []}`), nil
		},
	}
	pipeline := tagging.NewPipeline(repo, tagging.NewClassifier(mock))

	processed, err := pipeline.ProcessUnclassified(ctx)
	gt.NoError(t, err)
	gt.Equal(t, processed, 1)
	gt.Equal(t, mock.calls, 1)

	// No new conversations: the second run must not consult the oracle
	processed, err = pipeline.ProcessUnclassified(ctx)
	gt.NoError(t, err)
	gt.Equal(t, processed, 0)
	gt.Equal(t, mock.calls, 1)
}

func TestProcessUnclassifiedWritesEmptyAssignment(t *testing.T) {
	ctx := context.Background()
	repo := newPipelineRepo(t)
	putConversation(t, repo, "s1")

	// Malformed oracle output degrades to an empty tag set, which is still
	// persisted so the session is not reprocessed forever.
	mock := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse("not json at all"), nil
		},
	}
	pipeline := tagging.NewPipeline(repo, tagging.NewClassifier(mock))

	processed, err := pipeline.ProcessUnclassified(ctx)
	gt.NoError(t, err)
	gt.Equal(t, processed, 1)

	rows, err := repo.ListTagged(ctx, time.Time{})
	gt.NoError(t, err)
	gt.Equal(t, len(rows), 1)
	for _, active := range rows[0].Active {
		gt.False(t, active)
	}

	remaining, err := repo.ListUnclassified(ctx)
	gt.NoError(t, err)
	gt.Equal(t, len(remaining), 0)
}

func TestProcessUnclassifiedSkipsFailedSessions(t *testing.T) {
	ctx := context.Background()
	repo := newPipelineRepo(t)
	putConversation(t, repo, "s1")
	putConversation(t, repo, "s2")

	// The oracle fails for the first session only; the batch continues and
	// the failed session stays unclassified for the next run.
	failed := false
	mock := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			if !failed {
				failed = true
				return nil, errors.New("oracle unavailable")
			}
			return textResponse(`{"active_tags": ["sad"], "suggested_tags": []}`), nil
		},
	}
	pipeline := tagging.NewPipeline(repo, tagging.NewClassifier(mock))

	processed, err := pipeline.ProcessUnclassified(ctx)
	gt.NoError(t, err)
	gt.Equal(t, processed, 1)

	remaining, err := repo.ListUnclassified(ctx)
	gt.NoError(t, err)
	gt.Equal(t, len(remaining), 1)

	processed, err = pipeline.ProcessUnclassified(ctx)
	gt.NoError(t, err)
	gt.Equal(t, processed, 1)

	remaining, err = repo.ListUnclassified(ctx)
	gt.NoError(t, err)
	gt.Equal(t, len(remaining), 0)
}
