package analytics_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/listener/pkg/model"
	"github.com/m-mizutani/listener/pkg/repository"
	"github.com/m-mizutani/listener/pkg/usecase/analytics"
)

func newAnalyticsRepo(t *testing.T) repository.Repository {
	t.Helper()

	repo, err := repository.NewSQLite(filepath.Join(t.TempDir(), "listener.db"))
	gt.NoError(t, err)
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

func putConversationAt(t *testing.T, repo repository.Repository, id string, createdAt time.Time) {
	t.Helper()

	conv := model.NewConversation(model.SessionID(id), "coach instruction")
	conv.CreatedAt = createdAt
	conv.Messages = append(conv.Messages, model.Message{Role: model.RoleUser, Content: "entry"})
	gt.NoError(t, repo.PutConversation(context.Background(), conv))
}

func TestLoadConversationsTimeframe(t *testing.T) {
	ctx := context.Background()
	repo := newAnalyticsRepo(t)

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	putConversationAt(t, repo, "ten-days", now.AddDate(0, 0, -10))
	putConversationAt(t, repo, "two-days", now.AddDate(0, 0, -2))
	putConversationAt(t, repo, "old", now.AddDate(0, -2, 0))

	uc := analytics.New(repo, analytics.WithClock(func() time.Time { return now }))

	timestamps, err := uc.LoadConversations(ctx, model.TimeframeAllTime)
	gt.NoError(t, err)
	gt.Equal(t, len(timestamps), 3)

	timestamps, err = uc.LoadConversations(ctx, model.TimeframeLastMonth)
	gt.NoError(t, err)
	gt.Equal(t, len(timestamps), 2)

	// A conversation from 10 days ago is outside the one-week window
	timestamps, err = uc.LoadConversations(ctx, model.TimeframeLastWeek)
	gt.NoError(t, err)
	gt.Equal(t, len(timestamps), 1)
}

func TestLoadConversationsInvalidTimeframe(t *testing.T) {
	ctx := context.Background()
	repo := newAnalyticsRepo(t)
	uc := analytics.New(repo)

	_, err := uc.LoadConversations(ctx, model.Timeframe("yesterday"))
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrInvalidTimeframe))
}

func TestLoadTaggedExcludesUnclassified(t *testing.T) {
	ctx := context.Background()
	repo := newAnalyticsRepo(t)
	gt.NoError(t, repo.RegisterTag(ctx, "anxious"))

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	putConversationAt(t, repo, "classified", now.AddDate(0, 0, -1))
	putConversationAt(t, repo, "pending", now.AddDate(0, 0, -1))

	_, err := repo.PutAssignment(ctx, model.NewTagAssignment("classified", []string{"anxious"}, []string{"anxious"}))
	gt.NoError(t, err)

	uc := analytics.New(repo, analytics.WithClock(func() time.Time { return now }))

	rows, err := uc.LoadTagged(ctx, model.TimeframeAllTime)
	gt.NoError(t, err)
	gt.Equal(t, len(rows), 1)
	gt.Equal(t, rows[0].SessionID, model.SessionID("classified"))
}

func TestLoadTaggedEmptyStore(t *testing.T) {
	ctx := context.Background()
	repo := newAnalyticsRepo(t)
	uc := analytics.New(repo)

	rows, err := uc.LoadTagged(ctx, model.TimeframeLastWeek)
	gt.NoError(t, err)
	gt.Equal(t, len(rows), 0)
}
