package analytics

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/listener/pkg/model"
	"github.com/m-mizutani/listener/pkg/repository"
)

// UseCase serves read-only aggregate views over stored conversations and
// their tag assignments. It performs no persistence.
type UseCase struct {
	repo repository.Repository
	now  func() time.Time
}

type Option func(*UseCase)

// WithClock overrides the time source used for timeframe bounds
func WithClock(now func() time.Time) Option {
	return func(u *UseCase) {
		u.now = now
	}
}

func New(repo repository.Repository, opts ...Option) *UseCase {
	u := &UseCase{
		repo: repo,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// LoadConversations returns creation timestamps of all conversations inside
// the timeframe, classified or not.
func (u *UseCase) LoadConversations(ctx context.Context, timeframe model.Timeframe) ([]time.Time, error) {
	if err := timeframe.Validate(); err != nil {
		return nil, err
	}

	timestamps, err := u.repo.ListCreatedAt(ctx, timeframe.Since(u.now()))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load conversation timestamps")
	}
	return timestamps, nil
}

// LoadTagged returns classified conversations inside the timeframe joined
// with their tag flags. Sessions without an assignment are excluded.
func (u *UseCase) LoadTagged(ctx context.Context, timeframe model.Timeframe) ([]*model.TaggedConversation, error) {
	if err := timeframe.Validate(); err != nil {
		return nil, err
	}

	rows, err := u.repo.ListTagged(ctx, timeframe.Since(u.now()))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load tagged conversations")
	}
	return rows, nil
}
