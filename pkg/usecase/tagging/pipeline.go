package tagging

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/listener/pkg/model"
	"github.com/m-mizutani/listener/pkg/repository"
	"github.com/m-mizutani/listener/pkg/utils/logging"
)

// Pipeline classifies every conversation that has no tag assignment yet.
// Re-running it is cheap: classified sessions are never picked up again, so
// it can be triggered on every dashboard load.
type Pipeline struct {
	repo       repository.Repository
	classifier *Classifier
}

func NewPipeline(repo repository.Repository, classifier *Classifier) *Pipeline {
	return &Pipeline{
		repo:       repo,
		classifier: classifier,
	}
}

// ProcessUnclassified scans for conversations without an assignment row,
// classifies each against the current vocabulary and persists the result.
// A failure on one session is logged and the rest of the batch continues;
// the failed session stays unclassified and is retried on the next run.
// Returns the number of sessions that were newly classified.
func (p *Pipeline) ProcessUnclassified(ctx context.Context) (int, error) {
	logger := logging.From(ctx)

	vocabulary, err := p.repo.ListTags(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to load tag vocabulary")
	}
	if len(vocabulary) == 0 {
		return 0, goerr.New("tag vocabulary is empty")
	}

	convs, err := p.repo.ListUnclassified(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to list unclassified conversations")
	}
	if len(convs) == 0 {
		logger.Debug("no unclassified conversations found")
		return 0, nil
	}

	processed := 0
	for _, conv := range convs {
		result, err := p.classifier.Classify(ctx, conv, vocabulary)
		if err != nil {
			logger.Warn("classification failed, skipping session",
				"session_id", conv.SessionID, "error", err)
			continue
		}

		assignment := model.NewTagAssignment(conv.SessionID, vocabulary, result.Active)
		inserted, err := p.repo.PutAssignment(ctx, assignment)
		if err != nil {
			// No row was written, so the session is retried next run
			logger.Warn("failed to persist tag assignment, skipping session",
				"session_id", conv.SessionID, "error", err)
			continue
		}
		if !inserted {
			logger.Debug("session classified concurrently, keeping existing assignment",
				"session_id", conv.SessionID)
			continue
		}

		// Suggested tags are logged only; promotion to the vocabulary is an
		// explicit registration step.
		logger.Info("classified conversation",
			"session_id", conv.SessionID,
			"active_tags", result.Active,
			"suggested_tags", result.Suggested)
		processed++
	}

	return processed, nil
}
