package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/listener/pkg/usecase/tagging"
	"github.com/m-mizutani/listener/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func classifyCommand() *cli.Command {
	var cfg config

	flags := append(globalFlags(&cfg), llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "classify",
		Usage: "Classify all conversations without tag assignments",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := cfg.newLogger()
			ctx = logging.With(ctx, logger)

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logger.Error("failed to close repository", "error", err)
				}
			}()

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			pipeline := tagging.NewPipeline(repo, tagging.NewClassifier(gemini))

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			sp.Suffix = " classifying conversations..."
			sp.Start()
			processed, err := pipeline.ProcessUnclassified(ctx)
			sp.Stop()
			if err != nil {
				return goerr.Wrap(err, "failed to process unclassified conversations")
			}

			fmt.Fprintf(c.Root().Writer, "Classified %d conversation(s)\n", processed)
			return nil
		},
	}
}
