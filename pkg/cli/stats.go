package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func statsCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "stats",
		Usage: "Show conversation and classification counts",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.newLogger()

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			total, err := repo.CountConversations(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to count conversations")
			}

			unclassified, err := repo.ListUnclassified(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to list unclassified conversations")
			}

			tags, err := repo.ListTags(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to list tags")
			}

			fmt.Fprintf(c.Root().Writer, "Conversations:\t%d\n", total)
			fmt.Fprintf(c.Root().Writer, "Classified:\t%d\n", total-len(unclassified))
			fmt.Fprintf(c.Root().Writer, "Backlog:\t%d\n", len(unclassified))
			fmt.Fprintf(c.Root().Writer, "Tags:\t\t%d\n", len(tags))
			return nil
		},
	}
}
