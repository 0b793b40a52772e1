package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func tagsCommand() *cli.Command {
	return &cli.Command{
		Name:  "tags",
		Usage: "Manage the tag vocabulary",
		Commands: []*cli.Command{
			tagsListCommand(),
			tagsAddCommand(),
		},
	}
}

func tagsListCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "list",
		Usage: "List the current tag vocabulary",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.newLogger()

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			tags, err := repo.ListTags(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to list tags")
			}

			for _, tag := range tags {
				fmt.Fprintf(c.Root().Writer, "%s\n", tag)
			}
			return nil
		},
	}
}

func tagsAddCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "add",
		Usage:     "Register a new tag (existing sessions read it as inactive)",
		ArgsUsage: "<name>",
		Flags:     globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.newLogger()

			name := c.Args().First()
			if name == "" {
				return goerr.New("tag name is required")
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.RegisterTag(ctx, name); err != nil {
				return goerr.Wrap(err, "failed to register tag", goerr.V("name", name))
			}

			fmt.Fprintf(c.Root().Writer, "Registered tag %q\n", name)
			return nil
		},
	}
}
