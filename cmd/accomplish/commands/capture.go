package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/accomplish-dev/accomplish-cli/internal/api"
)

func captureCommand() *cli.Command {
	return &cli.Command{
		Name:      "capture",
		Usage:     "Record a new worklog entry",
		ArgsUsage: "<message> [message...]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "tag",
				Aliases: []string{"t"},
				Usage:   "tag the entry (repeatable)",
			},
			&cli.StringFlag{
				Name:  "project",
				Usage: "project id to attach the entry to",
			},
		},
		Action: captureAction,
	}
}

func captureAction(ctx context.Context, cmd *cli.Command) error {
	messages := cmd.Args().Slice()
	if len(messages) == 0 {
		return errors.New("nothing to capture: pass at least one message")
	}

	application, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}

	entry, err := application.API().CreateEntry(ctx, api.CreateEntryRequest{
		Content:    strings.Join(messages, "\n\n"),
		RecordedAt: time.Now().UTC(),
		Tags:       cmd.StringSlice("tag"),
		ProjectID:  cmd.String("project"),
	})
	if err != nil {
		return exitError(err)
	}

	fmt.Printf("Created entry %s\n", entry.ID)
	if len(entry.Tags) > 0 {
		fmt.Printf("Tags: %s\n", strings.Join(entry.Tags, ", "))
	}
	return nil
}
