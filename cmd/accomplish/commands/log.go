package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/accomplish-dev/accomplish-cli/internal/api"
)

func logCommand() *cli.Command {
	return &cli.Command{
		Name:  "log",
		Usage: "List worklog entries",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "from",
				Usage: "start date (YYYY-MM-DD)",
			},
			&cli.StringFlag{
				Name:  "to",
				Usage: "end date (YYYY-MM-DD)",
			},
			&cli.StringSliceFlag{
				Name:    "tag",
				Aliases: []string{"t"},
				Usage:   "filter by tag (repeatable)",
			},
			&cli.StringFlag{
				Name:  "project",
				Usage: "filter by project id",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "entries per page",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "follow pagination to the end",
			},
		},
		Action: logAction,
	}
}

func logAction(ctx context.Context, cmd *cli.Command) error {
	application, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}

	req := api.ListEntriesRequest{
		From:      cmd.String("from"),
		To:        cmd.String("to"),
		Tags:      cmd.StringSlice("tag"),
		ProjectID: cmd.String("project"),
		Limit:     int(cmd.Int("limit")),
	}

	shown := 0
	for {
		page, err := application.API().ListEntries(ctx, req)
		if err != nil {
			return exitError(err)
		}

		for _, entry := range page.Entries {
			printEntry(entry)
		}
		shown += len(page.Entries)

		if !cmd.Bool("all") || page.Meta.EndCursor == "" || len(page.Entries) == 0 {
			break
		}
		req.StartingAfter = page.Meta.EndCursor
	}

	if shown == 0 {
		fmt.Println("No entries found.")
	}
	return nil
}

func printEntry(entry api.Entry) {
	header := fmt.Sprintf("%s (%s)", entry.ID, entry.RecordedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	if entry.Project != nil && entry.Project.Identifier != "" {
		header += fmt.Sprintf(" [%s]", strings.ToUpper(entry.Project.Identifier))
	}
	fmt.Println(header)
	fmt.Println(entry.Content)
	if len(entry.Tags) > 0 {
		fmt.Printf("Tags: %s\n", strings.Join(entry.Tags, ", "))
	}
	fmt.Println()
}
