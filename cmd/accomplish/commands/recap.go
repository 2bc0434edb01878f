package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/accomplish-dev/accomplish-cli/internal/api"
	"github.com/accomplish-dev/accomplish-cli/internal/stream"
)

func recapCommand() *cli.Command {
	return &cli.Command{
		Name:  "recap",
		Usage: "Generate an AI summary of your worklog",
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
			&cli.StringSliceFlag{
				Name:  "project",
				Usage: "filter by project id (repeatable)",
			},
		},
		Action: recapAction,
	}
}

func recapAction(ctx context.Context, cmd *cli.Command) error {
	application, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}

	recap, err := application.API().GenerateRecap(ctx, api.GenerateRecapRequest{
		From:       cmd.String("from"),
		To:         cmd.String("to"),
		Tags:       cmd.StringSlice("tag"),
		ProjectIDs: cmd.StringSlice("project"),
	})
	if err != nil {
		return exitError(err)
	}

	// A cache hit answers immediately; anything else is observed as a
	// stream of progress events until the server finishes.
	if recap.Status != "completed" {
		fmt.Println("Generating your recap...")
		if err := awaitRecap(ctx, application.RecapSession(), recap.RecapID); err != nil {
			return err
		}
	}

	status, err := application.API().GetRecapStatus(ctx, recap.RecapID)
	if err != nil {
		return exitError(err)
	}
	if status.Content == "" {
		return operationFailed("recap completed but no content was returned")
	}
	fmt.Println(status.Content)
	return nil
}

// awaitRecap consumes the event channel until the operation completes or
// fails. An interrupt surfaces as the context error, not an event.
func awaitRecap(ctx context.Context, session *stream.Session, recapID string) error {
	events, err := session.Open(ctx, recapID)
	if err != nil {
		return exitError(err)
	}

	for ev := range events {
		switch ev.Kind {
		case stream.KindProgress:
			if ev.Message != "" {
				fmt.Printf("%3d%% %s\n", ev.Percent, ev.Message)
			} else {
				fmt.Printf("%3d%%\n", ev.Percent)
			}
		case stream.KindPartial:
			// Partial payloads are intermediate; the final content is
			// fetched once the operation completes.
		case stream.KindCompleted:
			return nil
		case stream.KindFailed:
			return operationFailed(fmt.Sprintf("recap generation failed: %s", ev.Reason))
		}
	}

	// Channel closed without a terminal event: the wait was cancelled.
	if err := ctx.Err(); err != nil {
		return err
	}
	return operationFailed("recap stream ended unexpectedly")
}
