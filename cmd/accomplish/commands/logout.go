package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Remove the stored credential for the active profile",
		Action: logoutAction,
	}
}

func logoutAction(ctx context.Context, cmd *cli.Command) error {
	application, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}

	profile := application.Config().Profile
	if err := application.Store().Delete(ctx, profile); err != nil {
		return fmt.Errorf("removing credential: %w", err)
	}

	fmt.Printf("Logged out (profile %q).\n", profile)
	return nil
}
