package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/accomplish-dev/accomplish-cli/internal/credstore"
)

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show authentication status for the active profile",
		Action: statusAction,
	}
}

func statusAction(ctx context.Context, cmd *cli.Command) error {
	application, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}

	profile := application.Config().Profile
	cred, err := application.Store().Load(ctx, profile)
	if errors.Is(err, credstore.ErrNotFound) {
		return cli.Exit(fmt.Sprintf("Not logged in (profile %q). Run `accomplish login`.", profile), exitCodeAuth)
	}
	if err != nil {
		return fmt.Errorf("loading credential: %w", err)
	}

	info, err := application.API().CheckTokenInfo(ctx, cred.AccessToken)
	if err != nil {
		return exitError(err)
	}

	fmt.Printf("Logged in (profile %q).\n", profile)
	if info.Username != "" {
		fmt.Printf("Account: %s\n", info.Username)
	}
	fmt.Printf("Scopes: %s\n", info.Scope)
	if info.Exp > 0 {
		fmt.Printf("Token expires: %s\n", time.Unix(info.Exp, 0).UTC().Format(time.RFC3339))
	}
	return nil
}
