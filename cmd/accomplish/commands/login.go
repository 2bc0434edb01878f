package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
	"golang.org/x/term"

	"github.com/accomplish-dev/accomplish-cli/internal/authflow"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Authenticate this machine with your Accomplish account",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "browser-callback",
				Usage: "authorize via a local browser redirect instead of a device code",
			},
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "print the verification URL without opening a browser",
			},
		},
		Action: loginAction,
	}
}

func loginAction(ctx context.Context, cmd *cli.Command) error {
	application, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}

	var authOpts []authflow.AuthenticatorOption
	if cmd.Bool("no-browser") || !term.IsTerminal(int(os.Stdout.Fd())) {
		authOpts = append(authOpts, authflow.WithBrowserOpener(func(string) error {
			return nil
		}))
	}

	authenticator, err := application.Authenticator(authOpts...)
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}

	var tok *oauth2.Token
	if cmd.Bool("browser-callback") {
		tok, err = authenticator.LoginWithCallback(ctx)
	} else {
		tok, err = deviceLogin(ctx, authenticator)
	}
	if err != nil {
		return exitError(err)
	}

	profile := application.Config().Profile
	cred := authflow.CredentialFromToken(profile, tok)
	if err := application.Store().Save(ctx, profile, cred); err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}

	fmt.Printf("Logged in (profile %q).\n", profile)
	return nil
}

func deviceLogin(ctx context.Context, authenticator *authflow.Authenticator) (*oauth2.Token, error) {
	auth, err := authenticator.Begin(ctx)
	if err != nil {
		return nil, err
	}
	fmt.Println("Waiting for approval...")
	return authenticator.Complete(ctx, auth)
}
