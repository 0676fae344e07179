package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/onepointalo/alo/app"
	"github.com/onepointalo/alo/identity"
	"github.com/onepointalo/alo/internal/config"
	"github.com/onepointalo/alo/internal/logging"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

// environment builds the app for a command. Tests replace it.
type environment struct {
	loadConfig func() (config.Config, error)
	dotenv     string
}

func newEnvironment() *environment {
	e := &environment{}
	e.loadConfig = func() (config.Config, error) {
		return config.Load(e.dotenv)
	}
	return e
}

func newRootCmd(env *environment) *cobra.Command {
	root := &cobra.Command{
		Use:   "alo",
		Short: "OnePoint ALO session client",
		Long: `alo signs in to OnePoint ALO, keeps the account mirrored on the
secondary backend, and prepares photo storage after every sign-in.

Example usage:
  alo signup --email a@x.com --name Alex
  alo signin --email a@x.com
  alo whoami
  alo upload avatar ./me.png`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := env.loadConfig()
			if err != nil {
				return err
			}
			displayAppname(cmd.OutOrStdout(), cfg.GetAppName())
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&env.dotenv, "env-file", ".env", "dotenv file loaded before the environment")

	root.AddCommand(
		newWhoamiCmd(env),
		newSignInCmd(env),
		newSignUpCmd(env),
		newSignOutCmd(env),
		newUploadCmd(env),
		newChatCmd(env),
		newFlagsCmd(env),
		newWatchCmd(env),
	)
	return root
}

// withApp builds and starts the app, runs fn, and drains background work
// (mirroring, storage bootstrap) before returning.
func (e *environment) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.GetLogLevel(), cfg.GetLogFormat())
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Close(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("background work did not finish before shutdown")
		}
	}()

	if err := a.Start(ctx); err != nil {
		log.Warn().Err(err).Msg("could not restore the previous session")
	}
	return fn(ctx, a)
}

func printSession(out io.Writer, s *identity.Session) {
	if s == nil {
		fmt.Fprintln(out, "Not signed in.")
		return
	}
	name := s.DisplayName
	if name == "" {
		name = "(no name)"
	}
	fmt.Fprintf(out, "Signed in as %s <%s>\nIdentity: %s\n", name, s.Email, s.IdentityID)
}

// userError renders auth failures the way the sign-in form shows them.
func userError(err error) error {
	var authErr *identity.AuthError
	if errors.As(err, &authErr) {
		return errors.New(authErr.UserMessage())
	}
	return err
}

func displayAppname(out io.Writer, appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(out, myFigure.String())
}
