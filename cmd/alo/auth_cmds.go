package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/onepointalo/alo/app"
	"github.com/onepointalo/alo/identity"
	"github.com/onepointalo/alo/localstate"
	"github.com/spf13/cobra"
)

const passwordEnv = "ALO_PASSWORD"

type credentials struct {
	email       string
	password    string
	countryCode string
	phone       string
}

func (c *credentials) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.email, "email", "", "account email")
	cmd.Flags().StringVar(&c.password, "password", "", "account password (default $"+passwordEnv+")")
	cmd.Flags().StringVar(&c.countryCode, "country-code", "+1", "country code for --phone")
	cmd.Flags().StringVar(&c.phone, "phone", "", "sign in with a phone number instead of an email")
}

func (c *credentials) resolve() (email, password string, err error) {
	email = c.email
	if c.phone != "" {
		if email, err = identity.PhoneEmail(c.countryCode, c.phone); err != nil {
			return "", "", err
		}
	}
	if email == "" {
		return "", "", errors.New("--email or --phone is required")
	}

	password = c.password
	if password == "" {
		password = os.Getenv(passwordEnv)
	}
	if password == "" {
		return "", "", errors.New("--password or $" + passwordEnv + " is required")
	}
	return email, password, nil
}

func newWhoamiCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the restored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return env.withApp(cmd, func(_ context.Context, a *app.App) error {
				printSession(cmd.OutOrStdout(), a.Sessions.Session())
				return nil
			})
		},
	}
}

func newSignInCmd(env *environment) *cobra.Command {
	var creds credentials
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in with email or phone and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, password, err := creds.resolve()
			if err != nil {
				return err
			}
			return env.withApp(cmd, func(ctx context.Context, a *app.App) error {
				session, err := a.Sessions.SignIn(ctx, email, password)
				if err != nil {
					return userError(err)
				}
				printSession(cmd.OutOrStdout(), session)
				return nil
			})
		},
	}
	creds.bind(cmd)
	return cmd
}

func newSignUpCmd(env *environment) *cobra.Command {
	var (
		creds    credentials
		fullName string
	)
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, password, err := creds.resolve()
			if err != nil {
				return err
			}
			if fullName == "" {
				return errors.New("--name is required")
			}
			return env.withApp(cmd, func(ctx context.Context, a *app.App) error {
				session, err := a.Sessions.SignUp(ctx, email, password, fullName)
				if err != nil {
					return userError(err)
				}
				if err := a.State.Set(ctx, localstate.FlagUserFullName, fullName); err != nil {
					a.Log.Warn().Err(err).Msg("could not remember full name")
				}
				printSession(cmd.OutOrStdout(), session)
				return nil
			})
		},
	}
	creds.bind(cmd)
	cmd.Flags().StringVar(&fullName, "name", "", "full name")
	return cmd
}

func newSignOutCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return env.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Sessions.SignOut(ctx); err != nil {
					return fmt.Errorf("signed out locally, backend sign-out failed: %w", userError(err))
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
				return nil
			})
		},
	}
}
