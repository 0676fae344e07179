package main

import (
	"context"
	"fmt"

	"github.com/onepointalo/alo/app"
	"github.com/onepointalo/alo/sessions"
	"github.com/spf13/cobra"
)

func newWatchCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow session changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return env.withApp(cmd, func(ctx context.Context, a *app.App) error {
				out := cmd.OutOrStdout()
				displayAppname(out, a.Config.GetAppName())
				printSession(out, a.Sessions.Session())

				unsubscribe := a.Sessions.Subscribe(func(s sessions.Snapshot) {
					fmt.Fprintf(out, "session %s\n", s.State)
					printSession(out, s.Session)
				})
				defer unsubscribe()

				a.Watch(ctx)
				return nil
			})
		},
	}
}
