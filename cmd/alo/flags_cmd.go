package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/onepointalo/alo/app"
	"github.com/spf13/cobra"
)

func newFlagsCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flags",
		Short: "Read or change local device flags",
	}

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a flag value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withApp(cmd, func(ctx context.Context, a *app.App) error {
				value, ok, err := a.State.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "(unset)")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			})
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <true|false>",
		Short: "Turn a flag on or off",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("flag value must be true or false: %w", err)
			}
			return env.withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.State.SetFlag(ctx, args[0], on)
			})
		},
	}

	cmd.AddCommand(get, set)
	return cmd
}
