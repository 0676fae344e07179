package main

import (
	"context"
	"fmt"
	"os"

	"github.com/onepointalo/alo/app"
	alerrors "github.com/onepointalo/alo/internal/errors"
	"github.com/onepointalo/alo/storage"
	"github.com/spf13/cobra"
)

type uploadFunc func(u *storage.Uploader, ctx context.Context, identityID string, data []byte) (storage.Upload, error)

func newUploadCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a photo for the signed-in account",
	}
	cmd.AddCommand(
		newUploadKindCmd(env, "avatar", "Replace the profile photo", (*storage.Uploader).UploadAvatar),
		newUploadKindCmd(env, "need", "Attach a photo to a need", (*storage.Uploader).UploadNeedImage),
	)
	return cmd
}

func newUploadKindCmd(env *environment, use, short string, upload uploadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <file>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return env.withApp(cmd, func(ctx context.Context, a *app.App) error {
				session := a.Sessions.Session()
				if session == nil {
					return alerrors.ErrNoSession
				}
				result, err := upload(a.Uploader, ctx, session.IdentityID, data)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), result.URL)
				return nil
			})
		},
	}
}
