package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/onepointalo/alo/app"
	"github.com/onepointalo/alo/assistant"
	"github.com/spf13/cobra"
)

func newChatCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to the ALO assistant, one message per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return env.withApp(cmd, func(ctx context.Context, a *app.App) error {
				return chat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), a.Assistant)
			})
		},
	}
}

func chat(ctx context.Context, in io.Reader, out io.Writer, responder assistant.Responder) error {
	history := []assistant.Message{{Role: assistant.RoleAssistant, Content: assistant.Greeting}}
	fmt.Fprintln(out, assistant.Greeting)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		history = append(history, assistant.Message{Role: assistant.RoleUser, Content: line})

		reply, err := responder.Reply(ctx, history)
		if err != nil {
			return err
		}
		history = append(history, assistant.Message{Role: assistant.RoleAssistant, Content: reply})
		fmt.Fprintln(out, reply)
	}
	return scanner.Err()
}
