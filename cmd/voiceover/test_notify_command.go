package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"voiceover/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			notifier := ctx.deps.notifier
			if notifier == nil {
				if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
					fmt.Fprintln(out, "Notifications disabled (set notifications.ntfy_topic or NTFY_TOPIC)")
					return nil
				}
				notifier = notifications.NewService(cfg)
			}
			if err := notifier.Publish(cmd.Context(), notifications.EventTest, notifications.Payload{}); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(out, "Test notification sent")
			return nil
		},
	}
}
