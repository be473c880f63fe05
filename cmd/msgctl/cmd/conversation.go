package cmd

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var purgeActor string

func init() {
	purgeCmd.Flags().StringVar(&purgeActor, "actor", "", "participant on whose behalf the conversation is deleted (required)")
	_ = purgeCmd.MarkFlagRequired("actor")

	rootCmd.AddCommand(refreshCmd, purgeCmd, reconcileCmd)
}

var refreshCmd = &cobra.Command{
	Use:   "refresh-preview [conversation-id]",
	Short: "Re-derive a conversation's last-message preview from its newest message",
	Args:  cobra.ExactArgs(1),
	RunE: withServices(func(ctx context.Context, s *services, cmd *cobra.Command, args []string) error {
		conversation, err := s.messages.RefreshLastMessage(ctx, args[0])
		if err != nil {
			return err
		}
		if conversation.LastMessageTime == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: no messages, preview cleared\n", conversation.ID)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %q (%s)\n", conversation.ID, conversation.LastMessage, humanize.Time(*conversation.LastMessageTime))
		return nil
	}),
}

var purgeCmd = &cobra.Command{
	Use:   "purge-conversation [conversation-id]",
	Short: "Delete a conversation and its whole message log in bounded batches",
	Args:  cobra.ExactArgs(1),
	RunE: withServices(func(ctx context.Context, s *services, cmd *cobra.Command, args []string) error {
		if err := s.conversations.DeleteConversation(ctx, args[0], purgeActor); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: deleted\n", args[0])
		return nil
	}),
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [user-a] [user-b]",
	Short: "Re-derive request flags of the pair's conversation from current follow state",
	Args:  cobra.ExactArgs(2),
	RunE: withServices(func(ctx context.Context, s *services, cmd *cobra.Command, args []string) error {
		if err := s.conversations.ReconcilePair(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s/%s: reconciled\n", args[0], args[1])
		return nil
	}),
}
