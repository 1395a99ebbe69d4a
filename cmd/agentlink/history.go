package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	var (
		limit         int
		conversations bool
		deleteID      string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show an agent's stored messages or conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAgent(opts); err != nil {
				return err
			}
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			if a.cfg.API.BaseURL == "" {
				return errors.New("api.base_url is not configured")
			}

			ctx := cmd.Context()
			client := a.historyClient()
			r := newRenderer(cmd.OutOrStdout())

			switch {
			case deleteID != "":
				if err := client.DeleteConversation(ctx, opts.agent, deleteID); err != nil {
					return err
				}
				r.line("%s", r.style(okStyle, fmt.Sprintf("deleted conversation %s", deleteID)))
				return nil

			case conversations:
				convs, err := client.ListConversations(ctx, opts.agent)
				if err != nil {
					return err
				}
				r.conversations(convs)
				return nil
			}

			if limit <= 0 {
				limit = a.cfg.API.HistoryLimit
			}
			msgs, err := client.ListMessages(ctx, opts.agent, limit)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				r.message(m.Role, m.Content, m.Logs)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum messages (default: api.history_limit)")
	cmd.Flags().BoolVar(&conversations, "conversations", false, "list conversations instead of messages")
	cmd.Flags().StringVar(&deleteID, "delete", "", "delete the conversation with this id")
	return cmd
}
