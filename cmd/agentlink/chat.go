package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/agentlink/internal/chat"
	"github.com/rickgao/agentlink/internal/connection"
)

func newChatCmd(opts *globalOptions) *cobra.Command {
	var noHistory bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat with an agent (type :q to quit)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAgent(opts); err != nil {
				return err
			}
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runChat(ctx, a, opts.agent, !noHistory, cmd.InOrStdin(), newRenderer(cmd.OutOrStdout()))
		},
	}

	cmd.Flags().BoolVar(&noHistory, "no-history", false, "skip loading earlier messages")
	return cmd
}

func runChat(ctx context.Context, a *app, agentID string, withHistory bool, in io.Reader, r *renderer) error {
	mgr := a.sessionManager(withHistory)
	defer mgr.Close()

	s, err := mgr.Select(ctx, agentID)
	if err != nil {
		return err
	}

	for _, e := range s.Chat.Entries() {
		r.entry(e)
	}
	unsubscribe := s.Conn.Subscribe(r.event)
	defer unsubscribe()

	if st := s.Conn.State(); st != connection.StateConnected {
		r.notice(fmt.Sprintf("not connected (%s)", st))
	}

	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()
	lines := make(chan string)
	go scanLines(readCtx, in, lines)

	eg, groupCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return a.serveMetrics(groupCtx) })
	eg.Go(func() error {
		defer mgr.Close()
		return chatLoop(groupCtx, s.Chat, lines, r)
	})

	err = eg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// chatLoop sends each input line until input ends, :q is typed, or ctx ends.
// Send failures are shown through the event stream and do not stop the loop.
func chatLoop(ctx context.Context, t *chat.Transcript, lines <-chan string, r *renderer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return context.Canceled
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if line == ":q" || line == ":quit" || line == ":exit" {
				return context.Canceled
			}
			_, err := t.Send(ctx, line)
			if err != nil && ctx.Err() == nil && !errors.Is(err, connection.ErrSendFailed) {
				r.notice(err.Error())
			}
		}
	}
}

// scanLines feeds input lines to out until input ends or ctx is done.
func scanLines(ctx context.Context, in io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case out <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}
