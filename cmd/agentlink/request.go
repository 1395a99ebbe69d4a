package main

import (
	"context"
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/agentlink/internal/widget"
)

type requestOptions struct {
	component string
	action    string
	data      string
	timeout   time.Duration
	points    int
}

func newRequestCmd(opts *globalOptions) *cobra.Command {
	ro := &requestOptions{}

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Send one data_request and print the response or its fallback",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAgent(opts); err != nil {
				return err
			}
			if ro.component == "" || ro.action == "" {
				return errors.New("--component and --action are required")
			}
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runRequest(ctx, a, opts.agent, ro, newRenderer(cmd.OutOrStdout()))
		},
	}

	cmd.Flags().StringVar(&ro.component, "component", "", "widget component (chart, table, ...)")
	cmd.Flags().StringVar(&ro.action, "action", "", "action name")
	cmd.Flags().StringVar(&ro.data, "data", "", "JSON request data")
	cmd.Flags().DurationVar(&ro.timeout, "timeout", 0, "response timeout (default: requests.timeout)")
	cmd.Flags().IntVar(&ro.points, "fallback-points", 5, "placeholder points for chart fallbacks")
	return cmd
}

func runRequest(ctx context.Context, a *app, agentID string, ro *requestOptions, r *renderer) error {
	var data any
	if ro.data != "" {
		if !json.Valid([]byte(ro.data)) {
			return errors.New("--data is not valid JSON")
		}
		data = json.RawMessage(ro.data)
	}

	mgr := a.sessionManager(false)
	defer mgr.Close()

	s, err := mgr.Select(ctx, agentID)
	if err != nil {
		return err
	}

	wopts := []widget.Option{
		widget.WithFallback(fallbackFor(ro.component, ro.points)),
		widget.WithLogger(a.logger),
	}
	if ro.timeout > 0 {
		wopts = append(wopts, widget.WithTimeout(ro.timeout))
	}

	p, err := s.Widget(ro.component, wopts...).Fetch(ctx, ro.action, data)
	if err != nil {
		return err
	}
	r.payload(ro.component, ro.action, p)
	return nil
}

func fallbackFor(component string, points int) widget.FallbackFunc {
	switch component {
	case "chart":
		return widget.ChartFallback(points)
	case "table":
		return widget.TableFallback()
	default:
		return widget.EmptyFallback
	}
}
