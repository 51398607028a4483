package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matheus3301/tgtriage/internal/api"
	"github.com/matheus3301/tgtriage/internal/session"
	"github.com/spf13/cobra"
)

type globals struct {
	session string
	json    bool
	timeout time.Duration
}

func main() {
	g := &globals{}
	root := &cobra.Command{
		Use:           "tgtriagectl",
		Short:         "Query a running tgtriaged session",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.session, "session", "", "session name (overrides config default)")
	root.PersistentFlags().BoolVar(&g.json, "json", false, "output in JSON format")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 2*time.Minute, "deadline for unary calls")

	root.AddCommand(
		statusCmd(g),
		testAICmd(g),
		chatsCmd(g),
		routeCmd(g),
		searchCmd(g),
		summarizeCmd(g),
		priorityCmd(g),
		semanticCmd(g),
		pipelineCmd(g),
		digestCmd(g),
		categorizeCmd(g),
		eventsCmd(g),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// connect dials the session daemon.
func (g *globals) connect() (*api.Client, error) {
	name := session.Resolve(g.session)
	if err := session.ValidateName(name); err != nil {
		return nil, err
	}
	c, err := api.Dial(session.SocketPath(name))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to daemon for session %q: %w", name, err)
	}
	return c, nil
}

// run dials, bounds the call with the unary timeout and closes the client.
func (g *globals) run(fn func(ctx context.Context, c *api.Client) error) error {
	c, err := g.connect()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()
	return fn(ctx, c)
}

// stream is like run but ends on SIGINT instead of a deadline.
func (g *globals) stream(fn func(ctx context.Context, c *api.Client) error) error {
	c, err := g.connect()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := fn(ctx, c); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func ago(unix int64) string {
	if unix == 0 {
		return "-"
	}
	d := time.Since(time.Unix(unix, 0))
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
