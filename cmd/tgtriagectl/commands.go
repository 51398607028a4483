package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/matheus3301/tgtriage/internal/api"
	"github.com/spf13/cobra"
)

func statusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(func(ctx context.Context, c *api.Client) error {
				resp, err := c.GetStatus(ctx)
				if err != nil {
					return err
				}
				if g.json {
					outputJSON(resp)
					return nil
				}
				fmt.Printf("Session:  %s\n", resp.Session)
				fmt.Printf("State:    %s (since %s)\n", resp.State, ago(resp.SinceUnix))
				if resp.NeedsUserAction {
					fmt.Println("          user action required")
				}
				fmt.Printf("Uptime:   %dms\n", resp.UptimeMs)
				fmt.Printf("Chats:    %d (%d visible)\n", resp.Chats, resp.VisibleChats)
				fmt.Printf("Cache:    %d chats, %d users\n", resp.CachedChats, resp.CachedUsers)
				fmt.Printf("Archive:  %d messages\n", resp.ArchivedMessages)
				fmt.Printf("AI:       %s (configured: %t)\n", resp.AIProvider, resp.AIConfigured)
				fmt.Printf("Tokens:   %.1f\n", resp.RateTokens)
				return nil
			})
		},
	}
}

func testAICmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "test-ai",
		Short: "Check that the AI provider answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(func(ctx context.Context, c *api.Client) error {
				resp, err := c.TestConnection(ctx)
				if err != nil {
					return err
				}
				if g.json {
					outputJSON(resp)
					return nil
				}
				if resp.OK {
					fmt.Printf("%s: ok\n", resp.Provider)
				} else {
					fmt.Printf("%s: unexpected reply\n", resp.Provider)
				}
				return nil
			})
		},
	}
}

func chatsCmd(g *globals) *cobra.Command {
	var (
		filter string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "List chats in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(func(ctx context.Context, c *api.Client) error {
				resp, err := c.ListChats(ctx, api.ListChatsRequest{Filter: filter, Limit: limit})
				if err != nil {
					return err
				}
				if g.json {
					outputJSON(resp)
					return nil
				}
				for _, ch := range resp.Chats {
					preview := ""
					if ch.LastMessage != nil {
						preview = oneLine(ch.LastMessage.Text, 60)
					}
					fmt.Printf("%-14d %-10s %-28s %3d  %s\n", ch.ID, ch.Type, oneLine(ch.Title, 28), ch.UnreadCount, preview)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", api.FilterVisible, "all, visible, groups or direct")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum chats (0 = daemon default)")
	return cmd
}

func routeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "route <query>",
		Short: "Show which intent a query routes to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(func(ctx context.Context, c *api.Client) error {
				resp, err := c.Route(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				if g.json {
					outputJSON(resp)
					return nil
				}
				via := "rules"
				if resp.ByAI {
					via = "ai"
				}
				fmt.Printf("%s (%s)\n", resp.Intent, via)
				if resp.Query != "" {
					fmt.Printf("query: %s\n", resp.Query)
				}
				return nil
			})
		},
	}
}

func searchCmd(g *globals) *cobra.Command {
	var (
		chatID int64
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Keyword search across chats or within one",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(func(ctx context.Context, c *api.Client) error {
				resp, err := c.SearchMessages(ctx, api.SearchRequest{Query: strings.Join(args, " "), ChatID: chatID, Limit: limit})
				if err != nil {
					return err
				}
				if g.json {
					outputJSON(resp)
					return nil
				}
				printMessages(resp.Messages)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&chatID, "chat", 0, "restrict to one chat id")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (0 = daemon default)")
	return cmd
}

func summarizeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <chat-id>",
		Short: "Summarize a chat's recent history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chat id %q", args[0])
			}
			return g.run(func(ctx context.Context, c *api.Client) error {
				resp, err := c.SummarizeChat(ctx, id)
				if err != nil {
					return err
				}
				if g.json {
					outputJSON(resp)
					return nil
				}
				fmt.Println(resp.Summary)
				return nil
			})
		},
	}
}

func priorityCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "priority",
		Short: "Extract action items from recent chats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(func(ctx context.Context, c *api.Client) error {
				resp, err := c.Priority(ctx)
				if err != nil {
					return err
				}
				if g.json {
					outputJSON(resp)
					return nil
				}
				if len(resp.Items) == 0 {
					fmt.Println("Nothing needs attention.")
					return nil
				}
				for _, it := range resp.Items {
					fmt.Printf("[%s] %s / %s: %s\n", it.Urgency, it.ChatName, it.SenderName, it.Summary)
					if it.SuggestedAction != "" {
						fmt.Printf("    -> %s\n", it.SuggestedAction)
					}
				}
				return nil
			})
		},
	}
}

func semanticCmd(g *globals) *cobra.Command {
	var pages int
	cmd := &cobra.Command{
		Use:   "semantic <query>",
		Short: "Find chats about a topic, page by page",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(func(ctx context.Context, c *api.Client) error {
				page, err := c.StartSemanticSearch(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				for i := 1; page.HasMore && (pages <= 0 || i < pages); i++ {
					if page, err = c.NextSemanticPage(ctx, page.SearchID); err != nil {
						return err
					}
				}
				if g.json {
					outputJSON(page)
					return nil
				}
				fmt.Printf("Scanned %d of %d chats\n", page.Scanned, page.Total)
				for _, r := range page.Results {
					fmt.Printf("[%s] %s: %s\n", r.Relevance, r.ChatTitle, r.Reason)
					for _, e := range r.Excerpts {
						fmt.Printf("    > %s\n", oneLine(e, 100))
					}
				}
				if page.HasMore {
					fmt.Println("(more chats to scan; raise --pages)")
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&pages, "pages", 1, "pages to scan (0 = all)")
	return cmd
}

func pipelineCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "pipeline",
		Short: "Stream the follow-up pipeline until it settles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.stream(func(ctx context.Context, c *api.Client) error {
				return c.WatchPipeline(ctx, func(s api.PipelineSnapshot) error {
					if g.json {
						outputJSON(s)
						return nil
					}
					if !s.Done {
						fmt.Printf("... %d items, %d pending\n", len(s.Items), s.Pending)
						return nil
					}
					for _, it := range s.Items {
						fmt.Printf("%-10s %-28s %s\n", it.Category, oneLine(it.Chat.Title, 28), ago(it.LastMessage.DateUnix))
						if it.SuggestedAction != "" {
							fmt.Printf("    -> %s\n", it.SuggestedAction)
						}
					}
					return nil
				})
			})
		},
	}
}

func digestCmd(g *globals) *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Summarize recent activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(func(ctx context.Context, c *api.Client) error {
				resp, err := c.Digest(ctx, period)
				if err != nil {
					return err
				}
				if g.json {
					outputJSON(resp)
					return nil
				}
				for _, s := range resp.Sections {
					fmt.Printf("%s %s\n%s\n\n", s.Emoji, s.Title, s.Content)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&period, "period", "daily", "daily or weekly")
	return cmd
}

func categorizeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "categorize",
		Short: "Sort unread direct messages into categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(func(ctx context.Context, c *api.Client) error {
				resp, err := c.CategorizeDirect(ctx)
				if err != nil {
					return err
				}
				if g.json {
					outputJSON(resp)
					return nil
				}
				for _, m := range resp.Messages {
					fmt.Printf("%-12s %s: %s\n", m.Category, m.Message.SenderName, oneLine(m.Message.Text, 60))
					if m.Reason != "" {
						fmt.Printf("    %s\n", m.Reason)
					}
				}
				return nil
			})
		},
	}
}

func eventsCmd(g *globals) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream daemon events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.stream(func(ctx context.Context, c *api.Client) error {
				return c.WatchEvents(ctx, prefix, func(e api.Event) error {
					if g.json {
						outputJSON(e)
						return nil
					}
					if e.ChatID != 0 {
						fmt.Printf("%s chat=%d\n", e.Kind, e.ChatID)
					} else {
						fmt.Println(e.Kind)
					}
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", `event kind prefix, like "chats."`)
	return cmd
}

func printMessages(msgs []api.Message) {
	for _, m := range msgs {
		who := m.SenderName
		if m.Outgoing {
			who = "me"
		}
		fmt.Printf("%-8s [%s] %s: %s\n", ago(m.DateUnix), m.ChatTitle, who, oneLine(m.Text, 80))
	}
}

// oneLine flattens s and cuts it to n runes.
func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
