package enrich

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/matheus3301/tgtriage/internal/tg"
)

const unknownName = "Unknown"

// selfMarker labels the local user's own messages in prompts.
const selfMarker = "[ME]"

// Snippet is the compact form of a message sent to the model.
type Snippet struct {
	SenderFirstName string
	Text            string
	RelativeTime    string
	ChatName        string
}

// snippetOverhead is the per-snippet formatting cost counted by the budget.
const snippetOverhead = 20

func (s Snippet) size() int {
	return utf8.RuneCountInString(s.SenderFirstName) +
		utf8.RuneCountInString(s.Text) +
		utf8.RuneCountInString(s.RelativeTime) +
		utf8.RuneCountInString(s.ChatName) +
		snippetOverhead
}

func (s Snippet) String() string {
	return fmt.Sprintf("[%s] [%s] %s: %s", s.ChatName, s.RelativeTime, s.SenderFirstName, s.Text)
}

// SnippetOptions tweaks how messages become snippets.
type SnippetOptions struct {
	// ChatName overrides the per-message chat title.
	ChatName string
	// MarkSelf labels outgoing messages with [ME].
	MarkSelf bool
}

// Snippets converts messages to snippets, skipping those without text.
func Snippets(msgs []tg.Message, now time.Time, opts SnippetOptions) []Snippet {
	out := make([]Snippet, 0, len(msgs))
	for _, m := range msgs {
		text := strings.TrimSpace(m.Text)
		if text == "" {
			continue
		}
		out = append(out, Snippet{
			SenderFirstName: senderFirstName(m, opts.MarkSelf),
			Text:            text,
			RelativeTime:    RelativeTime(m.Date, now),
			ChatName:        firstNonEmpty(opts.ChatName, m.ChatTitle, unknownName),
		})
	}
	return out
}

func senderFirstName(m tg.Message, markSelf bool) string {
	if markSelf && m.Outgoing {
		return selfMarker
	}
	if f := strings.Fields(m.SenderName); len(f) > 0 {
		return f[0]
	}
	return unknownName
}

// TruncateToBudget keeps the leading snippets whose cumulative size fits in
// maxChars, stopping at the first one that would overflow.
func TruncateToBudget(snips []Snippet, maxChars int) []Snippet {
	if maxChars <= 0 {
		return snips
	}
	total := 0
	for i, s := range snips {
		total += s.size()
		if total > maxChars {
			return snips[:i]
		}
	}
	return snips
}

// RelativeTime renders t relative to now: "now", "5m", "3h", "2d", then a
// short date.
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d/(24*time.Hour)))
	default:
		return t.Format("Jan 2")
	}
}

func formatSnippets(snips []Snippet) string {
	lines := make([]string, len(snips))
	for i, s := range snips {
		lines[i] = s.String()
	}
	return strings.Join(lines, "\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
