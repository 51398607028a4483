package enrich

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/matheus3301/tgtriage/internal/tg"
)

func TestRelativeTime(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{30 * time.Second, "now"},
		{5 * time.Minute, "5m"},
		{59 * time.Minute, "59m"},
		{3 * time.Hour, "3h"},
		{2 * 24 * time.Hour, "2d"},
		{6*24*time.Hour + 23*time.Hour, "6d"},
		{8 * 24 * time.Hour, "Mar 2"},
	}
	for _, tt := range tests {
		if got := RelativeTime(testNow.Add(-tt.ago), testNow); got != tt.want {
			t.Errorf("RelativeTime(-%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}
}

func TestSnippets(t *testing.T) {
	msgs := []tg.Message{
		{ChatID: 1, Date: testNow.Add(-2 * time.Minute), Text: "hello there", SenderName: "Ana Souza", ChatTitle: "Ops"},
		{ChatID: 1, Date: testNow, Text: "   "},
		{ChatID: 2, Date: testNow.Add(-3 * time.Hour), Text: "ping", Outgoing: true, SenderName: "Me Myself"},
		{ChatID: 3, Date: testNow, Text: "anon"},
	}

	got := Snippets(msgs, testNow, SnippetOptions{MarkSelf: true})
	want := []Snippet{
		{SenderFirstName: "Ana", Text: "hello there", RelativeTime: "2m", ChatName: "Ops"},
		{SenderFirstName: "[ME]", Text: "ping", RelativeTime: "3h", ChatName: "Unknown"},
		{SenderFirstName: "Unknown", Text: "anon", RelativeTime: "now", ChatName: "Unknown"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Snippets() mismatch (-want +got):\n%s", diff)
	}

	over := Snippets(msgs[:1], testNow, SnippetOptions{ChatName: "Override"})
	if over[0].ChatName != "Override" {
		t.Errorf("ChatName = %q, want override", over[0].ChatName)
	}
}

func TestTruncateToBudget(t *testing.T) {
	s := Snippet{SenderFirstName: "Ana", Text: strings.Repeat("é", 27), RelativeTime: "2m", ChatName: "Ops"}
	// 3 + 27 + 2 + 3 + 20 = 55 runes each.
	snips := []Snippet{s, s, s}

	tests := []struct {
		budget int
		want   int
	}{
		{0, 3},
		{54, 0},
		{55, 1},
		{164, 2},
		{165, 3},
	}
	for _, tt := range tests {
		if got := TruncateToBudget(snips, tt.budget); len(got) != tt.want {
			t.Errorf("TruncateToBudget(budget=%d) kept %d, want %d", tt.budget, len(got), tt.want)
		}
	}
}
