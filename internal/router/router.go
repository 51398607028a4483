package router

import (
	"context"
	"regexp"
	"strings"

	"github.com/matheus3301/tgtriage/internal/ai"
	"go.uber.org/zap"
)

// Intent is what a free-text query asks for.
type Intent string

const (
	GroupDiscovery Intent = "group_discovery"
	DMIntelligence Intent = "dm_intelligence"
	ActionItems    Intent = "action_items"
	Digest         Intent = "digest"
	Pipeline       Intent = "pipeline"
	SemanticSearch Intent = "semantic_search"
	MessageSearch  Intent = "message_search"
)

// Intents lists every intent in classification order.
var Intents = []Intent{
	GroupDiscovery, DMIntelligence, ActionItems, Digest, Pipeline, SemanticSearch, MessageSearch,
}

// Valid reports whether s names a known intent.
func Valid(s string) bool {
	for _, i := range Intents {
		if string(i) == s {
			return true
		}
	}
	return false
}

// Route is a routing decision.
type Route struct {
	Intent Intent
	// Query is the normalized query with any forcing prefix removed.
	Query string
	// ByAI is set when the intent came from the classifier.
	ByAI bool
}

const searchPrefix = "search:"

var groupsOnly = regexp.MustCompile(`^(show\s+)?(all\s+)?groups?$`)

type rule struct {
	intent   Intent
	patterns []string
}

// Checked in order; the first rule with a matching substring wins.
var rules = []rule{
	{GroupDiscovery, []string{"show all groups", "show groups", "my groups", "list groups", "browse groups", "channels"}},
	{ActionItems, []string{"who needs reply", "who needs a reply", "needs reply", "waiting on me",
		"pending", "unanswered", "action items", "what should i reply"}},
	{Digest, []string{"digest", "summary", "summarize", "recap", "catch up",
		"what did i miss", "weekly digest", "daily digest", "weekly summary", "daily summary"}},
	{DMIntelligence, []string{"unread dm", "unread dms", "direct message", "my dms",
		"recent dm", "recent dms", "private chat", "personal messages"}},
	{Pipeline, []string{"pipeline", "follow up", "follow-up", "gone quiet"}},
	{SemanticSearch, []string{"chats about", "who mentioned", "who talked about", "conversations about", "related to"}},
}

// Router classifies queries. Pattern matching never touches the network.
type Router struct {
	provider ai.Provider
	logger   *zap.Logger
}

func New(provider ai.Provider, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if provider == nil {
		provider = ai.None{}
	}
	return &Router{provider: provider, logger: logger.Named("router")}
}

// Match runs only the deterministic rules. The search prefix is checked
// first and forces keyword search.
func Match(query string) (Route, bool) {
	q := normalize(query)
	if strings.HasPrefix(q, searchPrefix) {
		return Route{Intent: MessageSearch, Query: strings.TrimSpace(strings.TrimPrefix(q, searchPrefix))}, true
	}
	if groupsOnly.MatchString(q) {
		return Route{Intent: GroupDiscovery, Query: q}, true
	}
	for _, r := range rules {
		if containsAny(q, r.patterns) {
			return Route{Intent: r.intent, Query: q}, true
		}
	}
	return Route{Query: q}, false
}

// Route classifies query. It falls back to one AI call when no pattern
// matches, and to message search when that call fails or is unavailable.
func (r *Router) Route(ctx context.Context, query string) Route {
	route, ok := Match(query)
	if ok {
		return route
	}
	if route.Query == "" || !ai.IsConfigured(r.provider) {
		return Route{Intent: MessageSearch, Query: route.Query}
	}

	out, err := r.provider.Complete(ctx, ai.Request{
		System: classifySystemPrompt,
		User:   `Classify this query: "` + route.Query + `"`,
		Fast:   true,
	})
	if err != nil {
		r.logger.Warn("classification failed, falling back to search", zap.Error(err))
		return Route{Intent: MessageSearch, Query: route.Query}
	}
	label := strings.Trim(strings.ToLower(strings.TrimSpace(out)), ".\"'`")
	if !Valid(label) {
		r.logger.Debug("classifier returned unknown label", zap.String("label", label))
		return Route{Intent: MessageSearch, Query: route.Query}
	}
	return Route{Intent: Intent(label), Query: route.Query, ByAI: true}
}

func normalize(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

func containsAny(q string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(q, p) {
			return true
		}
	}
	return false
}

const classifySystemPrompt = `You are a query classifier for a Telegram triage assistant. Given a user query, classify it into exactly one intent.
Respond with ONLY the intent label, nothing else.

Intent labels:
- group_discovery: the user wants to browse or find groups, channels or communities
- dm_intelligence: the user wants direct messages or private conversations
- action_items: the user wants to know who needs a reply or what is waiting on them
- digest: the user wants a summary or recap of recent activity
- pipeline: the user wants conversations that need a follow-up or have gone quiet
- semantic_search: the user describes a topic and wants the chats where it came up
- message_search: the user wants messages matching specific keywords`
