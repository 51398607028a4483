package enrich

import (
	"fmt"
	"strings"
)

const prioritySystemPrompt = `You are reviewing recent Telegram messages to find conversations that need the user's attention or a reply.
Given messages from several chats, pick out the threads where someone is waiting on the user or where action is needed.

For each action item return:
- chatName: the chat the item belongs to
- senderName: who is waiting
- summary: one sentence on what needs attention
- suggestedAction: one sentence on what to reply or do
- urgency: "high" for a direct question or request, "medium" for an implied need to respond, "low" for something worth a later look

Respond with a JSON array only. Respond with [] when nothing needs attention.
Example:
[
  {"chatName": "Project Team", "senderName": "Alice", "summary": "Asked about the Friday deployment window", "suggestedAction": "Confirm Friday or propose another date", "urgency": "high"}
]`

func priorityUserPrompt(snips []Snippet) string {
	return "Recent messages across chats:\n" + formatSnippets(snips)
}

const followUpSystemPrompt = `You are reviewing one Telegram conversation for someone who works in business development and partnerships.
Messages marked [ME] were written by the user. Every other message is from a contact.

Decide whether the conversation matters for their work (deals, partnerships, projects, collaborations, clients) and suggest one follow-up.

Respond with a JSON object only:
{"relevant": true, "suggestedAction": "One direct sentence"}

Use "relevant": false for casual personal chats, meme groups, news feeds, bots, spam or threads with nothing to act on.
Keep suggestedAction short and concrete, like "Ping them about the invoice review".
When not relevant respond with {"relevant": false, "suggestedAction": ""}`

func followUpUserPrompt(chatTitle string, snips []Snippet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Chat: %q\nRecent messages:\n", chatTitle)
	for _, s := range snips {
		fmt.Fprintf(&b, "[%s] %s: %s\n", s.RelativeTime, s.SenderFirstName, s.Text)
	}
	return b.String()
}

const semanticSystemPrompt = `You are reviewing recent Telegram messages to find chats that relate to the user's query.
Given messages from several chats, pick the chats whose discussion touches the query topic.

For each relevant chat return:
- chatName: the chat name exactly as written in the messages
- reason: one sentence on why it matches
- relevance: "high" when the chat discusses the topic directly, "medium" when it is related
- matchingMessages: 1 to 3 excerpts copied from the input, at most about 80 characters each

Respond with a JSON array only, high relevance first. Respond with [] when nothing matches.
Example:
[
  {"chatName": "Startup Friends", "reason": "Talked about reaching first revenue", "relevance": "high", "matchingMessages": ["We just hit our first $1k MRR!"]}
]`

func semanticUserPrompt(query string, snips []Snippet) string {
	return fmt.Sprintf("Find chats related to: %q\n\nRecent messages:\n%s", query, formatSnippets(snips))
}

func digestSystemPrompt(p Period) string {
	return fmt.Sprintf(`You are writing a %s digest of Telegram activity from recent messages across several chats.

Organize it into 3 to 5 sections. Each section has:
- emoji: one emoji
- title: a short title
- content: 2 to 4 markdown bullet points ("- ") separated by newlines

Respond with a JSON array only:
[
  {"emoji": "💬", "title": "Active Discussions", "content": "- Team discussed the feature rollout\n- Design review moved to Thursday"}
]

Leave out user IDs and phone numbers. Skip trivial chatter. Use fewer sections when activity is low.`, strings.ToLower(string(p)))
}

func digestUserPrompt(snips []Snippet) string {
	return "Messages to summarize:\n" + formatSnippets(snips)
}

const summarySystemPrompt = `You summarize a Telegram chat. Given its recent messages, write a 1 to 2 line summary of what is going on.

Rules:
- At most 2 short sentences
- Describe topics, not individual messages
- Use present tense, like "Planning the offsite"
- Do not name people
- When activity is sparse say "Quiet recently"
- Reply with the summary text only`

func summaryUserPrompt(snips []Snippet) string {
	lines := make([]string, len(snips))
	for i, s := range snips {
		lines[i] = fmt.Sprintf("[%s] %s: %s", s.RelativeTime, s.SenderFirstName, s.Text)
	}
	return "Recent messages:\n" + strings.Join(lines, "\n")
}

const categorizeSystemPrompt = `You sort Telegram direct messages into buckets so the user can prioritize.

Categories:
- Needs Reply: a direct question, request or conversation waiting on the user
- FYI: links, updates or information with nothing to answer
- Resolved: the conversation looks finished (thanks, confirmations, goodbyes)
- Business: work, professional or transactional messages

For each message, identified by its index, return:
- index: the 0-based index
- category: one of "Needs Reply", "FYI", "Resolved", "Business"
- reason: one short sentence

Respond with a JSON array only:
[
  {"index": 0, "category": "Needs Reply", "reason": "Asks when the meeting starts"}
]`

func categorizeUserPrompt(snips []Snippet) string {
	lines := make([]string, len(snips))
	for i, s := range snips {
		lines[i] = fmt.Sprintf("[%d] [%s] %s: %s", i, s.ChatName, s.SenderFirstName, s.Text)
	}
	return "Categorize these direct messages:\n" + strings.Join(lines, "\n")
}
