package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/benvon/soonish/internal/models"
)

const (
	// Greeting opens every conversation
	Greeting = "こんにちは！どんな予定を作りたいですか？😊"
	// RejectAcknowledgement is appended when a suggestion is rejected
	RejectAcknowledgement = "わかりました。他に変更したいことはありますか？"
)

const instructionBody = `You are the assistant of "Soonish", an app for loosely timed plans.
Extract what is needed to create a plan from the user's messages and ask only for what is missing.

Required information:
1. title (required): a short summary of the plan, reusing the user's own words.
2. time (required): one of
   - period: spring, summer, autumn, winter, thisWeek, thisMonth, nextMonth, thisYear, nextYear
   - deadline: oneMonth, threeMonths, sixMonths, oneYear
   - anytime: no particular time
   When the user already mentioned a time ("in winter", "around spring"), use it. Do not ask again.
3. memo (optional): extra details not already in the title, otherwise null.

Rules:
- Never ask for exact dates. This app manages plans that are only roughly timed.
- As soon as both title and time are known, reply with a suggestion. No extra confirmation.
- Use "question" only when title or time is unknown.
- Use "confirmation" to acknowledge an answer and lead to the next question.
- Use "suggestion" only when title and time are both known, and always include the plan.
- Reply in the user's language with a friendly tone.

Respond with a single JSON object and nothing else:
{"type":"question|confirmation|suggestion","text":"<message to the user>","plan":{"title":"<title>","time_mode":{"kind":"period|deadline|anytime","preset":"<preset or empty for anytime>"},"memo":null}}
Omit "plan" unless type is "suggestion".`

// SystemInstruction returns the fixed extraction instruction with the
// current date appended so relative expressions can be interpreted.
func SystemInstruction(now time.Time) string {
	var b strings.Builder
	b.WriteString(instructionBody)
	b.WriteString("\n\nTime context:")
	b.WriteString(fmt.Sprintf("\n- Current date and time: %s", now.Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("\n- Weekday: %s", now.Weekday()))
	return b.String()
}

// BuildPrompt renders the transcript for the extraction call. The last user
// message is repeated as the new message to answer.
func BuildPrompt(transcript []models.ChatMessage) string {
	lines := make([]string, 0, len(transcript))
	latest := ""
	for _, msg := range transcript {
		prefix := "ChatBot (you):"
		if msg.Role == models.ChatRoleUser {
			prefix = "User:"
			latest = msg.Content
		}
		lines = append(lines, prefix+" "+msg.Content)
	}

	var b strings.Builder
	b.WriteString("Previous messages:\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\nRespond to this new user message as best as you can.")
	b.WriteString("\nUse the previous messages as context if the new message is unclear.")
	b.WriteString("\n\nNew user message: ")
	b.WriteString(latest)
	return b.String()
}
