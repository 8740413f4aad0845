package respond

import (
	"regexp"
	"strings"

	"github.com/vanhieptech/sigma-sub000/internal/domain"
)

var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// RenderTemplate substitutes {{name}} placeholders from data. A placeholder
// with no matching data field is left intact, unreplaced.
func RenderTemplate(tmpl string, data map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := strings.Trim(match, "{}")
		if value, ok := data[name]; ok {
			return value
		}
		return match
	})
}

// DefaultPersonality is the built-in fallback used when a session has not
// registered one of its own.
func DefaultPersonality() domain.Personality {
	return domain.Personality{
		Name: "Host Assistant",
		SystemPrompt: "You are a friendly co-host on a live shopping stream. " +
			"Answer viewer questions briefly and warmly, in one or two spoken " +
			"sentences. If you do not know the answer, say so honestly.",
		Voice: domain.VoiceParams{
			VoiceID: "alloy",
			Model:   "tts-1",
			Speed:   1.0,
		},
		Templates: map[domain.ResponseKind]string{
			domain.RespondQuestion: "{{answer}}",
			domain.RespondGift:     "Wow, thank you {{nickname}} for the {{giftName}}! You're amazing!",
			domain.RespondLike:     "Thanks for all the likes, {{nickname}}!",
			domain.RespondFollow:   "Welcome to the family, {{nickname}}! Thanks for the follow!",
			domain.RespondShare:    "Thank you for sharing the stream, {{nickname}}!",
			domain.RespondJoin:     "Hey {{nickname}}, welcome in! Glad you're here.",
			domain.RespondPurchase: "Big thanks to {{nickname}} for the order! Enjoy!",
		},
	}
}

// apologyLine is spoken when the completion service fails on a question.
const apologyLine = "Sorry, I missed that one. Could you ask again in a moment?"
