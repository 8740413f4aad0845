package domain

// VoiceParams selects the synthesis voice for a personality.
type VoiceParams struct {
	VoiceID string  `json:"voiceId"`
	Model   string  `json:"model"`
	Speed   float64 `json:"speed"`
}

// Personality bundles the prompt, voice and per-kind response templates a
// session speaks with. Sessions without a registered personality fall back
// to the built-in default.
type Personality struct {
	Name         string                  `json:"name"`
	SystemPrompt string                  `json:"systemPrompt"`
	Voice        VoiceParams             `json:"voice"`
	Templates    map[ResponseKind]string `json:"templates"`
}

// Product is one catalog entry. The active catalog is folded into the
// completion system prompt so commerce questions can be answered from it.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	Stock       int     `json:"stock"`
	Description string  `json:"description"`
}
