package domain

// ResponseConfig is the per-session policy deciding which events produce an
// automated spoken response. It is mutable at any time by the owning session.
type ResponseConfig struct {
	Enabled bool `json:"enableAIResponses"`

	RespondToComments  bool `json:"respondToComments"`
	RespondToGifts     bool `json:"respondToGifts"`
	RespondToLikes     bool `json:"respondToLikes"`
	RespondToFollows   bool `json:"respondToFollows"`
	RespondToShares    bool `json:"respondToShares"`
	RespondToJoins     bool `json:"respondToJoins"`
	RespondToPurchases bool `json:"respondToPurchases"`

	// GiftThreshold is the minimum diamond value for a gift to qualify.
	GiftThreshold int `json:"giftThreshold"`
	// LikeThreshold is the minimum like count in one event to qualify.
	LikeThreshold int `json:"likeThreshold"`
	// JoinResponseRate is the percentage (0-100) of joins that get a response.
	JoinResponseRate float64 `json:"joinResponseRate"`
}

// DefaultResponseConfig returns the policy new sessions start with.
func DefaultResponseConfig() ResponseConfig {
	return ResponseConfig{
		Enabled:           false,
		RespondToComments: true,
		RespondToGifts:    true,
		RespondToFollows:  true,
		RespondToShares:   true,
		RespondToPurchases: true,
		GiftThreshold:     10,
		LikeThreshold:     50,
		JoinResponseRate:  10,
	}
}

// ResponseConfigPatch is a partial update to a ResponseConfig. Nil fields are
// left untouched, so clients can update a single knob at a time.
type ResponseConfigPatch struct {
	Enabled *bool `json:"enableAIResponses,omitempty"`

	RespondToComments  *bool `json:"respondToComments,omitempty"`
	RespondToGifts     *bool `json:"respondToGifts,omitempty"`
	RespondToLikes     *bool `json:"respondToLikes,omitempty"`
	RespondToFollows   *bool `json:"respondToFollows,omitempty"`
	RespondToShares    *bool `json:"respondToShares,omitempty"`
	RespondToJoins     *bool `json:"respondToJoins,omitempty"`
	RespondToPurchases *bool `json:"respondToPurchases,omitempty"`

	GiftThreshold    *int     `json:"giftThreshold,omitempty"`
	LikeThreshold    *int     `json:"likeThreshold,omitempty"`
	JoinResponseRate *float64 `json:"joinResponseRate,omitempty"`
}

// Apply merges the patch into the config.
func (c *ResponseConfig) Apply(p ResponseConfigPatch) {
	if p.Enabled != nil {
		c.Enabled = *p.Enabled
	}
	if p.RespondToComments != nil {
		c.RespondToComments = *p.RespondToComments
	}
	if p.RespondToGifts != nil {
		c.RespondToGifts = *p.RespondToGifts
	}
	if p.RespondToLikes != nil {
		c.RespondToLikes = *p.RespondToLikes
	}
	if p.RespondToFollows != nil {
		c.RespondToFollows = *p.RespondToFollows
	}
	if p.RespondToShares != nil {
		c.RespondToShares = *p.RespondToShares
	}
	if p.RespondToJoins != nil {
		c.RespondToJoins = *p.RespondToJoins
	}
	if p.RespondToPurchases != nil {
		c.RespondToPurchases = *p.RespondToPurchases
	}
	if p.GiftThreshold != nil {
		c.GiftThreshold = *p.GiftThreshold
	}
	if p.LikeThreshold != nil {
		c.LikeThreshold = *p.LikeThreshold
	}
	if p.JoinResponseRate != nil {
		c.JoinResponseRate = *p.JoinResponseRate
	}
}
