package domain

import "time"

// EventKind identifies a viewer-interaction event from the upstream platform.
type EventKind string

const (
	EventComment     EventKind = "comment"
	EventGift        EventKind = "gift"
	EventLike        EventKind = "like"
	EventFollow      EventKind = "follow"
	EventShare       EventKind = "share"
	EventJoin        EventKind = "join"
	EventPurchase    EventKind = "purchase"
	EventViewerCount EventKind = "viewerCount"
)

// Event is a single viewer-interaction notification. The struct is flat:
// only the fields matching the Kind are populated, the rest stay zero.
// Events are ephemeral and are discarded after gating.
type Event struct {
	Kind              EventKind `json:"kind"`
	UserID            string    `json:"userId,omitempty"`
	UniqueID          string    `json:"uniqueId,omitempty"`
	Nickname          string    `json:"nickname,omitempty"`
	ProfilePictureURL string    `json:"profilePictureUrl,omitempty"`

	// comment
	Comment string `json:"comment,omitempty"`

	// gift
	GiftName     string `json:"giftName,omitempty"`
	RepeatCount  int    `json:"repeatCount,omitempty"`
	DiamondCount int    `json:"diamondCount,omitempty"`

	// like
	LikeCount      int `json:"likeCount,omitempty"`
	TotalLikeCount int `json:"totalLikeCount,omitempty"`

	// join (a.k.a. "member" on the wire)
	JoinType int `json:"joinType,omitempty"`

	// viewerCount
	ViewerCount int `json:"viewerCount,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// ResponseKind labels the generated response category. It matches the event
// kind except for inquiry comments, which become "question".
type ResponseKind string

const (
	RespondQuestion ResponseKind = "question"
	RespondGift     ResponseKind = "gift"
	RespondLike     ResponseKind = "like"
	RespondFollow   ResponseKind = "follow"
	RespondShare    ResponseKind = "share"
	RespondJoin     ResponseKind = "join"
	RespondPurchase ResponseKind = "purchase"
)

// UserData identifies the viewer a response is addressed to.
type UserData struct {
	UserID   string `json:"userId"`
	UniqueID string `json:"uniqueId"`
	Nickname string `json:"nickname"`
}

// QueuedRequest is one response-worthy event accepted by the gate, waiting
// for its turn in the session's response queue.
type QueuedRequest struct {
	Kind       ResponseKind
	User       UserData
	Data       map[string]string
	EnqueuedAt time.Time
}

// GeneratedResponse is the output of the generation pipeline.
type GeneratedResponse struct {
	Text     string
	AudioURL string
	Duration time.Duration
}
