// Package gate filters the inbound event firehose down to the trickle of
// events that deserve an automated spoken response.
package gate

import (
	"context"
	"log/slog"
	"math/rand"
	"strconv"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/vanhieptech/sigma-sub000/internal/dedup"
	"github.com/vanhieptech/sigma-sub000/internal/domain"
	"github.com/vanhieptech/sigma-sub000/internal/metrics"
)

// DedupWindowSeconds is the width of one dedup time bucket. Events of the
// same kind from the same user inside one bucket produce a single response.
const DedupWindowSeconds = 30

// Gate decides per event whether to produce a response, and suppresses
// duplicates. One Gate instance serves one session.
type Gate struct {
	dedup  dedup.Store
	clock  clockwork.Clock
	random func() float64
	log    *slog.Logger

	// cfg is updated from the session's control channel while Decide runs
	// on the event pump goroutine.
	mu  sync.RWMutex
	cfg domain.ResponseConfig
}

// New creates a gate. random may be nil, in which case math/rand is used;
// tests inject a deterministic source.
func New(cfg domain.ResponseConfig, store dedup.Store, clock clockwork.Clock, random func() float64, log *slog.Logger) *Gate {
	if random == nil {
		random = rand.Float64
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gate{
		dedup:  store,
		clock:  clock,
		random: random,
		log:    log,
		cfg:    cfg,
	}
}

// Config returns the current policy.
func (g *Gate) Config() domain.ResponseConfig {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg
}

// SetConfig replaces the policy.
func (g *Gate) SetConfig(cfg domain.ResponseConfig) {
	g.mu.Lock()
	g.cfg = cfg
	g.mu.Unlock()
}

// Update merges a partial policy change.
func (g *Gate) Update(patch domain.ResponseConfigPatch) domain.ResponseConfig {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg.Apply(patch)
	return g.cfg
}

// Key builds the dedup composite for an event: kind, user and the 30s
// arrival-time bucket.
func (g *Gate) Key(ev domain.Event) string {
	bucket := g.clock.Now().Unix() / DedupWindowSeconds
	return string(ev.Kind) + ":" + ev.UserID + ":" + strconv.FormatInt(bucket, 10)
}

// Decide evaluates one event against the policy. It returns the queued
// request and true when the event should produce a response. The order is
// fixed: master flag, dedup presence, per-kind rule, dedup claim.
func (g *Gate) Decide(ctx context.Context, ev domain.Event) (domain.QueuedRequest, bool) {
	cfg := g.Config()

	if !cfg.Enabled {
		metrics.GateDecisions.WithLabelValues(string(ev.Kind), "disabled").Inc()
		return domain.QueuedRequest{}, false
	}

	key := g.Key(ev)
	seen, err := g.dedup.Seen(ctx, key)
	if err != nil {
		g.log.Error("Dedup lookup failed, dropping event", "key", key, "error", err)
		return domain.QueuedRequest{}, false
	}
	if seen {
		metrics.GateDecisions.WithLabelValues(string(ev.Kind), "deduplicated").Inc()
		return domain.QueuedRequest{}, false
	}

	req, ok := g.evaluate(cfg, ev)
	if !ok {
		metrics.GateDecisions.WithLabelValues(string(ev.Kind), "filtered").Inc()
		return domain.QueuedRequest{}, false
	}

	claimed, err := g.dedup.Claim(ctx, key)
	if err != nil {
		g.log.Error("Dedup claim failed, dropping event", "key", key, "error", err)
		return domain.QueuedRequest{}, false
	}
	if !claimed {
		metrics.GateDecisions.WithLabelValues(string(ev.Kind), "deduplicated").Inc()
		return domain.QueuedRequest{}, false
	}

	metrics.GateDecisions.WithLabelValues(string(ev.Kind), "accepted").Inc()
	return req, true
}

// evaluate applies the per-kind rule and builds the template data.
func (g *Gate) evaluate(cfg domain.ResponseConfig, ev domain.Event) (domain.QueuedRequest, bool) {
	user := domain.UserData{UserID: ev.UserID, UniqueID: ev.UniqueID, Nickname: ev.Nickname}
	data := map[string]string{"nickname": ev.Nickname}

	var kind domain.ResponseKind
	switch ev.Kind {
	case domain.EventComment:
		if !cfg.RespondToComments || !IsInquiry(ev.Comment) {
			return domain.QueuedRequest{}, false
		}
		kind = domain.RespondQuestion
		data["comment"] = ev.Comment

	case domain.EventGift:
		if !cfg.RespondToGifts || ev.DiamondCount < cfg.GiftThreshold {
			return domain.QueuedRequest{}, false
		}
		kind = domain.RespondGift
		data["giftName"] = ev.GiftName
		data["repeatCount"] = strconv.Itoa(ev.RepeatCount)
		data["diamondCount"] = strconv.Itoa(ev.DiamondCount)

	case domain.EventLike:
		if !cfg.RespondToLikes || ev.LikeCount < cfg.LikeThreshold {
			return domain.QueuedRequest{}, false
		}
		kind = domain.RespondLike
		data["likeCount"] = strconv.Itoa(ev.LikeCount)
		data["totalLikeCount"] = strconv.Itoa(ev.TotalLikeCount)

	case domain.EventFollow:
		if !cfg.RespondToFollows {
			return domain.QueuedRequest{}, false
		}
		kind = domain.RespondFollow

	case domain.EventShare:
		if !cfg.RespondToShares {
			return domain.QueuedRequest{}, false
		}
		kind = domain.RespondShare

	case domain.EventPurchase:
		if !cfg.RespondToPurchases {
			return domain.QueuedRequest{}, false
		}
		kind = domain.RespondPurchase

	case domain.EventJoin:
		if !cfg.RespondToJoins {
			return domain.QueuedRequest{}, false
		}
		// random() is in [0,1): rate 0 never accepts, rate 100 always does.
		if g.random()*100 >= cfg.JoinResponseRate {
			return domain.QueuedRequest{}, false
		}
		kind = domain.RespondJoin

	default:
		return domain.QueuedRequest{}, false
	}

	return domain.QueuedRequest{
		Kind:       kind,
		User:       user,
		Data:       data,
		EnqueuedAt: g.clock.Now(),
	}, true
}
