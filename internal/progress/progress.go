// Package progress tracks the progress of running inspections so clients can
// poll it with a session token.
package progress

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Stage names an inspection step.
type Stage string

const (
	StageReceived  Stage = "received"
	StagePrivacy   Stage = "privacy"
	StageInference Stage = "inference"
	StageStored    Stage = "stored"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

// Percent returns the milestone reported for a stage.
func (s Stage) Percent() int {
	switch s {
	case StageReceived:
		return 10
	case StagePrivacy:
		return 30
	case StageInference:
		return 60
	case StageStored:
		return 90
	case StageDone, StageFailed:
		return 100
	default:
		return 0
	}
}

const (
	DefaultTTL   = 2 * time.Minute
	DefaultGrace = 5 * time.Second
)

// Progress is the state reported for a token.
type Progress struct {
	Token     string    `json:"token"`
	Percent   int       `json:"percent"`
	Stage     Stage     `json:"stage"`
	Message   string    `json:"message,omitempty"`
	Done      bool      `json:"done"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracker stores progress entries with a TTL. Finished entries are kept for a
// short grace period so the last poll still sees them.
type Tracker struct {
	mu      sync.Mutex
	entries *cache.Cache
	grace   time.Duration
}

// NewTracker creates a tracker. Zero durations select the defaults.
func NewTracker(ttl, grace time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Tracker{
		entries: cache.New(ttl, ttl),
		grace:   grace,
	}
}

// NewToken returns a fresh session token.
func NewToken() string {
	return uuid.NewString()
}

// Update records progress for token. Percent never decreases and is clamped to
// [0,100]. Empty tokens are ignored.
func (t *Tracker) Update(token string, percent int, stage Stage) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	percent = min(max(percent, 0), 100)

	t.mu.Lock()
	defer t.mu.Unlock()

	p := Progress{Token: token, Percent: percent, Stage: stage, UpdatedAt: time.Now()}
	if prev, ok := t.Get(token); ok {
		if prev.Done {
			return
		}
		p.Percent = max(prev.Percent, percent)
	}
	t.entries.Set(token, p, cache.DefaultExpiration)
}

// Advance records the milestone of a stage.
func (t *Tracker) Advance(token string, stage Stage) {
	t.Update(token, stage.Percent(), stage)
}

// Get returns the progress for token.
func (t *Tracker) Get(token string) (Progress, bool) {
	v, ok := t.entries.Get(token)
	if !ok {
		return Progress{}, false
	}
	p, ok := v.(Progress)
	return p, ok
}

// Complete marks token finished and discards it after the grace period.
func (t *Tracker) Complete(token string) {
	t.finish(token, StageDone, "")
}

// Fail marks token finished with a message and discards it after the grace period.
func (t *Tracker) Fail(token, message string) {
	t.finish(token, StageFailed, message)
}

func (t *Tracker) finish(token string, stage Stage, message string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries.Set(token, Progress{
		Token:     token,
		Percent:   100,
		Stage:     stage,
		Message:   message,
		Done:      true,
		UpdatedAt: time.Now(),
	}, t.grace)
}

// Len returns the number of tracked tokens, including expired entries not yet
// cleaned up.
func (t *Tracker) Len() int {
	return t.entries.ItemCount()
}
