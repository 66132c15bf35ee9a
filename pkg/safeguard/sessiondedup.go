package safeguard

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Default session-dedup tuning.
const (
	DefaultDedupCooldown    = 5 * time.Minute
	DefaultMaxDedupSessions = 10_000
)

// ResultIdentity is the identity key used to detect a previously-returned
// result: (path, start_line, end_line) when positional information is
// available, otherwise the (path, sha(snippet)) fallback.
type ResultIdentity struct {
	Path      string
	StartLine int
	EndLine   int
	Snippet   string
}

// key computes the dedup identity string for r.
func (r ResultIdentity) key() string {
	if r.StartLine != 0 || r.EndLine != 0 {
		return fmt.Sprintf("%s:%d:%d", r.Path, r.StartLine, r.EndLine)
	}
	sum := sha256.Sum256([]byte(r.Snippet))
	return r.Path + ":" + hex.EncodeToString(sum[:8])
}

// sessionSeen is the per-session set of previously-returned identity keys
// with their last-seen time, for cooldown-window suppression.
type sessionSeen struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// SessionDedup suppresses results already returned to a session within a
// cooldown window. Session tracking itself is bounded by an LRU (backed by
// ristretto) over maxSessions.
//
// SessionDedup is safe for concurrent use.
type SessionDedup struct {
	cooldown    time.Duration
	maxSessions int

	mu       sync.Mutex
	sessions *ristretto.Cache // sessionID -> *sessionSeen
	order    []string         // MRU-ordered session IDs, most-recent last
}

// NewSessionDedup creates a [SessionDedup]. Zero cooldown/maxSessions fall
// back to [DefaultDedupCooldown] / [DefaultMaxDedupSessions].
func NewSessionDedup(cooldown time.Duration, maxSessions int) (*SessionDedup, error) {
	if cooldown <= 0 {
		cooldown = DefaultDedupCooldown
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxDedupSessions
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(maxSessions) * 10,
		MaxCost:     int64(maxSessions),
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &SessionDedup{cooldown: cooldown, sessions: cache, maxSessions: maxSessions}, nil
}

// Filter removes from results any [ResultIdentity] seen for session within
// the cooldown window, and records the remainder as seen. Touching session
// moves it to most-recently-used.
func (d *SessionDedup) Filter(session string, results []ResultIdentity) []ResultIdentity {
	ss := d.sessionFor(session)

	ss.mu.Lock()
	defer ss.mu.Unlock()

	now := time.Now()
	kept := make([]ResultIdentity, 0, len(results))
	for _, r := range results {
		k := r.key()
		if seenAt, ok := ss.seen[k]; ok && now.Sub(seenAt) < d.cooldown {
			continue
		}
		ss.seen[k] = now
		kept = append(kept, r)
	}
	return kept
}

// sessionFor returns session's tracking struct, creating it (and evicting
// the LRU session if over capacity) on first use.
func (d *SessionDedup) sessionFor(session string) *sessionSeen {
	d.mu.Lock()
	defer d.mu.Unlock()

	if v, ok := d.sessions.Get(session); ok {
		d.touchLocked(session)
		return v.(*sessionSeen)
	}

	ss := &sessionSeen{seen: map[string]time.Time{}}
	d.sessions.Set(session, ss, 1)
	d.sessions.Wait()
	d.touchLocked(session)

	if len(d.order) > d.maxSessions {
		evict := d.order[0]
		d.order = d.order[1:]
		d.sessions.Del(evict)
	}
	return ss
}

// touchLocked moves session to the MRU end of d.order. Must be called with
// d.mu held.
func (d *SessionDedup) touchLocked(session string) {
	for i, id := range d.order {
		if id == session {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	d.order = append(d.order, session)
}
