// Package lock provides a per-pull-request advisory lock on top of the
// platform's property store. It serializes concurrent pipeline runs against
// the same pull request: whoever writes the lock property first wins, late
// arrivals skip their run. Lock records carry an acquisition timestamp so a
// crashed run's lock expires instead of blocking the pull request forever.
package lock

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/spellgate/spellgate/internal/azuredevops"
)

// PropertyKey is the pull-request property holding the current lock record.
const PropertyKey = "spellgate.lock"

// DefaultTTL bounds how long a foreign lock is honored. A pipeline run far
// exceeding this is assumed dead.
const DefaultTTL = 30 * time.Minute

// record is the serialized lock payload.
type record struct {
	Owner      string    `json:"owner"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

// PRLock is the advisory lock of one pull request.
type PRLock struct {
	properties azuredevops.PropertiesService
	prID       int
	runID      string
	ttl        time.Duration
	logger     hclog.Logger

	now  func() time.Time
	held bool
}

// Acquisition is the result of an acquire attempt.
type Acquisition struct {
	// Acquired is true when this run owns the lock.
	Acquired bool
	// OwnerID is the run id holding the lock when acquisition failed.
	OwnerID string
}

// New builds a lock bound to one pull request and one run id.
func New(properties azuredevops.PropertiesService, prID int, runID string, logger hclog.Logger) *PRLock {
	return &PRLock{
		properties: properties,
		prID:       prID,
		runID:      runID,
		ttl:        DefaultTTL,
		logger:     logger.Named("lock"),
		now:        time.Now,
	}
}

// Acquire attempts to take the lock. Re-entry is allowed: a lock already
// owned by this run id, as left behind by a crashed earlier attempt of the
// same run, counts as acquired. A foreign lock older than the TTL is treated
// as absent.
func (l *PRLock) Acquire() (Acquisition, error) {
	current, blocked, err := l.read()
	if err != nil {
		return Acquisition{}, fmt.Errorf("failed to inspect pull request lock: %w", err)
	}
	if blocked {
		l.logger.Info("pull request is locked by another run", "owner", current.Owner)
		return Acquisition{OwnerID: current.Owner}, nil
	}

	payload, err := json.Marshal(record{Owner: l.runID, AcquiredAt: l.now()})
	if err != nil {
		return Acquisition{}, err
	}
	if err := l.properties.Set(l.prID, PropertyKey, string(payload)); err != nil {
		return Acquisition{}, fmt.Errorf("failed to take pull request lock: %w", err)
	}

	// Read back after writing. Two runs can race past the check above; the
	// property store keeps a single value, so the surviving owner decides.
	current, blocked, err = l.read()
	if err != nil {
		return Acquisition{}, fmt.Errorf("failed to confirm pull request lock: %w", err)
	}
	if blocked || current.Owner != l.runID {
		l.logger.Info("lost pull request lock race", "owner", current.Owner)
		return Acquisition{OwnerID: current.Owner}, nil
	}

	l.held = true
	l.logger.Debug("acquired pull request lock", "run", l.runID)
	return Acquisition{Acquired: true}, nil
}

// read returns the current lock record and whether it blocks this run.
// Missing, expired, malformed, and own records do not block.
func (l *PRLock) read() (record, bool, error) {
	raw, exists, err := l.properties.Get(l.prID, PropertyKey)
	if err != nil {
		return record{}, false, err
	}
	if !exists {
		return record{}, false, nil
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.Owner == "" {
		// A record this code did not write. Claiming it is the only way the
		// pull request ever unblocks.
		l.logger.Warn("found malformed lock record, treating as stale", "value", raw)
		return record{}, false, nil
	}

	if rec.Owner == l.runID {
		return rec, false, nil
	}
	if !rec.AcquiredAt.IsZero() && l.now().Sub(rec.AcquiredAt) > l.ttl {
		l.logger.Warn("found expired lock record, treating as stale",
			"owner", rec.Owner, "acquiredAt", rec.AcquiredAt)
		return rec, false, nil
	}
	return rec, true, nil
}

// Release drops the lock. Best effort: a failed delete only means the lock
// lingers until it expires or the same run id re-enters.
func (l *PRLock) Release() {
	if !l.held {
		return
	}
	if err := l.properties.Delete(l.prID, PropertyKey); err != nil {
		l.logger.Error("failed to release pull request lock", "run", l.runID, "error", err)
		return
	}
	l.held = false
	l.logger.Debug("released pull request lock", "run", l.runID)
}
