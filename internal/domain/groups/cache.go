package groups

import "time"

// Cache holds display snapshots of shared profiles. It is never consulted by
// the merge or link paths.
type Cache interface {
	GetByUserID(userID string) (*Snapshot, bool)
	SetByUserID(userID string, snapshot *Snapshot, ttl time.Duration)
	Clear()
}

type noopCache struct{}

func (noopCache) GetByUserID(string) (*Snapshot, bool) {
	return nil, false
}

func (noopCache) SetByUserID(string, *Snapshot, time.Duration) {}

func (noopCache) Clear() {}
