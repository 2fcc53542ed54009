package inmemory

import (
	"sync"
	"time"

	groupsdomain "roommates-app-go/internal/domain/groups"
)

// GroupsCache is a TTL cache of shared-profile snapshots keyed by user id.
type GroupsCache struct {
	mu    sync.RWMutex
	items map[string]snapshotItem
}

type snapshotItem struct {
	value     groupsdomain.Snapshot
	expiresAt time.Time
}

func NewGroupsCache() *GroupsCache {
	return &GroupsCache{
		items: make(map[string]snapshotItem),
	}
}

func (c *GroupsCache) GetByUserID(userID string) (*groupsdomain.Snapshot, bool) {
	now := time.Now()

	c.mu.RLock()
	item, ok := c.items[userID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !item.expiresAt.After(now) {
		c.mu.Lock()
		item, ok = c.items[userID]
		if ok && !item.expiresAt.After(now) {
			delete(c.items, userID)
		}
		c.mu.Unlock()
		return nil, false
	}

	value := cloneSnapshot(item.value)
	return &value, true
}

func (c *GroupsCache) SetByUserID(userID string, snapshot *groupsdomain.Snapshot, ttl time.Duration) {
	if snapshot == nil || ttl <= 0 {
		c.DeleteByUserID(userID)
		return
	}

	c.mu.Lock()
	c.items[userID] = snapshotItem{
		value:     cloneSnapshot(*snapshot),
		expiresAt: time.Now().Add(ttl),
	}
	c.mu.Unlock()
}

func (c *GroupsCache) DeleteByUserID(userID string) {
	c.mu.Lock()
	delete(c.items, userID)
	c.mu.Unlock()
}

func (c *GroupsCache) Clear() {
	c.mu.Lock()
	c.items = make(map[string]snapshotItem)
	c.mu.Unlock()
}

func cloneSnapshot(snapshot groupsdomain.Snapshot) groupsdomain.Snapshot {
	members := make([]string, len(snapshot.Members))
	copy(members, snapshot.Members)
	return groupsdomain.Snapshot{GroupID: snapshot.GroupID, Members: members}
}
