package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"golang.org/x/sync/singleflight"
)

type workflowCacheEntry struct {
	workflow  *model.Workflow
	expiresAt time.Time
}

// workflowCache holds the active default workflow per organization. A nil workflow
// is cached too, meaning the organization has none. Concurrent misses for one
// organization share a single load.
type workflowCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[model.OrganizationID]workflowCacheEntry
	gen     map[model.OrganizationID]uint64
	group   singleflight.Group
	now     func() time.Time
}

func newWorkflowCache(ttl time.Duration) *workflowCache {
	return &workflowCache{
		ttl:     ttl,
		entries: make(map[model.OrganizationID]workflowCacheEntry),
		gen:     make(map[model.OrganizationID]uint64),
		now:     time.Now,
	}
}

func (c *workflowCache) get(ctx context.Context, orgID model.OrganizationID, load func(ctx context.Context) (*model.Workflow, error)) (*model.Workflow, error) {
	if c.ttl > 0 {
		c.mu.Lock()
		entry, ok := c.entries[orgID]
		c.mu.Unlock()
		if ok && c.now().Before(entry.expiresAt) {
			return copyWorkflow(entry.workflow), nil
		}
	}

	v, err, _ := c.group.Do(string(orgID), func() (any, error) {
		c.mu.Lock()
		gen := c.gen[orgID]
		c.mu.Unlock()

		wf, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if c.ttl > 0 {
			c.mu.Lock()
			// A write during the load makes the result stale
			if c.gen[orgID] == gen {
				c.entries[orgID] = workflowCacheEntry{workflow: wf, expiresAt: c.now().Add(c.ttl)}
			}
			c.mu.Unlock()
		}
		return wf, nil
	})
	if err != nil {
		return nil, err
	}

	wf, _ := v.(*model.Workflow)
	return copyWorkflow(wf), nil
}

func (c *workflowCache) invalidate(orgID model.OrganizationID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, orgID)
	c.gen[orgID]++
	c.group.Forget(string(orgID))
}

func copyWorkflow(wf *model.Workflow) *model.Workflow {
	if wf == nil {
		return nil
	}
	return wf.Copy()
}
