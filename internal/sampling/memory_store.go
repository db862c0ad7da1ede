package sampling

import (
	"context"
	"sort"
	"sync"

	"github.com/hmarstrand/ledgersample/internal/pagination"
)

// MemoryStore keeps plans in memory. It backs the engine when no database
// is configured and the test suites.
type MemoryStore struct {
	mu     sync.RWMutex
	plans  map[string]*Plan
	items  map[string][]SampleItem
	audits []*AuditEntry
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plans: make(map[string]*Plan),
		items: make(map[string][]SampleItem),
	}
}

func (m *MemoryStore) SavePlan(ctx context.Context, plan *Plan, items []SampleItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *plan
	m.plans[plan.ID] = &copied
	m.items[plan.ID] = append([]SampleItem(nil), items...)
	return nil
}

func (m *MemoryStore) GetPlan(ctx context.Context, id string) (*Plan, []SampleItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plan, ok := m.plans[id]
	if !ok {
		return nil, nil, ErrPlanNotFound
	}
	copied := *plan
	return &copied, append([]SampleItem(nil), m.items[id]...), nil
}

func (m *MemoryStore) ListPlans(ctx context.Context, clientID string, limit int, cursor *pagination.Cursor) ([]*Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Plan
	for _, plan := range m.plans {
		if plan.ClientID != clientID {
			continue
		}
		copied := *plan
		out = append(out, &copied)
	}
	// Newest first; ties broken by id so pagination is stable.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if cursor != nil {
		filtered := out[:0]
		for _, plan := range out {
			if plan.CreatedAt.Before(cursor.CreatedAt) ||
				(plan.CreatedAt.Equal(cursor.CreatedAt) && plan.ID < cursor.ID) {
				filtered = append(filtered, plan)
			}
		}
		out = filtered
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) WriteAuditLog(ctx context.Context, entry *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *entry
	m.audits = append(m.audits, &copied)
	return nil
}

// AuditEntries returns a snapshot of the audit log, oldest first.
func (m *MemoryStore) AuditEntries() []*AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*AuditEntry(nil), m.audits...)
}
