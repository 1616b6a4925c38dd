package chess

import (
    "context"
    "fmt"
    "sort"
    "strings"
    "sync"

    "github.com/park285/chess-render/internal/domain"
)

// memrepo is an in-memory ledger used when no DATABASE_URL is configured.
type memrepo struct {
    mu sync.RWMutex

    nextID int64

    records []*domain.RenderRecord
    byRun   map[string][]*domain.RenderRecord // runID -> records in insert order
}

func NewMemoryRepository() Repository {
    return &memrepo{
        byRun: make(map[string][]*domain.RenderRecord),
    }
}

func (m *memrepo) InsertRecord(ctx context.Context, rec *domain.RenderRecord) (int64, error) {
    if rec == nil {
        return 0, fmt.Errorf("nil render record")
    }

    m.mu.Lock()
    defer m.mu.Unlock()

    m.nextID++
    copy := *rec
    copy.ID = m.nextID
    copy.Outputs = append([]string(nil), rec.Outputs...)

    m.records = append(m.records, &copy)
    key := strings.TrimSpace(rec.RunID)
    m.byRun[key] = append(m.byRun[key], &copy)
    return copy.ID, nil
}

func (m *memrepo) RecordsByRun(ctx context.Context, runID string) ([]*domain.RenderRecord, error) {
    m.mu.RLock()
    defer m.mu.RUnlock()
    list := m.byRun[strings.TrimSpace(runID)]
    out := make([]*domain.RenderRecord, 0, len(list))
    for _, r := range list {
        copy := *r
        out = append(out, &copy)
    }
    return out, nil
}

func (m *memrepo) RecentRecords(ctx context.Context, limit int) ([]*domain.RenderRecord, error) {
    m.mu.RLock()
    items := append([]*domain.RenderRecord(nil), m.records...)
    m.mu.RUnlock()

    // Sort by CreatedAt desc (fallback to ID desc)
    sort.Slice(items, func(i, j int) bool {
        if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
            return items[i].CreatedAt.After(items[j].CreatedAt)
        }
        return items[i].ID > items[j].ID
    })
    if limit > 0 && len(items) > limit {
        items = items[:limit]
    }
    out := make([]*domain.RenderRecord, 0, len(items))
    for _, r := range items {
        copy := *r
        out = append(out, &copy)
    }
    return out, nil
}
