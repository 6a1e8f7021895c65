package matchstore

import (
	"context"
	"sync"
	"time"

	"TripleTriad/internal/utils"
)

type memRepo struct {
	mu      sync.Mutex
	records map[string]*Record
	subs    map[string]map[int]chan *Record // id -> subscribers
	nextSub int
	now     func() time.Time
}

// NewMemoryRepo keeps records in process; used by tests and single-node dev runs.
func NewMemoryRepo() Store {
	return &memRepo{
		records: make(map[string]*Record),
		subs:    make(map[string]map[int]chan *Record),
		now:     time.Now,
	}
}

func (m *memRepo) Create(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.ID]; ok {
		return ErrExists
	}
	now := m.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	rec.Version = 1
	m.records[rec.ID] = rec.Clone()
	return nil
}

func (m *memRepo) Load(ctx context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *memRepo) Save(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.records[rec.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != rec.Version {
		return ErrVersionConflict
	}
	rec.Version++
	rec.UpdatedAt = m.now()
	m.records[rec.ID] = rec.Clone()

	for _, ch := range m.subs[rec.ID] {
		select {
		case ch <- rec.Clone():
		default:
			// 订阅者太慢：丢弃。结束后的记录不会再有下一次变更，需 Load 补读
			utils.Print.Warn("match change dropped for slow subscriber", "match", rec.ID, "version", rec.Version)
		}
	}
	return nil
}

func (m *memRepo) Subscribe(ctx context.Context, id string) (<-chan *Record, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok {
		m.subs[id] = make(map[int]chan *Record)
	}
	key := m.nextSub
	m.nextSub++
	ch := make(chan *Record, 16)
	m.subs[id][key] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs[id], key)
			if len(m.subs[id]) == 0 {
				delete(m.subs, id)
			}
			close(ch)
		})
	}
	return ch, cancel, nil
}
