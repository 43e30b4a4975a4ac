package server

import (
	"sync"
	"time"

	"github.com/zeusync/ardice/internal/core/events/bus"
	"github.com/zeusync/ardice/internal/core/observability/log"
	"github.com/zeusync/ardice/internal/table"
)

// Registry owns the live tables, creating them on first use.
type Registry struct {
	mu     sync.Mutex
	tables map[string]*table.Table
	max    int
	cfg    table.Config

	// tableLogger is handed to each table, which scopes it itself.
	tableLogger log.Log
	logger      log.Log
}

func NewRegistry(max int, cfg table.Config, logger log.Log) *Registry {
	return &Registry{
		tables: make(map[string]*table.Table),
		max:    max,
		cfg:    cfg,

		tableLogger: logger,
		logger:      logger.With(log.String("component", "registry")),
	}
}

// GetOrCreate returns the table named id, opening it if needed.
func (r *Registry) GetOrCreate(id string) (*table.Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreate(id)
}

// Subscribe opens the table named id if needed and subscribes fn to its
// commands while holding the registry lock, so Sweep cannot close the table
// in between.
func (r *Registry) Subscribe(id string, fn func(table.Batch)) (*table.Table, bus.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.getOrCreate(id)
	if err != nil {
		return nil, nil, err
	}
	sub, err := t.Subscribe(fn)
	if err != nil {
		return nil, nil, err
	}
	return t, sub, nil
}

func (r *Registry) getOrCreate(id string) (*table.Table, error) {
	if t, ok := r.tables[id]; ok {
		return t, nil
	}
	if r.max > 0 && len(r.tables) >= r.max {
		return nil, ErrMaxTablesReached
	}
	t := table.New(id, r.cfg, r.tableLogger)
	r.tables[id] = t
	r.logger.Info("Table created", log.String("table", id), log.Int("tables", len(r.tables)))
	return t, nil
}

func (r *Registry) Get(id string) (*table.Table, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tables[id]
	return t, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tables)
}

// Sweep closes tables nobody is subscribed to that have been idle for at least
// idle. It returns how many tables were closed.
func (r *Registry) Sweep(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	closed := 0
	for id, t := range r.tables {
		if t.Subscribers() > 0 || t.IdleFor() < idle {
			continue
		}
		t.Close()
		delete(r.tables, id)
		closed++
	}
	if closed > 0 {
		r.logger.Info("Idle tables closed", log.Int("closed", closed), log.Int("tables", len(r.tables)))
	}
	return closed
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.tables {
		t.Close()
		delete(r.tables, id)
	}
}
