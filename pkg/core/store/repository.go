// Package store keeps generated analyses so they can be reopened, chatted
// about and exported after the request that produced them.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"policy_compass/pkg/models"
)

var ErrNotFound = errors.New("analysis not found")

// DefaultListLimit caps List when the caller passes a non-positive limit.
const DefaultListLimit = 20

// Repository persists analysis records.
type Repository interface {
	Save(ctx context.Context, rec *models.AnalysisRecord) error
	Load(ctx context.Context, id string) (*models.AnalysisRecord, error)
	// List returns the most recent records first.
	List(ctx context.Context, limit int) ([]*models.AnalysisRecord, error)
}

// MemoryRepo keeps records in process memory; they are lost on restart.
// When limit is positive the oldest records are evicted past that count;
// when maxAge is positive records older than it are dropped.
type MemoryRepo struct {
	mu      sync.RWMutex
	records map[string]*models.AnalysisRecord
	limit   int
	maxAge  time.Duration
	now     func() time.Time
}

var _ Repository = (*MemoryRepo)(nil)

func NewMemoryRepo(limit int, maxAge time.Duration) *MemoryRepo {
	return &MemoryRepo{
		records: make(map[string]*models.AnalysisRecord),
		limit:   limit,
		maxAge:  maxAge,
		now:     time.Now,
	}
}

func (r *MemoryRepo) Save(ctx context.Context, rec *models.AnalysisRecord) error {
	if rec == nil || rec.ID == "" {
		return errors.New("record id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = rec
	r.evict()
	return nil
}

// evict drops expired records, then the oldest ones past the limit.
// Callers hold r.mu.
func (r *MemoryRepo) evict() {
	if r.maxAge > 0 {
		cutoff := r.now().Add(-r.maxAge)
		for id, rec := range r.records {
			if rec.CreatedAt.Before(cutoff) {
				delete(r.records, id)
			}
		}
	}
	if r.limit <= 0 || len(r.records) <= r.limit {
		return
	}
	recs := make([]*models.AnalysisRecord, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	sortRecent(recs)
	for _, rec := range recs[r.limit:] {
		delete(r.records, rec.ID)
	}
}

func (r *MemoryRepo) expired(rec *models.AnalysisRecord) bool {
	return r.maxAge > 0 && rec.CreatedAt.Before(r.now().Add(-r.maxAge))
}

func (r *MemoryRepo) Load(ctx context.Context, id string) (*models.AnalysisRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok || r.expired(rec) {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Len reports how many records are held, expired ones included until the next Save.
func (r *MemoryRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

func (r *MemoryRepo) List(ctx context.Context, limit int) ([]*models.AnalysisRecord, error) {
	r.mu.RLock()
	out := make([]*models.AnalysisRecord, 0, len(r.records))
	for _, rec := range r.records {
		if !r.expired(rec) {
			out = append(out, rec)
		}
	}
	r.mu.RUnlock()

	sortRecent(out)
	return clampList(out, limit), nil
}

func sortRecent(recs []*models.AnalysisRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
}

func clampList(recs []*models.AnalysisRecord, limit int) []*models.AnalysisRecord {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}

// Options selects and sizes the analysis repository.
type Options struct {
	URL          string
	Dir          string
	MemoryLimit  int
	MemoryMaxAge time.Duration
}

// Open picks the repository for the configured backend: Postgres when URL is
// set, JSON files when Dir is set, otherwise a bounded in-memory store.
func Open(ctx context.Context, opts Options) (Repository, error) {
	switch {
	case opts.URL != "":
		if err := InitDB(ctx, opts.URL); err != nil {
			return nil, err
		}
		repo := NewPostgresRepo(nil)
		if err := repo.Migrate(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	case opts.Dir != "":
		return NewFileRepo(opts.Dir)
	default:
		return NewMemoryRepo(opts.MemoryLimit, opts.MemoryMaxAge), nil
	}
}
