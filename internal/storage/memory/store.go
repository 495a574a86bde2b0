// Package memory keeps jobs, pages, artifacts and blobs in process memory
// for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/ai-visibility-audit/internal/crawler"
)

// Store implements crawler.JobStore, crawler.PageStore and
// crawler.ArtifactStore.
type Store struct {
	mu        sync.RWMutex
	jobs      map[string]crawler.Job
	pages     map[string][]crawler.Page
	seen      map[string]map[string]struct{}
	artifacts map[string]map[string][]byte
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		jobs:      make(map[string]crawler.Job),
		pages:     make(map[string][]crawler.Page),
		seen:      make(map[string]map[string]struct{}),
		artifacts: make(map[string]map[string][]byte),
	}
}

// CreateJob stores a new job.
func (s *Store) CreateJob(_ context.Context, job crawler.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// UpdateJob replaces a stored job.
func (s *Store) UpdateJob(_ context.Context, job crawler.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return fmt.Errorf("job %s: %w", job.ID, crawler.ErrNotFound)
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// GetJob fetches a job by ID.
func (s *Store) GetJob(_ context.Context, jobID string) (crawler.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return crawler.Job{}, fmt.Errorf("job %s: %w", jobID, crawler.ErrNotFound)
	}
	return cloneJob(job), nil
}

// NextPendingJob returns the oldest pending job.
func (s *Store) NextPendingJob(_ context.Context) (crawler.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		next  crawler.Job
		found bool
	)
	for _, job := range s.jobs {
		if job.Status != crawler.JobStatusPending {
			continue
		}
		if !found || job.CreatedAt.Before(next.CreatedAt) ||
			(job.CreatedAt.Equal(next.CreatedAt) && job.ID < next.ID) {
			next, found = job, true
		}
	}
	if !found {
		return crawler.Job{}, crawler.ErrNotFound
	}
	return cloneJob(next), nil
}

// SavePage appends a page unless its dedup key was already stored for the job.
func (s *Store) SavePage(_ context.Context, page crawler.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := s.seen[page.JobID]
	if keys == nil {
		keys = make(map[string]struct{})
		s.seen[page.JobID] = keys
	}
	if _, dup := keys[page.DedupKey]; dup {
		return fmt.Errorf("page %s: %w", page.URL, crawler.ErrDuplicatePage)
	}
	keys[page.DedupKey] = struct{}{}
	s.pages[page.JobID] = append(s.pages[page.JobID], page)
	return nil
}

// PageExists reports whether the dedup key was stored for the job.
func (s *Store) PageExists(_ context.Context, jobID, dedupKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[jobID][dedupKey]
	return ok, nil
}

// ListPages returns a copy of the job's pages in fetch order.
func (s *Store) ListPages(_ context.Context, jobID string) ([]crawler.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pages := s.pages[jobID]
	out := make([]crawler.Page, len(pages))
	copy(out, pages)
	sort.SliceStable(out, func(i, j int) bool { return out[i].FetchedAt.Before(out[j].FetchedAt) })
	return out, nil
}

// PutArtifact stores a copy of data under (job, kind), replacing any prior value.
func (s *Store) PutArtifact(_ context.Context, jobID, kind string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := s.artifacts[jobID]
	if kinds == nil {
		kinds = make(map[string][]byte)
		s.artifacts[jobID] = kinds
	}
	kinds[kind] = append([]byte(nil), data...)
	return nil
}

// GetArtifact returns a copy of the stored artifact.
func (s *Store) GetArtifact(_ context.Context, jobID, kind string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.artifacts[jobID][kind]
	if !ok {
		return nil, fmt.Errorf("artifact %s/%s: %w", jobID, kind, crawler.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func cloneJob(job crawler.Job) crawler.Job {
	job.CompetitorDomains = append([]string(nil), job.CompetitorDomains...)
	job.PriorityURLs = append([]string(nil), job.PriorityURLs...)
	if job.Debug != nil {
		debug := *job.Debug
		job.Debug = &debug
	}
	return job
}
