package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/ai-visibility-audit/internal/crawler"
	"github.com/JakeFAU/ai-visibility-audit/internal/progress"
)

type submitRequest struct {
	TargetDomain       string   `json:"target_domain"`
	CompetitorDomains  []string `json:"competitor_domains"`
	Locale             string   `json:"locale"`
	MaxPagesTarget     *int     `json:"max_pages_target"`
	MaxPagesCompetitor *int     `json:"max_pages_competitor"`
}

type pageSummary struct {
	URL        string `json:"url"`
	Domain     string `json:"domain"`
	IsTarget   bool   `json:"is_target"`
	Title      string `json:"title"`
	StatusCode int    `json:"status_code"`
	WordCount  int    `json:"word_count"`
	FetchedAt  string `json:"fetched_at"`
}

func (s *Server) submitAudit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	job, err := s.toJob(req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if job.ID, err = s.deps.IDs.NewID(); err != nil {
		s.logger.Error("generate job id failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}
	if err := s.deps.Jobs.CreateJob(r.Context(), job); err != nil {
		s.logger.Error("create job failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}
	s.logger.Info("audit submitted", zap.String("job_id", job.ID), zap.String("target", job.TargetDomain))
	w.Header().Set("Location", "/v1/audits/"+job.ID)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID, "status": string(job.Status)})
}

func (s *Server) toJob(req submitRequest) (crawler.Job, error) {
	target := crawler.NormalizeDomain(req.TargetDomain)
	if target == "" {
		return crawler.Job{}, errors.New("target_domain is required")
	}
	if err := s.checkDomain(target); err != nil {
		return crawler.Job{}, err
	}

	seen := map[string]bool{target: true}
	competitors := make([]string, 0, len(req.CompetitorDomains))
	for _, raw := range req.CompetitorDomains {
		d := crawler.NormalizeDomain(raw)
		if d == "" || seen[d] {
			continue
		}
		if err := s.checkDomain(d); err != nil {
			return crawler.Job{}, err
		}
		seen[d] = true
		competitors = append(competitors, d)
	}
	if len(competitors) > s.opts.MaxCompetitors {
		return crawler.Job{}, fmt.Errorf("at most %d competitor domains are allowed", s.opts.MaxCompetitors)
	}

	job := crawler.Job{
		TargetDomain:      target,
		CompetitorDomains: competitors,
		Locale:            strings.TrimSpace(req.Locale),
		Status:            crawler.JobStatusPending,
		CreatedAt:         s.deps.Clock.Now().UTC(),
	}
	for _, limit := range []*int{req.MaxPagesTarget, req.MaxPagesCompetitor} {
		if limit != nil && *limit <= 0 {
			return crawler.Job{}, errors.New("page limits must be positive")
		}
	}
	if req.MaxPagesTarget != nil {
		job.MaxPagesTarget = *req.MaxPagesTarget
	}
	if req.MaxPagesCompetitor != nil {
		job.MaxPagesComp = *req.MaxPagesCompetitor
	}
	return job, nil
}

func (s *Server) checkDomain(domain string) error {
	if s.deps.Gate == nil {
		return nil
	}
	if err := s.deps.Gate.Check("https://" + domain + "/"); err != nil {
		var safety *crawler.SafetyError
		if errors.As(err, &safety) {
			return fmt.Errorf("domain %s rejected: %s", domain, safety.Reason)
		}
		return fmt.Errorf("domain %s rejected", domain)
	}
	return nil
}

// loadJob writes the error response itself and reports whether to continue.
func (s *Server) loadJob(w http.ResponseWriter, r *http.Request) (crawler.Job, bool) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.deps.Jobs.GetJob(r.Context(), jobID)
	if errors.Is(err, crawler.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "job not found")
		return crawler.Job{}, false
	}
	if err != nil {
		s.logger.Error("get job failed", zap.String("job_id", jobID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load job")
		return crawler.Job{}, false
	}
	return job, true
}

func (s *Server) getAudit(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) listPages(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	pages, err := s.deps.Pages.ListPages(r.Context(), job.ID)
	if err != nil {
		s.logger.Error("list pages failed", zap.String("job_id", job.ID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list pages")
		return
	}
	out := make([]pageSummary, 0, len(pages))
	for _, p := range pages {
		out = append(out, pageSummary{
			URL:        p.URL,
			Domain:     p.Domain,
			IsTarget:   p.IsTarget,
			Title:      p.Title,
			StatusCode: p.StatusCode,
			WordCount:  p.WordCount,
			FetchedAt:  p.FetchedAt.UTC().Format(time.RFC3339),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "pages": out})
}

func (s *Server) getDebug(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	if job.Debug == nil {
		s.writeError(w, http.StatusNotFound, "scrape debug not available yet")
		return
	}
	s.writeJSON(w, http.StatusOK, job.Debug)
}

func (s *Server) getArtifact(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := s.loadJob(w, r)
		if !ok {
			return
		}
		raw, err := s.deps.Artifacts.GetArtifact(r.Context(), job.ID, kind)
		switch {
		case errors.Is(err, crawler.ErrNotFound) && job.Status == crawler.JobStatusFailed:
			s.writeJSON(w, http.StatusConflict, map[string]string{"error": "job failed", "error_message": job.Error})
		case errors.Is(err, crawler.ErrNotFound):
			s.writeJSON(w, http.StatusNotFound, map[string]any{
				"error":            kind + " not ready",
				"status":           job.Status,
				"progress_percent": job.Progress,
			})
		case err != nil:
			s.logger.Error("get artifact failed", zap.String("job_id", job.ID), zap.String("kind", kind), zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "failed to load "+kind)
		default:
			s.writeRawJSON(w, http.StatusOK, raw)
		}
	}
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	events := []progress.Event{}
	if s.deps.Events != nil {
		events = s.deps.Events.Events(job.ID)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
