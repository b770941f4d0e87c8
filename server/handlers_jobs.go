package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/teranos/tcgbot/errors"
	"github.com/teranos/tcgbot/jobs"
	"github.com/teranos/tcgbot/logger"
)

const (
	defaultPostingJobName    = "Untitled Job"
	defaultReplyJobName      = "Untitled Reply Job"
	defaultMaxRepliesPerHour = 10
)

// HandleBotStatus aggregates every job into the dashboard status card
func (s *Server) HandleBotStatus(w http.ResponseWriter, r *http.Request) {
	summary := jobs.Summarize(s.manager.List(), s.started, time.Now())
	s.ok(w, envelope{
		"running": summary.Running,
		"uptime":  summary.Uptime,
		"lastRun": summary.LastRun,
		"stats":   summary.Stats,
		"jobs":    summary.Jobs,
	})
}

// HandleListJobs returns every job in creation order
func (s *Server) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	list := s.manager.List()
	s.ok(w, envelope{"jobs": list, "count": len(list)})
}

// HandleGetJob returns one job or 404
func (s *Server) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.manager.Get(r.PathValue("id"))
	if err != nil {
		s.failErr(w, err)
		return
	}
	s.ok(w, envelope{"job": job})
}

// HandleStartJob starts or resumes a job
func (s *Server) HandleStartJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.manager.Start(id)
	if err != nil {
		if errors.IsNotFoundError(err) {
			s.fail(w, http.StatusNotFound, fmt.Sprintf("Job %s not found or already running", id))
			return
		}
		s.failErr(w, err)
		return
	}
	s.ok(w, envelope{
		"message": fmt.Sprintf("Job %s started successfully", id),
		"job_id":  id,
		"status":  job.Status,
		"job":     job,
	})
}

// HandleStopJob stops a job after its in-flight item
func (s *Server) HandleStopJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.manager.Stop(id)
	if err != nil {
		s.jobError(w, id, err)
		return
	}
	s.ok(w, envelope{
		"message": fmt.Sprintf("Job %s stopped successfully", id),
		"job_id":  id,
		"status":  job.Status,
		"job":     job,
	})
}

// HandlePauseJob holds a running job before its next item
func (s *Server) HandlePauseJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.manager.Pause(id)
	if err != nil {
		s.jobError(w, id, err)
		return
	}
	s.ok(w, envelope{
		"message": fmt.Sprintf("Job %s paused successfully", id),
		"job_id":  id,
		"status":  job.Status,
		"job":     job,
	})
}

// HandleRenameJob changes a job's display name
func (s *Server) HandleRenameJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req renameRequest
	if !s.decode(w, r, &req) {
		return
	}
	job, err := s.manager.Rename(id, req.Name)
	if err != nil {
		s.jobError(w, id, err)
		return
	}
	s.ok(w, envelope{
		"message":  fmt.Sprintf("Job %s renamed to '%s' successfully", id, job.Name),
		"job_id":   id,
		"new_name": job.Name,
		"job":      job,
	})
}

// HandleCreatePostingJob creates a stopped posting job from approved content
func (s *Server) HandleCreatePostingJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		req.Name = defaultPostingJobName
	}

	job, ok := s.createJob(w, req, jobs.KindPosting)
	if !ok {
		return
	}
	s.ok(w, envelope{
		"message":       fmt.Sprintf("Posting job '%s' created successfully", job.Name),
		"job_id":        job.ID,
		"job_name":      job.Name,
		"job_type":      job.Kind,
		"content_count": len(job.Items),
		"settings":      job.Settings,
		"job":           job,
	})
}

// HandleCreateReplyJob creates a stopped replying job
func (s *Server) HandleCreateReplyJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		req.Name = defaultReplyJobName
	}
	maxPerHour := defaultMaxRepliesPerHour
	if req.MaxRepliesPerHour != nil {
		maxPerHour = *req.MaxRepliesPerHour
	}
	if req.Settings == nil {
		req.Settings = make(map[string]interface{})
	}
	req.Settings["maxRepliesPerHour"] = maxPerHour

	job, ok := s.createJob(w, req, jobs.KindReplying)
	if !ok {
		return
	}
	s.ok(w, envelope{
		"message":              fmt.Sprintf("Reply job '%s' created successfully", job.Name),
		"job_id":               job.ID,
		"job_name":             job.Name,
		"job_type":             job.Kind,
		"content_count":        len(job.Items),
		"max_replies_per_hour": maxPerHour,
		"settings":             job.Settings,
		"job":                  job,
	})
}

// createJob resolves the kind and items, then creates the job. It writes
// the error response itself and reports whether the job exists.
func (s *Server) createJob(w http.ResponseWriter, req createJobRequest, fallback jobs.Kind) (*jobs.Job, bool) {
	kind := fallback
	if req.Type != "" {
		k, err := jobs.ParseKind(req.Type)
		if err != nil {
			s.failErr(w, err)
			return nil, false
		}
		kind = k
	}

	items, err := jobs.ItemsFromSettings(req.Settings)
	if err != nil {
		s.failErr(w, err)
		return nil, false
	}
	if req.Settings == nil {
		req.Settings = make(map[string]interface{})
	}

	job, err := s.manager.Create("", jobs.Spec{
		Kind:     kind,
		Name:     req.Name,
		Items:    items,
		Settings: req.Settings,
	})
	if err != nil {
		s.logger.Warnw("Failed to create job", logger.FieldKind, kind, logger.FieldError, err)
		s.failErr(w, err)
		return nil, false
	}
	return job, true
}

// jobError reports a missing job as 404 "Job {id} not found"
func (s *Server) jobError(w http.ResponseWriter, id string, err error) {
	if errors.IsNotFoundError(err) {
		s.fail(w, http.StatusNotFound, fmt.Sprintf("Job %s not found", id))
		return
	}
	s.failErr(w, err)
}
