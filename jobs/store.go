package jobs

import (
	"sync"
	"time"

	"github.com/teranos/tcgbot/errors"
)

// SubscriberChannelBufferSize is the buffer size for subscriber channels
const SubscriberChannelBufferSize = 100

// Store holds job records in insertion order. Every read returns a copy.
type Store struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	order       []string
	subscribers []chan *Job
	now         func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*Job),
		now:  time.Now,
	}
}

// Create adds a stopped job with zeroed stats. Duplicate ids are a conflict.
func (s *Store) Create(id string, spec Spec) (*Job, error) {
	if id == "" {
		return nil, errors.NewInvalidRequestError("job id is required")
	}
	if spec.Kind == "" {
		spec.Kind = KindPosting
	}
	if spec.Kind != KindPosting && spec.Kind != KindReplying {
		return nil, errors.NewInvalidRequestError("unknown job type %q", spec.Kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; exists {
		return nil, errors.NewConflictError("job %s already exists", id)
	}

	name := spec.Name
	if name == "" {
		name = "Job " + id
	}
	settings := spec.Settings
	if settings == nil {
		settings = map[string]interface{}{}
	}
	items := spec.Items
	if items == nil {
		items = []Item{}
	}

	job := &Job{
		ID:        id,
		Name:      name,
		Kind:      spec.Kind,
		Status:    StatusStopped,
		Settings:  settings,
		Items:     items,
		Stats:     Stats{SuccessRate: 100},
		CreatedAt: s.now(),
	}
	// Store a private copy so the caller's slices never alias ours
	job = job.clone()
	s.jobs[id] = job
	s.order = append(s.order, id)

	out := job.clone()
	s.notifySubscribers(out)
	return out, nil
}

// Get returns the job or a not-found error
func (s *Store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, errors.NewNotFoundError("job %s", id)
	}
	return job.clone(), nil
}

// List returns every job in insertion order
func (s *Store) List() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Job, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.jobs[id].clone())
	}
	return out
}

// Update applies fn to the stored job under the lock. If fn returns an
// error nothing is changed.
func (s *Store) Update(id string, fn func(*Job) error) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, errors.NewNotFoundError("job %s", id)
	}

	draft := job.clone()
	if err := fn(draft); err != nil {
		return nil, err
	}
	s.jobs[id] = draft

	out := draft.clone()
	s.notifySubscribers(out)
	return out, nil
}

// Rename changes the display name
func (s *Store) Rename(id, name string) (*Job, error) {
	if name == "" {
		return nil, errors.NewInvalidRequestError("job name cannot be empty")
	}
	return s.Update(id, func(j *Job) error {
		j.Name = name
		return nil
	})
}

// SetStatus flips the flag runners poll before each item. It does not by
// itself stop a worker.
func (s *Store) SetStatus(id string, status Status) (*Job, error) {
	if !IsValidStatus(string(status)) {
		return nil, errors.NewInvalidRequestError("invalid status %q", status)
	}
	return s.Update(id, func(j *Job) error {
		j.Status = status
		return nil
	})
}

// RecordSuccess counts one posted item and moves lastRun forward
func (s *Store) RecordSuccess(id string, at time.Time) (*Job, error) {
	return s.Update(id, func(j *Job) error {
		if j.Kind == KindReplying {
			j.Stats.RepliesToday++
		} else {
			j.Stats.PostsToday++
		}
		j.Stats.SuccessRate = successRate(j.Stats.Successes(), j.Stats.Failures)
		j.LastRun = &at
		return nil
	})
}

// RecordFailure counts one failed item
func (s *Store) RecordFailure(id string) (*Job, error) {
	return s.Update(id, func(j *Job) error {
		j.Stats.Failures++
		j.Stats.SuccessRate = successRate(j.Stats.Successes(), j.Stats.Failures)
		return nil
	})
}

// SetNextRun records when the runner will post the next item; nil clears it
func (s *Store) SetNextRun(id string, at *time.Time) (*Job, error) {
	return s.Update(id, func(j *Job) error {
		j.NextRun = at
		return nil
	})
}

// Subscribe returns a channel receiving a copy of every changed job
func (s *Store) Subscribe() chan *Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan *Job, SubscriberChannelBufferSize)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Unsubscribe removes ch. The channel is not closed.
func (s *Store) Unsubscribe(ch chan *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subscribers {
		if sub == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			return
		}
	}
}

// notifySubscribers requires s.mu held. Full channels are skipped.
func (s *Store) notifySubscribers(job *Job) {
	for _, ch := range s.subscribers {
		select {
		case ch <- job:
		default:
		}
	}
}
