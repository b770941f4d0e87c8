package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/teranos/tcgbot/activity"
	"github.com/teranos/tcgbot/errors"
	"github.com/teranos/tcgbot/logger"
	"github.com/teranos/tcgbot/poster"
)

// run is the body of one job's goroutine. It walks a snapshot of the
// queued items and always leaves the job stopped.
func (m *Manager) run(ctx context.Context, r *runner, snapshot *Job) {
	defer m.wg.Done()
	defer m.finish(snapshot.ID, r)

	log := m.logger.With(logger.FieldJobID, snapshot.ID)
	items := snapshot.Items
	if len(items) == 0 {
		log.Infow("Job has no approved content, stopping")
		return
	}

	for i, item := range items {
		if !m.awaitSlot(ctx, r, snapshot.ID) {
			log.Infow("Job no longer running, leaving loop",
				logger.FieldItemIndex, i,
				logger.FieldItemTotal, len(items))
			return
		}

		// Posting is not interrupted by Stop; the item in flight completes.
		if err := m.processItem(context.WithoutCancel(ctx), snapshot, i, item); err != nil {
			if _, recErr := m.store.RecordFailure(snapshot.ID); recErr != nil {
				log.Warnw("Failed to count failure", logger.FieldError, recErr)
			}
			log.Errorw("Item failed",
				logger.FieldItemIndex, i,
				logger.FieldItemTotal, len(items),
				logger.FieldError, err)
		}

		if i == len(items)-1 {
			break
		}

		interval := m.Interval()
		next := time.Now().Add(interval)
		if _, err := m.store.SetNextRun(snapshot.ID, &next); err != nil {
			log.Warnw("Failed to record next run", logger.FieldError, err)
		}
		if err := m.wait(ctx, interval); err != nil {
			log.Debugw("Interval wait interrupted", logger.FieldError, err)
			return
		}
	}

	log.Infow("Job finished all items", logger.FieldItemTotal, len(items))
}

// awaitSlot blocks until the job is running and the pacing gate has a slot.
// A pause that lands during the gate wait sends the runner back to wait for
// resume, then for a fresh slot.
func (m *Manager) awaitSlot(ctx context.Context, r *runner, id string) bool {
	for {
		if !m.awaitRunning(ctx, r, id) {
			return false
		}
		if err := m.gate.Wait(ctx); err != nil {
			m.logger.Debugw("Pacing wait interrupted", logger.FieldJobID, id, logger.FieldError, err)
			return false
		}
		job, err := m.store.Get(id)
		if err != nil {
			return false
		}
		if job.Status == StatusRunning {
			return true
		}
	}
}

// awaitRunning reports whether the next item may go. A paused job blocks
// here until resumed or stopped.
func (m *Manager) awaitRunning(ctx context.Context, r *runner, id string) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		job, err := m.store.Get(id)
		if err != nil {
			return false
		}
		switch job.Status {
		case StatusRunning:
			return true
		case StatusPaused:
			select {
			case <-r.resume:
			case <-ctx.Done():
				return false
			}
		default:
			return false
		}
	}
}

// processItem posts one item and records the outcome. Panics are returned
// as errors.
func (m *Manager) processItem(ctx context.Context, job *Job, index int, item Item) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.WithDetail(
				errors.Newf("panic while posting item %d: %v", index, rec),
				string(debug.Stack()))
		}
	}()

	kind := activity.KindPost
	if job.Kind == KindReplying {
		if item.TweetID == "" {
			return errors.NewInvalidRequestError("reply item %d has no target id", index)
		}
		kind = activity.KindReply
	}

	posted, res := m.publish(ctx, job.ID, kind, item)
	if !res.Success {
		return res.Err()
	}

	if _, err := m.store.RecordSuccess(job.ID, posted.Timestamp); err != nil {
		return errors.Wrap(err, "item posted but stats not updated")
	}

	m.logger.Infow(fmt.Sprintf("Posted %s", kind),
		logger.FieldJobID, job.ID,
		logger.FieldItemIndex, index,
		logger.FieldItemID, res.ItemID,
		logger.FieldSimulated, res.Simulated)
	return nil
}

// Publish posts one item outside any job and records it in the activity
// log. Pacing is the caller's concern.
func (m *Manager) Publish(ctx context.Context, kind activity.Kind, item Item) (activity.PostedItem, poster.Result) {
	posted, res := m.publish(ctx, "", kind, item)
	if res.Success {
		m.logger.Infow(fmt.Sprintf("Posted %s", kind),
			logger.FieldItemID, res.ItemID,
			logger.FieldSimulated, res.Simulated)
	} else {
		m.logger.Warnw(fmt.Sprintf("Direct %s failed", kind),
			"rate_limited", res.RateLimited,
			logger.FieldError, res.Error)
	}
	return posted, res
}

// publish sends item through the poster and appends successes to the
// activity log
func (m *Manager) publish(ctx context.Context, jobID string, kind activity.Kind, item Item) (activity.PostedItem, poster.Result) {
	var res poster.Result
	if kind == activity.KindReply {
		res = m.poster.PostReply(ctx, item.Content, item.TweetID)
	} else {
		res = m.poster.PostItem(ctx, item.Content)
	}
	if !res.Success {
		return activity.PostedItem{}, res
	}

	if res.PostedAt.IsZero() {
		res.PostedAt = time.Now()
	}
	posted := activity.PostedItem{
		ID:        res.ItemID,
		Content:   item.Content,
		Kind:      kind,
		Timestamp: res.PostedAt,
		Topics:    item.Topics,
		URL:       res.URL,
		ItemID:    res.ItemID,
		JobID:     jobID,
		Simulated: res.Simulated,
	}
	if posted.URL == "" {
		posted.URL = poster.Permalink(m.poster.Handle(), res.ItemID)
		res.URL = posted.URL
	}
	if kind == activity.KindReply {
		posted.RepliedTo = &activity.RepliedTo{
			TweetID: item.TweetID,
			Author:  item.TweetAuthor,
			Content: item.OriginalTweet,
			URL:     poster.TargetPermalink(item.TweetAuthor, item.TweetID),
		}
	}
	m.activity.Append(posted)
	return posted, res
}

// finish detaches the runner and marks the job stopped
func (m *Manager) finish(id string, r *runner) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.runners[id] == r {
		delete(m.runners, id)
		if _, err := m.store.Update(id, func(j *Job) error {
			j.Status = StatusStopped
			j.NextRun = nil
			return nil
		}); err != nil {
			m.logger.Warnw("Failed to mark job stopped", logger.FieldJobID, id, logger.FieldError, err)
		}
	}
	r.cancel()
	close(r.done)
}
