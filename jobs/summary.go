package jobs

import "time"

// Summary aggregates every job for the bot status view
type Summary struct {
	Running bool       `json:"running"`
	Uptime  *string    `json:"uptime"`
	LastRun *time.Time `json:"lastRun"`
	Stats   Stats      `json:"stats"`
	Jobs    []*Job     `json:"jobs"`
}

// Summarize sums counters across jobs. successRate is computed over all
// attempts. since is the process start and only reported while a job runs.
func Summarize(jobs []*Job, since time.Time, now time.Time) Summary {
	s := Summary{Jobs: jobs}
	if s.Jobs == nil {
		s.Jobs = []*Job{}
	}

	for _, j := range jobs {
		if j.Status == StatusRunning {
			s.Running = true
		}
		s.Stats.PostsToday += j.Stats.PostsToday
		s.Stats.RepliesToday += j.Stats.RepliesToday
		s.Stats.Failures += j.Stats.Failures
		if j.LastRun != nil && (s.LastRun == nil || j.LastRun.After(*s.LastRun)) {
			t := *j.LastRun
			s.LastRun = &t
		}
	}
	s.Stats.SuccessRate = successRate(s.Stats.Successes(), s.Stats.Failures)

	if s.Running && !since.IsZero() {
		up := now.Sub(since).Truncate(time.Second).String()
		s.Uptime = &up
	}
	return s
}
