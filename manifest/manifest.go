// Package manifest loads job manifests: TOML files that declare jobs and
// their approved content so a server can start with work already queued.
//
//	requires = ">= 0.2.0"
//
//	[[job]]
//	name = "Weekend pulls"
//	type = "posting"
//	autostart = true
//	content = ["Pulled a gold Mew today!", "Who else is opening Paldean Fates?"]
//
//	[[job]]
//	name = "Thank the fans"
//	type = "reply"
//	[[job.item]]
//	content = "Congrats on the Charizard!"
//	tweet_id = "at://did:plc:fan/app.bsky.feed.post/3kabc"
//	tweet_author = "fan.bsky.social"
package manifest

import (
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"

	"github.com/teranos/tcgbot/errors"
	"github.com/teranos/tcgbot/jobs"
	"github.com/teranos/tcgbot/logger"
)

// Manifest is a decoded manifest file
type Manifest struct {
	Requires string `toml:"requires"`
	Jobs     []Job  `toml:"job"`
}

// Job declares one job
type Job struct {
	ID        string                 `toml:"id"`
	Name      string                 `toml:"name"`
	Type      string                 `toml:"type"`
	Autostart bool                   `toml:"autostart"`
	Content   []string               `toml:"content"`
	Items     []Item                 `toml:"item"`
	Settings  map[string]interface{} `toml:"settings"`
}

// Item is a queued item with reply metadata
type Item struct {
	Content       string   `toml:"content"`
	TweetID       string   `toml:"tweet_id"`
	TweetAuthor   string   `toml:"tweet_author"`
	OriginalTweet string   `toml:"original_tweet"`
	Topics        []string `toml:"topics"`
}

// Load reads and decodes a manifest file
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open manifest %s", path)
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		return nil, errors.WithDetailf(err, "manifest: %s", path)
	}
	return m, nil
}

// Decode parses a manifest. Unknown keys are rejected so typos surface.
func Decode(r io.Reader) (*Manifest, error) {
	var m Manifest
	md, err := toml.NewDecoder(r).Decode(&m)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse manifest")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, errors.WithHint(
			errors.NewInvalidRequestError("unknown manifest keys: %s", strings.Join(keys, ", ")),
			"valid job keys are id, name, type, autostart, content, item and settings")
	}
	return &m, nil
}

// Check verifies the running version satisfies requires. Development
// builds and manifests without a constraint always pass.
func (m *Manifest) Check(version string) error {
	if m.Requires == "" || version == "" || version == "dev" {
		return nil
	}
	constraint, err := semver.NewConstraint(m.Requires)
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidRequest, "invalid version constraint %q: %v", m.Requires, err)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return errors.Wrapf(err, "invalid tcgbot version %s", version)
	}
	if !constraint.Check(v) {
		return errors.WithHint(
			errors.Newf("manifest requires tcgbot %s, but running %s", m.Requires, version),
			"upgrade tcgbot or relax the requires constraint")
	}
	return nil
}

// Specs converts the declared jobs into creation specs
func (m *Manifest) Specs() ([]jobs.Spec, error) {
	specs := make([]jobs.Spec, 0, len(m.Jobs))
	for i, j := range m.Jobs {
		kind, err := jobs.ParseKind(j.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "job %d", i+1)
		}

		items := make([]jobs.Item, 0, len(j.Content)+len(j.Items))
		for _, c := range j.Content {
			items = append(items, jobs.Item{Content: c})
		}
		for _, it := range j.Items {
			items = append(items, jobs.Item{
				Content:       it.Content,
				TweetID:       it.TweetID,
				TweetAuthor:   it.TweetAuthor,
				OriginalTweet: it.OriginalTweet,
				Topics:        it.Topics,
			})
		}
		for n, it := range items {
			if strings.TrimSpace(it.Content) == "" {
				return nil, errors.NewInvalidRequestError("job %d item %d has no content", i+1, n+1)
			}
			if kind == jobs.KindReplying && it.TweetID == "" {
				return nil, errors.NewInvalidRequestError("job %d item %d is a reply without tweet_id", i+1, n+1)
			}
		}

		specs = append(specs, jobs.Spec{
			Kind:     kind,
			Name:     j.Name,
			Items:    items,
			Settings: j.Settings,
		})
	}
	return specs, nil
}

// Apply creates every declared job on mgr and starts the autostart ones.
// Creation stops at the first failure.
func (m *Manifest) Apply(mgr *jobs.Manager) ([]*jobs.Job, error) {
	specs, err := m.Specs()
	if err != nil {
		return nil, err
	}

	log := logger.ComponentLogger("manifest")
	created := make([]*jobs.Job, 0, len(specs))
	for i, spec := range specs {
		job, err := mgr.Create(m.Jobs[i].ID, spec)
		if err != nil {
			return created, errors.Wrapf(err, "failed to create job %q", spec.Name)
		}
		if m.Jobs[i].Autostart {
			id := job.ID
			if job, err = mgr.Start(id); err != nil {
				return created, errors.Wrapf(err, "failed to start job %s", id)
			}
		}
		created = append(created, job)
	}
	log.Infow("Seeded jobs from manifest", "count", len(created))
	return created, nil
}
