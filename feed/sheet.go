package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teranos/tcgbot/errors"
	"github.com/teranos/tcgbot/internal/httpclient"
)

const sheetFetchTimeout = 20 * time.Second

// column aliases accepted in the sheet header row
var sheetColumns = map[string]string{
	"id":              "id",
	"tweet_id":        "id",
	"text":            "text",
	"tweet":           "text",
	"content":         "text",
	"author":          "author",
	"username":        "author",
	"handle":          "author",
	"author_name":     "author_name",
	"name":            "author_name",
	"created_at":      "created_at",
	"date":            "created_at",
	"url":             "url",
	"tweet_url":       "url",
	"conversation_id": "conversation_id",
}

// SheetSource reads reply candidates from a published Google Sheet
type SheetSource struct {
	url    string
	client *httpclient.SaferClient
	now    func() time.Time
}

// NewSheetSource reads from sheetURL, which may be an edit link or a CSV
// export link. client may be nil.
func NewSheetSource(sheetURL string, client *httpclient.SaferClient) *SheetSource {
	if client == nil {
		client = httpclient.NewSaferClient(sheetFetchTimeout)
	}
	return &SheetSource{
		url:    ExportURL(sheetURL),
		client: client,
		now:    time.Now,
	}
}

// ExportURL rewrites a docs.google.com spreadsheet edit link into its CSV
// export link. Other URLs are returned unchanged.
func ExportURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host != "docs.google.com" || !strings.HasPrefix(u.Path, "/spreadsheets/d/") {
		return raw
	}
	parts := strings.Split(strings.TrimPrefix(u.Path, "/spreadsheets/d/"), "/")
	if parts[0] == "" || (len(parts) > 1 && parts[1] == "export") {
		return raw
	}

	gid := u.Query().Get("gid")
	if gid == "" && strings.HasPrefix(u.Fragment, "gid=") {
		gid = strings.TrimPrefix(u.Fragment, "gid=")
	}
	if gid == "" {
		gid = "0"
	}
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/export?format=csv&gid=%s", parts[0], gid)
}

// Fetch implements Source. A sheet without data rows yields a single
// placeholder candidate.
func (s *SheetSource) Fetch(ctx context.Context, max int) (Batch, error) {
	if s.url == "" {
		return Batch{}, errors.Wrap(errors.ErrServiceUnavailable, "no sheet URL configured")
	}

	resp, err := s.client.Get(ctx, s.url)
	if err != nil {
		return Batch{}, errors.Wrap(err, "failed to fetch sheet")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Batch{}, errors.Newf("sheet fetch returned status %d", resp.StatusCode)
	}

	tweets, err := parseSheet(resp.Body, max)
	if err != nil {
		return Batch{}, err
	}
	if len(tweets) == 0 {
		return emptySheetFallback(s.now()), nil
	}
	return Batch{Tweets: tweets, Source: SourceSheet}, nil
}

// parseSheet maps CSV rows onto candidates using the header row. Rows
// without text are skipped.
func parseSheet(r io.Reader, max int) ([]Tweet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read sheet header")
	}

	index := make(map[string]int)
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if field, ok := sheetColumns[key]; ok {
			if _, seen := index[field]; !seen {
				index[field] = i
			}
		}
	}
	if _, ok := index["text"]; !ok {
		return nil, errors.WithHint(
			errors.Newf("sheet has no text column (header: %s)", strings.Join(header, ", ")),
			"name a column text, tweet or content")
	}

	var tweets []Tweet
	for row := 1; ; row++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read sheet row %d", row)
		}

		cell := func(field string) string {
			i, ok := index[field]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		t := Tweet{
			ID:             cell("id"),
			Text:           cell("text"),
			Author:         strings.TrimPrefix(cell("author"), "@"),
			AuthorName:     cell("author_name"),
			CreatedAt:      cell("created_at"),
			URL:            cell("url"),
			ConversationID: cell("conversation_id"),
		}
		if t.Text == "" {
			continue
		}
		if t.ID == "" {
			t.ID = fmt.Sprintf("sheet_row_%d", row)
		}
		if t.ConversationID == "" {
			t.ConversationID = t.ID
		}
		if t.AuthorName == "" {
			t.AuthorName = t.Author
		}
		tweets = append(tweets, t)
		if max > 0 && len(tweets) >= max {
			break
		}
	}
	return tweets, nil
}
