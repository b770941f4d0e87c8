package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bluesky-social/indigo/xrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/tcgbot/errors"
	"github.com/teranos/tcgbot/internal/httpclient"
)

type stubSource struct {
	batch Batch
	err   error
	calls atomic.Int32
}

func (s *stubSource) Fetch(ctx context.Context, max int) (Batch, error) {
	s.calls.Add(1)
	return s.batch, s.err
}

func TestMockSource(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := &MockSource{now: func() time.Time { return now }}

	batch, err := m.Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, SourceMock, batch.Source)
	require.Len(t, batch.Tweets, 5)

	first := batch.Tweets[0]
	assert.Equal(t, "tweet_1", first.ID)
	assert.Equal(t, "PokemonFan123", first.Author)
	assert.Equal(t, "tweet_1", first.ConversationID)
	assert.Equal(t, "2024-05-01T10:00:00Z", first.CreatedAt)
	assert.Equal(t, "https://twitter.com/PokemonFan123/status/123456789", first.URL)
	assert.Equal(t, "BoosterBoxBen", batch.Tweets[4].Author)

	limited, err := m.Fetch(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, limited.Tweets, 2)
}

func TestChain_FirstNonEmptyWins(t *testing.T) {
	failing := &stubSource{err: errors.New("upstream down")}
	empty := &stubSource{batch: Batch{Source: "empty"}}
	good := &stubSource{batch: Batch{Source: "good", Tweets: []Tweet{{ID: "1", Text: "a"}, {ID: "2", Text: "b"}}}}
	never := &stubSource{batch: Batch{Source: "never", Tweets: []Tweet{{ID: "x"}}}}

	batch, err := NewChain(failing, nil, empty, good, never).Fetch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "good", batch.Source)
	assert.Len(t, batch.Tweets, 1)
	assert.Equal(t, int32(0), never.calls.Load())
}

func TestChain_AllFail(t *testing.T) {
	_, err := NewChain(&stubSource{err: errors.New("one")}, &stubSource{err: errors.New("two")}).Fetch(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "every reply candidate source failed")

	_, err = NewChain().Fetch(context.Background(), 0)
	assert.True(t, errors.Is(err, errors.ErrServiceUnavailable))

	batch, err := NewChain(&stubSource{}).Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, batch.Tweets)
}

func TestExportURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{
			"https://docs.google.com/spreadsheets/d/abc123/edit?gid=0#gid=0",
			"https://docs.google.com/spreadsheets/d/abc123/export?format=csv&gid=0",
		},
		{
			"https://docs.google.com/spreadsheets/d/abc123/edit#gid=42",
			"https://docs.google.com/spreadsheets/d/abc123/export?format=csv&gid=42",
		},
		{
			"https://docs.google.com/spreadsheets/d/abc123/export?format=csv&gid=7",
			"https://docs.google.com/spreadsheets/d/abc123/export?format=csv&gid=7",
		},
		{"https://example.com/tweets.csv", "https://example.com/tweets.csv"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExportURL(tt.in), tt.in)
	}
}

func newSheetServer(t *testing.T, body string, status int) *SheetSource {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	s := NewSheetSource(srv.URL+"/sheet.csv", httpclient.WrapClient(srv.Client()))
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestSheetSource_ParsesRows(t *testing.T) {
	csvBody := "Tweet_ID,Text,Username,Name,Created_At,URL\n" +
		"111,\"Pulled a gold Pikachu, what a day\",@ashk,Ash K,2024-05-01T09:00:00Z,https://x.test/111\n" +
		",,nobody,,,\n" +
		",Second row without id,misty,,,\n"
	s := newSheetServer(t, csvBody, http.StatusOK)

	batch, err := s.Fetch(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, SourceSheet, batch.Source)
	require.Len(t, batch.Tweets, 2)

	assert.Equal(t, Tweet{
		ID:             "111",
		Text:           "Pulled a gold Pikachu, what a day",
		Author:         "ashk",
		AuthorName:     "Ash K",
		CreatedAt:      "2024-05-01T09:00:00Z",
		URL:            "https://x.test/111",
		ConversationID: "111",
	}, batch.Tweets[0])
	assert.Equal(t, "sheet_row_3", batch.Tweets[1].ID)
	assert.Equal(t, "misty", batch.Tweets[1].AuthorName)
}

func TestSheetSource_EmptySheetFallsBack(t *testing.T) {
	s := newSheetServer(t, "id,text,author\n", http.StatusOK)

	batch, err := s.Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, SourceSheetEmpty, batch.Source)
	require.Len(t, batch.Tweets, 1)
	assert.Equal(t, "mock_tweet_1", batch.Tweets[0].ID)
	assert.Equal(t, "MockUser1", batch.Tweets[0].Author)
}

func TestSheetSource_Errors(t *testing.T) {
	_, err := newSheetServer(t, "", http.StatusNotFound).Fetch(context.Background(), 0)
	assert.ErrorContains(t, err, "status 404")

	_, err = newSheetServer(t, "id,author\n1,ash\n", http.StatusOK).Fetch(context.Background(), 0)
	assert.ErrorContains(t, err, "no text column")

	_, err = NewSheetSource("", nil).Fetch(context.Background(), 0)
	assert.True(t, errors.Is(err, errors.ErrServiceUnavailable))

	// loopback is refused without a wrapped client
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	_, err = NewSheetSource(srv.URL, nil).Fetch(context.Background(), 0)
	assert.ErrorContains(t, err, "SSRF")
}

func authorFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	post := func(did, handle, display, rkey, text, created string) map[string]interface{} {
		return map[string]interface{}{
			"post": map[string]interface{}{
				"uri":       "at://" + did + "/app.bsky.feed.post/" + rkey,
				"cid":       "bafy" + rkey,
				"author":    map[string]string{"did": did, "handle": handle, "displayName": display},
				"indexedAt": created,
				"record": map[string]interface{}{
					"$type":     "app.bsky.feed.post",
					"text":      text,
					"createdAt": created,
				},
			},
		}
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !strings.HasSuffix(r.URL.Path, "/xrpc/app.bsky.feed.getAuthorFeed") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var feed []interface{}
		switch r.URL.Query().Get("actor") {
		case "ash.test":
			feed = []interface{}{
				post("did:plc:ash", "ash.test", "Ash", "3ka", "Morning pack opening", "2024-05-01T08:00:00Z"),
				post("did:plc:ash", "ash.test", "Ash", "3kc", "Evening tournament recap", "2024-05-01T20:00:00Z"),
			}
		case "misty.test":
			feed = []interface{}{
				post("did:plc:misty", "misty.test", "", "3kb", "Water deck ideas?", "2024-05-01T12:00:00Z"),
			}
		default:
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "InvalidRequest", "message": "Profile not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"feed": feed})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBlueskySource_MergesNewestFirst(t *testing.T) {
	srv := authorFeedServer(t)
	src := NewBlueskySource(&xrpc.Client{Host: srv.URL, Client: srv.Client()}, []string{"@ash.test", " ", "misty.test", "ghost.test"})

	batch, err := src.Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, SourceBluesky, batch.Source)
	require.Len(t, batch.Tweets, 3)

	assert.Equal(t, "Evening tournament recap", batch.Tweets[0].Text)
	assert.Equal(t, "Water deck ideas?", batch.Tweets[1].Text)
	assert.Equal(t, "Morning pack opening", batch.Tweets[2].Text)

	assert.Equal(t, "at://did:plc:ash/app.bsky.feed.post/3kc", batch.Tweets[0].ID)
	assert.Equal(t, "Ash", batch.Tweets[0].AuthorName)
	assert.Equal(t, "misty.test", batch.Tweets[1].AuthorName)
	assert.Equal(t, "https://bsky.app/profile/ash.test/post/3kc", batch.Tweets[0].URL)

	limited, err := src.Fetch(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, limited.Tweets, 1)
}

func TestBlueskySource_AllActorsFail(t *testing.T) {
	srv := authorFeedServer(t)
	src := NewBlueskySource(&xrpc.Client{Host: srv.URL, Client: srv.Client()}, []string{"ghost.test", "nobody.test"})

	_, err := src.Fetch(context.Background(), 0)
	require.Error(t, err)

	_, err = NewBlueskySource(nil, nil).Fetch(context.Background(), 0)
	assert.True(t, errors.Is(err, errors.ErrServiceUnavailable))
}
