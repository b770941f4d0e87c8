package poster

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"
	"go.uber.org/zap"

	"github.com/teranos/tcgbot/errors"
	"github.com/teranos/tcgbot/logger"
)

// BlueskyConfig holds what a PDS login needs
type BlueskyConfig struct {
	PDSHost     string
	Identifier  string
	AppPassword string
	HTTPClient  *http.Client // nil uses the xrpc default
}

// Bluesky posts through an authenticated XRPC session
type Bluesky struct {
	mu     sync.RWMutex
	client *xrpc.Client
	logger *zap.SugaredLogger
}

// NewBluesky logs in and returns a ready poster
func NewBluesky(ctx context.Context, cfg BlueskyConfig) (*Bluesky, error) {
	if cfg.PDSHost == "" {
		cfg.PDSHost = "https://bsky.social"
	}
	if cfg.Identifier == "" || cfg.AppPassword == "" {
		return nil, errors.Wrap(errors.ErrServiceUnavailable, "bluesky identifier and app password are required")
	}

	client, err := createSession(ctx, cfg.PDSHost, cfg.Identifier, cfg.AppPassword, cfg.HTTPClient)
	if err != nil {
		return nil, err
	}

	return &Bluesky{
		client: client,
		logger: logger.ComponentLogger("poster.bluesky"),
	}, nil
}

// createSession authenticates with a PDS and returns an authenticated XRPC client
func createSession(ctx context.Context, pdsHost, identifier, appPassword string, httpClient *http.Client) (*xrpc.Client, error) {
	client := &xrpc.Client{
		Host:   strings.TrimRight(pdsHost, "/"),
		Client: httpClient,
	}

	session, err := comatproto.ServerCreateSession(ctx, client, &comatproto.ServerCreateSession_Input{
		Identifier: identifier,
		Password:   appPassword,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create session with PDS %s for %s", pdsHost, identifier)
	}

	client.Auth = &xrpc.AuthInfo{
		AccessJwt:  session.AccessJwt,
		RefreshJwt: session.RefreshJwt,
		Handle:     session.Handle,
		Did:        session.Did,
	}

	return client, nil
}

// refreshSession swaps the access token using the refresh token
func refreshSession(ctx context.Context, client *xrpc.Client) error {
	if client.Auth == nil {
		return errors.New("no auth session to refresh")
	}

	refreshClient := &xrpc.Client{
		Host:   client.Host,
		Client: client.Client,
		Auth: &xrpc.AuthInfo{
			AccessJwt: client.Auth.RefreshJwt,
		},
	}

	session, err := comatproto.ServerRefreshSession(ctx, refreshClient)
	if err != nil {
		return errors.Wrapf(err, "failed to refresh session at %s", client.Host)
	}

	client.Auth.AccessJwt = session.AccessJwt
	client.Auth.RefreshJwt = session.RefreshJwt
	client.Auth.Handle = session.Handle
	client.Auth.Did = session.Did

	return nil
}

// Client returns the authenticated XRPC client for read-only callers such
// as the feed source
func (b *Bluesky) Client() *xrpc.Client {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.client
}

// Handle returns the logged-in account handle
func (b *Bluesky) Handle() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.client.Auth.Handle
}

// Simulated always reports false
func (b *Bluesky) Simulated() bool { return false }

// PostItem creates an app.bsky.feed.post record
func (b *Bluesky) PostItem(ctx context.Context, content string) Result {
	return b.create(ctx, content, nil)
}

// PostReply creates a post threaded under targetID, which must be an AT URI
func (b *Bluesky) PostReply(ctx context.Context, content, targetID string) Result {
	ref, err := b.replyRef(ctx, targetID)
	if err != nil {
		b.logger.Warnw("Failed to resolve reply target",
			logger.FieldTargetID, targetID,
			logger.FieldError, err)
		return failure(err, false)
	}
	return b.create(ctx, content, ref)
}

func (b *Bluesky) create(ctx context.Context, content string, reply *appbsky.FeedPost_ReplyRef) Result {
	post := &appbsky.FeedPost{
		Text:      content,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Langs:     []string{"en"},
		Reply:     reply,
	}

	var out *comatproto.RepoCreateRecord_Output
	err := b.withSession(ctx, func(client *xrpc.Client) error {
		var err error
		out, err = comatproto.RepoCreateRecord(ctx, client, &comatproto.RepoCreateRecord_Input{
			Collection: PostCollection,
			Repo:       client.Auth.Did,
			Record:     &util.LexiconTypeDecoder{Val: post},
		})
		return err
	})
	if err != nil {
		err = errors.Wrap(classify(err), "failed to create post record")
		return failure(err, false)
	}

	b.logger.Debugw("Created post record",
		logger.FieldItemID, out.Uri,
		"cid", out.Cid)

	return Result{
		Success:  true,
		ItemID:   out.Uri,
		URL:      Permalink(b.Handle(), out.Uri),
		PostedAt: time.Now(),
	}
}

// replyRef resolves the parent's CID and the thread root
func (b *Bluesky) replyRef(ctx context.Context, targetID string) (*appbsky.FeedPost_ReplyRef, error) {
	if !strings.HasPrefix(targetID, "at://") {
		return nil, errors.NewInvalidRequestError("reply target %q is not an AT URI", targetID)
	}

	var out *appbsky.FeedGetPosts_Output
	err := b.withSession(ctx, func(client *xrpc.Client) error {
		var err error
		out, err = appbsky.FeedGetPosts(ctx, client, []string{targetID})
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(classify(err), "failed to fetch reply target %s", targetID)
	}
	if len(out.Posts) == 0 || out.Posts[0] == nil {
		return nil, errors.NewNotFoundError("reply target %s", targetID)
	}

	parent := &comatproto.RepoStrongRef{Uri: out.Posts[0].Uri, Cid: out.Posts[0].Cid}
	root := parent
	if out.Posts[0].Record != nil {
		if fp, ok := out.Posts[0].Record.Val.(*appbsky.FeedPost); ok && fp.Reply != nil && fp.Reply.Root != nil {
			root = fp.Reply.Root
		}
	}

	return &appbsky.FeedPost_ReplyRef{Parent: parent, Root: root}, nil
}

// withSession runs fn, refreshing an expired session once
func (b *Bluesky) withSession(ctx context.Context, fn func(*xrpc.Client) error) error {
	client := b.Client()
	err := fn(client)
	if err == nil || !isExpiredToken(err) {
		return err
	}

	// Refresh a copy so in-flight calls keep a consistent AuthInfo
	b.mu.Lock()
	fresh := *b.client
	auth := *b.client.Auth
	fresh.Auth = &auth
	refreshErr := refreshSession(ctx, &fresh)
	if refreshErr == nil {
		b.client = &fresh
	}
	b.mu.Unlock()
	if refreshErr != nil {
		return errors.WithSecondaryError(err, refreshErr)
	}

	b.logger.Infow("Refreshed bluesky session")
	return fn(b.Client())
}

func isExpiredToken(err error) bool {
	return strings.Contains(err.Error(), "ExpiredToken")
}

// classify marks HTTP 429 responses as rate limited
func classify(err error) error {
	var xe *xrpc.Error
	if errors.As(err, &xe) && xe.StatusCode == http.StatusTooManyRequests {
		return errors.Wrap(errors.ErrRateLimited, err.Error())
	}
	return err
}
