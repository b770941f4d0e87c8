package poster

import (
	"fmt"
	"strings"

	"github.com/bluesky-social/indigo/atproto/syntax"
)

const (
	// PostCollection is the record collection for posts
	PostCollection = "app.bsky.feed.post"

	webHost = "https://bsky.app"
)

// Permalink returns the web URL for a post. itemID may be an AT URI
// (at://did/app.bsky.feed.post/rkey) or a bare record key or simulated id,
// in which case handle names the author.
func Permalink(handle, itemID string) string {
	if strings.HasPrefix(itemID, "at://") {
		if uri, err := syntax.ParseATURI(itemID); err == nil && uri.RecordKey() != "" {
			return fmt.Sprintf("%s/profile/%s/post/%s", webHost, uri.Authority().String(), uri.RecordKey().String())
		}
	}
	if handle == "" {
		handle = SimulatedHandle
	}
	return fmt.Sprintf("%s/profile/%s/post/%s", webHost, handle, itemID)
}

// TargetPermalink returns the web URL of the item a reply answers, preferring
// the known author handle over the DID embedded in the URI
func TargetPermalink(author, targetID string) string {
	if strings.HasPrefix(targetID, "at://") {
		uri, err := syntax.ParseATURI(targetID)
		if err != nil || uri.RecordKey() == "" {
			return targetID
		}
		if author == "" {
			author = uri.Authority().String()
		}
		return fmt.Sprintf("%s/profile/%s/post/%s", webHost, author, uri.RecordKey().String())
	}
	if author == "" {
		return targetID
	}
	return fmt.Sprintf("%s/profile/%s/post/%s", webHost, author, targetID)
}
