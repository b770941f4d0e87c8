package commands

import (
	"context"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/tcgbot/am"
	"github.com/teranos/tcgbot/errors"
	"github.com/teranos/tcgbot/poster"
)

// postTimeout bounds login plus one post
const postTimeout = 45 * time.Second

// PostCmd publishes one item without starting the server
var PostCmd = &cobra.Command{
	Use:   "post <content>",
	Short: "Publish a single post",
	Long: `Publish one post through the configured account. Without Bluesky
credentials the post is simulated and only the fabricated id is printed.

Examples:
  tcgbot post "Pack opening stream tonight!"
  tcgbot post --reply-to at://did:plc:abc/app.bsky.feed.post/3k "Congrats on the pull!"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPost,
}

var postReplyTo string

func init() {
	PostCmd.Flags().StringVar(&postReplyTo, "reply-to", "", "AT URI of the post to reply to")
}

func runPost(cmd *cobra.Command, args []string) error {
	content := strings.TrimSpace(strings.Join(args, " "))
	if content == "" {
		return errors.NewInvalidRequestError("post content cannot be empty")
	}

	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), postTimeout)
	defer cancel()

	p := poster.FromConfig(ctx, cfg)
	var res poster.Result
	if postReplyTo != "" {
		res = p.PostReply(ctx, content, postReplyTo)
	} else {
		res = p.PostItem(ctx, content)
	}
	if err := res.Err(); err != nil {
		return errors.Wrap(err, "post failed")
	}

	if res.Simulated {
		pterm.Warning.Printfln("Simulated post %s (no Bluesky credentials)", res.ItemID)
		return nil
	}
	pterm.Success.Printfln("Posted %s", res.URL)
	return nil
}
