package server

import "strings"

// Request bodies. Validation failures map to messages in fieldMessages.

type renameRequest struct {
	Name string `json:"name" validate:"required"`
}

func (r *renameRequest) normalize() { r.Name = strings.TrimSpace(r.Name) }

type createJobRequest struct {
	Type              string                 `json:"type"`
	Name              string                 `json:"name"`
	Settings          map[string]interface{} `json:"settings"`
	MaxRepliesPerHour *int                   `json:"maxRepliesPerHour" validate:"omitempty,min=1"`
}

type postRequest struct {
	Content string   `json:"content" validate:"required"`
	Topics  []string `json:"topics"`
}

func (r *postRequest) normalize() { r.Content = strings.TrimSpace(r.Content) }

// replyPostRequest accepts the reply text as content or reply_content
type replyPostRequest struct {
	Content         string `json:"content" validate:"required"`
	ReplyContent    string `json:"reply_content"`
	ReplyToID       string `json:"reply_to_tweet_id" validate:"required"`
	OriginalAuthor  string `json:"original_tweet_author"`
	OriginalContent string `json:"original_tweet_content"`
}

func (r *replyPostRequest) normalize() {
	if strings.TrimSpace(r.Content) == "" {
		r.Content = r.ReplyContent
	}
	r.Content = strings.TrimSpace(r.Content)
	r.ReplyToID = strings.TrimSpace(r.ReplyToID)
}

type scheduledItem struct {
	Content       string `json:"content"`
	ScheduledTime string `json:"scheduled_time"`
	Topic         string `json:"topic"`
}

type scheduledRequest struct {
	Items []scheduledItem `json:"content_items" validate:"required,min=1"`
}

type generateRequest struct {
	Topic           string `json:"topic"`
	Style           string `json:"style"`
	IncludeHashtags *bool  `json:"include_hashtags"`
}

func (r *generateRequest) hashtags() bool {
	return r.IncludeHashtags == nil || *r.IncludeHashtags
}

type generateAndPostRequest struct {
	Topic           string `json:"topic"`
	PostImmediately bool   `json:"post_immediately"`
	ContentType     string `json:"content_type"`
	IncludeHashtags *bool  `json:"include_hashtags"`
}

type generateReplyRequest struct {
	TweetText           string `json:"tweet_text" validate:"required"`
	TweetAuthor         string `json:"tweet_author"`
	ConversationHistory string `json:"conversation_history"`
}
