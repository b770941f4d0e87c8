package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/teranos/tcgbot/errors"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// envelope is a JSON object response body
type envelope map[string]interface{}

func timestamp() string {
	return time.Now().Format(time.RFC3339)
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return errors.Wrap(err, "failed to encode JSON")
	}
	return nil
}

// respond stamps body with the current time and writes it
func (s *Server) respond(w http.ResponseWriter, status int, body envelope) {
	body["timestamp"] = timestamp()
	if err := writeJSON(w, status, body); err != nil {
		s.logger.Debugw("Failed to write response", "error", err)
	}
}

// ok writes a 200 success response
func (s *Server) ok(w http.ResponseWriter, body envelope) {
	body["success"] = true
	s.respond(w, http.StatusOK, body)
}

// fail writes {success: false, error} with status
func (s *Server) fail(w http.ResponseWriter, status int, message string) {
	s.respond(w, status, envelope{"success": false, "error": message})
}

// failErr maps err onto a status: invalid requests are 400, missing jobs
// 404, everything else a 200 carrying success false
func (s *Server) failErr(w http.ResponseWriter, err error) {
	s.fail(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.IsInvalidRequestError(err):
		return http.StatusBadRequest
	case errors.IsNotFoundError(err):
		return http.StatusNotFound
	default:
		return http.StatusOK
	}
}

// fieldMessages are the client-facing texts for failed validations, keyed
// by struct and field
var fieldMessages = map[string]string{
	"renameRequest.Name":             "Missing new name",
	"postRequest.Content":            "Missing tweet content",
	"replyPostRequest.Content":       "Missing reply content",
	"replyPostRequest.ReplyToID":     "Missing reply_to_tweet_id",
	"scheduledRequest.Items":         "No content items provided",
	"generateReplyRequest.TweetText": "Missing tweet_text",
}

// decode reads a JSON body into v and validates it. On failure it writes
// a 400 and returns false. An empty body decodes as {}.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body != nil {
		err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
		if err != nil && err != io.EOF {
			s.fail(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
			return false
		}
	}
	if n, ok := v.(normalizer); ok {
		n.normalize()
	}

	if err := s.validate.Struct(v); err != nil {
		s.fail(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// normalizer is implemented by requests that merge alias fields before
// validation
type normalizer interface {
	normalize()
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	if msg, ok := fieldMessages[fe.StructNamespace()]; ok {
		return msg
	}
	return fmt.Sprintf("Invalid %s: failed %s", fe.Field(), fe.Tag())
}
