package huggingchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"regexp"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/rhuss/chatrelay/pkg/api"
	"github.com/rhuss/chatrelay/pkg/debug"
	"github.com/rhuss/chatrelay/pkg/observability"
)

// maxBootstrapBody caps the JSON documents read during bootstrap.
const maxBootstrapBody = 8 << 20

// uuidPattern matches the first RFC 4122 shaped identifier in page data.
var uuidPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// Bootstrap runs the three sequential calls that open a conversation and
// submit prompt as its first user turn. On success the session is in
// StateMessageSubmitted and the returned body is the upstream event stream,
// which the caller must close.
func (c *Client) Bootstrap(ctx context.Context, sess *Session, model, prompt string) (io.ReadCloser, error) {
	if err := c.createConversation(ctx, sess, model); err != nil {
		return nil, err
	}
	if err := c.resolveSeedMessageID(ctx, sess); err != nil {
		return nil, err
	}
	return c.submitMessage(ctx, sess, prompt)
}

type createConversationRequest struct {
	Model     string `json:"model"`
	Preprompt string `json:"preprompt"`
}

// createConversation opens a conversation for model and records its id.
func (c *Client) createConversation(ctx context.Context, sess *Session, model string) error {
	body, err := json.Marshal(createConversationRequest{Model: model})
	if err != nil {
		return api.NewServerError(fmt.Sprintf("failed to marshal conversation request: %s", err))
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.conversationURL(""), bytes.NewReader(body), sess)
	if err != nil {
		return api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(c.http, observability.StepCreateConversation, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBootstrapBody))
	if err != nil {
		return mapNetworkError(observability.StepCreateConversation, err)
	}
	debug.Body(observability.StepCreateConversation, data)

	id := gjson.GetBytes(data, "conversationId")
	if id.Type != gjson.String || id.String() == "" {
		return api.NewProtocolMismatchError("upstream conversation response has no conversationId")
	}

	sess.ConversationID = id.String()
	return sess.advance(StateConversationOpened)
}

// resolveSeedMessageID reads the conversation's page data and finds the id
// of its system message, which anchors the first user turn.
func (c *Client) resolveSeedMessageID(ctx context.Context, sess *Session) error {
	url := c.conversationURL(sess.ConversationID) + "/__data.json?x-sveltekit-invalidated=11"
	req, err := c.newRequest(ctx, http.MethodGet, url, nil, sess)
	if err != nil {
		return api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err))
	}

	resp, err := c.do(c.http, observability.StepPageData, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBootstrapBody))
	if err != nil {
		return mapNetworkError(observability.StepPageData, err)
	}
	debug.Body(observability.StepPageData, data)

	id, ok := findSeedMessageID(data)
	if !ok {
		return api.NewProtocolMismatchError("upstream page data has no seed message id")
	}

	sess.SeedMessageID = id
	return sess.advance(StateMessageIDResolved)
}

// findSeedMessageID searches line-delimited page data for the system
// message id. Each line is an independent JSON document. When no line holds
// a structured match, the first UUID-shaped substring of the raw text is
// used instead.
func findSeedMessageID(data []byte) (string, bool) {
	for line := range bytes.Lines(data) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 || !gjson.ValidBytes(line) {
			continue
		}
		if id, ok := findSystemMessage(gjson.ParseBytes(line), nil); ok {
			return id, true
		}
	}

	for _, m := range uuidPattern.FindAll(data, -1) {
		if _, err := uuid.ParseBytes(m); err == nil {
			debug.Log(debug.Bootstrap, "seed message id from regex fallback", "id", string(m))
			return string(m), true
		}
	}
	return "", false
}

// findSystemMessage walks v depth-first for an object whose from field is
// "system" and returns its id. pool is the array v was found in; the page
// data serializer may store field values as integer indexes into that array,
// in which case they are dereferenced.
func findSystemMessage(v gjson.Result, pool []gjson.Result) (string, bool) {
	switch {
	case v.IsObject():
		if deref(v.Get("from"), pool).String() == "system" {
			if id := deref(v.Get("id"), pool); id.Type == gjson.String && id.String() != "" {
				return id.String(), true
			}
		}
		var found string
		v.ForEach(func(_, child gjson.Result) bool {
			if id, ok := findSystemMessage(child, pool); ok {
				found = id
				return false
			}
			return true
		})
		return found, found != ""

	case v.IsArray():
		items := v.Array()
		for _, child := range items {
			if id, ok := findSystemMessage(child, items); ok {
				return id, true
			}
		}
	}
	return "", false
}

// deref resolves an integer index into pool. Anything else is returned as is.
func deref(v gjson.Result, pool []gjson.Result) gjson.Result {
	if v.Type != gjson.Number || pool == nil {
		return v
	}
	i := int(v.Int())
	if float64(i) != v.Num || i < 0 || i >= len(pool) {
		return v
	}
	return pool[i]
}

type submitPayload struct {
	Inputs     string   `json:"inputs"`
	ID         string   `json:"id"`
	IsRetry    bool     `json:"is_retry"`
	IsContinue bool     `json:"is_continue"`
	WebSearch  bool     `json:"web_search"`
	Tools      []string `json:"tools"`
}

// submitMessage posts prompt as the first user turn. The multipart body has
// a single part named "data" holding the JSON payload. The outer content
// type is the one the multipart writer generates, carrying its boundary.
func (c *Client) submitMessage(ctx context.Context, sess *Session, prompt string) (io.ReadCloser, error) {
	payload, err := json.Marshal(submitPayload{
		Inputs: prompt,
		ID:     sess.SeedMessageID,
		Tools:  []string{},
	})
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to marshal message payload: %s", err))
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="data"`)
	header.Set("Content-Type", "application/json")
	part, err := mw.CreatePart(header)
	if err == nil {
		_, err = part.Write(payload)
	}
	if err == nil {
		err = mw.Close()
	}
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to build multipart body: %s", err))
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.conversationURL(sess.ConversationID), &body, sess)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err))
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(c.stream, observability.StepSubmitMessage, req)
	if err != nil {
		return nil, err
	}

	if err := sess.advance(StateMessageSubmitted); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}
