// Package mockupstream emulates the three HuggingChat endpoints the relay
// drives, with deterministic replies. It backs the adapter tests, the
// integration tests and the mock-backend binary.
package mockupstream

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// DefaultSeedMessageID is the system message id served in page data.
const DefaultSeedMessageID = "5b0b1a36-3c4e-4e8a-9a5e-7f3d2c1b0a99"

// Bootstrap step names accepted by Config.FailStep.
const (
	StepCreateConversation = "create_conversation"
	StepPageData           = "page_data"
	StepSubmitMessage      = "submit_message"
)

// PageDataStyle selects how the seed message id appears in page data.
type PageDataStyle int

const (
	// PagePlain holds the system message as a plain nested object.
	PagePlain PageDataStyle = iota
	// PageIndexed stores field values as indexes into a flat value array.
	PageIndexed
	// PageUUIDOnly mentions the id only inside free text.
	PageUUIDOnly
	// PageEmpty contains no id at all.
	PageEmpty
)

// Config controls the mock's behavior. The zero value serves the default
// reply with plain page data.
type Config struct {
	// Tokens overrides the reply. When nil the reply is derived from the
	// prompt (see Reply).
	Tokens []string

	// ChunkSize is the number of bytes per body write. Defaults to 7, which
	// splits most frames mid-object.
	ChunkSize int

	// ChunkDelay is slept between writes.
	ChunkDelay time.Duration

	// SeedMessageID overrides DefaultSeedMessageID.
	SeedMessageID string

	PageData PageDataStyle

	// FailStep makes the named step answer with FailStatus (default 503).
	FailStep   string
	FailStatus int

	// OmitConversationID drops conversationId from the create response.
	OmitConversationID bool

	// Noise interleaves keepalive, title, reasoning, unknown and malformed
	// frames between tokens.
	Noise bool

	// OmitFinalAnswer ends the body without a finalAnswer event.
	OmitFinalAnswer bool

	// TrailingAfterFinal writes a token frame after finalAnswer, which a
	// correct client never relays.
	TrailingAfterFinal bool

	// AbortAfter aborts the connection after that many token frames. Zero
	// disables it.
	AbortAfter int
}

// Submission records one accepted user turn.
type Submission struct {
	ConversationID string
	Model          string
	Cookie         string
	ContentType    string
	Payload        map[string]any
}

// Server is the mock backend. It is safe for concurrent use.
type Server struct {
	cfg Config

	mu            sync.Mutex
	nextID        int
	conversations map[string]string // conversation id -> model
	submissions   []Submission
}

// New creates a Server.
func New(cfg Config) *Server {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 7
	}
	if cfg.SeedMessageID == "" {
		cfg.SeedMessageID = DefaultSeedMessageID
	}
	if cfg.FailStatus == 0 {
		cfg.FailStatus = http.StatusServiceUnavailable
	}
	return &Server{cfg: cfg, conversations: make(map[string]string)}
}

// Handler returns the HTTP handler serving the mock endpoints.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/chat/conversation", s.handleCreate)
	r.Get("/chat/conversation/{id}/__data.json", s.handlePageData)
	r.Post("/chat/conversation/{id}", s.handleSubmit)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return r
}

// Submissions returns a copy of the accepted submissions.
func (s *Server) Submissions() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Submission, len(s.submissions))
	copy(out, s.submissions)
	return out
}

// Conversations returns the number of conversations created.
func (s *Server) Conversations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

// Reply returns the deterministic reply for prompt.
func Reply(prompt string) []string {
	if strings.Contains(strings.ToLower(prompt), "count from 1 to 5") {
		return []string{"1", ", ", "2", ", ", "3", ", ", "4", ", ", "5"}
	}
	return []string{"Hello", ", ", "nice", " ", "day", "!"}
}

func (s *Server) fail(w http.ResponseWriter, step string) bool {
	if s.cfg.FailStep != step {
		return false
	}
	http.Error(w, fmt.Sprintf(`{"message":"mock failure at %s"}`, step), s.cfg.FailStatus)
	return true
}

func requireCookie(w http.ResponseWriter, r *http.Request) (string, bool) {
	c, err := r.Cookie("hf-chat")
	if err != nil || c.Value == "" {
		http.Error(w, `{"message":"missing session"}`, http.StatusUnauthorized)
		return "", false
	}
	return c.Value, true
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireCookie(w, r); !ok {
		return
	}
	if s.fail(w, StepCreateConversation) {
		return
	}

	var req struct {
		Model     string  `json:"model"`
		Preprompt *string `json:"preprompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Model == "" {
		http.Error(w, `{"message":"model is required"}`, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.nextID++
	id := fmt.Sprintf("%024x", s.nextID)
	s.conversations[id] = req.Model
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if s.cfg.OmitConversationID {
		w.Write([]byte(`{"status":"ok"}`))
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"conversationId": id})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	model, ok := s.conversations[id]
	s.mu.Unlock()
	if !ok {
		http.Error(w, `{"message":"conversation not found"}`, http.StatusNotFound)
		return "", false
	}
	return model, true
}

func (s *Server) handlePageData(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireCookie(w, r); !ok {
		return
	}
	if s.fail(w, StepPageData) {
		return
	}
	if _, ok := s.lookup(w, r); !ok {
		return
	}

	seed := s.cfg.SeedMessageID
	var lines []string
	switch s.cfg.PageData {
	case PagePlain:
		lines = []string{
			`{"type":"data","nodes":[{"type":"data","data":{"settings":{"activeModel":"x"}}},{"type":"data","data":{"title":"New Chat","messages":[{"id":"` + seed + `","from":"system","content":"","children":[]}]}}]}`,
			`{"type":"chunk","id":1,"data":[]}`,
		}
	case PageIndexed:
		lines = []string{
			`{"type":"data","nodes":[null,{"type":"data","data":[{"title":5,"messages":1},[2],{"id":3,"from":4,"content":6},"` + seed + `","system","New Chat",""]}]}`,
		}
	case PageUUIDOnly:
		lines = []string{
			`{"type":"data","nodes":[{"type":"data","data":{"note":"root ` + seed + `"}}]}`,
			`not json at all`,
		}
	case PageEmpty:
		lines = []string{`{"type":"data","nodes":[]}`}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(strings.Join(lines, "\n") + "\n"))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	cookie, ok := requireCookie(w, r)
	if !ok {
		return
	}
	if s.fail(w, StepSubmitMessage) {
		return
	}
	model, ok := s.lookup(w, r)
	if !ok {
		return
	}

	payload, err := readDataPart(r)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"message":%q}`, err.Error()), http.StatusBadRequest)
		return
	}
	if payload["id"] != s.cfg.SeedMessageID {
		http.Error(w, `{"message":"unknown message id"}`, http.StatusBadRequest)
		return
	}
	prompt, _ := payload["inputs"].(string)

	s.mu.Lock()
	s.submissions = append(s.submissions, Submission{
		ConversationID: chi.URLParam(r, "id"),
		Model:          model,
		Cookie:         cookie,
		ContentType:    r.Header.Get("Content-Type"),
		Payload:        payload,
	})
	s.mu.Unlock()

	tokens := s.cfg.Tokens
	if tokens == nil {
		tokens = Reply(prompt)
	}
	s.writeStream(w, r, tokens)
}

// readDataPart extracts the JSON payload of the multipart part named data,
// which must be declared as application/json.
func readDataPart(r *http.Request) (map[string]any, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		return nil, fmt.Errorf("expected multipart/form-data body")
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, fmt.Errorf("missing data part")
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() != "data" {
			continue
		}
		if ct := part.Header.Get("Content-Type"); ct != "application/json" {
			return nil, fmt.Errorf("data part has content type %q", ct)
		}
		var payload map[string]any
		if err := json.NewDecoder(part).Decode(&payload); err != nil {
			return nil, fmt.Errorf("data part is not JSON: %v", err)
		}
		return payload, nil
	}
}

// writeStream writes the reply frames in small chunks.
func (s *Server) writeStream(w http.ResponseWriter, r *http.Request, tokens []string) {
	var frames []string
	add := func(v any) {
		data, _ := json.Marshal(v)
		frames = append(frames, string(data))
	}

	if s.cfg.Noise {
		add(map[string]any{"type": "status", "status": "started"})
		add(map[string]any{"type": "status", "status": "keepAlive"})
	}
	for i, tok := range tokens {
		if s.cfg.AbortAfter > 0 && i == s.cfg.AbortAfter {
			frames = append(frames, abortMarker)
			break
		}
		add(map[string]any{"type": "stream", "token": tok})
		if s.cfg.Noise {
			switch i % 4 {
			case 0:
				add(map[string]any{"type": "status", "status": "keepAlive"})
			case 1:
				add(map[string]any{"type": "reasoning", "subtype": "status", "status": "thinking {"})
			case 2:
				frames = append(frames, `{"type":"stream",token:"broken"}`)
			case 3:
				add(map[string]any{"type": "webSearch", "messageType": "update"})
			}
		}
	}
	if s.cfg.Noise {
		add(map[string]any{"type": "title", "title": "Mock chat"})
	}
	if !s.cfg.OmitFinalAnswer {
		add(map[string]any{"type": "finalAnswer", "text": strings.Join(tokens, ""), "interrupted": false})
	}
	if s.cfg.TrailingAfterFinal {
		add(map[string]any{"type": "stream", "token": "AFTER-FINAL"})
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	// Writes are cut every ChunkSize bytes regardless of frame boundaries.
	var pending []byte
	flush := func(all bool) bool {
		for len(pending) >= s.cfg.ChunkSize || (all && len(pending) > 0) {
			n := min(s.cfg.ChunkSize, len(pending))
			if _, err := w.Write(pending[:n]); err != nil {
				return false
			}
			if flusher != nil {
				flusher.Flush()
			}
			pending = pending[n:]
			if s.cfg.ChunkDelay > 0 {
				select {
				case <-r.Context().Done():
					return false
				case <-time.After(s.cfg.ChunkDelay):
				}
			}
		}
		return true
	}

	for _, f := range frames {
		if f == abortMarker {
			if flush(true) {
				panic(http.ErrAbortHandler)
			}
			return
		}
		pending = append(pending, f...)
		pending = append(pending, '\n')
		if !flush(false) {
			return
		}
	}
	flush(true)
}

// abortMarker stands in for the point where the connection is cut.
const abortMarker = "\x00abort"
