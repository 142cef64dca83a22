package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/imnotsalty/mlschatproto/internal/design"
	"github.com/imnotsalty/mlschatproto/internal/prompts"
)

// Phase is the explicit dispatch mode for incoming turns. The identifier
// sub-dialogue and the normal oracle dispatch are mutually exclusive per turn.
type Phase int

const (
	// PhaseIdle routes user turns through the oracle controller.
	PhaseIdle Phase = iota
	// PhaseAwaitingMLSID diverts user turns to the listing pipeline until an
	// identifier shows up or the lookup succeeds.
	PhaseAwaitingMLSID
)

// Message is one turn of the transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session owns the mutable state of one conversation: the transcript, the
// design context, the dispatch phase and the transient staged-upload slot.
// All turn processing holds mu, which serializes re-entrant requests for the
// same session instead of rejecting them.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	messages []Message
	design   *design.Context
	phase    Phase

	// pendingRequest retains the user message that triggered the MLS-ID ask,
	// for category classification once the listing arrives.
	pendingRequest string
	stagedImageURL string
}

// NewSession starts a conversation seeded with the assistant greeting.
func NewSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		messages:  []Message{{Role: "assistant", Content: prompts.Greeting}},
		design:    design.NewContext(),
	}
}

// StageImage records an uploaded image URL to be attached to the next message.
func (s *Session) StageImage(url string) {
	s.mu.Lock()
	s.stagedImageURL = url
	s.mu.Unlock()
}

// Transcript returns a copy of the message history.
func (s *Session) Transcript() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// DesignSnapshot returns a copy of the current design context.
func (s *Session) DesignSnapshot() design.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := design.Context{TemplateUID: s.design.TemplateUID}
	snapshot.Modifications = append([]design.Modification{}, s.design.Modifications...)
	return snapshot
}

// Registry is the in-process session table for the HTTP server. Sessions are
// ephemeral; there is no persistence or eviction beyond process restart.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create registers a fresh session.
func (r *Registry) Create() *Session {
	session := NewSession()
	r.mu.Lock()
	r.sessions[session.ID] = session
	r.mu.Unlock()
	return session
}

// Get looks a session up by id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	return session, ok
}
