// Package api provides HTTP handlers and the main API server logic for the
// dialog engine.
//
// It exposes RESTful endpoints for running conversations (the chat widget's
// transport), for the editor's flow-document wire contract, and for agent
// provisioning and lead listing used by the dashboard.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Projects025/dialog-cu-marius-sub000/internal/flow"
	"github.com/Projects025/dialog-cu-marius-sub000/internal/models"
	"github.com/Projects025/dialog-cu-marius-sub000/internal/store"
)

// DefaultAddr is the default API listen address.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr          string
	MessageDelay  time.Duration
	SequencePause time.Duration
	InstantRender bool // render without simulated-typing suspensions
	Routes        []Route
}

// Route is an additional handler mounted on the server mux.
type Route struct {
	Pattern string
	Handler http.HandlerFunc
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the API listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithDelays overrides the simulated-typing timings used for conversations.
func WithDelays(messageDelay, sequencePause time.Duration) Option {
	return func(o *Opts) {
		o.MessageDelay = messageDelay
		o.SequencePause = sequencePause
	}
}

// WithInstantRender disables simulated-typing suspensions entirely.
func WithInstantRender() Option {
	return func(o *Opts) {
		o.InstantRender = true
	}
}

// WithRoute mounts an additional handler on the server mux, e.g. a channel
// webhook.
func WithRoute(pattern string, h http.HandlerFunc) Option {
	return func(o *Opts) {
		o.Routes = append(o.Routes, Route{Pattern: pattern, Handler: h})
	}
}

// managedConversation pairs a conversation with its serialization lock.
// One lock per conversation keeps the render chain single-threaded while
// letting unrelated conversations run concurrently.
type managedConversation struct {
	mu   sync.Mutex
	conv *flow.Conversation
}

// Server carries the API's collaborators and the live conversation registry.
type Server struct {
	st    store.Store
	state flow.StateManager

	mu            sync.Mutex
	conversations map[string]*managedConversation

	opts Opts
}

// NewServer creates an API server over the given store.
func NewServer(st store.Store, opts ...Option) *Server {
	cfg := Opts{
		Addr:          DefaultAddr,
		MessageDelay:  flow.DefaultMessageDelay,
		SequencePause: flow.DefaultSequencePause,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("api.NewServer configured", "addr", cfg.Addr, "messageDelay", cfg.MessageDelay, "instant", cfg.InstantRender)
	return &Server{
		st:            st,
		state:         flow.NewStoreBasedStateManager(st),
		conversations: make(map[string]*managedConversation),
		opts:          cfg,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /conversations", s.startConversationHandler)
	mux.HandleFunc("POST /conversations/{id}/response", s.conversationResponseHandler)
	mux.HandleFunc("GET /conversations/{id}", s.getConversationHandler)
	mux.HandleFunc("PUT /flows/{id}", s.putFlowHandler)
	mux.HandleFunc("GET /flows/{id}", s.getFlowHandler)
	mux.HandleFunc("POST /agents", s.createAgentHandler)
	mux.HandleFunc("GET /agents/{id}", s.getAgentHandler)
	mux.HandleFunc("GET /agents/{id}/leads", s.listLeadsHandler)
	for _, route := range s.opts.Routes {
		mux.HandleFunc(route.Pattern, route.Handler)
	}
	return mux
}

// Run starts the HTTP server and blocks until it exits.
func (s *Server) Run() error {
	slog.Info("Dialog API running", "addr", s.opts.Addr)
	return http.ListenAndServe(s.opts.Addr, s.Handler())
}

// conversationOptions assembles the engine options every new or resumed
// conversation gets.
func (s *Server) conversationOptions() []flow.Option {
	opts := []flow.Option{
		flow.WithLeadSink(s.st),
		flow.WithStateManager(s.state),
		flow.WithDelays(s.opts.MessageDelay, s.opts.SequencePause),
	}
	if s.opts.InstantRender {
		opts = append(opts, flow.WithSleep(func(ctx context.Context, d time.Duration) {}))
	}
	return opts
}

// resolveFlow loads the runnable flow for an agent: the agent's published
// flow document when one is set, otherwise the built-in master flow.
func (s *Server) resolveFlow(flowID string) (*models.Flow, error) {
	if flowID == "" || flowID == flow.MasterFlowID {
		return flow.MasterFlow(), nil
	}
	doc, err := s.st.GetFlowDocument(flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow %s: %w", flowID, err)
	}
	if doc == nil {
		return nil, models.ErrFlowNotFound
	}
	f, err := doc.ToFlow()
	if err != nil {
		return nil, fmt.Errorf("flow %s is malformed: %w", flowID, err)
	}
	return f, nil
}

// getConversation returns the managed conversation, resurrecting it from a
// persisted snapshot when the process restarted since the last turn.
func (s *Server) getConversation(ctx context.Context, id string) (*managedConversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mc, ok := s.conversations[id]; ok {
		return mc, nil
	}

	snapshot, err := s.state.GetConversationState(ctx, id)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, nil
	}
	f, err := s.resolveFlow(snapshot.FlowID)
	if err != nil {
		slog.Error("Server.getConversation: snapshot references unloadable flow", "error", err, "conversationID", id, "flowID", snapshot.FlowID)
		return nil, err
	}
	mc := &managedConversation{conv: flow.Resume(f, *snapshot, s.conversationOptions()...)}
	s.conversations[id] = mc
	return mc, nil
}

func (s *Server) registerConversation(mc *managedConversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[mc.conv.ID()] = mc
}

// errorStatus maps domain sentinel errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrAgentNotFound), errors.Is(err, models.ErrFlowNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInactiveAgent), errors.Is(err, models.ErrNoContactChannel):
		return http.StatusConflict
	case errors.Is(err, models.ErrStepNotFound):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
