package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/alanmarkz/promptifi/internal/agent"
	"github.com/alanmarkz/promptifi/internal/auth"
	"github.com/alanmarkz/promptifi/internal/history"
	"github.com/alanmarkz/promptifi/internal/models"
	"github.com/alanmarkz/promptifi/internal/portfolio"
)

// turnTimeout bounds one conversation turn end to end, model call and tool
// network calls included.
const turnTimeout = 120 * time.Second

// Server is the HTTP API: wallet sign-in, chat turns (plain and streamed),
// and portfolio reads.
type Server struct {
	router    *mux.Router
	agent     *agent.ChatAgent
	auth      *auth.Service
	portfolio *portfolio.Service
	history   history.Store
	address   string
	server    *http.Server
	logger    zerolog.Logger
}

// NewServer wires the services into a router.
func NewServer(address string, chatAgent *agent.ChatAgent, authService *auth.Service, portfolioService *portfolio.Service, historyStore history.Store, logger zerolog.Logger) *Server {
	server := &Server{
		router:    mux.NewRouter(),
		agent:     chatAgent,
		auth:      authService,
		portfolio: portfolioService,
		history:   historyStore,
		address:   address,
		logger:    logger.With().Str("component", "api").Logger(),
	}
	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.Use(s.corsMiddleware)
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/auth/nonce", s.handleNonce).Methods("POST")
	v1.HandleFunc("/auth/verify", s.handleVerify).Methods("POST")
	v1.HandleFunc("/auth/signout", s.handleSignOut).Methods("POST")

	v1.HandleFunc("/chat", s.handleChat).Methods("POST")
	v1.HandleFunc("/chat/stream", s.handleChatStream).Methods("POST")

	v1.HandleFunc("/chains", s.handleChains).Methods("GET")
	v1.HandleFunc("/portfolio", s.handlePortfolio).Methods("GET")
	v1.HandleFunc("/conversations", s.handleConversations).Methods("GET")
	v1.HandleFunc("/conversations/{id}", s.handleConversation).Methods("GET")

	// Preflight requests must match a route for the CORS middleware to run.
	s.router.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "promptifi",
		"version":   "1.0.0",
	})
}

func (s *Server) handleNonce(w http.ResponseWriter, r *http.Request) {
	nonce, err := s.auth.IssueNonce(r.Context())
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to issue nonce", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"nonce": nonce})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Message   string `json:"message"`
		Signature string `json:"signature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if request.Message == "" || request.Signature == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "Message and signature are required", nil)
		return
	}

	session, err := s.auth.Verify(r.Context(), request.Message, request.Signature)
	if err != nil {
		switch err {
		case auth.ErrInvalidMessage, auth.ErrInvalidSignature, auth.ErrSignatureMismatch, auth.ErrNonceUnknown, auth.ErrMessageExpired:
			s.writeErrorResponse(w, http.StatusUnauthorized, "Sign-in verification failed", err)
		default:
			s.writeErrorResponse(w, http.StatusInternalServerError, "Sign-in verification failed", err)
		}
		return
	}
	s.writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		if err := s.auth.SignOut(r.Context(), token); err != nil {
			s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to sign out", err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	request, wallet, ok := s.parseChatRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), turnTimeout)
	defer cancel()

	response, err := s.agent.Turn(ctx, request, wallet)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			s.writeErrorResponse(w, http.StatusRequestTimeout, "Conversation turn timed out", err)
		} else {
			s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to process message", err)
		}
		return
	}

	s.persistTurn(ctx, response, wallet)
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	// Parse and validate before any SSE headers, so failures stay plain HTTP.
	request, wallet, ok := s.parseChatRequest(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}
	fmt.Fprintf(w, ": connected %d\n\n", time.Now().UnixNano())
	flush()

	ctx, cancel := context.WithTimeout(r.Context(), turnTimeout)
	defer cancel()

	events := make(chan models.ProgressEvent)
	go func() {
		defer close(events)
		emit := func(event models.ProgressEvent) {
			select {
			case events <- event:
			case <-ctx.Done():
			}
		}
		response, err := s.agent.TurnWithProgress(ctx, request, wallet, emit)
		if err != nil {
			emit(models.ProgressEvent{
				Type:      "error",
				Error:     fmt.Sprintf("Failed to process message: %v", err),
				Timestamp: time.Now().UTC(),
			})
			return
		}
		s.persistTurn(ctx, response, wallet)
		emit(models.ProgressEvent{
			Type:      "complete",
			Response:  response,
			Timestamp: time.Now().UTC(),
		})
	}()

	for event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
		flush()
		if event.Type == "complete" || event.Type == "error" {
			break
		}
	}
	flush()
}

func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	chains := models.Chains()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"chains": chains,
		"count":  len(chains),
	})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	session := s.sessionFromRequest(r)
	if session == nil {
		s.writeErrorResponse(w, http.StatusUnauthorized, agent.SignInMessage, nil)
		return
	}
	result, err := s.portfolio.Portfolio(r.Context(), session.Wallet)
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to load portfolio", err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	session := s.sessionFromRequest(r)
	if session == nil {
		s.writeErrorResponse(w, http.StatusUnauthorized, agent.SignInMessage, nil)
		return
	}
	ids, err := s.history.Conversations(r.Context(), session.Wallet)
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to list conversations", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": ids,
		"count":         len(ids),
	})
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	session := s.sessionFromRequest(r)
	if session == nil {
		s.writeErrorResponse(w, http.StatusUnauthorized, agent.SignInMessage, nil)
		return
	}
	conversationID := mux.Vars(r)["id"]
	messages, err := s.history.Load(r.Context(), conversationID)
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to load conversation", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversation_id": conversationID,
		"history":         messages,
	})
}

// parseChatRequest decodes and validates the shared body of the chat
// endpoints, and resolves the caller's session. An empty wallet is not an
// error here: the agent answers unauthenticated turns with a sign-in prompt.
func (s *Server) parseChatRequest(w http.ResponseWriter, r *http.Request) (*models.ChatRequest, string, bool) {
	var request models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return nil, "", false
	}
	if strings.TrimSpace(request.Message) == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "Message is required", nil)
		return nil, "", false
	}
	if request.ConversationID == "" {
		request.ConversationID = newConversationID()
	}

	wallet := ""
	if session := s.sessionFromRequest(r); session != nil {
		wallet = session.Wallet
	}
	return &request, wallet, true
}

func (s *Server) persistTurn(ctx context.Context, response *models.ChatResponse, wallet string) {
	if wallet == "" || len(response.History) < 2 {
		return
	}
	// Only the two messages this turn appended.
	appended := response.History[len(response.History)-2:]
	if err := s.history.Append(ctx, response.ConversationID, wallet, appended); err != nil {
		s.logger.Warn().Err(err).Str("conversation_id", response.ConversationID).Msg("failed to persist turn")
	}
}

func (s *Server) sessionFromRequest(r *http.Request) *auth.Session {
	token := bearerToken(r)
	if token == "" {
		return nil
	}
	session, err := s.auth.SessionFromToken(r.Context(), token)
	if err != nil {
		if err != auth.ErrSessionNotFound {
			s.logger.Warn().Err(err).Msg("session lookup failed")
		}
		return nil
	}
	return session
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func newConversationID() string {
	buf := make([]byte, 16)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// writeErrorResponse writes an error response in a consistent format. Full
// error details go to the log only; the public body carries a sanitized hint.
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	response := map[string]interface{}{
		"error":     message,
		"timestamp": time.Now().UTC(),
	}
	if err != nil {
		s.logger.Error().Err(err).Str("message", message).Msg("request failed")
		switch {
		case strings.Contains(err.Error(), "context"):
			response["details"] = "Request timeout"
		case strings.Contains(err.Error(), "failed to connect"):
			response["details"] = "External service error"
		default:
			response["details"] = "Internal processing error"
		}
	}
	s.writeJSON(w, statusCode, response)
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error().Interface("panic", err).Str("path", r.URL.Path).Msg("panic in handler")
				if w.Header().Get("Content-Type") == "" {
					s.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", fmt.Errorf("panic: %v", err))
				}
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.RequestURI).
			Str("remote", r.RemoteAddr).
			Int("status", wrapped.statusCode).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush passes through to the underlying writer so SSE streaming works
// behind the logging wrapper.
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Handler exposes the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.address,
		Handler: s.router,

		// Long write timeout to keep SSE streams alive through slow turns.
		ReadTimeout:       300 * time.Second,
		WriteTimeout:      300 * time.Second,
		IdleTimeout:       300 * time.Second,
		ReadHeaderTimeout: 30 * time.Second,
	}
	s.logger.Info().Str("address", s.address).Msg("starting API server")
	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("shutting down API server")
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}
	return nil
}
