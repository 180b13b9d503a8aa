package api

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"tokenmart/internal/exchange"
	"tokenmart/internal/store"
)

const sessionTTL = 24 * time.Hour

// Session represents an authenticated session
type Session struct {
	Token     string
	UserID    string
	Username  string
	ExpiresAt time.Time
}

// SessionStore manages active sessions with database persistence
type SessionStore struct {
	store  *store.Store
	mu     sync.RWMutex
	cache  map[string]*Session // In-memory cache for performance
	stopCh chan struct{}
}

func NewSessionStore(s *store.Store) *SessionStore {
	ss := &SessionStore{
		store:  s,
		cache:  make(map[string]*Session),
		stopCh: make(chan struct{}),
	}
	go ss.cleanupLoop()
	return ss
}

// cleanupLoop periodically removes expired sessions
func (ss *SessionStore) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ss.cleanup()
		case <-ss.stopCh:
			return
		}
	}
}

// cleanup removes all expired sessions
func (ss *SessionStore) cleanup() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	now := time.Now()
	for token, session := range ss.cache {
		if now.After(session.ExpiresAt) {
			delete(ss.cache, token)
		}
	}
	ss.store.CleanupExpiredSessions()
}

// Stop halts the cleanup goroutine
func (ss *SessionStore) Stop() {
	close(ss.stopCh)
}

func (ss *SessionStore) Create(user *store.User) *Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	token := generateToken()
	expiresAt := time.Now().Add(sessionTTL)
	session := &Session{
		Token:     token,
		UserID:    user.ID,
		Username:  user.Username,
		ExpiresAt: expiresAt,
	}

	ss.store.CreateSession(token, user.ID, expiresAt)
	ss.cache[token] = session
	return session
}

func (ss *SessionStore) Get(token string) *Session {
	ss.mu.RLock()
	// Check cache first
	if session, ok := ss.cache[token]; ok {
		if time.Now().Before(session.ExpiresAt) {
			ss.mu.RUnlock()
			return session
		}
	}
	ss.mu.RUnlock()

	// Not in cache or expired, check database. The persisted row only
	// carries the user ID, so the username is re-read alongside it.
	dbSession, err := ss.store.GetSession(token)
	if err != nil || dbSession == nil {
		return nil
	}
	user, err := ss.store.GetUserByID(dbSession.UserID)
	if err != nil {
		return nil
	}

	session := &Session{
		Token:     dbSession.Token,
		UserID:    dbSession.UserID,
		Username:  user.Username,
		ExpiresAt: dbSession.ExpiresAt,
	}
	ss.mu.Lock()
	ss.cache[token] = session
	ss.mu.Unlock()
	return session
}

func (ss *SessionStore) Delete(token string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.cache, token)
	ss.store.DeleteSession(token)
}

func generateToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type accountResponse struct {
	UserID   string        `json:"user_id"`
	Username string        `json:"username"`
	Balances []balanceView `json:"balances"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}

	if len(req.Username) < 3 || len(req.Username) > 32 {
		writeError(w, http.StatusBadRequest, "username must be 3-32 characters")
		return
	}

	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	user, err := s.store.CreateUser(req.Username, req.Password)
	if errors.Is(err, store.ErrUserExists) {
		writeError(w, http.StatusConflict, "username already taken")
		return
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}

	session := s.sessions.Create(user)
	writeJSON(w, http.StatusOK, authResponse{
		Token:    session.Token,
		UserID:   user.ID,
		Username: user.Username,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.store.AuthenticateUser(req.Username, req.Password)
	if errors.Is(err, store.ErrUserNotFound) || errors.Is(err, store.ErrInvalidPassword) {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}

	session := s.sessions.Create(user)
	writeJSON(w, http.StatusOK, authResponse{
		Token:    session.Token,
		UserID:   user.ID,
		Username: user.Username,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	session := s.requireSession(w, r)
	if session == nil {
		return
	}
	s.sessions.Delete(session.Token)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	session := s.requireSession(w, r)
	if session == nil {
		return
	}

	user, err := s.store.GetUserByID(session.UserID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	balances, err := s.store.UserBalances(session.UserID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, accountResponse{
		UserID:   user.ID,
		Username: user.Username,
		Balances: toBalanceViews(balances),
	})
}

func (s *Server) getSession(r *http.Request) *Session {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return nil
	}

	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil
	}

	return s.sessions.Get(parts[1])
}

// requireSession resolves the bearer token or answers 401 itself.
// Callers bail out on nil.
func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) *Session {
	session := s.getSession(r)
	if session == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return nil
	}
	return session
}

func identity(session *Session) exchange.Identity {
	return exchange.Identity{ID: session.UserID, Username: session.Username}
}
