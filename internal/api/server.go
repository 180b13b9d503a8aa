package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"tokenmart/internal/exchange"
	"tokenmart/internal/market"
	"tokenmart/internal/store"
)

// Options tune the HTTP surface. Zero values fall back to defaults in
// NewServer.
type Options struct {
	AllowedOrigins []string
	RateLimit      int
	RateWindow     time.Duration
	StaticDir      string
	ChartPoints    int
}

type Server struct {
	store       *store.Store
	engine      *exchange.Engine
	hub         *Hub
	sessions    *SessionStore
	rateLimiter *RateLimiter
	opts        Options
	upgrader    websocket.Upgrader
}

func NewServer(st *store.Store, eng *exchange.Engine, opts Options) *Server {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 120
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = time.Minute
	}
	if opts.ChartPoints <= 0 {
		opts.ChartPoints = 24
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		store:       st,
		engine:      eng,
		hub:         NewHub(),
		sessions:    NewSessionStore(st),
		rateLimiter: NewRateLimiter(opts.RateLimit, opts.RateWindow),
		opts:        opts,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return s.originAllowed(r.Header.Get("Origin"))
		},
	}
	return s
}

// originAllowed checks an Origin header against the configured list.
// An empty header is a same-origin request and always passes.
func (s *Server) originAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(s.rateLimiter.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Auth routes (no auth required)
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		// Account routes (auth required)
		r.Get("/account", s.handleGetAccount)

		// Token routes
		r.Get("/tokens", s.handleListTokens)
		r.Post("/tokens", s.handleMintToken)
		r.Get("/tokens/{symbol}/book", s.handleGetBook)
		r.Get("/tokens/{symbol}/chart", s.handleGetChart)

		// Trading routes
		r.Post("/orders", s.handleCreateOrder)
		r.Get("/orders", s.handleGetOrders) // Get user's orders
		r.Post("/orders/{id}/fill", s.handleFillOrder)
		r.Delete("/orders/{id}", s.handleCancelOrder)

		// Ledger routes
		r.Post("/transfers", s.handleTransfer)
		r.Get("/transactions", s.handleGetTransactions)
		r.Get("/trades", s.handleGetTrades)
		r.Get("/market", s.handleGetMarket)
	})

	// WebSocket
	r.Get("/ws", s.handleWebSocket)

	// Serve static files (frontend)
	if s.opts.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.opts.StaticDir)))
	}

	return r
}

type orderRequest struct {
	Type        string        `json:"order_type"`
	TokenSymbol string        `json:"token_symbol"`
	PairSymbol  string        `json:"pair_symbol"`
	Amount      numericString `json:"amount"`
	Price       numericString `json:"price"`
}

type mintRequest struct {
	Symbol      string        `json:"symbol"`
	Name        string        `json:"name"`
	TotalSupply numericString `json:"total_supply"`
}

type transferRequest struct {
	To          string        `json:"to"`
	TokenSymbol string        `json:"token_symbol"`
	Amount      numericString `json:"amount"`
	Note        string        `json:"note"`
}

type fillResponse struct {
	Order orderView `json:"order"`
	Trade txView    `json:"trade"`
}

type chartResponse struct {
	TokenSymbol string              `json:"token_symbol"`
	Points      []market.PricePoint `json:"points"`
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.store.ListTokens()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTokenViews(tokens))
}

func (s *Server) handleMintToken(w http.ResponseWriter, r *http.Request) {
	session := s.requireSession(w, r)
	if session == nil {
		return
	}

	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := s.engine.Mint(identity(session), req.Symbol, req.Name, string(req.TotalSupply))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTokenView(token))
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.engine.Book(chi.URLParam(r, "symbol"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleGetChart(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
	if _, err := s.store.GetToken(symbol); err != nil {
		writeEngineError(w, err)
		return
	}

	// The series is anchored on the latest trade so the chart's right
	// edge matches the last price shown elsewhere.
	anchor := decimal.Zero
	trades, err := s.store.TradesForToken(symbol, 1)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if len(trades) > 0 {
		anchor = trades[0].Price
	}

	points := market.NewSeriesGenerator(symbol).Series(anchor, s.opts.ChartPoints)
	writeJSON(w, http.StatusOK, chartResponse{TokenSymbol: symbol, Points: points})
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.store.ListTokens()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	trades, err := s.store.RecentTrades(500)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, market.Overview(tokens, trades))
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	session := s.requireSession(w, r)
	if session == nil {
		return
	}

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := s.engine.CreateOrder(identity(session), exchange.CreateOrderRequest{
		Type:        req.Type,
		TokenSymbol: req.TokenSymbol,
		PairSymbol:  req.PairSymbol,
		Amount:      string(req.Amount),
		Price:       string(req.Price),
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	s.broadcastBook(order.TokenSymbol)
	writeJSON(w, http.StatusCreated, toOrderView(order))
}

func (s *Server) handleFillOrder(w http.ResponseWriter, r *http.Request) {
	session := s.requireSession(w, r)
	if session == nil {
		return
	}

	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "order id required")
		return
	}

	order, trade, err := s.engine.FillOrder(identity(session), orderID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	s.broadcastBook(order.TokenSymbol)
	s.hub.Broadcast(map[string]interface{}{
		"type":  "trade",
		"trade": toTxView(trade),
	})

	writeJSON(w, http.StatusOK, fillResponse{
		Order: toOrderView(order),
		Trade: toTxView(trade),
	})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	session := s.requireSession(w, r)
	if session == nil {
		return
	}

	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "order id required")
		return
	}

	order, err := s.engine.CancelOrder(identity(session), orderID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	s.broadcastBook(order.TokenSymbol)
	writeJSON(w, http.StatusOK, toOrderView(order))
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	session := s.requireSession(w, r)
	if session == nil {
		return
	}

	orders, err := s.store.OrdersByUser(session.UserID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderViews(orders))
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	var (
		trades []*store.Transaction
		err    error
	)
	if symbol := strings.TrimSpace(r.URL.Query().Get("symbol")); symbol != "" {
		trades, err = s.store.TradesForToken(strings.ToUpper(symbol), limit)
	} else {
		trades, err = s.store.RecentTrades(limit)
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTxViews(trades))
}

func (s *Server) handleGetTransactions(w http.ResponseWriter, r *http.Request) {
	session := s.requireSession(w, r)
	if session == nil {
		return
	}

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	recs, err := s.store.TransactionsByUser(session.UserID, limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	views := make([]txView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, toPersonalTxView(rec, session.UserID))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	session := s.requireSession(w, r)
	if session == nil {
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := s.engine.Transfer(identity(session), req.To, req.TokenSymbol, string(req.Amount), req.Note)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTxView(rec))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	s.hub.Register(client)

	// Send the token list so clients know what they can trade
	if tokens, err := s.store.ListTokens(); err == nil {
		data, _ := json.Marshal(map[string]interface{}{
			"type":   "tokens",
			"tokens": toTokenViews(tokens),
		})
		client.send <- data
	}

	go client.WritePump()
	go client.ReadPump()
}

// broadcastBook pushes a fresh book snapshot for one token to every
// connected client.
func (s *Server) broadcastBook(symbol string) {
	book, err := s.engine.Book(symbol)
	if err != nil {
		return
	}
	s.hub.Broadcast(map[string]interface{}{
		"type": "book",
		"book": book,
	})
}

// Shutdown stops internal goroutines (session cleanup, rate limiter, hub)
func (s *Server) Shutdown() {
	s.sessions.Stop()
	s.rateLimiter.Stop()
	s.hub.Stop()
}
