// Package server exposes the quoting engine over HTTP: a one-shot JSON
// quote endpoint and a websocket trade form that streams quote snapshots
// as the client edits it.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/TrevorDev1978/bullscopeswap/internal/sizer"
)

const writeWait = 5 * time.Second

// QuoteRequest is the parsed /api/quote query.
type QuoteRequest struct {
	Sell   string // token address or "native"
	Buy    string
	Amount string // human-decimal amount
	Side   string // "sell" (default) sizes input, "buy" sizes desired output
}

// QuoteResponse is what the API returns. Amounts are raw base-unit
// decimal strings so callers keep full precision.
type QuoteResponse struct {
	Sell      string   `json:"sell"`
	Buy       string   `json:"buy"`
	AmountIn  string   `json:"amountIn"`
	AmountOut string   `json:"amountOut"`
	MinOut    string   `json:"minOut"`
	Path      []string `json:"path"`
	Router    string   `json:"router"`
	ImpactPct *float64 `json:"impactPct"` // null when the probe failed
	SellUSD   float64  `json:"sellUsd"`
	BuyUSD    float64  `json:"buyUsd"`
}

// Engine answers one-shot quote requests; the app wires the real one.
type Engine interface {
	Quote(ctx context.Context, req QuoteRequest) (QuoteResponse, error)
}

// FormFactory builds a fresh trade form for each websocket session.
type FormFactory func() *sizer.Form

// wsClient serializes writes to one connection. gorilla allows a single
// concurrent writer, and Broadcast runs on whatever goroutine committed
// the quote.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

type Server struct {
	engine   Engine
	forms    FormFactory // nil disables the interactive form protocol
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func New(engine Engine, forms FormFactory, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		engine: engine,
		forms:  forms,
		log:    log,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 15 * time.Second,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
		clients: map[*wsClient]struct{}{},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/quote", s.handleQuote)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return withCORS(mux)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := QuoteRequest{
		Sell:   q.Get("sell"),
		Buy:    q.Get("buy"),
		Amount: q.Get("amount"),
		Side:   q.Get("side"),
	}
	if req.Sell == "" || req.Buy == "" || req.Amount == "" {
		httpError(w, http.StatusBadRequest, "sell, buy and amount are required")
		return
	}
	if req.Side == "" {
		req.Side = "sell"
	}

	resp, err := s.engine.Quote(r.Context(), req)
	if err != nil {
		s.log.Warn("quote request failed", zap.String("sell", req.Sell), zap.String("buy", req.Buy), zap.Error(err))
		httpError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// formCommand is one client edit to the trade form. Absent fields leave
// their inputs alone; every present field re-arms the form's debounce.
type formCommand struct {
	Sell        *string  `json:"sell"`
	Buy         *string  `json:"buy"`
	Flip        bool     `json:"flip"`
	Amount      *string  `json:"amount"`
	Mode        *string  `json:"mode"` // "swap" or "limit"
	TargetPrice *string  `json:"targetPrice"`
	SlippageBps *int     `json:"slippageBps"`
	FromRef     *float64 `json:"fromReference"`
	Balance     *string  `json:"balance"` // raw base units
}

// formSnapshot is the wire form of sizer.Snapshot.
type formSnapshot struct {
	State       string   `json:"state"`
	Mode        string   `json:"mode"`
	Sell        string   `json:"sell"`
	Buy         string   `json:"buy"`
	AmountIn    string   `json:"amountIn"`
	AmountOut   string   `json:"amountOut"`
	MinOut      string   `json:"minOut"`
	Path        []string `json:"path,omitempty"`
	Router      string   `json:"router,omitempty"`
	ImpactPct   *float64 `json:"impactPct,omitempty"`
	TargetPrice string   `json:"targetPrice,omitempty"`
	Error       string   `json:"error,omitempty"`
}

func wireSnapshot(s sizer.Snapshot) formSnapshot {
	out := formSnapshot{
		State:     s.State.String(),
		Mode:      s.Mode.String(),
		Sell:      s.Sell,
		Buy:       s.Buy,
		AmountIn:  bigStr(s.AmountIn),
		AmountOut: bigStr(s.AmountOut),
		MinOut:    bigStr(s.MinOut),
		Path:      s.Path,
		Router:    s.Router,
		Error:     s.Err,
	}
	if s.ImpactKnown {
		v := s.ImpactPct
		out.ImpactPct = &v
	}
	if s.TargetPrice != nil {
		out.TargetPrice = s.TargetPrice.String()
	}
	return out
}

func bigStr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func applyCommand(f *sizer.Form, c formCommand) {
	if c.Sell != nil && c.Buy != nil {
		f.SetTokens(*c.Sell, *c.Buy)
	}
	if c.Flip {
		f.Flip()
	}
	if c.SlippageBps != nil {
		f.SetSlippageBps(*c.SlippageBps)
	}
	if c.Mode != nil {
		if strings.EqualFold(*c.Mode, "limit") {
			f.SetMode(sizer.ModeLimit)
		} else {
			f.SetMode(sizer.ModeSwap)
		}
	}
	if c.Balance != nil {
		if v, ok := new(big.Int).SetString(*c.Balance, 10); ok {
			f.SetBalance(v)
		} else {
			f.SetBalance(nil)
		}
	}
	if c.TargetPrice != nil {
		f.SetTargetPrice(*c.TargetPrice)
	}
	if c.FromRef != nil {
		f.SetFromReference(*c.FromRef)
	}
	if c.Amount != nil {
		f.SetAmount(*c.Amount)
	}
}

// handleWS runs one form session per connection: client messages edit the
// form, committed snapshots stream back, broadcasts ride the same
// serialized writer.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &wsClient{conn: conn}
	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()
	s.log.Debug("ws client connected", zap.String("remote", conn.RemoteAddr().String()))

	var form *sizer.Form
	if s.forms != nil {
		form = s.forms()
		form.OnUpdate(func(snap sizer.Snapshot) {
			payload, merr := json.Marshal(wireSnapshot(snap))
			if merr != nil {
				return
			}
			if werr := client.write(payload); werr != nil {
				s.drop(client)
			}
		})
	}

	go func() {
		defer func() {
			if form != nil {
				form.Stop()
			}
			s.drop(client)
		}()
		for {
			_, payload, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}
			if form == nil {
				continue
			}
			var cmd formCommand
			if jerr := json.Unmarshal(payload, &cmd); jerr != nil {
				s.log.Debug("bad ws command", zap.Error(jerr))
				continue
			}
			applyCommand(form, cmd)
		}
	}()
}

func (s *Server) drop(client *wsClient) {
	s.mu.Lock()
	delete(s.clients, client)
	s.mu.Unlock()
	_ = client.conn.Close()
}

// Broadcast pushes one payload to every connected websocket client. Each
// client's write lock keeps this safe against concurrent broadcasters and
// the form snapshot stream. Write failures drop the client.
func (s *Server) Broadcast(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.mu.Lock()
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.write(payload); err != nil {
			s.drop(c)
		}
	}
}

// Run serves until ctx is cancelled, then shuts down draining in-flight
// requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 3 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		s.mu.Lock()
		for c := range s.clients {
			_ = c.conn.Close()
		}
		s.clients = map[*wsClient]struct{}{}
		s.mu.Unlock()
		return nil
	case err := <-errCh:
		return err
	}
}

func httpError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
