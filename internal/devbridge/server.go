// Package devbridge runs the bridge against the web product in an ordinary
// browser tab. The page loads /bridge.js, which provides the same
// postMessage primitive a mobile web view does and tunnels it over a
// websocket.
package devbridge

import (
	_ "embed"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/websocket"
)

const (
	cookieName = "wiz_dev"
	ticketTTL  = 24 * time.Hour

	// StartParam is the query parameter the web product reads the bridge
	// script URL from.
	StartParam = "wizBridge"
)

var ErrNoClient = errors.New("devbridge: no browser attached")

//go:embed bridge.js
var bridgeScript []byte

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type ticket struct {
	Issued int64
}

type Options struct {
	StartURL  string
	CookieKey []byte
	OnMessage func(raw string)
	Logger    *slog.Logger
}

type Server struct {
	hub       *Hub
	cookies   *securecookie.SecureCookie
	startURL  string
	onMessage func(raw string)
	logger    *slog.Logger
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if len(opts.CookieKey) == 0 {
		opts.CookieKey = securecookie.GenerateRandomKey(32)
	}
	cookies := securecookie.New(opts.CookieKey, nil)
	cookies.MaxAge(int(ticketTTL / time.Second))

	return &Server{
		hub:       NewHub(opts.Logger),
		cookies:   cookies,
		startURL:  opts.StartURL,
		onMessage: opts.OnMessage,
		logger:    opts.Logger,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)

	r.Get("/", s.handleBootstrap)
	r.Get("/bridge.js", s.handleScript)
	r.Get("/bridge", s.handleSocket)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

// PostMessage broadcasts an outbound envelope to every attached tab.
func (s *Server) PostMessage(msg string) error {
	if s.hub.Broadcast([]byte(msg)) == 0 {
		return ErrNoClient
	}
	return nil
}

func (s *Server) Clients() int { return s.hub.Len() }

// handleBootstrap issues a signed ticket and sends the browser on to the
// web product with the bridge script URL attached.
func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	token, err := s.cookies.Encode(cookieName, ticket{Issued: time.Now().Unix()})
	if err != nil {
		s.logger.Error("dev bridge ticket failed", "err", err)
		http.Error(w, "ticket", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	script := url.URL{Scheme: scheme, Host: r.Host, Path: "/bridge.js", RawQuery: url.Values{"t": {token}}.Encode()}

	target, err := url.Parse(s.startURL)
	if err != nil || s.startURL == "" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(script.String()))
		return
	}
	q := target.Query()
	q.Set(StartParam, script.String())
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(bridgeScript)
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("dev bridge upgrade failed", "err", err)
		return
	}

	client := NewClient(conn, uuid.NewString())
	s.hub.Register(client)
	go client.WritePump()

	s.logger.Info("browser attached to dev bridge", "client", client.ID, "remote", r.RemoteAddr)
	client.ReadPump(s.hub, func(raw string) {
		if s.onMessage != nil {
			s.onMessage(raw)
		}
	})
}

// authorized accepts the ticket from the cookie or, for pages on another
// origin, from the t query parameter the script URL carries.
func (s *Server) authorized(r *http.Request) bool {
	var tokens []string
	if c, err := r.Cookie(cookieName); err == nil {
		tokens = append(tokens, c.Value)
	}
	if t := r.URL.Query().Get("t"); t != "" {
		tokens = append(tokens, t)
	}
	for _, token := range tokens {
		var tk ticket
		if err := s.cookies.Decode(cookieName, token, &tk); err == nil {
			return true
		}
	}
	return false
}
