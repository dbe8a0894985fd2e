// Hot Potato
//
// Players gather in a lobby, the host picks how many players to wait for, and
// once enough have joined one of them is handed the potato. The holder throws
// it to a random other player before the hold limit runs out, or is eliminated.
// The last player standing wins and the lobby reopens for another round.
//
// Features:
// - WebSockets per game ID: /hotpotato/:gameid and /hotpotato/:gameid/ws
// - Quick play at /play and /ws joins the fullest open lobby, or opens a new one
// - Each connection gets an opaque random player token; nothing is stored client-side
// - Per-connection message rate limit and ping/pong liveness deadline
// - Games auto-reaped after configurable idle timeout
// - Random 8-char game IDs via crypto/rand, with server-side collision check
// - In-browser QR button to share the current session, backed by go-qrcode

package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/hotpotato/games/hotpotato"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1024
	sendBuffer     = 32
	maxGameIDLen   = 32
)

var (
	errClientClosed = errors.New("client closed")
	errSlowClient   = errors.New("client send buffer full")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one player's websocket. Sends are queued for writePump and never
// block the session that produced them.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *Client) Send(payload []byte) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	default:
		// A client this far behind is dropped; its readPump reports the disconnect.
		go func() { _ = c.Close() }()
		return errSlowClient
	}
}

func (c *Client) Close() error {
	var err error

	c.once.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "game closed"),
			time.Now().Add(writeWait))
		err = c.conn.Close()
	})

	return err
}

func (c *Client) readPump(g *hotpotatoGame, gameID, playerID string) {
	log := g.log.With(zap.String("session", gameID), zap.String("player", playerID))

	defer func() {
		g.manager.Registry().Unregister(playerID)
		g.manager.Notify(gameID, hotpotato.Disconnect{PlayerID: playerID})
		_ = c.Close()
		log.Debug("SOCKET: Disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(g.cfg.playerTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(g.cfg.playerTimeout))
	})

	limiter := rate.NewLimiter(rate.Limit(g.cfg.rateLimit), 2*g.cfg.rateLimit)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("SOCKET: Read failed", zap.Error(err))
			}
			return
		}

		if !limiter.Allow() {
			log.Debug("SOCKET: Rate limited")
			continue
		}

		ev, err := hotpotato.DecodeClientMessage(data, playerID)
		if err != nil {
			log.Debug("SOCKET: Ignored message", zap.Error(err))
			continue
		}

		if !g.manager.Dispatch(gameID, ev) {
			log.Warn("SOCKET: Session unavailable")
			return
		}
	}
}

func (c *Client) writePump(pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// hotpotatoGame binds the session manager to HTTP.
type hotpotatoGame struct {
	cfg     *Config
	log     *zap.Logger
	path    string
	manager *hotpotato.Manager
}

func validGameID(id string) bool {
	if id == "" || len(id) > maxGameIDLen {
		return false
	}
	for _, r := range id {
		if !strings.ContainsRune(hotpotato.SessionIDChars, r) {
			return false
		}
	}
	return true
}

// serveWS attaches a websocket to the session named in the path, or to the
// quick play pick when quick is set.
func (g *hotpotatoGame) serveWS(quick bool) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if quick {
			gameID = g.manager.QuickPlay()
		}
		if !validGameID(gameID) {
			http.Error(w, "invalid game id", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			g.log.Debug("SOCKET: Upgrade failed", zap.String("remote", realIP(r)), zap.Error(err))
			return
		}

		client := newClient(conn)
		playerID := g.manager.Registry().Register(client)

		g.log.Debug("SOCKET: Connected",
			zap.String("session", gameID),
			zap.String("player", playerID),
			zap.String("remote", realIP(r)),
		)

		go client.writePump(g.cfg.playerTimeout * 9 / 10)
		client.readPump(g, gameID, playerID)
	}
}

func (g *hotpotatoGame) serveQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	gameID := ps.ByName("gameid")
	if !validGameID(gameID) {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	url := scheme + "://" + r.Host + g.cfg.prefix + g.path + "/" + gameID

	const qrSize = 320
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		g.log.Error("SERVE: QR generation failed", zap.String("session", gameID), zap.Error(err))
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	securityHeaders(g.cfg, w)
	if _, err := w.Write(png); err != nil {
		g.log.Debug("SERVE: Failed to write QR code", zap.Error(err))
	}
}

// redirectNewGame handles GET /path by generating a new random game ID
// (with server-side collision detection) and redirecting to /path/:gameid.
func (g *hotpotatoGame) redirectNewGame(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	gameID := g.manager.NewID()
	g.log.Debug("GAMES: Allocated game", zap.String("session", gameID))
	http.Redirect(w, r, g.cfg.prefix+g.path+"/"+gameID, http.StatusTemporaryRedirect)
}

func registerHotPotatoGame(ctx context.Context, cfg *Config, log *zap.Logger, path string, mux *httprouter.Router) *hotpotatoGame {
	g := &hotpotatoGame{
		cfg:     cfg,
		log:     log,
		path:    path,
		manager: hotpotato.NewManager(ctx, hotpotato.NewRegistry(log), cfg.options(log), cfg.sessionTimeout),
	}

	// Root path → redirect to new random game
	mux.GET(cfg.prefix+path, g.redirectNewGame)

	// Per-game client view (HTML)
	mux.GET(cfg.prefix+path+"/:gameid", servePage(cfg, log, "game.html"))

	// Per-game websocket
	mux.GET(cfg.prefix+path+"/:gameid/ws", g.serveWS(false))

	// Per-game QR code
	mux.GET(cfg.prefix+path+"/:gameid/qr", g.serveQR)

	// Quick play
	mux.GET(cfg.prefix+"/play", servePage(cfg, log, "game.html"))
	mux.GET(cfg.prefix+"/ws", g.serveWS(true))

	return g
}
