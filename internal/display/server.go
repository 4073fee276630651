package display

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"sync"
	"time"

	cws "github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"clubkiosk/internal/eventbus"
	logx "clubkiosk/pkg/logx"
)

// Config controls the display server.
//
// Binding to a non-loopback address requires Token unless AllowInsecure is set.
type Config struct {
	Addr           string
	Token          string
	AllowInsecure  bool
	OriginPatterns []string
	Pprof          bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// CommandFunc executes a validated command and returns an optional reply.
type CommandFunc func(ctx context.Context, cmd Command) (any, error)

// HealthFunc returns the JSON body of /healthz.
type HealthFunc func() any

var ErrInsecureBind = errors.New("display: non-loopback addr requires token or allow_insecure")

const (
	subscribeBuffer = 64
	writeTimeout    = 5 * time.Second
)

type Server struct {
	cfg     Config
	bus     eventbus.Bus
	command CommandFunc
	health  HealthFunc
	log     logx.Logger

	mu      sync.Mutex
	addr    string
	clients int
}

func NewServer(cfg Config, bus eventbus.Bus, command CommandFunc, health HealthFunc, log logx.Logger) *Server {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:8088"
	}
	return &Server{
		cfg:     cfg,
		bus:     bus,
		command: command,
		health:  health,
		log:     log.With(logx.String("comp", "display")),
	}
}

// Addr is the bound address once Run is listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clients
}

// Run listens and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := strings.TrimSpace(s.cfg.Addr)
	if !s.cfg.AllowInsecure && s.cfg.Token == "" && !isLoopbackAddr(addr) {
		return ErrInsecureBind
	}
	if s.cfg.Token == "" && !isLoopbackAddr(addr) {
		s.log.Warn("display listening without token on non-loopback addr", logx.String("addr", addr))
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()
	s.log.Info("display server started", logx.String("addr", ln.Addr().String()), logx.Bool("pprof", s.cfg.Pprof))

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.log.Info("display server stopped")
		return ctx.Err()
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.withAuth(s.serveWS))
	mux.HandleFunc("/healthz", s.serveHealth)
	if s.cfg.Pprof {
		mux.HandleFunc("/debug/pprof/", s.withAuth(hpprof.Index))
		mux.HandleFunc("/debug/pprof/cmdline", s.withAuth(hpprof.Cmdline))
		mux.HandleFunc("/debug/pprof/profile", s.withAuth(hpprof.Profile))
		mux.HandleFunc("/debug/pprof/symbol", s.withAuth(hpprof.Symbol))
		mux.HandleFunc("/debug/pprof/trace", s.withAuth(hpprof.Trace))
	}
	return mux
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"ok": true, "clients": s.Clients()}
	if s.health != nil {
		body["kiosk"] = s.health()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := cws.Accept(w, r, &cws.AcceptOptions{OriginPatterns: s.cfg.OriginPatterns})
	if err != nil {
		s.log.Warn("websocket accept failed", logx.Err(err))
		return
	}
	defer conn.CloseNow()

	s.mu.Lock()
	s.clients++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.clients--
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsub := s.bus.Subscribe(subscribeBuffer)
	defer unsub()

	replies := make(chan Frame, 8)
	go s.readCommands(ctx, cancel, conn, replies)

	log := s.log.With(logx.String("remote", r.RemoteAddr))
	log.Debug("display client connected")
	for {
		var f Frame
		select {
		case <-ctx.Done():
			log.Debug("display client disconnected")
			_ = conn.Close(cws.StatusNormalClosure, "")
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			frame, isFrame := e.Data.(Frame)
			if !isFrame {
				continue
			}
			f = frame
		case f = <-replies:
		}
		if err := s.write(ctx, conn, f); err != nil {
			log.Debug("display write failed", logx.Err(err))
			return
		}
	}
}

func (s *Server) write(ctx context.Context, conn *cws.Conn, f Frame) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, conn, f)
}

// readCommands decodes commands until the connection fails, then cancels
// ctx. A malformed message gets an error frame and does not close the socket.
func (s *Server) readCommands(ctx context.Context, cancel context.CancelFunc, conn *cws.Conn, replies chan<- Frame) {
	defer cancel()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.reply(ctx, replies, Frame{Kind: KindError, Payload: errorPayload{Error: "malformed command"}})
			continue
		}
		if err := cmd.Validate(); err != nil {
			s.reply(ctx, replies, Frame{Kind: KindError, Screen: cmd.Type, Payload: errorPayload{Error: err.Error()}})
			continue
		}
		if s.command == nil {
			continue
		}
		out, err := s.command(ctx, cmd)
		if err != nil {
			s.log.Warn("display command failed", logx.String("type", cmd.Type), logx.Err(err))
			s.reply(ctx, replies, Frame{Kind: KindError, Screen: cmd.Type, Payload: errorPayload{Error: err.Error()}})
			continue
		}
		if out != nil {
			s.reply(ctx, replies, Frame{Kind: KindReply, Screen: cmd.Type, Payload: out})
		}
	}
}

type errorPayload struct {
	Error string `json:"error"`
}

func (s *Server) reply(ctx context.Context, replies chan<- Frame, f Frame) {
	f.At = time.Now()
	select {
	case replies <- f:
	case <-ctx.Done():
	}
}

func (s *Server) withAuth(h http.HandlerFunc) http.HandlerFunc {
	tok := strings.TrimSpace(s.cfg.Token)
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "" {
			if got == tok {
				h(w, r)
				return
			}
			unauthorized(w)
			return
		}
		const p = "Bearer "
		if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, p) && strings.TrimSpace(strings.TrimPrefix(ah, p)) == tok {
			h(w, r)
			return
		}
		unauthorized(w)
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
