package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"rpsp/internal/broadcast"
	"rpsp/internal/db"
	"rpsp/internal/events"
	"rpsp/internal/logging"
	"rpsp/internal/rooms"
	"rpsp/internal/wshub"
)

type Server struct {
	Rooms       rooms.Store
	Streams     *broadcast.Registry
	Hub         *wshub.Hub
	Bus         *events.Bus
	DB          *db.DB              // nil if no database configured
	RoundBuffer chan db.RoundRecord // nil if no database configured
	ResultDelay time.Duration
	BaseURL     string

	createLimiter *rate.Limiter
	choiceLimiter *playerLimiter
	log           zerolog.Logger
	now           func() time.Time
}

type Options struct {
	ResultDelay time.Duration
	BaseURL     string
	CreateRate  int // room creations per second
	ChoiceRate  int // HTTP choices per second per player
}

func New(store rooms.Store, opts Options) *Server {
	if opts.CreateRate <= 0 {
		opts.CreateRate = 5
	}
	if opts.ChoiceRate <= 0 {
		opts.ChoiceRate = 5
	}
	return &Server{
		Rooms:         store,
		Streams:       broadcast.NewRegistry(store.Subscribe),
		Hub:           wshub.NewHub(),
		Bus:           events.NewBus(),
		ResultDelay:   opts.ResultDelay,
		BaseURL:       opts.BaseURL,
		createLimiter: rate.NewLimiter(rate.Limit(opts.CreateRate), opts.CreateRate),
		choiceLimiter: newPlayerLimiter(opts.ChoiceRate),
		log:           logging.Component("server"),
		now:           time.Now,
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, instrument(pattern, h))
	}

	handle("POST /rooms", s.handleCreateRoom)
	handle("POST /rooms/{code}/join", s.handleJoinRoom)
	handle("GET /rooms/{code}", s.handleGetRoom)
	handle("POST /rooms/{code}/choice", s.handleChoice)
	handle("POST /rooms/{code}/advance", s.handleAdvance)
	handle("POST /rooms/{code}/play-again", s.handlePlayAgain)
	handle("POST /rooms/{code}/leave", s.handleLeave)
	handle("GET /rooms/{code}/events", s.handleEvents)
	handle("GET /rooms/{code}/ws", s.handleWS)
	handle("GET /rooms/{code}/qr.png", s.handleQR)
	handle("GET /leaderboard", s.handleLeaderboard)
	handle("GET /players/{id}/stats", s.handlePlayerStats)
	handle("GET /matches/{id}", s.handleMatchRecap)
	handle("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}
