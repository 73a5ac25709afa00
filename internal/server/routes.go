package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"rpsp/internal/config"
	"rpsp/internal/db"
	"rpsp/internal/events"
	"rpsp/internal/logging"
	"rpsp/internal/rooms"
)

const (
	roundBatchSize     = 50
	roundFlushInterval = 500 * time.Millisecond
)

func Run() error {
	appCfg := config.Load()
	logging.Setup(appCfg.LogLevel, appCfg.LogFormat)
	log := logging.Component("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storeOpts := rooms.DefaultOptions()
	storeOpts.MaxCodeAttempts = appCfg.MaxCodeAttempts
	storeOpts.RoomTTL = appCfg.RoomTTL
	storeOpts.FinishedTTL = appCfg.FinishedRoomTTL

	var store rooms.Store
	if appCfg.RedisAddr != "" {
		rs, err := rooms.NewRedisStore(ctx, appCfg.RedisAddr, storeOpts)
		if err != nil {
			return err
		}
		store = rs
		log.Info().Str("addr", appCfg.RedisAddr).Msg("using Redis room store")
	} else {
		store = rooms.NewMemoryStore(storeOpts)
		log.Info().Msg("REDIS_ADDR not set, using in-memory room store")
	}
	defer store.Close()

	srv := New(store, Options{
		ResultDelay: appCfg.ResultDelay,
		BaseURL:     appCfg.BaseURL,
		CreateRate:  appCfg.CreateRate,
		ChoiceRate:  appCfg.ChoiceRate,
	})

	// Optional database connection
	if appCfg.DatabaseURL != "" {
		database, err := db.Connect(appCfg.DatabaseURL)
		if err != nil {
			log.Error().Err(err).Msg("failed to connect, running without database")
		} else {
			if err := database.Migrate(); err != nil {
				log.Error().Err(err).Msg("migration failed")
			}
			srv.DB = database
			srv.RoundBuffer = make(chan db.RoundRecord, 1000)
			flushed := make(chan struct{})
			go func() {
				roundBatchWriter(ctx, database, srv.RoundBuffer, logging.Component("db"))
				close(flushed)
			}()
			defer func() {
				stop()
				<-flushed
				database.Close()
			}()
		}
	} else {
		log.Info().Msg("DATABASE_URL not set, running without database")
	}
	go srv.drainRounds(ctx)

	httpSrv := &http.Server{
		Addr:              "0.0.0.0:" + appCfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("url", appCfg.BaseURL).Msg("server listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// drainRounds consumes resolved rounds from the bus and queues them for
// the history writer when a database is configured.
func (s *Server) drainRounds(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.Bus.Rounds:
			s.log.Debug().Str("room", ev.RoomCode).Int("round", ev.Round).Str("tag", ev.Tag).Msg("round event")
			if s.RoundBuffer == nil {
				continue
			}
			select {
			case s.RoundBuffer <- roundRecord(ev):
			default:
				s.log.Warn().Str("room", ev.RoomCode).Msg("round buffer full, dropping round")
			}
		}
	}
}

func roundRecord(ev events.RoundEvent) db.RoundRecord {
	return db.RoundRecord{
		MatchID:    ev.MatchID,
		RoomCode:   ev.RoomCode,
		Round:      ev.Round,
		Verdict:    ev.Verdict,
		Tag:        ev.Tag,
		Choices:    ev.Choices,
		Winners:    ev.Winners,
		Scores:     ev.Scores,
		ResolvedAt: ev.At,
	}
}

// roundBatchWriter flushes rounds every roundBatchSize rows or
// roundFlushInterval, whichever comes first, and once more on shutdown.
func roundBatchWriter(ctx context.Context, database *db.DB, buffer chan db.RoundRecord, log zerolog.Logger) {
	ticker := time.NewTicker(roundFlushInterval)
	defer ticker.Stop()

	batch := make([]db.RoundRecord, 0, roundBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := database.BatchRecordRounds(batch); err != nil {
			log.Error().Err(err).Int("rows", len(batch)).Msg("BatchRecordRounds")
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case r := <-buffer:
					batch = append(batch, r)
				default:
					flush()
					return
				}
			}
		case r := <-buffer:
			batch = append(batch, r)
			if len(batch) >= roundBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
