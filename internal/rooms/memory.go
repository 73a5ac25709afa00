package rooms

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rpsp/internal/gamedata"
	"rpsp/internal/logging"
	"rpsp/internal/metrics"
)

// MemoryStore keeps rooms in process. Documents are versioned so Update
// behaves like the Redis store: a commit fails if the version moved.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]*gamedata.Room
	subs  map[string]map[chan *gamedata.Room]struct{}
	opts  Options
	log   zerolog.Logger
	now   func() time.Time
	done  chan struct{}
	once  sync.Once
}

func NewMemoryStore(opts Options) *MemoryStore {
	s := &MemoryStore{
		rooms: make(map[string]*gamedata.Room),
		subs:  make(map[string]map[chan *gamedata.Room]struct{}),
		opts:  opts.withDefaults(),
		log:   logging.Component("rooms.memory"),
		now:   time.Now,
		done:  make(chan struct{}),
	}
	go s.sweepStale()
	return s
}

func (s *MemoryStore) Create(ctx context.Context, build func(code string) (*gamedata.Room, error)) (*gamedata.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for range s.opts.MaxCodeAttempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		code, err := GenerateCode()
		if err != nil {
			return nil, fmt.Errorf("generating room code: %w", err)
		}
		if _, exists := s.rooms[code]; exists {
			continue
		}

		room, err := build(code)
		if err != nil {
			return nil, err
		}
		room.Version = 1
		s.rooms[code] = room.Clone()
		metrics.ActiveRooms.WithLabelValues("memory").Set(float64(len(s.rooms)))
		return room, nil
	}
	return nil, fmt.Errorf("after %d attempts: %w", s.opts.MaxCodeAttempts, ErrCodesExhausted)
}

func (s *MemoryStore) Get(_ context.Context, code string) (*gamedata.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return nil, ErrNotFound
	}
	return room.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, code string, fn func(*gamedata.Room) error) (*gamedata.Room, error) {
	var out *gamedata.Room
	err := retryConflicts(ctx, s.opts.MaxRetries, func() error {
		room, err := s.Get(ctx, code)
		if err != nil {
			return err
		}
		read := room.Version

		remove := false
		if err := fn(room); err != nil {
			if !errors.Is(err, Remove) {
				return err
			}
			remove = true
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		cur, ok := s.rooms[code]
		if !ok {
			return ErrNotFound
		}
		if cur.Version != read {
			metrics.StoreConflicts.WithLabelValues("memory").Inc()
			return ErrConflict
		}

		if remove {
			s.deleteLocked(code)
			out = nil
			return nil
		}
		room.Version = read + 1
		s.rooms[code] = room
		s.publishLocked(code, room)
		out = room.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[code]; !ok {
		return ErrNotFound
	}
	s.deleteLocked(code)
	return nil
}

func (s *MemoryStore) Subscribe(_ context.Context, code string) (<-chan *gamedata.Room, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return nil, nil, ErrNotFound
	}

	ch := make(chan *gamedata.Room, 10)
	ch <- room.Clone()
	if s.subs[code] == nil {
		s.subs[code] = make(map[chan *gamedata.Room]struct{})
	}
	s.subs[code][ch] = struct{}{}

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[code][ch]; ok {
			delete(s.subs[code], ch)
			close(ch)
		}
	}
	return ch, cancel, nil
}

// List returns a snapshot of every room.
func (s *MemoryStore) List() []*gamedata.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*gamedata.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		list = append(list, r.Clone())
	}
	return list
}

func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *MemoryStore) publishLocked(code string, room *gamedata.Room) {
	for ch := range s.subs[code] {
		select {
		case ch <- room.Clone():
		default:
			// skip subscribers that are not keeping up
		}
	}
}

func (s *MemoryStore) deleteLocked(code string) {
	delete(s.rooms, code)
	for ch := range s.subs[code] {
		close(ch)
	}
	delete(s.subs, code)
	metrics.ActiveRooms.WithLabelValues("memory").Set(float64(len(s.rooms)))
}

// sweep drops rooms idle past their TTL. Finished rooms use the shorter
// finished TTL, counted from the last write.
func (s *MemoryStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for code, room := range s.rooms {
		if now.Sub(room.LastActivity) > s.opts.ttl(room) {
			s.deleteLocked(code)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) sweepStale() {
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if n := s.sweep(); n > 0 {
				s.log.Info().Int("removed", n).Msg("swept stale rooms")
			}
		}
	}
}
