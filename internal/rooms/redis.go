package rooms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"rpsp/internal/gamedata"
	"rpsp/internal/logging"
	"rpsp/internal/metrics"
)

const keyPrefix = "rpsp:room:"

// RedisStore shares room documents between server instances. Each room is a
// JSON value with a TTL; writes use WATCH/MULTI and announce the new
// document on the room's pub/sub channel.
type RedisStore struct {
	rdb  *redis.Client
	opts Options
	log  zerolog.Logger
}

func NewRedisStore(ctx context.Context, addr string, opts Options) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisStore{
		rdb:  rdb,
		opts: opts.withDefaults(),
		log:  logging.Component("rooms.redis"),
	}, nil
}

func roomKey(code string) string        { return keyPrefix + code }
func updatesChannel(code string) string { return keyPrefix + code + ":updates" }

func (s *RedisStore) Create(ctx context.Context, build func(code string) (*gamedata.Room, error)) (*gamedata.Room, error) {
	for range s.opts.MaxCodeAttempts {
		code, err := GenerateCode()
		if err != nil {
			return nil, fmt.Errorf("generating room code: %w", err)
		}
		exists, err := s.rdb.Exists(ctx, roomKey(code)).Result()
		if err != nil {
			return nil, fmt.Errorf("checking room code: %w", err)
		}
		if exists > 0 {
			continue
		}

		room, err := build(code)
		if err != nil {
			return nil, err
		}
		room.Version = 1
		data, err := json.Marshal(room)
		if err != nil {
			return nil, fmt.Errorf("encoding room: %w", err)
		}
		ok, err := s.rdb.SetNX(ctx, roomKey(code), data, s.opts.ttl(room)).Result()
		if err != nil {
			return nil, fmt.Errorf("claiming room code: %w", err)
		}
		if ok {
			return room, nil
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", s.opts.MaxCodeAttempts, ErrCodesExhausted)
}

func (s *RedisStore) Get(ctx context.Context, code string) (*gamedata.Room, error) {
	return s.read(ctx, s.rdb, code)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) read(ctx context.Context, g getter, code string) (*gamedata.Room, error) {
	data, err := g.Get(ctx, roomKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading room: %w", err)
	}
	var room gamedata.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("decoding room: %w", err)
	}
	return &room, nil
}

func (s *RedisStore) Update(ctx context.Context, code string, fn func(*gamedata.Room) error) (*gamedata.Room, error) {
	key := roomKey(code)
	var out *gamedata.Room

	err := retryConflicts(ctx, s.opts.MaxRetries, func() error {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			room, err := s.read(ctx, tx, code)
			if err != nil {
				return err
			}

			if err := fn(room); err != nil {
				if !errors.Is(err, Remove) {
					return err
				}
				_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					pipe.Publish(ctx, updatesChannel(code), "")
					return nil
				})
				out = nil
				return err
			}

			room.Version++
			data, err := json.Marshal(room)
			if err != nil {
				return fmt.Errorf("encoding room: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, s.opts.ttl(room))
				pipe.Publish(ctx, updatesChannel(code), data)
				return nil
			})
			out = room
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			metrics.StoreConflicts.WithLabelValues("redis").Inc()
			return ErrConflict
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, code string) error {
	n, err := s.rdb.Del(ctx, roomKey(code)).Result()
	if err != nil {
		return fmt.Errorf("deleting room: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	if err := s.rdb.Publish(ctx, updatesChannel(code), "").Err(); err != nil {
		s.log.Warn().Err(err).Str("room", code).Msg("publish delete")
	}
	return nil
}

func (s *RedisStore) Subscribe(ctx context.Context, code string) (<-chan *gamedata.Room, func(), error) {
	pubsub := s.rdb.Subscribe(ctx, updatesChannel(code))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("subscribing to room: %w", err)
	}

	current, err := s.Get(ctx, code)
	if err != nil {
		pubsub.Close()
		return nil, nil, err
	}

	out := make(chan *gamedata.Room, 10)
	out <- current
	stop := make(chan struct{})

	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-stop:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				if msg.Payload == "" {
					return
				}
				var room gamedata.Room
				if err := json.Unmarshal([]byte(msg.Payload), &room); err != nil {
					s.log.Warn().Err(err).Str("room", code).Msg("decoding update")
					continue
				}
				select {
				case out <- &room:
				default:
					// skip subscribers that are not keeping up
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(stop)
			pubsub.Close()
		})
	}
	return out, cancel, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
