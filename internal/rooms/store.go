package rooms

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"

	"rpsp/internal/gamedata"
)

var (
	ErrNotFound       = errors.New("room not found")
	ErrCodesExhausted = errors.New("no free room code")
	ErrConflict       = errors.New("room changed concurrently")
)

// Remove, returned from an Update func, deletes the room in the same
// transaction.
var Remove = errors.New("remove room")

// Store holds room documents. Every mutation goes through Update, which
// runs fn on a private copy and commits only if nobody else committed
// since the copy was read. Conflicts are retried; errors from fn abort the
// transaction without writing.
type Store interface {
	Create(ctx context.Context, build func(code string) (*gamedata.Room, error)) (*gamedata.Room, error)
	Get(ctx context.Context, code string) (*gamedata.Room, error)
	Update(ctx context.Context, code string, fn func(*gamedata.Room) error) (*gamedata.Room, error)
	Delete(ctx context.Context, code string) error
	// Subscribe delivers the current document, then every committed write.
	// The channel is closed when the room is removed or cancel is called.
	Subscribe(ctx context.Context, code string) (<-chan *gamedata.Room, func(), error)
	Close() error
}

type Options struct {
	MaxCodeAttempts int
	RoomTTL         time.Duration // idle rooms are dropped after this long
	FinishedTTL     time.Duration // finished rooms are dropped after this long
	SweepInterval   time.Duration
	MaxRetries      uint64
}

func DefaultOptions() Options {
	return Options{
		MaxCodeAttempts: 50,
		RoomTTL:         time.Hour,
		FinishedTTL:     5 * time.Minute,
		SweepInterval:   time.Minute,
		MaxRetries:      20,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxCodeAttempts <= 0 {
		o.MaxCodeAttempts = d.MaxCodeAttempts
	}
	if o.RoomTTL <= 0 {
		o.RoomTTL = d.RoomTTL
	}
	if o.FinishedTTL <= 0 {
		o.FinishedTTL = d.FinishedTTL
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = d.SweepInterval
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = d.MaxRetries
	}
	return o
}

// ttl is how long a room may live untouched in its current state.
func (o Options) ttl(r *gamedata.Room) time.Duration {
	if r.Status == gamedata.StatusFinished {
		return o.FinishedTTL
	}
	return o.RoomTTL
}

// retryConflicts runs op until it stops returning ErrConflict. Any other
// error ends the loop immediately.
func retryConflicts(ctx context.Context, maxRetries uint64, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 2 * time.Millisecond
	eb.MaxInterval = 100 * time.Millisecond
	eb.MaxElapsedTime = 5 * time.Second
	b := backoff.WithContext(backoff.WithMaxRetries(eb, maxRetries), ctx)

	return backoff.Retry(func() error {
		err := op()
		if err == nil || errors.Is(err, ErrConflict) {
			return err
		}
		return backoff.Permanent(err)
	}, b)
}
