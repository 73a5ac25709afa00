package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"rpsp/internal/gamedata"
	"rpsp/internal/logging"
)

type Message struct {
	Event string
	Data  string
}

// WriteSSE writes msg as one server-sent event.
func WriteSSE(w io.Writer, msg Message) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", msg.Event); err != nil {
		return err
	}
	for _, line := range strings.Split(msg.Data, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}

type Broadcaster struct {
	Mu      sync.Mutex
	Clients map[chan Message]bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		Clients: make(map[chan Message]bool),
	}
}

func (b *Broadcaster) Subscribe() chan Message {
	ch := make(chan Message, 10)
	b.Mu.Lock()
	b.Clients[ch] = true
	b.Mu.Unlock()
	return ch
}

// Unsubscribe removes ch and reports how many clients remain.
func (b *Broadcaster) Unsubscribe(ch chan Message) int {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	if b.Clients[ch] {
		delete(b.Clients, ch)
		close(ch)
	}
	return len(b.Clients)
}

func (b *Broadcaster) Broadcast(event string, data string) {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	for ch := range b.Clients {
		select {
		case ch <- Message{Event: event, Data: data}:
		default:
			// skip clients with full data channels
		}
	}
}

// closeAll ends every client stream.
func (b *Broadcaster) closeAll() {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	for ch := range b.Clients {
		close(ch)
		delete(b.Clients, ch)
	}
}

// Source opens a feed of room documents, as rooms.Store.Subscribe does.
type Source func(ctx context.Context, code string) (<-chan *gamedata.Room, func(), error)

type feed struct {
	b      *Broadcaster
	cancel func()

	mu   sync.Mutex
	last *Message
}

// publish records m as the latest snapshot and fans it out.
func (f *feed) publish(m Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = &m
	f.b.Broadcast(m.Event, m.Data)
}

// attach subscribes a client primed with the latest snapshot, so it sees
// each document exactly once.
func (f *feed) attach() chan Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := f.b.Subscribe()
	if f.last != nil {
		ch <- *f.last
	}
	return ch
}

// Registry shares one document feed per room among all of that room's
// stream clients.
type Registry struct {
	mu     sync.Mutex
	feeds  map[string]*feed
	source Source
	log    zerolog.Logger
}

func NewRegistry(source Source) *Registry {
	return &Registry{
		feeds:  make(map[string]*feed),
		source: source,
		log:    logging.Component("broadcast"),
	}
}

// Subscribe attaches a client to the room's feed, opening the feed on first
// use. The first message is the current room document.
func (r *Registry) Subscribe(ctx context.Context, code string) (chan Message, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.feeds[code]
	if !ok {
		docs, cancel, err := r.source(context.WithoutCancel(ctx), code)
		if err != nil {
			return nil, nil, err
		}
		f = &feed{b: NewBroadcaster(), cancel: cancel}
		r.feeds[code] = f
		go r.pump(code, f, docs)
	}

	ch := f.attach()

	unsubscribe := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if f.b.Unsubscribe(ch) == 0 && r.feeds[code] == f {
			delete(r.feeds, code)
			f.cancel()
		}
	}
	return ch, unsubscribe, nil
}

// Active reports how many rooms currently have an open feed.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.feeds)
}

func (r *Registry) pump(code string, f *feed, docs <-chan *gamedata.Room) {
	for room := range docs {
		data, err := json.Marshal(room.Public())
		if err != nil {
			r.log.Error().Err(err).Str("room", code).Msg("encoding room")
			continue
		}
		f.publish(Message{Event: "room", Data: string(data)})
	}

	// The room is gone. End every stream still attached.
	r.mu.Lock()
	if r.feeds[code] == f {
		delete(r.feeds, code)
	}
	r.mu.Unlock()
	f.cancel()
	f.b.Broadcast("closed", code)
	f.b.closeAll()
}
