package rooms

import (
	"context"
	"errors"
	"testing"
	"time"

	"rpsp/internal/gamedata"
)

func TestMemoryStore_CodesExhausted(t *testing.T) {
	s := NewMemoryStore(Options{MaxCodeAttempts: 3})
	defer s.Close()

	// Fill every possible code so no attempt can succeed.
	for _, a := range alphabet {
		for _, b := range alphabet {
			for _, c := range alphabet {
				for _, d := range alphabet {
					code := string([]rune{a, b, c, d})
					s.rooms[code] = &gamedata.Room{Code: code}
				}
			}
		}
	}

	_, err := s.Create(context.Background(), buildRoom("host", 2))
	if !errors.Is(err, ErrCodesExhausted) {
		t.Errorf("Create() error = %v, want ErrCodesExhausted", err)
	}
}

func TestMemoryStore_BuildErrorAborts(t *testing.T) {
	s := NewMemoryStore(Options{})
	defer s.Close()

	_, err := s.Create(context.Background(), func(code string) (*gamedata.Room, error) {
		return gamedata.NewRoom(code, "h", "", 2, 3, time.Now())
	})
	if !errors.Is(err, gamedata.ErrInvalidName) {
		t.Errorf("Create() error = %v, want ErrInvalidName", err)
	}
	if len(s.List()) != 0 {
		t.Error("failed create should not store a room")
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStore(Options{})
	defer s.Close()
	room, _ := s.Create(context.Background(), buildRoom("host", 2))

	got, _ := s.Get(context.Background(), room.Code)
	got.PointsToWin = 20

	again, _ := s.Get(context.Background(), room.Code)
	if again.PointsToWin != 3 {
		t.Error("mutating a Get() result changed the stored room")
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	s := NewMemoryStore(Options{RoomTTL: time.Hour, FinishedTTL: 5 * time.Minute})
	defer s.Close()
	ctx := context.Background()

	now := time.Now()
	s.now = func() time.Time { return now }

	idle, _ := s.Create(ctx, buildRoom("a", 2))
	fresh, _ := s.Create(ctx, buildRoom("b", 2))
	finished, _ := s.Create(ctx, buildRoom("c", 2))

	s.mu.Lock()
	s.rooms[idle.Code].LastActivity = now.Add(-2 * time.Hour)
	s.rooms[fresh.Code].LastActivity = now.Add(-10 * time.Minute)
	s.rooms[finished.Code].Status = gamedata.StatusFinished
	s.rooms[finished.Code].LastActivity = now.Add(-6 * time.Minute)
	s.mu.Unlock()

	if n := s.sweep(); n != 2 {
		t.Errorf("sweep() removed %d rooms, want 2", n)
	}
	if _, err := s.Get(ctx, fresh.Code); err != nil {
		t.Error("fresh room should survive the sweep")
	}
	if _, err := s.Get(ctx, finished.Code); !errors.Is(err, ErrNotFound) {
		t.Error("finished room should be swept after its TTL")
	}
}

func TestMemoryStore_UnsubscribeClosesChannel(t *testing.T) {
	s := NewMemoryStore(Options{})
	defer s.Close()
	room, _ := s.Create(context.Background(), buildRoom("host", 2))

	ch, cancel, err := s.Subscribe(context.Background(), room.Code)
	if err != nil {
		t.Fatal(err)
	}
	<-ch
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
}
