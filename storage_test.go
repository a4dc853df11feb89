package main

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := NewStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// waitFor polls until cond holds. All writes are fire-and-forget, so reads
// after a write have to tolerate a small delay.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStorageGameLifecycle(t *testing.T) {
	store := newTestStorage(t)

	store.CreateRoom("room-1", "invite-1")
	store.SetRoomStatus("room-1", StatusActive)

	store.CreateGame(GameRecord{
		ID:          "game-1",
		RoomID:      "room-1",
		Mode:        ModeOnline,
		TimeControl: TimeControl{Type: TimeControlClock, SecondsPerPlayer: 120},
		Seats: []SeatRecord{
			{Seat: "p1", Color: Red, DisplayName: "Alice"},
			{Seat: "p2", Color: Yellow, DisplayName: "Bob"},
		},
	})
	playedAt := time.Now()
	store.RecordMove("game-1", MoveRecord{MoveNumber: 1, Color: Red, Column: 3, Row: 5, PlayedAt: playedAt, TimeLeftAfterMoveMs: 118000})
	store.RecordMove("game-1", MoveRecord{MoveNumber: 2, Color: Yellow, Column: 4, Row: 5, PlayedAt: playedAt, TimeLeftAfterMoveMs: 119500})
	store.FinishGame("game-1", ReasonWin, Red)

	var archive *GameArchive
	waitFor(t, "finished game archive", func() bool {
		got, err := store.GetGameByID("game-1")
		if err != nil {
			t.Fatalf("get game: %v", err)
		}
		if got == nil || got.Status != StatusFinished || len(got.Moves) != 2 {
			return false
		}
		archive = got
		return true
	})

	if archive.RoomID != "room-1" || archive.Mode != ModeOnline {
		t.Fatalf("unexpected archive: %+v", archive)
	}
	if archive.TimeControlType != TimeControlClock || archive.SecondsPerPlayer != 120 {
		t.Fatalf("time control not stored: %+v", archive)
	}
	if archive.WinnerColor != Red || archive.FinishedReason != ReasonWin {
		t.Fatalf("finish not stored: %+v", archive)
	}
	if len(archive.Seats) != 2 || archive.Seats[0].DisplayName != "Alice" || archive.Seats[1].Color != Yellow {
		t.Fatalf("seats not stored: %+v", archive.Seats)
	}
	if archive.Moves[0].Column != 3 || archive.Moves[1].TimeLeftAfterMoveMs != 119500 {
		t.Fatalf("moves not stored: %+v", archive.Moves)
	}

	waitFor(t, "room status update", func() bool {
		var status string
		if err := store.db.QueryRow(`SELECT status FROM rooms WHERE id = ?`, "room-1").Scan(&status); err != nil {
			return false
		}
		return status == string(StatusActive)
	})
}

func TestStorageRematchLineage(t *testing.T) {
	store := newTestStorage(t)

	for _, id := range []string{"game-1", "game-2"} {
		store.CreateGame(GameRecord{
			ID:          id,
			Mode:        ModeOnline,
			TimeControl: TimeControl{Type: TimeControlNone},
			Seats: []SeatRecord{
				{Seat: "p1", Color: Red, DisplayName: "Alice"},
				{Seat: "p2", Color: Yellow, DisplayName: "Bob"},
			},
		})
	}
	store.CreateRematch("game-1", "game-2")

	waitFor(t, "rematch row", func() bool {
		var next string
		err := store.db.QueryRow(`SELECT new_game_id FROM rematches WHERE previous_game_id = ?`, "game-1").Scan(&next)
		return err == nil && next == "game-2"
	})
}

func TestGetGameByIDMissing(t *testing.T) {
	store := newTestStorage(t)

	archive, err := store.GetGameByID("nope")
	if err != nil {
		t.Fatalf("missing game errored: %v", err)
	}
	if archive != nil {
		t.Fatalf("missing game returned %+v", archive)
	}
}
