package main

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"
)

func newTestServer(t *testing.T) (http.Handler, *Storage) {
	t.Helper()
	store, err := NewStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	rooms := NewRoomManager(store, "http://localhost:5173", 60*time.Second, rand.New(rand.NewSource(1)))
	return newRouter(rooms, store), store
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealthRoute(t *testing.T) {
	handler, _ := newTestServer(t)
	rec := doJSON(t, handler, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health returned %d", rec.Code)
	}
}

func TestCreateRoomRoute(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/rooms", CreateRoomRequest{
		PreferredColor: PreferredColor(Red),
		TimeControl:    TimeControl{Type: TimeControlClock, SecondsPerPlayer: 60},
		DisplayName:    "Alice",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create room returned %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[CreateRoomResponse](t, rec)
	if created.RoomID == "" || created.PlayerToken == "" || created.YourColor != Red {
		t.Fatalf("incomplete response: %+v", created)
	}

	for _, bad := range []CreateRoomRequest{
		{PreferredColor: "blue", TimeControl: TimeControl{Type: TimeControlNone}},
		{PreferredColor: PreferRandom, TimeControl: TimeControl{Type: TimeControlClock, SecondsPerPlayer: 5}},
		{PreferredColor: PreferRandom, TimeControl: TimeControl{Type: "hourglass"}},
	} {
		if rec := doJSON(t, handler, http.MethodPost, "/api/rooms", bad); rec.Code != http.StatusBadRequest {
			t.Fatalf("request %+v returned %d, want 400", bad, rec.Code)
		}
	}
}

func TestInviteFlowRoutes(t *testing.T) {
	handler, _ := newTestServer(t)

	created := decodeBody[CreateRoomResponse](t, doJSON(t, handler, http.MethodPost, "/api/rooms", CreateRoomRequest{
		PreferredColor: PreferredColor(Red),
		TimeControl:    TimeControl{Type: TimeControlNone},
		DisplayName:    "Alice",
	}))

	preview := decodeBody[InvitePreviewResponse](t, doJSON(t, handler, http.MethodGet, "/api/invite/"+created.InviteToken, nil))
	if !preview.Valid || preview.HostName != "Alice" {
		t.Fatalf("unexpected preview: %+v", preview)
	}

	rec := doJSON(t, handler, http.MethodPost, "/api/invite/"+created.InviteToken+"/join", JoinInviteRequest{DisplayName: "Bob"})
	if rec.Code != http.StatusOK {
		t.Fatalf("join returned %d: %s", rec.Code, rec.Body.String())
	}
	joined := decodeBody[JoinInviteResponse](t, rec)
	if joined.RoomID != created.RoomID || joined.YourColor != Yellow {
		t.Fatalf("unexpected join response: %+v", joined)
	}

	if rec := doJSON(t, handler, http.MethodPost, "/api/invite/"+created.InviteToken+"/join", JoinInviteRequest{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("second join returned %d, want 400", rec.Code)
	}
	if preview := decodeBody[InvitePreviewResponse](t, doJSON(t, handler, http.MethodGet, "/api/invite/"+created.InviteToken, nil)); preview.Valid {
		t.Fatalf("consumed invite still previews as valid")
	}
}

func TestAIMoveRoute(t *testing.T) {
	handler, _ := newTestServer(t)

	board := boardFromRows(t, [BoardRows]string{
		".......",
		".......",
		".......",
		".......",
		".......",
		"rrr....",
	})
	rec := doJSON(t, handler, http.MethodPost, "/api/ai/move", SuggestMoveRequest{
		Board:      board,
		AiColor:    Yellow,
		Difficulty: DifficultyHard,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("ai move returned %d: %s", rec.Code, rec.Body.String())
	}
	suggestion := decodeBody[SuggestMoveResponse](t, rec)
	if suggestion.Column != 3 {
		t.Fatalf("suggested %d, want 3 to block the open three", suggestion.Column)
	}
}

func TestAIMoveRouteRejectsBadInput(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/ai/move", SuggestMoveRequest{
		AiColor:    Red,
		Difficulty: "extreme",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad difficulty returned %d, want 400", rec.Code)
	}

	var board Board
	board[0][0] = "purple"
	rec = doJSON(t, handler, http.MethodPost, "/api/ai/move", SuggestMoveRequest{
		Board:      board,
		AiColor:    Red,
		Difficulty: DifficultyEasy,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("corrupt board returned %d, want 400", rec.Code)
	}
}

func TestOfflineSaveAndArchiveRoutes(t *testing.T) {
	handler, _ := newTestServer(t)

	playedAt := time.Now()
	rec := doJSON(t, handler, http.MethodPost, "/api/offline/games", SaveOfflineGameRequest{
		DisplayName:    "Alice",
		Difficulty:     DifficultyMedium,
		PreferredColor: PreferredColor(Red),
		PlayerColor:    Red,
		TimeControl:    TimeControl{Type: TimeControlNone},
		FinishedReason: ReasonWin,
		WinnerColor:    Red,
		Moves: []MoveRecord{
			{MoveNumber: 1, Color: Red, Column: 3, Row: 5, PlayedAt: playedAt},
			{MoveNumber: 2, Color: Yellow, Column: 0, Row: 5, PlayedAt: playedAt},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("offline save returned %d: %s", rec.Code, rec.Body.String())
	}
	saved := decodeBody[map[string]string](t, rec)
	gameID := saved["gameId"]
	if gameID == "" {
		t.Fatalf("no gameId in response")
	}

	// the write is asynchronous, so poll the archive route
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec = doJSON(t, handler, http.MethodGet, "/api/games/"+gameID, nil)
		if rec.Code == http.StatusOK {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("archive never appeared, last status %d", rec.Code)
		}
		time.Sleep(10 * time.Millisecond)
	}

	archive := decodeBody[GameArchive](t, rec)
	if archive.Mode != ModeOffline || archive.Status != StatusFinished || archive.WinnerColor != Red {
		t.Fatalf("unexpected archive: %+v", archive)
	}
	if len(archive.Seats) != 2 || !archive.Seats[1].IsBot || archive.Seats[1].DisplayName != "Computer" {
		t.Fatalf("unexpected seats: %+v", archive.Seats)
	}
	if len(archive.Moves) != 2 || archive.Moves[0].Column != 3 {
		t.Fatalf("unexpected moves: %+v", archive.Moves)
	}
}

func TestOfflineSaveRejectsBadGame(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/offline/games", SaveOfflineGameRequest{
		Difficulty:     DifficultyEasy,
		PlayerColor:    Red,
		TimeControl:    TimeControl{Type: TimeControlNone},
		FinishedReason: "ragequit",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad finish reason returned %d, want 400", rec.Code)
	}
}

func TestArchiveNotFound(t *testing.T) {
	handler, _ := newTestServer(t)
	rec := doJSON(t, handler, http.MethodGet, "/api/games/no-such-game", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing game returned %d, want 404", rec.Code)
	}
}
