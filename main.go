package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

func main() {
	cfg := LoadConfig()

	store, err := NewStorage(cfg.DBPath)
	if err != nil {
		log.Fatalf("storage init: %v", err)
	}
	defer store.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	rooms := NewRoomManager(store, cfg.PublicBaseURL, cfg.DisconnectGrace, rng)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ticker := time.NewTicker(cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rooms.Tick(time.Now())
			}
		}
	}()

	router := newRouter(rooms, store)

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
		close(serverErrCh)
	}()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	log.Printf("connect four server listening on %s", cfg.Addr)
	select {
	case <-sigCtx.Done():
		log.Printf("shutdown signal received")
	case err, ok := <-serverErrCh:
		if ok {
			log.Printf("server error: %v", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("graceful shutdown failed: %v", err)
		server.Close()
	}
}

func newRouter(rooms *RoomManager, store *Storage) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "now": time.Now().UTC().Format(time.RFC3339)})
	})

	router.Post("/api/rooms", func(w http.ResponseWriter, r *http.Request) {
		var req CreateRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid payload"})
			return
		}
		if msg, ok := validateRoomRequest(req); !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": msg})
			return
		}
		writeJSON(w, http.StatusOK, rooms.CreateRoom(req))
	})

	router.Get("/api/invite/{inviteToken}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, rooms.PreviewInvite(chi.URLParam(r, "inviteToken")))
	})

	router.Post("/api/invite/{inviteToken}/join", func(w http.ResponseWriter, r *http.Request) {
		var req JoinInviteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid payload"})
			return
		}
		if len(req.DisplayName) > 30 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "display name too long"})
			return
		}
		joined, ok := rooms.JoinByInvite(chi.URLParam(r, "inviteToken"), req.DisplayName)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invite is not valid or already used"})
			return
		}
		writeJSON(w, http.StatusOK, joined)
	})

	router.Post("/api/offline/games", func(w http.ResponseWriter, r *http.Request) {
		var req SaveOfflineGameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid payload"})
			return
		}
		if msg, ok := validateOfflineGame(req); !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": msg})
			return
		}
		playerName := req.DisplayName
		if playerName == "" {
			playerName = "Player"
		}
		gameID := uuid.NewString()
		store.SaveOfflineGame(gameID, req, playerName)
		writeJSON(w, http.StatusOK, map[string]string{"gameId": gameID})
	})

	router.Get("/api/games/{gameID}", func(w http.ResponseWriter, r *http.Request) {
		archive, err := store.GetGameByID(chi.URLParam(r, "gameID"))
		if err != nil {
			log.Printf("game lookup: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "lookup failed"})
			return
		}
		if archive == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Game not found"})
			return
		}
		writeJSON(w, http.StatusOK, archive)
	})

	// single-player helper: the adversarial engine without any room state
	var aiMu sync.Mutex
	aiRng := rand.New(rand.NewSource(time.Now().UnixNano()))
	router.Post("/api/ai/move", func(w http.ResponseWriter, r *http.Request) {
		var req SuggestMoveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid payload"})
			return
		}
		if (req.AiColor != Red && req.AiColor != Yellow) || !ValidDifficulty(req.Difficulty) || !validBoard(req.Board) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid board or options"})
			return
		}
		aiMu.Lock()
		column := PickMove(req.Board, req.AiColor, req.Difficulty, aiRng)
		aiMu.Unlock()
		writeJSON(w, http.StatusOK, SuggestMoveResponse{Column: column})
	})

	router.Get("/ws/rooms/{roomID}", func(w http.ResponseWriter, r *http.Request) {
		serveWS(rooms, w, r)
	})

	return router
}

func validateRoomRequest(req CreateRoomRequest) (string, bool) {
	switch req.PreferredColor {
	case PreferredColor(Red), PreferredColor(Yellow), PreferRandom:
	default:
		return "invalid preferred color", false
	}
	switch req.TimeControl.Type {
	case TimeControlNone:
	case TimeControlClock:
		if req.TimeControl.SecondsPerPlayer < 10 || req.TimeControl.SecondsPerPlayer > 3600 {
			return "secondsPerPlayer must be between 10 and 3600", false
		}
	default:
		return "invalid time control", false
	}
	if len(req.DisplayName) > 30 {
		return "display name too long", false
	}
	return "", true
}

func validateOfflineGame(req SaveOfflineGameRequest) (string, bool) {
	if !ValidDifficulty(req.Difficulty) {
		return "invalid difficulty", false
	}
	if req.PlayerColor != Red && req.PlayerColor != Yellow {
		return "invalid player color", false
	}
	switch req.FinishedReason {
	case ReasonWin, ReasonDraw, ReasonTimeout, ReasonDisconnect:
	default:
		return "invalid finish reason", false
	}
	if req.WinnerColor != "" && req.WinnerColor != Red && req.WinnerColor != Yellow {
		return "invalid winner color", false
	}
	for _, move := range req.Moves {
		if move.Column < 0 || move.Column >= BoardCols || move.Row < 0 || move.Row >= BoardRows {
			return "move out of range", false
		}
		if move.Color != Red && move.Color != Yellow {
			return "invalid move color", false
		}
	}
	return "", true
}

func validBoard(b Board) bool {
	for row := 0; row < BoardRows; row++ {
		for col := 0; col < BoardCols; col++ {
			switch b[row][col] {
			case CellEmpty, Cell(Red), Cell(Yellow):
			default:
				return false
			}
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
