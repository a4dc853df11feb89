package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Storage is the sqlite-backed persistence sink. Every write the orchestrator
// triggers runs on its own goroutine: gameplay state is the source of truth
// and a storage failure only earns a log line.
type Storage struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id TEXT PRIMARY KEY,
	invite_token TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'waiting',
	created_at DATETIME NOT NULL,
	started_at DATETIME,
	closed_at DATETIME
);
CREATE TABLE IF NOT EXISTS games (
	id TEXT PRIMARY KEY,
	room_id TEXT,
	mode TEXT NOT NULL,
	status TEXT NOT NULL,
	difficulty TEXT,
	time_control_type TEXT NOT NULL,
	seconds_per_player INTEGER,
	winner_color TEXT,
	finished_reason TEXT,
	created_at DATETIME NOT NULL,
	finished_at DATETIME
);
CREATE TABLE IF NOT EXISTS game_seats (
	game_id TEXT NOT NULL,
	seat TEXT NOT NULL,
	color TEXT NOT NULL,
	is_bot INTEGER NOT NULL DEFAULT 0,
	display_name TEXT NOT NULL,
	PRIMARY KEY (game_id, seat)
);
CREATE TABLE IF NOT EXISTS moves (
	game_id TEXT NOT NULL,
	move_number INTEGER NOT NULL,
	color TEXT NOT NULL,
	col INTEGER NOT NULL,
	row INTEGER NOT NULL,
	played_at DATETIME NOT NULL,
	time_left_after_move_ms INTEGER,
	PRIMARY KEY (game_id, move_number)
);
CREATE TABLE IF NOT EXISTS rematches (
	previous_game_id TEXT NOT NULL,
	new_game_id TEXT NOT NULL,
	colors_swapped INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (previous_game_id, new_game_id)
);
`

func NewStorage(dbPath string) (*Storage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection serializes the fire-and-forget writers; otherwise
	// concurrent writes hit SQLITE_BUSY and are silently dropped.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	log.Printf("database ready at %s", dbPath)
	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// async runs a write off the caller's goroutine and logs failures.
func (s *Storage) async(what string, fn func() error) {
	go func() {
		if err := fn(); err != nil {
			log.Printf("storage: %s: %v", what, err)
		}
	}()
}

func (s *Storage) CreateRoom(id, inviteToken string) {
	createdAt := time.Now()
	s.async("create room", func() error {
		_, err := s.db.Exec(
			`INSERT INTO rooms (id, invite_token, status, created_at) VALUES (?, ?, 'waiting', ?)`,
			id, inviteToken, createdAt)
		return err
	})
}

func (s *Storage) SetRoomStatus(id string, status GameStatus) {
	now := time.Now()
	s.async("set room status", func() error {
		var err error
		switch status {
		case StatusActive:
			_, err = s.db.Exec(`UPDATE rooms SET status = ?, started_at = ? WHERE id = ?`, status, now, id)
		case StatusFinished:
			_, err = s.db.Exec(`UPDATE rooms SET status = ?, closed_at = ? WHERE id = ?`, status, now, id)
		default:
			_, err = s.db.Exec(`UPDATE rooms SET status = ? WHERE id = ?`, status, id)
		}
		return err
	})
}

func (s *Storage) CreateGame(rec GameRecord) {
	createdAt := time.Now()
	s.async("create game", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		var secondsPerPlayer any
		if rec.TimeControl.IsClock() {
			secondsPerPlayer = rec.TimeControl.SecondsPerPlayer
		}
		var difficulty any
		if rec.Difficulty != "" {
			difficulty = string(rec.Difficulty)
		}
		var roomID any
		if rec.RoomID != "" {
			roomID = rec.RoomID
		}
		if _, err := tx.Exec(
			`INSERT INTO games (id, room_id, mode, status, difficulty, time_control_type, seconds_per_player, created_at)
			 VALUES (?, ?, ?, 'active', ?, ?, ?, ?)`,
			rec.ID, roomID, rec.Mode, difficulty, rec.TimeControl.Type, secondsPerPlayer, createdAt); err != nil {
			return err
		}
		for _, seat := range rec.Seats {
			if _, err := tx.Exec(
				`INSERT INTO game_seats (game_id, seat, color, is_bot, display_name) VALUES (?, ?, ?, ?, ?)`,
				rec.ID, seat.Seat, seat.Color, seat.IsBot, seat.DisplayName); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

func (s *Storage) RecordMove(gameID string, move MoveRecord) {
	s.async("record move", func() error {
		var timeLeft any
		if move.TimeLeftAfterMoveMs > 0 {
			timeLeft = move.TimeLeftAfterMoveMs
		}
		_, err := s.db.Exec(
			`INSERT INTO moves (game_id, move_number, color, col, row, played_at, time_left_after_move_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			gameID, move.MoveNumber, move.Color, move.Column, move.Row, move.PlayedAt, timeLeft)
		return err
	})
}

func (s *Storage) FinishGame(gameID string, reason FinishReason, winner DiscColor) {
	finishedAt := time.Now()
	s.async("finish game", func() error {
		var winnerColor any
		if winner != "" {
			winnerColor = string(winner)
		}
		_, err := s.db.Exec(
			`UPDATE games SET status = 'finished', finished_at = ?, finished_reason = ?, winner_color = ? WHERE id = ?`,
			finishedAt, reason, winnerColor, gameID)
		return err
	})
}

func (s *Storage) CreateRematch(previousGameID, newGameID string) {
	s.async("create rematch", func() error {
		_, err := s.db.Exec(
			`INSERT INTO rematches (previous_game_id, new_game_id, colors_swapped) VALUES (?, ?, 1)`,
			previousGameID, newGameID)
		return err
	})
}

// SaveOfflineGame archives a finished single-player game in one shot: the
// game row, both seats (the bot seat named "Computer"), and the move list.
func (s *Storage) SaveOfflineGame(gameID string, req SaveOfflineGameRequest, playerName string) {
	finishedAt := time.Now()
	s.async("save offline game", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		var secondsPerPlayer any
		if req.TimeControl.IsClock() {
			secondsPerPlayer = req.TimeControl.SecondsPerPlayer
		}
		var winnerColor any
		if req.WinnerColor != "" {
			winnerColor = string(req.WinnerColor)
		}
		if _, err := tx.Exec(
			`INSERT INTO games (id, mode, status, difficulty, time_control_type, seconds_per_player,
			                    winner_color, finished_reason, created_at, finished_at)
			 VALUES (?, 'offline', 'finished', ?, ?, ?, ?, ?, ?, ?)`,
			gameID, req.Difficulty, req.TimeControl.Type, secondsPerPlayer,
			winnerColor, req.FinishedReason, finishedAt, finishedAt); err != nil {
			return err
		}

		seats := []SeatRecord{
			{Seat: "p1", Color: req.PlayerColor, DisplayName: playerName},
			{Seat: "p2", Color: OppositeColor(req.PlayerColor), IsBot: true, DisplayName: "Computer"},
		}
		for _, seat := range seats {
			if _, err := tx.Exec(
				`INSERT INTO game_seats (game_id, seat, color, is_bot, display_name) VALUES (?, ?, ?, ?, ?)`,
				gameID, seat.Seat, seat.Color, seat.IsBot, seat.DisplayName); err != nil {
				return err
			}
		}
		for _, move := range req.Moves {
			var timeLeft any
			if move.TimeLeftAfterMoveMs > 0 {
				timeLeft = move.TimeLeftAfterMoveMs
			}
			if _, err := tx.Exec(
				`INSERT INTO moves (game_id, move_number, color, col, row, played_at, time_left_after_move_ms)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				gameID, move.MoveNumber, move.Color, move.Column, move.Row, move.PlayedAt, timeLeft); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// GameArchive is the stored view of a finished game, seats and moves included.
type GameArchive struct {
	ID               string       `json:"id"`
	RoomID           string       `json:"roomId,omitempty"`
	Mode             GameMode     `json:"mode"`
	Status           GameStatus   `json:"status"`
	Difficulty       Difficulty   `json:"difficulty,omitempty"`
	TimeControlType  string       `json:"timeControlType"`
	SecondsPerPlayer int          `json:"secondsPerPlayer,omitempty"`
	WinnerColor      DiscColor    `json:"winnerColor,omitempty"`
	FinishedReason   FinishReason `json:"finishedReason,omitempty"`
	Seats            []SeatView   `json:"seats"`
	Moves            []MoveRecord `json:"moves"`
}

type SeatView struct {
	Seat        string    `json:"seat"`
	Color       DiscColor `json:"color"`
	IsBot       bool      `json:"isBot"`
	DisplayName string    `json:"displayName"`
}

// GetGameByID is the one synchronous read: the archive lookup route needs an
// answer, not a fire-and-forget.
func (s *Storage) GetGameByID(gameID string) (*GameArchive, error) {
	archive := &GameArchive{ID: gameID}
	var roomID, difficulty, winnerColor, finishedReason sql.NullString
	var secondsPerPlayer sql.NullInt64

	err := s.db.QueryRow(
		`SELECT room_id, mode, status, difficulty, time_control_type, seconds_per_player, winner_color, finished_reason
		 FROM games WHERE id = ?`, gameID).
		Scan(&roomID, &archive.Mode, &archive.Status, &difficulty,
			&archive.TimeControlType, &secondsPerPlayer, &winnerColor, &finishedReason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	archive.RoomID = roomID.String
	archive.Difficulty = Difficulty(difficulty.String)
	archive.WinnerColor = DiscColor(winnerColor.String)
	archive.FinishedReason = FinishReason(finishedReason.String)
	archive.SecondsPerPlayer = int(secondsPerPlayer.Int64)

	seatRows, err := s.db.Query(
		`SELECT seat, color, is_bot, display_name FROM game_seats WHERE game_id = ? ORDER BY seat`, gameID)
	if err != nil {
		return nil, err
	}
	defer seatRows.Close()
	for seatRows.Next() {
		var seat SeatView
		if err := seatRows.Scan(&seat.Seat, &seat.Color, &seat.IsBot, &seat.DisplayName); err != nil {
			return nil, err
		}
		archive.Seats = append(archive.Seats, seat)
	}
	if err := seatRows.Err(); err != nil {
		return nil, err
	}

	moveRows, err := s.db.Query(
		`SELECT move_number, color, col, row, played_at, COALESCE(time_left_after_move_ms, 0)
		 FROM moves WHERE game_id = ? ORDER BY move_number`, gameID)
	if err != nil {
		return nil, err
	}
	defer moveRows.Close()
	for moveRows.Next() {
		var move MoveRecord
		if err := moveRows.Scan(&move.MoveNumber, &move.Color, &move.Column, &move.Row,
			&move.PlayedAt, &move.TimeLeftAfterMoveMs); err != nil {
			return nil, err
		}
		archive.Moves = append(archive.Moves, move)
	}
	return archive, moveRows.Err()
}
