package main

import "time"

// PreferredColor is a DiscColor or "random".
type PreferredColor string

const PreferRandom PreferredColor = "random"

type GameMode string

const (
	ModeOnline  GameMode = "online"
	ModeOffline GameMode = "offline"
)

type GameStatus string

const (
	StatusWaiting  GameStatus = "waiting"
	StatusActive   GameStatus = "active"
	StatusFinished GameStatus = "finished"
)

type FinishReason string

const (
	ReasonWin        FinishReason = "win"
	ReasonDraw       FinishReason = "draw"
	ReasonTimeout    FinishReason = "timeout"
	ReasonDisconnect FinishReason = "disconnect"
)

// TimeControl is either {type:"none"} or {type:"clock", secondsPerPlayer:N}.
type TimeControl struct {
	Type             string `json:"type"`
	SecondsPerPlayer int    `json:"secondsPerPlayer,omitempty"`
}

const (
	TimeControlNone  = "none"
	TimeControlClock = "clock"
)

func (tc TimeControl) IsClock() bool {
	return tc.Type == TimeControlClock
}

type PlayerView struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Color       DiscColor `json:"color"`
	Connected   bool      `json:"connected"`
}

type LastMove struct {
	Row   int       `json:"row"`
	Col   int       `json:"col"`
	Color DiscColor `json:"color"`
}

// GameState is the full snapshot pushed to clients on every meaningful change.
type GameState struct {
	GameID               string              `json:"gameId"`
	RoomID               string              `json:"roomId,omitempty"`
	Mode                 GameMode            `json:"mode"`
	Board                Board               `json:"board"`
	CurrentTurnColor     DiscColor           `json:"currentTurnColor"`
	Status               GameStatus          `json:"status"`
	Players              []PlayerView        `json:"players"`
	WinnerColor          DiscColor           `json:"winnerColor,omitempty"`
	WinLine              *WinLine            `json:"winLine"`
	LastMove             *LastMove           `json:"lastMove"`
	MoveCount            int                 `json:"moveCount"`
	TimeControl          TimeControl         `json:"timeControl"`
	TimeLeftMs           map[DiscColor]int64 `json:"timeLeftMs,omitempty"`
	Paused               bool                `json:"paused,omitempty"`
	DisconnectDeadlineAt int64               `json:"disconnectDeadlineAt,omitempty"`
}

// MoveRecord is one applied move, kept in the live move log and handed to the
// persistence sink as-is.
type MoveRecord struct {
	MoveNumber          int       `json:"moveNumber"`
	Color               DiscColor `json:"color"`
	Column              int       `json:"column"`
	Row                 int       `json:"row"`
	PlayedAt            time.Time `json:"playedAt"`
	TimeLeftAfterMoveMs int64     `json:"timeLeftAfterMoveMs,omitempty"`
}

// ClientEvent is the inbound message envelope. Fields beyond Type are only
// set for the event types that use them.
type ClientEvent struct {
	Type        string `json:"type"`
	PlayerToken string `json:"playerToken,omitempty"`
	Column      int    `json:"column"`
}

const (
	EventJoinRoom       = "join_room"
	EventMakeMove       = "make_move"
	EventRequestRematch = "request_rematch"
	EventDeclineRematch = "decline_rematch"
	EventHeartbeat      = "heartbeat"
)

// ServerEvent is the outbound envelope, one flat struct for every event type.
type ServerEvent struct {
	Type                 string       `json:"type"`
	State                *GameState   `json:"state,omitempty"`
	Reason               FinishReason `json:"reason,omitempty"`
	PlayerID             string       `json:"playerId,omitempty"`
	ByPlayerID           string       `json:"byPlayerId,omitempty"`
	DisconnectDeadlineAt int64        `json:"disconnectDeadlineAt,omitempty"`
	Message              string       `json:"message,omitempty"`
}

const (
	EventRoomState          = "room_state"
	EventGameStarted        = "game_started"
	EventMoveApplied        = "move_applied"
	EventTimerUpdate        = "timer_update"
	EventPlayerDisconnected = "player_disconnected"
	EventPlayerReconnected  = "player_reconnected"
	EventGameFinished       = "game_finished"
	EventRematchRequested   = "rematch_requested"
	EventRematchStarted     = "rematch_started"
	EventError              = "error_event"
)

// HTTP request/response shapes for the route layer.

type CreateRoomRequest struct {
	PreferredColor PreferredColor `json:"preferredColor"`
	TimeControl    TimeControl    `json:"timeControl"`
	DisplayName    string         `json:"displayName,omitempty"`
}

type CreateRoomResponse struct {
	RoomID      string    `json:"roomId"`
	InviteToken string    `json:"inviteToken"`
	InviteURL   string    `json:"inviteUrl"`
	PlayerToken string    `json:"playerToken"`
	YourColor   DiscColor `json:"yourColor"`
}

type InvitePreviewResponse struct {
	Valid    bool       `json:"valid"`
	RoomID   string     `json:"roomId,omitempty"`
	HostName string     `json:"hostName,omitempty"`
	Status   GameStatus `json:"status,omitempty"`
}

type JoinInviteRequest struct {
	DisplayName string `json:"displayName,omitempty"`
}

type JoinInviteResponse struct {
	RoomID      string    `json:"roomId"`
	PlayerToken string    `json:"playerToken"`
	YourColor   DiscColor `json:"yourColor"`
}

type SaveOfflineGameRequest struct {
	DisplayName    string         `json:"displayName,omitempty"`
	Difficulty     Difficulty     `json:"difficulty"`
	PreferredColor PreferredColor `json:"preferredColor"`
	PlayerColor    DiscColor      `json:"playerColor"`
	TimeControl    TimeControl    `json:"timeControl"`
	FinishedReason FinishReason   `json:"finishedReason"`
	WinnerColor    DiscColor      `json:"winnerColor,omitempty"`
	Moves          []MoveRecord   `json:"moves"`
}

type SuggestMoveRequest struct {
	Board      Board      `json:"board"`
	AiColor    DiscColor  `json:"aiColor"`
	Difficulty Difficulty `json:"difficulty"`
}

type SuggestMoveResponse struct {
	Column int `json:"column"`
}
