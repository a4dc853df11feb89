package main

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"log"
	mrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Socket is the narrow transport capability a player slot needs: push one
// message to the attached connection, best effort.
type Socket interface {
	Send(data []byte)
}

// SeatRecord and GameRecord are the payloads handed to the persistence sink
// when a game starts.
type SeatRecord struct {
	Seat        string
	Color       DiscColor
	IsBot       bool
	DisplayName string
}

type GameRecord struct {
	ID             string
	RoomID         string
	PreviousGameID string
	Mode           GameMode
	Difficulty     Difficulty
	TimeControl    TimeControl
	Seats          []SeatRecord
}

// Recorder is the fire-and-forget persistence collaborator. Implementations
// must never block gameplay: failures are theirs to log and swallow.
type Recorder interface {
	CreateRoom(id, inviteToken string)
	SetRoomStatus(id string, status GameStatus)
	CreateGame(rec GameRecord)
	RecordMove(gameID string, move MoveRecord)
	FinishGame(gameID string, reason FinishReason, winner DiscColor)
	CreateRematch(previousGameID, newGameID string)
}

type playerSlot struct {
	id          string
	token       string
	displayName string
	color       DiscColor
	connected   bool
	socket      Socket
}

type activeGame struct {
	gameID               string
	board                Board
	status               GameStatus
	currentTurnColor     DiscColor
	winnerColor          DiscColor
	winLine              *WinLine
	lastMove             *LastMove
	moveCount            int
	timeControl          TimeControl
	timeLeftMs           map[DiscColor]int64
	turnStartedAt        time.Time
	paused               bool
	disconnectDeadlineAt time.Time
	disconnectPlayerID   string
	moves                []MoveRecord
	lastTimerSecond      int64
}

type roomSession struct {
	id           string
	inviteToken  string
	status       GameStatus
	host         *playerSlot
	guest        *playerSlot
	timeControl  TimeControl
	createdAt    time.Time
	currentGame  *activeGame
	rematchVotes map[string]struct{}
	// lineage of a rematch that was agreed but could not start yet because a
	// socket was detached; consumed by the next successful game start
	pendingRematchOf string
}

func (room *roomSession) players() []*playerSlot {
	if room.guest == nil {
		return []*playerSlot{room.host}
	}
	return []*playerSlot{room.host, room.guest}
}

func (room *roomSession) playerByToken(token string) *playerSlot {
	for _, player := range room.players() {
		if player.token == token {
			return player
		}
	}
	return nil
}

// firstMoverColor always moves first in a fresh game. Swapping colors on
// rematch is what changes who opens.
const firstMoverColor = Red

// RoomManager owns every live room. All state is guarded by one mutex: each
// inbound mutation (connect, disconnect, event, tick) runs to completion
// before the next, which is the whole concurrency story. Persistence writes
// happen on the Recorder's own goroutines and never hold the lock.
type RoomManager struct {
	mu              sync.Mutex
	roomsByID       map[string]*roomSession
	roomsByInvite   map[string]string
	roomsByToken    map[string]string
	store           Recorder
	publicBaseURL   string
	disconnectGrace time.Duration
	rng             *mrand.Rand
}

func NewRoomManager(store Recorder, publicBaseURL string, disconnectGrace time.Duration, rng *mrand.Rand) *RoomManager {
	return &RoomManager{
		roomsByID:       make(map[string]*roomSession),
		roomsByInvite:   make(map[string]string),
		roomsByToken:    make(map[string]string),
		store:           store,
		publicBaseURL:   strings.TrimRight(publicBaseURL, "/"),
		disconnectGrace: disconnectGrace,
		rng:             rng,
	}
}

func randomToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is in serious trouble
		log.Printf("random token: %v", err)
		return uuid.NewString()
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

func (rm *RoomManager) resolveHostColor(pref PreferredColor) DiscColor {
	switch pref {
	case PreferredColor(Red):
		return Red
	case PreferredColor(Yellow):
		return Yellow
	default:
		if rm.rng.Intn(2) == 0 {
			return Red
		}
		return Yellow
	}
}

// CreateRoom allocates a room with its host slot and invite token. No game
// starts until a guest joins and both players attach.
func (rm *RoomManager) CreateRoom(req CreateRoomRequest) CreateRoomResponse {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = randomDisplayName()
	}

	host := &playerSlot{
		id:          uuid.NewString(),
		token:       randomToken(),
		displayName: displayName,
		color:       rm.resolveHostColor(req.PreferredColor),
	}
	room := &roomSession{
		id:           uuid.NewString(),
		inviteToken:  randomToken(),
		status:       StatusWaiting,
		host:         host,
		timeControl:  req.TimeControl,
		createdAt:    time.Now(),
		rematchVotes: make(map[string]struct{}),
	}

	rm.roomsByID[room.id] = room
	rm.roomsByInvite[room.inviteToken] = room.id
	rm.roomsByToken[host.token] = room.id

	rm.store.CreateRoom(room.id, room.inviteToken)
	log.Printf("room %s created by %s (%s)", room.id, host.displayName, host.color)

	return CreateRoomResponse{
		RoomID:      room.id,
		InviteToken: room.inviteToken,
		InviteURL:   rm.publicBaseURL + "/online/join/" + room.inviteToken,
		PlayerToken: host.token,
		YourColor:   host.color,
	}
}

// PreviewInvite never mutates state; it tells a prospective guest whether the
// invite can still be redeemed.
func (rm *RoomManager) PreviewInvite(inviteToken string) InvitePreviewResponse {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	roomID, ok := rm.roomsByInvite[inviteToken]
	if !ok {
		return InvitePreviewResponse{}
	}
	room := rm.roomsByID[roomID]
	if room == nil {
		return InvitePreviewResponse{}
	}
	return InvitePreviewResponse{
		Valid:    room.status == StatusWaiting && room.guest == nil,
		RoomID:   roomID,
		HostName: room.host.displayName,
		Status:   room.status,
	}
}

// JoinByInvite fills the guest slot. The invite is single-use: the second
// caller gets ok=false.
func (rm *RoomManager) JoinByInvite(inviteToken, displayName string) (JoinInviteResponse, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	roomID, ok := rm.roomsByInvite[inviteToken]
	if !ok {
		return JoinInviteResponse{}, false
	}
	room := rm.roomsByID[roomID]
	if room == nil || room.status != StatusWaiting || room.guest != nil {
		return JoinInviteResponse{}, false
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = randomDisplayName()
	}

	guest := &playerSlot{
		id:          uuid.NewString(),
		token:       randomToken(),
		displayName: displayName,
		color:       OppositeColor(room.host.color),
	}
	room.guest = guest
	room.status = StatusActive
	clearVotes(room)
	rm.roomsByToken[guest.token] = room.id

	rm.store.SetRoomStatus(room.id, StatusActive)
	log.Printf("room %s joined by %s (%s)", room.id, guest.displayName, guest.color)

	return JoinInviteResponse{
		RoomID:      room.id,
		PlayerToken: guest.token,
		YourColor:   guest.color,
	}, true
}

// ConnectPlayer attaches a transport handle to the slot owning token. The
// fresh snapshot goes to that slot only; a reconnect during a paused game
// resumes it for both.
func (rm *RoomManager) ConnectPlayer(roomID, token string, socket Socket) bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	room := rm.roomsByID[roomID]
	if room == nil {
		return false
	}
	player := room.playerByToken(token)
	if player == nil {
		return false
	}

	player.socket = socket
	player.connected = true
	now := time.Now()
	rm.sendTo(player, ServerEvent{Type: EventRoomState, State: rm.snapshot(room, now)})

	game := room.currentGame
	if game != nil && game.paused && game.disconnectPlayerID == player.id {
		game.paused = false
		game.disconnectPlayerID = ""
		game.disconnectDeadlineAt = time.Time{}
		game.turnStartedAt = now
		rm.broadcast(room, ServerEvent{Type: EventPlayerReconnected, PlayerID: player.id})
		rm.broadcast(room, ServerEvent{Type: EventTimerUpdate, State: rm.snapshot(room, now)})
		log.Printf("room %s: %s reconnected", room.id, player.displayName)
	}

	rm.startGameIfReady(room, now)
	return true
}

// DisconnectPlayer detaches the slot. A live game pauses instead of dying;
// Tick forfeits it only once the grace deadline passes. When socket is
// non-nil, the call is ignored unless the slot still holds that exact handle,
// so a stale connection dying after a reconnect cannot pause the game.
func (rm *RoomManager) DisconnectPlayer(roomID, token string, socket Socket) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	room := rm.roomsByID[roomID]
	if room == nil {
		return
	}
	player := room.playerByToken(token)
	if player == nil {
		return
	}
	if socket != nil && player.socket != socket {
		return
	}

	player.connected = false
	player.socket = nil

	game := room.currentGame
	if game == nil || game.status != StatusActive || game.paused {
		return
	}

	now := time.Now()
	game.paused = true
	game.disconnectPlayerID = player.id
	game.disconnectDeadlineAt = now.Add(rm.disconnectGrace)

	rm.broadcast(room, ServerEvent{
		Type:                 EventPlayerDisconnected,
		PlayerID:             player.id,
		DisconnectDeadlineAt: game.disconnectDeadlineAt.UnixMilli(),
	})
	rm.broadcast(room, ServerEvent{Type: EventTimerUpdate, State: rm.snapshot(room, now)})
	log.Printf("room %s: %s disconnected, grace until %s", room.id, player.displayName,
		game.disconnectDeadlineAt.Format(time.RFC3339))
}

// HandleEvent dispatches an inbound client event. Unknown rooms and tokens
// are a silent no-op; binding tokens to connections is the caller's job.
func (rm *RoomManager) HandleEvent(roomID, token string, event ClientEvent) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	room := rm.roomsByID[roomID]
	if room == nil {
		return
	}
	player := room.playerByToken(token)
	if player == nil {
		return
	}

	switch event.Type {
	case EventMakeMove:
		rm.makeMove(room, player, event.Column)
	case EventRequestRematch:
		rm.requestRematch(room, player)
	case EventDeclineRematch:
		clearVotes(room)
	case EventHeartbeat:
		// keepalive only
	default:
		rm.sendTo(player, ServerEvent{Type: EventError, Message: "Unknown event type"})
	}
}

// Tick drives deadline expiry for every room. The caller invokes it on a
// short fixed interval and passes now explicitly so tests control the clock.
func (rm *RoomManager) Tick(now time.Time) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	for _, room := range rm.roomsByID {
		game := room.currentGame
		if game == nil || game.status != StatusActive {
			continue
		}

		if game.paused {
			if game.disconnectDeadlineAt.IsZero() || now.Before(game.disconnectDeadlineAt) {
				continue
			}
			var gone *playerSlot
			for _, player := range room.players() {
				if player.id == game.disconnectPlayerID {
					gone = player
				}
			}
			if gone == nil {
				continue
			}
			rm.finishGame(room, ReasonDisconnect, OppositeColor(gone.color), now)
			continue
		}

		if game.timeControl.IsClock() && game.timeLeftMs != nil {
			active := game.currentTurnColor
			elapsed := now.Sub(game.turnStartedAt).Milliseconds()
			remaining := game.timeLeftMs[active] - elapsed
			if remaining <= 0 {
				game.timeLeftMs[active] = 0
				rm.finishGame(room, ReasonTimeout, OppositeColor(active), now)
				continue
			}
			// broadcast at most once per whole second per room
			if second := remaining / 1000; second != game.lastTimerSecond {
				game.lastTimerSecond = second
				rm.broadcast(room, ServerEvent{Type: EventTimerUpdate, State: rm.snapshot(room, now)})
			}
		}
	}
}

func (rm *RoomManager) RoomIDByPlayerToken(token string) (string, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	roomID, ok := rm.roomsByToken[token]
	return roomID, ok
}

func clearVotes(room *roomSession) {
	for id := range room.rematchVotes {
		delete(room.rematchVotes, id)
	}
}

func (rm *RoomManager) startGameIfReady(room *roomSession, now time.Time) {
	if room.guest == nil || !room.host.connected || !room.guest.connected {
		return
	}
	if room.currentGame != nil && room.currentGame.status != StatusFinished {
		return
	}

	previousGameID := room.pendingRematchOf
	room.pendingRematchOf = ""

	game := &activeGame{
		gameID:           uuid.NewString(),
		board:            Board{},
		status:           StatusActive,
		currentTurnColor: firstMoverColor,
		timeControl:      room.timeControl,
		turnStartedAt:    now,
		lastTimerSecond:  -1,
	}
	if room.timeControl.IsClock() {
		budget := int64(room.timeControl.SecondsPerPlayer) * 1000
		game.timeLeftMs = map[DiscColor]int64{Red: budget, Yellow: budget}
		game.lastTimerSecond = int64(room.timeControl.SecondsPerPlayer)
	}

	room.currentGame = game
	clearVotes(room)

	rm.store.CreateGame(GameRecord{
		ID:             game.gameID,
		RoomID:         room.id,
		PreviousGameID: previousGameID,
		Mode:           ModeOnline,
		TimeControl:    room.timeControl,
		Seats: []SeatRecord{
			{Seat: "p1", Color: room.host.color, DisplayName: room.host.displayName},
			{Seat: "p2", Color: room.guest.color, DisplayName: room.guest.displayName},
		},
	})
	if previousGameID != "" {
		rm.store.CreateRematch(previousGameID, game.gameID)
	}

	rm.broadcast(room, ServerEvent{Type: EventGameStarted, State: rm.snapshot(room, now)})
	log.Printf("room %s: game %s started, %s to move", room.id, game.gameID, game.currentTurnColor)
}

func (rm *RoomManager) makeMove(room *roomSession, player *playerSlot, column int) {
	game := room.currentGame
	if game == nil || game.status != StatusActive {
		rm.sendTo(player, ServerEvent{Type: EventError, Message: "No active game"})
		return
	}
	if game.paused {
		rm.sendTo(player, ServerEvent{Type: EventError, Message: "Game is paused"})
		return
	}
	if player.color != game.currentTurnColor {
		rm.sendTo(player, ServerEvent{Type: EventError, Message: "Not your turn"})
		return
	}

	next, row, ok := game.board.ApplyMove(column, player.color)
	if !ok {
		rm.sendTo(player, ServerEvent{Type: EventError, Message: "Invalid move"})
		return
	}

	now := time.Now()
	var timeLeftAfterMove int64
	if game.timeControl.IsClock() && game.timeLeftMs != nil {
		elapsed := now.Sub(game.turnStartedAt).Milliseconds()
		remaining := game.timeLeftMs[player.color] - elapsed
		if remaining <= 0 {
			// the budget ran out mid-turn: the move is discarded
			game.timeLeftMs[player.color] = 0
			rm.finishGame(room, ReasonTimeout, OppositeColor(player.color), now)
			return
		}
		game.timeLeftMs[player.color] = remaining
		timeLeftAfterMove = remaining
	}

	game.board = next
	game.lastMove = &LastMove{Row: row, Col: column, Color: player.color}
	game.moveCount++

	record := MoveRecord{
		MoveNumber:          game.moveCount,
		Color:               player.color,
		Column:              column,
		Row:                 row,
		PlayedAt:            now,
		TimeLeftAfterMoveMs: timeLeftAfterMove,
	}
	game.moves = append(game.moves, record)
	rm.store.RecordMove(game.gameID, record)

	if line := game.board.FindWinLine(row, column, player.color); line != nil {
		game.winLine = line
		rm.finishGame(room, ReasonWin, player.color, now)
		return
	}
	if game.board.IsDraw() {
		rm.finishGame(room, ReasonDraw, "", now)
		return
	}

	game.currentTurnColor = OppositeColor(player.color)
	game.turnStartedAt = now
	if game.timeControl.IsClock() && game.timeLeftMs != nil {
		game.lastTimerSecond = game.timeLeftMs[game.currentTurnColor] / 1000
	}

	rm.broadcast(room, ServerEvent{Type: EventMoveApplied, State: rm.snapshot(room, now)})
}

// finishGame is idempotent: finishing an already-finished game is a no-op.
func (rm *RoomManager) finishGame(room *roomSession, reason FinishReason, winner DiscColor, now time.Time) {
	game := room.currentGame
	if game == nil || game.status == StatusFinished {
		return
	}

	game.status = StatusFinished
	game.winnerColor = winner
	game.paused = false
	game.disconnectPlayerID = ""
	game.disconnectDeadlineAt = time.Time{}

	rm.store.FinishGame(game.gameID, reason, winner)
	rm.broadcast(room, ServerEvent{Type: EventGameFinished, Reason: reason, State: rm.snapshot(room, now)})
	log.Printf("room %s: game %s finished (%s, winner %q)", room.id, game.gameID, reason, winner)
}

func (rm *RoomManager) requestRematch(room *roomSession, player *playerSlot) {
	game := room.currentGame
	if game == nil || game.status != StatusFinished || room.guest == nil {
		return
	}

	room.rematchVotes[player.id] = struct{}{}
	rm.broadcast(room, ServerEvent{Type: EventRematchRequested, ByPlayerID: player.id})

	if len(room.rematchVotes) < 2 {
		return
	}

	clearVotes(room)
	previousGameID := game.gameID
	room.pendingRematchOf = previousGameID
	room.host.color = OppositeColor(room.host.color)
	room.guest.color = OppositeColor(room.guest.color)

	now := time.Now()
	rm.startGameIfReady(room, now)
	if room.currentGame == nil || room.currentGame.gameID == previousGameID {
		// both voted but a slot dropped its socket in between; the next
		// reconnect will start the game and record the lineage
		return
	}
	rm.broadcast(room, ServerEvent{Type: EventRematchStarted, State: rm.snapshot(room, now)})
}

// effectiveTimeLeft reports the live budgets, charging the color on the move
// for time elapsed since its turn began. Paused or finished games report the
// frozen values.
func effectiveTimeLeft(game *activeGame, now time.Time) map[DiscColor]int64 {
	if game.timeLeftMs == nil {
		return nil
	}
	left := map[DiscColor]int64{
		Red:    game.timeLeftMs[Red],
		Yellow: game.timeLeftMs[Yellow],
	}
	if game.status != StatusActive || game.paused {
		return left
	}
	active := game.currentTurnColor
	remaining := left[active] - now.Sub(game.turnStartedAt).Milliseconds()
	if remaining < 0 {
		remaining = 0
	}
	left[active] = remaining
	return left
}

func (rm *RoomManager) snapshot(room *roomSession, now time.Time) *GameState {
	players := make([]PlayerView, 0, 2)
	for _, player := range room.players() {
		players = append(players, PlayerView{
			ID:          player.id,
			DisplayName: player.displayName,
			Color:       player.color,
			Connected:   player.connected,
		})
	}

	game := room.currentGame
	if game == nil {
		return &GameState{
			RoomID:           room.id,
			Mode:             ModeOnline,
			Board:            Board{},
			CurrentTurnColor: room.host.color,
			Status:           StatusWaiting,
			Players:          players,
			TimeControl:      room.timeControl,
		}
	}

	state := &GameState{
		GameID:           game.gameID,
		RoomID:           room.id,
		Mode:             ModeOnline,
		Board:            game.board,
		CurrentTurnColor: game.currentTurnColor,
		Status:           game.status,
		Players:          players,
		WinnerColor:      game.winnerColor,
		WinLine:          game.winLine,
		LastMove:         game.lastMove,
		MoveCount:        game.moveCount,
		TimeControl:      game.timeControl,
		TimeLeftMs:       effectiveTimeLeft(game, now),
		Paused:           game.paused,
	}
	if !game.disconnectDeadlineAt.IsZero() {
		state.DisconnectDeadlineAt = game.disconnectDeadlineAt.UnixMilli()
	}
	return state
}

func (rm *RoomManager) broadcast(room *roomSession, event ServerEvent) {
	for _, player := range room.players() {
		if !player.connected || player.socket == nil {
			continue
		}
		rm.sendTo(player, event)
	}
}

func (rm *RoomManager) sendTo(player *playerSlot, event ServerEvent) {
	if player.socket == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("marshal %s event: %v", event.Type, err)
		return
	}
	player.socket.Send(data)
}
