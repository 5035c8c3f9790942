package constants

import "time"

const (
	// Arena and simulation constants
	ARENA_WIDTH  = 800.0
	ARENA_HEIGHT = 600.0
	TICK_RATE    = 50 * time.Millisecond

	TANK_SPEED      = 2.5  // units per tick along heading
	TANK_TURN_SPEED = 0.05 // radians per tick
	TANK_RADIUS     = 16.0
	MAX_HEALTH      = 100

	PROJECTILE_SPEED    = 6.0
	PROJECTILE_RADIUS   = 4.0
	PROJECTILE_DAMAGE   = 20
	PROJECTILE_LIFETIME = 120 // ticks before a projectile expires
	MIN_FIRE_INTERVAL   = 10  // ticks between shots from the same tank

	// A paired session that never leaves "waiting" is aborted after this window
	WAITING_TIMEOUT = 10 * time.Second
	// Delay after game_ended before session state is discarded
	GRACE_PERIOD = 2 * time.Second

	// Session status values
	STATUS_WAITING  = "waiting"
	STATUS_ACTIVE   = "active"
	STATUS_FINISHED = "finished"

	// Message types
	MSG_CONNECTED          = "connected"
	MSG_JOIN_TANK_BATTLE   = "join_tank_battle"
	MSG_JOIN_QUEUE         = "join_queue"
	MSG_LEAVE_QUEUE        = "leave_queue"
	MSG_PLAYER_INPUT       = "player_input"
	MSG_PLAYER_JOINED      = "player_joined"
	MSG_GAME_STARTED       = "game_started"
	MSG_GAME_UPDATE        = "game_update"
	MSG_GAME_ENDED         = "game_ended"
	MSG_ERROR              = "error"
	MSG_PEER_OFFER         = "peer_offer"
	MSG_PEER_ANSWER        = "peer_answer"
	MSG_PEER_ICE_CANDIDATE = "peer_ice_candidate"
)
