package models

import (
	"time"
)

// ControlInput is the per-player control snapshot. Last write wins; only the
// most recent snapshot received before a tick boundary is applied.
type ControlInput struct {
	Up    bool `json:"up"`
	Down  bool `json:"down"`
	Left  bool `json:"left"`
	Right bool `json:"right"`
	Shoot bool `json:"shoot"`
}

type Tank struct {
	OwnerID  string  `json:"ownerId"`
	Username string  `json:"username"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Heading  float64 `json:"heading"` // radians, normalized to [0, 2π)
	Health   int     `json:"health"`  // clamped to [0, MAX_HEALTH]

	LastShotTick int  `json:"-"`
	PrevShoot    bool `json:"-"`
}

type Projectile struct {
	ID      string  `json:"id"`
	OwnerID string  `json:"ownerId"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	VX      float64 `json:"vx"`
	VY      float64 `json:"vy"`

	SpawnTick int `json:"-"`
}

type GameState struct {
	ID       string           `json:"id"`
	Tick     int              `json:"tick"`
	Tanks    map[string]*Tank `json:"tanks"`
	Bullets  []*Projectile    `json:"bullets"`
	Status   string           `json:"status"` // "waiting", "active", "finished"
	WinnerID string           `json:"winnerId,omitempty"`
}

// PlayerInfo is the identity shape sent to clients (queue lists, winner info).
type PlayerInfo struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Player is one connected client. ID and Username are bound either from a
// validated token at connect time or from the first join message. ConnID
// distinguishes connections so a reconnect replaces, never duplicates.
type Player struct {
	ID       string      `json:"id"`
	Username string      `json:"username"`
	ConnID   string      `json:"-"`
	Send     chan []byte `json:"-"`
	JoinedAt time.Time   `json:"joined_at"`
}

func (p *Player) Info() PlayerInfo {
	return PlayerInfo{UserID: p.ID, Username: p.Username}
}
