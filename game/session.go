package game

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"tankbattle-backend/constants"
	"tankbattle-backend/models"
)

// Session owns the authoritative simulation state for one match. All state
// behind Mutex; the tick loop and inbound input handling serialize on it so a
// tick never observes a half-applied message.
type Session struct {
	ID      string
	Player1 *models.Player
	Player2 *models.Player
	State   *models.GameState
	Ticker  *time.Ticker
	Mutex   sync.RWMutex

	inputs       map[string]models.ControlInput
	disconnected string // userId flagged for forfeit, resolved at the next tick boundary
	ended        bool
	createdAt    time.Time
}

func NewSession(player1, player2 *models.Player) *Session {
	id := uuid.New().String()

	s := &Session{
		ID:      id,
		Player1: player1,
		Player2: player2,
		State: &models.GameState{
			ID:     id,
			Tanks:  make(map[string]*models.Tank),
			Status: constants.STATUS_WAITING,
		},
		inputs:    make(map[string]models.ControlInput),
		createdAt: time.Now(),
	}

	// Mirrored spawn points, facing each other across the arena.
	s.State.Tanks[player1.ID] = &models.Tank{
		OwnerID:      player1.ID,
		Username:     player1.Username,
		X:            constants.ARENA_WIDTH * 0.2,
		Y:            constants.ARENA_HEIGHT / 2,
		Heading:      0,
		Health:       constants.MAX_HEALTH,
		LastShotTick: -constants.MIN_FIRE_INTERVAL,
	}
	s.State.Tanks[player2.ID] = &models.Tank{
		OwnerID:      player2.ID,
		Username:     player2.Username,
		X:            constants.ARENA_WIDTH * 0.8,
		Y:            constants.ARENA_HEIGHT / 2,
		Heading:      math.Pi,
		Health:       constants.MAX_HEALTH,
		LastShotTick: -constants.MIN_FIRE_INTERVAL,
	}

	return s
}

// ApplyInput overwrites the latest control snapshot for a player. Unknown
// userIds are ignored so a malformed frame can never disturb the simulation.
func (s *Session) ApplyInput(userID string, input models.ControlInput) {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()

	if _, isPlayer := s.State.Tanks[userID]; !isPlayer {
		return
	}
	s.inputs[userID] = input
}

// MarkDisconnected flags a player for forfeit. The flag is consumed at the
// start of the next tick, never mid-computation.
func (s *Session) MarkDisconnected(userID string) {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()

	if s.disconnected == "" {
		s.disconnected = userID
	}
}

// Disconnected returns the userId flagged for forfeit, if any.
func (s *Session) Disconnected() string {
	s.Mutex.RLock()
	defer s.Mutex.RUnlock()
	return s.disconnected
}

// Activate moves a waiting session into play. No-op in any other state.
func (s *Session) Activate() {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()

	if s.State.Status == constants.STATUS_WAITING {
		s.State.Status = constants.STATUS_ACTIVE
	}
}

// WaitingExpired reports whether the session has sat in "waiting" longer
// than the allowed window and should be aborted.
func (s *Session) WaitingExpired() bool {
	s.Mutex.RLock()
	defer s.Mutex.RUnlock()
	return s.State.Status == constants.STATUS_WAITING &&
		time.Since(s.createdAt) > constants.WAITING_TIMEOUT
}

func (s *Session) Status() string {
	s.Mutex.RLock()
	defer s.Mutex.RUnlock()
	return s.State.Status
}

func (s *Session) HasPlayer(userID string) bool {
	return s.Player1.ID == userID || s.Player2.ID == userID
}

// PlayerInfo returns the identity of one of the session's players.
func (s *Session) PlayerInfo(userID string) models.PlayerInfo {
	if s.Player1.ID == userID {
		return s.Player1.Info()
	}
	return s.Player2.Info()
}

func (s *Session) Opponent(userID string) *models.Player {
	if s.Player1.ID == userID {
		return s.Player2
	}
	return s.Player1
}

// markEnded claims the once-only teardown of the session. Both disconnects
// racing, or a disconnect racing the tick loop's win detection, resolve to
// whoever got here first; everyone else sees false and backs off.
func (s *Session) markEnded(winnerID string) bool {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()

	if s.ended {
		return false
	}
	s.ended = true
	s.State.Status = constants.STATUS_FINISHED
	if s.State.WinnerID == "" {
		s.State.WinnerID = winnerID
	}
	return true
}

// Step advances the simulation by one tick and returns the resulting winner
// id (empty while the fight is still on) together with a snapshot safe to
// marshal outside the lock.
func (s *Session) Step() (winnerID string, snapshot *models.GameState) {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()

	s.step()

	if s.State.Status == constants.STATUS_FINISHED {
		winnerID = s.State.WinnerID
	}
	return winnerID, s.snapshotLocked()
}

// step runs the per-tick algorithm: movement, firing, projectile advance,
// collisions, win detection. Caller holds the lock.
func (s *Session) step() {
	s.State.Tick++
	tick := s.State.Tick

	for id, tank := range s.State.Tanks {
		input := s.inputs[id]

		if input.Left {
			tank.Heading -= constants.TANK_TURN_SPEED
		}
		if input.Right {
			tank.Heading += constants.TANK_TURN_SPEED
		}
		tank.Heading = normalizeHeading(tank.Heading)

		speed := 0.0
		if input.Up {
			speed += constants.TANK_SPEED
		}
		if input.Down {
			speed -= constants.TANK_SPEED
		}
		tank.X = clamp(tank.X+math.Cos(tank.Heading)*speed, 0, constants.ARENA_WIDTH)
		tank.Y = clamp(tank.Y+math.Sin(tank.Heading)*speed, 0, constants.ARENA_HEIGHT)

		if input.Shoot && !tank.PrevShoot && tick-tank.LastShotTick >= constants.MIN_FIRE_INTERVAL {
			s.spawnProjectile(tank, tick)
			tank.LastShotTick = tick
		}
		tank.PrevShoot = input.Shoot
	}

	s.advanceProjectiles(tick)
	s.resolveCollisions()
	s.checkWinCondition()
}

func (s *Session) spawnProjectile(tank *models.Tank, tick int) {
	muzzle := constants.TANK_RADIUS + constants.PROJECTILE_RADIUS
	s.State.Bullets = append(s.State.Bullets, &models.Projectile{
		ID:        uuid.New().String(),
		OwnerID:   tank.OwnerID,
		X:         tank.X + math.Cos(tank.Heading)*muzzle,
		Y:         tank.Y + math.Sin(tank.Heading)*muzzle,
		VX:        math.Cos(tank.Heading) * constants.PROJECTILE_SPEED,
		VY:        math.Sin(tank.Heading) * constants.PROJECTILE_SPEED,
		SpawnTick: tick,
	})
}

func (s *Session) advanceProjectiles(tick int) {
	alive := s.State.Bullets[:0]
	for _, bullet := range s.State.Bullets {
		bullet.X += bullet.VX
		bullet.Y += bullet.VY

		if bullet.X < 0 || bullet.X > constants.ARENA_WIDTH ||
			bullet.Y < 0 || bullet.Y > constants.ARENA_HEIGHT {
			continue
		}
		if tick-bullet.SpawnTick > constants.PROJECTILE_LIFETIME {
			continue
		}
		alive = append(alive, bullet)
	}
	s.State.Bullets = alive
}

// resolveCollisions applies single-hit damage: a projectile is consumed by
// the first tank it hits and can never damage a second one in the same tick.
func (s *Session) resolveCollisions() {
	hitRadius := constants.TANK_RADIUS + constants.PROJECTILE_RADIUS
	surviving := s.State.Bullets[:0]

	for _, bullet := range s.State.Bullets {
		hit := false
		for id, tank := range s.State.Tanks {
			if id == bullet.OwnerID {
				continue
			}
			if math.Hypot(bullet.X-tank.X, bullet.Y-tank.Y) <= hitRadius {
				tank.Health = clampHealth(tank.Health - constants.PROJECTILE_DAMAGE)
				hit = true
				break
			}
		}
		if !hit {
			surviving = append(surviving, bullet)
		}
	}
	s.State.Bullets = surviving
}

// checkWinCondition marks the session finished when a tank is out of health.
// Player order is the deterministic tie-break if both die on the same tick.
// The manager's EndSession performs the actual once-only teardown.
func (s *Session) checkWinCondition() {
	if s.State.Status == constants.STATUS_FINISHED {
		return
	}
	if s.State.Tanks[s.Player1.ID].Health <= 0 {
		s.State.Status = constants.STATUS_FINISHED
		s.State.WinnerID = s.Player2.ID
		return
	}
	if s.State.Tanks[s.Player2.ID].Health <= 0 {
		s.State.Status = constants.STATUS_FINISHED
		s.State.WinnerID = s.Player1.ID
	}
}

// Snapshot returns a deep copy of the game state for broadcasting.
func (s *Session) Snapshot() *models.GameState {
	s.Mutex.RLock()
	defer s.Mutex.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() *models.GameState {
	snapshot := &models.GameState{
		ID:       s.State.ID,
		Tick:     s.State.Tick,
		Tanks:    make(map[string]*models.Tank, len(s.State.Tanks)),
		Bullets:  make([]*models.Projectile, 0, len(s.State.Bullets)),
		Status:   s.State.Status,
		WinnerID: s.State.WinnerID,
	}
	for id, tank := range s.State.Tanks {
		copied := *tank
		snapshot.Tanks[id] = &copied
	}
	for _, bullet := range s.State.Bullets {
		copied := *bullet
		snapshot.Bullets = append(snapshot.Bullets, &copied)
	}
	return snapshot
}

func normalizeHeading(h float64) float64 {
	h = math.Mod(h, 2*math.Pi)
	if h < 0 {
		h += 2 * math.Pi
	}
	return h
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampHealth(h int) int {
	if h < 0 {
		return 0
	}
	if h > constants.MAX_HEALTH {
		return constants.MAX_HEALTH
	}
	return h
}
