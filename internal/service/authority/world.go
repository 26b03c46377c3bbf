package authority

import (
	"sync"

	"github.com/iamasit07/snakesync/internal/domain"
	"github.com/iamasit07/snakesync/internal/protocol"
)

type player struct {
	info domain.PlayerInfo
	// nil for players simulated on another device
	sim Simulation
}

type Elimination struct {
	PlayerID string
	At       domain.Cell
}

// View is a read-only copy of the world for observers.
type View struct {
	Grid          domain.Grid         `json:"grid"`
	Tick          int64               `json:"tick"`
	Score         int                 `json:"score"`
	Result        domain.GameResult   `json:"result"`
	Players       []domain.PlayerInfo `json:"players"`
	Foods         []domain.Cell       `json:"foods"`
	Authoritative bool                `json:"authoritative"`
}

// World is one session's shared state. Local snakes are advanced by Step; remote
// ones are only ever overwritten from snapshots.
type World struct {
	mu            sync.Mutex
	grid          domain.Grid
	cfg           domain.GameSessionConfig
	authoritative bool
	spawn         FoodSpawner

	players map[string]*player
	order   []string
	foods   []domain.Cell
	score   int
	tick    int64
	result  domain.GameResult
}

// NewWorld builds an empty world. Pass authoritative for the host and for single-player.
func NewWorld(grid domain.Grid, cfg domain.GameSessionConfig, authoritative bool, spawn FoodSpawner) *World {
	if spawn == nil {
		spawn = domain.SpawnFood
	}
	return &World{
		grid:          grid,
		cfg:           cfg,
		authoritative: authoritative,
		spawn:         spawn,
		players:       make(map[string]*player),
		result:        domain.Playing(),
	}
}

func (w *World) Authoritative() bool {
	return w.authoritative
}

func (w *World) AddLocal(id, name string, sim Simulation) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.addLocked(id, name, sim)
}

// AddRemote registers a player owned by a peer. Known ids are left alone.
func (w *World) AddRemote(id, name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.players[id]; ok {
		if name != "" && p.info.Name == "" {
			p.info.Name = name
		}
		return
	}
	w.addLocked(id, name, nil)
}

func (w *World) addLocked(id, name string, sim Simulation) *player {
	p := &player{
		info: domain.PlayerInfo{ID: id, Name: name, Status: domain.StatusAlive},
		sim:  sim,
	}
	if sim != nil {
		p.info.Body = sim.CurrentBody()
	}
	if _, exists := w.players[id]; !exists {
		w.order = append(w.order, id)
	}
	w.players[id] = p
	w.result = domain.ComputeResult(w.infosLocked())
	return p
}

// SeedFood places the opening food. Followers wait for the host's list instead.
func (w *World) SeedFood() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.authoritative {
		w.respawnLocked()
	}
}

// Step advances every live local snake once and settles collisions, food and the result.
// Nothing moves once the result is terminal.
func (w *World) Step() []Elimination {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.result.IsTerminal() {
		return nil
	}
	w.tick++

	wrap := w.cfg.AllowWallPass
	for _, id := range w.order {
		p := w.players[id]
		if p.sim == nil || !p.info.Alive() {
			continue
		}
		p.sim.MoveOneStep(wrap)
		p.info.Body = p.sim.CurrentBody()
	}

	// collisions are judged after everyone moved so head-on crashes kill both
	var deaths []Elimination
	for _, id := range w.order {
		p := w.players[id]
		if p.sim == nil || !p.info.Alive() || len(p.info.Body) == 0 {
			continue
		}
		if w.collidesLocked(p) {
			deaths = append(deaths, Elimination{PlayerID: id, At: p.info.Body[0]})
		}
	}
	for _, d := range deaths {
		w.eliminateLocked(d.PlayerID, d.At)
	}

	w.eatLocked()
	w.result = domain.ComputeResult(w.infosLocked())
	if w.authoritative && len(w.foods) == 0 {
		w.respawnLocked()
	}
	return deaths
}

func (w *World) collidesLocked(p *player) bool {
	wrap := w.cfg.AllowWallPass
	if p.sim.HasWallCollision(wrap) || p.sim.HasSelfCollision() {
		return true
	}
	for _, id := range w.order {
		other := w.players[id]
		if other == p || !other.info.Alive() {
			continue
		}
		for _, c := range other.info.Body {
			if p.sim.IsHeadAtCell(c.X, c.Y) {
				return true
			}
		}
	}
	return false
}

// eliminateLocked marks a player dead once; with authority it drops food where they died.
func (w *World) eliminateLocked(id string, at domain.Cell) bool {
	p, ok := w.players[id]
	if !ok || !p.info.Alive() {
		return false
	}
	p.info.Status = domain.StatusDead
	if !w.authoritative {
		return true
	}

	occupied := w.occupiedLocked()
	if _, taken := occupied[at]; w.grid.Contains(at) && !taken {
		w.foods = append(w.foods, at)
		return true
	}
	c := w.spawn(w.grid.Width, w.grid.Height, occupied)
	if _, taken := occupied[c]; !taken {
		w.foods = append(w.foods, c)
	}
	return true
}

func (w *World) eatLocked() {
	for _, id := range w.order {
		p := w.players[id]
		if !p.info.Alive() || len(p.info.Body) == 0 {
			continue
		}
		if p.sim == nil && !w.authoritative {
			continue
		}
		head := p.info.Body[0]
		for i, f := range w.foods {
			if f != head {
				continue
			}
			w.foods = append(w.foods[:i], w.foods[i+1:]...)
			if p.sim != nil {
				p.sim.Grow()
				w.score++
			}
			break
		}
	}
}

// respawnLocked tops the food list up to FoodCount distinct free cells.
func (w *World) respawnLocked() {
	if w.result.IsTerminal() {
		return
	}
	target := w.cfg.FoodCount(max(1, len(w.players)))
	occupied := w.occupiedLocked()
	for len(w.foods) < target {
		c := w.spawn(w.grid.Width, w.grid.Height, occupied)
		if _, taken := occupied[c]; taken {
			return
		}
		w.foods = append(w.foods, c)
		occupied[c] = struct{}{}
	}
}

func (w *World) occupiedLocked() map[domain.Cell]struct{} {
	occupied := make(map[domain.Cell]struct{})
	for _, p := range w.players {
		if !p.info.Alive() {
			continue
		}
		for _, c := range p.info.Body {
			occupied[c] = struct{}{}
		}
	}
	for _, f := range w.foods {
		occupied[f] = struct{}{}
	}
	return occupied
}

// ApplySnapshot overwrites remote bodies wholesale. Local snakes are never touched, and
// a follower adopts the sender's food list. The authority only takes a client's word
// for that client's own snake; from is the sending peer, empty when unknown.
func (w *World) ApplySnapshot(snap protocol.Snapshot, from string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, s := range snap.Snakes {
		if w.authoritative && from != "" && s.ID != from {
			continue
		}
		p, ok := w.players[s.ID]
		if ok && p.sim != nil {
			continue
		}
		if !ok {
			p = w.addLocked(s.ID, s.Name, nil)
		}
		if s.Name != "" {
			p.info.Name = s.Name
		}
		p.info.Body = s.Body
		if !s.Alive && p.info.Alive() {
			at := domain.Cell{}
			if len(s.Body) > 0 {
				at = s.Body[0]
			}
			w.eliminateLocked(s.ID, at)
		}
	}
	if !w.authoritative {
		w.foods = append([]domain.Cell(nil), snap.Foods...)
	}
	w.result = domain.ComputeResult(w.infosLocked())
}

// AdoptFoods replaces the food list on a follower; the authority ignores it.
func (w *World) AdoptFoods(foods []domain.Cell) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.authoritative {
		w.foods = append([]domain.Cell(nil), foods...)
	}
}

// Foods returns a copy of the current food cells.
func (w *World) Foods() []domain.Cell {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]domain.Cell(nil), w.foods...)
}

// Eliminate applies a death reported by the player's own device.
func (w *World) Eliminate(id string, at domain.Cell) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	changed := w.eliminateLocked(id, at)
	w.result = domain.ComputeResult(w.infosLocked())
	return changed
}

// PlayerLeft treats a dropped peer as eliminated where its head last was.
func (w *World) PlayerLeft(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[id]
	if !ok {
		return false
	}
	at := domain.Cell{}
	if len(p.info.Body) > 0 {
		at = p.info.Body[0]
	}
	changed := w.eliminateLocked(id, at)
	w.result = domain.ComputeResult(w.infosLocked())
	return changed
}

func (w *World) Result() domain.GameResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result
}

func (w *World) Tick() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tick
}

func (w *World) Player(id string) (domain.PlayerInfo, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[id]
	if !ok {
		return domain.PlayerInfo{}, false
	}
	return copyInfo(p.info), true
}

// Snapshot is what goes on the wire each tick. The authority sends every snake; a
// client only sends the ones it simulates.
func (w *World) Snapshot() protocol.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap := protocol.Snapshot{
		Foods: append([]domain.Cell(nil), w.foods...),
		Score: w.score,
		Tick:  w.tick,
	}
	for _, id := range w.order {
		p := w.players[id]
		if !w.authoritative && p.sim == nil {
			continue
		}
		snap.Snakes = append(snap.Snakes, protocol.SnakeState{
			ID:    id,
			Name:  p.info.Name,
			Body:  append([]domain.Cell(nil), p.info.Body...),
			Alive: p.info.Alive(),
		})
	}
	return snap
}

func (w *World) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return View{
		Grid:          w.grid,
		Tick:          w.tick,
		Score:         w.score,
		Result:        w.result,
		Players:       w.infosLocked(),
		Foods:         append([]domain.Cell(nil), w.foods...),
		Authoritative: w.authoritative,
	}
}

func (w *World) infosLocked() []domain.PlayerInfo {
	out := make([]domain.PlayerInfo, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, copyInfo(w.players[id].info))
	}
	return out
}

func copyInfo(info domain.PlayerInfo) domain.PlayerInfo {
	info.Body = append([]domain.Cell(nil), info.Body...)
	return info
}
