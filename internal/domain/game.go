package domain

type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left
)

func (d Direction) Delta() (int, int) {
	switch d {
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	default:
		return 1, 0
	}
}

func (d Direction) Opposite() Direction {
	return (d + 2) % 4
}

func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "up", "UP":
		return Up, true
	case "right", "RIGHT":
		return Right, true
	case "down", "DOWN":
		return Down, true
	case "left", "LEFT":
		return Left, true
	}
	return Right, false
}

type Grid struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (g Grid) Contains(c Cell) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.Width && c.Y < g.Height
}

// to represent the player status
type PlayerStatus string

const (
	StatusAlive PlayerStatus = "alive"
	StatusDead  PlayerStatus = "dead"
)

type PlayerInfo struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Status PlayerStatus `json:"status"`
	Body   []Cell       `json:"body"`
}

func (p PlayerInfo) Alive() bool {
	return p.Status != StatusDead
}

type ResultKind string

const (
	ResultPlaying ResultKind = "playing"
	ResultVictory ResultKind = "victory"
	ResultDraw    ResultKind = "draw"
)

type GameResult struct {
	Kind     ResultKind `json:"kind"`
	WinnerID string     `json:"winnerId,omitempty"`
}

func Playing() GameResult { return GameResult{Kind: ResultPlaying} }

func Draw() GameResult { return GameResult{Kind: ResultDraw} }

func Victory(id string) GameResult { return GameResult{Kind: ResultVictory, WinnerID: id} }

func (r GameResult) IsTerminal() bool {
	return r.Kind == ResultVictory || r.Kind == ResultDraw
}

// ComputeResult looks only at statuses: zero alive is a draw, one alive wins.
// A lone player has nobody to beat, so their game only ends when they die.
func ComputeResult(players []PlayerInfo) GameResult {
	if len(players) == 1 {
		if players[0].Alive() {
			return Playing()
		}
		return Draw()
	}
	var alive []string
	for _, p := range players {
		if p.Alive() {
			alive = append(alive, p.ID)
		}
	}
	switch len(alive) {
	case 0:
		return Draw()
	case 1:
		return Victory(alive[0])
	default:
		return Playing()
	}
}
