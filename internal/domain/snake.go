package domain

// Snake is the reference local simulation: body is head-first.
type Snake struct {
	body      []Cell
	direction Direction
	pending   Direction
	grow      bool
	grid      Grid
}

func NewSnake(grid Grid, head Cell, dir Direction, length int) *Snake {
	if length < 1 {
		length = 1
	}
	dx, dy := dir.Delta()
	body := make([]Cell, 0, length)
	for i := 0; i < length; i++ {
		body = append(body, Cell{X: head.X - dx*i, Y: head.Y - dy*i})
	}
	return &Snake{body: body, direction: dir, pending: dir, grid: grid}
}

func (s *Snake) CurrentBody() []Cell {
	return append([]Cell(nil), s.body...)
}

func (s *Snake) Head() Cell {
	return s.body[0]
}

func (s *Snake) Direction() Direction {
	return s.direction
}

// Turn queues a direction change; reversing into the neck is ignored.
func (s *Snake) Turn(d Direction) {
	if len(s.body) > 1 && d == s.direction.Opposite() {
		return
	}
	s.pending = d
}

func (s *Snake) Grow() {
	s.grow = true
}

func (s *Snake) MoveOneStep(allowWallPass bool) Cell {
	s.direction = s.pending
	dx, dy := s.direction.Delta()
	head := Cell{X: s.body[0].X + dx, Y: s.body[0].Y + dy}
	if allowWallPass && s.grid.Width > 0 && s.grid.Height > 0 {
		head.X = (head.X%s.grid.Width + s.grid.Width) % s.grid.Width
		head.Y = (head.Y%s.grid.Height + s.grid.Height) % s.grid.Height
	}

	s.body = append([]Cell{head}, s.body...)
	if s.grow {
		s.grow = false
	} else {
		s.body = s.body[:len(s.body)-1]
	}
	return head
}

func (s *Snake) HasWallCollision(allowWallPass bool) bool {
	if allowWallPass {
		return false
	}
	return !s.grid.Contains(s.body[0])
}

func (s *Snake) HasSelfCollision() bool {
	head := s.body[0]
	for _, c := range s.body[1:] {
		if c == head {
			return true
		}
	}
	return false
}

func (s *Snake) IsHeadAtCell(x, y int) bool {
	return s.body[0].X == x && s.body[0].Y == y
}
