package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iamasit07/snakesync/internal/domain"
	"github.com/iamasit07/snakesync/internal/protocol"
	"github.com/iamasit07/snakesync/internal/service/authority"
	"github.com/iamasit07/snakesync/internal/service/session"
	"github.com/iamasit07/snakesync/pkg/logger"
	"github.com/iamasit07/snakesync/pkg/uid"
	"github.com/rs/zerolog"
)

const startLength = 3

// Link is the connection a multiplayer match runs over. *session.Manager implements it.
type Link interface {
	authority.Broadcaster
	State() domain.ConnectionState
	Subscribe() (<-chan domain.ConnectionState, func())
	Packets() (<-chan protocol.Packet, func())
	Peers() []session.PeerInfo
	PlayerID() string
	PlayerName() string
}

type MatchRepository interface {
	SaveMatch(ctx context.Context, m domain.MatchRecord) error
}

type Options struct {
	Grid     domain.Grid
	Settings authority.SettingsProvider
	Tickers  authority.TickerFactory
	Spawn    authority.FoodSpawner

	// Repo is optional; without it finished matches are only kept in memory.
	Repo MatchRepository
	// OnView is called after every local tick with the fresh world view.
	OnView func(authority.View)

	// identity used for single-player
	LocalID   string
	LocalName string
}

type match struct {
	id        string
	world     *authority.World
	loop      *authority.Loop
	snake     *domain.Snake
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time
	room      domain.RoomInfo
	role      domain.Role
	transport domain.ConnectionType
	localID   string
}

// Service is the entry point for running matches on top of a session.
type Service struct {
	opts Options
	log  zerolog.Logger

	mu     sync.Mutex
	active *match
	last   *authority.View
}

func NewService(opts Options) *Service {
	if opts.Grid.Width <= 0 || opts.Grid.Height <= 0 {
		opts.Grid = domain.Grid{Width: 20, Height: 20}
	}
	if opts.Settings == nil {
		opts.Settings = authority.StaticSettings(domain.DefaultSettings())
	}
	if opts.Tickers == nil {
		opts.Tickers = authority.NewTickerFactory()
	}
	if opts.LocalID == "" {
		opts.LocalID = "local"
	}
	return &Service{opts: opts, log: logger.For("GAME")}
}

// Start begins a match. A nil link is single-player; otherwise the link must be connected.
func (s *Service) Start(link Link) (authority.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return authority.View{}, domain.ErrAlreadyActive
	}

	m := &match{
		id:        uid.NewMatchID(),
		done:      make(chan struct{}),
		startedAt: time.Now(),
		localID:   s.opts.LocalID,
	}
	localName := s.opts.LocalName
	authoritative := true
	slot := 0
	var room *domain.RoomInfo

	if link != nil {
		st := link.State()
		if !st.Connected || st.Room == nil {
			return authority.View{}, domain.ErrNotConnected
		}
		room = st.Room
		m.room = *st.Room
		m.role = st.Role
		m.transport = st.Transport
		m.localID = link.PlayerID()
		localName = link.PlayerName()
		authoritative = st.Role == domain.RoleHost
		if !authoritative {
			slot = max(1, st.Room.CurrentPlayers-1)
		}
	}

	cfg := domain.NewSessionConfig(room, s.opts.Settings.Settings().Clamp())
	m.world = authority.NewWorld(s.opts.Grid, cfg, authoritative, s.opts.Spawn)

	head, dir := spawnPoint(s.opts.Grid, slot)
	m.snake = domain.NewSnake(s.opts.Grid, head, dir, startLength)
	m.world.AddLocal(m.localID, localName, m.snake)

	if link != nil && authoritative {
		for _, p := range link.Peers() {
			m.world.AddRemote(p.ID, p.Name)
		}
	}
	m.world.SeedFood()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	var peers authority.Broadcaster
	if link != nil {
		peers = link
	}
	out := &tee{peers: peers, observe: func() { s.publish(m.world) }}
	m.loop = authority.NewLoop(m.world, cfg, out, s.opts.Tickers)

	var wg sync.WaitGroup
	if link != nil {
		packets, unsubscribe := link.Packets()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer unsubscribe()
			authority.NewFollower(m.world).Run(ctx, packets)
		}()

		states, unsubscribeStates := link.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer unsubscribeStates()
			watchLink(ctx, states, m.role, cancel)
		}()
	}

	go func() {
		defer close(m.done)
		result := m.loop.Run(ctx)
		cancel()
		wg.Wait()
		s.finish(m, result)
	}()

	s.active = m
	s.log.Info().Str("match", m.id).Str("role", string(m.role)).Bool("authoritative", authoritative).
		Dur("interval", cfg.TickInterval()).Msg("Match started")
	return m.world.View(), nil
}

// watchLink ends the match when the link it runs over goes away.
func watchLink(ctx context.Context, states <-chan domain.ConnectionState, role domain.Role, cancel context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				cancel()
				return
			}
			lost := !st.Connected
			if role == domain.RoleHost {
				lost = !st.IsActive()
			}
			if lost {
				cancel()
				return
			}
		}
	}
}

func (s *Service) finish(m *match, result domain.GameResult) {
	view := m.world.View()

	s.mu.Lock()
	if s.active == m {
		s.active = nil
	}
	s.last = &view
	s.mu.Unlock()

	s.log.Info().Str("match", m.id).Str("result", string(result.Kind)).Int64("ticks", view.Tick).Msg("Match ended")
	if s.opts.OnView != nil {
		s.opts.OnView(view)
	}

	if s.opts.Repo == nil || view.Tick == 0 {
		return
	}
	record := buildRecord(m, view)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.opts.Repo.SaveMatch(ctx, record); err != nil {
		s.log.Error().Err(err).Str("match", m.id).Msg("Failed to save match")
	}
}

func buildRecord(m *match, view authority.View) domain.MatchRecord {
	finished := time.Now()
	rec := domain.MatchRecord{
		MatchID:         m.id,
		RoomID:          m.room.ID,
		RoomName:        m.room.Name,
		Transport:       m.transport,
		Role:            m.role,
		Result:          view.Result.Kind,
		WinnerID:        view.Result.WinnerID,
		Ticks:           view.Tick,
		Score:           view.Score,
		DurationSeconds: int(finished.Sub(m.startedAt).Seconds()),
		StartedAt:       m.startedAt,
		FinishedAt:      finished,
	}
	if !view.Result.IsTerminal() {
		rec.Result = domain.ResultDraw
	}
	for _, p := range view.Players {
		if p.ID == rec.WinnerID {
			rec.WinnerName = p.Name
		}
		rec.Players = append(rec.Players, domain.MatchPlayer{
			ID:     p.ID,
			Name:   p.Name,
			Status: p.Status,
			Length: len(p.Body),
		})
	}
	return rec
}

func (s *Service) publish(world *authority.World) {
	if s.opts.OnView != nil {
		s.opts.OnView(world.View())
	}
}

func (s *Service) current() *match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Steer turns the local snake. Reversing is ignored by the snake itself.
func (s *Service) Steer(direction string) error {
	d, ok := domain.ParseDirection(direction)
	if !ok {
		return fmt.Errorf("unknown direction %q", direction)
	}
	m := s.current()
	if m == nil {
		return domain.ErrNotConnected
	}
	m.snake.Turn(d)
	return nil
}

func (s *Service) Boost(on bool) error {
	m := s.current()
	if m == nil {
		return domain.ErrNotConnected
	}
	m.loop.SetBoost(on)
	return nil
}

// Stop ends the running match, if any, and waits for it to wind down.
func (s *Service) Stop() {
	m := s.current()
	if m == nil {
		return
	}
	m.cancel()
	<-m.done
}

// View returns the running match, or the last finished one.
func (s *Service) View() (authority.View, bool) {
	s.mu.Lock()
	active, last := s.active, s.last
	s.mu.Unlock()

	if active != nil {
		return active.world.View(), true
	}
	if last != nil {
		return *last, true
	}
	return authority.View{}, false
}

func (s *Service) Running() bool {
	return s.current() != nil
}

// tee forwards to the peers and lets the service observe each local snapshot.
type tee struct {
	peers   authority.Broadcaster
	observe func()
}

func (t *tee) Broadcast(p protocol.Packet) int {
	n := 0
	if t.peers != nil {
		n = t.peers.Broadcast(p)
	}
	if p.Type == protocol.PlayerState && t.observe != nil {
		t.observe()
	}
	return n
}

// spawnPoint spreads up to four players over the corners, each heading inward.
func spawnPoint(grid domain.Grid, slot int) (domain.Cell, domain.Direction) {
	w, h := grid.Width, grid.Height
	points := []struct {
		head domain.Cell
		dir  domain.Direction
	}{
		{domain.Cell{X: 3, Y: 3}, domain.Right},
		{domain.Cell{X: w - 4, Y: h - 4}, domain.Left},
		{domain.Cell{X: w - 4, Y: 3}, domain.Down},
		{domain.Cell{X: 3, Y: h - 4}, domain.Up},
	}
	p := points[slot%len(points)]
	return p.head, p.dir
}
