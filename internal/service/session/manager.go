package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/iamasit07/snakesync/internal/domain"
	"github.com/iamasit07/snakesync/internal/protocol"
	"github.com/iamasit07/snakesync/internal/service/authority"
	"github.com/iamasit07/snakesync/internal/transport/syncchan"
	"github.com/iamasit07/snakesync/pkg/auth"
	"github.com/iamasit07/snakesync/pkg/logger"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type Options struct {
	PlayerID   string
	PlayerName string

	// ConnectTimeout bounds dial plus admission on the client side.
	ConnectTimeout time.Duration
	// JoinTimeout is how long the host waits for a new peer's PLAYER_JOIN.
	JoinTimeout time.Duration
	// StaleAfter drops a client link that has been silent this long. Zero disables it.
	StaleAfter time.Duration
	// Heartbeat is how often a host pings its peers, from Host until Stop.
	Heartbeat time.Duration
	Tickers   authority.TickerFactory

	AcceptRate  rate.Limit
	AcceptBurst int

	Rooms RoomPublisher
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = 5 * time.Second
	}
	if o.AcceptRate == 0 {
		o.AcceptRate = rate.Limit(10)
	}
	if o.AcceptBurst <= 0 {
		o.AcceptBurst = 5
	}
	if o.Heartbeat <= 0 {
		o.Heartbeat = 3 * time.Second
	}
	if o.Tickers == nil {
		o.Tickers = authority.NewTickerFactory()
	}
	return o
}

// activeSession is everything one Host or Join owns; Stop tears it down as a unit.
type activeSession struct {
	ctx          context.Context
	cancel       context.CancelFunc
	listener     Listener
	passwordHash string
	peers        map[string]*peer
	host         *peer
	wg           sync.WaitGroup
}

func newActiveSession() *activeSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &activeSession{ctx: ctx, cancel: cancel, peers: make(map[string]*peer)}
}

// Manager is the per-transport connection state machine and the only writer of its
// ConnectionState.
type Manager struct {
	transport Transport
	opts      Options
	log       zerolog.Logger

	mu      sync.Mutex
	state   domain.ConnectionState
	session *activeSession

	states  *broker[domain.ConnectionState]
	packets *broker[protocol.Packet]
}

func NewManager(t Transport, opts Options) *Manager {
	return &Manager{
		transport: t,
		opts:      opts.withDefaults(),
		log:       logger.For("SESSION").With().Str("transport", string(t.Kind())).Logger(),
		state:     domain.IdleState(t.Kind()),
		states:    newBroker[domain.ConnectionState](16),
		packets:   newBroker[protocol.Packet](256),
	}
}

func (m *Manager) Kind() domain.ConnectionType {
	return m.transport.Kind()
}

func (m *Manager) PlayerID() string {
	return m.opts.PlayerID
}

func (m *Manager) PlayerName() string {
	return m.opts.PlayerName
}

func (m *Manager) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

type PeerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Peers lists the links this side currently holds: joined clients on a host, the host on a client.
func (m *Manager) Peers() []PeerInfo {
	m.mu.Lock()
	sess := m.session
	m.mu.Unlock()
	if sess == nil {
		return nil
	}
	ps := m.peersOf(sess)
	out := make([]PeerInfo, 0, len(ps))
	for _, p := range ps {
		out = append(out, PeerInfo{ID: p.id, Name: p.name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Room returns the current room, if any.
func (m *Manager) Room() (domain.RoomInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Room == nil {
		return domain.RoomInfo{}, false
	}
	return *m.state.Room, true
}

// Subscribe streams state changes until cancel is called.
func (m *Manager) Subscribe() (<-chan domain.ConnectionState, func()) {
	return m.states.Subscribe()
}

// Packets streams every decoded packet received from any peer.
func (m *Manager) Packets() (<-chan protocol.Packet, func()) {
	return m.packets.Subscribe()
}

func (m *Manager) StartDiscovery(ctx context.Context) error {
	return m.transport.StartDiscovery(ctx)
}

func (m *Manager) StopDiscovery() {
	m.transport.StopDiscovery()
}

// setStateLocked replaces the state and notifies subscribers. Caller holds m.mu.
func (m *Manager) setStateLocked(s domain.ConnectionState) {
	s.Transport = m.transport.Kind()
	m.state = s
	m.states.Publish(s.Clone())
}

// failLocked moves to the Error phase. Caller holds m.mu.
func (m *Manager) failLocked(err error) {
	m.setStateLocked(domain.ConnectionState{
		Phase:     domain.PhaseError,
		Role:      m.state.Role,
		LastError: err.Error(),
	})
}

// fail records a setup error. A running session is left alone.
func (m *Manager) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		return
	}
	m.failLocked(err)
}

// begin claims the manager for a new session. An Error phase counts as idle.
func (m *Manager) begin(s domain.ConnectionState) (*activeSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.IsActive() {
		return nil, domain.ErrAlreadyActive
	}
	sess := newActiveSession()
	m.session = sess
	m.setStateLocked(s)
	return sess, nil
}

// abandon clears a session that failed during setup, unless Stop already did.
func (m *Manager) abandon(sess *activeSession, err error) {
	sess.cancel()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != sess {
		return
	}
	m.session = nil
	m.failLocked(err)
}

// Host starts listening for peers and advertises the room.
func (m *Manager) Host(ctx context.Context, room domain.RoomInfo) (domain.RoomInfo, error) {
	room = room.Normalize()
	if room.Name == "" {
		m.fail(domain.ErrBlankName)
		return domain.RoomInfo{}, domain.ErrBlankName
	}
	if room.Password != "" {
		if err := auth.ValidateRoomPassword(room.Password); err != nil {
			m.fail(err)
			return domain.RoomInfo{}, err
		}
	}
	room.ConnectionType = m.transport.Kind()
	room.CurrentPlayers = 1
	if room.HostName == "" {
		room.HostName = m.opts.PlayerName
	}

	sess, err := m.begin(domain.ConnectionState{Phase: domain.PhaseListening, Role: domain.RoleHost, Room: &room})
	if err != nil {
		return domain.RoomInfo{}, err
	}

	if room.Password != "" {
		hash, err := auth.HashPassword(room.Password)
		if err != nil {
			m.abandon(sess, err)
			return domain.RoomInfo{}, err
		}
		sess.passwordHash = hash
	}

	ln, hosted, err := m.transport.Host(sess.ctx, room)
	if err != nil {
		m.log.Error().Err(err).Msg("Failed to host room")
		m.abandon(sess, err)
		return domain.RoomInfo{}, err
	}

	m.mu.Lock()
	if m.session != sess {
		m.mu.Unlock()
		ln.Close()
		return domain.RoomInfo{}, domain.ErrClosed
	}
	sess.listener = ln
	state := m.state
	state.Room = &hosted
	m.setStateLocked(state)
	m.mu.Unlock()

	if m.opts.Rooms != nil {
		m.opts.Rooms.Publish(hosted)
	}
	m.log.Info().Str("room", hosted.ID).Str("name", hosted.Name).Int("port", hosted.Port).Msg("Hosting room")

	hb := authority.NewHeartbeat(m, hosted.ID, m.opts.Heartbeat, m.opts.Tickers)
	sess.wg.Add(2)
	go m.acceptLoop(sess)
	go func() {
		defer sess.wg.Done()
		hb.Run(sess.ctx)
	}()
	return hosted, nil
}

func (m *Manager) acceptLoop(sess *activeSession) {
	defer sess.wg.Done()
	limiter := rate.NewLimiter(m.opts.AcceptRate, m.opts.AcceptBurst)

	for {
		if err := limiter.Wait(sess.ctx); err != nil {
			return
		}
		ch, err := sess.listener.Accept(sess.ctx)
		if err != nil {
			if sess.ctx.Err() != nil || errors.Is(err, net.ErrClosed) || errors.Is(err, domain.ErrClosed) {
				return
			}
			m.log.Warn().Err(err).Msg("Accept failed")
			continue
		}
		sess.wg.Add(1)
		go m.admit(sess, ch)
	}
}

// admit runs the host side of the handshake for one accepted link, then pumps its packets.
func (m *Manager) admit(sess *activeSession, ch syncchan.Channel) {
	defer sess.wg.Done()

	join, ok := m.awaitJoin(sess, ch)
	if !ok {
		ch.Close()
		return
	}

	if hostVerifiesPassword(m.transport.Kind()) && sess.passwordHash != "" &&
		!auth.CheckPasswordHash(join.Password, sess.passwordHash) {
		m.log.Info().Str("peer", ch.RemoteAddr()).Msg("Rejected join: wrong password")
		ch.Send(protocol.RejectPacket(protocol.ReasonWrongPassword))
		ch.Close()
		return
	}

	m.mu.Lock()
	if m.session != sess || m.state.Room == nil {
		m.mu.Unlock()
		ch.Close()
		return
	}
	room := *m.state.Room
	if len(sess.peers)+1 >= room.MaxPlayers {
		m.mu.Unlock()
		m.log.Info().Str("peer", ch.RemoteAddr()).Msg("Rejected join: room full")
		ch.Send(protocol.RejectPacket(protocol.ReasonRoomFull))
		ch.Close()
		return
	}
	if old, dup := sess.peers[join.PlayerID]; dup {
		old.ch.Close()
	}
	p := newPeer(join.PlayerID, join.Name, ch)
	sess.peers[p.id] = p
	room.CurrentPlayers = len(sess.peers) + 1
	m.setStateLocked(domain.ConnectionState{
		Connected: true,
		Phase:     domain.PhaseConnected,
		Role:      domain.RoleHost,
		PeerName:  p.label(),
		Room:      &room,
		Peers:     peerNames(sess.peers),
	})
	m.mu.Unlock()

	if m.opts.Rooms != nil {
		m.opts.Rooms.Publish(room)
	}
	m.log.Info().Str("peer", p.label()).Int("players", room.CurrentPlayers).Msg("Peer joined")

	go p.writePump()
	m.broadcastRoom(sess, room)
	joined := protocol.JoinPacket(protocol.Join{PlayerID: join.PlayerID, Name: join.Name})
	joined.From = p.id
	m.packets.Publish(joined)

	for pkt := range ch.Incoming() {
		pkt.From = p.id
		m.packets.Publish(pkt)
	}
	m.dropPeer(sess, p)
}

func (m *Manager) awaitJoin(sess *activeSession, ch syncchan.Channel) (protocol.Join, bool) {
	timer := time.NewTimer(m.opts.JoinTimeout)
	defer timer.Stop()

	for {
		select {
		case pkt, ok := <-ch.Incoming():
			if !ok {
				return protocol.Join{}, false
			}
			if pkt.Type != protocol.PlayerJoin {
				continue
			}
			join, ok := protocol.DecodeJoin(pkt.Payload)
			if !ok {
				continue
			}
			return join, true
		case <-timer.C:
			m.log.Warn().Str("peer", ch.RemoteAddr()).Msg("No join received, dropping link")
			return protocol.Join{}, false
		case <-sess.ctx.Done():
			return protocol.Join{}, false
		}
	}
}

// dropPeer prunes a peer whose stream ended or who fell behind.
func (m *Manager) dropPeer(sess *activeSession, p *peer) {
	p.ch.Close()

	m.mu.Lock()
	if m.session != sess || sess.peers[p.id] != p {
		m.mu.Unlock()
		return
	}
	delete(sess.peers, p.id)
	state := m.state
	room := *state.Room
	room.CurrentPlayers = len(sess.peers) + 1
	state.Room = &room
	state.Peers = peerNames(sess.peers)
	if len(sess.peers) == 0 {
		state.Connected = false
		state.Phase = domain.PhaseListening
		state.PeerName = ""
	}
	m.setStateLocked(state)
	m.mu.Unlock()

	if m.opts.Rooms != nil {
		m.opts.Rooms.Publish(room)
	}
	m.log.Info().Str("peer", p.label()).Int("players", room.CurrentPlayers).Msg("Peer left")

	m.broadcastRoom(sess, room)
	left := protocol.PeerLeftPacket(p.id)
	left.From = p.id
	m.packets.Publish(left)
}

func (m *Manager) broadcastRoom(sess *activeSession, room domain.RoomInfo) {
	pkt := protocol.RoomInfoPacket(room)
	for _, p := range m.peersOf(sess) {
		if !p.enqueue(pkt) {
			p.ch.Close()
		}
	}
}

// Join connects to a room as a client.
func (m *Manager) Join(ctx context.Context, room domain.RoomInfo, password string) error {
	kind := m.transport.Kind()

	if checksBeforeConnect(kind) {
		if err := CheckLocal(room, password); err != nil {
			m.log.Info().Str("room", room.ID).Msg("Join refused locally: wrong password")
			m.fail(err)
			return err
		}
	}

	roomCopy := room
	sess, err := m.begin(domain.ConnectionState{Phase: domain.PhaseConnecting, Role: domain.RoleClient, Room: &roomCopy})
	if err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(sess.ctx, m.opts.ConnectTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	ch, err := m.transport.Connect(dialCtx, room)
	if err != nil {
		m.log.Warn().Err(err).Str("room", room.ID).Msg("Connect failed")
		m.abandon(sess, err)
		return err
	}

	join := protocol.Join{PlayerID: m.opts.PlayerID, Name: m.opts.PlayerName}
	if hostVerifiesPassword(kind) {
		join.Password = password
	}
	if err := ch.Send(protocol.JoinPacket(join)); err != nil {
		ch.Close()
		m.abandon(sess, err)
		return err
	}

	info, err := m.awaitAdmission(dialCtx, ch)
	if err != nil {
		ch.Close()
		m.log.Info().Err(err).Str("room", room.ID).Msg("Join rejected")
		m.abandon(sess, err)
		return err
	}

	m.mu.Lock()
	if m.session != sess {
		m.mu.Unlock()
		ch.Close()
		return domain.ErrClosed
	}
	merged := protocol.MergeRoomInfo(room, info.Payload)
	hostName := merged.HostName
	if hostName == "" {
		hostName = merged.Name
	}
	hostPeer := newPeer(merged.ID, hostName, ch)
	sess.host = hostPeer
	m.setStateLocked(domain.ConnectionState{
		Connected: true,
		Phase:     domain.PhaseConnected,
		Role:      domain.RoleClient,
		PeerName:  hostName,
		Room:      &merged,
	})
	m.mu.Unlock()

	m.log.Info().Str("room", merged.ID).Str("host", hostName).Msg("Joined room")

	go hostPeer.writePump()
	info.From = hostPeer.id
	m.packets.Publish(info)
	sess.wg.Add(1)
	go m.clientPump(sess, hostPeer)
	return nil
}

// awaitAdmission waits for the host's ROOM_INFO, or a CUSTOM rejection.
func (m *Manager) awaitAdmission(ctx context.Context, ch syncchan.Channel) (protocol.Packet, error) {
	for {
		select {
		case pkt, ok := <-ch.Incoming():
			if !ok {
				return protocol.Packet{}, fmt.Errorf("host closed the link: %w", domain.ErrNotConnected)
			}
			if reason, isReject := protocol.RejectReason(pkt); isReject {
				switch reason {
				case protocol.ReasonWrongPassword:
					return protocol.Packet{}, domain.ErrWrongPassword
				case protocol.ReasonRoomFull:
					return protocol.Packet{}, domain.ErrRoomFull
				}
				continue
			}
			if pkt.Type == protocol.RoomInfo {
				return pkt, nil
			}
		case <-ctx.Done():
			return protocol.Packet{}, fmt.Errorf("waiting for host: %w", ctx.Err())
		}
	}
}

func (m *Manager) clientPump(sess *activeSession, host *peer) {
	defer sess.wg.Done()

	var stale <-chan time.Time
	var timer *time.Timer
	if m.opts.StaleAfter > 0 {
		timer = time.NewTimer(m.opts.StaleAfter)
		defer timer.Stop()
		stale = timer.C
	}

	reason := "host disconnected"
loop:
	for {
		select {
		case pkt, ok := <-host.ch.Incoming():
			if !ok {
				break loop
			}
			if timer != nil {
				timer.Reset(m.opts.StaleAfter)
			}
			if pkt.Type == protocol.RoomInfo {
				m.applyRoomInfo(sess, pkt)
			}
			pkt.From = host.id
			m.packets.Publish(pkt)
		case <-stale:
			reason = "host stopped responding"
			m.log.Warn().Dur("silent", m.opts.StaleAfter).Msg("No heartbeat from host")
			break loop
		case <-sess.ctx.Done():
			return
		}
	}

	host.ch.Close()
	m.mu.Lock()
	if m.session != sess {
		m.mu.Unlock()
		return
	}
	m.session = nil
	sess.cancel()
	m.setStateLocked(domain.ConnectionState{Phase: domain.PhaseIdle, LastError: reason})
	m.mu.Unlock()
	m.log.Info().Msg("Connection to host lost")
}

func (m *Manager) applyRoomInfo(sess *activeSession, pkt protocol.Packet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != sess || m.state.Room == nil {
		return
	}
	state := m.state
	room := protocol.MergeRoomInfo(*state.Room, pkt.Payload)
	state.Room = &room
	m.setStateLocked(state)
}

// Broadcast queues p for every connected peer and returns how many accepted it.
// A peer whose queue is full is closed and pruned by its pump.
func (m *Manager) Broadcast(p protocol.Packet) int {
	m.mu.Lock()
	sess := m.session
	m.mu.Unlock()
	if sess == nil {
		return 0
	}

	sent := 0
	for _, pr := range m.peersOf(sess) {
		if pr.enqueue(p) {
			sent++
			continue
		}
		m.log.Warn().Str("peer", pr.label()).Msg("Peer fell behind, pruning")
		pr.ch.Close()
	}
	return sent
}

func (m *Manager) peersOf(sess *activeSession) []*peer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*peer, 0, len(sess.peers)+1)
	for _, p := range sess.peers {
		out = append(out, p)
	}
	if sess.host != nil {
		out = append(out, sess.host)
	}
	return out
}

// Stop tears everything down. Safe from any phase and safe to repeat.
func (m *Manager) Stop() {
	m.mu.Lock()
	sess := m.session
	m.session = nil
	var roomID string
	if m.state.Role == domain.RoleHost && m.state.Room != nil {
		roomID = m.state.Room.ID
	}
	idle := domain.IdleState(m.transport.Kind())
	changed := m.state.Phase != idle.Phase || m.state.LastError != "" || m.state.Room != nil
	if changed {
		m.setStateLocked(idle)
	}
	m.mu.Unlock()

	m.transport.StopDiscovery()

	if sess == nil {
		return
	}
	sess.cancel()
	if sess.listener != nil {
		if err := sess.listener.Close(); err != nil {
			m.log.Debug().Err(err).Msg("Listener close")
		}
	}
	for _, p := range m.peersOf(sess) {
		p.ch.Close()
	}
	sess.wg.Wait()

	if roomID != "" && m.opts.Rooms != nil {
		m.opts.Rooms.Withdraw(roomID)
	}
	m.log.Info().Msg("Session stopped")
}

// Close stops the manager and ends every subscription.
func (m *Manager) Close() {
	m.Stop()
	m.states.Close()
	m.packets.Close()
}

func peerNames(peers map[string]*peer) []string {
	names := make([]string, 0, len(peers))
	for _, p := range peers {
		names = append(names, p.label())
	}
	sort.Strings(names)
	return names
}
