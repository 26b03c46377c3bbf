package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/snakesync/internal/domain"
	"github.com/iamasit07/snakesync/internal/service/authority"
	"github.com/iamasit07/snakesync/internal/service/game"
	"github.com/iamasit07/snakesync/internal/transport/bluetooth"
	"github.com/iamasit07/snakesync/pkg/auth"
)

// Session is one transport's connection manager. *session.Manager implements it.
type Session interface {
	game.Link
	Kind() domain.ConnectionType
	Host(ctx context.Context, room domain.RoomInfo) (domain.RoomInfo, error)
	Join(ctx context.Context, room domain.RoomInfo, password string) error
	StartDiscovery(ctx context.Context) error
	StopDiscovery()
	Stop()
}

type RoomDirectory interface {
	Rooms(kind domain.ConnectionType) []domain.RoomInfo
	Lookup(ctx context.Context, id string) (domain.RoomInfo, bool)
}

// DeviceLister is the Bluetooth side's view of nearby and paired devices.
type DeviceLister interface {
	Devices() []bluetooth.Device
	Bonded(ctx context.Context) ([]domain.RoomInfo, error)
	Scanning() bool
}

type GameRunner interface {
	Start(link game.Link) (authority.View, error)
	Steer(direction string) error
	Boost(on bool) error
	Stop()
	View() (authority.View, bool)
}

type ControlHandler struct {
	LAN     Session
	BT      Session
	Rooms   RoomDirectory
	Devices DeviceLister
	Game    GameRunner

	// discovery outlives the request that started it
	DiscoveryCtx context.Context
}

func NewControlHandler(lan, bt Session, rooms RoomDirectory, devices DeviceLister, g GameRunner) *ControlHandler {
	return &ControlHandler{
		LAN:          lan,
		BT:           bt,
		Rooms:        rooms,
		Devices:      devices,
		Game:         g,
		DiscoveryCtx: context.Background(),
	}
}

type hostRequest struct {
	Name          string `json:"name"`
	Password      string `json:"password"`
	MaxPlayers    int    `json:"maxPlayers"`
	AllowWallPass bool   `json:"allowWallPass"`
}

type joinRequest struct {
	RoomID   string `json:"roomId"`
	Address  string `json:"address"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type stateResponse struct {
	LAN  domain.ConnectionState `json:"lan"`
	BT   domain.ConnectionState `json:"bluetooth"`
	Game *authority.View        `json:"game,omitempty"`
}

// GetState returns both managers' states and the current or last match.
func (h *ControlHandler) GetState(c *gin.Context) {
	resp := stateResponse{LAN: h.LAN.State(), BT: h.BT.State()}
	if v, ok := h.Game.View(); ok {
		resp.Game = &v
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ControlHandler) HostLAN(c *gin.Context) {
	h.host(c, h.LAN)
}

func (h *ControlHandler) HostBT(c *gin.Context) {
	h.host(c, h.BT)
}

func (h *ControlHandler) host(c *gin.Context, s Session) {
	var req hostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	room := domain.RoomInfo{
		Name:          req.Name,
		Password:      req.Password,
		MaxPlayers:    req.MaxPlayers,
		AllowWallPass: req.AllowWallPass,
	}
	if s.Kind() == domain.Bluetooth || room.MaxPlayers == 0 {
		room.MaxPlayers = defaultMaxPlayers(s.Kind())
	}

	hosted, err := s.Host(c.Request.Context(), room)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, hosted.Public())
}

func defaultMaxPlayers(kind domain.ConnectionType) int {
	if kind == domain.Bluetooth {
		return 2
	}
	return domain.DefaultMaxPlayers
}

func (h *ControlHandler) StartLANDiscovery(c *gin.Context) {
	if err := h.LAN.StartDiscovery(h.DiscoveryCtx); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"discovering": true})
}

func (h *ControlHandler) StopLANDiscovery(c *gin.Context) {
	h.LAN.StopDiscovery()
	c.JSON(http.StatusOK, gin.H{"discovering": false})
}

func (h *ControlHandler) LANRooms(c *gin.Context) {
	rooms := h.Rooms.Rooms(domain.LAN)
	for i := range rooms {
		rooms[i] = rooms[i].Public()
	}
	c.JSON(http.StatusOK, rooms)
}

func (h *ControlHandler) JoinLAN(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.RoomID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "roomId is required"})
		return
	}
	room, ok := h.Rooms.Lookup(c.Request.Context(), req.RoomID)
	if !ok || room.ConnectionType != domain.LAN {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	if room.IsFull() {
		writeError(c, domain.ErrRoomFull)
		return
	}
	h.join(c, h.LAN, room, req.Password)
}

func (h *ControlHandler) ScanBT(c *gin.Context) {
	if err := h.BT.StartDiscovery(h.DiscoveryCtx); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"scanning": true})
}

type devicesResponse struct {
	Scanning bool               `json:"scanning"`
	Nearby   []bluetooth.Device `json:"nearby"`
	Bonded   []domain.RoomInfo  `json:"bonded"`
	Rooms    []domain.RoomInfo  `json:"rooms"`
	Error    string             `json:"error,omitempty"`
}

// BTDevices lists scan results and paired devices. A radio error still returns the scan list.
func (h *ControlHandler) BTDevices(c *gin.Context) {
	resp := devicesResponse{
		Scanning: h.Devices.Scanning(),
		Nearby:   h.Devices.Devices(),
		Rooms:    h.Rooms.Rooms(domain.Bluetooth),
	}
	bonded, err := h.Devices.Bonded(c.Request.Context())
	if err != nil {
		resp.Error = err.Error()
	}
	resp.Bonded = bonded
	if resp.Nearby == nil {
		resp.Nearby = []bluetooth.Device{}
	}
	if resp.Bonded == nil {
		resp.Bonded = []domain.RoomInfo{}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ControlHandler) JoinBT(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	id := req.RoomID
	if id == "" {
		id = req.Address
	}
	if strings.TrimSpace(id) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required"})
		return
	}

	room, ok := h.Rooms.Lookup(c.Request.Context(), id)
	if !ok {
		// paired devices never show up in a scan, so an address alone is enough
		room = domain.RoomInfo{
			ID:             id,
			Name:           req.Name,
			HostAddress:    id,
			HostName:       req.Name,
			ConnectionType: domain.Bluetooth,
			MaxPlayers:     2,
		}
	}
	h.join(c, h.BT, room, req.Password)
}

func (h *ControlHandler) join(c *gin.Context, s Session, room domain.RoomInfo, password string) {
	if err := s.Join(c.Request.Context(), room, password); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.State())
}

// StartGame runs over whichever link is connected, or single-player when none is.
func (h *ControlHandler) StartGame(c *gin.Context) {
	var link game.Link
	for _, s := range []Session{h.LAN, h.BT} {
		if s.State().Connected {
			link = s
			break
		}
	}

	view, err := h.Game.Start(link)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ControlHandler) Steer(c *gin.Context) {
	var req struct {
		Direction string `json:"direction"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	if _, ok := domain.ParseDirection(req.Direction); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be up, down, left or right"})
		return
	}
	if err := h.Game.Steer(req.Direction); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ControlHandler) Boost(c *gin.Context) {
	var req struct {
		On bool `json:"on"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	if err := h.Game.Boost(req.On); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// StopAll ends the match and tears both sessions down.
func (h *ControlHandler) StopAll(c *gin.Context) {
	h.Game.Stop()
	h.LAN.Stop()
	h.BT.Stop()
	c.JSON(http.StatusOK, stateResponse{LAN: h.LAN.State(), BT: h.BT.State()})
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrBlankName), errors.Is(err, auth.ErrInvalidPassword):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrWrongPassword), errors.Is(err, domain.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrRoomFull), errors.Is(err, domain.ErrAlreadyActive), errors.Is(err, domain.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDisabled), errors.Is(err, domain.ErrUnsupported), errors.Is(err, domain.ErrNoLocalAddress):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}
