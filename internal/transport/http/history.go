package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/snakesync/internal/domain"
)

type MatchStore interface {
	ListMatches(ctx context.Context, limit int) ([]domain.MatchRecord, error)
	GetMatch(ctx context.Context, matchID string) (*domain.MatchRecord, error)
}

type HistoryHandler struct {
	// nil when no database is configured
	Store MatchStore
}

func NewHistoryHandler(store MatchStore) *HistoryHandler {
	return &HistoryHandler{Store: store}
}

type historyItem struct {
	ID        string                `json:"id"`
	RoomName  string                `json:"roomName"`
	Transport domain.ConnectionType `json:"transport"`
	Result    string                `json:"result"`
	Winner    string                `json:"winner,omitempty"`
	Score     int                   `json:"score"`
	Ticks     int64                 `json:"ticks"`
	Players   int                   `json:"players"`
	Duration  int                   `json:"durationSeconds"`
	CreatedAt string                `json:"createdAt"`
}

// GetHistory lists recent matches. Without a database the list is simply empty.
func (h *HistoryHandler) GetHistory(c *gin.Context) {
	if h.Store == nil {
		c.JSON(http.StatusOK, []historyItem{})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = n
	}

	matches, err := h.Store.ListMatches(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}

	history := make([]historyItem, 0, len(matches))
	for _, m := range matches {
		item := historyItem{
			ID:        m.MatchID,
			RoomName:  m.RoomName,
			Transport: m.Transport,
			Result:    string(m.Result),
			Winner:    m.WinnerName,
			Score:     m.Score,
			Ticks:     m.Ticks,
			Players:   len(m.Players),
			Duration:  m.DurationSeconds,
			CreatedAt: m.FinishedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if item.Transport == "" {
			item.Transport = "SOLO"
		}
		history = append(history, item)
	}

	c.JSON(http.StatusOK, history)
}

func (h *HistoryHandler) GetMatchDetails(c *gin.Context) {
	if h.Store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Match not found"})
		return
	}

	match, err := h.Store.GetMatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch match"})
		return
	}
	if match == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Match not found"})
		return
	}
	c.JSON(http.StatusOK, match)
}
