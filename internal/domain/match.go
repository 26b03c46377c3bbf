package domain

import "time"

type MatchPlayer struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Status PlayerStatus `json:"status"`
	Length int          `json:"length"`
}

// MatchRecord is a finished session as kept in history.
type MatchRecord struct {
	MatchID         string         `json:"matchId"`
	RoomID          string         `json:"roomId,omitempty"`
	RoomName        string         `json:"roomName,omitempty"`
	Transport       ConnectionType `json:"transport,omitempty"`
	Role            Role           `json:"role"`
	Result          ResultKind     `json:"result"`
	WinnerID        string         `json:"winnerId,omitempty"`
	WinnerName      string         `json:"winnerName,omitempty"`
	Ticks           int64          `json:"ticks"`
	Score           int            `json:"score"`
	DurationSeconds int            `json:"durationSeconds"`
	StartedAt       time.Time      `json:"startedAt"`
	FinishedAt      time.Time      `json:"finishedAt"`
	Players         []MatchPlayer  `json:"players"`
}
