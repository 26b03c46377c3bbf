package domain

import (
	"math"
	"time"
)

const (
	ReferenceInterval = 150 * time.Millisecond
	MinBaseInterval   = 30 * time.Millisecond
	MinBoostInterval  = 15 * time.Millisecond

	DefaultSpeed           = 1.0
	DefaultBoostMultiplier = 1.5
)

// Settings are the local user preferences the core reads but never writes.
type Settings struct {
	Speed           float64 `json:"speed"`
	BoostMultiplier float64 `json:"boostMultiplier"`
	SoundVolume     float64 `json:"soundVolume"`
	MusicVolume     float64 `json:"musicVolume"`
	Vibration       bool    `json:"vibration"`
}

func DefaultSettings() Settings {
	return Settings{
		Speed:           DefaultSpeed,
		BoostMultiplier: DefaultBoostMultiplier,
		SoundVolume:     1,
		MusicVolume:     1,
		Vibration:       true,
	}
}

// Clamp keeps every value inside the ranges the settings screen allows.
func (s Settings) Clamp() Settings {
	s.Speed = clamp(s.Speed, 0.5, 2.0)
	s.BoostMultiplier = clamp(s.BoostMultiplier, 1.0, 3.0)
	s.SoundVolume = clamp(s.SoundVolume, 0, 1)
	s.MusicVolume = clamp(s.MusicVolume, 0, 1)
	return s
}

type GameSessionConfig struct {
	MaxPlayers      int     `json:"maxPlayers"`
	AllowWallPass   bool    `json:"allowWallPass"`
	BaseSpeed       float64 `json:"baseSpeed"`
	BoostMultiplier float64 `json:"boostMultiplier"`
}

// NewSessionConfig builds the config from the room (nil for single-player) and local settings.
func NewSessionConfig(room *RoomInfo, settings Settings) GameSessionConfig {
	cfg := GameSessionConfig{
		MaxPlayers:      2,
		BaseSpeed:       settings.Speed,
		BoostMultiplier: settings.BoostMultiplier,
	}
	if room != nil {
		if room.MaxPlayers >= 2 {
			cfg.MaxPlayers = room.MaxPlayers
		}
		cfg.AllowWallPass = room.AllowWallPass
	}
	return cfg
}

func (c GameSessionConfig) TickInterval() time.Duration {
	base := time.Duration(float64(ReferenceInterval) / math.Max(c.BaseSpeed, 0.1))
	return max(base, MinBaseInterval)
}

func (c GameSessionConfig) BoostedInterval() time.Duration {
	boosted := time.Duration(float64(c.TickInterval()) / math.Max(c.BoostMultiplier, 1))
	return max(boosted, MinBoostInterval)
}

// Interval picks the boosted interval when boost is held.
func (c GameSessionConfig) Interval(boost bool) time.Duration {
	if boost {
		return c.BoostedInterval()
	}
	return c.TickInterval()
}

func (c GameSessionConfig) FoodCount(playerCount int) int {
	return FoodCount(playerCount)
}

func FoodCount(playerCount int) int {
	return max(1, playerCount-1)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}
