package domain

import "math/rand/v2"

const spawnAttempts = 1000

// SpawnFood picks a random free cell, falling back to (0,0) after a bounded search.
func SpawnFood(width, height int, occupied map[Cell]struct{}) Cell {
	if width <= 0 || height <= 0 {
		return Cell{}
	}
	for i := 0; i < spawnAttempts; i++ {
		c := Cell{X: rand.IntN(width), Y: rand.IntN(height)}
		if _, taken := occupied[c]; !taken {
			return c
		}
	}
	return Cell{}
}
