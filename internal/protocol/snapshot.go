package protocol

import "github.com/iamasit07/snakesync/internal/domain"

const snapshotKind = "state"

type SnakeState struct {
	ID    string
	Name  string
	Body  []domain.Cell
	Alive bool
}

// Snapshot is the per-tick world state a peer pushes to the others.
type Snapshot struct {
	Snakes []SnakeState
	Foods  []domain.Cell
	Score  int
	Tick   int64
}

func (s Snapshot) Packet() Packet {
	return NewPacket(PlayerState, s.Payload())
}

func (s Snapshot) Payload() map[string]any {
	snakes := make([]any, 0, len(s.Snakes))
	for _, sn := range s.Snakes {
		body := make([]any, 0, len(sn.Body))
		for _, c := range sn.Body {
			body = append(body, []any{c.X, c.Y})
		}
		entry := map[string]any{
			"id":    sn.ID,
			"body":  body,
			"alive": sn.Alive,
		}
		if sn.Name != "" {
			entry["name"] = sn.Name
		}
		snakes = append(snakes, entry)
	}

	return map[string]any{
		"type":   snapshotKind,
		"snakes": snakes,
		"foods":  cellsPayload(s.Foods),
		"score":  s.Score,
		"tick":   s.Tick,
	}
}

// DecodeSnapshot tolerates partial payloads; only a wrong "type" marker is rejected.
func DecodeSnapshot(payload map[string]any) (Snapshot, bool) {
	if payload == nil {
		return Snapshot{}, false
	}
	if kind, ok := String(payload, "type"); ok && kind != snapshotKind {
		return Snapshot{}, false
	}

	var snap Snapshot
	if list, ok := payload["snakes"].([]any); ok {
		for _, raw := range list {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			id, _ := String(entry, "id")
			if id == "" {
				continue
			}
			name, _ := String(entry, "name")
			alive, present := Bool(entry, "alive")
			if !present {
				alive = true
			}
			snap.Snakes = append(snap.Snakes, SnakeState{
				ID:    id,
				Name:  name,
				Body:  decodeBody(entry["body"]),
				Alive: alive,
			})
		}
	}

	snap.Foods = decodeFoods(payload)
	if score, ok := Int(payload, "score"); ok {
		snap.Score = int(score)
	}
	snap.Tick, _ = Int(payload, "tick")
	return snap, true
}

// foodDecoder is one schema version of the food field. Newest first.
type foodDecoder func(payload map[string]any) ([]domain.Cell, bool)

var foodDecoders = []foodDecoder{
	decodeFoodList,
	decodeLegacyFood,
}

func decodeFoods(payload map[string]any) []domain.Cell {
	for _, decode := range foodDecoders {
		if foods, ok := decode(payload); ok {
			return foods
		}
	}
	return []domain.Cell{}
}

func decodeFoodList(payload map[string]any) ([]domain.Cell, bool) {
	list, ok := payload["foods"].([]any)
	if !ok {
		return nil, false
	}
	foods := make([]domain.Cell, 0, len(list))
	for _, raw := range list {
		if c, ok := decodeCell(raw); ok {
			foods = append(foods, c)
		}
	}
	return foods, true
}

func decodeLegacyFood(payload map[string]any) ([]domain.Cell, bool) {
	c, ok := decodeCell(payload["food"])
	if !ok {
		return nil, false
	}
	return []domain.Cell{c}, true
}

func decodeBody(raw any) []domain.Cell {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	body := make([]domain.Cell, 0, len(list))
	for _, p := range list {
		if c, ok := decodeCell(p); ok {
			body = append(body, c)
		}
	}
	return body
}

// decodeCell accepts both [x,y] pairs and {"x":..,"y":..} objects.
func decodeCell(raw any) (domain.Cell, bool) {
	switch v := raw.(type) {
	case []any:
		if len(v) < 2 {
			return domain.Cell{}, false
		}
		x, okX := toInt(v[0])
		y, okY := toInt(v[1])
		return domain.Cell{X: int(x), Y: int(y)}, okX && okY
	case map[string]any:
		x, okX := Int(v, "x")
		y, okY := Int(v, "y")
		return domain.Cell{X: int(x), Y: int(y)}, okX && okY
	default:
		return domain.Cell{}, false
	}
}

func cellsPayload(cells []domain.Cell) []any {
	out := make([]any, 0, len(cells))
	for _, c := range cells {
		out = append(out, map[string]any{"x": c.X, "y": c.Y})
	}
	return out
}
