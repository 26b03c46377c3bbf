package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iamasit07/snakesync/internal/domain"
	"github.com/lib/pq"
)

type MatchRepo struct {
	DB *sql.DB
}

func NewMatchRepo(db *sql.DB) *MatchRepo {
	return &MatchRepo{DB: db}
}

// SaveMatch stores a finished match and its players in one transaction.
func (r *MatchRepo) SaveMatch(ctx context.Context, m domain.MatchRecord) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
	INSERT INTO matches (match_id, room_id, room_name, transport, role, result, winner_id, winner_name, ticks, score, duration_seconds, started_at, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (match_id) DO UPDATE SET
		result = EXCLUDED.result,
		winner_id = EXCLUDED.winner_id,
		winner_name = EXCLUDED.winner_name,
		ticks = EXCLUDED.ticks,
		score = EXCLUDED.score,
		duration_seconds = EXCLUDED.duration_seconds,
		finished_at = EXCLUDED.finished_at;
	`
	_, err = tx.ExecContext(ctx, query,
		m.MatchID, m.RoomID, m.RoomName, string(m.Transport), string(m.Role), string(m.Result),
		nullString(m.WinnerID), nullString(m.WinnerName),
		m.Ticks, m.Score, m.DurationSeconds, m.StartedAt, m.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert match record: %w", err)
	}

	for _, p := range m.Players {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO match_players (match_id, player_id, name, status, length)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (match_id, player_id) DO UPDATE SET status = EXCLUDED.status, length = EXCLUDED.length;
		`, m.MatchID, p.ID, p.Name, string(p.Status), p.Length)
		if err != nil {
			return fmt.Errorf("failed to save match player %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListMatches returns the most recent matches, newest first, with their players.
func (r *MatchRepo) ListMatches(ctx context.Context, limit int) ([]domain.MatchRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
	SELECT match_id, room_id, room_name, transport, role, result, winner_id, winner_name,
	       ticks, score, duration_seconds, started_at, finished_at
	FROM matches
	ORDER BY finished_at DESC
	LIMIT $1;
	`
	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query match history: %w", err)
	}
	defer rows.Close()

	matches := []domain.MatchRecord{}
	index := make(map[string]int)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		index[m.MatchID] = len(matches)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read match history: %w", err)
	}
	if len(matches) == 0 {
		return matches, nil
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.MatchID)
	}
	players, err := r.playersFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for id, ps := range players {
		matches[index[id]].Players = ps
	}
	return matches, nil
}

// GetMatch returns nil, nil when the match does not exist.
func (r *MatchRepo) GetMatch(ctx context.Context, matchID string) (*domain.MatchRecord, error) {
	query := `
	SELECT match_id, room_id, room_name, transport, role, result, winner_id, winner_name,
	       ticks, score, duration_seconds, started_at, finished_at
	FROM matches
	WHERE match_id = $1;
	`
	m, err := scanMatch(r.DB.QueryRowContext(ctx, query, matchID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	players, err := r.playersFor(ctx, []string{matchID})
	if err != nil {
		return nil, err
	}
	m.Players = players[matchID]
	return &m, nil
}

// CleanupOld deletes matches finished more than daysToKeep days ago.
func (r *MatchRepo) CleanupOld(ctx context.Context, daysToKeep int) (int64, error) {
	query := `DELETE FROM matches WHERE finished_at < NOW() - make_interval(days => $1);`
	res, err := r.DB.ExecContext(ctx, query, daysToKeep)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up old matches: %w", err)
	}
	return res.RowsAffected()
}

func (r *MatchRepo) playersFor(ctx context.Context, ids []string) (map[string][]domain.MatchPlayer, error) {
	rows, err := r.DB.QueryContext(ctx, `
	SELECT match_id, player_id, name, status, length
	FROM match_players
	WHERE match_id = ANY($1)
	ORDER BY match_id, player_id;
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query match players: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.MatchPlayer)
	for rows.Next() {
		var matchID, status string
		var p domain.MatchPlayer
		if err := rows.Scan(&matchID, &p.ID, &p.Name, &status, &p.Length); err != nil {
			return nil, fmt.Errorf("failed to scan match player: %w", err)
		}
		p.Status = domain.PlayerStatus(status)
		out[matchID] = append(out[matchID], p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (domain.MatchRecord, error) {
	var m domain.MatchRecord
	var transport, role, result string
	var winnerID, winnerName sql.NullString

	err := row.Scan(
		&m.MatchID,
		&m.RoomID,
		&m.RoomName,
		&transport,
		&role,
		&result,
		&winnerID,
		&winnerName,
		&m.Ticks,
		&m.Score,
		&m.DurationSeconds,
		&m.StartedAt,
		&m.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return m, err
	}
	if err != nil {
		return m, fmt.Errorf("failed to scan match row: %w", err)
	}

	m.Transport = domain.ConnectionType(transport)
	m.Role = domain.Role(role)
	m.Result = domain.ResultKind(result)
	if winnerID.Valid {
		m.WinnerID = winnerID.String
	}
	if winnerName.Valid {
		m.WinnerName = winnerName.String
	}
	return m, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
