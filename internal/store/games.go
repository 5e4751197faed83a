package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/gamelog/internal/model"
)

// ErrNotFound is returned by mutations that target a missing row.
var ErrNotFound = errors.New("not found")

// Cover identifies a stored cover blob.
type Cover struct {
	Key  string
	MIME string
}

const gameColumns = `id, name, platform, status, description, cover_key, cover_mime, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(s rowScanner) (*model.Game, error) {
	g := &model.Game{}
	var description, coverKey, coverMime sql.NullString
	if err := s.Scan(&g.ID, &g.Name, &g.Platform, &g.Status, &description, &coverKey, &coverMime, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	g.Description = description.String
	g.CoverKey = coverKey.String
	g.CoverMime = coverMime.String
	return g, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateGame inserts a game, optionally with a cover already stored.
func CreateGame(ctx context.Context, db *sql.DB, in model.GameInput, cover *Cover) (*model.Game, error) {
	var key, mime sql.NullString
	if cover != nil {
		key, mime = nullString(cover.Key), nullString(cover.MIME)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO games (name, platform, status, description, cover_key, cover_mime) VALUES (?, ?, ?, ?, ?, ?)`,
		in.Name, in.Platform, in.Status, nullString(in.Description), key, mime,
	)
	if err != nil {
		return nil, fmt.Errorf("creating game: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting game id: %w", err)
	}

	return GetGame(ctx, db, id)
}

// GetGame returns a game by ID, or nil if it does not exist.
func GetGame(ctx context.Context, db *sql.DB, id int64) (*model.Game, error) {
	g, err := scanGame(db.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting game: %w", err)
	}
	return g, nil
}

// ListGames returns all games newest first, optionally filtered by status.
func ListGames(ctx context.Context, db *sql.DB, status string) ([]model.Game, error) {
	var rows *sql.Rows
	var err error

	if status != "" {
		rows, err = db.QueryContext(ctx,
			`SELECT `+gameColumns+` FROM games WHERE status = ? ORDER BY id DESC`, status,
		)
	} else {
		rows, err = db.QueryContext(ctx,
			`SELECT `+gameColumns+` FROM games ORDER BY id DESC`,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}
	defer rows.Close()

	var games []model.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		games = append(games, *g)
	}
	return games, rows.Err()
}

// UpdateGame replaces a game's fields. When cover is non-nil it also
// replaces the cover and returns the key of the cover it displaced.
func UpdateGame(ctx context.Context, db *sql.DB, id int64, in model.GameInput, cover *Cover) (string, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning update: %w", err)
	}
	defer tx.Rollback()

	oldKey, err := currentCoverKey(ctx, tx, id)
	if err != nil {
		return "", err
	}

	if cover != nil {
		_, err = tx.ExecContext(ctx,
			`UPDATE games SET name = ?, platform = ?, status = ?, description = ?, cover_key = ?, cover_mime = ?,
			 updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			in.Name, in.Platform, in.Status, nullString(in.Description), cover.Key, cover.MIME, id,
		)
	} else {
		oldKey = ""
		_, err = tx.ExecContext(ctx,
			`UPDATE games SET name = ?, platform = ?, status = ?, description = ?,
			 updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			in.Name, in.Platform, in.Status, nullString(in.Description), id,
		)
	}
	if err != nil {
		return "", fmt.Errorf("updating game: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing update: %w", err)
	}
	return oldKey, nil
}

// ClearGameCover drops a game's cover reference and returns the key it held.
// Clearing a game without a cover succeeds and returns "".
func ClearGameCover(ctx context.Context, db *sql.DB, id int64) (string, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning cover removal: %w", err)
	}
	defer tx.Rollback()

	oldKey, err := currentCoverKey(ctx, tx, id)
	if err != nil {
		return "", err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE games SET cover_key = NULL, cover_mime = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id,
	)
	if err != nil {
		return "", fmt.Errorf("clearing game cover: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing cover removal: %w", err)
	}
	return oldKey, nil
}

// DeleteGame removes a game and returns the key of its cover, if any.
func DeleteGame(ctx context.Context, db *sql.DB, id int64) (string, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning delete: %w", err)
	}
	defer tx.Rollback()

	oldKey, err := currentCoverKey(ctx, tx, id)
	if err != nil {
		return "", err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM games WHERE id = ?`, id); err != nil {
		return "", fmt.Errorf("deleting game: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing delete: %w", err)
	}
	return oldKey, nil
}

// currentCoverKey returns the cover key of a game inside tx, or ErrNotFound.
func currentCoverKey(ctx context.Context, tx *sql.Tx, id int64) (string, error) {
	var key sql.NullString
	err := tx.QueryRowContext(ctx, `SELECT cover_key FROM games WHERE id = ?`, id).Scan(&key)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading game cover: %w", err)
	}
	return key.String, nil
}
