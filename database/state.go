package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/angas/awattar-go/store"
	"github.com/angas/awattar-go/types"
)

type StateRow struct {
	Id        string            `json:"id"`
	Object    types.StateObject `json:"object"`
	Val       any               `json:"val"`
	Ack       bool              `json:"ack"`
	UpdatedAt *time.Time        `json:"updatedAt,omitempty"` // nil if declared but never written
}

func (d *Database) SetObjectNotExists(ctx context.Context, id string, obj types.StateObject) error {
	_, err := d.write.ExecContext(ctx, `
		INSERT INTO state_object (id, name, type, role, unit, description, readable, writable, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		id, obj.Name, obj.Type, obj.Role, obj.Unit, obj.Desc, obj.Read, obj.Write,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("declaring state object %s: %w", id, err)
	}
	return nil
}

func (d *Database) SetState(ctx context.Context, id string, val any, ack bool) error {
	b, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encoding value of %s: %w", id, err)
	}
	_, err = d.write.ExecContext(ctx, `
		INSERT INTO state_value (id, value, ack, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			value = excluded.value,
			ack = excluded.ack,
			updated_at = excluded.updated_at`,
		id, string(b), ack, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("writing state %s: %w", id, err)
	}
	return nil
}

// Trim deletes every "<channel>.<n>.*" object (and its value) with n >= keep.
func (d *Database) Trim(ctx context.Context, channel string, keep int) error {
	prefix := channel + "."
	rows, err := d.write.QueryContext(ctx, `
		SELECT id FROM state_object WHERE substr(id, 1, ?) = ?`,
		len(prefix), prefix)
	if err != nil {
		return fmt.Errorf("listing %s objects: %w", channel, err)
	}

	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scanning %s object: %w", channel, err)
		}
		if store.IsStale(channel, id, keep) {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading %s objects: %w", channel, err)
	}

	if len(stale) == 0 {
		return nil
	}

	tx, err := d.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start transaction for trimming %s: %w", channel, err)
	}
	defer tx.Rollback()

	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, `DELETE FROM state_object WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit trimming %s: %w", channel, err)
	}

	d.logger.Debug("trimmed stale states", slog.String("channel", channel), slog.Int("keep", keep), slog.Int("deleted", len(stale)))
	return nil
}

func (d *Database) GetState(ctx context.Context, id string) (StateRow, error) {
	row := d.read.QueryRowContext(ctx, selectStates+` WHERE o.id = ?`, id)
	return scanState(row)
}

// GetStates returns all states with ids starting with prefix, ordered by id.
func (d *Database) GetStates(ctx context.Context, prefix string) ([]StateRow, error) {
	rows, err := d.read.QueryContext(ctx, selectStates+`
		WHERE substr(o.id, 1, ?) = ?
		ORDER BY o.id`,
		len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("fetching states: %w", err)
	}
	defer rows.Close()

	var result []StateRow
	for rows.Next() {
		s, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading state rows: %w", err)
	}

	return result, nil
}

const selectStates = `
	SELECT o.id, o.name, o.type, o.role, o.unit, o.description, o.readable, o.writable,
		v.value, v.ack, v.updated_at
	FROM state_object o
	LEFT JOIN state_value v ON v.id = o.id`

type scanner interface {
	Scan(dest ...any) error
}

func scanState(row scanner) (StateRow, error) {
	var s StateRow
	var value, updatedAt sql.NullString
	var ack sql.NullBool
	err := row.Scan(&s.Id, &s.Object.Name, &s.Object.Type, &s.Object.Role, &s.Object.Unit, &s.Object.Desc,
		&s.Object.Read, &s.Object.Write, &value, &ack, &updatedAt)
	if err != nil {
		return StateRow{}, fmt.Errorf("scanning state row: %w", err)
	}

	if value.Valid {
		if err := json.Unmarshal([]byte(value.String), &s.Val); err != nil {
			return StateRow{}, fmt.Errorf("decoding value of %s: %w", s.Id, err)
		}
		s.Ack = ack.Bool
	}
	if updatedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, updatedAt.String)
		if err != nil {
			return StateRow{}, fmt.Errorf("parsing updated_at of %s: %w", s.Id, err)
		}
		s.UpdatedAt = &t
	}

	return s, nil
}
