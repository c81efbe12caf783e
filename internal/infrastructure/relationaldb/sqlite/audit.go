package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ersonp/newsground/internal/domain/entities"
)

// LogAction logs an action to the audit log.
func (r *Repository) LogAction(ctx context.Context, action string, entityID string, details map[string]any) error {
	var detailsJSON sql.NullString
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshaling details: %w", err)
		}
		detailsJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (action, entity_id, details, created_at)
		VALUES (?, ?, ?, ?)
	`, action, nullString(entityID), detailsJSON, formatTime(timeNow()))
	if err != nil {
		return fmt.Errorf("logging action: %w", err)
	}
	return nil
}

// FindAuditLog finds audit log entries for an entity, oldest first.
func (r *Repository) FindAuditLog(ctx context.Context, entityID string) ([]entities.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, action, COALESCE(entity_id, ''), details, created_at
		FROM audit_log
		WHERE entity_id = ?
		ORDER BY id
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("finding audit log: %w", err)
	}
	return scanAuditEntries(rows)
}

// FindAuditLogByAction finds the most recent audit log entries for an action.
func (r *Repository) FindAuditLogByAction(ctx context.Context, action string, limit int) ([]entities.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, action, COALESCE(entity_id, ''), details, created_at
		FROM audit_log
		WHERE action = ?
		ORDER BY id DESC
		LIMIT ?
	`, action, limit)
	if err != nil {
		return nil, fmt.Errorf("finding audit log by action: %w", err)
	}
	return scanAuditEntries(rows)
}

func scanAuditEntries(rows *sql.Rows) ([]entities.AuditEntry, error) {
	defer rows.Close()

	var result []entities.AuditEntry
	for rows.Next() {
		var entry entities.AuditEntry
		var details sql.NullString
		var createdAt string
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.EntityID, &details, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		if details.Valid {
			if err := json.Unmarshal([]byte(details.String), &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshaling details: %w", err)
			}
		}
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = t
		result = append(result, entry)
	}
	return result, rows.Err()
}
