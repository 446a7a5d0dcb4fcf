package state

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tbwebb22/gandalf-protocol/internal/types"
)

// SaveConfigChange records one owner mutation of the pool configuration.
func SaveConfigChange(change types.ConfigChange) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO config_changes (change_timestamp, field, old_value, new_value, changed_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING change_id;
	`

	var changeID int64
	err := DB.QueryRow(
		query,
		change.Timestamp, change.Field, change.OldValue, change.NewValue, change.ChangedBy,
	).Scan(&changeID)
	if err != nil {
		return 0, fmt.Errorf("failed to save config change: %w", err)
	}

	log.Info().
		Int64("change_id", changeID).
		Str("field", change.Field).
		Str("old_value", change.OldValue).
		Str("new_value", change.NewValue).
		Msg("Config change saved to database")
	return changeID, nil
}

// GetConfigChanges returns the configuration audit trail, newest first.
func GetConfigChanges(limit int) ([]types.ConfigChange, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT change_id, change_timestamp, field, old_value, new_value, changed_by
		FROM config_changes
		ORDER BY change_timestamp DESC
		LIMIT $1;
	`
	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query config changes: %w", err)
	}
	defer rows.Close()

	var changes []types.ConfigChange
	for rows.Next() {
		var c types.ConfigChange
		if err := rows.Scan(&c.ChangeID, &c.Timestamp, &c.Field, &c.OldValue, &c.NewValue, &c.ChangedBy); err != nil {
			return nil, fmt.Errorf("failed to scan config change: %w", err)
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating config changes: %w", err)
	}
	return changes, nil
}
