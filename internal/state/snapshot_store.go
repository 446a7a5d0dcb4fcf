package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tbwebb22/gandalf-protocol/internal/types"
)

// SaveRebalanceSnapshot persists one cycle record and returns its row ID.
func SaveRebalanceSnapshot(snapshot types.RebalanceSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	beforeJSON, err := json.Marshal(snapshot.Before)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal before state: %w", err)
	}
	var afterJSON []byte
	if snapshot.Success {
		afterJSON, err = json.Marshal(snapshot.After)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal after state: %w", err)
		}
	}

	query := `
		INSERT INTO rebalance_snapshots (
			cycle_number, cycle_id, snapshot_timestamp, triggered_by,
			before_state, after_state, repositioned, success, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = DB.QueryRow(
		query,
		snapshot.CycleNumber, snapshot.CycleID, snapshot.Timestamp, snapshot.TriggeredBy,
		beforeJSON, nullableJSON(afterJSON), snapshot.Repositioned, snapshot.Success,
		nullableString(snapshot.ErrorMessage),
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save rebalance snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Int("cycle_number", snapshot.CycleNumber).
		Bool("repositioned", snapshot.Repositioned).
		Bool("success", snapshot.Success).
		Msg("Rebalance snapshot saved to database")
	return snapshotID, nil
}

// GetRecentSnapshots returns the latest cycle records, newest first.
func GetRecentSnapshots(limit int) ([]types.RebalanceSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT snapshot_id, cycle_number, cycle_id, snapshot_timestamp, triggered_by,
		       before_state, after_state, repositioned, success, error_message
		FROM rebalance_snapshots
		ORDER BY snapshot_timestamp DESC
		LIMIT $1;
	`
	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rebalance snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []types.RebalanceSnapshot
	for rows.Next() {
		var (
			s          types.RebalanceSnapshot
			beforeJSON []byte
			afterJSON  []byte
			errMsg     sql.NullString
		)
		if err := rows.Scan(
			&s.SnapshotID, &s.CycleNumber, &s.CycleID, &s.Timestamp, &s.TriggeredBy,
			&beforeJSON, &afterJSON, &s.Repositioned, &s.Success, &errMsg,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rebalance snapshot: %w", err)
		}
		if err := json.Unmarshal(beforeJSON, &s.Before); err != nil {
			return nil, fmt.Errorf("failed to unmarshal before state: %w", err)
		}
		if len(afterJSON) > 0 {
			if err := json.Unmarshal(afterJSON, &s.After); err != nil {
				return nil, fmt.Errorf("failed to unmarshal after state: %w", err)
			}
		}
		s.ErrorMessage = errMsg.String
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating rebalance snapshots: %w", err)
	}
	return snapshots, nil
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
