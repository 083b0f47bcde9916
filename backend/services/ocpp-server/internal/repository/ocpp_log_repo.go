package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

const createFramesTable = `
	CREATE TABLE IF NOT EXISTS ocpp_messages (
		id BIGSERIAL PRIMARY KEY,
		charge_point_id TEXT NOT NULL,
		direction TEXT NOT NULL,
		action TEXT NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS ocpp_messages_charge_point_idx ON ocpp_messages (charge_point_id, created_at DESC);
`

// Frame is one stored payload.
type Frame struct {
	ID            int64           `json:"id"`
	ChargePointID string          `json:"chargePointId"`
	Direction     string          `json:"direction"`
	Action        string          `json:"action"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// OCPPLogRepository stores OCPP payloads exchanged with charge points.
type OCPPLogRepository struct {
	db *sql.DB
}

// NewOCPPLogRepository ctor.
func NewOCPPLogRepository(db *sql.DB) *OCPPLogRepository {
	return &OCPPLogRepository{db: db}
}

// EnsureSchema creates the table when missing.
func (r *OCPPLogRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, createFramesTable)
	return err
}

// Save stores log entry.
func (r *OCPPLogRepository) Save(ctx context.Context, chargePointID, direction, action string, payload []byte) error {
	const query = `
		INSERT INTO ocpp_messages (charge_point_id, direction, action, payload)
		VALUES ($1, $2, $3, $4)
	`
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := r.db.ExecContext(ctx, query, chargePointID, direction, action, string(payload))
	return err
}

// Recent returns the latest frames of a charge point, newest first.
func (r *OCPPLogRepository) Recent(ctx context.Context, chargePointID string, limit int) ([]Frame, error) {
	const query = `
		SELECT id, charge_point_id, direction, action, payload, created_at
		FROM ocpp_messages
		WHERE charge_point_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, query, chargePointID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		var f Frame
		var payload []byte
		if err := rows.Scan(&f.ID, &f.ChargePointID, &f.Direction, &f.Action, &payload, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.Payload = payload
		frames = append(frames, f)
	}
	return frames, rows.Err()
}
