package alert

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL alert repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create stores new alerts, skipping duplicates.
func (r *PostgresRepository) Create(ctx context.Context, alerts []*Alert) ([]*Alert, error) {
	if len(alerts) == 0 {
		return nil, nil
	}

	query := `
		INSERT INTO groundwater_alerts (
			id, wlcode, alert_type, severity, message,
			water_level, triggered_at, acknowledged
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (wlcode, alert_type, triggered_at) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, a := range alerts {
		batch.Queue(query,
			a.ID, a.StationID, string(a.Type), string(a.Severity), a.Message,
			a.WaterLevel, a.TriggeredAt, a.Acknowledged,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	var created []*Alert
	for _, a := range alerts {
		tag, err := results.Exec()
		if err != nil {
			return nil, fmt.Errorf("insert alert: %w", err)
		}
		if tag.RowsAffected() == 1 {
			created = append(created, a)
		}
	}

	return created, nil
}

// List returns alerts matching opts, newest first.
func (r *PostgresRepository) List(ctx context.Context, opts ListOptions) ([]*Alert, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if opts.StationID != "" {
		args = append(args, opts.StationID)
		conditions = append(conditions, fmt.Sprintf("wlcode = $%d", len(args)))
	}
	if opts.OnlyUnacknowledged {
		conditions = append(conditions, "acknowledged = false")
	}

	query := `
		SELECT id, wlcode, alert_type, severity, message, water_level, triggered_at, acknowledged
		FROM groundwater_alerts
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY triggered_at DESC, id"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		var (
			a         Alert
			alertType string
			severity  string
		)
		err := rows.Scan(
			&a.ID,
			&a.StationID,
			&alertType,
			&severity,
			&a.Message,
			&a.WaterLevel,
			&a.TriggeredAt,
			&a.Acknowledged,
		)
		if err != nil {
			return nil, err
		}
		a.Type = Type(alertType)
		a.Severity = Severity(severity)
		alerts = append(alerts, &a)
	}

	return alerts, rows.Err()
}

// Acknowledge marks an alert as acknowledged.
func (r *PostgresRepository) Acknowledge(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE groundwater_alerts SET acknowledged = true WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlertNotFound
	}
	return nil
}
