package groundwater

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL station repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// ListStations retrieves every station ordered by ID.
func (r *PostgresRepository) ListStations(ctx context.Context) ([]*Station, error) {
	query := `
		SELECT id, name, district, state, lat, lon, updated_at
		FROM stations
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stations []*Station
	for rows.Next() {
		var s Station
		if err := rows.Scan(&s.ID, &s.Name, &s.District, &s.State, &s.Lat, &s.Lon, &s.UpdatedAt); err != nil {
			return nil, err
		}
		stations = append(stations, &s)
	}

	return stations, rows.Err()
}

// GetStation retrieves a station by ID.
func (r *PostgresRepository) GetStation(ctx context.Context, id string) (*Station, error) {
	query := `
		SELECT id, name, district, state, lat, lon, updated_at
		FROM stations
		WHERE id = $1
	`

	var s Station
	err := r.pool.QueryRow(ctx, query, id).Scan(&s.ID, &s.Name, &s.District, &s.State, &s.Lat, &s.Lon, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStationNotFound
		}
		return nil, err
	}

	return &s, nil
}

// LatestReadings retrieves up to two readings per station, newest first.
func (r *PostgresRepository) LatestReadings(ctx context.Context) ([]*Reading, error) {
	query := `
		SELECT station_id, level_m, measured_at
		FROM (
			SELECT
				station_id, level_m, measured_at,
				ROW_NUMBER() OVER (PARTITION BY station_id ORDER BY measured_at DESC) AS rn
			FROM station_readings
		) ranked
		WHERE rn <= 2
		ORDER BY station_id, measured_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []*Reading
	for rows.Next() {
		var reading Reading
		if err := rows.Scan(&reading.StationID, &reading.Level, &reading.MeasuredAt); err != nil {
			return nil, err
		}
		readings = append(readings, &reading)
	}

	return readings, rows.Err()
}

// SaveReadings stores readings, replacing any with the same station and time.
func (r *PostgresRepository) SaveReadings(ctx context.Context, readings []*Reading) error {
	if len(readings) == 0 {
		return nil
	}

	query := `
		INSERT INTO station_readings (station_id, level_m, measured_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (station_id, measured_at) DO UPDATE SET level_m = EXCLUDED.level_m
	`

	batch := &pgx.Batch{}
	for _, reading := range readings {
		batch.Queue(query, reading.StationID, reading.Level, reading.MeasuredAt)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save readings: %w", err)
	}
	return nil
}

// UpsertStations creates or updates stations.
func (r *PostgresRepository) UpsertStations(ctx context.Context, stations []*Station) error {
	if len(stations) == 0 {
		return nil
	}

	query := `
		INSERT INTO stations (id, name, district, state, lat, lon, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			district = EXCLUDED.district,
			state = EXCLUDED.state,
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			updated_at = EXCLUDED.updated_at
	`

	batch := &pgx.Batch{}
	for _, s := range stations {
		batch.Queue(query, s.ID, s.Name, s.District, s.State, s.Lat, s.Lon, s.UpdatedAt)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert stations: %w", err)
	}
	return nil
}

// ReadingHistory returns up to limit of the station's most recent readings,
// oldest first.
func (r *PostgresRepository) ReadingHistory(ctx context.Context, stationID string, limit int) ([]*Reading, error) {
	query := `
		SELECT station_id, level_m, measured_at
		FROM station_readings
		WHERE station_id = $1
		ORDER BY measured_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, stationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []*Reading
	for rows.Next() {
		var reading Reading
		if err := rows.Scan(&reading.StationID, &reading.Level, &reading.MeasuredAt); err != nil {
			return nil, err
		}
		readings = append(readings, &reading)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(readings)
	return readings, nil
}

// SaveDistrictSummaries upserts one row per district.
func (r *PostgresRepository) SaveDistrictSummaries(ctx context.Context, summaries []*DistrictSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	query := `
		INSERT INTO district_summaries (district, state, points, mean_level_m, worst_status, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (district, state) DO UPDATE SET
			points = EXCLUDED.points,
			mean_level_m = EXCLUDED.mean_level_m,
			worst_status = EXCLUDED.worst_status,
			computed_at = EXCLUDED.computed_at
	`

	batch := &pgx.Batch{}
	for _, d := range summaries {
		batch.Queue(query, d.District, d.State, d.Points, d.MeanLevel, string(d.WorstStatus), d.ComputedAt)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save district summaries: %w", err)
	}
	return nil
}

// DistrictSummaries returns every stored district summary.
func (r *PostgresRepository) DistrictSummaries(ctx context.Context) ([]*DistrictSummary, error) {
	query := `
		SELECT district, state, points, mean_level_m, worst_status, computed_at
		FROM district_summaries
		ORDER BY state, district
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []*DistrictSummary
	for rows.Next() {
		var (
			d      DistrictSummary
			status string
		)
		if err := rows.Scan(&d.District, &d.State, &d.Points, &d.MeanLevel, &status, &d.ComputedAt); err != nil {
			return nil, err
		}
		d.WorstStatus = Status(status)
		summaries = append(summaries, &d)
	}

	return summaries, rows.Err()
}
