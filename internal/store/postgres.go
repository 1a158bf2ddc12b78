package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"regattalog/api/internal/util"
)

// ErrNotFound reports a lookup for a row that does not exist.
var ErrNotFound = errors.New("store: not found")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// CreateRegatta inserts the root regatta record and returns its id.
func (s *PostgresStore) CreateRegatta(ctx context.Context, regatta Regatta) (string, error) {
	id := util.NewID("rg")
	codeValues, err := json.Marshal(orEmptyMap(regatta.CodeValues))
	if err != nil {
		return "", fmt.Errorf("marshal code values: %w", err)
	}
	discardSteps, err := json.Marshal(orEmptySteps(regatta.DiscardSteps))
	if err != nil {
		return "", fmt.Errorf("marshal discard steps: %w", err)
	}
	var snapshot any
	if len(regatta.SourceSnapshot) > 0 {
		snapshot = string(regatta.SourceSnapshot)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO regattas (id, owner_id, club_id, championship_id, name, venue, organizer, boat_class,
			start_date, end_date, notes, scoring_system, code_values, discard_steps, source_snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::jsonb, $14::jsonb, $15::jsonb)
	`, id, regatta.OwnerID, regatta.ClubID, regatta.ChampionshipID, regatta.Name, regatta.Venue,
		regatta.Organizer, regatta.BoatClass, regatta.StartDate, regatta.EndDate, regatta.Notes,
		regatta.ScoringSystem, string(codeValues), string(discardSteps), snapshot)
	if err != nil {
		return "", fmt.Errorf("insert regatta: %w", err)
	}
	return id, nil
}

// CreateEntry inserts one entry row and returns its id.
func (s *PostgresStore) CreateEntry(ctx context.Context, entry Entry) (string, error) {
	id := util.NewID("en")
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (id, regatta_id, sail_number, boat_class, boat_name, helm_name, crew_names,
			club, nationality, rating, rating_system, fleet_name, division_name, excluded, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, id, entry.RegattaID, entry.SailNumber, entry.BoatClass, entry.BoatName, entry.HelmName,
		entry.CrewNames, entry.Club, entry.Nationality, entry.Rating, entry.RatingSystem,
		entry.FleetName, entry.DivisionName, entry.Excluded, entry.Notes)
	if err != nil {
		return "", fmt.Errorf("insert entry: %w", err)
	}
	return id, nil
}

// CreateRace inserts one race row and returns its id.
func (s *PostgresStore) CreateRace(ctx context.Context, race Race) (string, error) {
	id := util.NewID("rc")
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO races (id, regatta_id, name, race_date, start_time, rank, status, wind_speed, wind_direction)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, id, race.RegattaID, race.Name, race.Date, race.StartTime, race.Rank, race.Status,
		race.WindSpeed, race.WindDirection)
	if err != nil {
		return "", fmt.Errorf("insert race: %w", err)
	}
	return id, nil
}

// CreateResult inserts one result row and returns its id.
func (s *PostgresStore) CreateResult(ctx context.Context, result Result) (string, error) {
	id := util.NewID("rs")
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO results (id, race_id, entry_id, position, elapsed, corrected, status_code,
			points, penalty, redress, redress_position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, id, result.RaceID, result.EntryID, result.Position, result.Elapsed, result.Corrected,
		result.StatusCode, result.Points, result.Penalty, result.Redress, result.RedressPosition)
	if err != nil {
		return "", fmt.Errorf("insert result: %w", err)
	}
	return id, nil
}

// GetRegattaWithChildren loads a regatta and every child row. Entries and
// races come back in insertion order, results grouped by race.
func (s *PostgresStore) GetRegattaWithChildren(ctx context.Context, regattaID string) (RegattaBundle, error) {
	regatta, err := s.GetRegatta(ctx, regattaID)
	if err != nil {
		return RegattaBundle{}, err
	}
	bundle := RegattaBundle{Regatta: regatta}

	entryRows, err := s.db.QueryContext(ctx, `
		SELECT id, regatta_id, sail_number, boat_class, boat_name, helm_name, crew_names,
			club, nationality, rating, rating_system, fleet_name, division_name, excluded, notes, created_at
		FROM entries
		WHERE regatta_id=$1
		ORDER BY created_at ASC, id ASC
	`, regattaID)
	if err != nil {
		return RegattaBundle{}, fmt.Errorf("list entries: %w", err)
	}
	defer entryRows.Close()
	for entryRows.Next() {
		var e Entry
		if err := entryRows.Scan(&e.ID, &e.RegattaID, &e.SailNumber, &e.BoatClass, &e.BoatName,
			&e.HelmName, &e.CrewNames, &e.Club, &e.Nationality, &e.Rating, &e.RatingSystem,
			&e.FleetName, &e.DivisionName, &e.Excluded, &e.Notes, &e.CreatedAt); err != nil {
			return RegattaBundle{}, fmt.Errorf("scan entry: %w", err)
		}
		bundle.Entries = append(bundle.Entries, e)
	}
	if err := entryRows.Err(); err != nil {
		return RegattaBundle{}, fmt.Errorf("iterate entries: %w", err)
	}

	raceRows, err := s.db.QueryContext(ctx, `
		SELECT id, regatta_id, name, race_date, start_time, rank, status, wind_speed, wind_direction, created_at
		FROM races
		WHERE regatta_id=$1
		ORDER BY rank ASC, created_at ASC, id ASC
	`, regattaID)
	if err != nil {
		return RegattaBundle{}, fmt.Errorf("list races: %w", err)
	}
	defer raceRows.Close()
	for raceRows.Next() {
		var r Race
		if err := raceRows.Scan(&r.ID, &r.RegattaID, &r.Name, &r.Date, &r.StartTime, &r.Rank,
			&r.Status, &r.WindSpeed, &r.WindDirection, &r.CreatedAt); err != nil {
			return RegattaBundle{}, fmt.Errorf("scan race: %w", err)
		}
		bundle.Races = append(bundle.Races, r)
	}
	if err := raceRows.Err(); err != nil {
		return RegattaBundle{}, fmt.Errorf("iterate races: %w", err)
	}

	resultRows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.race_id, r.entry_id, r.position, r.elapsed, r.corrected, r.status_code,
			r.points, r.penalty, r.redress, r.redress_position, r.created_at
		FROM results r
		JOIN races ra ON ra.id = r.race_id
		WHERE ra.regatta_id=$1
		ORDER BY ra.rank ASC, r.position ASC NULLS LAST, r.created_at ASC
	`, regattaID)
	if err != nil {
		return RegattaBundle{}, fmt.Errorf("list results: %w", err)
	}
	defer resultRows.Close()
	for resultRows.Next() {
		var r Result
		if err := resultRows.Scan(&r.ID, &r.RaceID, &r.EntryID, &r.Position, &r.Elapsed,
			&r.Corrected, &r.StatusCode, &r.Points, &r.Penalty, &r.Redress, &r.RedressPosition,
			&r.CreatedAt); err != nil {
			return RegattaBundle{}, fmt.Errorf("scan result: %w", err)
		}
		bundle.Results = append(bundle.Results, r)
	}
	if err := resultRows.Err(); err != nil {
		return RegattaBundle{}, fmt.Errorf("iterate results: %w", err)
	}

	return bundle, nil
}

// GetRegatta loads a single regatta row.
func (s *PostgresStore) GetRegatta(ctx context.Context, regattaID string) (Regatta, error) {
	var r Regatta
	var codeValues, discardSteps []byte
	var snapshot sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, club_id, championship_id, name, venue, organizer, boat_class,
			start_date, end_date, notes, scoring_system, code_values, discard_steps,
			source_snapshot, created_at, updated_at
		FROM regattas
		WHERE id=$1
	`, regattaID).Scan(&r.ID, &r.OwnerID, &r.ClubID, &r.ChampionshipID, &r.Name, &r.Venue,
		&r.Organizer, &r.BoatClass, &r.StartDate, &r.EndDate, &r.Notes, &r.ScoringSystem,
		&codeValues, &discardSteps, &snapshot, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Regatta{}, ErrNotFound
	}
	if err != nil {
		return Regatta{}, fmt.Errorf("get regatta: %w", err)
	}
	if err := json.Unmarshal(codeValues, &r.CodeValues); err != nil {
		return Regatta{}, fmt.Errorf("unmarshal code values: %w", err)
	}
	if err := json.Unmarshal(discardSteps, &r.DiscardSteps); err != nil {
		return Regatta{}, fmt.Errorf("unmarshal discard steps: %w", err)
	}
	if snapshot.Valid {
		r.SourceSnapshot = []byte(snapshot.String)
	}
	return r, nil
}

// ListRegattas returns summaries of every regatta, newest first.
func (s *PostgresStore) ListRegattas(ctx context.Context) ([]RegattaSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.venue, r.boat_class, r.start_date,
			(SELECT COUNT(*) FROM entries e WHERE e.regatta_id=r.id) AS entry_count,
			(SELECT COUNT(*) FROM races ra WHERE ra.regatta_id=r.id) AS race_count,
			r.source_snapshot IS NOT NULL AS imported,
			r.updated_at
		FROM regattas r
		ORDER BY r.updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list regattas: %w", err)
	}
	defer rows.Close()

	items := make([]RegattaSummary, 0)
	for rows.Next() {
		var item RegattaSummary
		if err := rows.Scan(&item.ID, &item.Name, &item.Venue, &item.BoatClass, &item.StartDate,
			&item.EntryCount, &item.RaceCount, &item.Imported, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan regatta summary: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate regattas: %w", err)
	}
	return items, nil
}

// UpdateRegatta writes the schema-owned event fields back after a live
// edit; the snapshot is never touched here.
func (s *PostgresStore) UpdateRegatta(ctx context.Context, regatta Regatta) error {
	codeValues, err := json.Marshal(orEmptyMap(regatta.CodeValues))
	if err != nil {
		return fmt.Errorf("marshal code values: %w", err)
	}
	discardSteps, err := json.Marshal(orEmptySteps(regatta.DiscardSteps))
	if err != nil {
		return fmt.Errorf("marshal discard steps: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE regattas
		SET name=$2, venue=$3, organizer=$4, boat_class=$5, start_date=$6, end_date=$7, notes=$8,
			scoring_system=$9, code_values=$10::jsonb, discard_steps=$11::jsonb, updated_at=NOW()
		WHERE id=$1
	`, regatta.ID, regatta.Name, regatta.Venue, regatta.Organizer, regatta.BoatClass,
		regatta.StartDate, regatta.EndDate, regatta.Notes, regatta.ScoringSystem,
		string(codeValues), string(discardSteps))
	if err != nil {
		return fmt.Errorf("update regatta: %w", err)
	}
	return nil
}

// SearchRegattas is the ILIKE fallback used when no search index is
// configured: matches regatta names, venues, sail numbers and helm names.
func (s *PostgresStore) SearchRegattas(ctx context.Context, query string, limit int) ([]RegattaSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT r.id, r.name, r.venue, r.boat_class, r.start_date,
			(SELECT COUNT(*) FROM entries e WHERE e.regatta_id=r.id) AS entry_count,
			(SELECT COUNT(*) FROM races ra WHERE ra.regatta_id=r.id) AS race_count,
			r.source_snapshot IS NOT NULL AS imported,
			r.updated_at
		FROM regattas r
		LEFT JOIN entries e ON e.regatta_id = r.id
		WHERE r.name ILIKE '%' || $1 || '%'
		   OR r.venue ILIKE '%' || $1 || '%'
		   OR e.sail_number ILIKE '%' || $1 || '%'
		   OR e.helm_name ILIKE '%' || $1 || '%'
		ORDER BY r.updated_at DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search regattas: %w", err)
	}
	defer rows.Close()

	items := make([]RegattaSummary, 0)
	for rows.Next() {
		var item RegattaSummary
		if err := rows.Scan(&item.ID, &item.Name, &item.Venue, &item.BoatClass, &item.StartDate,
			&item.EntryCount, &item.RaceCount, &item.Imported, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search hits: %w", err)
	}
	return items, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func orEmptySteps(steps []DiscardStep) []DiscardStep {
	if steps == nil {
		return []DiscardStep{}
	}
	return steps
}
