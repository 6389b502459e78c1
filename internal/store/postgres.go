package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Schema creates the plugin tables when they are missing
const Schema = `
CREATE TABLE IF NOT EXISTS applicants (
	id               SERIAL PRIMARY KEY,
	name             TEXT NOT NULL,
	email            TEXT NOT NULL,
	position         TEXT NOT NULL,
	application_date TIMESTAMPTZ NOT NULL,
	additional_data  JSONB
);

CREATE TABLE IF NOT EXISTS customers (
	policy_number    TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	address          TEXT NOT NULL,
	policy_type      TEXT NOT NULL,
	coverage_amount  INTEGER NOT NULL,
	beneficiary      TEXT NOT NULL,
	last_interaction TIMESTAMPTZ NOT NULL,
	pending_claims   TEXT[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS lights (
	id         INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	is_on      BOOLEAN NOT NULL,
	brightness INTEGER NOT NULL,
	color      TEXT NOT NULL
);
`

// PostgresStore keeps the plugin data in PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// Ensure PostgresStore implements Store
var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects to databaseURL and verifies the connection
func OpenPostgres(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// NewPostgresStore wraps an open database handle
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the schema and loads seed when the tables are empty
func (s *PostgresStore) Migrate(ctx context.Context, seed *Seed) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if seed == nil {
		return nil
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lights`).Scan(&count); err != nil {
		return fmt.Errorf("failed to check seed state: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed: %w", err)
	}
	defer tx.Rollback()

	for _, a := range seed.Applicants {
		if err := insertApplicant(ctx, tx, a); err != nil {
			return err
		}
	}
	for _, c := range seed.Customers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO customers (policy_number, name, address, policy_type, coverage_amount, beneficiary, last_interaction, pending_claims)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, c.PolicyNumber, c.Name, c.Address, c.PolicyType, c.CoverageAmount, c.Beneficiary, c.LastInteraction, pq.Array(c.PendingClaims))
		if err != nil {
			return fmt.Errorf("failed to seed customer: %w", err)
		}
	}
	for _, l := range seed.Lights {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO lights (id, name, is_on, brightness, color)
			VALUES ($1, $2, $3, $4, $5)
		`, l.ID, l.Name, l.IsOn, l.Brightness, l.Color)
		if err != nil {
			return fmt.Errorf("failed to seed light: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertApplicant(ctx context.Context, db execer, a Applicant) error {
	var extra []byte
	if len(a.AdditionalData) > 0 {
		var err error
		extra, err = json.Marshal(a.AdditionalData)
		if err != nil {
			return fmt.Errorf("failed to encode additional data: %w", err)
		}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO applicants (name, email, position, application_date, additional_data)
		VALUES ($1, $2, $3, $4, $5)
	`, a.Name, a.Email, a.Position, a.ApplicationDate, extra)
	if err != nil {
		return fmt.Errorf("failed to insert applicant: %w", err)
	}
	return nil
}

// AddApplicant implements Store.AddApplicant
func (s *PostgresStore) AddApplicant(ctx context.Context, a Applicant) error {
	return insertApplicant(ctx, s.db, a)
}

// ListApplicants implements Store.ListApplicants
func (s *PostgresStore) ListApplicants(ctx context.Context) ([]Applicant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, email, position, application_date, additional_data
		FROM applicants
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list applicants: %w", err)
	}
	defer rows.Close()

	applicants := make([]Applicant, 0)
	for rows.Next() {
		var a Applicant
		var extra []byte
		if err := rows.Scan(&a.Name, &a.Email, &a.Position, &a.ApplicationDate, &extra); err != nil {
			return nil, fmt.Errorf("failed to scan applicant: %w", err)
		}
		if len(extra) > 0 {
			if err := json.Unmarshal(extra, &a.AdditionalData); err != nil {
				return nil, fmt.Errorf("failed to decode additional data: %w", err)
			}
		}
		applicants = append(applicants, a)
	}
	return applicants, rows.Err()
}

// GetCustomer implements Store.GetCustomer
func (s *PostgresStore) GetCustomer(ctx context.Context, policyNumber string) (*Customer, error) {
	var c Customer
	var claims []string
	err := s.db.QueryRowContext(ctx, `
		SELECT policy_number, name, address, policy_type, coverage_amount, beneficiary, last_interaction, pending_claims
		FROM customers
		WHERE policy_number = $1
	`, policyNumber).Scan(
		&c.PolicyNumber, &c.Name, &c.Address, &c.PolicyType,
		&c.CoverageAmount, &c.Beneficiary, &c.LastInteraction, pq.Array(&claims),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	if claims == nil {
		claims = []string{}
	}
	c.PendingClaims = claims
	return &c, nil
}

// UpdateCustomerAddress implements Store.UpdateCustomerAddress
func (s *PostgresStore) UpdateCustomerAddress(ctx context.Context, policyNumber, address string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers SET address = $2 WHERE policy_number = $1
	`, policyNumber, address)
	if err != nil {
		return fmt.Errorf("failed to update address: %w", err)
	}
	return requireRow(res)
}

// ListLights implements Store.ListLights
func (s *PostgresStore) ListLights(ctx context.Context) ([]Light, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, is_on, brightness, color FROM lights ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list lights: %w", err)
	}
	defer rows.Close()

	lights := make([]Light, 0)
	for rows.Next() {
		var l Light
		if err := rows.Scan(&l.ID, &l.Name, &l.IsOn, &l.Brightness, &l.Color); err != nil {
			return nil, fmt.Errorf("failed to scan light: %w", err)
		}
		lights = append(lights, l)
	}
	return lights, rows.Err()
}

// GetLight implements Store.GetLight
func (s *PostgresStore) GetLight(ctx context.Context, id int) (*Light, error) {
	var l Light
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, is_on, brightness, color FROM lights WHERE id = $1
	`, id).Scan(&l.ID, &l.Name, &l.IsOn, &l.Brightness, &l.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get light: %w", err)
	}
	return &l, nil
}

// SaveLight implements Store.SaveLight
func (s *PostgresStore) SaveLight(ctx context.Context, light Light) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE lights SET name = $2, is_on = $3, brightness = $4, color = $5 WHERE id = $1
	`, light.ID, light.Name, light.IsOn, light.Brightness, light.Color)
	if err != nil {
		return fmt.Errorf("failed to save light: %w", err)
	}
	return requireRow(res)
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
