package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Extraction is one recorded extraction attempt
type Extraction struct {
	ID             uuid.UUID `json:"id"`
	RequestID      *string   `json:"request_id,omitempty"`
	URL            string    `json:"url"`
	Host           string    `json:"host"`
	Site           string    `json:"site"`
	JobTitle       string    `json:"job_title"`
	Company        string    `json:"company"`
	JobDescription string    `json:"job_description"`
	OK             bool      `json:"ok"`
	ErrorMessage   *string   `json:"error_message,omitempty"`
	Ready          bool      `json:"ready"`
	ElapsedMS      int64     `json:"elapsed_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// ExtractionFilters holds optional filters for listing extractions
type ExtractionFilters struct {
	Site  string
	Host  string
	Limit int
}

// DefaultExtractionLimit bounds ListExtractions when no limit is given.
const DefaultExtractionLimit = 50

const extractionColumns = `id, request_id, url, host, site, job_title, company, job_description,
	ok, error_message, ready, elapsed_ms, created_at`

// RecordExtraction stores an extraction and fills in its ID and CreatedAt
func (db *DB) RecordExtraction(ctx context.Context, e *Extraction) error {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO extractions (request_id, url, host, site, job_title, company, job_description,
		                          ok, error_message, ready, elapsed_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, created_at`,
		e.RequestID, e.URL, e.Host, e.Site, e.JobTitle, e.Company, e.JobDescription,
		e.OK, e.ErrorMessage, e.Ready, e.ElapsedMS,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record extraction: %w", err)
	}
	return nil
}

// GetExtraction retrieves an extraction by ID
func (db *DB) GetExtraction(ctx context.Context, id uuid.UUID) (*Extraction, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+extractionColumns+` FROM extractions WHERE id = $1`, id)
	e, err := scanExtraction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get extraction: %w", err)
	}
	return e, nil
}

// ListExtractions retrieves recent extractions, newest first
func (db *DB) ListExtractions(ctx context.Context, filters ExtractionFilters) ([]Extraction, error) {
	if filters.Limit <= 0 {
		filters.Limit = DefaultExtractionLimit
	}

	query := `SELECT ` + extractionColumns + ` FROM extractions WHERE 1=1`
	args := []any{}
	argNum := 1

	if filters.Site != "" {
		query += fmt.Sprintf(" AND site = $%d", argNum)
		args = append(args, filters.Site)
		argNum++
	}
	if filters.Host != "" {
		query += fmt.Sprintf(" AND host = $%d", argNum)
		args = append(args, filters.Host)
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argNum)
	args = append(args, filters.Limit)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list extractions: %w", err)
	}
	defer rows.Close()

	extractions := []Extraction{}
	for rows.Next() {
		e, err := scanExtraction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan extraction: %w", err)
		}
		extractions = append(extractions, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list extractions: %w", err)
	}
	return extractions, nil
}

func scanExtraction(row pgx.Row) (*Extraction, error) {
	var e Extraction
	err := row.Scan(&e.ID, &e.RequestID, &e.URL, &e.Host, &e.Site, &e.JobTitle, &e.Company,
		&e.JobDescription, &e.OK, &e.ErrorMessage, &e.Ready, &e.ElapsedMS, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
