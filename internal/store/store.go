package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/greenops/inference-energy/internal/dataset"
)

// SourceIdentity keys the memoized dataset loaded from Postgres.
const SourceIdentity = "postgres:observations"

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// Connect establishes a connection to the database
func Connect(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &DB{db}, nil
}

// RunMigrations executes all SQL migration files in order
func (db *DB) RunMigrations(migrationsDir string) error {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		fmt.Printf("Running migration: %s\n", filename)

		filePath := filepath.Join(migrationsDir, filename)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	fmt.Println("All migrations completed successfully")
	return nil
}

// InsertObservations writes a batch of raw observations inside a single
// transaction. created_at must already be RFC3339; the ingest path validates
// it before the row gets here.
func (db *DB) InsertObservations(ctx context.Context, raws []dataset.Raw) error {
	if len(raws) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (
			id, created_at, model_name, device, total_duration,
			energy_consumption_llm_total, response_token_length,
			prompt_token_length, complexity
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, raw := range raws {
		createdAt, err := time.Parse(time.RFC3339, raw.CreatedAt)
		if err != nil {
			return fmt.Errorf("invalid created_at %q: %w", raw.CreatedAt, err)
		}

		var complexity any
		if len(raw.Complexity) > 0 {
			data, err := json.Marshal(raw.Complexity)
			if err != nil {
				return fmt.Errorf("failed to marshal complexity: %w", err)
			}
			complexity = data
		}

		var measured any
		if raw.MeasuredEnergy != "" {
			measured = raw.MeasuredEnergy
		}

		if _, err := stmt.ExecContext(ctx,
			uuid.New().String(),
			createdAt,
			raw.ModelName,
			raw.Device,
			raw.TotalDuration,
			measured,
			raw.ResponseTokens,
			raw.PromptTokens,
			complexity,
		); err != nil {
			return fmt.Errorf("failed to insert observation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// LoadDataset reads every stored observation and derives a dataset from it,
// same contract as dataset.LoadCSV but with Postgres as the source.
func (db *DB) LoadDataset(ctx context.Context, opts dataset.Options) (*dataset.Dataset, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT created_at, model_name, device, total_duration,
		       energy_consumption_llm_total, response_token_length,
		       prompt_token_length, complexity
		FROM observations
		ORDER BY created_at
	`)
	if err != nil {
		return nil, &dataset.LoadError{Source: SourceIdentity, Err: err}
	}
	defer rows.Close()

	var raws []dataset.Raw
	for rows.Next() {
		var (
			createdAt  time.Time
			raw        dataset.Raw
			device     sql.NullString
			measured   sql.NullString
			respTokens sql.NullFloat64
			prmtTokens sql.NullFloat64
			complexity []byte
		)
		if err := rows.Scan(
			&createdAt,
			&raw.ModelName,
			&device,
			&raw.TotalDuration,
			&measured,
			&respTokens,
			&prmtTokens,
			&complexity,
		); err != nil {
			return nil, &dataset.LoadError{Source: SourceIdentity, Err: err}
		}

		raw.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
		if device.Valid {
			raw.Device = &device.String
		}
		if measured.Valid {
			raw.MeasuredEnergy = measured.String
		}
		if respTokens.Valid {
			raw.ResponseTokens = &respTokens.Float64
		}
		if prmtTokens.Valid {
			raw.PromptTokens = &prmtTokens.Float64
		}
		if len(complexity) > 0 {
			if err := json.Unmarshal(complexity, &raw.Complexity); err != nil {
				return nil, &dataset.LoadError{Source: SourceIdentity, Err: fmt.Errorf("bad complexity payload: %w", err)}
			}
		}

		raws = append(raws, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, &dataset.LoadError{Source: SourceIdentity, Err: err}
	}

	return dataset.Derive(raws, SourceIdentity, opts)
}

// CountObservations returns the number of stored observations.
func (db *DB) CountObservations(ctx context.Context) (int64, error) {
	var count int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM observations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count observations: %w", err)
	}
	return count, nil
}
