package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// PostgresStore keeps destinations and their rows in PostgreSQL, scoped by
// spreadsheet id so several deployments can share one database.
type PostgresStore struct {
	db            *sql.DB
	spreadsheetID string
	logger        *zap.Logger
}

func NewPostgresStore(ctx context.Context, config DatabaseConfig, spreadsheetID string, logger *zap.Logger) (*PostgresStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	store := &PostgresStore{db: db, spreadsheetID: spreadsheetID, logger: logger}

	if err := store.initializeSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	logger.Info("Connected to sheet store",
		zap.String("host", config.Host),
		zap.String("db", config.DBName),
		zap.String("spreadsheet_id", spreadsheetID))
	return store, nil
}

func (s *PostgresStore) initializeSchema(ctx context.Context) error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) EnsureDestination(ctx context.Context, name string) (bool, error) {
	name = SanitizeDestination(name)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sheet_destinations (spreadsheet_id, name)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		s.spreadsheetID, name)
	if err != nil {
		return false, wrapErr("ensure", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr("ensure", name, err)
	}
	return n > 0, nil
}

func (s *PostgresStore) Append(ctx context.Context, destination string, rows [][]string) error {
	destination = SanitizeDestination(destination)
	err := s.inTx(ctx, destination, func(tx *sql.Tx) error {
		var last int
		err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(row_num), 0)
			FROM sheet_rows
			WHERE spreadsheet_id = $1 AND destination = $2`,
			s.spreadsheetID, destination).Scan(&last)
		if err != nil {
			return fmt.Errorf("error finding last row: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO sheet_rows (spreadsheet_id, destination, row_num, cells)
			VALUES ($1, $2, $3, $4)`)
		if err != nil {
			return fmt.Errorf("error preparing insert: %w", err)
		}
		defer stmt.Close()

		for i, row := range rows {
			if _, err := stmt.ExecContext(ctx, s.spreadsheetID, destination, last+i+1, pq.Array(trimRow(row))); err != nil {
				return fmt.Errorf("error inserting row %d: %w", last+i+1, err)
			}
		}
		return nil
	})
	return wrapErr("append", destination, err)
}

func (s *PostgresStore) Update(ctx context.Context, destination, cell, value string) error {
	destination = SanitizeDestination(destination)
	r, err := ParseRange(cell)
	if err != nil {
		return wrapErr("update", destination, err)
	}
	if !r.IsCell() {
		return wrapErr("update", destination, fmt.Errorf("%w: %q is not a single cell", ErrInvalidRange, cell))
	}

	err = s.inTx(ctx, destination, func(tx *sql.Tx) error {
		var cells pq.StringArray
		err := tx.QueryRowContext(ctx, `
			SELECT cells FROM sheet_rows
			WHERE spreadsheet_id = $1 AND destination = $2 AND row_num = $3
			FOR UPDATE`,
			s.spreadsheetID, destination, r.FromRow).Scan(&cells)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("error reading row %d: %w", r.FromRow, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO sheet_rows (spreadsheet_id, destination, row_num, cells)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (spreadsheet_id, destination, row_num)
			DO UPDATE SET cells = EXCLUDED.cells, updated_at = NOW()`,
			s.spreadsheetID, destination, r.FromRow, pq.Array(SetCell(cells, r.FromCol, value)))
		if err != nil {
			return fmt.Errorf("error writing row %d: %w", r.FromRow, err)
		}
		return nil
	})
	return wrapErr("update", destination, err)
}

func (s *PostgresStore) Read(ctx context.Context, destination, cellRange string) ([][]string, error) {
	destination = SanitizeDestination(destination)
	r, err := ParseRange(cellRange)
	if err != nil {
		return nil, wrapErr("read", destination, err)
	}
	if err := s.checkExists(ctx, s.db, destination, false); err != nil {
		return nil, wrapErr("read", destination, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT row_num, cells FROM sheet_rows
		WHERE spreadsheet_id = $1 AND destination = $2
		  AND row_num >= $3 AND ($4 = 0 OR row_num <= $4)
		ORDER BY row_num`,
		s.spreadsheetID, destination, r.FromRow, r.ToRow)
	if err != nil {
		return nil, wrapErr("read", destination, fmt.Errorf("error querying rows: %w", err))
	}
	defer rows.Close()

	var out [][]string
	next := r.FromRow
	for rows.Next() {
		var (
			rowNum int
			cells  pq.StringArray
		)
		if err := rows.Scan(&rowNum, &cells); err != nil {
			return nil, wrapErr("read", destination, fmt.Errorf("error scanning row: %w", err))
		}
		for ; next < rowNum; next++ {
			out = append(out, []string{})
		}
		out = append(out, r.Slice(cells))
		next = rowNum + 1
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("read", destination, err)
	}
	return trimRows(out), nil
}

func (s *PostgresStore) Clear(ctx context.Context, destination, cellRange string) error {
	destination = SanitizeDestination(destination)
	r, err := ParseRange(cellRange)
	if err != nil {
		return wrapErr("clear", destination, err)
	}

	err = s.inTx(ctx, destination, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT row_num, cells FROM sheet_rows
			WHERE spreadsheet_id = $1 AND destination = $2
			  AND row_num >= $3 AND ($4 = 0 OR row_num <= $4)
			FOR UPDATE`,
			s.spreadsheetID, destination, r.FromRow, r.ToRow)
		if err != nil {
			return fmt.Errorf("error querying rows: %w", err)
		}
		cleared := make(map[int][]string)
		for rows.Next() {
			var (
				rowNum int
				cells  pq.StringArray
			)
			if err := rows.Scan(&rowNum, &cells); err != nil {
				rows.Close()
				return fmt.Errorf("error scanning row: %w", err)
			}
			cleared[rowNum] = r.ClearRow(cells)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for rowNum, cells := range cleared {
			if len(cells) == 0 {
				_, err = tx.ExecContext(ctx, `
					DELETE FROM sheet_rows
					WHERE spreadsheet_id = $1 AND destination = $2 AND row_num = $3`,
					s.spreadsheetID, destination, rowNum)
			} else {
				_, err = tx.ExecContext(ctx, `
					UPDATE sheet_rows SET cells = $4, updated_at = NOW()
					WHERE spreadsheet_id = $1 AND destination = $2 AND row_num = $3`,
					s.spreadsheetID, destination, rowNum, pq.Array(cells))
			}
			if err != nil {
				return fmt.Errorf("error clearing row %d: %w", rowNum, err)
			}
		}
		return nil
	})
	return wrapErr("clear", destination, err)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) checkExists(ctx context.Context, q queryer, destination string, lock bool) error {
	query := `SELECT 1 FROM sheet_destinations WHERE spreadsheet_id = $1 AND name = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	var one int
	err := q.QueryRowContext(ctx, query, s.spreadsheetID, destination).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDestinationNotFound
	}
	if err != nil {
		return fmt.Errorf("error checking destination: %w", err)
	}
	return nil
}

// inTx runs fn in a transaction holding a lock on the destination row, so
// concurrent appends to one destination never pick the same row numbers.
func (s *PostgresStore) inTx(ctx context.Context, destination string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.checkExists(ctx, tx, destination, true); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}
