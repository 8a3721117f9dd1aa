package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"recircuit.org/internal/ids"
	"recircuit.org/internal/waste"
)

// Store implements waste.Registry on PostgreSQL. Compare-and-update runs as a
// row-locked transaction so the status precondition and the write commit
// together.
type Store struct {
	db *sql.DB
}

var _ waste.Registry = (*Store)(nil)

// Open connects to PostgreSQL with pool defaults tuned for the API workload.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing handle; used by tests and cmd wiring.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

const itemColumns = `id, owner_id, description, operation, status, location, cost, coalesce(image_url, ''), created_at`

func (s *Store) Create(ctx context.Context, in waste.NewItemInput) (waste.Item, error) {
	if in.OwnerID == "" || in.Description == "" || in.Location == "" {
		return waste.Item{}, waste.ErrInvalidInput
	}
	if _, err := waste.ParseOperation(string(in.Operation)); err != nil {
		return waste.Item{}, err
	}

	item := waste.Item{
		ID:          ids.New(),
		OwnerID:     in.OwnerID,
		Description: in.Description,
		Operation:   in.Operation,
		Status:      waste.StatusPending,
		Location:    in.Location,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		insert into items(id, owner_id, description, operation, status, location, cost, created_at)
		values ($1,$2,$3,$4,$5,$6,0,$7)`,
		item.ID, item.OwnerID, item.Description, string(item.Operation),
		string(item.Status), item.Location, item.CreatedAt)
	if err != nil {
		return waste.Item{}, storageErr(err)
	}
	return item, nil
}

func (s *Store) Get(ctx context.Context, id string) (waste.Item, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+itemColumns+` from items where id=$1`, id)
	return scanItem(row)
}

func (s *Store) List(ctx context.Context, statusFilter *waste.Status) ([]waste.Item, error) {
	query := `select ` + itemColumns + ` from items`
	args := []any{}
	if statusFilter != nil {
		query += ` where status=$1`
		args = append(args, string(*statusFilter))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var out []waste.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from items where id=$1`, id)
	if err != nil {
		return storageErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(err)
	}
	if n == 0 {
		return waste.ErrNotFound
	}
	return nil
}

func (s *Store) CompareAndUpdate(ctx context.Context, id string, expected waste.Status, mutate waste.Mutator) (waste.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return waste.Item{}, storageErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`select `+itemColumns+` from items where id=$1 for update`, id)
	item, err := scanItem(row)
	if err != nil {
		return waste.Item{}, err
	}
	if item.Status != expected {
		return waste.Item{}, waste.ErrConflict
	}

	mutate(&item)

	if _, err := tx.ExecContext(ctx,
		`update items set status=$2, cost=$3, image_url=nullif($4, '') where id=$1`,
		item.ID, string(item.Status), item.Cost, item.ImageURL); err != nil {
		return waste.Item{}, storageErr(err)
	}
	if err := tx.Commit(); err != nil {
		return waste.Item{}, storageErr(err)
	}
	return item, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (waste.Item, error) {
	var (
		item      waste.Item
		operation string
		status    string
	)
	err := row.Scan(&item.ID, &item.OwnerID, &item.Description, &operation,
		&status, &item.Location, &item.Cost, &item.ImageURL, &item.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return waste.Item{}, waste.ErrNotFound
	}
	if err != nil {
		return waste.Item{}, storageErr(err)
	}
	item.Operation = waste.Operation(operation)
	item.Status = waste.Status(status)
	return item, nil
}

// storageErr tags driver failures as retryable so the HTTP layer can map
// them to 503 instead of a generic 500.
func storageErr(err error) error {
	return fmt.Errorf("%w: %v", waste.ErrUnavailable, err)
}
