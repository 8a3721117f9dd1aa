package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PGDenylist implements Denylist on PostgreSQL. The unique index on the token
// column makes concurrent revocations of the same token collapse into one row.
type PGDenylist struct {
	db *sql.DB
}

func NewPGDenylist(db *sql.DB) *PGDenylist { return &PGDenylist{db: db} }

var _ Denylist = (*PGDenylist)(nil)

func (d *PGDenylist) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return ErrNoCredentials
	}
	_, err := d.db.ExecContext(ctx,
		`insert into revoked_tokens(token, revoked_at) values($1, now())
		 on conflict (token) do nothing`, token)
	return err
}

func (d *PGDenylist) IsRevoked(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		`select exists(select 1 from revoked_tokens where token=$1)`, token).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// PurgeOlderThan drops revocations whose age exceeds the given window. The
// window must be at least the longest credential TTL so no live credential
// can slip back in.
func (d *PGDenylist) PurgeOlderThan(ctx context.Context, window time.Duration) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		`delete from revoked_tokens where revoked_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int64(window.Seconds())))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PGDirectory implements Directory on PostgreSQL.
type PGDirectory struct {
	db *sql.DB
}

func NewPGDirectory(db *sql.DB) *PGDirectory { return &PGDirectory{db: db} }

var _ Directory = (*PGDirectory)(nil)

func (d *PGDirectory) Find(ctx context.Context, id string) (*User, error) {
	return d.scanUser(d.db.QueryRowContext(ctx,
		`select id, email, password_hash, location, roles, created_at
		 from users where id=$1`, id))
}

func (d *PGDirectory) FindByEmail(ctx context.Context, email string) (*User, error) {
	return d.scanUser(d.db.QueryRowContext(ctx,
		`select id, email, password_hash, location, roles, created_at
		 from users where lower(email)=lower($1)`, strings.TrimSpace(email)))
}

func (d *PGDirectory) scanUser(row *sql.Row) (*User, error) {
	var (
		u     User
		roles string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Location, &roles, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u.Roles = splitRoles(roles)
	return &u, nil
}

// splitRoles decodes the comma separated roles column.
func splitRoles(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
