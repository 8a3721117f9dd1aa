package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGDenylistRevokeAndLookup(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	mock.ExpectExec("insert into revoked_tokens").
		WithArgs("tok-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into revoked_tokens").
		WithArgs("tok-1").
		WillReturnResult(sqlmock.NewResult(0, 0)) // conflict, no-op
	mock.ExpectQuery("select exists").
		WithArgs("tok-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("select exists").
		WithArgs("tok-2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	d := NewPGDenylist(db)
	if err := d.Revoke(ctx, "tok-1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := d.Revoke(ctx, "tok-1"); err != nil {
		t.Fatalf("repeat Revoke: %v", err)
	}
	revoked, err := d.IsRevoked(ctx, "tok-1")
	if err != nil || !revoked {
		t.Fatalf("expected revoked, got %v %v", revoked, err)
	}
	revoked, err = d.IsRevoked(ctx, "tok-2")
	if err != nil || revoked {
		t.Fatalf("expected not revoked, got %v %v", revoked, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGDenylistPurge(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("delete from revoked_tokens").
		WithArgs("86400 seconds").
		WillReturnResult(sqlmock.NewResult(0, 3))

	d := NewPGDenylist(db)
	n, err := d.PurgeOlderThan(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeOlderThan: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 purged rows, got %d", n)
	}
}

func TestPGDirectoryFind(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	cols := []string{"id", "email", "password_hash", "location", "roles", "created_at"}
	mock.ExpectQuery("select id, email, password_hash, location, roles, created_at").
		WithArgs("user-42").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("user-42", "owner@example.org", "$2a$10$hash", "CityX", "operator, viewer", time.Now()))
	mock.ExpectQuery("select id, email, password_hash, location, roles, created_at").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(cols))

	d := NewPGDirectory(db)
	u, err := d.Find(ctx, "user-42")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if u.Email != "owner@example.org" || u.Location != "CityX" {
		t.Fatalf("unexpected user: %#v", u)
	}
	if len(u.Roles) != 2 || u.Roles[0] != "operator" || u.Roles[1] != "viewer" {
		t.Fatalf("roles column not decoded: %v", u.Roles)
	}

	if _, err := d.Find(ctx, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
