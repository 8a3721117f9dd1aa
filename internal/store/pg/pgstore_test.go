package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"recircuit.org/internal/waste"
)

var itemCols = []string{"id", "owner_id", "description", "operation", "status", "location", "cost", "image_url", "created_at"}

func TestCreateInsertsPendingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("insert into items").
		WithArgs(sqlmock.AnyArg(), "owner-1", "broken laptop", "Repair", "Pending", "CityX", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	s := NewStore(db)
	item, err := s.Create(context.Background(), waste.NewItemInput{
		OwnerID:     "owner-1",
		Description: "broken laptop",
		Operation:   waste.OperationRepair,
		Location:    "CityX",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if item.Status != waste.StatusPending || item.Cost != 0 || item.ID == "" {
		t.Fatalf("unexpected item: %#v", item)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	s := NewStore(db)
	if _, err := s.Create(context.Background(), waste.NewItemInput{OwnerID: "o", Description: "d", Operation: "Vaporize", Location: "L"}); !errors.Is(err, waste.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGetMapsNoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select .* from items where id=").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(itemCols))

	s := NewStore(db)
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, waste.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCompareAndUpdateCommitsMutation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("select .* from items where id=.* for update").
		WithArgs("item-1").
		WillReturnRows(sqlmock.NewRows(itemCols).
			AddRow("item-1", "owner-1", "broken laptop", "Repair", "Processing", "CityX", 0, "", time.Now()))
	mock.ExpectExec("update items set status=").
		WithArgs("item-1", "Repaired", waste.RepairTariff, "/u/1.png").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	s := NewStore(db)
	item, err := s.CompareAndUpdate(context.Background(), "item-1", waste.StatusProcessing, func(it *waste.Item) {
		it.Status = waste.StatusRepaired
		it.Cost = waste.RepairTariff
		it.ImageURL = "/u/1.png"
	})
	if err != nil {
		t.Fatalf("CompareAndUpdate: %v", err)
	}
	if item.Status != waste.StatusRepaired || item.Cost != waste.RepairTariff {
		t.Fatalf("mutation not applied: %#v", item)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCompareAndUpdateStatusMismatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("select .* from items where id=.* for update").
		WithArgs("item-1").
		WillReturnRows(sqlmock.NewRows(itemCols).
			AddRow("item-1", "owner-1", "broken laptop", "Repair", "Processing", "CityX", 0, "", time.Now()))
	mock.ExpectRollback()

	s := NewStore(db)
	_, err = s.CompareAndUpdate(context.Background(), "item-1", waste.StatusPending, func(it *waste.Item) {
		it.Status = waste.StatusProcessing
	})
	if !errors.Is(err, waste.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestDeleteReportsMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("delete from items").
		WithArgs("item-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("delete from items").
		WithArgs("item-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := NewStore(db)
	if err := s.Delete(context.Background(), "item-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(context.Background(), "item-1"); !errors.Is(err, waste.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select .* from items where status=").
		WithArgs("Repaired").
		WillReturnRows(sqlmock.NewRows(itemCols).
			AddRow("item-1", "owner-1", "broken laptop", "Repair", "Repaired", "CityX", 100, "/u/1.png", time.Now()))

	s := NewStore(db)
	repaired := waste.StatusRepaired
	items, err := s.List(context.Background(), &repaired)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].ImageURL != "/u/1.png" {
		t.Fatalf("unexpected items: %#v", items)
	}
}
