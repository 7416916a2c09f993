package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagevariants/internal/model"
	"imagevariants/internal/repository"
)

var columns = []string{"id", "entity_type", "fields", "created_at", "updated_at"}

func TestRecordPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewRecordPostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	rec := model.NewRecord("rec-1", "shop.Product")
	rec.SetField("title", "Chair")
	rec.SetField("photo", "abc.jpg")
	rec.CreatedAt, rec.UpdatedAt = now, now

	rows := sqlmock.NewRows(columns).
		AddRow(rec.ID, rec.Entity, []byte(`{"photo":"abc.jpg","title":"Chair"}`), now, now)

	mock.ExpectQuery("INSERT INTO records").
		WithArgs(rec.ID, rec.Entity, []byte(`{"photo":"abc.jpg","title":"Chair"}`), now, now).
		WillReturnRows(rows)

	result, err := repo.Create(ctx, rec)

	require.NoError(t, err)
	assert.Equal(t, "rec-1", result.ID)
	assert.Equal(t, "abc.jpg", result.Field("photo"))
	assert.Equal(t, "abc.jpg", result.PreviousField("photo"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPostgres_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewRecordPostgres(db)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("updated", func(t *testing.T) {
		rec := model.NewRecord("rec-1", "shop.Product")
		rec.SetField("photo", "new.jpg")
		rec.UpdatedAt = now

		mock.ExpectQuery("UPDATE records SET fields").
			WithArgs("rec-1", "shop.Product", []byte(`{"photo":"new.jpg"}`), now).
			WillReturnRows(sqlmock.NewRows(columns).AddRow("rec-1", "shop.Product", []byte(`{"photo":"new.jpg"}`), now, now))

		out, err := repo.Update(ctx, rec)
		require.NoError(t, err)
		assert.Equal(t, "new.jpg", out.Field("photo"))
	})

	t.Run("missing", func(t *testing.T) {
		mock.ExpectQuery("UPDATE records SET fields").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.Update(ctx, model.NewRecord("gone", "shop.Product"))
		assert.True(t, IsNoRowsError(err))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewRecordPostgres(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		rows := sqlmock.NewRows(columns).
			AddRow("test-id", "shop.Product", []byte(`{"photo":"abc.jpg"}`), time.Now(), time.Now())

		mock.ExpectQuery("SELECT (.+) FROM records WHERE id = ?").
			WithArgs("test-id", "shop.Product").
			WillReturnRows(rows)

		rec, err := repo.FindByID(ctx, "shop.Product", "test-id")

		require.NoError(t, err)
		assert.Equal(t, "test-id", rec.ID)
		assert.Equal(t, "abc.jpg", rec.PreviousField("photo"))

		rec.SetField("photo", "other.jpg")
		assert.Equal(t, "abc.jpg", rec.PreviousField("photo"), "snapshot is independent of fields")
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM records WHERE id = ?").
			WithArgs("missing", "shop.Product").
			WillReturnError(sql.ErrNoRows)

		rec, err := repo.FindByID(ctx, "shop.Product", "missing")

		assert.Error(t, err)
		assert.True(t, IsNoRowsError(err))
		assert.Nil(t, rec)
	})

	t.Run("corrupt fields", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM records WHERE id = ?").
			WithArgs("bad", "shop.Product").
			WillReturnRows(sqlmock.NewRows(columns).AddRow("bad", "shop.Product", []byte(`[1,2]`), time.Now(), time.Now()))

		_, err := repo.FindByID(ctx, "shop.Product", "bad")
		assert.Error(t, err)
	})
}

func TestRecordPostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewRecordPostgres(db)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM records").
			WithArgs("shop.Product").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

		rows := sqlmock.NewRows(columns).
			AddRow("a", "shop.Product", []byte(`{}`), time.Now(), time.Now()).
			AddRow("b", "shop.Product", nil, time.Now(), time.Now())

		mock.ExpectQuery("SELECT (.+) FROM records WHERE entity_type = (.+) ORDER BY").
			WithArgs("shop.Product", 10, 0).
			WillReturnRows(rows)

		res, err := repo.List(ctx, "shop.Product", repository.PageQuery{Limit: 10, Offset: 0})

		require.NoError(t, err)
		assert.Equal(t, 2, res.Total)
		require.Len(t, res.Items, 2)
		assert.NotNil(t, res.Items[1].Fields)
	})

	t.Run("count error", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM records").
			WillReturnError(errors.New("db down"))

		_, err := repo.List(ctx, "shop.Product", repository.PageQuery{Limit: 10})
		assert.Error(t, err)
	})
}

func TestRecordPostgres_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewRecordPostgres(db)

	mock.ExpectExec("DELETE FROM records WHERE id = ?").
		WithArgs("rec-1", "shop.Product").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Delete(context.Background(), "shop.Product", "rec-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
