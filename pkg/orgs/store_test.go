package orgs

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradegate/tradegate/pkg/identity"
	"github.com/tradegate/tradegate/pkg/tree"
)

func nowRow() time.Time { return time.Now() }

func TestStore_CreateTenant_SlugConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	mock.ExpectQuery("INSERT INTO tenants").
		WithArgs("Acme Exports", "acme").
		WillReturnError(&pq.Error{Code: "23505"})

	err = store.CreateTenant(context.Background(), &identity.Tenant{Name: "Acme Exports", Slug: "acme"})
	assert.ErrorIs(t, err, ErrSlugTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MoveDepartment_RejectsCycle(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	deptCols := []string{"id", "tenant_id", "parent_id", "name", "category", "sort_order", "created_at", "updated_at"}
	mock.ExpectQuery("FROM departments WHERE id").
		WithArgs("d-root", "t1").
		WillReturnRows(sqlmock.NewRows(deptCols).
			AddRow("d-root", "t1", nil, "Root", "group", 0, nowRow(), nowRow()))

	// d-leaf descends from d-root, so moving d-root under d-leaf loops
	mock.ExpectQuery("SELECT id, parent_id FROM departments").
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "parent_id"}).
			AddRow("d-root", nil).
			AddRow("d-mid", "d-root").
			AddRow("d-leaf", "d-mid"))

	leaf := "d-leaf"
	err = store.MoveDepartment(context.Background(), "t1", "d-root", &leaf)
	assert.ErrorIs(t, err, tree.ErrCycle)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MoveDepartment_OtherTenantMasked(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	// the department exists under tenant t2, so t1's lookup finds nothing
	mock.ExpectQuery("FROM departments WHERE id").
		WithArgs("d-foreign", "t1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err = store.MoveDepartment(context.Background(), "t1", "d-foreign", nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_DeactivateSite_OtherTenantMasked(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	mock.ExpectExec("UPDATE sites SET is_active").
		WithArgs(false, "s-foreign", "t1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = store.DeactivateSite(context.Background(), "t1", "s-foreign")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReorderDepartments_AllOrNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	t.Run("missing row rolls the batch back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE departments SET sort_order").
			WithArgs(0, "d1", "t1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE departments SET sort_order").
			WithArgs(1, "d-missing", "t1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := store.ReorderDepartments(context.Background(), "t1", []string{"d1", "d-missing"})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("full batch commits", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE departments SET sort_order").
			WithArgs(0, "d2", "t1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE departments SET sort_order").
			WithArgs(1, "d1", "t1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.ReorderDepartments(context.Background(), "t1", []string{"d2", "d1"})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_DeleteDepartment_InUse(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	deptCols := []string{"id", "tenant_id", "parent_id", "name", "category", "sort_order", "created_at", "updated_at"}
	mock.ExpectQuery("FROM departments WHERE id").
		WithArgs("d1", "t1").
		WillReturnRows(sqlmock.NewRows(deptCols).
			AddRow("d1", "t1", nil, "Factory A", "factory", 0, nowRow(), nowRow()))
	mock.ExpectQuery("SELECT").
		WithArgs("d1", "d1", "d1", "d1").
		WillReturnRows(sqlmock.NewRows([]string{"children", "sites"}).AddRow(2, 0))

	err = store.DeleteDepartment(context.Background(), "t1", "d1")
	assert.ErrorIs(t, err, ErrDepartmentInUse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_DeleteDepartment_OtherTenantMasked(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	mock.ExpectQuery("FROM departments WHERE id").
		WithArgs("d-foreign", "t1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err = store.DeleteDepartment(context.Background(), "t1", "d-foreign")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
