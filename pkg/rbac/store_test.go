package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradegate/tradegate/pkg/identity"
	"github.com/tradegate/tradegate/pkg/tree"
)

func roleRows(id, name string, roleType identity.RoleType, parentID interface{}) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "display_name", "priority", "parent_role_id", "role_type", "role_class",
		"tenant_id", "created_at", "updated_at",
	}).AddRow(id, name, name, 10, parentID, string(roleType), "factory_sales", nil, now, now)
}

func TestStore_UpdateRole_RejectsCycle(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	mock.ExpectQuery("FROM roles").
		WithArgs("r1").
		WillReturnRows(roleRows("r1", "custom-a", identity.RoleTypeCustom, nil))

	// r2 already descends from r1, so r1 -> r2 would loop
	mock.ExpectQuery("SELECT id, parent_role_id FROM roles").
		WillReturnRows(sqlmock.NewRows([]string{"id", "parent_role_id"}).
			AddRow("r1", nil).
			AddRow("r2", "r1"))

	parent := "r2"
	role := &identity.Role{ID: "r1", DisplayName: "Custom A", ParentRoleID: &parent}

	err = store.UpdateRole(context.Background(), "", role)
	assert.ErrorIs(t, err, tree.ErrCycle)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateRole_OtherTenantMasked(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	now := time.Now()
	// the role belongs to tenant t2; tenant t1's update must not see it
	mock.ExpectQuery("FROM roles").
		WithArgs("r-foreign").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "display_name", "priority", "parent_role_id", "role_type", "role_class",
			"tenant_id", "created_at", "updated_at",
		}).AddRow("r-foreign", "their-role", "Their Role", 10, nil, "custom", "factory_sales", "t2", now, now))

	err = store.UpdateRole(context.Background(), "t1", &identity.Role{ID: "r-foreign", DisplayName: "Hijacked"})
	assert.ErrorIs(t, err, ErrRoleNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateRole_SystemRoleImmutable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	mock.ExpectQuery("FROM roles").
		WithArgs("r-sys").
		WillReturnRows(roleRows("r-sys", "factory_sales", identity.RoleTypeSystem, nil))

	err = store.UpdateRole(context.Background(), "", &identity.Role{ID: "r-sys"})
	assert.ErrorIs(t, err, ErrSystemRoleImmutable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_DeleteRole_InUse(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	mock.ExpectQuery("FROM roles").
		WithArgs("r1").
		WillReturnRows(roleRows("r1", "custom-a", identity.RoleTypeCustom, nil))

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM user_site_roles").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	err = store.DeleteRole(context.Background(), "", "r1")
	assert.ErrorIs(t, err, ErrRoleInUse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_DeleteRole_Unused(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	mock.ExpectQuery("FROM roles").
		WithArgs("r1").
		WillReturnRows(roleRows("r1", "custom-a", identity.RoleTypeCustom, nil))

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM user_site_roles").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	mock.ExpectExec("DELETE FROM roles").
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, store.DeleteRole(context.Background(), "", "r1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_AssignRole_OutsideTenantMasked(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	// the site belongs to another tenant, so the guarded insert matches no row
	mock.ExpectExec("INSERT INTO user_site_roles").
		WithArgs("u1", "admin-1", "r1", "s-foreign", "t1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = store.AssignRole(context.Background(), "t1", "u1", "s-foreign", "r1", "admin-1")
	assert.ErrorIs(t, err, ErrGrantNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RevokeRole_OutsideTenantMasked(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	mock.ExpectExec("DELETE FROM user_site_roles").
		WithArgs("u1", "s-foreign", "t1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = store.RevokeRole(context.Background(), "t1", "u1", "s-foreign")
	assert.ErrorIs(t, err, ErrGrantNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
