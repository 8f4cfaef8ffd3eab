package audit

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*DBLogger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 0))

	logger, err := NewDBLogger(db)
	require.NoError(t, err)
	return logger, mock
}

func TestDBLogger_Log(t *testing.T) {
	logger, mock := newTestLogger(t)

	mock.ExpectQuery("INSERT INTO audit_logs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	event := &Event{
		EventType: "role.assigned",
		Status:    StatusSuccess,
		UserID:    "u1",
		TenantID:  "t1",
		SiteID:    "s1",
		Resource:  "user_site_roles/g1",
		Metadata:  map[string]interface{}{"role": "factory_sales"},
	}

	require.NoError(t, logger.Log(context.Background(), event))
	assert.Equal(t, int64(42), event.ID)
	assert.False(t, event.Timestamp.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLogger_List_AppendsScopeFilter(t *testing.T) {
	logger, mock := newTestLogger(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "timestamp", "event_type", "status",
		"user_id", "tenant_id", "site_id",
		"resource", "request_id", "message", "metadata",
	}).AddRow(1, now, "auth.login", StatusSuccess, "u1", "t1", "s1", "", "", "", nil)

	mock.ExpectQuery("FROM audit_logs WHERE tenant_id = \\$1 ORDER BY timestamp DESC").
		WithArgs("t1", 50, 0).
		WillReturnRows(rows)

	events, err := logger.List(context.Background(), "tenant_id = $1", []interface{}{"t1"}, 50, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "auth.login", events[0].EventType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNopLogger(t *testing.T) {
	assert.NoError(t, NopLogger{}.Log(context.Background(), &Event{}))
}
