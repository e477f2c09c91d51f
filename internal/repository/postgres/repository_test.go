package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meucuidador/care-api/internal/model"
	"github.com/meucuidador/care-api/internal/repository"
)

func newMock(t *testing.T) (BaseRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBaseRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestPatientRepositoryListAccessible(t *testing.T) {
	base, mock := newMock(t)
	repo := NewPatientRepository(base)

	rows := sqlmock.NewRows([]string{"id", "name", "email", "age", "photo", "profile_type", "weight", "whatsapp"}).
		AddRow(1, "Maria", "maria@example.com", 81, nil, "patient", 62.5, "+5511999990000").
		AddRow(2, "João", "joao@example.com", nil, nil, "patient", nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta(queryAccessiblePatients)).WithArgs(int64(10)).WillReturnRows(rows)

	patients, err := repo.ListAccessible(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, patients, 2)
	assert.Equal(t, "Maria", patients[0].Name)
	require.NotNil(t, patients[0].Age)
	assert.Equal(t, 81, *patients[0].Age)
	assert.Nil(t, patients[1].Weight)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientRepositorySearchEscapesPattern(t *testing.T) {
	base, mock := newMock(t)
	repo := NewPatientRepository(base)

	mock.ExpectQuery(regexp.QuoteMeta(querySearchAccessiblePatients)).
		WithArgs(int64(10), `%50\%%`, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "age", "photo", "profile_type", "weight", "whatsapp"}))

	patients, err := repo.SearchAccessible(context.Background(), 10, " 50% ", 20)
	require.NoError(t, err)
	assert.Empty(t, patients)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientRepositoryHasAccess(t *testing.T) {
	base, mock := newMock(t)
	repo := NewPatientRepository(base)

	mock.ExpectQuery(regexp.QuoteMeta(queryHasAccess)).
		WithArgs(int64(10), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.HasAccess(context.Background(), 10, 2)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPatientRepositoryGetNotFound(t *testing.T) {
	base, mock := newMock(t)
	repo := NewPatientRepository(base)

	mock.ExpectQuery(regexp.QuoteMeta(queryPatientByID)).WithArgs(int64(99)).WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), 99)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestNotificationRepositoryCreate(t *testing.T) {
	base, mock := newMock(t)
	repo := NewNotificationRepository(base)

	n := &model.Notification{UserID: 10, Type: "medication_edited", Title: "Medicação alterada", Message: "Losartana 50mg"}
	mock.ExpectQuery(regexp.QuoteMeta(queryInsertNotification)).
		WithArgs(int64(10), "medication_edited", "Medicação alterada", "Losartana 50mg", sqlmock.AnyArg(), nil, nil, model.NotificationPriorityNormal).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(55))

	require.NoError(t, repo.Create(context.Background(), n))
	assert.Equal(t, int64(55), n.ID)
	assert.False(t, n.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositorySummary(t *testing.T) {
	base, mock := newMock(t)
	repo := NewNotificationRepository(base)

	mock.ExpectQuery(regexp.QuoteMeta(queryNotificationSummary)).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"total", "unread"}).AddRow(5, 2))

	summary, err := repo.Summary(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, model.NotificationSummary{Total: 5, Unread: 2}, *summary)
}

func TestNotificationRepositoryMarkReadMissing(t *testing.T) {
	base, mock := newMock(t)
	repo := NewNotificationRepository(base)

	at := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta(queryMarkNotificationRead)).
		WithArgs(int64(10), int64(3), at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkRead(context.Background(), 10, 3, at)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestNotificationRepositoryListNormalizesPage(t *testing.T) {
	base, mock := newMock(t)
	repo := NewNotificationRepository(base)

	mock.ExpectQuery(regexp.QuoteMeta(queryListNotifications)).
		WithArgs(int64(10), model.MaxPageLimit, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "title", "message", "is_read", "created_at", "read_at", "patient_name", "editor_name", "priority"}).
			AddRow(1, 10, "test_completed", "Exame", "Hemograma pronto", false, time.Now(), nil, "Maria", nil, "high"))

	list, err := repo.List(context.Background(), 10, model.Pagination{Limit: 500, Offset: -3})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.NotificationPriorityHigh, list[0].Priority)
	require.NotNil(t, list[0].PatientName)
	assert.Equal(t, "Maria", *list[0].PatientName)
}

func TestNotificationRepositoryDeleteReadBefore(t *testing.T) {
	base, mock := newMock(t)
	repo := NewNotificationRepository(base)

	cutoff := time.Date(2026, 9, 17, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta(queryDeleteReadBeforeCutoff)).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteReadBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
