package popup

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var popupColumns = []string{"id", "title", "content", "link_url", "is_active", "popup_size"}

func newPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS popups`).WillReturnResult(sqlmock.NewResult(0, 0))
	return NewPostgresStore(db), mock
}

func TestPostgresStoreListActive(t *testing.T) {
	s, mock := newPostgresStore(t)
	mock.ExpectQuery(`SELECT id, title, content, link_url, is_active, popup_size FROM popups WHERE is_active ORDER BY id`).
		WillReturnRows(sqlmock.NewRows(popupColumns).
			AddRow(1, " Open day ", "<p>Visit the lab</p>", "https://lab.example/open-day", true, "lg").
			AddRow(2, "Seminar", "<p>Thursday</p>", "", true, "xl"))

	got, err := s.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Record{
		ID: 1, Title: "Open day", Content: "<p>Visit the lab</p>",
		LinkURL: "https://lab.example/open-day", IsActive: true, Styles: Styles{PopupSize: SizeLarge},
	}, got[0])
	assert.Equal(t, SizeMedium, got[1].Styles.PopupSize, "unknown sizes fall back to medium")
}

func TestPostgresStoreGet(t *testing.T) {
	s, mock := newPostgresStore(t)
	query := `SELECT id, title, content, link_url, is_active, popup_size FROM popups WHERE id = \$1`
	mock.ExpectQuery(query).WithArgs(3).
		WillReturnRows(sqlmock.NewRows(popupColumns).AddRow(3, "Recruiting", "<p>PhD</p>", "", false, "sm"))
	mock.ExpectQuery(query).WithArgs(4).WillReturnRows(sqlmock.NewRows(popupColumns))

	rec, err := s.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Recruiting", rec.Title)
	assert.False(t, rec.IsActive)
	assert.Equal(t, SizeSmall, rec.Styles.PopupSize)

	_, err = s.Get(context.Background(), 4)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStorePutUpserts(t *testing.T) {
	s, mock := newPostgresStore(t)
	mock.ExpectExec(`(?s)INSERT INTO popups \(id, title, content, link_url, is_active, popup_size, updated_at\).*ON CONFLICT \(id\)`).
		WithArgs(5, "Notice", "<p>Closed</p>", "https://lab.example", true, "md").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Put(context.Background(), Record{
		ID: 5, Title: " Notice ", Content: "<p>Closed</p>", LinkURL: " https://lab.example ", IsActive: true,
	})
	require.NoError(t, err)

	assert.Error(t, s.Put(context.Background(), Record{Title: "no id"}))
}
