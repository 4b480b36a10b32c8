package store

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidanlsb/sramp/internal/model"
	"github.com/aidanlsb/sramp/internal/query"
)

func mockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func compiled(t *testing.T, text string) *query.Compiled {
	t.Helper()
	q, err := query.Parse(text)
	require.NoError(t, err)
	c, err := query.Compile(q, nil, query.CompileOptions{OrderBy: "name", Ascending: true})
	require.NoError(t, err)
	return c
}

func TestExecuteQueryCountError(t *testing.T) {
	s, mock := mockStore(t)
	c := compiled(t, "/s-ramp/xsd")

	boom := errors.New("disk I/O error")
	mock.ExpectQuery(regexp.QuoteMeta(c.CountSQL())).WillReturnError(boom)

	_, err := s.ExecuteQuery(context.Background(), c, query.Args{Count: 10})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteQueryAppliesLimitOffset(t *testing.T) {
	s, mock := mockStore(t)
	c := compiled(t, "/s-ramp/xsd")

	mock.ExpectQuery(regexp.QuoteMeta(c.CountSQL())).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(regexp.QuoteMeta(c.SelectSQL() + " LIMIT ? OFFSET ?")).
		WithArgs(5, 10).
		WillReturnRows(sqlmock.NewRows([]string{
			"uuid", "name", "model", "type", "description", "created_by",
			"created_at", "last_modified_at", "derived", "sort_key",
		}).
			AddRow("u1", "a.xsd", "xsd", "XsdDocument", "", "bob", "2024-01-02T03:04:05Z", "", "false", "a.xsd").
			AddRow("u2", "b.xsd", "xsd", "XsdDocument", "", "", "", "", "true", "b.xsd"))

	got, err := s.ExecuteQuery(context.Background(), c, query.Args{OrderBy: "name", Ascending: true, StartIndex: 10, Count: 5})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 12, got.TotalAvailable)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "bob", got.Items[0].CreatedBy)
	assert.Equal(t, 2024, got.Items[0].CreatedAt.Year())
	assert.False(t, got.Items[0].Derived)
	assert.True(t, got.Items[1].Derived)
	assert.True(t, got.Items[1].CreatedAt.IsZero())
}

func TestExecuteQuerySkipsSelectPastEnd(t *testing.T) {
	s, mock := mockStore(t)
	c := compiled(t, "/s-ramp")

	mock.ExpectQuery(regexp.QuoteMeta(c.CountSQL())).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	got, err := s.ExecuteQuery(context.Background(), c, query.Args{StartIndex: 3, Count: 10})
	require.NoError(t, err)
	assert.Empty(t, got.Items)
	assert.Equal(t, 3, got.TotalAvailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveArtifactRollsBackOnError(t *testing.T) {
	s, mock := mockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM target_attributes").WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	err := s.SaveArtifact(context.Background(), &model.Artifact{UUID: "u1", Model: "core", Type: "Document"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}
