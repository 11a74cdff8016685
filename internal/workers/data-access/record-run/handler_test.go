package recordrun

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "procurement-harvester/internal/common/errors"
	"procurement-harvester/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewHandler(LoadConfig(), db, logger.NewTestLogger(t)), mock
}

func createValidInput() *Input {
	return &Input{
		RunID:    "run-1",
		Category: "물품",
		Start:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		Fetched:  120,
		Status:   "ok",
		Datasets: []DatasetRow{
			{Name: "물품_2024.csv", Added: 3, Total: 900},
			{Name: "물품_2025.csv", Added: 117, Total: 117},
		},
	}
}

func TestExecute_InsertsOneRowPerDataset(t *testing.T) {
	h, mock := createTestHandler(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO harvest_runs").
		WithArgs("run-1", "물품", "물품_2024.csv", "2025-01-01", "2025-01-31", 120, 0, 3, 900, "ok", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO harvest_runs").
		WithArgs("run-1", "물품", "물품_2025.csv", "2025-01-01", "2025-01-31", 120, 0, 117, 117, "ok", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	out, err := h.Execute(context.Background(), createValidInput())

	require.NoError(t, err)
	assert.Equal(t, 2, out.Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_CategoryWithoutDatasets(t *testing.T) {
	h, mock := createTestHandler(t)
	in := createValidInput()
	in.Datasets = nil
	in.Fetched = 0
	in.Failures = 4
	in.Status = "failed"

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO harvest_runs").
		WithArgs("run-1", "물품", "물품", "2025-01-01", "2025-01-31", 0, 4, 0, 0, "failed", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	out, err := h.Execute(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, 1, out.Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_InsertFailureRollsBack(t *testing.T) {
	h, mock := createTestHandler(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO harvest_runs").WillReturnError(errors.New("relation does not exist"))
	mock.ExpectRollback()

	_, err := h.Execute(context.Background(), createValidInput())

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSinkFailed, apperrors.CodeOf(err))
	assert.Contains(t, err.Error(), "relation does not exist")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_BeginFailure(t *testing.T) {
	h, mock := createTestHandler(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	_, err := h.Execute(context.Background(), createValidInput())

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_NilInput(t *testing.T) {
	h, _ := createTestHandler(t)
	_, err := h.Execute(context.Background(), nil)
	assert.Error(t, err)
}

func TestEnsureSchema(t *testing.T) {
	h, mock := createTestHandler(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS harvest_runs").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, h.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
