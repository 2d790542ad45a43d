package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFromEmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "record_versions", []string{"a", "b"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFromSuccess(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"record_versions"}, []string{"application_id", "version"}).WillReturnResult(3)

	rows := [][]any{{"app-1", 1}, {"app-1", 2}, {"app-2", 1}}
	n, err := CopyFrom(context.Background(), mock, "record_versions", []string{"application_id", "version"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFromError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"record_versions"}, []string{"application_id"}).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "record_versions", []string{"application_id"}, [][]any{{"app-1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO record_versions")
	assert.NoError(t, mock.ExpectationsWereMet())
}
