package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botic-pipeline/internal/common/config"
)

func TestInTx_CommitsOnSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE applications").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	client := NewPostgresFromDB(db)
	err = client.InTx(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.Exec("UPDATE applications SET lock_token = NULL")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	sentinel := errors.New("conflict")
	err = NewPostgresFromDB(db).InTx(context.Background(), func(*sql.Tx) error {
		return sentinel
	})

	assert.ErrorIs(t, err, sentinel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	dup := &pq.Error{Code: "23505"}
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert role: %w", dup)))
	assert.False(t, IsUniqueViolation(errors.New("other")))
	assert.True(t, IsForeignKeyViolation(&pq.Error{Code: "23503"}))
}

func TestNewRedis_EmptyAddressDisablesCache(t *testing.T) {
	assert.Nil(t, NewRedis(config.RedisConfig{}))

	var c *RedisClient
	assert.NoError(t, c.Close())
}
