package utils

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestGenerateNumericCode(t *testing.T) {
	code := GenerateNumericCode(10)
	assert.Len(t, code, 10)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9')
	}
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "wheat", NormalizeKey("  WHEAT "))
}

func TestCreateResponses(t *testing.T) {
	errResp := CreateErrorResponse("NOT_FOUND", "missing")
	assert.False(t, errResp.Success)
	assert.Equal(t, "NOT_FOUND", errResp.Error.Code)

	list := CreateListResponse([]int{1, 2}, 2)
	assert.True(t, list.Success)
	require.NotNil(t, list.Meta.Count)
	assert.Equal(t, 2, *list.Meta.Count)
}

func TestExecWithCheck(t *testing.T) {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	_, err = db.Exec(`CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)`)
	require.NoError(t, err)

	require.NoError(t, ExecWithCheck(ctx, db, `INSERT INTO t (id, v) VALUES (?, ?)`, ExecInsert, 1, "a"))
	require.NoError(t, ExecWithCheck(ctx, db, `UPDATE t SET v = ? WHERE id = ?`, ExecUpdate, "b", 1))

	err = ExecWithCheck(ctx, db, `UPDATE t SET v = ? WHERE id = ?`, ExecUpdate, "c", 2)
	assert.ErrorIs(t, err, ErrNoRowsAffected)
}
