package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenInMemory_SeedsMSP(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	var price float64
	require.NoError(t, db.Get(&price, db.Rebind(`SELECT msp_price FROM crop_msp WHERE crop_name = ?`), "wheat"))
	assert.Equal(t, 20.0, price)

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM crop_msp`))
	assert.Equal(t, 5, count)
}

func TestApplySchema_Idempotent(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, ApplySchema(db))
}

func TestFacilityCheckConstraint(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`INSERT INTO storage_facilities
		(id, name, state, district, capacity, available_space, status, created_by, created_at, updated_at)
		VALUES ('f0e6c8c2-8a42-4f63-9a0e-1a1f1d2c3b4a', 'Depot', 'Punjab', 'Ludhiana', 100, 120, 'active', 'admin', 0, 0)`)
	assert.Error(t, err, "available_space above capacity is rejected")
}
