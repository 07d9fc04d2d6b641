package reliability

import (
	"testing"

	"github.com/aristath/stockwatch/internal/database"
	testingpkg "github.com/aristath/stockwatch/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyMaintenanceJob(t *testing.T) {
	ledger, _ := testingpkg.NewTestDB(t, "ledger")
	cache, _ := testingpkg.NewTestDB(t, "cache")

	t.Run("healthy databases pass", func(t *testing.T) {
		job := NewDailyMaintenanceJob([]*database.DB{ledger, cache}, t.TempDir(), zerolog.Nop())
		job.minFreeBytes = 0

		assert.Equal(t, "daily_maintenance", job.Name())
		require.NoError(t, job.Run())
	})

	t.Run("fails when free space is below the floor", func(t *testing.T) {
		job := NewDailyMaintenanceJob([]*database.DB{ledger}, t.TempDir(), zerolog.Nop())
		job.minFreeBytes = ^uint64(0)

		err := job.Run()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "GB free")
	})

	t.Run("fails on a closed database", func(t *testing.T) {
		broken, closeBroken := testingpkg.NewTestDB(t, "ledger")
		closeBroken()

		job := NewDailyMaintenanceJob([]*database.DB{broken}, t.TempDir(), zerolog.Nop())
		job.minFreeBytes = 0

		err := job.Run()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "integrity check failed")
	})
}

func TestVacuumJob(t *testing.T) {
	ledger, _ := testingpkg.NewTestDB(t, "ledger")

	_, err := ledger.Conn().Exec(`INSERT INTO instruments (ticker, name, is_active, created_at, updated_at)
		VALUES ('ITUB4', 'Itaú', 1, 0, 0)`)
	require.NoError(t, err)
	_, err = ledger.Conn().Exec(`DELETE FROM instruments`)
	require.NoError(t, err)

	job := NewVacuumJob([]*database.DB{ledger}, zerolog.Nop())
	assert.Equal(t, "weekly_vacuum", job.Name())
	require.NoError(t, job.Run())

	stats, err := ledger.GetStats()
	require.NoError(t, err)
	assert.Zero(t, stats.FreelistCount)
}
