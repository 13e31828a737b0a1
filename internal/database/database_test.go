package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ramwatch/internal/models"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testRecord(adID string, firstSeen time.Time) models.StoredRecord {
	return models.StoredRecord{
		AdID:         adID,
		Title:        "DDR5 32GB Kit",
		Price:        180,
		Location:     "10115 Berlin",
		URL:          "https://www.kleinanzeigen.de/s-anzeige/ddr5/" + adID,
		Manufacturer: "Corsair",
		FirstSeen:    firstSeen,
		LastChecked:  firstSeen,
	}
}

func TestInsertIfAbsent_NewAndDuplicate(t *testing.T) {
	db := newTestDatabase(t)
	now := time.Now()

	inserted, err := db.InsertIfAbsent(testRecord("100", now))
	require.NoError(t, err)
	assert.True(t, inserted)

	exists, err := db.Exists("100")
	require.NoError(t, err)
	assert.True(t, exists)

	// Same ad ID again: the row must stay unique and the call must report
	// that nothing was inserted.
	inserted, err = db.InsertIfAbsent(testRecord("100", now.Add(time.Hour)))
	require.NoError(t, err)
	assert.False(t, inserted)

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
}

func TestExists_Unknown(t *testing.T) {
	db := newTestDatabase(t)

	exists, err := db.Exists("does-not-exist")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTouchLastChecked_PreservesFirstSeen(t *testing.T) {
	db := newTestDatabase(t)
	firstSeen := time.Now().Add(-48 * time.Hour).Truncate(time.Second)

	_, err := db.InsertIfAbsent(testRecord("200", firstSeen))
	require.NoError(t, err)

	later := time.Now().Truncate(time.Second)
	require.NoError(t, db.TouchLastChecked("200", later))

	records, err := db.GetRecent(1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.WithinDuration(t, firstSeen, records[0].FirstSeen, time.Second)
	assert.WithinDuration(t, later, records[0].LastChecked, time.Second)
}

func TestGetRecent_OrderAndLimit(t *testing.T) {
	db := newTestDatabase(t)
	base := time.Now().Add(-time.Hour)

	for i, adID := range []string{"1", "2", "3"} {
		_, err := db.InsertIfAbsent(testRecord(adID, base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	records, err := db.GetRecent(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "3", records[0].AdID)
	assert.Equal(t, "2", records[1].AdID)
}

func TestGetStats(t *testing.T) {
	db := newTestDatabase(t)
	now := time.Now()

	recA := testRecord("10", now)
	recB := testRecord("11", now)
	recB.Manufacturer = "Kingston"
	recB.LastChecked = now.Add(time.Minute)
	recC := testRecord("12", now.Add(-72*time.Hour))

	for _, rec := range []models.StoredRecord{recA, recB, recC} {
		_, err := db.InsertIfAbsent(rec)
		require.NoError(t, err)
	}

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Today)
	assert.Equal(t, int64(2), stats.Manufacturers["Corsair"])
	assert.Equal(t, int64(1), stats.Manufacturers["Kingston"])
	require.NotNil(t, stats.LastChecked)
	assert.WithinDuration(t, recB.LastChecked, *stats.LastChecked, time.Second)
}

func TestGetStats_EmptyStore(t *testing.T) {
	db := newTestDatabase(t)

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Total)
	assert.Nil(t, stats.LastChecked)
}

func TestClear(t *testing.T) {
	db := newTestDatabase(t)

	_, err := db.InsertIfAbsent(testRecord("1", time.Now()))
	require.NoError(t, err)
	_, err = db.InsertIfAbsent(testRecord("2", time.Now()))
	require.NoError(t, err)

	deleted, err := db.Clear()
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Total)
}
