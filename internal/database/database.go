package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ramwatch/internal/models"
)

// ErrStorage marks persistence faults (disk full, corruption, locked
// database). Callers treat it as a per-listing failure and continue.
var ErrStorage = errors.New("storage fault")

// Database is the sole owner and writer of persisted listing state.
type Database struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewDatabase(dbPath string, logger *logrus.Logger) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath+"?_journal_mode=WAL&_busy_timeout=5000"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	d := &Database{db: db, logger: logger}
	if err := d.RunMigrations(); err != nil {
		return nil, err
	}
	return d, nil
}

// RunMigrations creates or updates the listings table.
func (d *Database) RunMigrations() error {
	if err := d.db.AutoMigrate(&models.StoredRecord{}); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying connection.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Exists reports whether a listing ID has been recorded before.
func (d *Database) Exists(adID string) (bool, error) {
	var count int64
	if err := d.db.Model(&models.StoredRecord{}).Where("ad_id = ?", adID).Count(&count).Error; err != nil {
		return false, storageErr("exists", err)
	}
	return count > 0, nil
}

// InsertIfAbsent stores the record unless a row with the same ad ID already
// exists. Uniqueness is enforced by the primary key at the storage layer, so
// concurrent or repeated calls for one ID can never produce two rows. The
// returned bool reports whether this call inserted the row.
func (d *Database) InsertIfAbsent(rec models.StoredRecord) (bool, error) {
	res := d.db.Exec(`
		INSERT INTO listings (
			ad_id, title, price, location, url, posted_at, raw_description,
			model_number, manufacturer, capacity, speed, latency, color,
			has_ovp, has_invoice, shipping_available, defect_mentioned,
			priority_score, first_seen, last_checked
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ad_id) DO NOTHING`,
		rec.AdID, rec.Title, rec.Price, rec.Location, rec.URL, rec.PostedAt, rec.RawDescription,
		rec.ModelNumber, rec.Manufacturer, rec.Capacity, rec.Speed, rec.Latency, rec.Color,
		rec.HasOVP, rec.HasInvoice, rec.ShippingAvailable, rec.DefectMentioned,
		rec.PriorityScore, rec.FirstSeen, rec.LastChecked,
	)
	if res.Error != nil {
		return false, storageErr("insert", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// TouchLastChecked bumps the re-sighting timestamp without altering the
// first-seen snapshot.
func (d *Database) TouchLastChecked(adID string, t time.Time) error {
	res := d.db.Model(&models.StoredRecord{}).Where("ad_id = ?", adID).Update("last_checked", t)
	if res.Error != nil {
		return storageErr("touch", res.Error)
	}
	return nil
}

// GetRecent returns the n most recently first-seen records, newest first.
func (d *Database) GetRecent(n int) ([]models.StoredRecord, error) {
	var records []models.StoredRecord
	err := d.db.Order("first_seen DESC").Limit(n).Find(&records).Error
	if err != nil {
		return nil, storageErr("recent", err)
	}
	return records, nil
}

// GetStats aggregates counts by manufacturer and by day.
func (d *Database) GetStats() (models.StoreStats, error) {
	stats := models.StoreStats{
		Manufacturers: make(map[string]int64),
		PerDay:        make(map[string]int64),
	}

	if err := d.db.Model(&models.StoredRecord{}).Count(&stats.Total).Error; err != nil {
		return stats, storageErr("stats", err)
	}

	today := time.Now().Truncate(24 * time.Hour)
	if err := d.db.Model(&models.StoredRecord{}).
		Where("first_seen >= ?", today).Count(&stats.Today).Error; err != nil {
		return stats, storageErr("stats", err)
	}

	type pair struct {
		Key   string
		Count int64
	}

	var byManufacturer []pair
	err := d.db.Model(&models.StoredRecord{}).
		Select("manufacturer AS key, COUNT(*) AS count").
		Where("manufacturer != ''").
		Group("manufacturer").
		Scan(&byManufacturer).Error
	if err != nil {
		return stats, storageErr("stats", err)
	}
	for _, p := range byManufacturer {
		stats.Manufacturers[p.Key] = p.Count
	}

	var byDay []pair
	err = d.db.Model(&models.StoredRecord{}).
		Select("strftime('%Y-%m-%d', first_seen) AS key, COUNT(*) AS count").
		Group("key").
		Scan(&byDay).Error
	if err != nil {
		return stats, storageErr("stats", err)
	}
	for _, p := range byDay {
		stats.PerDay[p.Key] = p.Count
	}

	// An ordered column read instead of MAX(): sqlite aggregates lose the
	// declared column type and can come back as strings.
	var last time.Time
	res := d.db.Model(&models.StoredRecord{}).
		Select("last_checked").
		Order("last_checked DESC").
		Limit(1).
		Scan(&last)
	if res.Error != nil {
		d.logger.WithError(res.Error).Warn("Failed to read last-checked time")
	} else if res.RowsAffected > 0 {
		stats.LastChecked = &last
	}

	return stats, nil
}

// Clear removes all records. Administrative operation, never part of a cycle.
func (d *Database) Clear() (int64, error) {
	res := d.db.Exec("DELETE FROM listings")
	if res.Error != nil {
		return 0, storageErr("clear", res.Error)
	}
	return res.RowsAffected, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}
