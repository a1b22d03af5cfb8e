package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/i474232898/quake-monitor/internal/quake"
)

// eventRow maps quake.Event onto the earthquake table.
type eventRow struct {
	ID        uint    `gorm:"primaryKey"`
	DateTime  string  `gorm:"column:date_time;not null;uniqueIndex:unique_earthquake_entry,priority:1"`
	Latitude  float64 `gorm:"column:latitude;not null;uniqueIndex:unique_earthquake_entry,priority:2"`
	Longitude float64 `gorm:"column:longitude;not null;uniqueIndex:unique_earthquake_entry,priority:3"`
	Depth     float64 `gorm:"column:depth;not null;index:idx_earthquake_depth"`
	MwMean    float64 `gorm:"column:mw_mean;not null"`
}

func (eventRow) TableName() string { return "earthquake" }

func newEventRow(e quake.Event) eventRow {
	return eventRow{
		DateTime:  e.OccurredAt,
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
		Depth:     e.DepthKm,
		MwMean:    e.Magnitude,
	}
}

func (r eventRow) event() quake.Event {
	return quake.Event{
		OccurredAt: r.DateTime,
		Latitude:   r.Latitude,
		Longitude:  r.Longitude,
		DepthKm:    r.Depth,
		Magnitude:  r.MwMean,
	}
}

// volcanoRow maps quake.Volcano onto the volcano table.
type volcanoRow struct {
	ID           uint    `gorm:"primaryKey"`
	Name         string  `gorm:"column:name;not null;uniqueIndex:unique_volcano_entry,priority:1"`
	Description  string  `gorm:"column:description;type:text"`
	ElevationM   float64 `gorm:"column:elevation_m"`
	ElevationFt  float64 `gorm:"column:elevation_ft"`
	Latitude     float64 `gorm:"column:latitude;not null;uniqueIndex:unique_volcano_entry,priority:2"`
	Longitude    float64 `gorm:"column:longitude;not null;uniqueIndex:unique_volcano_entry,priority:3"`
	LastEruption string  `gorm:"column:last_eruption"`
}

func (volcanoRow) TableName() string { return "volcano" }

// DB is the process-wide store handle. It is created once at startup, shared by
// the ingester, the API and the reference loader, and closed at shutdown.
type DB struct {
	gorm   *gorm.DB
	sql    *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the SQLite database at path and ensures the
// schema exists. Calling it against an existing database is a no-op migration.
func Open(ctx context.Context, path string, logger *zap.Logger) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create data dir: %w", err)
		}
	}

	// WAL lets API readers proceed while an ingestion run writes.
	dsn := path + "?_busy_timeout=5000&_journal_mode=WAL"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("store: underlying connection: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	if err := gdb.WithContext(ctx).AutoMigrate(&eventRow{}, &volcanoRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	logger.Info("store opened", zap.String("path", path))
	return &DB{gorm: gdb, sql: sqlDB, logger: logger}, nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	return d.sql.Close()
}

// ListEvents returns every stored event, most recent first.
func (d *DB) ListEvents(ctx context.Context) ([]quake.Event, error) {
	var rows []eventRow
	err := d.gorm.WithContext(ctx).
		Order("date_time DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, unavailable("list events", err)
	}
	return toEvents(rows), nil
}

// DeepEvents returns events at or below minDepth km, deepest first.
func (d *DB) DeepEvents(ctx context.Context, minDepth float64) ([]quake.Event, error) {
	var rows []eventRow
	err := d.gorm.WithContext(ctx).
		Where("depth >= ?", minDepth).
		Order("depth DESC").
		Order("date_time DESC").
		Find(&rows).Error
	if err != nil {
		return nil, unavailable("deep events", err)
	}
	return toEvents(rows), nil
}

// CountEvents returns the number of stored events.
func (d *DB) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	if err := d.gorm.WithContext(ctx).Model(&eventRow{}).Count(&n).Error; err != nil {
		return 0, unavailable("count events", err)
	}
	return n, nil
}

func toEvents(rows []eventRow) []quake.Event {
	events := make([]quake.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, r.event())
	}
	return events
}

func unavailable(op string, err error) error {
	return fmt.Errorf("store: %s: %w: %w", op, quake.ErrStorageUnavailable, err)
}
