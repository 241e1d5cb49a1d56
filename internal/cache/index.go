package cache

import (
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// accessRow backs the sqlite access-tracking index: a rebuildable
// accelerator for eviction's "oldest access" query, never authoritative —
// the cache directory tree on disk remains the source of truth for which
// entries actually exist.
type accessRow struct {
	StageName    string `gorm:"primaryKey;column:stage_name"`
	HexKey       string `gorm:"primaryKey;column:hex_key"`
	AccessCount  int64
	LastAccessed time.Time
}

func (accessRow) TableName() string { return "cache_access" }

// Index wraps a local sqlite database tracking access recency/count per
// cache entry, so eviction can query "oldest access" without walking the
// cache directory tree. It records no entry sizes.
type Index struct {
	db *gorm.DB
}

func OpenIndex(sqlitePath string) (*Index, error) {
	db, err := gorm.Open(sqlite.Open(sqlitePath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&accessRow{}); err != nil {
		return nil, err
	}
	return &Index{db: db}, nil
}

// Upsert records a freshly stored entry with an initial access count of 1.
func (idx *Index) Upsert(stageName, hexKey string) error {
	now := time.Now()
	row := accessRow{StageName: stageName, HexKey: hexKey, AccessCount: 1, LastAccessed: now}
	return idx.db.Save(&row).Error
}

// RecordAccess bumps the access count and last-accessed timestamp for an
// existing entry on every cache hit.
func (idx *Index) RecordAccess(stageName, hexKey string) error {
	return idx.db.Model(&accessRow{}).
		Where("stage_name = ? AND hex_key = ?", stageName, hexKey).
		Updates(map[string]any{
			"access_count":  gorm.Expr("access_count + 1"),
			"last_accessed": time.Now(),
		}).Error
}

// Oldest returns up to limit (stage_name, hex_key) pairs ordered by least
// recently accessed, the eviction candidate list.
func (idx *Index) Oldest(limit int) ([]struct{ StageName, HexKey string }, error) {
	var rows []accessRow
	if err := idx.db.Order("last_accessed asc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]struct{ StageName, HexKey string }, 0, len(rows))
	for _, r := range rows {
		out = append(out, struct{ StageName, HexKey string }{r.StageName, r.HexKey})
	}
	return out, nil
}

// Forget removes an index row once its on-disk entry has been evicted.
func (idx *Index) Forget(stageName, hexKey string) error {
	return idx.db.Where("stage_name = ? AND hex_key = ?", stageName, hexKey).Delete(&accessRow{}).Error
}

func (idx *Index) Close() error {
	sqlDB, err := idx.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
