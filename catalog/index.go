package catalog

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// CatalogRecord is the SQLite mirror of one master-table row. The index is a
// derived, queryable copy; the CSV stays canonical and the index is rebuilt
// wholesale from it, never merged.
type CatalogRecord struct {
	ID           uint   `gorm:"primaryKey"`
	RecordID     string `gorm:"index;size:128"`
	Filename     string `gorm:"size:512"`
	Model        string `gorm:"index;size:32"`
	ViewType     string `gorm:"index;size:32"`
	Sequence     string `gorm:"size:8"`
	Width        int
	Height       int
	Filesize     int64
	SHA256       string `gorm:"index;size:64"`
	ProcessedAt  string `gorm:"size:64"`
	Source       string `gorm:"size:128"`
	UID          string `gorm:"size:128"`
	ManifestPath string `gorm:"size:512"`
	Notes        string `gorm:"type:text"`
}

func OpenIndexDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&CatalogRecord{}); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenQueryDB opens an existing index for querying without mutating schema.
func OpenQueryDB(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path), &gorm.Config{})
}

func CloseDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RebuildIndex replaces the index content with the given table rows in one
// transaction, mirroring the table's full-rewrite persistence model.
func RebuildIndex(db *gorm.DB, recs []Record) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&CatalogRecord{}).Error; err != nil {
			return err
		}
		if len(recs) == 0 {
			return nil
		}
		rows := make([]CatalogRecord, 0, len(recs))
		for _, r := range recs {
			rows = append(rows, CatalogRecord{
				RecordID:     r.ID,
				Filename:     r.Filename,
				Model:        r.Model,
				ViewType:     r.ViewType,
				Sequence:     r.Sequence,
				Width:        r.Width,
				Height:       r.Height,
				Filesize:     r.Filesize,
				SHA256:       r.SHA256,
				ProcessedAt:  r.ProcessedAt,
				Source:       r.Source,
				UID:          r.UID,
				ManifestPath: r.ManifestPath,
				Notes:        r.Notes,
			})
		}
		return tx.Create(&rows).Error
	})
}
