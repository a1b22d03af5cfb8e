package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/i474232898/quake-monitor/internal/quake"
)

// ListVolcanoes returns the reference dataset in load order.
func (d *DB) ListVolcanoes(ctx context.Context) ([]quake.Volcano, error) {
	var rows []volcanoRow
	if err := d.gorm.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, unavailable("list volcanoes", err)
	}

	vs := make([]quake.Volcano, 0, len(rows))
	for _, r := range rows {
		vs = append(vs, quake.Volcano{
			Name:         r.Name,
			Description:  r.Description,
			ElevationM:   r.ElevationM,
			ElevationFt:  r.ElevationFt,
			Latitude:     r.Latitude,
			Longitude:    r.Longitude,
			LastEruption: r.LastEruption,
		})
	}
	return vs, nil
}

// ReplaceVolcanoes clears the volcano table and inserts vs in one transaction.
// Entries repeating a (name, latitude, longitude) key replace the earlier one.
func (d *DB) ReplaceVolcanoes(ctx context.Context, vs []quake.Volcano) error {
	rows := make([]volcanoRow, 0, len(vs))
	for _, v := range vs {
		rows = append(rows, volcanoRow{
			Name:         v.Name,
			Description:  v.Description,
			ElevationM:   v.ElevationM,
			ElevationFt:  v.ElevationFt,
			Latitude:     v.Latitude,
			Longitude:    v.Longitude,
			LastEruption: v.LastEruption,
		})
	}

	err := d.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM volcano").Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}, {Name: "latitude"}, {Name: "longitude"}},
			UpdateAll: true,
		}).Create(&rows).Error
	})
	if err != nil {
		return unavailable("replace volcanoes", err)
	}
	return nil
}
