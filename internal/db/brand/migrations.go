package brand

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs the brand-table migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "001_brand_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&VisualIdentity{},
					&TargetAudience{},
					&Narrative{},
					&BrandAttributes{},
				)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(
					"visual_identities", "target_audiences", "narratives", "brand_attributes",
				)
			},
		},
	})
	return m.Migrate()
}
