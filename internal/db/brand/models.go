package brand

import (
	"database/sql"
	"time"

	"gorm.io/gorm"

	"github.com/Lartitiz/nowadays-coach/pkg/models"
)

// NarrativeTypePrimary is the narrative row coaching writes into. Narratives
// are looked up by (user, type), not by user alone.
const NarrativeTypePrimary = "primary_narrative"

// SourceCoaching tags rows written by the coaching engine.
const SourceCoaching = "coaching"

// VisualIdentity holds the tone-and-style identity of a user's brand.
// Insights land here through an allow-list filter.
type VisualIdentity struct {
	ID             int64          `gorm:"primaryKey;autoIncrement"`
	UserID         string         `gorm:"uniqueIndex;not null"`
	Data           models.JSONMap `gorm:"type:text"`
	UpdatedAt      string         `gorm:"not null"`
	UpdatedAtEpoch int64          `gorm:"not null"`
}

func (VisualIdentity) TableName() string { return "visual_identities" }

// BeforeSave hook keeps timestamps current.
func (v *VisualIdentity) BeforeSave(tx *gorm.DB) error {
	now := time.Now()
	v.UpdatedAt = now.Format(time.RFC3339)
	v.UpdatedAtEpoch = now.UnixMilli()
	return nil
}

// TargetAudience holds the persona data of a user's brand.
type TargetAudience struct {
	ID             int64          `gorm:"primaryKey;autoIncrement"`
	UserID         string         `gorm:"uniqueIndex;not null"`
	Data           models.JSONMap `gorm:"type:text"`
	UpdatedAt      string         `gorm:"not null"`
	UpdatedAtEpoch int64          `gorm:"not null"`
}

func (TargetAudience) TableName() string { return "target_audiences" }

// BeforeSave hook keeps timestamps current.
func (t *TargetAudience) BeforeSave(tx *gorm.DB) error {
	now := time.Now()
	t.UpdatedAt = now.Format(time.RFC3339)
	t.UpdatedAtEpoch = now.UnixMilli()
	return nil
}

// Narrative holds a brand narrative. Coaching fills the renamed story fields
// and, after completion, the full text.
type Narrative struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	UserID           string `gorm:"index;not null;uniqueIndex:idx_narratives_user_type,priority:1"`
	Type             string `gorm:"not null;uniqueIndex:idx_narratives_user_type,priority:2"`
	StoryText        sql.NullString
	MissionStatement sql.NullString
	OriginStory      sql.NullString
	FullText         sql.NullString
	Source           string `gorm:"not null;default:''"`
	UpdatedAt        string `gorm:"not null"`
	UpdatedAtEpoch   int64  `gorm:"not null"`
}

func (Narrative) TableName() string { return "narratives" }

// BeforeSave hook keeps timestamps current.
func (n *Narrative) BeforeSave(tx *gorm.DB) error {
	now := time.Now()
	n.UpdatedAt = now.Format(time.RFC3339)
	n.UpdatedAtEpoch = now.UnixMilli()
	return nil
}

// BrandAttributes is the generic destination for categories without a
// dedicated store.
type BrandAttributes struct {
	ID             int64          `gorm:"primaryKey;autoIncrement"`
	UserID         string         `gorm:"uniqueIndex;not null"`
	Data           models.JSONMap `gorm:"type:text"`
	UpdatedAt      string         `gorm:"not null"`
	UpdatedAtEpoch int64          `gorm:"not null"`
}

func (BrandAttributes) TableName() string { return "brand_attributes" }

// BeforeSave hook keeps timestamps current.
func (b *BrandAttributes) BeforeSave(tx *gorm.DB) error {
	now := time.Now()
	b.UpdatedAt = now.Format(time.RFC3339)
	b.UpdatedAtEpoch = now.UnixMilli()
	return nil
}
