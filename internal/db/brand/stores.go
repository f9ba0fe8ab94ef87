package brand

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Lartitiz/nowadays-coach/pkg/models"
)

// mergeData merges incoming insight data into the stored JSON map, incoming
// keys winning.
func mergeData(existing, incoming models.JSONMap) models.JSONMap {
	if existing == nil {
		existing = models.JSONMap{}
	}
	for k, v := range incoming {
		existing[k] = v
	}
	return existing
}

// MergeVisualIdentity upserts visual-identity data for a user.
func (s *Store) MergeVisualIdentity(ctx context.Context, userID string, data models.JSONMap) error {
	var row VisualIdentity
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = VisualIdentity{UserID: userID, Data: data}
		return s.DB.WithContext(ctx).Create(&row).Error
	}
	if err != nil {
		return fmt.Errorf("load visual identity: %w", err)
	}
	row.Data = mergeData(row.Data, data)
	return s.DB.WithContext(ctx).Save(&row).Error
}

// GetVisualIdentity returns the visual-identity data for a user, or nil.
func (s *Store) GetVisualIdentity(ctx context.Context, userID string) (models.JSONMap, error) {
	var row VisualIdentity
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.Data, nil
}

// MergeTargetAudience upserts target-audience data for a user.
func (s *Store) MergeTargetAudience(ctx context.Context, userID string, data models.JSONMap) error {
	var row TargetAudience
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = TargetAudience{UserID: userID, Data: data}
		return s.DB.WithContext(ctx).Create(&row).Error
	}
	if err != nil {
		return fmt.Errorf("load target audience: %w", err)
	}
	row.Data = mergeData(row.Data, data)
	return s.DB.WithContext(ctx).Save(&row).Error
}

// GetTargetAudience returns the target-audience data for a user, or nil.
func (s *Store) GetTargetAudience(ctx context.Context, userID string) (models.JSONMap, error) {
	var row TargetAudience
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.Data, nil
}

// MergeBrandAttributes upserts generic brand attributes for a user.
func (s *Store) MergeBrandAttributes(ctx context.Context, userID string, data models.JSONMap) error {
	var row BrandAttributes
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = BrandAttributes{UserID: userID, Data: data}
		return s.DB.WithContext(ctx).Create(&row).Error
	}
	if err != nil {
		return fmt.Errorf("load brand attributes: %w", err)
	}
	row.Data = mergeData(row.Data, data)
	return s.DB.WithContext(ctx).Save(&row).Error
}

// GetBrandAttributes returns the generic brand attributes for a user, or nil.
func (s *Store) GetBrandAttributes(ctx context.Context, userID string) (models.JSONMap, error) {
	var row BrandAttributes
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.Data, nil
}

// NarrativeUpdate carries the narrative fields one routing pass may set.
// Unset fields leave the stored value untouched.
type NarrativeUpdate struct {
	StoryText        string
	MissionStatement string
	OriginStory      string
	FullText         string
}

// UpsertNarrative merges the update into the (user, primary_narrative) row,
// tagging it with the coaching provenance.
func (s *Store) UpsertNarrative(ctx context.Context, userID string, update NarrativeUpdate) error {
	var row Narrative
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND type = ?", userID, NarrativeTypePrimary).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = Narrative{UserID: userID, Type: NarrativeTypePrimary}
	} else if err != nil {
		return fmt.Errorf("load narrative: %w", err)
	}

	if update.StoryText != "" {
		row.StoryText = sql.NullString{String: update.StoryText, Valid: true}
	}
	if update.MissionStatement != "" {
		row.MissionStatement = sql.NullString{String: update.MissionStatement, Valid: true}
	}
	if update.OriginStory != "" {
		row.OriginStory = sql.NullString{String: update.OriginStory, Valid: true}
	}
	if update.FullText != "" {
		row.FullText = sql.NullString{String: update.FullText, Valid: true}
	}
	row.Source = SourceCoaching

	return s.DB.WithContext(ctx).Save(&row).Error
}

// GetNarrative returns the primary narrative row for a user, or nil.
func (s *Store) GetNarrative(ctx context.Context, userID string) (*Narrative, error) {
	var row Narrative
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND type = ?", userID, NarrativeTypePrimary).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
