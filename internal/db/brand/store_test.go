package brand

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
	_ "modernc.org/sqlite"

	"github.com/Lartitiz/nowadays-coach/pkg/models"
)

// BrandStoreSuite is a test suite for the insight destination stores.
type BrandStoreSuite struct {
	suite.Suite
	sqlDB *sql.DB
	store *Store
}

func (s *BrandStoreSuite) SetupTest() {
	var err error
	s.sqlDB, err = sql.Open("sqlite", filepath.Join(s.T().TempDir(), "brand.db"))
	s.Require().NoError(err)

	s.store, err = NewStore(s.sqlDB)
	s.Require().NoError(err)
}

func (s *BrandStoreSuite) TearDownTest() {
	s.sqlDB.Close()
}

func TestBrandStoreSuite(t *testing.T) {
	suite.Run(t, new(BrandStoreSuite))
}

// TestMergeInsertsThenMerges tests update-if-exists-else-insert semantics.
func (s *BrandStoreSuite) TestMergeInsertsThenMerges() {
	ctx := context.Background()

	s.Require().NoError(s.store.MergeTargetAudience(ctx, "user-1", models.JSONMap{
		"age_range": "25-40",
		"pains":     "no time",
	}))
	s.Require().NoError(s.store.MergeTargetAudience(ctx, "user-1", models.JSONMap{
		"pains":   "no time, no budget",
		"desires": "freedom",
	}))

	data, err := s.store.GetTargetAudience(ctx, "user-1")
	s.Require().NoError(err)
	s.Equal("25-40", data["age_range"])
	s.Equal("no time, no budget", data["pains"])
	s.Equal("freedom", data["desires"])

	// Only one row per user.
	var count int64
	s.Require().NoError(s.store.DB.Model(&TargetAudience{}).Where("user_id = ?", "user-1").Count(&count).Error)
	s.Equal(int64(1), count)
}

// TestUsersAreIsolated tests that upserts key by user.
func (s *BrandStoreSuite) TestUsersAreIsolated() {
	ctx := context.Background()
	s.Require().NoError(s.store.MergeBrandAttributes(ctx, "user-1", models.JSONMap{"k": "v1"}))
	s.Require().NoError(s.store.MergeBrandAttributes(ctx, "user-2", models.JSONMap{"k": "v2"}))

	d1, err := s.store.GetBrandAttributes(ctx, "user-1")
	s.Require().NoError(err)
	d2, err := s.store.GetBrandAttributes(ctx, "user-2")
	s.Require().NoError(err)
	s.Equal("v1", d1["k"])
	s.Equal("v2", d2["k"])
}

// TestGetMissingReturnsNil tests nil, nil for absent rows.
func (s *BrandStoreSuite) TestGetMissingReturnsNil() {
	data, err := s.store.GetVisualIdentity(context.Background(), "nobody")
	s.NoError(err)
	s.Nil(data)

	narrative, err := s.store.GetNarrative(context.Background(), "nobody")
	s.NoError(err)
	s.Nil(narrative)
}

// TestNarrativeCompoundKeyAndProvenance tests the (user, type) lookup and
// the coaching source tag.
func (s *BrandStoreSuite) TestNarrativeCompoundKeyAndProvenance() {
	ctx := context.Background()

	s.Require().NoError(s.store.UpsertNarrative(ctx, "user-1", NarrativeUpdate{
		StoryText: "It started at a kitchen table.",
	}))
	s.Require().NoError(s.store.UpsertNarrative(ctx, "user-1", NarrativeUpdate{
		MissionStatement: "Make branding humane.",
	}))

	narrative, err := s.store.GetNarrative(ctx, "user-1")
	s.Require().NoError(err)
	s.Require().NotNil(narrative)
	s.Equal(NarrativeTypePrimary, narrative.Type)
	s.Equal(SourceCoaching, narrative.Source)
	// Fields merge across upserts; unset fields stay put.
	s.Equal("It started at a kitchen table.", narrative.StoryText.String)
	s.Equal("Make branding humane.", narrative.MissionStatement.String)
	s.False(narrative.FullText.Valid)

	var count int64
	s.Require().NoError(s.store.DB.Model(&Narrative{}).Where("user_id = ?", "user-1").Count(&count).Error)
	s.Equal(int64(1), count)
}

// TestNarrativeFullText tests the completion side effect's write.
func (s *BrandStoreSuite) TestNarrativeFullText() {
	ctx := context.Background()
	s.Require().NoError(s.store.UpsertNarrative(ctx, "user-1", NarrativeUpdate{FullText: "The whole story."}))

	narrative, err := s.store.GetNarrative(ctx, "user-1")
	s.Require().NoError(err)
	s.Equal("The whole story.", narrative.FullText.String)
}
