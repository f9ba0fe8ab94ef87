// Package profile assembles the side-context snapshot of a user's existing
// brand data that accompanies Dynamic-protocol requests.
package profile

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/Lartitiz/nowadays-coach/internal/db/brand"
)

// Provider produces the profile snapshot. The controller fetches it at most
// once per session lifetime; the provider itself is stateless.
type Provider interface {
	Snapshot(ctx context.Context, userID string) (json.RawMessage, error)
}

// StoreProvider builds snapshots from the brand stores.
type StoreProvider struct {
	store *brand.Store
}

// NewStoreProvider creates a provider over the brand stores.
func NewStoreProvider(store *brand.Store) *StoreProvider {
	return &StoreProvider{store: store}
}

// snapshot is the wire shape of the side context. Sections the user has no
// data for are omitted.
type snapshot struct {
	VisualIdentity  map[string]any `json:"visual_identity,omitempty"`
	TargetAudience  map[string]any `json:"target_audience,omitempty"`
	BrandAttributes map[string]any `json:"brand_attributes,omitempty"`
	Narrative       *narrativePart `json:"narrative,omitempty"`
}

type narrativePart struct {
	Story   string `json:"story,omitempty"`
	Mission string `json:"mission,omitempty"`
	Origin  string `json:"origin,omitempty"`
}

// Snapshot assembles the user's current brand data into one opaque object.
func (p *StoreProvider) Snapshot(ctx context.Context, userID string) (json.RawMessage, error) {
	var snap snapshot
	var err error

	if snap.VisualIdentity, err = p.store.GetVisualIdentity(ctx, userID); err != nil {
		return nil, fmt.Errorf("snapshot visual identity: %w", err)
	}
	if snap.TargetAudience, err = p.store.GetTargetAudience(ctx, userID); err != nil {
		return nil, fmt.Errorf("snapshot target audience: %w", err)
	}
	if snap.BrandAttributes, err = p.store.GetBrandAttributes(ctx, userID); err != nil {
		return nil, fmt.Errorf("snapshot brand attributes: %w", err)
	}

	narrative, err := p.store.GetNarrative(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("snapshot narrative: %w", err)
	}
	if narrative != nil {
		snap.Narrative = &narrativePart{
			Story:   narrative.StoryText.String,
			Mission: narrative.MissionStatement.String,
			Origin:  narrative.OriginStory.String,
		}
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return raw, nil
}
