// Package insights routes extracted coaching insights to their destination
// stores. Routing is best-effort: failures are logged and never block the
// session's phase transition.
package insights

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/Lartitiz/nowadays-coach/internal/db/brand"
	"github.com/Lartitiz/nowadays-coach/internal/inference"
	"github.com/Lartitiz/nowadays-coach/pkg/models"
)

// visualIdentityFields is the allow-list of tone_style insight keys accepted
// into the visual-identity store. Anything else stays in the session's
// accumulated data only.
var visualIdentityFields = map[string]struct{}{
	"personality": {},
	"voice":       {},
	"register":    {},
	"dos_donts":   {},
	"signature":   {},
	"tone_words":  {},
}

// narrativeRenames maps story insight keys to narrative columns.
var narrativeRenames = map[string]func(*brand.NarrativeUpdate, string){
	"brand_story": func(u *brand.NarrativeUpdate, v string) { u.StoryText = v },
	"mission":     func(u *brand.NarrativeUpdate, v string) { u.MissionStatement = v },
	"origin":      func(u *brand.NarrativeUpdate, v string) { u.OriginStory = v },
}

// Router dispatches insight bundles by category.
type Router struct {
	store  *brand.Store
	client inference.Client
}

// NewRouter creates an insight router.
func NewRouter(store *brand.Store, client inference.Client) *Router {
	return &Router{store: store, client: client}
}

// Route delivers a bundle to the category's destination store. Errors are
// returned for logging but callers treat them as non-fatal.
func (r *Router) Route(ctx context.Context, cat models.Category, bundle models.InsightBundle, userID string) error {
	if len(bundle) == 0 {
		return nil
	}

	switch cat {
	case models.CategoryToneStyle:
		filtered := models.JSONMap{}
		for k, v := range bundle {
			if _, ok := visualIdentityFields[k]; ok {
				filtered[k] = v
			}
		}
		if len(filtered) == 0 {
			return nil
		}
		return r.store.MergeVisualIdentity(ctx, userID, filtered)

	case models.CategoryPersona:
		return r.store.MergeTargetAudience(ctx, userID, models.JSONMap(bundle))

	case models.CategoryStory:
		update := brand.NarrativeUpdate{}
		touched := false
		for key, apply := range narrativeRenames {
			if v := asString(bundle[key]); v != "" {
				apply(&update, v)
				touched = true
			}
		}
		if !touched {
			return nil
		}
		return r.store.UpsertNarrative(ctx, userID, update)

	default:
		return r.store.MergeBrandAttributes(ctx, userID, models.JSONMap(bundle))
	}
}

// RunCompletionSideEffect executes the category's post-completion hook. Only
// the story category has one: a secondary inference call over the full
// transcript whose result fills the narrative's full text.
func (r *Router) RunCompletionSideEffect(ctx context.Context, cat models.Category, userID string, transcript []models.Message) error {
	if cat != models.CategoryStory {
		return nil
	}

	messages := make([]inference.WireMessage, len(transcript))
	for i, m := range transcript {
		messages[i] = inference.WireMessage{Role: m.Role, Content: m.Content}
	}

	text, err := r.client.Compose(ctx, &inference.ComposeRequest{
		UserID:      userID,
		Category:    cat,
		Messages:    messages,
		Instruction: "Now write the complete version.",
	})
	if err != nil {
		return fmt.Errorf("compose full narrative: %w", err)
	}

	if err := r.store.UpsertNarrative(ctx, userID, brand.NarrativeUpdate{FullText: text}); err != nil {
		return fmt.Errorf("store full narrative: %w", err)
	}

	log.Info().Str("userId", userID).Int("chars", len(text)).Msg("Full narrative composed")
	return nil
}

// asString renders an insight value for a text column. Non-string values are
// stored as their JSON encoding.
func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
