// Package checklist provides the per-category topic checklists that drive
// coaching coverage tracking.
package checklist

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Lartitiz/nowadays-coach/pkg/models"
)

// entry is one checklist topic with its display label.
type entry struct {
	ID    models.TopicID `yaml:"id"`
	Label string         `yaml:"label"`
}

// defaults holds the compiled-in checklists. The charter list mirrors the
// fixed-step question list; its coverage is derived by the protocol, the
// checklist only supplies labels and full-credit synthesis.
var defaults = map[models.Category][]entry{
	models.CategoryStory: {
		{ID: "origin", Label: "Where the brand comes from"},
		{ID: "turning_point", Label: "The turning point"},
		{ID: "mission", Label: "Mission and purpose"},
		{ID: "values", Label: "Core values"},
		{ID: "vision", Label: "Where the brand is going"},
	},
	models.CategoryPersona: {
		{ID: "demographics", Label: "Who they are"},
		{ID: "pains", Label: "Pains and frustrations"},
		{ID: "desires", Label: "Desires and aspirations"},
		{ID: "objections", Label: "Objections and doubts"},
		{ID: "channels", Label: "Where to reach them"},
		{ID: "vocabulary", Label: "The words they use"},
	},
	models.CategoryToneStyle: {
		{ID: "personality", Label: "Brand personality"},
		{ID: "voice", Label: "Voice and register"},
		{ID: "dos_donts", Label: "Do's and don'ts"},
		{ID: "signature", Label: "Signature expressions"},
	},
	models.CategoryContentStrategy: {
		{ID: "pillars", Label: "Content pillars"},
		{ID: "formats", Label: "Formats that fit"},
		{ID: "rhythm", Label: "Publishing rhythm"},
		{ID: "goals", Label: "Goals per pillar"},
	},
	models.CategoryOffers: {
		{ID: "catalog", Label: "What is on offer"},
		{ID: "positioning", Label: "Positioning and pricing"},
		{ID: "promise", Label: "The promise"},
		{ID: "proof", Label: "Proof and results"},
	},
	models.CategoryCharter: {
		{ID: "subject", Label: "What the brief is about"},
		{ID: "audience", Label: "Who it is for"},
		{ID: "angle", Label: "The angle"},
		{ID: "key_message", Label: "The key message"},
		{ID: "call_to_action", Label: "The call to action"},
		{ID: "constraints", Label: "Constraints and format"},
	},
}

// Registry resolves checklists per category. Absent categories return an
// empty list, which signals "completion percentage comes from the backend,
// not from coverage".
type Registry struct {
	mu       sync.RWMutex
	lists    map[models.Category][]entry
	filePath string
}

// NewRegistry creates a registry with the compiled-in defaults.
func NewRegistry() *Registry {
	return &Registry{lists: defaults}
}

// NewRegistryFromFile creates a registry whose defaults are overridden per
// category by a YAML file. The file may override any subset of categories.
func NewRegistryFromFile(path string) (*Registry, error) {
	r := &Registry{lists: defaults, filePath: path}
	if err := r.loadFile(); err != nil {
		return nil, err
	}
	return r, nil
}

// loadFile reloads the override file and swaps the active lists.
func (r *Registry) loadFile() error {
	if r.filePath == "" {
		return nil
	}
	data, err := os.ReadFile(r.filePath)
	if err != nil {
		return fmt.Errorf("read checklist file: %w", err)
	}

	var overrides map[models.Category][]entry
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("parse checklist file: %w", err)
	}

	merged := make(map[models.Category][]entry, len(defaults))
	for cat, list := range defaults {
		merged[cat] = list
	}
	for cat, list := range overrides {
		merged[cat] = list
	}

	r.mu.Lock()
	r.lists = merged
	r.mu.Unlock()
	return nil
}

// Topics returns the ordered topic IDs for a category. Empty when the
// category has no checklist.
func (r *Registry) Topics(cat models.Category) []models.TopicID {
	r.mu.RLock()
	list := r.lists[cat]
	r.mu.RUnlock()

	topics := make([]models.TopicID, len(list))
	for i, e := range list {
		topics[i] = e.ID
	}
	return topics
}

// Label returns the display label for a topic, or the raw topic ID when the
// topic is unknown (topics outside the checklist are recorded but unlabeled).
func (r *Registry) Label(cat models.Category, topic models.TopicID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.lists[cat] {
		if e.ID == topic {
			return e.Label
		}
	}
	return string(topic)
}
