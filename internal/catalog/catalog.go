// Package catalog holds the static lifestyle questions and tool descriptors.
//
// The data is embedded as YAML and decoded once; callers receive copies so the
// catalog stays immutable for the life of the process.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/BioFlow/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Catalog is the decoded static data.
type Catalog struct {
	lifestyle    []models.LifestyleQuestion
	tools        []models.ToolDescriptor
	fitnessTools []models.ToolDescriptor
	dailyTips    []string
	quickPrompts []string
}

type catalogFile struct {
	LifestyleQuestions []models.LifestyleQuestion `yaml:"lifestyle_questions"`
	Tools              []models.ToolDescriptor    `yaml:"tools"`
	FitnessTools       []models.ToolDescriptor    `yaml:"fitness_tools"`
	DailyTips          []string                   `yaml:"daily_tips"`
	QuickPrompts       []string                   `yaml:"quick_prompts"`
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Parse decodes a catalog document and checks that lifestyle ids are unique.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	seen := make(map[string]bool, len(f.LifestyleQuestions))
	for i, q := range f.LifestyleQuestions {
		if q.ID == "" {
			return nil, fmt.Errorf("lifestyle question %d has no id", i)
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("duplicate lifestyle question id %q", q.ID)
		}
		if len(q.Options) == 0 {
			return nil, fmt.Errorf("lifestyle question %q has no options", q.ID)
		}
		seen[q.ID] = true
	}

	tools := make(map[string]bool, len(f.Tools)+len(f.FitnessTools))
	for _, t := range append(append([]models.ToolDescriptor{}, f.Tools...), f.FitnessTools...) {
		if t.ID == "" {
			return nil, errors.New("tool descriptor without id")
		}
		if tools[t.ID] {
			return nil, fmt.Errorf("duplicate tool id %q", t.ID)
		}
		tools[t.ID] = true
	}

	slog.Debug("Catalog Parse succeeded", "lifestyle", len(f.LifestyleQuestions), "tools", len(f.Tools), "fitness_tools", len(f.FitnessTools))
	return &Catalog{
		lifestyle:    f.LifestyleQuestions,
		tools:        f.Tools,
		fitnessTools: f.FitnessTools,
		dailyTips:    f.DailyTips,
		quickPrompts: f.QuickPrompts,
	}, nil
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse(catalogYAML)
		if defaultErr != nil {
			slog.Error("Catalog Default failed to parse embedded catalog", "error", defaultErr)
		}
	})
	return defaultCatalog, defaultErr
}

// MustDefault returns the embedded catalog and panics if it cannot be decoded.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Lifestyle returns the lifestyle questions in declaration order.
func (c *Catalog) Lifestyle() []models.LifestyleQuestion {
	out := make([]models.LifestyleQuestion, len(c.lifestyle))
	for i, q := range c.lifestyle {
		opts := make([]models.Option, len(q.Options))
		copy(opts, q.Options)
		q.Options = opts
		out[i] = q
	}
	return out
}

// Tools returns the biohack tool descriptors.
func (c *Catalog) Tools() []models.ToolDescriptor {
	return append([]models.ToolDescriptor(nil), c.tools...)
}

// OtherCategory holds tools that declare no category.
const OtherCategory = "Other"

// ToolGroup is the tools of one category.
type ToolGroup struct {
	Category string                  `json:"category" yaml:"category"`
	Tools    []models.ToolDescriptor `json:"tools" yaml:"tools"`
}

// GroupedTools groups the biohack tools by category. Groups appear in the order
// their first tool is declared; tools keep declaration order within a group.
func (c *Catalog) GroupedTools() []ToolGroup {
	var groups []ToolGroup
	index := map[string]int{}
	for _, t := range c.tools {
		cat := t.Category
		if cat == "" {
			cat = OtherCategory
		}
		i, ok := index[cat]
		if !ok {
			i = len(groups)
			index[cat] = i
			groups = append(groups, ToolGroup{Category: cat})
		}
		groups[i].Tools = append(groups[i].Tools, t)
	}
	return groups
}

// FitnessTools returns the fitness tool descriptors.
func (c *Catalog) FitnessTools() []models.ToolDescriptor {
	return append([]models.ToolDescriptor(nil), c.fitnessTools...)
}

// Tool looks up a tool by id across both lists.
func (c *Catalog) Tool(id string) (models.ToolDescriptor, bool) {
	for _, t := range c.tools {
		if t.ID == id {
			return t, true
		}
	}
	for _, t := range c.fitnessTools {
		if t.ID == id {
			return t, true
		}
	}
	return models.ToolDescriptor{}, false
}

// QuickPrompts returns the canned chat prompts.
func (c *Catalog) QuickPrompts() []string {
	return append([]string(nil), c.quickPrompts...)
}

// DailyTip picks the tip for the given day; the same date always yields the same tip.
func (c *Catalog) DailyTip(day time.Time) string {
	if len(c.dailyTips) == 0 {
		return ""
	}
	return c.dailyTips[day.YearDay()%len(c.dailyTips)]
}
