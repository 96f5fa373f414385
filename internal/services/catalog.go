package services

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"salescoach-backend/internal/models"
)

// Catalog is the versioned, data-driven scenario catalog loaded at startup.
// All domain-specific strings (objection scripts, penalty table, generic
// fallback questions) live in the YAML file, not in code.
type Catalog struct {
	Version           int                `yaml:"version"`
	Penalties         map[string]float64 `yaml:"penalties"`
	Categories        []CatalogCategory  `yaml:"categories"`
	FallbackQuestions []CatalogFallback  `yaml:"fallback_questions"`

	byCategory map[string]*CatalogCategory
}

type CatalogCategory struct {
	Name      string                       `yaml:"name"`
	Scenarios map[string][]CatalogScenario `yaml:"scenarios"`
}

type CatalogScenario struct {
	Question          string   `yaml:"question"`
	ExpectedAnswer    string   `yaml:"expected_answer"`
	KeyPoints         []string `yaml:"key_points"`
	ForbiddenMistakes []string `yaml:"forbidden_mistakes"`
	Source            string   `yaml:"source"`
}

type CatalogFallback struct {
	Question       string   `yaml:"question"`
	ExpectedAnswer string   `yaml:"expected_answer"`
	KeyPoints      []string `yaml:"key_points"`
	Source         string   `yaml:"source"`
	Type           string   `yaml:"type"`
}

func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	if len(c.Penalties) == 0 {
		return nil, fmt.Errorf("catalog %s has no penalty table", path)
	}
	if len(c.FallbackQuestions) == 0 {
		return nil, fmt.Errorf("catalog %s has no fallback questions", path)
	}

	c.byCategory = make(map[string]*CatalogCategory, len(c.Categories))
	for i := range c.Categories {
		c.byCategory[normalizeCategory(c.Categories[i].Name)] = &c.Categories[i]
	}

	return &c, nil
}

// IsObjectionCategory reports whether the category carries a scenario catalog.
func (c *Catalog) IsObjectionCategory(category string) bool {
	_, ok := c.byCategory[normalizeCategory(category)]
	return ok
}

// Scenarios returns the fixed objection scenarios for (category, difficulty)
// as generated questions, in catalog order. Unknown difficulties fall back to
// the first defined level so an objection category never yields zero scenarios.
func (c *Catalog) Scenarios(category, difficulty string) []models.GeneratedQuestion {
	cat, ok := c.byCategory[normalizeCategory(category)]
	if !ok {
		return nil
	}

	scenarios := cat.Scenarios[strings.ToLower(difficulty)]
	if len(scenarios) == 0 {
		for _, level := range []string{"basic", "advanced", "expert", "new-joining"} {
			if s := cat.Scenarios[level]; len(s) > 0 {
				scenarios = s
				break
			}
		}
	}

	out := make([]models.GeneratedQuestion, 0, len(scenarios))
	for _, s := range scenarios {
		out = append(out, models.GeneratedQuestion{
			Question:       s.Question,
			ExpectedAnswer: s.ExpectedAnswer,
			KeyPoints:      s.KeyPoints,
			Source:         s.Source,
			Difficulty:     difficulty,
			Type:           models.QuestionScenario,
			IsObjection:    true,
		})
	}
	return out
}

// ForbiddenMistakes returns the forbidden-mistake list of the scenario whose
// question text matches, or nil for content-derived questions.
func (c *Catalog) ForbiddenMistakes(category, questionText string) []string {
	cat, ok := c.byCategory[normalizeCategory(category)]
	if !ok {
		return nil
	}
	for _, scenarios := range cat.Scenarios {
		for _, s := range scenarios {
			if s.Question == questionText {
				return s.ForbiddenMistakes
			}
		}
	}
	return nil
}

// Fallback returns the generic question set, repeated and trimmed to count.
func (c *Catalog) Fallback(difficulty string, count int) []models.GeneratedQuestion {
	if count <= 0 || len(c.FallbackQuestions) == 0 {
		return nil
	}

	out := make([]models.GeneratedQuestion, 0, count)
	for i := 0; i < count; i++ {
		f := c.FallbackQuestions[i%len(c.FallbackQuestions)]
		qType := f.Type
		if qType == "" {
			qType = models.QuestionFactual
		}
		out = append(out, models.GeneratedQuestion{
			Question:       f.Question,
			ExpectedAnswer: f.ExpectedAnswer,
			KeyPoints:      f.KeyPoints,
			Source:         f.Source,
			Difficulty:     difficulty,
			Type:           qType,
		})
	}
	return out
}

// Penalty returns the deduction for a forbidden mistake type, falling back to
// the catalog's default entry.
func (c *Catalog) Penalty(mistake string) float64 {
	if p, ok := c.Penalties[strings.ToLower(mistake)]; ok {
		return p
	}
	return c.Penalties["default"]
}

func normalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}
