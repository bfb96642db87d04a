package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"camperwatch/internal/models"
)

type rosterFile struct {
	Competitors []models.Competitor `yaml:"competitors"`
}

// LoadRoster reads the competitor roster from a YAML file and returns it
// sorted by priority, highest first. Competitors are immutable after load.
func LoadRoster(path string) ([]models.Competitor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("roster: read %s: %w", path, err)
	}

	var rf rosterFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("roster: parse %s: %w", path, err)
	}
	if len(rf.Competitors) == 0 {
		return nil, fmt.Errorf("roster: %s contains no competitors", path)
	}

	seen := make(map[string]struct{}, len(rf.Competitors))
	for i := range rf.Competitors {
		c := &rf.Competitors[i]
		if err := validateCompetitor(c); err != nil {
			return nil, fmt.Errorf("roster: competitor %d: %w", i, err)
		}
		if _, dup := seen[c.Name]; dup {
			return nil, fmt.Errorf("roster: duplicate competitor name %q", c.Name)
		}
		seen[c.Name] = struct{}{}
	}

	sort.SliceStable(rf.Competitors, func(i, j int) bool {
		return rf.Competitors[i].Priority > rf.Competitors[j].Priority
	})

	return rf.Competitors, nil
}

func validateCompetitor(c *models.Competitor) error {
	if c.Name == "" {
		return fmt.Errorf("missing name")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("%s: missing base_url", c.Name)
	}
	switch c.Currency {
	case models.CurrencyEUR, models.CurrencyUSD:
	default:
		return fmt.Errorf("%s: unsupported currency %q", c.Name, c.Currency)
	}
	if len(c.Strategies) == 0 {
		return fmt.Errorf("%s: no strategies configured", c.Name)
	}
	return nil
}
