package store

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

// Seed is the initial data set loaded into a store
type Seed struct {
	Applicants []Applicant `yaml:"applicants"`
	Customers  []Customer  `yaml:"customers"`
	Lights     []Light     `yaml:"lights"`
}

// LoadSeed reads a seed file, or the built-in seed when path is empty.
// Relative dates in the file are resolved against now.
func LoadSeed(path string, now time.Time) (*Seed, error) {
	data := defaultSeed
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read seed file: %w", err)
		}
	}
	return ParseSeed(data, now)
}

// ParseSeed decodes YAML seed data
func ParseSeed(data []byte, now time.Time) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}

	for i := range seed.Applicants {
		seed.Applicants[i].ApplicationDate = now.AddDate(0, 0, -seed.Applicants[i].DaysAgo)
	}
	for i := range seed.Customers {
		seed.Customers[i].LastInteraction = now.AddDate(0, -seed.Customers[i].MonthsSince, 0)
		if seed.Customers[i].PendingClaims == nil {
			seed.Customers[i].PendingClaims = []string{}
		}
	}

	return &seed, nil
}
