package sow

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/sowgraph/pkg/storage"
)

// Seed file names looked up inside a seed directory. Missing files are
// skipped, so a directory with only rules.yaml is a valid seed.
const (
	SeedRequirementsFile = "requirements.yaml"
	SeedEntitiesFile     = "entities.yaml"
	SeedRulesFile        = "rules.yaml"
)

// Seed is the parsed content of a seed directory: the explicit requirements,
// the domain entity profiles, and the inference rule catalog to import before
// discovery runs.
type Seed struct {
	Requirements []BusinessRequirement `yaml:"requirements"`
	Entities     []DomainEntity        `yaml:"entities"`
	Rules        []InferenceRule       `yaml:"rules"`

	// Ownership links requirements to the entities they belong to.
	// Optional; discovery works without it.
	Ownership []OwnershipLink `yaml:"ownership"`
}

// OwnershipLink declares a BELONGS_TO edge between a requirement and a
// domain entity.
type OwnershipLink struct {
	RequirementID       string  `yaml:"requirement_id"`
	EntityID            string  `yaml:"entity_id"`
	OwnershipLevel      string  `yaml:"ownership_level"`
	StakeholderPriority float64 `yaml:"stakeholder_priority"`
}

// LoadSeedDir reads and validates all seed files found under dir.
//
// Example:
//
//	seed, err := sow.LoadSeedDir("./seeds")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := seed.Import(engine); err != nil {
//		log.Fatal(err)
//	}
func LoadSeedDir(dir string) (*Seed, error) {
	seed := &Seed{}

	found := false
	for _, file := range []string{SeedRequirementsFile, SeedEntitiesFile, SeedRulesFile} {
		path := filepath.Join(dir, file)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
		}

		// Each file carries any subset of the seed sections; later files
		// append to earlier ones.
		var part Seed
		if err := yaml.Unmarshal(data, &part); err != nil {
			return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
		}
		seed.Requirements = append(seed.Requirements, part.Requirements...)
		seed.Entities = append(seed.Entities, part.Entities...)
		seed.Rules = append(seed.Rules, part.Rules...)
		seed.Ownership = append(seed.Ownership, part.Ownership...)
		found = true
	}
	if !found {
		return nil, fmt.Errorf("no seed files found in %s", dir)
	}

	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return seed, nil
}

// Validate checks every record in the seed.
func (s *Seed) Validate() error {
	for i := range s.Requirements {
		if err := s.Requirements[i].Validate(); err != nil {
			return fmt.Errorf("seed requirement %d: %w", i, err)
		}
	}
	for i := range s.Entities {
		if err := s.Entities[i].Validate(); err != nil {
			return fmt.Errorf("seed entity %d: %w", i, err)
		}
	}
	for i := range s.Rules {
		if err := s.Rules[i].Validate(); err != nil {
			return fmt.Errorf("seed rule %d: %w", i, err)
		}
	}
	for i, link := range s.Ownership {
		if link.RequirementID == "" || link.EntityID == "" {
			return fmt.Errorf("seed ownership link %d: %w", i, ErrMissingID)
		}
	}
	return nil
}

// Import writes the seed into the graph store. Nodes are upserted so
// re-importing the same seed is safe.
func (s *Seed) Import(engine storage.Engine) error {
	now := time.Now()

	for i := range s.Requirements {
		req := s.Requirements[i]
		if req.CreatedAt.IsZero() {
			req.CreatedAt = now
		}
		if err := engine.UpsertNode(RequirementNode(&req)); err != nil {
			return fmt.Errorf("failed to import requirement %s: %w", req.ID, err)
		}
	}
	for i := range s.Entities {
		if err := engine.UpsertNode(EntityNode(&s.Entities[i])); err != nil {
			return fmt.Errorf("failed to import entity %s: %w", s.Entities[i].ID, err)
		}
	}
	for i := range s.Rules {
		if err := engine.UpsertNode(RuleNode(&s.Rules[i])); err != nil {
			return fmt.Errorf("failed to import rule %s: %w", s.Rules[i].ID, err)
		}
	}
	for _, link := range s.Ownership {
		edge := BelongsToEdge(link.RequirementID, link.EntityID, link.OwnershipLevel, link.StakeholderPriority, now)
		existing, err := engine.GetEdge(edge.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to check ownership edge %s: %w", edge.ID, err)
		}
		if existing != nil {
			continue
		}
		if err := engine.CreateEdge(edge); err != nil {
			return fmt.Errorf("failed to import ownership edge %s: %w", edge.ID, err)
		}
	}
	return nil
}
