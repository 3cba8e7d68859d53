package classify

import (
	"context"
	"fmt"

	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/domain"
)

// Directory provides the GLPI lookups the strategies depend on
type Directory interface {
	UserGroups(ctx context.Context, userID int) ([]int, error)
	UserProfiles(ctx context.Context, userID int) ([]int, error)
}

// ClassificationError represents a technician that could not be leveled.
// Non-fatal: the caller decides the default and must log the decision.
type ClassificationError struct {
	TechnicianID int
	Reason       string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify technician %d: %s", e.TechnicianID, e.Reason)
}

// Strategy is one step of the classification cascade. ok reports whether
// the strategy resolved a level; err is reserved for lookup failures,
// which abort the cascade rather than misclassify.
type Strategy interface {
	Name() string
	Classify(ctx context.Context, tech domain.Technician) (level domain.ServiceLevel, ok bool, err error)
}

// GroupStrategy levels a technician by group membership: it succeeds
// only when exactly one of the technician's groups is a known level
// group.
type GroupStrategy struct {
	Directory Directory
	Groups    map[int]domain.ServiceLevel
}

func (s *GroupStrategy) Name() string { return "group" }

func (s *GroupStrategy) Classify(ctx context.Context, tech domain.Technician) (domain.ServiceLevel, bool, error) {
	groups, err := s.Directory.UserGroups(ctx, tech.ID)
	if err != nil {
		return "", false, fmt.Errorf("group lookup for technician %d: %w", tech.ID, err)
	}

	var matched []domain.ServiceLevel
	for _, g := range groups {
		if level, ok := s.Groups[g]; ok {
			matched = append(matched, level)
		}
	}
	if len(matched) == 1 {
		return matched[0], true, nil
	}
	return "", false, nil
}

// ProfileStrategy levels a technician by access-profile id
type ProfileStrategy struct {
	Directory Directory
	Profiles  map[int]domain.ServiceLevel
}

func (s *ProfileStrategy) Name() string { return "profile" }

func (s *ProfileStrategy) Classify(ctx context.Context, tech domain.Technician) (domain.ServiceLevel, bool, error) {
	profiles, err := s.Directory.UserProfiles(ctx, tech.ID)
	if err != nil {
		return "", false, fmt.Errorf("profile lookup for technician %d: %w", tech.ID, err)
	}
	for _, p := range profiles {
		if level, ok := s.Profiles[p]; ok {
			return level, true, nil
		}
	}
	return "", false, nil
}

// NameTableStrategy levels a technician from the maintained name table
type NameTableStrategy struct {
	Table *NameLevelTable
}

func (s *NameTableStrategy) Name() string { return "name_table" }

func (s *NameTableStrategy) Classify(_ context.Context, tech domain.Technician) (domain.ServiceLevel, bool, error) {
	level, ok := s.Table.Lookup(tech.Name)
	return level, ok, nil
}
