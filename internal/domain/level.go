package domain

import (
	"fmt"
	"strings"
)

// ServiceLevel represents one tier of the N1-N4 support hierarchy
type ServiceLevel string

const (
	LevelN1 ServiceLevel = "N1"
	LevelN2 ServiceLevel = "N2"
	LevelN3 ServiceLevel = "N3"
	LevelN4 ServiceLevel = "N4"
)

// Levels lists all service levels in ascending order
var Levels = []ServiceLevel{LevelN1, LevelN2, LevelN3, LevelN4}

// ParseLevel parses a user-supplied level string ("n1", "N3", ...)
func ParseLevel(s string) (ServiceLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "N1":
		return LevelN1, nil
	case "N2":
		return LevelN2, nil
	case "N3":
		return LevelN3, nil
	case "N4":
		return LevelN4, nil
	}
	return "", fmt.Errorf("unknown service level: %q", s)
}

// Rank returns the ordinal position of the level (N1=1 .. N4=4)
func (l ServiceLevel) Rank() int {
	switch l {
	case LevelN1:
		return 1
	case LevelN2:
		return 2
	case LevelN3:
		return 3
	case LevelN4:
		return 4
	}
	return 0
}

// Technician represents a support agent fetched from GLPI
type Technician struct {
	ID      int          `json:"id"`
	Name    string       `json:"name"`
	Level   ServiceLevel `json:"level,omitempty"`
	Active  bool         `json:"active"`
	Deleted bool         `json:"-"`
}
