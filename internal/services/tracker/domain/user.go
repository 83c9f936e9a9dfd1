package domain

import (
	"fmt"
	"strings"
)

// Role describes the access role of a tracker user.
type Role int

const (
	// RoleUnspecified represents an invalid role value.
	RoleUnspecified Role = iota
	// RoleTestManager can perform every transition on every entity.
	RoleTestManager
	// RoleTester executes assigned tests and verifies defect fixes.
	RoleTester
	// RoleTroubleshooter investigates and resolves assigned defects.
	RoleTroubleshooter
	// RoleViewer has read-only access.
	RoleViewer
)

// User represents the acting identity for guard decisions and room membership.
type User struct {
	ID         string
	Name       string
	Role       Role
	Department string
	Active     bool
}

// RoleLabel returns a stable label for a role.
func RoleLabel(role Role) string {
	switch role {
	case RoleTestManager:
		return "TEST_MANAGER"
	case RoleTester:
		return "TESTER"
	case RoleTroubleshooter:
		return "TROUBLESHOOTER"
	case RoleViewer:
		return "VIEWER"
	default:
		return "UNSPECIFIED"
	}
}

// RoleFromLabel parses a string label into a Role.
// It trims whitespace and matches case-insensitively. Short ("TESTER"),
// prefixed ("ROLE_TESTER"), and spaced ("Test Manager") forms are accepted.
func RoleFromLabel(value string) (Role, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return RoleUnspecified, fmt.Errorf("role is required")
	}
	upper := strings.ToUpper(strings.ReplaceAll(trimmed, " ", "_"))
	switch upper {
	case "TEST_MANAGER", "ROLE_TEST_MANAGER", "TESTMANAGER":
		return RoleTestManager, nil
	case "TESTER", "ROLE_TESTER":
		return RoleTester, nil
	case "TROUBLESHOOTER", "ROLE_TROUBLESHOOTER":
		return RoleTroubleshooter, nil
	case "VIEWER", "ROLE_VIEWER":
		return RoleViewer, nil
	default:
		return RoleUnspecified, fmt.Errorf("unknown role: %s", trimmed)
	}
}
