// Package notify fans committed lifecycle transitions out to connected
// users and rooms. Delivery is at most once: recipients without a live
// connection are dropped silently.
package notify

import (
	"strings"
	"time"

	"github.com/veritest/veritest/internal/services/tracker/domain"
)

// Event is one notification frame delivered to a user or room.
type Event struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Target    string         `json:"target"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Sender delivers events to live connections. The session registry
// implements it; tests use a fake.
type Sender interface {
	// SendToUser delivers to one user's connection. It reports whether
	// the user was connected.
	SendToUser(userID string, event Event) bool
	// SendToRoom delivers to every member of a room.
	SendToRoom(room string, event Event)
}

// RoleRoom names the shared room for a role, e.g. role_test_manager.
func RoleRoom(role domain.Role) string {
	return "role_" + strings.ToLower(domain.RoleLabel(role))
}

// DeptRoom names the shared room for a department.
func DeptRoom(department string) string {
	return "dept_" + department
}

// CycleRoom names the room for one test cycle's participants.
func CycleRoom(cycleID string) string {
	return "cycle_" + cycleID
}

// CategoryRoom names the room for a defect category's troubleshooters.
func CategoryRoom(category string) string {
	return "category_" + category
}
