// Package points implements the reward points catalog and ledger.
package points

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Action keys.
const (
	ActionAttendanceMarked      = "attendance.marked"
	ActionUsherAttendanceMarked = "usher.attendance.marked"
	ActionProfileUpdated        = "profile.updated"
	ActionMessageSent           = "message.sent"
	ActionMessageReplied        = "message.replied"
	ActionFollowupFeedback      = "followup.feedback.submitted"
	ActionVideoWatched          = "video.watched"
	ActionAudioListened         = "audio.listened"
	ActionEventsRegistered      = "events.registered"
	ActionFormSubmitted         = "form.submitted"
	ActionUserLogin             = "user.login"
)

var defaultPoints = map[string]int{
	ActionAttendanceMarked:      15,
	ActionUsherAttendanceMarked: 20,
	ActionProfileUpdated:        5,
	ActionMessageSent:           2,
	ActionMessageReplied:        2,
	ActionFollowupFeedback:      10,
	ActionVideoWatched:          5,
	ActionAudioListened:         5,
	ActionEventsRegistered:      10,
	ActionFormSubmitted:         5,
	ActionUserLogin:             1,
}

// Catalog maps action keys to the points they are worth. It is read-only
// after construction.
type Catalog struct {
	points map[string]int
}

// NewCatalog builds a catalog from values. Negative values are rejected.
func NewCatalog(values map[string]int) (*Catalog, error) {
	points := make(map[string]int, len(values))
	for action, v := range values {
		if action == "" {
			return nil, fmt.Errorf("action key cannot be empty")
		}
		if v < 0 {
			return nil, fmt.Errorf("action %s has negative points %d", action, v)
		}
		points[action] = v
	}
	return &Catalog{points: points}, nil
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c, _ := NewCatalog(defaultPoints)
	return c
}

// LoadCatalog reads a YAML map of action keys to points.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var values map[string]int
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	c, err := NewCatalog(values)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog file %s: %w", path, err)
	}
	return c, nil
}

// Points returns the value of action, or 0 when unknown.
func (c *Catalog) Points(action string) int {
	return c.points[action]
}

// Has reports whether action is in the catalog.
func (c *Catalog) Has(action string) bool {
	_, ok := c.points[action]
	return ok
}

// Actions returns the action keys sorted alphabetically.
func (c *Catalog) Actions() []string {
	actions := make([]string, 0, len(c.points))
	for action := range c.points {
		actions = append(actions, action)
	}
	sort.Strings(actions)
	return actions
}
