package domain

import (
	"regexp"
	"strings"
	"time"
)

// ZoneStatus represents the workflow status of a zone
type ZoneStatus string

const (
	ZoneStatusInProgress ZoneStatus = "in_progress"
	ZoneStatusPublished  ZoneStatus = "published"
	ZoneStatusDeleted    ZoneStatus = "deleted"
)

// IsValid checks if the status is a valid ZoneStatus
func (s ZoneStatus) IsValid() bool {
	switch s {
	case ZoneStatusInProgress, ZoneStatusPublished, ZoneStatusDeleted:
		return true
	}
	return false
}

// String returns the string representation of ZoneStatus
func (s ZoneStatus) String() string {
	return string(s)
}

// Ordinal returns the fixed sort position of the status
// (in_progress < published < deleted).
func (s ZoneStatus) Ordinal() int {
	switch s {
	case ZoneStatusInProgress:
		return 0
	case ZoneStatusPublished:
		return 1
	case ZoneStatusDeleted:
		return 2
	}
	return 3
}

// allowedTransitions is the workflow graph. Deleted is terminal.
var allowedTransitions = map[ZoneStatus][]ZoneStatus{
	ZoneStatusInProgress: {ZoneStatusPublished, ZoneStatusDeleted},
	ZoneStatusPublished:  {ZoneStatusInProgress, ZoneStatusDeleted},
	ZoneStatusDeleted:    {},
}

// CanTransition checks if the workflow graph allows moving from to next
func (s ZoneStatus) CanTransition(next ZoneStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ValidHexColor checks a display color in "#rrggbb" form
func ValidHexColor(color string) bool {
	return hexColorPattern.MatchString(color)
}

// Zone represents a user-authored polygon with metadata and workflow state
type Zone struct {
	ID              string     `json:"id"`
	OwnerID         string     `json:"owner_id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Boundary        Ring       `json:"boundary"`
	Color           string     `json:"color"`
	IsPublic        bool       `json:"is_public"`
	Tags            []string   `json:"tags"`
	Status          ZoneStatus `json:"status"`
	StatusChangedAt time.Time  `json:"status_changed_at"`
	StatusChangedBy string     `json:"status_changed_by"`
	Area            float64    `json:"area"`
	Version         int64      `json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsDeleted checks if the zone reached the terminal workflow status
func (z *Zone) IsDeleted() bool {
	return z.Status == ZoneStatusDeleted
}

// IsPubliclyVisible checks if the zone is readable without an explicit grant
func (z *Zone) IsPubliclyVisible() bool {
	return z.IsPublic && z.Status == ZoneStatusPublished
}

// SetBoundary replaces the boundary and refreshes the derived area
func (z *Zone) SetBoundary(boundary Ring) error {
	normalized := boundary.Normalize()
	if err := normalized.Validate(); err != nil {
		return err
	}
	z.Boundary = normalized
	z.Area = normalized.Area()
	return nil
}

// NormalizeTags deduplicates and trims the tag set, dropping empties
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// ZoneStatusHistory represents one append-only audit record of a status
// transition. PrevStatus is nil for the creation record.
type ZoneStatusHistory struct {
	ID         string      `json:"id"`
	ZoneID     string      `json:"zone_id"`
	PrevStatus *ZoneStatus `json:"prev_status,omitempty"`
	NewStatus  ZoneStatus  `json:"new_status"`
	ActorID    string      `json:"actor_id"`
	Note       string      `json:"note,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}
