package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZoneStatus_CanTransition(t *testing.T) {
	tests := []struct {
		name string
		from ZoneStatus
		to   ZoneStatus
		want bool
	}{
		{"in_progress to published", ZoneStatusInProgress, ZoneStatusPublished, true},
		{"published to in_progress", ZoneStatusPublished, ZoneStatusInProgress, true},
		{"in_progress to deleted", ZoneStatusInProgress, ZoneStatusDeleted, true},
		{"published to deleted", ZoneStatusPublished, ZoneStatusDeleted, true},
		{"published to published", ZoneStatusPublished, ZoneStatusPublished, false},
		{"in_progress to in_progress", ZoneStatusInProgress, ZoneStatusInProgress, false},
		{"deleted is terminal, to in_progress", ZoneStatusDeleted, ZoneStatusInProgress, false},
		{"deleted is terminal, to published", ZoneStatusDeleted, ZoneStatusPublished, false},
		{"deleted is terminal, to deleted", ZoneStatusDeleted, ZoneStatusDeleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestZoneStatus_Ordinal(t *testing.T) {
	assert.Less(t, ZoneStatusInProgress.Ordinal(), ZoneStatusPublished.Ordinal())
	assert.Less(t, ZoneStatusPublished.Ordinal(), ZoneStatusDeleted.Ordinal())
}

func TestZoneStatus_IsValid(t *testing.T) {
	assert.True(t, ZoneStatusInProgress.IsValid())
	assert.True(t, ZoneStatusPublished.IsValid())
	assert.True(t, ZoneStatusDeleted.IsValid())
	assert.False(t, ZoneStatus("archived").IsValid())
	assert.False(t, ZoneStatus("").IsValid())
}

func TestZone_SetBoundary(t *testing.T) {
	z := &Zone{ID: "z1"}

	require.NoError(t, z.SetBoundary(square().Closed()))
	assert.Equal(t, square(), z.Boundary, "boundary is stored unclosed")
	assert.InDelta(t, 1.0, z.Area, 1e-9)

	err := z.SetBoundary(Ring{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}})
	assert.ErrorIs(t, err, ErrInvalidGeometry)
	assert.Equal(t, square(), z.Boundary, "rejected boundary leaves zone unchanged")
}

func TestZone_IsPubliclyVisible(t *testing.T) {
	z := &Zone{IsPublic: true, Status: ZoneStatusPublished}
	assert.True(t, z.IsPubliclyVisible())

	z.Status = ZoneStatusInProgress
	assert.False(t, z.IsPubliclyVisible(), "public flag alone is not enough")

	z.Status = ZoneStatusPublished
	z.IsPublic = false
	assert.False(t, z.IsPubliclyVisible())
}

func TestValidHexColor(t *testing.T) {
	assert.True(t, ValidHexColor("#ff0000"))
	assert.True(t, ValidHexColor("#A1B2C3"))
	assert.False(t, ValidHexColor("ff0000"))
	assert.False(t, ValidHexColor("#ff00"))
	assert.False(t, ValidHexColor("#gg0000"))
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{"parks", " parks", "", "water", "parks", "water "})
	assert.Equal(t, []string{"parks", "water"}, got)
}
