package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func f(v float64) *float64 { return &v }

func TestDestinationRegionRequiresAllFields(t *testing.T) {
	tests := []struct {
		name string
		dest Destination
		want bool
	}{
		{"none set", Destination{}, false},
		{"center only", Destination{Latitude: f(48.85), Longitude: f(2.35)}, false},
		{"missing longitude delta", Destination{Latitude: f(48.85), Longitude: f(2.35), LatitudeDelta: f(0.1)}, false},
		{"missing latitude", Destination{Longitude: f(2.35), LatitudeDelta: f(0.1), LongitudeDelta: f(0.1)}, false},
		{"all set", Destination{Latitude: f(48.85), Longitude: f(2.35), LatitudeDelta: f(0.1), LongitudeDelta: f(0.2)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := tt.dest.Region()
			assert.Equal(t, tt.want, ok)
			if ok {
				assert.Equal(t, 48.85, r.Center.Latitude)
				assert.Equal(t, 0.2, r.Span.LongitudeDelta)
			} else {
				assert.Equal(t, Region{}, r)
			}
		})
	}
}

func TestSetRegionCopiesAllFields(t *testing.T) {
	var d Destination
	region := Region{Center: Coordinate{Latitude: 48.856788, Longitude: 2.351077}, Span: Span{LatitudeDelta: 0.15, LongitudeDelta: 0.15}}
	d.SetRegion(region)

	got, ok := d.Region()
	assert.True(t, ok)
	assert.Equal(t, region, got)

	// the destination keeps its own copies
	region.Center.Latitude = 0
	assert.Equal(t, 48.856788, *d.Latitude)
}

func TestRegionBounds(t *testing.T) {
	r := Region{Center: Coordinate{Latitude: 48.86, Longitude: 2.35}, Span: Span{LatitudeDelta: 0.2, LongitudeDelta: 0.4}}
	b := r.Bounds()
	assert.InDelta(t, 48.76, b.MinLatitude, 1e-9)
	assert.InDelta(t, 48.96, b.MaxLatitude, 1e-9)
	assert.InDelta(t, 2.15, b.MinLongitude, 1e-9)
	assert.InDelta(t, 2.55, b.MaxLongitude, 1e-9)

	polar := Region{Center: Coordinate{Latitude: 89.9, Longitude: 0}, Span: Span{LatitudeDelta: 1, LongitudeDelta: 1}}
	assert.Equal(t, 90.0, polar.Bounds().MaxLatitude)
}

func TestBoundsCrossesAntimeridian(t *testing.T) {
	tests := []struct {
		lon  float64
		want bool
	}{
		{179.9, true},
		{-179.9, true},
		{179.5, false},
		{2.35, false},
	}
	for _, tt := range tests {
		r := Region{Center: Coordinate{Latitude: -17, Longitude: tt.lon}, Span: Span{LatitudeDelta: 1, LongitudeDelta: 1}}
		assert.Equal(t, tt.want, r.Bounds().CrossesAntimeridian(), "center %v", tt.lon)
	}
}

func TestRegionValidate(t *testing.T) {
	assert.NoError(t, Region{Center: Coordinate{Latitude: 1, Longitude: 1}, Span: Span{LatitudeDelta: 1, LongitudeDelta: 1}}.Validate())
	assert.ErrorIs(t, Region{Center: Coordinate{Latitude: 100}, Span: Span{LatitudeDelta: 1, LongitudeDelta: 1}}.Validate(), ErrInvalidRegion)
	assert.ErrorIs(t, Region{Span: Span{LatitudeDelta: 0, LongitudeDelta: 1}}.Validate(), ErrInvalidRegion)
}

func TestHaversine(t *testing.T) {
	louvre := Coordinate{Latitude: 48.8606, Longitude: 2.3376}
	eiffel := Coordinate{Latitude: 48.8584, Longitude: 2.2945}
	d := Haversine(louvre, eiffel)
	assert.InDelta(t, 3160, d, 50)
	assert.Zero(t, Haversine(louvre, louvre))
}

func TestPlacemarkMembership(t *testing.T) {
	destID := uuid.New()
	p := NewTransientPlacemark("Louvre", "Rue de Rivoli", Coordinate{Latitude: 48.86, Longitude: 2.33})
	assert.True(t, p.IsTransient())
	assert.False(t, p.BelongsTo(destID))
	assert.NotEqual(t, uuid.Nil, p.ID)

	p.SessionID = "s1"
	assert.True(t, p.OwnedBy("s1"))
	assert.False(t, p.OwnedBy("s2"))

	p.DestinationID = &destID
	assert.False(t, p.IsTransient())
	assert.False(t, p.OwnedBy("s1"))
	assert.True(t, p.BelongsTo(destID))
	assert.False(t, p.BelongsTo(uuid.New()))
}

func TestNewDestinationResponse(t *testing.T) {
	d := Destination{ID: uuid.New(), Name: "Paris"}
	resp := NewDestinationResponse(d)
	assert.Nil(t, resp.Region)
	assert.NotNil(t, resp.Placemarks)

	d.SetRegion(Region{Center: Coordinate{Latitude: 1, Longitude: 2}, Span: Span{LatitudeDelta: 3, LongitudeDelta: 4}})
	resp = NewDestinationResponse(d)
	if assert.NotNil(t, resp.Region) {
		assert.Equal(t, 2.0, resp.Region.Center.Longitude)
	}
}
