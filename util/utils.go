package util

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/twpayne/go-polyline"
)

func NotBlank(value string) bool {
	return strings.TrimSpace(value) != ""
}

func PointToLatLon(point pgtype.Point) (float64, float64) {
	return point.P.Y, point.P.X
}

// PointFromLatLon creates a pgtype.Point from latitude and longitude.
func PointFromLatLon(lat, lon float64) pgtype.Point {
	return pgtype.Point{
		P: pgtype.Vec2{
			X: lon,
			Y: lat,
		},
		Valid: true,
	}
}

// EncodePolyline encodes [lat, lon] pairs with the default precision (1e5).
func EncodePolyline(coords [][]float64) string {
	if len(coords) == 0 {
		return ""
	}
	return string(polyline.EncodeCoords(coords))
}

func DecodePolyLines(shape string) ([][]float64, error) {
	decoded, _, err := polyline.DecodeCoords([]byte(shape))
	if err != nil {
		return nil, fmt.Errorf("failed to decode polyline %w", err)
	}
	return decoded, nil
}

// Float64Ptr returns a pointer to the given float.
func Float64Ptr(f float64) *float64 {
	return &f
}

// IntPtr returns a pointer to the given integer.
func IntPtr(i int) *int {
	return &i
}
