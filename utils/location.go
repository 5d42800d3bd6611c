package utils

import (
	"math"

	"github.com/shandle1/CheckDee-sub000/models"
)

// EarthRadiusMeters is the mean radius of the spherical Earth model.
const EarthRadiusMeters = 6371000.0

// Location represents a geographical coordinate
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DistanceMeters calculates the great-circle distance between two points using
// the Haversine formula. Inputs are degrees and must already be valid
// coordinates; the function has no error path.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	// Convert degrees to radians
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180

	// Differences in coordinates
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	// Haversine formula
	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// DistanceToTask returns how far point is from the task location in meters.
func DistanceToTask(task *models.Task, point Location) float64 {
	return DistanceMeters(task.Latitude, task.Longitude, point.Latitude, point.Longitude)
}

// IsWithinGeofence reports whether point lies inside the task's radius. A point
// exactly on the boundary is inside.
func IsWithinGeofence(task *models.Task, point Location) bool {
	return DistanceToTask(task, point) <= task.RadiusMeters
}

// IsLocationValid checks if the provided coordinates are valid
func IsLocationValid(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// ValidateGeofenceRadius checks the radius against the allowed bounds.
func ValidateGeofenceRadius(radius, min, max float64) bool {
	return radius >= min && radius <= max
}
