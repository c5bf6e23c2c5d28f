package models

import "strings"

const (
	// LocalIDPrefix marks records created in this session by the user.
	LocalIDPrefix = "custom_"
	// FeatureIDPrefix marks records imported from the remote feature layer.
	FeatureIDPrefix = "osm_"
)

// Record is a place of interest ("attraction") shown on the map.
type Record struct {
	ID           string  `json:"id" validate:"required,max=128"`
	Name         string  `json:"name" validate:"required,max=256"`
	Description  string  `json:"description" validate:"max=4096"`
	Category     string  `json:"category" validate:"max=128"`
	ExternalLink string  `json:"external_link" validate:"max=2048"`
	Latitude     float64 `json:"lat" validate:"gte=-90,lte=90"`
	Longitude    float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// Location returns the record position as a GeoJSON point.
func (r Record) Location() GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{r.Longitude, r.Latitude}}
}

// IsLocal reports whether the record was created by a user rather than imported.
func (r Record) IsLocal() bool {
	return strings.HasPrefix(r.ID, LocalIDPrefix)
}

// FeatureRecordID namespaces a feature-source id so it can never collide with a local id.
func FeatureRecordID(sourceID string) string {
	if strings.HasPrefix(sourceID, FeatureIDPrefix) {
		return sourceID
	}
	return FeatureIDPrefix + sourceID
}

type GeoPoint struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
}
