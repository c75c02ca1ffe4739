package api

import (
	"strconv"
	"strings"
	"time"
)

type User struct {
	ID      int64  `json:"id"`
	Login   string `json:"login"`
	Name    string `json:"name"`
	IconURL string `json:"icon_url"`
}

type userAutocompleteResponse struct {
	TotalResults int    `json:"total_results"`
	Results      []User `json:"results"`
}

type observationsResponse struct {
	TotalResults int                 `json:"total_results"`
	Page         int                 `json:"page"`
	PerPage      int                 `json:"per_page"`
	Results      []ObservationRecord `json:"results"`
}

// ObservationPage is one page of the paginated observation fetch.
type ObservationPage struct {
	Records []ObservationRecord
	HasMore bool
}

// ObservationRecord is the raw iNaturalist observation shape, reduced to the
// fields ingest cares about.
type ObservationRecord struct {
	ID             int64      `json:"id"`
	QualityGrade   string     `json:"quality_grade"`
	TimeObservedAt string     `json:"time_observed_at"`
	ObservedOn     string     `json:"observed_on"`
	URI            string     `json:"uri"`
	Location       string     `json:"location"` // "lat,lng", may be empty
	Geojson        *GeoPoint  `json:"geojson"`
	Taxon          *Taxon     `json:"taxon"`
	User           RecordUser `json:"user"`
	Photos         []Photo    `json:"photos"`
}

// GeoPoint holds coordinates in GeoJSON order: [lng, lat].
type GeoPoint struct {
	Coordinates []float64 `json:"coordinates"`
}

type Taxon struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	IconicTaxonName string `json:"iconic_taxon_name"`
}

type RecordUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

type Photo struct {
	URL string `json:"url"`
}

// Coordinates returns (lat, lng, ok). Records without a usable location
// report ok=false and are skipped by ingest.
func (r *ObservationRecord) Coordinates() (float64, float64, bool) {
	if r.Geojson != nil && len(r.Geojson.Coordinates) == 2 {
		lng, lat := r.Geojson.Coordinates[0], r.Geojson.Coordinates[1]
		if validCoords(lat, lng) {
			return lat, lng, true
		}
	}
	if r.Location != "" {
		parts := strings.SplitN(r.Location, ",", 2)
		if len(parts) == 2 {
			lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
			lng, errLng := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
			if errLat == nil && errLng == nil && validCoords(lat, lng) {
				return lat, lng, true
			}
		}
	}
	return 0, 0, false
}

// ResearchGrade reports whether the record passed community verification.
func (r *ObservationRecord) ResearchGrade() bool {
	return r.QualityGrade == "research"
}

// IconicTaxon returns the record's iconic taxon group, empty when the taxon
// is unknown.
func (r *ObservationRecord) IconicTaxon() string {
	if r.Taxon == nil {
		return ""
	}
	return r.Taxon.IconicTaxonName
}

// ObservedTime parses the capture timestamp, falling back from the precise
// form to the date-only form. Zero time when neither parses.
func (r *ObservationRecord) ObservedTime() time.Time {
	if r.TimeObservedAt != "" {
		if t, err := time.Parse(time.RFC3339, r.TimeObservedAt); err == nil {
			return t
		}
	}
	if r.ObservedOn != "" {
		if t, err := time.Parse("2006-01-02", r.ObservedOn); err == nil {
			return t
		}
	}
	return time.Time{}
}

// FirstPhotoURL returns the first photo's URL, if any.
func (r *ObservationRecord) FirstPhotoURL() string {
	if len(r.Photos) > 0 {
		return r.Photos[0].URL
	}
	return ""
}

func validCoords(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
