package woudc

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/sonde-colocation/internal/domain"
)

// Launch time layouts seen in WOUDC ozonesonde features, most common first.
var launchLayouts = []string{
	"2006/01/02 15:04:05+00",
	"2006-01-02 15:04:05+00:00",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// WOUDC GeoJSON types.

type featureCollection struct {
	Type           string    `json:"type"`
	Features       []feature `json:"features"`
	NumberMatched  int       `json:"numberMatched,omitempty"`
	NumberReturned int       `json:"numberReturned,omitempty"`
}

type feature struct {
	Type       string     `json:"type"`
	Geometry   geometry   `json:"geometry"`
	Properties properties `json:"properties"`
}

type geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"` // [lon, lat] or [lon, lat, elevation]
}

type properties struct {
	GAWID            string `json:"gaw_id,omitempty"`
	PlatformID       string `json:"platform_id,omitempty"`
	InstanceDatetime string `json:"instance_datetime"`
	DataBlock        string `json:"data_block"`
}

func parseLaunchTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range launchLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized instance_datetime %q", s)
}

// toReport converts one feature. A feature without a position or a parseable
// launch time is an error.
func toReport(f feature) (domain.SondeReport, error) {
	if len(f.Geometry.Coordinates) < 2 {
		return domain.SondeReport{}, fmt.Errorf("feature has %d coordinates", len(f.Geometry.Coordinates))
	}
	launch, err := parseLaunchTime(f.Properties.InstanceDatetime)
	if err != nil {
		return domain.SondeReport{}, err
	}
	station := f.Properties.GAWID
	if station == "" {
		station = f.Properties.PlatformID
	}
	return domain.SondeReport{
		Station:    station,
		LaunchTime: launch,
		Latitude:   f.Geometry.Coordinates[1],
		Longitude:  f.Geometry.Coordinates[0],
		DataBlock:  f.Properties.DataBlock,
	}, nil
}

// toReports converts features, logging and dropping those that cannot be used.
func toReports(features []feature, logger *slog.Logger) []domain.SondeReport {
	reports := make([]domain.SondeReport, 0, len(features))
	for i, f := range features {
		r, err := toReport(f)
		if err != nil {
			logger.Warn("skipping sonde feature", "index", i, "platform", f.Properties.PlatformID, "error", err)
			continue
		}
		reports = append(reports, r)
	}
	return reports
}

func fromReport(r domain.SondeReport) feature {
	return feature{
		Type: "Feature",
		Geometry: geometry{
			Type:        "Point",
			Coordinates: []float64{r.Longitude, r.Latitude},
		},
		Properties: properties{
			GAWID:            r.Station,
			InstanceDatetime: r.LaunchTime.UTC().Format(launchLayouts[0]),
			DataBlock:        r.DataBlock,
		},
	}
}

// inRange reports whether t falls on a calendar day in [start, end].
func inRange(t, start, end time.Time) bool {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(first) && !day.After(last)
}

func siteSet(sites []string) map[string]bool {
	if len(sites) == 0 {
		return nil
	}
	set := make(map[string]bool, len(sites))
	for _, s := range sites {
		set[strings.TrimSpace(s)] = true
	}
	return set
}
