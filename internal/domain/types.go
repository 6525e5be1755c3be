package domain

import (
	"fmt"
	"time"

	"github.com/ctessum/sparse"
)

// SatelliteSounding is one quality-screened retrieval from a satellite product.
// Ozone and Apriori are in ppb once the ingestion adapter has applied the unit policy.
type SatelliteSounding struct {
	Date      time.Time // UTC midnight of the observation day
	Hour      float64   // fractional UTC hour
	Latitude  float64
	Longitude float64
	Pressure  []float64          // hPa, either orientation
	Ozone     []float64          // ppb
	Apriori   []float64          // ppb
	Kernel    *sparse.DenseArray // N×N, rows and columns ordered like Pressure
}

// Validate checks that pressure, ozone, apriori and kernel agree on the number of levels.
func (s SatelliteSounding) Validate() error {
	n := len(s.Pressure)
	if n < 2 {
		return fmt.Errorf("%w: %d pressure levels", ErrShapeMismatch, n)
	}
	if len(s.Ozone) != n || len(s.Apriori) != n {
		return fmt.Errorf("%w: pressure %d, ozone %d, apriori %d", ErrShapeMismatch, n, len(s.Ozone), len(s.Apriori))
	}
	if s.Kernel == nil || len(s.Kernel.Shape) != 2 || s.Kernel.Shape[0] != n || s.Kernel.Shape[1] != n {
		return fmt.Errorf("%w: kernel shape %v for %d levels", ErrShapeMismatch, kernelShape(s.Kernel), n)
	}
	return nil
}

func kernelShape(k *sparse.DenseArray) []int {
	if k == nil {
		return nil
	}
	return k.Shape
}

// SondeReport is a raw ozonesonde launch as delivered by the sonde source.
type SondeReport struct {
	Station    string // GAW station id, when known
	LaunchTime time.Time
	Latitude   float64
	Longitude  float64
	DataBlock  string // CSV table, header line first
}

// SondeProfile is a cleaned sonde launch: positive, finite, strictly monotonic pressure
// with at least two levels.
type SondeProfile struct {
	Station    string
	LaunchTime time.Time
	Latitude   float64
	Longitude  float64
	Pressure   []float64 // hPa
	VMR        []float64 // ppb
}

// ColocatedPair is a sonde launch and a satellite sounding that sampled the same
// atmosphere within the configured distance and time windows.
type ColocatedPair struct {
	SondeIndex     int
	SoundingIndex  int
	Sonde          SondeReport
	Sounding       SatelliteSounding
	DistanceKm     float64
	TimeDeltaHours float64
}

// ComparisonRecord is the result for one accepted pair. Profiles are on the common
// pressure grid with the surface level last.
type ComparisonRecord struct {
	DifferenceProfilePercent      []float64 `json:"difference_profile_percent"`
	DifferenceProfileAbsolute     []float64 `json:"difference_profile_absolute"`
	DifferenceTropospherePercent  float64   `json:"difference_troposphere_percent"`
	DifferenceTroposphereAbsolute float64   `json:"difference_troposphere_absolute"`
	Latitude                      float64   `json:"latitude_colocation"`
	Timestamp                     time.Time `json:"time_vector"`

	Station        string  `json:"station,omitempty"`
	DistanceKm     float64 `json:"distance_km"`
	TimeDeltaHours float64 `json:"time_delta_hours"`
}

// RunParams identifies one colocation run. Start and End are inclusive calendar dates.
type RunParams struct {
	Dataset           string
	Start             time.Time
	End               time.Time
	InputDir          string
	OutputDir         string
	Units             OzoneUnits
	Sites             []string // empty means every station
	MaxDistanceKm     float64
	MaxTimeDeltaHours float64
}

// Criteria returns the matcher thresholds carried by the run parameters.
func (p RunParams) Criteria() MatchCriteria {
	return MatchCriteria{MaxDistanceKm: p.MaxDistanceKm, MaxTimeDeltaHours: p.MaxTimeDeltaHours}
}

// Validate rejects parameter sets that can never produce a meaningful run.
func (p RunParams) Validate() error {
	if p.Dataset == "" {
		return fmt.Errorf("%w: empty dataset", ErrUnsupportedDataset)
	}
	if p.End.Before(p.Start) {
		return fmt.Errorf("end date %s before start date %s", p.End.Format(time.DateOnly), p.Start.Format(time.DateOnly))
	}
	if p.MaxDistanceKm < 0 || p.MaxTimeDeltaHours < 0 {
		return fmt.Errorf("negative colocation threshold: %g km, %g h", p.MaxDistanceKm, p.MaxTimeDeltaHours)
	}
	return nil
}

// ArtifactMeta identifies the persisted result of one run.
type ArtifactMeta struct {
	Dataset      string
	Start        time.Time
	End          time.Time
	PressureGrid []float64
}

// Meta returns the artifact identity of a run on grid.
func (p RunParams) Meta(grid []float64) ArtifactMeta {
	return ArtifactMeta{Dataset: p.Dataset, Start: p.Start, End: p.End, PressureGrid: grid}
}
