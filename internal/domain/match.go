package domain

import (
	"fmt"
	"math"
	"time"
)

// MatchCriteria holds the colocation windows. Time is compared strictly,
// distance inclusively.
type MatchCriteria struct {
	MaxDistanceKm     float64
	MaxTimeDeltaHours float64
}

type civilDate struct {
	year  int
	month time.Month
	day   int
}

func dateOf(t time.Time) civilDate {
	y, m, d := t.UTC().Date()
	return civilDate{year: y, month: m, day: d}
}

// LaunchHour returns the UTC hour of t, truncated to the whole hour. Sonde launches
// are compared with satellite hours at this resolution.
func LaunchHour(t time.Time) float64 {
	return float64(t.UTC().Hour())
}

// Match returns every (sonde, sounding) pair launched on the same UTC calendar day,
// whose launch hour is less than MaxTimeDeltaHours from the sounding hour and at
// most MaxDistanceKm apart.
//
// Pairs are independent: a sonde may match many soundings and vice versa. The
// result is ordered by sonde index, then sounding index. A non-finite coordinate
// on a same-day, in-window pair returns ErrComputation.
func Match(sondes []SondeReport, soundings []SatelliteSounding, c MatchCriteria) ([]ColocatedPair, error) {
	byDay := make(map[civilDate][]int)
	for j := range soundings {
		d := dateOf(soundings[j].Date)
		byDay[d] = append(byDay[d], j)
	}

	var pairs []ColocatedPair
	for i := range sondes {
		sonde := sondes[i]
		hour := LaunchHour(sonde.LaunchTime)

		for _, j := range byDay[dateOf(sonde.LaunchTime)] {
			sat := soundings[j]

			dt := math.Abs(hour - sat.Hour)
			if !(dt < c.MaxTimeDeltaHours) {
				continue
			}

			km, err := HaversineKm(sat.Latitude, sat.Longitude, sonde.Latitude, sonde.Longitude)
			if err != nil {
				return nil, fmt.Errorf("sonde %d (%s), sounding %d: %w", i, sonde.Station, j, err)
			}
			if km > c.MaxDistanceKm {
				continue
			}

			pairs = append(pairs, ColocatedPair{
				SondeIndex:     i,
				SoundingIndex:  j,
				Sonde:          sonde,
				Sounding:       sat,
				DistanceKm:     km,
				TimeDeltaHours: dt,
			})
		}
	}
	return pairs, nil
}
