// Command validate checks the integrity of colocation artifacts in an output
// directory: file naming against the embedded run metadata, the pressure grid,
// profile shapes, finite values, the outlier screen and the run window.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -input data/output \
//	  -dataset TROPESS-CRIS \
//	  -threshold 200
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/couchcryptid/sonde-colocation/internal/adapter/archive"
	"github.com/couchcryptid/sonde-colocation/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	input := flag.String("input", "", "directory containing colocation artifacts")
	dataset := flag.String("dataset", "", "only check artifacts of this dataset")
	threshold := flag.Float64("threshold", domain.DefaultOutlierThresholdPercent, "outlier threshold in percent used by the run")
	flag.Parse()

	if *input == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(os.Stdout, *input, *dataset, *threshold); code != 0 {
		os.Exit(code)
	}
}

func run(out io.Writer, input, dataset string, threshold float64) int {
	fmt.Fprintln(out, "=== Colocation Artifact Validation ===")
	fmt.Fprintln(out)

	store := archive.NewStore(input, slog.New(slog.NewTextHandler(io.Discard, nil)))
	paths, err := store.List(dataset)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}
	if len(paths) == 0 {
		fmt.Fprintf(out, "FATAL: no artifacts in %s\n", input)
		return 1
	}

	var artifacts []archive.Artifact
	load := &phase{name: "Artifacts readable"}
	for _, path := range paths {
		a, err := store.Load(path)
		if err != nil {
			load.errorf("%v", err)
			continue
		}
		artifacts = append(artifacts, a)
	}

	phases := []*phase{
		load,
		validateNaming(artifacts),
		validateShapes(artifacts),
		validateValues(artifacts),
		validateOutliers(artifacts, threshold),
		validateWindow(artifacts),
	}

	fmt.Fprintln(out)
	allPassed := true
	records := 0
	for _, a := range artifacts {
		records += len(a.Records)
	}
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Artifacts: %d, records: %d\n", len(artifacts), records)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func validateNaming(artifacts []archive.Artifact) *phase {
	p := &phase{name: "File names match run metadata"}
	for _, a := range artifacts {
		if want := archive.ArtifactName(a.Meta); filepath.Base(a.Path) != want {
			p.errorf("%s: metadata names it %s", filepath.Base(a.Path), want)
		}
		if a.Meta.End.Before(a.Meta.Start) {
			p.errorf("%s: end %s before start %s", filepath.Base(a.Path),
				a.Meta.End.Format("2006-01-02"), a.Meta.Start.Format("2006-01-02"))
		}
	}
	return p
}

func validateShapes(artifacts []archive.Artifact) *phase {
	p := &phase{name: "Profiles match pressure grid"}
	for _, a := range artifacts {
		name := filepath.Base(a.Path)
		if err := domain.ValidateGrid(a.Meta.PressureGrid); err != nil {
			p.errorf("%s: %v", name, err)
			continue
		}
		n := len(a.Meta.PressureGrid)
		for i, r := range a.Records {
			if len(r.DifferenceProfilePercent) != n || len(r.DifferenceProfileAbsolute) != n {
				p.errorf("%s record %d: percent %d, absolute %d levels, grid %d",
					name, i, len(r.DifferenceProfilePercent), len(r.DifferenceProfileAbsolute), n)
			}
		}
	}
	return p
}

func validateValues(artifacts []archive.Artifact) *phase {
	p := &phase{name: "Values finite and in range"}
	for _, a := range artifacts {
		name := filepath.Base(a.Path)
		for i, r := range a.Records {
			if !allFinite(r.DifferenceProfilePercent) || !allFinite(r.DifferenceProfileAbsolute) {
				p.errorf("%s record %d: non-finite profile value", name, i)
			}
			if !finite(r.DifferenceTropospherePercent) || !finite(r.DifferenceTroposphereAbsolute) {
				p.errorf("%s record %d: non-finite tropospheric difference", name, i)
			}
			if r.Latitude < -90 || r.Latitude > 90 {
				p.errorf("%s record %d: latitude %.3f", name, i, r.Latitude)
			}
			if r.Station == "" {
				p.errorf("%s record %d: empty station", name, i)
			}
		}
	}
	return p
}

func validateOutliers(artifacts []archive.Artifact, threshold float64) *phase {
	p := &phase{name: fmt.Sprintf("Surface difference below %g%%", threshold)}
	for _, a := range artifacts {
		for i, r := range a.Records {
			n := len(r.DifferenceProfilePercent)
			if n == 0 {
				continue
			}
			if surface := r.DifferenceProfilePercent[n-1]; domain.IsOutlier(surface, threshold) {
				p.errorf("%s record %d (%s): surface difference %.3f%%", filepath.Base(a.Path), i, r.Station, surface)
			}
		}
	}
	return p
}

func validateWindow(artifacts []archive.Artifact) *phase {
	p := &phase{name: "Launch times within run window"}
	for _, a := range artifacts {
		end := a.Meta.End.AddDate(0, 0, 1)
		for i, r := range a.Records {
			if r.Timestamp.Before(a.Meta.Start) || !r.Timestamp.Before(end) {
				p.errorf("%s record %d (%s): launch %s outside run window",
					filepath.Base(a.Path), i, r.Station, r.Timestamp.Format("2006-01-02T15:04Z"))
			}
		}
	}
	return p
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func allFinite(vs []float64) bool {
	for _, v := range vs {
		if !finite(v) {
			return false
		}
	}
	return true
}
