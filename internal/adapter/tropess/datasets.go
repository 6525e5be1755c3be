package tropess

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/sonde-colocation/internal/domain"
)

// Dataset is a TROPESS lite product with a known day-file layout.
type Dataset struct {
	Name   string
	layout func(day time.Time) string
}

const (
	DatasetCRIS    = "TROPESS-CRIS"
	DatasetAIRSOMI = "TROPESS-AIRSOMI"
)

var datasets = []Dataset{
	{
		Name: DatasetCRIS,
		layout: func(d time.Time) string {
			y, m, day := d.Year(), int(d.Month()), d.Day()
			return filepath.Join(
				fmt.Sprintf("%04d", y), fmt.Sprintf("%02d", m), fmt.Sprintf("%02d", day),
				"batch-01", "L2_Products_Lite",
				fmt.Sprintf("CRIS_L2-O3-0_%04d_%02d_%02d_F01_1.17_Litev01_Day_Night.nc", y, m, day),
			)
		},
	},
	{
		Name: DatasetAIRSOMI,
		layout: func(d time.Time) string {
			y, m, day := d.Year(), int(d.Month()), d.Day()
			return filepath.Join(
				fmt.Sprintf("%04d", y), fmt.Sprintf("%02d", m), fmt.Sprintf("%02d", day),
				"L2_Products_Lite",
				fmt.Sprintf("AIRS_OMI_ATrain_L2-O3_%04d_%02d_%02d_F01_1.17_Litev01.nc", y, m, day),
			)
		},
	},
}

// LookupDataset finds a dataset by name, ignoring letter case.
func LookupDataset(name string) (Dataset, error) {
	for _, d := range datasets {
		if strings.EqualFold(d.Name, strings.TrimSpace(name)) {
			return d, nil
		}
	}
	return Dataset{}, fmt.Errorf("%w: %q (supported: %s)", domain.ErrUnsupportedDataset, name, strings.Join(DatasetNames(), ", "))
}

// DatasetNames lists the supported dataset identifiers.
func DatasetNames() []string {
	names := make([]string, len(datasets))
	for i, d := range datasets {
		names[i] = d.Name
	}
	return names
}

// DayPath returns the product file for day under inputDir.
func (d Dataset) DayPath(inputDir string, day time.Time) string {
	return filepath.Join(inputDir, d.layout(day))
}
