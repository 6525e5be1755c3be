package main

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/couchcryptid/sonde-colocation/internal/adapter/archive"
	"github.com/couchcryptid/sonde-colocation/internal/domain"
)

type summaryCmd struct {
	Datasets []string `short:"d" required:"" help:"Dataset name prefixes to collect, comma separated."`
	Input    string   `short:"i" required:"" type:"existingdir" help:"Directory holding colocation artifacts."`
}

// point is one record of the tropospheric difference series.
type point struct {
	dataset string
	station string
	record  domain.ComparisonRecord
}

func (c *summaryCmd) Run(a *app) error {
	store := archive.NewStore(c.Input, a.logger)

	var points []point
	for _, dataset := range c.Datasets {
		paths, err := store.List(dataset)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			a.logger.Warn("no artifacts for dataset", "dataset", dataset, "dir", c.Input)
			continue
		}
		for _, path := range paths {
			art, err := store.Load(path)
			if err != nil {
				return err
			}
			for _, r := range art.Records {
				points = append(points, point{dataset: art.Meta.Dataset, station: r.Station, record: r})
			}
		}
	}

	slices.SortStableFunc(points, func(x, y point) int {
		if d := x.record.Timestamp.Compare(y.record.Timestamp); d != 0 {
			return d
		}
		return strings.Compare(x.dataset, y.dataset)
	})

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATASET\tTIME\tSTATION\tLATITUDE\tTROPOSPHERE %\tTROPOSPHERE ABS")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%.3f\t%.3f\n",
			p.dataset,
			p.record.Timestamp.UTC().Format("2006-01-02 15:04"),
			p.station,
			p.record.Latitude,
			p.record.DifferenceTropospherePercent,
			p.record.DifferenceTroposphereAbsolute,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d records\n", len(points))
	return nil
}
