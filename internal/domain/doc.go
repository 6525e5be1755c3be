// Package domain models ozonesonde and satellite ozone profiles and the
// numeric steps that turn a colocated pair into a comparison record.
//
// # Data Sources
//
// Ozonesonde launches come from the World Ozone and Ultraviolet Radiation Data
// Centre (WOUDC). Each launch carries a "data_block": a CSV table whose first
// line is a header. Most stations report pressure in the first column and ozone
// partial pressure in the second; some prepend a flight "Duration" column,
// which shifts both one column to the right. Missing readings appear as empty
// fields.
//
// Satellite soundings come from TROPESS Level 2 "Lite" products (CrIS, AIRS+OMI).
// Each sounding carries its own pressure levels, retrieved ozone, the retrieval
// a priori (constraint vector) and an averaging kernel matrix.
//
// # Units
//
//	Pressure:               hPa everywhere.
//	Sonde partial pressure: mPa. VMR(ppb) = partial / (pressure × 100000) × 1e9,
//	                        where 100000 folds mPa→Pa (1e-3) over hPa→Pa (1e2).
//	Satellite ozone:        normalized to ppb at ingestion by OzoneUnits.
//	Columns:                Dobson Units (2.6867e16 molecules cm⁻²).
//
// # Vertical Orientation
//
// Products disagree on whether level 0 is the surface or the top of the
// atmosphere. Every profile is normalized to ascending pressure (top first,
// surface last) before interpolation, matching the common grid. The last
// element of any harmonized profile is therefore the surface level.
//
// # Tropospheric Column
//
// Column differences integrate from the surface up to a latitude-dependent
// bound following the HEGIFTOM convention:
//
//	|lat| < 15        tropics        150 hPa
//	15 ≤ |lat| < 30   subtropics     200 hPa
//	30 ≤ |lat| < 60   midlatitudes   300 hPa
//	|lat| ≥ 60        polar          400 hPa
//
// # Failure Classes
//
// Fatal errors (ErrNoSondeData, ErrUnsupportedUnits, ErrUnsupportedDataset,
// ErrComputation) abort a run. Per-pair errors (cleaning, interpolation,
// numeric domain) skip one pair. ErrOutlier is a quality rejection, not a
// failure. See [Classify].
package domain
