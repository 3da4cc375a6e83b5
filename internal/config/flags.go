package config

import (
	"strconv"

	"github.com/spf13/pflag"
)

// Flag names bound by BindFlags.
const (
	FlagKeepComponents   = "keep-components"
	FlagSelfIntersection = "self-intersection"
	FlagFilterHoles      = "filter-holes"
	FlagMaxHoleEdges     = "max-hole-edges"
	FlagMaxHoleDiameter  = "max-hole-diam"
	FlagNoFill           = "no-fill"
	FlagRefine           = "refine"
	FlagMaxRetry         = "max-retry"
	FlagWeighting        = "weighting"
	FlagWorkers          = "workers"
	FlagWeldTolerance    = "weld-tolerance"
	FlagVerbose          = "verbose"
	FlagLogFile          = "log-file"
)

// BindFlags registers the flags that override configuration values. Flag
// defaults mirror Default(); only flags the user actually set are applied.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()

	fs.IntP(FlagKeepComponents, "k", d.Repair.ComponentThreshold, "keep only components with at least N faces")
	fs.Lookup(FlagKeepComponents).NoOptDefVal = strconv.Itoa(d.Repair.ComponentThreshold)
	fs.BoolP(FlagSelfIntersection, "s", false, "fix self intersections")
	fs.BoolP(FlagFilterHoles, "f", false, "only fill small holes")
	fs.Int(FlagMaxHoleEdges, d.Holes.MaxEdges, "largest hole, in edges, filled with --filter-holes")
	fs.Float64(FlagMaxHoleDiameter, d.Holes.MaxDiameter, "largest hole bounding-box diagonal filled with --filter-holes")
	fs.Bool(FlagNoFill, false, "do not fill holes")
	fs.BoolP(FlagRefine, "r", false, "refine filled holes")
	fs.IntP(FlagMaxRetry, "m", d.Repair.MaxRetry, "retry budget for the repair loops")
	fs.String(FlagWeighting, d.Holes.Weighting, "hole triangulation weighting: angle or area")
	fs.Int(FlagWorkers, 0, "parallel workers (0 uses all CPUs)")
	fs.Float64(FlagWeldTolerance, 0, "join vertices closer than this on import")
	fs.BoolP(FlagVerbose, "v", false, "debug logging")
	fs.String(FlagLogFile, "", "also log to this file")
}

// ApplyFlags overrides cfg with every flag in fs that was set.
func ApplyFlags(cfg *Config, fs *pflag.FlagSet) error {
	var err error
	set := func(name string, apply func() error) {
		if err == nil && fs.Changed(name) {
			err = apply()
		}
	}

	set(FlagKeepComponents, func() error {
		n, e := fs.GetInt(FlagKeepComponents)
		cfg.Repair.KeepLargest = true
		cfg.Repair.ComponentThreshold = n
		return e
	})
	set(FlagSelfIntersection, func() (e error) {
		cfg.Repair.FixSelfIntersection, e = fs.GetBool(FlagSelfIntersection)
		return e
	})
	set(FlagFilterHoles, func() (e error) {
		cfg.Holes.FilterSmall, e = fs.GetBool(FlagFilterHoles)
		return e
	})
	set(FlagMaxHoleEdges, func() (e error) {
		cfg.Holes.MaxEdges, e = fs.GetInt(FlagMaxHoleEdges)
		return e
	})
	set(FlagMaxHoleDiameter, func() (e error) {
		cfg.Holes.MaxDiameter, e = fs.GetFloat64(FlagMaxHoleDiameter)
		return e
	})
	set(FlagNoFill, func() error {
		noFill, e := fs.GetBool(FlagNoFill)
		cfg.Holes.Fill = !noFill
		return e
	})
	set(FlagRefine, func() (e error) {
		cfg.Holes.Refine, e = fs.GetBool(FlagRefine)
		return e
	})
	set(FlagMaxRetry, func() (e error) {
		cfg.Repair.MaxRetry, e = fs.GetInt(FlagMaxRetry)
		return e
	})
	set(FlagWeighting, func() (e error) {
		cfg.Holes.Weighting, e = fs.GetString(FlagWeighting)
		return e
	})
	set(FlagWorkers, func() (e error) {
		cfg.Repair.Workers, e = fs.GetInt(FlagWorkers)
		return e
	})
	set(FlagWeldTolerance, func() (e error) {
		cfg.Import.WeldTolerance, e = fs.GetFloat64(FlagWeldTolerance)
		return e
	})
	set(FlagVerbose, func() error {
		verbose, e := fs.GetBool(FlagVerbose)
		if verbose {
			cfg.Logging.Level = "debug"
		}
		return e
	})
	set(FlagLogFile, func() (e error) {
		cfg.Logging.LogFile, e = fs.GetString(FlagLogFile)
		return e
	})
	return err
}
