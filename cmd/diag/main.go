// Command diag computes coverage or upcoming passes offline from a local TLE
// file, using the same pipeline as the server.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/clock"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/constellation"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/coverage"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/linkbudget"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/passes"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/propagation"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/tle"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/transform"
)

type options struct {
	tleFile       string
	constellation string
	lat, lng, alt float64
	maxSats       int
	at            string
	workers       int
	verbose       bool

	hours        int
	minElevation float64
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "diag",
		Short:         "Offline satellite coverage diagnostics",
		Long:          `Compute coverage reports and pass predictions from a local 3-line TLE file.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.tleFile, "tle", "", "path to a 3-line TLE catalog (required)")
	pf.StringVarP(&opts.constellation, "constellation", "c", "starlink", "constellation id: iridium, starlink or kuiper")
	pf.Float64Var(&opts.lat, "lat", 0, "observer latitude in degrees")
	pf.Float64Var(&opts.lng, "lng", 0, "observer longitude in degrees")
	pf.Float64Var(&opts.alt, "alt", 0, "observer altitude in meters")
	pf.IntVar(&opts.maxSats, "max-sats", 0, "satellites to evaluate (0 = default)")
	pf.StringVar(&opts.at, "at", "", "evaluation instant, RFC 3339 (default now)")
	pf.IntVar(&opts.workers, "workers", 0, "propagation workers (0 = NumCPU)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")
	_ = root.MarkPersistentFlagRequired("tle")

	coverageCmd := &cobra.Command{
		Use:   "coverage",
		Short: "Print the coverage report for an observer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCoverage(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	passesCmd := &cobra.Command{
		Use:   "passes",
		Short: "Print upcoming passes over an observer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPasses(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}
	passesCmd.Flags().IntVar(&opts.hours, "hours", 24, "prediction horizon in hours (max 24)")
	passesCmd.Flags().Float64Var(&opts.minElevation, "min-elevation", linkbudget.MinElevationDeg, "minimum pass elevation in degrees")

	root.AddCommand(coverageCmd, passesCmd)
	return root
}

// staticCatalog serves element sets read once from disk.
type staticCatalog struct {
	res tle.Resolution
}

func (c staticCatalog) Resolve(_ context.Context, group string) (tle.Resolution, error) {
	r := c.res
	r.Group = group
	return r, nil
}

func (o *options) logger(stderr io.Writer) *slog.Logger {
	if !o.verbose {
		stderr = io.Discard
	}
	return slog.New(slog.NewJSONHandler(stderr, nil))
}

func (o *options) instant() (time.Time, error) {
	if o.at == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, o.at)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at: %w", err)
	}
	return t.UTC(), nil
}

// loadCatalog reads the whole file; limit <= 0 keeps every element set.
func (o *options) loadCatalog(limit int, logger *slog.Logger) (tle.Resolution, error) {
	data, err := os.ReadFile(o.tleFile)
	if err != nil {
		return tle.Resolution{}, fmt.Errorf("read TLE file: %w", err)
	}
	info, err := os.Stat(o.tleFile)
	if err != nil {
		return tle.Resolution{}, fmt.Errorf("stat TLE file: %w", err)
	}
	sets, err := tle.Parse(bytes.NewReader(data), limit, logger)
	if err != nil {
		return tle.Resolution{}, fmt.Errorf("parse TLE file: %w", err)
	}
	return tle.Resolution{Sets: sets, FetchedAt: info.ModTime().UTC(), Outcome: tle.OutcomeFresh}, nil
}

func runCoverage(ctx context.Context, stdout, stderr io.Writer, o *options) error {
	logger := o.logger(stderr)
	at, err := o.instant()
	if err != nil {
		return err
	}
	res, err := o.loadCatalog(tle.MaxElementSets, logger)
	if err != nil {
		return err
	}

	svc := coverage.NewService(
		staticCatalog{res: res},
		propagation.NewWorkerPool(o.workers, logger),
		propagation.NewSGP4(logger),
		clock.NewManual(at),
		logger,
	)
	report, err := svc.Coverage(ctx, coverage.Request{
		Constellation: o.constellation,
		Observer:      coverage.Observer{Lat: o.lat, Lng: o.lng, Alt: o.alt},
		MaxSats:       o.maxSats,
	})
	if err != nil {
		return err
	}
	return writeJSON(stdout, report)
}

func runPasses(ctx context.Context, stdout, stderr io.Writer, o *options) error {
	logger := o.logger(stderr)
	c, err := constellation.Lookup(o.constellation)
	if err != nil {
		return err
	}
	obs := coverage.Observer{Lat: o.lat, Lng: o.lng, Alt: o.alt}
	if err := obs.Validate(); err != nil {
		return err
	}
	if o.hours < 1 || time.Duration(o.hours)*time.Hour > passes.MaxHorizon {
		return fmt.Errorf("--hours must be within [1, %d]", int(passes.MaxHorizon/time.Hour))
	}
	at, err := o.instant()
	if err != nil {
		return err
	}
	res, err := o.loadCatalog(o.maxSats, logger)
	if err != nil {
		return err
	}

	results := passes.Predict(ctx, passes.Request{
		Site:         transform.NewSite(obs.Lat, obs.Lng, obs.Alt),
		Sets:         res.Sets,
		Propagator:   propagation.NewSGP4(logger),
		Start:        at,
		Horizon:      time.Duration(o.hours) * time.Hour,
		MinElevation: o.minElevation,
		MaxPasses:    10,
		FrequencyGHz: linkbudget.FrequencyGHz(c.ID),
	})
	return writeJSON(stdout, results)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
