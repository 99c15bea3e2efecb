// Command evidence-probe runs one aggregation against the live sources (or
// the demo bundle) and prints the result.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/i474232898/agri-evidence-aggregation/internal/app"
	"github.com/i474232898/agri-evidence-aggregation/internal/config"
	"github.com/i474232898/agri-evidence-aggregation/internal/evidence"
	"github.com/i474232898/agri-evidence-aggregation/internal/observability"
)

type probeOptions struct {
	region, crop, stage string
	demo, asJSON        bool
	logLevel            string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &probeOptions{}
	cmd := &cobra.Command{
		Use:           "evidence-probe",
		Short:         "Aggregate one evidence pack and print it",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runProbe(ctx, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.region, "region", "Andong-si", "region name or alias")
	f.StringVar(&opts.crop, "crop", "apple", "crop name or alias")
	f.StringVar(&opts.stage, "stage", "flowering", "growth stage")
	f.BoolVar(&opts.demo, "demo", false, "use the scripted demo bundle instead of live sources")
	f.BoolVar(&opts.asJSON, "json", false, "print the full evidence pack as JSON")
	f.StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")
	return cmd
}

func runProbe(ctx context.Context, opts *probeOptions, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logr := observability.NewLogger(opts.logLevel, "text", stderr)
	components, err := app.Build(cfg, nil, logr, nil)
	if err != nil {
		return err
	}

	pack, err := components.Service.Aggregate(ctx, evidence.AggregateRequest{
		Profile: evidence.Profile{Region: opts.region, Crop: opts.crop, Stage: opts.stage},
		Demo:    opts.demo,
	})
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pack)
	}
	printSummary(stdout, pack)
	return nil
}

func printSummary(w io.Writer, pack evidence.EvidencePack) {
	fmt.Fprintf(w, "profile:     %s / %s / %s\n", pack.Profile.Region, pack.Profile.Crop, pack.Profile.Stage)
	fmt.Fprintf(w, "issued_at:   %s\n", pack.IssuedAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(w, "climate:     %d days (horizon D%d), %d hours, %d warnings\n",
		len(pack.Climate.Daily), pack.Climate.HorizonDays, len(pack.Climate.Hourly), len(pack.Climate.Warnings))
	fmt.Fprintf(w, "provenance:  %s\n", strings.Join(append(pack.Climate.Provenance, pack.Pest.Provenance...), ", "))
	fmt.Fprintf(w, "bulletins:   %d, observations: %d\n", len(pack.Pest.Bulletins), len(pack.Pest.Observations))
	for _, b := range pack.Pest.Bulletins {
		fmt.Fprintf(w, "  - %s %s (since %s)\n", b.Pest, b.Risk, b.Since)
	}
	h := pack.SoftHints
	fmt.Fprintf(w, "soft hints:  rain_run=%d heat_h=%d wind_h=%d wet_nights=%d\n",
		h.RainRunMaxDays, h.HeatHoursGE33C, h.WindHoursGE10MS, h.WetNightsCount)
	for _, hint := range pack.PestHints {
		fmt.Fprintf(w, "pest hint:   %s\n", hint)
	}
}
