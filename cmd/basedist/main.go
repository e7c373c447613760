package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"base-distance/internal/calculator"
	"base-distance/internal/config"
	"base-distance/internal/csvfile"
	"base-distance/internal/excel"
	"base-distance/internal/geocode"
	"base-distance/internal/pipeline"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	rootCmd := &cobra.Command{
		Use:   "basedist",
		Short: "Match subbase points to their closest base",
		Long:  `Computes great-circle distances between two point sets and assigns every subbase to its nearest base.`,
	}

	var configDir string
	var verbose bool
	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".", "directory containing app.env")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print progress lines")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if verbose {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	}

	rootCmd.AddCommand(createCalcCmd(&configDir, &verbose))
	rootCmd.AddCommand(createGeocodeCmd(&configDir, &verbose))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// createCalcCmd creates the calc subcommand
func createCalcCmd(configDir *string, verbose *bool) *cobra.Command {
	var basePath, subbasePath, mode, outPath string
	var radius float64

	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Run the distance matrix and closest-base assignment once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configDir)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			var sink pipeline.ResultSink = csvfile.Sink{W: cmd.OutOrStdout()}
			if outPath != "" {
				sink = csvfile.FileSink{Path: outPath}
			}

			o := pipeline.NewOrchestrator()
			o.StrictCoordinates = cfg.StrictCoordinates
			req := pipeline.Request{
				Sink: sink,
				Log:  stderrLogger(cmd, *verbose),
			}

			var res *pipeline.Result
			switch mode {
			case "longlat":
				if req.Base, err = excel.LoadPoints(basePath); err != nil {
					return err
				}
				if req.Subbase, err = excel.LoadPoints(subbasePath); err != nil {
					return err
				}
				res, err = o.Run(req)
			case "address":
				adapter, aerr := geocode.NewProxyAdapter(cmd.Context(), cfg)
				if aerr != nil {
					return aerr
				}
				baseRecords, rerr := excel.LoadAddresses(basePath)
				if rerr != nil {
					return rerr
				}
				subbaseRecords, rerr := excel.LoadAddresses(subbasePath)
				if rerr != nil {
					return rerr
				}
				res, _, err = o.RunAddresses(cmd.Context(), adapter, baseRecords, subbaseRecords, req)
			default:
				return fmt.Errorf("unknown mode %q, expected longlat or address", mode)
			}
			if err != nil {
				return err
			}

			if radius > 0 {
				pairs, err := calculator.WithinRadius(res.Matrix, res.Base, res.Subbase, radius)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%d pairs within %.2f mi\n", len(pairs), radius)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&basePath, "base", "", "base point file (.csv or .xlsx)")
	cmd.Flags().StringVar(&subbasePath, "subbase", "", "subbase point file (.csv or .xlsx)")
	cmd.Flags().StringVar(&mode, "mode", "longlat", "input type: longlat or address")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the CSV export here instead of stdout")
	cmd.Flags().Float64Var(&radius, "radius", 0, "also count base/subbase pairs within this many miles")
	cmd.MarkFlagRequired("base")
	cmd.MarkFlagRequired("subbase")
	return cmd
}

// createGeocodeCmd creates the geocode subcommand
func createGeocodeCmd(configDir *string, verbose *bool) *cobra.Command {
	var inPath string

	cmd := &cobra.Command{
		Use:   "geocode",
		Short: "Resolve an address file into a Name, Latitude, Longitude table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configDir)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			adapter, err := geocode.NewProxyAdapter(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			records, err := excel.LoadAddresses(inPath)
			if err != nil {
				return err
			}

			adapter = adapter.WithLog(stderrLogger(cmd, *verbose))
			points, report := adapter.Geocode(cmd.Context(), strings.TrimSuffix(filepath.Base(inPath), filepath.Ext(inPath)), records)
			fmt.Fprintln(cmd.ErrOrStderr(), report.Summary())
			return csvfile.WritePoints(cmd.OutOrStdout(), points)
		},
	}

	cmd.Flags().StringVar(&inPath, "in", "", "address file (.csv or .xlsx)")
	cmd.MarkFlagRequired("in")
	return cmd
}

func stderrLogger(cmd *cobra.Command, verbose bool) calculator.LoggerCallback {
	if !verbose {
		return nil
	}
	w := cmd.ErrOrStderr()
	return func(msg string) { fmt.Fprintln(w, msg) }
}
