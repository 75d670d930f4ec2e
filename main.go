package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pivolan/crime_stats/config"
	"github.com/pivolan/crime_stats/dataset"
	"github.com/pivolan/crime_stats/domain/models"
	"github.com/pivolan/crime_stats/pipeline"
)

var (
	flagData      string
	flagTopN      int
	flagChart     string
	flagAnomalies bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "crime_stats",
	Short:         "Regional crime statistics dashboard",
	Long:          `Loads a wide-format crime statistics table once and serves aggregated views of it over HTTP, Telegram and the command line.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&flagData, "data", "", "source table (overrides DATA_PATH)")
	f.IntVar(&flagTopN, "top-n", 0, "groups kept before the 기타 bucket (overrides TOP_N)")
	f.StringVar(&flagChart, "chart", "", "echarts or gochart (overrides CHART_LIBRARY)")
	f.BoolVar(&flagAnomalies, "anomalies", false, "enable anomaly detection (overrides ANOMALY_DETECTION)")

	rootCmd.AddCommand(serveCmd, botCmd, reportCmd, exportCmd)
}

func setup(cmd *cobra.Command) error {
	c := *config.GetConfig()
	f := cmd.Flags()
	if f.Changed("data") {
		c.DataPath = flagData
	}
	if f.Changed("top-n") {
		c.TopN = flagTopN
	}
	if f.Changed("chart") {
		c.ChartLibrary = flagChart
	}
	if f.Changed("anomalies") {
		c.AnomalyDetection = flagAnomalies
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = &c
	configureLogger(cfg.LogLevel)
	return nil
}

func configureLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if fi, err := os.Stderr.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func datasetOptions(c *config.Config) dataset.Options {
	opt := dataset.DefaultOptions()
	opt.Encoding = c.DataEncoding
	opt.Sheet = c.DataSheet
	opt.CategoryColumn = c.CategoryColumn
	opt.SubcategoryColumn = c.SubcategoryColumn
	return opt
}

func pipelineConfig(c *config.Config) pipeline.Config {
	return pipeline.Config{
		TopN:                 c.TopN,
		ChartLibrary:         models.ChartLibrary(c.ChartLibrary),
		FontStrategy:         models.FontStrategy(c.FontStrategy),
		FontPath:             c.FontPath,
		AnomalyDetection:     c.AnomalyDetection,
		AnomalyMethod:        c.AnomalyMethod,
		AnomalyContamination: c.AnomalyContamination,
		AnomalySeed:          c.AnomalySeed,
	}
}

// loadPipeline reads the source table once; every view of the process shares it.
func loadPipeline() (*pipeline.Pipeline, error) {
	table, err := dataset.Load(cfg.DataPath, datasetOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", cfg.DataPath, err)
	}
	return pipeline.New(table, pipelineConfig(cfg))
}
