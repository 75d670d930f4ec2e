package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	uuid "github.com/satori/go.uuid"
	"github.com/spf13/cobra"

	"github.com/pivolan/crime_stats/domain/models"
	"github.com/pivolan/crime_stats/pipeline"
	"github.com/pivolan/crime_stats/store"
)

var (
	serveWithBot bool

	filterCategory string
	filterUnit     string
	filterRegions  []string

	reportPNGDir string

	exportRollup bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPipeline()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if serveWithBot {
			if cfg.TgToken == "" {
				return errors.New("--bot needs TG_TOKEN")
			}
			go func() {
				if err := runBot(ctx, p, cfg.TgToken); err != nil {
					log.Error().Err(err).Msg("bot stopped")
				}
			}()
		}

		srv := &http.Server{
			Addr:              cfg.HttpAddr,
			Handler:           newRouter(p),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		log.Info().Str("addr", cfg.HttpAddr).Str("chart", cfg.ChartLibrary).Msg("dashboard listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.TgToken == "" {
			return errors.New("TG_TOKEN is not set")
		}
		p, err := loadPipeline()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runBot(ctx, p, cfg.TgToken)
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the tables of one filter",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPipeline()
		if err != nil {
			return err
		}
		v, err := p.Run(cliFilter(p))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), GenerateReport(v))

		if reportPNGDir == "" {
			return nil
		}
		written, err := writePNGs(p, v, reportPNGDir)
		for _, path := range written {
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
		}
		return err
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export records, and optionally a rollup, into ClickHouse",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPipeline()
		if err != nil {
			return err
		}
		db, err := store.Open(cfg.DbDsn)
		if err != nil {
			return err
		}
		exporter := store.NewExporter(db)
		batchID := uuid.NewV4().String()
		source := p.Table().Source()

		recordsTable := store.TableName("crime_records", source)
		n, err := exporter.ExportRecords(recordsTable, batchID, p.Table().Records())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "batch %s: %d records into %s\n", batchID, n, recordsTable)

		if !exportRollup {
			return nil
		}
		f := cliFilter(p)
		v, err := p.Run(f)
		if err != nil {
			return err
		}
		if v.HasNotice(models.NoticeEmptyResult) {
			return models.ErrEmptyResult
		}
		rollupTable := store.TableName("crime_rollup", source)
		if err := exporter.ExportRollup(rollupTable, batchID, v.Filter, v.Granularity, v.Rollup); err != nil {
			return err
		}
		totals, err := exporter.UnitTotals(recordsTable, batchID, v.Filter.Category)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rowsTable("stored "+v.Filter.Category, "시도", totals, v.Total).Render())
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveWithBot, "bot", false, "also run the Telegram bot")

	for _, c := range []*cobra.Command{reportCmd, exportCmd} {
		c.Flags().StringVar(&filterCategory, "category", "", "category (first category of the table when empty)")
		c.Flags().StringVar(&filterUnit, "unit", models.AllUnits, "administrative unit, 전체 for all")
		c.Flags().StringSliceVar(&filterRegions, "region", nil, "regions to keep (repeatable)")
	}
	reportCmd.Flags().StringVar(&reportPNGDir, "png-dir", "", "also write bar and pie PNGs here")
	exportCmd.Flags().BoolVar(&exportRollup, "rollup", false, "also export the rollup of the filter")
}

func cliFilter(p *pipeline.Pipeline) models.Filter {
	category := filterCategory
	if category == "" {
		if cats := p.Table().Categories(); len(cats) > 0 {
			category = cats[0]
		}
	}
	return models.Filter{Category: category, Unit: filterUnit, Regions: filterRegions}
}

// chartFileName transliterates kind, category and unit into an ASCII file name.
func chartFileName(kind string, f models.Filter) string {
	name := kind + " " + f.Category
	if f.HasUnit() {
		name += " " + f.Unit
	}
	return store.Slug(name) + ".png"
}

func writePNGs(p *pipeline.Pipeline, v *pipeline.View, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var written []string
	for _, c := range []*pipeline.Chart{v.Bar, v.Pie} {
		if !c.Drawable() {
			continue
		}
		img := c.PNG
		if img == nil {
			var err error
			if img, err = p.RenderPNG(c); err != nil {
				return written, err
			}
		}
		path := filepath.Join(dir, chartFileName(c.Kind, v.Filter))
		if err := os.WriteFile(path, img, 0o644); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}
