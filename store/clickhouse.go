// Package store exports long-format records and rollups into ClickHouse over its
// MySQL-compatible protocol.
package store

import (
	"bytes"
	"crypto/md5"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mozillazg/go-unidecode"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pivolan/crime_stats/aggregator"
	"github.com/pivolan/crime_stats/domain/models"
)

const BatchSize = 5000

func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("store: empty DSN")
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to clickhouse: %w", err)
	}
	return db, nil
}

func getMD5String(input string) string {
	hasher := md5.New()
	hasher.Write([]byte(input))
	return hex.EncodeToString(hasher.Sum(nil))
}

var nonAlnum = regexp.MustCompile("[^a-zA-Z0-9]+")

func replaceSpecialSymbols(input string) string {
	processed := nonAlnum.ReplaceAllString(input, "_")
	return strings.Trim(processed, "_")
}

// Slug transliterates a label to a lowercase ASCII identifier, e.g. "서울 종로구" → "seoul_jongrogu".
func Slug(label string) string {
	return strings.ToLower(replaceSpecialSymbols(unidecode.Unidecode(label)))
}

// TableName derives a stable table name from a prefix and the data source.
func TableName(prefix, source string) string {
	base := filepath.Base(source)
	if i := strings.Index(base, "."); i > 0 {
		base = base[:i]
	}
	name := prefix
	if slug := Slug(base); slug != "" {
		name += "_" + slug
	}
	return name + "_" + getMD5String(source)[:6]
}

func createRecordsTableSQL(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + table + ` (
batch_id String,
category String,
subcategory String,
region String,
unit String,
count Int64
) ENGINE = MergeTree ORDER BY (batch_id, category, region)`
}

func createRollupTableSQL(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + table + ` (
batch_id String,
category String,
unit String,
granularity String,
position UInt32,
label String,
total Int64,
is_other UInt8
) ENGINE = MergeTree ORDER BY (batch_id, position)`
}

// insertCSVSQL builds one INSERT ... FORMAT CSV statement.
func insertCSVSQL(table string, rows [][]string) (string, error) {
	b := bytes.NewBufferString("")
	w := csv.NewWriter(b)
	if err := w.WriteAll(rows); err != nil {
		return "", err
	}
	return fmt.Sprintf("INSERT INTO %s FORMAT CSV \n%s", table, b.String()), nil
}

func recordRow(batchID string, r models.Record) []string {
	return []string{batchID, r.Category, r.Subcategory, r.Region, aggregator.DeriveUnit(r.Region), strconv.FormatInt(r.Count, 10)}
}

func rollupRows(batchID string, f models.Filter, g models.Granularity, r models.RollupResult) [][]string {
	unit := f.Unit
	if unit == "" {
		unit = models.AllUnits
	}
	rows := make([][]string, 0, len(r.Top))
	for i, row := range r.Top {
		other := "0"
		if r.Other != nil && i == len(r.Top)-1 {
			other = "1"
		}
		rows = append(rows, []string{batchID, f.Category, unit, string(g), strconv.Itoa(i), row.Label, strconv.FormatInt(row.Total, 10), other})
	}
	return rows
}

func unitTotalsSQL(table string) string {
	return "SELECT unit AS label, sum(count) AS total FROM " + table +
		" WHERE batch_id = ? AND category = ? GROUP BY unit ORDER BY total DESC, label ASC"
}

type Exporter struct {
	db        *gorm.DB
	batchSize int
}

func NewExporter(db *gorm.DB) *Exporter {
	return &Exporter{db: db, batchSize: BatchSize}
}

// ExportRecords creates table if needed and writes records in batches tagged with batchID.
func (e *Exporter) ExportRecords(table, batchID string, records []models.Record) (int, error) {
	started := time.Now()
	if tx := e.db.Exec(createRecordsTableSQL(table)); tx.Error != nil {
		return 0, fmt.Errorf("create table %s: %w", table, tx.Error)
	}

	batch := make([][]string, 0, e.batchSize)
	saved := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		sql, err := insertCSVSQL(table, batch)
		if err != nil {
			return err
		}
		if tx := e.db.Exec(sql); tx.Error != nil {
			return fmt.Errorf("insert into %s: %w", table, tx.Error)
		}
		saved += len(batch)
		batch = batch[:0]
		return nil
	}
	for _, r := range records {
		batch = append(batch, recordRow(batchID, r))
		if len(batch) == e.batchSize {
			if err := flush(); err != nil {
				return saved, err
			}
		}
	}
	if err := flush(); err != nil {
		return saved, err
	}
	log.Info().Str("table", table).Int("rows", saved).Dur("duration", time.Since(started)).Msg("records exported")
	return saved, nil
}

// ExportRollup writes the pie rollup of one view, Other bucket included.
func (e *Exporter) ExportRollup(table, batchID string, f models.Filter, g models.Granularity, r models.RollupResult) error {
	if tx := e.db.Exec(createRollupTableSQL(table)); tx.Error != nil {
		return fmt.Errorf("create table %s: %w", table, tx.Error)
	}
	rows := rollupRows(batchID, f, g, r)
	if len(rows) == 0 {
		return nil
	}
	sql, err := insertCSVSQL(table, rows)
	if err != nil {
		return err
	}
	if tx := e.db.Exec(sql); tx.Error != nil {
		return fmt.Errorf("insert into %s: %w", table, tx.Error)
	}
	log.Info().Str("table", table).Int("rows", len(rows)).Msg("rollup exported")
	return nil
}

// UnitTotals reads back the per-unit totals of one exported batch.
func (e *Exporter) UnitTotals(table, batchID, category string) ([]models.AggregationRow, error) {
	var rows []models.AggregationRow
	if tx := e.db.Raw(unitTotalsSQL(table), batchID, category).Scan(&rows); tx.Error != nil {
		return nil, fmt.Errorf("query %s: %w", table, tx.Error)
	}
	return rows, nil
}
