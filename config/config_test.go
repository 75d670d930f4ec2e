package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"DATA_PATH", "DATA_ENCODING", "DATA_SHEET", "CATEGORY_COLUMN", "SUBCATEGORY_COLUMN",
		"TOP_N", "CHART_LIBRARY", "FONT_STRATEGY", "FONT_PATH", "ANOMALY_DETECTION",
		"ANOMALY_METHOD", "ANOMALY_CONTAMINATION", "ANOMALY_SEED", "HTTP_ADDR", "TG_TOKEN",
		"DB_DSN", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 10, cfg.TopN)
	assert.False(t, cfg.AnomalyDetection)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TOP_N", "5")
	t.Setenv("CHART_LIBRARY", "gochart")
	t.Setenv("FONT_STRATEGY", "bundled")
	t.Setenv("ANOMALY_DETECTION", "true")
	t.Setenv("ANOMALY_METHOD", "zscore")
	t.Setenv("ANOMALY_CONTAMINATION", "0.2")
	t.Setenv("ANOMALY_SEED", "7")
	t.Setenv("DATA_ENCODING", "CP949")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.TopN)
	assert.Equal(t, "gochart", cfg.ChartLibrary)
	assert.Equal(t, "bundled", cfg.FontStrategy)
	assert.True(t, cfg.AnomalyDetection)
	assert.Equal(t, "zscore", cfg.AnomalyMethod)
	assert.Equal(t, 0.2, cfg.AnomalyContamination)
	assert.Equal(t, int64(7), cfg.AnomalySeed)
}

func TestLoadRejects(t *testing.T) {
	cases := []struct {
		name, key, value, contains string
	}{
		{"top n not a number", "TOP_N", "ten", "TOP_N"},
		{"top n zero", "TOP_N", "0", "TOP_N failed min"},
		{"contamination out of range", "ANOMALY_CONTAMINATION", "1.5", "ANOMALY_CONTAMINATION failed lt"},
		{"unknown chart library", "CHART_LIBRARY", "plotly", "CHART_LIBRARY"},
		{"unknown method", "ANOMALY_METHOD", "lof", "ANOMALY_METHOD"},
		{"unknown encoding", "DATA_ENCODING", "latin1", "DATA_ENCODING"},
		{"bad bool", "ANOMALY_DETECTION", "maybe", "ANOMALY_DETECTION"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.contains)
		})
	}
}

func TestValidateRequired(t *testing.T) {
	cfg := Default()
	cfg.DataPath = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATA_PATH failed required")
}
