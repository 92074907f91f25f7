package summary

import (
	"encoding/csv"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uhtp-tools/recorder/internal/trial"
)

func TestWriterProducesSummaryRows(t *testing.T) {
	w, err := NewWriter(t.TempDir(), "s01", "sos")
	require.NoError(t, err)

	w.TrialEnded(trial.Summary{
		TrialNumber: 1,
		DurationS:   2.5,
		RMSEX:       0.0031,
		RMSEY:       0.0042,
		RMSETotal:   0.00522,
		SampleCount: 150,
		Success:     true,
	})
	w.TrialEnded(trial.Summary{TrialNumber: 2, Success: false})
	require.NoError(t, w.Close())

	f, err := os.Open(w.Path())
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two trials")

	require.Equal(t, []string{
		"trial", "task_type", "subject_id", "timestamp",
		"duration_s", "rmse_x_mm", "rmse_y_mm", "rmse_total_mm",
		"sample_count", "success",
	}, rows[0])

	first := rows[1]
	require.Equal(t, "1", first[0])
	require.Equal(t, "sos", first[1])
	require.Equal(t, "s01", first[2])
	require.Equal(t, "2.500", first[4])
	require.Equal(t, "3.100", first[5])
	require.Equal(t, "4.200", first[6])
	require.Equal(t, "5.220", first[7])
	require.Equal(t, "150", first[8])
	require.Equal(t, "success", first[9])

	second := rows[2]
	require.Equal(t, "2", second[0])
	require.Equal(t, "0.000", second[4])
	require.Equal(t, "0", second[8])
	require.Equal(t, "failed", second[9])
}

func TestWriterRejectsMissingDirectory(t *testing.T) {
	_, err := NewWriter("/nonexistent/path/for/sure", "s01", "sos")
	require.Error(t, err)
}
