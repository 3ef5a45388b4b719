package main

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/ozihaynes/hps-dealengine-sub010/internal/canon"
	"github.com/ozihaynes/hps-dealengine-sub010/internal/policy"
	"github.com/ozihaynes/hps-dealengine-sub010/internal/runrec"
)

func exportableRun(t *testing.T) *runrec.Run {
	t.Helper()
	deal, err := canon.Decode([]byte(`{"market":{"arv":300000}}`))
	require.NoError(t, err)

	run, err := runrec.BuildRun(runrec.Args{
		OrgID:   "org-1",
		DealID:  "deal-9",
		Posture: policy.PostureBase,
		Deal:    deal,
		Outputs: map[string]any{
			"workflow_state": "ReadyForOffer",
			"primary_offer":  220000.0,
			"respect_floor":  220000.0,
			"buyer_ceiling":  231000.0,
		},
		Trace:          []map[string]any{},
		PolicySnapshot: map[string]any{},
	})
	require.NoError(t, err)
	return run
}

func TestExportRunsXLSX(t *testing.T) {
	run := exportableRun(t)
	path := filepath.Join(t.TempDir(), "runs.xlsx")

	require.NoError(t, exportRunsXLSX([]runrec.Run{*run}, path))

	file, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)

	sheet := file.Sheets[0]
	assert.Equal(t, "Runs", sheet.Name)
	require.Len(t, sheet.Rows, 2)

	header := sheet.Rows[0]
	assert.Equal(t, "ID", header.Cells[0].Value)

	row := sheet.Rows[1]
	assert.Equal(t, run.ID.String(), row.Cells[0].Value)
	assert.Equal(t, "org-1", row.Cells[1].Value)
	assert.Equal(t, "deal-9", row.Cells[2].Value)
	assert.Equal(t, "base", row.Cells[3].Value)
	assert.Equal(t, "ReadyForOffer", row.Cells[5].Value)

	offer, err := row.Cells[6].Float()
	require.NoError(t, err)
	assert.Equal(t, 220000.0, offer)
}

func TestExportRunsCSV(t *testing.T) {
	run := exportableRun(t)
	path := filepath.Join(t.TempDir(), "runs.csv")

	require.NoError(t, exportRunsCSV([]runrec.Run{*run}, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, exportHeader, records[0])
	row := records[1]
	assert.Equal(t, run.ID.String(), row[0])
	assert.Equal(t, "org-1", row[1])
	assert.Equal(t, "ReadyForOffer", row[5])
	assert.Equal(t, "220000", row[6])
	assert.Equal(t, run.InputHash, row[9])
}

func TestOutputString_MissingKey(t *testing.T) {
	assert.Empty(t, outputString(nil, "workflow_state"))
	assert.Empty(t, outputString(map[string]any{"workflow_state": 7}, "workflow_state"))
}
