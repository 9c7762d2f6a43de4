package usecase

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"SybilScan/internal/domain/models"
)

// ExportFormat selects the delimiter of an exported table.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportTSV ExportFormat = "tsv"
)

// ExportHeader is the column order of exported tables.
var ExportHeader = []string{
	"address", "score", "sybil_score", "risk", "sybil_type",
	"tx_count", "wallet_age_days", "nft_collections", "unique_contracts", "total_volume_eth",
}

// ParseExport validates a format name; empty selects csv.
func ParseExport(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case "", ExportCSV:
		return ExportCSV, nil
	case ExportTSV:
		return ExportTSV, nil
	default:
		return "", &models.ValidationError{Field: "format", Value: s, Reason: "must be csv or tsv"}
	}
}

// ContentType returns the MIME type for the format.
func (f ExportFormat) ContentType() string {
	if f == ExportTSV {
		return "text/tab-separated-values; charset=utf-8"
	}
	return "text/csv; charset=utf-8"
}

// WriteExport writes results as a delimited table with a header row. Absent
// numeric fields are written as empty cells.
func WriteExport(w io.Writer, f ExportFormat, results []models.ScoreResult) error {
	cw := csv.NewWriter(w)
	if f == ExportTSV {
		cw.Comma = '\t'
	}
	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range results {
		row := []string{
			r.Address,
			floatCell(r.Score),
			intCell(r.SybilScore),
			string(r.Risk),
			r.SybilType,
			intCell(r.TxCount),
			floatCell(r.WalletAgeDays),
			intCell(r.NFTCollections),
			intCell(r.UniqueContracts),
			floatCell(r.TotalVolumeETH),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", r.Index, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func intCell(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
