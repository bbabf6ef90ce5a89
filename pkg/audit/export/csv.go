package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"sonate-hq/arbiter/pkg/audit"
)

// csvHeader is the fixed export header. The leading spaces are part of
// the wire format consumed downstream.
var csvHeader = []string{
	"Timestamp", " Entry Type", " Receipt ID", " Agent DID", " Decision",
	" Total Violations", " Critical", " High", " Medium", " Low", " Reason",
}

// ExportCSV writes entries as CSV rows with the fixed header.
func ExportCSV(w io.Writer, entries []*audit.Entry) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(csvHeader); err != nil {
		return &audit.ExportError{Format: "csv", Cause: err}
	}

	for i, e := range entries {
		row := []string{
			e.Timestamp.Format(time.RFC3339),
			string(e.EntryType),
			e.ReceiptID,
			e.AgentDID,
			e.Decision,
			strconv.Itoa(e.Violations.Total),
			strconv.Itoa(e.Violations.Critical),
			strconv.Itoa(e.Violations.High),
			strconv.Itoa(e.Violations.Medium),
			strconv.Itoa(e.Violations.Low),
			e.Reason,
		}
		if err := writer.Write(row); err != nil {
			return &audit.ExportError{Format: "csv", Rows: i, Cause: err}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return &audit.ExportError{Format: "csv", Rows: len(entries), Cause: err}
	}
	return nil
}

// ParseCSV reads rows produced by ExportCSV back into entries. The header
// row is required. Derived fields not present in the CSV form (entry ids,
// principle lists, details) are not recovered.
func ParseCSV(r io.Reader) ([]*audit.Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvHeader)

	header, err := reader.Read()
	if err != nil {
		return nil, &audit.ExportError{Format: "csv", Cause: err}
	}
	for i, want := range csvHeader {
		if strings.TrimSpace(header[i]) != strings.TrimSpace(want) {
			return nil, &audit.ExportError{
				Format: "csv",
				Cause:  fmt.Errorf("unexpected header column %d: %q", i, header[i]),
			}
		}
	}

	var entries []*audit.Entry
	for row := 1; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &audit.ExportError{Format: "csv", Rows: row, Cause: err}
		}

		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(record[0]))
		if err != nil {
			return nil, &audit.ExportError{Format: "csv", Rows: row, Cause: err}
		}

		counts, err := parseCounts(record[5:10])
		if err != nil {
			return nil, &audit.ExportError{Format: "csv", Rows: row, Cause: err}
		}

		entries = append(entries, &audit.Entry{
			Timestamp:  ts,
			EntryType:  audit.EntryType(strings.TrimSpace(record[1])),
			ReceiptID:  strings.TrimSpace(record[2]),
			AgentDID:   strings.TrimSpace(record[3]),
			Decision:   strings.TrimSpace(record[4]),
			Violations: counts,
			Reason:     record[10],
		})
	}
	return entries, nil
}

func parseCounts(fields []string) (audit.ViolationCounts, error) {
	nums := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return audit.ViolationCounts{}, err
		}
		nums[i] = n
	}
	return audit.ViolationCounts{
		Total:    nums[0],
		Critical: nums[1],
		High:     nums[2],
		Medium:   nums[3],
		Low:      nums[4],
	}, nil
}
