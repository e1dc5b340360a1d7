// Package fileio reads tabular vendor files (CSV, XLSX, legacy XLS)
// into header-keyed records. Vendors export from a zoo of ERP systems,
// so decoding is defensive about encodings, ragged rows and blank
// header cells.
package fileio

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ReadRecords picks a parser by file extension and returns data rows
// as maps keyed by the header row. headerRow is 1-based.
func ReadRecords(r io.Reader, filename string, headerRow int) ([]map[string]string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".xlsx":
		return readXLSX(r, headerRow)
	case ".xls":
		return readXLS(r, headerRow)
	case ".csv":
		return readCSV(r, headerRow)
	default:
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
}

// pickHeader returns the header row with blanks replaced by positional
// names so ragged exports still map cleanly.
func pickHeader(rows [][]string, headerRow int) []string {
	idx := headerRow - 1
	if idx < 0 || idx >= len(rows) {
		idx = 0
	}
	h := rows[idx]
	out := make([]string, len(h))
	for i, v := range h {
		v = normalizeCell(v)
		if v == "" {
			v = fmt.Sprintf("Column %d", i+1)
		}
		out[i] = v
	}
	return out
}

// rowsToMaps converts the rows after the header into maps, skipping
// rows that are entirely blank.
func rowsToMaps(rows [][]string, headers []string, headerRow int) []map[string]string {
	var out []map[string]string
	for r := headerRow; r < len(rows); r++ {
		rec := rows[r]
		m := make(map[string]string, len(headers))
		empty := true
		for c := 0; c < len(headers); c++ {
			var v string
			if c < len(rec) {
				v = normalizeCell(rec[c])
			}
			if v != "" {
				empty = false
			}
			m[headers[c]] = v
		}
		if !empty {
			out = append(out, m)
		}
	}
	return out
}

// normalizeCell strips the BOM and zero-width characters some exports
// smuggle into cells, folds non-breaking spaces into plain ones, and
// trims the result.
func normalizeCell(v string) string {
	v = strings.Map(func(r rune) rune {
		switch r {
		case '\uFEFF', '\u200B':
			return -1
		case '\u00A0':
			return ' '
		}
		return r
	}, v)
	return strings.TrimSpace(v)
}
