package frame

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// sheetToDelimited renders one worksheet as delimited text so workbooks go
// through the same typed parse as delimited files. sheetIndex is 1-based and
// only used when sheetName is empty.
func sheetToDelimited(path, sheetName string, sheetIndex int, comma rune) ([]byte, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	target := ""
	if sheetName != "" {
		for _, s := range sheets {
			if strings.EqualFold(s, sheetName) {
				target = s
				break
			}
		}
		if target == "" {
			return nil, fmt.Errorf("open xlsx %s: sheet %q not found", path, sheetName)
		}
	} else {
		if sheetIndex <= 0 {
			sheetIndex = 1
		}
		if sheetIndex > len(sheets) {
			return nil, fmt.Errorf("open xlsx %s: sheet index %d out of range (%d sheets)", path, sheetIndex, len(sheets))
		}
		target = sheets[sheetIndex-1]
	}

	rows, err := f.GetRows(target)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", target, err)
	}
	if len(rows) == 0 {
		return nil, &ParseError{Path: path, Err: fmt.Errorf("sheet %q is empty", target)}
	}

	// excelize trims trailing empty cells; pad rows back to the header width.
	width := len(rows[0])
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = comma
	for _, row := range rows {
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			row = padded
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("render sheet %q: %w", target, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("render sheet %q: %w", target, err)
	}
	return buf.Bytes(), nil
}
