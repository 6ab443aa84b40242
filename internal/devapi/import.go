package devapi

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyImport is returned for uploads without records.
var ErrEmptyImport = errors.New("file contains no records")

// ParseImport reads a JSON array of objects or a CSV file with a header
// row into fixtures.
func ParseImport(r io.Reader) ([]Fixture, error) {
	br := bufio.NewReader(r)
	first, err := firstByte(br)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	if first == '[' {
		rows, err = parseJSON(br)
	} else {
		rows, err = parseCSV(br)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptyImport
	}
	return toFixtures(rows), nil
}

// firstByte skips a byte order mark and leading whitespace.
func firstByte(br *bufio.Reader) (byte, error) {
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}
	for {
		b, err := br.ReadByte()
		if errors.Is(err, io.EOF) {
			return 0, ErrEmptyImport
		}
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

func parseJSON(r io.Reader) ([]map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return rows, nil
}

func parseCSV(r io.Reader) ([]map[string]any, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyImport
	}
	if err != nil {
		return nil, fmt.Errorf("invalid CSV: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	var rows []map[string]any
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid CSV: %w", err)
		}
		row := make(map[string]any, len(header))
		blank := true
		for i, value := range record {
			if header[i] == "" {
				continue
			}
			row[header[i]] = value
			if strings.TrimSpace(value) != "" {
				blank = false
			}
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func toFixtures(rows []map[string]any) []Fixture {
	out := make([]Fixture, 0, len(rows))
	for _, row := range rows {
		id := stringify(row["id"])
		if id == "" {
			id = uuid.NewString()
			row["id"] = id
		}
		out = append(out, Fixture{ID: id, Number: stringify(row["number"]), Payload: row})
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return formatTime(t)
	default:
		return fmt.Sprint(t)
	}
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339)
}
