package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var errUndecodable = errors.New("undecodable with any supported encoding")

// decodeBytes returns data as a UTF-8 string, trying UTF-8, Latin-1, and
// Windows-1252 in order and using the first that decodes cleanly.
func decodeBytes(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	for _, dec := range []*encoding.Decoder{
		charmap.ISO8859_1.NewDecoder(),
		charmap.Windows1252.NewDecoder(),
	} {
		decoded, _, err := transform.Bytes(dec, data)
		if err == nil {
			return string(decoded), nil
		}
	}
	return "", errUndecodable
}

// csvTable is a fully-parsed CSV: one header row plus data rows keyed by
// original column name.
type csvTable struct {
	headers []string
	rows    []map[string]string
}

// parseCSV decodes and parses an uploaded file. Returns an error only for
// file-level problems: undecodable bytes, unparseable CSV, or a missing
// header row.
func parseCSV(data []byte) (*csvTable, error) {
	text, err := decodeBytes(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader([]byte(text)))
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New("file has no header row")
		}
		return nil, err
	}

	table := &csvTable{headers: headers}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[h] = record[i]
			}
		}
		table.rows = append(table.rows, row)
	}
	return table, nil
}
