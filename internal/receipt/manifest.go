package receipt

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"
)

// DefaultPathColumn is the manifest column holding the document file name
const DefaultPathColumn = "image_path"

// ManifestOptions controls how a manifest is read
type ManifestOptions struct {
	// PathColumn names the column holding the document file name
	PathColumn string
	// URLColumn, when set, names a URL-like column whose last path segment is the document file name.
	// The derived name is stored under PathColumn.
	URLColumn string
	// Delimiter separates cells. Zero means comma.
	Delimiter rune
	// BlankNulls replaces NULL and null cells with empty strings
	BlankNulls bool
}

// ParseDelimiter turns a flag value into a single delimiter rune; "\t" and "tab" mean a tab
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return ',', nil
	case `\t`, "tab":
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// ReadManifest reads every row of a delimited manifest file with a header row
func ReadManifest(path string, opts ManifestOptions) ([]Transaction, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer file.Close()

	return ParseManifest(file, opts)
}

// ParseManifest reads transactions from r
func ParseManifest(r io.Reader, opts ManifestOptions) ([]Transaction, error) {
	if opts.PathColumn == "" {
		opts.PathColumn = DefaultPathColumn
	}

	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("manifest is empty")
		}
		return nil, fmt.Errorf("reading manifest header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	sourceColumn := opts.PathColumn
	if opts.URLColumn != "" {
		sourceColumn = opts.URLColumn
	}
	if !containsColumn(header, sourceColumn) {
		return nil, fmt.Errorf("manifest has no %q column (columns: %s)", sourceColumn, strings.Join(header, ", "))
	}

	var transactions []Transaction
	for row := 1; ; row++ {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading manifest row %d: %w", row, err)
		}
		if len(cells) != len(header) {
			slog.Warn("Manifest row has an unexpected number of cells", "row", row, "expected", len(header), "got", len(cells))
		}

		fields := NewRecord()
		for i, name := range header {
			value := ""
			if i < len(cells) {
				value = cells[i]
			}
			if opts.BlankNulls && (value == "NULL" || value == "null") {
				value = ""
			}
			fields.SetString(name, value)
		}

		if opts.URLColumn != "" {
			fields.SetString(opts.PathColumn, lastSegment(fields.String(opts.URLColumn)))
		}

		transactions = append(transactions, Transaction{
			Row:      row,
			Document: fields.String(opts.PathColumn),
			Fields:   fields,
		})
	}

	return transactions, nil
}

func containsColumn(header []string, name string) bool {
	for _, h := range header {
		if h == name {
			return true
		}
	}
	return false
}

// lastSegment returns everything after the last slash
func lastSegment(s string) string {
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}
