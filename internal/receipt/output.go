package receipt

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"
)

// Format is the serialization used for the output artifact
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (supported: csv, json, yaml)", s)
	}
}

// FormatFromPath infers the format from the output file extension, ignoring a compression suffix
func FormatFromPath(path string) (Format, error) {
	name := strings.ToLower(path)
	name = strings.TrimSuffix(name, ".gz")
	name = strings.TrimSuffix(name, ".zst")
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return "", fmt.Errorf("cannot infer output format from %q, set --format", path)
	}
	return ParseFormat(ext)
}

// FieldNames returns the union of keys across records in first-seen order
func FieldNames(records []*Record) []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range records {
		for _, k := range r.keys {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	return names
}

// EncodeResults serializes records to w
func EncodeResults(w io.Writer, format Format, records []*Record) error {
	if records == nil {
		records = []*Record{}
	}

	switch format {
	case FormatCSV:
		return encodeCSV(w, records)
	case FormatJSON:
		data, err := json.MarshalIndent(records, "", "    ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		data = append(data, '\n')
		_, err = w.Write(data)
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// encodeCSV writes one row per record under a header of all field names; absent fields are empty
func encodeCSV(w io.Writer, records []*Record) error {
	names := FieldNames(records)
	if len(names) == 0 {
		return nil
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(names); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	row := make([]string, len(names))
	for _, r := range records {
		for i, name := range names {
			row[i] = r.String(name)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteResults writes records to path, compressing when the path ends in .gz or .zst
func WriteResults(path string, format Format, records []*Record) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing output file: %w", closeErr)
		}
	}()

	var w io.WriteCloser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		w = gzip.NewWriter(file)
	case ".zst":
		enc, encErr := zstd.NewWriter(file)
		if encErr != nil {
			return fmt.Errorf("creating zstd encoder: %w", encErr)
		}
		w = enc
	default:
		return EncodeResults(file, format, records)
	}

	if err := EncodeResults(w, format, records); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finishing compressed output: %w", err)
	}
	return nil
}
