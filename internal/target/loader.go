// Package target loads validation target lists produced by the metadata
// analysis layer.
//
// fedcheck does not parse federation metadata itself: the analysis layer
// extracts (url, entity_id, federation) rows and hands them over as a CSV
// or JSON file. Malformed URLs are kept: the probe layer classifies them
// as invalid targets rather than aborting the batch.
package target

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fedtools/fedcheck/internal/model"
)

// ErrUnsupportedFormat is returned for target files whose extension is
// neither .csv nor .json.
var ErrUnsupportedFormat = errors.New("unsupported target file format (use .csv or .json)")

// Load reads targets from path, dispatching on the file extension.
func Load(path string) ([]model.ValidationTarget, error) {
	f, err := os.Open(path) //nolint:gosec // user-provided target file is intentional
	if err != nil {
		return nil, fmt.Errorf("open target file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(f)
	case ".json":
		return LoadJSON(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// LoadCSV reads targets from CSV with columns url, entity_id, federation.
// A header row whose first column is "url" is skipped. Rows with an empty
// URL are dropped: they carry nothing to validate and no entity can be
// blamed for them.
func LoadCSV(r io.Reader) ([]model.ValidationTarget, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	var targets []model.ValidationTarget
	line := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse target CSV: %w", err)
		}
		line++

		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "url") {
			continue
		}
		if strings.TrimSpace(record[0]) == "" {
			continue
		}

		targets = append(targets, model.NewValidationTarget(record[0], record[1], record[2]))
	}

	return targets, nil
}

// LoadJSON reads targets from a JSON array of objects with url, entity_id
// and federation fields. Unknown fields are ignored.
func LoadJSON(r io.Reader) ([]model.ValidationTarget, error) {
	var raw []model.ValidationTarget
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse target JSON: %w", err)
	}

	targets := make([]model.ValidationTarget, 0, len(raw))
	for _, t := range raw {
		t = t.Normalize()
		if t.URL == "" {
			continue
		}
		targets = append(targets, t)
	}

	return targets, nil
}
