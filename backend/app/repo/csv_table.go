package repo

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const utf8BOM = "\uFEFF"

// csvTable is a flat table file that is always read and rewritten whole.
type csvTable struct {
	path     string
	columns  []string
	required []string
	// aliases maps legacy or localized header names to canonical columns.
	aliases map[string]string
}

type csvRow map[string]string

func (t *csvTable) exists() (bool, error) {
	_, err := os.Stat(t.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("%w: stat %s: %v", ErrStoreUnavailable, t.path, err)
}

func (t *csvTable) ensure() error {
	ok, err := t.exists()
	if err != nil || ok {
		return err
	}
	if dir := filepath.Dir(t.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: mkdir %s: %v", ErrStoreUnavailable, dir, err)
		}
	}
	return t.write(nil)
}

// read loads every row keyed by canonical column. An empty file is an empty table.
func (t *csvTable) read() ([]csvRow, error) {
	b, err := os.ReadFile(t.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrStoreUnavailable, t.path, err)
	}
	r := csv.NewReader(bytes.NewReader(b))
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []csvRow{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s header: %v", ErrStoreUnavailable, t.path, err)
	}
	keys := t.canonicalHeader(header)
	for _, req := range t.required {
		if !contains(keys, req) {
			return nil, fmt.Errorf("%w: %s: missing column %q", ErrStoreUnavailable, t.path, req)
		}
	}

	rows := []csvRow{}
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, t.path, err)
		}
		row := make(csvRow, len(keys))
		for i, k := range keys {
			if k == "" || i >= len(rec) {
				continue
			}
			row[k] = rec[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (t *csvTable) canonicalHeader(header []string) []string {
	keys := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		h = strings.TrimSpace(h)
		if c, ok := t.aliases[h]; ok {
			h = c
		}
		if contains(t.columns, h) {
			keys[i] = h
		}
	}
	return keys
}

// write replaces the table file with the canonical header followed by rows.
func (t *csvTable) write(rows []csvRow) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.columns); err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrStoreUnavailable, t.path, err)
	}
	rec := make([]string, len(t.columns))
	for _, row := range rows {
		for i, c := range t.columns {
			rec[i] = row[c]
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("%w: encode %s: %v", ErrStoreUnavailable, t.path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrStoreUnavailable, t.path, err)
	}
	if err := os.WriteFile(t.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrStoreUnavailable, t.path, err)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
