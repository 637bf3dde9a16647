package memory

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"libreria/internal/core"
	ports "libreria/internal/sheets"
)

var (
	_ ports.RecordStore = (*Store)(nil)
	_ ports.Pinger      = (*Store)(nil)
)

// Store is an in-process sheet: a header row plus data rows.
type Store struct {
	mu     sync.Mutex
	header []string
	rows   [][]any
}

func New() *Store {
	return &Store{}
}

// NewFromFiles seeds the store from base/seed_records.csv when present.
// The first CSV line is the header.
func NewFromFiles(base string) (*Store, error) {
	s := New()
	f, err := os.Open(filepath.Join(base, "seed_records.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	lines, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	for i, line := range lines {
		if i == 0 {
			s.header = trimAll(line)
			continue
		}
		if isBlank(line) {
			continue
		}
		row := make([]any, len(line))
		for j, v := range line {
			row[j] = v
		}
		s.rows = append(s.rows, row)
	}
	return s, nil
}

func (s *Store) LoadAll(_ context.Context) ([]core.RawRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.RawRow, 0, len(s.rows))
	for _, row := range s.rows {
		raw := core.RawRow{}
		for i, h := range s.header {
			if i < len(row) {
				raw[h] = row[i]
			}
		}
		out = append(out, raw)
	}
	return out, nil
}

func (s *Store) Append(_ context.Context, row core.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.header) == 0 {
		s.header = append([]string(nil), core.Columns...)
	}
	s.rows = append(s.rows, row.Values(s.header))
	return nil
}

// DeleteByDate removes the first row whose date column holds the date. The
// column is found through the header, as a seed file may order it freely.
func (s *Store) DeleteByDate(_ context.Context, d core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := d.String()
	col := s.dateColumn()
	for i, row := range s.rows {
		if col >= len(row) {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[col])) == want {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return ports.ErrNotFound
}

func (s *Store) dateColumn() int {
	header := s.header
	if len(header) == 0 {
		header = core.Columns
	}
	for i, h := range header {
		if h == core.ColDate {
			return i
		}
	}
	return 0
}

// Header returns a copy of the current header row.
func (s *Store) Header() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.header...)
}

// Len returns the number of data rows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

func isBlank(line []string) bool {
	for _, v := range line {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Ping always succeeds: the store lives in process.
func (s *Store) Ping(context.Context) error { return nil }
