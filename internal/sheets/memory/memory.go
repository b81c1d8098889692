package memory

import (
	"context"
	"sync"

	"budgetsim/internal/core"
	ports "budgetsim/internal/sheets"
)

// Store keeps the last exported table in memory. The worker falls back to it
// when no spreadsheet is configured.
type Store struct {
	mu      sync.Mutex
	table   [][]string
	exports int
	err     error
}

var (
	_ ports.FamilyExporter = (*Store)(nil)
	_ ports.BalanceReader  = (*Store)(nil)
)

func New() *Store {
	return &Store{}
}

// FailWith makes subsequent exports return err. Pass nil to recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Store) ExportFamilies(_ context.Context, families []core.Family) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.table = ports.Table(families)
	s.exports++
	return nil
}

func (s *Store) ReadBalances(_ context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]string{}
	for _, row := range s.rowsLocked() {
		out[row[0]] = row[1]
	}
	return out, nil
}

// Rows returns a copy of the exported data rows, header excluded.
func (s *Store) Rows() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.rowsLocked()
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// Exports counts successful exports.
func (s *Store) Exports() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exports
}

func (s *Store) rowsLocked() [][]string {
	if len(s.table) < 2 {
		return nil
	}
	return s.table[1:]
}
