package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/psds-microservice/ticket-desk/internal/errs"
	"github.com/psds-microservice/ticket-desk/internal/model"
)

// Header is the canonical column order written by Save.
var Header = []string{
	colID, colCreatedAt, colCustomer, colCategory, colPriority,
	colDescription, colStatus, colSolution, colCost,
}

const (
	colID          = "id"
	colCreatedAt   = "created_at"
	colCustomer    = "customer"
	colCategory    = "category"
	colPriority    = "priority"
	colDescription = "description"
	colStatus      = "status"
	colSolution    = "solution"
	colCost        = "cost"
)

var requiredColumns = []string{colID, colCreatedAt, colCustomer, colCategory, colPriority, colDescription, colStatus}

const filePerms = 0o644

// CSVFile is the flat-file ticket backend. Every Save rewrites the whole file
// through a temp file and rename, so readers never observe a half-written table.
type CSVFile struct {
	path string
}

func NewCSVFile(path string) *CSVFile {
	return &CSVFile{path: path}
}

func (f *CSVFile) Path() string { return f.path }

// Load reads all tickets. A missing or zero-length file is an empty store.
func (f *CSVFile) Load(_ context.Context) ([]model.Ticket, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.Ticket{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []model.Ticket{}, nil
	}
	tickets, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.path, err)
	}
	return tickets, nil
}

// Save overwrites the file with the given tickets in order.
func (f *CSVFile) Save(_ context.Context, tickets []model.Ticket) error {
	var buf bytes.Buffer
	if err := Encode(&buf, tickets); err != nil {
		return err
	}
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create store directory: %w", err)
		}
	}
	_, statErr := os.Stat(f.path)
	if err := atomic.WriteFile(f.path, &buf); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	// atomic.WriteFile leaves the temp file's 0600 mode on new files
	if errors.Is(statErr, os.ErrNotExist) {
		if err := os.Chmod(f.path, filePerms); err != nil {
			return fmt.Errorf("chmod %s: %w", f.path, err)
		}
	}
	return nil
}

// Encode writes the canonical header followed by one row per ticket.
func Encode(w io.Writer, tickets []model.Ticket) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := range tickets {
		t := &tickets[i]
		row := []string{
			strconv.FormatUint(t.ID, 10),
			t.CreatedAt,
			t.Customer,
			string(t.Category),
			string(t.Priority),
			t.Description,
			string(t.Status),
			t.Solution,
			strconv.FormatFloat(t.Cost, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write ticket %d: %w", t.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Decode parses a ticket table. Columns are matched by name, legacy headers and
// values are normalised, and absent solution/cost columns are back-filled.
// Any structural problem is reported as errs.ErrCorruptData.
func Decode(r io.Reader) ([]model.Ticket, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrCorruptData, err)
	}
	if len(records) == 0 {
		return []model.Ticket{}, nil
	}

	idx := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		key := canonicalColumn(name)
		if key == "" {
			continue
		}
		if _, dup := idx[key]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", errs.ErrCorruptData, name)
		}
		idx[key] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", errs.ErrCorruptData, col)
		}
	}

	tickets := make([]model.Ticket, 0, len(records)-1)
	seen := make(map[uint64]struct{}, len(records)-1)
	for n, rec := range records[1:] {
		line := n + 2
		get := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(rec) {
				return ""
			}
			return rec[i]
		}
		id, err := parseID(get(colID))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", errs.ErrCorruptData, line, err)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: line %d: duplicate id %d", errs.ErrCorruptData, line, id)
		}
		seen[id] = struct{}{}

		t := model.Ticket{
			ID:          id,
			CreatedAt:   get(colCreatedAt),
			Customer:    get(colCustomer),
			Category:    normalizeCategory(get(colCategory)),
			Priority:    normalizePriority(get(colPriority)),
			Description: get(colDescription),
			Status:      normalizeStatus(get(colStatus)),
		}

		if _, ok := idx[colSolution]; ok {
			t.Solution = normalizeSolution(get(colSolution))
		} else if t.IsOpen() {
			t.Solution = model.SolutionPending
		}

		if _, ok := idx[colCost]; ok {
			t.Cost, err = parseCost(get(colCost))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", errs.ErrCorruptData, line, err)
			}
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}

func parseID(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		// float-typed id columns ("3.0") come from spreadsheet round-trips
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(uint64(f)) {
			return 0, fmt.Errorf("invalid id %q", s)
		}
		id = uint64(f)
	}
	if id == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func parseCost(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return 0, nil
	}
	s = strings.TrimSpace(strings.TrimPrefix(s, "$"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("invalid cost %q", s)
	}
	return v, nil
}
