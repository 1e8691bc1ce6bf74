package adapter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"package-tracker/internal/core/logger"
	"package-tracker/internal/features/tracking/domain"

	"github.com/jszwec/csvutil"
	"go.uber.org/zap"
)

// SheetStore persists tracking records as a headered CSV sheet. The tracking
// number stays in column A; new fields append as trailing columns so older
// sheets keep loading. Writes rewrite the whole sheet through a temp file and
// rename, so readers never observe a half-written sheet.
type SheetStore struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

// NewSheetStore creates a SheetStore backed by the given CSV path.
func NewSheetStore(path string) *SheetStore {
	return &SheetStore{path: path, logger: logger.Get()}
}

// sheetRow is the on-sheet projection of a TrackingRecord. Timestamps are
// stored human-readable because operators read the sheet directly.
type sheetRow struct {
	TrackingNumber    string `csv:"Tracking Number"`
	Carrier           string `csv:"Carrier"`
	Status            string `csv:"Status"`
	RawStatusText     string `csv:"Status Detail"`
	LastUpdate        string `csv:"Last Update"`
	CurrentLocation   string `csv:"Current Location"`
	ValidatedAddress  string `csv:"Validated Address"`
	EstimatedDelivery string `csv:"Estimated Delivery"`
	ExceptionSeverity string `csv:"Exception Severity"`
}

func toSheetRow(rec domain.TrackingRecord) sheetRow {
	return sheetRow{
		TrackingNumber:    rec.TrackingNumber,
		Carrier:           string(rec.Carrier),
		Status:            string(rec.Status),
		RawStatusText:     rec.RawStatusText,
		LastUpdate:        domain.FormatHumanTimestamp(rec.LastUpdate),
		CurrentLocation:   rec.CurrentLocation,
		ValidatedAddress:  rec.ValidatedAddress,
		EstimatedDelivery: domain.FormatHumanDate(rec.EstimatedDelivery),
		ExceptionSeverity: string(rec.ExceptionSeverity),
	}
}

func (r sheetRow) toRecord() domain.TrackingRecord {
	rec := domain.TrackingRecord{
		TrackingNumber:    r.TrackingNumber,
		Carrier:           domain.Carrier(r.Carrier),
		Status:            domain.Status(r.Status),
		RawStatusText:     r.RawStatusText,
		CurrentLocation:   r.CurrentLocation,
		ValidatedAddress:  r.ValidatedAddress,
		ExceptionSeverity: domain.ExceptionSeverity(r.ExceptionSeverity),
	}
	if r.LastUpdate != "" {
		if t, err := time.Parse(domain.HumanTimestampLayout, r.LastUpdate); err == nil {
			rec.LastUpdate = &t
		}
	}
	if r.EstimatedDelivery != "" {
		if t, err := time.Parse(domain.HumanDateLayout, r.EstimatedDelivery); err == nil {
			rec.EstimatedDelivery = &t
		}
	}
	if rec.Carrier == "" {
		rec.Carrier = domain.CarrierUnknown
	}
	if rec.Status == "" {
		rec.Status = domain.StatusUnknown
	}
	if rec.ExceptionSeverity == "" {
		rec.ExceptionSeverity = domain.SeverityNone
	}
	return rec
}

// ReadAll loads every row in sheet order. A missing sheet is an empty store.
func (s *SheetStore) ReadAll() ([]domain.TrackingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

func (s *SheetStore) readLocked() ([]domain.TrackingRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var rows []sheetRow
	if err := csvutil.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode sheet %s: %w", s.path, err)
	}

	records := make([]domain.TrackingRecord, 0, len(rows))
	for _, row := range rows {
		if row.TrackingNumber == "" {
			continue
		}
		records = append(records, row.toRecord())
	}
	return records, nil
}

// WriteBatch applies the upsert mutations and rewrites the sheet once.
// Existing rows keep their position; new rows append at the bottom. The
// rename makes the batch atomic from a reader's point of view.
func (s *SheetStore) WriteBatch(mutations []domain.RowMutation) error {
	if len(mutations) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readLocked()
	if err != nil {
		return err
	}

	index := make(map[string]int, len(records))
	for i, rec := range records {
		index[rec.TrackingNumber] = i
	}

	for _, m := range mutations {
		if m.Kind != domain.MutationUpsert {
			continue
		}
		if i, ok := index[m.Row.TrackingNumber]; ok {
			records[i] = m.Row
		} else {
			index[m.Row.TrackingNumber] = len(records)
			records = append(records, m.Row)
		}
	}

	rows := make([]sheetRow, len(records))
	for i, rec := range records {
		rows[i] = toSheetRow(rec)
	}

	data, err := csvutil.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to encode sheet: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp sheet: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp sheet: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp sheet: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace sheet: %w", err)
	}

	s.logger.Debug("sheet batch written",
		zap.String("path", s.path),
		zap.Int("mutations", len(mutations)),
		zap.Int("rows", len(rows)),
	)
	return nil
}
