package service

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/entities"
	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/reconcile"
)

// Summary is the result of one ingestion call.
type Summary struct {
	OK       bool
	Table    string
	Inserted int
	Updated  int
	// Mapped counts rows that produced a record: matched pairs for payments, mapped rows otherwise.
	Mapped int
	// Skipped counts Misses.
	Skipped int
	Misses  []reconcile.Miss
	// Duplicates counts rows dropped by the in-batch signature dedupe.
	Duplicates int
	// OutOfWindow counts rows dropped by the access window.
	OutOfWindow    int
	Error          string
	Message        string
	MissingHeaders []string
	ExtraHeaders   []string
	RunID          *uuid.UUID
}

func (s *Summary) setMisses(misses []reconcile.Miss) {
	if misses == nil {
		misses = []reconcile.Miss{}
	}
	s.Misses = misses
	s.Skipped = len(misses)
}

// summaryJSON carries both field naming families expected by existing clients.
type summaryJSON struct {
	OK             bool             `json:"ok"`
	Table          string           `json:"table,omitempty"`
	Inserted       int              `json:"inserted"`
	Updated        int              `json:"updated"`
	Merged         int              `json:"merged"`
	TotalMapped    int              `json:"total_mapped"`
	MissesTotal    int              `json:"missesTotal"`
	TotalSkipped   int              `json:"total_skipped"`
	Misses         []reconcile.Miss `json:"misses"`
	Skipped        []reconcile.Miss `json:"skipped"`
	Duplicates     int              `json:"duplicates"`
	OutOfWindow    int              `json:"out_of_window"`
	Error          string           `json:"error,omitempty"`
	Message        string           `json:"message,omitempty"`
	MissingHeaders []string         `json:"missingHeaders,omitempty"`
	ExtraHeaders   []string         `json:"extraHeaders,omitempty"`
	RunID          *uuid.UUID       `json:"run_id,omitempty"`
}

func (s Summary) MarshalJSON() ([]byte, error) {
	misses := s.Misses
	if misses == nil {
		misses = []reconcile.Miss{}
	}
	return json.Marshal(summaryJSON{
		OK:             s.OK,
		Table:          s.Table,
		Inserted:       s.Inserted,
		Updated:        s.Updated,
		Merged:         s.Mapped,
		TotalMapped:    s.Mapped,
		MissesTotal:    s.Skipped,
		TotalSkipped:   s.Skipped,
		Misses:         misses,
		Skipped:        misses,
		Duplicates:     s.Duplicates,
		OutOfWindow:    s.OutOfWindow,
		Error:          s.Error,
		Message:        s.Message,
		MissingHeaders: s.MissingHeaders,
		ExtraHeaders:   s.ExtraHeaders,
		RunID:          s.RunID,
	})
}

// HeaderMismatch is the summary reported for an upload rejected by its header contract.
func HeaderMismatch(e *entities.HeaderError) *Summary {
	return &Summary{
		Table:          e.Table,
		Error:          entities.ErrInvalidStructure.Error(),
		MissingHeaders: e.Missing,
		ExtraHeaders:   e.Extra,
		Misses:         []reconcile.Miss{},
	}
}
