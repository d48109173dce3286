package storage

import (
	"encoding/json"
	"io"
)

type ExportData struct {
	Session Metadata `json:"session"`
	Trials  []Trial  `json:"trials"`
}

// ExportJSON writes a session and its trials as one indented JSON document.
func (s *Store) ExportJSON(w io.Writer, id string) error {
	meta, err := s.Load(id)
	if err != nil {
		return err
	}
	trials, err := s.LoadTrials(id)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(ExportData{Session: *meta, Trials: trials})
}
