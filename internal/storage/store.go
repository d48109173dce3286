package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	metadataFile = "metadata.json"
	trialsFile   = "trials.csv"
)

// ErrSessionClosed is returned when writing to a finished session.
var ErrSessionClosed = errors.New("storage: session closed")

var trialHeader = []string{"trial", "phase", "kp", "ki", "kd", "error", "raw_error", "steps", "distance", "reason", "best_error"}

// Store keeps tuning history under baseDir, one directory per session.
// It is a record for inspection; tuning sessions never read it back.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type Metadata struct {
	ID           string             `json:"id"`
	Strategy     string             `json:"strategy"`
	Target       string             `json:"target"`
	Preset       string             `json:"preset,omitempty"`
	StartedAt    time.Time          `json:"started_at"`
	FinishedAt   *time.Time         `json:"finished_at,omitempty"`
	InitialGains []float64          `json:"initial_gains"`
	FinalGains   []float64          `json:"final_gains,omitempty"`
	BestError    *float64           `json:"best_error,omitempty"`
	Trials       int                `json:"trials"`
	Converged    bool               `json:"converged"`
	Params       map[string]float64 `json:"params,omitempty"`
}

// Trial is one episode of a search.
type Trial struct {
	N         int       `json:"n"`
	Phase     string    `json:"phase"`
	Gains     []float64 `json:"gains"`
	Error     float64   `json:"error"`
	RawError  float64   `json:"raw_error"`
	Steps     int       `json:"steps"`
	Distance  float64   `json:"distance"`
	Reason    string    `json:"reason"`
	BestError float64   `json:"best_error"`
}

// Summary closes out a session.
type Summary struct {
	FinalGains []float64
	BestError  float64
	Trials     int
	Converged  bool
}

// Session is an open session directory. Trials are flushed as they are
// appended so a concurrent List or LoadTrials sees them.
type Session struct {
	dir  string
	meta Metadata
	file *os.File
	w    *csv.Writer
}

// Create opens a new session directory. An empty meta.ID gets a random UUID
// and a zero StartedAt gets the current time.
func (s *Store) Create(meta Metadata) (*Session, error) {
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.StartedAt.IsZero() {
		meta.StartedAt = time.Now()
	}

	dir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if err := writeMetadata(dir, &meta); err != nil {
		return nil, err
	}

	f, err := os.Create(filepath.Join(dir, trialsFile))
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if err := w.Write(trialHeader); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, err
	}

	return &Session{dir: dir, meta: meta, file: f, w: w}, nil
}

func (s *Session) ID() string { return s.meta.ID }

func (s *Session) Append(t Trial) error {
	if s.file == nil {
		return ErrSessionClosed
	}
	if err := s.w.Write(trialRow(t)); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

// Finish records the outcome in metadata.json and closes the trial log.
func (s *Session) Finish(sum Summary) error {
	if s.file == nil {
		return ErrSessionClosed
	}
	now := time.Now()
	s.meta.FinishedAt = &now
	s.meta.FinalGains = append([]float64(nil), sum.FinalGains...)
	s.meta.Trials = sum.Trials
	s.meta.Converged = sum.Converged
	if !math.IsInf(sum.BestError, 0) && !math.IsNaN(sum.BestError) {
		best := sum.BestError
		s.meta.BestError = &best
	}

	if err := writeMetadata(s.dir, &s.meta); err != nil {
		s.Close()
		return err
	}
	return s.Close()
}

// Close releases the trial log without updating metadata. It is safe to
// call more than once.
func (s *Session) Close() error {
	if s.file == nil {
		return nil
	}
	s.w.Flush()
	err := s.w.Error()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	s.file = nil
	return err
}

func writeMetadata(dir string, meta *Metadata) error {
	f, err := os.Create(filepath.Join(dir, metadataFile))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func trialRow(t Trial) []string {
	gains := make([]string, 3)
	for i := range gains {
		if i < len(t.Gains) {
			gains[i] = formatFloat(t.Gains[i])
		}
	}
	return []string{
		strconv.Itoa(t.N),
		t.Phase,
		gains[0], gains[1], gains[2],
		formatFloat(t.Error),
		formatFloat(t.RawError),
		strconv.Itoa(t.Steps),
		formatFloat(t.Distance),
		t.Reason,
		formatFloat(t.BestError),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// List returns every readable session, oldest first.
func (s *Store) List() ([]Metadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Metadata{}, nil
		}
		return nil, err
	}

	sessions := make([]Metadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		sessions = append(sessions, *meta)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})
	return sessions, nil
}

func (s *Store) Load(id string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, id, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadTrials(id string) ([]Trial, error) {
	file, err := os.Open(filepath.Join(s.baseDir, id, trialsFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(trialHeader)

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []Trial{}, nil
	}

	trials := make([]Trial, 0, len(records)-1)
	for i, rec := range records[1:] {
		t, err := parseTrial(rec)
		if err != nil {
			return nil, fmt.Errorf("storage: %s line %d: %w", trialsFile, i+2, err)
		}
		trials = append(trials, t)
	}
	return trials, nil
}

func parseTrial(rec []string) (Trial, error) {
	var (
		t   Trial
		err error
	)
	if t.N, err = strconv.Atoi(rec[0]); err != nil {
		return t, err
	}
	t.Phase = rec[1]

	floats := make([]float64, 0, 7)
	for _, col := range []int{2, 3, 4, 5, 6, 8, 10} {
		v, err := strconv.ParseFloat(rec[col], 64)
		if err != nil {
			return t, err
		}
		floats = append(floats, v)
	}
	t.Gains = floats[0:3]
	t.Error, t.RawError, t.Distance, t.BestError = floats[3], floats[4], floats[5], floats[6]

	if t.Steps, err = strconv.Atoi(rec[7]); err != nil {
		return t, err
	}
	t.Reason = rec[9]
	return t, nil
}
