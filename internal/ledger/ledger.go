package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cx-tal-miterani/flightdesk/internal/codec"
	"github.com/cx-tal-miterani/flightdesk/internal/database"
	"github.com/cx-tal-miterani/flightdesk/models"
	"github.com/sirupsen/logrus"
)

const fileExt = ".txt"

// Ledger is one user's list of purchased tickets, stored as flight records
// in <dir>/<username>.txt. Entries are copies taken at purchase time and do
// not follow later catalog edits.
type Ledger struct {
	mu       sync.Mutex
	username string
	path     string
	entries  models.Flights
	log      logrus.FieldLogger
}

// Open loads the ledger of username from dir. A missing file is an empty
// ledger.
func Open(dir, username string, log logrus.FieldLogger) (*Ledger, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	l := &Ledger{
		username: username,
		path:     Path(dir, username),
		log:      log.WithFields(logrus.Fields{"store": "ledger", "user": username}),
	}
	entries, err := readEntries(l.path)
	if err != nil {
		return nil, err
	}
	l.entries = entries
	return l, nil
}

// Path returns the ledger file of username inside dir.
func Path(dir, username string) string {
	return filepath.Join(dir, username+fileExt)
}

// ValidateUsername rejects names that cannot be used as a ledger file name.
// A leading dot is reserved for the temporary files of atomic writes, which
// Scan skips.
func ValidateUsername(username string) error {
	if username == "" || strings.HasPrefix(username, ".") ||
		strings.ContainsAny(username, `/\`) || strings.IndexByte(username, 0) >= 0 {
		return fmt.Errorf("username %q cannot name a ledger file: %w", username, database.ErrInvalidInput)
	}
	return nil
}

func (l *Ledger) Username() string {
	return l.username
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Append adds a ticket at the end of the ledger and persists it.
func (l *Ledger) Append(entry models.Flight) error {
	if err := codec.ValidateFlight(entry); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)
	if err := l.persist(); err != nil {
		l.entries = l.entries[:len(l.entries)-1]
		return err
	}

	l.log.WithField("flight", entry.Number).Debug("Ledger entry added")
	return nil
}

// Cancel removes the first ticket for the given flight number. When there
// is none the file is not touched.
func (l *Ledger) Cancel(number string) (models.Flight, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.entries.Index(number)
	if i < 0 {
		return models.Flight{}, fmt.Errorf("order for flight %s: %w", number, database.ErrNotFound)
	}

	removed := l.entries[i]
	previous := l.entries.Clone()
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
	if err := l.persist(); err != nil {
		l.entries = previous
		return models.Flight{}, err
	}

	l.log.WithField("flight", number).Debug("Ledger entry removed")
	return removed, nil
}

// List returns a copy of the entries in their current order. An empty
// ledger returns ErrEmpty.
func (l *Ledger) List() (models.Flights, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) == 0 {
		return nil, database.ErrEmpty
	}
	return l.entries.Clone(), nil
}

// SortBy reorders the entries in memory only.
func (l *Ledger) SortBy(compare models.Comparator) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries.SortBy(compare)
}

// persist must be called with l.mu held.
func (l *Ledger) persist() error {
	blocks := make([][]byte, 0, len(l.entries))
	for _, f := range l.entries {
		block, err := codec.EncodeFlight(f)
		if err != nil {
			return fmt.Errorf("encoding order %s: %v: %w", f.Number, err, database.ErrPersistFailed)
		}
		blocks = append(blocks, block)
	}
	if err := database.WriteRecords(l.path, blocks); err != nil {
		l.log.WithError(err).Error("Failed to persist ledger")
		return err
	}
	return nil
}

func readEntries(path string) (models.Flights, error) {
	var entries models.Flights
	err := database.ReadRecords(path, codec.FlightRecordSize, func(block []byte) error {
		f, err := codec.DecodeFlight(block)
		if err != nil {
			return err
		}
		entries = append(entries, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	return entries, nil
}

// Summary is the content of one ledger file as seen by Scan.
type Summary struct {
	Username string
	Entries  models.Flights
}

// Scan reads every ledger file in dir, sorted by username. A missing
// directory yields no ledgers.
func Scan(dir string) ([]Summary, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read order directory: %w", err)
	}

	var out []Summary
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, fileExt) || strings.HasPrefix(name, ".") {
			continue
		}
		entries, err := readEntries(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, Summary{Username: strings.TrimSuffix(name, fileExt), Entries: entries})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}
