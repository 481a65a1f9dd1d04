// Package journal makes ticket purchases recoverable. A purchase touches two
// files, the account file and the user's ledger, so before changing either
// one an entry describing the whole purchase is written here. A completed
// purchase removes its entry; entries still present at startup belong to
// purchases that were interrupted and are rolled forward by Recover.
package journal

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cx-tal-miterani/flightdesk/internal/database"
	"github.com/cx-tal-miterani/flightdesk/models"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const entryExt = ".cbor"

// Phase records how far a purchase got.
type Phase string

const (
	// PhasePrepared is written before the balance is debited.
	PhasePrepared Phase = "prepared"
	// PhaseDebited is written once the debit is durable.
	PhaseDebited Phase = "debited"
	// PhaseAborted marks a purchase whose debit was never applied or was
	// already refunded. Recover drops such entries.
	PhaseAborted Phase = "aborted"
)

// Entry describes one in-flight purchase.
type Entry struct {
	ID         string        `cbor:"id"`
	Username   string        `cbor:"username"`
	Flight     models.Flight `cbor:"flight"`
	OldBalance float64       `cbor:"old_balance"`
	NewBalance float64       `cbor:"new_balance"`
	LedgerLen  int           `cbor:"ledger_len"`
	Phase      Phase         `cbor:"phase"`
	CreatedAt  time.Time     `cbor:"created_at"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("journal: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("journal: CBOR decoder initialization failed: " + err.Error())
	}
}

// Journal stores entries as one file per purchase in a directory.
type Journal struct {
	dir string
	log logrus.FieldLogger
	now func() time.Time
}

func New(dir string, log logrus.FieldLogger) *Journal {
	return &Journal{
		dir: dir,
		log: log.WithField("store", "journal"),
		now: time.Now,
	}
}

// Begin durably records a purchase that is about to start.
func (j *Journal) Begin(username string, flight models.Flight, oldBalance, newBalance float64, ledgerLen int) (*Entry, error) {
	e := &Entry{
		ID:         uuid.New().String(),
		Username:   username,
		Flight:     flight,
		OldBalance: oldBalance,
		NewBalance: newBalance,
		LedgerLen:  ledgerLen,
		Phase:      PhasePrepared,
		CreatedAt:  j.now().UTC(),
	}
	if err := j.write(e); err != nil {
		return nil, err
	}
	j.log.WithFields(logrus.Fields{"tx": e.ID, "user": username, "flight": flight.Number}).Debug("Purchase prepared")
	return e, nil
}

// Advance moves e to phase and rewrites its entry.
func (j *Journal) Advance(e *Entry, phase Phase) error {
	previous := e.Phase
	e.Phase = phase
	if err := j.write(e); err != nil {
		e.Phase = previous
		return err
	}
	return nil
}

// Complete removes the entry of a finished or abandoned purchase.
func (j *Journal) Complete(e *Entry) error {
	path := j.path(e.ID)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove journal entry %s: %w", e.ID, err)
	}
	os.Remove(path + ".lock")
	return nil
}

// Abandon discards the entry of a purchase that was undone. The entry is
// marked aborted before it is removed so that a failed removal leaves
// nothing for Recover to roll forward.
func (j *Journal) Abandon(e *Entry) error {
	markErr := j.Advance(e, PhaseAborted)
	if err := j.Complete(e); err != nil {
		return errors.Join(markErr, err)
	}
	return nil
}

// Pending returns every entry left in the journal, oldest first.
func (j *Journal) Pending() ([]*Entry, error) {
	dirEntries, err := os.ReadDir(j.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	var entries []*Entry
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, entryExt) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(j.dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read journal entry %s: %w", name, err)
		}
		var e Entry
		if err := decMode.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("journal entry %s: %v: %w", name, err, database.ErrCorruptStore)
		}
		entries = append(entries, &e)
	}
	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].CreatedAt.Before(entries[b].CreatedAt)
	})
	return entries, nil
}

func (j *Journal) write(e *Entry) error {
	data, err := encMode.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding journal entry: %w", err)
	}
	return database.WriteFileAtomic(j.path(e.ID), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

func (j *Journal) path(id string) string {
	return filepath.Join(j.dir, id+entryExt)
}
