package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cx-tal-miterani/flightdesk/internal/database"
	"github.com/cx-tal-miterani/flightdesk/internal/logging"
	"github.com/cx-tal-miterani/flightdesk/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ticket(number string, price float64) models.Flight {
	return models.Flight{
		Number:           number,
		Airline:          "China Eastern",
		DepartureTime:    "08:00",
		ArrivalTime:      "10:00",
		DepartureAirport: "PEK",
		ArrivalAirport:   "SHA",
		Status:           models.FlightStatusOnTime,
		Price:            price,
	}
}

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	l, err := Open(t.TempDir(), "alice", logging.Discard())
	require.NoError(t, err)

	assert.Equal(t, "alice", l.Username())
	assert.Equal(t, 0, l.Len())
	_, err = l.List()
	assert.ErrorIs(t, err, database.ErrEmpty)
}

func TestOpen_RejectsUnsafeUsernames(t *testing.T) {
	for _, name := range []string{"", ".", "..", ".bob", "../etc", `a\b`} {
		_, err := Open(t.TempDir(), name, logging.Discard())
		assert.ErrorIs(t, err, database.ErrInvalidInput, name)
	}
}

func TestLedger_AppendCancelPersist(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, "alice", logging.Discard())
	require.NoError(t, err)

	require.NoError(t, l.Append(ticket("CA101", 500)))
	require.NoError(t, l.Append(ticket("MU202", 300)))
	require.NoError(t, l.Append(ticket("CA101", 500)))

	removed, err := l.Cancel("CA101")
	require.NoError(t, err)
	assert.Equal(t, "CA101", removed.Number)

	reopened, err := Open(dir, "alice", logging.Discard())
	require.NoError(t, err)
	entries, err := reopened.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "MU202", entries[0].Number)
	assert.Equal(t, "CA101", entries[1].Number)
}

func TestLedger_CancelAbsentLeavesFileUntouched(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, "alice", logging.Discard())
	require.NoError(t, err)
	require.NoError(t, l.Append(ticket("CA101", 500)))

	path := Path(dir, "alice")
	before, err := os.ReadFile(path)
	require.NoError(t, err)
	statBefore, err := os.Stat(path)
	require.NoError(t, err)

	_, err = l.Cancel("ZZ999")
	require.ErrorIs(t, err, database.ErrNotFound)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	statAfter, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, statBefore.ModTime(), statAfter.ModTime())
	assert.Equal(t, 1, l.Len())
}

func TestLedger_EntriesAreCopies(t *testing.T) {
	l, err := Open(t.TempDir(), "alice", logging.Discard())
	require.NoError(t, err)
	require.NoError(t, l.Append(ticket("CA101", 500)))

	entries, err := l.List()
	require.NoError(t, err)
	entries[0].Price = 1

	again, err := l.List()
	require.NoError(t, err)
	assert.Equal(t, 500.0, again[0].Price)
}

func TestLedger_SortByPriceIsInMemoryOnly(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, "alice", logging.Discard())
	require.NoError(t, err)
	require.NoError(t, l.Append(ticket("A", 300)))
	require.NoError(t, l.Append(ticket("B", 100)))
	require.NoError(t, l.Append(ticket("C", 300)))

	l.SortBy(models.ByPrice)
	entries, err := l.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C"}, []string{entries[0].Number, entries[1].Number, entries[2].Number})

	reopened, err := Open(dir, "alice", logging.Discard())
	require.NoError(t, err)
	onDisk, err := reopened.List()
	require.NoError(t, err)
	assert.Equal(t, "A", onDisk[0].Number)
}

func TestLedger_AppendPersistFailureRollsBack(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "order")
	l, err := Open(dir, "alice", logging.Discard())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(dir, nil, 0o644))

	err = l.Append(ticket("CA101", 500))
	require.ErrorIs(t, err, database.ErrPersistFailed)
	assert.Equal(t, 0, l.Len())
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	for user, numbers := range map[string][]string{
		"bob":   {"MU202"},
		"alice": {"CA101", "CA102"},
	} {
		l, err := Open(dir, user, logging.Discard())
		require.NoError(t, err)
		for _, n := range numbers {
			require.NoError(t, l.Append(ticket(n, 100)))
		}
	}

	summaries, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "alice", summaries[0].Username)
	assert.Len(t, summaries[0].Entries, 2)
	assert.Equal(t, "bob", summaries[1].Username)
	assert.Len(t, summaries[1].Entries, 1)

	missing, err := Scan(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}
