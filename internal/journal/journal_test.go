package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cx-tal-miterani/flightdesk/internal/account"
	"github.com/cx-tal-miterani/flightdesk/internal/database"
	"github.com/cx-tal-miterani/flightdesk/internal/ledger"
	"github.com/cx-tal-miterani/flightdesk/internal/logging"
	"github.com/cx-tal-miterani/flightdesk/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ca101 = models.Flight{
	Number:           "CA101",
	Airline:          "Air China",
	DepartureTime:    "08:00",
	ArrivalTime:      "10:00",
	DepartureAirport: "PEK",
	ArrivalAirport:   "SHA",
	Status:           models.FlightStatusOnTime,
	Price:            500,
}

type fixture struct {
	dir       string
	journal   *Journal
	accounts  *account.Store
	ordersDir string
}

func newFixture(t *testing.T, balance float64) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:       dir,
		journal:   New(filepath.Join(dir, "journal"), logging.Discard()),
		accounts:  account.NewStore(filepath.Join(dir, "userinfo.txt"), logging.Discard()),
		ordersDir: filepath.Join(dir, "order"),
	}
	_, err := f.accounts.Bootstrap("admin", "123")
	require.NoError(t, err)
	acct, err := f.accounts.Register("alice", "pw")
	require.NoError(t, err)
	require.NoError(t, f.accounts.UpdateBalance(acct, balance))
	return f
}

func (f *fixture) balance(t *testing.T) float64 {
	t.Helper()
	acct, err := f.accounts.Get("alice")
	require.NoError(t, err)
	return acct.Balance
}

func (f *fixture) ledgerLen(t *testing.T) int {
	t.Helper()
	l, err := ledger.Open(f.ordersDir, "alice", logging.Discard())
	require.NoError(t, err)
	return l.Len()
}

func TestJournal_Lifecycle(t *testing.T) {
	j := New(t.TempDir(), logging.Discard())

	pending, err := j.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	e, err := j.Begin("alice", ca101, 1000, 500, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, PhasePrepared, e.Phase)

	require.NoError(t, j.Advance(e, PhaseDebited))

	pending, err = j.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	got := pending[0]
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, ca101, got.Flight)
	assert.Equal(t, 1000.0, got.OldBalance)
	assert.Equal(t, 500.0, got.NewBalance)
	assert.Equal(t, PhaseDebited, got.Phase)

	require.NoError(t, j.Complete(e))
	pending, err = j.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Completing twice is harmless.
	assert.NoError(t, j.Complete(e))
}

func TestJournal_PendingOldestFirst(t *testing.T) {
	j := New(t.TempDir(), logging.Discard())
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	j.now = func() time.Time { return base.Add(time.Hour) }
	later, err := j.Begin("bob", ca101, 10, 5, 0)
	require.NoError(t, err)
	j.now = func() time.Time { return base }
	earlier, err := j.Begin("alice", ca101, 10, 5, 0)
	require.NoError(t, err)

	pending, err := j.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, earlier.ID, pending[0].ID)
	assert.Equal(t, later.ID, pending[1].ID)
}

func TestJournal_PendingCorruptEntry(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.cbor"), []byte{0xff, 0x00}, 0o644))

	_, err := New(dir, logging.Discard()).Pending()
	assert.ErrorIs(t, err, database.ErrCorruptStore)
}

func TestRecover_CrashBeforeDebit(t *testing.T) {
	f := newFixture(t, 1000)
	_, err := f.journal.Begin("alice", ca101, 1000, 500, 0)
	require.NoError(t, err)

	n, err := f.journal.Recover(f.accounts, f.ordersDir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 500.0, f.balance(t))
	assert.Equal(t, 1, f.ledgerLen(t))

	pending, err := f.journal.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRecover_CrashAfterDebit(t *testing.T) {
	f := newFixture(t, 500)
	e, err := f.journal.Begin("alice", ca101, 1000, 500, 0)
	require.NoError(t, err)
	require.NoError(t, f.journal.Advance(e, PhaseDebited))

	n, err := f.journal.Recover(f.accounts, f.ordersDir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 500.0, f.balance(t))
	assert.Equal(t, 1, f.ledgerLen(t))
}

func TestRecover_CrashAfterLedgerAppend(t *testing.T) {
	f := newFixture(t, 500)
	l, err := ledger.Open(f.ordersDir, "alice", logging.Discard())
	require.NoError(t, err)
	require.NoError(t, l.Append(ca101))
	_, err = f.journal.Begin("alice", ca101, 1000, 500, 0)
	require.NoError(t, err)

	n, err := f.journal.Recover(f.accounts, f.ordersDir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 500.0, f.balance(t))
	assert.Equal(t, 1, f.ledgerLen(t))
}

func TestRecover_UnreconcilableBalanceKeepsEntry(t *testing.T) {
	f := newFixture(t, 42)
	_, err := f.journal.Begin("alice", ca101, 1000, 500, 0)
	require.NoError(t, err)

	n, err := f.journal.Recover(f.accounts, f.ordersDir)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 42.0, f.balance(t))
	assert.Equal(t, 0, f.ledgerLen(t))

	pending, err := f.journal.Pending()
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestRecover_UnknownUserIsDropped(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.journal.Begin("ghost", ca101, 1000, 500, 0)
	require.NoError(t, err)

	n, err := f.journal.Recover(f.accounts, f.ordersDir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := f.journal.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestJournal_Abandon(t *testing.T) {
	j := New(t.TempDir(), logging.Discard())
	e, err := j.Begin("alice", ca101, 1000, 500, 0)
	require.NoError(t, err)

	require.NoError(t, j.Abandon(e))
	assert.Equal(t, PhaseAborted, e.Phase)

	pending, err := j.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

// An aborted entry is what Abandon leaves behind when the removal fails.
func TestRecover_AbortedEntryIsDropped(t *testing.T) {
	f := newFixture(t, 1000)
	e, err := f.journal.Begin("alice", ca101, 1000, 500, 0)
	require.NoError(t, err)
	require.NoError(t, f.journal.Advance(e, PhaseAborted))

	n, err := f.journal.Recover(f.accounts, f.ordersDir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1000.0, f.balance(t))
	assert.Equal(t, 0, f.ledgerLen(t))

	pending, err := f.journal.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRecover_RefundedDebitIsNotChargedAgain(t *testing.T) {
	f := newFixture(t, 1000)
	e, err := f.journal.Begin("alice", ca101, 1000, 500, 0)
	require.NoError(t, err)
	require.NoError(t, f.journal.Advance(e, PhaseDebited))

	n, err := f.journal.Recover(f.accounts, f.ordersDir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1000.0, f.balance(t))
	assert.Equal(t, 0, f.ledgerLen(t))

	pending, err := f.journal.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}
