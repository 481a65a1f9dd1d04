package journal

import (
	"errors"
	"fmt"

	"github.com/cx-tal-miterani/flightdesk/internal/account"
	"github.com/cx-tal-miterani/flightdesk/internal/database"
	"github.com/cx-tal-miterani/flightdesk/internal/ledger"
	"github.com/sirupsen/logrus"
)

// Recover resolves every pending purchase. Aborted purchases are dropped.
// The others are rolled forward: the debit is applied if the balance still
// holds the pre-purchase value and the ticket is added if the ledger still
// has its pre-purchase length. A debited entry whose balance is back at the
// pre-purchase value was refunded and is dropped. It returns the number of
// entries resolved. Entries whose state cannot be reconciled are left in
// place and logged.
func (j *Journal) Recover(accounts *account.Store, ordersDir string) (int, error) {
	entries, err := j.Pending()
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, e := range entries {
		log := j.log.WithFields(logrus.Fields{"tx": e.ID, "user": e.Username, "flight": e.Flight.Number})

		done, err := j.rollForward(e, accounts, ordersDir, log)
		if err != nil {
			return recovered, fmt.Errorf("recovering purchase %s: %w", e.ID, err)
		}
		if !done {
			continue
		}
		if err := j.Complete(e); err != nil {
			return recovered, err
		}
		recovered++
		log.Info("Recovered interrupted purchase")
	}
	return recovered, nil
}

func (j *Journal) rollForward(e *Entry, accounts *account.Store, ordersDir string, log logrus.FieldLogger) (bool, error) {
	if e.Phase == PhaseAborted {
		log.Info("Dropping aborted purchase")
		return true, nil
	}

	acct, err := accounts.Get(e.Username)
	if errors.Is(err, database.ErrNotFound) {
		log.Warn("Dropping journal entry for unknown user")
		return true, nil
	}
	if err != nil {
		return false, err
	}

	switch acct.Balance {
	case e.NewBalance:
	case e.OldBalance:
		if e.Phase == PhaseDebited {
			log.Warn("Debit was refunded before the purchase finished, dropping journal entry")
			return true, nil
		}
		if err := accounts.UpdateBalance(acct, e.NewBalance); err != nil {
			return false, err
		}
	default:
		log.WithField("balance", acct.Balance).Error("Balance matches neither side of the purchase, leaving journal entry")
		return false, nil
	}

	l, err := ledger.Open(ordersDir, e.Username, log)
	if err != nil {
		return false, err
	}
	switch l.Len() {
	case e.LedgerLen:
		if err := l.Append(e.Flight); err != nil {
			return false, err
		}
	case e.LedgerLen + 1:
	default:
		log.WithField("ledger_len", l.Len()).Warn("Ledger length changed since purchase started, not adding ticket")
	}
	return true, nil
}
