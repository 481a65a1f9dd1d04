package service

import (
	"github.com/cx-tal-miterani/flightdesk/internal/ledger"
	"github.com/cx-tal-miterani/flightdesk/models"
)

// Session is the state of one logged-in user: the account, its ledger and
// the flights returned by the last search. Purchases can only pick from
// that search view.
type Session struct {
	account *models.Account
	ledger  *ledger.Ledger
	results models.Flights
}

// NewSession wraps an authenticated account and its ledger.
func NewSession(acct models.Account, l *ledger.Ledger) *Session {
	return &Session{account: &acct, ledger: l}
}

// Account returns a snapshot of the logged-in account.
func (s *Session) Account() models.Account {
	return *s.account
}

func (s *Session) IsAdmin() bool {
	return s.account.IsAdmin()
}

// Results returns a copy of the last search view.
func (s *Session) Results() models.Flights {
	return s.results.Clone()
}
