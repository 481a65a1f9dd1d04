package account

import (
	"fmt"
	"sync"

	"github.com/cx-tal-miterani/flightdesk/internal/codec"
	"github.com/cx-tal-miterani/flightdesk/internal/database"
	"github.com/cx-tal-miterani/flightdesk/models"
	"github.com/sirupsen/logrus"
)

// Store holds the account file. Updates rewrite the whole file through an
// atomic replace, and the caller's Account is only modified once the new
// file is durable.
type Store struct {
	mu       sync.Mutex
	path     string
	accounts []models.Account
	log      logrus.FieldLogger
}

func NewStore(path string, log logrus.FieldLogger) *Store {
	return &Store{
		path: path,
		log:  log.WithField("store", "accounts"),
	}
}

// Load reads every account record into memory. A missing file yields no
// accounts.
func (s *Store) Load() error {
	var accounts []models.Account
	err := database.ReadRecords(s.path, codec.AccountRecordSize, func(block []byte) error {
		a, err := codec.DecodeAccount(block)
		if err != nil {
			return err
		}
		accounts = append(accounts, a)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}

	s.mu.Lock()
	s.accounts = accounts
	s.mu.Unlock()

	s.log.WithField("accounts", len(accounts)).Debug("Accounts loaded")
	return nil
}

// Bootstrap creates the account file holding a single administrator when no
// file exists yet, and reports whether it did so. An existing file is
// loaded instead.
func (s *Store) Bootstrap(username, password string) (bool, error) {
	exists, err := database.Exists(s.path)
	if err != nil {
		return false, fmt.Errorf("failed to check accounts file: %w", err)
	}
	if exists {
		return false, s.Load()
	}

	admin := models.Account{Username: username, Password: password, Role: models.RoleAdmin}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts = []models.Account{admin}
	if err := s.persist(); err != nil {
		s.accounts = nil
		return false, err
	}

	s.log.WithField("user", username).Info("Created administrator account")
	return true, nil
}

// Authenticate returns the first account matching both username and
// password. Any mismatch is ErrNotFound.
func (s *Store) Authenticate(username, password string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.Username == username && a.Password == password {
			found := a
			return &found, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", username, database.ErrNotFound)
}

// Get returns a copy of the named account.
func (s *Store) Get(username string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(username)
	if i < 0 {
		return nil, fmt.Errorf("user %s: %w", username, database.ErrNotFound)
	}
	found := s.accounts[i]
	return &found, nil
}

// List returns a copy of all accounts in file order.
func (s *Store) List() []models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Account, len(s.accounts))
	copy(out, s.accounts)
	return out
}

// Register appends a new regular user with a zero balance.
func (s *Store) Register(username, password string) (*models.Account, error) {
	a := models.Account{Username: username, Password: password, Role: models.RoleUser}
	if _, err := codec.EncodeAccount(a); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index(username) >= 0 {
		return nil, fmt.Errorf("user %s: %w", username, database.ErrAlreadyExists)
	}

	s.accounts = append(s.accounts, a)
	if err := s.persist(); err != nil {
		s.accounts = s.accounts[:len(s.accounts)-1]
		return nil, err
	}

	s.log.WithField("user", username).Info("User registered")
	created := a
	return &created, nil
}

// UpdateBalance stores a new balance for acct and, on success, sets
// acct.Balance.
func (s *Store) UpdateBalance(acct *models.Account, balance float64) error {
	return s.update(acct, func(a *models.Account) { a.Balance = balance })
}

// UpdatePassword stores a new password for acct and, on success, sets
// acct.Password.
func (s *Store) UpdatePassword(acct *models.Account, password string) error {
	return s.update(acct, func(a *models.Account) { a.Password = password })
}

func (s *Store) update(acct *models.Account, change func(*models.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(acct.Username)
	if i < 0 {
		return fmt.Errorf("user %s: %w", acct.Username, database.ErrNotFound)
	}

	updated := s.accounts[i]
	change(&updated)
	if _, err := codec.EncodeAccount(updated); err != nil {
		return err
	}

	previous := s.accounts[i]
	s.accounts[i] = updated
	if err := s.persist(); err != nil {
		s.accounts[i] = previous
		return err
	}

	change(acct)
	return nil
}

func (s *Store) index(username string) int {
	for i := range s.accounts {
		if s.accounts[i].Username == username {
			return i
		}
	}
	return -1
}

// persist must be called with s.mu held.
func (s *Store) persist() error {
	blocks := make([][]byte, 0, len(s.accounts))
	for _, a := range s.accounts {
		block, err := codec.EncodeAccount(a)
		if err != nil {
			return fmt.Errorf("encoding account %s: %v: %w", a.Username, err, database.ErrPersistFailed)
		}
		blocks = append(blocks, block)
	}
	if err := database.WriteRecords(s.path, blocks); err != nil {
		s.log.WithError(err).Error("Failed to persist accounts")
		return err
	}
	return nil
}
