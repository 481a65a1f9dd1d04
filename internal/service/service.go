package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cx-tal-miterani/flightdesk/internal/account"
	"github.com/cx-tal-miterani/flightdesk/internal/catalog"
	"github.com/cx-tal-miterani/flightdesk/internal/database"
	"github.com/cx-tal-miterani/flightdesk/internal/journal"
	"github.com/cx-tal-miterani/flightdesk/internal/ledger"
	"github.com/cx-tal-miterani/flightdesk/internal/metrics"
	"github.com/cx-tal-miterani/flightdesk/internal/report"
	"github.com/cx-tal-miterani/flightdesk/models"
	"github.com/sirupsen/logrus"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrNoResults         = errors.New("no matching flights")
)

// SortKey selects the order of a flight listing.
type SortKey int

const (
	SortByDepartureTime SortKey = iota + 1
	SortByPrice
)

func (k SortKey) comparator() (models.Comparator, error) {
	switch k {
	case SortByDepartureTime:
		return models.ByDepartureTime, nil
	case SortByPrice:
		return models.ByPrice, nil
	default:
		return nil, fmt.Errorf("sort key %d: %w", k, database.ErrInvalidInput)
	}
}

// BookingService defines the booking service interface
type BookingService interface {
	Login(ctx context.Context, username, password string) (*Session, error)
	Register(ctx context.Context, username, password string) error

	SearchFlights(ctx context.Context, sess *Session, departure, arrival string) (models.Flights, error)
	SortResults(ctx context.Context, sess *Session, key SortKey) (models.Flights, error)
	Purchase(ctx context.Context, sess *Session, number string) (models.Flight, error)
	Orders(ctx context.Context, sess *Session) (models.Flights, error)
	SortOrders(ctx context.Context, sess *Session, key SortKey) (models.Flights, error)
	CancelOrder(ctx context.Context, sess *Session, number string) (models.Flight, error)
	Recharge(ctx context.Context, sess *Session, amount float64) (float64, error)
	ChangePassword(ctx context.Context, sess *Session, password string) error

	Flights(ctx context.Context, sess *Session) (models.Flights, error)
	SortFlights(ctx context.Context, sess *Session, key SortKey) (models.Flights, error)
	AddFlight(ctx context.Context, sess *Session, f models.Flight) error
	DeleteFlight(ctx context.Context, sess *Session, number string) error
	UpdateFlight(ctx context.Context, sess *Session, number string, field models.FlightField, value string) error
	FlightReport(ctx context.Context, sess *Session) (report.FlightSummary, string, error)
	OrderReport(ctx context.Context, sess *Session) (report.OrderSummary, string, error)

	Close(ctx context.Context) error
}

// Options wires the stores the service works on.
type Options struct {
	Catalog     *catalog.Store
	Accounts    *account.Store
	Journal     *journal.Journal
	Reports     *report.Writer
	OrdersDir   string
	MetricsPath string
}

// bookingServiceImpl implements BookingService
type bookingServiceImpl struct {
	catalog     *catalog.Store
	accounts    *account.Store
	journal     *journal.Journal
	reports     *report.Writer
	ordersDir   string
	metricsPath string
	metrics     *metrics.Metrics
	log         logrus.FieldLogger
	now         func() time.Time
}

// NewBookingService creates a new BookingService
func NewBookingService(opts Options, m *metrics.Metrics, log logrus.FieldLogger) BookingService {
	m.CatalogFlights.Set(float64(opts.Catalog.Len()))
	return &bookingServiceImpl{
		catalog:     opts.Catalog,
		accounts:    opts.Accounts,
		journal:     opts.Journal,
		reports:     opts.Reports,
		ordersDir:   opts.OrdersDir,
		metricsPath: opts.MetricsPath,
		metrics:     m,
		log:         log,
		now:         time.Now,
	}
}

func (s *bookingServiceImpl) Login(ctx context.Context, username, password string) (*Session, error) {
	acct, err := s.accounts.Authenticate(username, password)
	if err != nil {
		s.log.WithField("user", username).Info("Login failed")
		return nil, err
	}
	l, err := ledger.Open(s.ordersDir, acct.Username, s.log)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"user": username, "role": acct.Role}).Info("Logged in")
	return NewSession(*acct, l), nil
}

func (s *bookingServiceImpl) Register(ctx context.Context, username, password string) error {
	if err := ledger.ValidateUsername(username); err != nil {
		return err
	}
	_, err := s.accounts.Register(username, password)
	return s.observe("accounts", err)
}

func (s *bookingServiceImpl) SearchFlights(ctx context.Context, sess *Session, departure, arrival string) (models.Flights, error) {
	sess.results = s.catalog.Search(departure, arrival)
	if len(sess.results) == 0 {
		return nil, fmt.Errorf("%s to %s: %w", departure, arrival, ErrNoResults)
	}
	return sess.Results(), nil
}

func (s *bookingServiceImpl) SortResults(ctx context.Context, sess *Session, key SortKey) (models.Flights, error) {
	compare, err := key.comparator()
	if err != nil {
		return nil, err
	}
	if len(sess.results) == 0 {
		return nil, ErrNoResults
	}
	sess.results.SortBy(compare)
	return sess.Results(), nil
}

// Purchase buys a ticket on a flight from the session's last search. The
// purchase is journaled before the balance changes so that a crash between
// the debit and the ledger write is completed at the next start.
func (s *bookingServiceImpl) Purchase(ctx context.Context, sess *Session, number string) (models.Flight, error) {
	if err := ctx.Err(); err != nil {
		return models.Flight{}, err
	}

	f, ok := sess.results.Find(number)
	if !ok {
		s.metrics.PurchaseFailures.WithLabelValues("not_found").Inc()
		return models.Flight{}, fmt.Errorf("flight %s is not in the search results: %w", number, database.ErrNotFound)
	}

	acct := sess.account
	if acct.Balance < f.Price {
		s.metrics.PurchaseFailures.WithLabelValues("insufficient_funds").Inc()
		return models.Flight{}, fmt.Errorf("balance %.2f, price %.2f: %w", acct.Balance, f.Price, ErrInsufficientFunds)
	}

	log := s.log.WithFields(logrus.Fields{"user": acct.Username, "flight": f.Number})

	tx, err := s.journal.Begin(acct.Username, f, acct.Balance, acct.Balance-f.Price, sess.ledger.Len())
	if err != nil {
		s.metrics.PurchaseFailures.WithLabelValues("journal").Inc()
		return models.Flight{}, s.observe("journal", err)
	}
	log = log.WithField("tx", tx.ID)

	if err := s.accounts.UpdateBalance(acct, tx.NewBalance); err != nil {
		s.metrics.PurchaseFailures.WithLabelValues("debit").Inc()
		if cerr := s.journal.Abandon(tx); cerr != nil {
			log.WithError(cerr).Error("Failed to discard journal entry")
		}
		return models.Flight{}, s.observe("accounts", err)
	}
	if err := s.journal.Advance(tx, journal.PhaseDebited); err != nil {
		log.WithError(err).Warn("Failed to record debit in journal")
	}

	if err := sess.ledger.Append(f); err != nil {
		s.metrics.PurchaseFailures.WithLabelValues("ledger").Inc()
		if cerr := s.accounts.UpdateBalance(acct, tx.OldBalance); cerr != nil {
			log.WithError(cerr).Error("Failed to restore balance, purchase will be completed at next start")
			return models.Flight{}, s.observe("ledger", err)
		}
		if cerr := s.journal.Abandon(tx); cerr != nil {
			log.WithError(cerr).Error("Failed to discard journal entry")
		}
		return models.Flight{}, s.observe("ledger", err)
	}

	if err := s.journal.Complete(tx); err != nil {
		log.WithError(err).Warn("Failed to remove completed journal entry")
	}

	s.metrics.PurchasesTotal.Inc()
	s.metrics.RevenueTotal.Add(f.Price)
	log.WithField("balance", acct.Balance).Info("Ticket purchased")
	return f, nil
}

func (s *bookingServiceImpl) Orders(ctx context.Context, sess *Session) (models.Flights, error) {
	return sess.ledger.List()
}

func (s *bookingServiceImpl) SortOrders(ctx context.Context, sess *Session, key SortKey) (models.Flights, error) {
	compare, err := key.comparator()
	if err != nil {
		return nil, err
	}
	sess.ledger.SortBy(compare)
	return sess.ledger.List()
}

// CancelOrder removes the first ticket for number from the user's ledger.
// The ticket price is not refunded.
func (s *bookingServiceImpl) CancelOrder(ctx context.Context, sess *Session, number string) (models.Flight, error) {
	removed, err := sess.ledger.Cancel(number)
	if err != nil {
		return models.Flight{}, s.observe("ledger", err)
	}

	s.metrics.Cancellations.Inc()
	s.log.WithFields(logrus.Fields{"user": sess.account.Username, "flight": number}).Info("Order cancelled")
	return removed, nil
}

func (s *bookingServiceImpl) Recharge(ctx context.Context, sess *Session, amount float64) (float64, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("recharge amount %v must be positive: %w", amount, database.ErrInvalidInput)
	}

	acct := sess.account
	if err := s.accounts.UpdateBalance(acct, acct.Balance+amount); err != nil {
		return 0, s.observe("accounts", err)
	}

	s.log.WithFields(logrus.Fields{"user": acct.Username, "amount": amount}).Info("Balance recharged")
	return acct.Balance, nil
}

func (s *bookingServiceImpl) ChangePassword(ctx context.Context, sess *Session, password string) error {
	if password == "" {
		return fmt.Errorf("password is required: %w", database.ErrInvalidInput)
	}
	if err := s.accounts.UpdatePassword(sess.account, password); err != nil {
		return s.observe("accounts", err)
	}

	s.log.WithField("user", sess.account.Username).Info("Password changed")
	return nil
}

func (s *bookingServiceImpl) Flights(ctx context.Context, sess *Session) (models.Flights, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	return s.catalog.List()
}

func (s *bookingServiceImpl) SortFlights(ctx context.Context, sess *Session, key SortKey) (models.Flights, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	compare, err := key.comparator()
	if err != nil {
		return nil, err
	}
	s.catalog.SortBy(compare)
	return s.catalog.List()
}

func (s *bookingServiceImpl) AddFlight(ctx context.Context, sess *Session, f models.Flight) error {
	if err := requireAdmin(sess); err != nil {
		return err
	}
	if err := s.catalog.Insert(f); err != nil {
		return s.observe("catalog", err)
	}
	s.metrics.CatalogFlights.Set(float64(s.catalog.Len()))
	return nil
}

func (s *bookingServiceImpl) DeleteFlight(ctx context.Context, sess *Session, number string) error {
	if err := requireAdmin(sess); err != nil {
		return err
	}
	if err := s.catalog.Delete(number); err != nil {
		return s.observe("catalog", err)
	}
	s.metrics.CatalogFlights.Set(float64(s.catalog.Len()))
	return nil
}

func (s *bookingServiceImpl) UpdateFlight(ctx context.Context, sess *Session, number string, field models.FlightField, value string) error {
	if err := requireAdmin(sess); err != nil {
		return err
	}
	return s.observe("catalog", s.catalog.Update(number, field, value))
}

func (s *bookingServiceImpl) FlightReport(ctx context.Context, sess *Session) (report.FlightSummary, string, error) {
	if err := requireAdmin(sess); err != nil {
		return report.FlightSummary{}, "", err
	}

	flights, err := s.catalog.List()
	if err != nil && !errors.Is(err, database.ErrEmpty) {
		return report.FlightSummary{}, "", err
	}
	summary := report.SummarizeFlights(flights, s.now())
	path, err := s.reports.WriteFlights(summary)
	if err != nil {
		return summary, "", err
	}

	s.log.WithField("path", path).Info("Flight report written")
	return summary, path, nil
}

func (s *bookingServiceImpl) OrderReport(ctx context.Context, sess *Session) (report.OrderSummary, string, error) {
	if err := requireAdmin(sess); err != nil {
		return report.OrderSummary{}, "", err
	}

	ledgers, err := ledger.Scan(s.ordersDir)
	if err != nil {
		return report.OrderSummary{}, "", err
	}
	summary := report.SummarizeOrders(ledgers, s.now())
	path, err := s.reports.WriteOrders(summary)
	if err != nil {
		return summary, "", err
	}

	s.log.WithField("path", path).Info("Order report written")
	return summary, path, nil
}

// Close persists the catalog in its current order and exports metrics.
func (s *bookingServiceImpl) Close(ctx context.Context) error {
	err := s.observe("catalog", s.catalog.Flush())
	s.metrics.CatalogFlights.Set(float64(s.catalog.Len()))
	if s.metricsPath != "" {
		if merr := s.metrics.WriteTextfile(s.metricsPath); merr != nil {
			s.log.WithError(merr).Warn("Failed to write metrics")
		}
	}
	return err
}

// observe counts persist failures per store and passes err through.
func (s *bookingServiceImpl) observe(store string, err error) error {
	if errors.Is(err, database.ErrPersistFailed) {
		s.metrics.PersistFailures.WithLabelValues(store).Inc()
	}
	return err
}

func requireAdmin(sess *Session) error {
	if sess == nil || !sess.IsAdmin() {
		return ErrPermissionDenied
	}
	return nil
}
