package mocks

import (
	"context"

	"github.com/cx-tal-miterani/flightdesk/internal/report"
	"github.com/cx-tal-miterani/flightdesk/internal/service"
	"github.com/cx-tal-miterani/flightdesk/models"
	"github.com/stretchr/testify/mock"
)

// MockBookingService is a mock implementation of BookingService
type MockBookingService struct {
	mock.Mock
}

var _ service.BookingService = (*MockBookingService)(nil)

func flights(args mock.Arguments) models.Flights {
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(models.Flights)
}

func (m *MockBookingService) Login(ctx context.Context, username, password string) (*service.Session, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Session), args.Error(1)
}

func (m *MockBookingService) Register(ctx context.Context, username, password string) error {
	args := m.Called(ctx, username, password)
	return args.Error(0)
}

func (m *MockBookingService) SearchFlights(ctx context.Context, sess *service.Session, departure, arrival string) (models.Flights, error) {
	args := m.Called(ctx, sess, departure, arrival)
	return flights(args), args.Error(1)
}

func (m *MockBookingService) SortResults(ctx context.Context, sess *service.Session, key service.SortKey) (models.Flights, error) {
	args := m.Called(ctx, sess, key)
	return flights(args), args.Error(1)
}

func (m *MockBookingService) Purchase(ctx context.Context, sess *service.Session, number string) (models.Flight, error) {
	args := m.Called(ctx, sess, number)
	return args.Get(0).(models.Flight), args.Error(1)
}

func (m *MockBookingService) Orders(ctx context.Context, sess *service.Session) (models.Flights, error) {
	args := m.Called(ctx, sess)
	return flights(args), args.Error(1)
}

func (m *MockBookingService) SortOrders(ctx context.Context, sess *service.Session, key service.SortKey) (models.Flights, error) {
	args := m.Called(ctx, sess, key)
	return flights(args), args.Error(1)
}

func (m *MockBookingService) CancelOrder(ctx context.Context, sess *service.Session, number string) (models.Flight, error) {
	args := m.Called(ctx, sess, number)
	return args.Get(0).(models.Flight), args.Error(1)
}

func (m *MockBookingService) Recharge(ctx context.Context, sess *service.Session, amount float64) (float64, error) {
	args := m.Called(ctx, sess, amount)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockBookingService) ChangePassword(ctx context.Context, sess *service.Session, password string) error {
	args := m.Called(ctx, sess, password)
	return args.Error(0)
}

func (m *MockBookingService) Flights(ctx context.Context, sess *service.Session) (models.Flights, error) {
	args := m.Called(ctx, sess)
	return flights(args), args.Error(1)
}

func (m *MockBookingService) SortFlights(ctx context.Context, sess *service.Session, key service.SortKey) (models.Flights, error) {
	args := m.Called(ctx, sess, key)
	return flights(args), args.Error(1)
}

func (m *MockBookingService) AddFlight(ctx context.Context, sess *service.Session, f models.Flight) error {
	args := m.Called(ctx, sess, f)
	return args.Error(0)
}

func (m *MockBookingService) DeleteFlight(ctx context.Context, sess *service.Session, number string) error {
	args := m.Called(ctx, sess, number)
	return args.Error(0)
}

func (m *MockBookingService) UpdateFlight(ctx context.Context, sess *service.Session, number string, field models.FlightField, value string) error {
	args := m.Called(ctx, sess, number, field, value)
	return args.Error(0)
}

func (m *MockBookingService) FlightReport(ctx context.Context, sess *service.Session) (report.FlightSummary, string, error) {
	args := m.Called(ctx, sess)
	return args.Get(0).(report.FlightSummary), args.String(1), args.Error(2)
}

func (m *MockBookingService) OrderReport(ctx context.Context, sess *service.Session) (report.OrderSummary, string, error) {
	args := m.Called(ctx, sess)
	return args.Get(0).(report.OrderSummary), args.String(1), args.Error(2)
}

func (m *MockBookingService) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
