package batch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"collections-engine/internal/domain/customer"
	"collections-engine/internal/domain/dialer"
	"collections-engine/internal/event"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, nil))

const callbackURL = "https://collections.example.com/voice"

type MockRepository struct {
	mock.Mock
}

func (_m *MockRepository) Save(ctx context.Context, cust *customer.Customer) error {
	ret := _m.Called(ctx, cust)
	return ret.Error(0)
}

func (_m *MockRepository) FindByPhone(ctx context.Context, phone string) (*customer.Customer, error) {
	ret := _m.Called(ctx, phone)

	var r0 *customer.Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*customer.Customer)
	}

	return r0, ret.Error(1)
}

func (_m *MockRepository) FetchPending(ctx context.Context) ([]*customer.Customer, error) {
	ret := _m.Called(ctx)

	var r0 []*customer.Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*customer.Customer)
	}

	return r0, ret.Error(1)
}

func (_m *MockRepository) SetPaymentStatus(ctx context.Context, phone string, status customer.PaymentStatus) error {
	ret := _m.Called(ctx, phone, status)
	return ret.Error(0)
}

func (_m *MockRepository) SetLastCallDate(ctx context.Context, phone string, day time.Time) error {
	ret := _m.Called(ctx, phone, day)
	return ret.Error(0)
}

func (_m *MockRepository) MarkCalledToday(ctx context.Context, phone string, day time.Time) (bool, error) {
	ret := _m.Called(ctx, phone, day)
	return ret.Bool(0), ret.Error(1)
}

type MockVoiceGateway struct {
	mock.Mock
}

func (_m *MockVoiceGateway) PlaceCall(ctx context.Context, to, cbURL string) (string, error) {
	ret := _m.Called(ctx, to, cbURL)
	return ret.String(0), ret.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (_m *MockPublisher) PublishCustomerCreated(ctx context.Context, evt event.CustomerCreatedEvent) error {
	ret := _m.Called(ctx, evt)
	return ret.Error(0)
}

func (_m *MockPublisher) PublishCustomerPaid(ctx context.Context, evt event.CustomerPaidEvent) error {
	ret := _m.Called(ctx, evt)
	return ret.Error(0)
}

func (_m *MockPublisher) PublishCallDispatched(ctx context.Context, evt event.CallDispatchedEvent) error {
	ret := _m.Called(ctx, evt)
	return ret.Error(0)
}

func (_m *MockPublisher) PublishRunCompleted(ctx context.Context, evt event.RunCompletedEvent) error {
	ret := _m.Called(ctx, evt)
	return ret.Error(0)
}

func overdueCustomer(phone string, amount int64, overdueDays int) *customer.Customer {
	due := time.Now().AddDate(0, 0, -overdueDays)
	return &customer.Customer{
		Phone:         phone,
		Name:          "Test Customer",
		EMIAmount:     decimal.NewFromInt(amount),
		DueDate:       &due,
		PaymentStatus: customer.PaymentStatusPending,
	}
}

func newTestJob(repo customer.Repository, gateway dialer.VoiceGateway, pub event.Publisher) *DailyCallJob {
	selector := dialer.NewSelector(repo, logger)
	dispatcher := dialer.NewDispatcher(repo, gateway, callbackURL, logger)
	return NewDailyCallJob(selector, dispatcher, pub, logger)
}

func TestRunAggregatesOutcomes(t *testing.T) {
	mockRepo := new(MockRepository)
	mockGateway := new(MockVoiceGateway)
	mockPub := new(MockPublisher)
	job := newTestJob(mockRepo, mockGateway, mockPub)

	ctx := context.Background()
	today := customer.Day(time.Now())

	dialed := overdueCustomer("+911111111111", 3000, 10)
	raced := overdueCustomer("+912222222222", 2000, 5)
	racedFresh := overdueCustomer("+912222222222", 2000, 5)
	racedFresh.PaymentStatus = customer.PaymentStatusPaid
	broken := overdueCustomer("+913333333333", 1000, 2)

	mockRepo.On("FetchPending", mock.Anything).Return([]*customer.Customer{dialed, raced, broken}, nil)

	mockRepo.On("FindByPhone", mock.Anything, "+911111111111").Return(dialed, nil)
	mockGateway.On("PlaceCall", mock.Anything, "+911111111111", callbackURL).Return("CA1", nil)
	mockRepo.On("MarkCalledToday", mock.Anything, "+911111111111", today).Return(true, nil)

	mockRepo.On("FindByPhone", mock.Anything, "+912222222222").Return(racedFresh, nil)

	mockRepo.On("FindByPhone", mock.Anything, "+913333333333").Return(broken, nil)
	mockGateway.On("PlaceCall", mock.Anything, "+913333333333", callbackURL).Return("", errors.New("provider down"))

	mockPub.On("PublishCallDispatched", mock.Anything, mock.Anything).Return(nil)
	mockPub.On("PublishRunCompleted", mock.Anything, mock.Anything).Return(nil)

	summary := job.Run(ctx)

	assert.Equal(t, Summary{Called: 1, Skipped: 1, Failed: 1}, summary)
	mockRepo.AssertExpectations(t)
	mockGateway.AssertExpectations(t)
	mockPub.AssertNumberOfCalls(t, "PublishCallDispatched", 3)
	mockPub.AssertNumberOfCalls(t, "PublishRunCompleted", 1)
}

func TestRunContinuesPastFailures(t *testing.T) {
	mockRepo := new(MockRepository)
	mockGateway := new(MockVoiceGateway)
	mockPub := new(MockPublisher)
	job := newTestJob(mockRepo, mockGateway, mockPub)

	today := customer.Day(time.Now())
	first := overdueCustomer("+911111111111", 3000, 10)
	second := overdueCustomer("+912222222222", 2000, 5)

	mockRepo.On("FetchPending", mock.Anything).Return([]*customer.Customer{first, second}, nil)

	mockRepo.On("FindByPhone", mock.Anything, "+911111111111").Return(first, nil)
	mockGateway.On("PlaceCall", mock.Anything, "+911111111111", callbackURL).Return("", errors.New("busy"))

	mockRepo.On("FindByPhone", mock.Anything, "+912222222222").Return(second, nil)
	mockGateway.On("PlaceCall", mock.Anything, "+912222222222", callbackURL).Return("CA2", nil)
	mockRepo.On("MarkCalledToday", mock.Anything, "+912222222222", today).Return(true, nil)

	mockPub.On("PublishCallDispatched", mock.Anything, mock.Anything).Return(nil)
	mockPub.On("PublishRunCompleted", mock.Anything, mock.Anything).Return(nil)

	summary := job.Run(context.Background())

	assert.Equal(t, Summary{Called: 1, Failed: 1}, summary)
	mockGateway.AssertExpectations(t)
}

func TestRunWhenSelectionFails(t *testing.T) {
	mockRepo := new(MockRepository)
	mockGateway := new(MockVoiceGateway)
	mockPub := new(MockPublisher)
	job := newTestJob(mockRepo, mockGateway, mockPub)

	mockRepo.On("FetchPending", mock.Anything).Return(nil, errors.New("connection refused"))
	mockPub.On("PublishRunCompleted", mock.Anything, mock.Anything).Return(nil)

	summary := job.Run(context.Background())

	assert.Equal(t, Summary{}, summary, "a failed selection reports an empty run")
	mockGateway.AssertNotCalled(t, "PlaceCall", mock.Anything, mock.Anything, mock.Anything)
	mockPub.AssertNumberOfCalls(t, "PublishRunCompleted", 1)
}

func TestRunSecondSameDayPassIsNoOp(t *testing.T) {
	mockRepo := new(MockRepository)
	mockGateway := new(MockVoiceGateway)
	mockPub := new(MockPublisher)
	job := newTestJob(mockRepo, mockGateway, mockPub)

	today := customer.Day(time.Now())
	already := overdueCustomer("+911111111111", 3000, 10)
	already.LastCallDate = &today

	mockRepo.On("FetchPending", mock.Anything).Return([]*customer.Customer{already}, nil)
	mockPub.On("PublishRunCompleted", mock.Anything, mock.Anything).Return(nil)

	summary := job.Run(context.Background())

	assert.Equal(t, Summary{}, summary)
	mockGateway.AssertNotCalled(t, "PlaceCall", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunStopsAtCandidateBoundaryOnCancel(t *testing.T) {
	mockRepo := new(MockRepository)
	mockGateway := new(MockVoiceGateway)
	mockPub := new(MockPublisher)
	job := newTestJob(mockRepo, mockGateway, mockPub)

	candidates := []*customer.Customer{
		overdueCustomer("+911111111111", 3000, 10),
		overdueCustomer("+912222222222", 2000, 5),
	}
	mockRepo.On("FetchPending", mock.Anything).Return(candidates, nil)
	mockPub.On("PublishRunCompleted", mock.Anything, mock.Anything).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := job.Run(ctx)

	assert.Equal(t, Summary{}, summary)
	mockGateway.AssertNotCalled(t, "PlaceCall", mock.Anything, mock.Anything, mock.Anything)
}
