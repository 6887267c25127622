package services

import (
	"time"

	"solconta/internal/metrics"
)

// dashboardService computes the dashboard figures over a user's full
// transaction history.
type dashboardService struct {
	transactions TransactionServicer
	location     *time.Location
	now          func() time.Time
}

// NewDashboardService creates a new DashboardServicer. "Today" is taken in
// loc, which defaults to UTC.
func NewDashboardService(transactions TransactionServicer, loc *time.Location) DashboardServicer {
	if loc == nil {
		loc = time.UTC
	}
	return &dashboardService{transactions: transactions, location: loc, now: time.Now}
}

// GetDashboard lists all of the user's transactions and derives the metrics.
func (s *dashboardService) GetDashboard(userID string) (*metrics.Dashboard, error) {
	txs, err := s.transactions.ListTransactions(userID, TransactionFilter{})
	if err != nil {
		return nil, err
	}
	dashboard := metrics.Compute(txs, s.now().In(s.location))
	return &dashboard, nil
}
