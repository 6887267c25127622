package services

import (
	"testing"
	"time"

	"solconta/internal/models"
	"solconta/internal/testutil"
)

func TestGetDashboard(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	user := testutil.CreateTestUser(t, db)
	food := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)

	testutil.CreateTestTransaction(t, db, user.ID, models.TransactionTypeIncome, "3000", testutil.OnDate("2026-02-20"))
	testutil.CreateTestTransaction(t, db, user.ID, models.TransactionTypeExpense, "150", testutil.OnDate("2026-02-21"), testutil.WithCategory(food.ID))
	testutil.CreateTestTransaction(t, db, user.ID, models.TransactionTypeExpense, "50", testutil.OnDate("2026-02-22"))

	lima := time.FixedZone("PET", -5*3600)
	svc := NewDashboardService(NewTransactionService(db), lima).(*dashboardService)
	// 03:00 UTC on Feb 23 is still Feb 22 in Lima.
	svc.now = func() time.Time { return time.Date(2026, time.February, 23, 3, 0, 0, 0, time.UTC) }

	dash, err := svc.GetDashboard(user.ID)
	testutil.AssertNoError(t, err)

	testutil.AssertAmount(t, dash.Balance.TotalBalance, "2800")
	if dash.TransactionCount != 3 {
		t.Errorf("expected 3 transactions, got %d", dash.TransactionCount)
	}
	if len(dash.TopCategories) != 1 || dash.TopCategories[0].Percentage != 75 {
		t.Errorf("unexpected top categories: %+v", dash.TopCategories)
	}
	if last := dash.WeeklyTrend[len(dash.WeeklyTrend)-1]; last.Date.String() != "2026-02-22" {
		t.Errorf("trend should end on the Lima day, got %s", last.Date)
	}
}
