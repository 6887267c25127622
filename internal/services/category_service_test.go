package services

import (
	"testing"

	"solconta/internal/models"
	"solconta/internal/testutil"
)

func TestCreateCategory(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)

		cat, err := svc.CreateCategory(user.ID, models.CategoryInput{Name: " Comida ", Type: models.CategoryTypeExpense, Color: "#ef4444"})
		testutil.AssertNoError(t, err)

		if cat.ID == "" {
			t.Fatal("expected category ID")
		}
		if cat.Name != "Comida" {
			t.Errorf("expected trimmed name Comida, got %q", cat.Name)
		}
		if cat.Color != "#ef4444" {
			t.Errorf("expected color #ef4444, got %s", cat.Color)
		}
	})

	t.Run("default_color", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)

		cat, err := svc.CreateCategory(user.ID, models.CategoryInput{Name: "Sueldo", Type: models.CategoryTypeIncome})
		testutil.AssertNoError(t, err)
		if cat.Color != models.DefaultCategoryColor {
			t.Errorf("expected default color, got %s", cat.Color)
		}
	})

	t.Run("duplicate_name_same_type", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateCategory(user.ID, models.CategoryInput{Name: "Otros", Type: models.CategoryTypeExpense})
		testutil.AssertNoError(t, err)

		_, err = svc.CreateCategory(user.ID, models.CategoryInput{Name: "Otros", Type: models.CategoryTypeExpense})
		testutil.AssertAppError(t, err, "DUPLICATE_CATEGORY")
	})

	t.Run("same_name_other_type", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateCategory(user.ID, models.CategoryInput{Name: "Otros", Type: models.CategoryTypeExpense})
		testutil.AssertNoError(t, err)
		_, err = svc.CreateCategory(user.ID, models.CategoryInput{Name: "Otros", Type: models.CategoryTypeIncome})
		testutil.AssertNoError(t, err)
	})

	t.Run("empty_name", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateCategory(user.ID, models.CategoryInput{Name: "  ", Type: models.CategoryTypeExpense})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("invalid_type", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateCategory(user.ID, models.CategoryInput{Name: "Ahorro", Type: "savings"})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestListCategories(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewCategoryService(db)
	user := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)

	for _, in := range []models.CategoryInput{
		{Name: "Transporte", Type: models.CategoryTypeExpense},
		{Name: "Comida", Type: models.CategoryTypeExpense},
		{Name: "Sueldo", Type: models.CategoryTypeIncome},
	} {
		_, err := svc.CreateCategory(user.ID, in)
		testutil.AssertNoError(t, err)
	}
	testutil.CreateTestCategory(t, db, other.ID, models.CategoryTypeExpense)

	t.Run("all_ordered_by_name", func(t *testing.T) {
		cats, err := svc.ListCategories(user.ID, nil)
		testutil.AssertNoError(t, err)
		if len(cats) != 3 {
			t.Fatalf("expected 3 categories, got %d", len(cats))
		}
		if cats[0].Name != "Comida" || cats[1].Name != "Sueldo" || cats[2].Name != "Transporte" {
			t.Errorf("unexpected order: %s, %s, %s", cats[0].Name, cats[1].Name, cats[2].Name)
		}
	})

	t.Run("by_type", func(t *testing.T) {
		income := models.CategoryTypeIncome
		cats, err := svc.ListCategories(user.ID, &income)
		testutil.AssertNoError(t, err)
		if len(cats) != 1 || cats[0].Name != "Sueldo" {
			t.Errorf("expected only Sueldo, got %+v", cats)
		}
	})

	t.Run("invalid_type", func(t *testing.T) {
		bad := models.CategoryType("savings")
		_, err := svc.ListCategories(user.ID, &bad)
		testutil.AssertAppError(t, err, "INVALID_CATEGORY_TYPE")
	})

	t.Run("empty_is_not_nil", func(t *testing.T) {
		fresh := testutil.CreateTestUser(t, db)
		cats, err := svc.ListCategories(fresh.ID, nil)
		testutil.AssertNoError(t, err)
		if cats == nil || len(cats) != 0 {
			t.Errorf("expected empty slice, got %v", cats)
		}
	})
}

func TestDeleteCategory(t *testing.T) {
	t.Run("detaches_transactions", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)
		tx := testutil.CreateTestTransaction(t, db, user.ID, models.TransactionTypeExpense, "40", testutil.WithCategory(cat.ID))

		testutil.AssertNoError(t, svc.DeleteCategory(user.ID, cat.ID))

		var count int64
		db.Model(&models.Category{}).Where("id = ?", cat.ID).Count(&count)
		if count != 0 {
			t.Error("category should be hard-deleted")
		}

		var stored models.Transaction
		if err := db.First(&stored, "id = ?", tx.ID).Error; err != nil {
			t.Fatalf("transaction should survive category deletion: %v", err)
		}
		if stored.CategoryID != nil {
			t.Errorf("expected category_id to be cleared, got %v", *stored.CategoryID)
		}
	})

	t.Run("other_users_category", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		owner := testutil.CreateTestUser(t, db)
		intruder := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, owner.ID, models.CategoryTypeExpense)

		err := svc.DeleteCategory(intruder.ID, cat.ID)
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")

		_, err = svc.GetCategory(owner.ID, cat.ID)
		testutil.AssertNoError(t, err)
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)

		err := svc.DeleteCategory(user.ID, "0192d3e4-0000-7000-8000-000000000000")
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})
}
