package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "solconta/internal/errors"
	"solconta/internal/metrics"
	"solconta/internal/models"
	"solconta/internal/services"
)

const testCategoryID = "0192d3e4-5b6a-7c8d-9e0f-333333333333"

type mockCategoryService struct {
	listCategoriesFn func(userID string, categoryType *models.CategoryType) ([]models.Category, error)
	createCategoryFn func(userID string, input models.CategoryInput) (*models.Category, error)
	deleteCategoryFn func(userID, categoryID string) error
}

var _ services.CategoryServicer = (*mockCategoryService)(nil)

func (m *mockCategoryService) ListCategories(userID string, categoryType *models.CategoryType) ([]models.Category, error) {
	if m.listCategoriesFn != nil {
		return m.listCategoriesFn(userID, categoryType)
	}
	return []models.Category{}, nil
}

func (m *mockCategoryService) GetCategory(_, categoryID string) (*models.Category, error) {
	return &models.Category{Base: models.Base{ID: categoryID}}, nil
}

func (m *mockCategoryService) CreateCategory(userID string, input models.CategoryInput) (*models.Category, error) {
	if m.createCategoryFn != nil {
		return m.createCategoryFn(userID, input)
	}
	return &models.Category{Base: models.Base{ID: testCategoryID}, UserID: userID, Name: input.Name, Type: input.Type}, nil
}

func (m *mockCategoryService) DeleteCategory(userID, categoryID string) error {
	if m.deleteCategoryFn != nil {
		return m.deleteCategoryFn(userID, categoryID)
	}
	return nil
}

type mockDashboardService struct {
	dashboard *metrics.Dashboard
	err       error
}

func (m *mockDashboardService) GetDashboard(_ string) (*metrics.Dashboard, error) {
	return m.dashboard, m.err
}

func setupCategoryRouter(handler *CategoryHandler) *gin.Engine {
	r := gin.New()
	g := r.Group("/categories", injectUserID(testUserID))
	g.GET("", handler.ListCategories)
	g.POST("", handler.CreateCategory)
	g.DELETE("/:id", handler.DeleteCategory)
	return r
}

func TestCategoryHandler_List(t *testing.T) {
	var gotType *models.CategoryType
	svc := &mockCategoryService{
		listCategoriesFn: func(_ string, categoryType *models.CategoryType) ([]models.Category, error) {
			gotType = categoryType
			return []models.Category{{Base: models.Base{ID: testCategoryID}, Name: "Comida", Type: models.CategoryTypeExpense}}, nil
		},
	}
	r := setupCategoryRouter(NewCategoryHandler(svc, &mockAuditService{}))

	rec := doRequest(r, "GET", "/categories?type=expense", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotType == nil || *gotType != models.CategoryTypeExpense {
		t.Errorf("expected expense filter, got %v", gotType)
	}
	cats := parseJSON(t, rec)["categories"].([]interface{})
	if len(cats) != 1 {
		t.Errorf("expected 1 category, got %d", len(cats))
	}

	rec = doRequest(r, "GET", "/categories?type=savings", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCategoryHandler_Create(t *testing.T) {
	t.Run("returns 201", func(t *testing.T) {
		audit := &mockAuditService{}
		r := setupCategoryRouter(NewCategoryHandler(&mockCategoryService{}, audit))

		rec := doRequest(r, "POST", "/categories", `{"name":"Comida","type":"expense","color":"#ef4444"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		cat := parseJSON(t, rec)["category"].(map[string]interface{})
		if cat["name"] != "Comida" {
			t.Errorf("unexpected category %v", cat)
		}
		if len(audit.actions) != 1 || audit.actions[0] != "CREATE category" {
			t.Errorf("unexpected audit entries %v", audit.actions)
		}
	})

	t.Run("duplicate is 409", func(t *testing.T) {
		svc := &mockCategoryService{
			createCategoryFn: func(_ string, _ models.CategoryInput) (*models.Category, error) {
				return nil, apperrors.ErrDuplicateCategory
			},
		}
		r := setupCategoryRouter(NewCategoryHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/categories", `{"name":"Comida","type":"expense"}`)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "DUPLICATE_CATEGORY")
	})
}

func TestCategoryHandler_Delete(t *testing.T) {
	var gotID string
	svc := &mockCategoryService{
		deleteCategoryFn: func(_, categoryID string) error {
			gotID = categoryID
			if categoryID != testCategoryID {
				return apperrors.ErrCategoryNotFound
			}
			return nil
		},
	}
	r := setupCategoryRouter(NewCategoryHandler(svc, &mockAuditService{}))

	rec := doRequest(r, "DELETE", "/categories/"+testCategoryID, "")
	if rec.Code != http.StatusOK || gotID != testCategoryID {
		t.Fatalf("expected 200 for %s, got %d (%s)", testCategoryID, rec.Code, gotID)
	}

	rec = doRequest(r, "DELETE", "/categories/0192d3e4-5b6a-7c8d-9e0f-444444444444", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDashboardHandler(t *testing.T) {
	dash := metrics.Compute(nil, mustTime(t, "2026-03-01T12:00:00Z"))
	r := gin.New()
	r.GET("/dashboard", injectUserID(testUserID), NewDashboardHandler(&mockDashboardService{dashboard: &dash}).GetDashboard)

	rec := doRequest(r, "GET", "/dashboard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := parseJSON(t, rec)["dashboard"].(map[string]interface{})
	trend := body["weekly_trend"].([]interface{})
	if len(trend) != 7 {
		t.Errorf("expected 7 trend days, got %d", len(trend))
	}
	if cats := body["top_categories"].([]interface{}); len(cats) != 0 {
		t.Errorf("expected no categories, got %v", cats)
	}

	failing := gin.New()
	failing.GET("/dashboard", injectUserID(testUserID), NewDashboardHandler(&mockDashboardService{err: apperrors.ErrInternalServer}).GetDashboard)
	rec = doRequest(failing, "GET", "/dashboard", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("bad time %q: %v", s, err)
	}
	return v
}
