package server_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"solconta/internal/calendar"
	"solconta/internal/config"
	"solconta/internal/logger"
	"solconta/internal/mailer"
	"solconta/internal/oauth"
	"solconta/internal/server"
	"solconta/internal/testutil"
	"solconta/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test", "")
	validator.Register()
}

// testApp holds the full application stack backed by an isolated database.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
	Mail   *mailer.LogSender
}

func testConfig() *config.Config {
	return &config.Config{
		Env:               "test",
		AppURL:            "http://app.test",
		JWTSecret:         "integration-secret",
		JWTExpirationDur:  time.Hour,
		AutoConfirm:       true,
		AuthRatePerMinute: 1000,
		Location:          time.UTC,
	}
}

func setupApp(t *testing.T, mutate ...func(*config.Config)) *testApp {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}
	config.Set(cfg)

	db := testutil.SetupIsolatedDB(t)
	mail := &mailer.LogSender{}
	router := server.NewRouter(cfg, db, server.Options{Mailer: mail, Providers: oauth.Registry{}})
	return &testApp{DB: db, Router: router, Mail: mail}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := parseJSON(t, rec)
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %s", rec.Body.String())
	}
	return errObj["code"].(string)
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func mustDecimal(t *testing.T, v interface{}) decimal.Decimal {
	t.Helper()
	s, ok := v.(string)
	if !ok {
		t.Fatalf("expected decimal string, got %T %v", v, v)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("invalid decimal %q: %v", s, err)
	}
	return d
}

// signUp registers a user with auto-confirm on and returns its tokens.
func (app *testApp) signUp(t *testing.T, email, password string) (accessToken, refreshToken string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	rec := app.request("POST", "/api/v1/auth/signup", body, "")
	requireStatus(t, rec, http.StatusCreated)

	result := parseJSON(t, rec)
	session, ok := result["session"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected a session on sign-up, got %s", rec.Body.String())
	}
	return session["access_token"].(string), session["refresh_token"].(string)
}

// login returns the access and refresh tokens of a password sign-in.
func (app *testApp) login(t *testing.T, email, password string) (accessToken, refreshToken string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	rec := app.request("POST", "/api/v1/auth/login", body, "")
	requireStatus(t, rec, http.StatusOK)
	result := parseJSON(t, rec)
	return result["access_token"].(string), result["refresh_token"].(string)
}

func (app *testApp) createCategory(t *testing.T, token, name, catType string) string {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"type":%q,"color":"#16a34a"}`, name, catType)
	rec := app.request("POST", "/api/v1/categories", body, token)
	requireStatus(t, rec, http.StatusCreated)
	return parseJSON(t, rec)["category"].(map[string]interface{})["id"].(string)
}

func (app *testApp) createTransaction(t *testing.T, token, body string) map[string]interface{} {
	t.Helper()
	rec := app.request("POST", "/api/v1/transactions", body, token)
	requireStatus(t, rec, http.StatusCreated)
	return parseJSON(t, rec)["transaction"].(map[string]interface{})
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("invalid link %q: %v", link, err)
	}
	token := u.Query().Get("token")
	if token == "" {
		t.Fatalf("link %q carries no token", link)
	}
	return token
}

func TestHealthAndDocs(t *testing.T) {
	app := setupApp(t)

	rec := app.request("GET", "/api/health", "", "")
	requireStatus(t, rec, http.StatusOK)
	if parseJSON(t, rec)["status"] != "ok" {
		t.Errorf("unexpected health body: %s", rec.Body.String())
	}

	rec = app.request("GET", "/swagger/doc.json", "", "")
	requireStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "SolConta API") {
		t.Error("swagger document should carry the API title")
	}
}

func TestCORSPreflight(t *testing.T) {
	app := setupApp(t)

	rec := app.request("OPTIONS", "/api/v1/transactions", "", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS headers on preflight")
	}
}

func TestAuthFlow_SignUpLoginRefreshLogout(t *testing.T) {
	app := setupApp(t)

	access, _ := app.signUp(t, "flow@test.com", "password123")
	if access == "" {
		t.Fatal("expected an access token from sign-up")
	}

	loginAccess, loginRefresh := app.login(t, "flow@test.com", "password123")

	rec := app.request("GET", "/api/v1/profile", "", loginAccess)
	requireStatus(t, rec, http.StatusOK)
	user := parseJSON(t, rec)["user"].(map[string]interface{})
	if user["email"] != "flow@test.com" {
		t.Errorf("expected email flow@test.com, got %v", user["email"])
	}

	// Refresh rotates the refresh token.
	rec = app.request("POST", "/api/v1/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, loginRefresh), "")
	requireStatus(t, rec, http.StatusOK)
	refreshed := parseJSON(t, rec)
	newAccess := refreshed["access_token"].(string)
	newRefresh := refreshed["refresh_token"].(string)
	if refreshed["token_type"] != "bearer" {
		t.Errorf("expected bearer token type, got %v", refreshed["token_type"])
	}

	rec = app.request("POST", "/api/v1/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, loginRefresh), "")
	requireStatus(t, rec, http.StatusUnauthorized)

	rec = app.request("GET", "/api/v1/profile", "", newAccess)
	requireStatus(t, rec, http.StatusOK)

	// Logout revokes the current refresh token.
	rec = app.request("POST", "/api/v1/auth/logout", "", newAccess)
	requireStatus(t, rec, http.StatusOK)

	rec = app.request("POST", "/api/v1/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, newRefresh), "")
	requireStatus(t, rec, http.StatusUnauthorized)
}

func TestAuthFlow_EmailConfirmation(t *testing.T) {
	app := setupApp(t, func(c *config.Config) { c.AutoConfirm = false })

	rec := app.request("POST", "/api/v1/auth/signup", `{"email":"confirm@test.com","password":"password123"}`, "")
	requireStatus(t, rec, http.StatusCreated)
	if parseJSON(t, rec)["session"] != nil {
		t.Fatal("no session should be issued before confirmation")
	}

	rec = app.request("POST", "/api/v1/auth/login", `{"email":"confirm@test.com","password":"password123"}`, "")
	requireStatus(t, rec, http.StatusUnauthorized)
	if code := errorCode(t, rec); code != "EMAIL_NOT_CONFIRMED" {
		t.Errorf("expected EMAIL_NOT_CONFIRMED, got %s", code)
	}

	msg, ok := app.Mail.Last()
	if !ok {
		t.Fatal("expected a confirmation email")
	}
	if !strings.HasPrefix(msg.Link, "http://app.test/auth/confirm?") {
		t.Errorf("unexpected confirmation link %q", msg.Link)
	}

	rec = app.request("POST", "/api/v1/auth/confirm", fmt.Sprintf(`{"token":%q}`, tokenFromLink(t, msg.Link)), "")
	requireStatus(t, rec, http.StatusOK)

	app.login(t, "confirm@test.com", "password123")
}

func TestAuthFlow_PasswordRecovery(t *testing.T) {
	app := setupApp(t)
	app.signUp(t, "recover@test.com", "password123")

	rec := app.request("POST", "/api/v1/auth/recover", `{"email":"recover@test.com"}`, "")
	requireStatus(t, rec, http.StatusOK)

	msg, ok := app.Mail.Last()
	if !ok {
		t.Fatal("expected a recovery email")
	}

	rec = app.request("POST", "/api/v1/auth/recover/verify", fmt.Sprintf(`{"token":%q}`, tokenFromLink(t, msg.Link)), "")
	requireStatus(t, rec, http.StatusOK)
	recoveryAccess := parseJSON(t, rec)["access_token"].(string)

	rec = app.request("PUT", "/api/v1/auth/password", `{"password":"password123"}`, recoveryAccess)
	requireStatus(t, rec, http.StatusUnprocessableEntity)
	if code := errorCode(t, rec); code != "SAME_PASSWORD" {
		t.Errorf("expected SAME_PASSWORD, got %s", code)
	}

	rec = app.request("PUT", "/api/v1/auth/password", `{"password":"nueva-clave"}`, recoveryAccess)
	requireStatus(t, rec, http.StatusOK)

	rec = app.request("POST", "/api/v1/auth/login", `{"email":"recover@test.com","password":"password123"}`, "")
	requireStatus(t, rec, http.StatusUnauthorized)
	app.login(t, "recover@test.com", "nueva-clave")
}

func TestAuthFlow_RecoverUnknownEmailIsSilent(t *testing.T) {
	app := setupApp(t)

	rec := app.request("POST", "/api/v1/auth/recover", `{"email":"nobody@test.com"}`, "")
	requireStatus(t, rec, http.StatusOK)
	if len(app.Mail.Sent()) != 0 {
		t.Error("no email should be sent for an unknown account")
	}
}

func TestAuthFlow_OAuthProviderDisabled(t *testing.T) {
	app := setupApp(t)

	rec := app.request("GET", "/api/v1/auth/oauth/google", "", "")
	requireStatus(t, rec, http.StatusBadRequest)
	if code := errorCode(t, rec); code != "OAUTH_UNAVAILABLE" {
		t.Errorf("expected OAUTH_UNAVAILABLE, got %s", code)
	}
}

func TestAuthRateLimit(t *testing.T) {
	app := setupApp(t, func(c *config.Config) { c.AuthRatePerMinute = 2 })

	for i := 0; i < 2; i++ {
		rec := app.request("POST", "/api/v1/auth/login", `{"email":"x@test.com","password":"password123"}`, "")
		if rec.Code == http.StatusTooManyRequests {
			t.Fatalf("request %d should not be throttled", i+1)
		}
	}

	rec := app.request("POST", "/api/v1/auth/login", `{"email":"x@test.com","password":"password123"}`, "")
	requireStatus(t, rec, http.StatusTooManyRequests)
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header")
	}
	if code := errorCode(t, rec); code != "RATE_LIMITED" {
		t.Errorf("expected RATE_LIMITED, got %s", code)
	}

	// Refresh is not throttled.
	rec = app.request("POST", "/api/v1/auth/refresh", `{"refresh_token":"garbage"}`, "")
	requireStatus(t, rec, http.StatusUnauthorized)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	app := setupApp(t)

	for _, path := range []string{"/api/v1/transactions", "/api/v1/categories", "/api/v1/dashboard", "/api/v1/profile"} {
		rec := app.request("GET", path, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestTransactionFlow(t *testing.T) {
	app := setupApp(t)
	token, _ := app.signUp(t, "tx@test.com", "password123")

	today := calendar.Today(time.UTC)
	yesterday := today.AddDays(-1)

	salaryID := app.createCategory(t, token, "Sueldo", "income")
	foodID := app.createCategory(t, token, "Comida", "expense")

	app.createTransaction(t, token, fmt.Sprintf(
		`{"type":"income","amount":"1000","description":"Sueldo octubre","category_id":%q,"transaction_date":%q}`,
		salaryID, yesterday))
	lunch := app.createTransaction(t, token, fmt.Sprintf(
		`{"type":"expense","amount":"25.50","description":"Almuerzo","category_id":%q,"transaction_date":%q}`,
		foodID, today))
	app.createTransaction(t, token, fmt.Sprintf(
		`{"type":"expense","amount":"74.50","description":"Taxi","transaction_date":%q}`, today))

	// An income category cannot tag an expense.
	rec := app.request("POST", "/api/v1/transactions", fmt.Sprintf(
		`{"type":"expense","amount":"5","description":"Error","category_id":%q,"transaction_date":%q}`,
		salaryID, today), token)
	requireStatus(t, rec, http.StatusBadRequest)
	if code := errorCode(t, rec); code != "CATEGORY_TYPE_MISMATCH" {
		t.Errorf("expected CATEGORY_TYPE_MISMATCH, got %s", code)
	}

	// Validation failures never create rows.
	rec = app.request("POST", "/api/v1/transactions", fmt.Sprintf(
		`{"type":"expense","amount":"0","description":"Nada","transaction_date":%q}`, today), token)
	requireStatus(t, rec, http.StatusBadRequest)

	rec = app.request("GET", "/api/v1/transactions?type=expense", "", token)
	requireStatus(t, rec, http.StatusOK)
	page := parseJSON(t, rec)
	if page["total_items"].(float64) != 2 {
		t.Fatalf("expected 2 expenses, got %v", page["total_items"])
	}

	rec = app.request("GET", "/api/v1/transactions?q=almu", "", token)
	requireStatus(t, rec, http.StatusOK)
	data := parseJSON(t, rec)["data"].([]interface{})
	if len(data) != 1 || data[0].(map[string]interface{})["id"] != lunch["id"] {
		t.Fatalf("expected only the lunch row, got %v", data)
	}
	joined := data[0].(map[string]interface{})["category"].(map[string]interface{})
	if joined["name"] != "Comida" {
		t.Errorf("expected the joined category, got %v", joined)
	}

	// Full replacement edit.
	lunchID := lunch["id"].(string)
	rec = app.request("PUT", "/api/v1/transactions/"+lunchID, fmt.Sprintf(
		`{"type":"expense","amount":"30","description":"Almuerzo y postre","category_id":%q,"transaction_date":%q,"notes":"con Ana"}`,
		foodID, today), token)
	requireStatus(t, rec, http.StatusOK)
	edited := parseJSON(t, rec)["transaction"].(map[string]interface{})
	if edited["description"] != "Almuerzo y postre" || edited["notes"] != "con Ana" {
		t.Errorf("edit not applied: %v", edited)
	}

	rec = app.request("GET", "/api/v1/dashboard", "", token)
	requireStatus(t, rec, http.StatusOK)
	dash := parseJSON(t, rec)["dashboard"].(map[string]interface{})
	balance := dash["balance"].(map[string]interface{})
	if got := mustDecimal(t, balance["total_balance"]); !got.Equal(decimal.RequireFromString("895.5")) {
		t.Errorf("expected balance 895.5, got %s", got)
	}
	if dash["transaction_count"].(float64) != 3 {
		t.Errorf("expected 3 transactions, got %v", dash["transaction_count"])
	}
	trend := dash["weekly_trend"].([]interface{})
	if len(trend) != 7 {
		t.Fatalf("expected 7 trend buckets, got %d", len(trend))
	}
	last := trend[6].(map[string]interface{})
	if last["date"] != today.String() {
		t.Errorf("last bucket should be today, got %v", last["date"])
	}
	if got := mustDecimal(t, last["expense"]); !got.Equal(decimal.RequireFromString("104.5")) {
		t.Errorf("expected today's expense 104.5, got %s", got)
	}
	top := dash["top_categories"].([]interface{})
	if len(top) != 1 || top[0].(map[string]interface{})["name"] != "Comida" {
		t.Fatalf("expected Comida as the only top category, got %v", top)
	}
	// 30 of 104.5 is 28.7%.
	if top[0].(map[string]interface{})["percentage"].(float64) != 29 {
		t.Errorf("expected 29%%, got %v", top[0].(map[string]interface{})["percentage"])
	}

	// Deleting the category leaves the transaction uncategorized.
	rec = app.request("DELETE", "/api/v1/categories/"+foodID, "", token)
	requireStatus(t, rec, http.StatusOK)

	rec = app.request("GET", "/api/v1/transactions/"+lunchID, "", token)
	requireStatus(t, rec, http.StatusOK)
	after := parseJSON(t, rec)["transaction"].(map[string]interface{})
	if after["category_id"] != nil {
		t.Errorf("expected category_id to be nulled, got %v", after["category_id"])
	}

	rec = app.request("GET", "/api/v1/dashboard", "", token)
	requireStatus(t, rec, http.StatusOK)
	dash = parseJSON(t, rec)["dashboard"].(map[string]interface{})
	if n := len(dash["top_categories"].([]interface{})); n != 0 {
		t.Errorf("expected no top categories after deletion, got %d", n)
	}

	rec = app.request("DELETE", "/api/v1/transactions/"+lunchID, "", token)
	requireStatus(t, rec, http.StatusOK)
	rec = app.request("GET", "/api/v1/transactions/"+lunchID, "", token)
	requireStatus(t, rec, http.StatusNotFound)
}

func TestUserIsolation(t *testing.T) {
	app := setupApp(t)
	ownerToken, _ := app.signUp(t, "owner@test.com", "password123")
	otherToken, _ := app.signUp(t, "other@test.com", "password123")

	tx := app.createTransaction(t, ownerToken, fmt.Sprintf(
		`{"type":"income","amount":"10","description":"Propina","transaction_date":%q}`, calendar.Today(time.UTC)))
	id := tx["id"].(string)

	rec := app.request("GET", "/api/v1/transactions/"+id, "", otherToken)
	requireStatus(t, rec, http.StatusNotFound)

	rec = app.request("DELETE", "/api/v1/transactions/"+id, "", otherToken)
	requireStatus(t, rec, http.StatusNotFound)

	rec = app.request("GET", "/api/v1/transactions", "", otherToken)
	requireStatus(t, rec, http.StatusOK)
	if parseJSON(t, rec)["total_items"].(float64) != 0 {
		t.Error("another user's rows must not be listed")
	}
}
