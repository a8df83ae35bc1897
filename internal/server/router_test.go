package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-pos-backend/internal/auth"
	"go-pos-backend/internal/catalog"
	"go-pos-backend/internal/config"
	"go-pos-backend/internal/customers"
	"go-pos-backend/internal/handlers"
	"go-pos-backend/internal/inventory"
	"go-pos-backend/internal/lock"
	"go-pos-backend/internal/loyalty"
	"go-pos-backend/internal/models"
	"go-pos-backend/internal/reporting"
	"go-pos-backend/internal/sales"
	"go-pos-backend/internal/staff"
	"go-pos-backend/internal/testutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() { gin.SetMode(gin.TestMode) }

type testServer struct {
	t      *testing.T
	router *gin.Engine
	db     *gorm.DB
	issuer *auth.Issuer
}

func newTestServer(t *testing.T, allowRegistration bool) *testServer {
	t.Helper()
	db := testutil.NewDB(t)
	log := zap.NewNop()
	locks := lock.NewManager()
	store := catalog.NewStore(db, log)
	issuer := auth.NewIssuer("router-test", time.Hour)

	h := handlers.New(handlers.Deps{
		Catalog:   store,
		Inventory: inventory.NewLedger(db, log, nil),
		Loyalty:   loyalty.NewLedger(db, log, locks),
		Sales:     sales.NewEngine(db, locks, log, nil),
		Reports:   reporting.NewReporter(db, log),
		Customers: customers.NewStore(db, locks, log),
		Staff:     staff.NewDirectory(db, log),
		Issuer:    issuer,
		Log:       log,
	})
	cfg := &config.Config{
		Server: config.ServerConfig{CORSOrigins: []string{"http://localhost:5173"}},
		Auth:   config.AuthConfig{AllowRegistration: allowRegistration},
		App:    config.AppConfig{Environment: "test"},
	}
	return &testServer{t: t, router: NewRouter(cfg, h, log), db: db, issuer: issuer}
}

// token issues a token for a freshly seeded staff member with the given role.
func (s *testServer) token(username, role string) (string, *models.Staff) {
	s.t.Helper()
	st := testutil.Staff(s.t, s.db, username,
		role == models.RoleCashier, role == models.RoleManager, role == models.RoleAdmin)
	tok, err := s.issuer.Generate(st.ID, st.Username, st.Role())
	if err != nil {
		s.t.Fatalf("token: %v", err)
	}
	return tok, st
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	closed := newTestServer(t, false)
	if w := closed.do(http.MethodPost, "/register", "", gin.H{"username": "owner", "password": "password123"}); w.Code != http.StatusNotFound {
		t.Errorf("registration should be closed, got %d", w.Code)
	}

	s := newTestServer(t, true)
	if w := s.do(http.MethodPost, "/register", "", gin.H{"username": "owner", "password": "password123"}); w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}

	if w := s.do(http.MethodPost, "/login", "", gin.H{"username": "owner", "password": "wrong-one"}); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: %d", w.Code)
	}
	w := s.do(http.MethodPost, "/api/token", "", gin.H{"username": "owner", "password": "password123"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	var login struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	decode(t, w, &login)
	if login.Role != models.RoleAdmin || login.Token == "" {
		t.Fatalf("unexpected login: %+v", login)
	}

	me := s.do(http.MethodGet, "/api/me", login.Token, nil)
	if me.Code != http.StatusOK || !strings.Contains(me.Body.String(), `"username":"owner"`) {
		t.Errorf("me: %d %s", me.Code, me.Body.String())
	}
}

func TestRoleGuards(t *testing.T) {
	s := newTestServer(t, false)
	cashier, _ := s.token("till1", models.RoleCashier)
	manager, _ := s.token("boss", models.RoleManager)
	plain, _ := s.token("helper", models.RoleStaff)
	admin, _ := s.token("root", models.RoleAdmin)

	product := gin.H{"name": "Rice 5kg", "price": "4500", "cost_price": "4000", "stock": 20, "barcode": "6151100"}

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"anonymous", http.MethodGet, "/api/products", "", nil, http.StatusUnauthorized},
		{"cashier reads products", http.MethodGet, "/api/products", cashier, nil, http.StatusOK},
		{"cashier cannot add product", http.MethodPost, "/api/products", cashier, product, http.StatusForbidden},
		{"manager adds product", http.MethodPost, "/api/products", manager, product, http.StatusCreated},
		{"staff cannot sell", http.MethodGet, "/api/sales", plain, nil, http.StatusForbidden},
		{"admin passes cashier check", http.MethodGet, "/api/sales", admin, nil, http.StatusOK},
		{"manager cannot delete staff", http.MethodDelete, "/api/staff/1", manager, nil, http.StatusForbidden},
		{"staff sees own dashboard", http.MethodGet, "/api/user-today-performance", plain, nil, http.StatusOK},
		{"assistant not configured", http.MethodPost, "/api/ask", admin, gin.H{"message": "hi"}, http.StatusServiceUnavailable},
		{"unknown api path", http.MethodGet, "/api/nope", admin, nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(tt.method, tt.path, tt.token, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestCheckoutOverHTTP(t *testing.T) {
	s := newTestServer(t, false)
	cashier, till := s.token("till1", models.RoleCashier)
	rice := testutil.Product(t, s.db, "Rice", "10.00", 10)

	sale := gin.H{
		"items":        []gin.H{{"product_id": rice.ID, "quantity": 3}},
		"total_amount": "30.00",
		"paid_amount":  "50.00",
		"change_given": "20.00",
	}
	w := s.do(http.MethodPost, "/api/sales", cashier, sale)
	if w.Code != http.StatusCreated {
		t.Fatalf("sale: %d %s", w.Code, w.Body.String())
	}
	var view sales.View
	decode(t, w, &view)
	if view.Cashier != till.Username || len(view.Items) != 1 || view.Items[0].ProductName != "Rice" {
		t.Errorf("unexpected sale view: %+v", view)
	}

	sale["items"] = []gin.H{{"product_id": rice.ID, "quantity": 8}}
	sale["total_amount"], sale["paid_amount"], sale["change_given"] = "80.00", "80.00", "0"
	w = s.do(http.MethodPost, "/api/sales", cashier, sale)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "Available: 7, Requested: 8") {
		t.Errorf("oversell: %d %s", w.Code, w.Body.String())
	}

	quote := s.do(http.MethodPost, "/api/sales/quote", cashier, gin.H{"items": []gin.H{{"product_id": rice.ID, "quantity": 2}}})
	if quote.Code != http.StatusOK || !strings.Contains(quote.Body.String(), `"total_amount":"20"`) {
		t.Errorf("quote: %d %s", quote.Code, quote.Body.String())
	}

	restock := s.do(http.MethodPost, "/api/restock", cashier, gin.H{"product_id": rice.ID, "quantity": 5})
	if restock.Code != http.StatusOK || !strings.Contains(restock.Body.String(), `"stock":12`) {
		t.Errorf("restock: %d %s", restock.Code, restock.Body.String())
	}
}

func TestSalesReportScope(t *testing.T) {
	s := newTestServer(t, false)
	ana, anaStaff := s.token("ana", models.RoleCashier)
	_, boStaff := s.token("bo", models.RoleCashier)
	manager, _ := s.token("boss", models.RoleManager)

	for _, cashier := range []*models.Staff{anaStaff, boStaff, boStaff} {
		id := cashier.ID
		s.db.Create(&models.SaleTransaction{CashierID: &id, TotalAmount: testutil.D("5"), PaidAmount: testutil.D("5"), ChangeGiven: testutil.D("0")})
	}

	var rep reporting.SalesReport
	w := s.do(http.MethodGet, "/api/sales-report", ana, nil)
	decode(t, w, &rep)
	if len(rep.Sales) != 1 || rep.Sales[0].Cashier != "ana" {
		t.Errorf("cashier should only see own sales: %+v", rep.Sales)
	}

	w = s.do(http.MethodGet, "/api/sales-report", manager, nil)
	decode(t, w, &rep)
	if len(rep.Sales) != 3 {
		t.Errorf("manager sees %d sales, want 3", len(rep.Sales))
	}

	if w := s.do(http.MethodGet, "/api/sales-report?start_date=01-02-2026", manager, nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad date: %d", w.Code)
	}

	export := s.do(http.MethodGet, "/api/sales-report/export", manager, nil)
	if export.Code != http.StatusOK || export.Header().Get("Content-Type") != xlsxContentTypeForTest {
		t.Errorf("export: %d %q", export.Code, export.Header().Get("Content-Type"))
	}

	w = s.do(http.MethodGet, "/api/store-today-sales", ana, nil)
	var stats reporting.Stats
	decode(t, w, &stats)
	if w.Code != http.StatusOK || stats.Scope != reporting.ScopeStore || stats.TransactionCount != 3 {
		t.Errorf("store today: %d %+v", w.Code, stats)
	}
}

const xlsxContentTypeForTest = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func TestCustomerValidationAndRedeem(t *testing.T) {
	s := newTestServer(t, false)
	cashier, _ := s.token("till1", models.RoleCashier)

	w := s.do(http.MethodPost, "/api/customers", cashier, gin.H{"phone": "12", "name": "Ada"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad phone: %d", w.Code)
	}
	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	decode(t, w, &body)
	if body.Error != "validation failed" || body.Fields["phone"] == "" {
		t.Errorf("unexpected error body: %+v", body)
	}

	w = s.do(http.MethodPost, "/api/customers", cashier, gin.H{"phone": "08012345678", "name": "Ada"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create customer: %d %s", w.Code, w.Body.String())
	}
	var cust models.Customer
	decode(t, w, &cust)

	redeem := gin.H{"customer_id": cust.ID, "points_to_redeem": 10}
	if w := s.do(http.MethodPost, "/api/redeem-points", cashier, redeem); w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "not active") {
		t.Errorf("inactive program: %d %s", w.Code, w.Body.String())
	}

	testutil.LoyaltySettings(t, s.db, "10", "100")
	s.db.Model(&cust).Update("loyalty_points", 25)
	w = s.do(http.MethodPost, "/api/redeem-points", cashier, redeem)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"remaining_points":15`) {
		t.Errorf("redeem: %d %s", w.Code, w.Body.String())
	}

	if w := s.do(http.MethodPost, "/api/redeem-points", cashier, gin.H{"customer_id": 999, "points_to_redeem": 1}); w.Code != http.StatusNotFound {
		t.Errorf("unknown customer: %d", w.Code)
	}
}
