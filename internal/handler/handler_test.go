package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/notify"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/repository/memory"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/service"
)

const testSecret = "handler-test-secret"

func init() { gin.SetMode(gin.TestMode) }

type stubQR struct{}

func (stubQR) Encode(content string) (string, error) { return "data:image/png;base64," + content, nil }

type eventLog struct {
	mu     sync.Mutex
	events []service.EventType
}

func (l *eventLog) Notify(_ context.Context, ev service.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev.Type)
}

type testServer struct {
	router *gin.Engine
	store  *memory.Store
	hub    *notify.Hub
	events *eventLog
	checks map[string]Check
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	ts := &testServer{store: store, hub: notify.NewHub(log), events: &eventLog{}, checks: map[string]Check{}}

	ledger := service.NewStockLedger(store.Transactor(), store.Products(), log)
	invoices := service.NewInvoiceService(store.Invoices(), stubQR{}, "https://harekrishnamedical.com", "Hare Krishna Medical", log)
	products := service.NewProductService(store.Products(), nil, log)
	orders := service.NewOrderService(service.OrderDeps{
		Tx: store.Transactor(), Orders: store.Orders(), Products: store.Products(), Users: store.Users(),
		Ledger: ledger, Invoices: invoices, Cache: products, Notifier: ts.events, Log: log,
	})

	ts.router = gin.New()
	RegisterRoutes(ts.router, Handlers{
		Health:  NewHealthHandler(ts.checks),
		Users:   NewUserHandler(service.NewUserService(store.Users()), log),
		Product: NewProductHandler(products, log),
		Order:   NewOrderHandler(orders, log),
		Invoice: NewInvoiceHandler(invoices, log),
		Events:  NewEventsHandler(ts.hub, log),
	}, testSecret)
	return ts
}

func (ts *testServer) addProduct(t *testing.T, price int64, stock int) *model.Product {
	t.Helper()
	p := &model.Product{
		Name: "Paracetamol 500mg", Price: decimal.NewFromInt(price), Stock: stock,
		Category: model.CategoryMedicines, Active: true,
	}
	require.NoError(t, ts.store.Products().Create(context.Background(), p))
	return p
}

// addUser stores a user and returns a bearer token for it.
func (ts *testServer) addUser(t *testing.T, role model.Role) (uuid.UUID, string) {
	t.Helper()
	u := &model.User{
		Email: uuid.NewString() + "@example.com", FirstName: "Radha", LastName: "Sharma",
		Role: role, Active: true,
	}
	require.NoError(t, ts.store.Users().Create(context.Background(), u))
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": u.ID.String(), "role": role.String(), "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return u.ID, token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	}
	return w, decoded
}

func orderBody(p *model.Product, qty int) map[string]any {
	return map[string]any{
		"items": []map[string]any{{"product": p.ID, "quantity": qty}},
		"shippingAddress": map[string]any{
			"line1": "12 MG Road", "city": "Surat", "state": "Gujarat", "postalCode": "395003",
		},
		"paymentMethod": "cod",
		"customer":      map[string]any{"name": "Guest Buyer", "email": "guest@example.com"},
	}
}

func (ts *testServer) placeOrder(t *testing.T, token string, p *model.Product, qty int) (orderID, invoiceNumber string) {
	t.Helper()
	w, body := ts.do(t, http.MethodPost, "/api/v1/orders", token, orderBody(p, qty))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := body["order"].(map[string]any)
	invoice := body["invoice"].(map[string]any)
	return order["id"].(string), invoice["invoiceNumber"].(string)
}

func TestCreateOrder_Guest(t *testing.T) {
	ts := newTestServer(t)
	p := ts.addProduct(t, 50, 10)

	w, body := ts.do(t, http.MethodPost, "/api/v1/orders", "", orderBody(p, 2))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	order := body["order"].(map[string]any)
	assert.Equal(t, "pending", order["status"])
	assert.Equal(t, "100", order["total"])
	assert.Nil(t, order["userId"])
	assert.True(t, strings.HasPrefix(order["orderNumber"].(string), "HKM-ORD-"))

	invoice := body["invoice"].(map[string]any)
	assert.Regexp(t, `^HKM-INV-\d{4}-\d{4}-\d{3}$`, invoice["invoiceNumber"])
	assert.Equal(t, order["id"], invoice["orderId"])

	stored, err := ts.store.Products().GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, stored.Stock)
	assert.Equal(t, []service.EventType{service.EventOrderCreated}, ts.events.events)
}

func TestCreateOrder_Errors(t *testing.T) {
	ts := newTestServer(t)
	p := ts.addProduct(t, 50, 1)

	w, body := ts.do(t, http.MethodPost, "/api/v1/orders", "", orderBody(p, 5))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InsufficientStock", body["error"])

	w, body = ts.do(t, http.MethodPost, "/api/v1/orders", "", orderBody(&model.Product{ID: uuid.New()}, 1))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ProductNotFound", body["error"])

	w, body = ts.do(t, http.MethodPost, "/api/v1/orders", "", map[string]any{"items": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ValidationError", body["error"])

	w, _ = ts.do(t, http.MethodPost, "/api/v1/orders", "not-a-token", orderBody(p, 1))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	stale, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uuid.NewString(), "role": "customer", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	w, _ = ts.do(t, http.MethodPost, "/api/v1/orders", stale, orderBody(p, 1))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrderLifecycle(t *testing.T) {
	ts := newTestServer(t)
	p := ts.addProduct(t, 40, 5)
	_, customer := ts.addUser(t, model.RoleCustomer)
	_, admin := ts.addUser(t, model.RoleAdmin)

	orderID, _ := ts.placeOrder(t, customer, p, 1)
	path := "/api/v1/orders/" + orderID

	w, body := ts.do(t, http.MethodPut, path+"/status", admin, map[string]any{"status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidStateTransition", body["error"])

	w, _ = ts.do(t, http.MethodPut, path+"/status", customer, map[string]any{"status": "confirmed"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = ts.do(t, http.MethodPut, path+"/status", admin, map[string]any{"status": "confirmed", "note": "Verified"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "confirmed", body["order"].(map[string]any)["status"])

	w, body = ts.do(t, http.MethodPut, path+"/payment", admin, map[string]any{"paymentStatus": "completed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "completed", body["order"].(map[string]any)["paymentStatus"])

	w, body = ts.do(t, http.MethodPost, path+"/cancel", customer, map[string]any{"reason": "Ordered twice"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "40", body["refundAmount"])
	order := body["order"].(map[string]any)
	assert.Equal(t, "cancelled", order["status"])
	assert.Equal(t, "refunded", order["paymentStatus"])

	w, body = ts.do(t, http.MethodPost, path+"/cancel", customer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidStateTransition", body["error"])

	stored, err := ts.store.Products().GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Stock)

	w, body = ts.do(t, http.MethodGet, path+"/invoice", customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "refunded", body["paymentStatus"])
}

func TestCancel_WithoutBody(t *testing.T) {
	ts := newTestServer(t)
	p := ts.addProduct(t, 10, 3)
	_, customer := ts.addUser(t, model.RoleCustomer)
	orderID, _ := ts.placeOrder(t, customer, p, 1)

	w, body := ts.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/cancel", customer, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "0", body["refundAmount"])
	assert.Equal(t, "Cancelled by customer", body["order"].(map[string]any)["cancelReason"])
}

func TestOrderAccess(t *testing.T) {
	ts := newTestServer(t)
	p := ts.addProduct(t, 10, 5)
	_, owner := ts.addUser(t, model.RoleCustomer)
	_, other := ts.addUser(t, model.RoleCustomer)
	_, admin := ts.addUser(t, model.RoleAdmin)
	orderID, _ := ts.placeOrder(t, owner, p, 1)

	w, _ := ts.do(t, http.MethodGet, "/api/v1/orders/"+orderID, owner, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, body := ts.do(t, http.MethodGet, "/api/v1/orders/"+orderID, other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "AccessDenied", body["error"])
	w, _ = ts.do(t, http.MethodGet, "/api/v1/orders/"+orderID, admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = ts.do(t, http.MethodGet, "/api/v1/orders/"+uuid.NewString(), admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NotFound", body["error"])

	w, _ = ts.do(t, http.MethodGet, "/api/v1/orders/not-a-uuid", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = ts.do(t, http.MethodGet, "/api/v1/orders/"+orderID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListOrders(t *testing.T) {
	ts := newTestServer(t)
	p := ts.addProduct(t, 10, 10)
	_, customer := ts.addUser(t, model.RoleCustomer)
	_, admin := ts.addUser(t, model.RoleAdmin)
	ts.placeOrder(t, customer, p, 1)
	ts.placeOrder(t, "", p, 1)

	w, body := ts.do(t, http.MethodGet, "/api/v1/orders", customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["total"])

	w, _ = ts.do(t, http.MethodGet, "/api/v1/orders?all=true", customer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = ts.do(t, http.MethodGet, "/api/v1/orders?all=true&status=pending", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, body["total"])

	w, body = ts.do(t, http.MethodGet, "/api/v1/orders?all=true&status=bogus", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ValidationError", body["error"])
}

func TestInvoiceEndpoints(t *testing.T) {
	ts := newTestServer(t)
	p := ts.addProduct(t, 25, 5)
	_, customer := ts.addUser(t, model.RoleCustomer)
	_, admin := ts.addUser(t, model.RoleAdmin)
	_, number := ts.placeOrder(t, customer, p, 2)

	w, body := ts.do(t, http.MethodGet, "/api/v1/invoices/verify/"+strings.ToLower(number), "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, number, body["invoiceNumber"])
	assert.EqualValues(t, 2, body["itemCount"])
	assert.NotContains(t, body, "items")

	w, body = ts.do(t, http.MethodGet, "/api/v1/invoices/verify/HKM-INV-1999-0101-001", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NotFound", body["error"])

	w, body = ts.do(t, http.MethodGet, "/api/v1/invoices", customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	invoiceID := items[0].(map[string]any)["id"].(string)

	w, _ = ts.do(t, http.MethodGet, "/api/v1/invoices/"+invoiceID, customer, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = ts.do(t, http.MethodPost, "/api/v1/invoices/"+invoiceID+"/qr", customer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = ts.do(t, http.MethodPost, "/api/v1/invoices/"+invoiceID+"/qr", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "data:image/png;base64,https://harekrishnamedical.com/invoice/"+number, body["qrCode"])
}

func TestProductEndpoints(t *testing.T) {
	ts := newTestServer(t)
	_, admin := ts.addUser(t, model.RoleAdmin)
	_, customer := ts.addUser(t, model.RoleCustomer)

	create := map[string]any{"name": "Vitamin C", "price": "120.50", "stock": 30, "category": "supplements"}
	w, body := ts.do(t, http.MethodPost, "/api/v1/products", customer, create)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = ts.do(t, http.MethodPost, "/api/v1/products", admin, create)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := body["id"].(string)

	w, body = ts.do(t, http.MethodPost, "/api/v1/products", admin, map[string]any{"name": "Bad", "price": "-1", "category": "supplements"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ValidationError", body["error"])

	w, _ = ts.do(t, http.MethodGet, "/api/v1/products/"+id, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = ts.do(t, http.MethodDelete, "/api/v1/products/"+id, admin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = ts.do(t, http.MethodGet, "/api/v1/products/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = ts.do(t, http.MethodGet, "/api/v1/products/"+id, customer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, body = ts.do(t, http.MethodGet, "/api/v1/products/"+id, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["active"])

	w, body = ts.do(t, http.MethodGet, "/api/v1/products", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, body["total"])

	w, _ = ts.do(t, http.MethodGet, "/api/v1/products?all=true", customer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = ts.do(t, http.MethodGet, "/api/v1/products?all=true", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["total"])

	w, _ = ts.do(t, http.MethodGet, "/api/v1/products/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUserEndpoints(t *testing.T) {
	ts := newTestServer(t)
	register := map[string]any{
		"email": "Radha@Example.com", "password": "s3cret-pass", "firstName": "Radha", "lastName": "Sharma",
	}

	w, body := ts.do(t, http.MethodPost, "/api/v1/users", "", register)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "radha@example.com", body["email"])
	assert.Equal(t, "customer", body["role"])
	assert.NotContains(t, body, "passwordHash")

	w, body = ts.do(t, http.MethodPost, "/api/v1/users", "", register)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Conflict", body["error"])

	register["email"] = "boss@example.com"
	register["role"] = "admin"
	w, _ = ts.do(t, http.MethodPost, "/api/v1/users", "", register)
	assert.Equal(t, http.StatusForbidden, w.Code)

	id, token := ts.addUser(t, model.RoleCustomer)
	w, body = ts.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id.String(), body["id"])
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	ts.checks["postgres"] = func(context.Context) error { return nil }

	w, _ := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, body := ts.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "connected", body["postgres"])

	ts.checks["redis"] = func(context.Context) error { return errors.New("connection refused") }
	w, body = ts.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "unavailable", body["redis"])
}
