package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"matjar/backoffice/internal/domain"
	"matjar/backoffice/internal/metrics"
	"matjar/backoffice/internal/service"
	"matjar/backoffice/internal/store/memory"
)

type testServer struct {
	api     *API
	handler http.Handler
	metrics *metrics.Metrics
	csrf    string
}

// newTestServer builds the full API over the seeded in-memory store so
// handler tests exercise the complete request path.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo, err := memory.NewSeeded(zap.NewNop())
	require.NoError(t, err)

	m := metrics.New()
	svc := service.New(repo, service.Options{Metrics: m})
	auth := NewAuthManager(context.Background(), testSecret, time.Hour, repo, nil)
	api := New(svc, auth, Options{AllowedOrigin: "http://localhost:5173", Metrics: m})

	ts := &testServer{api: api, handler: api.Handler(), metrics: m}
	ts.csrf = ts.fetchCSRFToken(t)
	return ts
}

func (ts *testServer) fetchCSRFToken(t *testing.T) string {
	t.Helper()
	res := ts.do(t, http.MethodGet, "/api/v1/auth/csrf-token", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var payload map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&payload))
	require.NotEmpty(t, payload["csrf_token"])
	return payload["csrf_token"]
}

// tokenFor signs a token directly so tests do not trip the login limiter.
func (ts *testServer) tokenFor(t *testing.T, username, role string) string {
	t.Helper()
	token, err := ts.api.auth.sign(username, role, time.Now().Add(time.Hour))
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if method == http.MethodPost && ts.csrf != "" {
		req.Header.Set("X-CSRF-Token", ts.csrf)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	res := httptest.NewRecorder()
	ts.handler.ServeHTTP(res, req)
	return res
}

func decodeBody[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out), res.Body.String())
	return out
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t)

	res := ts.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	body := decodeBody[map[string]any](t, res)
	require.Equal(t, true, body["ok"])
}

func TestHandleLogin(t *testing.T) {
	ts := newTestServer(t)

	res := ts.do(t, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "stock", Password: "stock123"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	login := decodeBody[domain.LoginResponse](t, res)
	require.Equal(t, domain.RoleStockManager, login.Role)

	actor, err := ts.api.auth.ParseToken(login.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "stock", actor.Username)

	res = ts.do(t, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "stock", Password: "wrong-pass"})
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestOrdersRequireAuth(t *testing.T) {
	ts := newTestServer(t)

	res := ts.do(t, http.MethodGet, "/api/v1/orders", "", nil)
	require.Equal(t, http.StatusUnauthorized, res.Code)

	res = ts.do(t, http.MethodGet, "/api/v1/orders", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestListOrdersFiltersAndLabels(t *testing.T) {
	ts := newTestServer(t)
	token := ts.tokenFor(t, "staff", domain.RoleStaff)

	res := ts.do(t, http.MethodGet, "/api/v1/orders?state_view=delayed", token, nil, "Accept-Language", "en-US,en;q=0.9")
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "en", res.Header().Get("Content-Language"))

	var body struct {
		Orders []struct {
			ID          int64  `json:"id"`
			StatusLabel string `json:"status_label"`
			AmountText  string `json:"amount_text"`
		} `json:"orders"`
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Equal(t, 2, body.Count)
	for _, o := range body.Orders {
		require.Equal(t, "Delayed", o.StatusLabel)
		require.NotEmpty(t, o.AmountText)
	}

	res = ts.do(t, http.MethodGet, "/api/v1/orders?q=1013", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "ar", res.Header().Get("Content-Language"))
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Equal(t, 1, body.Count)
	require.Equal(t, int64(1013), body.Orders[0].ID)
	require.Equal(t, "مستلم", body.Orders[0].StatusLabel)

	res = ts.do(t, http.MethodGet, "/api/v1/orders?status=bogus", token, nil)
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = ts.do(t, http.MethodGet, "/api/v1/orders?date=15-06-2024", token, nil)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestGetOrderShowsAllowedActions(t *testing.T) {
	ts := newTestServer(t)
	token := ts.tokenFor(t, "staff", domain.RoleStaff)

	res := ts.do(t, http.MethodGet, "/api/v1/orders/1023", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var detail struct {
		ID             int64    `json:"id"`
		AllowedActions []string `json:"allowed_actions"`
		CustomerName   string   `json:"customer_name"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&detail))
	require.Equal(t, int64(1023), detail.ID)
	require.Equal(t, []string{"confirm", "delay", "cancel"}, detail.AllowedActions)
	require.NotEmpty(t, detail.CustomerName)

	res = ts.do(t, http.MethodGet, "/api/v1/orders/9999", token, nil)
	require.Equal(t, http.StatusNotFound, res.Code)

	res = ts.do(t, http.MethodGet, "/api/v1/orders/abc", token, nil)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestOrderActionIsIdempotent(t *testing.T) {
	ts := newTestServer(t)
	token := ts.tokenFor(t, "staff", domain.RoleStaff)
	req := domain.OrderActionRequest{ActionID: "act-confirm-1023", Action: domain.ActionConfirm, Note: "اتصلنا بالعميل"}

	res := ts.do(t, http.MethodPost, "/api/v1/orders/1023/actions", token, req)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	first := decodeBody[domain.ActionResult](t, res)
	require.Equal(t, "new", first.From)
	require.Equal(t, "confirmed", first.To)
	require.Equal(t, "staff", first.Actor)
	require.False(t, first.Duplicate)

	res = ts.do(t, http.MethodPost, "/api/v1/orders/1023/actions", token, req)
	require.Equal(t, http.StatusOK, res.Code)
	second := decodeBody[domain.ActionResult](t, res)
	require.True(t, second.Duplicate)
	require.Equal(t, first.AppliedAt.UTC(), second.AppliedAt.UTC())

	res = ts.do(t, http.MethodPost, "/api/v1/orders/1023/actions", token,
		domain.OrderActionRequest{ActionID: "act-confirm-again", Action: domain.ActionConfirm})
	require.Equal(t, http.StatusConflict, res.Code)

	res = ts.do(t, http.MethodPost, "/api/v1/orders/1025/actions", token,
		domain.OrderActionRequest{Action: "teleport"})
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)

	res = ts.do(t, http.MethodPost, "/api/v1/orders/9999/actions", token,
		domain.OrderActionRequest{Action: domain.ActionConfirm})
	require.Equal(t, http.StatusNotFound, res.Code)
}

func TestOrderActionRoleGate(t *testing.T) {
	ts := newTestServer(t)
	token := ts.tokenFor(t, "accountant", domain.RoleAccountant)

	res := ts.do(t, http.MethodPost, "/api/v1/orders/1023/actions", token,
		domain.OrderActionRequest{Action: domain.ActionConfirm})
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestReturnActionsFollowRoles(t *testing.T) {
	ts := newTestServer(t)
	stock := ts.tokenFor(t, "stock", domain.RoleStockManager)
	accountant := ts.tokenFor(t, "accountant", domain.RoleAccountant)

	res := ts.do(t, http.MethodPost, "/api/v1/returns/1007/actions", accountant,
		domain.ReturnActionRequest{Action: domain.ActionApprove})
	require.Equal(t, http.StatusForbidden, res.Code)

	res = ts.do(t, http.MethodPost, "/api/v1/returns/1007/actions", stock,
		domain.ReturnActionRequest{Action: domain.ActionApprove, Note: "المنتج سليم"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	approved := decodeBody[domain.ActionResult](t, res)
	require.Equal(t, "approved", approved.To)
	require.NotNil(t, approved.Return)
	require.Equal(t, "stock", domain.StringOr(approved.Return.InspectedBy, ""))

	res = ts.do(t, http.MethodPost, "/api/v1/returns/1007/actions", stock,
		domain.ReturnActionRequest{Action: domain.ActionRefund})
	require.Equal(t, http.StatusForbidden, res.Code)

	res = ts.do(t, http.MethodPost, "/api/v1/returns/1007/actions", accountant,
		domain.ReturnActionRequest{Action: domain.ActionRefund})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	staff := ts.tokenFor(t, "staff", domain.RoleStaff)
	res = ts.do(t, http.MethodPost, "/api/v1/returns/1026/actions", staff,
		domain.ReturnActionRequest{Action: domain.ActionApprove})
	require.Equal(t, http.StatusForbidden, res.Code)

	res = ts.do(t, http.MethodGet, "/api/v1/returns?status=approved", staff, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var list struct {
		Returns []struct {
			ID               int64  `json:"id"`
			Refunded         bool   `json:"refunded"`
			RefundAmountText string `json:"refund_amount_text"`
		} `json:"returns"`
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&list))
	require.Equal(t, 3, list.Count)
	for _, r := range list.Returns {
		require.NotEmpty(t, r.RefundAmountText)
		if r.ID == 1007 {
			require.True(t, r.Refunded)
		}
	}
}

func TestReturnsWithoutInspectionNotesShowPlaceholder(t *testing.T) {
	ts := newTestServer(t)
	staff := ts.tokenFor(t, "staff", domain.RoleStaff)

	type notesList struct {
		Returns []struct {
			ID                  int64  `json:"id"`
			InspectionNotesText string `json:"inspection_notes_text"`
		} `json:"returns"`
	}
	notesByID := func(res *httptest.ResponseRecorder) map[int64]string {
		list := decodeBody[notesList](t, res)
		out := make(map[int64]string, len(list.Returns))
		for _, r := range list.Returns {
			out[r.ID] = r.InspectionNotesText
		}
		return out
	}

	res := ts.do(t, http.MethodGet, "/api/v1/returns", staff, nil)
	require.Equal(t, http.StatusOK, res.Code)
	notes := notesByID(res)
	require.Equal(t, "لا توجد ملاحظات", notes[1007])
	require.Equal(t, "الغطاء مكسور", notes[1015])

	res = ts.do(t, http.MethodGet, "/api/v1/returns", staff, nil, "Accept-Language", "en")
	require.Equal(t, "No notes", notesByID(res)[1007])
}

func TestStockMovementEndpoints(t *testing.T) {
	ts := newTestServer(t)
	stock := ts.tokenFor(t, "stock", domain.RoleStockManager)

	res := ts.do(t, http.MethodPost, "/api/v1/products/5/movements", stock,
		domain.StockMovementRequest{Type: domain.MovementWithdrawal, Quantity: 4})
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)
	require.Contains(t, res.Body.String(), "exceeds stock on hand")

	res = ts.do(t, http.MethodPost, "/api/v1/products/5/movements", stock,
		domain.StockMovementRequest{Type: domain.MovementAddition, Quantity: math.MaxInt})
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)

	req := domain.StockMovementRequest{ActionID: "act-restock-3", Type: domain.MovementAddition, Quantity: 12, Notes: "شحنة جديدة"}
	res = ts.do(t, http.MethodPost, "/api/v1/products/3/movements", stock, req)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	result := decodeBody[domain.ActionResult](t, res)
	require.NotNil(t, result.Movement)
	require.Equal(t, int64(10), result.Movement.ID)
	require.Equal(t, 12, result.Product.StockQuantity)

	res = ts.do(t, http.MethodPost, "/api/v1/products/3/movements", stock, req)
	require.Equal(t, http.StatusOK, res.Code)
	require.True(t, decodeBody[domain.ActionResult](t, res).Duplicate)

	res = ts.do(t, http.MethodGet, "/api/v1/products/3/movements", stock, nil, "Accept-Language", "en")
	require.Equal(t, http.StatusOK, res.Code)
	var movements struct {
		Movements []struct {
			ID        int64  `json:"id"`
			TypeLabel string `json:"type_label"`
		} `json:"movements"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&movements))
	require.Len(t, movements.Movements, 3)
	require.Equal(t, int64(10), movements.Movements[0].ID)
	require.Equal(t, "Addition", movements.Movements[0].TypeLabel)

	staff := ts.tokenFor(t, "staff", domain.RoleStaff)
	res = ts.do(t, http.MethodPost, "/api/v1/products/3/movements", staff,
		domain.StockMovementRequest{Type: domain.MovementAddition, Quantity: 1})
	require.Equal(t, http.StatusForbidden, res.Code)

	res = ts.do(t, http.MethodGet, "/api/v1/products/404/movements", stock, nil)
	require.Equal(t, http.StatusNotFound, res.Code)
}

func TestListProductsByStockLevel(t *testing.T) {
	ts := newTestServer(t)
	token := ts.tokenFor(t, "staff", domain.RoleStaff)

	res := ts.do(t, http.MethodGet, "/api/v1/products?stock=low", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		Products []struct {
			ID         int64  `json:"id"`
			StockLevel string `json:"stock_level"`
			PriceText  string `json:"price_text"`
		} `json:"products"`
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Equal(t, 2, body.Count)
	for _, p := range body.Products {
		require.Contains(t, []int64{2, 5}, p.ID)
		require.NotEmpty(t, p.PriceText)
	}

	res = ts.do(t, http.MethodGet, "/api/v1/products/stats", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	stats := decodeBody[map[string]any](t, res)
	require.EqualValues(t, 8, stats["total_products"])
	require.EqualValues(t, 1, stats["out_of_stock"])
}

func TestCustomerEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token := ts.tokenFor(t, "staff", domain.RoleStaff)

	res := ts.do(t, http.MethodGet, "/api/v1/customers?state=banned", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var list struct {
		Customers []struct {
			ID int64 `json:"id"`
		} `json:"customers"`
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&list))
	require.Equal(t, 1, list.Count)
	require.Equal(t, int64(4), list.Customers[0].ID)

	res = ts.do(t, http.MethodGet, "/api/v1/customers/2", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var detail struct {
		SubSystemName string `json:"sub_system_name"`
		Orders        []struct {
			CustomerID int64 `json:"customer_id"`
		} `json:"orders"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&detail))
	require.Equal(t, "متجر جدة", detail.SubSystemName)
	for _, o := range detail.Orders {
		require.Equal(t, int64(2), o.CustomerID)
	}

	res = ts.do(t, http.MethodGet, "/api/v1/customers/stats", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	stats := decodeBody[map[string]any](t, res)
	require.EqualValues(t, 10, stats["total"])
	require.EqualValues(t, 2, stats["with_sub_system"])
}

func TestReportsRequireAccountantOrAdmin(t *testing.T) {
	ts := newTestServer(t)

	staff := ts.tokenFor(t, "staff", domain.RoleStaff)
	res := ts.do(t, http.MethodGet, "/api/v1/reports/summary", staff, nil)
	require.Equal(t, http.StatusForbidden, res.Code)

	accountant := ts.tokenFor(t, "accountant", domain.RoleAccountant)
	res = ts.do(t, http.MethodGet, "/api/v1/reports/summary", accountant, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var summary struct {
		Summary struct {
			TotalOrders     int `json:"total_orders"`
			CancelledOrders int `json:"cancelled_orders"`
			ReturnedOrders  int `json:"returned_orders"`
		} `json:"summary"`
		TotalSalesText string `json:"total_sales_text"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&summary))
	require.Equal(t, 28, summary.Summary.TotalOrders)
	require.Equal(t, 2, summary.Summary.CancelledOrders)
	require.Equal(t, 4, summary.Summary.ReturnedOrders)
	require.NotEmpty(t, summary.TotalSalesText)

	res = ts.do(t, http.MethodGet, "/api/v1/reports/status-distribution", accountant, nil, "Accept-Language", "en")
	require.Equal(t, http.StatusOK, res.Code)
	var dist struct {
		Statuses []struct {
			Label string `json:"label"`
			Count int    `json:"count"`
		} `json:"statuses"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&dist))
	require.Len(t, dist.Statuses, 8)

	res = ts.do(t, http.MethodGet, "/api/v1/reports/top-products?limit=3", accountant, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var top struct {
		Products []struct {
			Name string `json:"name"`
		} `json:"products"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&top))
	require.LessOrEqual(t, len(top.Products), 3)

	res = ts.do(t, http.MethodGet, "/api/v1/reports/sales?period=week", accountant, nil)
	require.Equal(t, http.StatusOK, res.Code)
	series := decodeBody[map[string]any](t, res)
	require.Equal(t, "week", series["period"])

	res = ts.do(t, http.MethodGet, "/api/v1/reports/dataset?kind=cancelled", accountant, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var dataset struct {
		Kind string           `json:"kind"`
		Rows []map[string]any `json:"rows"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&dataset))
	require.Equal(t, "cancelled", dataset.Kind)
	require.Len(t, dataset.Rows, 2)

	res = ts.do(t, http.MethodGet, "/api/v1/reports/summary?from=2024-06-01&to=2024-06-10", accountant, nil)
	require.Equal(t, http.StatusOK, res.Code)
	echoed := decodeBody[map[string]any](t, res)
	require.Equal(t, "2024/06/01 03:00", echoed["from_text"])
	require.Equal(t, "2024/06/10 03:00", echoed["to_text"])

	res = ts.do(t, http.MethodGet, "/api/v1/reports/summary?from=2024-06-10&to=2024-06-01", accountant, nil)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestAuditLogsAndUsersAreAdminOnly(t *testing.T) {
	ts := newTestServer(t)
	staff := ts.tokenFor(t, "staff", domain.RoleStaff)
	admin := ts.tokenFor(t, "admin", domain.RoleAdmin)

	res := ts.do(t, http.MethodPost, "/api/v1/orders/1025/actions", staff,
		domain.OrderActionRequest{Action: domain.ActionCancel, Note: "طلب العميل"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = ts.do(t, http.MethodGet, "/api/v1/audit-logs", staff, nil)
	require.Equal(t, http.StatusForbidden, res.Code)

	res = ts.do(t, http.MethodGet, "/api/v1/audit-logs", admin, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var logs struct {
		Logs []domain.AuditLog `json:"logs"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&logs))
	require.Len(t, logs.Logs, 1)
	require.Equal(t, "order_cancel", logs.Logs[0].Action)
	require.Equal(t, "1025", logs.Logs[0].EntityID)
	require.Equal(t, "staff", logs.Logs[0].ActorUsername)

	res = ts.do(t, http.MethodGet, "/api/v1/audit-logs?date=yesterday", admin, nil)
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)

	res = ts.do(t, http.MethodPost, "/api/v1/users", admin,
		domain.UserCreateRequest{Username: "muwazzaf", Password: "pass12345", Role: domain.RoleStaff})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	res = ts.do(t, http.MethodPost, "/api/v1/users", admin,
		domain.UserCreateRequest{Username: "muwazzaf", Password: "pass12345"})
	require.Equal(t, http.StatusConflict, res.Code)

	res = ts.do(t, http.MethodPost, "/api/v1/users", staff,
		domain.UserCreateRequest{Username: "another", Password: "pass12345"})
	require.Equal(t, http.StatusForbidden, res.Code)

	res = ts.do(t, http.MethodGet, "/api/v1/users", admin, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var users struct {
		Users []domain.StaffUser `json:"users"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&users))
	require.Len(t, users.Users, 5)
}

func TestMetricsUseRoutePatterns(t *testing.T) {
	ts := newTestServer(t)
	token := ts.tokenFor(t, "staff", domain.RoleStaff)

	res := ts.do(t, http.MethodGet, "/api/v1/orders/1001", token, nil)
	require.Equal(t, http.StatusOK, res.Code)

	res = ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	require.True(t, strings.Contains(body, `route="/api/v1/orders/{id}"`), body)
	require.NotContains(t, body, `route="/api/v1/orders/1001"`)
}
