package httpapi

import (
	"errors"
	"net/http"
	"time"

	"matjar/backoffice/internal/domain"
	"matjar/backoffice/internal/format"
	"matjar/backoffice/internal/query"
	"matjar/backoffice/internal/report"
	"matjar/backoffice/internal/service"
	"matjar/backoffice/internal/store"
)

type orderResponse struct {
	service.OrderView
	AmountText    string `json:"amount_text"`
	OrderDateText string `json:"order_date_text"`
}

type orderDetailResponse struct {
	service.OrderDetail
	AmountText    string `json:"amount_text"`
	OrderDateText string `json:"order_date_text"`
}

type returnResponse struct {
	service.ReturnView
	RefundAmountText    string `json:"refund_amount_text"`
	ReturnDateText      string `json:"return_date_text"`
	InspectionNotesText string `json:"inspection_notes_text"`
}

type productResponse struct {
	service.ProductView
	PriceText      string `json:"price_text"`
	StockValueText string `json:"stock_value_text"`
}

func newOrderResponse(f *format.Formatter, v service.OrderView) orderResponse {
	return orderResponse{
		OrderView:     v,
		AmountText:    f.Currency(v.Amount),
		OrderDateText: f.Date(&v.OrderDate),
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless token for the X-CSRF-Token header of
// mutating requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

func (a *API) handleListOrders(w http.ResponseWriter, r *http.Request) {
	labels := a.labels(w, r)
	q := r.URL.Query()

	var req service.OrderListRequest
	req.Search = q.Get("q")
	if raw := q.Get("status"); raw != "" {
		state, err := domain.ParseOrderState(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req.Status = &state
	}
	if raw := q.Get("state_view"); raw != "" {
		state, err := domain.ParseOrderState(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req.View = &state
	}
	date, err := parseDay(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.Date = date

	views, err := a.service.ListOrders(r.Context(), labels, req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	f := a.formatter(labels)
	orders := make([]orderResponse, 0, len(views))
	for _, v := range views {
		orders = append(orders, newOrderResponse(f, v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders, "count": len(orders)})
}

func (a *API) handleOrderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.OrderStats(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	labels := a.labels(w, r)

	detail, err := a.service.GetOrder(r.Context(), labels, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	f := a.formatter(labels)
	writeJSON(w, http.StatusOK, orderDetailResponse{
		OrderDetail:   detail,
		AmountText:    f.Currency(detail.Amount),
		OrderDateText: f.Date(&detail.OrderDate),
	})
}

func (a *API) handleOrderAction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req domain.OrderActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.service.ApplyOrderAction(r.Context(), id, req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	labels := a.labels(w, r)
	q := r.URL.Query()

	criteria := query.CustomerCriteria{Search: q.Get("q")}
	if raw := q.Get("state"); raw != "" {
		state, err := domain.ParseCustomerState(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		criteria.State = &state
	}

	customers, err := a.service.ListCustomers(r.Context(), labels, criteria)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": customers, "count": len(customers)})
}

func (a *API) handleCustomerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.CustomerStats(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	detail, err := a.service.GetCustomer(r.Context(), a.labels(w, r), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	labels := a.labels(w, r)
	q := r.URL.Query()

	criteria := query.ProductCriteria{Search: q.Get("q"), Category: q.Get("category")}
	if raw := q.Get("stock"); raw != "" {
		level, err := domain.ParseStockLevel(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		criteria.Level = &level
	}

	views, err := a.service.ListProducts(r.Context(), labels, criteria)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	f := a.formatter(labels)
	products := make([]productResponse, 0, len(views))
	for _, v := range views {
		products = append(products, productResponse{
			ProductView:    v,
			PriceText:      f.Currency(v.Price),
			StockValueText: f.Currency(v.StockValue),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products, "count": len(products)})
}

func (a *API) handleProductStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.ProductStats(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleProductMovements(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	movements, err := a.service.ProductMovements(r.Context(), a.labels(w, r), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (a *API) handleStockMovement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req domain.StockMovementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.service.RecordStockMovement(r.Context(), id, req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

func (a *API) handleListReturns(w http.ResponseWriter, r *http.Request) {
	labels := a.labels(w, r)
	q := r.URL.Query()

	criteria := query.ReturnCriteria{Search: q.Get("q")}
	if raw := q.Get("status"); raw != "" {
		status, err := domain.ParseApprovalStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		criteria.Status = &status
	}
	date, err := parseDay(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	criteria.Date = date

	views, err := a.service.ListReturns(r.Context(), labels, criteria)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	f := a.formatter(labels)
	returns := make([]returnResponse, 0, len(views))
	for _, v := range views {
		returns = append(returns, returnResponse{
			ReturnView:       v,
			RefundAmountText:    f.Currency(v.RefundAmount),
			ReturnDateText:      f.Date(&v.ReturnDate),
			InspectionNotesText: domain.StringOr(v.InspectionNotes, labels.NoNotes()),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"returns": returns, "count": len(returns)})
}

func (a *API) handleReturnStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.ReturnStats(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleReturnAction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req domain.ReturnActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.service.ApplyReturnAction(r.Context(), id, req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// parseReportRequest reads from, to, period, kind and limit. An absent period
// leaves the range to from and to alone.
func parseReportRequest(r *http.Request) (service.ReportRequest, error) {
	q := r.URL.Query()
	from, err := parseDay(q.Get("from"))
	if err != nil {
		return service.ReportRequest{}, err
	}
	to, err := parseDay(q.Get("to"))
	if err != nil {
		return service.ReportRequest{}, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return service.ReportRequest{}, errors.New("to must not be before from")
	}

	req := service.ReportRequest{
		From:  from,
		To:    to,
		Kind:  report.ParseDatasetKind(q.Get("kind")),
		Limit: parsePositiveLimit(q.Get("limit"), report.DefaultTopProducts, 50),
	}
	if raw := q.Get("period"); raw != "" {
		req.Period = query.ParsePeriod(raw)
	}
	return req, nil
}

func (a *API) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	req, err := parseReportRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	f := a.formatter(a.labels(w, r))

	summary, err := a.service.ReportSummary(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, map[string]any{
		"summary":                  summary,
		"total_sales_text":         f.Currency(summary.TotalSales),
		"average_order_value_text": f.Currency(summary.AverageOrderValue),
		"from_text":                f.DateString(q.Get("from")),
		"to_text":                  f.DateString(q.Get("to")),
	})
}

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	req, err := parseReportRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Period == "" {
		req.Period = query.PeriodMonth
	}

	series, err := a.service.SalesReport(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (a *API) handleTopProducts(w http.ResponseWriter, r *http.Request) {
	req, err := parseReportRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	top, err := a.service.TopProducts(r.Context(), a.labels(w, r), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": top})
}

func (a *API) handleStatusDistribution(w http.ResponseWriter, r *http.Request) {
	req, err := parseReportRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	counts, err := a.service.StatusDistribution(r.Context(), a.labels(w, r), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"statuses": counts})
}

func (a *API) handleDataset(w http.ResponseWriter, r *http.Request) {
	req, err := parseReportRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rows, err := a.service.Dataset(r.Context(), a.labels(w, r), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": req.Kind, "rows": rows})
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	logs, err := a.service.ListAuditLogs(r.Context(), date, limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"users": a.auth.ListUsers(r.Context())})
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req domain.UserCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	user, err := a.auth.CreateUser(r.Context(), req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrUserExists) || errors.Is(err, store.ErrInvalidRecord) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}
