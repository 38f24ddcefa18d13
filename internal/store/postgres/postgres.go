package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"matjar/backoffice/internal/domain"
	"matjar/backoffice/internal/entity"
	"matjar/backoffice/internal/store"
	"matjar/backoffice/internal/xid"
)

//go:embed schema.sql
var schemaSQL string

var _ store.Repository = (*Store)(nil)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates missing tables and indexes. It is safe to run on every start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Seed inserts data that is not stored yet, keyed by primary key. Existing
// rows are left untouched.
func (s *Store) Seed(ctx context.Context, data entity.Data) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range data.Customers {
		sub, err := nullJSON(c.SubSystem)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO customers (id, full_name, phone, location, customer_state, sub_system)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (id) DO NOTHING
		`, c.ID, c.FullName, c.Phone, c.Location, int(c.CustomerState), sub); err != nil {
			return fmt.Errorf("seed customer %d: %w", c.ID, err)
		}
	}
	for _, o := range data.Orders {
		notes, err := notesJSON(o.Notes)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO orders (
				id, customer_id, order_date, delivery_date, delayed_until, delayed_reason, tracking_code,
				shipping_address, total_price, shipping_cost, order_state, image_url, notes
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
			ON CONFLICT (id) DO NOTHING
		`, o.ID, o.CustomerID, o.OrderDate, nullTime(o.DeliveryDate), nullTime(o.DelayedUntil), nullString(o.DelayedReason),
			nullString(o.TrackingCode), o.ShippingAddress, o.TotalPrice, o.ShippingCost, int(o.OrderState), o.ImageURL, notes); err != nil {
			return fmt.Errorf("seed order %d: %w", o.ID, err)
		}
	}
	for _, p := range data.Products {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO products (
				id, name, sku, category, supplier, price, cost_price, stock_quantity, min_stock_level,
				description, image_url, last_restock_date
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			ON CONFLICT (id) DO NOTHING
		`, p.ID, p.Name, p.SKU, p.Category, p.Supplier, p.Price, p.CostPrice, p.StockQuantity, p.MinStockLevel,
			p.Description, p.ImageURL, nullTimeValue(p.LastRestockDate)); err != nil {
			return fmt.Errorf("seed product %d: %w", p.ID, err)
		}
	}
	for _, r := range data.Returns {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_returns (
				order_id, return_date, return_reason, approval_status, refund_amount, refund_date, inspected_by, inspection_notes
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (order_id) DO NOTHING
		`, r.OrderID, r.ReturnDate, r.ReturnReason, string(r.ApprovalStatus), r.RefundAmount, nullTime(r.RefundDate),
			nullString(r.InspectedBy), nullString(r.InspectionNotes)); err != nil {
			return fmt.Errorf("seed return %d: %w", r.OrderID, err)
		}
	}
	for _, m := range data.Movements {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO stock_movements (id, product_id, moved_at, movement_type, quantity, previous_stock, new_stock, notes)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (id) DO NOTHING
		`, m.ID, m.ProductID, m.Date, string(m.Type), m.Quantity, m.PreviousStock, m.NewStock, m.Notes); err != nil {
			return fmt.Errorf("seed movement %d: %w", m.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		SELECT setval(pg_get_serial_sequence('stock_movements', 'id'), COALESCE(MAX(id), 0) + 1, false)
		FROM stock_movements
	`); err != nil {
		return err
	}

	return tx.Commit()
}

// Load reads every table inside one repeatable-read transaction so the
// snapshot is consistent.
func (s *Store) Load(ctx context.Context) (entity.Data, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return entity.Data{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var data entity.Data
	if data.Customers, err = loadCustomers(ctx, tx); err != nil {
		return entity.Data{}, err
	}
	if data.Orders, err = loadOrders(ctx, tx); err != nil {
		return entity.Data{}, err
	}
	if data.Products, err = loadProducts(ctx, tx); err != nil {
		return entity.Data{}, err
	}
	if data.Returns, err = loadReturns(ctx, tx); err != nil {
		return entity.Data{}, err
	}
	if data.Movements, err = loadMovements(ctx, tx); err != nil {
		return entity.Data{}, err
	}
	return data, tx.Commit()
}

func loadCustomers(ctx context.Context, tx *sql.Tx) ([]domain.Customer, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, full_name, phone, location, customer_state, sub_system
		FROM customers
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var (
			c     domain.Customer
			state int
			sub   []byte
		)
		if err := rows.Scan(&c.ID, &c.FullName, &c.Phone, &c.Location, &state, &sub); err != nil {
			return nil, err
		}
		c.CustomerState = domain.CustomerState(state)
		if len(sub) > 0 && string(sub) != "null" {
			c.SubSystem = &domain.SubSystem{}
			if err := json.Unmarshal(sub, c.SubSystem); err != nil {
				return nil, fmt.Errorf("decode sub-system of customer %d: %w", c.ID, err)
			}
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func loadOrders(ctx context.Context, tx *sql.Tx) ([]domain.Order, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, customer_id, order_date, delivery_date, delayed_until, delayed_reason, tracking_code,
			shipping_address, total_price, shipping_cost, order_state, image_url, notes
		FROM orders
		ORDER BY order_date, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 256)
	for rows.Next() {
		var (
			o                       domain.Order
			delivery, delayedUntil  sql.NullTime
			delayedReason, tracking sql.NullString
			state                   int
			notes                   []byte
		)
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.OrderDate, &delivery, &delayedUntil, &delayedReason, &tracking,
			&o.ShippingAddress, &o.TotalPrice, &o.ShippingCost, &state, &o.ImageURL, &notes); err != nil {
			return nil, err
		}
		o.OrderDate = o.OrderDate.UTC()
		o.DeliveryDate = timePtr(delivery)
		o.DelayedUntil = timePtr(delayedUntil)
		o.DelayedReason = stringPtr(delayedReason)
		o.TrackingCode = stringPtr(tracking)
		o.OrderState = domain.OrderState(state)
		if len(notes) > 0 {
			if err := json.Unmarshal(notes, &o.Notes); err != nil {
				return nil, fmt.Errorf("decode notes of order %d: %w", o.ID, err)
			}
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func loadProducts(ctx context.Context, tx *sql.Tx) ([]domain.Product, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, name, sku, category, supplier, price, cost_price, stock_quantity, min_stock_level,
			description, image_url, last_restock_date
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var (
			p       domain.Product
			restock sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.Category, &p.Supplier, &p.Price, &p.CostPrice, &p.StockQuantity,
			&p.MinStockLevel, &p.Description, &p.ImageURL, &restock); err != nil {
			return nil, err
		}
		if restock.Valid {
			p.LastRestockDate = restock.Time.UTC()
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func loadReturns(ctx context.Context, tx *sql.Tx) ([]domain.ReturnRecord, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT order_id, return_date, return_reason, approval_status, refund_amount, refund_date, inspected_by, inspection_notes
		FROM order_returns
		ORDER BY order_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.ReturnRecord, 0, 32)
	for rows.Next() {
		var (
			r                  domain.ReturnRecord
			status             string
			refundDate         sql.NullTime
			inspectedBy, notes sql.NullString
		)
		if err := rows.Scan(&r.OrderID, &r.ReturnDate, &r.ReturnReason, &status, &r.RefundAmount, &refundDate,
			&inspectedBy, &notes); err != nil {
			return nil, err
		}
		r.ReturnDate = r.ReturnDate.UTC()
		r.ApprovalStatus = domain.ApprovalStatus(status)
		r.RefundDate = timePtr(refundDate)
		r.InspectedBy = stringPtr(inspectedBy)
		r.InspectionNotes = stringPtr(notes)
		records = append(records, r)
	}
	return records, rows.Err()
}

func loadMovements(ctx context.Context, tx *sql.Tx) ([]domain.StockMovement, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, product_id, moved_at, movement_type, quantity, previous_stock, new_stock, notes
		FROM stock_movements
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]domain.StockMovement, 0, 128)
	for rows.Next() {
		var (
			m    domain.StockMovement
			kind string
		)
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Date, &kind, &m.Quantity, &m.PreviousStock, &m.NewStock, &m.Notes); err != nil {
			return nil, err
		}
		m.Date = m.Date.UTC()
		m.Type = domain.MovementType(kind)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (s *Store) SaveOrder(ctx context.Context, order domain.Order, prev domain.OrderState) error {
	if !order.OrderState.Valid() {
		return fmt.Errorf("%w: order %d has state %d", store.ErrInvalidRecord, order.ID, int(order.OrderState))
	}
	notes, err := notesJSON(order.Notes)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var state int
	err = tx.QueryRowContext(ctx, `SELECT order_state FROM orders WHERE id = $1 FOR UPDATE`, order.ID).Scan(&state)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: order %d", store.ErrNotFound, order.ID)
		}
		return err
	}
	if current := domain.OrderState(state); current != prev {
		return fmt.Errorf("%w: order %d is %s, expected %s", store.ErrStaleState, order.ID, current, prev)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET delivery_date = $2,
			delayed_until = $3,
			delayed_reason = $4,
			tracking_code = $5,
			order_state = $6,
			notes = $7
		WHERE id = $1 AND order_state = $8
	`, order.ID, nullTime(order.DeliveryDate), nullTime(order.DelayedUntil), nullString(order.DelayedReason),
		nullString(order.TrackingCode), int(order.OrderState), notes, int(prev))
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) SaveReturn(ctx context.Context, record domain.ReturnRecord, prev domain.ReturnRecord) error {
	if !record.ApprovalStatus.Valid() {
		return fmt.Errorf("%w: return %d has status %q", store.ErrInvalidRecord, record.OrderID, record.ApprovalStatus)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var state int
	err = tx.QueryRowContext(ctx, `SELECT order_state FROM orders WHERE id = $1 FOR UPDATE`, record.OrderID).Scan(&state)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: order %d", store.ErrNotFound, record.OrderID)
		}
		return err
	}
	if domain.OrderState(state) != domain.OrderReturned {
		return fmt.Errorf("%w: order %d is not returned", store.ErrInvalidRecord, record.OrderID)
	}

	var (
		stored     *domain.ReturnRecord
		status     string
		refundDate sql.NullTime
	)
	err = tx.QueryRowContext(ctx, `
		SELECT approval_status, refund_date FROM order_returns WHERE order_id = $1 FOR UPDATE
	`, record.OrderID).Scan(&status, &refundDate)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return err
	default:
		stored = &domain.ReturnRecord{OrderID: record.OrderID, ApprovalStatus: domain.ApprovalStatus(status)}
		if refundDate.Valid {
			stored.RefundDate = domain.TimePtr(refundDate.Time)
		}
	}
	if !store.SameReturnState(stored, prev) {
		return fmt.Errorf("%w: return %d was resolved concurrently", store.ErrStaleState, record.OrderID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_returns (
			order_id, return_date, return_reason, approval_status, refund_amount, refund_date, inspected_by, inspection_notes
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (order_id)
		DO UPDATE SET
			approval_status = EXCLUDED.approval_status,
			refund_amount = EXCLUDED.refund_amount,
			refund_date = EXCLUDED.refund_date,
			inspected_by = EXCLUDED.inspected_by,
			inspection_notes = EXCLUDED.inspection_notes
	`, record.OrderID, record.ReturnDate, record.ReturnReason, string(record.ApprovalStatus), record.RefundAmount,
		nullTime(record.RefundDate), nullString(record.InspectedBy), nullString(record.InspectionNotes))
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) RecordStockMovement(ctx context.Context, product domain.Product, movement domain.StockMovement) (*domain.StockMovement, error) {
	if movement.ProductID != product.ID || movement.NewStock != product.StockQuantity || !movement.Type.Valid() {
		return nil, fmt.Errorf("%w: movement does not match product %d", store.ErrInvalidRecord, product.ID)
	}
	if movement.Date.IsZero() {
		movement.Date = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var onHand int
	err = tx.QueryRowContext(ctx, `SELECT stock_quantity FROM products WHERE id = $1 FOR UPDATE`, product.ID).Scan(&onHand)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %d", store.ErrNotFound, product.ID)
		}
		return nil, err
	}
	if onHand != movement.PreviousStock {
		return nil, fmt.Errorf("%w: product %d has %d on hand, expected %d", store.ErrStaleStock, product.ID, onHand, movement.PreviousStock)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = $2, last_restock_date = $3
		WHERE id = $1
	`, product.ID, product.StockQuantity, nullTimeValue(product.LastRestockDate)); err != nil {
		return nil, err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO stock_movements (product_id, moved_at, movement_type, quantity, previous_stock, new_stock, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`, movement.ProductID, movement.Date, string(movement.Type), movement.Quantity, movement.PreviousStock,
		movement.NewStock, movement.Notes).Scan(&movement.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &movement, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1
			AND created_at < $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRecord
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user %s already exists", store.ErrInvalidRecord, user.Username)
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidRecord
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func notesJSON(notes []string) ([]byte, error) {
	if notes == nil {
		notes = []string{}
	}
	return json.Marshal(notes)
}

func nullJSON(v *domain.SubSystem) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func nullString(val *string) any {
	if val == nil {
		return nil
	}
	return *val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}

func nullTimeValue(val time.Time) any {
	if val.IsZero() {
		return nil
	}
	return val
}

func timePtr(val sql.NullTime) *time.Time {
	if !val.Valid {
		return nil
	}
	t := val.Time.UTC()
	return &t
}

func stringPtr(val sql.NullString) *string {
	if !val.Valid {
		return nil
	}
	s := val.String
	return &s
}
