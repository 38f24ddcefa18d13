package memory

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"matjar/backoffice/internal/domain"
	"matjar/backoffice/internal/entity"
	"matjar/backoffice/internal/store"
	"matjar/backoffice/internal/xid"
)

//go:embed seed.yaml
var seedYAML []byte

type seedFile struct {
	Customers []domain.Customer      `yaml:"customers"`
	Orders    []domain.Order         `yaml:"orders"`
	Products  []domain.Product       `yaml:"products"`
	Returns   []domain.ReturnRecord  `yaml:"returns"`
	Movements []domain.StockMovement `yaml:"movements"`
}

var _ store.Repository = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	customers []domain.Customer
	orders    []domain.Order
	products  []domain.Product
	returns   []domain.ReturnRecord
	movements []domain.StockMovement

	orderIdx   map[int64]int
	productIdx map[int64]int
	returnIdx  map[int64]int

	nextMovementID  int64
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// New builds a store over data. Users start empty.
func New(data entity.Data) *Store {
	s := &Store{
		orderIdx:        make(map[int64]int, len(data.Orders)),
		productIdx:      make(map[int64]int, len(data.Products)),
		returnIdx:       make(map[int64]int, len(data.Returns)),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
	}
	for _, c := range data.Customers {
		s.customers = append(s.customers, c.Clone())
	}
	for _, o := range data.Orders {
		s.orderIdx[o.ID] = len(s.orders)
		s.orders = append(s.orders, o.Clone())
	}
	for _, p := range data.Products {
		s.productIdx[p.ID] = len(s.products)
		s.products = append(s.products, p)
	}
	for _, r := range data.Returns {
		s.returnIdx[r.OrderID] = len(s.returns)
		s.returns = append(s.returns, r.Clone())
	}
	for _, m := range data.Movements {
		s.movements = append(s.movements, m)
		s.nextMovementID = max(s.nextMovementID, m.ID)
	}
	return s
}

// NewSeeded returns a store filled with the embedded demo data and one user
// per role.
func NewSeeded(logger *zap.Logger) (*Store, error) {
	data, err := LoadSeed(time.Now())
	if err != nil {
		return nil, err
	}
	users, err := seedUsers(logger)
	if err != nil {
		return nil, err
	}
	s := New(data)
	s.usersByUsername = users
	return s, nil
}

// LoadSeed decodes the embedded demo data and shifts every timestamp by whole
// days so that the newest order was placed on now's date.
func LoadSeed(now time.Time) (entity.Data, error) {
	var seed seedFile
	dec := yaml.NewDecoder(bytes.NewReader(seedYAML))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return entity.Data{}, fmt.Errorf("decode seed: %w", err)
	}

	var newest time.Time
	for _, o := range seed.Orders {
		if o.OrderDate.After(newest) {
			newest = o.OrderDate
		}
	}
	days := 0
	if !newest.IsZero() {
		days = int(startOfDayUTC(now).Sub(startOfDayUTC(newest)).Hours() / 24)
	}
	shift := func(t time.Time) time.Time {
		if t.IsZero() {
			return t
		}
		return t.AddDate(0, 0, days)
	}
	shiftPtr := func(t *time.Time) *time.Time {
		if t == nil {
			return nil
		}
		v := shift(*t)
		return &v
	}

	for i := range seed.Customers {
		if sub := seed.Customers[i].SubSystem; sub != nil {
			sub.CreatedAt = shift(sub.CreatedAt)
		}
	}
	for i := range seed.Orders {
		o := &seed.Orders[i]
		o.OrderDate = shift(o.OrderDate)
		o.DeliveryDate = shiftPtr(o.DeliveryDate)
		o.DelayedUntil = shiftPtr(o.DelayedUntil)
	}
	for i := range seed.Products {
		seed.Products[i].LastRestockDate = shift(seed.Products[i].LastRestockDate)
	}
	for i := range seed.Returns {
		r := &seed.Returns[i]
		r.ReturnDate = shift(r.ReturnDate)
		r.RefundDate = shiftPtr(r.RefundDate)
	}
	for i := range seed.Movements {
		seed.Movements[i].Date = shift(seed.Movements[i].Date)
	}

	return entity.Data{
		Customers: seed.Customers,
		Orders:    seed.Orders,
		Products:  seed.Products,
		Returns:   seed.Returns,
		Movements: seed.Movements,
	}, nil
}

// seedUsers builds one account per role for dev/demo mode. Passwords are read
// from SEED_<ROLE>_PASSWORD; unset ones fall back to dev defaults with a
// warning.
func seedUsers(logger *zap.Logger) (map[string]domain.UserAccount, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	var defaulted []string
	for _, u := range []struct {
		username string
		env      string
		fallback string
		role     string
	}{
		{"admin", "SEED_ADMIN_PASSWORD", "admin123", domain.RoleAdmin},
		{"accountant", "SEED_ACCOUNTANT_PASSWORD", "accountant123", domain.RoleAccountant},
		{"stock", "SEED_STOCK_MANAGER_PASSWORD", "stock123", domain.RoleStockManager},
		{"staff", "SEED_STAFF_PASSWORD", "staff123", domain.RoleStaff},
	} {
		password := os.Getenv(u.env)
		if password == "" {
			password = u.fallback
			defaulted = append(defaulted, u.env)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash seed password for %s: %w", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	if len(defaulted) > 0 {
		logger.Warn("using default dev credentials", zap.Strings("unset", defaulted))
	}
	return users, nil
}

// DemoUsers returns the demo accounts sorted by username, for seeding another
// repository.
func DemoUsers(logger *zap.Logger) ([]domain.UserAccount, error) {
	users, err := seedUsers(logger)
	if err != nil {
		return nil, err
	}
	out := make([]domain.UserAccount, 0, len(users))
	for _, u := range users {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return out, nil
}

func (s *Store) Load(_ context.Context) (entity.Data, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := entity.Data{
		Customers: make([]domain.Customer, 0, len(s.customers)),
		Orders:    make([]domain.Order, 0, len(s.orders)),
		Products:  slices.Clone(s.products),
		Returns:   make([]domain.ReturnRecord, 0, len(s.returns)),
		Movements: slices.Clone(s.movements),
	}
	for _, c := range s.customers {
		data.Customers = append(data.Customers, c.Clone())
	}
	for _, o := range s.orders {
		data.Orders = append(data.Orders, o.Clone())
	}
	for _, r := range s.returns {
		data.Returns = append(data.Returns, r.Clone())
	}
	return data, nil
}

func (s *Store) SaveOrder(_ context.Context, order domain.Order, prev domain.OrderState) error {
	if !order.OrderState.Valid() {
		return fmt.Errorf("%w: order %d has state %d", store.ErrInvalidRecord, order.ID, int(order.OrderState))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.orderIdx[order.ID]
	if !ok {
		return fmt.Errorf("%w: order %d", store.ErrNotFound, order.ID)
	}
	if current := s.orders[idx].OrderState; current != prev {
		return fmt.Errorf("%w: order %d is %s, expected %s", store.ErrStaleState, order.ID, current, prev)
	}
	s.orders[idx] = order.Clone()
	return nil
}

func (s *Store) SaveReturn(_ context.Context, record domain.ReturnRecord, prev domain.ReturnRecord) error {
	if !record.ApprovalStatus.Valid() {
		return fmt.Errorf("%w: return %d has status %q", store.ErrInvalidRecord, record.OrderID, record.ApprovalStatus)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	orderIdx, ok := s.orderIdx[record.OrderID]
	if !ok {
		return fmt.Errorf("%w: order %d", store.ErrNotFound, record.OrderID)
	}
	if s.orders[orderIdx].OrderState != domain.OrderReturned {
		return fmt.Errorf("%w: order %d is not returned", store.ErrInvalidRecord, record.OrderID)
	}
	idx, exists := s.returnIdx[record.OrderID]
	var stored *domain.ReturnRecord
	if exists {
		stored = &s.returns[idx]
	}
	if !store.SameReturnState(stored, prev) {
		return fmt.Errorf("%w: return %d was resolved concurrently", store.ErrStaleState, record.OrderID)
	}
	if exists {
		s.returns[idx] = record.Clone()
		return nil
	}
	s.returnIdx[record.OrderID] = len(s.returns)
	s.returns = append(s.returns, record.Clone())
	return nil
}

func (s *Store) RecordStockMovement(_ context.Context, product domain.Product, movement domain.StockMovement) (*domain.StockMovement, error) {
	if movement.ProductID != product.ID || movement.NewStock != product.StockQuantity || !movement.Type.Valid() {
		return nil, fmt.Errorf("%w: movement does not match product %d", store.ErrInvalidRecord, product.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.productIdx[product.ID]
	if !ok {
		return nil, fmt.Errorf("%w: product %d", store.ErrNotFound, product.ID)
	}
	if s.products[idx].StockQuantity != movement.PreviousStock {
		return nil, fmt.Errorf("%w: product %d has %d on hand, expected %d", store.ErrStaleStock, product.ID, s.products[idx].StockQuantity, movement.PreviousStock)
	}

	s.nextMovementID++
	movement.ID = s.nextMovementID
	if movement.Date.IsZero() {
		movement.Date = time.Now().UTC()
	}
	s.products[idx] = product
	s.movements = append(s.movements, movement)
	return &movement, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRecord
	}
	if _, exists := s.usersByUsername[username]; exists {
		return fmt.Errorf("%w: user %s already exists", store.ErrInvalidRecord, username)
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidRecord
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func startOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
