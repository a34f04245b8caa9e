package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	domainerrors "github.com/cassiomorais/paysvc/internal/domain/errors"
	"github.com/cassiomorais/paysvc/internal/domain/fin"
	"github.com/google/uuid"
)

// --- Service Repository Mock ---

// MockServiceRepository is a mock implementation of fin.ServiceRepository.
type MockServiceRepository struct {
	mu       sync.Mutex
	services map[uuid.UUID]*fin.ServiceConfig
	tokens   []fin.Token

	GetByIDFunc   func(ctx context.Context, id uuid.UUID) (*fin.ServiceConfig, error)
	SaveTokenFunc func(ctx context.Context, id uuid.UUID, token fin.Token) error
}

func NewMockServiceRepository(services ...*fin.ServiceConfig) *MockServiceRepository {
	m := &MockServiceRepository{services: make(map[uuid.UUID]*fin.ServiceConfig)}
	for _, s := range services {
		m.services[s.ID] = s
	}
	return m
}

func (m *MockServiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*fin.ServiceConfig, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok {
		return nil, domainerrors.ErrServiceNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockServiceRepository) SaveToken(ctx context.Context, id uuid.UUID, token fin.Token) error {
	if m.SaveTokenFunc != nil {
		return m.SaveTokenFunc(ctx, id, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok {
		return domainerrors.ErrServiceNotFound
	}
	s.Token = token
	m.tokens = append(m.tokens, token)
	return nil
}

// SavedTokens returns every token persisted so far, oldest first.
func (m *MockServiceRepository) SavedTokens() []fin.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]fin.Token(nil), m.tokens...)
}

// --- Product Repository Mock ---

type MockProductRepository struct {
	mu        sync.Mutex
	products  map[uuid.UUID]*fin.Product
	merchants map[uuid.UUID]string

	GetByIDFunc      func(ctx context.Context, id uuid.UUID) (*fin.Product, error)
	MerchantNameFunc func(ctx context.Context, productID uuid.UUID) (string, error)
}

func NewMockProductRepository() *MockProductRepository {
	return &MockProductRepository{
		products:  make(map[uuid.UUID]*fin.Product),
		merchants: make(map[uuid.UUID]string),
	}
}

// Add stores a product owned by a merchant of the given name.
func (m *MockProductRepository) Add(p *fin.Product, merchant string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
	m.merchants[p.ID] = merchant
}

func (m *MockProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*fin.Product, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, domainerrors.ErrProductNotFound
	}
	return p, nil
}

func (m *MockProductRepository) MerchantName(ctx context.Context, productID uuid.UUID) (string, error) {
	if m.MerchantNameFunc != nil {
		return m.MerchantNameFunc(ctx, productID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[productID]; !ok {
		return "", domainerrors.ErrProductNotFound
	}
	return m.merchants[productID], nil
}

// --- Plan Repository Mock ---

type MockPlanRepository struct {
	mu    sync.Mutex
	plans map[uuid.UUID]*fin.SubscriptionPlan

	GetByIDFunc func(ctx context.Context, id uuid.UUID) (*fin.SubscriptionPlan, error)
}

func NewMockPlanRepository(plans ...*fin.SubscriptionPlan) *MockPlanRepository {
	m := &MockPlanRepository{plans: make(map[uuid.UUID]*fin.SubscriptionPlan)}
	for _, p := range plans {
		m.plans[p.ID] = p
	}
	return m
}

func (m *MockPlanRepository) Add(p *fin.SubscriptionPlan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[p.ID] = p
}

func (m *MockPlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*fin.SubscriptionPlan, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, domainerrors.ErrPlanNotFound
	}
	return p, nil
}

// --- Registration Repository Mock ---

type linkKey struct {
	item    uuid.UUID
	service uuid.UUID
}

// MockRegistrationRepository keeps one link per (item, service) and counts
// every upsert call.
type MockRegistrationRepository struct {
	mu             sync.Mutex
	products       map[linkKey]*fin.ProductRegistration
	plans          map[linkKey]*fin.PlanRegistration
	productUpserts int
	planUpserts    int

	UpsertProductRegistrationFunc func(ctx context.Context, reg *fin.ProductRegistration) error
	UpsertPlanRegistrationFunc    func(ctx context.Context, reg *fin.PlanRegistration) error
}

func NewMockRegistrationRepository() *MockRegistrationRepository {
	return &MockRegistrationRepository{
		products: make(map[linkKey]*fin.ProductRegistration),
		plans:    make(map[linkKey]*fin.PlanRegistration),
	}
}

func (m *MockRegistrationRepository) GetProductRegistration(_ context.Context, productID, serviceID uuid.UUID) (*fin.ProductRegistration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.products[linkKey{productID, serviceID}]
	if !ok {
		return nil, domainerrors.ErrRegistrationNotFound
	}
	cp := *reg
	return &cp, nil
}

func (m *MockRegistrationRepository) UpsertProductRegistration(ctx context.Context, reg *fin.ProductRegistration) error {
	if m.UpsertProductRegistrationFunc != nil {
		return m.UpsertProductRegistrationFunc(ctx, reg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *reg
	m.products[linkKey{reg.ProductID, reg.ServiceID}] = &cp
	m.productUpserts++
	return nil
}

func (m *MockRegistrationRepository) GetPlanRegistration(_ context.Context, planID, serviceID uuid.UUID) (*fin.PlanRegistration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.plans[linkKey{planID, serviceID}]
	if !ok {
		return nil, domainerrors.ErrRegistrationNotFound
	}
	cp := *reg
	return &cp, nil
}

func (m *MockRegistrationRepository) UpsertPlanRegistration(ctx context.Context, reg *fin.PlanRegistration) error {
	if m.UpsertPlanRegistrationFunc != nil {
		return m.UpsertPlanRegistrationFunc(ctx, reg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *reg
	m.plans[linkKey{reg.PlanID, reg.ServiceID}] = &cp
	m.planUpserts++
	return nil
}

// ProductLinks returns the number of stored product links.
func (m *MockRegistrationRepository) ProductLinks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.products)
}

func (m *MockRegistrationRepository) PlanLinks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.plans)
}

// Upserts returns the number of product and plan upsert calls.
func (m *MockRegistrationRepository) Upserts() (products, plans int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.productUpserts, m.planUpserts
}

// --- Subscription Repository Mock ---

type MockSubscriptionRepository struct {
	mu            sync.Mutex
	subscriptions map[uuid.UUID]*fin.Subscription
	deleted       []uuid.UUID

	CreateFunc       func(ctx context.Context, sub *fin.Subscription) error
	SetReferenceFunc func(ctx context.Context, id uuid.UUID, refNo, approvalURL string) error
	UpdateStatusFunc func(ctx context.Context, id uuid.UUID, status fin.SubscriptionStatus, at time.Time) error
	ClaimDueFunc     func(ctx context.Context, limit int, interval time.Duration) ([]uuid.UUID, error)
}

func NewMockSubscriptionRepository(subs ...*fin.Subscription) *MockSubscriptionRepository {
	m := &MockSubscriptionRepository{subscriptions: make(map[uuid.UUID]*fin.Subscription)}
	for _, s := range subs {
		m.subscriptions[s.ID] = s
	}
	return m
}

func (m *MockSubscriptionRepository) Create(ctx context.Context, sub *fin.Subscription) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, sub)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.subscriptions[sub.ID] = &cp
	return nil
}

func (m *MockSubscriptionRepository) GetByID(_ context.Context, id uuid.UUID) (*fin.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subscriptions[id]
	if !ok {
		return nil, domainerrors.ErrSubscriptionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepository) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscriptions[id]; !ok {
		return domainerrors.ErrSubscriptionNotFound
	}
	delete(m.subscriptions, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *MockSubscriptionRepository) SetReference(ctx context.Context, id uuid.UUID, refNo, approvalURL string) error {
	if m.SetReferenceFunc != nil {
		return m.SetReferenceFunc(ctx, id, refNo, approvalURL)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subscriptions[id]
	if !ok {
		return domainerrors.ErrSubscriptionNotFound
	}
	s.RefNo = refNo
	s.ApprovalURL = approvalURL
	return nil
}

func (m *MockSubscriptionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status fin.SubscriptionStatus, at time.Time) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subscriptions[id]
	if !ok {
		return domainerrors.ErrSubscriptionNotFound
	}
	s.Status = status
	s.StatusDate = &at
	return nil
}

func (m *MockSubscriptionRepository) ClaimDue(ctx context.Context, limit int, interval time.Duration) ([]uuid.UUID, error) {
	if m.ClaimDueFunc != nil {
		return m.ClaimDueFunc(ctx, limit, interval)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, s := range m.subscriptions {
		if len(ids) == limit {
			break
		}
		if s.RefNo != "" && !s.Status.IsTerminal() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// All returns every stored subscription.
func (m *MockSubscriptionRepository) All() []*fin.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*fin.Subscription, 0, len(m.subscriptions))
	for _, s := range m.subscriptions {
		cp := *s
		out = append(out, &cp)
	}
	return out
}

// Deleted returns the ids removed so far.
func (m *MockSubscriptionRepository) Deleted() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.deleted...)
}

// --- Subscriber Repository Mock ---

type MockSubscriberRepository struct {
	mu          sync.Mutex
	subscribers map[fin.SubscriberRef]*fin.SubscriberInfo

	GetSubscriberInfoFunc func(ctx context.Context, ref fin.SubscriberRef) (*fin.SubscriberInfo, error)
}

func NewMockSubscriberRepository() *MockSubscriberRepository {
	return &MockSubscriberRepository{subscribers: make(map[fin.SubscriberRef]*fin.SubscriberInfo)}
}

func (m *MockSubscriberRepository) Add(ref fin.SubscriberRef, info *fin.SubscriberInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers[ref] = info
}

func (m *MockSubscriberRepository) GetSubscriberInfo(ctx context.Context, ref fin.SubscriberRef) (*fin.SubscriberInfo, error) {
	if m.GetSubscriberInfoFunc != nil {
		return m.GetSubscriberInfoFunc(ctx, ref)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.subscribers[ref]
	if !ok {
		return nil, domainerrors.ErrSubscriberNotFound
	}
	return info, nil
}

// --- Log Repository Mock ---

type MockLogRepository struct {
	mu      sync.Mutex
	entries []*fin.LogEntry

	AppendFunc func(ctx context.Context, entry *fin.LogEntry) error
}

func NewMockLogRepository() *MockLogRepository {
	return &MockLogRepository{}
}

func (m *MockLogRepository) Append(ctx context.Context, entry *fin.LogEntry) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MockLogRepository) List(_ context.Context, serviceID uuid.UUID, limit, offset int) ([]*fin.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*fin.LogEntry
	for _, e := range m.entries {
		if e.ServiceID == serviceID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Entries returns every appended entry in order.
func (m *MockLogRepository) Entries() []*fin.LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*fin.LogEntry(nil), m.entries...)
}

// WithResult returns the entries of the given severity.
func (m *MockLogRepository) WithResult(result fin.LogResult) []*fin.LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*fin.LogEntry
	for _, e := range m.entries {
		if e.Result == result {
			out = append(out, e)
		}
	}
	return out
}

// --- Status Hook Mock ---

type MockStatusHook struct {
	mu    sync.Mutex
	calls []fin.Subscription

	Err error
}

func (m *MockStatusHook) SubscriptionStatusChanged(_ context.Context, sub *fin.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, *sub)
	return m.Err
}

func (m *MockStatusHook) Calls() []fin.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]fin.Subscription(nil), m.calls...)
}

// --- Transaction Manager Mock ---

type MockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- Locker Mock ---

// MockLocker runs fn directly and records the keys it was asked to lock.
// A key in Held fails with ErrLockAcquisitionFailed.
type MockLocker struct {
	mu   sync.Mutex
	keys []string

	Held map[string]bool
}

func NewMockLocker() *MockLocker {
	return &MockLocker{Held: make(map[string]bool)}
}

func (m *MockLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.keys = append(m.keys, key)
	held := m.Held[key]
	m.mu.Unlock()
	if held {
		return domainerrors.ErrLockAcquisitionFailed
	}
	return fn(ctx)
}

func (m *MockLocker) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.keys...)
}

// --- Check Queue Mock ---

type MockCheckQueue struct {
	mu       sync.Mutex
	enqueued []uuid.UUID

	Err error
}

func (m *MockCheckQueue) EnqueueCheck(_ context.Context, id uuid.UUID) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueued = append(m.enqueued, id)
	return nil
}

func (m *MockCheckQueue) Enqueued() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.enqueued...)
}
