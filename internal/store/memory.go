package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"borderfleet/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu      sync.Mutex
	plans   map[string]model.Plan // id -> plan
	planTen map[string][]string   // tenant -> plan ids, insertion order
	subs    map[string][]model.Subscription
	metrics map[string][]model.PlanMetrics // tenant -> rows, insertion order
	// Webhook queue state
	deliveries         map[string]*model.WebhookDelivery
	deliveriesByTenant map[string][]string
	dedup              map[string]string // tenant|subscription|dedup key -> delivery id
}

func NewMemory() *Memory {
	return &Memory{
		plans:              map[string]model.Plan{},
		planTen:            map[string][]string{},
		subs:               map[string][]model.Subscription{},
		metrics:            map[string][]model.PlanMetrics{},
		deliveries:         map[string]*model.WebhookDelivery{},
		deliveriesByTenant: map[string][]string{},
		dedup:              map[string]string{},
	}
}

func (m *Memory) CreatePlan(ctx context.Context, p model.Plan) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	m.plans[p.ID] = p
	m.planTen[p.TenantID] = append(m.planTen[p.TenantID], p.ID)
	return p, nil
}

func (m *Memory) GetPlan(ctx context.Context, tenantID, id string) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok || p.TenantID != tenantID {
		return model.Plan{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) ListPlans(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.Plan, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.planTen[tenantID]
	start := 0
	if cursor != "" {
		for i, id := range ids {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	out := []model.Plan{}
	var next string
	for i := start; i < len(ids) && len(out) < limit; i++ {
		p := m.plans[ids[i]]
		if status == "" || p.Status == status {
			out = append(out, p)
		}
		next = ids[i]
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) UpdatePlan(ctx context.Context, p model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.plans[p.ID]
	if !ok || cur.TenantID != p.TenantID {
		return ErrNotFound
	}
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	m.plans[p.ID] = p
	return nil
}

func (m *Memory) DeletePlan(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok || p.TenantID != tenantID {
		return ErrNotFound
	}
	delete(m.plans, id)
	ids := m.planTen[tenantID]
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	m.planTen[tenantID] = out
	kept := m.metrics[tenantID][:0]
	for _, row := range m.metrics[tenantID] {
		if row.PlanID != id {
			kept = append(kept, row)
		}
	}
	m.metrics[tenantID] = kept
	return nil
}

func (m *Memory) SavePlanMetrics(ctx context.Context, pm model.PlanMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pm.CreatedAt.IsZero() {
		pm.CreatedAt = time.Now().UTC()
	}
	m.metrics[pm.TenantID] = append(m.metrics[pm.TenantID], pm)
	return nil
}

func (m *Memory) ListPlanMetrics(ctx context.Context, tenantID, planID string, limit int) ([]model.PlanMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := []model.PlanMetrics{}
	rows := m.metrics[tenantID]
	// newest first
	for i := len(rows) - 1; i >= 0 && len(out) < limit; i-- {
		if planID == "" || rows[i].PlanID == planID {
			out = append(out, rows[i])
		}
	}
	return out, nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Subscription{
		ID:         uuid.New().String(),
		TenantID:   req.TenantID,
		URL:        req.URL,
		Secret:     req.Secret,
		EventTypes: append([]string(nil), req.EventTypes...),
		CreatedAt:  time.Now().UTC(),
	}
	m.subs[req.TenantID] = append(m.subs[req.TenantID], s)
	return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs[tenantID] {
		for _, e := range s.EventTypes {
			if e == eventType || e == "*" {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.subs[tenantID]
	start := 0
	if cursor != "" {
		for i := range list {
			if list[i].ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	end := start + limit
	if end > len(list) {
		end = len(list)
	}
	items := append([]model.Subscription(nil), list[start:end]...)
	next := ""
	if end < len(list) {
		next = list[end-1].ID
	}
	return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	arr := m.subs[tenantID]
	out := make([]model.Subscription, 0, len(arr))
	found := false
	for _, s := range arr {
		if s.ID == id {
			found = true
			continue
		}
		out = append(out, s)
	}
	if !found {
		return ErrNotFound
	}
	m.subs[tenantID] = out
	return nil
}

func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dk := computeDedupKey(payload)
	key := tenantID + "|" + subscriptionID + "|" + dk
	if id, ok := m.dedup[key]; ok {
		return id, nil
	}
	id := uuid.New().String()
	now := time.Now().UTC()
	next := now
	m.deliveries[id] = &model.WebhookDelivery{
		ID:             id,
		TenantID:       tenantID,
		SubscriptionID: subscriptionID,
		EventType:      eventType,
		URL:            url,
		Secret:         secret,
		Body:           append([]byte(nil), payload...),
		Status:         model.DeliveryPending,
		NextAttemptAt:  &next,
		DedupKey:       dk,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.deliveriesByTenant[tenantID] = append(m.deliveriesByTenant[tenantID], id)
	m.dedup[key] = id
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]model.WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []model.WebhookDelivery{}
	for _, id := range m.iterDeliveryIDs() {
		d := m.deliveries[id]
		if d == nil {
			continue
		}
		if (d.Status == model.DeliveryPending || d.Status == model.DeliveryRetry) && d.NextAttemptAt != nil && !d.NextAttemptAt.After(now) {
			out = append(out, *d)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return nil
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	d.UpdatedAt = time.Now().UTC()
	if success {
		d.Status = model.DeliveryDelivered
		d.NextAttemptAt = nil
		d.LastError = ""
		return nil
	}
	d.Status = model.DeliveryRetry
	d.LastError = lastError
	if nextAttemptAt != nil {
		d.NextAttemptAt = nextAttemptAt
	} else {
		next := time.Now().Add(1 * time.Minute)
		d.NextAttemptAt = &next
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id, lastError string, responseCode, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return nil
	}
	d.Attempts++
	d.Status = model.DeliveryFailed
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	d.NextAttemptAt = nil
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.WebhookDelivery, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.deliveriesByTenant[tenantID]
	start := 0
	if cursor != "" {
		for i, id := range ids {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	out := []model.WebhookDelivery{}
	var next string
	for i := start; i < len(ids) && len(out) < limit; i++ {
		d := m.deliveries[ids[i]]
		if d == nil {
			continue
		}
		if status == "" || d.Status == status {
			out = append(out, *d)
		}
		next = ids[i]
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil || d.TenantID != tenantID {
		return ErrNotFound
	}
	now := time.Now().UTC()
	d.Status = model.DeliveryPending
	d.NextAttemptAt = &now
	d.LastError = ""
	d.UpdatedAt = now
	return nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

func (m *Memory) iterDeliveryIDs() []string {
	ids := []string{}
	for _, lst := range m.deliveriesByTenant {
		ids = append(ids, lst...)
	}
	return ids
}
