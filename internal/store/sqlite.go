package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"borderfleet/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS plans (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	status TEXT NOT NULL,
	request TEXT NOT NULL,
	result TEXT,
	error TEXT,
	created_at_ms INTEGER NOT NULL,
	updated_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS plans_tenant_idx ON plans(tenant_id, id);

CREATE TABLE IF NOT EXISTS plan_metrics (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	plan_id TEXT NOT NULL,
	variables INTEGER NOT NULL,
	constraints INTEGER NOT NULL,
	solve_status TEXT NOT NULL,
	objective REAL NOT NULL,
	gap REAL NOT NULL,
	wall_ms INTEGER NOT NULL,
	created_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS plan_metrics_tenant_idx ON plan_metrics(tenant_id, plan_id);

CREATE TABLE IF NOT EXISTS webhook_subscriptions (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	url TEXT NOT NULL,
	secret TEXT,
	event_types TEXT NOT NULL,
	created_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS webhook_subscriptions_tenant_idx ON webhook_subscriptions(tenant_id, id);

CREATE TABLE IF NOT EXISTS webhook_deliveries (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	subscription_id TEXT,
	event_type TEXT NOT NULL,
	url TEXT NOT NULL,
	secret TEXT,
	payload BLOB,
	status TEXT NOT NULL DEFAULT 'pending',
	attempts INTEGER NOT NULL DEFAULT 0,
	next_attempt_at_ms INTEGER,
	last_error TEXT,
	response_code INTEGER,
	latency_ms INTEGER,
	dedup_key TEXT,
	created_at_ms INTEGER NOT NULL,
	updated_at_ms INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS webhook_deliveries_dedup_idx ON webhook_deliveries(tenant_id, subscription_id, dedup_key);
CREATE INDEX IF NOT EXISTS webhook_deliveries_due_idx ON webhook_deliveries(status, next_attempt_at_ms);
`

// SQLite is a file-backed store for single-node deployments and the CLI.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc.org/sqlite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Close() error { return s.db.Close() }

func msToTime(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func (s *SQLite) CreatePlan(ctx context.Context, plan model.Plan) (model.Plan, error) {
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now
	req, err := json.Marshal(plan.Request)
	if err != nil {
		return model.Plan{}, err
	}
	res, err := marshalResult(plan.Result)
	if err != nil {
		return model.Plan{}, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO plans (id, tenant_id, status, request, result, error, created_at_ms, updated_at_ms)
		VALUES (?,?,?,?,?,?,?,?)`,
		plan.ID, plan.TenantID, plan.Status, req, res, nullIfEmpty(plan.Error), plan.CreatedAt.UnixMilli(), plan.UpdatedAt.UnixMilli())
	if err != nil {
		return model.Plan{}, err
	}
	return plan, nil
}

func (s *SQLite) GetPlan(ctx context.Context, tenantID, id string) (model.Plan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, status, request, result, COALESCE(error,''), created_at_ms, updated_at_ms
		FROM plans WHERE tenant_id=? AND id=?`, tenantID, id)
	plan, err := scanPlanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Plan{}, ErrNotFound
	}
	if err != nil {
		return model.Plan{}, err
	}
	plan.TenantID = tenantID
	return plan, nil
}

func (s *SQLite) ListPlans(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.Plan, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT id, status, request, result, COALESCE(error,''), created_at_ms, updated_at_ms FROM plans WHERE tenant_id=?`
	args := []any{tenantID}
	if status != "" {
		q += ` AND status=?`
		args = append(args, status)
	}
	if cursor != "" {
		q += ` AND id > ?`
		args = append(args, cursor)
	}
	q += ` ORDER BY id LIMIT ?`
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Plan{}
	var last string
	for rows.Next() {
		plan, err := scanPlanSQLite(rows)
		if err != nil {
			return nil, "", err
		}
		plan.TenantID = tenantID
		out = append(out, plan)
		last = plan.ID
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, nil
}

func (s *SQLite) UpdatePlan(ctx context.Context, plan model.Plan) error {
	res, err := marshalResult(plan.Result)
	if err != nil {
		return err
	}
	r, err := s.db.ExecContext(ctx, `UPDATE plans SET status=?, result=?, error=?, updated_at_ms=? WHERE tenant_id=? AND id=?`,
		plan.Status, res, nullIfEmpty(plan.Error), time.Now().UTC().UnixMilli(), plan.TenantID, plan.ID)
	if err != nil {
		return err
	}
	n, err := r.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) DeletePlan(ctx context.Context, tenantID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	r, err := tx.ExecContext(ctx, `DELETE FROM plans WHERE tenant_id=? AND id=?`, tenantID, id)
	if err != nil {
		return err
	}
	n, err := r.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM plan_metrics WHERE tenant_id=? AND plan_id=?`, tenantID, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) SavePlanMetrics(ctx context.Context, m model.PlanMetrics) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO plan_metrics (id, tenant_id, plan_id, variables, constraints, solve_status, objective, gap, wall_ms, created_at_ms)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		uuid.New().String(), m.TenantID, m.PlanID, m.Variables, m.Constraints, m.SolveStatus, m.Objective, m.Gap, m.WallMs, m.CreatedAt.UnixMilli())
	return err
}

func (s *SQLite) ListPlanMetrics(ctx context.Context, tenantID, planID string, limit int) ([]model.PlanMetrics, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT plan_id, variables, constraints, solve_status, objective, gap, wall_ms, created_at_ms FROM plan_metrics WHERE tenant_id=?`
	args := []any{tenantID}
	if planID != "" {
		q += ` AND plan_id=?`
		args = append(args, planID)
	}
	q += ` ORDER BY created_at_ms DESC LIMIT ?`
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.PlanMetrics{}
	for rows.Next() {
		var m model.PlanMetrics
		var ms int64
		if err := rows.Scan(&m.PlanID, &m.Variables, &m.Constraints, &m.SolveStatus, &m.Objective, &m.Gap, &m.WallMs, &ms); err != nil {
			return nil, err
		}
		m.TenantID = tenantID
		m.CreatedAt = msToTime(ms)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLite) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	ev, _ := json.Marshal(req.EventTypes)
	_, err := s.db.ExecContext(ctx, `INSERT INTO webhook_subscriptions (id, tenant_id, url, secret, event_types, created_at_ms)
		VALUES (?,?,?,?,?,?)`, id, req.TenantID, req.URL, nullIfEmpty(req.Secret), ev, now.UnixMilli())
	if err != nil {
		return model.Subscription{}, err
	}
	return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Secret: req.Secret, EventTypes: req.EventTypes, CreatedAt: now}, nil
}

func (s *SQLite) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	// SQLite has no JSON containment operator; filter in Go.
	subs, _, err := s.ListSubscriptions(ctx, tenantID, "", 500)
	if err != nil {
		return nil, err
	}
	var out []model.Subscription
	for _, sub := range subs {
		for _, e := range sub.EventTypes {
			if e == eventType || e == "*" {
				out = append(out, sub)
				break
			}
		}
	}
	return out, nil
}

func (s *SQLite) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT id, url, COALESCE(secret,''), event_types, created_at_ms FROM webhook_subscriptions WHERE tenant_id=?`
	args := []any{tenantID}
	if cursor != "" {
		q += ` AND id > ?`
		args = append(args, cursor)
	}
	q += ` ORDER BY id LIMIT ?`
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	var out []model.Subscription
	var last string
	for rows.Next() {
		var sub model.Subscription
		var ev []byte
		var ms int64
		if err := rows.Scan(&sub.ID, &sub.URL, &sub.Secret, &ev, &ms); err != nil {
			return nil, "", err
		}
		sub.TenantID = tenantID
		sub.CreatedAt = msToTime(ms)
		_ = json.Unmarshal(ev, &sub.EventTypes)
		out = append(out, sub)
		last = sub.ID
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, rows.Err()
}

func (s *SQLite) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	r, err := s.db.ExecContext(ctx, `DELETE FROM webhook_subscriptions WHERE tenant_id=? AND id=?`, tenantID, id)
	if err != nil {
		return err
	}
	n, err := r.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC().UnixMilli()
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at_ms, dedup_key, created_at_ms, updated_at_ms)
		VALUES (?,?,?,?,?,?,?,'pending',0,?,?,?,?)`,
		id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload, now, computeDedupKey(payload), now, now)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLite) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]model.WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, tenant_id, COALESCE(subscription_id,''), event_type, url, COALESCE(secret,''), payload, status, attempts
		FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at_ms <= ? ORDER BY next_attempt_at_ms ASC LIMIT ?`,
		time.Now().UTC().UnixMilli(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.WebhookDelivery{}
	for rows.Next() {
		var d model.WebhookDelivery
		if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Body, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLite) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode, latencyMs int) error {
	now := time.Now().UTC().UnixMilli()
	if !success {
		if nextAttemptAt == nil {
			t := time.Now().Add(1 * time.Minute)
			nextAttemptAt = &t
		}
		_, err := s.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=?, next_attempt_at_ms=?, response_code=?, latency_ms=?, updated_at_ms=? WHERE id=?`,
			nullIfEmpty(lastError), nextAttemptAt.UnixMilli(), responseCode, latencyMs, now, id)
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', last_error=NULL, next_attempt_at_ms=NULL, response_code=?, latency_ms=?, updated_at_ms=? WHERE id=?`,
		responseCode, latencyMs, now, id)
	return err
}

func (s *SQLite) FailWebhookDelivery(ctx context.Context, id, lastError string, responseCode, latencyMs int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='failed', last_error=?, next_attempt_at_ms=NULL, response_code=?, latency_ms=?, updated_at_ms=? WHERE id=?`,
		nullIfEmpty(lastError), responseCode, latencyMs, time.Now().UTC().UnixMilli(), id)
	return err
}

func (s *SQLite) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.WebhookDelivery, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT id, COALESCE(subscription_id,''), event_type, url, status, attempts, next_attempt_at_ms, COALESCE(last_error,''), COALESCE(response_code,0), COALESCE(latency_ms,0), COALESCE(dedup_key,''), created_at_ms, updated_at_ms
		FROM webhook_deliveries WHERE tenant_id=?`
	args := []any{tenantID}
	if status != "" {
		q += ` AND status=?`
		args = append(args, status)
	}
	if cursor != "" {
		q += ` AND id > ?`
		args = append(args, cursor)
	}
	q += ` ORDER BY id LIMIT ?`
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.WebhookDelivery{}
	var last string
	for rows.Next() {
		var d model.WebhookDelivery
		var nextAt sql.NullInt64
		var createdMs, updatedMs int64
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Status, &d.Attempts, &nextAt, &d.LastError, &d.ResponseCode, &d.LatencyMs, &d.DedupKey, &createdMs, &updatedMs); err != nil {
			return nil, "", err
		}
		d.TenantID = tenantID
		d.CreatedAt = msToTime(createdMs)
		d.UpdatedAt = msToTime(updatedMs)
		if nextAt.Valid {
			t := msToTime(nextAt.Int64)
			d.NextAttemptAt = &t
		}
		out = append(out, d)
		last = d.ID
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, rows.Err()
}

func (s *SQLite) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
	now := time.Now().UTC().UnixMilli()
	r, err := s.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at_ms=?, last_error=NULL, updated_at_ms=? WHERE tenant_id=? AND id=?`,
		now, now, tenantID, id)
	if err != nil {
		return err
	}
	n, err := r.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPlanSQLite(row rowScanner) (model.Plan, error) {
	var plan model.Plan
	var req, res []byte
	var createdMs, updatedMs int64
	if err := row.Scan(&plan.ID, &plan.Status, &req, &res, &plan.Error, &createdMs, &updatedMs); err != nil {
		return model.Plan{}, err
	}
	plan.CreatedAt = msToTime(createdMs)
	plan.UpdatedAt = msToTime(updatedMs)
	if err := json.Unmarshal(req, &plan.Request); err != nil {
		return model.Plan{}, err
	}
	if len(res) > 0 {
		plan.Result = &model.PlanResult{}
		if err := json.Unmarshal(res, plan.Result); err != nil {
			return model.Plan{}, err
		}
	}
	return plan, nil
}
