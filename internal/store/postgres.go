package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"borderfleet/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// MigrateDir applies every .sql file in dir in lexical order, once each.
// Applied filenames are tracked in schema_migrations.
func (p *Postgres) MigrateDir(dir string) error {
	ctx := context.Background()
	if _, err := p.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename text PRIMARY KEY,
		applied_at timestamptz NOT NULL DEFAULT now()
	)`); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	files := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, name := range files {
		var done bool
		err := p.db.QueryRowContext(ctx, `SELECT true FROM schema_migrations WHERE filename=$1`, name).Scan(&done)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		tx, err := p.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) CreatePlan(ctx context.Context, plan model.Plan) (model.Plan, error) {
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
	_, err = p.db.ExecContext(ctx, `INSERT INTO plans (id, tenant_id, status, request, result, error, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		plan.ID, plan.TenantID, plan.Status, req, res, nullIfEmpty(plan.Error), plan.CreatedAt, plan.UpdatedAt)
	if err != nil {
		return model.Plan{}, err
	}
	return plan, nil
}

func (p *Postgres) GetPlan(ctx context.Context, tenantID, id string) (model.Plan, error) {
	if uuid.Validate(id) != nil {
		return model.Plan{}, ErrNotFound
	}
	row := p.db.QueryRowContext(ctx, `SELECT id::text, status, request, result, COALESCE(error,''), created_at, updated_at
		FROM plans WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	plan, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Plan{}, ErrNotFound
	}
	if err != nil {
		return model.Plan{}, err
	}
	plan.TenantID = tenantID
	return plan, nil
}

func (p *Postgres) ListPlans(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.Plan, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT id::text, status, request, result, COALESCE(error,''), created_at, updated_at FROM plans WHERE tenant_id=$1`
	args := []any{tenantID}
	if status != "" {
		args = append(args, status)
		q += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if cursor != "" {
		args = append(args, cursor)
		q += fmt.Sprintf(" AND id::text > $%d", len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY id LIMIT $%d", len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Plan{}
	var last string
	for rows.Next() {
		plan, err := scanPlan(rows)
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

func (p *Postgres) UpdatePlan(ctx context.Context, plan model.Plan) error {
	if uuid.Validate(plan.ID) != nil {
		return ErrNotFound
	}
	res, err := marshalResult(plan.Result)
	if err != nil {
		return err
	}
	r, err := p.db.ExecContext(ctx, `UPDATE plans SET status=$1, result=$2, error=$3, updated_at=now()
		WHERE tenant_id=$4 AND id=$5`, plan.Status, res, nullIfEmpty(plan.Error), plan.TenantID, plan.ID)
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

func (p *Postgres) DeletePlan(ctx context.Context, tenantID, id string) error {
	if uuid.Validate(id) != nil {
		return ErrNotFound
	}
	r, err := p.db.ExecContext(ctx, `DELETE FROM plans WHERE tenant_id=$1 AND id=$2`, tenantID, id)
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

func (p *Postgres) SavePlanMetrics(ctx context.Context, m model.PlanMetrics) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO plan_metrics (id, tenant_id, plan_id, variables, constraints, solve_status, objective, gap, wall_ms, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		uuid.New().String(), m.TenantID, m.PlanID, m.Variables, m.Constraints, m.SolveStatus, m.Objective, m.Gap, m.WallMs, m.CreatedAt)
	return err
}

func (p *Postgres) ListPlanMetrics(ctx context.Context, tenantID, planID string, limit int) ([]model.PlanMetrics, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT plan_id::text, variables, constraints, solve_status, objective, gap, wall_ms, created_at FROM plan_metrics WHERE tenant_id=$1`
	args := []any{tenantID}
	if planID != "" {
		if uuid.Validate(planID) != nil {
			return []model.PlanMetrics{}, nil
		}
		args = append(args, planID)
		q += fmt.Sprintf(" AND plan_id=$%d", len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.PlanMetrics{}
	for rows.Next() {
		var m model.PlanMetrics
		if err := rows.Scan(&m.PlanID, &m.Variables, &m.Constraints, &m.SolveStatus, &m.Objective, &m.Gap, &m.WallMs, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.TenantID = tenantID
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	ev, _ := json.Marshal(req.EventTypes)
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_subscriptions (id, tenant_id, url, secret, event_types, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`, id, req.TenantID, req.URL, nullIfEmpty(req.Secret), ev, now)
	if err != nil {
		return model.Subscription{}, err
	}
	return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Secret: req.Secret, EventTypes: req.EventTypes, CreatedAt: now}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), event_types, created_at
		FROM webhook_subscriptions WHERE tenant_id=$1 AND (event_types @> $2::jsonb OR event_types @> '["*"]'::jsonb)`,
		tenantID, fmt.Sprintf("[%q]", eventType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var ev []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.TenantID = tenantID
		_ = json.Unmarshal(ev, &s.EventTypes)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), event_types, created_at
			FROM webhook_subscriptions WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), event_types, created_at
			FROM webhook_subscriptions WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	var out []model.Subscription
	var last string
	for rows.Next() {
		var s model.Subscription
		var ev []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev, &s.CreatedAt); err != nil {
			return nil, "", err
		}
		s.TenantID = tenantID
		_ = json.Unmarshal(ev, &s.EventTypes)
		out = append(out, s)
		last = s.ID
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	if uuid.Validate(id) != nil {
		return ErrNotFound
	}
	r, err := p.db.ExecContext(ctx, `DELETE FROM webhook_subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
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

// Webhook deliveries
func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	dk := computeDedupKey(payload)
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now(),$8)
		ON CONFLICT (tenant_id, subscription_id, dedup_key) DO NOTHING`, id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload, dk)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]model.WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
		FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
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

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode, latencyMs int) error {
	if !success {
		if nextAttemptAt == nil {
			t := time.Now().Add(1 * time.Minute)
			nextAttemptAt = &t
		}
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, response_code=$4, latency_ms=$5, updated_at=now() WHERE id=$1`,
			id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
		return err
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', last_error=NULL, next_attempt_at=NULL, response_code=$2, latency_ms=$3, updated_at=now() WHERE id=$1`,
		id, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id, lastError string, responseCode, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='failed', last_error=$2, next_attempt_at=NULL, response_code=$3, latency_ms=$4, updated_at=now() WHERE id=$1`,
		id, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.WebhookDelivery, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT id::text, COALESCE(subscription_id::text,''), event_type, url, status, attempts, next_attempt_at, COALESCE(last_error,''), COALESCE(response_code,0), COALESCE(latency_ms,0), COALESCE(dedup_key,''), created_at, updated_at
		FROM webhook_deliveries WHERE tenant_id=$1`
	args := []any{tenantID}
	if status != "" {
		args = append(args, status)
		q += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if cursor != "" {
		args = append(args, cursor)
		q += fmt.Sprintf(" AND id::text > $%d", len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY id LIMIT $%d", len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.WebhookDelivery{}
	var last string
	for rows.Next() {
		var d model.WebhookDelivery
		var nextAt sql.NullTime
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Status, &d.Attempts, &nextAt, &d.LastError, &d.ResponseCode, &d.LatencyMs, &d.DedupKey, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, "", err
		}
		d.TenantID = tenantID
		if nextAt.Valid {
			t := nextAt.Time
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

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
	if uuid.Validate(id) != nil {
		return ErrNotFound
	}
	r, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now(), last_error=NULL, updated_at=now() WHERE tenant_id=$1 AND id=$2`, tenantID, id)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (model.Plan, error) {
	var plan model.Plan
	var req, res []byte
	if err := row.Scan(&plan.ID, &plan.Status, &req, &res, &plan.Error, &plan.CreatedAt, &plan.UpdatedAt); err != nil {
		return model.Plan{}, err
	}
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

func marshalResult(r *model.PlanResult) (any, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func computeDedupKey(payload []byte) string {
	// try to parse JSON and use id
	var m map[string]any
	if json.Unmarshal(payload, &m) == nil {
		if v, ok := m["id"].(string); ok && v != "" {
			return v
		}
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:8])
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
