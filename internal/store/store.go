package store

import (
	"context"
	"errors"
	"time"

	"borderfleet/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Plans
	CreatePlan(ctx context.Context, p model.Plan) (model.Plan, error)
	GetPlan(ctx context.Context, tenantID, id string) (model.Plan, error)
	ListPlans(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.Plan, string, error)
	UpdatePlan(ctx context.Context, p model.Plan) error
	DeletePlan(ctx context.Context, tenantID, id string) error

	// Solve metrics
	SavePlanMetrics(ctx context.Context, m model.PlanMetrics) error
	ListPlanMetrics(ctx context.Context, tenantID, planID string, limit int) ([]model.PlanMetrics, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, tenantID, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]model.WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id, lastError string, responseCode, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.WebhookDelivery, string, error)
	RetryWebhookDelivery(ctx context.Context, tenantID, id string) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}

var ErrNotFound = errors.New("not found")
