// Package model holds the wire-level types shared by the API, the stores
// and the planning pipeline.
package model

import "time"

// Plan lifecycle statuses.
const (
	PlanStatusSolving    = "solving"
	PlanStatusCompleted  = "completed"
	PlanStatusInfeasible = "infeasible"
	PlanStatusFailed     = "failed"
)

// PlanRequest is a plan submission. Zero fields fall back to the server's
// configured defaults; demand overrides are keyed by location name.
type PlanRequest struct {
	TenantID        string           `json:"tenantId,omitempty"`
	Demands         map[string]int64 `json:"demands,omitempty"`
	Vehicles        int              `json:"vehicles,omitempty"`
	CapacityKg      int64            `json:"capacityKg,omitempty"`
	FixedCost       *float64         `json:"fixedCost,omitempty"`
	KmCost          *float64         `json:"kmCost,omitempty"`
	SplitDeliveries *bool            `json:"splitDeliveries,omitempty"`
	TimeLimitSec    float64          `json:"timeLimitSec,omitempty"`
	RelativeGap     *float64         `json:"relativeGap,omitempty"`
}

// Plan is a persisted planning run.
type Plan struct {
	ID        string      `json:"id"`
	TenantID  string      `json:"tenantId"`
	Status    string      `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
	Request   PlanRequest `json:"request"`
	Result    *PlanResult `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// PlanResult is the solved outcome attached to a completed plan.
type PlanResult struct {
	SolveStatus  string     `json:"solveStatus"`
	Objective    float64    `json:"objective"`
	Gap          float64    `json:"gap"`
	WallMs       int64      `json:"wallMs"`
	VehiclesUsed int        `json:"vehiclesUsed"`
	Routes       []RouteOut `json:"routes"`
	TotalKm      float64    `json:"totalKm"`
	TotalLoadKg  float64    `json:"totalLoadKg"`
	FixedCost    float64    `json:"fixedCost"`
	DistanceCost float64    `json:"distanceCost"`
	TotalCost    float64    `json:"totalCost"`
	Warnings     []string   `json:"warnings,omitempty"`
	Artifacts    *Artifacts `json:"artifacts,omitempty"`
}

// RouteOut is one vehicle's tour in visit order, origin to origin.
type RouteOut struct {
	Vehicle      int      `json:"vehicle"`
	Stops        []string `json:"stops"`
	Km           float64  `json:"km"`
	LoadKg       float64  `json:"loadKg"`
	FixedCost    float64  `json:"fixedCost"`
	DistanceCost float64  `json:"distanceCost"`
	TotalCost    float64  `json:"totalCost"`
}

// Artifacts lists solver dump files written for a run.
type Artifacts struct {
	LP  string `json:"lp,omitempty"`
	Sol string `json:"sol,omitempty"`
	IIS string `json:"iis,omitempty"`
}

// PlanMetrics captures model size and solver statistics for one run.
type PlanMetrics struct {
	PlanID      string    `json:"planId"`
	TenantID    string    `json:"tenantId"`
	Variables   int       `json:"variables"`
	Constraints int       `json:"constraints"`
	SolveStatus string    `json:"solveStatus"`
	Objective   float64   `json:"objective"`
	Gap         float64   `json:"gap"`
	WallMs      int64     `json:"wallMs"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Location describes one topology node with its demand and role.
type Location struct {
	Name     string `json:"name"`
	Role     string `json:"role"`
	DemandKg int64  `json:"demandKg"`
}

// Location roles.
const (
	RoleOrigin      = "origin"
	RoleBorderExit  = "border_exit"
	RoleBorderEntry = "border_entry"
	RoleDelivery    = "delivery"
)

// SubscriptionRequest registers a webhook endpoint.
type SubscriptionRequest struct {
	TenantID   string   `json:"tenantId"`
	URL        string   `json:"url"`
	Secret     string   `json:"secret,omitempty"`
	EventTypes []string `json:"eventTypes"`
}

// Subscription is a stored webhook subscription.
type Subscription struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	URL        string    `json:"url"`
	Secret     string    `json:"-"`
	EventTypes []string  `json:"eventTypes"`
	CreatedAt  time.Time `json:"createdAt"`
}

// WebhookDelivery is one queued or finished webhook attempt chain.
type WebhookDelivery struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenantId"`
	SubscriptionID string     `json:"subscriptionId"`
	EventType      string     `json:"eventType"`
	URL            string     `json:"url"`
	Secret         string     `json:"-"`
	Body           []byte     `json:"-"`
	Status         string     `json:"status"`
	Attempts       int        `json:"attempts"`
	NextAttemptAt  *time.Time `json:"nextAttemptAt,omitempty"`
	LastError      string     `json:"lastError,omitempty"`
	ResponseCode   int        `json:"responseCode,omitempty"`
	LatencyMs      int        `json:"latencyMs,omitempty"`
	DedupKey       string     `json:"dedupKey,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Webhook delivery statuses.
const (
	DeliveryPending   = "pending"
	DeliveryRetry     = "retry"
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

// Event is a run lifecycle notification fanned out to SSE, WebSocket and
// webhook consumers.
type Event struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	TS   string         `json:"ts"`
	Data map[string]any `json:"data"`
}

// Event types emitted around a plan run.
const (
	EventPlanCreated    = "plan.created"
	EventPlanSolving    = "plan.solving"
	EventPlanCompleted  = "plan.completed"
	EventPlanInfeasible = "plan.infeasible"
	EventPlanFailed     = "plan.failed"
)
