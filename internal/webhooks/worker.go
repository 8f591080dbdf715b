package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"borderfleet/internal/metrics"
	"borderfleet/internal/model"
	"borderfleet/internal/store"
)

// Worker drains due webhook deliveries on a fixed tick, with exponential
// backoff between attempts and a terminal failure after MaxAttempts.
type Worker struct {
	Store       store.Store
	HTTP        *http.Client
	Stop        chan struct{}
	Interval    time.Duration
	MaxAttempts int
}

func NewWorker(s store.Store, interval time.Duration, maxAttempts int) *Worker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 8
	}
	return &Worker{
		Store:       s,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		Stop:        make(chan struct{}),
		Interval:    interval,
		MaxAttempts: maxAttempts,
	}
}

func (w *Worker) Start() {
	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.Stop:
				return
			case <-ticker.C:
				w.processOnce()
			}
		}
	}()
}

func (w *Worker) processOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	items, err := w.Store.FetchDueWebhookDeliveries(ctx, 50)
	if err != nil || len(items) == 0 {
		return
	}
	for _, it := range items {
		success := false
		next := time.Now().Add(nextBackoff(it.Attempts))
		req, _ := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Event-Type", it.EventType)
		req.Header.Set("X-Delivery-Id", it.ID)
		if it.Secret != "" {
			req.Header.Set("X-Signature", SignHMAC(it.Secret, it.Body))
		}
		start := time.Now()
		resp, err := w.HTTP.Do(req)
		latency := int(time.Since(start).Milliseconds())
		code := 0
		if err == nil && resp != nil {
			code = resp.StatusCode
			if resp.Body != nil {
				_ = resp.Body.Close()
			}
			if code >= 200 && code < 300 {
				success = true
			}
		}
		lastErr := ""
		if !success && err != nil {
			lastErr = err.Error()
		}
		switch {
		case success:
			_ = w.Store.MarkWebhookDelivery(ctx, it.ID, true, nil, "", code, latency)
			w.observe(it.EventType, model.DeliveryDelivered, latency)
		case it.Attempts+1 >= w.MaxAttempts:
			_ = w.Store.FailWebhookDelivery(ctx, it.ID, lastErr, code, latency)
			w.observe(it.EventType, model.DeliveryFailed, latency)
		default:
			_ = w.Store.MarkWebhookDelivery(ctx, it.ID, false, &next, lastErr, code, latency)
			w.observe(it.EventType, model.DeliveryRetry, latency)
		}
	}
}

func (w *Worker) observe(eventType, status string, latencyMs int) {
	metrics.WebhookDeliveries.WithLabelValues(eventType, status).Inc()
	metrics.WebhookLatency.WithLabelValues(eventType, status).Observe(float64(latencyMs))
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
