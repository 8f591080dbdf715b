package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"borderfleet/internal/model"
)

// Minimal GraphQL over WebSocket (graphql-transport-ws like) to stream planEvents

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type subscribePayload struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// GraphQLWSHandler handles /graphql/ws
func (s *Server) GraphQLWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	// Track subscriptions: id -> planID and channel
	type sub struct {
		planID string
		ch     chan SSEEvent
	}
	subs := map[string]sub{}

	// Read loop
	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	// Write helper. The keepalive and fanout goroutines share the
	// connection, and gorilla allows one writer at a time.
	var writeMu sync.Mutex
	write := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	// Expect connection_init first
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "connection_init":
			// Acknowledge
			_ = write(wsMessage{Type: "connection_ack"})
			// Start keepalive
			go func() {
				ticker := time.NewTicker(20 * time.Second)
				defer ticker.Stop()
				for range ticker.C {
					if err := write(wsMessage{Type: "ping"}); err != nil {
						return
					}
				}
			}()
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			// Parse subscription payload and set up plan event stream
			var pl subscribePayload
			_ = json.Unmarshal(msg.Payload, &pl)
			pid := ""
			if pl.Variables != nil {
				if v, ok := pl.Variables["planId"].(string); ok {
					pid = v
				}
			}
			if pid == "" {
				_ = write(wsMessage{Type: "error", ID: msg.ID, Payload: []byte(`{"message":"planId required"}`)})
				_ = write(wsMessage{Type: "complete", ID: msg.ID})
				continue
			}
			// Tenant scope: the plan must be visible to the caller.
			pr := s.getPrincipal(r)
			plan, err := s.Store.GetPlan(r.Context(), pr.Tenant, pid)
			if err != nil {
				_ = write(wsMessage{Type: "error", ID: msg.ID, Payload: []byte(`{"message":"plan not found"}`)})
				_ = write(wsMessage{Type: "complete", ID: msg.ID})
				continue
			}
			// determine requested field: planEvents or solveProgress
			field := "planEvents"
			if strings.Contains(strings.ToLower(pl.Query), "solveprogress") {
				field = "solveProgress"
			}
			ch := s.Broker.Subscribe(pid)
			subs[msg.ID] = sub{planID: pid, ch: ch}
			// Fanout goroutine; ends when Unsubscribe closes the channel
			go func(id string, c chan SSEEvent, field string) {
				for evt := range c {
					if field == "solveProgress" && evt.Type != "plan.solving" {
						continue
					}
					data := map[string]any{field: map[string]any{"type": evt.Type, "data": evt.Data}}
					payload, _ := json.Marshal(map[string]any{"data": data})
					_ = write(wsMessage{Type: "next", ID: id, Payload: payload})
				}
				_ = write(wsMessage{Type: "complete", ID: id})
			}(msg.ID, ch, field)
			// Late subscribers to a finished plan still get its terminal event.
			if field == "planEvents" && plan.Status != model.PlanStatusSolving {
				data := map[string]any{field: map[string]any{"type": planEventType(plan.Status), "data": terminalEventData(plan)}}
				payload, _ := json.Marshal(map[string]any{"data": data})
				_ = write(wsMessage{Type: "next", ID: msg.ID, Payload: payload})
			}
		case "complete":
			if s0, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(s0.planID, s0.ch)
				delete(subs, msg.ID)
			}
		default:
			// ignore
		}
	}
	// Cleanup
	for id, s0 := range subs {
		s.Broker.Unsubscribe(s0.planID, s0.ch)
		delete(subs, id)
	}
}
