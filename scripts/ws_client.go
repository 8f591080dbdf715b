// Package main runs a demo WebSocket client for plan events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Submit a plan request with a short time limit
	body := []byte(`{"timeLimitSec":30}`)
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/plans", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_demo")
	req.Header.Set("X-Role", "dispatcher")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var plan struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&plan); err != nil {
		log.Fatal(err)
	}
	if plan.ID == "" {
		log.Fatal("no plan returned")
	}
	log.Printf("Plan %s finished as %s", plan.ID, plan.Status)

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/graphql/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	hdr.Set("X-Role", "dispatcher")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	// connection_init
	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	// subscribe to planEvents; finished plans replay their terminal event
	payload := map[string]any{
		"query":     "subscription($planId: ID!) { planEvents(planId: $planId) }",
		"variables": map[string]any{"planId": plan.ID},
	}
	pl, _ := json.Marshal(payload)
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	// Wait briefly to receive the replayed terminal event and keepalives
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
