package api

import (
	"fmt"
	"net/url"
	"strings"

	"borderfleet/internal/model"
)

func validatePlanRequest(req *model.PlanRequest) error {
	if req.Vehicles < 0 {
		return fmt.Errorf("vehicles must be >= 0")
	}
	if req.CapacityKg < 0 {
		return fmt.Errorf("capacityKg must be >= 0")
	}
	if req.FixedCost != nil && *req.FixedCost < 0 {
		return fmt.Errorf("fixedCost must be >= 0")
	}
	if req.KmCost != nil && *req.KmCost < 0 {
		return fmt.Errorf("kmCost must be >= 0")
	}
	if req.TimeLimitSec < 0 {
		return fmt.Errorf("timeLimitSec must be >= 0")
	}
	if req.RelativeGap != nil && (*req.RelativeGap < 0 || *req.RelativeGap >= 1) {
		return fmt.Errorf("relativeGap must be in [0,1)")
	}
	for name, kg := range req.Demands {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("demand location name must not be empty")
		}
		if kg < 0 {
			return fmt.Errorf("demand for %s must be >= 0", name)
		}
	}
	return nil
}

var knownEventTypes = map[string]struct{}{
	model.EventPlanCreated:    {},
	model.EventPlanSolving:    {},
	model.EventPlanCompleted:  {},
	model.EventPlanInfeasible: {},
	model.EventPlanFailed:     {},
	"*":                       {},
}

func validateSubscriptionRequest(req *model.SubscriptionRequest) error {
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be an absolute http(s) URL")
	}
	if len(req.EventTypes) == 0 {
		return fmt.Errorf("eventTypes must not be empty")
	}
	for _, et := range req.EventTypes {
		if _, ok := knownEventTypes[et]; !ok {
			return fmt.Errorf("unknown event type: %s", et)
		}
	}
	return nil
}
