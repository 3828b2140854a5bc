package api

import (
	"encoding/json"
	"time"

	"ahoss-ai/backend/internal/targeting"
)

// EntityPayload is one entity as submitted by the simulation client. Fields other
// than type and id are accepted and dropped.
type EntityPayload struct {
	Type string          `json:"type"`
	ID   json.RawMessage `json:"id"`
}

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	Entities []EntityPayload `json:"entities" binding:"required"`
}

// PredictResponse is the body of a successful POST /predict.
type PredictResponse struct {
	TargetID json.RawMessage `json:"target_id"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DecisionEvent is broadcast to /predict/stream subscribers after each decision.
type DecisionEvent struct {
	Type         string          `json:"type"`
	RequestID    string          `json:"request_id"`
	EntityCount  int             `json:"entity_count"`
	TargetID     json.RawMessage `json:"target_id"`
	Found        bool            `json:"found"`
	DurationUsec int64           `json:"duration_us"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Scene converts the request into the domain scene, preserving entity order.
func (r PredictRequest) Scene() targeting.Scene {
	if r.Entities == nil {
		return targeting.Scene{}
	}
	entities := make([]targeting.Entity, 0, len(r.Entities))
	for _, e := range r.Entities {
		entities = append(entities, targeting.Entity{Type: e.Type, ID: e.ID})
	}
	return targeting.Scene{Entities: entities}
}

// ResponseFromDecision converts a domain decision into the wire response.
func ResponseFromDecision(d targeting.Decision) PredictResponse {
	return PredictResponse{TargetID: d.TargetID}
}
