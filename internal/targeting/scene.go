package targeting

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// EnemyUnitType is the entity category the targeting rule selects.
const EnemyUnitType = "Enemy_Unit"

// Entity is one simulated object from a scene snapshot. Only the category and
// identifier are read; the id is kept as raw JSON so the same JSON value is echoed back.
type Entity struct {
	Type string          `json:"type"`
	ID   json.RawMessage `json:"id"`
}

// Scene is the ordered entity list submitted in one request.
type Scene struct {
	Entities []Entity `json:"entities"`
}

// Decision carries the selected target identifier, or null when nothing was selected.
type Decision struct {
	TargetID json.RawMessage `json:"target_id"`
}

// Found reports whether the decision designates a target.
func (d Decision) Found() bool {
	return hasID(d.TargetID)
}

// Validate checks the structural constraints the decoder cannot express.
func (s Scene) Validate() error {
	if s.Entities == nil {
		return newValidationError("missing entities field", nil)
	}
	for i, entity := range s.Entities {
		if !validID(entity.ID) {
			return newValidationError("entity "+strconv.Itoa(i)+": id must be a string or number", nil)
		}
	}
	return nil
}

func hasID(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func validID(raw json.RawMessage) bool {
	if !hasID(raw) {
		return true
	}
	switch c := bytes.TrimSpace(raw)[0]; {
	case c == '"':
		return true
	case c == '-' || (c >= '0' && c <= '9'):
		return true
	default:
		return false
	}
}

// isFalsyID reports identifiers that are present but empty: "" or a zero number.
func isFalsyID(raw json.RawMessage) bool {
	if !hasID(raw) {
		return false
	}
	trimmed := bytes.TrimSpace(raw)
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return false
		}
		return s == ""
	}
	v, err := strconv.ParseFloat(string(trimmed), 64)
	return err == nil && v == 0
}

// IDString renders an identifier for logs: strings unquoted, numbers verbatim.
func IDString(raw json.RawMessage) string {
	if !hasID(raw) {
		return ""
	}
	trimmed := bytes.TrimSpace(raw)
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}
