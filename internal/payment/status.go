package payment

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Gateway callbacks carry a numeric state next to (or instead of) a status string.
const (
	callbackStateCompleted = 4
	callbackStateFailed    = 5
)

var callbackReferenceFields = []string{"reference", "transaction_id", "id"}

// ParseUpstreamStatus maps the gateway's status vocabulary onto Status.
// The second return value is false when the word is not recognised.
func ParseUpstreamStatus(raw string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return StatusPending, true
	case "processing":
		return StatusProcessing, true
	case "completed", "success":
		return StatusCompleted, true
	case "failed":
		return StatusFailed, true
	case "cancelled", "canceled":
		return StatusCancelled, true
	case "timeout":
		return StatusTimeout, true
	}

	return "", false
}

// CallbackStatus applies the fixed callback rule: completed/success or state 4
// is completed, failed/cancelled or state 5 is failed, anything else is processing.
func CallbackStatus(body map[string]any) Status {
	status := strings.ToLower(lookupString(body, []string{"status"}))
	state, hasState := lookupInt(body, "state")

	switch {
	case status == "completed" || status == "success" || (hasState && state == callbackStateCompleted):
		return StatusCompleted
	case status == "failed" || status == "cancelled" || (hasState && state == callbackStateFailed):
		return StatusFailed
	}

	return StatusProcessing
}

// advances reports whether moving from one status to another is a forward step.
func advances(from, to Status) bool {
	if from == to || from.Terminal() {
		return false
	}

	if to.Terminal() {
		return true
	}

	return from == StatusPending && to == StatusProcessing
}

// lookupString returns the first non-empty scalar found under fields, as a string.
func lookupString(body map[string]any, fields []string) string {
	for _, f := range fields {
		switch v := body[f].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		}
	}

	return ""
}

func lookupInt(body map[string]any, field string) (int64, bool) {
	switch v := body[field].(type) {
	case float64:
		return int64(v), v == float64(int64(v))
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	}

	return 0, false
}

// decodeObject decodes raw into a map, returning an empty map for anything
// that is not a JSON object.
func decodeObject(raw json.RawMessage) map[string]any {
	body := map[string]any{}
	if len(raw) == 0 {
		return body
	}

	if err := json.Unmarshal(raw, &body); err != nil || body == nil {
		return map[string]any{}
	}

	return body
}

// mergeObjects overlays next onto prev, keeping keys that only prev carries.
func mergeObjects(prev, next json.RawMessage) json.RawMessage {
	merged := decodeObject(prev)
	for k, v := range decodeObject(next) {
		merged[k] = v
	}

	out, err := json.Marshal(merged)
	if err != nil {
		return next
	}

	return out
}
