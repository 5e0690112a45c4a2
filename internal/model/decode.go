package model

import (
	"encoding/json"
	"log/slog"
)

// DecodeInterested parses a stored interest list. Corrupt data yields an
// empty list and a warning instead of failing the read.
func DecodeInterested(raw []byte, requestID int64) []InterestedProvider {
	return decodeList[InterestedProvider](raw, "interested_providers", requestID)
}

// DecodeAudit parses a stored audit log with the same fallback as DecodeInterested.
func DecodeAudit(raw []byte, requestID int64) []AuditEntry {
	return decodeList[AuditEntry](raw, "audit_log", requestID)
}

func DecodeServiceItems(raw []byte, requestID int64) []ServiceItem {
	return decodeList[ServiceItem](raw, "service_items", requestID)
}

func decodeList[T any](raw []byte, field string, requestID int64) []T {
	out := []T{}
	if len(raw) == 0 || string(raw) == "null" {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		slog.Warn("corrupt list column, treating as empty",
			"request_id", requestID,
			"field", field,
			"error", err,
		)
		return []T{}
	}
	return out
}
