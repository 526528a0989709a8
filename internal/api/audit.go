package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/homesec-core/internal/audit"
)

// handleListAudit returns applied commands, newest first.
//
// Query parameters: topic, kind, limit (default 50, max 200), offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeUnavailable(w, "audit trail not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Topic: q.Get("topic"),
		Kind:  q.Get("kind"),
	}

	var ok bool
	if filter.Limit, ok = intParam(q.Get("limit")); !ok {
		writeBadRequest(w, "limit must be a non-negative integer")
		return
	}
	if filter.Offset, ok = intParam(q.Get("offset")); !ok {
		writeBadRequest(w, "offset must be a non-negative integer")
		return
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit entries failed", "error", err, "request_id", requestIDFrom(r))
		writeInternalError(w, "failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// intParam parses an optional non-negative integer query parameter.
func intParam(v string) (int, bool) {
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
