package api

import (
	"net/http"

	"github.com/xraph/courier/audit"
)

// listActivity returns the registry activity log, newest first.
func (h *Handler) listActivity(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	opts := audit.ListOpts{
		Offset:   offset,
		Limit:    limit,
		EntityID: queryParam(r, "entity_id"),
		Action:   queryParam(r, "action"),
	}

	entries, err := h.courier.Audit().List(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"activity": entries})
}
