package api

import (
	"net/http"

	"github.com/xraph/courier/catalog"
)

// listEvents returns the full event catalog, grouped for documentation UIs.
func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	defs := catalog.All()

	if group := queryParam(r, "group"); group != "" {
		filtered := defs[:0]
		for _, def := range defs {
			if def.Group == group {
				filtered = append(filtered, def)
			}
		}
		defs = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": defs})
}
