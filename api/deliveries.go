package api

import (
	"net/http"

	"github.com/xraph/courier/delivery"
	"github.com/xraph/courier/id"
)

func (h *Handler) listDeliveries(w http.ResponseWriter, r *http.Request) {
	subID, err := webhookID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook ID")
		return
	}

	offset, limit := pagination(r)
	opts := delivery.ListOpts{
		Offset: offset,
		Limit:  limit,
	}

	switch queryParam(r, "status") {
	case "success":
		outcome := delivery.OutcomeSuccess
		opts.Outcome = &outcome
	case "failed":
		outcome := delivery.OutcomeFailed
		opts.Outcome = &outcome
	}

	attempts, listErr := h.courier.Store().ListAttempts(r.Context(), subID, opts)
	if listErr != nil {
		writeError(w, http.StatusInternalServerError, listErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deliveries": attempts})
}

func (h *Handler) getDelivery(w http.ResponseWriter, r *http.Request) {
	attID, err := id.ParseAttemptID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid delivery ID")
		return
	}

	att, getErr := h.courier.Store().GetAttempt(r.Context(), attID)
	if getErr != nil {
		writeServiceError(w, getErr)
		return
	}

	writeJSON(w, http.StatusOK, att)
}

func (h *Handler) listRetries(w http.ResponseWriter, r *http.Request) {
	subID, err := webhookID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook ID")
		return
	}

	entries, listErr := h.courier.Store().ListRetries(r.Context(), subID)
	if listErr != nil {
		writeError(w, http.StatusInternalServerError, listErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"retries": entries})
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	subID, err := webhookID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook ID")
		return
	}

	st, statsErr := h.courier.Stats().For(r.Context(), subID)
	if statsErr != nil {
		writeError(w, http.StatusInternalServerError, statsErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, st)
}
