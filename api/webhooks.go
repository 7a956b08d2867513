package api

import (
	"errors"
	"net/http"

	"github.com/xraph/courier"
	"github.com/xraph/courier/catalog"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/subscription"
)

// writeServiceError maps registry errors to HTTP responses: validation
// errors become structured per-field 400s, not-found becomes 404.
func writeServiceError(w http.ResponseWriter, err error) {
	var verrs subscription.ValidationErrors
	if errors.As(err, &verrs) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": verrs,
		})
		return
	}
	if errors.Is(err, courier.ErrSubscriptionNotFound) {
		writeError(w, http.StatusNotFound, "webhook not found")
		return
	}
	if errors.Is(err, courier.ErrAttemptNotFound) {
		writeError(w, http.StatusNotFound, "delivery not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func webhookID(r *http.Request) (id.ID, error) {
	return id.ParseSubscriptionID(r.PathValue("id"))
}

func (h *Handler) createWebhook(w http.ResponseWriter, r *http.Request) {
	var in subscription.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := h.courier.Subscriptions().Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

func (h *Handler) listWebhooks(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	opts := subscription.ListOpts{
		Offset: offset,
		Limit:  limit,
		Search: queryParam(r, "search"),
	}

	if ev := queryParam(r, "event"); ev != "" {
		opts.Event = catalog.Name(ev)
	}
	switch queryParam(r, "status") {
	case "active":
		active := true
		opts.Active = &active
	case "inactive":
		active := false
		opts.Active = &active
	}

	result, err := h.courier.Subscriptions().List(r.Context(), queryParam(r, "tenant_id"), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) getWebhook(w http.ResponseWriter, r *http.Request) {
	subID, err := webhookID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook ID")
		return
	}

	sub, getErr := h.courier.Subscriptions().Get(r.Context(), subID)
	if getErr != nil {
		writeServiceError(w, getErr)
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) updateWebhook(w http.ResponseWriter, r *http.Request) {
	subID, err := webhookID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook ID")
		return
	}

	var in subscription.Update
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, updateErr := h.courier.Subscriptions().Update(r.Context(), subID, in)
	if updateErr != nil {
		writeServiceError(w, updateErr)
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) deleteWebhook(w http.ResponseWriter, r *http.Request) {
	subID, err := webhookID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook ID")
		return
	}

	if deleteErr := h.courier.Subscriptions().Delete(r.Context(), subID); deleteErr != nil {
		writeServiceError(w, deleteErr)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) activateWebhook(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) deactivateWebhook(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	subID, err := webhookID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook ID")
		return
	}

	if setErr := h.courier.Subscriptions().SetActive(r.Context(), subID, active); setErr != nil {
		writeServiceError(w, setErr)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rotateSecret(w http.ResponseWriter, r *http.Request) {
	subID, err := webhookID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook ID")
		return
	}

	newSecret, rotateErr := h.courier.Subscriptions().RotateSecret(r.Context(), subID)
	if rotateErr != nil {
		writeServiceError(w, rotateErr)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"secret": newSecret})
}
