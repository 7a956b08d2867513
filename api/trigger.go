package api

import (
	"errors"
	"net/http"

	"github.com/xraph/courier"
	"github.com/xraph/courier/catalog"
)

type triggerRequest struct {
	Event    string            `json:"event"`
	Payload  any               `json:"payload"`
	TenantID string            `json:"tenant_id,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// triggerDelivery is one per-subscription result in a trigger response.
type triggerDelivery struct {
	Success    bool   `json:"success"`
	WebhookID  string `json:"webhook_id"`
	DeliveryID string `json:"delivery_id"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
	LatencyMs  int    `json:"response_time_ms"`
}

type triggerResponse struct {
	Deliveries           []triggerDelivery `json:"deliveries"`
	TotalWebhooks        int               `json:"total_webhooks"`
	SuccessfulDeliveries int               `json:"successful_deliveries"`
}

// trigger dispatches an event and reports every fan-out outcome once all
// deliveries resolve.
func (h *Handler) trigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	event, err := catalog.Parse(req.Event)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := []courier.DispatchOption{}
	if req.TenantID != "" {
		opts = append(opts, courier.ForTenant(req.TenantID))
	}
	if len(req.Metadata) > 0 {
		opts = append(opts, courier.WithMetadata(req.Metadata))
	}

	result, dispatchErr := h.courier.Dispatch(r.Context(), event, req.Payload, opts...)
	if dispatchErr != nil {
		status := http.StatusInternalServerError
		if errors.Is(dispatchErr, courier.ErrUnknownEvent) ||
			errors.Is(dispatchErr, courier.ErrPayloadValidationFailed) {
			status = http.StatusBadRequest
		}
		writeError(w, status, dispatchErr.Error())
		return
	}

	resp := triggerResponse{
		Deliveries:           make([]triggerDelivery, len(result.Attempts)),
		TotalWebhooks:        result.Matched,
		SuccessfulDeliveries: result.Sent,
	}
	for i, att := range result.Attempts {
		d := triggerDelivery{
			Success:    att.Succeeded(),
			WebhookID:  att.SubscriptionID.String(),
			DeliveryID: att.ID.String(),
			LatencyMs:  att.LatencyMs,
		}
		if att.Succeeded() || att.StatusCode != 0 {
			d.StatusCode = att.StatusCode
		} else {
			d.Error = att.Response
		}
		resp.Deliveries[i] = d
	}

	writeJSON(w, http.StatusOK, resp)
}
