package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/optimalsupps/storefront/internal/httpx"
	"github.com/optimalsupps/storefront/internal/settlement"
)

// maxWebhookBody bounds the webhook payload size.
const maxWebhookBody = 1 << 20

// PaymentWebhook handles POST /v1/webhooks/payment. Duplicate deliveries
// return 200 so the processor stops redelivering; persistence failures
// return 500 so it retries.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "reading body failed")
		return
	}

	result, err := h.settler.Process(r.Context(), payload, r.Header.Get(settlement.SignatureHeader))
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusOK, result)
	case errors.Is(err, settlement.ErrBadEnvelope),
		errors.Is(err, settlement.ErrUnknownOrder):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, settlement.ErrMissingSignature),
		errors.Is(err, settlement.ErrBadSignature),
		errors.Is(err, settlement.ErrStaleTimestamp):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("webhook settlement failed", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "settlement failed")
	}
}
