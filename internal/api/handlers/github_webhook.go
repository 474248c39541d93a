package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"payrelay/internal/core"
	"payrelay/internal/external"
	"payrelay/internal/types"
)

// maxWebhookBodyBytes caps the request body read for webhook deliveries.
// GitHub sponsorship payloads are a few KB; anything near this limit is
// not a legitimate delivery.
const maxWebhookBodyBytes = 64 * 1024

// GitHubWebhookHandler receives GitHub Sponsors webhook deliveries,
// verifies their signature, and relays sponsorship creations to the
// notifier. Delivery responses follow webhook ack semantics: once the
// signature is accepted the handler returns 200 even when downstream
// notification fails, so GitHub does not retry an event we already saw.
type GitHubWebhookHandler struct {
	verifier external.WebhookVerifier
	notifier types.Notifier
	format   *SponsorFormatter
	secret   types.SecretString
	logger   *slog.Logger
}

// NewGitHubWebhookHandler creates a GitHubWebhookHandler.
func NewGitHubWebhookHandler(
	verifier external.WebhookVerifier,
	notifier types.Notifier,
	secret types.SecretString,
	logger *slog.Logger,
) *GitHubWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GitHubWebhookHandler{
		verifier: verifier,
		notifier: notifier,
		format:   NewSponsorFormatter(logger),
		secret:   secret,
		logger:   logger,
	}
}

// RegisterRoutes mounts the webhook endpoint on the router.
func (h *GitHubWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhook/github", h.HandleWebhook)
}

// HandleWebhook processes a single webhook delivery.
func (h *GitHubWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Warn("failed to read webhook body",
			"request_id", types.GetRequestID(r.Context()),
			"error", err,
		)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationBodyTooLarge, "request body unreadable or too large", err))
		return
	}

	if !h.secret.IsSet() {
		h.logger.Warn("webhook secret not configured, skipping signature verification")
	}

	signature := r.Header.Get("X-Hub-Signature-256")
	if !h.verifier.Verify(payload, signature, h.secret) {
		h.logger.Warn("webhook signature verification failed",
			"request_id", types.GetRequestID(r.Context()),
		)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthSignatureInvalid, "Invalid signature", nil))
		return
	}

	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON, "malformed JSON payload", err))
		return
	}

	event := r.Header.Get("X-GitHub-Event")
	action, _ := data["action"].(string)

	if event == "sponsorship" && action == "created" {
		text := h.format.Format(data)
		delivered := h.notifier.Send(r.Context(), text)
		h.logger.Info("sponsorship event relayed",
			"request_id", types.GetRequestID(r.Context()),
			"delivered", delivered,
		)
	} else {
		h.logger.Debug("ignoring webhook event",
			"request_id", types.GetRequestID(r.Context()),
			"event", event,
			"action", action,
		)
	}

	core.JSON(w, r, http.StatusOK, core.Success)
}
