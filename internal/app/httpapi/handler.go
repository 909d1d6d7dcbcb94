// Package httpapi exposes the reward ledger over REST.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	app "github.com/qahub/rewards/internal/app"
	"github.com/qahub/rewards/internal/app/domain/ledger"
	"github.com/qahub/rewards/internal/app/metrics"
	"github.com/qahub/rewards/pkg/logger"
)

// handler bundles HTTP endpoints for the reward engines.
type handler struct {
	app *app.Application
	log *logger.Logger
}

// NewHandler returns a router exposing the reward ledger REST API. Tokens,
// when non-empty, guard every route except /healthz and /metrics.
func NewHandler(application *app.Application, tokens []string, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, log: log}

	r := mux.NewRouter()
	r.Handle("/healthz", http.HandlerFunc(h.health)).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(authMiddleware(tokens))
	route(api, "/accounts", h.createAccount, http.MethodPost)
	route(api, "/accounts/{id}/balance", h.balance, http.MethodGet)
	route(api, "/accounts/{id}/history", h.history, http.MethodGet)
	route(api, "/transfers", h.transfer, http.MethodPost)
	route(api, "/hooks/answers/posted", h.answerPosted, http.MethodPost)
	route(api, "/hooks/answers/removed", h.answerRemoved, http.MethodPost)
	route(api, "/hooks/votes", h.voteChanged, http.MethodPost)

	return r
}

func route(r *mux.Router, path string, fn http.HandlerFunc, method string) {
	r.Handle(path, metrics.Instrument(path, fn)).Methods(method)
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		DisplayName string `json:"display_name"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	acct, err := h.app.Accounts.Create(r.Context(), payload.DisplayName)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"account_id":   acct.ID,
		"display_name": acct.DisplayName,
		"balance":      acct.Balance,
	})
}

func (h *handler) balance(w http.ResponseWriter, r *http.Request) {
	acct, err := h.app.Ledger.Balance(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account_id":   acct.ID,
		"display_name": acct.DisplayName,
		"balance":      acct.Balance,
	})
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit")
	page := queryInt(r, "page")

	lines, err := h.app.Ledger.History(r.Context(), mux.Vars(r)["id"], limit, page)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func (h *handler) transfer(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		FromAccount string `json:"from_account"`
		ToAccount   string `json:"to_account"`
		Amount      int64  `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	senderBalance, recipientBalance, err := h.app.Transfers.Transfer(r.Context(),
		payload.FromAccount, payload.ToAccount, payload.Amount)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sender_balance":    senderBalance,
		"recipient_balance": recipientBalance,
	})
}

type answerHook struct {
	AccountID  string `json:"account_id"`
	AnswerID   string `json:"answer_id"`
	QuestionID string `json:"question_id"`
}

// answerPosted credits the post reward. Per the lifecycle contract the
// answer is already durably created, so an award failure is logged and the
// hook still acknowledges: the parent action must not fail.
func (h *handler) answerPosted(w http.ResponseWriter, r *http.Request) {
	var payload answerHook
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	balance, err := h.app.Awards.AwardForAnswerPosted(r.Context(),
		payload.AccountID, payload.AnswerID, payload.QuestionID)
	if err != nil {
		h.log.WithError(err).
			WithField("account_id", payload.AccountID).
			WithField("answer_id", payload.AnswerID).
			Warn("post reward failed; answer creation unaffected")
		writeJSON(w, http.StatusAccepted, map[string]any{"awarded": false})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"awarded": true, "balance": balance})
}

func (h *handler) answerRemoved(w http.ResponseWriter, r *http.Request) {
	var payload answerHook
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	balance, err := h.app.Awards.DeductForAnswerRemoval(r.Context(),
		payload.AccountID, payload.AnswerID, payload.QuestionID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balance": balance})
}

func (h *handler) voteChanged(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		QuestionID string `json:"question_id"`
		AnswerID   string `json:"answer_id"`
		NetBefore  int    `json:"net_before"`
		NetAfter   int    `json:"net_after"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	transition, err := h.app.Milestones.HandleVoteChange(r.Context(),
		payload.QuestionID, payload.AnswerID, payload.NetBefore, payload.NetAfter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transition": transition})
}

// writeDomainError maps the engine error taxonomy onto HTTP statuses.
func (h *handler) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrTransactionAborted):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.log.WithError(err).Error("unhandled engine error")
	}
	writeError(w, status, err)
}

func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return v
}

func decodeJSON(body io.Reader, dst any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
