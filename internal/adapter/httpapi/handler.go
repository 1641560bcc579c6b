package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mpavao/ledgerflow-backend/internal/domain"
	"github.com/mpavao/ledgerflow-backend/internal/usecase/account"
	"github.com/mpavao/ledgerflow-backend/internal/usecase/credit"
	"github.com/mpavao/ledgerflow-backend/internal/usecase/reversal"
	"github.com/mpavao/ledgerflow-backend/internal/usecase/transfer"
)

// Handler exposes the ledger engines over HTTP. All business logic lives
// in the usecase services; this layer only decodes, dispatches, and maps
// the error taxonomy to status codes.
type Handler struct {
	AccountService  *account.Service
	TransferService *transfer.Service
	ReversalService *reversal.Service
	CreditService   *credit.Service
	Logger          *zap.Logger
}

// NewHandler creates a new HTTP handler instance.
func NewHandler(
	accountService *account.Service,
	transferService *transfer.Service,
	reversalService *reversal.Service,
	creditService *credit.Service,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		AccountService:  accountService,
		TransferService: transferService,
		ReversalService: reversalService,
		CreditService:   creditService,
		Logger:          logger,
	}
}

type accountResponse struct {
	ID        string    `json:"id"`
	Balance   string    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type transferResponse struct {
	ID                 string     `json:"id"`
	SenderID           string     `json:"sender_id"`
	ReceiverID         string     `json:"receiver_id"`
	Amount             string     `json:"amount"`
	Description        string     `json:"description,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	Reversed           bool       `json:"reversed"`
	ReversalReason     *string    `json:"reversal_reason,omitempty"`
	ReversedAt         *time.Time `json:"reversed_at,omitempty"`
	OriginalTransferID *string    `json:"original_transfer_id,omitempty"`
}

func toAccountResponse(a *domain.Account) accountResponse {
	return accountResponse{
		ID:        a.ID.String(),
		Balance:   domain.FormatAmount(a.Balance),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func toTransferResponse(t *domain.Transfer) transferResponse {
	resp := transferResponse{
		ID:             t.ID.String(),
		SenderID:       t.SenderID.String(),
		ReceiverID:     t.ReceiverID.String(),
		Amount:         domain.FormatAmount(t.Amount),
		Description:    t.Description,
		CreatedAt:      t.CreatedAt,
		Reversed:       t.Reversed,
		ReversalReason: t.ReversalReason,
		ReversedAt:     t.ReversedAt,
	}
	if t.OriginalTransferID != nil {
		id := t.OriginalTransferID.String()
		resp.OriginalTransferID = &id
	}
	return resp
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	acc, err := h.AccountService.CreateAccount(r.Context())
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, toAccountResponse(acc))
}

func (h *Handler) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseUUID(w, mux.Vars(r)["id"], "invalid account id")
	if !ok {
		return
	}
	acc, err := h.AccountService.GetAccount(r.Context(), id)
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toAccountResponse(acc))
}

type creditRequest struct {
	Amount string `json:"amount"`
}

func (h *Handler) CreditAccountHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseUUID(w, mux.Vars(r)["id"], "invalid account id")
	if !ok {
		return
	}

	var req creditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}

	acc, err := h.CreditService.IncreaseBalance(r.Context(), id, amount)
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toAccountResponse(acc))
}

type createTransferRequest struct {
	SenderID    string `json:"sender_id"`
	ReceiverID  string `json:"receiver_id"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

func (h *Handler) CreateTransferHandler(w http.ResponseWriter, r *http.Request) {
	var req createTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	senderID, ok := h.parseUUID(w, req.SenderID, "invalid sender_id")
	if !ok {
		return
	}
	receiverID, ok := h.parseUUID(w, req.ReceiverID, "invalid receiver_id")
	if !ok {
		return
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}

	record, err := h.TransferService.CreateTransfer(r.Context(), transfer.CreateTransferInput{
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Amount:      amount,
		Description: req.Description,
	})
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, toTransferResponse(record))
}

func (h *Handler) GetTransferHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseUUID(w, mux.Vars(r)["id"], "invalid transfer id")
	if !ok {
		return
	}
	record, err := h.TransferService.GetTransfer(r.Context(), id)
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toTransferResponse(record))
}

func (h *Handler) ListTransfersHandler(w http.ResponseWriter, r *http.Request) {
	filter := domain.TransferFilter{}
	query := r.URL.Query()

	if raw := query.Get("account_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid account_id")
			return
		}
		filter.AccountID = &id
	}
	if raw := query.Get("reversed"); raw != "" {
		reversed, err := strconv.ParseBool(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid reversed flag")
			return
		}
		filter.Reversed = &reversed
	}
	filter.Limit, _ = strconv.Atoi(query.Get("limit"))
	filter.Offset, _ = strconv.Atoi(query.Get("offset"))

	records, err := h.TransferService.ListTransfers(r.Context(), filter)
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}

	resp := make([]transferResponse, 0, len(records))
	for _, record := range records {
		resp = append(resp, toTransferResponse(record))
	}
	respondWithJSON(w, http.StatusOK, resp)
}

type reverseTransferRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) ReverseTransferHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseUUID(w, mux.Vars(r)["id"], "invalid transfer id")
	if !ok {
		return
	}

	var req reverseTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Reason == "" {
		respondWithError(w, http.StatusBadRequest, "reason is required")
		return
	}

	record, err := h.ReversalService.ReverseTransfer(r.Context(), id, req.Reason)
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, toTransferResponse(record))
}

func (h *Handler) parseUUID(w http.ResponseWriter, raw, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, message)
		return uuid.Nil, false
	}
	return id, true
}
