package withdrawal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"seedstock/internal/domain"
	apperror "seedstock/internal/errors"
	"seedstock/internal/pkg/logger"
	"seedstock/internal/pkg/middleware"
)

// WithdrawalService define o contrato que o Handler espera da camada de Serviço.
type WithdrawalService interface {
	Request(ctx domain.Context, req domain.CreateWithdrawalRequest, principal domain.Principal) (domain.WithdrawalRequest, error)
	Confirm(ctx domain.Context, requestID string, req domain.ResolveWithdrawalRequest, principal domain.Principal) (domain.WithdrawalRequest, domain.Lot, error)
	Cancel(ctx domain.Context, requestID string, req domain.ResolveWithdrawalRequest, principal domain.Principal) (domain.WithdrawalRequest, domain.Lot, error)
	GetRequest(ctx domain.Context, requestID string) (domain.WithdrawalRequest, error)
	ListRequests(ctx domain.Context, filter domain.WithdrawalFilter) ([]domain.WithdrawalRequest, error)
}

// ResolveResponse é o corpo de resposta de confirmação/cancelamento: a
// solicitação resolvida e o estado final do lote.
type ResolveResponse struct {
	Request domain.WithdrawalRequest `json:"request"`
	Lot     domain.Lot               `json:"lot"`
}

// Handler agrupa todos os métodos de Handler de retiradas.
type Handler struct {
	Service WithdrawalService
	Logger  logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Logger.
func NewHandler(svc WithdrawalService, log logger.Logger) *Handler {
	return &Handler{
		Service: svc,
		Logger:  log,
	}
}

// handleServiceResponse processa erros de serviço e envia respostas padronizadas ao cliente.
func (h *Handler) handleServiceResponse(w http.ResponseWriter, r *http.Request, data interface{}, err error, successStatus int) {
	if err == nil {
		// Sucesso
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(successStatus)
		if data != nil {
			if jsonErr := json.NewEncoder(w).Encode(data); jsonErr != nil {
				h.Logger.Error("Falha ao codificar JSON de resposta", jsonErr)
				http.Error(w, "Erro ao codificar resposta", http.StatusInternalServerError)
			}
		}
		return
	}

	// TRATAMENTO DE ERROS
	status, category, message := apperror.MapToHTTPStatus(err)

	if status >= 500 {
		h.Logger.Error(fmt.Sprintf("Erro de Servidor: %s", category), err)
	} else {
		h.Logger.Debug(fmt.Sprintf("Requisição rejeitada com status %d. Categoria: %s", status, category), map[string]interface{}{"path": r.URL.Path})
	}

	errorResponse := map[string]interface{}{
		"code":     status,
		"category": category,
		"message":  message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse)
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.handleServiceResponse(w, r, nil, apperror.NewUnauthorizedError("Autorização necessária. Token não processado."), http.StatusOK)
		return domain.Principal{}, false
	}
	return principal, true
}

// WithdrawalsHandler lida com a coleção /v1/withdrawals (abertura e listagem).
// @Summary Abre uma solicitação de retirada ou lista solicitações
// @Description POST abre uma solicitação (o lote vai para AGUARDANDO_RETIRADA); GET lista solicitações.
// @Tags withdrawals
// @Accept json
// @Produce json
// @Param request body domain.CreateWithdrawalRequest true "Dados da solicitação (TOTAL ou PARCIAL)"
// @Success 201 {object} domain.WithdrawalRequest "Solicitação aberta (PENDENTE)"
// @Failure 409 {object} domain.ErrorResponse "Já existe solicitação PENDENTE para o lote"
// @Failure 422 {object} domain.ErrorResponse "Lote fora do estado LOCADO"
// @Security ApiKeyAuth
// @Router /withdrawals [post]
func (h *Handler) WithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.request(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) request(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req domain.CreateWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusBadRequest)
		return
	}

	request, err := h.Service.Request(r.Context(), req, principal)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	h.handleServiceResponse(w, r, request, nil, http.StatusCreated)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.WithdrawalFilter{
		LotID:  query.Get("lot_id"),
		Status: domain.WithdrawalStatus(query.Get("status")),
		Page:   parseIntParam(query.Get("page")),
		Limit:  parseIntParam(query.Get("limit")),
	}

	requests, err := h.Service.ListRequests(r.Context(), filter)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	h.handleServiceResponse(w, r, requests, nil, http.StatusOK)
}

// WithdrawalByIDHandler lida com /v1/withdrawals/{id} e as sub-rotas de
// resolução (/confirm e /cancel).
// @Summary Consulta, confirma ou cancela uma solicitação de retirada
// @Description GET retorna a solicitação; POST /{id}/confirm confirma (conferente distinto do solicitante); POST /{id}/cancel cancela e reverte o lote para LOCADO.
// @Tags withdrawals
// @Accept json
// @Produce json
// @Param id path string true "ID da Solicitação"
// @Success 200 {object} ResolveResponse "Solicitação resolvida e lote resultante"
// @Failure 401 {object} domain.ErrorResponse "Conferente igual ao solicitante"
// @Failure 404 {object} domain.ErrorResponse "Solicitação não encontrada"
// @Failure 422 {object} domain.ErrorResponse "Solicitação fora do estado PENDENTE"
// @Security ApiKeyAuth
// @Router /withdrawals/{id} [get]
func (h *Handler) WithdrawalByIDHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(r.URL.Path, "/")
	segments := strings.Split(path, "/")

	// Esperado: ["v1", "withdrawals", "{id}"] ou ["v1", "withdrawals", "{id}", "{acao}"]
	if len(segments) < 3 || segments[2] == "" {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Formato de URL inválido ou ID ausente."), http.StatusOK)
		return
	}
	requestID := segments[2]

	if len(segments) == 3 {
		if r.Method != http.MethodGet {
			http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
			return
		}
		request, err := h.Service.GetRequest(r.Context(), requestID)
		if err != nil {
			h.handleServiceResponse(w, r, nil, err, http.StatusOK)
			return
		}
		h.handleServiceResponse(w, r, request, nil, http.StatusOK)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}

	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req domain.ResolveWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusBadRequest)
		return
	}

	switch segments[3] {
	case "confirm":
		request, lot, err := h.Service.Confirm(r.Context(), requestID, req, principal)
		if err != nil {
			h.handleServiceResponse(w, r, nil, err, http.StatusOK)
			return
		}
		h.handleServiceResponse(w, r, ResolveResponse{Request: request, Lot: lot}, nil, http.StatusOK)
	case "cancel":
		request, lot, err := h.Service.Cancel(r.Context(), requestID, req, principal)
		if err != nil {
			h.handleServiceResponse(w, r, nil, err, http.StatusOK)
			return
		}
		h.handleServiceResponse(w, r, ResolveResponse{Request: request, Lot: lot}, nil, http.StatusOK)
	default:
		h.handleServiceResponse(w, r, nil, apperror.NewNotFoundError(fmt.Sprintf("Operação de retirada desconhecida: %s", segments[3])), http.StatusOK)
	}
}

func parseIntParam(raw string) int {
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return value
}
