package lot

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

// LotService define o contrato que o Handler espera da camada de Serviço.
type LotService interface {
	Intake(ctx domain.Context, req domain.IntakeRequest, principal domain.Principal) (domain.Lot, *domain.AllocationSuggestion, error)
	AssignSlot(ctx domain.Context, lotID, slotID string, version int, principal domain.Principal) (domain.Lot, error)
	Move(ctx domain.Context, lotID string, req domain.MoveRequest, principal domain.Principal) (domain.Lot, error)
	PartialMove(ctx domain.Context, lotID string, req domain.PartialMoveRequest, principal domain.Principal) (domain.Lot, domain.Lot, error)
	PartialExit(ctx domain.Context, lotID string, req domain.PartialExitRequest, principal domain.Principal) (domain.Lot, error)
	AddStock(ctx domain.Context, lotID string, req domain.AddStockRequest, principal domain.Principal) (domain.Lot, error)
	Remove(ctx domain.Context, lotID, reason string, version int, principal domain.Principal) (domain.Lot, error)
	GetLot(ctx domain.Context, lotID string) (domain.Lot, error)
	ListLots(ctx domain.Context, filter domain.LotFilter) ([]domain.Lot, error)
}

// IntakeResponse é o corpo de resposta da entrada: o lote criado e, quando o
// Allocation Advisor participou, a sugestão aplicada.
type IntakeResponse struct {
	Lot        domain.Lot                   `json:"lot"`
	Suggestion *domain.AllocationSuggestion `json:"suggestion,omitempty"`
}

// PartialMoveResponse é o corpo de resposta da movimentação parcial.
type PartialMoveResponse struct {
	Origin   domain.Lot `json:"origin"`
	Fragment domain.Lot `json:"fragment"`
}

// AssignSlotRequest é o payload de locação de um lote aguardando slot.
type AssignSlotRequest struct {
	SlotID  string `json:"slot_id"`
	Version int    `json:"version"`
}

// RemoveRequest é o payload de remoção (descarte) de um lote.
type RemoveRequest struct {
	Reason  string `json:"reason"`
	Version int    `json:"version"`
}

// Handler agrupa todos os métodos de Handler de lotes.
type Handler struct {
	Service LotService
	Logger  logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Logger.
func NewHandler(svc LotService, log logger.Logger) *Handler {
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

// principal extrai o ator autenticado anexado pelo AuthMiddleware.
func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.handleServiceResponse(w, r, nil, apperror.NewUnauthorizedError("Autorização necessária. Token não processado."), http.StatusOK)
		return domain.Principal{}, false
	}
	return principal, true
}

// LotsHandler lida com a coleção /v1/lots (entrada e listagem).
// @Summary Registra a entrada de um lote ou lista lotes
// @Description POST registra a entrada de um novo lote (com ou sem slot); GET lista lotes com filtros.
// @Tags lots
// @Accept json
// @Produce json
// @Param intake body domain.IntakeRequest true "Dados de entrada do lote"
// @Success 201 {object} IntakeResponse "Lote criado (LOCADO ou AGUARDANDO_LOCACAO)"
// @Failure 400 {object} domain.ErrorResponse "Payload inválido"
// @Failure 409 {object} domain.ErrorResponse "Capacidade excedida, slot ocupado ou movimentação duplicada"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security ApiKeyAuth
// @Router /lots [post]
func (h *Handler) LotsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.intake(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) intake(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req domain.IntakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusBadRequest)
		return
	}

	lot, suggestion, err := h.Service.Intake(ctx, req, principal)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	h.handleServiceResponse(w, r, IntakeResponse{Lot: lot, Suggestion: suggestion}, nil, http.StatusCreated)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := domain.LotFilter{
		ProductID: query.Get("product_id"),
		ChamberID: query.Get("chamber_id"),
		State:     domain.LotState(query.Get("state")),
		LotCode:   query.Get("lot_code"),
		Page:      parseIntParam(query.Get("page")),
		Limit:     parseIntParam(query.Get("limit")),
	}

	lots, err := h.Service.ListLots(ctx, filter)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	h.handleServiceResponse(w, r, lots, nil, http.StatusOK)
}

// LotByIDHandler lida com /v1/lots/{id} e as sub-rotas de operação
// (/v1/lots/{id}/move, /partial-move, /partial-exit, /add-stock, /assign-slot,
// /remove).
// @Summary Consulta um lote ou executa uma operação do ciclo de vida
// @Description GET /lots/{id} retorna o lote; POST /lots/{id}/{acao} executa a operação correspondente.
// @Tags lots
// @Accept json
// @Produce json
// @Param id path string true "ID do Lote"
// @Success 200 {object} domain.Lot "Lote após a operação"
// @Failure 404 {object} domain.ErrorResponse "Lote não encontrado"
// @Failure 409 {object} domain.ErrorResponse "Conflito (OCC, capacidade, slot ocupado)"
// @Failure 422 {object} domain.ErrorResponse "Transição inválida ou quantidade insuficiente"
// @Security ApiKeyAuth
// @Router /lots/{id} [get]
func (h *Handler) LotByIDHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(r.URL.Path, "/")
	segments := strings.Split(path, "/")

	// Esperado: ["v1", "lots", "{id}"] ou ["v1", "lots", "{id}", "{acao}"]
	if len(segments) < 3 || segments[2] == "" {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Formato de URL inválido ou ID ausente."), http.StatusOK)
		return
	}
	lotID := segments[2]

	if len(segments) == 3 {
		if r.Method != http.MethodGet {
			http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
			return
		}
		lot, err := h.Service.GetLot(r.Context(), lotID)
		if err != nil {
			h.handleServiceResponse(w, r, nil, err, http.StatusOK)
			return
		}
		h.handleServiceResponse(w, r, lot, nil, http.StatusOK)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}

	switch segments[3] {
	case "assign-slot":
		h.assignSlot(w, r, lotID)
	case "move":
		h.move(w, r, lotID)
	case "partial-move":
		h.partialMove(w, r, lotID)
	case "partial-exit":
		h.partialExit(w, r, lotID)
	case "add-stock":
		h.addStock(w, r, lotID)
	case "remove":
		h.remove(w, r, lotID)
	default:
		h.handleServiceResponse(w, r, nil, apperror.NewNotFoundError(fmt.Sprintf("Operação de lote desconhecida: %s", segments[3])), http.StatusOK)
	}
}

func (h *Handler) assignSlot(w http.ResponseWriter, r *http.Request, lotID string) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req AssignSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusBadRequest)
		return
	}

	lot, err := h.Service.AssignSlot(r.Context(), lotID, req.SlotID, req.Version, principal)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	h.handleServiceResponse(w, r, lot, nil, http.StatusOK)
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request, lotID string) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req domain.MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusBadRequest)
		return
	}

	lot, err := h.Service.Move(r.Context(), lotID, req, principal)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	h.handleServiceResponse(w, r, lot, nil, http.StatusOK)
}

func (h *Handler) partialMove(w http.ResponseWriter, r *http.Request, lotID string) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req domain.PartialMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusBadRequest)
		return
	}

	origin, fragment, err := h.Service.PartialMove(r.Context(), lotID, req, principal)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	h.handleServiceResponse(w, r, PartialMoveResponse{Origin: origin, Fragment: fragment}, nil, http.StatusCreated)
}

func (h *Handler) partialExit(w http.ResponseWriter, r *http.Request, lotID string) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req domain.PartialExitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusBadRequest)
		return
	}

	lot, err := h.Service.PartialExit(r.Context(), lotID, req, principal)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	h.handleServiceResponse(w, r, lot, nil, http.StatusOK)
}

func (h *Handler) addStock(w http.ResponseWriter, r *http.Request, lotID string) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req domain.AddStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusBadRequest)
		return
	}

	lot, err := h.Service.AddStock(r.Context(), lotID, req, principal)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	h.handleServiceResponse(w, r, lot, nil, http.StatusOK)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request, lotID string) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req RemoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusBadRequest)
		return
	}

	lot, err := h.Service.Remove(r.Context(), lotID, req.Reason, req.Version, principal)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	h.handleServiceResponse(w, r, lot, nil, http.StatusOK)
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
