package slot

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

// SlotService define o contrato que o Handler espera da camada de Serviço.
type SlotService interface {
	GetSlot(ctx domain.Context, slotID string) (domain.Slot, error)
	ListSlots(ctx domain.Context, filter domain.SlotFilter) ([]domain.Slot, error)
	GetChamber(ctx domain.Context, chamberID string) (domain.Chamber, error)
	OccupancySummary(ctx domain.Context) ([]domain.ChamberLoadSummary, error)
	DeactivateSlot(ctx domain.Context, slotID string, principal domain.Principal) error
}

// Handler agrupa todos os métodos de Handler de slots e câmaras.
type Handler struct {
	Service SlotService
	Logger  logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Logger.
func NewHandler(svc SlotService, log logger.Logger) *Handler {
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

// SlotsHandler lida com a requisição GET /v1/slots.
// @Summary Lista slots
// @Description Lista slots com filtros por câmara, apenas livres e apenas ativos.
// @Tags slots
// @Produce json
// @Param chamber_id query string false "ID da câmara"
// @Param only_free query bool false "Somente slots livres"
// @Param only_active query bool false "Somente slots ativos"
// @Success 200 {array} domain.Slot "Lista de slots"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security ApiKeyAuth
// @Router /slots [get]
func (h *Handler) SlotsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	filter := domain.SlotFilter{
		ChamberID:  query.Get("chamber_id"),
		OnlyFree:   query.Get("only_free") == "true",
		OnlyActive: query.Get("only_active") == "true",
		Page:       parseIntParam(query.Get("page")),
		Limit:      parseIntParam(query.Get("limit")),
	}

	slots, err := h.Service.ListSlots(r.Context(), filter)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	h.handleServiceResponse(w, r, slots, nil, http.StatusOK)
}

// SlotByIDHandler lida com GET e DELETE em /v1/slots/{id}.
// @Summary Consulta ou desativa um slot
// @Description GET retorna o slot; DELETE desativa logicamente um slot vazio (somente admin). Slots nunca são deletados fisicamente.
// @Tags slots
// @Produce json
// @Param id path string true "ID do Slot"
// @Success 200 {object} domain.Slot "Slot encontrado"
// @Failure 404 {object} domain.ErrorResponse "Slot não encontrado"
// @Failure 409 {object} domain.ErrorResponse "Slot ocupado (não pode ser desativado)"
// @Security ApiKeyAuth
// @Router /slots/{id} [get]
func (h *Handler) SlotByIDHandler(w http.ResponseWriter, r *http.Request) {
	slotID := strings.TrimPrefix(r.URL.Path, "/v1/slots/")
	if slotID == "" {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("ID do slot é obrigatório."), http.StatusOK)
		return
	}

	switch r.Method {
	case http.MethodGet:
		slot, err := h.Service.GetSlot(r.Context(), slotID)
		if err != nil {
			h.handleServiceResponse(w, r, nil, err, http.StatusOK)
			return
		}
		h.handleServiceResponse(w, r, slot, nil, http.StatusOK)
	case http.MethodDelete:
		principal, ok := middleware.PrincipalFromContext(r.Context())
		if !ok {
			h.handleServiceResponse(w, r, nil, apperror.NewUnauthorizedError("Autorização necessária. Token não processado."), http.StatusOK)
			return
		}
		if err := h.Service.DeactivateSlot(r.Context(), slotID, principal); err != nil {
			h.handleServiceResponse(w, r, nil, err, http.StatusOK)
			return
		}
		h.handleServiceResponse(w, r, nil, nil, http.StatusNoContent)
	default:
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
	}
}

// ChambersHandler lida com GET /v1/chambers/occupancy e GET /v1/chambers/{id}.
// @Summary Consulta câmaras e ocupação agregada
// @Description GET /chambers/occupancy retorna a ocupação agregada por câmara; GET /chambers/{id} retorna a câmara.
// @Tags chambers
// @Produce json
// @Success 200 {array} domain.ChamberLoadSummary "Ocupação por câmara"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security ApiKeyAuth
// @Router /chambers/occupancy [get]
func (h *Handler) ChambersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}

	tail := strings.TrimPrefix(r.URL.Path, "/v1/chambers/")
	if tail == "" {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("ID da câmara é obrigatório."), http.StatusOK)
		return
	}

	if tail == "occupancy" {
		summaries, err := h.Service.OccupancySummary(r.Context())
		if err != nil {
			h.handleServiceResponse(w, r, nil, err, http.StatusOK)
			return
		}
		h.handleServiceResponse(w, r, summaries, nil, http.StatusOK)
		return
	}

	chamber, err := h.Service.GetChamber(r.Context(), tail)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	h.handleServiceResponse(w, r, chamber, nil, http.StatusOK)
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
