package movement

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"seedstock/internal/domain"
	apperror "seedstock/internal/errors"
	"seedstock/internal/pkg/logger"
	"seedstock/internal/pkg/middleware"
)

// MovementService define o contrato que o Handler espera da camada de Serviço.
type MovementService interface {
	RegisterManual(ctx domain.Context, req domain.ManualMovementRequest, principal domain.Principal) (domain.Movement, error)
	Verify(ctx domain.Context, movementID string, principal domain.Principal) (domain.Movement, error)
	GetMovement(ctx domain.Context, movementID string) (domain.Movement, error)
	ListMovements(ctx domain.Context, filter domain.MovementFilter) ([]domain.Movement, error)
}

// Handler agrupa todos os métodos de Handler do livro-razão de movimentações.
type Handler struct {
	Service MovementService
	Logger  logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Logger.
func NewHandler(svc MovementService, log logger.Logger) *Handler {
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

// MovementsHandler lida com a coleção /v1/movements (lançamento manual e consulta).
// @Summary Lança uma movimentação manual ou consulta o livro-razão
// @Description POST registra um lançamento manual de retaguarda (mesma supressão de duplicatas); GET consulta por lote, slot, responsável ou janela de tempo.
// @Tags movements
// @Accept json
// @Produce json
// @Param movement body domain.ManualMovementRequest true "Dados do lançamento manual"
// @Success 201 {object} domain.Movement "Movimentação registrada"
// @Failure 409 {object} domain.ErrorResponse "Movimentação duplicada dentro da janela de supressão"
// @Security ApiKeyAuth
// @Router /movements [post]
func (h *Handler) MovementsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.registerManual(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) registerManual(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.handleServiceResponse(w, r, nil, apperror.NewUnauthorizedError("Autorização necessária. Token não processado."), http.StatusOK)
		return
	}

	var req domain.ManualMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusBadRequest)
		return
	}

	mv, err := h.Service.RegisterManual(r.Context(), req, principal)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	h.handleServiceResponse(w, r, mv, nil, http.StatusCreated)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.MovementFilter{
		LotID:       query.Get("lot_id"),
		SlotID:      query.Get("slot_id"),
		PerformedBy: query.Get("performed_by"),
		Kind:        domain.MovementKind(query.Get("kind")),
		Page:        parseIntParam(query.Get("page")),
		Limit:       parseIntParam(query.Get("limit")),
	}

	if raw := query.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Parâmetro 'from' inválido (use RFC3339)."), http.StatusOK)
			return
		}
		filter.From = &from
	}
	if raw := query.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Parâmetro 'to' inválido (use RFC3339)."), http.StatusOK)
			return
		}
		filter.To = &to
	}

	movements, err := h.Service.ListMovements(r.Context(), filter)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	h.handleServiceResponse(w, r, movements, nil, http.StatusOK)
}

// MovementByIDHandler lida com /v1/movements/{id} e /v1/movements/{id}/verify.
// @Summary Consulta ou verifica uma movimentação
// @Description GET retorna a movimentação; POST /{id}/verify marca como verificada pelo conferente.
// @Tags movements
// @Produce json
// @Param id path string true "ID da Movimentação"
// @Success 200 {object} domain.Movement "Movimentação"
// @Failure 404 {object} domain.ErrorResponse "Movimentação não encontrada"
// @Failure 409 {object} domain.ErrorResponse "Movimentação já verificada"
// @Security ApiKeyAuth
// @Router /movements/{id} [get]
func (h *Handler) MovementByIDHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(r.URL.Path, "/")
	segments := strings.Split(path, "/")

	if len(segments) < 3 || segments[2] == "" {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Formato de URL inválido ou ID ausente."), http.StatusOK)
		return
	}
	movementID := segments[2]

	if len(segments) == 3 {
		if r.Method != http.MethodGet {
			http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
			return
		}
		mv, err := h.Service.GetMovement(r.Context(), movementID)
		if err != nil {
			h.handleServiceResponse(w, r, nil, err, http.StatusOK)
			return
		}
		h.handleServiceResponse(w, r, mv, nil, http.StatusOK)
		return
	}

	if r.Method != http.MethodPost || segments[3] != "verify" {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}

	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.handleServiceResponse(w, r, nil, apperror.NewUnauthorizedError("Autorização necessária. Token não processado."), http.StatusOK)
		return
	}

	mv, err := h.Service.Verify(r.Context(), movementID, principal)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	h.handleServiceResponse(w, r, mv, nil, http.StatusOK)
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
