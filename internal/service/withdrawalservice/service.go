package withdrawalservice

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"seedstock/internal/domain"
	apperror "seedstock/internal/errors"
	"seedstock/internal/pkg/logger"
)

// WithdrawalRepository define o contrato que o Serviço de Retiradas espera da
// camada de Persistência. Confirm e Cancel resolvem a solicitação e o lote na
// mesma transação.
type WithdrawalRepository interface {
	Request(ctx context.Context, req domain.CreateWithdrawalRequest, principal domain.Principal) (domain.WithdrawalRequest, error)
	Confirm(ctx context.Context, requestID, notes string, principal domain.Principal) (domain.WithdrawalRequest, domain.Lot, error)
	Cancel(ctx context.Context, requestID, reason string, principal domain.Principal) (domain.WithdrawalRequest, domain.Lot, error)
	FindByID(ctx context.Context, id string) (domain.WithdrawalRequest, error)
	FindAll(ctx context.Context, filter domain.WithdrawalFilter) ([]domain.WithdrawalRequest, error)
}

// Service implementa o fluxo de retirada em duas partes: operador solicita,
// conferente distinto confirma ou cancela.
type Service struct {
	repo   WithdrawalRepository
	logger logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Retiradas.
func NewService(repo WithdrawalRepository, logger logger.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Request abre uma solicitação de retirada para um lote LOCADO, colocando-o
// em AGUARDANDO_RETIRADA. No máximo uma solicitação PENDENTE por lote.
// Nenhuma movimentação é registrada aqui: o livro-razão só muda na confirmação.
func (s *Service) Request(ctx domain.Context, req domain.CreateWithdrawalRequest, principal domain.Principal) (domain.WithdrawalRequest, error) {
	if !principal.CanRequestWithdrawal() {
		return domain.WithdrawalRequest{}, apperror.NewUnauthorizedError("Apenas operadores podem solicitar retirada.")
	}
	if _, err := uuid.Parse(req.LotID); err != nil {
		return domain.WithdrawalRequest{}, apperror.NewValidationError("O ID do lote deve ser um UUID válido.")
	}
	if req.Kind != domain.WithdrawalTotal && req.Kind != domain.WithdrawalPartial {
		return domain.WithdrawalRequest{}, apperror.NewValidationError("O tipo de retirada deve ser TOTAL ou PARCIAL.")
	}
	if req.Kind == domain.WithdrawalPartial {
		if req.Quantity == nil || *req.Quantity <= 0 {
			return domain.WithdrawalRequest{}, apperror.NewValidationError("Retirada PARCIAL exige quantidade positiva.")
		}
	}
	if req.Reason == "" {
		return domain.WithdrawalRequest{}, apperror.NewValidationError("O motivo da retirada é obrigatório.")
	}
	if req.Version < 1 {
		return domain.WithdrawalRequest{}, apperror.NewValidationError("A versão do lote deve ser informada (OCC).")
	}

	ctxGo := asGoContext(ctx, s.logger)
	request, err := s.repo.Request(ctxGo, req, principal)
	if err != nil {
		s.logger.Error("Falha ao abrir solicitação de retirada no repositório.", err)
		return domain.WithdrawalRequest{}, translateRepoError(err, "Falha interna ao abrir solicitação de retirada.")
	}

	s.logger.Info("Solicitação de retirada aberta.", map[string]interface{}{
		"request_id": request.ID, "lot_id": request.LotID, "kind": request.Kind,
	})
	return request, nil
}

// Confirm resolve uma solicitação PENDENTE como CONFIRMADO. O conferente deve
// ser distinto do solicitante; a verificação de identidade acontece dentro da
// transação de persistência. Uma única movimentação de SAIDA é registrada,
// correlacionada à solicitação.
func (s *Service) Confirm(ctx domain.Context, requestID string, req domain.ResolveWithdrawalRequest, principal domain.Principal) (domain.WithdrawalRequest, domain.Lot, error) {
	if !principal.CanConfirmWithdrawal() {
		return domain.WithdrawalRequest{}, domain.Lot{}, apperror.NewUnauthorizedError("Apenas conferentes podem confirmar retiradas.")
	}
	if _, err := uuid.Parse(requestID); err != nil {
		return domain.WithdrawalRequest{}, domain.Lot{}, apperror.NewValidationError("O ID da solicitação deve ser um UUID válido.")
	}

	ctxGo := asGoContext(ctx, s.logger)
	request, lot, err := s.repo.Confirm(ctxGo, requestID, req.Notes, principal)
	if err != nil {
		s.logger.Error("Falha ao confirmar retirada no repositório.", err)
		return domain.WithdrawalRequest{}, domain.Lot{}, translateRepoError(err, "Falha interna ao confirmar retirada.")
	}

	s.logger.Info("Retirada confirmada.", map[string]interface{}{
		"request_id": request.ID, "lot_id": lot.ID, "lot_state": lot.State,
	})
	return request, lot, nil
}

// Cancel resolve uma solicitação PENDENTE como CANCELADO, revertendo o lote
// para LOCADO. Cancelamento não gera movimentação: nada saiu fisicamente.
func (s *Service) Cancel(ctx domain.Context, requestID string, req domain.ResolveWithdrawalRequest, principal domain.Principal) (domain.WithdrawalRequest, domain.Lot, error) {
	if !principal.CanConfirmWithdrawal() {
		return domain.WithdrawalRequest{}, domain.Lot{}, apperror.NewUnauthorizedError("Apenas conferentes podem cancelar retiradas.")
	}
	if _, err := uuid.Parse(requestID); err != nil {
		return domain.WithdrawalRequest{}, domain.Lot{}, apperror.NewValidationError("O ID da solicitação deve ser um UUID válido.")
	}

	ctxGo := asGoContext(ctx, s.logger)
	request, lot, err := s.repo.Cancel(ctxGo, requestID, req.Reason, principal)
	if err != nil {
		s.logger.Error("Falha ao cancelar retirada no repositório.", err)
		return domain.WithdrawalRequest{}, domain.Lot{}, translateRepoError(err, "Falha interna ao cancelar retirada.")
	}

	s.logger.Info("Retirada cancelada, lote revertido para LOCADO.", map[string]interface{}{
		"request_id": request.ID, "lot_id": lot.ID,
	})
	return request, lot, nil
}

// GetRequest busca uma solicitação de retirada pelo ID.
func (s *Service) GetRequest(ctx domain.Context, requestID string) (domain.WithdrawalRequest, error) {
	if _, err := uuid.Parse(requestID); err != nil {
		return domain.WithdrawalRequest{}, apperror.NewValidationError("O ID da solicitação deve ser um UUID válido.")
	}

	ctxGo := asGoContext(ctx, s.logger)
	return s.repo.FindByID(ctxGo, requestID)
}

// ListRequests lista solicitações conforme o filtro informado.
func (s *Service) ListRequests(ctx domain.Context, filter domain.WithdrawalFilter) ([]domain.WithdrawalRequest, error) {
	ctxGo := asGoContext(ctx, s.logger)
	requests, err := s.repo.FindAll(ctxGo, filter)
	if err != nil {
		s.logger.Error("Falha ao listar solicitações de retirada no repositório.", err)
		return nil, err
	}
	return requests, nil
}

func asGoContext(ctx domain.Context, log logger.Logger) context.Context {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
		log.Warn("Contexto de domínio inválido, usando context.Background()", nil)
	}
	return ctxGo
}

func translateRepoError(err error, internalMsg string) error {
	var appErr apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.NewInternalError(internalMsg, err)
}
