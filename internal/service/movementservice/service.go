package movementservice

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"seedstock/internal/domain"
	apperror "seedstock/internal/errors"
	"seedstock/internal/pkg/logger"
)

// MovementRepository define o contrato que o Serviço de Movimentações espera
// do livro-razão persistente (append-only).
type MovementRepository interface {
	AppendManual(ctx context.Context, mv domain.Movement) (domain.Movement, error)
	FindByID(ctx context.Context, id string) (domain.Movement, error)
	FindAll(ctx context.Context, filter domain.MovementFilter) ([]domain.Movement, error)
	Verify(ctx context.Context, movementID, verifierID string) (domain.Movement, error)
}

// Service implementa as consultas e os lançamentos manuais do livro-razão.
// Movimentações geradas pelo motor de ciclo de vida não passam por aqui:
// nascem dentro das transações dos repositórios de lote e retirada.
type Service struct {
	repo   MovementRepository
	logger logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Movimentações.
func NewService(repo MovementRepository, logger logger.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// RegisterManual registra um lançamento manual (retaguarda) no livro-razão.
// O lançamento passa pela mesma supressão de duplicatas das movimentações do
// motor e é marcado como não gerado pelo sistema.
func (s *Service) RegisterManual(ctx domain.Context, req domain.ManualMovementRequest, principal domain.Principal) (domain.Movement, error) {
	if !principal.CanOperateStock() {
		return domain.Movement{}, apperror.NewUnauthorizedError("Apenas operadores podem lançar movimentações manuais.")
	}
	if _, err := uuid.Parse(req.LotID); err != nil {
		return domain.Movement{}, apperror.NewValidationError("O ID do lote deve ser um UUID válido.")
	}
	if !validKind(req.Kind) {
		return domain.Movement{}, apperror.NewValidationError("Tipo de movimentação inválido (use ENTRADA, SAIDA, TRANSFERENCIA ou AJUSTE).")
	}
	if req.Quantity <= 0 {
		return domain.Movement{}, apperror.NewValidationError("A quantidade da movimentação deve ser positiva.")
	}
	if req.MassKg <= 0 {
		return domain.Movement{}, apperror.NewValidationError("A massa (kg) da movimentação deve ser positiva.")
	}
	if req.Reason == "" {
		return domain.Movement{}, apperror.NewValidationError("O motivo do lançamento manual é obrigatório.")
	}

	mv := domain.Movement{
		ID:           uuid.New().String(),
		LotID:        req.LotID,
		Kind:         req.Kind,
		SourceSlotID: req.SourceSlotID,
		DestSlotID:   req.DestSlotID,
		Quantity:     req.Quantity,
		MassKg:       req.MassKg,
		PerformedBy:  principal.UserID,
		Reason:       req.Reason,
		IsSystem:     false,
		OccurredAt:   time.Now().UTC(),
	}

	ctxGo := asGoContext(ctx, s.logger)
	created, err := s.repo.AppendManual(ctxGo, mv)
	if err != nil {
		s.logger.Error("Falha ao registrar lançamento manual no repositório.", err)
		return domain.Movement{}, translateRepoError(err, "Falha interna ao registrar lançamento manual.")
	}

	s.logger.Info("Lançamento manual registrado.", map[string]interface{}{
		"movement_id": created.ID, "lot_id": created.LotID, "kind": created.Kind,
	})
	return created, nil
}

// Verify marca uma movimentação como verificada por um passo de auditoria.
// A verificação é tarefa de conferente (ou admin) e é idempotente no sentido
// estrito: verificar duas vezes é um conflito, nunca uma sobrescrita.
func (s *Service) Verify(ctx domain.Context, movementID string, principal domain.Principal) (domain.Movement, error) {
	if !principal.CanConfirmWithdrawal() {
		return domain.Movement{}, apperror.NewUnauthorizedError("Apenas conferentes podem verificar movimentações.")
	}
	if _, err := uuid.Parse(movementID); err != nil {
		return domain.Movement{}, apperror.NewValidationError("O ID da movimentação deve ser um UUID válido.")
	}

	ctxGo := asGoContext(ctx, s.logger)
	mv, err := s.repo.Verify(ctxGo, movementID, principal.UserID)
	if err != nil {
		s.logger.Error("Falha ao verificar movimentação no repositório.", err)
		return domain.Movement{}, translateRepoError(err, "Falha interna ao verificar movimentação.")
	}

	s.logger.Info("Movimentação verificada.", map[string]interface{}{
		"movement_id": mv.ID, "verified_by": principal.UserID,
	})
	return mv, nil
}

// GetMovement busca uma movimentação pelo ID.
func (s *Service) GetMovement(ctx domain.Context, movementID string) (domain.Movement, error) {
	if _, err := uuid.Parse(movementID); err != nil {
		return domain.Movement{}, apperror.NewValidationError("O ID da movimentação deve ser um UUID válido.")
	}

	ctxGo := asGoContext(ctx, s.logger)
	return s.repo.FindByID(ctxGo, movementID)
}

// ListMovements consulta o livro-razão por lote, slot, responsável ou janela
// de tempo.
func (s *Service) ListMovements(ctx domain.Context, filter domain.MovementFilter) ([]domain.Movement, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, apperror.NewValidationError("A janela de consulta é inválida: fim anterior ao início.")
	}

	ctxGo := asGoContext(ctx, s.logger)
	movements, err := s.repo.FindAll(ctxGo, filter)
	if err != nil {
		s.logger.Error("Falha ao consultar o livro-razão de movimentações.", err)
		return nil, err
	}
	return movements, nil
}

func validKind(kind domain.MovementKind) bool {
	switch kind {
	case domain.MovementEntry, domain.MovementExit, domain.MovementTransfer, domain.MovementAdjustment:
		return true
	}
	return false
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
