package slotservice

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"seedstock/internal/domain"
	apperror "seedstock/internal/errors"
	"seedstock/internal/pkg/logger"
)

// SlotRepository define o contrato que o Serviço de Slots espera da camada de
// Persistência. Slots e câmaras são provisionados externamente: aqui só há
// leitura e desativação lógica.
type SlotRepository interface {
	FindByID(ctx context.Context, id string) (domain.Slot, error)
	FindAll(ctx context.Context, filter domain.SlotFilter) ([]domain.Slot, error)
	GetChamberByID(ctx context.Context, id string) (domain.Chamber, error)
	ChamberLoadSummaries(ctx context.Context) ([]domain.ChamberLoadSummary, error)
	Deactivate(ctx context.Context, id string) error
}

// Service implementa as consultas de slots/câmaras e a desativação lógica.
type Service struct {
	repo   SlotRepository
	logger logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Slots.
func NewService(repo SlotRepository, logger logger.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// GetSlot busca um slot pelo ID.
func (s *Service) GetSlot(ctx domain.Context, slotID string) (domain.Slot, error) {
	if _, err := uuid.Parse(slotID); err != nil {
		return domain.Slot{}, apperror.NewValidationError("O ID do slot deve ser um UUID válido.")
	}

	ctxGo := asGoContext(ctx, s.logger)
	return s.repo.FindByID(ctxGo, slotID)
}

// ListSlots lista slots conforme o filtro (câmara, apenas livres, apenas ativos).
func (s *Service) ListSlots(ctx domain.Context, filter domain.SlotFilter) ([]domain.Slot, error) {
	ctxGo := asGoContext(ctx, s.logger)
	slots, err := s.repo.FindAll(ctxGo, filter)
	if err != nil {
		s.logger.Error("Falha ao listar slots no repositório.", err)
		return nil, err
	}
	return slots, nil
}

// GetChamber busca uma câmara pelo ID.
func (s *Service) GetChamber(ctx domain.Context, chamberID string) (domain.Chamber, error) {
	if _, err := uuid.Parse(chamberID); err != nil {
		return domain.Chamber{}, apperror.NewValidationError("O ID da câmara deve ser um UUID válido.")
	}

	ctxGo := asGoContext(ctx, s.logger)
	return s.repo.GetChamberByID(ctxGo, chamberID)
}

// OccupancySummary retorna a ocupação agregada de todas as câmaras.
func (s *Service) OccupancySummary(ctx domain.Context) ([]domain.ChamberLoadSummary, error) {
	ctxGo := asGoContext(ctx, s.logger)
	summaries, err := s.repo.ChamberLoadSummaries(ctxGo)
	if err != nil {
		s.logger.Error("Falha ao agregar ocupação das câmaras.", err)
		return nil, err
	}
	return summaries, nil
}

// DeactivateSlot desativa logicamente um slot vazio. Slots nunca são
// deletados: o livro-razão referencia seus IDs para sempre.
func (s *Service) DeactivateSlot(ctx domain.Context, slotID string, principal domain.Principal) error {
	if principal.Role != domain.RoleAdmin {
		return apperror.NewUnauthorizedError("Apenas administradores podem desativar slots.")
	}
	if _, err := uuid.Parse(slotID); err != nil {
		return apperror.NewValidationError("O ID do slot deve ser um UUID válido.")
	}

	ctxGo := asGoContext(ctx, s.logger)
	if err := s.repo.Deactivate(ctxGo, slotID); err != nil {
		s.logger.Error("Falha ao desativar slot no repositório.", err)
		return translateRepoError(err, "Falha interna ao desativar slot.")
	}

	s.logger.Info("Slot desativado.", map[string]interface{}{"slot_id": slotID})
	return nil
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
