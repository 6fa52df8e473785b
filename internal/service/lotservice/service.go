package lotservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"seedstock/internal/domain"
	apperror "seedstock/internal/errors"
	"seedstock/internal/pkg/logger"
)

// LotRepository define o contrato que o Serviço de Lotes espera da camada de
// Persistência. Cada operação de mutação executa a tríade atômica (lote +
// carga do slot + movimentação) em transação própria.
type LotRepository interface {
	Intake(ctx context.Context, req domain.IntakeRequest, principal domain.Principal) (domain.Lot, error)
	AssignSlot(ctx context.Context, lotID, slotID string, version int, principal domain.Principal) (domain.Lot, error)
	Move(ctx context.Context, lotID, newSlotID string, version int, principal domain.Principal) (domain.Lot, error)
	PartialMove(ctx context.Context, lotID string, quantity int, newSlotID string, version int, principal domain.Principal) (domain.Lot, domain.Lot, error)
	PartialExit(ctx context.Context, lotID string, quantity int, reason string, version int, principal domain.Principal) (domain.Lot, error)
	AddStock(ctx context.Context, lotID string, quantity int, unitMassKg *float64, version int, principal domain.Principal) (domain.Lot, error)
	Remove(ctx context.Context, lotID, reason string, version int, principal domain.Principal) (domain.Lot, error)
	FindByID(ctx context.Context, id string) (domain.Lot, error)
	FindAll(ctx context.Context, filter domain.LotFilter) ([]domain.Lot, error)
}

// ProductRepository é o recorte do catálogo usado na validação de entrada.
type ProductRepository interface {
	FindByID(ctx context.Context, id string) (domain.Product, error)
}

// Advisor é o contrato do Allocation Advisor consultado quando a entrada não
// informa slot de destino.
type Advisor interface {
	FindOptimalSlot(ctx domain.Context, product domain.Product, quantity int, unitMassKg float64) (domain.AllocationSuggestion, error)
}

// Service implementa a lógica de negócio do ciclo de vida dos lotes.
type Service struct {
	repo     LotRepository
	products ProductRepository
	advisor  Advisor
	logger   logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Lotes.
func NewService(repo LotRepository, products ProductRepository, advisor Advisor, logger logger.Logger) *Service {
	return &Service{repo: repo, products: products, advisor: advisor, logger: logger}
}

// Intake registra a entrada de um novo lote. Sem slot informado, consulta o
// Allocation Advisor; se nenhum slot comportar a massa, o lote entra como
// AGUARDANDO_LOCACAO (a ausência de slot é um resultado válido, não um erro).
// Retorna o lote criado e, quando o Advisor participou, a sugestão aplicada.
func (s *Service) Intake(ctx domain.Context, req domain.IntakeRequest, principal domain.Principal) (domain.Lot, *domain.AllocationSuggestion, error) {
	if !principal.CanOperateStock() {
		return domain.Lot{}, nil, apperror.NewUnauthorizedError("Apenas operadores podem registrar entrada de lotes.")
	}
	if req.ProductID == "" || req.LotCode == "" {
		return domain.Lot{}, nil, apperror.NewValidationError("Produto e código do lote são obrigatórios.")
	}
	if _, err := uuid.Parse(req.ProductID); err != nil {
		return domain.Lot{}, nil, apperror.NewValidationError("O ID do produto deve ser um UUID válido.")
	}
	if req.Quantity <= 0 {
		return domain.Lot{}, nil, apperror.NewValidationError("A quantidade de entrada deve ser positiva.")
	}
	if req.UnitMassKg <= 0 {
		return domain.Lot{}, nil, apperror.NewValidationError("A massa unitária (kg) deve ser positiva.")
	}

	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
		s.logger.Warn("Contexto de domínio inválido, usando context.Background() para Intake", nil)
	}

	product, err := s.products.FindByID(ctxGo, req.ProductID)
	if err != nil {
		var notFound *apperror.NotFoundError
		if errors.As(err, &notFound) {
			return domain.Lot{}, nil, apperror.NewValidationError(fmt.Sprintf("Produto %s não existe no catálogo.", req.ProductID))
		}
		return domain.Lot{}, nil, err
	}
	if !product.IsActive {
		return domain.Lot{}, nil, apperror.NewValidationError(fmt.Sprintf("Produto %s está desativado no catálogo.", product.Code))
	}

	var suggestion *domain.AllocationSuggestion
	if req.SlotID == nil {
		best, advErr := s.advisor.FindOptimalSlot(ctxGo, product, req.Quantity, req.UnitMassKg)
		if advErr != nil {
			var noSlot *apperror.NoSlotAvailableError
			if !errors.As(advErr, &noSlot) {
				return domain.Lot{}, nil, advErr
			}
			// Sem slot disponível: segue sem locação (AGUARDANDO_LOCACAO).
			s.logger.Info("Entrada sem slot disponível, lote seguirá aguardando locação.", map[string]interface{}{
				"lot_code": req.LotCode, "product_id": req.ProductID,
			})
		} else {
			slotID := best.Slot.ID
			req.SlotID = &slotID
			suggestion = &best
		}
	}

	lot, err := s.repo.Intake(ctxGo, req, principal)
	if err != nil {
		s.logger.Error("Falha ao registrar entrada de lote no repositório.", err)
		return domain.Lot{}, nil, translateRepoError(err, "Falha interna ao registrar entrada de lote.")
	}

	s.logger.Info("Entrada de lote registrada.", map[string]interface{}{
		"lot_id": lot.ID, "lot_code": lot.LotCode, "state": lot.State,
	})
	return lot, suggestion, nil
}

// AssignSlot vincula um lote AGUARDANDO_LOCACAO a um slot. A locação é tarefa
// de conferente (ou admin).
func (s *Service) AssignSlot(ctx domain.Context, lotID, slotID string, version int, principal domain.Principal) (domain.Lot, error) {
	if !principal.CanConfirmWithdrawal() {
		return domain.Lot{}, apperror.NewUnauthorizedError("Apenas conferentes podem locar lotes em slots.")
	}
	if err := validateIDs(lotID, slotID); err != nil {
		return domain.Lot{}, err
	}
	if version < 1 {
		return domain.Lot{}, apperror.NewValidationError("A versão do lote deve ser informada (OCC).")
	}

	ctxGo := asGoContext(ctx, s.logger, "AssignSlot")
	lot, err := s.repo.AssignSlot(ctxGo, lotID, slotID, version, principal)
	if err != nil {
		s.logger.Error("Falha ao locar lote no repositório.", err)
		return domain.Lot{}, translateRepoError(err, "Falha interna ao locar lote.")
	}

	s.logger.Info("Lote locado em slot.", map[string]interface{}{
		"lot_id": lot.ID, "slot_id": slotID, "version": lot.Version,
	})
	return lot, nil
}

// Move transfere o lote inteiro para outro slot, registrando uma única
// movimentação de TRANSFERENCIA com origem e destino.
func (s *Service) Move(ctx domain.Context, lotID string, req domain.MoveRequest, principal domain.Principal) (domain.Lot, error) {
	if !principal.CanOperateStock() {
		return domain.Lot{}, apperror.NewUnauthorizedError("Apenas operadores podem movimentar lotes.")
	}
	if err := validateIDs(lotID, req.NewSlotID); err != nil {
		return domain.Lot{}, err
	}
	if req.Version < 1 {
		return domain.Lot{}, apperror.NewValidationError("A versão do lote deve ser informada (OCC).")
	}

	ctxGo := asGoContext(ctx, s.logger, "Move")
	lot, err := s.repo.Move(ctxGo, lotID, req.NewSlotID, req.Version, principal)
	if err != nil {
		s.logger.Error("Falha ao mover lote no repositório.", err)
		return domain.Lot{}, translateRepoError(err, "Falha interna ao mover lote.")
	}

	s.logger.Info("Lote movido.", map[string]interface{}{
		"lot_id": lot.ID, "new_slot_id": req.NewSlotID, "version": lot.Version,
	})
	return lot, nil
}

// PartialMove move parte da quantidade para outro slot, criando um lote
// fragmento no destino. Retorna o lote original reduzido e o fragmento.
func (s *Service) PartialMove(ctx domain.Context, lotID string, req domain.PartialMoveRequest, principal domain.Principal) (domain.Lot, domain.Lot, error) {
	if !principal.CanOperateStock() {
		return domain.Lot{}, domain.Lot{}, apperror.NewUnauthorizedError("Apenas operadores podem movimentar lotes.")
	}
	if err := validateIDs(lotID, req.NewSlotID); err != nil {
		return domain.Lot{}, domain.Lot{}, err
	}
	if req.Quantity <= 0 {
		return domain.Lot{}, domain.Lot{}, apperror.NewValidationError("A quantidade a mover deve ser positiva.")
	}
	if req.Version < 1 {
		return domain.Lot{}, domain.Lot{}, apperror.NewValidationError("A versão do lote deve ser informada (OCC).")
	}

	ctxGo := asGoContext(ctx, s.logger, "PartialMove")
	origin, fragment, err := s.repo.PartialMove(ctxGo, lotID, req.Quantity, req.NewSlotID, req.Version, principal)
	if err != nil {
		s.logger.Error("Falha ao mover parcialmente lote no repositório.", err)
		return domain.Lot{}, domain.Lot{}, translateRepoError(err, "Falha interna ao mover parcialmente o lote.")
	}

	s.logger.Info("Movimentação parcial concluída.", map[string]interface{}{
		"origin_lot_id": origin.ID, "fragment_lot_id": fragment.ID, "quantity": req.Quantity,
	})
	return origin, fragment, nil
}

// PartialExit dá baixa em parte da quantidade de um lote LOCADO. Quando a
// saída consome toda a quantidade, o lote é finalizado como RETIRADO e o slot
// é liberado.
func (s *Service) PartialExit(ctx domain.Context, lotID string, req domain.PartialExitRequest, principal domain.Principal) (domain.Lot, error) {
	if !principal.CanOperateStock() {
		return domain.Lot{}, apperror.NewUnauthorizedError("Apenas operadores podem dar baixa em lotes.")
	}
	if _, err := uuid.Parse(lotID); err != nil {
		return domain.Lot{}, apperror.NewValidationError("O ID do lote deve ser um UUID válido.")
	}
	if req.Quantity <= 0 {
		return domain.Lot{}, apperror.NewValidationError("A quantidade de saída deve ser positiva.")
	}
	if req.Version < 1 {
		return domain.Lot{}, apperror.NewValidationError("A versão do lote deve ser informada (OCC).")
	}

	ctxGo := asGoContext(ctx, s.logger, "PartialExit")
	lot, err := s.repo.PartialExit(ctxGo, lotID, req.Quantity, req.Reason, req.Version, principal)
	if err != nil {
		s.logger.Error("Falha ao registrar saída parcial no repositório.", err)
		return domain.Lot{}, translateRepoError(err, "Falha interna ao registrar saída parcial.")
	}

	s.logger.Info("Saída parcial registrada.", map[string]interface{}{
		"lot_id": lot.ID, "remaining_quantity": lot.Quantity, "state": lot.State,
	})
	return lot, nil
}

// AddStock adiciona quantidade a um lote LOCADO. A massa unitária, quando
// informada, substitui a do lote antes do recálculo da massa total.
func (s *Service) AddStock(ctx domain.Context, lotID string, req domain.AddStockRequest, principal domain.Principal) (domain.Lot, error) {
	if !principal.CanOperateStock() {
		return domain.Lot{}, apperror.NewUnauthorizedError("Apenas operadores podem adicionar estoque a lotes.")
	}
	if _, err := uuid.Parse(lotID); err != nil {
		return domain.Lot{}, apperror.NewValidationError("O ID do lote deve ser um UUID válido.")
	}
	if req.Quantity <= 0 {
		return domain.Lot{}, apperror.NewValidationError("A quantidade a adicionar deve ser positiva.")
	}
	if req.UnitMassKg != nil && *req.UnitMassKg <= 0 {
		return domain.Lot{}, apperror.NewValidationError("A massa unitária (kg), quando informada, deve ser positiva.")
	}
	if req.Version < 1 {
		return domain.Lot{}, apperror.NewValidationError("A versão do lote deve ser informada (OCC).")
	}

	ctxGo := asGoContext(ctx, s.logger, "AddStock")
	lot, err := s.repo.AddStock(ctxGo, lotID, req.Quantity, req.UnitMassKg, req.Version, principal)
	if err != nil {
		s.logger.Error("Falha ao adicionar estoque no repositório.", err)
		return domain.Lot{}, translateRepoError(err, "Falha interna ao adicionar estoque.")
	}

	s.logger.Info("Estoque adicionado ao lote.", map[string]interface{}{
		"lot_id": lot.ID, "new_quantity": lot.Quantity, "total_mass_kg": lot.TotalMassKg,
	})
	return lot, nil
}

// Remove finaliza um lote LOCADO como REMOVIDO (descarte, perda, auditoria).
// Lotes com solicitação de retirada PENDENTE não podem ser removidos.
func (s *Service) Remove(ctx domain.Context, lotID, reason string, version int, principal domain.Principal) (domain.Lot, error) {
	if !principal.CanOperateStock() {
		return domain.Lot{}, apperror.NewUnauthorizedError("Apenas operadores podem remover lotes.")
	}
	if _, err := uuid.Parse(lotID); err != nil {
		return domain.Lot{}, apperror.NewValidationError("O ID do lote deve ser um UUID válido.")
	}
	if reason == "" {
		return domain.Lot{}, apperror.NewValidationError("O motivo da remoção é obrigatório.")
	}
	if version < 1 {
		return domain.Lot{}, apperror.NewValidationError("A versão do lote deve ser informada (OCC).")
	}

	ctxGo := asGoContext(ctx, s.logger, "Remove")
	lot, err := s.repo.Remove(ctxGo, lotID, reason, version, principal)
	if err != nil {
		s.logger.Error("Falha ao remover lote no repositório.", err)
		return domain.Lot{}, translateRepoError(err, "Falha interna ao remover lote.")
	}

	s.logger.Info("Lote removido.", map[string]interface{}{
		"lot_id": lot.ID, "reason": reason,
	})
	return lot, nil
}

// GetLot busca um lote pelo ID.
func (s *Service) GetLot(ctx domain.Context, lotID string) (domain.Lot, error) {
	if _, err := uuid.Parse(lotID); err != nil {
		return domain.Lot{}, apperror.NewValidationError("O ID do lote deve ser um UUID válido.")
	}

	ctxGo := asGoContext(ctx, s.logger, "GetLot")
	lot, err := s.repo.FindByID(ctxGo, lotID)
	if err != nil {
		return domain.Lot{}, err
	}
	return lot, nil
}

// ListLots lista lotes conforme o filtro informado.
func (s *Service) ListLots(ctx domain.Context, filter domain.LotFilter) ([]domain.Lot, error) {
	ctxGo := asGoContext(ctx, s.logger, "ListLots")
	lots, err := s.repo.FindAll(ctxGo, filter)
	if err != nil {
		s.logger.Error("Falha ao listar lotes no repositório.", err)
		return nil, err
	}
	return lots, nil
}

// validateIDs valida o par (lote, slot) como UUIDs.
func validateIDs(lotID, slotID string) error {
	if _, err := uuid.Parse(lotID); err != nil {
		return apperror.NewValidationError("O ID do lote deve ser um UUID válido.")
	}
	if _, err := uuid.Parse(slotID); err != nil {
		return apperror.NewValidationError("O ID do slot deve ser um UUID válido.")
	}
	return nil
}

// asGoContext converte domain.Context para context.Context com fallback.
func asGoContext(ctx domain.Context, log logger.Logger, op string) context.Context {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
		log.Warn(fmt.Sprintf("Contexto de domínio inválido, usando context.Background() para %s", op), nil)
	}
	return ctxGo
}

// translateRepoError preserva erros tipados do repositório e encapsula o
// restante como erro interno.
func translateRepoError(err error, internalMsg string) error {
	var appErr apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.NewInternalError(internalMsg, err)
}
