package lotservice_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"seedstock/internal/domain"
	apperror "seedstock/internal/errors"
	"seedstock/internal/pkg/logger"
	"seedstock/internal/service/lotservice"
)

// MockLotRepository é uma implementação mock da interface LotRepository.
type MockLotRepository struct {
	mock.Mock
}

func (m *MockLotRepository) Intake(ctx context.Context, req domain.IntakeRequest, principal domain.Principal) (domain.Lot, error) {
	args := m.Called(ctx, req, principal)
	return args.Get(0).(domain.Lot), args.Error(1)
}

func (m *MockLotRepository) AssignSlot(ctx context.Context, lotID, slotID string, version int, principal domain.Principal) (domain.Lot, error) {
	args := m.Called(ctx, lotID, slotID, version, principal)
	return args.Get(0).(domain.Lot), args.Error(1)
}

func (m *MockLotRepository) Move(ctx context.Context, lotID, newSlotID string, version int, principal domain.Principal) (domain.Lot, error) {
	args := m.Called(ctx, lotID, newSlotID, version, principal)
	return args.Get(0).(domain.Lot), args.Error(1)
}

func (m *MockLotRepository) PartialMove(ctx context.Context, lotID string, quantity int, newSlotID string, version int, principal domain.Principal) (domain.Lot, domain.Lot, error) {
	args := m.Called(ctx, lotID, quantity, newSlotID, version, principal)
	return args.Get(0).(domain.Lot), args.Get(1).(domain.Lot), args.Error(2)
}

func (m *MockLotRepository) PartialExit(ctx context.Context, lotID string, quantity int, reason string, version int, principal domain.Principal) (domain.Lot, error) {
	args := m.Called(ctx, lotID, quantity, reason, version, principal)
	return args.Get(0).(domain.Lot), args.Error(1)
}

func (m *MockLotRepository) AddStock(ctx context.Context, lotID string, quantity int, unitMassKg *float64, version int, principal domain.Principal) (domain.Lot, error) {
	args := m.Called(ctx, lotID, quantity, unitMassKg, version, principal)
	return args.Get(0).(domain.Lot), args.Error(1)
}

func (m *MockLotRepository) Remove(ctx context.Context, lotID, reason string, version int, principal domain.Principal) (domain.Lot, error) {
	args := m.Called(ctx, lotID, reason, version, principal)
	return args.Get(0).(domain.Lot), args.Error(1)
}

func (m *MockLotRepository) FindByID(ctx context.Context, id string) (domain.Lot, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Lot), args.Error(1)
}

func (m *MockLotRepository) FindAll(ctx context.Context, filter domain.LotFilter) ([]domain.Lot, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Lot), args.Error(1)
}

// MockProductRepository é uma implementação mock da interface ProductRepository.
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) FindByID(ctx context.Context, id string) (domain.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Product), args.Error(1)
}

// MockAdvisor é uma implementação mock da interface Advisor.
type MockAdvisor struct {
	mock.Mock
}

func (m *MockAdvisor) FindOptimalSlot(ctx domain.Context, product domain.Product, quantity int, unitMassKg float64) (domain.AllocationSuggestion, error) {
	args := m.Called(ctx, product, quantity, unitMassKg)
	return args.Get(0).(domain.AllocationSuggestion), args.Error(1)
}

func newLotService(t *testing.T) (*lotservice.Service, *MockLotRepository, *MockProductRepository, *MockAdvisor) {
	t.Helper()
	mockRepo := new(MockLotRepository)
	mockProducts := new(MockProductRepository)
	mockAdvisor := new(MockAdvisor)
	svc := lotservice.NewService(mockRepo, mockProducts, mockAdvisor, logger.NewLogger("debug"))
	return svc, mockRepo, mockProducts, mockAdvisor
}

func operator() domain.Principal {
	return domain.Principal{UserID: uuid.New().String(), Role: domain.RoleOperator}
}

func confirmer() domain.Principal {
	return domain.Principal{UserID: uuid.New().String(), Role: domain.RoleConfirmer}
}

// TestIntake_ComSlotExplicito verifica que o Advisor não é consultado quando
// o chamador já informa o slot de destino.
func TestIntake_ComSlotExplicito(t *testing.T) {
	svc, mockRepo, mockProducts, mockAdvisor := newLotService(t)

	productID := uuid.New().String()
	slotID := uuid.New().String()
	principal := operator()

	mockProducts.On("FindByID", mock.AnythingOfType("context.backgroundCtx"), productID).
		Return(domain.Product{ID: productID, Code: "MIL-001", IsActive: true}, nil)

	expectedLot := domain.Lot{ID: uuid.New().String(), State: domain.StateLocado, SlotID: &slotID, Version: 1}
	mockRepo.On("Intake", mock.AnythingOfType("context.backgroundCtx"), mock.AnythingOfType("domain.IntakeRequest"), principal).
		Return(expectedLot, nil)

	req := domain.IntakeRequest{
		ProductID:  productID,
		LotCode:    "L-2026-001",
		Quantity:   10,
		UnitMassKg: 25,
		SlotID:     &slotID,
	}

	lot, suggestion, err := svc.Intake(context.Background(), req, principal)

	assert.NoError(t, err)
	assert.Equal(t, domain.StateLocado, lot.State)
	assert.Nil(t, suggestion)
	mockAdvisor.AssertNotCalled(t, "FindOptimalSlot", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockRepo.AssertExpectations(t)
	mockProducts.AssertExpectations(t)
}

// TestIntake_AdvisorSugereSlot verifica que a sugestão do Advisor é aplicada
// ao pedido antes da persistência.
func TestIntake_AdvisorSugereSlot(t *testing.T) {
	svc, mockRepo, mockProducts, mockAdvisor := newLotService(t)

	productID := uuid.New().String()
	suggestedSlotID := uuid.New().String()
	principal := operator()
	product := domain.Product{ID: productID, Code: "MIL-001", IsActive: true}

	mockProducts.On("FindByID", mock.AnythingOfType("context.backgroundCtx"), productID).
		Return(product, nil)
	mockAdvisor.On("FindOptimalSlot", mock.Anything, product, 10, 25.0).
		Return(domain.AllocationSuggestion{Slot: domain.Slot{ID: suggestedSlotID}, Score: 0.8}, nil)

	mockRepo.On("Intake", mock.AnythingOfType("context.backgroundCtx"), mock.MatchedBy(func(req domain.IntakeRequest) bool {
		return req.SlotID != nil && *req.SlotID == suggestedSlotID
	}), principal).Return(domain.Lot{ID: uuid.New().String(), State: domain.StateLocado, Version: 1}, nil)

	req := domain.IntakeRequest{ProductID: productID, LotCode: "L-2026-002", Quantity: 10, UnitMassKg: 25}

	lot, suggestion, err := svc.Intake(context.Background(), req, principal)

	assert.NoError(t, err)
	assert.Equal(t, domain.StateLocado, lot.State)
	assert.NotNil(t, suggestion)
	assert.Equal(t, suggestedSlotID, suggestion.Slot.ID)
	mockRepo.AssertExpectations(t)
	mockAdvisor.AssertExpectations(t)
}

// TestIntake_SemSlotDisponivel verifica o roteamento para AGUARDANDO_LOCACAO:
// a falta de slot não é um erro de entrada.
func TestIntake_SemSlotDisponivel(t *testing.T) {
	svc, mockRepo, mockProducts, mockAdvisor := newLotService(t)

	productID := uuid.New().String()
	principal := operator()
	product := domain.Product{ID: productID, Code: "MIL-001", IsActive: true}

	mockProducts.On("FindByID", mock.AnythingOfType("context.backgroundCtx"), productID).
		Return(product, nil)
	mockAdvisor.On("FindOptimalSlot", mock.Anything, product, 10, 25.0).
		Return(domain.AllocationSuggestion{}, apperror.NewNoSlotAvailableError("nenhum slot comporta a massa"))

	mockRepo.On("Intake", mock.AnythingOfType("context.backgroundCtx"), mock.MatchedBy(func(req domain.IntakeRequest) bool {
		return req.SlotID == nil
	}), principal).Return(domain.Lot{ID: uuid.New().String(), State: domain.StateAguardandoLocacao, Version: 1}, nil)

	req := domain.IntakeRequest{ProductID: productID, LotCode: "L-2026-003", Quantity: 10, UnitMassKg: 25}

	lot, suggestion, err := svc.Intake(context.Background(), req, principal)

	assert.NoError(t, err)
	assert.Equal(t, domain.StateAguardandoLocacao, lot.State)
	assert.Nil(t, suggestion)
	mockRepo.AssertExpectations(t)
}

func TestIntake_ProdutoInativo(t *testing.T) {
	svc, mockRepo, mockProducts, _ := newLotService(t)

	productID := uuid.New().String()
	mockProducts.On("FindByID", mock.AnythingOfType("context.backgroundCtx"), productID).
		Return(domain.Product{ID: productID, Code: "MIL-001", IsActive: false}, nil)

	req := domain.IntakeRequest{ProductID: productID, LotCode: "L-2026-004", Quantity: 10, UnitMassKg: 25}
	_, _, err := svc.Intake(context.Background(), req, operator())

	assert.Error(t, err)
	assert.IsType(t, &apperror.ValidationError{}, err)
	mockRepo.AssertNotCalled(t, "Intake", mock.Anything, mock.Anything, mock.Anything)
}

func TestIntake_PapelSemPermissao(t *testing.T) {
	svc, mockRepo, _, _ := newLotService(t)

	req := domain.IntakeRequest{ProductID: uuid.New().String(), LotCode: "L-2026-005", Quantity: 10, UnitMassKg: 25}
	_, _, err := svc.Intake(context.Background(), req, confirmer())

	assert.Error(t, err)
	assert.IsType(t, &apperror.UnauthorizedError{}, err)
	mockRepo.AssertNotCalled(t, "Intake", mock.Anything, mock.Anything, mock.Anything)
}

func TestIntake_QuantidadeInvalida(t *testing.T) {
	svc, _, _, _ := newLotService(t)

	req := domain.IntakeRequest{ProductID: uuid.New().String(), LotCode: "L-2026-006", Quantity: 0, UnitMassKg: 25}
	_, _, err := svc.Intake(context.Background(), req, operator())

	assert.Error(t, err)
	assert.IsType(t, &apperror.ValidationError{}, err)
}

// TestMove_ConflitoDeVersao verifica que o StaleVersionError do repositório
// chega intacto ao chamador.
func TestMove_ConflitoDeVersao(t *testing.T) {
	svc, mockRepo, _, _ := newLotService(t)

	lotID := uuid.New().String()
	slotID := uuid.New().String()
	principal := operator()

	mockRepo.On("Move", mock.AnythingOfType("context.backgroundCtx"), lotID, slotID, 3, principal).
		Return(domain.Lot{}, apperror.NewStaleVersionError("O lote foi modificado por outra operação."))

	_, err := svc.Move(context.Background(), lotID, domain.MoveRequest{NewSlotID: slotID, Version: 3}, principal)

	assert.Error(t, err)
	assert.IsType(t, &apperror.StaleVersionError{}, err)
	mockRepo.AssertExpectations(t)
}

func TestAssignSlot_PapelDeConferente(t *testing.T) {
	svc, mockRepo, _, _ := newLotService(t)

	_, err := svc.AssignSlot(context.Background(), uuid.New().String(), uuid.New().String(), 1, operator())

	assert.Error(t, err)
	assert.IsType(t, &apperror.UnauthorizedError{}, err)
	mockRepo.AssertNotCalled(t, "AssignSlot", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPartialMove_Sucesso(t *testing.T) {
	svc, mockRepo, _, _ := newLotService(t)

	lotID := uuid.New().String()
	slotID := uuid.New().String()
	principal := operator()

	origin := domain.Lot{ID: lotID, Quantity: 30, Version: 2}
	fragment := domain.Lot{ID: uuid.New().String(), Quantity: 10, Version: 1}

	mockRepo.On("PartialMove", mock.AnythingOfType("context.backgroundCtx"), lotID, 10, slotID, 1, principal).
		Return(origin, fragment, nil)

	gotOrigin, gotFragment, err := svc.PartialMove(context.Background(), lotID,
		domain.PartialMoveRequest{Quantity: 10, NewSlotID: slotID, Version: 1}, principal)

	assert.NoError(t, err)
	assert.Equal(t, origin.ID, gotOrigin.ID)
	assert.Equal(t, fragment.ID, gotFragment.ID)
	assert.Equal(t, 1, gotFragment.Version)
	mockRepo.AssertExpectations(t)
}

func TestPartialExit_QuantidadeInvalida(t *testing.T) {
	svc, mockRepo, _, _ := newLotService(t)

	_, err := svc.PartialExit(context.Background(), uuid.New().String(),
		domain.PartialExitRequest{Quantity: 0, Version: 1}, operator())

	assert.Error(t, err)
	assert.IsType(t, &apperror.ValidationError{}, err)
	mockRepo.AssertNotCalled(t, "PartialExit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAddStock_MassaUnitariaInvalida(t *testing.T) {
	svc, _, _, _ := newLotService(t)

	negativa := -1.0
	_, err := svc.AddStock(context.Background(), uuid.New().String(),
		domain.AddStockRequest{Quantity: 5, UnitMassKg: &negativa, Version: 1}, operator())

	assert.Error(t, err)
	assert.IsType(t, &apperror.ValidationError{}, err)
}

func TestRemove_MotivoObrigatorio(t *testing.T) {
	svc, mockRepo, _, _ := newLotService(t)

	_, err := svc.Remove(context.Background(), uuid.New().String(), "", 1, operator())

	assert.Error(t, err)
	assert.IsType(t, &apperror.ValidationError{}, err)
	mockRepo.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
