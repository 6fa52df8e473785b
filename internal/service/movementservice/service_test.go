package movementservice_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"seedstock/internal/domain"
	apperror "seedstock/internal/errors"
	"seedstock/internal/pkg/logger"
	"seedstock/internal/service/movementservice"
)

// MockMovementRepository é uma implementação mock da interface MovementRepository.
type MockMovementRepository struct {
	mock.Mock
}

func (m *MockMovementRepository) AppendManual(ctx context.Context, mv domain.Movement) (domain.Movement, error) {
	args := m.Called(ctx, mv)
	return args.Get(0).(domain.Movement), args.Error(1)
}

func (m *MockMovementRepository) FindByID(ctx context.Context, id string) (domain.Movement, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Movement), args.Error(1)
}

func (m *MockMovementRepository) FindAll(ctx context.Context, filter domain.MovementFilter) ([]domain.Movement, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Movement), args.Error(1)
}

func (m *MockMovementRepository) Verify(ctx context.Context, movementID, verifierID string) (domain.Movement, error) {
	args := m.Called(ctx, movementID, verifierID)
	return args.Get(0).(domain.Movement), args.Error(1)
}

func newMovementService(t *testing.T) (*movementservice.Service, *MockMovementRepository) {
	t.Helper()
	mockRepo := new(MockMovementRepository)
	svc := movementservice.NewService(mockRepo, logger.NewLogger("debug"))
	return svc, mockRepo
}

func TestRegisterManual_Sucesso(t *testing.T) {
	svc, mockRepo := newMovementService(t)

	principal := domain.Principal{UserID: uuid.New().String(), Role: domain.RoleOperator}
	lotID := uuid.New().String()

	mockRepo.On("AppendManual", mock.AnythingOfType("context.backgroundCtx"), mock.MatchedBy(func(mv domain.Movement) bool {
		return mv.LotID == lotID && !mv.IsSystem && mv.PerformedBy == principal.UserID && mv.ID != ""
	})).Return(domain.Movement{ID: uuid.New().String(), LotID: lotID, Kind: domain.MovementAdjustment}, nil)

	req := domain.ManualMovementRequest{
		LotID:    lotID,
		Kind:     domain.MovementAdjustment,
		Quantity: 2,
		MassKg:   50,
		Reason:   "Correção de contagem física",
	}
	mv, err := svc.RegisterManual(context.Background(), req, principal)

	assert.NoError(t, err)
	assert.Equal(t, domain.MovementAdjustment, mv.Kind)
	mockRepo.AssertExpectations(t)
}

// TestRegisterManual_Duplicada verifica que a supressão de duplicatas também
// cobre lançamentos manuais.
func TestRegisterManual_Duplicada(t *testing.T) {
	svc, mockRepo := newMovementService(t)

	principal := domain.Principal{UserID: uuid.New().String(), Role: domain.RoleOperator}
	mockRepo.On("AppendManual", mock.AnythingOfType("context.backgroundCtx"), mock.AnythingOfType("domain.Movement")).
		Return(domain.Movement{}, apperror.NewDuplicateMovementError("Movimentação idêntica registrada na janela de supressão."))

	req := domain.ManualMovementRequest{
		LotID:    uuid.New().String(),
		Kind:     domain.MovementExit,
		Quantity: 2,
		MassKg:   50,
		Reason:   "Baixa de retaguarda",
	}
	_, err := svc.RegisterManual(context.Background(), req, principal)

	assert.Error(t, err)
	assert.IsType(t, &apperror.DuplicateMovementError{}, err)
	mockRepo.AssertExpectations(t)
}

// TestRegisterManual_LoteInexistente verifica que a referência a um lote que
// não existe chega ao chamador como erro de validação, não como erro interno.
func TestRegisterManual_LoteInexistente(t *testing.T) {
	svc, mockRepo := newMovementService(t)

	principal := domain.Principal{UserID: uuid.New().String(), Role: domain.RoleOperator}
	mockRepo.On("AppendManual", mock.AnythingOfType("context.backgroundCtx"), mock.AnythingOfType("domain.Movement")).
		Return(domain.Movement{}, apperror.NewValidationError("Movimentação referencia lote ou slot inexistente."))

	req := domain.ManualMovementRequest{
		LotID:    uuid.New().String(),
		Kind:     domain.MovementEntry,
		Quantity: 1,
		MassKg:   10,
		Reason:   "Regularização de entrada",
	}
	_, err := svc.RegisterManual(context.Background(), req, principal)

	assert.Error(t, err)
	assert.IsType(t, &apperror.ValidationError{}, err)
	mockRepo.AssertExpectations(t)
}

func TestRegisterManual_TipoInvalido(t *testing.T) {
	svc, mockRepo := newMovementService(t)

	req := domain.ManualMovementRequest{
		LotID:    uuid.New().String(),
		Kind:     "INVENTARIO",
		Quantity: 2,
		MassKg:   50,
		Reason:   "Ajuste",
	}
	_, err := svc.RegisterManual(context.Background(), req, domain.Principal{UserID: "u", Role: domain.RoleOperator})

	assert.Error(t, err)
	assert.IsType(t, &apperror.ValidationError{}, err)
	mockRepo.AssertNotCalled(t, "AppendManual", mock.Anything, mock.Anything)
}

func TestVerify_PapelDeConferente(t *testing.T) {
	svc, mockRepo := newMovementService(t)

	operador := domain.Principal{UserID: uuid.New().String(), Role: domain.RoleOperator}
	_, err := svc.Verify(context.Background(), uuid.New().String(), operador)

	assert.Error(t, err)
	assert.IsType(t, &apperror.UnauthorizedError{}, err)
	mockRepo.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerify_Sucesso(t *testing.T) {
	svc, mockRepo := newMovementService(t)

	conferente := domain.Principal{UserID: uuid.New().String(), Role: domain.RoleConfirmer}
	movementID := uuid.New().String()

	mockRepo.On("Verify", mock.AnythingOfType("context.backgroundCtx"), movementID, conferente.UserID).
		Return(domain.Movement{ID: movementID, Verified: true, VerifiedBy: &conferente.UserID}, nil)

	mv, err := svc.Verify(context.Background(), movementID, conferente)

	assert.NoError(t, err)
	assert.True(t, mv.Verified)
	mockRepo.AssertExpectations(t)
}

func TestListMovements_JanelaInvalida(t *testing.T) {
	svc, mockRepo := newMovementService(t)

	from := time.Now()
	to := from.Add(-time.Hour)
	_, err := svc.ListMovements(context.Background(), domain.MovementFilter{From: &from, To: &to})

	assert.Error(t, err)
	assert.IsType(t, &apperror.ValidationError{}, err)
	mockRepo.AssertNotCalled(t, "FindAll", mock.Anything, mock.Anything)
}
