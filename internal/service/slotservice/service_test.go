package slotservice_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"seedstock/internal/domain"
	apperror "seedstock/internal/errors"
	"seedstock/internal/pkg/logger"
	"seedstock/internal/service/slotservice"
)

// MockSlotRepository é uma implementação mock da interface SlotRepository.
type MockSlotRepository struct {
	mock.Mock
}

func (m *MockSlotRepository) FindByID(ctx context.Context, id string) (domain.Slot, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Slot), args.Error(1)
}

func (m *MockSlotRepository) FindAll(ctx context.Context, filter domain.SlotFilter) ([]domain.Slot, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Slot), args.Error(1)
}

func (m *MockSlotRepository) GetChamberByID(ctx context.Context, id string) (domain.Chamber, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Chamber), args.Error(1)
}

func (m *MockSlotRepository) ChamberLoadSummaries(ctx context.Context) ([]domain.ChamberLoadSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.ChamberLoadSummary), args.Error(1)
}

func (m *MockSlotRepository) Deactivate(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newSlotService(t *testing.T) (*slotservice.Service, *MockSlotRepository) {
	t.Helper()
	mockRepo := new(MockSlotRepository)
	svc := slotservice.NewService(mockRepo, logger.NewLogger("debug"))
	return svc, mockRepo
}

func TestDeactivateSlot_SomenteAdmin(t *testing.T) {
	svc, mockRepo := newSlotService(t)

	operador := domain.Principal{UserID: uuid.New().String(), Role: domain.RoleOperator}
	err := svc.DeactivateSlot(context.Background(), uuid.New().String(), operador)

	assert.Error(t, err)
	assert.IsType(t, &apperror.UnauthorizedError{}, err)
	mockRepo.AssertNotCalled(t, "Deactivate", mock.Anything, mock.Anything)
}

func TestDeactivateSlot_Sucesso(t *testing.T) {
	svc, mockRepo := newSlotService(t)

	admin := domain.Principal{UserID: uuid.New().String(), Role: domain.RoleAdmin}
	slotID := uuid.New().String()

	mockRepo.On("Deactivate", mock.AnythingOfType("context.backgroundCtx"), slotID).Return(nil)

	err := svc.DeactivateSlot(context.Background(), slotID, admin)

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

// TestDeactivateSlot_SlotOcupado verifica que slots com carga não podem ser
// desativados.
func TestDeactivateSlot_SlotOcupado(t *testing.T) {
	svc, mockRepo := newSlotService(t)

	admin := domain.Principal{UserID: uuid.New().String(), Role: domain.RoleAdmin}
	slotID := uuid.New().String()

	mockRepo.On("Deactivate", mock.AnythingOfType("context.backgroundCtx"), slotID).
		Return(apperror.NewSlotOccupiedError("O slot possui carga e não pode ser desativado."))

	err := svc.DeactivateSlot(context.Background(), slotID, admin)

	assert.Error(t, err)
	assert.IsType(t, &apperror.SlotOccupiedError{}, err)
	mockRepo.AssertExpectations(t)
}

func TestOccupancySummary(t *testing.T) {
	svc, mockRepo := newSlotService(t)

	summaries := []domain.ChamberLoadSummary{
		{ChamberID: uuid.New().String(), ChamberName: "Câmara 1", TotalSlots: 40, OccupiedSlots: 12, TotalLoadKg: 3000, CapacityKg: 20000},
	}
	mockRepo.On("ChamberLoadSummaries", mock.AnythingOfType("context.backgroundCtx")).Return(summaries, nil)

	got, err := svc.OccupancySummary(context.Background())

	assert.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 12, got[0].OccupiedSlots)
	mockRepo.AssertExpectations(t)
}

func TestGetSlot_IDInvalido(t *testing.T) {
	svc, mockRepo := newSlotService(t)

	_, err := svc.GetSlot(context.Background(), "nao-e-uuid")

	assert.Error(t, err)
	assert.IsType(t, &apperror.ValidationError{}, err)
	mockRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}
