package allocservice_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"seedstock/internal/domain"
	apperror "seedstock/internal/errors"
	"seedstock/internal/pkg/logger"
	"seedstock/internal/service/allocservice"
)

// MockSlotRepository é uma implementação mock da interface SlotRepository.
type MockSlotRepository struct {
	mock.Mock
}

func (m *MockSlotRepository) FindSnapshots(ctx context.Context) ([]domain.SlotSnapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.SlotSnapshot), args.Error(1)
}

func freeSlot(id string, chamberID string, block int, side string, row, level int, maxKg, loadKg float64) domain.SlotSnapshot {
	return domain.SlotSnapshot{
		Slot: domain.Slot{
			ID:            id,
			ChamberID:     chamberID,
			Block:         block,
			Side:          side,
			Row:           row,
			Level:         level,
			Code:          domain.BuildSlotCode(block, side, row, level),
			MaxCapacityKg: maxKg,
			CurrentLoadKg: loadKg,
			IsActive:      true,
		},
		Chamber: domain.Chamber{ID: chamberID, MinTempC: 0, MaxTempC: 8, IsActive: true},
	}
}

// TestScoreSnapshots_EncaixeJusto verifica que, entre dois slots que comportam
// a massa, vence o de menor capacidade livre (menos fragmentação).
func TestScoreSnapshots_EncaixeJusto(t *testing.T) {
	product := domain.Product{ID: "prod-1", IdealMinTempC: -5, IdealMaxTempC: 10}
	snapshots := []domain.SlotSnapshot{
		freeSlot("slot-grande", "cam-1", 1, "E", 1, 1, 1000, 0),
		freeSlot("slot-justo", "cam-1", 1, "E", 5, 1, 300, 0),
	}

	best, found := allocservice.ScoreSnapshots(snapshots, product, 250)

	assert.True(t, found)
	assert.Equal(t, "slot-justo", best.Slot.ID)
	assert.Greater(t, best.Tightness, 0.5)
}

// TestScoreSnapshots_AdjacenciaDesempata verifica que a vizinhança com o mesmo
// produto desempata slots de capacidade igual.
func TestScoreSnapshots_AdjacenciaDesempata(t *testing.T) {
	product := domain.Product{ID: "prod-1", IdealMinTempC: -5, IdealMaxTempC: 10}

	vizinhoOcupado := freeSlot("slot-vizinho-ocupado", "cam-1", 1, "E", 2, 1, 300, 300)
	vizinhoOcupado.OccupantProductID = "prod-1"

	snapshots := []domain.SlotSnapshot{
		freeSlot("slot-isolado", "cam-1", 2, "E", 1, 1, 300, 0),
		freeSlot("slot-com-vizinho", "cam-1", 1, "E", 1, 1, 300, 0),
		vizinhoOcupado,
	}

	best, found := allocservice.ScoreSnapshots(snapshots, product, 250)

	assert.True(t, found)
	assert.Equal(t, "slot-com-vizinho", best.Slot.ID)
	assert.Greater(t, best.Adjacency, 0.0)
}

// TestScoreSnapshots_AmbienteDesempata verifica que a câmara com faixa de
// temperatura contida na faixa ideal do produto vence.
func TestScoreSnapshots_AmbienteDesempata(t *testing.T) {
	product := domain.Product{ID: "prod-1", IdealMinTempC: -2, IdealMaxTempC: 6}

	adequado := freeSlot("slot-adequado", "cam-fria", 1, "E", 1, 1, 300, 0)
	adequado.Chamber = domain.Chamber{ID: "cam-fria", MinTempC: 0, MaxTempC: 5}

	inadequado := freeSlot("slot-inadequado", "cam-quente", 1, "E", 1, 1, 300, 0)
	inadequado.Chamber = domain.Chamber{ID: "cam-quente", MinTempC: 10, MaxTempC: 20}

	best, found := allocservice.ScoreSnapshots([]domain.SlotSnapshot{inadequado, adequado}, product, 250)

	assert.True(t, found)
	assert.Equal(t, "slot-adequado", best.Slot.ID)
	assert.Equal(t, 1.0, best.Environment)
}

func TestScoreSnapshots_IgnoraOcupadosESemCapacidade(t *testing.T) {
	product := domain.Product{ID: "prod-1"}

	ocupado := freeSlot("slot-ocupado", "cam-1", 1, "E", 1, 1, 500, 200)
	ocupado.OccupantProductID = "prod-2"
	pequeno := freeSlot("slot-pequeno", "cam-1", 1, "E", 2, 1, 100, 0)

	_, found := allocservice.ScoreSnapshots([]domain.SlotSnapshot{ocupado, pequeno}, product, 250)

	assert.False(t, found)
}

func TestFindOptimalSlot_SemSlotDisponivel(t *testing.T) {
	mockRepo := new(MockSlotRepository)
	mockLogger := logger.NewLogger("debug")
	svc := allocservice.NewService(mockRepo, mockLogger)

	mockRepo.On("FindSnapshots", mock.AnythingOfType("context.backgroundCtx")).
		Return([]domain.SlotSnapshot{}, nil)

	product := domain.Product{ID: "prod-1", Code: "MIL-001"}
	_, err := svc.FindOptimalSlot(context.Background(), product, 10, 25)

	assert.Error(t, err)
	assert.IsType(t, &apperror.NoSlotAvailableError{}, err)
	mockRepo.AssertExpectations(t)
}

func TestFindOptimalSlot_ValidaEntrada(t *testing.T) {
	mockRepo := new(MockSlotRepository)
	mockLogger := logger.NewLogger("debug")
	svc := allocservice.NewService(mockRepo, mockLogger)

	_, err := svc.FindOptimalSlot(context.Background(), domain.Product{}, 0, 25)
	assert.IsType(t, &apperror.ValidationError{}, err)

	_, err = svc.FindOptimalSlot(context.Background(), domain.Product{}, 10, 0)
	assert.IsType(t, &apperror.ValidationError{}, err)

	mockRepo.AssertNotCalled(t, "FindSnapshots", mock.Anything)
}

func TestFindOptimalSlot_ErroDeRepositorio(t *testing.T) {
	mockRepo := new(MockSlotRepository)
	mockLogger := logger.NewLogger("debug")
	svc := allocservice.NewService(mockRepo, mockLogger)

	repoErr := errors.New("falha de conexão com o DB")
	mockRepo.On("FindSnapshots", mock.AnythingOfType("context.backgroundCtx")).
		Return([]domain.SlotSnapshot{}, repoErr)

	_, err := svc.FindOptimalSlot(context.Background(), domain.Product{ID: "prod-1"}, 10, 25)

	assert.Error(t, err)
	assert.Equal(t, repoErr, err)
	mockRepo.AssertExpectations(t)
}
