package allocservice

import (
	"context"
	"fmt"

	"seedstock/internal/domain"
	apperror "seedstock/internal/errors"
	"seedstock/internal/pkg/logger"
)

// Pesos da função de pontuação. O ajuste fino importa menos que a ordem:
// aproveitamento de capacidade pesa mais que vizinhança, que pesa mais que
// adequação ambiental.
const (
	weightTightness   = 0.5
	weightAdjacency   = 0.3
	weightEnvironment = 0.2
)

// SlotRepository define o contrato que o Advisor espera do registro de slots.
type SlotRepository interface {
	FindSnapshots(ctx context.Context) ([]domain.SlotSnapshot, error)
}

// Service é o Allocation Advisor: uma função de pontuação sem estado sobre
// snapshots do registro de slots. A sugestão é apenas um ponto de partida:
// a checagem de capacidade/ocupação é refeita dentro da transação de locação.
type Service struct {
	slots  SlotRepository
	logger logger.Logger
}

// NewService cria e retorna uma nova instância do Allocation Advisor.
func NewService(slots SlotRepository, logger logger.Logger) *Service {
	return &Service{slots: slots, logger: logger}
}

// FindOptimalSlot pontua cada slot livre que comporta a massa e retorna o
// melhor colocado. Retorna NoSlotAvailableError quando nenhum slot serve:
// o chamador de entrada deve rotear o lote para AGUARDANDO_LOCACAO, já que
// entrada sem locação é um estado de primeira classe, não um erro.
func (s *Service) FindOptimalSlot(ctx domain.Context, product domain.Product, quantity int, unitMassKg float64) (domain.AllocationSuggestion, error) {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
		s.logger.Warn("Contexto de domínio inválido, usando context.Background() para FindOptimalSlot", nil)
	}

	if quantity <= 0 || unitMassKg <= 0 {
		return domain.AllocationSuggestion{}, apperror.NewValidationError(
			"Quantidade e massa unitária devem ser positivas para sugerir um slot.")
	}
	massKg := float64(quantity) * unitMassKg

	snapshots, err := s.slots.FindSnapshots(ctxGo)
	if err != nil {
		s.logger.Error("Falha ao obter snapshots de slots para alocação.", err)
		return domain.AllocationSuggestion{}, err
	}

	best, found := ScoreSnapshots(snapshots, product, massKg)
	if !found {
		s.logger.Info("Nenhum slot livre comporta a massa solicitada.", map[string]interface{}{
			"product_id": product.ID, "mass_kg": massKg,
		})
		return domain.AllocationSuggestion{}, apperror.NewNoSlotAvailableError(fmt.Sprintf(
			"Nenhum slot livre comporta %.2f kg do produto %s.", massKg, product.Code))
	}

	s.logger.Debug("Slot ótimo sugerido.", map[string]interface{}{
		"slot_code": best.Slot.Code, "score": best.Score,
	})
	return best, nil
}

// ScoreSnapshots aplica a função de pontuação a um conjunto de snapshots.
// Exportada separadamente por ser pura: não toca repositório nem contexto.
func ScoreSnapshots(snapshots []domain.SlotSnapshot, product domain.Product, massKg float64) (domain.AllocationSuggestion, bool) {
	var best domain.AllocationSuggestion
	found := false

	for _, snap := range snapshots {
		// Candidatos: slots livres (sem lote ativo) que comportam a massa.
		if snap.OccupantProductID != "" || snap.Slot.Occupied() {
			continue
		}
		if !snap.Slot.CanAccept(massKg) {
			continue
		}

		suggestion := domain.AllocationSuggestion{
			Slot:        snap.Slot,
			Tightness:   tightness(snap.Slot, massKg),
			Adjacency:   adjacency(snapshots, snap, product.ID),
			Environment: environment(snap.Chamber, product),
		}
		suggestion.Score = weightTightness*suggestion.Tightness +
			weightAdjacency*suggestion.Adjacency +
			weightEnvironment*suggestion.Environment

		if !found || suggestion.Score > best.Score {
			best = suggestion
			found = true
		}
	}
	return best, found
}

// tightness mede o aproveitamento da capacidade livre: quanto mais justo o
// encaixe, maior a nota, favorecendo o menor slot que ainda comporta a massa
// e reduzindo a fragmentação das câmaras.
func tightness(slot domain.Slot, massKg float64) float64 {
	free := slot.FreeCapacityKg()
	if free <= 0 {
		return 0
	}
	return massKg / free
}

// adjacency conta vizinhos imediatos (mesma câmara, bloco e lado; fileira ou
// andar adjacente) ocupados pelo mesmo produto, normalizado para [0, 1].
func adjacency(snapshots []domain.SlotSnapshot, candidate domain.SlotSnapshot, productID string) float64 {
	const maxNeighbors = 4.0

	neighbors := 0.0
	for _, other := range snapshots {
		if other.Slot.ID == candidate.Slot.ID || other.OccupantProductID != productID || productID == "" {
			continue
		}
		if other.Slot.ChamberID != candidate.Slot.ChamberID ||
			other.Slot.Block != candidate.Slot.Block ||
			other.Slot.Side != candidate.Slot.Side {
			continue
		}
		rowDelta := abs(other.Slot.Row - candidate.Slot.Row)
		levelDelta := abs(other.Slot.Level - candidate.Slot.Level)
		if rowDelta+levelDelta == 1 {
			neighbors++
		}
	}
	if neighbors > maxNeighbors {
		neighbors = maxNeighbors
	}
	return neighbors / maxNeighbors
}

// environment vale 1 quando a faixa de temperatura da câmara está contida na
// faixa ideal do produto, 0 caso contrário.
func environment(chamber domain.Chamber, product domain.Product) float64 {
	if product.SuitableFor(&chamber) {
		return 1
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
