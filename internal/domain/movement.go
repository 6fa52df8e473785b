package domain

import "time"

// MovementKind é um tipo string que representa a natureza da movimentação.
type MovementKind string

// Tipos de movimentação do livro-razão.
const (
	MovementEntry      MovementKind = "ENTRADA"
	MovementExit       MovementKind = "SAIDA"
	MovementTransfer   MovementKind = "TRANSFERENCIA"
	MovementAdjustment MovementKind = "AJUSTE"
)

// Movement é um registro imutável do livro-razão de movimentações.
// Registros nunca são alterados ou removidos: apenas anexados e,
// opcionalmente, marcados como verificados por um passo de auditoria.
type Movement struct {
	ID            string       `json:"id"`
	LotID         string       `json:"lot_id"`
	Kind          MovementKind `json:"kind"`
	SourceSlotID  *string      `json:"source_slot_id,omitempty"`
	DestSlotID    *string      `json:"dest_slot_id,omitempty"`
	Quantity      int          `json:"quantity"`
	MassKg        float64      `json:"mass_kg"`
	PerformedBy   string       `json:"performed_by"`
	Reason        string       `json:"reason"`
	IsSystem      bool         `json:"is_system"` // gerado pelo motor de ciclo de vida vs. lançamento manual
	CorrelationID string       `json:"correlation_id,omitempty"`
	Verified      bool         `json:"verified"`
	VerifiedBy    *string      `json:"verified_by,omitempty"`
	VerifiedAt    *time.Time   `json:"verified_at,omitempty"`
	OccurredAt    time.Time    `json:"occurred_at"`
}

// SameOperation compara a tupla completa de supressão de duplicatas:
// (lote, tipo, quantidade, massa, responsável, slot de origem, slot de destino).
// Os DOIS slots fazem parte da tupla: omiti-los rejeitaria indevidamente
// movimentos rápidos e legítimos do mesmo lote para destinos diferentes.
func (m *Movement) SameOperation(other *Movement) bool {
	return m.LotID == other.LotID &&
		m.Kind == other.Kind &&
		m.Quantity == other.Quantity &&
		m.MassKg == other.MassKg &&
		m.PerformedBy == other.PerformedBy &&
		equalSlotRef(m.SourceSlotID, other.SourceSlotID) &&
		equalSlotRef(m.DestSlotID, other.DestSlotID)
}

// WithinWindow indica se a movimentação candidata caiu dentro da janela de
// supressão contada a partir de uma movimentação já registrada.
func (m *Movement) WithinWindow(existing *Movement, window time.Duration) bool {
	delta := m.OccurredAt.Sub(existing.OccurredAt)
	if delta < 0 {
		delta = -delta
	}
	return delta <= window
}

func equalSlotRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ManualMovementRequest é o payload de lançamento manual (retaguarda) de uma
// movimentação que não passou pelo motor de ciclo de vida. Passa pela mesma
// regra de supressão de duplicatas.
type ManualMovementRequest struct {
	LotID        string       `json:"lot_id" validate:"required,uuid"`
	Kind         MovementKind `json:"kind" validate:"required"`
	SourceSlotID *string      `json:"source_slot_id,omitempty"`
	DestSlotID   *string      `json:"dest_slot_id,omitempty"`
	Quantity     int          `json:"quantity" validate:"required,gt=0"`
	MassKg       float64      `json:"mass_kg" validate:"required,gt=0"`
	Reason       string       `json:"reason" validate:"required"`
}

// MovementFilter define os parâmetros de consulta do livro-razão
// (por lote, slot, responsável ou janela de tempo).
type MovementFilter struct {
	LotID       string
	SlotID      string
	PerformedBy string
	Kind        MovementKind
	From        *time.Time
	To          *time.Time
	Page        int
	Limit       int
}
