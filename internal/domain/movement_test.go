package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"seedstock/internal/domain"
)

func strPtr(s string) *string { return &s }

// TestMovement_SameOperation_TuplaCompleta garante que a comparação usa a
// tupla completa, incluindo os dois slots: dois movimentos rápidos do mesmo
// lote para destinos diferentes NÃO são duplicatas.
func TestMovement_SameOperation_TuplaCompleta(t *testing.T) {
	base := domain.Movement{
		LotID:        "lot-1",
		Kind:         domain.MovementTransfer,
		SourceSlotID: strPtr("slot-a"),
		DestSlotID:   strPtr("slot-b"),
		Quantity:     10,
		MassKg:       250,
		PerformedBy:  "user-1",
	}

	identical := base
	assert.True(t, base.SameOperation(&identical))

	destinoDiferente := base
	destinoDiferente.DestSlotID = strPtr("slot-c")
	assert.False(t, base.SameOperation(&destinoDiferente))

	origemDiferente := base
	origemDiferente.SourceSlotID = strPtr("slot-x")
	assert.False(t, base.SameOperation(&origemDiferente))

	outroResponsavel := base
	outroResponsavel.PerformedBy = "user-2"
	assert.False(t, base.SameOperation(&outroResponsavel))

	outraQuantidade := base
	outraQuantidade.Quantity = 11
	assert.False(t, base.SameOperation(&outraQuantidade))

	outroTipo := base
	outroTipo.Kind = domain.MovementExit
	assert.False(t, base.SameOperation(&outroTipo))
}

func TestMovement_SameOperation_SlotsNulos(t *testing.T) {
	entrada := domain.Movement{
		LotID:       "lot-1",
		Kind:        domain.MovementEntry,
		DestSlotID:  strPtr("slot-a"),
		Quantity:    5,
		MassKg:      100,
		PerformedBy: "user-1",
	}

	semDestino := entrada
	semDestino.DestSlotID = nil
	assert.False(t, entrada.SameOperation(&semDestino))

	ambosNulos := entrada
	ambosNulos.DestSlotID = nil
	outro := ambosNulos
	assert.True(t, ambosNulos.SameOperation(&outro))
}

func TestMovement_WithinWindow(t *testing.T) {
	now := time.Now()
	existing := domain.Movement{OccurredAt: now}

	dentro := domain.Movement{OccurredAt: now.Add(90 * time.Second)}
	assert.True(t, dentro.WithinWindow(&existing, 120*time.Second))

	fora := domain.Movement{OccurredAt: now.Add(121 * time.Second)}
	assert.False(t, fora.WithinWindow(&existing, 120*time.Second))

	// A janela é simétrica: vale para candidatos com relógio atrasado.
	antes := domain.Movement{OccurredAt: now.Add(-60 * time.Second)}
	assert.True(t, antes.WithinWindow(&existing, 120*time.Second))
}
