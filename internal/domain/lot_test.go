package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"seedstock/internal/domain"
)

// TestCanTransition_TabelaCompleta verifica as transições permitidas e
// proibidas da máquina de estados do lote.
func TestCanTransition_TabelaCompleta(t *testing.T) {
	cases := []struct {
		name    string
		from    domain.LotState
		to      domain.LotState
		allowed bool
	}{
		{"cadastrado para aguardando locacao", domain.StateCadastrado, domain.StateAguardandoLocacao, true},
		{"cadastrado direto para locado", domain.StateCadastrado, domain.StateLocado, true},
		{"aguardando locacao para locado", domain.StateAguardandoLocacao, domain.StateLocado, true},
		{"locado para aguardando retirada", domain.StateLocado, domain.StateAguardandoRetirada, true},
		{"locado para retirado (saida parcial total)", domain.StateLocado, domain.StateRetirado, true},
		{"locado para removido", domain.StateLocado, domain.StateRemovido, true},
		{"aguardando retirada confirmada", domain.StateAguardandoRetirada, domain.StateRetirado, true},
		{"aguardando retirada cancelada volta a locado", domain.StateAguardandoRetirada, domain.StateLocado, true},

		{"aguardando locacao nao pode ser retirado", domain.StateAguardandoLocacao, domain.StateRetirado, false},
		{"aguardando locacao nao pode ser removido", domain.StateAguardandoLocacao, domain.StateRemovido, false},
		{"aguardando retirada nao pode ser removido", domain.StateAguardandoRetirada, domain.StateRemovido, false},
		{"retirado e terminal", domain.StateRetirado, domain.StateLocado, false},
		{"removido e terminal", domain.StateRemovido, domain.StateLocado, false},
		{"locado nao regride para aguardando locacao", domain.StateLocado, domain.StateAguardandoLocacao, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, domain.CanTransition(tc.from, tc.to))
		})
	}
}

func TestLotState_IsTerminal(t *testing.T) {
	assert.True(t, domain.StateRetirado.IsTerminal())
	assert.True(t, domain.StateRemovido.IsTerminal())
	assert.False(t, domain.StateLocado.IsTerminal())
	assert.False(t, domain.StateAguardandoRetirada.IsTerminal())
	assert.False(t, domain.StateAguardandoLocacao.IsTerminal())
}

func TestLotState_IsActive(t *testing.T) {
	// Apenas estados que ocupam slot fisicamente contam como ativos.
	assert.True(t, domain.StateLocado.IsActive())
	assert.True(t, domain.StateAguardandoRetirada.IsActive())
	assert.False(t, domain.StateAguardandoLocacao.IsActive())
	assert.False(t, domain.StateRetirado.IsActive())
	assert.False(t, domain.StateRemovido.IsActive())
}

func TestLot_RecomputeMass(t *testing.T) {
	lot := domain.Lot{Quantity: 40, UnitMassKg: 25.5}
	lot.RecomputeMass()
	assert.InDelta(t, 1020.0, lot.TotalMassKg, 1e-9)

	lot.Quantity = 0
	lot.RecomputeMass()
	assert.Zero(t, lot.TotalMassKg)
}

func TestLot_CanTransitionTo(t *testing.T) {
	lot := domain.Lot{State: domain.StateLocado}
	assert.True(t, lot.CanTransitionTo(domain.StateAguardandoRetirada))
	assert.False(t, lot.CanTransitionTo(domain.StateAguardandoLocacao))
}
