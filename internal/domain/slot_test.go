package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"seedstock/internal/domain"
)

func TestBuildSlotCode(t *testing.T) {
	assert.Equal(t, "Q1-LE-F2-A3", domain.BuildSlotCode(1, "E", 2, 3))
	assert.Equal(t, "Q4-LD-F10-A1", domain.BuildSlotCode(4, "D", 10, 1))
}

func TestSlot_CanAccept(t *testing.T) {
	slot := domain.Slot{MaxCapacityKg: 500, CurrentLoadKg: 350}

	assert.True(t, slot.CanAccept(150))  // encaixe exato no limite
	assert.True(t, slot.CanAccept(100))
	assert.False(t, slot.CanAccept(150.01))
}

func TestSlot_FreeCapacityKg(t *testing.T) {
	slot := domain.Slot{MaxCapacityKg: 500, CurrentLoadKg: 120.5}
	assert.InDelta(t, 379.5, slot.FreeCapacityKg(), 1e-9)
}

func TestSlot_Occupied(t *testing.T) {
	assert.False(t, (&domain.Slot{CurrentLoadKg: 0}).Occupied())
	assert.True(t, (&domain.Slot{CurrentLoadKg: 0.5}).Occupied())
}

func TestProduct_SuitableFor(t *testing.T) {
	product := domain.Product{IdealMinTempC: -5, IdealMaxTempC: 10}

	dentro := domain.Chamber{MinTempC: 0, MaxTempC: 8}
	assert.True(t, product.SuitableFor(&dentro))

	muitoFria := domain.Chamber{MinTempC: -20, MaxTempC: 5}
	assert.False(t, product.SuitableFor(&muitoFria))

	muitoQuente := domain.Chamber{MinTempC: 2, MaxTempC: 15}
	assert.False(t, product.SuitableFor(&muitoQuente))
}
