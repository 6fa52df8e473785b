package domain

import (
	"fmt"
	"time"
)

// Chamber representa uma câmara fria que contém slots de armazenamento.
// As câmaras (e seus slots) são provisionadas externamente; o núcleo apenas
// lê seus atributos e atualiza a carga dos slots.
type Chamber struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MinTempC     float64   `json:"min_temp_c"`
	MaxTempC     float64   `json:"max_temp_c"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Slot representa uma posição física de armazenamento dentro de uma câmara.
// A tupla de coordenadas (Block, Side, Row, Level) é única dentro da câmara
// e origina o código legível (e.g. "Q1-LE-F2-A3").
type Slot struct {
	ID              string    `json:"id"`
	ChamberID       string    `json:"chamber_id"`
	Block           int       `json:"block"`
	Side            string    `json:"side"` // "E" (esquerdo) ou "D" (direito)
	Row             int       `json:"row"`
	Level           int       `json:"level"`
	Code            string    `json:"code"`
	MaxCapacityKg   float64   `json:"max_capacity_kg"`
	CurrentLoadKg   float64   `json:"current_load_kg"`
	IsActive        bool      `json:"is_active"` // desativação lógica; nunca deletado com histórico
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BuildSlotCode deriva o código legível do slot a partir da tupla de coordenadas.
func BuildSlotCode(block int, side string, row, level int) string {
	return fmt.Sprintf("Q%d-L%s-F%d-A%d", block, side, row, level)
}

// Occupied indica se o slot possui carga (flag derivada, nunca persistida).
func (s *Slot) Occupied() bool {
	return s.CurrentLoadKg > 0
}

// CanAccept verifica se o slot comporta a massa adicional sem estourar a
// capacidade máxima. Toda operação que toca slot deve refazer esta checagem
// dentro da mesma transação que atualiza a carga.
func (s *Slot) CanAccept(extraMassKg float64) bool {
	return s.CurrentLoadKg+extraMassKg <= s.MaxCapacityKg
}

// FreeCapacityKg retorna a capacidade livre restante do slot.
func (s *Slot) FreeCapacityKg() float64 {
	return s.MaxCapacityKg - s.CurrentLoadKg
}

// SlotSnapshot é a visão imutável de um slot usada pelo Allocation Advisor.
// OccupantProductID identifica o produto do lote ativo no slot (vazio se livre).
type SlotSnapshot struct {
	Slot              Slot
	Chamber           Chamber
	OccupantProductID string
}

// AllocationSuggestion é o relatório do Allocation Advisor: o slot vencedor
// e a decomposição da pontuação que o elegeu.
type AllocationSuggestion struct {
	Slot        Slot    `json:"slot"`
	Score       float64 `json:"score"`
	Tightness   float64 `json:"tightness"`   // aproveitamento da capacidade livre (reduz fragmentação)
	Adjacency   float64 `json:"adjacency"`   // vizinhança de slots com o mesmo produto
	Environment float64 `json:"environment"` // adequação da câmara à faixa ideal do produto
}

// ChamberLoadSummary agrega a ocupação de uma câmara (consulta de leitura,
// consumida pela camada de relatórios externa).
type ChamberLoadSummary struct {
	ChamberID     string  `json:"chamber_id"`
	ChamberName   string  `json:"chamber_name"`
	TotalSlots    int     `json:"total_slots"`
	OccupiedSlots int     `json:"occupied_slots"`
	TotalLoadKg   float64 `json:"total_load_kg"`
	CapacityKg    float64 `json:"capacity_kg"`
}

// SlotFilter define os parâmetros de busca de slots.
type SlotFilter struct {
	ChamberID  string
	OnlyFree   bool
	OnlyActive bool
	Page       int
	Limit      int
}
