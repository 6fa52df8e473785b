package domain

import "time"

// LotState é um tipo string que representa o estado do lote no ciclo de vida.
type LotState string

// Estados do ciclo de vida do lote.
// CADASTRADO é transitório: a operação de entrada sempre termina em
// AGUARDANDO_LOCACAO (sem slot) ou LOCADO (com slot).
const (
	StateCadastrado         LotState = "CADASTRADO"
	StateAguardandoLocacao  LotState = "AGUARDANDO_LOCACAO"
	StateLocado             LotState = "LOCADO"
	StateAguardandoRetirada LotState = "AGUARDANDO_RETIRADA"
	StateRetirado           LotState = "RETIRADO"
	StateRemovido           LotState = "REMOVIDO"
)

// IsTerminal indica se o estado é final (lote imutável, mantido apenas para auditoria).
func (s LotState) IsTerminal() bool {
	return s == StateRetirado || s == StateRemovido
}

// IsActive indica se o lote ocupa fisicamente um slot neste estado.
// É a base do invariante "um slot, um lote ativo".
func (s LotState) IsActive() bool {
	return s == StateLocado || s == StateAguardandoRetirada
}

// transitions define a máquina de estados do lote. Auto-transições de LOCADO
// (mover, mover parcial, saída parcial, adicionar estoque) não mudam o estado
// e por isso não aparecem aqui.
var transitions = map[LotState][]LotState{
	StateCadastrado:         {StateAguardandoLocacao, StateLocado},
	StateAguardandoLocacao:  {StateLocado},
	StateLocado:             {StateAguardandoRetirada, StateRetirado, StateRemovido},
	StateAguardandoRetirada: {StateRetirado, StateLocado}, // cancelamento reverte para LOCADO
}

// CanTransition verifica se a transição from -> to é permitida pela máquina de estados.
func CanTransition(from, to LotState) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Lot representa um lote de sementes armazenado (ou aguardando armazenamento)
// em uma câmara fria. O campo Version implementa o controle de concorrência
// otimista (OCC): toda mutação deve informar a versão lida e incrementa-a.
type Lot struct {
	ID             string     `json:"id"`
	ProductID      string     `json:"product_id"`
	LotCode        string     `json:"lot_code"`
	Quantity       int        `json:"quantity"`
	UnitMassKg     float64    `json:"unit_mass_kg"`
	TotalMassKg    float64    `json:"total_mass_kg"` // sempre = Quantity * UnitMassKg, recalculado a cada mutação
	SlotID         *string    `json:"slot_id,omitempty"`
	State          LotState   `json:"state"`
	EntryDate      time.Time  `json:"entry_date"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	Notes          string     `json:"notes"`
	Version        int        `json:"version"`
	CreatedBy      string     `json:"created_by"`
	UpdatedBy      string     `json:"updated_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// RecomputeMass recalcula a massa total a partir da quantidade e massa unitária.
// Deve ser chamado após qualquer mutação de Quantity ou UnitMassKg.
func (l *Lot) RecomputeMass() {
	l.TotalMassKg = float64(l.Quantity) * l.UnitMassKg
}

// CanTransitionTo verifica a máquina de estados a partir do estado atual do lote.
func (l *Lot) CanTransitionTo(to LotState) bool {
	return CanTransition(l.State, to)
}

// IntakeRequest é o payload de entrada de um novo lote.
// SlotID é opcional: ausente, o Allocation Advisor tenta sugerir um slot;
// se nenhum couber, o lote entra como AGUARDANDO_LOCACAO.
type IntakeRequest struct {
	ProductID      string     `json:"product_id" validate:"required,uuid"`
	LotCode        string     `json:"lot_code" validate:"required"`
	Quantity       int        `json:"quantity" validate:"required,gt=0"`
	UnitMassKg     float64    `json:"unit_mass_kg" validate:"required,gt=0"`
	SlotID         *string    `json:"slot_id,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	Notes          string     `json:"notes"`
}

// MoveRequest é o payload para mover um lote inteiro para outro slot.
type MoveRequest struct {
	NewSlotID string `json:"new_slot_id" validate:"required,uuid"`
	Version   int    `json:"version"` // versão lida pelo chamador (OCC)
}

// PartialMoveRequest é o payload para mover parte da quantidade de um lote,
// criando um novo lote (fragmento) no slot de destino.
type PartialMoveRequest struct {
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	NewSlotID string `json:"new_slot_id" validate:"required,uuid"`
	Version   int    `json:"version"`
}

// PartialExitRequest é o payload de saída parcial de quantidade.
type PartialExitRequest struct {
	Quantity int    `json:"quantity" validate:"required,gt=0"`
	Reason   string `json:"reason"`
	Version  int    `json:"version"`
}

// AddStockRequest é o payload de adição de estoque a um lote LOCADO.
// UnitMassKg, quando informado, substitui a massa unitária do lote.
type AddStockRequest struct {
	Quantity   int      `json:"quantity" validate:"required,gt=0"`
	UnitMassKg *float64 `json:"unit_mass_kg,omitempty"`
	Version    int      `json:"version"`
}

// LotFilter define os parâmetros de busca e paginação de lotes.
type LotFilter struct {
	Page      int
	Limit     int
	ProductID string
	ChamberID string
	State     LotState
	LotCode   string
}
