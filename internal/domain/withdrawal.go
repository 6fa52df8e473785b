package domain

import "time"

// WithdrawalStatus é um tipo string que representa o estado da solicitação de retirada.
type WithdrawalStatus string

// Estados da solicitação de retirada.
const (
	WithdrawalPending   WithdrawalStatus = "PENDENTE"
	WithdrawalConfirmed WithdrawalStatus = "CONFIRMADO"
	WithdrawalCanceled  WithdrawalStatus = "CANCELADO"
)

// WithdrawalKind é um tipo string que representa o tipo de retirada.
type WithdrawalKind string

// Tipos de retirada.
const (
	WithdrawalTotal   WithdrawalKind = "TOTAL"
	WithdrawalPartial WithdrawalKind = "PARCIAL"
)

// WithdrawalRequest é o registro de aprovação em duas partes sobreposto à
// máquina de estados do lote: um solicitante abre o pedido (lote vai para
// AGUARDANDO_RETIRADA) e um conferente distinto confirma ou cancela.
// No máximo uma solicitação PENDENTE por lote.
type WithdrawalRequest struct {
	ID          string           `json:"id"`
	LotID       string           `json:"lot_id"`
	RequestedBy string           `json:"requested_by"`
	ConfirmedBy *string          `json:"confirmed_by,omitempty"`
	Status      WithdrawalStatus `json:"status"`
	Kind        WithdrawalKind   `json:"kind"`
	Quantity    *int             `json:"quantity,omitempty"` // obrigatório quando Kind == PARCIAL
	Reason      string           `json:"reason"`
	Notes       string           `json:"notes"`
	RequestedAt time.Time        `json:"requested_at"`
	ResolvedAt  *time.Time       `json:"resolved_at,omitempty"`
}

// CreateWithdrawalRequest é o payload de abertura de solicitação de retirada.
type CreateWithdrawalRequest struct {
	LotID    string         `json:"lot_id" validate:"required,uuid"`
	Kind     WithdrawalKind `json:"kind" validate:"required"`
	Quantity *int           `json:"quantity,omitempty"`
	Reason   string         `json:"reason" validate:"required"`
	Version  int            `json:"version"`
}

// ResolveWithdrawalRequest é o payload de confirmação ou cancelamento.
type ResolveWithdrawalRequest struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

// WithdrawalFilter define os parâmetros de consulta de solicitações.
type WithdrawalFilter struct {
	LotID  string
	Status WithdrawalStatus
	Page   int
	Limit  int
}
