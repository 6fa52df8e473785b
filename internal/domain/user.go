package domain

import "time"

// User representa a entidade do usuário (principal) no sistema.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // Oculta o hash da senha no JSON de resposta
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserRole é um tipo string para representar o papel do usuário no sistema.
type UserRole string

// Papéis de usuário. O fluxo de retirada em duas partes exige papéis
// distintos: o operador solicita, o conferente confirma ou cancela.
const (
	RoleAdmin     UserRole = "admin"
	RoleOperator  UserRole = "operator"  // solicitante: entrada, movimentação, pedido de retirada
	RoleConfirmer UserRole = "confirmer" // conferente: locação e confirmação de retirada
)

// Principal identifica o ator autenticado de uma operação, já resolvido pela
// camada de autenticação. O núcleo nunca re-deriva identidade: apenas aplica
// as pré-condições de papel.
type Principal struct {
	UserID string
	Role   UserRole
}

// CanOperateStock indica se o principal pode executar operações de estoque
// (entrada, movimentação, saída parcial, adição, remoção).
func (p Principal) CanOperateStock() bool {
	return p.Role == RoleOperator || p.Role == RoleAdmin
}

// CanRequestWithdrawal indica se o principal pode abrir solicitações de retirada.
func (p Principal) CanRequestWithdrawal() bool {
	return p.Role == RoleOperator || p.Role == RoleAdmin
}

// CanConfirmWithdrawal indica se o principal pode confirmar/cancelar retiradas
// e executar locação de slots.
func (p Principal) CanConfirmWithdrawal() bool {
	return p.Role == RoleConfirmer || p.Role == RoleAdmin
}

// UserRegistration representa o payload de entrada para o registro.
type UserRegistration struct {
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Password string   `json:"password"`
	Role     UserRole `json:"role"`
}

// UserRepository define o contrato de persistência para a entidade User.
type UserRepository interface {
	Save(ctx Context, user User) (User, error)
	FindByEmail(ctx Context, email string) (User, error)
}

// UserService define o contrato de lógica de negócio para a entidade User.
type UserService interface {
	Register(ctx Context, registration UserRegistration) (User, error)
	Login(ctx Context, email string, password string) (string, error)
}
