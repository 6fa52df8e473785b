package errors

import (
	"fmt"
	"net/http"
)

// AppError é a interface central para todos os erros customizados do SeedStock.
// Ela permite que o código externo (Handler) acesse a Categoria e a Mensagem do erro.
type AppError interface {
	Error() string    // Implementa a interface error padrão do Go
	Category() string // Categoria do erro (e.g., "VALIDATION_ERROR", "STALE_VERSION")
	HTTPStatus() int  // Código HTTP sugerido para o Handler
	Unwrap() error    // Permite encapsular erros subjacentes (original error)
}

// --- Tipos de Erro Específicos (Erros de Domínio) ---

// ValidationError representa falhas de validação de dados de entrada
// (quantidades não positivas, referências desconhecidas, payload malformado).
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string    { return fmt.Sprintf("Erro de Validação: %s", e.Msg) }
func (e *ValidationError) Category() string { return "VALIDATION_ERROR" }
func (e *ValidationError) HTTPStatus() int  { return http.StatusBadRequest } // 400
func (e *ValidationError) Unwrap() error    { return nil }

// NewValidationError cria um novo erro de validação.
func NewValidationError(msg string) AppError {
	return &ValidationError{Msg: msg}
}

// NotFoundError representa a ausência de um recurso solicitado.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string    { return fmt.Sprintf("Recurso não encontrado: %s", e.Msg) }
func (e *NotFoundError) Category() string { return "NOT_FOUND" }
func (e *NotFoundError) HTTPStatus() int  { return http.StatusNotFound } // 404
func (e *NotFoundError) Unwrap() error    { return nil }

// NewNotFoundError cria um novo erro de recurso não encontrado.
func NewNotFoundError(msg string) AppError {
	return &NotFoundError{Msg: msg}
}

// InvalidTransitionError representa uma operação ilegal a partir do estado
// atual do lote ou da solicitação de retirada.
type InvalidTransitionError struct {
	Msg string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("Transição inválida: %s", e.Msg)
}
func (e *InvalidTransitionError) Category() string { return "INVALID_TRANSITION" }
func (e *InvalidTransitionError) HTTPStatus() int  { return http.StatusUnprocessableEntity } // 422
func (e *InvalidTransitionError) Unwrap() error    { return nil }

// NewInvalidTransitionError cria um novo erro de transição de estado.
func NewInvalidTransitionError(msg string) AppError {
	return &InvalidTransitionError{Msg: msg}
}

// CapacityExceededError indica que o slot de destino não comporta a massa adicional.
type CapacityExceededError struct {
	Msg string
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("Capacidade excedida: %s", e.Msg)
}
func (e *CapacityExceededError) Category() string { return "CAPACITY_EXCEEDED" }
func (e *CapacityExceededError) HTTPStatus() int  { return http.StatusConflict } // 409
func (e *CapacityExceededError) Unwrap() error    { return nil }

// NewCapacityExceededError cria um novo erro de capacidade.
func NewCapacityExceededError(msg string) AppError {
	return &CapacityExceededError{Msg: msg}
}

// SlotOccupiedError indica que o slot de destino já está vinculado a outro lote ativo.
type SlotOccupiedError struct {
	Msg string
}

func (e *SlotOccupiedError) Error() string    { return fmt.Sprintf("Slot ocupado: %s", e.Msg) }
func (e *SlotOccupiedError) Category() string { return "SLOT_OCCUPIED" }
func (e *SlotOccupiedError) HTTPStatus() int  { return http.StatusConflict } // 409
func (e *SlotOccupiedError) Unwrap() error    { return nil }

// NewSlotOccupiedError cria um novo erro de slot ocupado.
func NewSlotOccupiedError(msg string) AppError {
	return &SlotOccupiedError{Msg: msg}
}

// InsufficientQuantityError indica quantidade insuficiente para a saída ou
// movimentação parcial solicitada.
type InsufficientQuantityError struct {
	Msg string
}

func (e *InsufficientQuantityError) Error() string {
	return fmt.Sprintf("Quantidade insuficiente: %s", e.Msg)
}
func (e *InsufficientQuantityError) Category() string { return "INSUFFICIENT_QUANTITY" }
func (e *InsufficientQuantityError) HTTPStatus() int  { return http.StatusUnprocessableEntity } // 422
func (e *InsufficientQuantityError) Unwrap() error    { return nil }

// NewInsufficientQuantityError cria um novo erro de quantidade insuficiente.
func NewInsufficientQuantityError(msg string) AppError {
	return &InsufficientQuantityError{Msg: msg}
}

// DuplicateRequestError indica que já existe uma solicitação de retirada
// PENDENTE para o lote.
type DuplicateRequestError struct {
	Msg string
}

func (e *DuplicateRequestError) Error() string {
	return fmt.Sprintf("Solicitação duplicada: %s", e.Msg)
}
func (e *DuplicateRequestError) Category() string { return "DUPLICATE_REQUEST" }
func (e *DuplicateRequestError) HTTPStatus() int  { return http.StatusConflict } // 409
func (e *DuplicateRequestError) Unwrap() error    { return nil }

// NewDuplicateRequestError cria um novo erro de solicitação duplicada.
func NewDuplicateRequestError(msg string) AppError {
	return &DuplicateRequestError{Msg: msg}
}

// DuplicateMovementError indica que uma movimentação idêntica (tupla completa,
// incluindo ambos os slots) já foi registrada dentro da janela de supressão.
type DuplicateMovementError struct {
	Msg string
}

func (e *DuplicateMovementError) Error() string {
	return fmt.Sprintf("Movimentação duplicada: %s", e.Msg)
}
func (e *DuplicateMovementError) Category() string { return "DUPLICATE_MOVEMENT" }
func (e *DuplicateMovementError) HTTPStatus() int  { return http.StatusConflict } // 409
func (e *DuplicateMovementError) Unwrap() error    { return nil }

// NewDuplicateMovementError cria um novo erro de movimentação duplicada.
func NewDuplicateMovementError(msg string) AppError {
	return &DuplicateMovementError{Msg: msg}
}

// StaleVersionError representa um conflito de concorrência otimista (OCC):
// a versão informada pelo chamador não corresponde mais à versão persistida.
type StaleVersionError struct {
	Msg string
}

func (e *StaleVersionError) Error() string    { return fmt.Sprintf("Versão desatualizada: %s", e.Msg) }
func (e *StaleVersionError) Category() string { return "STALE_VERSION" }
func (e *StaleVersionError) HTTPStatus() int  { return http.StatusConflict } // 409
func (e *StaleVersionError) Unwrap() error    { return nil }

// NewStaleVersionError cria um novo erro de concorrência otimista.
func NewStaleVersionError(msg string) AppError {
	return &StaleVersionError{Msg: msg}
}

// NoSlotAvailableError indica que o Allocation Advisor não encontrou slot
// livre que comporte a massa. O chamador de entrada deve rotear o lote para
// AGUARDANDO_LOCACAO em vez de falhar.
type NoSlotAvailableError struct {
	Msg string
}

func (e *NoSlotAvailableError) Error() string {
	return fmt.Sprintf("Nenhum slot disponível: %s", e.Msg)
}
func (e *NoSlotAvailableError) Category() string { return "NO_SLOT_AVAILABLE" }
func (e *NoSlotAvailableError) HTTPStatus() int  { return http.StatusConflict } // 409
func (e *NoSlotAvailableError) Unwrap() error    { return nil }

// NewNoSlotAvailableError cria um novo erro de alocação sem slot disponível.
func NewNoSlotAvailableError(msg string) AppError {
	return &NoSlotAvailableError{Msg: msg}
}

// UnauthorizedError representa falha de autenticação ou de permissão de papel.
type UnauthorizedError struct {
	Msg string
}

func (e *UnauthorizedError) Error() string    { return fmt.Sprintf("Não autorizado: %s", e.Msg) }
func (e *UnauthorizedError) Category() string { return "UNAUTHORIZED" }
func (e *UnauthorizedError) HTTPStatus() int  { return http.StatusUnauthorized } // 401
func (e *UnauthorizedError) Unwrap() error    { return nil }

// NewUnauthorizedError cria um novo erro de autorização.
func NewUnauthorizedError(msg string) AppError {
	return &UnauthorizedError{Msg: msg}
}

// ConflictError representa um conflito genérico na regra de negócio
// (e.g., recurso duplicado no catálogo).
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string    { return fmt.Sprintf("Conflito de estado: %s", e.Msg) }
func (e *ConflictError) Category() string { return "CONFLICT" }
func (e *ConflictError) HTTPStatus() int  { return http.StatusConflict } // 409
func (e *ConflictError) Unwrap() error    { return nil }

// NewConflictError cria um novo erro de conflito.
func NewConflictError(msg string) AppError {
	return &ConflictError{Msg: msg}
}

// --- Tipos de Erro de Infraestrutura (Encapsulamento) ---

// InternalError representa falhas inesperadas no servidor, serviço ou repositório.
type InternalError struct {
	Msg string
	Err error // Erro original subjacente (e.g., erro do driver SQL)
}

func (e *InternalError) Error() string    { return fmt.Sprintf("Erro Interno: %s", e.Msg) }
func (e *InternalError) Category() string { return "INTERNAL_ERROR" }
func (e *InternalError) HTTPStatus() int  { return http.StatusInternalServerError } // 500
func (e *InternalError) Unwrap() error    { return e.Err }

// NewInternalError cria um erro de servidor (para falhas de lógica ou código não esperado).
func NewInternalError(msg string, err error) AppError {
	return &InternalError{Msg: msg, Err: err}
}

// NewDBError é um atalho para criar um InternalError específico de falhas no DB.
func NewDBError(msg string, err error) AppError {
	return NewInternalError(fmt.Sprintf("%s (DB): %s", msg, err.Error()), err)
}

// --- Helper para o Handler (Tradução Final) ---

// MapToHTTPStatus recebe um erro e o traduz para o código HTTP e corpo de resposta.
func MapToHTTPStatus(err error) (int, string, string) {
	if appErr, ok := err.(AppError); ok {
		// O erro é tipado (ValidationError, StaleVersionError, etc.)
		return appErr.HTTPStatus(), appErr.Category(), appErr.Error()
	}

	// Erro não tipado (e.g., erro simples de pacote Go que não implementa AppError)
	// Tratar como erro interno genérico.
	return http.StatusInternalServerError, "UNKNOWN_ERROR", "Ocorreu um erro inesperado."
}
