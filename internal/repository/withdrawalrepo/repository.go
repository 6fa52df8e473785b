package withdrawalrepo

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"seedstock/internal/domain"
	"seedstock/internal/errors"
	"seedstock/internal/pkg/logger"
)

// MovementAppender define o contrato de anexação ao livro-razão dentro da
// transação do fluxo de retirada.
type MovementAppender interface {
	AppendTx(ctx context.Context, tx *sql.Tx, mv domain.Movement) (domain.Movement, error)
}

// WithdrawalRepository implementa o protocolo de retirada em duas partes.
// Cada resolução (confirmação ou cancelamento) espelha a transição de estado
// do lote na mesma transação.
type WithdrawalRepository struct {
	DB        *sql.DB
	DBTimeout time.Duration
	movements MovementAppender
	logger    logger.Logger
}

// NewWithdrawalRepository cria e retorna uma nova instância do Repositório de Retiradas.
func NewWithdrawalRepository(db *sql.DB, dbTimeout time.Duration, movements MovementAppender, logger logger.Logger) *WithdrawalRepository {
	return &WithdrawalRepository{
		DB:        db,
		DBTimeout: dbTimeout,
		movements: movements,
		logger:    logger,
	}
}

const withdrawalColumns = `id, lot_id, requested_by, confirmed_by, status, kind, quantity,
        reason, notes, requested_at, resolved_at`

const lotColumns = `id, product_id, lot_code, quantity, unit_mass_kg, total_mass_kg, slot_id,
        state, entry_date, expiration_date, notes, version, created_by, updated_by, created_at, updated_at`

// Request abre uma solicitação de retirada para um lote LOCADO sem pedido
// pendente, transicionando o lote para AGUARDANDO_RETIRADA. Nenhuma
// movimentação é gerada (nenhuma transferência física ocorreu ainda).
func (r *WithdrawalRepository) Request(ctx context.Context, req domain.CreateWithdrawalRequest, principal domain.Principal) (domain.WithdrawalRequest, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return domain.WithdrawalRequest{}, errors.NewDBError("Falha ao iniciar transação", err)
	}
	defer tx.Rollback()

	lot, err := lockLot(ctxTimeout, tx, req.LotID)
	if err != nil {
		return domain.WithdrawalRequest{}, err
	}
	if lot.Version != req.Version {
		return domain.WithdrawalRequest{}, errors.NewStaleVersionError(fmt.Sprintf(
			"O lote %s está na versão %d, mas a operação foi baseada na versão %d.",
			lot.ID, lot.Version, req.Version))
	}
	if lot.State != domain.StateLocado {
		return domain.WithdrawalRequest{}, errors.NewInvalidTransitionError(fmt.Sprintf(
			"Retirada só pode ser solicitada para lotes LOCADO; lote %s está %s.", lot.ID, lot.State))
	}

	var pending int
	queryPending := `SELECT COUNT(*) FROM withdrawal_requests WHERE lot_id = $1 AND status = 'PENDENTE'`
	if err := tx.QueryRowContext(ctxTimeout, queryPending, lot.ID).Scan(&pending); err != nil {
		return domain.WithdrawalRequest{}, errors.NewDBError("Falha ao verificar solicitações pendentes", err)
	}
	if pending > 0 {
		return domain.WithdrawalRequest{}, errors.NewDuplicateRequestError(fmt.Sprintf(
			"Já existe uma solicitação de retirada pendente para o lote %s.", lot.ID))
	}

	if req.Kind == domain.WithdrawalPartial {
		if req.Quantity == nil || *req.Quantity <= 0 {
			return domain.WithdrawalRequest{}, errors.NewValidationError(
				"Retirada parcial exige uma quantidade positiva.")
		}
		if *req.Quantity > lot.Quantity {
			return domain.WithdrawalRequest{}, errors.NewInsufficientQuantityError(fmt.Sprintf(
				"Quantidade solicitada %d excede a quantidade atual %d do lote.", *req.Quantity, lot.Quantity))
		}
	}

	now := time.Now().UTC()
	request := domain.WithdrawalRequest{
		ID:          uuid.New().String(),
		LotID:       lot.ID,
		RequestedBy: principal.UserID,
		Status:      domain.WithdrawalPending,
		Kind:        req.Kind,
		Quantity:    req.Quantity,
		Reason:      req.Reason,
		RequestedAt: now,
	}

	queryInsert := `
        INSERT INTO withdrawal_requests (id, lot_id, requested_by, status, kind, quantity, reason, notes, requested_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, '', $8)`

	_, err = tx.ExecContext(ctxTimeout, queryInsert,
		request.ID, request.LotID, request.RequestedBy, request.Status, request.Kind,
		request.Quantity, request.Reason, request.RequestedAt,
	)
	if err != nil {
		r.logger.Error("Falha ao inserir solicitação de retirada.", err)
		return domain.WithdrawalRequest{}, errors.NewDBError("Falha ao criar solicitação de retirada", err)
	}

	if err := updateLotState(ctxTimeout, tx, lot, domain.StateAguardandoRetirada, lot.SlotID, principal.UserID); err != nil {
		return domain.WithdrawalRequest{}, err
	}

	if commitErr := tx.Commit(); commitErr != nil {
		r.logger.Error("Falha ao commitar transação de solicitação de retirada.", commitErr)
		return domain.WithdrawalRequest{}, errors.NewDBError("Falha ao commitar transação", commitErr)
	}

	r.logger.Info("Solicitação de retirada aberta.", map[string]interface{}{
		"request_id": request.ID, "lot_id": lot.ID, "kind": request.Kind,
	})
	return request, nil
}

// Confirm resolve uma solicitação PENDENTE aplicando o tipo de retirada:
// TOTAL libera o slot e encerra o lote como RETIRADO; PARCIAL reduz a
// quantidade (lote volta a LOCADO se sobrar, senão RETIRADO). Em ambos os
// casos, exatamente uma movimentação de SAIDA é anexada na mesma transação.
func (r *WithdrawalRepository) Confirm(ctx context.Context, requestID, notes string, principal domain.Principal) (domain.WithdrawalRequest, domain.Lot, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return domain.WithdrawalRequest{}, domain.Lot{}, errors.NewDBError("Falha ao iniciar transação", err)
	}
	defer tx.Rollback()

	request, err := lockRequest(ctxTimeout, tx, requestID)
	if err != nil {
		return domain.WithdrawalRequest{}, domain.Lot{}, err
	}
	if request.Status != domain.WithdrawalPending {
		return domain.WithdrawalRequest{}, domain.Lot{}, errors.NewInvalidTransitionError(fmt.Sprintf(
			"Solicitação %s já foi resolvida (%s).", request.ID, request.Status))
	}
	if request.RequestedBy == principal.UserID {
		return domain.WithdrawalRequest{}, domain.Lot{}, errors.NewUnauthorizedError(
			"O conferente da retirada deve ser diferente do solicitante.")
	}

	lot, err := lockLot(ctxTimeout, tx, request.LotID)
	if err != nil {
		return domain.WithdrawalRequest{}, domain.Lot{}, err
	}
	if lot.State != domain.StateAguardandoRetirada || lot.SlotID == nil {
		return domain.WithdrawalRequest{}, domain.Lot{}, errors.NewInvalidTransitionError(fmt.Sprintf(
			"Lote %s não está AGUARDANDO_RETIRADA (estado atual: %s).", lot.ID, lot.State))
	}

	slotID := *lot.SlotID
	if _, err := lockSlot(ctxTimeout, tx, slotID); err != nil {
		return domain.WithdrawalRequest{}, domain.Lot{}, err
	}

	var exitQuantity int
	var exitMass float64

	switch request.Kind {
	case domain.WithdrawalTotal:
		exitQuantity = lot.Quantity
		exitMass = lot.TotalMassKg
		if err := applySlotLoad(ctxTimeout, tx, slotID, -exitMass); err != nil {
			return domain.WithdrawalRequest{}, domain.Lot{}, err
		}
		lot.Quantity = 0
		lot.RecomputeMass()
		lot.SlotID = nil
		lot.State = domain.StateRetirado

	case domain.WithdrawalPartial:
		if request.Quantity == nil {
			return domain.WithdrawalRequest{}, domain.Lot{}, errors.NewValidationError(
				"Solicitação parcial sem quantidade registrada.")
		}
		exitQuantity = *request.Quantity
		if exitQuantity > lot.Quantity {
			return domain.WithdrawalRequest{}, domain.Lot{}, errors.NewInsufficientQuantityError(fmt.Sprintf(
				"Quantidade solicitada %d excede a quantidade atual %d do lote.", exitQuantity, lot.Quantity))
		}
		exitMass = float64(exitQuantity) * lot.UnitMassKg
		if err := applySlotLoad(ctxTimeout, tx, slotID, -exitMass); err != nil {
			return domain.WithdrawalRequest{}, domain.Lot{}, err
		}
		lot.Quantity -= exitQuantity
		lot.RecomputeMass()
		if lot.Quantity > 0 {
			lot.State = domain.StateLocado // permanece armazenado com massa reduzida
		} else {
			lot.SlotID = nil
			lot.State = domain.StateRetirado
		}

	default:
		return domain.WithdrawalRequest{}, domain.Lot{}, errors.NewValidationError(fmt.Sprintf(
			"Tipo de retirada desconhecido: %s.", request.Kind))
	}

	if err := updateLotState(ctxTimeout, tx, lot, lot.State, lot.SlotID, principal.UserID); err != nil {
		return domain.WithdrawalRequest{}, domain.Lot{}, err
	}

	now := time.Now().UTC()
	queryResolve := `
        UPDATE withdrawal_requests
        SET status = 'CONFIRMADO', confirmed_by = $1, notes = $2, resolved_at = $3
        WHERE id = $4 AND status = 'PENDENTE'`

	result, err := tx.ExecContext(ctxTimeout, queryResolve, principal.UserID, notes, now, request.ID)
	if err != nil {
		return domain.WithdrawalRequest{}, domain.Lot{}, errors.NewDBError("Falha ao confirmar solicitação", err)
	}
	if affected, raErr := result.RowsAffected(); raErr != nil || affected == 0 {
		return domain.WithdrawalRequest{}, domain.Lot{}, errors.NewDBError(
			"Falha ao confirmar solicitação", fmt.Errorf("nenhuma linha afetada"))
	}

	if _, mvErr := r.movements.AppendTx(ctxTimeout, tx, domain.Movement{
		LotID:         lot.ID,
		Kind:          domain.MovementExit,
		SourceSlotID:  &slotID,
		Quantity:      exitQuantity,
		MassKg:        exitMass,
		PerformedBy:   principal.UserID,
		Reason:        fmt.Sprintf("Retirada confirmada (%s): %s", request.Kind, request.Reason),
		IsSystem:      true,
		CorrelationID: request.ID,
	}); mvErr != nil {
		return domain.WithdrawalRequest{}, domain.Lot{}, mvErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		r.logger.Error("Falha ao commitar transação de confirmação de retirada.", commitErr)
		return domain.WithdrawalRequest{}, domain.Lot{}, errors.NewDBError("Falha ao commitar transação", commitErr)
	}

	request.Status = domain.WithdrawalConfirmed
	request.ConfirmedBy = &principal.UserID
	request.Notes = notes
	request.ResolvedAt = &now

	r.logger.Info("Retirada confirmada.", map[string]interface{}{
		"request_id": request.ID, "lot_id": lot.ID, "kind": request.Kind, "lot_state": lot.State,
	})
	return request, lot, nil
}

// Cancel resolve uma solicitação PENDENTE revertendo o lote para LOCADO.
// Nenhuma movimentação é gerada: nenhuma transferência física ocorreu.
func (r *WithdrawalRepository) Cancel(ctx context.Context, requestID, reason string, principal domain.Principal) (domain.WithdrawalRequest, domain.Lot, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return domain.WithdrawalRequest{}, domain.Lot{}, errors.NewDBError("Falha ao iniciar transação", err)
	}
	defer tx.Rollback()

	request, err := lockRequest(ctxTimeout, tx, requestID)
	if err != nil {
		return domain.WithdrawalRequest{}, domain.Lot{}, err
	}
	if request.Status != domain.WithdrawalPending {
		return domain.WithdrawalRequest{}, domain.Lot{}, errors.NewInvalidTransitionError(fmt.Sprintf(
			"Solicitação %s já foi resolvida (%s).", request.ID, request.Status))
	}

	lot, err := lockLot(ctxTimeout, tx, request.LotID)
	if err != nil {
		return domain.WithdrawalRequest{}, domain.Lot{}, err
	}
	if lot.State != domain.StateAguardandoRetirada {
		return domain.WithdrawalRequest{}, domain.Lot{}, errors.NewInvalidTransitionError(fmt.Sprintf(
			"Lote %s não está AGUARDANDO_RETIRADA (estado atual: %s).", lot.ID, lot.State))
	}

	if err := updateLotState(ctxTimeout, tx, lot, domain.StateLocado, lot.SlotID, principal.UserID); err != nil {
		return domain.WithdrawalRequest{}, domain.Lot{}, err
	}

	now := time.Now().UTC()
	queryResolve := `
        UPDATE withdrawal_requests
        SET status = 'CANCELADO', confirmed_by = $1, notes = $2, resolved_at = $3
        WHERE id = $4 AND status = 'PENDENTE'`

	result, err := tx.ExecContext(ctxTimeout, queryResolve, principal.UserID, reason, now, request.ID)
	if err != nil {
		return domain.WithdrawalRequest{}, domain.Lot{}, errors.NewDBError("Falha ao cancelar solicitação", err)
	}
	if affected, raErr := result.RowsAffected(); raErr != nil || affected == 0 {
		return domain.WithdrawalRequest{}, domain.Lot{}, errors.NewDBError(
			"Falha ao cancelar solicitação", fmt.Errorf("nenhuma linha afetada"))
	}

	if commitErr := tx.Commit(); commitErr != nil {
		r.logger.Error("Falha ao commitar transação de cancelamento de retirada.", commitErr)
		return domain.WithdrawalRequest{}, domain.Lot{}, errors.NewDBError("Falha ao commitar transação", commitErr)
	}

	lot.State = domain.StateLocado
	request.Status = domain.WithdrawalCanceled
	request.ConfirmedBy = &principal.UserID
	request.Notes = reason
	request.ResolvedAt = &now

	r.logger.Info("Solicitação de retirada cancelada.", map[string]interface{}{
		"request_id": request.ID, "lot_id": lot.ID,
	})
	return request, lot, nil
}

// FindByID busca uma solicitação pelo ID.
func (r *WithdrawalRepository) FindByID(ctx context.Context, id string) (domain.WithdrawalRequest, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1`

	request, err := scanRequest(r.DB.QueryRowContext(ctxTimeout, query, id))
	if err == sql.ErrNoRows {
		return domain.WithdrawalRequest{}, errors.NewNotFoundError(fmt.Sprintf("Solicitação %s não encontrada.", id))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar solicitação no DB.", err)
		return domain.WithdrawalRequest{}, errors.NewDBError("Falha ao buscar solicitação", err)
	}
	return request, nil
}

// FindAll busca solicitações conforme o filtro (lote, status).
func (r *WithdrawalRepository) FindAll(ctx context.Context, filter domain.WithdrawalFilter) ([]domain.WithdrawalRequest, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE 1=1`
	args := []interface{}{}
	i := 1

	if filter.LotID != "" {
		query += ` AND lot_id = $` + strconv.Itoa(i)
		args = append(args, filter.LotID)
		i++
	}
	if filter.Status != "" {
		query += ` AND status = $` + strconv.Itoa(i)
		args = append(args, filter.Status)
		i++
	}

	query += ` ORDER BY requested_at DESC`

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	query += ` LIMIT $` + strconv.Itoa(i) + ` OFFSET $` + strconv.Itoa(i+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.DB.QueryContext(ctxTimeout, query, args...)
	if err != nil {
		r.logger.Error("Falha ao consultar solicitações no DB.", err)
		return nil, errors.NewDBError("Falha ao consultar solicitações", err)
	}
	defer rows.Close()

	requests := []domain.WithdrawalRequest{}
	for rows.Next() {
		request, scanErr := scanRequest(rows)
		if scanErr != nil {
			return nil, errors.NewDBError("Falha ao ler solicitação", scanErr)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar solicitações", err)
	}
	return requests, nil
}

// --- Helpers transacionais ---

func lockRequest(ctx context.Context, tx *sql.Tx, id string) (domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`
	request, err := scanRequest(tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return domain.WithdrawalRequest{}, errors.NewNotFoundError(fmt.Sprintf("Solicitação %s não encontrada.", id))
	}
	if err != nil {
		return domain.WithdrawalRequest{}, errors.NewDBError("Falha ao buscar solicitação para atualização", err)
	}
	return request, nil
}

func lockLot(ctx context.Context, tx *sql.Tx, lotID string) (domain.Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM lots WHERE id = $1 FOR UPDATE`

	var lot domain.Lot
	err := tx.QueryRowContext(ctx, query, lotID).Scan(
		&lot.ID, &lot.ProductID, &lot.LotCode, &lot.Quantity, &lot.UnitMassKg, &lot.TotalMassKg,
		&lot.SlotID, &lot.State, &lot.EntryDate, &lot.ExpirationDate, &lot.Notes, &lot.Version,
		&lot.CreatedBy, &lot.UpdatedBy, &lot.CreatedAt, &lot.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return domain.Lot{}, errors.NewNotFoundError(fmt.Sprintf("Lote %s não encontrado.", lotID))
	}
	if err != nil {
		return domain.Lot{}, errors.NewDBError("Falha ao buscar lote para atualização", err)
	}
	return lot, nil
}

func lockSlot(ctx context.Context, tx *sql.Tx, slotID string) (domain.Slot, error) {
	query := `
        SELECT id, chamber_id, block, side, row_num, level, code,
               max_capacity_kg, current_load_kg, is_active, created_at, updated_at
        FROM slots
        WHERE id = $1 FOR UPDATE`

	var s domain.Slot
	err := tx.QueryRowContext(ctx, query, slotID).Scan(
		&s.ID, &s.ChamberID, &s.Block, &s.Side, &s.Row, &s.Level, &s.Code,
		&s.MaxCapacityKg, &s.CurrentLoadKg, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return domain.Slot{}, errors.NewNotFoundError(fmt.Sprintf("Slot %s não encontrado.", slotID))
	}
	if err != nil {
		return domain.Slot{}, errors.NewDBError("Falha ao buscar slot para atualização", err)
	}
	return s, nil
}

func applySlotLoad(ctx context.Context, tx *sql.Tx, slotID string, deltaKg float64) error {
	query := `
        UPDATE slots
        SET current_load_kg = current_load_kg + $1, updated_at = $2
        WHERE id = $3`

	if _, err := tx.ExecContext(ctx, query, deltaKg, time.Now().UTC(), slotID); err != nil {
		return errors.NewDBError("Falha ao atualizar carga do slot", err)
	}
	return nil
}

// updateLotState persiste a transição de estado do lote (com incremento de
// versão) dentro da transação do fluxo de retirada.
func updateLotState(ctx context.Context, tx *sql.Tx, lot domain.Lot, newState domain.LotState, slotID *string, updatedBy string) error {
	query := `
        UPDATE lots
        SET quantity = $1, total_mass_kg = $2, slot_id = $3, state = $4,
            version = version + 1, updated_by = $5, updated_at = $6
        WHERE id = $7 AND version = $8`

	result, err := tx.ExecContext(ctx, query,
		lot.Quantity, lot.TotalMassKg, slotID, newState,
		updatedBy, time.Now().UTC(), lot.ID, lot.Version,
	)
	if err != nil {
		return errors.NewDBError("Falha ao atualizar estado do lote", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewDBError("Falha ao verificar linhas afetadas", err)
	}
	if rowsAffected == 0 {
		return errors.NewStaleVersionError(fmt.Sprintf(
			"O lote %s foi modificado por outra operação. Releia e tente novamente.", lot.ID))
	}
	return nil
}

// rowScanner abstrai *sql.Row e *sql.Rows para o scan compartilhado.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (domain.WithdrawalRequest, error) {
	var request domain.WithdrawalRequest
	err := row.Scan(
		&request.ID, &request.LotID, &request.RequestedBy, &request.ConfirmedBy, &request.Status,
		&request.Kind, &request.Quantity, &request.Reason, &request.Notes,
		&request.RequestedAt, &request.ResolvedAt,
	)
	return request, err
}
