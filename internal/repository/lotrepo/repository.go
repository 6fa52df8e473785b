package lotrepo

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"seedstock/internal/domain"
	"seedstock/internal/errors"
	"seedstock/internal/pkg/logger"
)

// MovementAppender define o contrato de anexação ao livro-razão dentro da
// transação do motor de ciclo de vida. Toda operação bem-sucedida registra
// exatamente uma movimentação na MESMA transação que muta lote e slot.
type MovementAppender interface {
	AppendTx(ctx context.Context, tx *sql.Tx, mv domain.Movement) (domain.Movement, error)
}

// LotRepository implementa o núcleo transacional do ciclo de vida de lotes.
// Cada operação executa a tríade (mutação do lote, mutação da carga do slot,
// anexação da movimentação) em uma única transação: ou as três efetivam
// juntas, ou nenhuma.
type LotRepository struct {
	DB        *sql.DB
	DBTimeout time.Duration
	movements MovementAppender
	logger    logger.Logger
}

// NewLotRepository cria e retorna uma nova instância do Repositório de Lotes.
func NewLotRepository(db *sql.DB, dbTimeout time.Duration, movements MovementAppender, logger logger.Logger) *LotRepository {
	return &LotRepository{
		DB:        db,
		DBTimeout: dbTimeout,
		movements: movements,
		logger:    logger,
	}
}

const lotColumns = `id, product_id, lot_code, quantity, unit_mass_kg, total_mass_kg, slot_id,
        state, entry_date, expiration_date, notes, version, created_by, updated_by, created_at, updated_at`

// --- Helpers transacionais ---

// lockLot carrega o lote com FOR UPDATE, serializando operações concorrentes
// sobre o mesmo lote dentro da transação.
func lockLot(ctx context.Context, tx *sql.Tx, lotID string) (domain.Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM lots WHERE id = $1 FOR UPDATE`
	lot, err := scanLot(tx.QueryRowContext(ctx, query, lotID))
	if err == sql.ErrNoRows {
		return domain.Lot{}, errors.NewNotFoundError(fmt.Sprintf("Lote %s não encontrado.", lotID))
	}
	if err != nil {
		return domain.Lot{}, errors.NewDBError("Falha ao buscar lote para atualização", err)
	}
	return lot, nil
}

// lockSlot carrega o slot com FOR UPDATE. A carga lida aqui é a única fonte
// válida para a checagem de capacidade: nunca usar uma leitura anterior à
// transação.
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

// lockSlots trava múltiplos slots em ordem determinística de ID.
// A ordenação evita deadlock entre duas transações que cruzam os mesmos slots.
func lockSlots(ctx context.Context, tx *sql.Tx, slotIDs ...string) (map[string]domain.Slot, error) {
	ids := append([]string{}, slotIDs...)
	sort.Strings(ids)

	locked := make(map[string]domain.Slot, len(ids))
	for _, id := range ids {
		if _, done := locked[id]; done {
			continue
		}
		slot, err := lockSlot(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = slot
	}
	return locked, nil
}

// checkSlotUsable aplica a checagem de capacidade/ocupação: o slot deve estar
// ativo, não vinculado a outro lote ativo, e comportar a massa adicional.
// Executa SEMPRE dentro da transação, após o FOR UPDATE do slot.
func checkSlotUsable(ctx context.Context, tx *sql.Tx, slot domain.Slot, incomingMassKg float64, excludeLotID string) error {
	if !slot.IsActive {
		return errors.NewValidationError(fmt.Sprintf("Slot %s está desativado.", slot.Code))
	}

	queryOccupant := `
        SELECT COUNT(*)
        FROM lots
        WHERE slot_id = $1
          AND state IN ('LOCADO', 'AGUARDANDO_RETIRADA')
          AND id <> $2`

	var occupants int
	if err := tx.QueryRowContext(ctx, queryOccupant, slot.ID, excludeLotID).Scan(&occupants); err != nil {
		return errors.NewDBError("Falha ao verificar ocupação do slot", err)
	}
	if occupants > 0 {
		return errors.NewSlotOccupiedError(fmt.Sprintf("Slot %s já está vinculado a outro lote ativo.", slot.Code))
	}

	if !slot.CanAccept(incomingMassKg) {
		return errors.NewCapacityExceededError(fmt.Sprintf(
			"Slot %s não comporta %.2f kg adicionais (carga %.2f kg, capacidade %.2f kg).",
			slot.Code, incomingMassKg, slot.CurrentLoadKg, slot.MaxCapacityKg))
	}
	return nil
}

// applySlotLoad soma delta à carga do slot dentro da transação.
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

// updateLot persiste a mutação do lote com OCC: a cláusula de versão detecta
// atualização perdida mesmo se o FOR UPDATE for contornado por outro caminho.
func updateLot(ctx context.Context, tx *sql.Tx, lot domain.Lot, previousVersion int) error {
	query := `
        UPDATE lots
        SET quantity = $1, unit_mass_kg = $2, total_mass_kg = $3, slot_id = $4, state = $5,
            notes = $6, version = $7, updated_by = $8, updated_at = $9
        WHERE id = $10 AND version = $11`

	result, err := tx.ExecContext(ctx, query,
		lot.Quantity, lot.UnitMassKg, lot.TotalMassKg, lot.SlotID, lot.State,
		lot.Notes, lot.Version, lot.UpdatedBy, lot.UpdatedAt,
		lot.ID, previousVersion,
	)
	if err != nil {
		return errors.NewDBError("Falha ao atualizar lote", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewDBError("Falha ao verificar linhas afetadas", err)
	}
	if rowsAffected == 0 {
		return errors.NewStaleVersionError(
			fmt.Sprintf("O lote %s foi modificado por outra operação. Releia e tente novamente.", lot.ID))
	}
	return nil
}

// checkVersion compara a versão observada pelo chamador com a versão travada.
func checkVersion(lot domain.Lot, expected int) error {
	if lot.Version != expected {
		return errors.NewStaleVersionError(fmt.Sprintf(
			"O lote %s está na versão %d, mas a operação foi baseada na versão %d.",
			lot.ID, lot.Version, expected))
	}
	return nil
}

// --- Operações do ciclo de vida ---

// Intake cria um novo lote. Com slot informado, valida capacidade/ocupação e
// o lote nasce LOCADO; sem slot, nasce AGUARDANDO_LOCACAO. Sempre anexa uma
// movimentação de ENTRADA na mesma transação.
func (r *LotRepository) Intake(ctx context.Context, req domain.IntakeRequest, principal domain.Principal) (domain.Lot, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return domain.Lot{}, errors.NewDBError("Falha ao iniciar transação", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	lot := domain.Lot{
		ID:             uuid.New().String(),
		ProductID:      req.ProductID,
		LotCode:        req.LotCode,
		Quantity:       req.Quantity,
		UnitMassKg:     req.UnitMassKg,
		State:          domain.StateAguardandoLocacao,
		EntryDate:      now,
		ExpirationDate: req.ExpirationDate,
		Notes:          req.Notes,
		Version:        1,
		CreatedBy:      principal.UserID,
		UpdatedBy:      principal.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	lot.RecomputeMass()

	if req.SlotID != nil {
		slot, lockErr := lockSlot(ctxTimeout, tx, *req.SlotID)
		if lockErr != nil {
			return domain.Lot{}, lockErr
		}
		if usableErr := checkSlotUsable(ctxTimeout, tx, slot, lot.TotalMassKg, lot.ID); usableErr != nil {
			return domain.Lot{}, usableErr
		}
		if loadErr := applySlotLoad(ctxTimeout, tx, slot.ID, lot.TotalMassKg); loadErr != nil {
			return domain.Lot{}, loadErr
		}
		lot.SlotID = req.SlotID
		lot.State = domain.StateLocado
	}

	queryInsert := `
        INSERT INTO lots (id, product_id, lot_code, quantity, unit_mass_kg, total_mass_kg, slot_id,
            state, entry_date, expiration_date, notes, version, created_by, updated_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err = tx.ExecContext(ctxTimeout, queryInsert,
		lot.ID, lot.ProductID, lot.LotCode, lot.Quantity, lot.UnitMassKg, lot.TotalMassKg, lot.SlotID,
		lot.State, lot.EntryDate, lot.ExpirationDate, lot.Notes, lot.Version,
		lot.CreatedBy, lot.UpdatedBy, lot.CreatedAt, lot.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Falha ao inserir lote no DB.", err)
		return domain.Lot{}, errors.NewDBError("Falha ao criar lote", err)
	}

	if _, mvErr := r.movements.AppendTx(ctxTimeout, tx, domain.Movement{
		LotID:       lot.ID,
		Kind:        domain.MovementEntry,
		DestSlotID:  lot.SlotID,
		Quantity:    lot.Quantity,
		MassKg:      lot.TotalMassKg,
		PerformedBy: principal.UserID,
		Reason:      "Entrada de lote",
		IsSystem:    true,
	}); mvErr != nil {
		return domain.Lot{}, mvErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		r.logger.Error("Falha ao commitar transação de entrada de lote.", commitErr)
		return domain.Lot{}, errors.NewDBError("Falha ao commitar transação", commitErr)
	}

	r.logger.Info("Lote criado.", map[string]interface{}{
		"lot_id": lot.ID, "state": lot.State, "quantity": lot.Quantity, "total_mass_kg": lot.TotalMassKg,
	})
	return lot, nil
}

// AssignSlot loca um lote AGUARDANDO_LOCACAO em um slot, após a checagem de
// capacidade/ocupação dentro da transação. Anexa movimentação de TRANSFERENCIA
// (origem vazia, destino = slot).
func (r *LotRepository) AssignSlot(ctx context.Context, lotID, slotID string, version int, principal domain.Principal) (domain.Lot, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return domain.Lot{}, errors.NewDBError("Falha ao iniciar transação", err)
	}
	defer tx.Rollback()

	lot, err := lockLot(ctxTimeout, tx, lotID)
	if err != nil {
		return domain.Lot{}, err
	}
	if err := checkVersion(lot, version); err != nil {
		return domain.Lot{}, err
	}
	if lot.State != domain.StateAguardandoLocacao {
		return domain.Lot{}, errors.NewInvalidTransitionError(fmt.Sprintf(
			"Locação só é válida a partir de AGUARDANDO_LOCACAO; lote %s está %s.", lot.ID, lot.State))
	}

	slot, err := lockSlot(ctxTimeout, tx, slotID)
	if err != nil {
		return domain.Lot{}, err
	}
	if err := checkSlotUsable(ctxTimeout, tx, slot, lot.TotalMassKg, lot.ID); err != nil {
		return domain.Lot{}, err
	}
	if err := applySlotLoad(ctxTimeout, tx, slot.ID, lot.TotalMassKg); err != nil {
		return domain.Lot{}, err
	}

	previousVersion := lot.Version
	lot.SlotID = &slot.ID
	lot.State = domain.StateLocado
	lot.Version++
	lot.UpdatedBy = principal.UserID
	lot.UpdatedAt = time.Now().UTC()

	if err := updateLot(ctxTimeout, tx, lot, previousVersion); err != nil {
		return domain.Lot{}, err
	}

	if _, mvErr := r.movements.AppendTx(ctxTimeout, tx, domain.Movement{
		LotID:       lot.ID,
		Kind:        domain.MovementTransfer,
		DestSlotID:  &slot.ID,
		Quantity:    lot.Quantity,
		MassKg:      lot.TotalMassKg,
		PerformedBy: principal.UserID,
		Reason:      "Locação de lote em slot",
		IsSystem:    true,
	}); mvErr != nil {
		return domain.Lot{}, mvErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		r.logger.Error("Falha ao commitar transação de locação.", commitErr)
		return domain.Lot{}, errors.NewDBError("Falha ao commitar transação", commitErr)
	}

	r.logger.Info("Lote locado.", map[string]interface{}{"lot_id": lot.ID, "slot_id": slot.ID})
	return lot, nil
}

// Move transfere um lote LOCADO inteiro para outro slot: libera a carga do
// slot antigo, valida o novo e anexa uma única TRANSFERENCIA com origem e
// destino, tudo na mesma transação.
func (r *LotRepository) Move(ctx context.Context, lotID, newSlotID string, version int, principal domain.Principal) (domain.Lot, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return domain.Lot{}, errors.NewDBError("Falha ao iniciar transação", err)
	}
	defer tx.Rollback()

	lot, err := lockLot(ctxTimeout, tx, lotID)
	if err != nil {
		return domain.Lot{}, err
	}
	if err := checkVersion(lot, version); err != nil {
		return domain.Lot{}, err
	}
	if lot.State != domain.StateLocado || lot.SlotID == nil {
		return domain.Lot{}, errors.NewInvalidTransitionError(fmt.Sprintf(
			"Movimentação só é válida para lotes LOCADO; lote %s está %s.", lot.ID, lot.State))
	}
	if *lot.SlotID == newSlotID {
		return domain.Lot{}, errors.NewValidationError("O slot de destino é o mesmo slot atual do lote.")
	}

	oldSlotID := *lot.SlotID
	slots, err := lockSlots(ctxTimeout, tx, oldSlotID, newSlotID)
	if err != nil {
		return domain.Lot{}, err
	}

	if err := checkSlotUsable(ctxTimeout, tx, slots[newSlotID], lot.TotalMassKg, lot.ID); err != nil {
		return domain.Lot{}, err
	}
	if err := applySlotLoad(ctxTimeout, tx, oldSlotID, -lot.TotalMassKg); err != nil {
		return domain.Lot{}, err
	}
	if err := applySlotLoad(ctxTimeout, tx, newSlotID, lot.TotalMassKg); err != nil {
		return domain.Lot{}, err
	}

	previousVersion := lot.Version
	lot.SlotID = &newSlotID
	lot.Version++
	lot.UpdatedBy = principal.UserID
	lot.UpdatedAt = time.Now().UTC()

	if err := updateLot(ctxTimeout, tx, lot, previousVersion); err != nil {
		return domain.Lot{}, err
	}

	if _, mvErr := r.movements.AppendTx(ctxTimeout, tx, domain.Movement{
		LotID:        lot.ID,
		Kind:         domain.MovementTransfer,
		SourceSlotID: &oldSlotID,
		DestSlotID:   &newSlotID,
		Quantity:     lot.Quantity,
		MassKg:       lot.TotalMassKg,
		PerformedBy:  principal.UserID,
		Reason:       "Transferência de lote entre slots",
		IsSystem:     true,
	}); mvErr != nil {
		return domain.Lot{}, mvErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		r.logger.Error("Falha ao commitar transação de transferência.", commitErr)
		return domain.Lot{}, errors.NewDBError("Falha ao commitar transação", commitErr)
	}

	r.logger.Info("Lote transferido.", map[string]interface{}{
		"lot_id": lot.ID, "from_slot": oldSlotID, "to_slot": newSlotID,
	})
	return lot, nil
}

// PartialMove divide um lote: reduz quantidade/massa do registro original e
// cria um novo lote (fragmento) LOCADO no destino, com a movimentação de
// TRANSFERENCIA referenciando o FRAGMENTO. Duas identidades distintas mantêm
// a trilha de auditoria inequívoca.
func (r *LotRepository) PartialMove(ctx context.Context, lotID string, quantity int, newSlotID string, version int, principal domain.Principal) (domain.Lot, domain.Lot, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return domain.Lot{}, domain.Lot{}, errors.NewDBError("Falha ao iniciar transação", err)
	}
	defer tx.Rollback()

	lot, err := lockLot(ctxTimeout, tx, lotID)
	if err != nil {
		return domain.Lot{}, domain.Lot{}, err
	}
	if err := checkVersion(lot, version); err != nil {
		return domain.Lot{}, domain.Lot{}, err
	}
	if lot.State != domain.StateLocado || lot.SlotID == nil {
		return domain.Lot{}, domain.Lot{}, errors.NewInvalidTransitionError(fmt.Sprintf(
			"Movimentação parcial só é válida para lotes LOCADO; lote %s está %s.", lot.ID, lot.State))
	}
	if quantity >= lot.Quantity {
		return domain.Lot{}, domain.Lot{}, errors.NewInsufficientQuantityError(fmt.Sprintf(
			"Quantidade %d é maior ou igual à quantidade atual %d; use a transferência total.", quantity, lot.Quantity))
	}
	if *lot.SlotID == newSlotID {
		return domain.Lot{}, domain.Lot{}, errors.NewValidationError("O slot de destino é o mesmo slot atual do lote.")
	}

	fragmentMass := float64(quantity) * lot.UnitMassKg

	// Origem e destino travam juntos, em ordem determinística, como no Move:
	// a carga da origem também será atualizada nesta transação.
	locked, err := lockSlots(ctxTimeout, tx, *lot.SlotID, newSlotID)
	if err != nil {
		return domain.Lot{}, domain.Lot{}, err
	}
	if err := checkSlotUsable(ctxTimeout, tx, locked[newSlotID], fragmentMass, ""); err != nil {
		return domain.Lot{}, domain.Lot{}, err
	}

	// Reduz o original. Massa se conserva: original + fragmento == massa anterior.
	previousVersion := lot.Version
	lot.Quantity -= quantity
	lot.RecomputeMass()
	lot.Version++
	lot.UpdatedBy = principal.UserID
	lot.UpdatedAt = time.Now().UTC()

	if err := updateLot(ctxTimeout, tx, lot, previousVersion); err != nil {
		return domain.Lot{}, domain.Lot{}, err
	}
	if err := applySlotLoad(ctxTimeout, tx, *lot.SlotID, -fragmentMass); err != nil {
		return domain.Lot{}, domain.Lot{}, err
	}
	if err := applySlotLoad(ctxTimeout, tx, newSlotID, fragmentMass); err != nil {
		return domain.Lot{}, domain.Lot{}, err
	}

	now := time.Now().UTC()
	fragment := domain.Lot{
		ID:             uuid.New().String(),
		ProductID:      lot.ProductID,
		LotCode:        lot.LotCode,
		Quantity:       quantity,
		UnitMassKg:     lot.UnitMassKg,
		SlotID:         &newSlotID,
		State:          domain.StateLocado,
		EntryDate:      lot.EntryDate,
		ExpirationDate: lot.ExpirationDate,
		Notes:          lot.Notes,
		Version:        1,
		CreatedBy:      principal.UserID,
		UpdatedBy:      principal.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	fragment.RecomputeMass()

	queryInsert := `
        INSERT INTO lots (id, product_id, lot_code, quantity, unit_mass_kg, total_mass_kg, slot_id,
            state, entry_date, expiration_date, notes, version, created_by, updated_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err = tx.ExecContext(ctxTimeout, queryInsert,
		fragment.ID, fragment.ProductID, fragment.LotCode, fragment.Quantity, fragment.UnitMassKg,
		fragment.TotalMassKg, fragment.SlotID, fragment.State, fragment.EntryDate,
		fragment.ExpirationDate, fragment.Notes, fragment.Version,
		fragment.CreatedBy, fragment.UpdatedBy, fragment.CreatedAt, fragment.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Falha ao inserir fragmento de lote no DB.", err)
		return domain.Lot{}, domain.Lot{}, errors.NewDBError("Falha ao criar fragmento de lote", err)
	}

	oldSlotID := *lot.SlotID
	if _, mvErr := r.movements.AppendTx(ctxTimeout, tx, domain.Movement{
		LotID:        fragment.ID, // a movimentação referencia o fragmento, não o original
		Kind:         domain.MovementTransfer,
		SourceSlotID: &oldSlotID,
		DestSlotID:   &newSlotID,
		Quantity:     fragment.Quantity,
		MassKg:       fragment.TotalMassKg,
		PerformedBy:  principal.UserID,
		Reason:       "Movimentação parcial de lote",
		IsSystem:     true,
	}); mvErr != nil {
		return domain.Lot{}, domain.Lot{}, mvErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		r.logger.Error("Falha ao commitar transação de movimentação parcial.", commitErr)
		return domain.Lot{}, domain.Lot{}, errors.NewDBError("Falha ao commitar transação", commitErr)
	}

	r.logger.Info("Lote dividido.", map[string]interface{}{
		"lot_id": lot.ID, "fragment_id": fragment.ID, "moved_quantity": quantity, "to_slot": newSlotID,
	})
	return lot, fragment, nil
}

// PartialExit reduz quantidade/massa de um lote LOCADO. Se a quantidade
// restante chegar a zero, o slot é liberado e o lote marcado RETIRADO.
// Anexa movimentação de SAIDA.
func (r *LotRepository) PartialExit(ctx context.Context, lotID string, quantity int, reason string, version int, principal domain.Principal) (domain.Lot, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return domain.Lot{}, errors.NewDBError("Falha ao iniciar transação", err)
	}
	defer tx.Rollback()

	lot, err := lockLot(ctxTimeout, tx, lotID)
	if err != nil {
		return domain.Lot{}, err
	}
	if err := checkVersion(lot, version); err != nil {
		return domain.Lot{}, err
	}
	if lot.State != domain.StateLocado || lot.SlotID == nil {
		return domain.Lot{}, errors.NewInvalidTransitionError(fmt.Sprintf(
			"Saída parcial só é válida para lotes LOCADO; lote %s está %s.", lot.ID, lot.State))
	}
	if quantity > lot.Quantity {
		return domain.Lot{}, errors.NewInsufficientQuantityError(fmt.Sprintf(
			"Quantidade %d excede a quantidade atual %d do lote.", quantity, lot.Quantity))
	}

	exitMass := float64(quantity) * lot.UnitMassKg
	slotID := *lot.SlotID

	if _, err := lockSlot(ctxTimeout, tx, slotID); err != nil {
		return domain.Lot{}, err
	}
	if err := applySlotLoad(ctxTimeout, tx, slotID, -exitMass); err != nil {
		return domain.Lot{}, err
	}

	previousVersion := lot.Version
	lot.Quantity -= quantity
	lot.RecomputeMass()
	lot.Version++
	lot.UpdatedBy = principal.UserID
	lot.UpdatedAt = time.Now().UTC()

	if lot.Quantity == 0 {
		// Lote integralmente consumido: libera o slot e encerra como RETIRADO.
		lot.SlotID = nil
		lot.State = domain.StateRetirado
	}

	if err := updateLot(ctxTimeout, tx, lot, previousVersion); err != nil {
		return domain.Lot{}, err
	}

	if reason == "" {
		reason = "Saída parcial de lote"
	}
	if _, mvErr := r.movements.AppendTx(ctxTimeout, tx, domain.Movement{
		LotID:        lot.ID,
		Kind:         domain.MovementExit,
		SourceSlotID: &slotID,
		Quantity:     quantity,
		MassKg:       exitMass,
		PerformedBy:  principal.UserID,
		Reason:       reason,
		IsSystem:     true,
	}); mvErr != nil {
		return domain.Lot{}, mvErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		r.logger.Error("Falha ao commitar transação de saída parcial.", commitErr)
		return domain.Lot{}, errors.NewDBError("Falha ao commitar transação", commitErr)
	}

	r.logger.Info("Saída parcial registrada.", map[string]interface{}{
		"lot_id": lot.ID, "exited_quantity": quantity, "remaining_quantity": lot.Quantity, "state": lot.State,
	})
	return lot, nil
}

// AddStock incrementa quantidade (e opcionalmente substitui a massa unitária)
// de um lote LOCADO, validando a capacidade restante do slot. Anexa
// movimentação de AJUSTE.
func (r *LotRepository) AddStock(ctx context.Context, lotID string, quantity int, unitMassKg *float64, version int, principal domain.Principal) (domain.Lot, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return domain.Lot{}, errors.NewDBError("Falha ao iniciar transação", err)
	}
	defer tx.Rollback()

	lot, err := lockLot(ctxTimeout, tx, lotID)
	if err != nil {
		return domain.Lot{}, err
	}
	if err := checkVersion(lot, version); err != nil {
		return domain.Lot{}, err
	}
	if lot.State != domain.StateLocado || lot.SlotID == nil {
		return domain.Lot{}, errors.NewInvalidTransitionError(fmt.Sprintf(
			"Adição de estoque só é válida para lotes LOCADO; lote %s está %s.", lot.ID, lot.State))
	}

	previousVersion := lot.Version
	previousMass := lot.TotalMassKg
	lot.Quantity += quantity
	if unitMassKg != nil {
		lot.UnitMassKg = *unitMassKg
	}
	lot.RecomputeMass()
	deltaMass := lot.TotalMassKg - previousMass

	slotID := *lot.SlotID
	slot, err := lockSlot(ctxTimeout, tx, slotID)
	if err != nil {
		return domain.Lot{}, err
	}
	if deltaMass > 0 && !slot.CanAccept(deltaMass) {
		return domain.Lot{}, errors.NewCapacityExceededError(fmt.Sprintf(
			"Slot %s não comporta %.2f kg adicionais (carga %.2f kg, capacidade %.2f kg).",
			slot.Code, deltaMass, slot.CurrentLoadKg, slot.MaxCapacityKg))
	}
	if err := applySlotLoad(ctxTimeout, tx, slotID, deltaMass); err != nil {
		return domain.Lot{}, err
	}

	lot.Version++
	lot.UpdatedBy = principal.UserID
	lot.UpdatedAt = time.Now().UTC()

	if err := updateLot(ctxTimeout, tx, lot, previousVersion); err != nil {
		return domain.Lot{}, err
	}

	if _, mvErr := r.movements.AppendTx(ctxTimeout, tx, domain.Movement{
		LotID:       lot.ID,
		Kind:        domain.MovementAdjustment,
		DestSlotID:  &slotID,
		Quantity:    quantity,
		MassKg:      deltaMass,
		PerformedBy: principal.UserID,
		Reason:      "Adição de estoque ao lote",
		IsSystem:    true,
	}); mvErr != nil {
		return domain.Lot{}, mvErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		r.logger.Error("Falha ao commitar transação de adição de estoque.", commitErr)
		return domain.Lot{}, errors.NewDBError("Falha ao commitar transação", commitErr)
	}

	r.logger.Info("Estoque adicionado ao lote.", map[string]interface{}{
		"lot_id": lot.ID, "added_quantity": quantity, "new_total_mass_kg": lot.TotalMassKg,
	})
	return lot, nil
}

// Remove retira um lote LOCADO do sistema (estado terminal REMOVIDO),
// liberando o slot e anexando movimentação de SAIDA. Bloqueado se houver
// solicitação de retirada PENDENTE para o lote.
func (r *LotRepository) Remove(ctx context.Context, lotID, reason string, version int, principal domain.Principal) (domain.Lot, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return domain.Lot{}, errors.NewDBError("Falha ao iniciar transação", err)
	}
	defer tx.Rollback()

	lot, err := lockLot(ctxTimeout, tx, lotID)
	if err != nil {
		return domain.Lot{}, err
	}
	if err := checkVersion(lot, version); err != nil {
		return domain.Lot{}, err
	}
	if lot.State != domain.StateLocado || lot.SlotID == nil {
		return domain.Lot{}, errors.NewInvalidTransitionError(fmt.Sprintf(
			"Remoção só é válida para lotes LOCADO; lote %s está %s.", lot.ID, lot.State))
	}

	var pending int
	queryPending := `SELECT COUNT(*) FROM withdrawal_requests WHERE lot_id = $1 AND status = 'PENDENTE'`
	if err := tx.QueryRowContext(ctxTimeout, queryPending, lot.ID).Scan(&pending); err != nil {
		return domain.Lot{}, errors.NewDBError("Falha ao verificar solicitações pendentes", err)
	}
	if pending > 0 {
		return domain.Lot{}, errors.NewInvalidTransitionError(fmt.Sprintf(
			"Lote %s possui solicitação de retirada pendente; resolva-a antes de remover.", lot.ID))
	}

	slotID := *lot.SlotID
	if _, err := lockSlot(ctxTimeout, tx, slotID); err != nil {
		return domain.Lot{}, err
	}
	if err := applySlotLoad(ctxTimeout, tx, slotID, -lot.TotalMassKg); err != nil {
		return domain.Lot{}, err
	}

	previousVersion := lot.Version
	removedQuantity := lot.Quantity
	removedMass := lot.TotalMassKg
	lot.SlotID = nil
	lot.State = domain.StateRemovido
	lot.Version++
	lot.UpdatedBy = principal.UserID
	lot.UpdatedAt = time.Now().UTC()

	if err := updateLot(ctxTimeout, tx, lot, previousVersion); err != nil {
		return domain.Lot{}, err
	}

	if reason == "" {
		reason = "Remoção de lote"
	}
	if _, mvErr := r.movements.AppendTx(ctxTimeout, tx, domain.Movement{
		LotID:        lot.ID,
		Kind:         domain.MovementExit,
		SourceSlotID: &slotID,
		Quantity:     removedQuantity,
		MassKg:       removedMass,
		PerformedBy:  principal.UserID,
		Reason:       reason,
		IsSystem:     true,
	}); mvErr != nil {
		return domain.Lot{}, mvErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		r.logger.Error("Falha ao commitar transação de remoção.", commitErr)
		return domain.Lot{}, errors.NewDBError("Falha ao commitar transação", commitErr)
	}

	r.logger.Info("Lote removido.", map[string]interface{}{"lot_id": lot.ID, "released_slot": slotID})
	return lot, nil
}

// --- Consultas ---

// FindByID busca um lote pelo ID.
func (r *LotRepository) FindByID(ctx context.Context, id string) (domain.Lot, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `SELECT ` + lotColumns + ` FROM lots WHERE id = $1`

	lot, err := scanLot(r.DB.QueryRowContext(ctxTimeout, query, id))
	if err == sql.ErrNoRows {
		return domain.Lot{}, errors.NewNotFoundError(fmt.Sprintf("Lote %s não encontrado.", id))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar lote no DB.", err)
		return domain.Lot{}, errors.NewDBError("Falha ao buscar lote", err)
	}
	return lot, nil
}

// FindAll busca lotes conforme o filtro (produto, câmara, estado, código).
func (r *LotRepository) FindAll(ctx context.Context, filter domain.LotFilter) ([]domain.Lot, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `SELECT ` + lotColumns + ` FROM lots WHERE 1=1`
	args := []interface{}{}
	i := 1

	if filter.ProductID != "" {
		query += ` AND product_id = $` + strconv.Itoa(i)
		args = append(args, filter.ProductID)
		i++
	}
	if filter.State != "" {
		query += ` AND state = $` + strconv.Itoa(i)
		args = append(args, filter.State)
		i++
	}
	if filter.LotCode != "" {
		query += ` AND lot_code = $` + strconv.Itoa(i)
		args = append(args, filter.LotCode)
		i++
	}
	if filter.ChamberID != "" {
		query += ` AND slot_id IN (SELECT id FROM slots WHERE chamber_id = $` + strconv.Itoa(i) + `)`
		args = append(args, filter.ChamberID)
		i++
	}

	query += ` ORDER BY entry_date DESC`

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
		r.logger.Error("Falha ao consultar lotes no DB.", err)
		return nil, errors.NewDBError("Falha ao consultar lotes", err)
	}
	defer rows.Close()

	lots := []domain.Lot{}
	for rows.Next() {
		lot, scanErr := scanLot(rows)
		if scanErr != nil {
			return nil, errors.NewDBError("Falha ao ler lote", scanErr)
		}
		lots = append(lots, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar lotes", err)
	}
	return lots, nil
}

// rowScanner abstrai *sql.Row e *sql.Rows para o scan compartilhado.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLot(row rowScanner) (domain.Lot, error) {
	var lot domain.Lot
	err := row.Scan(
		&lot.ID, &lot.ProductID, &lot.LotCode, &lot.Quantity, &lot.UnitMassKg, &lot.TotalMassKg,
		&lot.SlotID, &lot.State, &lot.EntryDate, &lot.ExpirationDate, &lot.Notes, &lot.Version,
		&lot.CreatedBy, &lot.UpdatedBy, &lot.CreatedAt, &lot.UpdatedAt,
	)
	return lot, err
}
