package movementrepo

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"seedstock/internal/domain"
	"seedstock/internal/errors"
	"seedstock/internal/pkg/logger"
)

// MovementRepository implementa o acesso ao livro-razão de movimentações.
// O livro é append-only: registros nunca são alterados ou removidos, apenas
// anexados e, opcionalmente, marcados como verificados.
type MovementRepository struct {
	DB        *sql.DB
	DBTimeout time.Duration
	DupWindow time.Duration // janela de supressão de duplicatas (configurável por ambiente)
	logger    logger.Logger
}

// NewMovementRepository cria e retorna uma nova instância do Repositório de Movimentações.
func NewMovementRepository(db *sql.DB, dbTimeout, dupWindow time.Duration, logger logger.Logger) *MovementRepository {
	return &MovementRepository{
		DB:        db,
		DBTimeout: dbTimeout,
		DupWindow: dupWindow,
		logger:    logger,
	}
}

const movementColumns = `id, lot_id, kind, source_slot_id, dest_slot_id, quantity, mass_kg,
        performed_by, reason, is_system, correlation_id, verified, verified_by, verified_at, occurred_at`

// AppendTx anexa uma movimentação dentro de uma transação já aberta pelo
// chamador (motor de ciclo de vida ou fluxo de retirada). A checagem de
// duplicata e o INSERT participam da mesma transação que a mutação de
// lote/slot, garantindo a atomicidade da tríade.
//
// A consulta de duplicata usa a tupla COMPLETA — (lote, tipo, quantidade,
// massa, responsável, slot de origem, slot de destino) — dentro da janela.
// Omitir os slots rejeitaria movimentos rápidos e legítimos do mesmo lote
// para destinos diferentes.
func (r *MovementRepository) AppendTx(ctx context.Context, tx *sql.Tx, mv domain.Movement) (domain.Movement, error) {
	if mv.ID == "" {
		mv.ID = uuid.New().String()
	}
	if mv.OccurredAt.IsZero() {
		mv.OccurredAt = time.Now().UTC()
	}

	queryDup := `
        SELECT COUNT(*)
        FROM movements
        WHERE lot_id = $1
          AND kind = $2
          AND quantity = $3
          AND mass_kg = $4
          AND performed_by = $5
          AND source_slot_id IS NOT DISTINCT FROM $6
          AND dest_slot_id IS NOT DISTINCT FROM $7
          AND occurred_at > $8`

	var count int
	err := tx.QueryRowContext(ctx, queryDup,
		mv.LotID, mv.Kind, mv.Quantity, mv.MassKg, mv.PerformedBy,
		mv.SourceSlotID, mv.DestSlotID, mv.OccurredAt.Add(-r.DupWindow),
	).Scan(&count)
	if err != nil {
		r.logger.Error("Falha na consulta de supressão de duplicatas.", err)
		return domain.Movement{}, errors.NewDBError("Falha ao verificar duplicata de movimentação", err)
	}

	if count > 0 {
		r.logger.Warn("Movimentação duplicada suprimida.", map[string]interface{}{
			"lot_id": mv.LotID, "kind": mv.Kind, "performed_by": mv.PerformedBy,
		})
		return domain.Movement{}, errors.NewDuplicateMovementError(
			fmt.Sprintf("Movimentação idêntica registrada há menos de %s para o lote %s.", r.DupWindow, mv.LotID))
	}

	queryInsert := `
        INSERT INTO movements (id, lot_id, kind, source_slot_id, dest_slot_id, quantity, mass_kg,
            performed_by, reason, is_system, correlation_id, verified, occurred_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false, $12)`

	// correlation_id é NOT NULL no schema: movimentações sem correlação
	// persistem a string vazia, nunca NULL.
	_, err = tx.ExecContext(ctx, queryInsert,
		mv.ID, mv.LotID, mv.Kind, mv.SourceSlotID, mv.DestSlotID, mv.Quantity, mv.MassKg,
		mv.PerformedBy, mv.Reason, mv.IsSystem, mv.CorrelationID, mv.OccurredAt,
	)
	if err != nil {
		r.logger.Error("Falha ao inserir movimentação no livro-razão.", err)
		return domain.Movement{}, translateInsertError(err)
	}

	r.logger.Debug("Movimentação registrada.", map[string]interface{}{
		"movement_id": mv.ID, "lot_id": mv.LotID, "kind": mv.Kind,
	})
	return mv, nil
}

// AppendManual registra um lançamento manual (retaguarda) em transação
// própria, passando pela mesma regra de supressão de duplicatas.
func (r *MovementRepository) AppendManual(ctx context.Context, mv domain.Movement) (domain.Movement, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return domain.Movement{}, errors.NewDBError("Falha ao iniciar transação", err)
	}
	defer tx.Rollback()

	mv.IsSystem = false
	created, err := r.AppendTx(ctxTimeout, tx, mv)
	if err != nil {
		return domain.Movement{}, err
	}

	if commitErr := tx.Commit(); commitErr != nil {
		r.logger.Error("Falha ao commitar lançamento manual de movimentação.", commitErr)
		return domain.Movement{}, errors.NewDBError("Falha ao commitar transação", commitErr)
	}
	return created, nil
}

// FindByID busca uma movimentação pelo ID.
func (r *MovementRepository) FindByID(ctx context.Context, id string) (domain.Movement, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `SELECT ` + movementColumns + ` FROM movements WHERE id = $1`

	mv, err := scanMovement(r.DB.QueryRowContext(ctxTimeout, query, id))
	if err == sql.ErrNoRows {
		return domain.Movement{}, errors.NewNotFoundError(fmt.Sprintf("Movimentação %s não encontrada.", id))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar movimentação no DB.", err)
		return domain.Movement{}, errors.NewDBError("Falha ao buscar movimentação", err)
	}
	return mv, nil
}

// FindAll consulta o livro-razão por lote, slot, responsável, tipo ou janela
// de tempo. Exposto à camada externa de auditoria/relatórios.
func (r *MovementRepository) FindAll(ctx context.Context, filter domain.MovementFilter) ([]domain.Movement, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `SELECT ` + movementColumns + ` FROM movements WHERE 1=1`
	args := []interface{}{}
	i := 1

	if filter.LotID != "" {
		query += ` AND lot_id = $` + strconv.Itoa(i)
		args = append(args, filter.LotID)
		i++
	}
	if filter.SlotID != "" {
		query += ` AND (source_slot_id = $` + strconv.Itoa(i) + ` OR dest_slot_id = $` + strconv.Itoa(i) + `)`
		args = append(args, filter.SlotID)
		i++
	}
	if filter.PerformedBy != "" {
		query += ` AND performed_by = $` + strconv.Itoa(i)
		args = append(args, filter.PerformedBy)
		i++
	}
	if filter.Kind != "" {
		query += ` AND kind = $` + strconv.Itoa(i)
		args = append(args, filter.Kind)
		i++
	}
	if filter.From != nil {
		query += ` AND occurred_at >= $` + strconv.Itoa(i)
		args = append(args, *filter.From)
		i++
	}
	if filter.To != nil {
		query += ` AND occurred_at <= $` + strconv.Itoa(i)
		args = append(args, *filter.To)
		i++
	}

	query += ` ORDER BY occurred_at DESC`

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
		r.logger.Error("Falha ao consultar o livro-razão de movimentações.", err)
		return nil, errors.NewDBError("Falha ao consultar movimentações", err)
	}
	defer rows.Close()

	movements := []domain.Movement{}
	for rows.Next() {
		mv, scanErr := scanMovement(rows)
		if scanErr != nil {
			return nil, errors.NewDBError("Falha ao ler movimentação", scanErr)
		}
		movements = append(movements, mv)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar movimentações", err)
	}
	return movements, nil
}

// Verify marca uma movimentação como verificada pelo passo de auditoria.
// Não altera nenhum outro campo do registro.
func (r *MovementRepository) Verify(ctx context.Context, movementID, verifierID string) (domain.Movement, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        UPDATE movements
        SET verified = true, verified_by = $1, verified_at = $2
        WHERE id = $3 AND verified = false`

	result, err := r.DB.ExecContext(ctxTimeout, query, verifierID, time.Now().UTC(), movementID)
	if err != nil {
		r.logger.Error("Falha ao marcar movimentação como verificada.", err)
		return domain.Movement{}, errors.NewDBError("Falha ao verificar movimentação", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return domain.Movement{}, errors.NewDBError("Falha ao verificar linhas afetadas", err)
	}
	if rowsAffected == 0 {
		// Ou não existe, ou já foi verificada. Distinguir com uma busca.
		if _, findErr := r.FindByID(ctxTimeout, movementID); findErr != nil {
			return domain.Movement{}, findErr
		}
		return domain.Movement{}, errors.NewConflictError(
			fmt.Sprintf("Movimentação %s já foi verificada.", movementID))
	}

	return r.FindByID(ctxTimeout, movementID)
}

// rowScanner abstrai *sql.Row e *sql.Rows para o scan compartilhado.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMovement(row rowScanner) (domain.Movement, error) {
	var mv domain.Movement
	err := row.Scan(
		&mv.ID, &mv.LotID, &mv.Kind, &mv.SourceSlotID, &mv.DestSlotID, &mv.Quantity, &mv.MassKg,
		&mv.PerformedBy, &mv.Reason, &mv.IsSystem, &mv.CorrelationID, &mv.Verified, &mv.VerifiedBy,
		&mv.VerifiedAt, &mv.OccurredAt,
	)
	if err != nil {
		return domain.Movement{}, err
	}
	return mv, nil
}

// translateInsertError converte violação de chave estrangeira (classe 23503 do
// Postgres) em erro de validação: um lançamento manual pode referenciar lote ou
// slot inexistente, e isso é erro do chamador, não falha do sistema.
func translateInsertError(err error) error {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) && pqErr.Code == "23503" {
		return errors.NewValidationError("Movimentação referencia lote ou slot inexistente.")
	}
	return errors.NewDBError("Falha ao registrar movimentação", err)
}
