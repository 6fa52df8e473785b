package slotrepo

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"seedstock/internal/domain"
	"seedstock/internal/errors"
	"seedstock/internal/pkg/logger"
)

// SlotRepository implementa as consultas do registro de slots e câmaras.
// A carga (current_load_kg) é mutada exclusivamente pelas transações do motor
// de ciclo de vida (lotrepo/withdrawalrepo); este repositório só a lê.
type SlotRepository struct {
	DB        *sql.DB
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewSlotRepository cria e retorna uma nova instância do Repositório de Slots.
func NewSlotRepository(db *sql.DB, dbTimeout time.Duration, logger logger.Logger) *SlotRepository {
	return &SlotRepository{
		DB:        db,
		DBTimeout: dbTimeout,
		logger:    logger,
	}
}

const slotColumns = `id, chamber_id, block, side, row_num, level, code,
        max_capacity_kg, current_load_kg, is_active, created_at, updated_at`

// FindByID busca um slot pelo ID.
func (r *SlotRepository) FindByID(ctx context.Context, id string) (domain.Slot, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = $1`

	var s domain.Slot
	err := r.DB.QueryRowContext(ctxTimeout, query, id).Scan(
		&s.ID, &s.ChamberID, &s.Block, &s.Side, &s.Row, &s.Level, &s.Code,
		&s.MaxCapacityKg, &s.CurrentLoadKg, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return domain.Slot{}, errors.NewNotFoundError(fmt.Sprintf("Slot %s não encontrado.", id))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar slot no DB.", err)
		return domain.Slot{}, errors.NewDBError("Falha ao buscar slot", err)
	}
	return s, nil
}

// FindAll busca slots conforme o filtro (câmara, apenas livres, apenas ativos).
func (r *SlotRepository) FindAll(ctx context.Context, filter domain.SlotFilter) ([]domain.Slot, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `SELECT ` + slotColumns + ` FROM slots WHERE 1=1`
	args := []interface{}{}
	i := 1

	if filter.ChamberID != "" {
		query += ` AND chamber_id = $` + strconv.Itoa(i)
		args = append(args, filter.ChamberID)
		i++
	}
	if filter.OnlyFree {
		query += ` AND current_load_kg = 0`
	}
	if filter.OnlyActive {
		query += ` AND is_active = true`
	}

	query += ` ORDER BY chamber_id, block, side, row_num, level`

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	query += ` LIMIT $` + strconv.Itoa(i) + ` OFFSET $` + strconv.Itoa(i+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.DB.QueryContext(ctxTimeout, query, args...)
	if err != nil {
		r.logger.Error("Falha ao consultar slots no DB.", err)
		return nil, errors.NewDBError("Falha ao consultar slots", err)
	}
	defer rows.Close()

	slots := []domain.Slot{}
	for rows.Next() {
		var s domain.Slot
		if scanErr := rows.Scan(
			&s.ID, &s.ChamberID, &s.Block, &s.Side, &s.Row, &s.Level, &s.Code,
			&s.MaxCapacityKg, &s.CurrentLoadKg, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
		); scanErr != nil {
			return nil, errors.NewDBError("Falha ao ler slot", scanErr)
		}
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar slots", err)
	}
	return slots, nil
}

// FindSnapshots retorna a visão imutável de TODOS os slots ativos, com câmara
// e produto ocupante, para o Allocation Advisor. Slots ocupados entram no
// resultado: a pontuação de adjacência precisa deles; os candidatos à locação
// são filtrados pelo próprio Advisor. Um snapshot é apenas um ponto de
// partida: a checagem de capacidade/ocupação é SEMPRE refeita dentro da
// transação que efetiva a locação.
func (r *SlotRepository) FindSnapshots(ctx context.Context) ([]domain.SlotSnapshot, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        SELECT s.id, s.chamber_id, s.block, s.side, s.row_num, s.level, s.code,
               s.max_capacity_kg, s.current_load_kg, s.is_active, s.created_at, s.updated_at,
               c.id, c.name, c.min_temp_c, c.max_temp_c, c.is_active, c.created_at, c.updated_at,
               COALESCE(l.product_id, '')
        FROM slots s
        JOIN chambers c ON c.id = s.chamber_id
        LEFT JOIN lots l ON l.slot_id = s.id AND l.state IN ('LOCADO', 'AGUARDANDO_RETIRADA')
        WHERE s.is_active = true AND c.is_active = true
        ORDER BY s.chamber_id, s.block, s.side, s.row_num, s.level`

	rows, err := r.DB.QueryContext(ctxTimeout, query)
	if err != nil {
		r.logger.Error("Falha ao consultar snapshots de slots.", err)
		return nil, errors.NewDBError("Falha ao consultar snapshots de slots", err)
	}
	defer rows.Close()

	snapshots := []domain.SlotSnapshot{}
	for rows.Next() {
		var snap domain.SlotSnapshot
		if scanErr := rows.Scan(
			&snap.Slot.ID, &snap.Slot.ChamberID, &snap.Slot.Block, &snap.Slot.Side,
			&snap.Slot.Row, &snap.Slot.Level, &snap.Slot.Code,
			&snap.Slot.MaxCapacityKg, &snap.Slot.CurrentLoadKg, &snap.Slot.IsActive,
			&snap.Slot.CreatedAt, &snap.Slot.UpdatedAt,
			&snap.Chamber.ID, &snap.Chamber.Name, &snap.Chamber.MinTempC, &snap.Chamber.MaxTempC,
			&snap.Chamber.IsActive, &snap.Chamber.CreatedAt, &snap.Chamber.UpdatedAt,
			&snap.OccupantProductID,
		); scanErr != nil {
			return nil, errors.NewDBError("Falha ao ler snapshot de slot", scanErr)
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar snapshots", err)
	}
	return snapshots, nil
}

// GetChamberByID busca uma câmara pelo ID.
func (r *SlotRepository) GetChamberByID(ctx context.Context, id string) (domain.Chamber, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        SELECT id, name, min_temp_c, max_temp_c, is_active, created_at, updated_at
        FROM chambers
        WHERE id = $1`

	var c domain.Chamber
	err := r.DB.QueryRowContext(ctxTimeout, query, id).Scan(
		&c.ID, &c.Name, &c.MinTempC, &c.MaxTempC, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return domain.Chamber{}, errors.NewNotFoundError(fmt.Sprintf("Câmara %s não encontrada.", id))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar câmara no DB.", err)
		return domain.Chamber{}, errors.NewDBError("Falha ao buscar câmara", err)
	}
	return c, nil
}

// ChamberLoadSummaries agrega a ocupação por câmara (consulta de leitura para
// a camada externa de relatórios; nenhuma tabela derivada é mantida).
func (r *SlotRepository) ChamberLoadSummaries(ctx context.Context) ([]domain.ChamberLoadSummary, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        SELECT c.id, c.name,
               COUNT(s.id),
               COUNT(s.id) FILTER (WHERE s.current_load_kg > 0),
               COALESCE(SUM(s.current_load_kg), 0),
               COALESCE(SUM(s.max_capacity_kg), 0)
        FROM chambers c
        LEFT JOIN slots s ON s.chamber_id = c.id AND s.is_active = true
        WHERE c.is_active = true
        GROUP BY c.id, c.name
        ORDER BY c.name`

	rows, err := r.DB.QueryContext(ctxTimeout, query)
	if err != nil {
		r.logger.Error("Falha ao agregar ocupação por câmara.", err)
		return nil, errors.NewDBError("Falha ao agregar ocupação por câmara", err)
	}
	defer rows.Close()

	summaries := []domain.ChamberLoadSummary{}
	for rows.Next() {
		var s domain.ChamberLoadSummary
		if scanErr := rows.Scan(
			&s.ChamberID, &s.ChamberName, &s.TotalSlots, &s.OccupiedSlots,
			&s.TotalLoadKg, &s.CapacityKg,
		); scanErr != nil {
			return nil, errors.NewDBError("Falha ao ler agregação de câmara", scanErr)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar agregações", err)
	}
	return summaries, nil
}

// Deactivate desativa logicamente um slot sem carga. Slots referenciados pelo
// histórico de movimentações nunca são deletados fisicamente.
func (r *SlotRepository) Deactivate(ctx context.Context, id string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        UPDATE slots
        SET is_active = false, updated_at = $1
        WHERE id = $2 AND current_load_kg = 0 AND is_active = true`

	result, err := r.DB.ExecContext(ctxTimeout, query, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Falha ao desativar slot.", err)
		return errors.NewDBError("Falha ao desativar slot", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewDBError("Falha ao verificar linhas afetadas", err)
	}
	if rowsAffected == 0 {
		// Distinguir inexistente de ocupado/já inativo.
		slot, findErr := r.FindByID(ctxTimeout, id)
		if findErr != nil {
			return findErr
		}
		if slot.Occupied() {
			return errors.NewConflictError(fmt.Sprintf("Slot %s possui carga e não pode ser desativado.", id))
		}
		return errors.NewConflictError(fmt.Sprintf("Slot %s já está desativado.", id))
	}

	r.logger.Info("Slot desativado.", map[string]interface{}{"slot_id": id})
	return nil
}
