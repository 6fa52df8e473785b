package lotrepo

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"seedstock/internal/domain"
	"seedstock/internal/pkg/logger"
)

// --- Driver fake: serve linhas fixas e registra a ordem dos FOR UPDATE ---

type fakeConn struct {
	lotSlotID string   // slot atual do lote servido pelo SELECT ... FOR UPDATE de lots
	slotLocks []string // IDs de slot na ordem em que foram travados
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepare não suportado pelo driver de teste")
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Begin() (driver.Tx, error) { return fakeTx{}, nil }

func (c *fakeConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	switch {
	case strings.Contains(query, "SELECT COUNT"):
		return &fakeRows{cols: []string{"count"}, vals: [][]driver.Value{{int64(0)}}}, nil

	case strings.Contains(query, "FROM lots") && strings.Contains(query, "FOR UPDATE"):
		now := time.Now().UTC()
		return &fakeRows{
			cols: []string{
				"id", "product_id", "lot_code", "quantity", "unit_mass_kg", "total_mass_kg",
				"slot_id", "state", "entry_date", "expiration_date", "notes", "version",
				"created_by", "updated_by", "created_at", "updated_at",
			},
			vals: [][]driver.Value{{
				"lote-origem", uuid.New().String(), "L-2026-001", int64(10), 2.5, 25.0,
				c.lotSlotID, "LOCADO", now, nil, "", int64(1),
				"operador", "operador", now, now,
			}},
		}, nil

	case strings.Contains(query, "FROM slots") && strings.Contains(query, "FOR UPDATE"):
		slotID, _ := args[0].Value.(string)
		c.slotLocks = append(c.slotLocks, slotID)
		now := time.Now().UTC()
		return &fakeRows{
			cols: []string{
				"id", "chamber_id", "block", "side", "row_num", "level", "code",
				"max_capacity_kg", "current_load_kg", "is_active", "created_at", "updated_at",
			},
			vals: [][]driver.Value{{
				slotID, uuid.New().String(), int64(1), "E", int64(1), int64(1), "Q1-LE-F1-A1",
				1000.0, 0.0, true, now, now,
			}},
		}, nil
	}
	return nil, fmt.Errorf("consulta inesperada no driver de teste: %s", query)
}

func (c *fakeConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	return driver.RowsAffected(1), nil
}

type fakeTx struct{}

func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }

type fakeRows struct {
	cols []string
	vals [][]driver.Value
	idx  int
}

func (r *fakeRows) Columns() []string { return r.cols }
func (r *fakeRows) Close() error      { return nil }
func (r *fakeRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.vals) {
		return io.EOF
	}
	copy(dest, r.vals[r.idx])
	r.idx++
	return nil
}

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) {
	return nil, fmt.Errorf("open não suportado pelo driver de teste")
}

type fakeConnector struct{ conn *fakeConn }

func (c *fakeConnector) Connect(context.Context) (driver.Conn, error) { return c.conn, nil }
func (c *fakeConnector) Driver() driver.Driver                        { return fakeDriver{} }

type stubAppender struct{}

func (stubAppender) AppendTx(ctx context.Context, tx *sql.Tx, mv domain.Movement) (domain.Movement, error) {
	return mv, nil
}

// TestPartialMove_TravaSlotsEmOrdemDeterministica garante que a movimentação
// parcial trave origem E destino, em ordem de ID, como o Move. Travar só o
// destino deixaria duas movimentações parciais cruzadas se deadlockarem, e o
// aborto do Postgres subiria como erro interno para o chamador.
func TestPartialMove_TravaSlotsEmOrdemDeterministica(t *testing.T) {
	// Origem "slot-z" ordena DEPOIS do destino "slot-a": se a ordem de
	// travamento seguisse a ordem natural (origem antes do destino, ou só o
	// destino), o teste falharia.
	conn := &fakeConn{lotSlotID: "slot-z"}
	db := sql.OpenDB(&fakeConnector{conn: conn})
	defer db.Close()

	repo := NewLotRepository(db, time.Second, stubAppender{}, logger.NewLogger("error"))
	principal := domain.Principal{UserID: uuid.New().String(), Role: domain.RoleOperator}

	origin, fragment, err := repo.PartialMove(context.Background(), "lote-origem", 4, "slot-a", 1, principal)

	assert.NoError(t, err)
	assert.Equal(t, 6, origin.Quantity)
	assert.Equal(t, 4, fragment.Quantity)
	assert.Equal(t, "slot-a", *fragment.SlotID)
	assert.Equal(t, []string{"slot-a", "slot-z"}, conn.slotLocks)
}
