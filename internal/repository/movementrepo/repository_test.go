package movementrepo

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
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"seedstock/internal/domain"
	"seedstock/internal/errors"
	"seedstock/internal/pkg/logger"
)

// --- Driver fake: captura os valores enviados ao banco sem abrir conexão ---

type execCall struct {
	query string
	args  []driver.NamedValue
}

type fakeConn struct {
	execs []execCall
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepare não suportado pelo driver de teste")
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Begin() (driver.Tx, error) { return fakeTx{}, nil }

func (c *fakeConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if strings.Contains(query, "SELECT COUNT") {
		return &fakeRows{cols: []string{"count"}, vals: [][]driver.Value{{int64(0)}}}, nil
	}
	return nil, fmt.Errorf("consulta inesperada no driver de teste: %s", query)
}

func (c *fakeConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	recorded := make([]driver.NamedValue, len(args))
	copy(recorded, args)
	c.execs = append(c.execs, execCall{query: query, args: recorded})
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

// TestAppendTx_SemCorrelacaoPersisteStringVazia garante que movimentações do
// motor de ciclo de vida (que não carregam correlação) cheguem ao driver com
// string vazia no correlation_id. A coluna é NOT NULL: enviar NULL derrubaria
// o INSERT e, com ele, a transação inteira da operação.
func TestAppendTx_SemCorrelacaoPersisteStringVazia(t *testing.T) {
	conn := &fakeConn{}
	db := sql.OpenDB(&fakeConnector{conn: conn})
	defer db.Close()

	repo := NewMovementRepository(db, time.Second, 2*time.Minute, logger.NewLogger("error"))

	tx, err := db.Begin()
	assert.NoError(t, err)

	destSlot := uuid.New().String()
	_, err = repo.AppendTx(context.Background(), tx, domain.Movement{
		LotID:       uuid.New().String(),
		Kind:        domain.MovementEntry,
		DestSlotID:  &destSlot,
		Quantity:    5,
		MassKg:      125,
		PerformedBy: uuid.New().String(),
		Reason:      "Entrada de lote",
		IsSystem:    true,
	})
	assert.NoError(t, err)

	assert.Len(t, conn.execs, 1)
	insert := conn.execs[0]
	assert.Contains(t, insert.query, "INSERT INTO movements")
	// correlation_id é o 11º parâmetro do INSERT.
	assert.Equal(t, "", insert.args[10].Value)
}

func TestAppendTx_CorrelacaoPreenchidaEPropagada(t *testing.T) {
	conn := &fakeConn{}
	db := sql.OpenDB(&fakeConnector{conn: conn})
	defer db.Close()

	repo := NewMovementRepository(db, time.Second, 2*time.Minute, logger.NewLogger("error"))

	tx, err := db.Begin()
	assert.NoError(t, err)

	correlationID := uuid.New().String()
	_, err = repo.AppendTx(context.Background(), tx, domain.Movement{
		LotID:         uuid.New().String(),
		Kind:          domain.MovementExit,
		Quantity:      3,
		MassKg:        75,
		PerformedBy:   uuid.New().String(),
		Reason:        "Retirada confirmada",
		IsSystem:      true,
		CorrelationID: correlationID,
	})
	assert.NoError(t, err)

	assert.Len(t, conn.execs, 1)
	assert.Equal(t, correlationID, conn.execs[0].args[10].Value)
}

func TestTranslateInsertError_ReferenciaInexistente(t *testing.T) {
	err := translateInsertError(&pq.Error{Code: "23503", Constraint: "movements_lot_id_fkey"})

	assert.IsType(t, &errors.ValidationError{}, err)
}

func TestTranslateInsertError_ErroGenericoViraInterno(t *testing.T) {
	err := translateInsertError(fmt.Errorf("conexão perdida"))

	assert.IsType(t, &errors.InternalError{}, err)
}
