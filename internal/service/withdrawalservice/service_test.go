package withdrawalservice_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"seedstock/internal/domain"
	apperror "seedstock/internal/errors"
	"seedstock/internal/pkg/logger"
	"seedstock/internal/service/withdrawalservice"
)

// MockWithdrawalRepository é uma implementação mock da interface WithdrawalRepository.
type MockWithdrawalRepository struct {
	mock.Mock
}

func (m *MockWithdrawalRepository) Request(ctx context.Context, req domain.CreateWithdrawalRequest, principal domain.Principal) (domain.WithdrawalRequest, error) {
	args := m.Called(ctx, req, principal)
	return args.Get(0).(domain.WithdrawalRequest), args.Error(1)
}

func (m *MockWithdrawalRepository) Confirm(ctx context.Context, requestID, notes string, principal domain.Principal) (domain.WithdrawalRequest, domain.Lot, error) {
	args := m.Called(ctx, requestID, notes, principal)
	return args.Get(0).(domain.WithdrawalRequest), args.Get(1).(domain.Lot), args.Error(2)
}

func (m *MockWithdrawalRepository) Cancel(ctx context.Context, requestID, reason string, principal domain.Principal) (domain.WithdrawalRequest, domain.Lot, error) {
	args := m.Called(ctx, requestID, reason, principal)
	return args.Get(0).(domain.WithdrawalRequest), args.Get(1).(domain.Lot), args.Error(2)
}

func (m *MockWithdrawalRepository) FindByID(ctx context.Context, id string) (domain.WithdrawalRequest, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.WithdrawalRequest), args.Error(1)
}

func (m *MockWithdrawalRepository) FindAll(ctx context.Context, filter domain.WithdrawalFilter) ([]domain.WithdrawalRequest, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.WithdrawalRequest), args.Error(1)
}

func newWithdrawalService(t *testing.T) (*withdrawalservice.Service, *MockWithdrawalRepository) {
	t.Helper()
	mockRepo := new(MockWithdrawalRepository)
	svc := withdrawalservice.NewService(mockRepo, logger.NewLogger("debug"))
	return svc, mockRepo
}

func operator() domain.Principal {
	return domain.Principal{UserID: uuid.New().String(), Role: domain.RoleOperator}
}

func confirmer() domain.Principal {
	return domain.Principal{UserID: uuid.New().String(), Role: domain.RoleConfirmer}
}

// TestRequest_Sucesso cobre o primeiro passo do fluxo em duas partes.
func TestRequest_Sucesso(t *testing.T) {
	svc, mockRepo := newWithdrawalService(t)

	lotID := uuid.New().String()
	principal := operator()
	req := domain.CreateWithdrawalRequest{
		LotID:   lotID,
		Kind:    domain.WithdrawalTotal,
		Reason:  "Expedição para cliente",
		Version: 2,
	}

	expected := domain.WithdrawalRequest{
		ID:          uuid.New().String(),
		LotID:       lotID,
		RequestedBy: principal.UserID,
		Status:      domain.WithdrawalPending,
		Kind:        domain.WithdrawalTotal,
	}
	mockRepo.On("Request", mock.AnythingOfType("context.backgroundCtx"), req, principal).
		Return(expected, nil)

	request, err := svc.Request(context.Background(), req, principal)

	assert.NoError(t, err)
	assert.Equal(t, domain.WithdrawalPending, request.Status)
	assert.Equal(t, principal.UserID, request.RequestedBy)
	mockRepo.AssertExpectations(t)
}

// TestRequest_ConferenteNaoSolicita verifica a pré-condição de papel do
// primeiro passo.
func TestRequest_ConferenteNaoSolicita(t *testing.T) {
	svc, mockRepo := newWithdrawalService(t)

	req := domain.CreateWithdrawalRequest{
		LotID:   uuid.New().String(),
		Kind:    domain.WithdrawalTotal,
		Reason:  "Expedição",
		Version: 1,
	}
	_, err := svc.Request(context.Background(), req, confirmer())

	assert.Error(t, err)
	assert.IsType(t, &apperror.UnauthorizedError{}, err)
	mockRepo.AssertNotCalled(t, "Request", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequest_ParcialExigeQuantidade(t *testing.T) {
	svc, mockRepo := newWithdrawalService(t)

	req := domain.CreateWithdrawalRequest{
		LotID:   uuid.New().String(),
		Kind:    domain.WithdrawalPartial,
		Reason:  "Amostra de laboratório",
		Version: 1,
	}
	_, err := svc.Request(context.Background(), req, operator())

	assert.Error(t, err)
	assert.IsType(t, &apperror.ValidationError{}, err)
	mockRepo.AssertNotCalled(t, "Request", mock.Anything, mock.Anything, mock.Anything)
}

// TestRequest_SolicitacaoDuplicada verifica que a regra "no máximo uma
// PENDENTE por lote" chega intacta do repositório.
func TestRequest_SolicitacaoDuplicada(t *testing.T) {
	svc, mockRepo := newWithdrawalService(t)

	req := domain.CreateWithdrawalRequest{
		LotID:   uuid.New().String(),
		Kind:    domain.WithdrawalTotal,
		Reason:  "Expedição",
		Version: 1,
	}
	mockRepo.On("Request", mock.AnythingOfType("context.backgroundCtx"), req, mock.AnythingOfType("domain.Principal")).
		Return(domain.WithdrawalRequest{}, apperror.NewDuplicateRequestError("Já existe solicitação PENDENTE para o lote."))

	_, err := svc.Request(context.Background(), req, operator())

	assert.Error(t, err)
	assert.IsType(t, &apperror.DuplicateRequestError{}, err)
	mockRepo.AssertExpectations(t)
}

// TestConfirm_Sucesso cobre o segundo passo: conferente distinto confirma e o
// lote finaliza como RETIRADO.
func TestConfirm_Sucesso(t *testing.T) {
	svc, mockRepo := newWithdrawalService(t)

	requestID := uuid.New().String()
	principal := confirmer()

	resolved := domain.WithdrawalRequest{
		ID:          requestID,
		Status:      domain.WithdrawalConfirmed,
		ConfirmedBy: &principal.UserID,
	}
	finalLot := domain.Lot{ID: uuid.New().String(), State: domain.StateRetirado, Quantity: 0}

	mockRepo.On("Confirm", mock.AnythingOfType("context.backgroundCtx"), requestID, "Conferido na doca 3", principal).
		Return(resolved, finalLot, nil)

	request, lot, err := svc.Confirm(context.Background(), requestID,
		domain.ResolveWithdrawalRequest{Notes: "Conferido na doca 3"}, principal)

	assert.NoError(t, err)
	assert.Equal(t, domain.WithdrawalConfirmed, request.Status)
	assert.Equal(t, domain.StateRetirado, lot.State)
	mockRepo.AssertExpectations(t)
}

// TestConfirm_MesmoUsuario verifica que o veto solicitante == conferente,
// aplicado na camada de persistência, chega intacto.
func TestConfirm_MesmoUsuario(t *testing.T) {
	svc, mockRepo := newWithdrawalService(t)

	requestID := uuid.New().String()
	principal := confirmer()

	mockRepo.On("Confirm", mock.AnythingOfType("context.backgroundCtx"), requestID, "", principal).
		Return(domain.WithdrawalRequest{}, domain.Lot{},
			apperror.NewUnauthorizedError("O conferente da retirada deve ser diferente do solicitante."))

	_, _, err := svc.Confirm(context.Background(), requestID, domain.ResolveWithdrawalRequest{}, principal)

	assert.Error(t, err)
	assert.IsType(t, &apperror.UnauthorizedError{}, err)
	assert.Contains(t, err.Error(), "diferente do solicitante")
	mockRepo.AssertExpectations(t)
}

func TestConfirm_OperadorNaoConfirma(t *testing.T) {
	svc, mockRepo := newWithdrawalService(t)

	_, _, err := svc.Confirm(context.Background(), uuid.New().String(), domain.ResolveWithdrawalRequest{}, operator())

	assert.Error(t, err)
	assert.IsType(t, &apperror.UnauthorizedError{}, err)
	mockRepo.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestCancel_ReverteParaLocado verifica o caminho de cancelamento: a
// solicitação fecha como CANCELADO e o lote volta a LOCADO.
func TestCancel_ReverteParaLocado(t *testing.T) {
	svc, mockRepo := newWithdrawalService(t)

	requestID := uuid.New().String()
	principal := confirmer()

	resolved := domain.WithdrawalRequest{ID: requestID, Status: domain.WithdrawalCanceled}
	revertedLot := domain.Lot{ID: uuid.New().String(), State: domain.StateLocado}

	mockRepo.On("Cancel", mock.AnythingOfType("context.backgroundCtx"), requestID, "Pedido do cliente cancelado", principal).
		Return(resolved, revertedLot, nil)

	request, lot, err := svc.Cancel(context.Background(), requestID,
		domain.ResolveWithdrawalRequest{Reason: "Pedido do cliente cancelado"}, principal)

	assert.NoError(t, err)
	assert.Equal(t, domain.WithdrawalCanceled, request.Status)
	assert.Equal(t, domain.StateLocado, lot.State)
	mockRepo.AssertExpectations(t)
}

func TestRequest_TipoInvalido(t *testing.T) {
	svc, _ := newWithdrawalService(t)

	req := domain.CreateWithdrawalRequest{
		LotID:   uuid.New().String(),
		Kind:    "EXPRESSA",
		Reason:  "Expedição",
		Version: 1,
	}
	_, err := svc.Request(context.Background(), req, operator())

	assert.Error(t, err)
	assert.IsType(t, &apperror.ValidationError{}, err)
}
