package productservice_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"seedstock/internal/domain"
	apperror "seedstock/internal/errors"
	"seedstock/internal/service/productservice"
)

// MockProductRepository é uma implementação mock da interface ProductRepository.
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) Save(ctx context.Context, product domain.Product) (domain.Product, error) {
	args := m.Called(ctx, product)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *MockProductRepository) FindByID(ctx context.Context, id string) (domain.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *MockProductRepository) FindAll(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *MockProductRepository) Update(ctx context.Context, product domain.Product) (domain.Product, error) {
	args := m.Called(ctx, product)
	return args.Get(0).(domain.Product), args.Error(1)
}

func TestCreateProduct_Sucesso(t *testing.T) {
	mockRepo := new(MockProductRepository)
	svc := productservice.NewService(mockRepo)

	product := domain.Product{
		Code:          "MIL-001",
		Name:          "Milho híbrido",
		Species:       "Zea mays",
		IdealMinTempC: -2,
		IdealMaxTempC: 10,
	}

	mockRepo.On("Save", mock.AnythingOfType("context.backgroundCtx"), mock.MatchedBy(func(p domain.Product) bool {
		return p.ID != "" && p.IsActive && p.Code == "MIL-001"
	})).Return(product, nil)

	_, err := svc.CreateProduct(context.Background(), product)

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestCreateProduct_FaixaDeTemperaturaInvalida(t *testing.T) {
	mockRepo := new(MockProductRepository)
	svc := productservice.NewService(mockRepo)

	product := domain.Product{
		Code:          "MIL-001",
		Name:          "Milho híbrido",
		Species:       "Zea mays",
		IdealMinTempC: 10,
		IdealMaxTempC: -2,
	}

	_, err := svc.CreateProduct(context.Background(), product)

	assert.Error(t, err)
	assert.IsType(t, &apperror.ValidationError{}, err)
	mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCreateProduct_CodigoDuplicado(t *testing.T) {
	mockRepo := new(MockProductRepository)
	svc := productservice.NewService(mockRepo)

	product := domain.Product{Code: "MIL-001", Name: "Milho híbrido", Species: "Zea mays", IdealMaxTempC: 10}

	mockRepo.On("Save", mock.AnythingOfType("context.backgroundCtx"), mock.AnythingOfType("domain.Product")).
		Return(domain.Product{}, apperror.NewDBError("Falha ao inserir produto", assert.AnError))

	_, err := svc.CreateProduct(context.Background(), product)

	assert.Error(t, err)
	assert.IsType(t, &apperror.ConflictError{}, err)
	mockRepo.AssertExpectations(t)
}

func TestGetProductByID_NaoEncontrado(t *testing.T) {
	mockRepo := new(MockProductRepository)
	svc := productservice.NewService(mockRepo)

	id := uuid.New().String()
	mockRepo.On("FindByID", mock.AnythingOfType("context.backgroundCtx"), id).
		Return(domain.Product{}, apperror.NewNotFoundError("produto não existe"))

	_, err := svc.GetProductByID(context.Background(), id)

	assert.Error(t, err)
	assert.IsType(t, &apperror.NotFoundError{}, err)
	mockRepo.AssertExpectations(t)
}

func TestGetProductByID_IDInvalido(t *testing.T) {
	mockRepo := new(MockProductRepository)
	svc := productservice.NewService(mockRepo)

	_, err := svc.GetProductByID(context.Background(), "123")

	assert.Error(t, err)
	assert.IsType(t, &apperror.ValidationError{}, err)
	mockRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}
