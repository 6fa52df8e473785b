package productservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"seedstock/internal/domain"
	apperror "seedstock/internal/errors"
)

// ProductRepository define o contrato (interface) que este Serviço espera
// da camada de Persistência (DB, Cache).
type ProductRepository interface {
	Save(ctx context.Context, product domain.Product) (domain.Product, error)
	FindByID(ctx context.Context, id string) (domain.Product, error)
	FindAll(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	Update(ctx context.Context, product domain.Product) (domain.Product, error)
}

// Service é a estrutura que implementa a lógica de negócio do catálogo de
// produtos (espécies/cultivares de semente).
type Service struct {
	repo ProductRepository
}

// NewService cria e retorna uma nova instância do Serviço de Produto.
func NewService(repo ProductRepository) *Service {
	return &Service{repo: repo}
}

// CreateProduct cadastra um novo produto no catálogo.
func (s *Service) CreateProduct(ctx domain.Context, product domain.Product) (domain.Product, error) {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
	}

	if product.Name == "" || product.Code == "" {
		return domain.Product{}, apperror.NewValidationError("Nome e código são obrigatórios para o produto.")
	}
	if product.Species == "" {
		return domain.Product{}, apperror.NewValidationError("A espécie do produto é obrigatória.")
	}
	if product.IdealMinTempC > product.IdealMaxTempC {
		return domain.Product{}, apperror.NewValidationError("A faixa ideal de temperatura é inválida (mínima maior que máxima).")
	}

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	product.IsActive = true
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	created, err := s.repo.Save(ctxGo, product)
	if err != nil {
		var dbErr *apperror.InternalError
		if errors.As(err, &dbErr) {
			// Chave única violada (código duplicado no catálogo) aparece como
			// erro de DB; traduzimos para conflito de negócio.
			return domain.Product{}, apperror.NewConflictError(
				fmt.Sprintf("O código '%s' já está em uso no catálogo.", product.Code),
			)
		}
		return domain.Product{}, err
	}

	return created, nil
}

// GetProductByID busca um produto do catálogo pelo ID.
func (s *Service) GetProductByID(ctx domain.Context, id string) (domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Product{}, apperror.NewValidationError("O ID do produto deve ser um UUID válido.")
	}

	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
	}

	product, err := s.repo.FindByID(ctxGo, id)
	if err != nil {
		var notFound *apperror.NotFoundError
		if errors.As(err, &notFound) {
			return domain.Product{}, apperror.NewNotFoundError(fmt.Sprintf("Produto com ID %s não foi encontrado.", id))
		}
		return domain.Product{}, err
	}

	return product, nil
}

// ListProducts lista produtos do catálogo conforme o filtro informado.
func (s *Service) ListProducts(ctx domain.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
	}

	return s.repo.FindAll(ctxGo, filter)
}

// UpdateProduct atualiza os dados cadastrais de um produto existente.
func (s *Service) UpdateProduct(ctx domain.Context, product domain.Product) (domain.Product, error) {
	if _, err := uuid.Parse(product.ID); err != nil {
		return domain.Product{}, apperror.NewValidationError("O ID do produto deve ser um UUID válido.")
	}
	if product.Name == "" || product.Code == "" {
		return domain.Product{}, apperror.NewValidationError("Nome e código são obrigatórios para o produto.")
	}
	if product.IdealMinTempC > product.IdealMaxTempC {
		return domain.Product{}, apperror.NewValidationError("A faixa ideal de temperatura é inválida (mínima maior que máxima).")
	}

	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
	}

	product.UpdatedAt = time.Now().UTC()
	updated, err := s.repo.Update(ctxGo, product)
	if err != nil {
		var notFound *apperror.NotFoundError
		if errors.As(err, &notFound) {
			return domain.Product{}, apperror.NewNotFoundError(fmt.Sprintf("Produto com ID %s não foi encontrado.", product.ID))
		}
		return domain.Product{}, err
	}

	return updated, nil
}
