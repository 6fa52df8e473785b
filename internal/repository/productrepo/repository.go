package productrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"seedstock/internal/domain"
	"seedstock/internal/errors"
	"seedstock/internal/pkg/cache"
	"seedstock/internal/pkg/logger"
)

// ProductRepository implementa o acesso ao catálogo de produtos (sementes).
// Leituras por ID usam a estratégia Cache-Aside sobre o Redis: o catálogo é
// consultado pelo Allocation Advisor a cada entrada sem slot explícito.
type ProductRepository struct {
	DB        *sql.DB
	Cache     cache.Client
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewProductRepository cria e retorna uma nova instância do Repositório.
// Aqui injetamos as dependências de Infraestrutura (DB e Cache).
func NewProductRepository(db *sql.DB, cacheClient cache.Client, dbTimeout time.Duration, logger logger.Logger) *ProductRepository {
	return &ProductRepository{
		DB:        db,
		Cache:     cacheClient,
		DBTimeout: dbTimeout,
		logger:    logger,
	}
}

// Chave de cache para produtos.
const productCacheKey = "product:%s"

// TTL do cache de produtos.
const productCacheTTL = 5 * time.Minute

const productColumns = `id, code, name, species, description, ideal_min_temp_c, ideal_max_temp_c,
        is_active, created_at, updated_at`

// Save persiste um novo Produto no banco de dados.
func (r *ProductRepository) Save(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	query := `
        INSERT INTO products (id, code, name, species, description, ideal_min_temp_c, ideal_max_temp_c,
            is_active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.DB.ExecContext(ctxTimeout, query,
		product.ID, product.Code, product.Name, product.Species, product.Description,
		product.IdealMinTempC, product.IdealMaxTempC, product.IsActive,
		product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Falha ao inserir produto no DB.", err)
		return domain.Product{}, errors.NewDBError("Falha ao criar produto", err)
	}

	return product, nil
}

// FindByID busca um produto pelo ID, utilizando a estratégia Cache-Aside.
func (r *ProductRepository) FindByID(ctx context.Context, id string) (domain.Product, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	key := fmt.Sprintf(productCacheKey, id)
	var product domain.Product

	// 1. Tentar obter do Cache (Redis)
	cachedData, err := r.Cache.Get(ctxTimeout, key)
	if err == nil {
		// Cache HIT
		if json.Unmarshal([]byte(cachedData), &product) == nil {
			return product, nil
		}
		// Se a desserialização falhar, continuar para o DB
	} else if err != cache.ErrCacheMiss {
		// Erro real de cache (ex: conexão perdida): logar e continuar para o DB.
		r.logger.Warn("Falha ao ler produto do cache Redis.", map[string]interface{}{"product_id": id, "error": err.Error()})
	}

	// 2. Busca no Banco de Dados (PostgreSQL)
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	err = r.DB.QueryRowContext(ctxTimeout, query, id).Scan(
		&product.ID, &product.Code, &product.Name, &product.Species, &product.Description,
		&product.IdealMinTempC, &product.IdealMaxTempC, &product.IsActive,
		&product.CreatedAt, &product.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return domain.Product{}, errors.NewNotFoundError(fmt.Sprintf("Produto com ID %s não existe na base de dados.", id))
	}
	if err != nil {
		return domain.Product{}, errors.NewDBError("Falha ao buscar produto no DB", err)
	}

	// 3. Popular o cache para futuras requisições (Cache-Aside WRITE).
	if productJSON, marshalErr := json.Marshal(product); marshalErr == nil {
		r.Cache.Set(ctxTimeout, key, productJSON, productCacheTTL)
	}

	return product, nil
}

// FindAll busca produtos conforme o filtro, direto do DB (listas não são cacheadas).
func (r *ProductRepository) FindAll(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	args := []interface{}{}
	i := 1

	if filter.Name != "" {
		query += ` AND name ILIKE $` + strconv.Itoa(i)
		args = append(args, "%"+filter.Name+"%")
		i++
	}
	if filter.Code != "" {
		query += ` AND code = $` + strconv.Itoa(i)
		args = append(args, filter.Code)
		i++
	}
	if filter.Species != "" {
		query += ` AND species = $` + strconv.Itoa(i)
		args = append(args, filter.Species)
		i++
	}
	if filter.ActiveOnly {
		query += ` AND is_active = true`
	}

	query += ` ORDER BY name`

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
		r.logger.Error("Falha ao consultar produtos no DB.", err)
		return nil, errors.NewDBError("Falha ao consultar produtos", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if scanErr := rows.Scan(
			&p.ID, &p.Code, &p.Name, &p.Species, &p.Description,
			&p.IdealMinTempC, &p.IdealMaxTempC, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
		); scanErr != nil {
			return nil, errors.NewDBError("Falha ao ler produto", scanErr)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar produtos", err)
	}
	return products, nil
}

// Update atualiza um produto existente e invalida a entrada de cache.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	product.UpdatedAt = time.Now().UTC()

	query := `
        UPDATE products
        SET code = $1, name = $2, species = $3, description = $4,
            ideal_min_temp_c = $5, ideal_max_temp_c = $6, is_active = $7, updated_at = $8
        WHERE id = $9`

	result, err := r.DB.ExecContext(ctxTimeout, query,
		product.Code, product.Name, product.Species, product.Description,
		product.IdealMinTempC, product.IdealMaxTempC, product.IsActive, product.UpdatedAt,
		product.ID,
	)
	if err != nil {
		r.logger.Error("Falha ao atualizar produto no DB.", err)
		return domain.Product{}, errors.NewDBError("Falha ao atualizar produto", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return domain.Product{}, errors.NewDBError("Falha ao verificar linhas afetadas", err)
	}
	if rowsAffected == 0 {
		return domain.Product{}, errors.NewNotFoundError(fmt.Sprintf("Produto com ID %s não existe na base de dados.", product.ID))
	}

	// Invalidação do cache após o UPDATE.
	r.Cache.Delete(ctxTimeout, fmt.Sprintf(productCacheKey, product.ID))

	return product, nil
}
