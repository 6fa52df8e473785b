package domain

import (
	"time"
)

// Product representa um tipo de produto (espécie/cultivar de semente) do catálogo.
// A faixa ideal de temperatura de armazenamento alimenta o Allocation Advisor
// na pontuação de adequação ambiental da câmara.
type Product struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"` // código único do produto no catálogo
	Name          string    `json:"name"`
	Species       string    `json:"species"`
	Description   string    `json:"description"`
	IdealMinTempC float64   `json:"ideal_min_temp_c"`
	IdealMaxTempC float64   `json:"ideal_max_temp_c"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SuitableFor indica se a faixa de temperatura da câmara está contida na
// faixa ideal de armazenamento do produto.
func (p *Product) SuitableFor(c *Chamber) bool {
	return c.MinTempC >= p.IdealMinTempC && c.MaxTempC <= p.IdealMaxTempC
}

// ProductFilter define os parâmetros de busca e paginação do catálogo.
type ProductFilter struct {
	Page       int
	Limit      int
	Name       string
	Code       string
	Species    string
	ActiveOnly bool
}

// Context é uma interface que encapsula o Go context.Context.
// É usado para propagar o timeout e sinais de cancelamento pelas camadas.
// Isso evita a dependência direta do pacote "context".
type Context interface{}
