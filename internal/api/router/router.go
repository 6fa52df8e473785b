package router

import (
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	"seedstock/internal/api/lot"
	"seedstock/internal/api/movement"
	"seedstock/internal/api/product"
	"seedstock/internal/api/slot"
	"seedstock/internal/api/user"
	"seedstock/internal/api/withdrawal"
	"seedstock/internal/domain"
	"seedstock/internal/pkg/cache"
	"seedstock/internal/pkg/middleware"
)

// Handlers agrupa os Handlers já inicializados por injeção de dependências.
type Handlers struct {
	Lot        *lot.Handler
	Slot       *slot.Handler
	Movement   *movement.Handler
	Withdrawal *withdrawal.Handler
	Product    *product.Handler
	User       *user.Handler
}

// NewRouter configura e retorna o roteador HTTP principal.
// Rotas públicas: /ping, /swagger, /v1/register e /v1/login. Todo o restante
// exige JWT válido e um dos papéis conhecidos; as pré-condições finas de papel
// (operador solicita, conferente confirma) ficam na camada de serviço.
func NewRouter(h Handlers, tokenSvc middleware.TokenService, cacheClient cache.Client, rateLimit int, ratePeriod time.Duration) http.Handler {

	// Usamos o ServeMux padrão do net/http para roteamento
	mux := http.NewServeMux()

	auth := middleware.NewAuthMiddleware(tokenSvc)
	anyRole := middleware.PermissionMiddleware(domain.RoleAdmin, domain.RoleOperator, domain.RoleConfirmer)

	protected := func(handler http.HandlerFunc) http.HandlerFunc {
		return auth(anyRole(handler))
	}

	// --- 1. Rotas públicas ---
	mux.HandleFunc("/ping", PingHandler)
	mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	mux.HandleFunc("/v1/register", h.User.RegisterUserHandler)
	mux.HandleFunc("/v1/login", h.User.LoginUserHandler)

	// --- 2. Catálogo de Produtos ---
	mux.HandleFunc("/v1/products", protected(h.Product.ProductsHandler))
	mux.HandleFunc("/v1/products/", protected(h.Product.ProductByIDHandler))

	// --- 3. Ciclo de vida dos Lotes ---
	mux.HandleFunc("/v1/lots", protected(h.Lot.LotsHandler))
	mux.HandleFunc("/v1/lots/", protected(h.Lot.LotByIDHandler))

	// --- 4. Slots e Câmaras ---
	mux.HandleFunc("/v1/slots", protected(h.Slot.SlotsHandler))
	mux.HandleFunc("/v1/slots/", protected(h.Slot.SlotByIDHandler))
	mux.HandleFunc("/v1/chambers/", protected(h.Slot.ChambersHandler))

	// --- 5. Livro-razão de Movimentações ---
	mux.HandleFunc("/v1/movements", protected(h.Movement.MovementsHandler))
	mux.HandleFunc("/v1/movements/", protected(h.Movement.MovementByIDHandler))

	// --- 6. Solicitações de Retirada ---
	mux.HandleFunc("/v1/withdrawals", protected(h.Withdrawal.WithdrawalsHandler))
	mux.HandleFunc("/v1/withdrawals/", protected(h.Withdrawal.WithdrawalByIDHandler))

	// Rate limiting global por IP (Redis)
	return middleware.RateLimiter(cacheClient, rateLimit, ratePeriod)(mux)
}

// PingHandler é uma função utilitária para o health check.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}
