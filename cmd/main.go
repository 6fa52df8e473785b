package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	// Nossos pacotes de infraestrutura e utilitários
	"seedstock/config"
	"seedstock/internal/pkg/cache"
	"seedstock/internal/pkg/database"
	"seedstock/internal/pkg/logger"
	"seedstock/internal/pkg/token"

	// Camadas para Injeção de Dependências
	"seedstock/internal/api/lot"
	"seedstock/internal/api/movement"
	"seedstock/internal/api/product"
	"seedstock/internal/api/router"
	"seedstock/internal/api/slot"
	"seedstock/internal/api/user"
	"seedstock/internal/api/withdrawal"
	"seedstock/internal/repository/lotrepo"
	"seedstock/internal/repository/movementrepo"
	"seedstock/internal/repository/productrepo"
	"seedstock/internal/repository/slotrepo"
	"seedstock/internal/repository/userrepo"
	"seedstock/internal/repository/withdrawalrepo"
	"seedstock/internal/service/allocservice"
	"seedstock/internal/service/lotservice"
	"seedstock/internal/service/movementservice"
	"seedstock/internal/service/productservice"
	"seedstock/internal/service/slotservice"
	"seedstock/internal/service/userservice"
	"seedstock/internal/service/withdrawalservice"
)

func main() {
	// 1. Configuração e Inicialização
	log.Println("⚡ Inicializando serviço SeedStock...")
	// O godotenv.Load() procura por um arquivo chamado .env na raiz.
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ Aviso: Arquivo .env não encontrado ou erro de leitura. Carregando configs apenas do ambiente do sistema.")
	}

	cfg := config.LoadConfig()
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("Configurações carregadas.", nil)

	// 2. Conexão com Recursos de Infraestrutura

	// A. Banco de Dados (PostgreSQL)
	db, err := database.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Falha ao conectar ao banco de dados.", err)
	}
	defer db.Close()
	log.Info("Conexão PostgreSQL estabelecida.", nil)

	// B. Cache (Redis)
	cacheClient := cache.NewRedisClient(cfg.RedisAddr)
	log.Info("Conexão Redis estabelecida.", nil)

	// C. Serviço de Tokens (JWT)
	tokenSvc := token.NewService(cfg.JWTSecretKey, cfg.TokenExpiry)
	log.Debug("Serviço de Tokens JWT inicializado.", nil)

	// 3. INJEÇÃO DE DEPENDÊNCIAS (Montagem da Clean Architecture)
	// Ordem: Repository -> Service -> Handler

	// A. Repositórios (Camada de Acesso a Dados)
	// O repositório de movimentações participa das transações dos repositórios
	// de lote e retirada (tríade atômica: lote + carga do slot + movimentação).
	movementRepo := movementrepo.NewMovementRepository(db, cfg.DBTimeout, cfg.MovementDupWindow, log)
	lotRepo := lotrepo.NewLotRepository(db, cfg.DBTimeout, movementRepo, log)
	withdrawalRepo := withdrawalrepo.NewWithdrawalRepository(db, cfg.DBTimeout, movementRepo, log)
	slotRepo := slotrepo.NewSlotRepository(db, cfg.DBTimeout, log)
	productRepo := productrepo.NewProductRepository(db, cacheClient, cfg.DBTimeout, log)
	userRepo := userrepo.NewUserRepository(db, cfg.DBTimeout, log)
	log.Debug("Repositórios inicializados.", nil)

	// B. Serviços (Camada de Lógica de Negócio)
	advisorSvc := allocservice.NewService(slotRepo, log)
	lotSvc := lotservice.NewService(lotRepo, productRepo, advisorSvc, log)
	withdrawalSvc := withdrawalservice.NewService(withdrawalRepo, log)
	movementSvc := movementservice.NewService(movementRepo, log)
	slotSvc := slotservice.NewService(slotRepo, log)
	productSvc := productservice.NewService(productRepo)
	userSvc := userservice.NewService(userRepo, tokenSvc)
	log.Debug("Serviços inicializados.", nil)

	// C. Handlers (Camada de Apresentação)
	handlers := router.Handlers{
		Lot:        lot.NewHandler(lotSvc, log),
		Slot:       slot.NewHandler(slotSvc, log),
		Movement:   movement.NewHandler(movementSvc, log),
		Withdrawal: withdrawal.NewHandler(withdrawalSvc, log),
		Product:    product.NewHandler(productSvc, log),
		User:       user.NewHandler(userSvc, log),
	}
	log.Debug("Handlers inicializados.", nil)

	// 4. Configuração e Início do Roteador/Servidor
	r := router.NewRouter(handlers, tokenSvc, cacheClient, cfg.RateLimitMaxRequests, cfg.RateLimitPeriod)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 5. Execução e Graceful Shutdown
	go func() {
		log.Info("Servidor SeedStock ouvindo na porta", map[string]interface{}{"port": cfg.Port})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Servidor falhou: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Sinal de encerramento recebido. Desligando servidor...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Desligamento do servidor forçado.", err)
	}

	log.Info("Servidor encerrado com sucesso.", nil)
}
