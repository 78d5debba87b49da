package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/redis/v3"
	"github.com/khanghh/plantgate/internal/audit"
	"github.com/khanghh/plantgate/internal/auth"
	"github.com/khanghh/plantgate/internal/common"
	"github.com/khanghh/plantgate/internal/config"
	"github.com/khanghh/plantgate/internal/extauth"
	"github.com/khanghh/plantgate/internal/handlers/api"
	"github.com/khanghh/plantgate/internal/metrics"
	"github.com/khanghh/plantgate/internal/middlewares"
	"github.com/khanghh/plantgate/internal/store"
	"github.com/khanghh/plantgate/internal/users"
	"github.com/khanghh/plantgate/model"
	"github.com/khanghh/plantgate/params"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"
)

var (
	app       *cli.App
	gitCommit string
	gitDate   string
	gitTag    string
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML config file",
		Value: config.DefaultConfigFile,
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
	algorithmFlag = &cli.StringFlag{
		Name:  "alg",
		Usage: "Signing algorithm (EdDSA, RS256, RS384, RS512, PS256, ES256)",
		Value: config.DefaultJWTAlgorithm,
	}
	privateKeyFlag = &cli.StringFlag{
		Name:  "private-key",
		Usage: "Output path of the private key",
		Value: params.DefaultPrivateKeyPath,
	}
	publicKeyFlag = &cli.StringFlag{
		Name:  "public-key",
		Usage: "Output path of the public key",
		Value: params.DefaultPublicKeyPath,
	}
	cacheKeyFlag = &cli.BoolFlag{
		Name:  "cache-key",
		Usage: "Print a new random cache encryption key instead",
	}
)

func init() {
	app = cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = "plantgate - token issuing and authorization gateway"
	app.Flags = []cli.Flag{
		configFileFlag,
		debugFlag,
	}
	app.Commands = []*cli.Command{
		{
			Name: "version",
			Action: func(ctx *cli.Context) error {
				fmt.Println(params.VersionWithCommit(gitCommit, gitDate))
				return nil
			},
		},
		{
			Name:   "keygen",
			Usage:  "Generate a token signing keypair",
			Flags:  []cli.Flag{algorithmFlag, privateKeyFlag, publicKeyFlag, cacheKeyFlag},
			Action: keygen,
		},
		{
			Name:  "scopes",
			Usage: "Manage permission scopes",
			Subcommands: []*cli.Command{
				{
					Name:   "sync",
					Usage:  "Write the known permission scopes to the database",
					Action: syncScopes,
				},
			},
		},
		{
			Name:   "serve",
			Usage:  "Start the API server",
			Action: run,
		},
	}
	app.Action = run
}

func mustInitLogger(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func mustLoadConfig(ctx *cli.Context) *config.Config {
	config, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		os.Exit(1)
	}
	mustInitLogger(config.Debug || ctx.IsSet(debugFlag.Name))
	return config
}

func mustParseDSN(dsn string) string {
	dsnCfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		slog.Error("Invalid MySQL DSN", "error", err)
		os.Exit(1)
	}
	dsnCfg.ParseTime = true
	if dsnCfg.Loc == nil {
		dsnCfg.Loc = time.UTC
	}
	return dsnCfg.FormatDSN()
}

func mustInitDatabase(dbConfig config.MySQLConfig) *gorm.DB {
	db, err := gorm.Open(mysql.Open(mustParseDSN(dbConfig.Dsn)), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   dbConfig.TablePrefix,
			SingularTable: true,
		},
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if len(dbConfig.Replicas) > 0 {
		replicas := make([]gorm.Dialector, 0, len(dbConfig.Replicas))
		for _, dsn := range dbConfig.Replicas {
			replicas = append(replicas, mysql.Open(mustParseDSN(dsn)))
		}
		resolver := dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		})
		if dbConfig.MaxIdleConns > 0 {
			resolver.SetMaxIdleConns(dbConfig.MaxIdleConns)
		}
		if dbConfig.MaxOpenConns > 0 {
			resolver.SetMaxOpenConns(dbConfig.MaxOpenConns)
		}
		if err := db.Use(resolver); err != nil {
			slog.Error("Failed to register read replicas", "error", err)
			os.Exit(1)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("Failed to get database handle", "error", err)
		os.Exit(1)
	}
	if dbConfig.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
	}
	if dbConfig.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
	}
	if dbConfig.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(dbConfig.ConnMaxIdleTime) * time.Second)
	}
	if dbConfig.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Second)
	}

	if err := model.AutoMigrate(db); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}

	return db
}

// mustInitStorage returns the key-value storage and, when Redis is
// configured, its client for readiness checks.
func mustInitStorage(redisCfg config.RedisConfig) (store.Storage, goredis.UniversalClient) {
	if redisCfg.URL == "" {
		slog.Warn("Redis is not configured, using in-memory storage")
		return store.NewMemoryStorage(), nil
	}
	redisStorage := redis.New(redis.Config{
		URL:           redisCfg.URL,
		PoolSize:      redisCfg.PoolSize,
		IsClusterMode: redisCfg.ClusterMode,
	})
	return store.NewRedisStorage(redisStorage.Conn()), redisStorage.Conn()
}

func mustInitKeys(jwtCfg config.JWTConfig) *auth.Keys {
	keys, err := auth.LoadKeys(auth.KeyConfig{
		Algorithm:      jwtCfg.Algorithm,
		PrivateKey:     jwtCfg.PrivateKey,
		PublicKey:      jwtCfg.PublicKey,
		PrivateKeyPath: jwtCfg.PrivateKeyPath,
		PublicKeyPath:  jwtCfg.PublicKeyPath,
	})
	if err != nil {
		slog.Error("Failed to load signing keys", "error", err)
		os.Exit(1)
	}
	return keys
}

func mustInitCacheCipher(cacheKey string) *common.CacheCipher {
	cipher, err := common.NewCacheCipherFromBase64(cacheKey)
	if err != nil {
		slog.Error("Invalid cache key", "error", err)
		os.Exit(1)
	}
	return cipher
}

func mustInitTokenCache(extCfg config.ExternalConfig, credentialStore users.CredentialStore, cipher *common.CacheCipher) *extauth.TokenCache {
	privateKey := []byte(extCfg.PrivateKey)
	if len(privateKey) == 0 {
		var err error
		if privateKey, err = os.ReadFile(extCfg.PrivateKeyPath); err != nil {
			slog.Error("Failed to read external service key", "path", extCfg.PrivateKeyPath, "error", err)
			os.Exit(1)
		}
	}
	provider := extauth.NewJWTBearerProvider(extauth.ProviderConfig{
		LoginURL:   extCfg.LoginURL,
		ClientID:   extCfg.ClientID,
		PrivateKey: privateKey,
		HTTPClient: &http.Client{Timeout: extCfg.HTTPTimeout},
	})
	return extauth.NewTokenCache(credentialStore, cipher, provider, extauth.CacheConfig{
		InstanceURL: extCfg.InstanceURL,
		TTL:         extCfg.CacheTTL,
	})
}

func mustLoadScopeMap(ctx context.Context, credentialStore users.CredentialStore) auth.ScopeMap {
	scopes, err := auth.LoadScopeMap(ctx, credentialStore)
	if err != nil {
		slog.Error("Permission scopes do not match the database, run `scopes sync`", "error", err)
		os.Exit(1)
	}
	return scopes
}

func mustInitMetrics() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := metrics.Register(reg); err != nil {
		slog.Error("Failed to register metrics", "error", err)
		os.Exit(1)
	}
	return reg
}

func setupAPIRoutes(
	router fiber.Router,
	verifier *auth.Verifier,
	tokenService *auth.TokenService,
	scopes auth.ScopeMap,
	tokenCache *extauth.TokenCache) {

	// handlers
	var (
		tokenHandler = api.NewTokenHandler(tokenService)
		userHandler  = api.NewUserHandler(scopes)
	)

	// routes
	router.Post("/token", tokenHandler.PostToken)
	router.Post("/token/refresh", tokenHandler.PostRefresh)
	router.Get("/users/me", middlewares.RequireScopes(verifier, auth.ScopeDefault), userHandler.GetMe)
	if tokenCache != nil {
		externalHandler := api.NewExternalHandler(tokenCache)
		router.All("/external/*", middlewares.RequireScopes(verifier, auth.ScopeDefault), externalHandler.Forward)
	}
}

func run(ctx *cli.Context) error {
	config := mustLoadConfig(ctx)

	db := mustInitDatabase(config.MySQL)
	storage, redisClient := mustInitStorage(config.Redis)
	registry := mustInitMetrics()
	audit.Initialize(audit.NewAuditEventRepository(db))

	credentialStore := users.NewCredentialStore(db)
	scopes := mustLoadScopeMap(ctx.Context, credentialStore)
	keys := mustInitKeys(config.JWT)
	cipher := mustInitCacheCipher(config.CacheKey)

	// services
	tokenOpts := []auth.Option{auth.WithTokenTTL(config.JWT.AccessTokenTTL, config.JWT.RefreshTokenTTL)}
	if config.JWT.RefreshTokenRotation {
		tokenOpts = append(tokenOpts, auth.WithRefreshTokenRotation(storage))
	}
	var (
		tokenService = auth.NewTokenService(keys, credentialStore, tokenOpts...)
		verifier     = auth.NewVerifier(keys, credentialStore)
		tokenCache   *extauth.TokenCache
	)
	if config.External.Enabled() {
		tokenCache = mustInitTokenCache(config.External, credentialStore, cipher)
	} else {
		slog.Info("External identity provider is not configured, forwarding is disabled")
	}

	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		BodyLimit:     params.ServerBodyLimit,
		IdleTimeout:   params.ServerIdleTimeout,
		ReadTimeout:   params.ServerReadTimeout,
		WriteTimeout:  params.ServerWriteTimeout,
		ErrorHandler:  middlewares.ErrorHandler,
	})

	router.Use(recover.New())
	router.Use(logger.New())
	router.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(config.AllowOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	setupAPIRoutes(router, verifier, tokenService, scopes, tokenCache)

	healthCheckCtx, term := context.WithCancel(ctx.Context)
	done := make(chan struct{})
	healthHandler := common.NewHealthCheckHandler(redisClient, db, metrics.Handler(registry))
	go common.StartHealthCheckServer(healthCheckCtx, done, config.HealthAddr, healthHandler)
	defer func() {
		term()
		<-done
	}()
	slog.Info("Starting plantgate", "version", params.VersionWithCommit(gitCommit, gitDate), "tag", gitTag, "addr", config.ListenAddr)
	return router.Listen(config.ListenAddr)
}

func keygen(ctx *cli.Context) error {
	if ctx.Bool(cacheKeyFlag.Name) {
		key, err := common.GenerateCacheKey(32)
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	}

	method, err := auth.ParseSigningMethod(ctx.String(algorithmFlag.Name))
	if err != nil {
		return err
	}
	privateKeyPath := ctx.String(privateKeyFlag.Name)
	publicKeyPath := ctx.String(publicKeyFlag.Name)
	if _, _, err := auth.GenerateKeys(method, privateKeyPath, publicKeyPath); err != nil {
		return err
	}
	fmt.Printf("Generated %s keypair: %s, %s\n", method.Alg(), privateKeyPath, publicKeyPath)
	return nil
}

func syncScopes(ctx *cli.Context) error {
	config := mustLoadConfig(ctx)
	db := mustInitDatabase(config.MySQL)
	credentialStore := users.NewCredentialStore(db)

	records := auth.ScopeRecords()
	if err := credentialStore.UpsertSecurityScopes(ctx.Context, records); err != nil {
		return err
	}
	for _, record := range records {
		slog.Info("Synced permission scope", "id", record.ID, "name", record.Name)
	}
	if _, err := auth.LoadScopeMap(ctx.Context, credentialStore); err != nil {
		return err
	}
	return nil
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
