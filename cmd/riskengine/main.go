package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"github.com/wyfcoding/pkg/logging"
	"golang.org/x/sync/errgroup"
	gorm_mysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	instrapp "github.com/wyfcoding/riskengine/internal/instrument/application"
	instrdomain "github.com/wyfcoding/riskengine/internal/instrument/domain"
	"github.com/wyfcoding/riskengine/internal/instrument/infrastructure/client"
	instrredis "github.com/wyfcoding/riskengine/internal/instrument/infrastructure/persistence/redis"
	riskapp "github.com/wyfcoding/riskengine/internal/riskmodel/application"
	riskdomain "github.com/wyfcoding/riskengine/internal/riskmodel/domain"
	"github.com/wyfcoding/riskengine/internal/riskmodel/infrastructure/messaging"
	riskmysql "github.com/wyfcoding/riskengine/internal/riskmodel/infrastructure/persistence/mysql"
	riskhttp "github.com/wyfcoding/riskengine/internal/riskmodel/interfaces/http"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/riskengine/config.toml", "path to config file")
	flag.Parse()

	// 1. Config
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Sprintf("read config failed: %v", err))
	}

	// 2. Logger
	logger := logging.NewLogger("riskengine", "main", viper.GetString("log.level"))
	slog.SetDefault(logger.Logger)

	// 3. Database
	var reportRepo riskdomain.ReportRepository
	if dsn := viper.GetString("database.source"); dsn != "" {
		db, err := gorm.Open(gorm_mysql.Open(dsn), &gorm.Config{})
		if err != nil {
			panic(fmt.Sprintf("connect db failed: %v", err))
		}
		if err := db.AutoMigrate(&riskmysql.RiskReportModel{}); err != nil {
			panic(fmt.Sprintf("migrate db failed: %v", err))
		}
		reportRepo = riskmysql.NewReportRepository(db)
	}

	// 4. Infrastructure
	quoteClient := client.NewYahooClient(
		viper.GetString("marketdata.base_url"),
		viper.GetDuration("marketdata.timeout"),
	)

	var historyCache instrdomain.HistoryRepository
	if addr := viper.GetString("redis.addr"); addr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     addr,
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		})
		historyCache = instrredis.NewHistoryRedisRepository(rdb)
	}

	var publisher riskdomain.EventPublisher
	if brokers := viper.GetStringSlice("kafka.brokers"); len(brokers) > 0 {
		publisher = messaging.NewKafkaPublisher(brokers)
	}

	// 5. Application
	historyTTL := viper.GetDuration("marketdata.cache_ttl")
	if historyTTL == 0 {
		historyTTL = time.Hour
	}
	instrumentSvc := instrapp.NewInstrumentService(quoteClient, historyCache, historyTTL)
	riskSvc := riskapp.NewRiskApplicationService(
		instrumentSvc,
		reportRepo,
		publisher,
		viper.GetFloat64("risk.risk_free_rate"),
	)

	// 6. Interfaces
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	riskhttp.NewRiskHandler(riskSvc).RegisterRoutes(&r.RouterGroup)

	sys := r.Group("/sys")
	{
		sys.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "UP"}) })
		sys.GET("/ready", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "READY"}) })
	}
	r.GET("/metrics", func(c *gin.Context) {
		c.String(http.StatusOK, "# HELP riskengine_running Status of risk engine\n# TYPE riskengine_running gauge\nriskengine_running 1")
	})
	pp := r.Group("/debug/pprof")
	{
		pp.GET("/", gin.WrapF(pprof.Index))
		pp.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		pp.GET("/profile", gin.WrapF(pprof.Profile))
		pp.GET("/symbol", gin.WrapF(pprof.Symbol))
		pp.GET("/trace", gin.WrapF(pprof.Trace))
	}

	// 7. Start
	g, ctx := errgroup.WithContext(context.Background())

	httpPort := viper.GetString("server.http_port")
	if httpPort == "" {
		httpPort = "8090"
	}
	server := &http.Server{Addr: ":" + httpPort, Handler: r}
	g.Go(func() error {
		slog.Info("HTTP server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	// 8. Graceful Shutdown
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			slog.Info("shutting down servers...")
		case <-ctx.Done():
			slog.Info("context cancelled, shutting down...")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server exited with error", "error", err)
	}
}
