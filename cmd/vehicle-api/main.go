package main

import (
	"flag"
	"fmt"
	"net/http"

	"github.com/VehicleVault/VehicleVault/internal/catalog"
	"github.com/VehicleVault/VehicleVault/internal/common/config"
	"github.com/VehicleVault/VehicleVault/internal/common/db"
	"github.com/VehicleVault/VehicleVault/internal/common/logger"
	"github.com/VehicleVault/VehicleVault/internal/common/server"
	"github.com/VehicleVault/VehicleVault/internal/common/tracing"
	"github.com/VehicleVault/VehicleVault/internal/user"
	"github.com/go-chi/chi"
)

var (
	configPath      = flag.String("config", "configs/vehicle-api.json", "配置文件路径")
	consulHost      = flag.String("consul-host", "", "从 Consul KV 拉取配置时的 Consul 地址（留空则用本地文件）")
	consulPort      = flag.Int("consul-port", 8500, "Consul 端口")
	consulConfigKey = flag.String("consul-config-key", "vehicle-api/config", "Consul KV 中的配置 key")
)

func main() {
	flag.Parse()

	// 加载配置：优先 Consul KV，未指定时退回本地文件
	var (
		cfg *config.Config
		err error
	)
	if *consulHost != "" {
		cfg, err = config.LoadConfigFromConsulKV(*consulHost, *consulPort, *consulConfigKey)
	} else {
		cfg, err = config.LoadConfig(*configPath)
	}
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	// 初始化链路追踪
	tracer, closer, err := tracing.InitTracer(
		cfg.Server.Name,
		cfg.Jaeger.Endpoint,
		cfg.Jaeger.Sampler,
	)
	if err != nil {
		log.Warnf("failed to init tracer: %v", err)
	} else {
		defer closer.Close()
	}
	_ = tracer

	// 初始化数据库
	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		log.Fatalf("failed to init database: %v", err)
	}
	if err := gormDB.AutoMigrate(
		&user.User{},
		&user.Token{},
		&catalog.Segment{},
		&catalog.Brand{},
		&catalog.Vehicle{},
	); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	// 构建路由表（启动时解析一次，之后只走显式表分发）
	userSrv := user.NewHTTPServer(gormDB, log)
	catalogSrv := catalog.NewHTTPServer(gormDB, log)

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	userSrv.Register(router)
	catalogSrv.Register(router)

	// 启动统一的 HTTP 服务模板；token 解析直连 Identity Store
	if err := server.RunHTTPServer(cfg, log, router, userSrv.Repo()); err != nil {
		log.Fatalf("vehicle-api exited with error: %v", err)
	}
}
