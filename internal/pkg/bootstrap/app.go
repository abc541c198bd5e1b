// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chomp/internal/pkg/logger"
	"chomp/internal/pkg/tracing"
)

type AppCtx struct {
	Mux *http.ServeMux
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	JaegerEndpoint   string
	RegisterHandlers func(appCtx AppCtx) // 允许每个服务注册自己独特的 HTTP 路由
	// Start 在后台启动服务的消费者/任务。ctx 在进程收到退出信号时被取消。
	Start func(ctx context.Context) error
	// Stop 在关停流程中被调用，用于等待消费者排空。
	Stop func(ctx context.Context)
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	logger.Init(info.ServiceName)

	// 1. 初始化 Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, info.JaegerEndpoint)
	if err != nil {
		log.Fatalf("failed to initialize tracer provider: %v", err)
	}

	// 2. 创建 HTTP Server：健康检查 + 指标是每个服务的标配
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux})
	}
	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: mux}
	go func() {
		log.Printf("%s listening on :%d", info.ServiceName, info.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("could not listen on %s: %v\n", server.Addr, err)
		}
	}()

	// 3. 启动业务任务（消费者循环等）
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if info.Start != nil {
		if err := info.Start(runCtx); err != nil {
			log.Fatalf("failed to start %s: %v", info.ServiceName, err)
		}
	}

	// 4. 阻塞主 goroutine，直到接收到退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutting down service %s...", info.ServiceName)

	// 5. 按顺序执行清理操作 (后进先出)
	cancel()
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if info.Stop != nil {
		info.Stop(ctx)
	}

	// 关闭 Tracer Provider，确保所有缓冲的 trace 都被发送出去
	if err := tp.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down tracer provider: %v", err)
	}

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down http server: %v", err)
	}

	log.Printf("Service %s gracefully shut down.", info.ServiceName)
}
