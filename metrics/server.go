package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"edgeaudit/logger"
)

// Server Prometheus 指标暴露服务
type Server struct {
	srv *http.Server
}

// NewServer 创建指标服务，listen 形如 ":9090"
func NewServer(listen string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &Server{
		srv: &http.Server{
			Addr:              listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start 启动服务（非阻塞）
func (s *Server) Start() {
	go func() {
		logger.Info("📡 Prometheus 指标服务已启动: %s/metrics", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("指标服务异常退出: %v", err)
		}
	}()
}

// Stop 优雅关闭
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
