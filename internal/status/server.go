/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package status serves a read-only HTTP view of the supervised processes.
// status 包提供被监管进程的只读 HTTP 视图。
package status

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/drawguess/devrun/internal/process"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// ProcessSource is the part of the process manager the server reads from
// ProcessSource 是服务器读取的进程管理器接口
type ProcessSource interface {
	ListProcesses() []*process.ProcessInfo
	GetStatus(name string) (*process.ProcessInfo, error)
}

// Server is the status HTTP server.
// Server 是状态 HTTP 服务器。
type Server struct {
	engine *gin.Engine
	srv    *http.Server
	logger *zap.Logger
	addr   net.Addr
}

// NewServer builds the router for the given process source
// NewServer 为给定的进程源构建路由
func NewServer(serviceName, sessionID string, procs ProcessSource, zl *zap.Logger) *Server {
	if zl == nil {
		zl = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName), loggerMiddleware(zl))

	h := &handler{procs: procs, sessionID: sessionID}
	apiV1Router := r.Group("/api/v1")
	{
		apiV1Router.GET("/health", h.Health)
		apiV1Router.GET("/processes", h.ListProcesses)
		apiV1Router.GET("/processes/:name", h.GetProcess)
	}

	return &Server{engine: r, logger: zl}
}

// Handler exposes the router, mainly for tests
// Handler 暴露路由，主要用于测试
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on addr and serves in the background. It returns once the
// listener is bound.
// Start 在 addr 上监听并在后台提供服务，绑定完成后即返回。
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.addr = ln.Addr()
	s.srv = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status server stopped / 状态服务器已停止", zap.Error(err))
		}
	}()
	s.logger.Info("Status server listening / 状态服务器已启动", zap.String("addr", s.addr.String()))
	return nil
}

// Addr returns the bound address, or nil before Start
// Addr 返回绑定的地址，Start 之前为 nil
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Shutdown gracefully stops the server
// Shutdown 优雅地停止服务器
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// loggerMiddleware logs each request at debug level
// loggerMiddleware 以 debug 级别记录每个请求
func loggerMiddleware(zl *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		zl.Debug("HTTP request / HTTP 请求",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
