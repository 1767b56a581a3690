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

// Package supervisor runs the frontend dev server in the background and the
// backend service in the foreground, and reports the backend's outcome.
// supervisor 包在后台运行前端开发服务器，在前台运行后端服务，并报告后端的运行结果。
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/drawguess/devrun/internal/config"
	"github.com/drawguess/devrun/internal/console"
	"github.com/drawguess/devrun/internal/history"
	"github.com/drawguess/devrun/internal/logger"
	"github.com/drawguess/devrun/internal/otel_trace"
	"github.com/drawguess/devrun/internal/process"
	"github.com/drawguess/devrun/internal/status"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var (
	// ErrDirectoryNotFound indicates a service directory is missing
	// ErrDirectoryNotFound 表示服务目录不存在
	ErrDirectoryNotFound = errors.New("directory not found")

	// ErrBackendFailed indicates the backend could not start or exited non-zero
	// ErrBackendFailed 表示后端无法启动或以非零码退出
	ErrBackendFailed = errors.New("backend failed")
)

// Managed process names
// 托管进程名称
const (
	FrontendName = "frontend"
	BackendName  = "backend"
)

// recordTimeout bounds a single history insert
// recordTimeout 限制单次历史记录写入的时间
const recordTimeout = 5 * time.Second

// Supervisor wires configuration, process management and the optional
// history store and status endpoint for one devrun session.
// Supervisor 为一次 devrun 会话组装配置、进程管理以及可选的历史存储与状态接口。
type Supervisor struct {
	cfg     *config.Config
	root    string
	log     *logger.Logger
	console *console.Console
	pm      *process.ProcessManager

	historyMu sync.RWMutex
	history   *history.Store
}

// New creates a Supervisor. The project root is resolved immediately.
// New 创建 Supervisor，并立即解析项目根目录。
func New(cfg *config.Config, log *logger.Logger, con *console.Console) (*Supervisor, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if con == nil {
		con = console.New(nil, nil)
	}

	root, err := ResolveRoot(cfg.Project.Root)
	if err != nil {
		return nil, err
	}

	pm := process.NewProcessManager(process.Options{
		Shell:           cfg.Shell.Path,
		ShellArgs:       cfg.Shell.Args,
		SearchPath:      cfg.Shell.SearchPath,
		Output:          con,
		Logger:          log.Logger,
		GracefulTimeout: cfg.Process.GracefulTimeout,
		DrainTimeout:    cfg.Process.DrainTimeout,
	})

	s := &Supervisor{
		cfg:     cfg,
		root:    root,
		log:     log,
		console: con,
		pm:      pm,
	}
	pm.SetEventHandler(s.onProcessEvent)
	return s, nil
}

// Root returns the resolved project root
// Root 返回解析后的项目根目录
func (s *Supervisor) Root() string {
	return s.root
}

// Manager returns the underlying process manager
// Manager 返回底层的进程管理器
func (s *Supervisor) Manager() *process.ProcessManager {
	return s.pm
}

// ResolveRoot returns the absolute project root. An empty value means the
// directory containing the running executable.
// ResolveRoot 返回项目根目录的绝对路径。为空时取当前可执行文件所在目录。
func ResolveRoot(configured string) (string, error) {
	if configured != "" {
		root, err := filepath.Abs(configured)
		if err != nil {
			return "", fmt.Errorf("failed to resolve project root %s: %w", configured, err)
		}
		return root, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// ResolvePath joins a configured path onto root unless it is absolute
// ResolvePath 将配置的路径拼接到 root 上（绝对路径除外）
func ResolvePath(root, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(root, path)
}

// checkDir fails when path is not an existing directory
// checkDir 在 path 不是已存在的目录时返回错误
func checkDir(role, path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s directory %s", ErrDirectoryNotFound, role, path)
	}
	return nil
}

// Run executes one session: frontend in the background, backend in the
// foreground. It returns nil only when the backend exits with code 0.
// Run 执行一次会话：前端在后台运行，后端在前台运行。仅当后端以退出码 0 退出时返回 nil。
func (s *Supervisor) Run(ctx context.Context) (err error) {
	frontendDir := ResolvePath(s.root, s.cfg.Frontend.Dir)
	backendDir := ResolvePath(s.root, s.cfg.Backend.Dir)

	// Frontend is checked first; nothing starts unless both exist.
	// 先检查前端；两者都存在时才启动任何进程。
	if err := checkDir(FrontendName, frontendDir); err != nil {
		return err
	}
	if err := checkDir(BackendName, backendDir); err != nil {
		return err
	}

	ctx, span := otel_trace.Start(ctx, "devrun.session")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(
		attribute.String("devrun.session_id", s.log.SessionID),
		attribute.String("devrun.root", s.root),
	)

	s.openHistory()
	defer s.closeHistory()

	if s.cfg.Status.Addr != "" {
		srv := status.NewServer(s.cfg.Telemetry.ServiceName, s.log.SessionID, s.pm, s.log.Logger)
		if startErr := srv.Start(s.cfg.Status.Addr); startErr != nil {
			s.log.Warn("Status endpoint disabled / 状态接口未启用", zap.Error(startErr))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}
	}

	stopWatch := s.watchCancel(ctx)
	defer stopWatch()

	if interrupted := s.interrupted(ctx); interrupted != nil {
		return interrupted
	}

	s.console.Banner("启动前端服务 / Starting frontend")
	if startErr := s.pm.StartBackground(ctx, FrontendName, &process.RunParams{
		Command: s.cfg.Frontend.Command,
		WorkDir: frontendDir,
		Echo:    s.cfg.Frontend.Echo,
	}); startErr != nil {
		s.log.Debug("Frontend not started / 前端未启动", zap.Error(startErr))
	}

	if interrupted := s.interrupted(ctx); interrupted != nil {
		return interrupted
	}

	s.console.Banner("启动后端服务 / Starting backend")
	ok := s.pm.RunCommand(ctx, BackendName, &process.RunParams{
		Command: s.cfg.Backend.Command,
		WorkDir: backendDir,
		Echo:    s.cfg.Backend.Echo,
	})

	s.console.Banner("后端服务已退出 / Backend exited")

	if s.cfg.Frontend.StopOnExit {
		s.cleanup()
	}

	if !ok {
		return fmt.Errorf("%w: %s", ErrBackendFailed, s.cfg.Backend.Command)
	}
	return nil
}

// stopTimeout bounds StopAll during cleanup
// stopTimeout 限制清理阶段 StopAll 的时间
func (s *Supervisor) stopTimeout() time.Duration {
	graceful := s.cfg.Process.GracefulTimeout
	if graceful <= 0 {
		graceful = process.DefaultGracefulTimeout
	}
	return graceful + s.cfg.Process.DrainTimeout + time.Second
}

// cleanup stops every tracked process and waits for background runs to finish
// cleanup 停止所有被跟踪的进程并等待后台运行结束
func (s *Supervisor) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout())
	defer cancel()

	if err := s.pm.StopAll(ctx); err != nil {
		s.log.Warn("Failed to stop processes / 停止进程失败", zap.Error(err))
	}
	if err := s.pm.WaitBackground(ctx); err != nil {
		s.log.Warn("Background processes still running / 后台进程仍在运行", zap.Error(err))
	}
}

// interrupted stops anything already started and reports a failure when ctx is done
// interrupted 在 ctx 结束时停止已启动的进程并报告失败
func (s *Supervisor) interrupted(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	s.cleanup()
	return fmt.Errorf("%w: interrupted before start: %w", ErrBackendFailed, ctx.Err())
}

// watchCancel stops all children when ctx is cancelled, e.g. by SIGINT or SIGHUP,
// and closes the manager so nothing registered later can escape.
// Children run in their own process groups and do not see the terminal's signal.
// The returned func ends the watch and waits for it.
// watchCancel 在 ctx 取消（例如 SIGINT 或 SIGHUP）时停止所有子进程，并关闭管理器以免之后注册的进程逃逸。
// 子进程位于独立进程组中，收不到终端信号。返回的函数结束监视并等待其退出。
func (s *Supervisor) watchCancel(ctx context.Context) func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-done:
		case <-ctx.Done():
			s.log.Info("Interrupted, stopping processes / 收到中断，正在停止进程")
			stopCtx, cancel := context.WithTimeout(context.Background(), s.stopTimeout())
			defer cancel()
			if err := s.pm.Close(stopCtx); err != nil {
				s.log.Warn("Failed to stop processes / 停止进程失败", zap.Error(err))
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

// onProcessEvent logs lifecycle events and records finished runs
// onProcessEvent 记录生命周期事件并保存已结束的运行
func (s *Supervisor) onProcessEvent(name string, event process.ProcessEvent, info *process.ProcessInfo) {
	fields := []zap.Field{
		zap.String("name", name),
		zap.String("event", string(event)),
		zap.Int("pid", info.PID),
	}
	if event == process.EventStarted {
		s.log.Debug("Process event / 进程事件", fields...)
		return
	}

	fields = append(fields, zap.Int("exit_code", info.ExitCode))
	if info.LastError != "" {
		fields = append(fields, zap.String("error", info.LastError))
	}
	// Frontend outcomes are never surfaced above debug.
	// 前端的结果只在 debug 级别记录。
	s.log.Debug("Process event / 进程事件", fields...)

	s.record(info)
}

// record persists a finished run when history is enabled
// record 在启用历史记录时保存已结束的运行
func (s *Supervisor) record(info *process.ProcessInfo) {
	s.historyMu.RLock()
	store := s.history
	s.historyMu.RUnlock()
	if store == nil {
		return
	}

	rec := &history.RunRecord{
		SessionID: s.log.SessionID,
		Name:      info.Name,
		Command:   info.Command,
		WorkDir:   info.WorkDir,
		PID:       info.PID,
		Status:    string(info.Status),
		ExitCode:  info.ExitCode,
		Error:     info.LastError,
		StartedAt: info.StartTime,
	}
	if info.EndTime != nil {
		rec.EndedAt = *info.EndTime
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := store.Record(ctx, rec); err != nil {
		s.log.Warn("Failed to record run / 保存运行记录失败", zap.Error(err))
	}
}

// openHistory opens the history store when enabled; failures only disable history
// openHistory 在启用时打开历史存储；失败只会禁用历史记录
func (s *Supervisor) openHistory() {
	if !s.cfg.History.Enabled {
		return
	}
	store, err := history.Open(ResolvePath(s.root, s.cfg.History.Path), s.log.Logger)
	if err != nil {
		s.log.Warn("Run history disabled / 运行历史未启用", zap.Error(err))
		return
	}
	s.historyMu.Lock()
	s.history = store
	s.historyMu.Unlock()
}

func (s *Supervisor) closeHistory() {
	s.historyMu.Lock()
	store := s.history
	s.history = nil
	s.historyMu.Unlock()
	if store != nil {
		_ = store.Close()
	}
}
