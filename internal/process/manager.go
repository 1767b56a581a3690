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

// Package process provides child process supervision for devrun.
// process 包为 devrun 提供子进程监管功能。
//
// This package provides:
// 此包提供：
// - Foreground and background command execution / 前台与后台命令执行
// - Line-based output echo with per-directory policy / 按目录策略的逐行输出回显
// - Process status tracking and lifecycle events / 进程状态跟踪与生命周期事件
// - Graceful group shutdown with timeout / 带超时的进程组优雅关闭
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/drawguess/devrun/internal/config"
	"github.com/drawguess/devrun/internal/console"
	"github.com/drawguess/devrun/internal/otel_trace"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Common errors for process management
// 进程管理的常见错误
var (
	// ErrProcessNotFound indicates the process was not found
	// ErrProcessNotFound 表示进程未找到
	ErrProcessNotFound = errors.New("process not found")

	// ErrProcessAlreadyRunning indicates the process is already running
	// ErrProcessAlreadyRunning 表示进程已在运行
	ErrProcessAlreadyRunning = errors.New("process is already running")

	// ErrProcessNotRunning indicates the process is not running
	// ErrProcessNotRunning 表示进程未运行
	ErrProcessNotRunning = errors.New("process is not running")

	// ErrStartFailed indicates the process failed to start
	// ErrStartFailed 表示进程启动失败
	ErrStartFailed = errors.New("process failed to start")

	// ErrNonZeroExit indicates the process exited with a non-zero code
	// ErrNonZeroExit 表示进程以非零退出码退出
	ErrNonZeroExit = errors.New("process exited with non-zero code")

	// ErrManagerClosed indicates the manager no longer accepts processes
	// ErrManagerClosed 表示管理器不再接受新进程
	ErrManagerClosed = errors.New("process manager is closed")

	// ErrEmptyCommand indicates no command line was given
	// ErrEmptyCommand 表示未提供命令行
	ErrEmptyCommand = errors.New("command is empty")
)

// ProcessStatus represents the status of a managed process
// ProcessStatus 表示托管进程的状态
type ProcessStatus string

const (
	// StatusStarting indicates the process is starting
	// StatusStarting 表示进程正在启动
	StatusStarting ProcessStatus = "starting"

	// StatusRunning indicates the process is running
	// StatusRunning 表示进程正在运行
	StatusRunning ProcessStatus = "running"

	// StatusExited indicates the process exited with code 0
	// StatusExited 表示进程以退出码 0 退出
	StatusExited ProcessStatus = "exited"

	// StatusFailed indicates the process could not start or exited non-zero
	// StatusFailed 表示进程无法启动或以非零码退出
	StatusFailed ProcessStatus = "failed"

	// StatusStopped indicates the process was stopped by the manager
	// StatusStopped 表示进程被管理器停止
	StatusStopped ProcessStatus = "stopped"
)

// Default configuration values
// 默认配置值
const (
	// DefaultGracefulTimeout is the default wait between SIGTERM and SIGKILL
	// DefaultGracefulTimeout 是 SIGTERM 与 SIGKILL 之间的默认等待时间
	DefaultGracefulTimeout = 5 * time.Second

	// DefaultDrainTimeout bounds the wait for output after the child exits
	// DefaultDrainTimeout 限制子进程退出后等待输出读取完成的时间
	DefaultDrainTimeout = 2 * time.Second

	// exitCodeUnknown is reported when no exit status is available
	// exitCodeUnknown 在无法获得退出状态时使用
	exitCodeUnknown = -1
)

// ManagedProcess represents a process managed by the ProcessManager
// ManagedProcess 表示由 ProcessManager 管理的进程
type ManagedProcess struct {
	Name      string
	Command   string
	WorkDir   string
	Echo      bool
	PID       int
	Status    ProcessStatus
	StartTime time.Time
	EndTime   time.Time
	ExitCode  int
	LastError string

	// done is closed once the process has been fully reaped
	// done 在进程被完全回收后关闭
	done chan struct{}

	// stopRequested marks a termination initiated by the manager
	// stopRequested 标记由管理器发起的终止
	stopRequested bool

	// mu protects the process state
	// mu 保护进程状态
	mu sync.RWMutex
}

// snapshot copies the process state; callers must hold mu
// snapshot 复制进程状态；调用者必须持有 mu
func (p *ManagedProcess) snapshot() *ProcessInfo {
	info := &ProcessInfo{
		Name:      p.Name,
		Command:   p.Command,
		WorkDir:   p.WorkDir,
		Echo:      p.Echo,
		PID:       p.PID,
		Status:    p.Status,
		StartTime: p.StartTime,
		ExitCode:  p.ExitCode,
		LastError: p.LastError,
	}
	if !p.EndTime.IsZero() {
		end := p.EndTime
		info.EndTime = &end
		info.Uptime = end.Sub(p.StartTime)
	} else if !p.StartTime.IsZero() {
		info.Uptime = time.Since(p.StartTime)
	}
	return info
}

// ProcessInfo contains information about a process for external use
// ProcessInfo 包含用于外部使用的进程信息
type ProcessInfo struct {
	Name      string        `json:"name"`
	Command   string        `json:"command"`
	WorkDir   string        `json:"work_dir"`
	Echo      bool          `json:"echo"`
	PID       int           `json:"pid"`
	Status    ProcessStatus `json:"status"`
	StartTime time.Time     `json:"start_time"`
	EndTime   *time.Time    `json:"end_time,omitempty"`
	Uptime    time.Duration `json:"uptime"`
	ExitCode  int           `json:"exit_code"`
	LastError string        `json:"last_error,omitempty"`
}

// Succeeded reports whether the process ran to completion with code 0
// Succeeded 报告进程是否以退出码 0 正常结束
func (i *ProcessInfo) Succeeded() bool {
	return i != nil && i.Status == StatusExited && i.ExitCode == 0
}

// RunParams contains parameters for running a command
// RunParams 包含运行命令的参数
type RunParams struct {
	// Command is the shell command line / Command 是 shell 命令行
	Command string `json:"command"`

	// WorkDir is the child's working directory / WorkDir 是子进程的工作目录
	WorkDir string `json:"work_dir"`

	// Echo streams output through the echo policy / Echo 通过回显策略输出
	Echo bool `json:"echo"`
}

// ProcessEventHandler is a callback for process events
// ProcessEventHandler 是进程事件的回调
type ProcessEventHandler func(name string, event ProcessEvent, info *ProcessInfo)

// ProcessEvent represents a process lifecycle event
// ProcessEvent 表示进程生命周期事件
type ProcessEvent string

const (
	// EventStarted indicates the process has started
	// EventStarted 表示进程已启动
	EventStarted ProcessEvent = "started"

	// EventExited indicates the process exited with code 0
	// EventExited 表示进程以退出码 0 退出
	EventExited ProcessEvent = "exited"

	// EventFailed indicates the process failed to start or exited non-zero
	// EventFailed 表示进程启动失败或以非零码退出
	EventFailed ProcessEvent = "failed"

	// EventStopped indicates the process was stopped by the manager
	// EventStopped 表示进程被管理器停止
	EventStopped ProcessEvent = "stopped"
)

// LineWriter receives echoed lines, terminator included
// LineWriter 接收回显行（包含行结束符）
type LineWriter interface {
	WriteLine(line string) error
}

// Options configures a ProcessManager
// Options 配置 ProcessManager
type Options struct {
	// Shell is the interpreter binary / Shell 是解释器程序
	Shell string

	// ShellArgs precede the command line / ShellArgs 位于命令行之前
	ShellArgs []string

	// SearchPath replaces PATH for children when set / SearchPath 设置时替换子进程的 PATH
	SearchPath string

	// Output receives echoed lines / Output 接收回显行
	Output LineWriter

	// Logger receives diagnostics / Logger 接收诊断信息
	Logger *zap.Logger

	// GracefulTimeout is the wait before SIGKILL / GracefulTimeout 是发送 SIGKILL 前的等待时间
	GracefulTimeout time.Duration

	// DrainTimeout bounds the output drain after exit / DrainTimeout 限制退出后的输出读取时间
	DrainTimeout time.Duration
}

// ProcessManager manages child process lifecycle
// ProcessManager 管理子进程生命周期
type ProcessManager struct {
	// processes stores managed processes by name
	// processes 按名称存储托管进程
	processes sync.Map

	shell           string
	shellArgs       []string
	searchPath      string
	output          LineWriter
	logger          *zap.Logger
	gracefulTimeout time.Duration
	drainTimeout    time.Duration

	// background tracks goroutines started by StartBackground
	// background 跟踪 StartBackground 启动的 goroutine
	background sync.WaitGroup

	// closed rejects new registrations once Close has run
	// closed 在 Close 执行后拒绝新的注册
	closed bool

	// eventHandler is called when process events occur
	// eventHandler 在进程事件发生时被调用
	eventHandler ProcessEventHandler

	// mu protects manager state
	// mu 保护管理器状态
	mu sync.RWMutex
}

// NewProcessManager creates a new ProcessManager instance
// NewProcessManager 创建一个新的 ProcessManager 实例
func NewProcessManager(opts Options) *ProcessManager {
	if opts.Shell == "" {
		opts.Shell, opts.ShellArgs = config.DefaultShell()
	}
	if opts.Output == nil {
		opts.Output = console.New(nil, nil)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.GracefulTimeout <= 0 {
		opts.GracefulTimeout = DefaultGracefulTimeout
	}
	return &ProcessManager{
		shell:           opts.Shell,
		shellArgs:       append([]string(nil), opts.ShellArgs...),
		searchPath:      opts.SearchPath,
		output:          opts.Output,
		logger:          opts.Logger,
		gracefulTimeout: opts.GracefulTimeout,
		drainTimeout:    opts.DrainTimeout,
	}
}

// SetEventHandler sets the event handler callback
// SetEventHandler 设置事件处理回调
func (m *ProcessManager) SetEventHandler(handler ProcessEventHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventHandler = handler
}

// notifyEvent notifies the event handler of a process event
// notifyEvent 通知事件处理程序进程事件
func (m *ProcessManager) notifyEvent(name string, event ProcessEvent, proc *ManagedProcess) {
	m.mu.RLock()
	handler := m.eventHandler
	m.mu.RUnlock()

	if handler == nil {
		return
	}
	proc.mu.RLock()
	info := proc.snapshot()
	proc.mu.RUnlock()
	handler(name, event, info)
}

// RunCommand runs a command to completion and reports whether it exited with code 0.
// Launch failures and non-zero exits are logged, never returned.
// RunCommand 运行命令直至结束，并报告其是否以退出码 0 退出。
// 启动失败与非零退出只记录日志，不返回错误。
func (m *ProcessManager) RunCommand(ctx context.Context, name string, params *RunParams) bool {
	info, err := m.Execute(ctx, name, params)
	if err == nil {
		return true
	}

	command := ""
	if params != nil {
		command = params.Command
	}
	switch {
	case errors.Is(err, ErrNonZeroExit):
		m.logger.Error("Command failed / 命令执行失败",
			zap.String("name", name),
			zap.Int("exit_code", info.ExitCode),
			zap.String("command", command))
	default:
		m.logger.Error("Command could not be run / 命令无法运行",
			zap.String("name", name),
			zap.String("command", command),
			zap.Error(err))
	}
	return false
}

// Execute runs a command in the foreground and blocks until it terminates.
// The returned info is non-nil whenever the process was registered.
// Execute 在前台运行命令并阻塞直至其终止。
// 只要进程已注册，返回的信息就不为 nil。
func (m *ProcessManager) Execute(ctx context.Context, name string, params *RunParams) (*ProcessInfo, error) {
	if params == nil || strings.TrimSpace(params.Command) == "" {
		return nil, ErrEmptyCommand
	}

	proc, err := m.register(name, params)
	if err != nil {
		return nil, err
	}

	ctx, span := otel_trace.Start(ctx, "process.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("process.name", name),
		attribute.String("process.command", params.Command),
		attribute.String("process.work_dir", params.WorkDir),
	)

	info, runErr := m.run(ctx, proc)
	span.SetAttributes(attribute.Int("process.exit_code", info.ExitCode))
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}
	return info, runErr
}

// StartBackground launches a command without waiting for it.
// Its outcome is only visible through events, GetStatus and WaitBackground.
// StartBackground 启动命令但不等待其结束。
// 其结果只能通过事件、GetStatus 与 WaitBackground 观察。
func (m *ProcessManager) StartBackground(ctx context.Context, name string, params *RunParams) error {
	if params == nil || strings.TrimSpace(params.Command) == "" {
		return ErrEmptyCommand
	}

	proc, err := m.register(name, params)
	if err != nil {
		return err
	}

	// The caller's cancellation must not abandon the child.
	// 调用方的取消不应抛弃子进程。
	ctx = context.WithoutCancel(ctx)

	m.background.Add(1)
	go func() {
		defer m.background.Done()

		ctx, span := otel_trace.Start(ctx, "process.run")
		defer span.End()
		span.SetAttributes(
			attribute.String("process.name", name),
			attribute.String("process.command", params.Command),
			attribute.String("process.work_dir", params.WorkDir),
			attribute.Bool("process.background", true),
		)

		info, err := m.run(ctx, proc)
		span.SetAttributes(attribute.Int("process.exit_code", info.ExitCode))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			m.logger.Debug("Background command finished with error / 后台命令以错误结束",
				zap.String("name", name), zap.Error(err))
			return
		}
		m.logger.Debug("Background command finished / 后台命令已结束", zap.String("name", name))
	}()
	return nil
}

// WaitBackground blocks until every background goroutine has returned or ctx is done
// WaitBackground 阻塞直至所有后台 goroutine 返回或 ctx 结束
func (m *ProcessManager) WaitBackground(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// register stores a new ManagedProcess unless one with the same name is still active
// register 存储新的 ManagedProcess，除非同名进程仍处于活动状态
func (m *ProcessManager) register(name string, params *RunParams) (*ManagedProcess, error) {
	proc := &ManagedProcess{
		Name:     name,
		Command:  params.Command,
		WorkDir:  params.WorkDir,
		Echo:     params.Echo,
		Status:   StatusStarting,
		ExitCode: exitCodeUnknown,
		done:     make(chan struct{}),
	}

	// Holding mu for reading keeps Close from slipping between the check and the store.
	// 持有读锁可防止 Close 插入到检查与存储之间。
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, fmt.Errorf("%w: %s", ErrManagerClosed, name)
	}

	for {
		existing, loaded := m.processes.LoadOrStore(name, proc)
		if !loaded {
			return proc, nil
		}
		old := existing.(*ManagedProcess)
		old.mu.RLock()
		active := old.Status == StatusStarting || old.Status == StatusRunning
		old.mu.RUnlock()
		if active {
			return nil, fmt.Errorf("%w: %s", ErrProcessAlreadyRunning, name)
		}
		if m.processes.CompareAndSwap(name, old, proc) {
			return proc, nil
		}
	}
}

// run starts the registered process, drains its output and waits for it
// run 启动已注册的进程，读取其输出并等待其结束
func (m *ProcessManager) run(ctx context.Context, proc *ManagedProcess) (*ProcessInfo, error) {
	defer close(proc.done)

	cmd := exec.Command(m.shell, append(append([]string(nil), m.shellArgs...), proc.Command)...)
	cmd.Dir = proc.WorkDir
	cmd.Env = m.childEnv()
	prepareCommand(cmd, proc.Command)

	var reader, writer *os.File
	if proc.Echo {
		var err error
		reader, writer, err = os.Pipe()
		if err != nil {
			return m.finishStart(proc, err)
		}
		cmd.Stdout = writer
		cmd.Stderr = writer
	}

	if err := cmd.Start(); err != nil {
		if reader != nil {
			reader.Close()
			writer.Close()
		}
		return m.finishStart(proc, err)
	}
	if writer != nil {
		// Only the child keeps the write end open.
		// 只有子进程持有写端。
		writer.Close()
	}

	proc.mu.Lock()
	proc.PID = cmd.Process.Pid
	proc.StartTime = time.Now()
	proc.Status = StatusRunning
	stopEarly := proc.stopRequested
	proc.mu.Unlock()

	m.logger.Debug("Process started / 进程已启动",
		zap.String("name", proc.Name),
		zap.Int("pid", cmd.Process.Pid),
		zap.String("dir", proc.WorkDir))
	m.notifyEvent(proc.Name, EventStarted, proc)

	if stopEarly {
		_ = terminateGroup(cmd.Process.Pid)
	}

	var drained chan struct{}
	if reader != nil {
		drained = make(chan struct{})
		go func() {
			defer close(drained)
			m.drain(reader, PolicyFor(proc.WorkDir))
		}()
	}

	waitErr := cmd.Wait()

	if drained != nil {
		m.joinDrain(drained, proc.Name)
		reader.Close()
	}

	return m.finishWait(proc, waitErr)
}

// drain copies lines from r to the output through policy until EOF
// drain 按策略将 r 中的行复制到输出，直至 EOF
func (m *ProcessManager) drain(r io.Reader, policy EchoPolicy) {
	lines := newLineReader(r)
	for {
		line, err := lines.ReadLine()
		if line != "" {
			if out, ok := policy.Apply(line); ok {
				if werr := m.output.WriteLine(out); werr != nil {
					m.logger.Debug("Failed to write output line / 写入输出行失败", zap.Error(werr))
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// joinDrain waits for the drain goroutine, bounded by drainTimeout
// joinDrain 等待读取 goroutine 结束，最长 drainTimeout
func (m *ProcessManager) joinDrain(drained <-chan struct{}, name string) {
	if m.drainTimeout <= 0 {
		<-drained
		return
	}
	timer := time.NewTimer(m.drainTimeout)
	defer timer.Stop()
	select {
	case <-drained:
	case <-timer.C:
		m.logger.Warn("Output still open after exit, abandoning drain / 进程退出后输出仍未关闭，放弃读取",
			zap.String("name", name),
			zap.Duration("drain_timeout", m.drainTimeout))
	}
}

// childEnv returns the environment for children, with PATH replaced when configured
// childEnv 返回子进程环境变量，配置时替换 PATH
func (m *ProcessManager) childEnv() []string {
	env := os.Environ()
	if m.searchPath == "" {
		return env
	}
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		key, _, _ := strings.Cut(kv, "=")
		if isPathKey(key) {
			continue
		}
		out = append(out, kv)
	}
	return append(out, "PATH="+m.searchPath)
}

func isPathKey(key string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(key, "PATH")
	}
	return key == "PATH"
}

// finishStart records a launch failure
// finishStart 记录启动失败
func (m *ProcessManager) finishStart(proc *ManagedProcess, err error) (*ProcessInfo, error) {
	proc.mu.Lock()
	proc.Status = StatusFailed
	proc.EndTime = time.Now()
	proc.LastError = err.Error()
	info := proc.snapshot()
	proc.mu.Unlock()

	m.notifyEvent(proc.Name, EventFailed, proc)
	return info, fmt.Errorf("%w: %s: %v", ErrStartFailed, proc.Name, err)
}

// finishWait records the exit of a started process
// finishWait 记录已启动进程的退出
func (m *ProcessManager) finishWait(proc *ManagedProcess, waitErr error) (*ProcessInfo, error) {
	code := exitCode(waitErr)

	proc.mu.Lock()
	proc.EndTime = time.Now()
	proc.ExitCode = code
	event := EventExited
	switch {
	case proc.stopRequested:
		proc.Status = StatusStopped
		event = EventStopped
	case code == 0:
		proc.Status = StatusExited
	default:
		proc.Status = StatusFailed
		event = EventFailed
	}
	if waitErr != nil {
		proc.LastError = waitErr.Error()
	}
	info := proc.snapshot()
	proc.mu.Unlock()

	m.logger.Debug("Process finished / 进程已结束",
		zap.String("name", proc.Name),
		zap.Int("exit_code", code),
		zap.Duration("uptime", info.Uptime))
	m.notifyEvent(proc.Name, event, proc)

	if code != 0 {
		return info, fmt.Errorf("%w: %s exited with code %d", ErrNonZeroExit, proc.Name, code)
	}
	return info, nil
}

// exitCode extracts the exit status from the error returned by Wait.
// A child killed by signal N reports -N.
// exitCode 从 Wait 返回的错误中提取退出状态。被信号 N 终止的子进程返回 -N。
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return exitCodeUnknown
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return exitErr.ExitCode()
}

// StopProcess terminates a running process group, escalating to a kill after
// the graceful timeout.
// StopProcess 终止正在运行的进程组，超过优雅超时后强制杀死。
func (m *ProcessManager) StopProcess(ctx context.Context, name string) error {
	value, ok := m.processes.Load(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrProcessNotFound, name)
	}
	proc := value.(*ManagedProcess)

	proc.mu.Lock()
	if proc.Status != StatusStarting && proc.Status != StatusRunning {
		proc.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrProcessNotRunning, name)
	}
	proc.stopRequested = true
	pid := proc.PID
	proc.mu.Unlock()

	m.logger.Debug("Stopping process / 正在停止进程", zap.String("name", name), zap.Int("pid", pid))

	if pid > 0 {
		if err := terminateGroup(pid); err != nil {
			m.logger.Debug("Terminate signal failed / 发送终止信号失败", zap.String("name", name), zap.Error(err))
		}
	}

	timer := time.NewTimer(m.gracefulTimeout)
	defer timer.Stop()
	select {
	case <-proc.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	m.logger.Warn("Graceful stop timed out, killing / 优雅停止超时，强制终止",
		zap.String("name", name),
		zap.Duration("timeout", m.gracefulTimeout))

	proc.mu.RLock()
	pid = proc.PID
	proc.mu.RUnlock()
	if pid > 0 {
		if err := killGroup(pid); err != nil {
			m.logger.Debug("Kill signal failed / 发送强制终止信号失败", zap.String("name", name), zap.Error(err))
		}
	}

	select {
	case <-proc.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects further processes and stops every running one. Processes whose
// registration raced with Close are either rejected or stopped, never missed.
// Close 拒绝后续进程并停止所有正在运行的进程。与 Close 竞争的注册要么被拒绝，要么被停止，不会遗漏。
func (m *ProcessManager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.StopAll(ctx)
}

// StopAll stops all running managed processes concurrently
// StopAll 并发停止所有正在运行的托管进程
func (m *ProcessManager) StopAll(ctx context.Context) error {
	var g errgroup.Group

	m.processes.Range(func(key, value interface{}) bool {
		name := key.(string)
		proc := value.(*ManagedProcess)

		proc.mu.RLock()
		active := proc.Status == StatusStarting || proc.Status == StatusRunning
		proc.mu.RUnlock()

		if active {
			g.Go(func() error {
				err := m.StopProcess(ctx, name)
				if errors.Is(err, ErrProcessNotRunning) {
					return nil
				}
				return err
			})
		}
		return true
	})

	return g.Wait()
}

// GetStatus returns a snapshot of the named process
// GetStatus 返回指定进程的状态快照
func (m *ProcessManager) GetStatus(name string) (*ProcessInfo, error) {
	value, ok := m.processes.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProcessNotFound, name)
	}

	proc := value.(*ManagedProcess)
	proc.mu.RLock()
	defer proc.mu.RUnlock()
	return proc.snapshot(), nil
}

// ListProcesses returns information about all managed processes, oldest first
// ListProcesses 返回所有托管进程的信息，按启动时间升序
func (m *ProcessManager) ListProcesses() []*ProcessInfo {
	processes := make([]*ProcessInfo, 0)

	m.processes.Range(func(key, value interface{}) bool {
		proc := value.(*ManagedProcess)
		proc.mu.RLock()
		processes = append(processes, proc.snapshot())
		proc.mu.RUnlock()
		return true
	})

	sort.Slice(processes, func(i, j int) bool {
		if processes[i].StartTime.Equal(processes[j].StartTime) {
			return processes[i].Name < processes[j].Name
		}
		return processes[i].StartTime.Before(processes[j].StartTime)
	})
	return processes
}

// RemoveProcess removes a finished process from management
// RemoveProcess 从管理中移除已结束的进程
func (m *ProcessManager) RemoveProcess(name string) error {
	value, ok := m.processes.Load(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrProcessNotFound, name)
	}
	proc := value.(*ManagedProcess)
	proc.mu.RLock()
	active := proc.Status == StatusStarting || proc.Status == StatusRunning
	proc.mu.RUnlock()
	if active {
		return fmt.Errorf("%w: %s", ErrProcessAlreadyRunning, name)
	}
	m.processes.CompareAndDelete(name, proc)
	return nil
}

// IsRunning checks if a process is running
// IsRunning 检查进程是否正在运行
func (m *ProcessManager) IsRunning(name string) bool {
	value, ok := m.processes.Load(name)
	if !ok {
		return false
	}

	proc := value.(*ManagedProcess)
	proc.mu.RLock()
	defer proc.mu.RUnlock()
	return proc.Status == StatusRunning
}
