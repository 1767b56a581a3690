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

package process

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/drawguess/devrun/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder collects echoed lines
// recorder 收集回显行
type recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *recorder) WriteLine(line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
	return nil
}

func (r *recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

// newTestManager creates a manager writing to a recorder
// newTestManager 创建输出到 recorder 的管理器
func newTestManager(t *testing.T) (*ProcessManager, *recorder) {
	t.Helper()
	skipOnWindows(t)
	out := &recorder{}
	pm := NewProcessManager(Options{
		Output:          out,
		GracefulTimeout: 2 * time.Second,
		DrainTimeout:    DefaultDrainTimeout,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = pm.StopAll(ctx)
		_ = pm.WaitBackground(ctx)
	})
	return pm, out
}

func makeDir(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return dir
}

func TestRunCommandBackendFilter(t *testing.T) {
	pm, out := newTestManager(t)
	dir := makeDir(t, "backend")

	ok := pm.RunCommand(context.Background(), "backend", &RunParams{
		Command: `printf '[info] starting\nnoise\n'`,
		WorkDir: dir,
		Echo:    true,
	})

	assert.True(t, ok)
	assert.Equal(t, []string{"[Backend] [info] starting\n"}, out.Lines())

	info, err := pm.GetStatus("backend")
	require.NoError(t, err)
	assert.Equal(t, StatusExited, info.Status)
	assert.Equal(t, 0, info.ExitCode)
	assert.True(t, info.Succeeded())
	assert.NotNil(t, info.EndTime)
}

func TestRunCommandBackendCJKAndStderr(t *testing.T) {
	pm, out := newTestManager(t)
	dir := makeDir(t, "backend")

	ok := pm.RunCommand(context.Background(), "backend", &RunParams{
		Command: `printf '  服务已启动\r\n'; echo '[err] boom' >&2; echo plain >&2`,
		WorkDir: dir,
		Echo:    true,
	})

	assert.True(t, ok)
	assert.Equal(t, []string{
		"[Backend]   服务已启动\n",
		"[Backend] [err] boom\n",
	}, out.Lines())
}

func TestRunCommandNonBackendEchoesAll(t *testing.T) {
	pm, out := newTestManager(t)
	dir := makeDir(t, "frontend")

	ok := pm.RunCommand(context.Background(), "frontend", &RunParams{
		Command: `printf 'a\nb'`,
		WorkDir: dir,
		Echo:    true,
	})

	assert.True(t, ok)
	assert.Equal(t, []string{"a\n", "b"}, out.Lines())
}

func TestRunCommandEchoDisabled(t *testing.T) {
	pm, out := newTestManager(t)
	dir := makeDir(t, "backend")

	ok := pm.RunCommand(context.Background(), "backend", &RunParams{
		Command: `echo '[info] hidden'`,
		WorkDir: dir,
		Echo:    false,
	})

	assert.True(t, ok)
	assert.Empty(t, out.Lines())
}

func TestRunCommandNonZeroExit(t *testing.T) {
	pm, out := newTestManager(t)
	dir := makeDir(t, "backend")

	ok := pm.RunCommand(context.Background(), "backend", &RunParams{
		Command: `echo '[error] fatal'; exit 3`,
		WorkDir: dir,
		Echo:    true,
	})

	assert.False(t, ok)
	assert.Equal(t, []string{"[Backend] [error] fatal\n"}, out.Lines())

	info, err := pm.GetStatus("backend")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, info.Status)
	assert.Equal(t, 3, info.ExitCode)
	assert.False(t, info.Succeeded())
}

func TestExecuteErrors(t *testing.T) {
	pm, _ := newTestManager(t)
	dir := makeDir(t, "backend")

	t.Run("non-zero exit", func(t *testing.T) {
		info, err := pm.Execute(context.Background(), "exit", &RunParams{Command: "exit 7", WorkDir: dir})
		assert.ErrorIs(t, err, ErrNonZeroExit)
		require.NotNil(t, info)
		assert.Equal(t, 7, info.ExitCode)
	})

	t.Run("command not found", func(t *testing.T) {
		info, err := pm.Execute(context.Background(), "missing", &RunParams{Command: "devrun-no-such-binary", WorkDir: dir})
		assert.ErrorIs(t, err, ErrNonZeroExit)
		require.NotNil(t, info)
		assert.Equal(t, 127, info.ExitCode)
	})

	t.Run("bad working directory", func(t *testing.T) {
		info, err := pm.Execute(context.Background(), "baddir", &RunParams{
			Command: "true",
			WorkDir: filepath.Join(dir, "does-not-exist"),
		})
		assert.ErrorIs(t, err, ErrStartFailed)
		require.NotNil(t, info)
		assert.Equal(t, StatusFailed, info.Status)
		assert.NotEmpty(t, info.LastError)
	})

	t.Run("empty command", func(t *testing.T) {
		_, err := pm.Execute(context.Background(), "empty", &RunParams{Command: "  "})
		assert.ErrorIs(t, err, ErrEmptyCommand)
		_, err = pm.Execute(context.Background(), "nil", nil)
		assert.ErrorIs(t, err, ErrEmptyCommand)
	})
}

func TestRunCommandLaunchFailure(t *testing.T) {
	skipOnWindows(t)
	pm := NewProcessManager(Options{
		Shell:     "/nonexistent/shell",
		ShellArgs: []string{"-c"},
		Output:    &recorder{},
	})

	ok := pm.RunCommand(context.Background(), "backend", &RunParams{
		Command: "true",
		WorkDir: t.TempDir(),
		Echo:    true,
	})
	assert.False(t, ok)

	info, err := pm.GetStatus("backend")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, info.Status)
}

func TestSearchPath(t *testing.T) {
	pm, out := newTestManager(t)
	bin := t.TempDir()
	script := filepath.Join(bin, "devrun-hello")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho '[hello] from path'\n"), 0o755))

	pm.searchPath = bin
	ok := pm.RunCommand(context.Background(), "backend", &RunParams{
		Command: "devrun-hello",
		WorkDir: makeDir(t, "backend"),
		Echo:    true,
	})

	assert.True(t, ok)
	assert.Equal(t, []string{"[Backend] [hello] from path\n"}, out.Lines())
}

func TestDrainTimeoutWithLingeringGrandchild(t *testing.T) {
	skipOnWindows(t)
	out := &recorder{}
	pm := NewProcessManager(Options{Output: out, DrainTimeout: 200 * time.Millisecond})

	start := time.Now()
	info, err := pm.Execute(context.Background(), "backend", &RunParams{
		Command: `sleep 30 & echo '[info] parent done'`,
		WorkDir: makeDir(t, "backend"),
		Echo:    true,
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, []string{"[Backend] [info] parent done\n"}, out.Lines())

	// The sleep shares the child's process group.
	_ = killGroup(info.PID)
}

func TestStartBackgroundAndStopAll(t *testing.T) {
	pm, _ := newTestManager(t)
	dir := makeDir(t, "frontend")

	var mu sync.Mutex
	var events []ProcessEvent
	pm.SetEventHandler(func(name string, event ProcessEvent, info *ProcessInfo) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, event)
	})

	require.NoError(t, pm.StartBackground(context.Background(), "frontend", &RunParams{
		Command: "sleep 30",
		WorkDir: dir,
	}))

	require.Eventually(t, func() bool { return pm.IsRunning("frontend") }, 5*time.Second, 10*time.Millisecond)

	err := pm.StartBackground(context.Background(), "frontend", &RunParams{Command: "sleep 1", WorkDir: dir})
	assert.ErrorIs(t, err, ErrProcessAlreadyRunning)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, pm.StopAll(ctx))
	assert.Less(t, time.Since(start), 5*time.Second)
	require.NoError(t, pm.WaitBackground(ctx))

	info, err := pm.GetStatus("frontend")
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, info.Status)
	assert.Equal(t, -int(syscall.SIGTERM), info.ExitCode)
	assert.False(t, pm.IsRunning("frontend"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []ProcessEvent{EventStarted, EventStopped}, events)
}

func TestStopProcessEscalatesToKill(t *testing.T) {
	skipOnWindows(t)
	pm := NewProcessManager(Options{Output: &recorder{}, GracefulTimeout: 200 * time.Millisecond})
	dir := makeDir(t, "frontend")

	require.NoError(t, pm.StartBackground(context.Background(), "stubborn", &RunParams{
		Command: `trap '' TERM; while :; do sleep 0.1; done`,
		WorkDir: dir,
	}))
	require.Eventually(t, func() bool { return pm.IsRunning("stubborn") }, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, pm.StopProcess(ctx, "stubborn"))
	require.NoError(t, pm.WaitBackground(ctx))

	info, err := pm.GetStatus("stubborn")
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, info.Status)
	assert.Equal(t, -int(syscall.SIGKILL), info.ExitCode)
}

func TestStopProcessErrors(t *testing.T) {
	pm, _ := newTestManager(t)

	assert.ErrorIs(t, pm.StopProcess(context.Background(), "ghost"), ErrProcessNotFound)

	require.True(t, pm.RunCommand(context.Background(), "done", &RunParams{Command: "true", WorkDir: t.TempDir()}))
	assert.ErrorIs(t, pm.StopProcess(context.Background(), "done"), ErrProcessNotRunning)
}

func TestEventsForForegroundRun(t *testing.T) {
	pm, _ := newTestManager(t)
	dir := makeDir(t, "backend")

	type seen struct {
		name  string
		event ProcessEvent
		code  int
	}
	var events []seen
	pm.SetEventHandler(func(name string, event ProcessEvent, info *ProcessInfo) {
		events = append(events, seen{name, event, info.ExitCode})
	})

	pm.RunCommand(context.Background(), "ok", &RunParams{Command: "true", WorkDir: dir})
	pm.RunCommand(context.Background(), "bad", &RunParams{Command: "exit 2", WorkDir: dir})

	assert.Equal(t, []seen{
		{"ok", EventStarted, exitCodeUnknown},
		{"ok", EventExited, 0},
		{"bad", EventStarted, exitCodeUnknown},
		{"bad", EventFailed, 2},
	}, events)
}

func TestListAndRemoveProcesses(t *testing.T) {
	pm, _ := newTestManager(t)
	dir := t.TempDir()

	require.True(t, pm.RunCommand(context.Background(), "first", &RunParams{Command: "true", WorkDir: dir}))
	require.True(t, pm.RunCommand(context.Background(), "second", &RunParams{Command: "true", WorkDir: dir}))

	list := pm.ListProcesses()
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Name)
	assert.Equal(t, "second", list[1].Name)

	// A finished name can be reused.
	require.True(t, pm.RunCommand(context.Background(), "first", &RunParams{Command: "true", WorkDir: dir}))
	assert.Len(t, pm.ListProcesses(), 2)

	require.NoError(t, pm.RemoveProcess("first"))
	assert.Len(t, pm.ListProcesses(), 1)
	assert.ErrorIs(t, pm.RemoveProcess("first"), ErrProcessNotFound)

	_, err := pm.GetStatus("first")
	assert.ErrorIs(t, err, ErrProcessNotFound)
}

func TestExitCodeOfSignalledChild(t *testing.T) {
	pm, _ := newTestManager(t)

	ok := pm.RunCommand(context.Background(), "backend", &RunParams{
		Command: "kill -TERM $$",
		WorkDir: makeDir(t, "backend"),
	})
	assert.False(t, ok)

	info, err := pm.GetStatus("backend")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, info.Status)
	assert.Equal(t, -int(syscall.SIGTERM), info.ExitCode)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, exitCodeUnknown, exitCode(assert.AnError))
}

func TestCloseStopsAndRejects(t *testing.T) {
	pm, _ := newTestManager(t)
	dir := makeDir(t, "frontend")

	require.NoError(t, pm.StartBackground(context.Background(), "frontend", &RunParams{
		Command: "sleep 30",
		WorkDir: dir,
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, pm.Close(ctx))
	require.NoError(t, pm.WaitBackground(ctx))

	info, err := pm.GetStatus("frontend")
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, info.Status)

	err = pm.StartBackground(context.Background(), "late", &RunParams{Command: "sleep 30", WorkDir: dir})
	assert.ErrorIs(t, err, ErrManagerClosed)

	_, err = pm.Execute(context.Background(), "late", &RunParams{Command: "true", WorkDir: dir})
	assert.ErrorIs(t, err, ErrManagerClosed)
	assert.False(t, pm.RunCommand(context.Background(), "late", &RunParams{Command: "true", WorkDir: dir}))

	_, err = pm.GetStatus("late")
	assert.ErrorIs(t, err, ErrProcessNotFound)
}

// TestCloseRacingRegistrations checks that no process started concurrently with Close keeps running
// TestCloseRacingRegistrations 检查与 Close 并发启动的进程不会继续运行
func TestCloseRacingRegistrations(t *testing.T) {
	pm, _ := newTestManager(t)
	dir := makeDir(t, "frontend")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pm.StartBackground(context.Background(), fmt.Sprintf("p%d", i), &RunParams{
				Command: "sleep 30",
				WorkDir: dir,
			})
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, pm.Close(ctx))
	wg.Wait()
	require.NoError(t, pm.WaitBackground(ctx))

	for _, info := range pm.ListProcesses() {
		assert.NotEqual(t, StatusRunning, info.Status, info.Name)
		assert.NotEqual(t, StatusStarting, info.Status, info.Name)
	}
}

func TestNewProcessManagerDefaultShell(t *testing.T) {
	pm := NewProcessManager(Options{Output: &recorder{}})
	shell, args := config.DefaultShell()
	assert.Equal(t, shell, pm.shell)
	assert.Equal(t, args, pm.shellArgs)
}
