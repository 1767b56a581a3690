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

// Package main is the entry point for devrun.
// main 包是 devrun 的入口点。
//
// devrun starts a project's frontend dev server in the background and its
// backend service in the foreground:
// devrun 在后台启动项目的前端开发服务器，在前台启动后端服务：
// - Frontend output is suppressed / 前端输出被屏蔽
// - Backend output is filtered and prefixed / 后端输出经过过滤并添加前缀
// - The exit status follows the backend / 退出状态跟随后端
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/drawguess/devrun/internal/config"
	"github.com/drawguess/devrun/internal/console"
	"github.com/drawguess/devrun/internal/history"
	"github.com/drawguess/devrun/internal/logger"
	"github.com/drawguess/devrun/internal/otel_trace"
	"github.com/drawguess/devrun/internal/supervisor"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version information, set at build time
// 版本信息，在构建时设置
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// telemetryShutdownTimeout bounds the final span flush
// telemetryShutdownTimeout 限制最后一次 span 刷新的时间
const telemetryShutdownTimeout = 5 * time.Second

// cliOptions holds the persistent flags
// cliOptions 保存全局标志
type cliOptions struct {
	// configFile is the path to the configuration file
	// configFile 是配置文件的路径
	configFile string

	// root overrides project.root when set / root 设置时覆盖 project.root
	root string
}

// newRootCmd builds the devrun command tree writing to the given streams
// newRootCmd 构建写入给定输出流的 devrun 命令树
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:   "devrun",
		Short: "devrun - run a frontend dev server and a backend service together",
		Long: `devrun starts the frontend dev server in the background and runs the backend in the foreground.
devrun 在后台启动前端开发服务器，并在前台运行后端服务。

Only backend lines starting with "[" or a CJK ideograph are shown, prefixed with "[Backend] ".
仅显示以 "[" 或汉字开头的后端输出行，并添加 "[Backend] " 前缀。
The exit status is 0 when the backend exits cleanly and 1 otherwise.
后端正常退出时退出码为 0，否则为 1。`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupervisor(cmd.Context(), opts, stdout, stderr)
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	// Add flags to root command
	// 向根命令添加标志
	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file path (default: devrun.yaml in the project root)")
	rootCmd.PersistentFlags().StringVar(&opts.root, "root", "", "project root containing the frontend and backend directories (default: directory of the executable)")

	// Add subcommands
	// 添加子命令
	rootCmd.AddCommand(newVersionCmd(stdout))
	rootCmd.AddCommand(newConfigCmd(opts, stdout))
	rootCmd.AddCommand(newHistoryCmd(opts, stdout))

	return rootCmd
}

// newVersionCmd shows version information
// newVersionCmd 显示版本信息
func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information / 打印版本信息",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "devrun\n")
			fmt.Fprintf(stdout, "  Version:    %s\n", Version)
			fmt.Fprintf(stdout, "  Git Commit: %s\n", GitCommit)
			fmt.Fprintf(stdout, "  Build Time: %s\n", BuildTime)
			fmt.Fprintf(stdout, "  Go Version: %s\n", runtime.Version())
			fmt.Fprintf(stdout, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// newConfigCmd prints the effective configuration
// newConfigCmd 打印生效的配置
func newConfigCmd(opts *cliOptions, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML / 以 YAML 打印生效配置",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			data, err := cfg.ToYAML()
			if err != nil {
				return err
			}
			_, err = stdout.Write(data)
			return err
		},
	}
}

// newHistoryCmd lists recorded runs
// newHistoryCmd 列出已记录的运行
func newHistoryCmd(opts *cliOptions, stdout io.Writer) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs, newest first / 按时间倒序列出最近的运行",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, root, err := loadConfig(opts)
			if err != nil {
				return err
			}

			path := supervisor.ResolvePath(root, cfg.History.Path)
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(stdout, "No runs recorded / 暂无运行记录")
				return nil
			}

			store, err := history.Open(path, nil)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(stdout, "No runs recorded / 暂无运行记录")
				return nil
			}
			fmt.Fprintln(stdout, renderHistory(records))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultListLimit, "maximum number of runs to show")
	return cmd
}

// renderHistory formats records as a table
// renderHistory 将记录格式化为表格
func renderHistory(records []*history.RunRecord) string {
	t := table.New().Headers("ENDED", "NAME", "STATUS", "EXIT", "DURATION", "COMMAND")
	for _, r := range records {
		t.Row(
			r.EndedAt.Local().Format(time.DateTime),
			r.Name,
			r.Status,
			strconv.Itoa(r.ExitCode),
			r.Duration().Round(time.Millisecond).String(),
			r.Command,
		)
	}
	return t.Render()
}

// loadConfig loads and validates configuration, returning it with the resolved project root.
// Without -c or DEVRUN_CONFIG_PATH, devrun.yaml is looked up in the project root.
// loadConfig 加载并验证配置，同时返回解析后的项目根目录。
// 未指定 -c 或 DEVRUN_CONFIG_PATH 时，在项目根目录中查找 devrun.yaml。
func loadConfig(opts *cliOptions) (*config.Config, string, error) {
	var cmdArgs map[string]interface{}
	if opts.root != "" {
		cmdArgs = map[string]interface{}{"project.root": opts.root}
	}

	path := opts.configFile
	if path == "" && os.Getenv(config.EnvPrefix+"_CONFIG_PATH") == "" {
		root, err := supervisor.ResolveRoot(opts.root)
		if err != nil {
			return nil, "", err
		}
		path = filepath.Join(root, config.DefaultConfigPath)
	}

	cfg, err := config.LoadWithPriority(path, cmdArgs)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}

	root, err := supervisor.ResolveRoot(cfg.Project.Root)
	if err != nil {
		return nil, "", err
	}
	cfg.Project.Root = root
	return cfg, root, nil
}

// runSupervisor is the main entry point for a devrun session
// runSupervisor 是一次 devrun 会话的主入口
func runSupervisor(ctx context.Context, opts *cliOptions, stdout, stderr io.Writer) error {
	cfg, root, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if cfg.Log.File != "" {
		cfg.Log.File = supervisor.ResolvePath(root, cfg.Log.File)
	}

	log, err := logger.New(cfg.Log, stderr)
	if err != nil {
		return err
	}
	defer log.Close()

	otel_trace.Init(ctx, cfg.Telemetry, log.Logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		otel_trace.Shutdown(shutdownCtx)
	}()

	sup, err := supervisor.New(cfg, log, console.New(stdout, stderr))
	if err != nil {
		return err
	}

	log.Debug("Session starting / 会话开始",
		zap.String("root", root),
		zap.String("version", Version))

	return sup.Run(ctx)
}

// execute runs the CLI and maps the outcome to an exit status
// execute 运行命令行并将结果映射为退出码
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd(stdout, stderr)
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error / 错误: %v\n", err)
		return 1
	}
	return 0
}

// notifyContext returns a context cancelled by any of shutdownSignals
// notifyContext 返回在收到 shutdownSignals 任一信号时取消的上下文
func notifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, shutdownSignals...)
}

func main() {
	// Cancellation stops the children, which live in their own process groups.
	// 取消会停止位于独立进程组中的子进程。
	ctx, stop := notifyContext(context.Background())
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
