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

// Package config provides configuration management for devrun.
// config 包提供 devrun 的配置管理功能。
//
// Configuration loading priority (highest to lowest):
// 配置加载优先级（从高到低）：
// 1. Command line arguments / 命令行参数
// 2. Environment variables (DEVRUN_*) / 环境变量（DEVRUN_*）
// 3. Configuration file / 配置文件
// 4. Default values / 默认值
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Default configuration values
// 默认配置值
const (
	DefaultConfigPath      = "devrun.yaml"
	DefaultFrontendDir     = "frontend"
	DefaultBackendDir      = "backend"
	DefaultFrontendCommand = "npm run dev"
	DefaultBackendCommand  = "dotnet run"
	DefaultGracefulTimeout = 5 * time.Second
	DefaultDrainTimeout    = 2 * time.Second
	DefaultLogLevel        = "info"
	DefaultLogMaxSize      = 100 // MB
	DefaultLogMaxBackups   = 3
	DefaultLogMaxAge       = 7 // days
	DefaultHistoryPath     = ".devrun/history.db"
	DefaultServiceName     = "devrun"

	// EnvPrefix is the prefix for environment variable overrides
	// EnvPrefix 是环境变量覆盖的前缀
	EnvPrefix = "DEVRUN"
)

// Config represents the devrun configuration
// Config 表示 devrun 配置
type Config struct {
	// Project layout / 项目布局
	Project ProjectConfig `mapstructure:"project" yaml:"project"`

	// Shell used to interpret commands / 用于解释命令的 Shell
	Shell ShellConfig `mapstructure:"shell" yaml:"shell"`

	// Frontend service / 前端服务
	Frontend ServiceConfig `mapstructure:"frontend" yaml:"frontend"`

	// Backend service / 后端服务
	Backend ServiceConfig `mapstructure:"backend" yaml:"backend"`

	// Process handling / 进程处理
	Process ProcessConfig `mapstructure:"process" yaml:"process"`

	// Log configuration / 日志配置
	Log LogConfig `mapstructure:"log" yaml:"log"`

	// Run history / 运行历史
	History HistoryConfig `mapstructure:"history" yaml:"history"`

	// Status endpoint / 状态接口
	Status StatusConfig `mapstructure:"status" yaml:"status"`

	// Telemetry / 遥测
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// ProjectConfig describes where the frontend and backend directories live
// ProjectConfig 描述前后端目录所在位置
type ProjectConfig struct {
	// Root is the project root; empty means the directory of the executable
	// Root 是项目根目录；为空表示可执行文件所在目录
	Root string `mapstructure:"root" yaml:"root"`
}

// ShellConfig makes the command interpreter explicit instead of ambient
// ShellConfig 显式指定命令解释器，而不是依赖环境
type ShellConfig struct {
	// Path is the shell binary / Path 是 Shell 可执行文件
	Path string `mapstructure:"path" yaml:"path"`

	// Args are placed between the shell and the command line, e.g. ["-c"]
	// Args 位于 Shell 与命令行之间，例如 ["-c"]
	Args []string `mapstructure:"args" yaml:"args"`

	// SearchPath replaces PATH for child processes when non-empty
	// SearchPath 非空时替换子进程的 PATH
	SearchPath string `mapstructure:"search_path" yaml:"search_path"`
}

// ServiceConfig describes one supervised service
// ServiceConfig 描述一个受监管的服务
type ServiceConfig struct {
	// Dir is relative to the project root unless absolute
	// Dir 相对于项目根目录（绝对路径除外）
	Dir string `mapstructure:"dir" yaml:"dir"`

	// Command is the shell command line / Command 是 Shell 命令行
	Command string `mapstructure:"command" yaml:"command"`

	// Echo controls whether output is streamed to the console
	// Echo 控制是否将输出流式打印到控制台
	Echo bool `mapstructure:"echo" yaml:"echo"`

	// StopOnExit terminates the service when the backend exits (frontend only)
	// StopOnExit 在后端退出时终止该服务（仅前端）
	StopOnExit bool `mapstructure:"stop_on_exit" yaml:"stop_on_exit"`
}

// ProcessConfig contains process handling timeouts
// ProcessConfig 包含进程处理超时
type ProcessConfig struct {
	// GracefulTimeout is how long StopAll waits between SIGTERM and SIGKILL
	// GracefulTimeout 是 StopAll 在 SIGTERM 与 SIGKILL 之间等待的时间
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout" yaml:"graceful_timeout"`

	// DrainTimeout bounds the wait for output after the child exits
	// DrainTimeout 限制子进程退出后等待输出读完的时间
	DrainTimeout time.Duration `mapstructure:"drain_timeout" yaml:"drain_timeout"`
}

// LogConfig contains logging settings
// LogConfig 包含日志设置
type LogConfig struct {
	// Level is the log level (debug, info, warn, error)
	// Level 是日志级别（debug, info, warn, error）
	Level string `mapstructure:"level" yaml:"level"`

	// File is an optional rotating log file; empty logs to stderr only
	// File 是可选的轮转日志文件；为空时仅输出到标准错误
	File string `mapstructure:"file" yaml:"file"`

	// MaxSize is the maximum size of log file in MB before rotation
	// MaxSize 是日志文件轮转前的最大大小（MB）
	MaxSize int `mapstructure:"max_size" yaml:"max_size"`

	// MaxBackups is the maximum number of old log files to retain
	// MaxBackups 是保留的旧日志文件的最大数量
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`

	// MaxAge is the maximum number of days to retain old log files
	// MaxAge 是保留旧日志文件的最大天数
	MaxAge int `mapstructure:"max_age" yaml:"max_age"`
}

// HistoryConfig contains run history settings
// HistoryConfig 包含运行历史设置
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Path is the SQLite file, relative to the project root unless absolute
	// Path 是 SQLite 文件，相对于项目根目录（绝对路径除外）
	Path string `mapstructure:"path" yaml:"path"`
}

// StatusConfig contains the status endpoint settings
// StatusConfig 包含状态接口设置
type StatusConfig struct {
	// Addr is the listen address; empty disables the endpoint
	// Addr 是监听地址；为空表示禁用
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// TelemetryConfig contains OpenTelemetry tracing settings
// TelemetryConfig 包含 OpenTelemetry 追踪设置
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure    bool   `mapstructure:"insecure" yaml:"insecure"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
}

// DefaultShell returns the platform shell and its command flag
// DefaultShell 返回平台 Shell 及其命令参数
func DefaultShell() (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd.exe", []string{"/C"}
	}
	return "/bin/sh", []string{"-c"}
}

// Load loads configuration from file and environment variables
// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	return LoadWithPriority(configPath, nil)
}

// LoadWithPriority loads configuration with explicit priority handling
// LoadWithPriority 使用显式优先级处理加载配置
// Priority: cmdArgs > envVars > configFile > defaults
// 优先级：命令行参数 > 环境变量 > 配置文件 > 默认值
func LoadWithPriority(configPath string, cmdArgs map[string]interface{}) (*Config, error) {
	v := viper.New()

	// Set default values / 设置默认值
	setDefaults(v)

	// Set config file path / 设置配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if envPath := os.Getenv(EnvPrefix + "_CONFIG_PATH"); envPath != "" {
		v.SetConfigFile(envPath)
	} else {
		v.SetConfigFile(DefaultConfigPath)
	}

	// Enable environment variable override / 启用环境变量覆盖
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file / 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			// A missing file falls back to defaults; a broken one is an error
			// 文件不存在时使用默认值；文件损坏则报错
			if _, statErr := os.Stat(v.ConfigFileUsed()); statErr == nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Apply command line arguments (highest priority)
	// 应用命令行参数（最高优先级）
	for key, value := range cmdArgs {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadFromYAML loads configuration from YAML bytes
// LoadFromYAML 从 YAML 字节加载配置
func LoadFromYAML(yamlData []byte) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadConfig(strings.NewReader(string(yamlData))); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	shell, shellArgs := DefaultShell()

	v.SetDefault("project.root", "")

	v.SetDefault("shell.path", shell)
	v.SetDefault("shell.args", shellArgs)
	v.SetDefault("shell.search_path", "")

	v.SetDefault("frontend.dir", DefaultFrontendDir)
	v.SetDefault("frontend.command", DefaultFrontendCommand)
	v.SetDefault("frontend.echo", false)
	v.SetDefault("frontend.stop_on_exit", true)

	v.SetDefault("backend.dir", DefaultBackendDir)
	v.SetDefault("backend.command", DefaultBackendCommand)
	v.SetDefault("backend.echo", true)
	v.SetDefault("backend.stop_on_exit", false)

	v.SetDefault("process.graceful_timeout", DefaultGracefulTimeout)
	v.SetDefault("process.drain_timeout", DefaultDrainTimeout)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", DefaultLogMaxSize)
	v.SetDefault("log.max_backups", DefaultLogMaxBackups)
	v.SetDefault("log.max_age", DefaultLogMaxAge)

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", DefaultHistoryPath)

	v.SetDefault("status.addr", "")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.service_name", DefaultServiceName)
}

// Validate validates the configuration
// Validate 验证配置
func (c *Config) Validate() error {
	if c.Shell.Path == "" {
		return errors.New("shell.path is required")
	}

	if c.Frontend.Dir == "" || c.Frontend.Command == "" {
		return errors.New("frontend.dir and frontend.command are required")
	}
	if c.Backend.Dir == "" || c.Backend.Command == "" {
		return errors.New("backend.dir and backend.command are required")
	}

	if c.Process.GracefulTimeout < 0 {
		return errors.New("process.graceful_timeout must not be negative")
	}
	if c.Process.DrainTimeout < 0 {
		return errors.New("process.drain_timeout must not be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	if c.History.Enabled && c.History.Path == "" {
		return errors.New("history.path is required when history is enabled")
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return errors.New("telemetry.endpoint is required when telemetry is enabled")
	}

	return nil
}

// String returns a string representation of the config (for debugging)
// String 返回配置的字符串表示（用于调试）
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Root: %q, Shell: %s %v, Frontend: %q in %s, Backend: %q in %s, Log.Level: %s}",
		c.Project.Root,
		c.Shell.Path,
		c.Shell.Args,
		c.Frontend.Command,
		c.Frontend.Dir,
		c.Backend.Command,
		c.Backend.Dir,
		c.Log.Level,
	)
}

// ToYAML serializes the configuration to YAML format
// ToYAML 将配置序列化为 YAML 格式
func (c *Config) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Equal compares two configs for equality
// Equal 比较两个配置是否相等
func (c *Config) Equal(other *Config) bool {
	if c == nil || other == nil {
		return c == other
	}
	return reflect.DeepEqual(c, other)
}
