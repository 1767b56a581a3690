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

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// Property: for any valid configuration, serializing to YAML and parsing it
// back produces an equivalent configuration.
// 属性：对于任何有效配置，序列化为 YAML 再解析回来应得到等效配置。
func TestProperty_ConfigYAMLRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := generateValidConfig(t)

		yamlData, err := cfg.ToYAML()
		if err != nil {
			t.Fatalf("Failed to serialize config to YAML: %v", err)
		}

		parsedCfg, err := LoadFromYAML(yamlData)
		if err != nil {
			t.Fatalf("Failed to parse config from YAML: %v\nYAML content:\n%s", err, string(yamlData))
		}

		if !cfg.Equal(parsedCfg) {
			t.Fatalf("Round-trip failed\nOriginal: %+v\nParsed: %+v\nYAML:\n%s",
				cfg, parsedCfg, string(yamlData))
		}
	})
}

// generateValidConfig generates a valid Config for property testing
// generateValidConfig 为属性测试生成有效的 Config
func generateValidConfig(t *rapid.T) *Config {
	word := func(label string) string {
		return rapid.StringMatching(`[a-z][a-z0-9]{0,10}`).Draw(t, label)
	}

	numArgs := rapid.IntRange(1, 3).Draw(t, "numArgs")
	args := make([]string, numArgs)
	for i := range args {
		args[i] = "-" + word("arg")
	}

	telemetryEnabled := rapid.Bool().Draw(t, "telemetryEnabled")
	endpoint := ""
	if telemetryEnabled {
		endpoint = fmt.Sprintf("%s:%d", word("otelHost"), rapid.IntRange(1024, 65535).Draw(t, "otelPort"))
	}

	statusAddr := ""
	if rapid.Bool().Draw(t, "statusEnabled") {
		statusAddr = fmt.Sprintf("127.0.0.1:%d", rapid.IntRange(1024, 65535).Draw(t, "statusPort"))
	}

	return &Config{
		Project: ProjectConfig{
			Root: "/home/" + word("user") + "/" + word("project"),
		},
		Shell: ShellConfig{
			Path:       "/bin/" + word("shell"),
			Args:       args,
			SearchPath: "/usr/" + word("bin"),
		},
		Frontend: ServiceConfig{
			Dir:        word("frontendDir"),
			Command:    word("frontendTool") + " run " + word("frontendScript"),
			Echo:       rapid.Bool().Draw(t, "frontendEcho"),
			StopOnExit: rapid.Bool().Draw(t, "frontendStopOnExit"),
		},
		Backend: ServiceConfig{
			Dir:     word("backendDir"),
			Command: word("backendTool") + " run",
			Echo:    rapid.Bool().Draw(t, "backendEcho"),
		},
		Process: ProcessConfig{
			GracefulTimeout: time.Duration(rapid.IntRange(0, 120).Draw(t, "gracefulSeconds")) * time.Second,
			DrainTimeout:    time.Duration(rapid.IntRange(0, 5000).Draw(t, "drainMillis")) * time.Millisecond,
		},
		Log: LogConfig{
			Level:      rapid.SampledFrom([]string{"debug", "info", "warn", "error"}).Draw(t, "logLevel"),
			File:       "/var/log/" + word("logFileName") + ".log",
			MaxSize:    rapid.IntRange(1, 1000).Draw(t, "maxSize"),
			MaxBackups: rapid.IntRange(1, 100).Draw(t, "maxBackups"),
			MaxAge:     rapid.IntRange(1, 365).Draw(t, "maxAge"),
		},
		History: HistoryConfig{
			Enabled: rapid.Bool().Draw(t, "historyEnabled"),
			Path:    ".devrun/" + word("historyName") + ".db",
		},
		Status: StatusConfig{Addr: statusAddr},
		Telemetry: TelemetryConfig{
			Enabled:     telemetryEnabled,
			Endpoint:    endpoint,
			Insecure:    rapid.Bool().Draw(t, "insecure"),
			ServiceName: word("serviceName"),
		},
	}
}

// Property: a key set in several sources takes the value of the highest
// priority source (command line > env > file > default).
// 属性：在多个来源中设置的键应取最高优先级来源的值（命令行 > 环境变量 > 文件 > 默认值）。
func TestProperty_ConfigLoadingPriority(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		configPath := filepath.Join(t.TempDir(), "devrun.yaml")

		fileCommand := rapid.SampledFrom([]string{"dotnet run", "dotnet watch run"}).Draw(rt, "fileCommand")
		envCommand := rapid.SampledFrom([]string{"go run .", "cargo run"}).Draw(rt, "envCommand")
		cmdCommand := rapid.SampledFrom([]string{"make dev", "npm start"}).Draw(rt, "cmdCommand")

		hasFile := rapid.Bool().Draw(rt, "hasFile")
		hasEnv := rapid.Bool().Draw(rt, "hasEnv")
		hasCmd := rapid.Bool().Draw(rt, "hasCmd")

		content := "log:\n  level: info\n"
		if hasFile {
			content += fmt.Sprintf("backend:\n  command: %q\n", fileCommand)
		}
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			rt.Fatalf("Failed to write config file: %v", err)
		}

		if hasEnv {
			os.Setenv("DEVRUN_BACKEND_COMMAND", envCommand)
			defer os.Unsetenv("DEVRUN_BACKEND_COMMAND")
		} else {
			os.Unsetenv("DEVRUN_BACKEND_COMMAND")
		}

		cmdArgs := make(map[string]interface{})
		if hasCmd {
			cmdArgs["backend.command"] = cmdCommand
		}

		cfg, err := LoadWithPriority(configPath, cmdArgs)
		if err != nil {
			rt.Fatalf("Failed to load config: %v", err)
		}

		var expected string
		switch {
		case hasCmd:
			expected = cmdCommand
		case hasEnv:
			expected = envCommand
		case hasFile:
			expected = fileCommand
		default:
			expected = DefaultBackendCommand
		}

		if cfg.Backend.Command != expected {
			rt.Fatalf("Priority violation: expected %q but got %q (cmd=%v env=%v file=%v)",
				expected, cfg.Backend.Command, hasCmd, hasEnv, hasFile)
		}
	})
}
