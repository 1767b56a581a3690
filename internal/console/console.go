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

// Package console serializes what devrun prints for humans.
// console 包负责串行化 devrun 面向用户的输出。
//
// Child output goes to the output stream so it can be piped; banners go to
// the diagnostic stream.
// 子进程输出写入输出流以便管道处理；横幅写入诊断流。
package console

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Console is safe for concurrent use by several drain goroutines
// Console 可被多个读取 goroutine 并发使用
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	diag   io.Writer
	banner lipgloss.Style
}

// New creates a console; nil writers default to stdout and stderr
// New 创建控制台；nil 写入器默认为标准输出和标准错误
func New(out, diag io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	if diag == nil {
		diag = os.Stderr
	}
	renderer := lipgloss.NewRenderer(diag)
	return &Console{
		out:  out,
		diag: diag,
		banner: renderer.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("75")),
	}
}

// WriteLine writes one line exactly as given, without adding a line break
// WriteLine 按原样写入一行，不额外添加换行
func (c *Console) WriteLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.out, line)
	return err
}

// Banner prints a section title such as "=== 启动后端服务 ==="
// Banner 打印分节标题，例如 "=== 启动后端服务 ==="
func (c *Console) Banner(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.diag, c.banner.Render(fmt.Sprintf("=== %s ===", title)))
}
