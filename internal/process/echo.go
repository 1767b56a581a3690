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
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// BackendMarker selects the backend echo policy when found in a working directory
	// BackendMarker 出现在工作目录中时选用后端回显策略
	BackendMarker = "backend"

	// BackendPrefix is prepended to every echoed backend line
	// BackendPrefix 添加在每一行后端回显输出之前
	BackendPrefix = "[Backend] "

	// CJK Unified Ideographs accepted at the start of a kept line
	// 行首允许的中日韩统一表意文字范围
	cjkFirst = '一'
	cjkLast  = '龥'
)

// EchoPolicy decides whether and how a captured output line is printed
// EchoPolicy 决定捕获的输出行是否打印以及如何打印
type EchoPolicy struct {
	// Prefix is prepended to each printed line / Prefix 添加在每行打印内容之前
	Prefix string

	// Filter drops lines that KeepLine rejects / Filter 丢弃 KeepLine 拒绝的行
	Filter bool
}

// PolicyFor returns the echo policy for a working directory.
// Directories whose path contains "backend" get the prefixed, filtered
// policy; everything else is printed unchanged.
// PolicyFor 返回工作目录对应的回显策略。
// 路径包含 "backend" 的目录使用带前缀并过滤的策略；其他目录原样打印。
func PolicyFor(workDir string) EchoPolicy {
	if strings.Contains(workDir, BackendMarker) {
		return EchoPolicy{Prefix: BackendPrefix, Filter: true}
	}
	return EchoPolicy{}
}

// Apply returns the text to print for line and whether to print it at all
// Apply 返回该行要打印的文本以及是否打印
func (p EchoPolicy) Apply(line string) (string, bool) {
	if p.Filter && !KeepLine(line) {
		return "", false
	}
	return p.Prefix + line, true
}

// KeepLine reports whether line, after leading whitespace, starts with a CJK
// ideograph (U+4E00..U+9FA5) or with '['.
// KeepLine 判断去除前导空白后的行是否以中日韩表意文字（U+4E00..U+9FA5）或 '[' 开头。
func KeepLine(line string) bool {
	trimmed := strings.TrimLeftFunc(line, isSpace)
	r, size := utf8.DecodeRuneInString(trimmed)
	if size == 0 {
		return false
	}
	return r == '[' || (r >= cjkFirst && r <= cjkLast)
}

// isSpace also treats the ASCII separators U+001C..U+001F as whitespace.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}
