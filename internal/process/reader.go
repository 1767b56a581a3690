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
	"bufio"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// lineReader reads text lines from a child's merged output stream.
// Invalid UTF-8 is replaced with U+FFFD, and "\r\n" or a lone "\r" ends a
// line the same way "\n" does. Every returned line ends in "\n" except a
// final line that had no terminator.
// lineReader 从子进程合并的输出流读取文本行。
// 无效 UTF-8 会替换为 U+FFFD，"\r\n" 或单独的 "\r" 与 "\n" 一样结束一行。
// 除了没有结束符的最后一行外，返回的每一行都以 "\n" 结尾。
type lineReader struct {
	r *bufio.Reader
}

func newLineReader(r io.Reader) *lineReader {
	decoded := transform.NewReader(r, unicode.UTF8.NewDecoder())
	return &lineReader{r: bufio.NewReader(decoded)}
}

// ReadLine returns the next line. A non-empty line may come back together
// with io.EOF when the stream ends without a terminator.
// ReadLine 返回下一行。流在没有结束符时结束，可能同时返回非空行与 io.EOF。
func (l *lineReader) ReadLine() (string, error) {
	var sb strings.Builder
	for {
		c, err := l.r.ReadByte()
		if err != nil {
			return sb.String(), err
		}
		switch c {
		case '\n':
			sb.WriteByte('\n')
			return sb.String(), nil
		case '\r':
			sb.WriteByte('\n')
			if next, err := l.r.Peek(1); err == nil && next[0] == '\n' {
				_, _ = l.r.ReadByte()
			}
			return sb.String(), nil
		default:
			sb.WriteByte(c)
		}
	}
}
