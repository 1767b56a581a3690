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
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func readAll(t *testing.T, input string) []string {
	t.Helper()
	r := newLineReader(strings.NewReader(input))
	var lines []string
	for {
		line, err := r.ReadLine()
		if line != "" {
			lines = append(lines, line)
		}
		if err != nil {
			assert.ErrorIs(t, err, io.EOF)
			return lines
		}
	}
}

func TestLineReader(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"lf", "a\nb\n", []string{"a\n", "b\n"}},
		{"crlf", "a\r\nb\r\n", []string{"a\n", "b\n"}},
		{"lone cr", "a\rb\r", []string{"a\n", "b\n"}},
		{"blank lines", "\n\n", []string{"\n", "\n"}},
		{"unterminated tail", "a\nlast", []string{"a\n", "last"}},
		{"cr then crlf", "a\r\r\nb", []string{"a\n", "\n", "b"}},
		{"utf8", "启动\n", []string{"启动\n"}},
		{"invalid utf8", "a\xffb\n", []string{"a�b\n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, readAll(t, tt.input))
		})
	}
}
