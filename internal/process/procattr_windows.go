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

//go:build windows

package process

import (
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// prepareCommand hands cmd.exe the command line verbatim, since its quoting
// rules differ from the ones exec applies to arguments.
// prepareCommand 将命令行原样交给 cmd.exe，因为其引号规则与 exec 处理参数的规则不同。
func prepareCommand(cmd *exec.Cmd, commandLine string) {
	parts := []string{syscall.EscapeArg(cmd.Path)}
	for _, arg := range cmd.Args[1 : len(cmd.Args)-1] {
		parts = append(parts, syscall.EscapeArg(arg))
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CmdLine:       strings.Join(append(parts, commandLine), " "),
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// terminateGroup has no graceful equivalent for console groups; it kills.
// terminateGroup 对控制台进程组没有优雅的等价操作，直接终止。
func terminateGroup(pid int) error {
	return killGroup(pid)
}

func killGroup(pid int) error {
	if pid <= 0 {
		return ErrProcessNotRunning
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}
