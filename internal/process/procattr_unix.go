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

//go:build !windows

package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// prepareCommand puts the child in its own process group so that the whole
// tree started by the shell (npm, node, dotnet) can be signalled at once.
// prepareCommand 将子进程放入独立的进程组，以便一次性向 Shell 启动的整个进程树
// （npm、node、dotnet）发送信号。
func prepareCommand(cmd *exec.Cmd, _ string) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true, // Create new process group / 创建新进程组
	}
}

// terminateGroup sends SIGTERM to the process group led by pid
// terminateGroup 向以 pid 为组长的进程组发送 SIGTERM
func terminateGroup(pid int) error {
	return signalGroup(pid, syscall.SIGTERM)
}

// killGroup sends SIGKILL to the process group led by pid
// killGroup 向以 pid 为组长的进程组发送 SIGKILL
func killGroup(pid int) error {
	return signalGroup(pid, syscall.SIGKILL)
}

func signalGroup(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return ErrProcessNotRunning
	}
	err := syscall.Kill(-pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		// Group already gone; fall back to the leader itself.
		// 进程组已不存在；退回到组长进程本身。
		proc, findErr := os.FindProcess(pid)
		if findErr != nil {
			return findErr
		}
		err = proc.Signal(sig)
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
	}
	return err
}
