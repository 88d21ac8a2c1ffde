// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

//go:build linux

package supervisor

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	cgroups "github.com/opencontainers/cgroups"
	"github.com/opencontainers/cgroups/fs2"
	"github.com/qihexiang/jobs-dispatcher/job"
)

// cgroupParent is the slice every job's cgroup is nested under.
const cgroupParent = "jobs-dispatcher"

// New builds a Supervisor, resolving the dispatcher binary's own path
// so it can re-exec itself as "executor" (spec §4.9 step 5).
func New(log hclog.Logger) (*Supervisor, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("supervisor: resolve self executable: %w", err)
	}
	return &Supervisor{log: log, selfExe: exe}, nil
}

// Run executes taskID/cfg to completion: build cgroup, join it, open
// the job's log files, spawn the executor re-exec under cfg's uid/gid,
// wait bounded by cfg.TimeLimit, then tear the cgroup down (spec §4.9).
func (s *Supervisor) Run(taskID string, cfg job.Configuration) error {
	s.log.Info("building cgroup", "task_id", taskID)
	manager, err := s.buildCgroup(taskID, cfg)
	if err != nil {
		return fmt.Errorf("supervisor: cgroup: %w", err)
	}
	defer s.teardownCgroup(taskID, manager)

	if err := manager.Apply(os.Getpid()); err != nil {
		return fmt.Errorf("supervisor: apply cgroup: %w", err)
	}

	stdout, err := openLogFile(cfg.StdoutFile, cfg.UID, cfg.GID)
	if err != nil {
		return fmt.Errorf("supervisor: stdout file: %w", err)
	}
	defer stdout.Close()
	stderr, err := openLogFile(cfg.StderrFile, cfg.UID, cfg.GID)
	if err != nil {
		return fmt.Errorf("supervisor: stderr file: %w", err)
	}
	defer stderr.Close()

	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("supervisor: marshal job configuration: %w", err)
	}

	cmd := exec.Command(s.selfExe, "executor", string(payload))
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Credential: &syscall.Credential{Uid: cfg.UID, Gid: cfg.GID},
	}

	s.log.Info("starting executor", "task_id", taskID, "uid", cfg.UID, "gid", cfg.GID)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("supervisor: start executor: %w", err)
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	if cfg.TimeLimit == 0 {
		err := <-waitCh
		s.log.Info("executor exited", "task_id", taskID, "error", err)
		return err
	}

	select {
	case err := <-waitCh:
		s.log.Info("executor exited", "task_id", taskID, "error", err)
		return err
	case <-time.After(time.Duration(cfg.TimeLimit) * time.Second):
		s.log.Warn("time limit reached, killing executor", "task_id", taskID)
		_ = cmd.Process.Kill()
		<-waitCh
		return fmt.Errorf("supervisor: time limit of %ds exceeded", cfg.TimeLimit)
	}
}

// buildCgroup constructs (but does not yet join) a unified-hierarchy
// cgroup scoping cpuset/memory to cfg's requirement.
func (s *Supervisor) buildCgroup(taskID string, cfg job.Configuration) (cgroups.Manager, error) {
	cg := &cgroups.Cgroup{
		Path: "/" + cgroupParent + "/" + taskID,
		Resources: &cgroups.Resources{
			CpusetCpus: cfg.Requirement.CPUs.String(),
			CpusetMems: cfg.Requirement.Mems.String(),
			Memory:     int64(cfg.Requirement.Countables.Get("memory")),
		},
	}
	manager, err := fs2.NewManager(cg, "")
	if err != nil {
		return nil, err
	}
	if err := manager.Set(cg.Resources); err != nil {
		return nil, err
	}
	return manager, nil
}

// teardownCgroup moves the supervisor itself back to the root cgroup,
// kills any tasks still resident (the executor itself should already
// be gone by the time this runs) and removes the cgroup. Errors are
// logged, not returned: by the time we're tearing down, the job's
// outcome has already been decided.
func (s *Supervisor) teardownCgroup(taskID string, manager cgroups.Manager) {
	self := os.Getpid()
	if err := os.WriteFile("/sys/fs/cgroup/cgroup.procs", []byte(fmt.Sprintf("%d", self)), 0o644); err != nil {
		s.log.Warn("failed to leave job cgroup", "task_id", taskID, "error", err)
	}
	if pids, err := manager.GetPids(); err == nil {
		for _, pid := range pids {
			if pid == self {
				continue
			}
			_ = syscall.Kill(pid, syscall.SIGKILL)
		}
	}
	if err := manager.Destroy(); err != nil {
		s.log.Warn("failed to destroy cgroup", "task_id", taskID, "error", err)
	}
}

// openLogFile creates (or truncates) path and chowns it to uid/gid so
// the privilege-dropped executor can still write to it (spec §4.9).
func openLogFile(path string, uid, gid uint32) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Chown(int(uid), int(gid)); err != nil {
		f.Close()
		return nil, fmt.Errorf("chown %s: %w", path, err)
	}
	return f, nil
}
