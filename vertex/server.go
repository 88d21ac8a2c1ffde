// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package vertex

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-uuid"
	"github.com/qihexiang/jobs-dispatcher/job"
	"github.com/qihexiang/jobs-dispatcher/resources"
)

// Server is the vertex's HTTP control plane (spec §4.7).
type Server struct {
	state  *State
	log    hclog.Logger
	router *mux.Router
}

// NewServer builds a Server backed by state, routing the three
// endpoints spec §4.7 defines, each gated by HTTP Basic auth unless
// the configured user table is empty.
func NewServer(state *State, log hclog.Logger) *Server {
	s := &Server{state: state, log: log, router: mux.NewRouter()}
	s.router.HandleFunc("/free", s.handleFree).Methods(http.MethodGet)
	s.router.HandleFunc("/jobs", s.handleJobs).Methods(http.MethodGet)
	s.router.HandleFunc("/job/{task_id}", s.handleSubmit).Methods(http.MethodPost)
	s.router.Use(s.basicAuth)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// basicAuth gates every request behind HTTP Basic auth against the
// configured user table; an empty table disables auth entirely
// (spec §4.7, matching the original's basic_check semantics).
func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.state.Configuration.Basic) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="vertex"`)
			http.Error(w, "no authorization header found", http.StatusForbidden)
			return
		}
		want, known := s.state.Configuration.Basic[user]
		if !known || subtle.ConstantTimeCompare([]byte(pass), []byte(want)) != 1 {
			http.Error(w, "invalid username or password", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleFree(w http.ResponseWriter, r *http.Request) {
	free := s.state.CurrentFree()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(free); err != nil {
		s.log.Error("failed to encode /free response", "error", err)
	}
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	user, _, _ := r.BasicAuth()
	jobs := s.state.JobsForUser(user)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(jobs); err != nil {
		s.log.Error("failed to encode /jobs response", "error", err)
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	user, _, _ := r.BasicAuth()

	var submitted job.Configuration
	if err := json.NewDecoder(r.Body).Decode(&submitted); err != nil {
		http.Error(w, fmt.Sprintf("invalid job configuration: %v", err), http.StatusBadRequest)
		return
	}

	free := s.state.CurrentFree()
	if !free.Acceptable(submitted.Requirement) {
		http.Error(w, "Resources not enough", http.StatusServiceUnavailable)
		return
	}

	concretized := submitted.WithRequirement(concretizeRequirement(submitted.Requirement, free))

	taskID, err := uuid.GenerateUUID()
	if err != nil {
		http.Error(w, "failed to allocate task id", http.StatusInternalServerError)
		return
	}

	startedAt := time.Now().Unix()
	s.state.SetRunning(user, taskID, concretized, startedAt)
	s.log.Info("job admitted", "user", user, "task_id", taskID, "name", concretized.Name)

	go s.runSupervisor(user, taskID, concretized)

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, taskID)
}

// runSupervisor spawns `<self> supervisor <task_id> <json>` and
// updates the job's terminal status once it exits (spec §4.7/§4.9).
func (s *Server) runSupervisor(user, taskID string, j job.Configuration) {
	payload, err := json.Marshal(j)
	if err != nil {
		s.state.SetError(user, taskID, j, 1, err.Error(), time.Now().Unix())
		return
	}
	self, err := os.Executable()
	if err != nil {
		s.state.SetError(user, taskID, j, 1, err.Error(), time.Now().Unix())
		return
	}

	cmd := exec.Command(self, "supervisor", taskID, string(payload))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err = cmd.Run()
	endedAt := time.Now().Unix()
	if err == nil {
		s.state.SetFinished(user, taskID, j, endedAt)
		s.log.Info("job finished", "task_id", taskID)
		return
	}
	exitCode := 1
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	}
	s.state.SetError(user, taskID, j, exitCode, err.Error(), endedAt)
	s.log.Warn("job failed", "task_id", taskID, "error", err)
}
