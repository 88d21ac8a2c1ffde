// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dispatcher

import (
	"encoding/json"
	"errors"
	"net"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/qihexiang/jobs-dispatcher/queue"
)

// readTimeout bounds how long the admin socket waits to read a
// complete request before closing the connection (spec §5).
const readTimeout = 5 * time.Second

// AdminSocket is the dispatcher's local administrative endpoint: one
// JSON request per connection, authenticated by peer credentials
// (spec §4.6).
type AdminSocket struct {
	path  string
	group *queue.Group
	loop  *ControlLoop
	log   hclog.Logger

	listener *net.UnixListener
}

// NewAdminSocket binds a Unix socket at path, removing any stale
// socket file left behind by a previous run. loop may be nil, in
// which case Status responses omit vertex liveness (used by tests
// that exercise only queue operations).
func NewAdminSocket(path string, group *queue.Group, loop *ControlLoop, log hclog.Logger) (*AdminSocket, error) {
	_ = os.Remove(path)
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, err
	}
	listener, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, err
	}
	return &AdminSocket{path: path, group: group, loop: loop, log: log, listener: listener}, nil
}

// Serve accepts connections until the listener is closed, spawning one
// handler goroutine per connection (spec §5's admin-socket acceptor
// context).
func (s *AdminSocket) Serve() error {
	for {
		conn, err := s.listener.AcceptUnix()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handle(conn)
	}
}

// Close shuts the listener down and removes the socket file.
func (s *AdminSocket) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *AdminSocket) handle(conn *net.UnixConn) {
	defer conn.Close()

	uid, gid, err := peerCredentials(conn)
	if err != nil {
		s.log.Warn("admin socket: could not determine peer credentials", "error", err)
		s.writeResponse(conn, Response{Kind: ResponseInvalidRequest})
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		s.writeResponse(conn, Response{Kind: ResponseInvalidRequest})
		return
	}

	resp := s.dispatch(req, uid, gid)
	s.writeResponse(conn, resp)
}

func (s *AdminSocket) writeResponse(conn *net.UnixConn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("admin socket: failed to marshal response", "error", err)
		return
	}
	if _, err := conn.Write(data); err != nil {
		s.log.Warn("admin socket: failed to write response", "error", err)
	}
}

// dispatch authorizes and executes one request. A non-superuser peer
// always has job.uid/job.gid overwritten with their own credentials —
// a submitter cannot submit on another user's behalf (spec §4.6).
func (s *AdminSocket) dispatch(req Request, peerUID, peerGID uint32) Response {
	switch req.Kind {
	case RequestSubmitJob:
		j := req.Job
		if peerUID != 0 {
			j = j.WithCredentials(peerUID, peerGID)
		}
		taskID, err := s.group.AddToQueue(req.Queue, j)
		if err != nil {
			return Response{Kind: ResponseSubmitFailed}
		}
		return Response{Kind: ResponseSubmitSuccess, TaskID: taskID}

	case RequestDeleteJob:
		err := s.group.RemoveJob(req.TaskID, peerUID)
		switch {
		case err == nil:
			return Response{Kind: ResponseDeleteSuccess}
		case errors.Is(err, queue.ErrPermissionDenied):
			return Response{Kind: ResponseDeleteFailed, Reason: ReasonPermissionDenied}
		default:
			return Response{Kind: ResponseDeleteFailed, Reason: ReasonNotFound}
		}

	case RequestStatus:
		return s.status()

	default:
		return Response{Kind: ResponseInvalidRequest}
	}
}

func (s *AdminSocket) status() Response {
	var queues []QueueStatus
	for _, name := range s.group.Names() {
		q, ok := s.group.Queue(name)
		if !ok {
			continue
		}
		pending := q.Pending()
		queuedCount := 0
		for _, e := range pending {
			if e.Queued() {
				queuedCount++
			}
		}
		queues = append(queues, QueueStatus{
			Name:    name,
			Pending: len(pending),
			Queued:  queuedCount,
			Running: len(q.Running()),
		})
	}
	var vertexes []VertexStatus
	if s.loop != nil {
		vertexes = s.loop.VertexStatuses()
	}
	return Response{Kind: ResponseStatus, Queues: queues, Vertexes: vertexes}
}
