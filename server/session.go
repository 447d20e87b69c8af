package server

import (
	"fmt"

	"github.com/plumemail/plume/logger"
)

// ConnectionStatsProvider defines an interface for getting connection statistics
type ConnectionStatsProvider interface {
	GetTotalConnections() int64
	GetAuthenticatedConnections() int64
}

// Session carries the connection-scoped identity shared by all protocol
// sessions: an opaque session ID, the remote address and, once the client
// has authenticated, the bound account name.
type Session struct {
	Id         string
	RemoteIP   string
	Username   string // empty while the session is anonymous
	HostName   string
	ServerName string
	Protocol   string
	Stats      ConnectionStatsProvider
}

func (s *Session) Log(format string, args ...any) {
	user := "none"
	if s.Username != "" {
		user = s.Username
	}

	var protocolPrefix string
	if s.ServerName != "" {
		protocolPrefix = fmt.Sprintf("%s-%s", s.Protocol, s.ServerName)
	} else {
		protocolPrefix = s.Protocol
	}

	if s.Stats != nil {
		logger.Info("Session", "protocol", protocolPrefix, "remote", s.RemoteIP, "user", user, "session", s.Id, "conn_total", s.Stats.GetTotalConnections(), "conn_auth", s.Stats.GetAuthenticatedConnections(), "msg", fmt.Sprintf(format, args...))
	} else {
		logger.Info("Session", "protocol", protocolPrefix, "remote", s.RemoteIP, "user", user, "session", s.Id, "msg", fmt.Sprintf(format, args...))
	}
}

func (s *Session) DebugLog(format string, args ...any) {
	user := "none"
	if s.Username != "" {
		user = s.Username
	}

	var protocolPrefix string
	if s.ServerName != "" {
		protocolPrefix = fmt.Sprintf("%s-%s", s.Protocol, s.ServerName)
	} else {
		protocolPrefix = s.Protocol
	}

	if s.Stats != nil {
		logger.Debug("Session", "protocol", protocolPrefix, "remote", s.RemoteIP, "user", user, "session", s.Id, "conn_total", s.Stats.GetTotalConnections(), "conn_auth", s.Stats.GetAuthenticatedConnections(), "msg", fmt.Sprintf(format, args...))
	} else {
		logger.Debug("Session", "protocol", protocolPrefix, "remote", s.RemoteIP, "user", user, "session", s.Id, "msg", fmt.Sprintf(format, args...))
	}
}

func (s *Session) WarnLog(format string, args ...any) {
	user := "none"
	if s.Username != "" {
		user = s.Username
	}

	var protocolPrefix string
	if s.ServerName != "" {
		protocolPrefix = fmt.Sprintf("%s-%s", s.Protocol, s.ServerName)
	} else {
		protocolPrefix = s.Protocol
	}

	logger.Warn("Session", "protocol", protocolPrefix, "remote", s.RemoteIP, "user", user, "session", s.Id, "msg", fmt.Sprintf(format, args...))
}
