package remote

import (
	"net"
	"strconv"
	"strings"
)

// Target is a parsed destination of the form [user@]host[:port].
type Target struct {
	User string
	Host string
	Port int
}

func ParseTarget(destination, defaultUser string, defaultPort int) Target {
	t := Target{User: defaultUser, Port: defaultPort}

	rest := destination
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		if user := rest[:i]; user != "" {
			t.User = user
		}
		rest = rest[i+1:]
	}

	if host, port, err := net.SplitHostPort(rest); err == nil {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			t.Port = p
		}
		rest = host
	}

	t.Host = strings.Trim(rest, "[]")
	return t
}

func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// UserHost is the user@host form used by rsync and ssh command lines.
func (t Target) UserHost() string {
	host := t.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if t.User == "" {
		return host
	}
	return t.User + "@" + host
}
