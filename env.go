package fluent

import (
	"net"
	"os"
	"strings"
)

// Env is the execution environment used to pick a default profile.
type Env string

// Execution environments.
const (
	EnvCLI        Env = "cli"
	EnvLocal      Env = "local"
	EnvProduction Env = "production"
)

// EnvVar overrides environment detection when set to cli, local or production.
const EnvVar = "FLUENT_ENV"

// EnvProbe reports the execution environment of the caller.
type EnvProbe func() Env

// DetectEnv is the default EnvProbe. A valid FLUENT_ENV value wins;
// otherwise the process is a standalone command-line run, whether or not it
// is attached to a terminal. Servers select their environment per request
// with HostProbe, or process-wide with FixedEnv or FLUENT_ENV=production.
func DetectEnv() Env {
	switch env := Env(strings.ToLower(os.Getenv(EnvVar))); env {
	case EnvCLI, EnvLocal, EnvProduction:
		return env
	}
	return EnvCLI
}

// FixedEnv returns a probe that always reports env.
func FixedEnv(env Env) EnvProbe {
	return func() Env { return env }
}

// HostProbe returns a probe for a request addressed to host (as found in an
// HTTP Host header). Loopback hosts are local development, anything else is
// production.
func HostProbe(host string) EnvProbe {
	if isLocalHost(host) {
		return FixedEnv(EnvLocal)
	}
	return FixedEnv(EnvProduction)
}

func isLocalHost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
