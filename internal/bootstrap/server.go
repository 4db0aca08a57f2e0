package bootstrap

import (
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/api"
)

// ServerComponents holds the HTTP server and error channel.
type ServerComponents struct {
	Server    *api.Server
	ErrorChan <-chan error
}

// SetupHTTPServer creates and starts the HTTP server.
// Returns the server and an error channel for server errors.
func SetupHTTPServer(deps *CommandDeps, svc *ServiceComponents, version string) *ServerComponents {
	handler := api.NewHandler(svc.Scheduler, svc.Dedup, deps.Registry, version, deps.Logger)

	server := api.NewServer(api.Config{
		Port:  deps.Config.Server.Port,
		Debug: deps.Config.Server.Debug,
	}, handler, svc.Registry, deps.Logger)

	errChan := server.StartAsync()

	return &ServerComponents{
		Server:    server,
		ErrorChan: errChan,
	}
}
