package http

import (
	"urlconn/internal/protocols"
)

// RegisterHandlers binds the http and https schemes in registry to handlers
// built from opts, replacing any existing bindings.
func RegisterHandlers(registry *protocols.Registry, opts Options) error {
	if err := registry.Register("http", NewHandler(opts)); err != nil {
		return err
	}
	return registry.Register("https", NewTLSHandler(opts))
}

// init registers handlers with default options in the default registry when
// the package is imported.
func init() {
	_ = RegisterHandlers(protocols.DefaultRegistry, DefaultOptions())
}
