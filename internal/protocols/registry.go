package protocols

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"
	"sync"

	"urlconn/internal/common/errors"
)

// Registry maps URL schemes to handlers and opens connections by dispatching
// on a target's scheme. Scheme keys are case-insensitive. It is safe for
// concurrent use.
type Registry struct {
	handlers map[string]Handler
	mu       sync.RWMutex
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register binds scheme to handler, replacing any existing binding.
func (r *Registry) Register(scheme string, handler Handler) error {
	key := normalizeScheme(scheme)
	if key == "" {
		return errors.InvalidArgumentError("scheme is empty")
	}
	if isNilHandler(handler) {
		return errors.InvalidArgumentError(fmt.Sprintf("handler for scheme %s is nil", key))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[key] = handler
	return nil
}

// Lookup returns the handler bound to scheme.
func (r *Registry) Lookup(scheme string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, exists := r.handlers[normalizeScheme(scheme)]
	return handler, exists
}

// IsRegistered checks whether a handler is bound to scheme.
func (r *Registry) IsRegistered(scheme string) bool {
	_, exists := r.Lookup(scheme)
	return exists
}

// GetAvailableTypes returns the registered schemes in sorted order.
func (r *Registry) GetAvailableTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemes := make([]string, 0, len(r.handlers))
	for scheme := range r.handlers {
		schemes = append(schemes, scheme)
	}
	sort.Strings(schemes)
	return schemes
}

// Open parses rawURL and opens a connection with the handler for its scheme.
func (r *Registry) Open(rawURL string) (Connection, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.InvalidArgumentError(fmt.Sprintf("invalid URL %q", rawURL)).
			WithContext("cause", err.Error())
	}
	return r.OpenURL(target)
}

// OpenURL opens a connection to target with the handler for its scheme.
func (r *Registry) OpenURL(target *url.URL) (Connection, error) {
	handler, err := r.handlerFor(target)
	if err != nil {
		return nil, err
	}
	return handler.OpenConnection(target)
}

// OpenVia opens a connection to target through proxy with the handler for
// the target's scheme.
func (r *Registry) OpenVia(target *url.URL, proxy *Proxy) (Connection, error) {
	handler, err := r.handlerFor(target)
	if err != nil {
		return nil, err
	}
	return handler.OpenConnectionVia(target, proxy)
}

func (r *Registry) handlerFor(target *url.URL) (Handler, error) {
	if target == nil {
		return nil, errors.InvalidArgumentError("target == nil")
	}
	if target.Scheme == "" {
		return nil, errors.InvalidArgumentError(fmt.Sprintf("URL %q has no scheme", target.String()))
	}

	handler, exists := r.Lookup(target.Scheme)
	if !exists {
		return nil, errors.UnsupportedError(fmt.Sprintf("unknown protocol: %s", normalizeScheme(target.Scheme)))
	}
	return handler, nil
}

// isNilHandler also catches a nil pointer stored in a non-nil interface.
func isNilHandler(handler Handler) bool {
	if handler == nil {
		return true
	}
	v := reflect.ValueOf(handler)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}

func normalizeScheme(scheme string) string {
	return strings.ToLower(strings.TrimSpace(scheme))
}

// DefaultRegistry is the process-wide registry. Handler packages register
// themselves with it from init.
var DefaultRegistry = NewRegistry()

// Register binds scheme to handler in the default registry.
func Register(scheme string, handler Handler) error {
	return DefaultRegistry.Register(scheme, handler)
}

// Lookup returns the handler bound to scheme in the default registry.
func Lookup(scheme string) (Handler, bool) {
	return DefaultRegistry.Lookup(scheme)
}

// GetAvailableTypes returns the schemes registered with the default registry.
func GetAvailableTypes() []string {
	return DefaultRegistry.GetAvailableTypes()
}

// Open opens rawURL with the default registry.
func Open(rawURL string) (Connection, error) {
	return DefaultRegistry.Open(rawURL)
}

// OpenVia opens target through proxy with the default registry.
func OpenVia(target *url.URL, proxy *Proxy) (Connection, error) {
	return DefaultRegistry.OpenVia(target, proxy)
}
