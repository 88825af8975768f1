// Package module is the contract modules implement plus a process wide
// registry binaries use to pull ports out of them
package module

import (
	"reflect"
	"sync"

	phttp "reddcrawl/internal/platform/net/http"
)

// Module mounts routes and exposes a port set for cross wiring
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}

var (
	mu  sync.RWMutex
	reg = map[string]any{}
)

// Register records the port set of a module under name
func Register(name string, ports any) {
	mu.Lock()
	defer mu.Unlock()
	reg[name] = ports
}

// PortsAs returns the port set registered under name as T
func PortsAs[T any](name string) (T, bool) {
	mu.RLock()
	v, ok := reg[name]
	mu.RUnlock()
	out, ok2 := v.(T)
	return out, ok && ok2
}

// Reset empties the registry
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	reg = map[string]any{}
}

// PortsOf finds T in m.Ports(): the value itself, or the first exported
// struct field that implements T
func PortsOf[T any](m Module) (T, bool) {
	var zero T
	p := m.Ports()
	if p == nil {
		return zero, false
	}
	if v, ok := p.(T); ok {
		return v, true
	}
	rv := reflect.ValueOf(p)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return zero, false
	}
	for i := range rv.NumField() {
		f := rv.Field(i)
		if !f.CanInterface() {
			continue
		}
		if v, ok := f.Interface().(T); ok {
			return v, true
		}
	}
	return zero, false
}

// MustPortsOf is PortsOf for wiring code; a missing port is a programming error
func MustPortsOf[T any](m Module) T {
	v, ok := PortsOf[T](m)
	if !ok {
		panic("module: " + m.Name() + " has no port of the requested type")
	}
	return v
}
