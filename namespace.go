package main

import (
	"errors"
	"sort"
	"strings"
)

// Route tokens clients use to pick a role.
const (
	consumerRoute = "overlay"
	producerRoute = "extension"
)

type role int

const (
	consumer role = iota + 1
	producer
)

func (r role) String() string {
	switch r {
	case consumer:
		return "consumer"
	case producer:
		return "producer"
	default:
		return "unknown"
	}
}

// Admission failures. The messages double as websocket close reasons and
// must stay under the 123 byte control frame limit.
var (
	errPathShape    = errors.New("path must be /{namespace}/overlay or /{namespace}/extension")
	errUnknownRole  = errors.New("role must be overlay or extension")
	errNotPermitted = errors.New("namespace is not allowed")
)

// namespaceRegistry is the fixed allow-list of namespaces. It is read-only
// after construction and shared by every handler.
type namespaceRegistry struct {
	allowed map[string]struct{}
}

func newNamespaceRegistry(names []string) *namespaceRegistry {
	r := &namespaceRegistry{allowed: make(map[string]struct{}, len(names))}
	for _, name := range names {
		r.allowed[name] = struct{}{}
	}
	return r
}

func (r *namespaceRegistry) isAllowed(namespace string) bool {
	_, ok := r.allowed[namespace]
	return ok
}

func (r *namespaceRegistry) list() []string {
	names := make([]string, 0, len(r.allowed))
	for name := range r.allowed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// parseRoute decodes a connection path into its namespace and role. Checks run
// in order: path shape, role token, namespace membership.
func parseRoute(path string, registry *namespaceRegistry) (string, role, error) {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(segments) != 2 || segments[0] == "" || segments[1] == "" {
		return "", 0, errPathShape
	}
	var r role
	switch segments[1] {
	case consumerRoute:
		r = consumer
	case producerRoute:
		r = producer
	default:
		return "", 0, errUnknownRole
	}
	if !registry.isAllowed(segments[0]) {
		return "", 0, errNotPermitted
	}
	return segments[0], r, nil
}
