package main

import (
	"testing"
)

func TestParseRoute(t *testing.T) {
	registry := newNamespaceRegistry([]string{"roomA", "room-b"})

	tests := []struct {
		path      string
		namespace string
		role      role
		err       error
	}{
		{"/roomA/overlay", "roomA", consumer, nil},
		{"/roomA/extension", "roomA", producer, nil},
		{"/room-b/overlay", "room-b", consumer, nil},
		{"/", "", 0, errPathShape},
		{"/overlay", "", 0, errPathShape},
		{"/roomA/overlay/", "", 0, errPathShape},
		{"/roomA/overlay/extra", "", 0, errPathShape},
		{"//overlay", "", 0, errPathShape},
		{"/roomA/", "", 0, errPathShape},
		{"/roomA/consumer", "", 0, errUnknownRole},
		{"/roomA/Overlay", "", 0, errUnknownRole},
		{"/roomB/overlay", "", 0, errNotPermitted},
		{"/roomB/extension", "", 0, errNotPermitted},
		// Role is checked before the namespace
		{"/roomB/nope", "", 0, errUnknownRole},
	}
	for _, tt := range tests {
		namespace, r, err := parseRoute(tt.path, registry)
		if err != tt.err {
			t.Fatal(tt.path, "Expectation:", tt.err, "Received:", err)
		}
		if namespace != tt.namespace || r != tt.role {
			t.Fatal(tt.path, "Expectation:", tt.namespace, tt.role, "Received:", namespace, r)
		}
	}
}

func TestCloseReasonsFitControlFrame(t *testing.T) {
	for _, err := range []error{errPathShape, errUnknownRole, errNotPermitted} {
		// 125 byte control payload minus the 2 byte status code
		if len(err.Error()) > 123 {
			t.Fatal("Expectation: reason <= 123 bytes, Received:", len(err.Error()), err)
		}
	}
}

func TestNamespaceRegistry(t *testing.T) {
	registry := newNamespaceRegistry([]string{"roomB", "roomA"})

	if !registry.isAllowed("roomA") || !registry.isAllowed("roomB") {
		t.Fatal("Expectation: configured namespaces allowed")
	}
	if registry.isAllowed("roomC") || registry.isAllowed("") || registry.isAllowed("ROOMA") {
		t.Fatal("Expectation: anything else refused")
	}
	if names := registry.list(); len(names) != 2 || names[0] != "roomA" {
		t.Fatal("Expectation: sorted [roomA roomB], Received:", names)
	}
}

func TestRoleString(t *testing.T) {
	if consumer.String() != "consumer" || producer.String() != "producer" || role(0).String() != "unknown" {
		t.Fatal("Expectation: consumer/producer/unknown, Received:", consumer, producer, role(0))
	}
}
