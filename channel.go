package main

import (
	"sort"
)

// relayStore holds the per-namespace relay state: the consumer slot and the
// last message. It is not safe for concurrent use; the hub goroutine owns it.
type relayStore interface {
	consumer(namespace string) *connection
	setConsumer(namespace string, c *connection)
	// clearConsumer empties the slot only if c is still the registered
	// consumer, and reports whether it did.
	clearConsumer(namespace string, c *connection) bool
	lastMessage(namespace string) (frame, bool)
	setLastMessage(namespace string, f frame)
	namespaces() []string
}

// channel is the state of one namespace.
type channel struct {
	consumer *connection
	last     *frame
}

type channels map[string]*channel

type memoryStore struct {
	channels channels
}

func newMemoryStore() *memoryStore {
	return &memoryStore{channels: make(channels)}
}

// channel returns the namespace's state, creating it on first use. Namespaces
// come from the allow-list, so channels are never forgotten.
func (s *memoryStore) channel(namespace string) *channel {
	ch, ok := s.channels[namespace]
	if !ok {
		ch = &channel{}
		s.channels[namespace] = ch
	}
	return ch
}

func (s *memoryStore) consumer(namespace string) *connection {
	if ch, ok := s.channels[namespace]; ok {
		return ch.consumer
	}
	return nil
}

func (s *memoryStore) setConsumer(namespace string, c *connection) {
	s.channel(namespace).consumer = c
}

func (s *memoryStore) clearConsumer(namespace string, c *connection) bool {
	ch, ok := s.channels[namespace]
	if !ok || ch.consumer != c {
		return false
	}
	ch.consumer = nil
	return true
}

func (s *memoryStore) lastMessage(namespace string) (frame, bool) {
	ch, ok := s.channels[namespace]
	if !ok || ch.last == nil {
		return frame{}, false
	}
	return *ch.last, true
}

func (s *memoryStore) setLastMessage(namespace string, f frame) {
	s.channel(namespace).last = &f
}

func (s *memoryStore) namespaces() []string {
	names := make([]string, 0, len(s.channels))
	for name := range s.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
