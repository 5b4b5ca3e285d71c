// Package store implements a thread-safe versioned configuration store.
package store

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

var (
	splitRegex = regexp.MustCompile(pathDelimiter + "+")

	// Hooks that let tests observe the watcher fanout goroutines.
	beforeUpdateHookFn func()
	afterUpdateHookFn  func()
)

// UnsubscribeFunc cancels a change watcher. Only the first call has an effect.
type UnsubscribeFunc func()

type changeWatcher struct {
	id         int
	changeChan chan map[string]string

	// closed before changeChan so that in-flight fanout goroutines never
	// write to a closed channel.
	doneChan chan struct{}

	// cancels the provider watches installed on behalf of this watcher.
	providerUnsubs []func()
}

type registeredProvider struct {
	version  int
	provider ValueProvider
}

// Store is a versioned configuration tree. Keys are "/" separated paths such
// as "transport/http/port" and values are strings.
//
// Every value is written together with a version. A write only replaces an
// existing leaf if its version is greater than or equal to the version of the
// leaf, which lets several configuration sources be layered: defaults are
// written with version 0, value providers with a version derived from their
// registration order and explicit SetKey calls with whatever version the
// caller picks.
//
// The zero value is ready to use.
type Store struct {
	mutex         sync.Mutex
	root          *node
	nextWatcherID int
	watchers      map[string][]changeWatcher

	providerMutex sync.Mutex
	providers     []registeredProvider
}

// Reset removes all values, watchers and value providers.
func (s *Store) Reset() {
	s.providerMutex.Lock()
	s.providers = nil
	s.providerMutex.Unlock()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, watchers := range s.watchers {
		for _, w := range watchers {
			for _, unsub := range w.providerUnsubs {
				unsub()
			}
		}
	}
	s.root = nil
	s.watchers = nil
}

// RegisterValueProvider attaches a value provider to the store. Providers
// registered later take precedence over earlier ones and all providers take
// precedence over defaults. Provider values are pulled lazily whenever a path
// is queried or watched.
func (s *Store) RegisterValueProvider(provider ValueProvider) {
	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()

	s.providers = append(s.providers, registeredProvider{
		version:  len(s.providers) + 1,
		provider: provider,
	})
}

// Get returns the leaf values of the subtree rooted at path keyed by their
// path relative to it. A path pointing at a leaf yields a single entry keyed
// by the last path segment; an unknown path yields an empty map.
//
// Leading and trailing delimiters are ignored so "/foo", "foo/" and "foo"
// refer to the same node.
func (s *Store) Get(path string) map[string]string {
	s.pullProviderValues(path)

	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.get(path)
}

// SetKey stores value at path if version is not older than the version of
// the existing entry. It reports whether the store was modified.
func (s *Store) SetKey(version int, path, value string) (bool, error) {
	if strings.Trim(path, pathDelimiter) == "" {
		return false, fmt.Errorf("store: empty key")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.set(version, path, value), nil
}

// SetKeys applies a set of values whose keys are relative to path, using the
// same version rules as SetKey. Keys must be non-empty and a key may not
// address both a leaf and a subtree (e.g. "a" and "a/b" in the same call).
func (s *Store) SetKeys(version int, path string, values map[string]string) (bool, error) {
	if len(values) == 0 {
		return false, nil
	}

	tree, err := expandKeys(values)
	if err != nil {
		return false, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.set(version, path, tree), nil
}

// expandKeys converts a flat {"a/b": "1"} map into the nested map form that
// node.merge understands.
func expandKeys(values map[string]string) (map[string]interface{}, error) {
	root := make(map[string]interface{})
	for key, value := range values {
		if key == "" {
			return nil, fmt.Errorf("store: value map contains an empty key")
		}

		segments := splitRegex.Split(strings.Trim(key, pathDelimiter), -1)
		level := root
		for i, segment := range segments {
			if segment == "" {
				return nil, fmt.Errorf("store: value map contains an empty segment for key %q", key)
			}

			if i == len(segments)-1 {
				if _, isMap := level[segment].(map[string]interface{}); isMap {
					return nil, fmt.Errorf("store: value map contains both a value and a sub-path for %q", strings.Join(segments[:i+1], pathDelimiter))
				}
				level[segment] = value
				continue
			}

			switch existing := level[segment].(type) {
			case nil:
				next := make(map[string]interface{})
				level[segment] = next
				level = next
			case map[string]interface{}:
				level = existing
			default:
				return nil, fmt.Errorf("store: value map contains both a value and a sub-path for %q", strings.Join(segments[:i+1], pathDelimiter))
			}
		}
	}
	return root, nil
}

// Watch registers a watcher for the subtree rooted at path. The returned
// channel is buffered and immediately receives the current value of the
// subtree (the same map Get would return); afterwards it receives a fresh copy
// of the subtree every time it changes. Updates are dropped while the channel
// is full so a slow consumer only ever sees the latest values.
//
// Watching a path that does not exist yet is allowed; the initial value is
// then an empty map.
func (s *Store) Watch(path string) (<-chan map[string]string, UnsubscribeFunc) {
	path = pathDelimiter + strings.Trim(path, pathDelimiter)

	s.pullProviderValues(path)
	unsubs := s.watchProviders(path)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.watchers == nil {
		s.watchers = make(map[string][]changeWatcher)
	}

	s.nextWatcherID++
	watcher := changeWatcher{
		id:             s.nextWatcherID,
		changeChan:     make(chan map[string]string, 1),
		doneChan:       make(chan struct{}),
		providerUnsubs: unsubs,
	}

	watcher.changeChan <- s.get(path)
	s.watchers[path] = append(s.watchers[path], watcher)

	return watcher.changeChan, s.unwatch(path, watcher.id)
}

func (s *Store) unwatch(path string, watcherID int) UnsubscribeFunc {
	return func() {
		s.mutex.Lock()
		defer s.mutex.Unlock()

		for index, watcher := range s.watchers[path] {
			if watcher.id != watcherID {
				continue
			}

			for _, unsub := range watcher.providerUnsubs {
				unsub()
			}
			close(watcher.doneChan)
			close(watcher.changeChan)
			s.watchers[path] = append(s.watchers[path][:index], s.watchers[path][index+1:]...)
			return
		}
	}
}

// pullProviderValues merges the values each registered provider has for path.
func (s *Store) pullProviderValues(path string) {
	for _, p := range s.registeredProviders() {
		values := p.provider.Get(path)
		if len(values) == 0 {
			continue
		}
		s.applyProviderValues(p.version, path, values)
	}
}

func (s *Store) watchProviders(path string) []func() {
	var unsubs []func()
	for _, p := range s.registeredProviders() {
		version := p.version
		unsubs = append(unsubs, p.provider.Watch(path, func(path string, values map[string]string) {
			s.applyProviderValues(version, path, values)
		}))
	}
	return unsubs
}

// applyProviderValues stores provider values. A provider answers a query for
// a leaf path with a single entry keyed by the leaf segment, which is written
// to the leaf itself.
func (s *Store) applyProviderValues(version int, path string, values map[string]string) {
	trimmed := strings.Trim(path, pathDelimiter)
	segments := strings.Split(trimmed, pathDelimiter)
	if leaf, ok := values[segments[len(segments)-1]]; ok && len(values) == 1 && trimmed != "" {
		s.SetKey(version, trimmed, leaf)
		return
	}
	s.SetKeys(version, trimmed, values)
}

func (s *Store) registeredProviders() []registeredProvider {
	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()
	return append([]registeredProvider(nil), s.providers...)
}

// notifyWatchers is the node change callback. Each watcher of the changed
// node receives its own copy of the subtree values from a separate goroutine.
// Must be called with the store mutex held.
func (s *Store) notifyWatchers(n *node) {
	watchers := s.watchers[n.path()]
	if len(watchers) == 0 {
		return
	}

	values := n.leafValues("", true)
	for index, watcher := range watchers {
		valueCopy := values
		if index != 0 {
			valueCopy = make(map[string]string, len(values))
			for k, v := range values {
				valueCopy[k] = v
			}
		}

		go func(watcher changeWatcher, values map[string]string) {
			if afterUpdateHookFn != nil {
				defer afterUpdateHookFn()
			}
			if beforeUpdateHookFn != nil {
				beforeUpdateHookFn()
			}

			select {
			case <-watcher.doneChan:
			case watcher.changeChan <- values:
			default:
			}
		}(watcher, valueCopy)
	}
}

// get must be called with the store mutex held.
func (s *Store) get(path string) map[string]string {
	root := s.lookup(path, false)
	if root == nil {
		return make(map[string]string)
	}
	return root.leafValues("", true)
}

// set must be called with the store mutex held.
func (s *Store) set(version int, path string, value interface{}) bool {
	return s.lookup(path, true).merge(version, value, s.notifyWatchers)
}

// lookup walks the tree along path and returns the node for its last segment,
// creating missing nodes when create is true. It returns nil for unknown
// paths otherwise.
func (s *Store) lookup(path string, create bool) *node {
	if s.root == nil {
		s.root = makeNode("", 0, nil)
	}

	path = strings.Trim(path, pathDelimiter)
	if path == "" {
		return s.root
	}

	cur := s.root
	for _, segment := range splitRegex.Split(path, -1) {
		next := cur.paths[segment]
		if next == nil {
			if !create {
				return nil
			}
			next = makeNode(segment, cur.depth+1, cur)
		}
		cur = next
	}
	return cur
}
