package store

// ValueProvider is a source of configuration values that can be attached to
// a Store with RegisterValueProvider.
//
// Get returns the values the provider holds for path, keyed by their path
// relative to it; a query for a leaf returns a single entry keyed by the leaf
// segment. Providers without values for path return nil.
//
// Watch asks the provider to call update whenever the values under path
// change. The returned function cancels the watch.
type ValueProvider interface {
	Get(path string) map[string]string
	Watch(path string, update func(path string, values map[string]string)) (unsubscribe func())
}
