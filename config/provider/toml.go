package provider

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// TOMLFile serves configuration values from a TOML document. Tables map to
// path segments, so
//
//	[transport.http]
//	port = 8080
//
// provides the key "transport/http/port" with value "8080". Arrays are
// flattened using the element index as the final segment.
type TOMLFile struct {
	path string

	mutex         sync.Mutex
	values        map[string]string
	nextWatcherID int
	watchers      map[int]tomlWatcher
}

type tomlWatcher struct {
	path   string
	update func(string, map[string]string)
}

// NewTOMLFile parses the TOML file at path.
func NewTOMLFile(path string) (*TOMLFile, error) {
	p := &TOMLFile{
		path:     path,
		watchers: make(map[int]tomlWatcher),
	}
	if err := p.load(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload re-reads the file and pushes the values of every watched path to
// its watcher. Keys removed from the file keep their last value in the store.
func (p *TOMLFile) Reload() error {
	if err := p.load(); err != nil {
		return err
	}

	p.mutex.Lock()
	watchers := make([]tomlWatcher, 0, len(p.watchers))
	for _, w := range p.watchers {
		watchers = append(watchers, w)
	}
	p.mutex.Unlock()

	for _, w := range watchers {
		if values := p.Get(w.path); len(values) != 0 {
			w.update(w.path, values)
		}
	}
	return nil
}

func (p *TOMLFile) load() error {
	var doc map[string]interface{}
	if _, err := toml.DecodeFile(p.path, &doc); err != nil {
		return fmt.Errorf("config: loading %s: %w", p.path, err)
	}

	values := make(map[string]string)
	flatten("", doc, values)

	p.mutex.Lock()
	p.values = values
	p.mutex.Unlock()
	return nil
}

func flatten(prefix string, value interface{}, out map[string]string) {
	join := func(segment string) string {
		if prefix == "" {
			return segment
		}
		return prefix + "/" + segment
	}

	switch v := value.(type) {
	case map[string]interface{}:
		for key, child := range v {
			flatten(join(key), child, out)
		}
	case []map[string]interface{}:
		for i, child := range v {
			flatten(join(strconv.Itoa(i)), child, out)
		}
	case []interface{}:
		for i, child := range v {
			flatten(join(strconv.Itoa(i)), child, out)
		}
	case string:
		out[prefix] = v
	case time.Time:
		out[prefix] = v.Format(time.RFC3339Nano)
	default:
		out[prefix] = fmt.Sprint(v)
	}
}

// Get returns the values below path keyed relative to it. A path naming a
// single value yields one entry keyed by its last segment.
func (p *TOMLFile) Get(path string) map[string]string {
	path = strings.Trim(path, "/")

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if v, ok := p.values[path]; ok && path != "" {
		return map[string]string{path[strings.LastIndex(path, "/")+1:]: v}
	}

	var cfg map[string]string
	prefix := path + "/"
	for key, v := range p.values {
		if path != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		if cfg == nil {
			cfg = make(map[string]string)
		}
		cfg[strings.TrimPrefix(key, prefix)] = v
	}
	return cfg
}

// Watch registers update to be called with the values of path whenever the
// file is reloaded.
func (p *TOMLFile) Watch(path string, update func(string, map[string]string)) func() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.nextWatcherID++
	id := p.nextWatcherID
	p.watchers[id] = tomlWatcher{path: path, update: update}

	return func() {
		p.mutex.Lock()
		defer p.mutex.Unlock()
		delete(p.watchers, id)
	}
}
