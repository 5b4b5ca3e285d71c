// Package flag provides typed thread-safe flags whose values can follow a
// key in a configuration store.
package flag

import (
	"sync"
	"sync/atomic"

	"github.com/achilleasa/hessian2/config/store"
)

type cfgEventToValueMapper func(map[string]string) (interface{}, error)

type flagImpl struct {
	setMutex sync.Mutex
	val      atomic.Value

	// set to 1 once the first value arrives; guards closing hasValueChan.
	hasValue     uint32
	hasValueChan chan struct{}

	changedChan chan struct{}

	// stops the store watcher goroutine.
	cancelOnce sync.Once
	doneChan   chan struct{}
	exitedChan chan struct{}

	valueMapper cfgEventToValueMapper

	// optional comparison used to suppress change events for identical
	// values. Flags wrapping non-comparable types must set it.
	checkEquality func(v1, v2 interface{}) bool
}

// init prepares the flag and, when cfgPath is not empty, starts a goroutine
// that keeps the flag in sync with cfgPath in the supplied store. A nil store
// with a non-empty cfgPath panics.
func (f *flagImpl) init(s *store.Store, valueMapper cfgEventToValueMapper, cfgPath string) {
	f.valueMapper = valueMapper
	f.changedChan = make(chan struct{}, 1)
	f.hasValueChan = make(chan struct{})
	if f.checkEquality == nil {
		f.checkEquality = func(v1, v2 interface{}) bool { return v1 == v2 }
	}

	if cfgPath == "" {
		return
	}
	if s == nil {
		panic("flag: a store instance is required for watching " + cfgPath)
	}

	f.doneChan = make(chan struct{})
	f.exitedChan = make(chan struct{})
	cfgChan, unsubscribe := s.Watch(cfgPath)

	// The current value is always queued by Watch; apply it synchronously so
	// that flags bound to existing keys are usable as soon as init returns.
	f.apply(<-cfgChan)

	go func() {
		defer close(f.exitedChan)
		defer unsubscribe()

		for {
			select {
			case cfg, ok := <-cfgChan:
				if !ok {
					return
				}
				f.apply(cfg)
			case <-f.doneChan:
				return
			}
		}
	}()
}

func (f *flagImpl) apply(cfg map[string]string) {
	if len(cfg) == 0 {
		return
	}
	if val, err := f.valueMapper(cfg); err == nil {
		f.set(val)
	}
}

// get returns the stored value, blocking until the flag receives one.
func (f *flagImpl) get() interface{} {
	<-f.hasValueChan
	return f.val.Load()
}

// set stores val and emits a change event unless val equals the current value.
func (f *flagImpl) set(val interface{}) {
	f.setMutex.Lock()
	defer f.setMutex.Unlock()

	first := atomic.LoadUint32(&f.hasValue) == 0
	if !first && f.checkEquality(f.val.Load(), val) {
		return
	}

	f.val.Store(val)
	if atomic.CompareAndSwapUint32(&f.hasValue, 0, 1) {
		close(f.hasValueChan)
	}

	select {
	case f.changedChan <- struct{}{}:
	default:
	}
}

// HasValue reports whether the flag has been assigned a value.
func (f *flagImpl) HasValue() bool {
	return atomic.LoadUint32(&f.hasValue) == 1
}

// ChangeChan returns a channel that receives an event whenever the flag value
// changes. Events are coalesced while nobody is listening.
func (f *flagImpl) ChangeChan() <-chan struct{} {
	return f.changedChan
}

// CancelDynamicUpdates detaches the flag from the configuration store. It is
// safe to call more than once.
func (f *flagImpl) CancelDynamicUpdates() {
	if f.doneChan == nil {
		return
	}
	f.cancelOnce.Do(func() {
		close(f.doneChan)
		<-f.exitedChan
	})
}

// firstMapElement returns an arbitrary value from m. Watching a leaf key
// always yields a single-entry map so the choice is deterministic there.
func firstMapElement(m map[string]string) string {
	for _, v := range m {
		return v
	}
	return ""
}
