package broker

import (
	"fmt"
	"sync"

	"tradevault/internal/types"
)

// Factory resolves broker types to adapter instances. Adapters register
// at wiring time; lookup failures surface as configuration errors, not
// panics mid-sync.
type Factory struct {
	mu       sync.RWMutex
	adapters map[types.BrokerType]Adapter
}

func NewFactory() *Factory {
	return &Factory{adapters: make(map[types.BrokerType]Adapter)}
}

func (f *Factory) Register(a Adapter) error {
	if a == nil {
		return fmt.Errorf("nil adapter")
	}
	bt := a.Broker()
	if !bt.Valid() {
		return fmt.Errorf("unsupported broker type: %s", bt)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.adapters[bt]; dup {
		return fmt.Errorf("adapter already registered for broker %s", bt)
	}
	f.adapters[bt] = a
	return nil
}

func (f *Factory) Adapter(bt types.BrokerType) (Adapter, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	a, ok := f.adapters[bt]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for broker %s", bt)
	}
	return a, nil
}
