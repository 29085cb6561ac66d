// Package observe turns table-level change notifications into live query
// subscriptions.
package observe

import "sync"

// Table identifies a store table whose changes can be observed.
type Table string

// Tables published by the ledger store.
const (
	TableAccounts     Table = "accounts"
	TableCategories   Table = "categories"
	TableTransactions Table = "transactions"
	TablePreferences  Table = "preferences"
)

type listener struct {
	tables map[Table]struct{}
	signal chan struct{}
}

// Notifier fans out "table changed" signals to interested listeners.
//
// Each listener owns a one-slot channel. Publishing never blocks: if a
// listener has not consumed its previous signal the new one is coalesced into
// it, so a slow reader re-queries once instead of once per write.
type Notifier struct {
	listeners map[uint64]*listener
	nextID    uint64
	mu        sync.Mutex
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{listeners: make(map[uint64]*listener)}
}

// Listen registers interest in the given tables. The returned function
// unregisters the listener and is safe to call more than once.
func (n *Notifier) Listen(tables ...Table) (<-chan struct{}, func()) {
	l := &listener{
		tables: make(map[Table]struct{}, len(tables)),
		signal: make(chan struct{}, 1),
	}
	for _, t := range tables {
		l.tables[t] = struct{}{}
	}

	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.listeners[id] = l
	n.mu.Unlock()

	var once sync.Once
	return l.signal, func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.listeners, id)
			n.mu.Unlock()
		})
	}
}

// Publish signals every listener interested in at least one of the tables.
func (n *Notifier) Publish(tables ...Table) {
	if len(tables) == 0 {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	for _, l := range n.listeners {
		if !l.interested(tables) {
			continue
		}
		select {
		case l.signal <- struct{}{}:
		default:
		}
	}
}

// Listeners returns the number of registered listeners.
func (n *Notifier) Listeners() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners)
}

func (l *listener) interested(tables []Table) bool {
	for _, t := range tables {
		if _, ok := l.tables[t]; ok {
			return true
		}
	}
	return false
}
