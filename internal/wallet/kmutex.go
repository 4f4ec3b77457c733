package wallet

import "sync"

// accountMutex serializes work per account. Entries are removed on unlock so
// the map only holds accounts with a build in flight.
type accountMutex struct {
	m sync.Map // uint32 -> *sync.Mutex
}

// Lock blocks until the account's mutex is held by the caller.
func (k *accountMutex) Lock(account uint32) {
	for {
		mu := &sync.Mutex{}
		mu.Lock()
		held, loaded := k.m.LoadOrStore(account, mu)
		if !loaded {
			return
		}
		// Someone else holds the account. Wait for them to release it and
		// race for a fresh entry.
		other := held.(*sync.Mutex)
		other.Lock()
		other.Unlock()
	}
}

// Unlock releases the account. Unlocking an account that is not locked panics.
func (k *accountMutex) Unlock(account uint32) {
	held, ok := k.m.LoadAndDelete(account)
	if !ok {
		panic("wallet: unlock of unlocked account")
	}
	held.(*sync.Mutex).Unlock()
}
