package training

import "sync"

// ProfileLocks serializes mutations per profile. The repository and tracker
// assume a single writer; servers handling concurrent requests take the
// profile's lock around every read-modify-write.
type ProfileLocks struct {
	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

// NewProfileLocks returns an empty lock set.
func NewProfileLocks() *ProfileLocks {
	return &ProfileLocks{locks: map[int]*sync.Mutex{}}
}

// Lock acquires the lock for userID and returns its release func.
func (p *ProfileLocks) Lock(userID int) func() {
	p.mu.Lock()
	m, ok := p.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		p.locks[userID] = m
	}
	p.mu.Unlock()

	m.Lock()
	return m.Unlock
}
