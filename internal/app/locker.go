/**
 * @description
 * This file provides the per-card operation locks used by the service layer.
 * Every balance mutation is a load-modify-persist sequence; serializing those
 * sequences per card prevents lost updates between concurrent sessions.
 *
 * @notes
 * - Multi-card acquisition (transfers) deduplicates and sorts the cards so
 *   both sides always lock in ascending card order, which rules out deadlock
 *   between two opposite transfers.
 *
 * @dependencies
 * - sort, sync: Standard Go libraries.
 */
package app

import (
	"sort"
	"sync"
)

// cardLocker hands out one mutex per card number.
type cardLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newCardLocker() *cardLocker {
	return &cardLocker{locks: make(map[string]*sync.Mutex)}
}

func (c *cardLocker) mutexFor(cardNumber string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.locks[cardNumber]
	if !ok {
		m = &sync.Mutex{}
		c.locks[cardNumber] = m
	}
	return m
}

// Lock acquires the mutexes for the given cards in ascending card order and
// returns the release function. Duplicate cards are locked once.
func (c *cardLocker) Lock(cardNumbers ...string) func() {
	unique := make([]string, 0, len(cardNumbers))
	seen := make(map[string]struct{}, len(cardNumbers))
	for _, card := range cardNumbers {
		if _, ok := seen[card]; !ok {
			seen[card] = struct{}{}
			unique = append(unique, card)
		}
	}
	sort.Strings(unique)

	held := make([]*sync.Mutex, 0, len(unique))
	for _, card := range unique {
		m := c.mutexFor(card)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
