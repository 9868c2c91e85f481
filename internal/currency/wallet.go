package currency

import "sync"

// Wallet хранит баланс пользователя в базовой валюте.
type Wallet struct {
	mu      sync.RWMutex
	balance float64
	known   bool
}

// Set заменяет баланс.
func (w *Wallet) Set(balance float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balance = balance
	w.known = true
}

// Get возвращает баланс и признак того, что он был загружен.
func (w *Wallet) Get() (float64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.balance, w.known
}
