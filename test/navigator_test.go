//go:build integration
// +build integration

package test

import (
	"context"
	"sync"

	"github.com/MrEthical07/nextcrm/gateway"
)

type countingNavigator struct {
	mu      sync.Mutex
	reasons []gateway.Reason
}

func (n *countingNavigator) NavigateToLogin(_ context.Context, reason gateway.Reason) error {
	n.mu.Lock()
	n.reasons = append(n.reasons, reason)
	n.mu.Unlock()
	return nil
}

func (n *countingNavigator) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.reasons)
}

func (n *countingNavigator) Last() gateway.Reason {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.reasons) == 0 {
		return ""
	}
	return n.reasons[len(n.reasons)-1]
}
