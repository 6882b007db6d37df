package test

import (
	"context"
	"errors"
	"fmt"

	nextcrm "github.com/MrEthical07/nextcrm"
	"github.com/MrEthical07/nextcrm/gateway"
)

// ExampleNew demonstrates client construction with a navigator that is told
// when the session can no longer be refreshed.
func ExampleNew() {
	client, _ := nextcrm.New().
		WithBaseURL("https://crm.example.com").
		WithNavigator(gateway.NavigatorFunc(func(_ context.Context, reason gateway.Reason) error {
			fmt.Println("login required:", reason)
			return nil
		})).
		Build()
	_ = client
}

// ExampleClient_ListContracts shows a filtered list call and structured error handling.
func ExampleClient_ListContracts() {
	var client *nextcrm.Client
	page, err := client.ListContracts(context.Background(), nextcrm.ContractFilters{Status: nextcrm.ContractDraft})
	switch {
	case errors.Is(err, nextcrm.ErrSessionExpired):
		// The navigator already sent the user to login.
	case err != nil:
		_ = nextcrm.ValidationErrors(err)
	default:
		_ = page.Results
	}
}

// ExampleClient_MetricsSnapshot shows how to read in-process metrics counters.
func ExampleClient_MetricsSnapshot() {
	var client *nextcrm.Client
	snapshot := client.MetricsSnapshot()
	_ = snapshot.Counters[nextcrm.MetricRefreshSuccess]
}
