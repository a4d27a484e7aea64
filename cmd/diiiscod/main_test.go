package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunShutdownOrdersSteps(t *testing.T) {
	var order []string
	record := func(name string) func() error {
		return func() error {
			order = append(order, name)
			return nil
		}
	}

	runShutdown([]shutdownStep{
		{name: "http", fn: record("http")},
		{name: "timers", fn: record("timers")},
		{name: "topics", fn: record("topics")},
		{name: "network", fn: record("network")},
	})

	require.Equal(t, []string{"http", "timers", "topics", "network"}, order)
}

func TestRunShutdownContinuesPastFailingStep(t *testing.T) {
	var order []string
	runShutdown([]shutdownStep{
		{name: "http", fn: func() error { order = append(order, "http"); return errors.New("listener already closed") }},
		{name: "timers", fn: func() error { order = append(order, "timers"); return nil }},
	})

	require.Equal(t, []string{"http", "timers"}, order)
}
