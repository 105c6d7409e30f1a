// Package testutil provides shared fixtures and helpers for integration tests.
//
// It seeds clusters through the admin API, waits on controller states and
// checks computed assignments against the live participant set.
//
// Note: For NATS server setup, use the github.com/arloliu/helmsman/testing package.
package testutil
