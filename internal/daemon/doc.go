// Package daemon hosts the long-running adforge process: the HTTP API that
// front-ends drive, the dispatcher and reconciler lifecycles, and the lock
// file that keeps deployments down to a single instance per data directory.
package daemon
