// Package queue holds books waiting for conversion. Jobs are served by
// priority, then in arrival order, and a path already waiting is not queued
// twice.
package queue
