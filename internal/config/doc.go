// Package config provides configuration structures and utilities for surveilscope.
// It defines the process-level options (CLI flags, server address, storage
// location, message bus) and the detection Settings the coordinator runs with.
package config
