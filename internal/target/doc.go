// Package target defines the memory/register provider boundary the
// evaluation engine reads through, plus two implementations: an offline
// ELF image reader and a ptrace-based live process reader on Linux.
package target
