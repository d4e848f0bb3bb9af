// Package sysstat samples host CPU and memory usage from procfs.
//
// CPU percentage is the busy share of jiffies between two consecutive
// samples; the first sample uses the share since boot. When /proc/stat is
// unreadable the one-minute load average divided by the CPU count is used.
package sysstat
