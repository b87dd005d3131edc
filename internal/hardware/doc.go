// Package hardware probes the local machine's memory, CPU, and GPU
// capabilities so the pipeline can pick an operating mode without user input.
package hardware
