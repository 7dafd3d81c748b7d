// Command cadence runs the conversion service and offers operator tooling:
// one-shot conversions, job history, daemon status and configuration helpers.
package main
