// Package services provides cross-cutting helpers shared by pipeline
// components: the error classification used to decide whether a failed step
// should be retried, and context annotations that flow into structured logs.
package services
