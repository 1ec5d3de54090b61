// Package workflow schedules pipeline instances as durable, independently
// retryable units of work. Instances persist in a SQLite store; a manager
// with a configurable worker pool claims pending instances and drives each
// through the pipeline state machine, retrying retryable step failures with
// exponential backoff and rolling back when a step ultimately fails.
package workflow
