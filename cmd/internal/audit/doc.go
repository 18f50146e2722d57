// Package audit records security-relevant actions.
//
// Callers hand events to a Recorder, which fills in defaults, strips details
// that are not on the action's allow-list and forwards to a Sink. Recording
// never fails the caller: sink errors are logged and counted.
package audit
