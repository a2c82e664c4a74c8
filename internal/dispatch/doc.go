// Package dispatch is the action queue manager.
//
// A Manager owns the pending-action queue and the registry of running
// background tasks. A single worker loop drains the queue in FIFO order and
// dispatches each item to the handler registered for its kind.
//
// Dispatch modes:
//   - Synchronous: the handler runs on the worker loop with a context that is
//     never cancelled. Synchronous items execute in enqueue order.
//   - Threaded: when threading is allowed and the action carries a task id,
//     the handler runs in its own goroutine with a cancellable context. At
//     most one task per id runs at a time; a second action with a live id is
//     dropped.
//
// Cancellation is cooperative. CancelTask and Stop cancel the task context;
// handlers observe ctx.Done() at their own safe points. Stop bounds its wait
// per task but cannot terminate a handler that ignores cancellation.
//
// Error handling:
//   - Enqueue against an unknown config name → ErrConfigNotFound
//   - Enqueue after Stop → ErrQueueClosed
//   - Missing handler, handler error or handler panic → logged, recorded, loop continues
//   - Duplicate task id → logged, task.duplicate event, action dropped
package dispatch
