// Package recorder is the boundary to conversation persistence. The gateway
// hands each AI interaction to a [Recorder]; [Dispatcher] queues it and
// saves it to a [Store] on a background goroutine so that a slow or failing
// store never delays a caller.
//
// Store implementations live in the memory and postgres sub-packages.
package recorder
