//go:build !amd64

package trapstub

import "sync"

// contextSwitch on non-amd64 architectures is a goroutine hand-off
// shim, not a frame-to-frame register switch: there is no amd64
// assembly backend for this GOARCH. It exists so the rest of this
// module — the bundle store, the handler's gating logic, the dismantle
// path — builds and its tests run on any platform; the spec's actual
// switching contract (resume exactly where the new frame left off,
// without unwinding any Go call stack) only holds on amd64. Do not wire
// this into a production registration path (package device's
// RequireAMD64 reports false for every GOARCH but amd64, for callers to
// check before Register; Register itself does not check GOARCH).
var genericSwitchMu sync.Mutex
var genericWaiters = map[*Frame]chan struct{}{}

func contextSwitch(cur, next *Frame) {
	genericSwitchMu.Lock()
	if genericWaiters[cur] == nil {
		genericWaiters[cur] = make(chan struct{})
	}
	if genericWaiters[next] == nil {
		genericWaiters[next] = make(chan struct{})
	}
	curCh, nextCh := genericWaiters[cur], genericWaiters[next]
	genericSwitchMu.Unlock()

	select {
	case nextCh <- struct{}{}:
	default:
	}
	<-curCh
}
