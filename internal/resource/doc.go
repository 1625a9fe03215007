// Package resource bounds what a stamp run may hold at once: bytes of
// canvases and the reserved block cache, the number of decompressed tiles in
// memory, and the read throughput against the survey store.
//
// All methods are safe on a nil *Controller, which imposes no limits.
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:   2 << 30,
//	    MaxOpenTiles:       8,
//	    IOLimitBytesPerSec: 200 << 20,
//	})
//	if err := rc.AcquireMemory(ctx, canvasBytes); err != nil { ... }
//	defer rc.ReleaseMemory(canvasBytes)
package resource
