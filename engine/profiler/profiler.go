package profiler

import (
	"log"
	"runtime"
	"time"

	"github.com/darian-voss/batchrender/engine/stage"
)

// Profiler tracks frame rate, memory, and per-frame draw-call/vertex
// throughput for the orchestrator's Render step. Outputs stats to the log
// at a configurable interval.
type Profiler struct {
	frameCount     int
	drawCallSum    int
	vertexSum      int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
func NewProfiler() *Profiler {
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
	}
}

// Record folds one frame's per-stage render stats into the running totals.
// Orchestrator.Render calls it once per frame with the stats it returns
// when this Profiler is attached to the orchestrator.
func (p *Profiler) Record(stats map[int]stage.Stats) {
	for _, s := range stats {
		p.drawCallSum += s.DrawCalls
		p.vertexSum += s.Vertices
	}
}

// Tick should be called once per frame, after Record. Logs performance
// statistics when the update interval has elapsed. Statistics include:
// FPS, draw calls/vertices per second, heap usage, allocation rate, GC
// count/pause times, total memory.
//
// Returns true if stats were logged this tick.
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed >= p.updateInterval {
		fps := float64(p.frameCount) / elapsed.Seconds()
		drawCallsPerSec := float64(p.drawCallSum) / elapsed.Seconds()
		verticesPerSec := float64(p.vertexSum) / elapsed.Seconds()

		runtime.ReadMemStats(&p.memStats)
		// Alloc: Bytes of allocated heap objects (live memory)
		// TotalAlloc: Cumulative bytes allocated for heap objects (increases forever, tracks churn)
		// Sys: Total bytes of memory obtained from the OS (actual process footprint)
		allocMB := float64(p.memStats.Alloc) / 1024 / 1024
		sysMB := float64(p.memStats.Sys) / 1024 / 1024

		// Calculate allocation rate (MB/sec)
		allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
		allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

		// Calculate GC pause stats (last pause and max recent pause)
		gcCount := p.memStats.NumGC
		var lastPauseUs, maxPauseUs uint64
		if gcCount > 0 {
			// PauseNs is a circular buffer of last 256 GC pauses
			lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

			// Find max pause since last tick
			startIdx := p.lastGCCount
			if gcCount-startIdx > 256 {
				startIdx = gcCount - 256
			}
			for i := startIdx; i < gcCount; i++ {
				pause := p.memStats.PauseNs[i%256] / 1000
				if pause > maxPauseUs {
					maxPauseUs = pause
				}
			}
		}

		log.Printf("[Profiler] FPS: %.2f | Draws/s: %.1f | Verts/s: %.0f | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
			fps, drawCallsPerSec, verticesPerSec, allocMB, allocRateMB, gcCount, lastPauseUs, maxPauseUs, sysMB)

		p.frameCount = 0
		p.drawCallSum = 0
		p.vertexSum = 0
		p.lastTime = currentTime
		p.lastGCCount = gcCount
		p.lastTotalAlloc = p.memStats.TotalAlloc
		return true
	}

	return false
}
