package bundle

import "github.com/caladan-sched/lame/worker"

// Snapshot is a point-in-time, read-only view of one worker's bundle
// counters (spec §9: "Global counters are per-worker and never cross
// threads; aggregate reads visit every worker"). Modeled on the teacher's
// per-component Stats/GetStats pattern (arena.BuddyAllocator.GetStats,
// foundation.QueueStats), adapted here to walk bundles instead of a
// single allocator.
type Snapshot struct {
	WorkerID        int
	Used            uint32
	Size            uint32
	Active          uint32
	Enabled         bool
	TotalCycles     uint64
	TotalLames      uint64
	TotalXsaveLames uint64
}

func snapshot(w *worker.Worker) Snapshot {
	b := Of(w)
	return Snapshot{
		WorkerID:        w.ID,
		Used:            b.used,
		Size:            b.size,
		Active:          b.active,
		Enabled:         b.enabled,
		TotalCycles:     b.totalCycles,
		TotalLames:      b.totalLames,
		TotalXsaveLames: b.totalXsaveLames,
	}
}

// Aggregate visits every worker and returns one Snapshot per worker. It
// never merges or cross-reads state belonging to a different worker — it
// is a read-only walk, never mutation (spec §9 "no cyclic ownership" /
// "no operation touches another worker's bundle").
func Aggregate(workers []*worker.Worker) []Snapshot {
	out := make([]Snapshot, len(workers))
	for i, w := range workers {
		out[i] = snapshot(w)
	}
	return out
}
