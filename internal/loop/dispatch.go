package loop

import "context"

// Inline runs work and its completion synchronously on the caller.
type Inline struct{}

func (Inline) Go(_ string, work Work) {
	if done := work(context.Background()); done != nil {
		done()
	}
}

// Deferred holds work until Flush. It lets tests interleave state changes
// between a request and its late response.
type Deferred struct {
	pending []deferredJob
}

type deferredJob struct {
	name string
	work Work
}

func (d *Deferred) Go(name string, work Work) {
	d.pending = append(d.pending, deferredJob{name: name, work: work})
}

// Len reports queued jobs.
func (d *Deferred) Len() int { return len(d.pending) }

// Flush runs every queued job and its completion in order. Jobs queued by a
// completion are run too.
func (d *Deferred) Flush() int {
	n := 0
	for len(d.pending) > 0 {
		job := d.pending[0]
		d.pending = d.pending[1:]
		if done := job.work(context.Background()); done != nil {
			done()
		}
		n++
	}
	return n
}
