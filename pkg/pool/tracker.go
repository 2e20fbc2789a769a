package pool

import (
	"time"
)

// lifetimeRecord marks when an instance was last activated.
type lifetimeRecord struct {
	activated time.Time
	inst      *Instance
}

// tracker holds at most one lifetimeRecord per (template, instance). Records
// of instances that went inactive stay until a later spawn overwrites them or
// the template is recycled, resized or cleared.
type tracker struct {
	records map[string]map[uint64]lifetimeRecord
}

func newTracker() *tracker {
	return &tracker{records: make(map[string]map[uint64]lifetimeRecord)}
}

// track records inst as activated at now, replacing any previous record.
func (t *tracker) track(template string, inst *Instance, now time.Time) {
	recs, ok := t.records[template]
	if !ok {
		recs = make(map[uint64]lifetimeRecord)
		t.records[template] = recs
	}
	recs[inst.id] = lifetimeRecord{activated: now, inst: inst}
}

// forget drops the record of a single instance.
func (t *tracker) forget(template string, id uint64) {
	recs, ok := t.records[template]
	if !ok {
		return
	}
	delete(recs, id)
	if len(recs) == 0 {
		delete(t.records, template)
	}
}

// forgetTemplate drops every record of template and returns how many there were.
func (t *tracker) forgetTemplate(template string) int {
	n := len(t.records[template])
	delete(t.records, template)
	return n
}

func (t *tracker) len(template string) int {
	return len(t.records[template])
}

func (t *tracker) total() int {
	n := 0
	for _, recs := range t.records {
		n += len(recs)
	}
	return n
}

func (t *tracker) activation(template string, id uint64) (time.Time, bool) {
	rec, ok := t.records[template][id]
	return rec.activated, ok
}

// scan calls expire for every active instance whose lifetime has elapsed
// strictly before now. lifetime resolves a template's configured lifetime;
// templates it does not know are skipped.
func (t *tracker) scan(now time.Time, lifetime func(template string) (time.Duration, bool), expire func(*Instance)) int {
	expired := 0
	for template, recs := range t.records {
		ttl, ok := lifetime(template)
		if !ok || ttl <= 0 {
			continue
		}
		for _, rec := range recs {
			if !rec.inst.Active() {
				continue
			}
			if now.After(rec.activated.Add(ttl)) {
				expire(rec.inst)
				expired++
			}
		}
	}
	return expired
}
