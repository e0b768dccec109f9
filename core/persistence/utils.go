package persistence

import (
	"time"
)

// operation describes one store call against a collection; each phase of the call
// (start, success, failure) is reported as an event stamped from it.
type operation struct {
	name       string
	collection string
	input      any
	query      any
	start      time.Time
}

func newOperation(name, collection string, input, query any) operation {
	return operation{name: name, collection: collection, input: input, query: query, start: time.Now()}
}

// event builds the PersistenceEvent of type t. The duration is measured from the start
// of the operation; err, when non-nil, is carried as its message.
func (o operation) event(t PersistenceEventType, output any, err error) PersistenceEvent {
	e := PersistenceEvent{
		Type:      t,
		Timestamp: time.Now().UnixMilli(),
		Operation: o.name,
		Input:     o.input,
		Output:    output,
		Query:     o.query,
	}
	if !o.start.IsZero() {
		d := time.Since(o.start).Milliseconds()
		e.Duration = &d
	}
	if o.collection != "" {
		name := o.collection
		e.Collection = &name
	}
	if err != nil {
		msg := err.Error()
		e.Error = &msg
	}
	return e
}
