package ldapdb

import "context"

// SignalFunc is a persistence notification listener.
type SignalFunc func(ctx context.Context, e *Entry)

type signals struct {
	postCreate []SignalFunc
	postUpdate []SignalFunc
	postDelete []SignalFunc
}

// OnPostCreate registers a listener fired after a new entry is added.
// Registration is not synchronized; register listeners before using the
// schema.
func (s *Schema) OnPostCreate(fn SignalFunc) {
	s.signals.postCreate = append(s.signals.postCreate, fn)
}

// OnPostUpdate registers a listener fired after every successful Save
// of a persisted entry, whether or not anything changed. The changed
// field names are available via Entry.LastChanged.
func (s *Schema) OnPostUpdate(fn SignalFunc) {
	s.signals.postUpdate = append(s.signals.postUpdate, fn)
}

// OnPostDelete registers a listener fired after an entry is deleted,
// including per entry removed by Query.DeleteAll.
func (s *Schema) OnPostDelete(fn SignalFunc) {
	s.signals.postDelete = append(s.signals.postDelete, fn)
}

func (s *signals) firePostCreate(ctx context.Context, e *Entry) {
	for _, fn := range s.postCreate {
		fn(ctx, e)
	}
}

func (s *signals) firePostUpdate(ctx context.Context, e *Entry) {
	for _, fn := range s.postUpdate {
		fn(ctx, e)
	}
}

func (s *signals) firePostDelete(ctx context.Context, e *Entry) {
	for _, fn := range s.postDelete {
		fn(ctx, e)
	}
}
