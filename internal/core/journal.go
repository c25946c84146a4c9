package core

// Journal records how to undo every write made while an operation runs, so
// a failed operation leaves no partial state behind. It also buffers events
// until the outermost operation commits.
type Journal struct {
	undo   []func()
	events []Event
}

// Mark is a savepoint inside the journal.
type Mark struct {
	undo   int
	events int
}

func (j *Journal) Record(undo func()) {
	j.undo = append(j.undo, undo)
}

func (j *Journal) Emit(e Event) {
	j.events = append(j.events, e)
}

func (j *Journal) Mark() Mark {
	return Mark{undo: len(j.undo), events: len(j.events)}
}

// RollbackTo undoes writes newer than m, newest first.
func (j *Journal) RollbackTo(m Mark) {
	for i := len(j.undo) - 1; i >= m.undo; i-- {
		j.undo[i]()
	}
	j.undo = j.undo[:m.undo]
	j.events = j.events[:m.events]
}

// Commit forgets the undo log and hands back the buffered events.
func (j *Journal) Commit() []Event {
	events := j.events
	j.undo = nil
	j.events = nil
	return events
}

// Table is a journaled map. Values are replaced, never mutated in place.
type Table[K comparable, V any] struct {
	journal *Journal
	rows    map[K]V
}

func NewTable[K comparable, V any](journal *Journal) *Table[K, V] {
	return &Table[K, V]{journal: journal, rows: make(map[K]V)}
}

func (t *Table[K, V]) Get(key K) (V, bool) {
	v, ok := t.rows[key]
	return v, ok
}

func (t *Table[K, V]) Set(key K, value V) {
	t.remember(key)
	t.rows[key] = value
}

func (t *Table[K, V]) Delete(key K) {
	if _, ok := t.rows[key]; !ok {
		return
	}
	t.remember(key)
	delete(t.rows, key)
}

func (t *Table[K, V]) Len() int {
	return len(t.rows)
}

// Range visits rows in map order until fn returns false.
func (t *Table[K, V]) Range(fn func(K, V) bool) {
	for k, v := range t.rows {
		if !fn(k, v) {
			return
		}
	}
}

func (t *Table[K, V]) remember(key K) {
	prev, existed := t.rows[key]
	t.journal.Record(func() {
		if existed {
			t.rows[key] = prev
		} else {
			delete(t.rows, key)
		}
	})
}
