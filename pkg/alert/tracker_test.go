package alert

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func a(printer, msg string) Alert {
	return Alert{Printer: printer, Message: msg}
}

// advance diffs and commits with every alert delivered.
func advance(t *testing.T, tr *Tracker, current []Alert, answered ...string) []Alert {
	t.Helper()
	r := tr.Diff(current, answered)
	require.NoError(t, tr.Commit(r, nil))
	return r.Fresh
}

func TestTrackerAnnouncesOnlyNewAlerts(t *testing.T) {
	tr, err := NewTracker(NewMemoryStore())
	require.NoError(t, err)

	fresh := advance(t, tr, []Alert{a("A", "A: Cyan toner needs refill"), a("B", "B needs paper refill on Drawer 2")}, "A", "B", "C")
	assert.Equal(t, []string{"A: Cyan toner needs refill", "B needs paper refill on Drawer 2"}, Messages(fresh))

	fresh = advance(t, tr, []Alert{a("A", "A: Cyan toner needs refill"), a("C", "C: Black toner will need refill soon")}, "A", "B", "C")
	assert.Equal(t, []string{"C: Black toner will need refill soon"}, Messages(fresh))

	// B's alert was resolved and comes back: announced again
	fresh = advance(t, tr, []Alert{a("B", "B needs paper refill on Drawer 2")}, "A", "B", "C")
	assert.Equal(t, []string{"B needs paper refill on Drawer 2"}, Messages(fresh))
}

func TestTrackerNoAlerts(t *testing.T) {
	tr, err := NewTracker(NewMemoryStore())
	require.NoError(t, err)

	fresh := advance(t, tr, nil, "A")
	assert.Empty(t, fresh)
	assert.Empty(t, tr.Previous())
}

func TestTrackerDuplicateMessagesInOneCycle(t *testing.T) {
	tr, err := NewTracker(NewMemoryStore())
	require.NoError(t, err)

	fresh := advance(t, tr, []Alert{a("A", "same"), a("A", "same")}, "A")
	assert.Len(t, fresh, 1)
}

func TestTrackerCarriesUnreachablePrinters(t *testing.T) {
	tr, err := NewTracker(NewMemoryStore())
	require.NoError(t, err)

	advance(t, tr, []Alert{a("A", "A: Cyan toner needs refill"), a("B", "B: Black toner needs refill")}, "A", "B")

	// A did not answer this cycle
	fresh := advance(t, tr, []Alert{a("B", "B: Black toner needs refill")}, "B")
	assert.Empty(t, fresh)
	assert.Equal(t, []string{"A: Cyan toner needs refill", "B: Black toner needs refill"}, NewSet(tr.Previous()).Sorted())

	// A is back with the same alert: nothing new
	fresh = advance(t, tr, []Alert{a("A", "A: Cyan toner needs refill"), a("B", "B: Black toner needs refill")}, "A", "B")
	assert.Empty(t, fresh)
}

func TestTrackerKeepsPrintersOutsideThePolledSubset(t *testing.T) {
	tr, err := NewTracker(NewMemoryStore())
	require.NoError(t, err)

	advance(t, tr, []Alert{a("A", "A: Cyan toner needs refill"), a("B", "B: Cyan toner needs refill")}, "A", "B")

	// only A polled, now fine
	fresh := advance(t, tr, nil, "A")
	assert.Empty(t, fresh)
	assert.Equal(t, []string{"B: Cyan toner needs refill"}, NewSet(tr.Previous()).Sorted())

	fresh = advance(t, tr, []Alert{a("B", "B: Cyan toner needs refill")}, "A", "B")
	assert.Empty(t, fresh)
}

func TestTrackerUndeliveredAlertsStayNew(t *testing.T) {
	tr, err := NewTracker(NewMemoryStore())
	require.NoError(t, err)

	current := []Alert{a("A", "A: Cyan toner needs refill"), a("B", "B: Black toner needs refill")}
	r := tr.Diff(current, []string{"A", "B"})
	require.Len(t, r.Fresh, 2)
	require.NoError(t, tr.Commit(r, []Alert{r.Fresh[1]}))
	assert.Equal(t, []string{"A: Cyan toner needs refill"}, NewSet(tr.Previous()).Sorted())

	fresh := advance(t, tr, current, "A", "B")
	assert.Equal(t, []string{"B: Black toner needs refill"}, Messages(fresh))
}

func TestTrackerDiffDoesNotChangeState(t *testing.T) {
	tr, err := NewTracker(NewMemoryStore())
	require.NoError(t, err)

	r := tr.Diff([]Alert{a("A", "x")}, []string{"A"})
	assert.Len(t, r.Fresh, 1)
	assert.Empty(t, tr.Previous())

	r = tr.Diff([]Alert{a("A", "x")}, []string{"A"})
	assert.Len(t, r.Fresh, 1)
}

func TestTrackerRestoresFromStore(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save([]Alert{a("A", "A: Cyan toner needs refill")}))

	tr, err := NewTracker(store)
	require.NoError(t, err)

	fresh := advance(t, tr, []Alert{a("A", "A: Cyan toner needs refill")}, "A")
	assert.Empty(t, fresh)
}

type failingStore struct{ MemoryStore }

func (*failingStore) Save([]Alert) error { return errors.New("disk full") }

func TestTrackerSaveFailureStillAdvances(t *testing.T) {
	tr, err := NewTracker(&failingStore{})
	require.NoError(t, err)

	r := tr.Diff([]Alert{a("A", "x")}, []string{"A"})
	assert.Len(t, r.Fresh, 1)
	assert.Error(t, tr.Commit(r, nil))

	r = tr.Diff([]Alert{a("A", "x")}, []string{"A"})
	assert.Empty(t, r.Fresh)
}

func TestBoltStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := OpenBoltStore(path)
	require.NoError(t, err)
	got, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, got)

	want := []Alert{{Printer: "A", Kind: KindTonerRefill, Subject: "Cyan", Message: "A: Cyan toner needs refill"}}
	require.NoError(t, s.Save(want))
	require.NoError(t, s.Close())

	s, err = OpenBoltStore(path)
	require.NoError(t, err)
	defer s.Close()
	got, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
