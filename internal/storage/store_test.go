package storage

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "warehouse.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, s.Close())
	})
	return s
}

func TestStoreRequiresPath(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	session := uuid.NewString()

	require.NoError(t, s.StartSession(session))

	ended, err := s.EndSession(session, "completed", map[string]int{"scans": 2})
	require.NoError(t, err)
	assert.True(t, ended)

	// Finalizing again is a no-op.
	ended, err = s.EndSession(session, "failed", nil)
	require.NoError(t, err)
	assert.False(t, ended)

	// Unknown sessions report false without error.
	ended, err = s.EndSession(uuid.NewString(), "completed", nil)
	require.NoError(t, err)
	assert.False(t, ended)

	last, _, err := s.LastCompletedSession()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, session, last.UUID)
	assert.Equal(t, "completed", last.Status)
	assert.True(t, last.EndTime.Valid)
	require.True(t, last.Report.Valid)
	assert.Contains(t, last.Report.String, `"scans":2`)
}

func TestAddItemUpsert(t *testing.T) {
	s := newTestStore(t)

	first, err := s.AddItem("abc123", "Коробка", "Стеллаж 1", "Полка 2")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "abc123", first.QRCode)

	// The same code again updates name and location but keeps the row.
	second, err := s.AddItem("abc123", "Ящик", "Стеллаж 2", "Полка 3")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ящик", second.Name)
	assert.Equal(t, "Стеллаж 2", second.Shelf)
	assert.Equal(t, "Полка 3", second.Position)

	items, err := s.Items()
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestAddItemNormalizesWhitespace(t *testing.T) {
	s := newTestStore(t)

	item, err := s.AddItem("  abc123 ", "  Большая   коробка ", "Стеллаж  1", "Полка 2")
	require.NoError(t, err)
	assert.Equal(t, "abc123", item.QRCode)
	assert.Equal(t, "Большая коробка", item.Name)
	assert.Equal(t, "Стеллаж 1", item.Shelf)

	// Lookup with untrimmed input resolves the same row.
	found, err := s.FindItem(" abc123  ")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, item.ID, found.ID)
}

func TestFindItemUnknownCode(t *testing.T) {
	s := newTestStore(t)

	item, err := s.FindItem("nope")
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestItemsByShelf(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AddItem("a", "один", "Стеллаж 1", "Полка 1")
	require.NoError(t, err)
	_, err = s.AddItem("b", "два", "Стеллаж 1", "Полка 2")
	require.NoError(t, err)
	_, err = s.AddItem("c", "три", "Стеллаж 2", "Полка 1")
	require.NoError(t, err)

	items, err := s.ItemsByShelf("Стеллаж 1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.Equal(t, "Стеллаж 1", it.Shelf)
	}

	empty, err := s.ItemsByShelf("Стеллаж 9")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestScanHistory(t *testing.T) {
	s := newTestStore(t)
	session := uuid.NewString()
	require.NoError(t, s.StartSession(session))

	item, err := s.AddItem("abc123", "Коробка", "Стеллаж 1", "Полка 2")
	require.NoError(t, err)

	require.NoError(t, s.RecordScan("scan", &item.ID, "success", session))
	require.NoError(t, s.RecordScan("scan", nil, "invalid_format: garbage", session))
	require.NoError(t, s.RecordScan("scan", nil, "manual", ""))

	records, err := s.RecentScans(10)
	require.NoError(t, err)
	require.Len(t, records, 3)

	var withItem, withoutSession int
	for _, r := range records {
		assert.Equal(t, "scan", r.Operation)
		if r.ItemID.Valid {
			withItem++
			assert.Equal(t, item.ID, r.ItemID.Int64)
		}
		if !r.SessionUUID.Valid {
			withoutSession++
		}
	}
	assert.Equal(t, 1, withItem)
	assert.Equal(t, 1, withoutSession)

	// A non-positive limit falls back to a sane default.
	records, err = s.RecentScans(0)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestLastCompletedSessionNone(t *testing.T) {
	s := newTestStore(t)

	session, records, err := s.LastCompletedSession()
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Nil(t, records)
}

func TestCloseIdempotent(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "warehouse.db"))
	require.NoError(t, err)

	// Force the handles open.
	require.NoError(t, s.StartSession(uuid.NewString()))
	_, err = s.FindItem("anything")
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestCleanString(t *testing.T) {
	for in, want := range map[string]string{
		"  a  b ":        "a b",
		"a\tb\nc":        "a b c",
		"single":         "single",
		strings.Repeat(" ", 5): "",
	} {
		assert.Equal(t, want, cleanString(in), "input %q", in)
	}
}
