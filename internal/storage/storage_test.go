package storage

import (
	"fmt"
	"net/http"
	"sync"
	"testing"

	"complaintdesk/internal/account"
	"complaintdesk/internal/complaint"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := Open(Options{InMemory: true, Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStorage_IsNew(t *testing.T) {
	s := newTestStorage(t)

	assert.True(t, s.IsNew(1))

	require.NoError(t, s.SaveMultiple([]Record{{ComplaintID: 1, MessageID: 77, Status: complaint.StatusPending, Title: "Fan"}}))

	assert.False(t, s.IsNew(1))
	assert.True(t, s.IsNew(2))

	rec, found, err := s.Get(1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 77, rec.MessageID)
	assert.Equal(t, complaint.StatusPending, rec.Status)
}

func TestStorage_SaveMultipleAndAll(t *testing.T) {
	s := newTestStorage(t)

	records := []Record{
		{ComplaintID: 12, MessageID: 3, Status: complaint.StatusResolved},
		{ComplaintID: 2, MessageID: 1, Status: complaint.StatusPending},
		{ComplaintID: 7, MessageID: 2, Status: complaint.StatusInProgress},
	}
	require.NoError(t, s.SaveMultiple(records))

	all, err := s.All()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int{2, 7, 12}, []int{all[0].ComplaintID, all[1].ComplaintID, all[2].ComplaintID})

	// Overwrite keeps one entry per complaint.
	require.NoError(t, s.SaveMultiple([]Record{{ComplaintID: 7, MessageID: 2, Status: complaint.StatusRejected}}))
	rec, _, err := s.Get(7)
	require.NoError(t, err)
	assert.Equal(t, complaint.StatusRejected, rec.Status)

	all, err = s.All()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStorage_Remove(t *testing.T) {
	s := newTestStorage(t)
	require.NoError(t, s.SaveMultiple([]Record{{ComplaintID: 5}}))

	removed, err := s.RemoveIfExists(5)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.RemoveIfExists(5)
	require.NoError(t, err)
	assert.False(t, removed)

	assert.NoError(t, s.Remove(99))
	assert.True(t, s.IsNew(5))
}

func TestStorage_Session(t *testing.T) {
	s := newTestStorage(t)

	_, found, err := s.LoadSession()
	require.NoError(t, err)
	assert.False(t, found)

	sess := NewSession([]*http.Cookie{{Name: "session", Value: "abc"}, {Name: "role", Value: "admin"}}, account.RoleAdmin)
	require.NoError(t, s.SaveSession(sess))

	loaded, found, err := s.LoadSession()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, account.RoleAdmin, loaded.Role)
	cookies := loaded.HTTPCookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, "abc", cookies[0].Value)

	require.NoError(t, s.ClearSession())
	_, found, err = s.LoadSession()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStorage_Persistence(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(Options{Path: dir, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, s.SaveMultiple([]Record{{ComplaintID: 3, MessageID: 9}}))
	require.NoError(t, s.Close())

	s, err = Open(Options{Path: dir, Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer s.Close()

	assert.False(t, s.IsNew(3))
}

func TestStorage_Concurrency(t *testing.T) {
	s := newTestStorage(t)

	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			assert.NoError(t, s.SaveMultiple([]Record{{ComplaintID: id, Title: fmt.Sprintf("c%d", id)}}))
			s.IsNew(id)
		}(i)
	}
	wg.Wait()

	all, err := s.All()
	require.NoError(t, err)
	assert.Len(t, all, 10)
}
