package staging

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/firstbutton/docucal/internal/events"
	"github.com/firstbutton/docucal/internal/models"
)

func files(names ...string) []models.LocalFile {
	out := make([]models.LocalFile, 0, len(names))
	for _, n := range names {
		out = append(out, models.LocalFile{Path: "/docs/" + n, Name: n, Size: int64(len(n))})
	}
	return out
}

func names(items []models.StagedFile) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.File.Name)
	}
	return out
}

// Staging replaces whatever was there, in order, with default tags.
func TestStageReplaces(t *testing.T) {
	s := NewSet(nil)
	s.Stage(files("a.pdf", "b.png"))
	require.NoError(t, s.SetTag(0, models.TagBasil))

	s.Stage(files("c.jpg", "d.pdf", "e.png"))

	items := s.Items()
	require.Equal(t, []string{"c.jpg", "d.pdf", "e.png"}, names(items))
	for _, it := range items {
		require.Equal(t, models.DefaultTag, it.Tag)
	}
	require.True(t, s.ReviewOpen())
	require.True(t, s.CommitRequested())
}

func TestStageKeepsDuplicates(t *testing.T) {
	s := NewSet(nil)
	s.Stage(files("a.pdf", "a.pdf"))
	require.Equal(t, 2, s.Len())
}

func TestStageEmptyIsNoOp(t *testing.T) {
	s := NewSet(nil)
	s.Stage(nil)
	require.False(t, s.ReviewOpen())
	require.Equal(t, 0, s.Len())

	s.Stage(files("a.pdf"))
	s.Stage([]models.LocalFile{})
	require.Equal(t, []string{"a.pdf"}, names(s.Items()))
}

// Retagging one entry leaves every other entry alone.
func TestSetTagIsolation(t *testing.T) {
	s := NewSet(nil)
	s.Stage(files("a.pdf", "b.png", "c.jpg"))

	require.NoError(t, s.SetTag(1, models.TagTomato))

	items := s.Items()
	require.Equal(t, models.DefaultTag, items[0].Tag)
	require.Equal(t, models.TagTomato, items[1].Tag)
	require.Equal(t, models.DefaultTag, items[2].Tag)
	require.Equal(t, []string{"a.pdf", "b.png", "c.jpg"}, names(items))
}

func TestSetTagErrorsLeaveSetUntouched(t *testing.T) {
	s := NewSet(nil)
	s.Stage(files("a.pdf", "b.png"))
	require.NoError(t, s.SetTag(0, models.TagGrape))
	before := s.Items()

	require.ErrorIs(t, s.SetTag(2, models.TagBasil), ErrIndexOutOfRange)
	require.ErrorIs(t, s.SetTag(-1, models.TagBasil), ErrIndexOutOfRange)
	require.ErrorIs(t, s.SetTag(0, models.Tag(0)), models.ErrInvalidTag)
	require.ErrorIs(t, s.SetTag(1, models.Tag(12)), models.ErrInvalidTag)

	require.Equal(t, before, s.Items())
}

// Removal keeps the relative order of the rest and closes the surface when empty.
func TestRemove(t *testing.T) {
	s := NewSet(nil)
	s.Stage(files("a.pdf", "b.png", "c.jpg", "d.pdf"))
	require.NoError(t, s.SetTag(3, models.TagSage))

	require.NoError(t, s.Remove(1))
	require.Equal(t, []string{"a.pdf", "c.jpg", "d.pdf"}, names(s.Items()))
	require.Equal(t, models.TagSage, s.Items()[2].Tag)

	require.ErrorIs(t, s.Remove(3), ErrIndexOutOfRange)
	require.Equal(t, 3, s.Len())

	require.NoError(t, s.Remove(0))
	require.NoError(t, s.Remove(0))
	require.True(t, s.ReviewOpen())
	require.NoError(t, s.Remove(0))
	require.False(t, s.ReviewOpen())
	require.False(t, s.CommitRequested())
}

func TestRemoveDoesNotAliasSnapshots(t *testing.T) {
	s := NewSet(nil)
	s.Stage(files("a.pdf", "b.png", "c.jpg"))
	snapshot := s.Items()

	require.NoError(t, s.Remove(0))
	require.Equal(t, []string{"a.pdf", "b.png", "c.jpg"}, names(snapshot))
}

func TestDropLeading(t *testing.T) {
	s := NewSet(nil)
	s.Stage(files("a.pdf", "b.png", "c.jpg"))

	s.DropLeading(0)
	require.Equal(t, 3, s.Len())

	s.DropLeading(2)
	require.Equal(t, []string{"c.jpg"}, names(s.Items()))

	s.DropLeading(5)
	require.False(t, s.ReviewOpen())
}

func TestClearAndGet(t *testing.T) {
	s := NewSet(nil)
	s.Stage(files("a.pdf"))

	got, err := s.Get(0)
	require.NoError(t, err)
	require.Equal(t, "a.pdf", got.File.Name)
	_, err = s.Get(1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	s.Clear()
	require.Equal(t, 0, s.Len())
	require.False(t, s.ReviewOpen())
	require.Empty(t, s.Items())
}

func TestSetAllTags(t *testing.T) {
	s := NewSet(nil)
	s.Stage(files("a.pdf", "b.png"))

	require.NoError(t, s.SetAllTags(models.TagBanana))
	for _, it := range s.Items() {
		require.Equal(t, models.TagBanana, it.Tag)
	}
	require.ErrorIs(t, s.SetAllTags(models.Tag(99)), models.ErrInvalidTag)
	require.Equal(t, models.TagBanana, s.Items()[0].Tag)
}

func TestSetPublishesReviewEvents(t *testing.T) {
	bus := events.NewEventBus(20)
	defer bus.Close()

	opened := bus.Subscribe(events.EventReviewOpened)
	closed := bus.Subscribe(events.EventReviewClosed)
	changed := bus.Subscribe(events.EventStagingChanged)

	s := NewSet(bus)
	s.Stage(files("a.pdf", "b.png"))
	require.NoError(t, s.SetTag(0, models.TagGraphite))
	require.NoError(t, s.Remove(0))
	require.NoError(t, s.Remove(0))

	select {
	case ev := <-opened:
		require.Equal(t, 2, ev.(*events.StagingEvent).Count)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("missing review_opened")
	}
	select {
	case ev := <-closed:
		require.Equal(t, 0, ev.(*events.StagingEvent).Count)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("missing review_closed")
	}
	require.Len(t, changed, 4)
}

func TestSetConcurrentAccess(t *testing.T) {
	s := NewSet(nil)
	s.Stage(files("a.pdf", "b.png", "c.jpg"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = s.SetTag(i%3, models.Tag(i%11+1))
		}(i)
		go func() {
			defer wg.Done()
			_ = s.Items()
		}()
	}
	wg.Wait()

	require.Equal(t, 3, s.Len())
	for i, it := range s.Items() {
		require.True(t, it.Tag.Valid(), fmt.Sprintf("item %d", i))
	}
}
