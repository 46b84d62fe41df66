// Package staging holds the files a user has picked but not yet committed.
package staging

import (
	"errors"
	"fmt"
	"sync"

	"github.com/firstbutton/docucal/internal/events"
	"github.com/firstbutton/docucal/internal/models"
)

// ErrIndexOutOfRange is returned by edits addressing a position that does not exist.
var ErrIndexOutOfRange = errors.New("staging index out of range")

// Set is the ordered, observable staging set.
//
// Order is selection order and duplicates are kept. The review surface is
// open exactly when the set is non-empty. Thread-safe for concurrent access.
type Set struct {
	items    []models.StagedFile
	eventBus *events.EventBus

	mu sync.RWMutex
}

// NewSet creates an empty set. eventBus may be nil.
func NewSet(eventBus *events.EventBus) *Set {
	return &Set{
		items:    make([]models.StagedFile, 0),
		eventBus: eventBus,
	}
}

// Stage replaces the set with one entry per file, each with the default tag.
// An empty selection leaves the set untouched.
func (s *Set) Stage(files []models.LocalFile) {
	if len(files) == 0 {
		return
	}

	items := make([]models.StagedFile, 0, len(files))
	for _, f := range files {
		items = append(items, models.NewStagedFile(f))
	}

	s.mu.Lock()
	before := len(s.items)
	s.items = items
	after := len(s.items)
	s.mu.Unlock()

	s.publish(before, after)
}

// SetTag changes the tag of one entry. Nothing changes on error.
func (s *Set) SetTag(index int, tag models.Tag) error {
	if err := tag.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if index < 0 || index >= len(s.items) {
		n := len(s.items)
		s.mu.Unlock()
		return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, n)
	}
	s.items[index].Tag = tag
	n := len(s.items)
	s.mu.Unlock()

	s.publish(n, n)
	return nil
}

// SetAllTags applies tag to every entry.
func (s *Set) SetAllTags(tag models.Tag) error {
	if err := tag.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	for i := range s.items {
		s.items[i].Tag = tag
	}
	n := len(s.items)
	s.mu.Unlock()

	if n > 0 {
		s.publish(n, n)
	}
	return nil
}

// Remove deletes one entry, preserving the order of the rest.
// Removing the last entry closes the review surface.
func (s *Set) Remove(index int) error {
	s.mu.Lock()
	before := len(s.items)
	if index < 0 || index >= before {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, before)
	}
	s.items = append(s.items[:index:index], s.items[index+1:]...)
	after := len(s.items)
	s.mu.Unlock()

	s.publish(before, after)
	return nil
}

// DropLeading removes the first n entries. Used to forget files that were
// already submitted when a commit aborts part-way.
func (s *Set) DropLeading(n int) {
	if n <= 0 {
		return
	}

	s.mu.Lock()
	before := len(s.items)
	if n > before {
		n = before
	}
	s.items = append([]models.StagedFile(nil), s.items[n:]...)
	after := len(s.items)
	s.mu.Unlock()

	s.publish(before, after)
}

// Clear empties the set and closes the review surface.
func (s *Set) Clear() {
	s.mu.Lock()
	before := len(s.items)
	s.items = make([]models.StagedFile, 0)
	s.mu.Unlock()

	if before > 0 {
		s.publish(before, 0)
	}
}

// CommitRequested reports whether there is anything to commit.
// It does not change the set.
func (s *Set) CommitRequested() bool {
	return s.Len() > 0
}

// ReviewOpen reports whether the review surface should be shown.
func (s *Set) ReviewOpen() bool {
	return s.Len() > 0
}

// Len returns the number of staged files.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Items returns a copy of the staged files in order.
func (s *Set) Items() []models.StagedFile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.StagedFile, len(s.items))
	copy(result, s.items)
	return result
}

// Get returns the entry at index.
func (s *Set) Get(index int) (models.StagedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.items) {
		return models.StagedFile{}, fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(s.items))
	}
	return s.items[index], nil
}

func (s *Set) publish(before, after int) {
	if s.eventBus != nil {
		s.eventBus.PublishStaging(before, after)
	}
}
