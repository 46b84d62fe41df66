package models

import (
	"fmt"
	"os"
	"path/filepath"
)

// LocalFile is a handle to a document on disk.
// Contents are read only when the file is submitted.
type LocalFile struct {
	Path string // Absolute or caller-relative path
	Name string // Base name sent as the multipart file name
	Size int64  // Size at pick time, used for progress display
}

// NewLocalFile stats path and returns a handle for it.
// Directories are rejected.
func NewLocalFile(path string) (LocalFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return LocalFile{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return LocalFile{}, fmt.Errorf("%s is a directory", path)
	}
	return LocalFile{
		Path: path,
		Name: filepath.Base(path),
		Size: info.Size(),
	}, nil
}

// StagedFile pairs a picked document with the calendar colour its events get.
type StagedFile struct {
	File LocalFile
	Tag  Tag
}

// NewStagedFile returns a staged entry with the default tag.
func NewStagedFile(f LocalFile) StagedFile {
	return StagedFile{File: f, Tag: DefaultTag}
}
