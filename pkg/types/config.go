package types

import "errors"

// Config holds the directory locations every chronicle component needs:
// the archive tree (authoritative) and the index data directory (derived).
type Config struct {
	ArchiveRoot string `json:"archive_root" yaml:"archive_root"`
	DataDir     string `json:"data_dir" yaml:"data_dir"`
	LogLevel    string `json:"log_level" yaml:"log_level"`
}

// Config validation errors.
var (
	ErrArchiveRootEmpty = errors.New("archive_root must not be empty")
	ErrDataDirEmpty     = errors.New("data_dir must not be empty")
)

// Validate checks that the Config is well-formed. It returns a sentinel
// error from this package on failure.
func (c Config) Validate() error {
	if c.ArchiveRoot == "" {
		return ErrArchiveRootEmpty
	}
	if c.DataDir == "" {
		return ErrDataDirEmpty
	}
	return nil
}
