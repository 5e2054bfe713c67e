// Package filestore persists the credential pair as a JSON file in the
// user's config directory.
package filestore

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"backer/config"
	"backer/internal/domain/entity"
	"backer/internal/domain/repository"

	"github.com/pkg/errors"
)

const fileMode = 0o600

// credentialStore implements repository.CredentialRepository on top of a
// single JSON file. Writes replace the file atomically (write to a temp
// file, then rename) so a reader never observes a partial pair.
type credentialStore struct {
	path   string
	logger *slog.Logger
}

// NewCredentialStore is the constructor for credentialStore.
func NewCredentialStore(cfg *config.Config, logger *slog.Logger) repository.CredentialRepository {
	return &credentialStore{
		path:   cfg.Storage.CredentialsPath,
		logger: logger,
	}
}

// Load returns the stored credential pair. Any read failure (missing file,
// unreadable storage, corrupt content) degrades to an empty pair: the
// client treats it as "not signed in" rather than surfacing an error.
func (s *credentialStore) Load(_ context.Context) entity.Credentials {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Credential storage unreadable, treating as signed out",
				slog.String("path", s.path), slog.Any("error", err))
		}

		return entity.Credentials{}
	}

	var creds entity.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		s.logger.Warn("Credential file corrupt, treating as signed out",
			slog.String("path", s.path), slog.Any("error", err))

		return entity.Credentials{}
	}

	return creds
}

// Save persists both tokens as one atomic replacement of the file.
func (s *credentialStore) Save(_ context.Context, creds entity.Credentials) error {
	if !creds.Complete() {
		return errors.New("refusing to store a partial credential pair")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "failed to create credential directory")
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return errors.Wrap(err, "failed to encode credentials")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp credential file")
	}
	tmpName := tmp.Name()

	if err := writeAndClose(tmp, data); err != nil {
		os.Remove(tmpName)

		return err
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)

		return errors.Wrap(err, "failed to replace credential file")
	}

	return nil
}

// Clear removes the stored pair. Clearing an absent file is a no-op.
func (s *credentialStore) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove credential file")
	}

	return nil
}

func writeAndClose(f *os.File, data []byte) error {
	if err := f.Chmod(fileMode); err != nil {
		f.Close()

		return errors.Wrap(err, "failed to set credential file mode")
	}

	if _, err := f.Write(data); err != nil {
		f.Close()

		return errors.Wrap(err, "failed to write credential file")
	}

	return errors.Wrap(f.Close(), "failed to close credential file")
}
