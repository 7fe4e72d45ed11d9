package persist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	imgio "image-super-resolution/internal/io"
	"image-super-resolution/internal/tensor"
)

// Stage identifies which step of a save failed.
type Stage string

const (
	StageEncode   Stage = "encode"
	StageFile     Stage = "file"
	StageDatabase Stage = "database"
)

// SaveError reports a failed save. FileWritten tells whether the image
// reached disk before the failure; it is false when the file was rolled back.
// Before the file stage the destination was opened but holds no image data.
type SaveError struct {
	Stage       Stage
	Path        string
	FileWritten bool
	Err         error
}

func (e *SaveError) Error() string {
	switch e.Stage {
	case StageDatabase:
		if e.FileWritten {
			return fmt.Sprintf("image written to %s but database save failed: %v", e.Path, e.Err)
		}
		return fmt.Sprintf("database save failed, %s was not kept: %v", e.Path, e.Err)
	case StageFile:
		return fmt.Sprintf("failed to write %s, the file may be incomplete: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("failed to encode image, %s was left empty: %v", e.Path, e.Err)
	}
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// Encoder turns an image into file bytes for an extension.
type Encoder interface {
	Encode(img *tensor.Image, ext string) ([]byte, error)
}

// ImageInserter persists image bytes for a user.
type ImageInserter interface {
	InsertImage(ctx context.Context, data []byte, userID int64) (int64, error)
}

// SaveResult describes a completed save.
type SaveResult struct {
	Path    string
	ImageID int64
	Bytes   int
}

// Saver writes an image to disk and then stores the same bytes in the database.
type Saver struct {
	encoder          Encoder
	store            ImageInserter
	defaultExt       string
	rollbackFileOnDB bool
	logger           logrus.FieldLogger
}

// SaverConfig configures a Saver.
type SaverConfig struct {
	Encoder Encoder
	Store   ImageInserter
	// DefaultExtension picks the format for file names without an extension.
	DefaultExtension string
	// RollbackFileOnDBError removes the written file when the insert fails.
	// Contents the file held before the save are not restored.
	RollbackFileOnDBError bool
	Logger                logrus.FieldLogger
}

func NewSaver(cfg SaverConfig) *Saver {
	ext := cfg.DefaultExtension
	if ext == "" {
		ext = imgio.DefaultExtension
	}
	return &Saver{
		encoder:          cfg.Encoder,
		store:            cfg.Store,
		defaultExt:       imgio.NormalizeExtension(ext),
		rollbackFileOnDB: cfg.RollbackFileOnDBError,
		logger:           cfg.Logger,
	}
}

// Format returns the extension Save encodes path with: its own extension, or
// the default one when it has none.
func (s *Saver) Format(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return s.defaultExt, nil
	}
	if !imgio.IsSupported(path, imgio.OutputExtensions) {
		return "", fmt.Errorf("%w: %s", imgio.ErrUnsupportedFormat, ext)
	}
	return ext, nil
}

// Save encodes img, writes it to w and then inserts the same bytes with
// userID. path is the file w was opened on; it keeps its name and only picks
// the format. Save always closes w. A database failure leaves the file in
// place unless rollback is enabled.
func (s *Saver) Save(ctx context.Context, img *tensor.Image, userID int64, path string, w io.WriteCloser) (*SaveResult, error) {
	log := s.logger.WithFields(logrus.Fields{
		"filepath": path,
		"user_id":  userID,
	})

	data, err := s.encode(img, path)
	if err != nil {
		_ = w.Close()
		log.WithError(err).Error("Image could not be encoded")
		return nil, &SaveError{Stage: StageEncode, Path: path, Err: err}
	}

	_, err = w.Write(data)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, &SaveError{Stage: StageFile, Path: path, Err: err}
	}
	log.WithField("bytes", len(data)).Info("Image written to file")

	id, err := s.store.InsertImage(ctx, data, userID)
	if err != nil {
		written := true
		if s.rollbackFileOnDB {
			if rerr := os.Remove(path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
				log.WithError(rerr).Warn("Failed to remove file after database error")
			} else {
				written = false
			}
		}
		log.WithError(err).WithField("file_kept", written).Error("Database save failed")
		return nil, &SaveError{Stage: StageDatabase, Path: path, FileWritten: written, Err: err}
	}

	return &SaveResult{
		Path:    path,
		ImageID: id,
		Bytes:   len(data),
	}, nil
}

func (s *Saver) encode(img *tensor.Image, path string) ([]byte, error) {
	ext, err := s.Format(path)
	if err != nil {
		return nil, err
	}
	return s.encoder.Encode(img, ext)
}
