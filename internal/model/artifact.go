package model

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rxtech-lab/argo-fusion/internal/logger"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/internal/version"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Artifact is the serialised form of a trained classifier.
type Artifact struct {
	Format           string            `yaml:"format"`
	Family           types.ModelFamily `yaml:"family"`
	Target           types.Horizon     `yaml:"target_days"`
	LabelFingerprint string            `yaml:"label_fingerprint"`
	CreatedAt        time.Time         `yaml:"created_at"`
	Softmax          *Softmax          `yaml:"softmax,omitempty"`
	Prior            *Prior            `yaml:"prior,omitempty"`
}

// NewArtifact wraps a classifier for storage.
func NewArtifact(clf Classifier, target types.Horizon, fingerprint string) (*Artifact, error) {
	artifact := &Artifact{
		Format:           version.ArtifactFormat,
		Family:           clf.Family(),
		Target:           target,
		LabelFingerprint: fingerprint,
		CreatedAt:        time.Now().UTC(),
	}

	switch m := clf.(type) {
	case *Softmax:
		artifact.Softmax = m
	case *Prior:
		artifact.Prior = m
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedFamily, "cannot store model family %s", clf.Family())
	}

	return artifact, nil
}

// Classifier returns the model held by the artifact.
func (a *Artifact) Classifier() (Classifier, error) {
	switch a.Family {
	case types.ModelFamilySoftmax:
		if a.Softmax == nil {
			return nil, errors.New(errors.ErrCodeArtifactReadFailed, "softmax artifact without parameters")
		}

		return a.Softmax, nil
	case types.ModelFamilyPrior:
		if a.Prior == nil {
			return nil, errors.New(errors.ErrCodeArtifactReadFailed, "prior artifact without frequencies")
		}

		return a.Prior, nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedFamily, "unsupported model family %q", a.Family)
	}
}

// ArtifactStore persists model artifacts.
type ArtifactStore interface {
	// Save writes the artifact under name and returns the path recorded on the model
	Save(ctx context.Context, name string, artifact *Artifact) (string, error)
	// Load reads an artifact and checks that this build can interpret its format
	Load(ctx context.Context, path string) (*Artifact, error)
	// Remove deletes an artifact written by Save
	Remove(ctx context.Context, path string) error
}

// FileArtifactStore keeps artifacts as yaml files in one directory.
type FileArtifactStore struct {
	dir    string
	logger *logger.Logger
}

func NewFileArtifactStore(dir string, log *logger.Logger) *FileArtifactStore {
	return &FileArtifactStore{dir: dir, logger: log}
}

func (s *FileArtifactStore) Save(_ context.Context, name string, artifact *Artifact) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", errors.Wrap(errors.ErrCodeArtifactWriteFailed, "failed to create artifact directory", err)
	}

	data, err := yaml.Marshal(artifact)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeArtifactWriteFailed, "failed to encode artifact", err)
	}

	path := filepath.Join(s.dir, name+".yaml")

	// readers only ever see a complete file under the final name
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeArtifactWriteFailed, "failed to create artifact file", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return "", errors.Wrap(errors.ErrCodeArtifactWriteFailed, "failed to write artifact", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return "", errors.Wrap(errors.ErrCodeArtifactWriteFailed, "failed to close artifact", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())

		return "", errors.Wrap(errors.ErrCodeArtifactWriteFailed, "failed to move artifact into place", err)
	}

	s.logger.Debug("Saved artifact", zap.String("path", path), zap.String("family", string(artifact.Family)))

	return path, nil
}

func (s *FileArtifactStore) Load(_ context.Context, path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrCodeModelNotFound, err, "artifact %s does not exist", path)
		}

		return nil, errors.Wrapf(errors.ErrCodeArtifactReadFailed, err, "failed to read artifact %s", path)
	}

	var artifact Artifact
	if err := yaml.Unmarshal(data, &artifact); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeArtifactReadFailed, err, "failed to decode artifact %s", path)
	}

	if err := version.CheckArtifactCompatibility(version.ArtifactFormat, artifact.Format); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeArtifactIncompatible, err, "artifact %s cannot be loaded", path)
	}

	if _, err := artifact.Classifier(); err != nil {
		return nil, err
	}

	return &artifact, nil
}

func (s *FileArtifactStore) Remove(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(errors.ErrCodeArtifactWriteFailed, err, "failed to remove artifact %s", path)
	}

	return nil
}
