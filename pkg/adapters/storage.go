package adapters

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// CompressThreshold is the payload size at or above which LocalStorage
// writes artifacts lz4-compressed.
const CompressThreshold = 4 << 10

// lz4Extension marks compressed artifacts on disk.
const lz4Extension = ".lz4"

// metaExtension marks the sidecar carrying StoreText metadata.
const metaExtension = ".meta.json"

// artifactDirPerm and artifactFilePerm are the modes for created artifacts.
const (
	artifactDirPerm  = 0o755
	artifactFilePerm = 0o644
)

// Storage sentinel errors.
var (
	ErrPathEscapesRoot  = errors.New("artifact path escapes storage root")
	ErrArtifactNotFound = errors.New("artifact not found")
)

// StoredObject describes one artifact written through a Storage adapter.
type StoredObject struct {
	// Path is the storage-relative path of the artifact as written,
	// including the compression extension when applied.
	Path string `json:"path"`

	// Size is the on-disk size in bytes.
	Size int64 `json:"size"`

	// Hash is the hex SHA-256 of the uncompressed payload.
	Hash string `json:"hash"`
}

// Storage persists run artifacts (reports, window dumps). Implementations
// must be safe for concurrent use.
type Storage interface {
	StoreBytes(ctx context.Context, path, mime string, data []byte) (StoredObject, error)
	StoreText(ctx context.Context, path, text, mime string, meta map[string]string) (StoredObject, error)
	GetLocalPath(ctx context.Context, path string) (string, error)
}

// LocalStorage writes artifacts beneath a root directory, compressing
// payloads at or above CompressThreshold with lz4.
type LocalStorage struct {
	root   string
	logger *slog.Logger
}

// NewLocalStorage creates the root directory if needed.
func NewLocalStorage(root string, logger *slog.Logger) (*LocalStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(root, artifactDirPerm); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	return &LocalStorage{root: root, logger: logger}, nil
}

// StoreBytes implements Storage.
func (s *LocalStorage) StoreBytes(ctx context.Context, path, mime string, data []byte) (StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return StoredObject{}, err
	}

	rel, err := s.cleanPath(path)
	if err != nil {
		return StoredObject{}, err
	}

	full := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(full), artifactDirPerm); err != nil {
		return StoredObject{}, fmt.Errorf("create artifact dir: %w", err)
	}

	sum := sha256.Sum256(data)
	obj := StoredObject{Path: rel, Hash: hex.EncodeToString(sum[:])}

	if len(data) >= CompressThreshold {
		obj.Path = rel + lz4Extension

		size, err := writeCompressed(full+lz4Extension, data)
		if err != nil {
			return StoredObject{}, err
		}

		obj.Size = size
	} else {
		if err := os.WriteFile(full, data, artifactFilePerm); err != nil {
			return StoredObject{}, fmt.Errorf("write artifact: %w", err)
		}

		obj.Size = int64(len(data))
	}

	s.logger.Debug("artifact stored",
		"path", obj.Path,
		"mime", mime,
		"size", obj.Size)

	return obj, nil
}

// StoreText implements Storage. Non-empty meta is written to a compact JSON
// sidecar next to the artifact.
func (s *LocalStorage) StoreText(ctx context.Context, path, text, mime string, meta map[string]string) (StoredObject, error) {
	obj, err := s.StoreBytes(ctx, path, mime, []byte(text))
	if err != nil {
		return StoredObject{}, err
	}

	if len(meta) == 0 {
		return obj, nil
	}

	encoded, err := json.Marshal(meta)
	if err != nil {
		return StoredObject{}, fmt.Errorf("encode artifact meta: %w", err)
	}

	sidecar := filepath.Join(s.root, strings.TrimSuffix(obj.Path, lz4Extension)+metaExtension)
	if err := os.WriteFile(sidecar, encoded, artifactFilePerm); err != nil {
		return StoredObject{}, fmt.Errorf("write artifact meta: %w", err)
	}

	return obj, nil
}

// GetLocalPath implements Storage. Compressed artifacts are inflated once,
// next to the stored file, and the inflated path is returned.
func (s *LocalStorage) GetLocalPath(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rel, err := s.cleanPath(path)
	if err != nil {
		return "", err
	}

	full := filepath.Join(s.root, rel)

	if _, err := os.Stat(full); err == nil {
		if !strings.HasSuffix(full, lz4Extension) {
			return full, nil
		}

		inflated := strings.TrimSuffix(full, lz4Extension)
		if _, err := os.Stat(inflated); err == nil {
			return inflated, nil
		}

		if err := inflate(full, inflated); err != nil {
			return "", err
		}

		return inflated, nil
	}

	// The caller may hold the logical path of an artifact that was
	// compressed on write.
	if _, err := os.Stat(full + lz4Extension); err == nil {
		return s.GetLocalPath(ctx, rel+lz4Extension)
	}

	return "", fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
}

// cleanPath normalizes a storage-relative path and rejects escapes.
func (s *LocalStorage) cleanPath(path string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapesRoot, path)
	}

	return rel, nil
}

// writeCompressed writes data lz4-compressed to full and returns the
// on-disk size.
func writeCompressed(full string, data []byte) (int64, error) {
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, artifactFilePerm)
	if err != nil {
		return 0, fmt.Errorf("create compressed artifact: %w", err)
	}

	zw := lz4.NewWriter(f)

	if _, err := zw.Write(data); err != nil {
		_ = f.Close()

		return 0, fmt.Errorf("compress artifact: %w", err)
	}

	if err := zw.Close(); err != nil {
		_ = f.Close()

		return 0, fmt.Errorf("flush compressed artifact: %w", err)
	}

	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close compressed artifact: %w", err)
	}

	info, err := os.Stat(full)
	if err != nil {
		return 0, fmt.Errorf("stat compressed artifact: %w", err)
	}

	return info.Size(), nil
}

// inflate decompresses src into dst.
func inflate(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open compressed artifact: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, artifactFilePerm)
	if err != nil {
		return fmt.Errorf("create inflated artifact: %w", err)
	}

	if _, err := io.Copy(out, lz4.NewReader(in)); err != nil {
		_ = out.Close()

		return fmt.Errorf("inflate artifact: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close inflated artifact: %w", err)
	}

	return nil
}
