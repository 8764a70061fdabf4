package metadata

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
)

// FileLoader preloads static trust entries from local descriptor files.
// It is the external local-file collaborator of the trust store: it runs
// at startup and again on Reload when the deployment signals a content
// change. Files may hold a single EntityDescriptor or a signed
// EntitiesDescriptor collection.
type FileLoader struct {
	dir    string
	store  *TrustStore
	logger *zap.Logger
}

// NewFileLoader creates a loader reading every *.xml file under dir.
func NewFileLoader(dir string, store *TrustStore, logger *zap.Logger) *FileLoader {
	return &FileLoader{dir: dir, store: store, logger: logger}
}

func (l *FileLoader) log() *zap.Logger {
	if l.logger == nil {
		return zap.NewNop()
	}
	return l.logger
}

// Load reads all descriptor files and populates the trust store with
// static entries. Called during initialization.
func (l *FileLoader) Load() error {
	paths, err := filepath.Glob(filepath.Join(l.dir, "*.xml"))
	if err != nil {
		return fmt.Errorf("scan metadata directory %q: %w", l.dir, err)
	}
	if len(paths) == 0 {
		l.log().Info("no static metadata files found", zap.String("dir", l.dir))
		return nil
	}

	loaded := 0
	for _, path := range paths {
		if err := l.loadFile(path); err != nil {
			return fmt.Errorf("load %q: %w", path, err)
		}
		loaded++
	}
	l.log().Info("static metadata loaded",
		zap.String("dir", l.dir),
		zap.Int("file_count", loaded),
	)
	return nil
}

// Reload re-reads the directory. Called on content-change notification.
func (l *FileLoader) Reload() error {
	return l.Load()
}

func (l *FileLoader) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if isCollection(data) {
		url := collectionURLFromPath(path)
		return l.store.PutSignatureHolder(url, data)
	}

	var entity struct {
		EntityID string `xml:"entityID,attr"`
	}
	if err := xml.Unmarshal(data, &entity); err != nil {
		return domain.WrapFault(domain.KindInvalidMetadata, err, "unparseable descriptor file")
	}
	return l.store.PutDescriptor(entity.EntityID, data, domain.TrustStatic)
}

// isCollection sniffs whether the document root is an EntitiesDescriptor.
func isCollection(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.Contains(string(head), "EntitiesDescriptor")
}

// collectionURLFromPath derives the holder key for a local collection
// file: a file URL, stable across reloads.
func collectionURLFromPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + filepath.ToSlash(abs)
}
