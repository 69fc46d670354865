package storage

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"shorts-stack/internal/models"
)

// Relocator moves a video's source file into the posted folder.
type Relocator struct {
	postedDir string
	log       logrus.FieldLogger
}

func NewRelocator(postedDir string, log logrus.FieldLogger) *Relocator {
	return &Relocator{
		postedDir: postedDir,
		log:       log,
	}
}

// Relocate moves item's file into the posted folder, keeping its base name.
// It returns the absolute destination and true on success. A missing path, a
// missing source, or any OS error yields ("", false); the item's status
// transition does not depend on it.
func (r *Relocator) Relocate(item *models.VideoItem) (string, bool) {
	if item.FilePath == nil || *item.FilePath == "" {
		return "", false
	}

	source := expandHome(*item.FilePath)
	info, err := os.Stat(source)
	if err != nil || info.IsDir() {
		r.log.WithField("video_id", item.ID).Debugf("No file to relocate at %s", source)
		return "", false
	}

	postedDir, err := filepath.Abs(expandHome(r.postedDir))
	if err != nil {
		r.log.WithError(err).Warnf("Cannot resolve posted folder %s", r.postedDir)
		return "", false
	}
	if err := os.MkdirAll(postedDir, 0755); err != nil {
		r.log.WithError(err).Warnf("Cannot create posted folder %s", postedDir)
		return "", false
	}

	destination := filepath.Join(postedDir, filepath.Base(source))
	if err := os.Rename(source, destination); err != nil {
		r.log.WithError(err).WithField("video_id", item.ID).Warnf("Failed to move %s to %s", source, destination)
		return "", false
	}

	r.log.WithField("video_id", item.ID).Infof("Moved %s -> %s", source, destination)
	return destination, true
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
