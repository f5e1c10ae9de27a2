package extraction

import (
	"context"
	"io"
	"io/fs"
	"strings"

	"github.com/mholt/archives"
	"github.com/pkg/errors"

	"scan-service/internal/pipeline"
)

// ExtractSTLFromArchive opens a ZIP archive from a file on disk and returns
// the bytes of the single STL it contains. Hidden files and OS junk are
// ignored; zero or multiple STL entries are a rejection, not a guess.
func ExtractSTLFromArchive(archivePath string) (name string, data []byte, err error) {
	ctx := context.Background()
	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		return "", nil, errors.Wrap(pipeline.ErrCorruptFile, err.Error())
	}

	var found []string
	err = fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || shouldIgnoreEntry(d.Name()) {
			return nil
		}
		if strings.HasSuffix(strings.ToLower(path), ".stl") {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return "", nil, errors.Wrap(pipeline.ErrCorruptFile, err.Error())
	}

	if len(found) == 0 {
		return "", nil, errors.Wrap(pipeline.ErrInvalidFileType, "archive contains no stl file")
	}
	if len(found) > 1 {
		return "", nil, errors.Wrapf(pipeline.ErrInvalidFileType, "archive contains %d stl files", len(found))
	}

	reader, err := fsys.Open(found[0])
	if err != nil {
		return "", nil, errors.Wrap(pipeline.ErrCorruptFile, err.Error())
	}
	defer reader.Close()

	data, err = io.ReadAll(reader)
	if err != nil {
		return "", nil, errors.Wrap(pipeline.ErrCorruptFile, err.Error())
	}
	base := found[0]
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	return base, data, nil
}

// shouldIgnoreEntry filters system files archives commonly carry.
func shouldIgnoreEntry(filename string) bool {
	if strings.HasPrefix(filename, "._") || strings.HasPrefix(filename, ".") {
		return true
	}
	if strings.EqualFold(filename, "thumbs.db") {
		return true
	}
	return filename == ""
}
