package classfile

import (
	"fmt"
	"os"
	"path/filepath"
)

const DefaultExtension = "class"

// FileWriter stores artifacts as <Dir>/<name>.<Extension>, creating or truncating the
// file.
type FileWriter struct {
	Dir       string
	Extension string
}

// Path is the file an artifact called name is written to.
func (w FileWriter) Path(name string) string {
	extension := w.Extension
	if extension == "" {
		extension = DefaultExtension
	}
	return filepath.Join(w.Dir, name+"."+extension)
}

func (w FileWriter) WriteArtifact(name string, data []byte) (string, error) {
	path := w.Path(name)
	err := os.WriteFile(path, data, 0644)
	if err != nil {
		return "", fmt.Errorf("classfile: write %s: %w", path, err)
	}
	return path, nil
}
