package descriptor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxDescriptorSize caps the size of a descriptor file.
const MaxDescriptorSize = 1 << 20

// LoadFile reads a descriptor, choosing the format from the file extension:
// .lua for Lua, .yaml/.yml/.json for YAML/JSON.
func LoadFile(ctx context.Context, path string) (*PackageDescriptor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat descriptor: %w", err)
	}
	if info.IsDir() {
		return nil, &InvalidDescriptorError{Source: path, Message: "path is a directory"}
	}
	if info.Size() > MaxDescriptorSize {
		return nil, &InvalidDescriptorError{Source: path, Message: fmt.Sprintf("file is too large (%d bytes, max %d)", info.Size(), MaxDescriptorSize)}
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".lua":
		return ParseLua(ctx, path, string(data))
	case ".yaml", ".yml", ".json":
		return ParseYAML(path, data)
	default:
		return nil, &InvalidDescriptorError{Source: path, Message: fmt.Sprintf("unsupported descriptor extension %q (want .lua, .yaml, .yml or .json)", ext)}
	}
}
