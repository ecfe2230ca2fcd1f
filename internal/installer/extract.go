package installer

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/ZebulonRouseFrantzich/keg/internal/descriptor"
)

// MaxExtractedSize caps how many bytes one archive member may expand to.
const MaxExtractedSize = 1 << 30

var errMemberNotFound = errors.New("member not found in archive")

// Extractor handles archive extraction
type Extractor struct{}

// NewExtractor creates a new extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractBinary writes the archive member named member to destPath with mode
// 0755. member matches an entry by its full path (ignoring a leading "./" or
// a single top-level directory) or, when it has no slash, by base name.
func (e *Extractor) ExtractBinary(archivePath string, format descriptor.ArchiveFormat, member, destPath string) error {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	switch format {
	case descriptor.ArchiveNone:
		return writeExecutable(destPath, archiveFile)

	case descriptor.ArchiveGzip:
		gzipReader, err := gzip.NewReader(archiveFile)
		if err != nil {
			return fmt.Errorf("create gzip reader: %w", err)
		}
		defer gzipReader.Close()
		return writeExecutable(destPath, gzipReader)

	case descriptor.ArchiveTarGz:
		gzipReader, err := gzip.NewReader(archiveFile)
		if err != nil {
			return fmt.Errorf("create gzip reader: %w", err)
		}
		defer gzipReader.Close()
		return extractTarMember(tar.NewReader(gzipReader), member, destPath)

	case descriptor.ArchiveTarXz:
		xzReader, err := xz.NewReader(archiveFile)
		if err != nil {
			return fmt.Errorf("create xz reader: %w", err)
		}
		return extractTarMember(tar.NewReader(xzReader), member, destPath)

	case descriptor.ArchiveTarZst:
		zstdReader, err := zstd.NewReader(archiveFile)
		if err != nil {
			return fmt.Errorf("create zstd reader: %w", err)
		}
		defer zstdReader.Close()
		return extractTarMember(tar.NewReader(zstdReader), member, destPath)

	case descriptor.ArchiveZip:
		info, err := archiveFile.Stat()
		if err != nil {
			return fmt.Errorf("stat archive: %w", err)
		}
		zipReader, err := zip.NewReader(archiveFile, info.Size())
		if err != nil {
			return fmt.Errorf("open zip: %w", err)
		}
		return extractZipMember(zipReader, member, destPath)

	default:
		return fmt.Errorf("unsupported archive format %q", string(format))
	}
}

func extractTarMember(tarReader *tar.Reader, member, destPath string) error {
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return fmt.Errorf("%s: %w", member, errMemberNotFound)
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		if header.Typeflag != tar.TypeReg || !memberMatches(header.Name, member) {
			continue
		}
		return writeExecutable(destPath, tarReader)
	}
}

func extractZipMember(zipReader *zip.Reader, member, destPath string) error {
	for _, f := range zipReader.File {
		if f.FileInfo().IsDir() || !memberMatches(f.Name, member) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer rc.Close()
		return writeExecutable(destPath, rc)
	}
	return fmt.Errorf("%s: %w", member, errMemberNotFound)
}

// memberMatches compares an archive entry name with the wanted member.
func memberMatches(name, member string) bool {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	member = strings.TrimPrefix(path.Clean("/"+member), "/")

	if name == member {
		return true
	}
	if !strings.Contains(member, "/") {
		return path.Base(name) == member
	}
	// Allow a single top-level directory such as "tool-1.0/".
	if _, rest, ok := strings.Cut(name, "/"); ok {
		return rest == member
	}
	return false
}

// writeExecutable copies r to destPath with mode 0755.
func writeExecutable(destPath string, r io.Reader) error {
	outFile, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	n, err := io.Copy(outFile, io.LimitReader(r, MaxExtractedSize+1))
	if err != nil {
		outFile.Close()
		os.Remove(destPath)
		return fmt.Errorf("write file: %w", err)
	}
	if n > MaxExtractedSize {
		outFile.Close()
		os.Remove(destPath)
		return fmt.Errorf("member exceeds %d bytes", MaxExtractedSize)
	}

	if err := outFile.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	return nil
}
