// Package archive unpacks student-submitted zip files into the local cache
// and captures per-entry metadata for the intake pipeline.
package archive

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"

	"github.com/noah-isme/gradehub-api/internal/models"
)

// ErrArchiveUnreadable indicates the archive could not be opened at all.
var ErrArchiveUnreadable = errors.New("archive unreadable")

// Limits bound extraction so malformed archives fail closed instead of
// exhausting disk or hanging the request.
type Limits struct {
	MaxEntries       int
	MaxEntryBytes    int64
	MaxTotalBytes    int64
	EncodingSniffLen int
}

// DefaultLimits are generous for coursework archives.
func DefaultLimits() Limits {
	return Limits{
		MaxEntries:       2048,
		MaxEntryBytes:    256 << 20,
		MaxTotalBytes:    1 << 30,
		EncodingSniffLen: 64 << 10,
	}
}

// Entry describes one extracted archive member.
type Entry struct {
	RelPath   string
	CachePath string
	Category  string
	MIME      string
	SizeBytes int64
	IsCorrupt bool
	Encoding  string
}

// HashFile computes the SHA-256 content hash of a file on disk.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Extract unpacks the zip at zipPath into destDir and returns one Entry per
// regular file. A member that fails to extract is recorded with IsCorrupt
// set and extraction continues; only a completely unreadable archive
// returns ErrArchiveUnreadable.
func Extract(zipPath, destDir string, limits Limits) ([]Entry, error) {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveUnreadable, err)
	}
	defer reader.Close()

	if limits.MaxEntries > 0 && len(reader.File) > limits.MaxEntries {
		return nil, fmt.Errorf("%w: %d entries exceeds limit", ErrArchiveUnreadable, len(reader.File))
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, err
	}

	var entries []Entry
	var totalBytes int64
	for _, member := range reader.File {
		if member.FileInfo().IsDir() {
			continue
		}

		relPath, ok := sanitizeName(member.Name)
		if !ok {
			continue
		}

		entry := Entry{
			RelPath:   relPath,
			CachePath: filepath.Join(destDir, filepath.FromSlash(relPath)),
			Category:  Classify(relPath),
		}

		written, err := extractMember(member, entry.CachePath, limits.MaxEntryBytes)
		if err != nil {
			entry.IsCorrupt = true
			entries = append(entries, entry)
			continue
		}
		entry.SizeBytes = written
		totalBytes += written
		if limits.MaxTotalBytes > 0 && totalBytes > limits.MaxTotalBytes {
			entry.IsCorrupt = true
			entries = append(entries, entry)
			return entries, fmt.Errorf("%w: total extracted size exceeds limit", ErrArchiveUnreadable)
		}

		if mt, err := mimetype.DetectFile(entry.CachePath); err == nil {
			entry.MIME = mt.String()
		}
		if entry.Category == models.FileText {
			entry.Encoding = detectEncoding(entry.CachePath, limits.EncodingSniffLen)
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

func extractMember(member *zip.File, target string, maxBytes int64) (int64, error) {
	src, err := member.Open()
	if err != nil {
		return 0, err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}

	dst, err := os.Create(target)
	if err != nil {
		return 0, err
	}
	defer dst.Close()

	var reader io.Reader = src
	if maxBytes > 0 {
		reader = io.LimitReader(src, maxBytes+1)
	}
	written, err := io.Copy(dst, reader)
	if err != nil {
		return written, err
	}
	if maxBytes > 0 && written > maxBytes {
		return written, fmt.Errorf("entry %q exceeds size limit", member.Name)
	}
	return written, nil
}

// sanitizeName normalizes a zip member name and rejects anything escaping
// the extraction root.
func sanitizeName(name string) (string, bool) {
	cleaned := filepath.ToSlash(filepath.Clean(name))
	if cleaned == "." || cleaned == "" {
		return "", false
	}
	if strings.HasPrefix(cleaned, "../") || strings.HasPrefix(cleaned, "/") {
		return "", false
	}
	return cleaned, true
}

// Classify maps a file path to its category by extension. Content sniffing
// is reserved for corruption detection; consumers branch on this value.
func Classify(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xls", ".ods", ".csv":
		return models.FileSpreadsheet
	case ".txt", ".md", ".log", ".json", ".xml", ".html", ".css", ".js", ".py", ".java", ".c", ".cpp", ".go", ".r", ".sql":
		return models.FileText
	case ".pdf":
		return models.FilePDF
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".svg", ".webp":
		return models.FileImage
	case ".doc", ".docx", ".odt", ".rtf", ".ppt", ".pptx":
		return models.FileDocument
	default:
		return models.FileOther
	}
}

func detectEncoding(path string, sniffLen int) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	if sniffLen <= 0 {
		sniffLen = 64 << 10
	}
	buf := make([]byte, sniffLen)
	n, err := f.Read(buf)
	if n == 0 || (err != nil && err != io.EOF) {
		return ""
	}

	result, err := chardet.NewTextDetector().DetectBest(buf[:n])
	if err != nil {
		return ""
	}
	return result.Charset
}
