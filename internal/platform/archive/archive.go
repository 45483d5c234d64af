// Package archive packages merged JSON collections into password-protected
// zip archives for handoff, and extracts them on the consuming side. Each
// archive holds exactly one entry named after the source JSON file,
// encrypted with WinZip AES-256.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yeka/zip"
)

var (
	// ErrUnsupportedFile is returned when asked to encrypt anything other
	// than a JSON output file.
	ErrUnsupportedFile = errors.New("unsupported file type for encryption")
	// ErrBadPassword is returned when an archive fails to decrypt. A wrong
	// password is always a hard failure, never silently wrong data.
	ErrBadPassword = errors.New("decryption failed: wrong password or corrupted archive")
)

// Encrypt wraps a JSON file into a password-protected archive at zipPath.
// The entry name inside the archive equals the source file name.
func Encrypt(jsonPath, zipPath, password string) error {
	if strings.ToLower(filepath.Ext(jsonPath)) != ".json" {
		return fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Ext(jsonPath))
	}
	content, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", jsonPath, err)
	}

	if err := os.MkdirAll(filepath.Dir(zipPath), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(zipPath), err)
	}
	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", zipPath, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	entry, err := zw.Encrypt(filepath.Base(jsonPath), password, zip.AES256Encryption)
	if err != nil {
		return fmt.Errorf("create archive entry: %w", err)
	}
	if _, err := entry.Write(content); err != nil {
		return fmt.Errorf("write archive entry: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", zipPath, err)
	}
	return nil
}

// Decrypt extracts the single JSON entry of an encrypted archive into
// outDir and returns the path of the extracted file. Authentication
// failures surface as ErrBadPassword.
func Decrypt(zipPath, outDir, password string) (string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", zipPath, err)
	}
	defer zr.Close()

	if len(zr.File) != 1 {
		return "", fmt.Errorf("%s: expected a single entry, found %d", zipPath, len(zr.File))
	}
	entry := zr.File[0]
	if entry.IsEncrypted() {
		entry.SetPassword(password)
	}

	rc, err := entry.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrBadPassword, zipPath)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrBadPassword, zipPath)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", outDir, err)
	}
	outPath := filepath.Join(outDir, filepath.Base(entry.Name))
	if err := os.WriteFile(outPath, content, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", outPath, err)
	}
	return outPath, nil
}
