package api

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"PulseOutreach/internal/csvparser"
)

var allowedUploads = map[string]bool{
	".csv": true,
	".pdf": true,
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// secureFilename keeps an ASCII-safe base name and appends a unix
// timestamp so repeated uploads never overwrite each other.
func secureFilename(name string, now time.Time) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	ext := strings.ToLower(filepath.Ext(name))
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	stem = unsafeFilenameChars.ReplaceAllString(stem, "_")
	stem = strings.Trim(stem, "._")
	if stem == "" {
		stem = "upload"
	}
	return fmt.Sprintf("%s_%d%s", stem, now.Unix(), ext)
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.Cfg.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "No file selected")
		return
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedUploads[ext] {
		writeError(w, http.StatusBadRequest, "Invalid file type")
		return
	}

	if err := os.MkdirAll(h.Cfg.UploadDir, 0o755); err != nil {
		h.Log.Error("failed to create upload dir", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	path := filepath.Join(h.Cfg.UploadDir, secureFilename(header.Filename, time.Now()))
	size, err := saveFile(path, file)
	if err != nil {
		h.Log.Error("failed to save upload", zap.String("path", path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	resp := map[string]any{
		"success":  true,
		"filename": filepath.Base(path),
		"path":     path,
		"size_mb":  math.Round(float64(size)/(1024*1024)*100) / 100,
	}

	if ext == ".csv" {
		recipients, err := csvparser.ReadFile(path, 0)
		if err != nil {
			resp["warning"] = err.Error()
		} else {
			resp["recipient_count"] = len(recipients)
		}
	}

	h.Log.Info("file uploaded", zap.String("path", path), zap.Int64("bytes", size))
	writeJSON(w, http.StatusOK, resp)
}

func saveFile(path string, src io.Reader) (int64, error) {
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return n, nil
}
