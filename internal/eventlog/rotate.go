package eventlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/klauspost/compress/gzip"
)

// gzipAndRemove compresses path to path+".gz" and removes the
// uncompressed original, run in its own goroutine so Record never
// blocks on archival I/O for an old segment.
func gzipAndRemove(path string, logger *slog.Logger) {
	if err := gzipFile(path); err != nil {
		logger.Error("eventlog: archive failed", "path", path, "error", err)
		return
	}
	if err := os.Remove(path); err != nil {
		logger.Warn("eventlog: remove archived segment failed", "path", path, "error", err)
	}
}

func gzipFile(path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer in.Close()

	out, err := os.Create(path + ".gz")
	if err != nil {
		return fmt.Errorf("create %s.gz: %w", path, err)
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		return fmt.Errorf("compress %s: %w", path, err)
	}
	return gw.Close()
}
