package logging

import (
	"io"
	"log"
	"os"
)

const Flags = log.LstdFlags | log.LUTC | log.Lshortfile

// Setup points the standard logger at stdout and, when path is set, at a
// rotating file. The returned closer releases the file.
func Setup(path string, maxSizeMB, maxBackups int) (io.Closer, error) {
	log.SetFlags(Flags)
	if path == "" {
		log.SetOutput(os.Stdout)
		return io.NopCloser(nil), nil
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}

	w, err := NewRotatingFileWriter(path, int64(maxSizeMB)<<20, maxBackups)
	if err != nil {
		return nil, err
	}
	log.SetOutput(io.MultiWriter(os.Stdout, w))
	return w, nil
}
