// Command archtrace decodes a single ZIP or TAR archive into its annotated
// parse tree. Dispatch is by filename suffix: ".tar" goes to the tar
// decoder, everything else to the zip decoder. Exit status is 0 on
// success, 1 on any decode error.
package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/exp/mmap"

	"github.com/archtrace/archtrace/decode"
	"github.com/archtrace/archtrace/tar"
	"github.com/archtrace/archtrace/zip"
)

func main() {
	if len(os.Args) != 2 {
		slog.Error("usage: archtrace <archive>")
		os.Exit(1)
	}
	path := os.Args[1]

	r, err := mmap.Open(path)
	if err != nil {
		slog.Error("open archive", "path", path, "error", err)
		os.Exit(1)
	}
	defer r.Close()

	buf := make([]byte, r.Len())
	if _, err := r.ReadAt(buf, 0); err != nil {
		slog.Error("read archive", "path", path, "error", err)
		os.Exit(1)
	}

	var v decode.Value
	var derr *decode.Error
	if strings.EqualFold(filepath.Ext(path), ".tar") {
		root := v.MakeObj()
		derr = tar.Decode(root, buf, tar.Opts{})
	} else {
		root := v.MakeObj()
		derr = zip.Decode(root, buf, zip.Opts{})
	}
	if derr != nil {
		slog.Error("decode archive", "path", path, "error", derr.Error())
		os.Exit(1)
	}

	v.Eval()
}
