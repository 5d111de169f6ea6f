// Package archive unpacks uploaded site bundles (gzip-compressed tar streams)
// into a directory that the caller has already reserved. Entries keep their
// relative paths; containment is enforced by opening the target as an os.Root,
// so nothing in the bundle can write outside it.
package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

var (
	// ErrDecompress 表示输入不是合法的 gzip 流。
	ErrDecompress = errors.New("bundle is not a gzip stream")
	// ErrMalformed 表示 gzip 正文或 tar 结构损坏。
	ErrMalformed = errors.New("bundle is not a valid tar archive")
	// ErrTooLarge 表示解压后的总字节数超过上限。
	ErrTooLarge = errors.New("bundle exceeds extraction limit")
)

// Options 控制解压行为。
type Options struct {
	// MaxBytes 限制解压出的文件总字节数，<=0 表示不限制。
	MaxBytes int64
}

// Stats 汇总一次解压的结果，便于日志与指标输出。
type Stats struct {
	Files   int
	Dirs    int
	Skipped int
	Bytes   int64
}

// Extract 将 r 作为 gzip 压缩的 tar 流解压到 dir。dir 必须已存在。
// 非本地路径（含 .. 逃逸）以及链接、设备等非常规条目会被跳过并计入 Stats.Skipped。
func Extract(ctx context.Context, r io.Reader, dir string, opts Options) (Stats, error) {
	var stats Stats

	zr, err := gzip.NewReader(r)
	if err != nil {
		return stats, fmt.Errorf("%w: %v", ErrDecompress, err)
	}
	defer zr.Close()

	root, err := os.OpenRoot(dir)
	if err != nil {
		return stats, fmt.Errorf("open target dir: %w", err)
	}
	defer root.Close()

	tr := tar.NewReader(zr)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		name, ok := entryName(hdr.Name)
		if !ok {
			stats.Skipped++
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := root.MkdirAll(name, dirMode(hdr)); err != nil {
				return stats, fmt.Errorf("create dir %s: %w", name, err)
			}
			stats.Dirs++
		case tar.TypeReg:
			remaining := int64(-1)
			if opts.MaxBytes > 0 {
				remaining = opts.MaxBytes - stats.Bytes
			}
			written, err := writeFile(root, name, fileMode(hdr), tr, remaining)
			stats.Bytes += written
			if err != nil {
				return stats, err
			}
			stats.Files++
		default:
			stats.Skipped++
		}
	}
}

// entryName 规整 tar 条目名：去掉前导 / 与 ./，拒绝逃逸出根目录的路径。
func entryName(raw string) (string, bool) {
	name := strings.ReplaceAll(raw, `\`, "/")
	name = strings.TrimLeft(name, "/")
	name = path.Clean(name)
	if name == "." || name == "" {
		return "", false
	}
	local := filepath.FromSlash(name)
	if !filepath.IsLocal(local) {
		return "", false
	}
	return local, true
}

func writeFile(root *os.Root, name string, mode fs.FileMode, src io.Reader, remaining int64) (int64, error) {
	if parent := filepath.Dir(name); parent != "." {
		if err := root.MkdirAll(parent, 0o755); err != nil {
			return 0, fmt.Errorf("create dir %s: %w", parent, err)
		}
	}

	f, err := root.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return 0, fmt.Errorf("create file %s: %w", name, err)
	}

	var written int64
	if remaining >= 0 {
		written, err = io.Copy(f, io.LimitReader(src, remaining+1))
		if err == nil && written > remaining {
			err = ErrTooLarge
		}
	} else {
		written, err = io.Copy(f, src)
	}
	closeErr := f.Close()

	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			return written, err
		}
		return written, fmt.Errorf("%w: write %s: %v", ErrMalformed, name, err)
	}
	if closeErr != nil {
		return written, fmt.Errorf("close %s: %w", name, closeErr)
	}
	return written, nil
}

func fileMode(hdr *tar.Header) fs.FileMode {
	perm := fs.FileMode(hdr.Mode).Perm()
	// 站点文件必须可被服务进程读取
	return perm | 0o600
}

func dirMode(hdr *tar.Header) fs.FileMode {
	perm := fs.FileMode(hdr.Mode).Perm()
	return perm | 0o700
}
