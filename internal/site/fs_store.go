package site

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// NewStore 以 basePath 为根目录构建站点存储，目录不存在时创建；整站复用一份实例。
func NewStore(basePath string) (Store, error) {
	if basePath == "" {
		return nil, errors.New("data dir required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	return &fileStore{basePath: abs}, nil
}

// fileStore 直接以文件系统作为唯一事实来源，不持有任何可变状态。
type fileStore struct {
	basePath string
}

func (s *fileStore) Reserve(ctx context.Context, slug string) (*Site, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := s.path(slug)
	if err != nil {
		return nil, err
	}

	// os.Mkdir 而非 MkdirAll：目录已存在必须报错，这是防止覆盖已有站点的唯一手段。
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, ErrExists
		}
		return nil, err
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	return &Site{Slug: slug, Dir: dir, CreatedAt: info.ModTime()}, nil
}

func (s *fileStore) Lookup(ctx context.Context, slug string) (*Site, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	dir, err := s.path(slug)
	if err != nil {
		return nil, ErrNotFound
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, ErrNotFound
	}

	return &Site{Slug: slug, Dir: dir, CreatedAt: info.ModTime()}, nil
}

func (s *fileStore) Remove(ctx context.Context, slug string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir, err := s.path(slug)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *fileStore) List(ctx context.Context) ([]Site, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, err
	}

	sites := make([]Site, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		sites = append(sites, Site{
			Slug:      entry.Name(),
			Dir:       filepath.Join(s.basePath, entry.Name()),
			CreatedAt: info.ModTime(),
		})
	}
	sort.Slice(sites, func(i, j int) bool {
		return sites[i].Slug < sites[j].Slug
	})
	return sites, nil
}

func (s *fileStore) Root() string {
	return s.basePath
}

// path 把 slug 映射为 basePath 下的单级目录，拒绝任何可能逃逸的名字。
func (s *fileStore) path(slug string) (string, error) {
	if slug == "" || slug == "." || slug == ".." {
		return "", ErrInvalidName
	}
	if strings.ContainsAny(slug, `/\`) || !filepath.IsLocal(slug) {
		return "", ErrInvalidName
	}

	dir := filepath.Join(s.basePath, slug)
	if filepath.Dir(dir) != s.basePath {
		return "", ErrInvalidName
	}
	return dir, nil
}
