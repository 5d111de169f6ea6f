package site

import (
	"context"
	"errors"
	"time"
)

// Store 负责管理 data_dir 下的站点目录。磁盘布局遵循：
//
//	<DataDir>/<slug>/...    # 上传包解压后的静态文件
//
// 目录是否存在即站点是否存在，没有额外的元数据文件。
type Store interface {
	// Reserve 以独占方式创建 slug 目录。目录已存在时返回 ErrExists，调用方应换一个 slug 重试。
	Reserve(ctx context.Context, slug string) (*Site, error)

	// Lookup 返回已存在的站点。目录不存在或不是目录时返回 ErrNotFound。
	Lookup(ctx context.Context, slug string) (*Site, error)

	// Remove 删除站点目录及其内容，用于上传失败后的清理。
	Remove(ctx context.Context, slug string) error

	// List 返回当前所有站点，供诊断接口统计。
	List(ctx context.Context) ([]Site, error)

	// Root 返回 data_dir 的绝对路径。
	Root() string
}

// Site 表示一个预览站点目录。
type Site struct {
	Slug      string    `json:"slug"`
	Dir       string    `json:"dir"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	// ErrNotFound 表示站点目录不存在。
	ErrNotFound = errors.New("site not found")
	// ErrExists 表示 slug 目录已被占用。
	ErrExists = errors.New("site already exists")
	// ErrInvalidName 表示 slug 不能安全地映射为 data_dir 下的单级目录。
	ErrInvalidName = errors.New("invalid site name")
)
