// Package image 图片上传处理
//
// 上传的图片统一裁剪为 500x500 JPEG（质量 90）后写入对象存储，
// 调用方只拿到对象路径，原图不落地。
package image

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"

	"pokedex-api/internal/apiserver/respond"
	"pokedex-api/internal/shared/apperror"
)

const (
	targetSize  = 500
	jpegQuality = 90
)

// Uploader 对象存储上传接口（objstore.Client 实现）
type Uploader interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
}

// Downloader 对象存储下载接口（objstore.Client 实现）
type Downloader interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

// Processor 图片处理器
type Processor struct {
	store Uploader
}

// NewProcessor 创建图片处理器
func NewProcessor(store Uploader) *Processor {
	return &Processor{store: store}
}

// Process 解码、居中裁剪缩放、编码并上传
// 返回对象路径 image/user-{ownerID}/{name}.jpg。
func (p *Processor) Process(ctx context.Context, ownerID, name string, r io.Reader) (string, error) {
	src, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	resized := imaging.Fill(src, targetSize, targetSize, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}

	key := ObjectKey(ownerID, name)
	if err := p.store.Upload(ctx, key, &buf, int64(buf.Len()), "image/jpeg"); err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	return key, nil
}

// ServeHandler 返回按对象路径回源图片的处理函数
//
// 注册在 GET /img/{key...} 上，key 即 Process 返回的对象路径。
func ServeHandler(store Downloader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("key")
		if key == "" || strings.Contains(key, "..") {
			respond.Error(w, apperror.NotFound("no image found at that path"))
			return
		}

		obj, err := store.Download(r.Context(), key)
		if err != nil {
			respond.Error(w, apperror.NotFound("no image found at that path"))
			return
		}
		defer obj.Close()

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		if _, err := io.Copy(w, obj); err != nil {
			log.Printf("[image] serve %s: %v", key, err)
		}
	}
}

// ObjectKey 构造对象路径
func ObjectKey(ownerID, name string) string {
	return fmt.Sprintf("image/user-%s/%s.jpg", ownerID, slugify(name))
}

// slugify 文件名安全化：小写、空格转连字符、去掉其他符号
func slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == ' ' || r == '_':
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "image"
	}
	return b.String()
}
