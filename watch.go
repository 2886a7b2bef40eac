package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/ByLCY/captioner/session"
	"github.com/ByLCY/captioner/style"
)

// watchStyle 监听样式文件，每次保存后重新叠加样式并交给会话做防抖预览。
// 监听的是所在目录，以兼容先写临时文件再改名的编辑器。ctx 结束时返回 nil。
func watchStyle(ctx context.Context, sess *session.Session, base style.Settings, opts cliOptions) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监听失败: %w", err)
	}
	defer watcher.Close()

	target, err := filepath.Abs(opts.stylePath)
	if err != nil {
		return fmt.Errorf("解析样式文件路径失败: %w", err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("监听目录 %s 失败: %w", filepath.Dir(target), err)
	}
	log.Printf("正在监听 %s，按 Ctrl+C 结束", opts.stylePath)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isStyleChange(event, target) {
				continue
			}
			reloadStyle(sess, base, opts)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("文件监听出错: %v", err)
		}
	}
}

func isStyleChange(event fsnotify.Event, target string) bool {
	name, err := filepath.Abs(event.Name)
	if err != nil || name != target {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}

// reloadStyle 重新读取样式文件；出错时保留当前样式并记录日志。
func reloadStyle(sess *session.Session, base style.Settings, opts cliOptions) {
	next, err := loadSettings(base, opts)
	if err != nil {
		log.Printf("样式未更新: %v", err)
		return
	}
	err = sess.Update(func(s *style.Settings) { *s = next })
	switch {
	case errors.Is(err, session.ErrInvalidInput):
		log.Printf("样式未更新: %v", err)
	case err != nil:
		log.Printf("更新样式失败: %v", err)
	default:
		log.Printf("样式已更新（%d 个字符）", next.CharCount())
	}
}
