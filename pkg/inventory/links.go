package inventory

import (
	"os"
	"path/filepath"

	"github.com/jimyag/aggravator/pkg/logger"
)

// CreateLinks 在 directory 下为每个环境创建指向可执行文件的符号链接
// 通过 <环境名> 链接调用时，环境名可以从 argv[0] 推断出来
// 单个链接失败（比如已存在）不中断其余链接，返回失败计数
func CreateLinks(environments []string, directory, executable string) int {
	errCount := 0
	for _, env := range environments {
		target, err := filepath.Rel(directory, executable)
		if err != nil {
			// 跨盘符等无法表达相对路径的情况，退回绝对路径
			target = executable
		}

		if err := os.Symlink(target, filepath.Join(directory, env)); err != nil {
			logger.Warnf("this symlink might already exist, leaving it unchanged: %v", err)
			errCount++
		}
	}
	return errCount
}
