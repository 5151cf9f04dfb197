package recorder

import (
	"encoding/csv"
	"os"

	"github.com/pkg/errors"
)

// writeCSV 创建文件并一次性写入表头与数据行
func writeCSV(filename string, header []string, rows [][]string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "create file %s", filename)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(header); err != nil {
		return errors.Wrapf(err, "write header to file %s", filename)
	}
	if err := writer.WriteAll(rows); err != nil {
		return errors.Wrapf(err, "write data to file %s", filename)
	}
	return nil
}

// fileExists 检查文件是否存在
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return !info.IsDir()
}
