package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/ozzychow/MAC-POSTS/element"
	"github.com/ozzychow/MAC-POSTS/utils"
)

var curveHeader = []string{"time", "count"}

// WriteLinkCurves 将各路段的四条累计曲线导出为CSV
// 每条路段每个方向每个类别一个文件，多路段并行写出
func WriteLinkCurves(dir string, links []element.Link) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "create output dir %s", dir)
	}

	pool := utils.NewWorkerPool(0)
	defer pool.Stop()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, link := range links {
		link := link
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			if err := writeLinkCurves(dir, link); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	return firstErr
}

func writeLinkCurves(dir string, link element.Link) error {
	type curveFile struct {
		name  string
		curve func() (*element.CumulativeCurve, error)
	}
	files := []curveFile{
		{"in_car", func() (*element.CumulativeCurve, error) { return link.CurveIn(element.ClassCar) }},
		{"in_truck", func() (*element.CumulativeCurve, error) { return link.CurveIn(element.ClassTruck) }},
		{"out_car", func() (*element.CumulativeCurve, error) { return link.CurveOut(element.ClassCar) }},
		{"out_truck", func() (*element.CumulativeCurve, error) { return link.CurveOut(element.ClassTruck) }},
	}

	for _, f := range files {
		curve, err := f.curve()
		if err != nil {
			// 未安装曲线的路段跳过
			if errors.Is(err, element.ErrCurveNotInstalled) {
				return nil
			}
			return err
		}

		rows := lo.Map(curve.Records(), func(r element.CurveRecord, _ int) []string {
			return []string{
				strconv.FormatFloat(r.Time, 'f', -1, 64),
				strconv.FormatFloat(r.Count, 'f', 4, 64),
			}
		})

		filename := filepath.Join(dir, fmt.Sprintf("link_%d_%s_cc.csv", link.ID(), f.name))
		if err := writeCSV(filename, curveHeader, rows); err != nil {
			return err
		}
	}
	return nil
}
