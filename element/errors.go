package element

import "errors"

// 模拟核心对外暴露的错误类别。
// 配置错误在构造时返回；路由错误与流量核算错误在发生的时间步使模拟终止；
// 查询错误返回给调用方且不改变任何状态。
var (
	// ErrCurveNotInstalled 查询未安装累计曲线的路段
	ErrCurveNotInstalled = errors.New("cumulative curve not installed")

	// ErrIntervalNotLoaded 查询超出当前已加载时间步的数据
	ErrIntervalNotLoaded = errors.New("loaded data not enough")

	// ErrRoutingViolation 车辆的下一路段与路网结构矛盾
	ErrRoutingViolation = errors.New("routing violation")

	// ErrFlowAccounting 节点流量分配与路段供给核算不一致
	ErrFlowAccounting = errors.New("flow accounting inconsistency")
)
