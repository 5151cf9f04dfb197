package element

// Link 路段的统一能力集合，CTM与点队列两种模型共同实现
type Link interface {
	// ID 返回路段ID
	ID() int64

	// Length 返回路段长度（米）
	Length() float64

	// VehConvertFactor 返回货车的小汽车当量
	VehConvertFactor() float64

	// Supply 返回本时间步路段可接收的实际车辆数
	Supply() float64

	// ClearIncoming 将上游节点写入的到达车辆装入路段
	ClearIncoming() error

	// Evolve 推进路段状态一个时间步
	Evolve(tick int) error

	// Flow 返回路段内的实际车辆总数
	Flow() float64

	// TravelTime 返回当前密度下的路段通行时间（秒）
	TravelTime() float64

	// InstallCumulativeCurves 安装四条分类别的累计曲线
	InstallCumulativeCurves()

	// CurveIn 返回指定类别的到达累计曲线
	CurveIn(class VehicleClass) (*CumulativeCurve, error)

	// CurveOut 返回指定类别的离开累计曲线
	CurveOut(class VehicleClass) (*CumulativeCurve, error)

	// FromNode 返回路段上游节点
	FromNode() Node

	// ToNode 返回路段下游节点
	ToNode() Node

	// SetEndpoints 挂接路段两端的节点
	SetEndpoints(from, to Node)

	base() *baseLink
}

// baseLink 两种路段模型共享的状态
type baseLink struct {
	id               int64
	numLanes         int
	length           float64
	unitTime         float64
	flowScalar       float64
	vehConvertFactor float64

	fromNode Node
	toNode   Node

	// 上游节点写入、ClearIncoming消费的到达队列
	incomingArray []*Vehicle

	// 已走完路段、等待下游节点处理的车辆
	finishedArray []*Vehicle

	nInCar    *CumulativeCurve
	nOutCar   *CumulativeCurve
	nInTruck  *CumulativeCurve
	nOutTruck *CumulativeCurve
}

func (l *baseLink) base() *baseLink { return l }

// ID 返回路段ID
func (l *baseLink) ID() int64 {
	return l.id
}

// Length 返回路段长度（米）
func (l *baseLink) Length() float64 {
	return l.length
}

// NumLanes 返回车道数
func (l *baseLink) NumLanes() int {
	return l.numLanes
}

// VehConvertFactor 返回货车的小汽车当量
func (l *baseLink) VehConvertFactor() float64 {
	return l.vehConvertFactor
}

// FromNode 返回路段上游节点
func (l *baseLink) FromNode() Node {
	return l.fromNode
}

// ToNode 返回路段下游节点
func (l *baseLink) ToNode() Node {
	return l.toNode
}

// SetEndpoints 挂接路段两端的节点
func (l *baseLink) SetEndpoints(from, to Node) {
	l.fromNode = from
	l.toNode = to
}

// InstallCumulativeCurves 安装四条分类别的累计曲线，各自以 (0,0) 起始
func (l *baseLink) InstallCumulativeCurves() {
	l.nInCar = NewCumulativeCurve()
	l.nOutCar = NewCumulativeCurve()
	l.nInTruck = NewCumulativeCurve()
	l.nOutTruck = NewCumulativeCurve()
}

// curve 按方向和类别返回累计曲线，未安装时返回ErrCurveNotInstalled
func (l *baseLink) curve(in bool, class VehicleClass) (*CumulativeCurve, error) {
	var c *CumulativeCurve
	switch {
	case in && class == ClassCar:
		c = l.nInCar
	case in && class == ClassTruck:
		c = l.nInTruck
	case !in && class == ClassCar:
		c = l.nOutCar
	default:
		c = l.nOutTruck
	}
	if c == nil {
		return nil, ErrCurveNotInstalled
	}
	return c, nil
}

// CurveIn 返回指定类别的到达累计曲线
func (l *baseLink) CurveIn(class VehicleClass) (*CumulativeCurve, error) {
	return l.curve(true, class)
}

// CurveOut 返回指定类别的离开累计曲线
func (l *baseLink) CurveOut(class VehicleClass) (*CumulativeCurve, error) {
	return l.curve(false, class)
}

// recordIn 在时间t上记录分类别的到达增量（曲线未安装时忽略）
func (l *baseLink) recordIn(t float64, car, truck float64) {
	if l.nInCar != nil {
		l.nInCar.AddIncrement(t, car)
	}
	if l.nInTruck != nil {
		l.nInTruck.AddIncrement(t, truck)
	}
}

// recordOut 在时间t上记录分类别的离开增量（曲线未安装时忽略）
func (l *baseLink) recordOut(t float64, car, truck float64) {
	if l.nOutCar != nil {
		l.nOutCar.AddIncrement(t, car)
	}
	if l.nOutTruck != nil {
		l.nOutTruck.AddIncrement(t, truck)
	}
}

// pushIncoming 上游节点向路段写入一辆到达车辆
func (l *baseLink) pushIncoming(veh *Vehicle) {
	l.incomingArray = append(l.incomingArray, veh)
}

// countFinished 统计完成队列中各类别的车辆数
func (l *baseLink) countFinished() (car, truck int) {
	for _, veh := range l.finishedArray {
		if veh.class == ClassCar {
			car++
		} else {
			truck++
		}
	}
	return car, truck
}

// moveVehQueue 将from队首至多n辆车按序移入to队尾
func moveVehQueue(from, to *[]*Vehicle, n int) {
	if n > len(*from) {
		n = len(*from)
	}
	if n <= 0 {
		return
	}
	*to = append(*to, (*from)[:n]...)
	*from = (*from)[n:]
}
