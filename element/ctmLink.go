package element

import (
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
)

const (
	// 单车道阻塞密度上限：300 veh/mile
	maxLaneHoldCap = 300.0 / 1600.0
	// 单车道流率上限：3500 veh/hour
	maxLaneFlowCap = 3500.0 / 3600.0
)

// CTMLink 多类别元胞传输模型路段
// 将路段离散为若干元胞，按需求/供给通量在元胞间推进两类车辆
// (see: Z. (Sean) Qian et al./Trans. Res. Part B 99 (2017) 183-204)
type CTMLink struct {
	baseLink

	laneHoldCapCar           float64
	laneHoldCapTruck         float64
	laneFlowCapCar           float64
	laneFlowCapTruck         float64
	laneCriticalDensityCar   float64
	laneCriticalDensityTruck float64
	laneRho1N                float64
	ffsCar                   float64
	ffsTruck                 float64
	waveSpeedCar             float64
	waveSpeedTruck           float64

	numCells int
	cells    []*ctmCell

	rng *rand.Rand
}

// NewCTMLink 创建一条CTM路段
// 车道级参数在构造时裁剪到物理上限，非法参数返回错误
func NewCTMLink(id int64, numLanes int, length float64,
	laneHoldCapCar, laneHoldCapTruck,
	laneFlowCapCar, laneFlowCapTruck,
	ffsCar, ffsTruck,
	unitTime, vehConvertFactor, flowScalar float64,
	rng *rand.Rand) (*CTMLink, error) {

	if laneHoldCapCar < 0 || laneHoldCapTruck < 0 {
		return nil, errors.Errorf("lane_hold_cap can't be negative, current link ID is %d", id)
	}
	if laneHoldCapCar > maxLaneHoldCap {
		laneHoldCapCar = maxLaneHoldCap
	}
	if laneHoldCapTruck > maxLaneHoldCap {
		laneHoldCapTruck = maxLaneHoldCap
	}

	if laneFlowCapCar < 0 || laneFlowCapTruck < 0 {
		return nil, errors.Errorf("lane_flow_cap can't be less than zero, current link ID is %d", id)
	}
	if laneFlowCapCar > maxLaneFlowCap {
		laneFlowCapCar = maxLaneFlowCap
	}
	if laneFlowCapTruck > maxLaneFlowCap {
		laneFlowCapTruck = maxLaneFlowCap
	}

	if ffsCar < 0 || ffsTruck < 0 {
		return nil, errors.Errorf("free-flow speed can't be less than zero, current link ID is %d", id)
	}
	if vehConvertFactor < 1 {
		return nil, errors.Errorf("veh_convert_factor can't be less than 1, current link ID is %d", id)
	}
	if flowScalar < 1 {
		return nil, errors.Errorf("flow_scalar can't be less than 1, current link ID is %d", id)
	}
	if unitTime <= 0 {
		return nil, errors.Errorf("unit_time should be positive, current link ID is %d", id)
	}

	l := &CTMLink{
		baseLink: baseLink{
			id:               id,
			numLanes:         numLanes,
			length:           length,
			unitTime:         unitTime,
			flowScalar:       flowScalar,
			vehConvertFactor: vehConvertFactor,
		},
		laneHoldCapCar:   laneHoldCapCar,
		laneHoldCapTruck: laneHoldCapTruck,
		laneFlowCapCar:   laneFlowCapCar,
		laneFlowCapTruck: laneFlowCapTruck,
		ffsCar:           ffsCar,
		ffsTruck:         ffsTruck,
		rng:              rng,
	}

	// 两类车中小汽车自由流速度更高，用它定义标准元胞长度
	stdCellLength := ffsCar * unitTime
	l.numCells = int(math.Floor(length / stdCellLength))
	if l.numCells == 0 {
		l.numCells = 1
	}
	lastCellLength := length - float64(l.numCells-1)*stdCellLength

	l.laneCriticalDensityCar = laneFlowCapCar / ffsCar
	l.laneCriticalDensityTruck = laneFlowCapTruck / ffsTruck

	if laneHoldCapCar <= l.laneCriticalDensityCar {
		return nil, errors.Errorf("wrong private car parameters, current link ID is %d", id)
	}
	l.waveSpeedCar = laneFlowCapCar / (laneHoldCapCar - l.laneCriticalDensityCar)

	if laneHoldCapTruck <= l.laneCriticalDensityTruck {
		return nil, errors.Errorf("wrong truck parameters, current link ID is %d", id)
	}
	l.waveSpeedTruck = laneFlowCapTruck / (laneHoldCapTruck - l.laneCriticalDensityTruck)

	// laneRho1N 大于两类车的临界密度，划分半拥挤与完全拥挤状态
	l.laneRho1N = laneHoldCapCar * (l.waveSpeedCar / (ffsTruck + l.waveSpeedCar))

	l.initCells(stdCellLength, lastCellLength)
	return l, nil
}

// initCells 构造元胞序列
// 前 numCells-1 个元胞为标准长度，末元胞承接剩余长度（不短于标准长度且小于2倍；
// 路段短于标准长度时只有一个元胞，其长度即路段长度）
func (l *CTMLink) initCells(stdCellLength, lastCellLength float64) {
	lanes := float64(l.numLanes)
	l.cells = make([]*ctmCell, 0, l.numCells)
	for i := 0; i < l.numCells-1; i++ {
		l.cells = append(l.cells, newCtmCell(stdCellLength, l.unitTime,
			lanes*l.laneHoldCapCar, lanes*l.laneHoldCapTruck,
			lanes*l.laneCriticalDensityCar, lanes*l.laneCriticalDensityTruck,
			lanes*l.laneRho1N,
			lanes*l.laneFlowCapCar, lanes*l.laneFlowCapTruck,
			l.ffsCar, l.ffsTruck,
			l.waveSpeedCar, l.waveSpeedTruck,
			l.flowScalar))
	}
	l.cells = append(l.cells, newCtmCell(lastCellLength, l.unitTime,
		lanes*l.laneHoldCapCar, lanes*l.laneHoldCapTruck,
		lanes*l.laneCriticalDensityCar, lanes*l.laneCriticalDensityTruck,
		lanes*l.laneRho1N,
		lanes*l.laneFlowCapCar, lanes*l.laneFlowCapTruck,
		l.ffsCar, l.ffsTruck,
		l.waveSpeedCar, l.waveSpeedTruck,
		l.flowScalar))
}

// NumCells 返回元胞数量
func (l *CTMLink) NumCells() int {
	return l.numCells
}

// updateOutVeh 计算每个元胞本时间步的移出车辆数
// 非末元胞按上游需求与下游供给取小并乘以空间占比；末元胞全员候选过节点
func (l *CTMLink) updateOutVeh() {
	if l.numCells > 1 {
		for i := 0; i < l.numCells-1; i++ {
			demandCar := l.cells[i].perceivedDemand(ClassCar)
			supplyCar := l.cells[i+1].perceivedSupply(ClassCar)
			outFluxCar := l.cells[i].spaceFractionCar * math.Min(demandCar, supplyCar)
			l.cells[i].outVehCar = round(outFluxCar * l.flowScalar)

			demandTruck := l.cells[i].perceivedDemand(ClassTruck)
			supplyTruck := l.cells[i+1].perceivedSupply(ClassTruck)
			outFluxTruck := l.cells[i].spaceFractionTruck * math.Min(demandTruck, supplyTruck)
			l.cells[i].outVehTruck = round(outFluxTruck * l.flowScalar)
		}
	}
	last := l.cells[l.numCells-1]
	last.outVehCar = len(last.vehQueueCar)
	last.outVehTruck = len(last.vehQueueTruck)
}

// Evolve 推进路段一个时间步：计算通量、移动车辆、刷新体积与感知密度
func (l *CTMLink) Evolve(tick int) error {
	l.updateOutVeh()

	if l.numCells > 1 {
		for i := 0; i < l.numCells-1; i++ {
			moveVehQueue(&l.cells[i].vehQueueCar, &l.cells[i+1].vehQueueCar, l.cells[i].outVehCar)
			moveVehQueue(&l.cells[i].vehQueueTruck, &l.cells[i+1].vehQueueTruck, l.cells[i].outVehTruck)
		}
	}

	if err := l.moveLastCell(); err != nil {
		return err
	}

	if l.numCells > 1 {
		for i := 0; i < l.numCells-1; i++ {
			l.cells[i].volumeCar = len(l.cells[i].vehQueueCar)
			l.cells[i].volumeTruck = len(l.cells[i].vehQueueTruck)
			l.cells[i].updatePerceivedDensity()
		}
	}

	// 末元胞体积包含仍滞留在完成队列中的同类车辆
	countCar, countTruck := l.countFinished()
	last := l.cells[l.numCells-1]
	last.volumeCar = len(last.vehQueueCar) + countCar
	last.volumeTruck = len(last.vehQueueTruck) + countTruck
	last.updatePerceivedDensity()

	return nil
}

// moveLastCell 将末元胞的候选车辆转入完成队列
// 两类车按伯努利抽样交织出队，概率为各自候选数占比；一类耗尽后由另一类补足
func (l *CTMLink) moveLastCell() error {
	last := l.cells[l.numCells-1]
	numCar := last.outVehCar
	numTruck := last.outVehTruck
	pstar := 0.0
	if numCar+numTruck > 0 {
		pstar = float64(numCar) / float64(numCar+numTruck)
	}

	for numCar > 0 || numTruck > 0 {
		moveCar := l.rng.Float64() < pstar
		if moveCar && numCar == 0 {
			moveCar = false
		}
		if !moveCar && numTruck == 0 {
			moveCar = true
		}

		var veh *Vehicle
		if moveCar {
			veh = last.vehQueueCar[0]
			last.vehQueueCar = last.vehQueueCar[1:]
			numCar--
		} else {
			veh = last.vehQueueTruck[0]
			last.vehQueueTruck = last.vehQueueTruck[1:]
			numTruck--
		}

		// 仅当下游是终点节点时允许下一路段为空
		if !veh.hasNextLink() {
			if _, isDest := l.toNode.(*DestNode); !isDest {
				return errors.Wrapf(ErrRoutingViolation,
					"vehicle %d leaves link %d with no next link", veh.id, l.id)
			}
		}
		l.finishedArray = append(l.finishedArray, veh)
	}
	return nil
}

// Supply 返回本时间步路段可接收的实际车辆数
// 以首元胞的小汽车当量合并密度计算
func (l *CTMLink) Supply() float64 {
	first := l.cells[0]
	realVolumeBoth := (float64(first.volumeTruck)*l.vehConvertFactor +
		float64(first.volumeCar)) / l.flowScalar

	// 元胞长度恒为正
	density := realVolumeBoth / first.cellLength
	tmp := math.Min(first.flowCapCar, l.waveSpeedCar*(first.holdCapCar-density))

	return math.Max(0, tmp) * first.unitTime
}

// ClearIncoming 将到达队列装入首元胞的分类别队列
// 到达车辆数超过路段供给说明上游节点核算出错
func (l *CTMLink) ClearIncoming() error {
	if l.Supply()*l.flowScalar < float64(len(l.incomingArray)) {
		return errors.Wrapf(ErrFlowAccounting,
			"wrong incoming array size %d on link %d", len(l.incomingArray), l.id)
	}

	first := l.cells[0]
	for _, veh := range l.incomingArray {
		if veh.class == ClassCar {
			first.vehQueueCar = append(first.vehQueueCar, veh)
		} else {
			first.vehQueueTruck = append(first.vehQueueTruck, veh)
		}
	}
	l.incomingArray = l.incomingArray[:0]

	first.volumeCar = len(first.vehQueueCar)
	first.volumeTruck = len(first.vehQueueTruck)
	return nil
}

// Flow 返回路段内的实际车辆总数
func (l *CTMLink) Flow() float64 {
	totalCar, totalTruck := 0, 0
	for _, cell := range l.cells {
		totalCar += cell.volumeCar
		totalTruck += cell.volumeTruck
	}
	return float64(totalCar+totalTruck) / l.flowScalar
}

// TravelTime 按三角形基本图估算当前通行时间（秒），阻塞时返回最大成本
func (l *CTMLink) TravelTime() float64 {
	rho := l.Flow() / float64(l.numLanes) / l.length
	rhoJam := l.laneHoldCapCar
	rhoCritical := l.laneFlowCapCar / l.ffsCar

	if rho >= rhoJam {
		return math.MaxFloat64
	}

	spd := l.ffsCar
	if rho > rhoCritical {
		spd = math.Max(0.001*l.ffsCar,
			l.laneFlowCapCar*(rhoJam-rho)/((rhoJam-rhoCritical)*rho))
	}
	return l.length / spd
}

// Volume 返回路段内各类别的模拟车辆数
func (l *CTMLink) Volume() (car, truck int) {
	for _, cell := range l.cells {
		car += cell.volumeCar
		truck += cell.volumeTruck
	}
	return car, truck
}

// CellVolume 返回指定元胞的分类别模拟车辆数
func (l *CTMLink) CellVolume(i int) (car, truck int, err error) {
	if i < 0 || i >= l.numCells {
		return 0, 0, errors.Errorf("cell index %d out of range on link %d", i, l.id)
	}
	return l.cells[i].volumeCar, l.cells[i].volumeTruck, nil
}
