package element

import (
	"math"

	"github.com/pkg/errors"
)

// pqEntry 点队列中的一辆车及其驻留时间步计数
type pqEntry struct {
	veh   *Vehicle
	stamp int
}

// PQLink 点队列路段：固定自由流延迟，拥挤不沿路段回传
// 常用作起终点的虚拟连接段
type PQLink struct {
	baseLink

	laneHoldCap float64
	laneFlowCap float64
	ffsCar      float64
	holdCap     float64

	// 车辆驻留满maxStamp个时间步后进入完成队列
	maxStamp int

	vehQueue []pqEntry

	volumeCar   int
	volumeTruck int
}

// NewPQLink 创建一条点队列路段
func NewPQLink(id int64, numLanes int, length float64,
	laneHoldCapCar, laneHoldCapTruck,
	laneFlowCapCar, laneFlowCapTruck,
	ffsCar, ffsTruck,
	unitTime, vehConvertFactor, flowScalar float64) (*PQLink, error) {

	if laneHoldCapCar < 0 || laneFlowCapCar < 0 {
		return nil, errors.Errorf("lane parameters can't be negative, current link ID is %d", id)
	}
	if ffsCar <= 0 {
		return nil, errors.Errorf("free-flow speed should be positive, current link ID is %d", id)
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

	l := &PQLink{
		baseLink: baseLink{
			id:               id,
			numLanes:         numLanes,
			length:           length,
			unitTime:         unitTime,
			flowScalar:       flowScalar,
			vehConvertFactor: vehConvertFactor,
		},
		laneHoldCap: laneHoldCapCar,
		laneFlowCap: laneFlowCapCar,
		ffsCar:      ffsCar,
	}
	l.holdCap = laneHoldCapCar * float64(numLanes) * length
	l.maxStamp = round(length / (ffsCar * unitTime))
	return l, nil
}

// MaxStamp 返回自由流穿越所需的时间步数
func (l *PQLink) MaxStamp() int {
	return l.maxStamp
}

// Supply 返回本时间步路段可接收的实际车辆数
func (l *PQLink) Supply() float64 {
	return l.laneFlowCap * float64(l.numLanes) * l.unitTime
}

// ClearIncoming 按到达顺序吸收车辆，直到本时间步的接收预算耗尽
// 小汽车消耗1个预算，货车消耗vehConvertFactor个
func (l *PQLink) ClearIncoming() error {
	toBeMoved := l.Supply() * l.flowScalar
	moved := 0
	for _, veh := range l.incomingArray {
		if toBeMoved <= 0 {
			break
		}
		l.vehQueue = append(l.vehQueue, pqEntry{veh: veh})
		if veh.class == ClassCar {
			l.volumeCar++
			toBeMoved -= 1
		} else {
			l.volumeTruck++
			toBeMoved -= l.vehConvertFactor
		}
		moved++
	}
	l.incomingArray = l.incomingArray[moved:]
	return nil
}

// Evolve 推进点队列一个时间步
// 驻留达到maxStamp的车辆按进入顺序转入完成队列，其余车辆计数加一
func (l *PQLink) Evolve(tick int) error {
	remaining := l.vehQueue[:0]
	for _, entry := range l.vehQueue {
		if entry.stamp >= l.maxStamp {
			l.finishedArray = append(l.finishedArray, entry.veh)
			if entry.veh.class == ClassCar {
				l.volumeCar--
			} else {
				l.volumeTruck--
			}
		} else {
			entry.stamp++
			remaining = append(remaining, entry)
		}
	}
	l.vehQueue = remaining
	return nil
}

// Flow 返回路段内的实际车辆总数
func (l *PQLink) Flow() float64 {
	return float64(l.volumeCar+l.volumeTruck) / l.flowScalar
}

// TravelTime 点队列的通行时间即自由流穿越时间，不短于一个时间步长
func (l *PQLink) TravelTime() float64 {
	return math.Max(l.length/l.ffsCar, l.unitTime)
}

// Volume 返回路段内各类别的模拟车辆数
func (l *PQLink) Volume() (car, truck int) {
	return l.volumeCar, l.volumeTruck
}
