package element

import (
	"github.com/pkg/errors"
)

// VehicleClass 车辆类别
type VehicleClass int

const (
	// ClassCar 私家车
	ClassCar VehicleClass = 0
	// ClassTruck 货车
	ClassTruck VehicleClass = 1
)

// Vehicle 表示一辆多类别车辆
// 任一时间步边界上，车辆恰好位于一个容器中：
// 起点队列 → 路段单元格队列/点队列 → 完成队列 → 节点输出队列 → 终点
type Vehicle struct {
	id          int64
	class       VehicleClass
	startTime   int
	finishTime  int
	currentLink Link
	nextLink    Link
	origin      *Origin
	destination *Destination
}

// ID 返回车辆唯一标识
func (v *Vehicle) ID() int64 {
	return v.id
}

// Class 返回车辆类别
func (v *Vehicle) Class() VehicleClass {
	return v.class
}

// StartTime 返回车辆进入系统的时间步
func (v *Vehicle) StartTime() int {
	return v.startTime
}

// FinishTime 返回车辆到达终点的时间步，未到达时为-1
func (v *Vehicle) FinishTime() int {
	return v.finishTime
}

// CurrentLink 返回车辆当前所在路段
func (v *Vehicle) CurrentLink() Link {
	return v.currentLink
}

// NextLink 返回车辆的下一路段，nil表示已到达终点
func (v *Vehicle) NextLink() Link {
	return v.nextLink
}

// Origin 返回车辆起点
func (v *Vehicle) Origin() *Origin {
	return v.origin
}

// Destination 返回车辆终点
func (v *Vehicle) Destination() *Destination {
	return v.destination
}

func (v *Vehicle) hasNextLink() bool {
	return v.nextLink != nil
}

// finish 标记车辆到达终点
func (v *Vehicle) finish(tick int) {
	v.finishTime = tick
}

// equivalentCost 返回车辆在节点供需核算中的当量
func (v *Vehicle) equivalentCost(vehConvertFactor float64) float64 {
	if v.class == ClassCar {
		return 1
	}
	return vehConvertFactor
}

// VehicleFactory 车辆工厂，持有模拟生命周期内产生的全部车辆
type VehicleFactory struct {
	vehicles map[int64]*Vehicle
	numVeh   int64
}

// NewVehicleFactory 创建一个空的车辆工厂
func NewVehicleFactory() *VehicleFactory {
	return &VehicleFactory{
		vehicles: make(map[int64]*Vehicle),
	}
}

// MakeVehicle 创建一辆新车并注册到工厂
func (f *VehicleFactory) MakeVehicle(tick int, class VehicleClass) *Vehicle {
	veh := &Vehicle{
		id:         f.numVeh + 1,
		class:      class,
		startTime:  tick,
		finishTime: -1,
	}
	f.vehicles[veh.id] = veh
	f.numVeh++
	return veh
}

// Vehicle 按ID查找车辆
func (f *VehicleFactory) Vehicle(id int64) (*Vehicle, error) {
	veh, ok := f.vehicles[id]
	if !ok {
		return nil, errors.Errorf("vehicle %d not exists", id)
	}
	return veh, nil
}

// NumVehicles 返回已创建的车辆总数
func (f *VehicleFactory) NumVehicles() int {
	return len(f.vehicles)
}

// NumUnfinished 返回尚未到达终点的车辆数
func (f *VehicleFactory) NumUnfinished() int {
	count := 0
	for _, veh := range f.vehicles {
		if veh.finishTime < 0 {
			count++
		}
	}
	return count
}
