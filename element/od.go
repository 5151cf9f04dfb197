package element

import (
	"sort"

	"github.com/pkg/errors"
)

// Origin 起点：持有按分配区间离散的分类别出行需求，按计划释放车辆
type Origin struct {
	id                    int64
	maxAssignInterval     int
	flowScalar            float64
	frequency             int
	currentAssignInterval int

	originNode *OriginNode

	// 需求单位：每个分配区间的实际车辆数
	demandCar   map[*Destination][]float64
	demandTruck map[*Destination][]float64

	// 终点按ID升序排列，保证同一种子下的释放顺序可复现
	destOrder []*Destination
}

// NewOrigin 创建一个起点
func NewOrigin(id int64, maxInterval int, flowScalar float64, frequency int) *Origin {
	if maxInterval <= 0 {
		panic("max assign interval must be positive")
	}
	if frequency <= 0 {
		panic("assign frequency must be positive")
	}

	return &Origin{
		id:                id,
		maxAssignInterval: maxInterval,
		flowScalar:        flowScalar,
		frequency:         frequency,
		demandCar:         make(map[*Destination][]float64),
		demandTruck:       make(map[*Destination][]float64),
	}
}

// ID 返回起点ID
func (o *Origin) ID() int64 {
	return o.id
}

// Node 返回起点挂接的节点
func (o *Origin) Node() *OriginNode {
	return o.originNode
}

// SetNode 挂接起点节点
func (o *Origin) SetNode(node *OriginNode) {
	o.originNode = node
}

// CurrentAssignInterval 返回下一个待释放的分配区间
func (o *Origin) CurrentAssignInterval() int {
	return o.currentAssignInterval
}

// SetStartAssignInterval 设置起始分配区间
func (o *Origin) SetStartAssignInterval(interval int) {
	o.currentAssignInterval = interval
}

// Finished 返回全部分配区间是否已释放完毕
func (o *Origin) Finished() bool {
	return o.currentAssignInterval >= o.maxAssignInterval
}

// AddDestDemand 登记到某终点的分类别需求向量
// 两个向量的长度都必须等于分配区间总数
func (o *Origin) AddDestDemand(dest *Destination, demandCar, demandTruck []float64) error {
	if len(demandCar) != o.maxAssignInterval || len(demandTruck) != o.maxAssignInterval {
		return errors.Errorf("origin %d: demand length %d/%d mismatches max interval %d",
			o.id, len(demandCar), len(demandTruck), o.maxAssignInterval)
	}

	o.demandCar[dest] = append([]float64(nil), demandCar...)
	o.demandTruck[dest] = append([]float64(nil), demandTruck...)

	o.destOrder = append(o.destOrder, dest)
	sort.Slice(o.destOrder, func(a, b int) bool {
		return o.destOrder[a].id < o.destOrder[b].id
	})
	return nil
}

// Release 在分配时刻释放当前区间的全部需求
// 先释放全部小汽车，再释放全部货车，车辆进入起点节点队列
func (o *Origin) Release(factory *VehicleFactory, routing Routing, tick int) error {
	if o.currentAssignInterval >= o.maxAssignInterval || tick%o.frequency != 0 {
		return nil
	}

	for _, dest := range o.destOrder {
		toRelease := round(o.demandCar[dest][o.currentAssignInterval] * o.flowScalar)
		for i := 0; i < toRelease; i++ {
			if err := o.releaseOne(factory, routing, tick, ClassCar, dest); err != nil {
				return err
			}
		}
	}
	for _, dest := range o.destOrder {
		toRelease := round(o.demandTruck[dest][o.currentAssignInterval] * o.flowScalar)
		for i := 0; i < toRelease; i++ {
			if err := o.releaseOne(factory, routing, tick, ClassTruck, dest); err != nil {
				return err
			}
		}
	}

	o.currentAssignInterval++
	return nil
}

func (o *Origin) releaseOne(factory *VehicleFactory, routing Routing,
	tick int, class VehicleClass, dest *Destination) error {

	veh := factory.MakeVehicle(tick, class)
	veh.origin = o
	veh.destination = dest

	next, err := routing.NextLink(veh, nil)
	if err != nil {
		return err
	}
	veh.nextLink = next

	o.originNode.enqueue(veh)
	return nil
}

// Destination 终点：从终点节点回收到达车辆
type Destination struct {
	id       int64
	destNode *DestNode
}

// NewDestination 创建一个终点
func NewDestination(id int64) *Destination {
	return &Destination{id: id}
}

// ID 返回终点ID
func (d *Destination) ID() int64 {
	return d.id
}

// Node 返回终点挂接的节点
func (d *Destination) Node() *DestNode {
	return d.destNode
}

// SetNode 挂接终点节点
func (d *Destination) SetNode(node *DestNode) {
	d.destNode = node
}

// Receive 回收终点节点输出队列中的全部车辆并记录完成时刻
func (d *Destination) Receive(tick int) error {
	for _, veh := range d.destNode.outVehQueue {
		if veh.destination != d {
			return errors.Errorf("vehicle %d is heading to %d, but we are %d",
				veh.id, veh.destination.destNode.id, d.destNode.id)
		}
		veh.finish(tick)
	}
	d.destNode.outVehQueue = d.destNode.outVehQueue[:0]
	return nil
}
