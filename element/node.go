package element

import (
	"math"

	"github.com/pkg/errors"
)

// Node 节点的统一能力集合
// Evolve 是三类节点（起点、交叉口、终点）共享的单一推进操作
type Node interface {
	// ID 返回节点ID
	ID() int64

	// Evolve 推进节点状态一个时间步
	Evolve(tick int) error

	// AddInLink 挂接一条入路段
	AddInLink(l Link) error

	// AddOutLink 挂接一条出路段
	AddOutLink(l Link) error
}

// OriginNode 起点节点：将释放的车辆在出路段供给约束下注入路网
type OriginNode struct {
	id         int64
	flowScalar float64
	routing    Routing

	inVehQueue   []*Vehicle
	outLinkArray []Link
	outVolume    map[Link]float64
}

// NewOriginNode 创建一个起点节点
func NewOriginNode(id int64, flowScalar float64) *OriginNode {
	return &OriginNode{
		id:         id,
		flowScalar: flowScalar,
		outVolume:  make(map[Link]float64),
	}
}

// ID 返回节点ID
func (n *OriginNode) ID() int64 {
	return n.id
}

// SetRouting 注入路由预言机
func (n *OriginNode) SetRouting(r Routing) {
	n.routing = r
}

// AddInLink 起点节点不允许有入路段
func (n *OriginNode) AddInLink(l Link) error {
	return errors.Errorf("origin node %d can't have in link %d", n.id, l.ID())
}

// AddOutLink 挂接一条出路段
func (n *OriginNode) AddOutLink(l Link) error {
	n.outLinkArray = append(n.outLinkArray, l)
	return nil
}

// QueueLength 返回等待进入路网的车辆数
func (n *OriginNode) QueueLength() int {
	return len(n.inVehQueue)
}

// enqueue 车辆释放后进入起点队列
func (n *OriginNode) enqueue(veh *Vehicle) {
	n.inVehQueue = append(n.inVehQueue, veh)
}

// Evolve 推进起点节点一个时间步
// 先按类别当量累计各出路段的待发车辆，再以路段供给为上限逐路段放行
func (n *OriginNode) Evolve(tick int) error {
	for _, link := range n.outLinkArray {
		n.outVolume[link] = 0
	}

	// 统计各出路段的待发流量
	for _, veh := range n.inVehQueue {
		link := veh.nextLink
		if link == nil {
			return errors.Wrapf(ErrRoutingViolation,
				"vehicle %d in origin node %d has no next link", veh.id, n.id)
		}
		n.outVolume[link] += veh.equivalentCost(link.VehConvertFactor())
	}
	for _, link := range n.outLinkArray {
		releaseCap := link.Supply() * n.flowScalar
		if releaseCap < n.outVolume[link] {
			n.outVolume[link] = math.Floor(releaseCap)
		}
	}

	// 逐出路段扫描队列放行车辆
	for _, link := range n.outLinkArray {
		movedCar, movedTruck := 0, 0
		remaining := n.inVehQueue[:0]
		for _, veh := range n.inVehQueue {
			if n.outVolume[link] > 0 && veh.nextLink == link {
				link.base().pushIncoming(veh)
				veh.currentLink = link
				next, err := n.routing.NextLink(veh, link)
				if err != nil {
					return err
				}
				veh.nextLink = next
				if veh.class == ClassCar {
					n.outVolume[link] -= 1
					movedCar++
				} else {
					n.outVolume[link] -= link.VehConvertFactor()
					movedTruck++
				}
			} else {
				remaining = append(remaining, veh)
			}
		}
		n.inVehQueue = remaining

		link.base().recordIn(float64(tick+1),
			float64(movedCar)/n.flowScalar, float64(movedTruck)/n.flowScalar)
	}
	return nil
}

// DestNode 终点节点：吸收下一路段为空的车辆
type DestNode struct {
	id         int64
	flowScalar float64

	inLinkArray []Link
	outVehQueue []*Vehicle
}

// NewDestNode 创建一个终点节点
func NewDestNode(id int64, flowScalar float64) *DestNode {
	return &DestNode{
		id:         id,
		flowScalar: flowScalar,
	}
}

// ID 返回节点ID
func (n *DestNode) ID() int64 {
	return n.id
}

// AddInLink 挂接一条入路段
func (n *DestNode) AddInLink(l Link) error {
	n.inLinkArray = append(n.inLinkArray, l)
	return nil
}

// AddOutLink 终点节点不允许有出路段
func (n *DestNode) AddOutLink(l Link) error {
	return errors.Errorf("destination node %d can't have out link %d", n.id, l.ID())
}

// Evolve 推进终点节点一个时间步
// 清空各入路段的完成队列，校验车辆确已到达（下一路段为空）
func (n *DestNode) Evolve(tick int) error {
	for _, link := range n.inLinkArray {
		movedCar, movedTruck := 0, 0
		base := link.base()
		for _, veh := range base.finishedArray {
			if veh.nextLink != nil {
				return errors.Wrapf(ErrRoutingViolation,
					"vehicle %d reaches destination node %d with next link %d",
					veh.id, n.id, veh.nextLink.ID())
			}
			n.outVehQueue = append(n.outVehQueue, veh)
			veh.currentLink = nil
			if veh.class == ClassCar {
				movedCar++
			} else {
				movedTruck++
			}
		}
		base.finishedArray = base.finishedArray[:0]

		base.recordOut(float64(tick+1),
			float64(movedCar)/n.flowScalar, float64(movedTruck)/n.flowScalar)
	}
	return nil
}
