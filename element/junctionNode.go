package element

import (
	"math/rand/v2"

	"github.com/pkg/errors"
)

// 浮点核算残差的容许上限（模拟车辆）
const flowResidualEps = 1e-6

// JunctionNode 普通交叉口节点（先进先出合流分流）
// 每个时间步依次：构造需求矩阵与供给向量、按需求占比分配流量、
// 整数化移动车辆、打乱下游到达顺序并记录累计曲线
type JunctionNode struct {
	id         int64
	flowScalar float64
	rng        *rand.Rand
	routing    Routing

	inLinkArray  []Link
	outLinkArray []Link

	// 以下矩阵按 |in|×|out| 展平，单位为实际车辆数
	demand  []float64
	vehFlow []float64
	supply  []float64 // 长度 |out|

	// 实际移动的模拟车辆数
	vehMovedCar   []float64
	vehMovedTruck []float64
}

// NewJunctionNode 创建一个交叉口节点
func NewJunctionNode(id int64, flowScalar float64, rng *rand.Rand) *JunctionNode {
	return &JunctionNode{
		id:         id,
		flowScalar: flowScalar,
		rng:        rng,
	}
}

// ID 返回节点ID
func (n *JunctionNode) ID() int64 {
	return n.id
}

// SetRouting 注入路由预言机
func (n *JunctionNode) SetRouting(r Routing) {
	n.routing = r
}

// AddInLink 挂接一条入路段
func (n *JunctionNode) AddInLink(l Link) error {
	n.inLinkArray = append(n.inLinkArray, l)
	return nil
}

// AddOutLink 挂接一条出路段
func (n *JunctionNode) AddOutLink(l Link) error {
	n.outLinkArray = append(n.outLinkArray, l)
	return nil
}

// PrepareLoading 路网挂接完成后分配供需矩阵
func (n *JunctionNode) PrepareLoading() {
	numIn := len(n.inLinkArray)
	numOut := len(n.outLinkArray)
	n.demand = make([]float64, numIn*numOut)
	n.vehFlow = make([]float64, numIn*numOut)
	n.supply = make([]float64, numOut)
	n.vehMovedCar = make([]float64, numIn*numOut)
	n.vehMovedTruck = make([]float64, numIn*numOut)
}

// Evolve 推进交叉口一个时间步
func (n *JunctionNode) Evolve(tick int) error {
	if n.demand == nil {
		n.PrepareLoading()
	}
	for i := range n.vehMovedCar {
		n.vehMovedCar[i] = 0
		n.vehMovedTruck[i] = 0
	}

	if err := n.prepareSupplyAndDemand(); err != nil {
		return err
	}
	n.computeFlow()
	if err := n.moveVehicle(); err != nil {
		return err
	}
	n.recordCumulativeCurve(tick)
	return nil
}

// prepareSupplyAndDemand 构造需求矩阵与供给向量（实际车辆单位）
func (n *JunctionNode) prepareSupplyAndDemand() error {
	offset := len(n.outLinkArray)

	for i, inLink := range n.inLinkArray {
		// 完成队列里的车辆必须能从本交叉口离开
		for _, veh := range inLink.base().finishedArray {
			if !n.hasOutLink(veh.nextLink) {
				return errors.Wrapf(ErrRoutingViolation,
					"vehicle %d in the wrong node %d, no exit from link %d",
					veh.id, n.id, inLink.ID())
			}
		}
		for j, outLink := range n.outLinkArray {
			equivCount := 0.0
			for _, veh := range inLink.base().finishedArray {
				if veh.nextLink == outLink {
					equivCount += veh.equivalentCost(inLink.VehConvertFactor())
				}
			}
			n.demand[offset*i+j] = equivCount / n.flowScalar
		}
	}

	for j, outLink := range n.outLinkArray {
		n.supply[j] = outLink.Supply()
	}
	return nil
}

func (n *JunctionNode) hasOutLink(l Link) bool {
	if l == nil {
		return false
	}
	for _, out := range n.outLinkArray {
		if out == l {
			return true
		}
	}
	return false
}

// computeFlow 先进先出合流规则：
// 各入路段按其需求占下游总需求的比例分享出路段供给
func (n *JunctionNode) computeFlow() {
	offset := len(n.outLinkArray)
	for j := range n.outLinkArray {
		sumInFlow := 0.0
		for i := range n.inLinkArray {
			sumInFlow += n.demand[i*offset+j]
		}
		for i := range n.inLinkArray {
			portion := divide(n.demand[i*offset+j], sumInFlow)
			flow := portion * n.supply[j]
			if n.demand[i*offset+j] < flow {
				flow = n.demand[i*offset+j]
			}
			n.vehFlow[i*offset+j] = flow
		}
	}
}

// moveVehicle 将分数流量转化为整数车辆移动
// 预算不足一辆车的当量时按概率伯努利放行；扫描完仍有正预算说明核算出错
func (n *JunctionNode) moveVehicle() error {
	offset := len(n.outLinkArray)

	for j, outLink := range n.outLinkArray {
		for i, inLink := range n.inLinkArray {
			toMove := n.vehFlow[i*offset+j] * n.flowScalar
			base := inLink.base()
			remaining := base.finishedArray[:0]
			for idx, veh := range base.finishedArray {
				if toMove <= 0 {
					remaining = append(remaining, base.finishedArray[idx:]...)
					break
				}
				if veh.nextLink != outLink {
					remaining = append(remaining, veh)
					continue
				}

				equivNum := veh.equivalentCost(inLink.VehConvertFactor())
				move := true
				if toMove < equivNum {
					// 预算不足整辆车时按 toMove/equivNum 的概率随机放行
					move = n.rng.Float64() <= toMove/equivNum
				}
				if move {
					outLink.base().pushIncoming(veh)
					veh.currentLink = outLink
					next, err := n.routing.NextLink(veh, outLink)
					if err != nil {
						return err
					}
					veh.nextLink = next
					if veh.class == ClassCar {
						n.vehMovedCar[i*offset+j]++
					} else {
						n.vehMovedTruck[i*offset+j]++
					}
				} else {
					remaining = append(remaining, veh)
				}
				toMove -= equivNum
			}
			base.finishedArray = remaining

			if toMove > flowResidualEps {
				return errors.Wrapf(ErrFlowAccounting,
					"node %d: remaining to move %.4f from link %d to link %d",
					n.id, toMove, inLink.ID(), outLink.ID())
			}
		}

		// 打乱到达顺序，消除下游按供给截取时的次序偏倚
		incoming := outLink.base().incomingArray
		n.rng.Shuffle(len(incoming), func(a, b int) {
			incoming[a], incoming[b] = incoming[b], incoming[a]
		})
	}
	return nil
}

// recordCumulativeCurve 在两端路段上记录本时间步的累计曲线增量
func (n *JunctionNode) recordCumulativeCurve(tick int) {
	offset := len(n.outLinkArray)

	for j, outLink := range n.outLinkArray {
		sumCar, sumTruck := 0.0, 0.0
		for i := range n.inLinkArray {
			sumCar += n.vehMovedCar[i*offset+j]
			sumTruck += n.vehMovedTruck[i*offset+j]
		}
		outLink.base().recordIn(float64(tick+1), sumCar/n.flowScalar, sumTruck/n.flowScalar)
	}

	for i, inLink := range n.inLinkArray {
		sumCar, sumTruck := 0.0, 0.0
		for j := range n.outLinkArray {
			sumCar += n.vehMovedCar[i*offset+j]
			sumTruck += n.vehMovedTruck[i*offset+j]
		}
		inLink.base().recordOut(float64(tick+1), sumCar/n.flowScalar, sumTruck/n.flowScalar)
	}
}
