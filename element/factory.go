package element

import (
	"math/rand/v2"

	"github.com/pkg/errors"
)

// NodeType 节点类型
type NodeType int

const (
	// NodeTypeOrigin 起点节点
	NodeTypeOrigin NodeType = iota
	// NodeTypeJunction 普通交叉口节点
	NodeTypeJunction
	// NodeTypeDestination 终点节点
	NodeTypeDestination
)

// LinkType 路段模型类型
type LinkType int

const (
	// LinkTypeCTM 多类别元胞传输模型路段
	LinkTypeCTM LinkType = iota
	// LinkTypePQ 点队列路段
	LinkTypePQ
)

// LinkConfig 路段构造参数
type LinkConfig struct {
	ID               int64
	Type             LinkType
	NumLanes         int
	Length           float64 // m
	LaneHoldCapCar   float64 // veh/m
	LaneHoldCapTruck float64
	LaneFlowCapCar   float64 // veh/s
	LaneFlowCapTruck float64
	FfsCar           float64 // m/s
	FfsTruck         float64
	VehConvertFactor float64
}

// NodeFactory 节点工厂，按ID持有全部节点并保持声明顺序
type NodeFactory struct {
	nodes map[int64]Node
	order []Node
}

// NewNodeFactory 创建一个空的节点工厂
func NewNodeFactory() *NodeFactory {
	return &NodeFactory{nodes: make(map[int64]Node)}
}

// MakeNode 创建指定类型的节点并注册
func (f *NodeFactory) MakeNode(id int64, nodeType NodeType, flowScalar float64, rng *rand.Rand) (Node, error) {
	if _, ok := f.nodes[id]; ok {
		return nil, errors.Errorf("node %d already exists", id)
	}

	var node Node
	switch nodeType {
	case NodeTypeOrigin:
		node = NewOriginNode(id, flowScalar)
	case NodeTypeJunction:
		node = NewJunctionNode(id, flowScalar, rng)
	case NodeTypeDestination:
		node = NewDestNode(id, flowScalar)
	default:
		return nil, errors.Errorf("wrong node type %d", nodeType)
	}
	f.nodes[id] = node
	f.order = append(f.order, node)
	return node, nil
}

// Node 按ID查找节点
func (f *NodeFactory) Node(id int64) (Node, error) {
	node, ok := f.nodes[id]
	if !ok {
		return nil, errors.Errorf("node %d not exists", id)
	}
	return node, nil
}

// Nodes 按声明顺序返回全部节点
func (f *NodeFactory) Nodes() []Node {
	return f.order
}

// LinkFactory 路段工厂，按ID持有全部路段并保持声明顺序
type LinkFactory struct {
	links map[int64]Link
	order []Link
}

// NewLinkFactory 创建一个空的路段工厂
func NewLinkFactory() *LinkFactory {
	return &LinkFactory{links: make(map[int64]Link)}
}

// MakeLink 创建指定模型的路段并注册
func (f *LinkFactory) MakeLink(cfg LinkConfig, unitTime, flowScalar float64, rng *rand.Rand) (Link, error) {
	if _, ok := f.links[cfg.ID]; ok {
		return nil, errors.Errorf("link %d already exists", cfg.ID)
	}

	var link Link
	var err error
	switch cfg.Type {
	case LinkTypeCTM:
		link, err = NewCTMLink(cfg.ID, cfg.NumLanes, cfg.Length,
			cfg.LaneHoldCapCar, cfg.LaneHoldCapTruck,
			cfg.LaneFlowCapCar, cfg.LaneFlowCapTruck,
			cfg.FfsCar, cfg.FfsTruck,
			unitTime, cfg.VehConvertFactor, flowScalar, rng)
	case LinkTypePQ:
		link, err = NewPQLink(cfg.ID, cfg.NumLanes, cfg.Length,
			cfg.LaneHoldCapCar, cfg.LaneHoldCapTruck,
			cfg.LaneFlowCapCar, cfg.LaneFlowCapTruck,
			cfg.FfsCar, cfg.FfsTruck,
			unitTime, cfg.VehConvertFactor, flowScalar)
	default:
		return nil, errors.Errorf("wrong link type %d", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	f.links[cfg.ID] = link
	f.order = append(f.order, link)
	return link, nil
}

// Link 按ID查找路段
func (f *LinkFactory) Link(id int64) (Link, error) {
	link, ok := f.links[id]
	if !ok {
		return nil, errors.Errorf("link %d not exists", id)
	}
	return link, nil
}

// Links 按声明顺序返回全部路段
func (f *LinkFactory) Links() []Link {
	return f.order
}

// ODFactory 起终点工厂
type ODFactory struct {
	origins      map[int64]*Origin
	destinations map[int64]*Destination
	originOrder  []*Origin
	destOrder    []*Destination
}

// NewODFactory 创建一个空的起终点工厂
func NewODFactory() *ODFactory {
	return &ODFactory{
		origins:      make(map[int64]*Origin),
		destinations: make(map[int64]*Destination),
	}
}

// MakeOrigin 创建并注册一个起点
func (f *ODFactory) MakeOrigin(id int64, maxInterval int, flowScalar float64, frequency int) *Origin {
	origin := NewOrigin(id, maxInterval, flowScalar, frequency)
	f.origins[id] = origin
	f.originOrder = append(f.originOrder, origin)
	return origin
}

// MakeDestination 创建并注册一个终点
func (f *ODFactory) MakeDestination(id int64) *Destination {
	dest := NewDestination(id)
	f.destinations[id] = dest
	f.destOrder = append(f.destOrder, dest)
	return dest
}

// Origin 按ID查找起点
func (f *ODFactory) Origin(id int64) (*Origin, error) {
	origin, ok := f.origins[id]
	if !ok {
		return nil, errors.Errorf("origin %d not exists", id)
	}
	return origin, nil
}

// Destination 按ID查找终点
func (f *ODFactory) Destination(id int64) (*Destination, error) {
	dest, ok := f.destinations[id]
	if !ok {
		return nil, errors.Errorf("destination %d not exists", id)
	}
	return dest, nil
}

// Origins 按声明顺序返回全部起点
func (f *ODFactory) Origins() []*Origin {
	return f.originOrder
}

// Destinations 按声明顺序返回全部终点
func (f *ODFactory) Destinations() []*Destination {
	return f.destOrder
}
