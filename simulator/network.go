package simulator

import (
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/ozzychow/MAC-POSTS/config"
	"github.com/ozzychow/MAC-POSTS/element"
)

// NodeRecord 路网节点记录
type NodeRecord struct {
	ID   int64
	Type element.NodeType
}

// LinkRecord 路网路段记录：构造参数加上两端节点
type LinkRecord struct {
	element.LinkConfig
	From int64
	To   int64
}

// Network 路网：节点、路段及其拓扑图
// 拓扑以gonum有向加权图表示，边权为自由流通行时间，供固定路由使用
type Network struct {
	cfg *config.Config
	rng *rand.Rand

	graph    *simple.WeightedDirectedGraph
	reversed *simple.WeightedDirectedGraph

	nodeFactory *element.NodeFactory
	linkFactory *element.LinkFactory
	odFactory   *element.ODFactory

	originNodes   []*element.OriginNode
	junctionNodes []*element.JunctionNode
	destNodes     []*element.DestNode

	// (from, to) 节点对到路段的映射，路由查表使用
	linkByEdge map[[2]int64]element.Link
}

// BuildNetwork 从节点与路段记录构造路网并完成两侧挂接
func BuildNetwork(cfg *config.Config, nodeRecords []NodeRecord,
	linkRecords []LinkRecord, rng *rand.Rand) (*Network, error) {

	net := &Network{
		cfg:         cfg,
		rng:         rng,
		graph:       simple.NewWeightedDirectedGraph(0, 0),
		reversed:    simple.NewWeightedDirectedGraph(0, 0),
		nodeFactory: element.NewNodeFactory(),
		linkFactory: element.NewLinkFactory(),
		odFactory:   element.NewODFactory(),
		linkByEdge:  make(map[[2]int64]element.Link),
	}

	flowScalar := cfg.Simulation.FlowScalar
	for _, rec := range nodeRecords {
		node, err := net.nodeFactory.MakeNode(rec.ID, rec.Type, flowScalar, rng)
		if err != nil {
			return nil, err
		}
		switch n := node.(type) {
		case *element.OriginNode:
			net.originNodes = append(net.originNodes, n)
		case *element.JunctionNode:
			net.junctionNodes = append(net.junctionNodes, n)
		case *element.DestNode:
			net.destNodes = append(net.destNodes, n)
		}
		net.graph.AddNode(node)
		net.reversed.AddNode(node)
	}

	for _, lr := range linkRecords {
		if err := net.addLink(lr); err != nil {
			return nil, err
		}
	}

	for _, junction := range net.junctionNodes {
		junction.PrepareLoading()
	}
	return net, nil
}

// addLink 创建路段并挂接两端节点，同时登记拓扑边
func (net *Network) addLink(lr LinkRecord) error {
	link, err := net.linkFactory.MakeLink(lr.LinkConfig,
		net.cfg.Simulation.UnitTime, net.cfg.Simulation.FlowScalar, net.rng)
	if err != nil {
		return err
	}
	return net.connect(link, lr.From, lr.To)
}

// connect 将路段接入 from → to 的节点对
func (net *Network) connect(link element.Link, fromID, toID int64) error {
	fromNode, err := net.nodeFactory.Node(fromID)
	if err != nil {
		return err
	}
	toNode, err := net.nodeFactory.Node(toID)
	if err != nil {
		return err
	}

	key := [2]int64{fromID, toID}
	if _, ok := net.linkByEdge[key]; ok {
		return errors.Errorf("duplicate link between node %d and node %d", fromID, toID)
	}

	if err := fromNode.AddOutLink(link); err != nil {
		return err
	}
	if err := toNode.AddInLink(link); err != nil {
		return err
	}
	link.SetEndpoints(fromNode, toNode)
	net.linkByEdge[key] = link

	// 边权取自由流通行时间
	weight := link.TravelTime()
	net.graph.SetWeightedEdge(simple.WeightedEdge{F: fromNode, T: toNode, W: weight})
	net.reversed.SetWeightedEdge(simple.WeightedEdge{F: toNode, T: fromNode, W: weight})
	return nil
}

// MakeOrigin 在指定起点节点上创建起点对象
func (net *Network) MakeOrigin(odID, nodeID int64) (*element.Origin, error) {
	node, err := net.nodeFactory.Node(nodeID)
	if err != nil {
		return nil, err
	}
	originNode, ok := node.(*element.OriginNode)
	if !ok {
		return nil, errors.Errorf("node %d is not an origin node", nodeID)
	}

	origin := net.odFactory.MakeOrigin(odID, net.cfg.Simulation.MaxInterval,
		net.cfg.Simulation.FlowScalar, net.cfg.Simulation.AssignFrequency)
	origin.SetStartAssignInterval(net.cfg.Simulation.StartAssignInterval)
	origin.SetNode(originNode)
	return origin, nil
}

// MakeDestination 在指定终点节点上创建终点对象
func (net *Network) MakeDestination(odID, nodeID int64) (*element.Destination, error) {
	node, err := net.nodeFactory.Node(nodeID)
	if err != nil {
		return nil, err
	}
	destNode, ok := node.(*element.DestNode)
	if !ok {
		return nil, errors.Errorf("node %d is not a destination node", nodeID)
	}

	dest := net.odFactory.MakeDestination(odID)
	dest.SetNode(destNode)
	return dest, nil
}

// Link 按ID查找路段
func (net *Network) Link(id int64) (element.Link, error) {
	return net.linkFactory.Link(id)
}

// Links 按声明顺序返回全部路段
func (net *Network) Links() []element.Link {
	return net.linkFactory.Links()
}

// Origins 按声明顺序返回全部起点
func (net *Network) Origins() []*element.Origin {
	return net.odFactory.Origins()
}

// Destinations 按声明顺序返回全部终点
func (net *Network) Destinations() []*element.Destination {
	return net.odFactory.Destinations()
}

// SetRouting 将路由预言机注入全部需要它的节点
func (net *Network) SetRouting(r element.Routing) {
	for _, n := range net.originNodes {
		n.SetRouting(r)
	}
	for _, n := range net.junctionNodes {
		n.SetRouting(r)
	}
}
