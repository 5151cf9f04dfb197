package simulator

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/path"

	"github.com/ozzychow/MAC-POSTS/element"
)

// FixedRouting 固定路由：为每个终点预先算好全网最短路的下一路段表
// 模拟过程中不再重算，作为核心消费的路由预言机
type FixedRouting struct {
	net *Network

	// 终点节点ID → 当前节点ID → 下一路段
	nextLink map[int64]map[int64]element.Link
}

// NewFixedRouting 基于自由流通行时间构建固定路由表
// 对每个终点在反向图上跑一次Dijkstra，得到全部节点通往该终点的下一跳
func NewFixedRouting(net *Network) (*FixedRouting, error) {
	r := &FixedRouting{
		net:      net,
		nextLink: make(map[int64]map[int64]element.Link),
	}

	for _, dest := range net.Destinations() {
		destNode := dest.Node()
		if destNode == nil {
			return nil, errors.Errorf("destination %d has no node attached", dest.ID())
		}

		shortest := path.DijkstraFrom(destNode, net.reversed)
		table := make(map[int64]element.Link)

		nodes := net.graph.Nodes()
		for nodes.Next() {
			node := nodes.Node()
			if node.ID() == destNode.ID() {
				continue
			}
			// 反向图中 终点→…→node 的路径倒序即实际行驶路径
			pth, _ := shortest.To(node.ID())
			if len(pth) < 2 {
				continue // 不可达，需求出现时再报错
			}
			nextHop := pth[len(pth)-2]
			link, ok := r.net.linkByEdge[[2]int64{node.ID(), nextHop.ID()}]
			if !ok {
				return nil, errors.Errorf("no link between node %d and node %d on shortest path",
					node.ID(), nextHop.ID())
			}
			table[node.ID()] = link
		}
		r.nextLink[destNode.ID()] = table
	}
	return r, nil
}

// NextLink 返回车辆离开currentLink后应进入的路段
// currentLink为nil表示车辆在起点节点；到达终点节点时返回nil
func (r *FixedRouting) NextLink(veh *element.Vehicle, currentLink element.Link) (element.Link, error) {
	dest := veh.Destination()
	if dest == nil || dest.Node() == nil {
		return nil, errors.Wrapf(element.ErrRoutingViolation,
			"vehicle %d has no destination", veh.ID())
	}
	destNodeID := dest.Node().ID()

	var pos int64
	if currentLink == nil {
		origin := veh.Origin()
		if origin == nil || origin.Node() == nil {
			return nil, errors.Wrapf(element.ErrRoutingViolation,
				"vehicle %d has no origin", veh.ID())
		}
		pos = origin.Node().ID()
	} else {
		pos = currentLink.ToNode().ID()
	}

	if pos == destNodeID {
		return nil, nil
	}

	link, ok := r.nextLink[destNodeID][pos]
	if !ok {
		return nil, errors.Wrapf(element.ErrRoutingViolation,
			"vehicle %d: no route from node %d to destination node %d", veh.ID(), pos, destNodeID)
	}
	return link, nil
}
