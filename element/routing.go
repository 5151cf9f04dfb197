package element

// Routing 路由预言机：给出车辆在当前路段之后应进入的路段
// currentLink 为 nil 表示车辆尚在起点；返回 nil 表示车辆已到达终点
type Routing interface {
	NextLink(veh *Vehicle, currentLink Link) (Link, error)
}
