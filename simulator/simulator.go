package simulator

import (
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/ozzychow/MAC-POSTS/config"
	"github.com/ozzychow/MAC-POSTS/element"
	"github.com/ozzychow/MAC-POSTS/log"
)

// Simulation 动态交通分配模拟器
// 以固定时间步同步推进全网：起点释放 → 节点推进 → 路段推进 → 终点回收
type Simulation struct {
	cfg     *config.Config
	net     *Network
	routing element.Routing

	vehFactory  *element.VehicleFactory
	currentTick int

	registeredLinks []element.Link
}

// NewSimulation 组装一个模拟器并注入路由预言机
func NewSimulation(cfg *config.Config, net *Network, routing element.Routing) *Simulation {
	net.SetRouting(routing)
	return &Simulation{
		cfg:        cfg,
		net:        net,
		routing:    routing,
		vehFactory: element.NewVehicleFactory(),
	}
}

// NewRand 按配置种子创建模拟专用的随机数发生器
// 末元胞交织出队、交叉口分数放行与下游洗牌是其仅有的消费者
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// Network 返回模拟的路网
func (s *Simulation) Network() *Network {
	return s.net
}

// VehicleFactory 返回车辆工厂
func (s *Simulation) VehicleFactory() *element.VehicleFactory {
	return s.vehFactory
}

// CurrentTick 返回已加载到的时间步
func (s *Simulation) CurrentTick() int {
	return s.currentTick
}

// RegisterLinks 登记关注的路段，供累计曲线安装与查询使用
func (s *Simulation) RegisterLinks(ids []int64) error {
	if len(s.registeredLinks) > 0 {
		log.Warnf("RegisterLinks: links exist, clearing %d registered links", len(s.registeredLinks))
		s.registeredLinks = s.registeredLinks[:0]
	}
	for _, id := range ids {
		link, err := s.net.Link(id)
		if err != nil {
			return err
		}
		for _, registered := range s.registeredLinks {
			if registered == link {
				return errors.Errorf("link %d already registered", id)
			}
		}
		s.registeredLinks = append(s.registeredLinks, link)
	}
	return nil
}

// RegisteredLinks 返回已登记的路段
func (s *Simulation) RegisteredLinks() []element.Link {
	return s.registeredLinks
}

// InstallCumulativeCurves 为已登记的路段安装累计曲线
func (s *Simulation) InstallCumulativeCurves() {
	for _, link := range s.registeredLinks {
		link.InstallCumulativeCurves()
	}
}

// LoadOnce 推进一个时间步
// 顺序：起点释放 → 起点/交叉口/终点节点推进 → 路段装车并推进 → 终点回收
func (s *Simulation) LoadOnce(tick int) error {
	for _, origin := range s.net.Origins() {
		if err := origin.Release(s.vehFactory, s.routing, tick); err != nil {
			return err
		}
	}

	for _, node := range s.net.originNodes {
		if err := node.Evolve(tick); err != nil {
			return err
		}
	}
	for _, node := range s.net.junctionNodes {
		if err := node.Evolve(tick); err != nil {
			return err
		}
	}
	for _, node := range s.net.destNodes {
		if err := node.Evolve(tick); err != nil {
			return err
		}
	}

	for _, link := range s.net.Links() {
		if err := link.ClearIncoming(); err != nil {
			return err
		}
		if err := link.Evolve(tick); err != nil {
			return err
		}
	}

	for _, dest := range s.net.Destinations() {
		if err := dest.Receive(tick); err != nil {
			return err
		}
	}
	return nil
}

// StepOnce 推进一个时间步并前移当前时刻
func (s *Simulation) StepOnce() error {
	if err := s.LoadOnce(s.currentTick); err != nil {
		return err
	}
	s.currentTick++
	return nil
}

// Finished 返回需求是否已全部释放且路网清空
func (s *Simulation) Finished() bool {
	for _, origin := range s.net.Origins() {
		if !origin.Finished() {
			return false
		}
	}
	return s.vehFactory.NumUnfinished() == 0
}

// Loading 运行模拟直到需求释放完毕且路网清空
// totalTicks为正时作为硬性步数上限
func (s *Simulation) Loading(verbose bool) error {
	totalTicks := s.cfg.Simulation.TotalTicks
	progressInterval := s.cfg.Logging.ProgressInterval

	for !s.Finished() {
		if totalTicks > 0 && s.currentTick >= totalTicks {
			log.Warnf("loading stopped at tick %d with %d vehicles unfinished",
				s.currentTick, s.vehFactory.NumUnfinished())
			break
		}
		if err := s.StepOnce(); err != nil {
			log.Errorf("loading aborted at tick %d: %v", s.currentTick, err)
			return err
		}
		if verbose && progressInterval > 0 && s.currentTick%progressInterval == 0 {
			log.WithFields(map[string]interface{}{
				"tick":       s.currentTick,
				"time":       log.ConvertTickToTime(s.currentTick, s.cfg.Simulation.UnitTime),
				"released":   s.vehFactory.NumVehicles(),
				"unfinished": s.vehFactory.NumUnfinished(),
			}).Info("loading progress")
		}
	}
	return nil
}

// LinkInCurve 返回路段指定类别的到达累计曲线记录
func (s *Simulation) LinkInCurve(linkID int64, class element.VehicleClass) ([]element.CurveRecord, error) {
	link, err := s.net.Link(linkID)
	if err != nil {
		return nil, err
	}
	curve, err := link.CurveIn(class)
	if err != nil {
		return nil, errors.Wrapf(err, "link %d in curve", linkID)
	}
	return curve.Records(), nil
}

// LinkOutCurve 返回路段指定类别的离开累计曲线记录
func (s *Simulation) LinkOutCurve(linkID int64, class element.VehicleClass) ([]element.CurveRecord, error) {
	link, err := s.net.Link(linkID)
	if err != nil {
		return nil, err
	}
	curve, err := link.CurveOut(class)
	if err != nil {
		return nil, errors.Wrapf(err, "link %d out curve", linkID)
	}
	return curve.Records(), nil
}

// LinkInflow 返回 (start, end] 时间窗内路段指定类别的到达量（实际车辆数）
func (s *Simulation) LinkInflow(linkID int64, class element.VehicleClass, start, end int) (float64, error) {
	if err := s.checkWindow(start, end); err != nil {
		return 0, err
	}
	link, err := s.net.Link(linkID)
	if err != nil {
		return 0, err
	}
	curve, err := link.CurveIn(class)
	if err != nil {
		return 0, errors.Wrapf(err, "link %d inflow", linkID)
	}
	return curve.Result(float64(end)) - curve.Result(float64(start)), nil
}

// LinkOutflow 返回 (start, end] 时间窗内路段指定类别的离开量（实际车辆数）
func (s *Simulation) LinkOutflow(linkID int64, class element.VehicleClass, start, end int) (float64, error) {
	if err := s.checkWindow(start, end); err != nil {
		return 0, err
	}
	link, err := s.net.Link(linkID)
	if err != nil {
		return 0, err
	}
	curve, err := link.CurveOut(class)
	if err != nil {
		return 0, errors.Wrapf(err, "link %d outflow", linkID)
	}
	return curve.Result(float64(end)) - curve.Result(float64(start)), nil
}

func (s *Simulation) checkWindow(start, end int) error {
	if end < start {
		return errors.Errorf("end time %d smaller than start time %d", end, start)
	}
	if end > s.currentTick {
		return errors.Wrapf(element.ErrIntervalNotLoaded,
			"query end %d beyond loaded tick %d", end, s.currentTick)
	}
	return nil
}

// LinkVolume 返回路段内各类别的实际车辆数
func (s *Simulation) LinkVolume(linkID int64) (car, truck float64, err error) {
	link, err := s.net.Link(linkID)
	if err != nil {
		return 0, 0, err
	}

	var simCar, simTruck int
	switch l := link.(type) {
	case *element.CTMLink:
		simCar, simTruck = l.Volume()
	case *element.PQLink:
		simCar, simTruck = l.Volume()
	default:
		return 0, 0, errors.Errorf("link %d has unknown model", linkID)
	}
	flowScalar := s.cfg.Simulation.FlowScalar
	return float64(simCar) / flowScalar, float64(simTruck) / flowScalar, nil
}
