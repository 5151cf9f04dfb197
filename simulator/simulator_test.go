package simulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozzychow/MAC-POSTS/config"
	"github.com/ozzychow/MAC-POSTS/element"
)

func testConfig(flowScalar float64, frequency, maxInterval, totalTicks int) *config.Config {
	return &config.Config{
		Simulation: config.SimulationConfig{
			UnitTime:        10,
			FlowScalar:      flowScalar,
			AssignFrequency: frequency,
			MaxInterval:     maxInterval,
			TotalTicks:      totalTicks,
			Seed:            42,
		},
		Logging: config.LoggingConfig{ProgressInterval: 100},
	}
}

// buildSingleLinkSim 起点 --CTM路段--> 终点
// 参数使单辆小汽车恰处临界密度，可逐元胞自由流推进
func buildSingleLinkSim(t *testing.T, demandCar, demandTruck []float64) *Simulation {
	t.Helper()
	cfg := testConfig(1, 100, len(demandCar), 0)
	require.NoError(t, config.Validate(cfg))

	nodes := []NodeRecord{
		{ID: 1, Type: element.NodeTypeOrigin},
		{ID: 2, Type: element.NodeTypeDestination},
	}
	links := []LinkRecord{
		{
			LinkConfig: element.LinkConfig{
				ID:               1,
				Type:             element.LinkTypeCTM,
				NumLanes:         1,
				Length:           200,
				LaneHoldCapCar:   0.2,
				LaneHoldCapTruck: 0.15,
				LaneFlowCapCar:   0.1,
				LaneFlowCapTruck: 0.08,
				FfsCar:           10,
				FfsTruck:         8,
				VehConvertFactor: 2,
			},
			From: 1, To: 2,
		},
	}

	rng := NewRand(cfg.Simulation.Seed)
	net, err := BuildNetwork(cfg, nodes, links, rng)
	require.NoError(t, err)

	origin, err := net.MakeOrigin(1, 1)
	require.NoError(t, err)
	dest, err := net.MakeDestination(1, 2)
	require.NoError(t, err)
	require.NoError(t, origin.AddDestDemand(dest, demandCar, demandTruck))

	routing, err := NewFixedRouting(net)
	require.NoError(t, err)

	sim := NewSimulation(cfg, net, routing)
	require.NoError(t, sim.RegisterLinks([]int64{1}))
	sim.InstallCumulativeCurves()
	return sim
}

// TestSingleCarFreeFlow 单车自由流：200m路段两个元胞，
// 每个时间步前进一个元胞，第4步被终点吸收
func TestSingleCarFreeFlow(t *testing.T) {
	sim := buildSingleLinkSim(t, []float64{1}, []float64{0})

	link, err := sim.Network().Link(1)
	require.NoError(t, err)
	ctm := link.(*element.CTMLink)
	require.Equal(t, 2, ctm.NumCells())

	// 第1步：车辆进入元胞0
	require.NoError(t, sim.StepOnce())
	car, _, err := ctm.CellVolume(0)
	require.NoError(t, err)
	assert.Equal(t, 1, car)

	// 第2步：推进到元胞1
	require.NoError(t, sim.StepOnce())
	car, _, err = ctm.CellVolume(1)
	require.NoError(t, err)
	assert.Equal(t, 1, car)

	// 第3步：进入完成队列（末元胞体积仍计入）
	require.NoError(t, sim.StepOnce())
	car, _, err = ctm.CellVolume(1)
	require.NoError(t, err)
	assert.Equal(t, 1, car)

	// 第4步：被终点吸收
	require.NoError(t, sim.StepOnce())
	assert.True(t, sim.Finished())
	assert.Equal(t, 0, sim.VehicleFactory().NumUnfinished())

	records, err := sim.LinkOutCurve(1, element.ClassCar)
	require.NoError(t, err)
	final := records[len(records)-1]
	assert.InDelta(t, 4.0, final.Time, 1e-12)
	assert.InDelta(t, 1.0, final.Count, 1e-12)
}

func TestZeroDemandStaysEmpty(t *testing.T) {
	sim := buildSingleLinkSim(t, []float64{0}, []float64{0})

	for i := 0; i < 5; i++ {
		require.NoError(t, sim.StepOnce())
	}

	car, truck, err := sim.LinkVolume(1)
	require.NoError(t, err)
	assert.Zero(t, car)
	assert.Zero(t, truck)

	for _, class := range []element.VehicleClass{element.ClassCar, element.ClassTruck} {
		in, err := sim.LinkInflow(1, class, 0, 5)
		require.NoError(t, err)
		assert.Zero(t, in)
		out, err := sim.LinkOutflow(1, class, 0, 5)
		require.NoError(t, err)
		assert.Zero(t, out)
	}
	assert.Equal(t, 0, sim.VehicleFactory().NumVehicles())
}

func TestQueryErrors(t *testing.T) {
	sim := buildSingleLinkSim(t, []float64{0}, []float64{0})
	require.NoError(t, sim.StepOnce())

	// 查询超出已加载时间步
	_, err := sim.LinkInflow(1, element.ClassCar, 0, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, element.ErrIntervalNotLoaded)

	// 时间窗颠倒
	_, err = sim.LinkInflow(1, element.ClassCar, 1, 0)
	assert.Error(t, err)

	// 不存在的路段
	_, err = sim.LinkInCurve(42, element.ClassCar)
	assert.Error(t, err)
}

func TestCurveNotInstalled(t *testing.T) {
	// 构造一个未安装曲线的模拟
	cfg := testConfig(1, 100, 1, 0)
	nodes := []NodeRecord{
		{ID: 1, Type: element.NodeTypeOrigin},
		{ID: 2, Type: element.NodeTypeDestination},
	}
	links := []LinkRecord{
		{
			LinkConfig: element.LinkConfig{
				ID: 1, Type: element.LinkTypePQ, NumLanes: 1, Length: 100,
				LaneHoldCapCar: 0.2, LaneHoldCapTruck: 0.15,
				LaneFlowCapCar: 0.1, LaneFlowCapTruck: 0.08,
				FfsCar: 10, FfsTruck: 8, VehConvertFactor: 2,
			},
			From: 1, To: 2,
		},
	}
	net, err := BuildNetwork(cfg, nodes, links, NewRand(1))
	require.NoError(t, err)
	_, err = net.MakeOrigin(1, 1)
	require.NoError(t, err)
	_, err = net.MakeDestination(1, 2)
	require.NoError(t, err)
	routing, err := NewFixedRouting(net)
	require.NoError(t, err)
	bare := NewSimulation(cfg, net, routing)

	_, err = bare.LinkInCurve(1, element.ClassCar)
	require.Error(t, err)
	assert.ErrorIs(t, err, element.ErrCurveNotInstalled)
}

// buildCorridorSim 起点 --PQ--> 交叉口 --单元胞CTM--> 交叉口 --PQ--> 终点
func buildCorridorSim(t *testing.T, flowScalar float64,
	demandCar, demandTruck []float64) *Simulation {
	t.Helper()
	cfg := testConfig(flowScalar, 3, len(demandCar), 400)

	nodes := []NodeRecord{
		{ID: 1, Type: element.NodeTypeOrigin},
		{ID: 2, Type: element.NodeTypeJunction},
		{ID: 3, Type: element.NodeTypeJunction},
		{ID: 4, Type: element.NodeTypeDestination},
	}

	pq := element.LinkConfig{
		Type: element.LinkTypePQ, NumLanes: 1, Length: 100,
		LaneHoldCapCar: 0.2, LaneHoldCapTruck: 0.15,
		LaneFlowCapCar: 0.5, LaneFlowCapTruck: 0.5,
		FfsCar: 10, FfsTruck: 8, VehConvertFactor: 2,
	}
	ctm := pq
	ctm.Type = element.LinkTypeCTM
	ctm.Length = 80 // 不足一个标准元胞，单元胞路段
	ctm.LaneFlowCapCar = 0.5
	ctm.LaneFlowCapTruck = 0.4

	up := pq
	up.ID = 1
	ctm.ID = 2
	down := pq
	down.ID = 3

	links := []LinkRecord{
		{LinkConfig: up, From: 1, To: 2},
		{LinkConfig: ctm, From: 2, To: 3},
		{LinkConfig: down, From: 3, To: 4},
	}

	net, err := BuildNetwork(cfg, nodes, links, NewRand(cfg.Simulation.Seed))
	require.NoError(t, err)

	origin, err := net.MakeOrigin(1, 1)
	require.NoError(t, err)
	dest, err := net.MakeDestination(1, 4)
	require.NoError(t, err)
	require.NoError(t, origin.AddDestDemand(dest, demandCar, demandTruck))

	routing, err := NewFixedRouting(net)
	require.NoError(t, err)

	sim := NewSimulation(cfg, net, routing)
	require.NoError(t, sim.RegisterLinks([]int64{1, 2, 3}))
	sim.InstallCumulativeCurves()
	return sim
}

// TestCorridorConservation 两类车经三条路段全部到达，
// 起终点累计曲线闭合到释放总量
func TestCorridorConservation(t *testing.T) {
	sim := buildCorridorSim(t, 2, []float64{4, 2}, []float64{1, 1})

	require.NoError(t, sim.Loading(false))
	require.True(t, sim.Finished())
	assert.Equal(t, 0, sim.VehicleFactory().NumUnfinished())

	// 释放总量：(4+2)·2 = 12辆模拟小汽车，(1+1)·2 = 4辆模拟货车
	assert.Equal(t, 16, sim.VehicleFactory().NumVehicles())

	end := sim.CurrentTick()
	inCar, err := sim.LinkInflow(1, element.ClassCar, 0, end)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, inCar, 1e-9)
	inTruck, err := sim.LinkInflow(1, element.ClassTruck, 0, end)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, inTruck, 1e-9)

	outCar, err := sim.LinkOutflow(3, element.ClassCar, 0, end)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, outCar, 1e-9)
	outTruck, err := sim.LinkOutflow(3, element.ClassTruck, 0, end)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, outTruck, 1e-9)

	// 路网清空
	for _, id := range []int64{1, 2, 3} {
		car, truck, err := sim.LinkVolume(id)
		require.NoError(t, err)
		assert.Zero(t, car, "link %d", id)
		assert.Zero(t, truck, "link %d", id)
	}

	// 中间路段的进出曲线同样闭合
	midIn, err := sim.LinkInflow(2, element.ClassCar, 0, end)
	require.NoError(t, err)
	midOut, err := sim.LinkOutflow(2, element.ClassCar, 0, end)
	require.NoError(t, err)
	assert.InDelta(t, midIn, midOut, 1e-9)
}

// TestCurvesMonotonic 任意时刻累计曲线都单调不减
func TestCurvesMonotonic(t *testing.T) {
	sim := buildCorridorSim(t, 2, []float64{4, 2}, []float64{1, 1})
	require.NoError(t, sim.Loading(false))

	for _, id := range []int64{1, 2, 3} {
		for _, class := range []element.VehicleClass{element.ClassCar, element.ClassTruck} {
			in, err := sim.LinkInCurve(id, class)
			require.NoError(t, err)
			out, err := sim.LinkOutCurve(id, class)
			require.NoError(t, err)
			for _, records := range [][]element.CurveRecord{in, out} {
				for i := 1; i < len(records); i++ {
					assert.GreaterOrEqual(t, records[i].Count, records[i-1].Count)
				}
			}
		}
	}
}

// TestSeededRunsReproducible 相同种子的两次模拟产生相同的曲线
func TestSeededRunsReproducible(t *testing.T) {
	run := func() []element.CurveRecord {
		sim := buildCorridorSim(t, 2, []float64{4, 2}, []float64{1, 1})
		require.NoError(t, sim.Loading(false))
		records, err := sim.LinkOutCurve(3, element.ClassCar)
		require.NoError(t, err)
		return records
	}
	assert.Equal(t, run(), run())
}

func TestFixedRoutingNextLink(t *testing.T) {
	sim := buildCorridorSim(t, 1, []float64{1}, []float64{0})
	net := sim.Network()

	link1, err := net.Link(1)
	require.NoError(t, err)
	link2, err := net.Link(2)
	require.NoError(t, err)
	link3, err := net.Link(3)
	require.NoError(t, err)

	routing, err := NewFixedRouting(net)
	require.NoError(t, err)

	// 未挂接起终点的车辆报路由错误
	stray := element.NewVehicleFactory().MakeVehicle(0, element.ClassCar)
	_, err = routing.NextLink(stray, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, element.ErrRoutingViolation)

	// 释放一辆车并沿走廊逐段查询下一路段
	require.NoError(t, sim.StepOnce())
	veh, err := sim.VehicleFactory().Vehicle(1)
	require.NoError(t, err)

	next, err := routing.NextLink(veh, nil)
	require.NoError(t, err)
	assert.Same(t, link1, next)

	next, err = routing.NextLink(veh, link1)
	require.NoError(t, err)
	assert.Same(t, link2, next)

	next, err = routing.NextLink(veh, link2)
	require.NoError(t, err)
	assert.Same(t, link3, next)

	next, err = routing.NextLink(veh, link3)
	require.NoError(t, err)
	assert.Nil(t, next)
}
