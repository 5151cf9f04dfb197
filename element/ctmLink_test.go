package element

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// newTestCTMLink 构造一条测试用CTM路段
// unitTime=10s，ffsCar=10m/s ⇒ 标准元胞长100m
func newTestCTMLink(t *testing.T, length float64, rng *rand.Rand) *CTMLink {
	t.Helper()
	link, err := NewCTMLink(1, 1, length,
		0.2, 0.15, // laneHoldCap
		0.1, 0.08, // laneFlowCap
		10, 8, // ffs
		10, 2, 1, rng)
	require.NoError(t, err)
	return link
}

func TestCTMLinkCellPartition(t *testing.T) {
	link := newTestCTMLink(t, 200, testRand(1))
	assert.Equal(t, 2, link.NumCells())
	assert.InDelta(t, 100.0, link.cells[0].cellLength, 1e-12)
	assert.InDelta(t, 100.0, link.cells[1].cellLength, 1e-12)

	// 末元胞承接剩余长度
	link = newTestCTMLink(t, 250, testRand(1))
	assert.Equal(t, 2, link.NumCells())
	assert.InDelta(t, 150.0, link.cells[1].cellLength, 1e-12)
}

func TestCTMLinkShortLinkSingleCell(t *testing.T) {
	// 长度不足一个标准元胞时只有一个元胞，长度即路段长度
	link := newTestCTMLink(t, 50, testRand(1))
	assert.Equal(t, 1, link.NumCells())
	assert.InDelta(t, 50.0, link.cells[0].cellLength, 1e-12)
}

func TestCTMLinkConstructionFailures(t *testing.T) {
	rng := testRand(1)

	// 阻塞密度不大于临界密度
	_, err := NewCTMLink(1, 1, 200, 0.01, 0.15, 0.1, 0.08, 10, 8, 10, 2, 1, rng)
	assert.Error(t, err)

	// 负的阻塞密度
	_, err = NewCTMLink(1, 1, 200, -0.2, 0.15, 0.1, 0.08, 10, 8, 10, 2, 1, rng)
	assert.Error(t, err)

	// 负的流率上限
	_, err = NewCTMLink(1, 1, 200, 0.2, 0.15, -0.1, 0.08, 10, 8, 10, 2, 1, rng)
	assert.Error(t, err)

	// 负的自由流速度
	_, err = NewCTMLink(1, 1, 200, 0.2, 0.15, 0.1, 0.08, -10, 8, 10, 2, 1, rng)
	assert.Error(t, err)

	// 货车当量小于1
	_, err = NewCTMLink(1, 1, 200, 0.2, 0.15, 0.1, 0.08, 10, 8, 10, 0.5, 1, rng)
	assert.Error(t, err)

	// 流量放大系数小于1
	_, err = NewCTMLink(1, 1, 200, 0.2, 0.15, 0.1, 0.08, 10, 8, 10, 2, 0.5, rng)
	assert.Error(t, err)

	// 非正的时间步长
	_, err = NewCTMLink(1, 1, 200, 0.2, 0.15, 0.1, 0.08, 10, 8, 0, 2, 1, rng)
	assert.Error(t, err)
}

func TestCTMLinkParameterClamps(t *testing.T) {
	link, err := NewCTMLink(1, 1, 200,
		1.0, 1.0, // 超出物理上限
		2.0, 2.0,
		10, 8, 10, 2, 1, testRand(1))
	require.NoError(t, err)

	assert.InDelta(t, 300.0/1600.0, link.laneHoldCapCar, 1e-12)
	assert.InDelta(t, 300.0/1600.0, link.laneHoldCapTruck, 1e-12)
	assert.InDelta(t, 3500.0/3600.0, link.laneFlowCapCar, 1e-12)
	assert.InDelta(t, 3500.0/3600.0, link.laneFlowCapTruck, 1e-12)
}

func TestCTMLinkWaveSpeed(t *testing.T) {
	link := newTestCTMLink(t, 200, testRand(1))

	// waveSpeed = flowCap / (holdCap - criticalDensity)
	// 小汽车阻塞密度0.2超出上限，构造时被裁剪为300/1600
	assert.InDelta(t, 0.1/(300.0/1600.0-0.01), link.waveSpeedCar, 1e-12)
	assert.InDelta(t, 0.08/(0.15-0.01), link.waveSpeedTruck, 1e-12)
	assert.InDelta(t, 300.0/1600.0*link.waveSpeedCar/(8+link.waveSpeedCar), link.laneRho1N, 1e-12)
}

func TestCTMLinkSupplyEmpty(t *testing.T) {
	link := newTestCTMLink(t, 200, testRand(1))

	// 空路段的供给等于流率上限
	assert.InDelta(t, 0.1*10, link.Supply(), 1e-12)
}

func TestCTMLinkClearIncomingOverflow(t *testing.T) {
	link := newTestCTMLink(t, 200, testRand(1))

	// 超出供给的到达车辆触发核算错误
	for i := 0; i < 10; i++ {
		link.pushIncoming(&Vehicle{id: int64(i), class: ClassCar})
	}
	err := link.ClearIncoming()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFlowAccounting)
}

func TestCTMLinkClearIncoming(t *testing.T) {
	link := newTestCTMLink(t, 200, testRand(1))

	link.pushIncoming(&Vehicle{id: 1, class: ClassCar})
	require.NoError(t, link.ClearIncoming())

	assert.Equal(t, 1, link.cells[0].volumeCar)
	assert.Len(t, link.cells[0].vehQueueCar, 1)
	assert.Empty(t, link.incomingArray)
}

// TestMoveLastCellInterleave 末元胞交织出队：无论抽样结果如何，
// 最终计数恰为3辆小汽车与2辆货车，且类内先进先出
func TestMoveLastCellInterleave(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		link := newTestCTMLink(t, 50, testRand(seed))
		dest := NewDestNode(99, 1)
		link.SetEndpoints(nil, dest)

		last := link.cells[0]
		cars := []*Vehicle{{id: 1, class: ClassCar}, {id: 2, class: ClassCar}, {id: 3, class: ClassCar}}
		trucks := []*Vehicle{{id: 4, class: ClassTruck}, {id: 5, class: ClassTruck}}
		last.vehQueueCar = append(last.vehQueueCar, cars...)
		last.vehQueueTruck = append(last.vehQueueTruck, trucks...)

		require.NoError(t, link.Evolve(0))

		countCar, countTruck := link.countFinished()
		assert.Equal(t, 3, countCar, "seed %d", seed)
		assert.Equal(t, 2, countTruck, "seed %d", seed)
		assert.Len(t, link.finishedArray, 5, "seed %d", seed)

		// 类内先进先出
		var carIDs, truckIDs []int64
		for _, veh := range link.finishedArray {
			if veh.class == ClassCar {
				carIDs = append(carIDs, veh.id)
			} else {
				truckIDs = append(truckIDs, veh.id)
			}
		}
		assert.Equal(t, []int64{1, 2, 3}, carIDs, "seed %d", seed)
		assert.Equal(t, []int64{4, 5}, truckIDs, "seed %d", seed)
	}
}

// TestMoveLastCellDeterministic 相同种子产生相同的出队次序
func TestMoveLastCellDeterministic(t *testing.T) {
	sequence := func(seed uint64) []VehicleClass {
		link := newTestCTMLink(t, 50, testRand(seed))
		link.SetEndpoints(nil, NewDestNode(99, 1))
		last := link.cells[0]
		for i := 0; i < 5; i++ {
			last.vehQueueCar = append(last.vehQueueCar, &Vehicle{id: int64(i), class: ClassCar})
		}
		for i := 5; i < 10; i++ {
			last.vehQueueTruck = append(last.vehQueueTruck, &Vehicle{id: int64(i), class: ClassTruck})
		}
		require.NoError(t, link.Evolve(0))

		classes := make([]VehicleClass, 0, 10)
		for _, veh := range link.finishedArray {
			classes = append(classes, veh.class)
		}
		return classes
	}

	assert.Equal(t, sequence(7), sequence(7))
}

func TestMoveLastCellNoNextLinkFails(t *testing.T) {
	link := newTestCTMLink(t, 50, testRand(1))
	junction := NewJunctionNode(99, 1, testRand(2))
	link.SetEndpoints(nil, junction)

	// 下游不是终点节点时，缺失下一路段是致命路由错误
	link.cells[0].vehQueueCar = append(link.cells[0].vehQueueCar, &Vehicle{id: 1, class: ClassCar})
	err := link.Evolve(0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRoutingViolation)
}

// TestCTMLinkVolumeInvariant 推进后各元胞体积等于队列长度，
// 末元胞另计完成队列中的同类车辆
func TestCTMLinkVolumeInvariant(t *testing.T) {
	// 高流率参数保证8辆车可在同一时间步装入
	link, err := NewCTMLink(1, 1, 300,
		0.2, 0.15,
		0.9, 0.4,
		10, 8, 10, 2, 1, testRand(3))
	require.NoError(t, err)
	link.SetEndpoints(nil, NewDestNode(99, 1))

	for i := 0; i < 6; i++ {
		link.pushIncoming(&Vehicle{id: int64(i), class: ClassCar})
	}
	for i := 6; i < 8; i++ {
		link.pushIncoming(&Vehicle{id: int64(i), class: ClassTruck})
	}
	require.NoError(t, link.ClearIncoming())

	for tick := 0; tick < 10; tick++ {
		require.NoError(t, link.Evolve(tick))

		for i := 0; i < link.numCells-1; i++ {
			assert.Equal(t, len(link.cells[i].vehQueueCar), link.cells[i].volumeCar)
			assert.Equal(t, len(link.cells[i].vehQueueTruck), link.cells[i].volumeTruck)
		}
		countCar, countTruck := link.countFinished()
		last := link.cells[link.numCells-1]
		assert.Equal(t, len(last.vehQueueCar)+countCar, last.volumeCar)
		assert.Equal(t, len(last.vehQueueTruck)+countTruck, last.volumeTruck)
	}
}

func TestCTMLinkFlowAndTravelTime(t *testing.T) {
	link := newTestCTMLink(t, 200, testRand(1))

	assert.InDelta(t, 0.0, link.Flow(), 1e-12)
	// 空路段通行时间为自由流时间
	assert.InDelta(t, 20.0, link.TravelTime(), 1e-12)

	link.cells[0].volumeCar = 2
	assert.InDelta(t, 2.0, link.Flow(), 1e-12)
}
