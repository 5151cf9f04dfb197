package element

import "math"

// ctmCell 多类别元胞传输模型的一个元胞
// 参数均为路段级（车道参数×车道数），密度与流率使用实际车辆单位
type ctmCell struct {
	cellLength float64
	unitTime   float64
	flowScalar float64

	holdCapCar           float64 // 阻塞密度 (veh/m)
	holdCapTruck         float64
	criticalDensityCar   float64 // 临界密度 (veh/m)
	criticalDensityTruck float64
	rho1N                float64 // 半拥挤与完全拥挤的分界密度
	flowCapCar           float64 // 最大流率 (veh/s)
	flowCapTruck         float64
	ffsCar               float64 // 自由流速度 (m/s)
	ffsTruck             float64
	waveSpeedCar         float64 // 后向波速 (m/s)
	waveSpeedTruck       float64

	volumeCar   int // 模拟车辆数
	volumeTruck int
	outVehCar   int // 本时间步待移出的模拟车辆数
	outVehTruck int

	vehQueueCar   []*Vehicle
	vehQueueTruck []*Vehicle

	perceivedDensityCar   float64
	perceivedDensityTruck float64
	spaceFractionCar      float64
	spaceFractionTruck    float64
}

func newCtmCell(cellLength, unitTime float64,
	holdCapCar, holdCapTruck,
	criticalDensityCar, criticalDensityTruck,
	rho1N,
	flowCapCar, flowCapTruck,
	ffsCar, ffsTruck,
	waveSpeedCar, waveSpeedTruck,
	flowScalar float64) *ctmCell {

	return &ctmCell{
		cellLength:           cellLength,
		unitTime:             unitTime,
		flowScalar:           flowScalar,
		holdCapCar:           holdCapCar,
		holdCapTruck:         holdCapTruck,
		criticalDensityCar:   criticalDensityCar,
		criticalDensityTruck: criticalDensityTruck,
		rho1N:                rho1N,
		flowCapCar:           flowCapCar,
		flowCapTruck:         flowCapTruck,
		ffsCar:               ffsCar,
		ffsTruck:             ffsTruck,
		waveSpeedCar:         waveSpeedCar,
		waveSpeedTruck:       waveSpeedTruck,
	}
}

// updatePerceivedDensity 更新两类车的感知密度与空间占比
// 按三种交通状态分别计算：自由流、半拥挤（货车自由流而小汽车拥挤）、完全拥挤
func (c *ctmCell) updatePerceivedDensity() {
	realVolumeCar := float64(c.volumeCar) / c.flowScalar
	realVolumeTruck := float64(c.volumeTruck) / c.flowScalar

	densityCar := realVolumeCar / c.cellLength
	densityTruck := realVolumeTruck / c.cellLength

	// 自由流（两类车均未拥挤）
	if densityCar/c.criticalDensityCar+densityTruck/c.criticalDensityTruck <= 1 {
		c.spaceFractionCar = densityCar / c.criticalDensityCar
		c.spaceFractionTruck = densityTruck / c.criticalDensityTruck
		c.perceivedDensityCar = densityCar + c.criticalDensityCar*c.spaceFractionTruck
		c.perceivedDensityTruck = densityTruck + c.criticalDensityTruck*c.spaceFractionCar
		return
	}

	// 半拥挤（货车自由流，小汽车拥挤）
	if densityTruck/c.criticalDensityTruck < 1 &&
		densityCar/(1-densityTruck/c.criticalDensityTruck) <= c.rho1N {
		c.spaceFractionTruck = densityTruck / c.criticalDensityTruck
		c.spaceFractionCar = 1 - c.spaceFractionTruck
		c.perceivedDensityCar = densityCar / c.spaceFractionCar
		c.perceivedDensityTruck = c.criticalDensityTruck
		return
	}

	// 完全拥挤（两类车均拥挤）
	// 此状态下 perceivedDensityCar > rho1N 且 perceivedDensityTruck > criticalDensityTruck
	if c.volumeTruck == 0 {
		// 货车密度可以为0，小汽车密度不可能为0
		c.spaceFractionCar = 1
		c.spaceFractionTruck = 0
		c.perceivedDensityCar = densityCar
		// 两类车共用同一速度u
		u := (c.holdCapCar - densityCar) * c.waveSpeedCar / densityCar
		c.perceivedDensityTruck = (c.holdCapTruck * c.waveSpeedTruck) / (u + c.waveSpeedTruck)
		return
	}

	tmpCar := c.holdCapCar * c.waveSpeedCar * densityTruck
	tmpTruck := c.holdCapTruck * c.waveSpeedTruck * densityCar
	c.spaceFractionCar = (densityCar*densityCar*(c.waveSpeedCar-c.waveSpeedTruck) + tmpTruck) /
		(tmpTruck + tmpCar)
	c.spaceFractionTruck = (densityCar*densityCar*(c.waveSpeedTruck-c.waveSpeedCar) + tmpCar) /
		(tmpTruck + tmpCar)
	c.perceivedDensityCar = densityCar / c.spaceFractionCar
	c.perceivedDensityTruck = densityTruck / c.spaceFractionTruck
}

// perceivedDemand 返回指定类别本时间步的发送需求（实际车辆数）
func (c *ctmCell) perceivedDemand(class VehicleClass) float64 {
	if class == ClassCar {
		return math.Min(c.flowCapCar, c.ffsCar*c.perceivedDensityCar) * c.unitTime
	}
	return math.Min(c.flowCapTruck, c.ffsTruck*c.perceivedDensityTruck) * c.unitTime
}

// perceivedSupply 返回指定类别本时间步的接收能力（实际车辆数）
func (c *ctmCell) perceivedSupply(class VehicleClass) float64 {
	var tmp float64
	if class == ClassCar {
		tmp = math.Min(c.flowCapCar, c.waveSpeedCar*(c.holdCapCar-c.perceivedDensityCar))
	} else {
		tmp = math.Min(c.flowCapTruck, c.waveSpeedTruck*(c.holdCapTruck-c.perceivedDensityTruck))
	}
	return math.Max(0, tmp) * c.unitTime
}
