package main

import (
	"flag"
	"os"

	"github.com/ozzychow/MAC-POSTS/config"
	"github.com/ozzychow/MAC-POSTS/element"
	"github.com/ozzychow/MAC-POSTS/log"
	"github.com/ozzychow/MAC-POSTS/recorder"
	"github.com/ozzychow/MAC-POSTS/simulator"
)

func main() {
	configFile := flag.String("config", "", "JSON配置文件路径，缺省时使用内置默认配置")
	flag.Parse()

	if *configFile != "" {
		if err := config.LoadConfig(*configFile); err != nil {
			log.Errorf("load config failed: %v", err)
			os.Exit(1)
		}
	} else {
		if err := config.SetConfig(&config.Config{
			Simulation: config.SimulationConfig{
				UnitTime:        5,
				FlowScalar:      2,
				AssignFrequency: 60,
				MaxInterval:     4,
				Seed:            42,
			},
			Logging: config.LoggingConfig{Verbose: true, ProgressInterval: 50},
		}); err != nil {
			log.Errorf("build default config failed: %v", err)
			os.Exit(1)
		}
	}
	cfg := config.GetConfig()

	if err := log.InitLogger(cfg.Output.Directory, cfg.Logging.Verbose); err != nil {
		log.Errorf("init logger failed: %v", err)
		os.Exit(1)
	}

	sim, err := buildDemoSimulation(cfg)
	if err != nil {
		log.Errorf("build simulation failed: %v", err)
		os.Exit(1)
	}

	log.Infof("loading starts: unitTime=%.0fs flowScalar=%.0f intervals=%d",
		cfg.Simulation.UnitTime, cfg.Simulation.FlowScalar, cfg.Simulation.MaxInterval)
	if err := sim.Loading(cfg.Logging.Verbose); err != nil {
		os.Exit(1)
	}
	log.Infof("loading done at tick %d (%s), %d vehicles released, %d unfinished",
		sim.CurrentTick(), log.ConvertTickToTime(sim.CurrentTick(), cfg.Simulation.UnitTime),
		sim.VehicleFactory().NumVehicles(), sim.VehicleFactory().NumUnfinished())

	if err := recorder.WriteLinkCurves(cfg.Output.Directory, sim.RegisteredLinks()); err != nil {
		log.Errorf("write cumulative curves failed: %v", err)
		os.Exit(1)
	}
	log.Infof("cumulative curves written to %s", cfg.Output.Directory)
}

// buildDemoSimulation 搭建一个三路段演示路网：
// 起点 --点队列连接段--> 交叉口 --CTM主路--> 交叉口 --点队列连接段--> 终点
func buildDemoSimulation(cfg *config.Config) (*simulator.Simulation, error) {
	rng := simulator.NewRand(cfg.Simulation.Seed)

	nodes := []simulator.NodeRecord{
		{ID: 1, Type: element.NodeTypeOrigin},
		{ID: 2, Type: element.NodeTypeJunction},
		{ID: 3, Type: element.NodeTypeJunction},
		{ID: 4, Type: element.NodeTypeDestination},
	}

	connector := element.LinkConfig{
		Type:             element.LinkTypePQ,
		NumLanes:         1,
		Length:           50,
		LaneHoldCapCar:   0.12,
		LaneHoldCapTruck: 0.10,
		LaneFlowCapCar:   0.70,
		LaneFlowCapTruck: 0.50,
		FfsCar:           20,
		FfsTruck:         15,
		VehConvertFactor: 2,
	}

	mainline := connector
	mainline.Type = element.LinkTypeCTM
	mainline.NumLanes = 2
	mainline.Length = 800

	upstream := connector
	upstream.ID = 1
	mainline.ID = 2
	downstream := connector
	downstream.ID = 3

	links := []simulator.LinkRecord{
		{LinkConfig: upstream, From: 1, To: 2},
		{LinkConfig: mainline, From: 2, To: 3},
		{LinkConfig: downstream, From: 3, To: 4},
	}

	net, err := simulator.BuildNetwork(cfg, nodes, links, rng)
	if err != nil {
		return nil, err
	}

	origin, err := net.MakeOrigin(1, 1)
	if err != nil {
		return nil, err
	}
	dest, err := net.MakeDestination(1, 4)
	if err != nil {
		return nil, err
	}

	// 各分配区间的需求（实际车辆数）
	demandCar := []float64{8, 6, 4, 2}
	demandTruck := []float64{2, 2, 1, 0}
	if err := origin.AddDestDemand(dest, demandCar, demandTruck); err != nil {
		return nil, err
	}

	routing, err := simulator.NewFixedRouting(net)
	if err != nil {
		return nil, err
	}

	sim := simulator.NewSimulation(cfg, net, routing)
	if err := sim.RegisterLinks([]int64{1, 2, 3}); err != nil {
		return nil, err
	}
	sim.InstallCumulativeCurves()
	return sim, nil
}
