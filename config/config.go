package config

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Config 保存所有配置项的顶级结构
type Config struct {
	Simulation SimulationConfig `json:"simulation"`
	Logging    LoggingConfig    `json:"logging"`
	Output     OutputConfig     `json:"output"`
}

// SimulationConfig 保存动态交通分配模拟相关的配置项
type SimulationConfig struct {
	// 每个模拟时间步对应的实际时长（秒）
	UnitTime float64 `json:"unitTime"`

	// 流量放大系数：1辆实际车辆 = flowScalar 辆模拟车辆
	FlowScalar float64 `json:"flowScalar"`

	// 需求分配频率：每隔多少个时间步释放一个分配区间的需求
	AssignFrequency int `json:"assignFrequency"`

	// 起始分配区间
	StartAssignInterval int `json:"startAssignInterval"`

	// 分配区间总数
	MaxInterval int `json:"maxInterval"`

	// 模拟总时间步数（0表示运行到网络清空）
	TotalTicks int `json:"totalTicks"`

	// 随机数种子
	Seed uint64 `json:"seed"`
}

// LoggingConfig 保存日志记录相关的配置项
type LoggingConfig struct {
	Verbose bool `json:"verbose"`

	// 每隔多少个时间步输出一次状态日志
	ProgressInterval int `json:"progressInterval"`
}

// OutputConfig 保存结果输出相关的配置项
type OutputConfig struct {
	// 累计曲线CSV的输出目录
	Directory string `json:"directory"`
}

var globalConfig *Config

// LoadConfig loads configuration from the specified JSON file
func LoadConfig(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrapf(err, "read config file %s", filename)
	}

	config := &Config{}
	if err := json.Unmarshal(data, config); err != nil {
		return errors.Wrapf(err, "parse config file %s", filename)
	}

	applyDefaults(config)

	if err := Validate(config); err != nil {
		return err
	}

	globalConfig = config
	return nil
}

// GetConfig returns the global configuration instance
func GetConfig() *Config {
	return globalConfig
}

// SetConfig 直接设置全局配置（测试和程序内构建时使用）
func SetConfig(config *Config) error {
	applyDefaults(config)
	if err := Validate(config); err != nil {
		return err
	}
	globalConfig = config
	return nil
}

// applyDefaults 为缺省配置项填入默认值
func applyDefaults(config *Config) {
	if config.Simulation.UnitTime == 0 {
		config.Simulation.UnitTime = 5 // 默认时间步5秒
	}
	if config.Simulation.FlowScalar == 0 {
		config.Simulation.FlowScalar = 1
	}
	if config.Simulation.AssignFrequency <= 0 {
		config.Simulation.AssignFrequency = 180 // 默认15分钟分配区间（unitTime=5秒时）
	}
	if config.Simulation.MaxInterval <= 0 {
		config.Simulation.MaxInterval = 1
	}
	if config.Logging.ProgressInterval <= 0 {
		config.Logging.ProgressInterval = 100
	}
	if config.Output.Directory == "" {
		config.Output.Directory = "./output"
	}
}

// Validate 校验配置项取值范围
func Validate(config *Config) error {
	if config.Simulation.UnitTime <= 0 {
		return errors.Errorf("unitTime should be positive, got %f", config.Simulation.UnitTime)
	}
	if config.Simulation.FlowScalar < 1 {
		return errors.Errorf("flowScalar can't be less than 1, got %f", config.Simulation.FlowScalar)
	}
	if config.Simulation.StartAssignInterval < 0 {
		return errors.Errorf("startAssignInterval can't be negative, got %d", config.Simulation.StartAssignInterval)
	}
	if config.Simulation.StartAssignInterval >= config.Simulation.MaxInterval {
		return errors.Errorf("startAssignInterval %d out of range, maxInterval is %d",
			config.Simulation.StartAssignInterval, config.Simulation.MaxInterval)
	}
	if config.Simulation.TotalTicks < 0 {
		return errors.Errorf("totalTicks can't be negative, got %d", config.Simulation.TotalTicks)
	}
	return nil
}
