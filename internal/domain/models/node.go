package models

// Roles a node can play in a run.
const (
	RoleSink   = "sink"
	RoleSensor = "sensor"
)

// Node describes where a node sits and what it measures.
type Node struct {
	Address     string  `json:"address" yaml:"address"`
	Role        string  `json:"role" yaml:"role"`
	X           float64 `json:"x" yaml:"x"`
	Y           float64 `json:"y" yaml:"y"`
	SensorValue int32   `json:"sensor_value" yaml:"sensor_value"`
}
