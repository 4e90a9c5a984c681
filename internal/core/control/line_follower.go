package control

import (
	"encoding/json"
	"fmt"

	"github.com/zeusync/robosim/internal/core/sim"
)

// LineFollowerConfig tunes LineFollower. Zero values take the defaults.
type LineFollowerConfig struct {
	Sensor         string       `json:"sensor" yaml:"sensor"`
	Drive          Differential `json:"drive" yaml:"drive"`
	ForwardSpeed   float64      `json:"forward_speed" yaml:"forward_speed"`
	Gain           float64      `json:"gain" yaml:"gain"`
	Threshold      float64      `json:"threshold" yaml:"threshold"`
	SearchTurn     float64      `json:"search_turn" yaml:"search_turn"`
	LostSpeedScale float64      `json:"lost_speed_scale" yaml:"lost_speed_scale"`
}

func DefaultLineFollowerConfig() LineFollowerConfig {
	return LineFollowerConfig{
		Sensor:         "line",
		Drive:          Differential{Left: "left", Right: "right"},
		ForwardSpeed:   0.4,
		Gain:           0.8,
		Threshold:      0.5,
		SearchTurn:     0.45,
		LostSpeedScale: 0.3,
	}
}

// LineFollower steers proportionally towards the centroid of a line array.
// When the line is lost it slows down and searches towards the side it was last seen on.
type LineFollower struct {
	cfg   LineFollowerConfig
	state lineState
}

type lineState struct {
	LastSide  int     `json:"last_side"`
	LastError float64 `json:"last_error"`
	Lost      int     `json:"lost_steps"`
}

func NewLineFollower(cfg LineFollowerConfig) *LineFollower {
	def := DefaultLineFollowerConfig()
	if cfg.Sensor == "" {
		cfg.Sensor = def.Sensor
	}
	if cfg.Drive.Left == "" || cfg.Drive.Right == "" {
		cfg.Drive = def.Drive
	}
	if cfg.ForwardSpeed == 0 {
		cfg.ForwardSpeed = def.ForwardSpeed
	}
	if cfg.Gain == 0 {
		cfg.Gain = def.Gain
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.SearchTurn == 0 {
		cfg.SearchTurn = def.SearchTurn
	}
	if cfg.LostSpeedScale == 0 {
		cfg.LostSpeedScale = def.LostSpeedScale
	}
	return &LineFollower{cfg: cfg, state: lineState{LastSide: 1}}
}

func (c *LineFollower) Step(r sim.Readings, _ float64) (sim.Commands, error) {
	reading, ok := r[c.cfg.Sensor]
	if !ok {
		return nil, fmt.Errorf("line follower: no reading from sensor %q", c.cfg.Sensor)
	}
	values := reading.Values
	if len(values) == 0 {
		values = []float64{reading.Value}
	}

	lineErr, seen := c.lineError(values)
	if !seen {
		c.state.Lost++
		turn := c.cfg.SearchTurn
		if c.state.LastSide < 0 {
			turn = -turn
		}
		return c.cfg.Drive.Mix(c.cfg.ForwardSpeed*c.cfg.LostSpeedScale, turn), nil
	}

	c.state.Lost = 0
	c.state.LastError = lineErr
	switch {
	case lineErr > 0:
		c.state.LastSide = 1
	case lineErr < 0:
		c.state.LastSide = -1
	}
	return c.cfg.Drive.Mix(c.cfg.ForwardSpeed, c.cfg.Gain*lineErr), nil
}

// lineError is the signal-weighted mean element offset in [-1, 1]; positive means the line is to the left.
func (c *LineFollower) lineError(values []float64) (float64, bool) {
	n := len(values)
	if n == 1 {
		return 0, values[0] >= c.cfg.Threshold
	}
	half := float64(n-1) / 2
	var weighted, total float64
	for i, v := range values {
		if v < c.cfg.Threshold {
			continue
		}
		weighted += (float64(i) - half) / half * v
		total += v
	}
	if total == 0 {
		return 0, false
	}
	return weighted / total, true
}

func (c *LineFollower) State() ([]byte, error) { return json.Marshal(c.state) }

func (c *LineFollower) RestoreState(data []byte) error {
	var st lineState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("line follower state: %w", err)
	}
	c.state = st
	return nil
}

func (c *LineFollower) Reset() { c.state = lineState{LastSide: 1} }

// LostSteps counts consecutive steps without a line.
func (c *LineFollower) LostSteps() int { return c.state.Lost }
