package scene

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// FBX time units per second
const TimeUnitsPerSecond = 46186158000

func SecondsToTime(seconds float64) int64 {
	return int64(seconds*TimeUnitsPerSecond + 0.5*sign(seconds))
}

func TimeToSeconds(t int64) float64 {
	return float64(t) / TimeUnitsPerSecond
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

type Interpolation int

const (
	InterpolationConstant Interpolation = iota
	InterpolationLinear
	InterpolationCubic
)

type AnimKey struct {
	Time          float64
	Value         float64
	Interpolation Interpolation
}

type AnimCurve struct {
	Name string
	Keys []AnimKey
}

// AddKey inserts key keeping time order, key with the same time is replaced
func (c *AnimCurve) AddKey(time, value float64, interpolation Interpolation) {
	i := sort.Search(len(c.Keys), func(i int) bool { return c.Keys[i].Time >= time })
	key := AnimKey{Time: time, Value: value, Interpolation: interpolation}
	if i < len(c.Keys) && c.Keys[i].Time == time {
		c.Keys[i] = key
		return
	}
	c.Keys = append(c.Keys, AnimKey{})
	copy(c.Keys[i+1:], c.Keys[i:])
	c.Keys[i] = key
}

func (c *AnimCurve) Evaluate(time float64) float64 {
	if len(c.Keys) == 0 {
		return 0
	}
	if time <= c.Keys[0].Time {
		return c.Keys[0].Value
	}
	last := c.Keys[len(c.Keys)-1]
	if time >= last.Time {
		return last.Value
	}
	i := sort.Search(len(c.Keys), func(i int) bool { return c.Keys[i].Time > time })
	a, b := c.Keys[i-1], c.Keys[i]
	if a.Interpolation == InterpolationConstant {
		return a.Value
	}
	f := (time - a.Time) / (b.Time - a.Time)
	return a.Value + (b.Value-a.Value)*f
}

// Curve node channels
const (
	ChannelX = "d|X"
	ChannelY = "d|Y"
	ChannelZ = "d|Z"
)

var Channels = [3]string{ChannelX, ChannelY, ChannelZ}

func ChannelIndex(name string) (int, bool) {
	for i, c := range Channels {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

const (
	PropertyTranslation = "Lcl Translation"
	PropertyRotation    = "Lcl Rotation"
	PropertyScaling     = "Lcl Scaling"
)

type AnimCurveNode struct {
	// "T", "R" or "S"
	Name     string
	Target   *Node
	Property string
	Default  mgl64.Vec3
	// X, Y, Z curves, nil when channel is not animated
	Channels [3]*AnimCurve
	// names of connected channels other than X, Y, Z
	Unsupported []string
	// "node.property" destinations besides Target/Property
	ExtraTargets []string
}

func NewAnimCurveNode(name string, target *Node, property string) *AnimCurveNode {
	return &AnimCurveNode{Name: name, Target: target, Property: property}
}

func (cn *AnimCurveNode) Channel(i int) *AnimCurve {
	if cn.Channels[i] == nil {
		cn.Channels[i] = &AnimCurve{}
	}
	return cn.Channels[i]
}

// Times returns sorted union of key times of all channels
func (cn *AnimCurveNode) Times() []float64 {
	seen := make(map[float64]struct{})
	for _, c := range cn.Channels {
		if c == nil {
			continue
		}
		for _, k := range c.Keys {
			seen[k.Time] = struct{}{}
		}
	}
	times := make([]float64, 0, len(seen))
	for t := range seen {
		times = append(times, t)
	}
	sort.Float64s(times)
	return times
}

// Evaluate returns channel values at time, unanimated channels keep the default
func (cn *AnimCurveNode) Evaluate(time float64) mgl64.Vec3 {
	v := cn.Default
	for i, c := range cn.Channels {
		if c != nil && len(c.Keys) != 0 {
			v[i] = c.Evaluate(time)
		}
	}
	return v
}

type BlendMode int

const (
	BlendAdditive BlendMode = iota
	BlendOverride
	BlendOverridePassthrough
)

type AnimLayer struct {
	Name      string
	BlendMode BlendMode
	// percent
	Weight     float64
	CurveNodes []*AnimCurveNode
}

func NewAnimLayer(name string, mode BlendMode) *AnimLayer {
	return &AnimLayer{Name: name, BlendMode: mode, Weight: 100}
}

func (l *AnimLayer) AddCurveNode(cn *AnimCurveNode) *AnimCurveNode {
	l.CurveNodes = append(l.CurveNodes, cn)
	return cn
}

// CurveNode finds curve node animating property of target
func (l *AnimLayer) CurveNode(target *Node, property string) *AnimCurveNode {
	for _, cn := range l.CurveNodes {
		if cn.Target == target && cn.Property == property {
			return cn
		}
	}
	return nil
}

type AnimStack struct {
	Name   string
	Layers []*AnimLayer
}

func NewAnimStack(name string) *AnimStack {
	return &AnimStack{Name: name}
}

func (s *AnimStack) AddLayer(l *AnimLayer) *AnimLayer {
	s.Layers = append(s.Layers, l)
	return l
}

// TimeSpan returns first and last key time over all layers
func (s *AnimStack) TimeSpan() (start, stop float64) {
	first := true
	for _, l := range s.Layers {
		for _, cn := range l.CurveNodes {
			for _, t := range cn.Times() {
				if first || t < start {
					start = t
				}
				if first || t > stop {
					stop = t
				}
				first = false
			}
		}
	}
	return start, stop
}
