package toolpath

// DefaultTolerance is the distance below which consecutive vertices are
// treated as duplicates.
const DefaultTolerance = 0.001

type Params struct {
	PrintSpeed      float64 `yaml:"print_speed"`
	TravelSpeed     float64 `yaml:"travel_speed"`
	RetractionSpeed float64 `yaml:"retraction_speed"`

	ExtrusionRate      float64 `yaml:"extrusion_rate"`
	InitExtrusion      float64 `yaml:"init_extrusion"`
	RetractionConstant float64 `yaml:"retraction"`

	LayerHeight float64 `yaml:"layer_height"`
	LineWidth   float64 `yaml:"line_width"`

	RetractExtension         float64 `yaml:"retract_extension"`
	CurveExtensionRetraction bool    `yaml:"curve_extension_retraction"`
	ZHop                     float64 `yaml:"z_hop"`

	FloorLayerCount int  `yaml:"floor_layers"`
	PauseAfterFloor bool `yaml:"pause_after_floor"`
	PauseTime       int  `yaml:"pause_time"` // ms

	Tolerance float64 `yaml:"tolerance"`
}

// FeedRate picks the feed for a move from its kind. The first extrusion
// move of a path runs at half of this.
func (opt Params) FeedRate(kind MoveKind) float64 {
	switch kind {
	case Travel:
		return opt.TravelSpeed
	case Retract, ZHop, RetractZHop:
		return opt.RetractionSpeed
	default:
		return opt.PrintSpeed
	}
}

func (opt Params) tolerance() float64 {
	if opt.Tolerance > 0 {
		return opt.Tolerance
	}
	return DefaultTolerance
}

func (opt Params) pauseScheduled(layer int) bool {
	return opt.PauseAfterFloor && opt.FloorLayerCount > 0 && layer == opt.FloorLayerCount
}
