package enum

type Side uint8

const (
	_side_beg Side = iota
	SideBuy
	SideSell
	_side_end
)

func (s Side) IsAvailable() bool {
	return s > _side_beg && s < _side_end
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// ParseSide maps the exchange wire value to a Side.
func ParseSide(s string) Side {
	switch s {
	case "BUY":
		return SideBuy
	case "SELL":
		return SideSell
	default:
		return _side_beg
	}
}
