package repository

// Timeframe identifies one of the three candle resolutions the scanner
// evaluates per symbol.
type Timeframe string

const (
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
)

// Minutes returns the bucket length in minutes, or 0 for an unknown
// timeframe.
func (tf Timeframe) Minutes() int {
	switch tf {
	case TF15m:
		return 15
	case TF1h:
		return 60
	case TF4h:
		return 240
	default:
		return 0
	}
}

// IsValidTimeframe reports whether tf is one of the supported
// resolutions.
func IsValidTimeframe(tf Timeframe) bool { return tf.Minutes() > 0 }
