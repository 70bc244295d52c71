package logic

import "time"

// SpeedOfSoundCmPerSec is 343.2 m/s at 20 °C.
const SpeedOfSoundCmPerSec = 34320

// Default calibration distances.
const (
	DefaultMinCm    = 3
	DefaultClosedCm = DefaultMinCm + 2
	DefaultDrawerCm = 50
)

// CmToMicroseconds converts a distance in cm to the time sound needs to
// travel it. Integer division truncates.
func CmToMicroseconds(cm uint32) uint32 {
	return uint32(uint64(1_000_000) * uint64(cm) / SpeedOfSoundCmPerSec)
}

// Calibration holds the echo thresholds of a drawer sensor. All values are
// round trip times in microseconds.
type Calibration struct {
	MinUs    uint32
	ClosedUs uint32
	MaxUs    uint32
}

// NewCalibration builds the thresholds from the minimum valid distance, the
// closed reference distance and the drawer travel length, all in cm.
// Maximum distance is minCm+drawerCm.
func NewCalibration(minCm, closedCm, drawerCm uint32) Calibration {
	return Calibration{
		MinUs:    CmToMicroseconds(2 * minCm),
		ClosedUs: CmToMicroseconds(2 * closedCm),
		MaxUs:    CmToMicroseconds(2 * (minCm + drawerCm)),
	}
}

// DefaultCalibration is 3 cm minimum, 5 cm closed, 50 cm travel:
// 174 µs, 291 µs and 3088 µs.
func DefaultCalibration() Calibration {
	return NewCalibration(DefaultMinCm, DefaultClosedCm, DefaultDrawerCm)
}

// Valid reports whether the thresholds are strictly ordered.
func (c Calibration) Valid() bool {
	return c.MinUs < c.ClosedUs && c.ClosedUs < c.MaxUs
}

// EchoWindow is how long to wait for a complete echo after the trigger.
func (c Calibration) EchoWindow(margin time.Duration) time.Duration {
	return time.Duration(c.MaxUs)*time.Microsecond + margin
}
