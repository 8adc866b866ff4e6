package pcap

// scaleTicks converts a raw 64-bit tick count into microseconds since
// the Unix epoch, given the interface tick resolution in ticks per
// second. Returns NoTimestamp when the resolution is unknown.
//
// Some captures store a full time since 1970 with nanosecond units, so
// the value can be close to the 64-bit maximum. The exact integer path
// is guarded against multiplication overflow; the floating-point
// fallback trades precision for range, which is accepted behavior for
// such extreme tick values.
func scaleTicks(ticks int64, units int64) int64 {
	switch {
	case units == 0:
		return NoTimestamp
	case units == microPerSecond:
		return ticks
	case units > microPerSecond && units%microPerSecond == 0:
		return ticks / (units / microPerSecond)
	case units < microPerSecond && microPerSecond%units == 0:
		return ticks * (microPerSecond / units)
	default:
		if prod, ok := mul64(ticks, microPerSecond); ok {
			return prod / units
		}
		return int64((float64(ticks) * float64(microPerSecond)) / float64(units))
	}
}

// classicTimestamp converts the two 32-bit fields of a classic pcap
// packet header. The resolution comes from the file magic and is never
// zero in this format.
func classicTimestamp(seconds, ticks uint32, units int64) int64 {
	return int64(seconds)*microPerSecond + int64(ticks)*microPerSecond/units
}

// mul64 multiplies and reports whether the product did not overflow.
func mul64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	if p/b != a {
		return 0, false
	}
	return p, true
}
