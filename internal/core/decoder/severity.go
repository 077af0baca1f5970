package decoder

// Severity is the qualitative status a packet type maps to.
type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityInfo     Severity = "info"
	SeverityMissing  Severity = "missing"
	SeverityWarning  Severity = "warning"
	SeverityReserved Severity = "reserved"
	SeverityLow      Severity = "low"
	SeverityCritical Severity = "critical"
)

// Packet types emitted by the tire sensors.
const (
	PacketNormal        byte = 0x01
	PacketInfo          byte = 0x02
	PacketMissing       byte = 0x03
	PacketWarning       byte = 0x04
	PacketWarningAlt    byte = 0x05
	PacketLowPressure   byte = 0x10
	PacketCriticalAlarm byte = 0x11
)

// SeverityOf maps a packet type to its severity. Unknown types are ok.
func SeverityOf(packetType byte) Severity {
	switch {
	case packetType == PacketNormal:
		return SeverityOK
	case packetType == PacketInfo:
		return SeverityInfo
	case packetType == PacketMissing:
		return SeverityMissing
	case packetType == PacketWarning || packetType == PacketWarningAlt:
		return SeverityWarning
	case packetType >= 0x06 && packetType <= 0x09:
		return SeverityReserved
	case packetType == PacketLowPressure:
		return SeverityLow
	case packetType == PacketCriticalAlarm:
		return SeverityCritical
	default:
		return SeverityOK
	}
}

// CarriesTelemetry reports whether frames of this type hold
// pressure/temperature/battery values.
func CarriesTelemetry(packetType byte) bool {
	return packetType == PacketNormal || packetType == PacketLowPressure || packetType == PacketCriticalAlarm
}
