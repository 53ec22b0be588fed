package midi

// Audio class subclasses.
const (
	SubclassAudioControl  = 0x01
	SubclassMIDIStreaming = 0x03
)

// Class-specific descriptor subtypes.
const (
	SubtypeHeader    = 0x01 // AC and MS interface header
	SubtypeInJack    = 0x02
	SubtypeOutJack   = 0x03
	SubtypeMSGeneral = 0x01 // MS endpoint
)

// Jack types.
const (
	JackEmbedded = 0x01
	JackExternal = 0x02
)

// Class release numbers (BCD).
const (
	ADCVersion = 0x0100
	MSCVersion = 0x0100
)

// Jack IDs of the adapter topology. The host writes to embedded IN jack 1,
// which feeds external OUT jack 4 (the serial output). External IN jack 2
// (the serial input) feeds embedded OUT jack 3, which the host reads.
const (
	JackEmbeddedIn  = 1
	JackExternalIn  = 2
	JackEmbeddedOut = 3
	JackExternalOut = 4
)

// Default endpoint layout.
const (
	DefaultOutEndpoint   = 0x01
	DefaultInEndpoint    = 0x81
	DefaultMaxPacketSize = 8
	DefaultInterval      = 10
)

// classResponseSize is the length of the data stage returned for
// device-to-host class requests.
const classResponseSize = 7
