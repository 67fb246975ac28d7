package protocol

// GATT characteristic UUIDs of the IoTEgg service when it is served by a
// host controller. They stand in for HandleCommandIn and HandleTelemetryOut.
const (
	CommandCharUUID   = "195ae58b-437a-489b-b0cd-b7c9c394bae4"
	TelemetryCharUUID = "195ae58c-437a-489b-b0cd-b7c9c394bae4"
)
