package dm

// FirmwareState is the download state of the device firmware.
type FirmwareState int

const (
	FirmwareIdle FirmwareState = iota
	FirmwareDownloading
	FirmwareDownloaded
)

func (s FirmwareState) String() string {
	switch s {
	case FirmwareIdle:
		return "Idle"
	case FirmwareDownloading:
		return "Downloading"
	case FirmwareDownloaded:
		return "Downloaded"
	}
	return "Unknown"
}

// UpdateStatus is the outcome of the last firmware update.
type UpdateStatus int

const (
	UpdateSuccess UpdateStatus = iota
	UpdateInProgress
	UpdateOutOfMemory
	UpdateConnectionLost
	UpdateVerificationFailed
	UpdateUnsupportedImage
	UpdateInvalidURL
)

func (s UpdateStatus) String() string {
	switch s {
	case UpdateSuccess:
		return "Success"
	case UpdateInProgress:
		return "InProgress"
	case UpdateOutOfMemory:
		return "OutOfMemory"
	case UpdateConnectionLost:
		return "ConnectionLost"
	case UpdateVerificationFailed:
		return "VerificationFailed"
	case UpdateUnsupportedImage:
		return "UnsupportedImage"
	case UpdateInvalidURL:
		return "InvalidURL"
	}
	return "Unknown"
}

// Response codes used on the management response topic.
const (
	RCSuccess       = 200
	RCAccepted      = 202
	RCUpdateSuccess = 204
	RCBadRequest    = 400
	RCNotSupported  = 501
)

// minLifetime is the shortest lifetime the platform accepts. Shorter
// values mean the device never expires.
const minLifetime = 3600

type (
	// Firmware describes the installed or pending firmware image.
	Firmware struct {
		Version         string        `json:"version,omitempty"`
		Name            string        `json:"name,omitempty"`
		URI             string        `json:"uri,omitempty"`
		Verifier        string        `json:"verifier,omitempty"`
		State           FirmwareState `json:"state"`
		UpdateStatus    UpdateStatus  `json:"updateStatus"`
		UpdatedDateTime string        `json:"updatedDateTime,omitempty"`
	}

	// Location is the last known position of the device.
	Location struct {
		Latitude         float64 `json:"latitude"`
		Longitude        float64 `json:"longitude"`
		Elevation        float64 `json:"elevation"`
		Accuracy         float64 `json:"accuracy"`
		MeasuredDateTime string  `json:"measuredDateTime,omitempty"`
		UpdatedDateTime  string  `json:"updatedDateTime,omitempty"`
	}

	// State is a snapshot of a managed client.
	State struct {
		Lifetime                int
		SupportsDeviceActions   bool
		SupportsFirmwareActions bool
		Observe                 bool
		Metadata                string
		DeviceInfo              string
		RequestID               string
		Firmware                Firmware
		Location                Location
		Managed                 bool
	}
)
