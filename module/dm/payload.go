package dm

import "encoding/json"

// Field names the platform uses inside d.fields.
const (
	fieldFirmware   = "mgmt.firmware"
	fieldLocation   = "location"
	fieldMetadata   = "metadata"
	fieldDeviceInfo = "deviceInfo"
)

type (
	// request is any platform to device management message.
	request struct {
		RC    *int   `json:"rc,omitempty"`
		ReqID string `json:"reqId"`
		D     struct {
			Fields []requestField `json:"fields"`
		} `json:"d"`
	}

	requestField struct {
		Field string          `json:"field"`
		Value json.RawMessage `json:"value,omitempty"`
	}

	response struct {
		RC    int           `json:"rc"`
		ReqID string        `json:"reqId"`
		D     *responseData `json:"d,omitempty"`
	}

	responseData struct {
		Fields []fieldValue `json:"fields"`
	}

	fieldValue struct {
		Field string `json:"field"`
		Value any    `json:"value"`
	}

	firmwareStatus struct {
		State        FirmwareState `json:"state"`
		UpdateStatus UpdateStatus  `json:"updateStatus"`
	}

	notification struct {
		D fieldValue `json:"d"`
	}

	manageRequest struct {
		D     manageData `json:"d"`
		ReqID string     `json:"reqId"`
	}

	manageData struct {
		Lifetime   int             `json:"lifetime"`
		Supports   supports        `json:"supports"`
		DeviceInfo json.RawMessage `json:"deviceInfo"`
		Metadata   json.RawMessage `json:"metadata"`
	}

	supports struct {
		DeviceActions   bool `json:"deviceActions"`
		FirmwareActions bool `json:"firmwareActions"`
	}

	reqOnly struct {
		ReqID string `json:"reqId"`
	}

	withData struct {
		D     any    `json:"d"`
		ReqID string `json:"reqId"`
	}

	errorCode struct {
		ErrorCode int `json:"errorCode"`
	}

	// LogEntry is one diagnostic log record sent to the platform.
	LogEntry struct {
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
		Data      string `json:"data"`
		Severity  int    `json:"severity"`
	}
)

// hasField reports whether the request names field.
func (r *request) hasField(field string) bool {
	for _, f := range r.D.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// rawObject returns s as a JSON value, or an empty object when s is empty.
func rawObject(s string) json.RawMessage {
	if s == "" {
		return json.RawMessage("{}")
	}
	return json.RawMessage(s)
}
