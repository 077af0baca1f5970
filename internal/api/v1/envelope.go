package v1

// Commands used in gateway control responses.
const (
	CommandInitResult   = "PCAN_INIT_RESULT"
	CommandUninitResult = "PCAN_UNINIT_RESULT"
	CommandData         = "DATA"
	CommandLoadData     = "LOAD_DATA"
)

const (
	StatusOK    = "ok"
	StatusError = "error"

	PacketSuccess = "success"
	PacketFailed  = "failed"
)

// CommandResponse is the envelope the dashboard expects from every
// gateway control call.
type CommandResponse struct {
	Command string          `json:"command"`
	Payload ResponsePayload `json:"payload"`
}

type ResponsePayload struct {
	Result       Result      `json:"result"`
	Data         interface{} `json:"data"`
	PacketStatus string      `json:"packet_status"`
}

type Result struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewCommandResponse builds an envelope; ok selects both the result
// status and the packet status.
func NewCommandResponse(command string, ok bool, message string, data interface{}) CommandResponse {
	res := CommandResponse{Command: command}
	res.Payload.Result.Message = message
	res.Payload.Data = data
	if data == nil {
		res.Payload.Data = ""
	}
	if ok {
		res.Payload.Result.Status = StatusOK
		res.Payload.PacketStatus = PacketSuccess
	} else {
		res.Payload.Result.Status = StatusError
		res.Payload.PacketStatus = PacketFailed
	}
	return res
}
