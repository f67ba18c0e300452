// Package decoder implements the control-channel façade: it parses
// the JSON command envelopes described in spec.md §6, dispatches them
// into the pco.Controller, and replies on the same ZMQ REP socket the
// request arrived on, per the cmd/lowfssrv pattern of pairing a ZMQ
// control channel with a goji admin mux.
package decoder

import "encoding/json"

// Envelope is the outer shape of every control-channel message, both
// requests and replies, per spec.md §6.
type Envelope struct {
	MsgType string          `json:"msg_type"`
	MsgVal  string          `json:"msg_val"`
	MsgID   int             `json:"msg_id,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Recognised msg_val values the core dispatches on.
const (
	MsgConfigure            = "configure"
	MsgRequestConfiguration = "request_configuration"
	MsgStatus               = "status"
)

// Recognised msg_type values.
const (
	TypeCmd  = "cmd"
	TypeAck  = "ack"
	TypeNack = "nack"
)

// configureParams is the body of a "configure" request: a set of
// camera bindings to apply, a set of processor bindings to apply,
// and/or a state-machine command name.
type configureParams struct {
	Camera    map[string]interface{} `json:"camera,omitempty"`
	Processor map[string]interface{} `json:"processor,omitempty"`
	Command   string                 `json:"command,omitempty"`
}

// ack builds a success reply echoing req's msg_id.
func ack(req Envelope) Envelope {
	return Envelope{MsgType: TypeAck, MsgVal: req.MsgVal, MsgID: req.MsgID}
}

// nack builds a failure reply echoing req's msg_id, carrying err's text.
func nack(req Envelope, err error) Envelope {
	return Envelope{MsgType: TypeNack, MsgVal: req.MsgVal, MsgID: req.MsgID, Error: err.Error()}
}
