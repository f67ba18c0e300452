package decoder

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/pebbe/zmq4"

	"github.com/odin-detector/inaira-decoder/pco"
	"github.com/odin-detector/inaira-decoder/processor"
)

// deviceName is reported in every status reply's "name" field, per
// spec.md §6.
const deviceName = "PcoCameraLinkFrameDecoder"

// Decoder is the control-channel façade: a ZMQ REP socket serving the
// camera control protocol described in spec.md §6, dispatching into a
// pco.Controller. Grounded on cmd/lowfssrv's REP-socket serve loop.
type Decoder struct {
	sock *zmq4.Socket
	ctrl *pco.Controller
	proc *processor.Plugin
	log  *log.Logger

	prefix string
}

// New binds a REP socket at addr and returns a Decoder dispatching
// camera commands into ctrl and processor commands into proc. prefix
// is prepended to every status/configuration key in replies, per
// spec.md §6 (e.g. "pco/"). proc may be nil if no processor plugin is
// attached, in which case "processor" configure params are rejected.
func New(addr string, ctrl *pco.Controller, proc *processor.Plugin, prefix string, logger *log.Logger) (*Decoder, error) {
	ctx, err := zmq4.NewContext()
	if err != nil {
		return nil, err
	}
	sock, err := ctx.NewSocket(zmq4.REP)
	if err != nil {
		return nil, err
	}
	if err := sock.Bind(addr); err != nil {
		sock.Close()
		return nil, err
	}
	return &Decoder{sock: sock, ctrl: ctrl, proc: proc, log: logger, prefix: prefix}, nil
}

// Close releases the REP socket.
func (d *Decoder) Close() error {
	return d.sock.Close()
}

// Serve blocks, handling one request per iteration, until the socket
// is closed or recv fails. Each request runs on this single control
// thread, satisfying the ParamContainer single-thread-access
// requirement of spec.md §5.
func (d *Decoder) Serve() {
	for {
		raw, err := d.sock.RecvBytes(0)
		if err != nil {
			d.log.Printf("decoder: recv failed, stopping serve loop: %v", err)
			return
		}

		reply := d.dispatch(raw)

		b, err := json.Marshal(reply)
		if err != nil {
			d.log.Printf("decoder: failed to encode reply: %v", err)
			b = []byte(`{"msg_type":"nack","error":"internal encoding failure"}`)
		}
		if _, err := d.sock.SendBytes(b, 0); err != nil {
			d.log.Printf("decoder: send failed: %v", err)
			return
		}
	}
}

// dispatch parses raw as an Envelope and routes it to the matching
// handler, returning the full reply document.
func (d *Decoder) dispatch(raw []byte) map[string]interface{} {
	var req Envelope
	if err := json.Unmarshal(raw, &req); err != nil {
		return envelopeToDoc(Envelope{MsgType: TypeNack, Error: "malformed request: " + err.Error()})
	}

	switch req.MsgVal {
	case MsgConfigure:
		return envelopeToDoc(d.handleConfigure(req))
	case MsgRequestConfiguration:
		return d.handleRequestConfiguration(req)
	case MsgStatus:
		return d.handleStatus(req)
	default:
		return envelopeToDoc(nack(req, errUnrecognisedMsgVal(req.MsgVal)))
	}
}

func (d *Decoder) handleConfigure(req Envelope) Envelope {
	var params configureParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nack(req, err)
		}
	}

	if len(params.Camera) > 0 {
		if err := d.ctrl.UpdateConfiguration(params.Camera); err != nil {
			return nack(req, err)
		}
	}
	if len(params.Processor) > 0 {
		if d.proc == nil {
			return nack(req, errNoProcessorAttached)
		}
		if err := d.proc.ConfigureDoc(params.Processor); err != nil {
			return nack(req, err)
		}
	}
	if params.Command != "" {
		if err := d.ctrl.ExecuteCommand(params.Command); err != nil {
			return nack(req, err)
		}
	}
	return ack(req)
}

func (d *Decoder) handleRequestConfiguration(req Envelope) map[string]interface{} {
	doc := envelopeToDoc(ack(req))
	if err := d.ctrl.GetConfiguration(doc, d.prefix); err != nil {
		return envelopeToDoc(nack(req, err))
	}
	return doc
}

func (d *Decoder) handleStatus(req Envelope) map[string]interface{} {
	doc := envelopeToDoc(ack(req))
	doc["name"] = deviceName
	if err := d.ctrl.GetStatus(doc, d.prefix); err != nil {
		return envelopeToDoc(nack(req, err))
	}
	return doc
}

// envelopeToDoc flattens an Envelope's non-empty fields into a plain
// map, so that status/configuration replies can merge arbitrary
// binding keys alongside the envelope fields at the top level.
func envelopeToDoc(e Envelope) map[string]interface{} {
	doc := map[string]interface{}{"msg_type": e.MsgType}
	if e.MsgVal != "" {
		doc["msg_val"] = e.MsgVal
	}
	if e.MsgID != 0 {
		doc["msg_id"] = e.MsgID
	}
	if e.Error != "" {
		doc["error"] = e.Error
	}
	return doc
}

type unrecognisedMsgValError struct{ val string }

func (e *unrecognisedMsgValError) Error() string {
	return "unrecognised msg_val: " + e.val
}

func errUnrecognisedMsgVal(val string) error {
	return &unrecognisedMsgValError{val: val}
}

var errNoProcessorAttached = errors.New("decoder: no processor plugin attached")
