package decoder

import (
	"encoding/json"
	"log"
	"testing"

	"github.com/odin-detector/inaira-decoder/pco"
	"github.com/odin-detector/inaira-decoder/processor"
)

func newTestDecoder(t *testing.T) *Decoder {
	t.Helper()
	cam := pco.NewFakeCamera(pco.CameraInfo{Name: "pco.edge", DynamicResBits: 16})
	grab := pco.NewFakeGrabber(32, 24)
	pool := pco.NewFakeBufferPool(2, 20+32*24*2)
	ctrl, err := pco.NewController(0, cam, grab, pool, log.New(discardWriter{}, "", 0))
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return &Decoder{ctrl: ctrl, log: log.New(discardWriter{}, "", 0), prefix: "pco/"}
}

func newTestDecoderWithProcessor(t *testing.T) *Decoder {
	t.Helper()
	d := newTestDecoder(t)
	d.proc = processor.New(processor.NewFakeRuntime(nil), nil, log.New(discardWriter{}, "", 0))
	return d
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestDispatchConfigureCommand(t *testing.T) {
	d := newTestDecoder(t)

	req, _ := json.Marshal(Envelope{
		MsgType: TypeCmd,
		MsgVal:  MsgConfigure,
		MsgID:   7,
		Params:  json.RawMessage(`{"command":"connect"}`),
	})
	reply := d.dispatch(req)

	if reply["msg_type"] != TypeAck {
		t.Fatalf("reply msg_type = %v, want ack; reply=%v", reply["msg_type"], reply)
	}
	if d.ctrl.State().Current() != pco.Connected {
		t.Fatalf("controller state = %v, want connected", d.ctrl.State().Current())
	}
}

func TestDispatchConfigureProcessorRoutesToPlugin(t *testing.T) {
	d := newTestDecoderWithProcessor(t)

	req, _ := json.Marshal(Envelope{
		MsgType: TypeCmd,
		MsgVal:  MsgConfigure,
		Params:  json.RawMessage(`{"processor":{"send_results":true,"decode_header":true}}`),
	})
	reply := d.dispatch(req)

	if reply["msg_type"] != TypeAck {
		t.Fatalf("reply msg_type = %v, want ack; reply=%v", reply["msg_type"], reply)
	}
	if !d.proc.Config.SendResults || !d.proc.Config.DecodeHeader {
		t.Fatalf("processor config = %+v, want SendResults and DecodeHeader set", d.proc.Config)
	}
}

func TestDispatchConfigureProcessorWithoutPluginNacks(t *testing.T) {
	d := newTestDecoder(t)

	req, _ := json.Marshal(Envelope{
		MsgType: TypeCmd,
		MsgVal:  MsgConfigure,
		Params:  json.RawMessage(`{"processor":{"send_results":true}}`),
	})
	reply := d.dispatch(req)

	if reply["msg_type"] != TypeNack {
		t.Fatalf("reply msg_type = %v, want nack", reply["msg_type"])
	}
}

func TestDispatchConfigureIllegalCommandNacks(t *testing.T) {
	d := newTestDecoder(t)

	req, _ := json.Marshal(Envelope{
		MsgType: TypeCmd,
		MsgVal:  MsgConfigure,
		Params:  json.RawMessage(`{"command":"arm"}`),
	})
	reply := d.dispatch(req)

	if reply["msg_type"] != TypeNack {
		t.Fatalf("reply msg_type = %v, want nack", reply["msg_type"])
	}
	if _, ok := reply["error"]; !ok {
		t.Fatalf("nack reply missing error field: %v", reply)
	}
}

func TestDispatchStatusCarriesNameAndState(t *testing.T) {
	d := newTestDecoder(t)

	req, _ := json.Marshal(Envelope{MsgType: TypeCmd, MsgVal: MsgStatus})
	reply := d.dispatch(req)

	if reply["name"] != deviceName {
		t.Errorf("name = %v, want %v", reply["name"], deviceName)
	}
	if _, ok := nestedLookup(reply, "pco", "camera", "state"); !ok {
		t.Errorf("status reply missing pco/camera/state: %v", reply)
	}
}

func TestDispatchRequestConfiguration(t *testing.T) {
	d := newTestDecoder(t)

	req, _ := json.Marshal(Envelope{MsgType: TypeCmd, MsgVal: MsgRequestConfiguration})
	reply := d.dispatch(req)

	if _, ok := nestedLookup(reply, "pco", "num_frames"); !ok {
		t.Errorf("configuration reply missing pco/num_frames: %v", reply)
	}
}

func nestedLookup(doc map[string]interface{}, path ...string) (interface{}, bool) {
	var cur interface{} = doc
	for _, p := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func TestDispatchMalformedJSONNacks(t *testing.T) {
	d := newTestDecoder(t)

	reply := d.dispatch([]byte("not json"))
	if reply["msg_type"] != TypeNack {
		t.Fatalf("reply msg_type = %v, want nack", reply["msg_type"])
	}
}

func TestDispatchUnknownMsgValNacks(t *testing.T) {
	d := newTestDecoder(t)

	req, _ := json.Marshal(Envelope{MsgType: TypeCmd, MsgVal: "frobnicate"})
	reply := d.dispatch(req)
	if reply["msg_type"] != TypeNack {
		t.Fatalf("reply msg_type = %v, want nack", reply["msg_type"])
	}
}
