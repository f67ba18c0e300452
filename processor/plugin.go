package processor

import (
	"encoding/json"
	"log"
	"time"

	"github.com/pebbe/zmq4"

	"github.com/odin-detector/inaira-decoder/frame"
)

// Config holds the processor-side configuration keys listed in
// spec.md §6: model path and layer names, header-decode and publish
// toggles, and the result socket address.
type Config struct {
	ModelPath        string `json:"model_path,omitempty"`
	ModelInputLayer  string `json:"model_input_layer,omitempty"`
	ModelOutputLayer string `json:"model_output_layer,omitempty"`
	DecodeHeader     bool   `json:"decode_header,omitempty"`
	ResultSocketAddr string `json:"result_socket_addr,omitempty"`
	SendResults      bool   `json:"send_results,omitempty"`
	SendImage        bool   `json:"send_image,omitempty"`

	// DumpFits enables writing each processed frame to a FITS file via
	// the attached Recorder, per the dump_fits configuration key.
	DumpFits bool `json:"dump_fits,omitempty"`
}

// resultMessage is the JSON payload published per spec.md §4.5.
type resultMessage struct {
	FrameNumber uint32    `json:"frame_number"`
	ProcessTime uint32    `json:"process_time"`
	Result      []float32 `json:"result"`
}

// imageHeaderMessage describes the image in the part that precedes the
// raw image bytes of the published multipart message, when SendImage
// and DecodeHeader are set.
type imageHeaderMessage struct {
	DatasetName string `json:"dataset_name"`
	DataType    string `json:"data_type"`
	FrameNumber uint32 `json:"frame_number"`
	Dimensions  [2]int `json:"dimensions"`
	Compression string `json:"compression"`
}

// Plugin is the processor plugin contract implementation. It decodes
// the FrameHeader embedded in every buffer, runs the model on the
// image portion, tracks lifetime statistics, classifies the frame,
// and optionally publishes a result (and the image) over a ZMQ PUB
// socket, per spec.md §4.5.
type Plugin struct {
	Config Config

	runtime Runtime
	log     *log.Logger
	stats   RunningStats
	rec     *Recorder

	pubSock *zmq4.Socket
	pubAddr string
}

// New returns a Plugin driving runtime, with a Recorder attached for
// optional FITS capture.
func New(runtime Runtime, rec *Recorder, logger *log.Logger) *Plugin {
	return &Plugin{runtime: runtime, rec: rec, log: logger}
}

// Configure applies cfg, loading the model if the path changed, and
// rebinding the result socket if its address changed. Per spec.md
// §4.5, rebinding releases the prior bind.
func (p *Plugin) Configure(cfg Config) error {
	if cfg.ModelPath != "" && cfg.ModelPath != p.Config.ModelPath {
		if err := p.runtime.LoadModel(cfg.ModelPath); err != nil {
			return err
		}
	}
	if cfg.ResultSocketAddr != "" && cfg.ResultSocketAddr != p.pubAddr {
		if err := p.rebindResultSocket(cfg.ResultSocketAddr); err != nil {
			return err
		}
	}
	if p.rec != nil {
		p.rec.Enabled = cfg.DumpFits
	}
	p.Config = cfg
	return nil
}

// ConfigureDoc applies a partial JSON document of the keys listed in
// spec.md §6 onto a copy of the plugin's current Config — only keys
// present in doc are changed — mirroring CameraConfig.UpdateDoc's
// partial-update semantics for the control channel's processor
// configuration, and then calls Configure with the merged result.
func (p *Plugin) ConfigureDoc(doc map[string]interface{}) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	cfg := p.Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return err
	}
	return p.Configure(cfg)
}

func (p *Plugin) rebindResultSocket(addr string) error {
	if p.pubSock != nil {
		p.pubSock.Close()
		p.pubSock = nil
	}
	ctx, err := zmq4.NewContext()
	if err != nil {
		return err
	}
	sock, err := ctx.NewSocket(zmq4.PUB)
	if err != nil {
		return err
	}
	if err := sock.Bind(addr); err != nil {
		sock.Close()
		return err
	}
	p.pubSock = sock
	p.pubAddr = addr
	return nil
}

// ResetStatistics clears the lifetime running mean, implementing the
// reset_statistics configuration action.
func (p *Plugin) ResetStatistics() {
	p.stats.Reset()
}

// Stats exposes the running mean and sample count for status
// reporting.
func (p *Plugin) Stats() ([]float64, uint64) {
	return p.stats.Mean(), p.stats.Count()
}

// ProcessFrame consumes one borrowed buffer whose memory starts with
// a FrameHeader, per spec.md §4.5: decode, run inference, classify,
// optionally publish and record.
func (p *Plugin) ProcessFrame(buf []byte) error {
	h, err := frame.ParseHeader(buf)
	if err != nil {
		return err
	}
	image := buf[frame.HeaderSize : frame.HeaderSize+int(h.Size)]

	input := Tensor{
		Name: p.Config.ModelInputLayer,
		Dims: []int{int(h.Height), int(h.Width)},
		Data: bytesToFloat32(h.DataType, image),
	}

	start := time.Now()
	output, err := p.runtime.Run(p.Config.ModelInputLayer, input, p.Config.ModelOutputLayer)
	if err != nil {
		return err
	}
	elapsedMs := uint32(time.Since(start).Milliseconds())

	p.stats.Observe(output.Data)

	classIndex, _ := Argmax(output.Data)
	label := ClassLabel(classIndex)
	datasetName := "defective"
	if label == "Good" {
		datasetName = "good"
	}

	if p.rec != nil {
		if err := p.rec.Write(h, label, image); err != nil {
			p.log.Printf("processor: FITS recorder write failed: %v", err)
		}
	}

	if p.Config.SendResults || p.Config.SendImage {
		if err := p.publish(h, elapsedMs, output.Data, datasetName, image); err != nil {
			p.log.Printf("processor: publish failed: %v", err)
		}
	}
	return nil
}

// publish sends the frame's result and/or image as a single ZMQ
// multipart message: a result part when SendResults is set, followed
// by an image-header part and the raw image bytes when SendImage is
// set, per spec.md §6 ("a second and third part"). DecodeHeader gates
// the image-header metadata copy; without it there is no header to
// describe the image with, so the image part is skipped.
func (p *Plugin) publish(h frame.Header, processTimeMs uint32, result []float32, datasetName string, image []byte) error {
	if p.pubSock == nil {
		return nil
	}

	var parts [][]byte
	if p.Config.SendResults {
		b, err := json.Marshal(resultMessage{FrameNumber: h.FrameNumber, ProcessTime: processTimeMs, Result: result})
		if err != nil {
			return err
		}
		parts = append(parts, b)
	}
	if p.Config.SendImage {
		if !p.Config.DecodeHeader {
			p.log.Printf("processor: send_image requires decode_header, frame %d not published", h.FrameNumber)
		} else {
			hdr := imageHeaderMessage{
				DatasetName: datasetName,
				DataType:    h.DataType.String(),
				FrameNumber: h.FrameNumber,
				Dimensions:  [2]int{int(h.Height), int(h.Width)},
				Compression: "none",
			}
			hb, err := json.Marshal(hdr)
			if err != nil {
				return err
			}
			parts = append(parts, hb, image)
		}
	}

	for i, part := range parts {
		flag := zmq4.SNDMORE
		if i == len(parts)-1 {
			flag = 0
		}
		if _, err := p.pubSock.SendBytes(part, flag); err != nil {
			return err
		}
	}
	return nil
}

// bytesToFloat32 widens raw little-endian pixel bytes into float32s
// for the tensor the ML runtime consumes. Only Raw16 (the PCO
// default) and Raw8 are widened directly; other data types are
// assumed pre-converted upstream.
func bytesToFloat32(t frame.DataType, raw []byte) []float32 {
	switch t {
	case frame.Raw8:
		out := make([]float32, len(raw))
		for i, b := range raw {
			out[i] = float32(b)
		}
		return out
	case frame.Raw16:
		out := make([]float32, len(raw)/2)
		for i := range out {
			v := uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
			out[i] = float32(v)
		}
		return out
	default:
		return nil
	}
}
