// Command inairadecoder runs the PCO CameraLink decoder and its
// attached ML frame processor, wiring together package pco's camera
// controller, package decoder's ZMQ control channel, package
// processor's inference pipeline, and a read-only goji-based admin
// HTTP mux, following the wiring style of cmd/lowfssrv.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/cenkalti/backoff"
	"goji.io"

	"github.com/odin-detector/inaira-decoder/decoder"
	"github.com/odin-detector/inaira-decoder/internal/obslog"
	"github.com/odin-detector/inaira-decoder/internal/procconfig"
	"github.com/odin-detector/inaira-decoder/pco"
	"github.com/odin-detector/inaira-decoder/processor"
	"github.com/odin-detector/inaira-decoder/server"
)

func main() {
	configPath := flag.String("config", "inairadecoder.yml", "path to the YAML process configuration file")
	sim := flag.Bool("sim", false, "use an in-process simulated camera, grabber and buffer pool instead of real hardware")
	prefix := flag.String("prefix", "pco/", "key prefix applied to every configuration/status binding in control-channel replies")
	verifyBCD := flag.Uint64("verify-bcd", 0, "decode the given value as a PCO BCD-encoded image number and exit, without starting the decoder")
	flag.Parse()

	if *verifyBCD != 0 {
		fmt.Println(pco.DecodeBCDImageNumber(uint32(*verifyBCD)))
		os.Exit(0)
	}

	logger := obslog.Default("inairadecoder")

	loader, err := procconfig.NewLoader(*configPath, logger)
	if err != nil {
		logger.Fatalf("loading configuration: %v", err)
	}
	cfg := loader.Config()
	if cfg.LogFile != "" {
		logger = obslog.New("inairadecoder", obslog.RotationConfig{
			Filename:   cfg.LogFile,
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		})
	}

	camera, grabber, pool := buildDrivers(*sim, logger)

	ctrl, err := connectWithRetry(cfg.CameraIndex, camera, grabber, pool, logger, *sim)
	if err != nil {
		logger.Fatalf("controller bring-up failed: %v", err)
	}
	ctrl.StartAcquisitionLoop()

	runtime := processor.NewFakeRuntime(nil)
	proc := processor.New(runtime, &processor.Recorder{Root: cfg.FramesDir, Prefix: "frame_"}, logger)
	if err := proc.Configure(processor.Config{
		ModelPath:        cfg.ModelPath,
		ModelInputLayer:  "input",
		ModelOutputLayer: "output",
		ResultSocketAddr: cfg.ResultSocketAddr,
		SendResults:      true,
		DumpFits:         cfg.DumpFits,
	}); err != nil {
		logger.Fatalf("configuring processor: %v", err)
	}

	dec, err := decoder.New(cfg.CtrlChannelAddr, ctrl, proc, *prefix, logger)
	if err != nil {
		logger.Fatalf("binding control channel: %v", err)
	}

	rt := server.RouteTable{
		"image-width":  reportInt(func() int { return ctrl.GetImageWidth() }),
		"image-height": reportInt(func() int { return ctrl.GetImageHeight() }),
		"status":       reportDoc(*prefix, func(doc map[string]interface{}) error { return ctrl.GetStatus(doc, *prefix) }),
		"config":       reportDoc(*prefix, func(doc map[string]interface{}) error { return ctrl.GetConfiguration(doc, *prefix) }),
	}
	srv := &server.Server{RouteTable: rt}
	mux := goji.NewMux()
	srv.BindRoutes(mux, "/pco")

	go func() {
		logger.Printf("admin http listening on %s", cfg.AdminHTTPAddr)
		if err := http.ListenAndServe(cfg.AdminHTTPAddr, mux); err != nil {
			logger.Printf("admin http server stopped: %v", err)
		}
	}()

	logger.Printf("control channel listening on %s", cfg.CtrlChannelAddr)
	dec.Serve()
}

// buildDrivers returns the camera/grabber/pool triple for sim mode
// (FakeCamera/FakeGrabber/FakeBufferPool, per spec.md §1's out-of-scope
// PCO SDK) or logs a fatal error for real hardware, since the real
// CPco_com_clhs/CPco_grab_clhs bindings are out of scope of this
// module and no implementation of CameraDriver/GrabberDriver backing
// real hardware is provided here.
func buildDrivers(sim bool, logger *log.Logger) (pco.CameraDriver, pco.GrabberDriver, pco.BufferPool) {
	if !sim {
		logger.Fatalf("real hardware driver not built into this binary; rerun with -sim")
	}
	camera := pco.NewFakeCamera(pco.CameraInfo{Name: "pco.edge CLHS (simulated)", DynamicResBits: 16, SensorWidthPx: 2048, SensorHeightPx: 2048})
	grabber := pco.NewFakeGrabber(2048, 2048)
	pool := pco.NewFakeBufferPool(8, 20+2048*2048*2)
	return camera, grabber, pool
}

// connectWithRetry retries pco.NewController's bring-up sequence with
// a bounded exponential backoff, per spec.md §9's open question on
// connect-failure handling: real hardware may not be powered on at
// process start, so the first few bring-up attempts are expected to
// fail transiently.
func connectWithRetry(cameraIndex int, camera pco.CameraDriver, grabber pco.GrabberDriver, pool pco.BufferPool, logger *log.Logger, sim bool) (*pco.Controller, error) {
	var ctrl *pco.Controller
	operation := func() error {
		c, err := pco.NewController(cameraIndex, camera, grabber, pool, logger)
		if err != nil {
			logger.Printf("controller bring-up failed, retrying: %v", err)
			return err
		}
		ctrl = c
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	if sim {
		// the simulated driver never fails bring-up; don't wait out a
		// full backoff schedule if it somehow does.
		b.MaxElapsedTime = time.Second
	}
	if err := backoff.Retry(operation, b); err != nil {
		return nil, err
	}
	return ctrl, nil
}

func reportInt(f func() int) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(strconv.Itoa(f())))
	}
}

// reportDoc builds a read-only admin handler around one of the
// controller's doc-encoding methods (GetStatus/GetConfiguration),
// reusing the same prefixed-map shape the control channel replies
// with.
func reportDoc(prefix string, encode func(doc map[string]interface{}) error) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		doc := map[string]interface{}{}
		if err := encode(doc); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(doc); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
