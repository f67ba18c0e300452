package pco

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/odin-detector/inaira-decoder/frame"
)

// maxConsecutiveBufferFailures bounds how many constant-interval waits
// follow once get_empty_buffer first reports exhaustion, before the
// frame is dropped. spec.md §4.4.1 leaves the exact retry policy an open
// question (§9); this is the resolution: no wait on an isolated miss
// (matching "no local backpressure" — the first attempt, and the first
// retry after a miss, are immediate), but a bounded, constant-interval
// backoff while misses persist, so a wedged downstream doesn't turn the
// acquisition goroutine into a busy loop.
const maxConsecutiveBufferFailures = 100

const idleSleep = time.Millisecond

var errBufferPoolExhausted = errors.New("pco: buffer pool exhausted")

// getEmptyBufferWithRetry wraps pool.GetEmptyBuffer with a bounded
// constant-interval backoff, engaged only once the first, unretried
// attempt misses.
func (c *Controller) getEmptyBufferWithRetry() (int, []byte, bool) {
	id, addr, ok := c.pool.GetEmptyBuffer()
	if ok {
		return id, addr, true
	}

	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(idleSleep), maxConsecutiveBufferFailures)
	err := backoff.Retry(func() error {
		id, addr, ok = c.pool.GetEmptyBuffer()
		if !ok {
			return errBufferPoolExhausted
		}
		return nil
	}, b)
	if err != nil {
		return 0, nil, false
	}
	return id, addr, true
}

// StartAcquisitionLoop launches the acquisition goroutine described in
// spec.md §4.4.1. It runs until StopAcquisitionLoop is called.
func (c *Controller) StartAcquisitionLoop() {
	c.wg.Lock()
	defer c.wg.Unlock()

	c.runThread.Store(true)
	c.doneCh = make(chan struct{})

	go c.acquisitionLoop()
}

// StopAcquisitionLoop requests the acquisition goroutine exit and
// blocks until it has, per the cancellation contract of spec.md §5:
// the loop observes the cleared flag on its next iteration, bounded by
// the grabber timeout.
func (c *Controller) StopAcquisitionLoop() {
	c.wg.Lock()
	defer c.wg.Unlock()

	if c.doneCh == nil {
		return
	}
	c.runThread.Store(false)
	<-c.doneCh
	c.doneCh = nil
}

// acquisitionLoop is the hot path: pull an empty buffer, wait for the
// next image directly into it, stamp the header, and notify the pool,
// per the pseudocode in spec.md §4.4.1.
func (c *Controller) acquisitionLoop() {
	defer close(c.doneCh)

	wasAcquiring := false

	for c.runThread.Load() {
		if !c.cameraRecording.Load() {
			if wasAcquiring {
				if err := c.grabber.StopAcquire(); err != nil {
					c.log.Printf("acquisition: stop_acquire: %v", err)
				}
				wasAcquiring = false
				c.acquiring.Store(false)
			}
			time.Sleep(idleSleep)
			continue
		}

		imageTimeout := time.Duration(c.config.ImageTimeout * float64(time.Second))

		if !wasAcquiring {
			if err := c.grabber.StartAcquire(); err != nil {
				c.log.Printf("acquisition: start_acquire: %v", err)
				time.Sleep(idleSleep)
				continue
			}
			wasAcquiring = true
			c.acquiring.Store(true)
			c.framesAcquired.Store(0)
			if c.config.NumFrames == 0 {
				c.log.Printf("acquisition: started, num_frames=unlimited")
			} else {
				c.log.Printf("acquisition: started, num_frames=%d", c.config.NumFrames)
			}
		}

		bufID, bufAddr, ok := c.getEmptyBufferWithRetry()
		if !ok {
			c.log.Printf("acquisition: buffer pool exhausted after retries, frame dropped")
			continue
		}

		imageAddr := bufAddr[frameHeaderSize:]
		if err := c.grabber.WaitForNextImage(imageAddr, imageTimeout); err != nil {
			c.log.Printf("acquisition: wait_for_next_image: %v", err)
			continue
		}

		frameNumber := uint32(c.framesAcquired.Load())
		h := frame.Header{
			FrameNumber: frameNumber,
			Width:       uint32(c.imageWidth),
			Height:      uint32(c.imageHeight),
			DataType:    c.imageDataType,
			Size:        uint32(c.imageSize),
		}
		h.PutInto(bufAddr)

		c.pool.NotifyFrameReady(bufID, frameNumber)
		c.framesAcquired.Add(1)

		if c.config.NumFrames != 0 && c.framesAcquired.Load() >= uint64(c.config.NumFrames) {
			if err := c.grabber.StopAcquire(); err != nil {
				c.log.Printf("acquisition: stop_acquire: %v", err)
			}
			wasAcquiring = false
			c.acquiring.Store(false)
			if err := c.state.Execute("stop"); err != nil {
				c.log.Printf("acquisition: auto-stop transition failed: %v", err)
			}
		}
	}

	if wasAcquiring {
		if err := c.grabber.StopAcquire(); err != nil {
			c.log.Printf("acquisition: stop_acquire on shutdown: %v", err)
		}
		c.acquiring.Store(false)
	}
}
