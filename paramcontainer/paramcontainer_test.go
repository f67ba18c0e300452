package paramcontainer_test

import (
	"testing"

	"github.com/odin-detector/inaira-decoder/paramcontainer"
)

type testContainer struct {
	paramcontainer.Container
	NumFrames    uint32
	ExposureTime float64
	Name         string
}

func newTestContainer() *testContainer {
	c := &testContainer{Container: paramcontainer.New(), NumFrames: 0, ExposureTime: 1.5, Name: "default"}
	c.BindU32("num_frames", &c.NumFrames)
	c.BindF64("exposure_time", &c.ExposureTime)
	c.BindString("name", &c.Name)
	return c
}

func TestRoundTrip(t *testing.T) {
	c := newTestContainer()
	c.NumFrames = 42
	c.ExposureTime = 0.025
	c.Name = "foo"

	doc, err := c.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	c2 := newTestContainer()
	if err := c2.UpdateString(doc); err != nil {
		t.Fatalf("update: %v", err)
	}
	if c2.NumFrames != c.NumFrames || c2.ExposureTime != c.ExposureTime || c2.Name != c.Name {
		t.Errorf("round trip mismatch: got %+v want %+v", c2, c)
	}
}

func TestPartialUpdateLeavesOthersUnchanged(t *testing.T) {
	c := newTestContainer()
	if err := c.UpdateString(`{}`); err != nil {
		t.Fatalf("update empty doc: %v", err)
	}
	if c.NumFrames != 0 || c.ExposureTime != 1.5 || c.Name != "default" {
		t.Errorf("empty update mutated state: %+v", c)
	}

	if err := c.UpdateString(`{"num_frames": 7}`); err != nil {
		t.Fatalf("update: %v", err)
	}
	if c.NumFrames != 7 {
		t.Errorf("expected num_frames=7, got %d", c.NumFrames)
	}
	if c.ExposureTime != 1.5 || c.Name != "default" {
		t.Errorf("partial update touched unrelated fields: %+v", c)
	}
}

func TestUnknownPathIsIgnored(t *testing.T) {
	c := newTestContainer()
	if err := c.UpdateString(`{"not_bound": 123, "nested": {"also_not_bound": true}}`); err != nil {
		t.Fatalf("expected no error for unknown paths, got %v", err)
	}
	if c.NumFrames != 0 || c.ExposureTime != 1.5 || c.Name != "default" {
		t.Errorf("unknown-path update mutated state: %+v", c)
	}
}

func TestTypeMismatch(t *testing.T) {
	c := newTestContainer()
	err := c.UpdateString(`{"num_frames": "not a number"}`)
	if err == nil {
		t.Fatal("expected type mismatch error")
	}
	if _, ok := err.(*paramcontainer.TypeMismatch); !ok {
		t.Errorf("expected *TypeMismatch, got %T: %v", err, err)
	}
}

func TestParseErrorCarriesOffset(t *testing.T) {
	c := newTestContainer()
	err := c.UpdateString(`{not valid json`)
	if err == nil {
		t.Fatal("expected parse error")
	}
	pe, ok := err.(*paramcontainer.ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if pe.Offset <= 0 {
		t.Errorf("expected positive offset, got %d", pe.Offset)
	}
}

func TestDuplicatePathPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate path registration")
		}
	}()
	c := newTestContainer()
	var other uint32
	c.BindU32("num_frames", &other)
}

func TestEncodeIntoPrefix(t *testing.T) {
	c := newTestContainer()
	c.NumFrames = 3
	doc := map[string]interface{}{}
	if err := c.EncodeInto(doc, "camera"); err != nil {
		t.Fatalf("encode into: %v", err)
	}
	cam, ok := doc["camera"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected nested camera object, got %#v", doc)
	}
	if nf, ok := cam["num_frames"].(uint32); !ok || nf != 3 {
		t.Errorf("expected camera.num_frames=3, got %#v", cam["num_frames"])
	}
}

func TestUpdateFromReplaysValuesWithoutSharingBindings(t *testing.T) {
	src := newTestContainer()
	src.NumFrames = 99
	src.Name = "source"

	dst := newTestContainer()
	if err := dst.Container.UpdateFrom(&src.Container); err != nil {
		t.Fatalf("update from: %v", err)
	}
	if dst.NumFrames != 99 || dst.Name != "source" {
		t.Errorf("copy did not replay values: %+v", dst)
	}

	// mutating the source afterwards must not affect the copy.
	src.NumFrames = 1
	if dst.NumFrames != 99 {
		t.Errorf("bindings were shared between containers")
	}
}
