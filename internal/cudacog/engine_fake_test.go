package cudacog

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/geocog/geocog/internal/nvtiff"
	"github.com/geocog/geocog/internal/tiffio"
)

// fakeEngine emulates the native engine on the host: "device" allocations
// are Go byte slices and DecodeImage runs the CPU container decoder. Any
// method can be made to fail by name to test cleanup paths.
type fakeEngine struct {
	mu sync.Mutex

	failOn map[string]error

	nextHandle uintptr
	files      map[nvtiff.Stream]*tiffio.File
	allocs     map[nvtiff.DevicePtr][]byte

	freeCalls         int
	destroyedStreams  int
	destroyedDecoders int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		failOn: map[string]error{},
		files:  map[nvtiff.Stream]*tiffio.File{},
		allocs: map[nvtiff.DevicePtr][]byte{},
	}
}

func (e *fakeEngine) failWith(op string, code int) {
	e.failOn[op] = &nvtiff.StatusError{Op: op, Code: code}
}

func (e *fakeEngine) fail(op string) error {
	return e.failOn[op]
}

func (e *fakeEngine) liveAllocs() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.allocs)
}

func (e *fakeEngine) handle() uintptr {
	e.nextHandle++
	return e.nextHandle
}

func (e *fakeEngine) CreateStream() (nvtiff.Stream, error) {
	if err := e.fail("CreateStream"); err != nil {
		return 0, err
	}
	return nvtiff.Stream(e.handle()), nil
}

func (e *fakeEngine) ParseStream(ts nvtiff.Stream, data []byte) error {
	if err := e.fail("ParseStream"); err != nil {
		return err
	}
	f, err := tiffio.Parse(bytes.NewReader(data))
	if err != nil {
		return &nvtiff.StatusError{Op: "nvtiffStreamParse", Code: nvtiff.StatusBadTIFF}
	}
	e.files[ts] = f
	return nil
}

func (e *fakeEngine) FileInfo(ts nvtiff.Stream) (nvtiff.FileInfo, error) {
	if err := e.fail("FileInfo"); err != nil {
		return nvtiff.FileInfo{}, err
	}
	d := e.files[ts].IFDs[0]

	info := nvtiff.FileInfo{
		ImageWidth:      d.Width,
		ImageHeight:     d.Height,
		SamplesPerPixel: d.SamplesPerPixel,
	}
	for i := 0; i < int(d.SamplesPerPixel); i++ {
		bits := d.BitsPerSample[i]
		info.BitsPerPixel += bits
		info.BitsPerSample = append(info.BitsPerSample, bits)
		format := uint32(nvtiff.SampleFormatUint)
		if i < len(d.SampleFormat) {
			format = uint32(d.SampleFormat[i])
		}
		info.SampleFormat = append(info.SampleFormat, format)
	}
	return info, nil
}

func (e *fakeEngine) DestroyStream(ts nvtiff.Stream) error {
	if err := e.fail("DestroyStream"); err != nil {
		return err
	}
	delete(e.files, ts)
	e.destroyedStreams++
	return nil
}

func (e *fakeEngine) AllocZeroed(device int, cs nvtiff.ComputeStream, n int) (nvtiff.DevicePtr, error) {
	if err := e.fail("AllocZeroed"); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	ptr := nvtiff.DevicePtr(e.handle())
	e.allocs[ptr] = make([]byte, n)
	return ptr, nil
}

func (e *fakeEngine) Free(device int, ptr nvtiff.DevicePtr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.allocs, ptr)
	e.freeCalls++
}

func (e *fakeEngine) CopyToHost(device int, src nvtiff.DevicePtr, n int) ([]byte, error) {
	if err := e.fail("CopyToHost"); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	buf, ok := e.allocs[src]
	if !ok {
		return nil, fmt.Errorf("fake engine: copy from unknown device pointer %#x", uintptr(src))
	}
	out := make([]byte, n)
	copy(out, buf)
	return out, nil
}

func (e *fakeEngine) CreateDecoder(device int, cs nvtiff.ComputeStream) (nvtiff.Decoder, error) {
	if err := e.fail("CreateDecoder"); err != nil {
		return 0, err
	}
	return nvtiff.Decoder(e.handle()), nil
}

func (e *fakeEngine) DestroyDecoder(dec nvtiff.Decoder) error {
	if err := e.fail("DestroyDecoder"); err != nil {
		return err
	}
	e.destroyedDecoders++
	return nil
}

func (e *fakeEngine) CheckSupported(ts nvtiff.Stream, dec nvtiff.Decoder, imageID int) error {
	if err := e.fail("CheckSupported"); err != nil {
		return err
	}
	d := e.files[ts].IFDs[0]
	switch d.Photometric {
	case tiffio.PhotometricPalette, tiffio.PhotometricCMYK, tiffio.PhotometricYCbCr:
		return &nvtiff.StatusError{Op: "nvtiffDecodeCheckSupported", Code: nvtiff.StatusNotSupported}
	}
	return nil
}

func (e *fakeEngine) DecodeImage(ts nvtiff.Stream, dec nvtiff.Decoder, imageID int, dst nvtiff.DevicePtr, cs nvtiff.ComputeStream) error {
	if err := e.fail("DecodeImage"); err != nil {
		return err
	}
	f := e.files[ts]
	im, err := tiffio.DecodePixels(f, f.IFDs[imageID])
	if err != nil {
		return &nvtiff.StatusError{Op: "nvtiffDecodeImage", Code: nvtiff.StatusInternalError}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	buf, ok := e.allocs[dst]
	if !ok {
		return &nvtiff.StatusError{Op: "nvtiffDecodeImage", Code: nvtiff.StatusInvalidParameter}
	}
	copy(buf, im.Bytes())
	return nil
}
