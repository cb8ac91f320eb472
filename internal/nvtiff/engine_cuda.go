//go:build cuda

package nvtiff

/*
#cgo LDFLAGS: -lnvtiff -lcudart

#include <stdint.h>
#include <cuda_runtime_api.h>
#include <nvtiff.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// Available reports whether the native nvTIFF binding is compiled in.
func Available() bool {
	return true
}

// New returns the cgo-backed engine.
func New() (Engine, error) {
	return &cudaEngine{}, nil
}

type cudaEngine struct{}

func check(op string, st C.nvtiffStatus_t) error {
	if st != C.NVTIFF_STATUS_SUCCESS {
		return &StatusError{Op: op, Code: int(st)}
	}
	return nil
}

func checkCuda(op string, st C.cudaError_t) error {
	if st != C.cudaSuccess {
		return fmt.Errorf("nvtiff: %s failed: %s", op, C.GoString(C.cudaGetErrorString(st)))
	}
	return nil
}

func setDevice(device int) error {
	return checkCuda("cudaSetDevice", C.cudaSetDevice(C.int(device)))
}

func (e *cudaEngine) CreateStream() (Stream, error) {
	var ts C.nvtiffStream_t
	if err := check("nvtiffStreamCreate", C.nvtiffStreamCreate(&ts)); err != nil {
		return 0, err
	}
	return Stream(uintptr(unsafe.Pointer(ts))), nil
}

func (e *cudaEngine) ParseStream(ts Stream, data []byte) error {
	if len(data) == 0 {
		return &StatusError{Op: "nvtiffStreamParse", Code: StatusInvalidParameter}
	}
	return check("nvtiffStreamParse", C.nvtiffStreamParse(
		(*C.uint8_t)(unsafe.Pointer(&data[0])),
		C.size_t(len(data)),
		C.nvtiffStream_t(unsafe.Pointer(uintptr(ts))),
	))
}

func (e *cudaEngine) FileInfo(ts Stream) (FileInfo, error) {
	var ci C.nvtiffFileInfo_t
	err := check("nvtiffStreamGetFileInfo", C.nvtiffStreamGetFileInfo(
		C.nvtiffStream_t(unsafe.Pointer(uintptr(ts))), &ci,
	))
	if err != nil {
		return FileInfo{}, err
	}

	info := FileInfo{
		ImageWidth:      uint32(ci.image_width),
		ImageHeight:     uint32(ci.image_height),
		SamplesPerPixel: uint16(ci.samples_per_pixel),
		BitsPerPixel:    uint16(ci.bits_per_pixel),
	}
	for i := 0; i < int(info.SamplesPerPixel) && i < len(ci.bits_per_sample); i++ {
		info.BitsPerSample = append(info.BitsPerSample, uint16(ci.bits_per_sample[i]))
		info.SampleFormat = append(info.SampleFormat, uint32(ci.sample_format[i]))
	}
	return info, nil
}

func (e *cudaEngine) DestroyStream(ts Stream) error {
	return check("nvtiffStreamDestroy", C.nvtiffStreamDestroy(
		C.nvtiffStream_t(unsafe.Pointer(uintptr(ts))),
	))
}

func (e *cudaEngine) AllocZeroed(device int, cs ComputeStream, n int) (DevicePtr, error) {
	if err := setDevice(device); err != nil {
		return 0, err
	}
	stream := C.cudaStream_t(unsafe.Pointer(uintptr(cs)))

	var ptr unsafe.Pointer
	if err := checkCuda("cudaMallocAsync", C.cudaMallocAsync(&ptr, C.size_t(n), stream)); err != nil {
		return 0, err
	}
	if err := checkCuda("cudaMemsetAsync", C.cudaMemsetAsync(ptr, 0, C.size_t(n), stream)); err != nil {
		C.cudaFreeAsync(ptr, stream)
		return 0, err
	}
	return DevicePtr(uintptr(ptr)), nil
}

func (e *cudaEngine) Free(device int, ptr DevicePtr) {
	if ptr == 0 {
		return
	}
	// Best effort: a failed free cannot be recovered from.
	_ = setDevice(device)
	C.cudaFree(unsafe.Pointer(uintptr(ptr)))
}

func (e *cudaEngine) CopyToHost(device int, src DevicePtr, n int) ([]byte, error) {
	if err := setDevice(device); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	err := checkCuda("cudaMemcpy", C.cudaMemcpy(
		unsafe.Pointer(&out[0]),
		unsafe.Pointer(uintptr(src)),
		C.size_t(n),
		C.cudaMemcpyDeviceToHost,
	))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *cudaEngine) CreateDecoder(device int, cs ComputeStream) (Decoder, error) {
	if err := setDevice(device); err != nil {
		return 0, err
	}
	var dec C.nvtiffDecoder_t
	err := check("nvtiffDecoderCreateSimple", C.nvtiffDecoderCreateSimple(
		&dec, C.cudaStream_t(unsafe.Pointer(uintptr(cs))),
	))
	if err != nil {
		return 0, err
	}
	return Decoder(uintptr(unsafe.Pointer(dec))), nil
}

func (e *cudaEngine) DestroyDecoder(dec Decoder) error {
	return check("nvtiffDecoderDestroy", C.nvtiffDecoderDestroy(
		C.nvtiffDecoder_t(unsafe.Pointer(uintptr(dec))), nil,
	))
}

func (e *cudaEngine) CheckSupported(ts Stream, dec Decoder, imageID int) error {
	var params C.nvtiffDecodeParams_t
	if err := check("nvtiffDecodeParamsCreate", C.nvtiffDecodeParamsCreate(&params)); err != nil {
		return err
	}
	defer C.nvtiffDecodeParamsDestroy(params)

	return check("nvtiffDecodeCheckSupported", C.nvtiffDecodeCheckSupported(
		C.nvtiffStream_t(unsafe.Pointer(uintptr(ts))),
		C.nvtiffDecoder_t(unsafe.Pointer(uintptr(dec))),
		params,
		C.uint32_t(imageID),
	))
}

func (e *cudaEngine) DecodeImage(ts Stream, dec Decoder, imageID int, dst DevicePtr, cs ComputeStream) error {
	var params C.nvtiffDecodeParams_t
	if err := check("nvtiffDecodeParamsCreate", C.nvtiffDecodeParamsCreate(&params)); err != nil {
		return err
	}
	defer C.nvtiffDecodeParamsDestroy(params)

	return check("nvtiffDecodeImage", C.nvtiffDecodeImage(
		C.nvtiffStream_t(unsafe.Pointer(uintptr(ts))),
		C.nvtiffDecoder_t(unsafe.Pointer(uintptr(dec))),
		params,
		C.uint32_t(imageID),
		unsafe.Pointer(uintptr(dst)),
		C.cudaStream_t(unsafe.Pointer(uintptr(cs))),
	))
}
