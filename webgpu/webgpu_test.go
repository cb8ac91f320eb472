package webgpu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/geocog/geocog/tensor"
)

func TestUpload(t *testing.T) {
	u, err := NewUploader()
	if err != nil {
		t.Skipf("webgpu not available: %v", err)
	}
	defer u.Release()

	tr, err := tensor.FromSlice([]uint16{1, 2, 3}, tensor.Shape{3})
	require.NoError(t, err)
	defer tr.Close()

	buf, err := u.Upload(tr)
	require.NoError(t, err)
	require.NotNil(t, buf)
	buf.Release()
}
