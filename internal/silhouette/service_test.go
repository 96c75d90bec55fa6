package silhouette

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	stdimage "image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shalynjjj/prompt2CAD/llm"
	"github.com/shalynjjj/prompt2CAD/llm/image"
	"github.com/shalynjjj/prompt2CAD/testutil/fixtures"
	"github.com/shalynjjj/prompt2CAD/testutil/mocks"
	"github.com/shalynjjj/prompt2CAD/types"
)

type fakeImages struct {
	b64 string
	err error
	got *image.EditRequest
}

func (f *fakeImages) Edit(_ context.Context, req *image.EditRequest) (*image.EditResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &image.EditResponse{Model: "gpt-image-1", Images: []image.ImageData{{B64JSON: f.b64}}}, nil
}

func (f *fakeImages) Name() string { return "fake-image" }

func pngB64(t *testing.T) string {
	t.Helper()
	img := stdimage.NewGray(stdimage.Rect(0, 0, 4, 4))
	img.SetGray(1, 1, color.Gray{Y: 0})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestService_Generate(t *testing.T) {
	fi := &fakeImages{b64: pngB64(t)}
	out, err := New(fi, "gpt-image-1", nil).Generate(context.Background(), []byte("photo"))
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	require.NotNil(t, fi.got)
	assert.Equal(t, 1, fi.got.N)
	assert.Equal(t, "gpt-image-1", fi.got.Model)
	assert.Equal(t, [][]byte{[]byte("photo")}, fi.got.Images)
	assert.Contains(t, fi.got.Prompt, "silhouette")
}

func TestService_EditEmbedsInstruction(t *testing.T) {
	fi := &fakeImages{b64: pngB64(t)}
	_, err := New(fi, "", nil).Edit(context.Background(), []byte("marked"), "  remove the ring hole ")
	require.NoError(t, err)
	assert.Contains(t, fi.got.Prompt, ": remove the ring hole\n")
	assert.NotContains(t, fi.got.Prompt, "{instruction}")
}

func TestService_Errors(t *testing.T) {
	svc := New(&fakeImages{b64: pngB64(t)}, "", nil)

	_, err := svc.Generate(context.Background(), nil)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
	_, err = svc.Edit(context.Background(), []byte("x"), " ")
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
	_, err = svc.Edit(context.Background(), nil, "do it")
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))

	upstream := New(&fakeImages{err: &llm.Error{Message: "Billing hard limit has been reached", Code: llm.ErrQuotaExceeded}}, "", nil)
	_, err = upstream.Generate(context.Background(), []byte("photo"))
	e, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrCollaboratorFailure, e.Code)
	assert.Equal(t, "Billing hard limit has been reached", e.Message)
	assert.Equal(t, "fake-image", e.Provider)

	garbage := New(&fakeImages{b64: base64.StdEncoding.EncodeToString([]byte("not an image"))}, "", nil)
	_, err = garbage.Generate(context.Background(), []byte("photo"))
	assert.True(t, types.IsErrorCode(err, types.ErrCollaboratorFailure))

	cancelled := New(&fakeImages{err: context.Canceled}, "", nil)
	_, err = cancelled.Generate(context.Background(), []byte("photo"))
	assert.True(t, types.IsErrorCode(err, types.ErrTimeout))
}

func TestService_GenerateThenEdit(t *testing.T) {
	disc := fixtures.DiscPNG(8, 8)
	p := mocks.NewMockImageProvider(disc)
	svc := New(p, "gpt-image-1", nil)

	out, err := svc.Generate(types.WithTraceID(context.Background(), "t-1"), []byte("photo"))
	require.NoError(t, err)
	assert.Equal(t, disc, out)

	_, err = svc.Edit(context.Background(), out, "thicker tail")
	require.NoError(t, err)

	reqs := p.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "t-1", reqs[0].TraceID)
	assert.Equal(t, [][]byte{disc}, reqs[1].Images)
	assert.Contains(t, reqs[1].Prompt, "thicker tail")
}

func TestService_MockProviderFailures(t *testing.T) {
	_, err := New(mocks.NewMockImageProvider(nil).WithError(errors.New("safety system rejected the image")), "", nil).
		Generate(context.Background(), []byte("photo"))
	e, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "safety system rejected the image", e.Message)
	assert.Equal(t, "mock-image", e.Provider)

	empty := mocks.NewMockImageProvider(nil).WithEditFunc(func(context.Context, *image.EditRequest) (*image.EditResponse, error) {
		return &image.EditResponse{}, nil
	})
	_, err = New(empty, "", nil).Generate(context.Background(), []byte("photo"))
	assert.True(t, types.IsErrorCode(err, types.ErrCollaboratorFailure))
}
