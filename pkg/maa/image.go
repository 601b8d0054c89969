package maa

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"unsafe"

	"github.com/haivivi/maafw/pkg/maa/native"
)

// Rect is a rectangle in screen pixels. It mirrors MaaRect field for field.
type Rect struct {
	X      int32 `json:"x"`
	Y      int32 `json:"y"`
	Width  int32 `json:"w"`
	Height int32 `json:"h"`
}

func rectFromNative(r native.Rect) Rect {
	return Rect{X: r.X, Y: r.Y, Width: r.W, Height: r.H}
}

func (r Rect) native() native.Rect {
	return native.Rect{X: r.X, Y: r.Y, W: r.Width, H: r.Height}
}

// Image is a host copy of a native image: 8-bit pixels, row-major, with
// channels in BGR(A) order as OpenCV stores them.
type Image struct {
	Width    int
	Height   int
	Channels int
	// Type is the OpenCV matrix type, e.g. 16 for CV_8UC3.
	Type   int32
	Stride int
	Pix    []byte
}

// NewImage allocates a zeroed BGR image.
func NewImage(width, height int) *Image {
	return &Image{
		Width:    width,
		Height:   height,
		Channels: 3,
		Type:     native.ImageTypeBGR,
		Stride:   width * 3,
		Pix:      make([]byte, width*height*3),
	}
}

// cvType returns the OpenCV type of an 8-bit image with n channels.
func cvType(n int) int32 {
	return int32((n - 1) << 3)
}

func (m *Image) validate() error {
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%w: image size %dx%d", ErrDecode, m.Width, m.Height)
	}
	// MaaImageBufferSetRawData takes int32 dimensions.
	if m.Width > math.MaxInt32 || m.Height > math.MaxInt32 {
		return fmt.Errorf("%w: image size %dx%d exceeds int32", ErrDecode, m.Width, m.Height)
	}
	if m.Channels < 1 || m.Channels > 4 {
		return fmt.Errorf("%w: image has %d channels", ErrDecode, m.Channels)
	}
	if m.Type != cvType(m.Channels) {
		return fmt.Errorf("%w: image type %d does not match %d channels", ErrDecode, m.Type, m.Channels)
	}
	if m.Stride < m.Width*m.Channels {
		return fmt.Errorf("%w: image stride %d too small", ErrDecode, m.Stride)
	}
	if len(m.Pix) < m.Stride*(m.Height-1)+m.Width*m.Channels {
		return fmt.Errorf("%w: image buffer holds %d bytes", ErrDecode, len(m.Pix))
	}
	return nil
}

// FromGo converts img to a BGR Image.
func FromGo(img image.Image) *Image {
	b := img.Bounds()
	out := NewImage(b.Dx(), b.Dy())
	for y := 0; y < out.Height; y++ {
		row := out.Pix[y*out.Stride:]
		for x := 0; x < out.Width; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			row[x*3], row[x*3+1], row[x*3+2] = c.B, c.G, c.R
		}
	}
	return out
}

// ToRGBA converts m to an RGBA image. Single-channel images are treated as
// gray. An image whose buffer does not match its metadata yields ErrDecode.
func (m *Image) ToRGBA() (*image.RGBA, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	out := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		row := m.Pix[y*m.Stride:]
		for x := 0; x < m.Width; x++ {
			px := row[x*m.Channels:]
			var c color.RGBA
			switch m.Channels {
			case 1, 2:
				c = color.RGBA{px[0], px[0], px[0], 0xff}
			case 3:
				c = color.RGBA{px[2], px[1], px[0], 0xff}
			default:
				c = color.RGBA{px[2], px[1], px[0], px[3]}
			}
			out.SetRGBA(x, y, c)
		}
	}
	return out, nil
}

// EncodePNG writes m as PNG.
func (m *Image) EncodePNG(w io.Writer) error {
	rgba, err := m.ToRGBA()
	if err != nil {
		return err
	}
	return png.Encode(w, rgba)
}

// readImage copies a native image buffer. An empty buffer yields nil.
func readImage(l *native.Lib, p uintptr) (*Image, error) {
	if p == 0 || l.MaaImageBufferIsEmpty(p) != 0 {
		return nil, nil
	}
	img := &Image{
		Width:    int(l.MaaImageBufferWidth(p)),
		Height:   int(l.MaaImageBufferHeight(p)),
		Channels: int(l.MaaImageBufferChannels(p)),
		Type:     l.MaaImageBufferType(p),
	}
	img.Stride = img.Width * img.Channels
	if img.Width <= 0 || img.Height <= 0 || img.Channels < 1 || img.Channels > 4 || img.Type != cvType(img.Channels) {
		return nil, fmt.Errorf("%w: native image %dx%dx%d type %d", ErrDecode, img.Width, img.Height, img.Channels, img.Type)
	}
	data := l.MaaImageBufferGetRawData(p)
	if data == 0 {
		return nil, fmt.Errorf("%w: native image has no pixel data", ErrDecode)
	}
	img.Pix = native.Bytes(data, uint64(img.Stride*img.Height))
	return img, nil
}

// writeImage copies img into the native buffer p.
func writeImage(l *native.Lib, p uintptr, img *Image) error {
	if err := img.validate(); err != nil {
		return err
	}
	pix := img.Pix
	if row := img.Width * img.Channels; img.Stride != row {
		pix = make([]byte, row*img.Height)
		for y := 0; y < img.Height; y++ {
			copy(pix[y*row:(y+1)*row], img.Pix[y*img.Stride:])
		}
	}
	if l.MaaImageBufferSetRawData(p, unsafe.Pointer(&pix[0]), int32(img.Width), int32(img.Height), img.Type) == 0 {
		return fmt.Errorf("%w: set image data", ErrRejected)
	}
	return nil
}

// readEncoded copies the encoded (PNG) form of a native image buffer.
func readEncoded(l *native.Lib, p uintptr) []byte {
	return native.Bytes(l.MaaImageBufferGetEncoded(p), l.MaaImageBufferGetEncodedSize(p))
}
