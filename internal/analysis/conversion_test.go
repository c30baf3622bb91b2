package analysis

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func encodePNG() []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("PrepareImage", func() {
	When("the upload is a PNG", func() {
		It("should convert it to JPEG", func() {
			data, mimeType, converted, err := PrepareImage(encodePNG(), "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(converted).To(BeTrue())
			Expect(mimeType).To(Equal("image/jpeg"))
			Expect(isJPEGFormat(data)).To(BeTrue())
		})
	})

	When("the upload is already a JPEG", func() {
		It("should pass it through untouched", func() {
			jpegData, _, _, err := PrepareImage(encodePNG(), "image/png")
			Expect(err).NotTo(HaveOccurred())

			data, mimeType, converted, err := PrepareImage(jpegData, "image/jpeg")
			Expect(err).NotTo(HaveOccurred())
			Expect(converted).To(BeFalse())
			Expect(mimeType).To(Equal("image/jpeg"))
			Expect(data).To(Equal(jpegData))
		})
	})

	When("the bytes only start like a JPEG", func() {
		It("returns ErrUnsupportedImage", func() {
			data := append([]byte{0xFF, 0xD8, 0xFF}, []byte("not really a jpeg at all")...)
			_, _, _, err := PrepareImage(data, "image/jpeg")
			Expect(err).To(MatchError(ErrUnsupportedImage))
		})
	})

	When("a JPEG is cut short", func() {
		It("returns ErrUnsupportedImage", func() {
			jpegData, _, _, err := PrepareImage(encodePNG(), "image/png")
			Expect(err).NotTo(HaveOccurred())

			_, _, _, err = PrepareImage(jpegData[:len(jpegData)/2], "image/jpeg")
			Expect(err).To(MatchError(ErrUnsupportedImage))
		})
	})

	When("the bytes are not an image", func() {
		It("returns ErrUnsupportedImage", func() {
			_, _, _, err := PrepareImage([]byte("definitely not an image"), "image/png")
			Expect(err).To(MatchError(ErrUnsupportedImage))
		})
	})

	When("the upload is empty", func() {
		It("returns ErrUnsupportedImage", func() {
			_, _, _, err := PrepareImage(nil, "image/png")
			Expect(err).To(MatchError(ErrUnsupportedImage))
		})
	})

	Describe("isHEICFormat", func() {
		It("should detect the ftyp heic brand", func() {
			header := append([]byte{0, 0, 0, 24}, []byte("ftypheic")...)
			Expect(isHEICFormat(header)).To(BeTrue())
		})

		It("should not flag short data", func() {
			Expect(isHEICFormat([]byte("ftyp"))).To(BeFalse())
		})
	})
})
