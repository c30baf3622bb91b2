package meal

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/calorie-scan/internal/analysis"
)

var _ = Describe("Uploader", func() {
	var uploader *Uploader

	BeforeEach(func() {
		uploader = NewUploader(1 << 20)
	})

	Describe("ParseSource", func() {
		DescribeTable("maps form values",
			func(value string, expected Source) {
				Expect(ParseSource(value)).To(Equal(expected))
			},
			Entry("drop", "drop", SourceDrop),
			Entry("uppercase drop", " DROP ", SourceDrop),
			Entry("picker", "picker", SourcePicker),
			Entry("empty defaults to picker", "", SourcePicker),
			Entry("unknown defaults to picker", "paste", SourcePicker),
		)
	})

	Describe("Accept", func() {
		When("a PNG is dropped", func() {
			It("should accept it as a JPEG data URL", func() {
				selection, err := uploader.Accept(SourceDrop, pngFile("dinner.png"))
				Expect(err).NotTo(HaveOccurred())
				Expect(selection.Accepted).To(BeTrue())

				mediaType, data, err := analysis.DecodeDataURL(selection.ImageDataURL)
				Expect(err).NotTo(HaveOccurred())
				Expect(mediaType).To(Equal("image/jpeg"))
				Expect(data[:2]).To(Equal([]byte{0xFF, 0xD8}))
			})
		})

		When("a non-image is dropped", func() {
			It("should ignore it without an error", func() {
				selection, err := uploader.Accept(SourceDrop, File{
					Name:        "menu.pdf",
					ContentType: "application/pdf",
					Size:        4,
					Body:        strings.NewReader("%PDF"),
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(selection).To(Equal(Selection{}))
			})
		})

		DescribeTable("a drop without an image MIME type is ignored whatever the extension",
			func(contentType string) {
				file := pngFile("dinner.png")
				file.ContentType = contentType
				selection, err := uploader.Accept(SourceDrop, file)
				Expect(err).NotTo(HaveOccurred())
				Expect(selection.Accepted).To(BeFalse())
			},
			Entry("empty", ""),
			Entry("octet-stream", "application/octet-stream"),
			Entry("text", "text/plain"),
		)

		When("a drop reports an image MIME type in another case", func() {
			It("should accept it", func() {
				file := pngFile("dinner.png")
				file.ContentType = " Image/PNG "
				selection, err := uploader.Accept(SourceDrop, file)
				Expect(err).NotTo(HaveOccurred())
				Expect(selection.Accepted).To(BeTrue())
			})
		})

		When("the picker hands over a file with no content type", func() {
			It("should fall back to the file extension", func() {
				file := pngFile("dinner.png")
				file.ContentType = ""
				selection, err := uploader.Accept(SourcePicker, file)
				Expect(err).NotTo(HaveOccurred())
				Expect(selection.Accepted).To(BeTrue())
			})
		})

		When("the picker hands over a mislabeled image", func() {
			It("should accept it when the bytes decode", func() {
				file := pngFile("dinner.bin")
				file.ContentType = "application/octet-stream"
				selection, err := uploader.Accept(SourcePicker, file)
				Expect(err).NotTo(HaveOccurred())
				Expect(selection.Accepted).To(BeTrue())
			})
		})

		When("the picker hands over a file that only starts like a JPEG", func() {
			It("should return ErrUnsupportedImage", func() {
				data := append([]byte{0xFF, 0xD8, 0xFF}, []byte("not really a jpeg at all")...)
				_, err := uploader.Accept(SourcePicker, File{
					Name:        "fake.jpg",
					ContentType: "image/jpeg",
					Size:        int64(len(data)),
					Body:        bytes.NewReader(data),
				})
				Expect(err).To(MatchError(analysis.ErrUnsupportedImage))
			})
		})

		When("the picker hands over something that is not an image", func() {
			It("should return ErrUnsupportedImage", func() {
				_, err := uploader.Accept(SourcePicker, File{
					Name:        "notes.txt",
					ContentType: "text/plain",
					Size:        5,
					Body:        strings.NewReader("hello"),
				})
				Expect(err).To(MatchError(analysis.ErrUnsupportedImage))
			})
		})

		When("the declared size exceeds the limit", func() {
			It("should return ErrTooLarge", func() {
				file := pngFile("huge.png")
				file.Size = 2 << 20
				_, err := uploader.Accept(SourcePicker, file)
				Expect(err).To(MatchError(ErrTooLarge))
			})
		})

		When("the body is larger than declared", func() {
			It("should return ErrTooLarge", func() {
				small := NewUploader(16)
				_, err := small.Accept(SourcePicker, File{
					Name:        "sneaky.png",
					ContentType: "image/png",
					Size:        1,
					Body:        bytes.NewReader(encodePNG()),
				})
				Expect(err).To(MatchError(ErrTooLarge))
			})
		})
	})

	It("should default the size limit", func() {
		Expect(NewUploader(0).maxSize).To(Equal(int64(DefaultMaxUpload)))
	})
})
