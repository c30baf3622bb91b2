package analysis

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Prompt", func() {
	Describe("NewPrompt", func() {
		It("should default to the Chinese prompt", func() {
			p, err := NewPrompt("", false)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Text()).To(ContainSubstring("请分析这张图片中的食物"))
			Expect(p.Text()).To(ContainSubstring(`name设为"无法识别"`))
		})

		It("should only ask for fiber when requested", func() {
			without, err := NewPrompt("en", false)
			Expect(err).NotTo(HaveOccurred())
			Expect(without.Text()).NotTo(ContainSubstring(`"fiber"`))

			with, err := NewPrompt("en", true)
			Expect(err).NotTo(HaveOccurred())
			Expect(with.Text()).To(ContainSubstring(`"fiber"`))
		})

		It("should reject unknown languages", func() {
			_, err := NewPrompt("fr", false)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("LoadPrompt", func() {
		var path string

		BeforeEach(func() {
			path = filepath.Join(GinkgoT().TempDir(), "prompt.tmpl")
		})

		It("should render a template from disk", func() {
			Expect(os.WriteFile(path, []byte("Describe the meal. Unknown: {{.UnknownName}}\n"), 0644)).To(Succeed())
			p, err := LoadPrompt(path, "en", false)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Text()).To(Equal("Describe the meal. Unknown: Unrecognized"))
		})

		It("should fail on a template referencing unknown fields", func() {
			Expect(os.WriteFile(path, []byte("{{.Nope}}"), 0644)).To(Succeed())
			_, err := LoadPrompt(path, "en", false)
			Expect(err).To(HaveOccurred())
		})

		It("should fail when the file is missing", func() {
			_, err := LoadPrompt(path, "en", false)
			Expect(err).To(HaveOccurred())
		})
	})
})
