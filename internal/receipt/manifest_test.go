package receipt

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseManifest", func() {
	var (
		input        string
		opts         ManifestOptions
		transactions []Transaction
		err          error
	)

	BeforeEach(func() {
		opts = ManifestOptions{}
	})

	JustBeforeEach(func() {
		transactions, err = ParseManifest(strings.NewReader(input), opts)
	})

	When("the manifest has an image_path column", func() {
		BeforeEach(func() {
			input = "id,image_path,employee\n1,a.jpg,Dana\n2,b.pdf,Sam\n"
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns one transaction per row in order", func() {
			Expect(transactions).To(HaveLen(2))
			Expect(transactions[0].Row).To(Equal(1))
			Expect(transactions[0].Document).To(Equal("a.jpg"))
			Expect(transactions[1].Row).To(Equal(2))
			Expect(transactions[1].Document).To(Equal("b.pdf"))
		})

		It("keeps the header order in the fields", func() {
			Expect(transactions[0].Fields.Keys()).To(Equal([]string{"id", "image_path", "employee"}))
			Expect(transactions[1].Fields.String("employee")).To(Equal("Sam"))
		})
	})

	When("the document comes from a URL column", func() {
		BeforeEach(func() {
			opts.URLColumn = "images"
			input = "id,images\n1,https://cdn.example.com/uploads/2024/r-1.jpg\n2,\n"
		})

		It("uses the last path segment", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(transactions[0].Document).To(Equal("r-1.jpg"))
		})

		It("stores the derived name in the path column", func() {
			Expect(transactions[0].Fields.Keys()).To(Equal([]string{"id", "images", "image_path"}))
			Expect(transactions[0].Fields.String("image_path")).To(Equal("r-1.jpg"))
		})

		It("derives an empty name from an empty cell", func() {
			Expect(transactions[1].Document).To(BeEmpty())
		})
	})

	When("null cells should be blanked", func() {
		BeforeEach(func() {
			opts.BlankNulls = true
			input = "image_path,note,other\na.jpg,NULL,null\n"
		})

		It("replaces them with empty strings", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(transactions[0].Fields.String("note")).To(BeEmpty())
			Expect(transactions[0].Fields.String("other")).To(BeEmpty())
		})
	})

	When("null cells are kept", func() {
		BeforeEach(func() {
			input = "image_path,note\na.jpg,NULL\n"
		})

		It("keeps the literal text", func() {
			Expect(transactions[0].Fields.String("note")).To(Equal("NULL"))
		})
	})

	When("the manifest uses another delimiter", func() {
		BeforeEach(func() {
			opts.Delimiter = ';'
			input = "image_path;amount\na.jpg;1,50\n"
		})

		It("splits on it", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(transactions[0].Fields.String("amount")).To(Equal("1,50"))
		})
	})

	When("a row is short", func() {
		BeforeEach(func() {
			input = "image_path,employee\na.jpg\n"
		})

		It("fills the missing cells with empty strings", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(transactions[0].Fields.Keys()).To(Equal([]string{"image_path", "employee"}))
			Expect(transactions[0].Fields.String("employee")).To(BeEmpty())
		})
	})

	When("the path column is missing", func() {
		BeforeEach(func() {
			input = "id,file\n1,a.jpg\n"
		})

		It("returns an error naming the column", func() {
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("image_path"))
		})
	})

	When("the manifest is empty", func() {
		BeforeEach(func() {
			input = ""
		})

		It("returns an error", func() {
			Expect(err).To(HaveOccurred())
		})
	})

	When("the header starts with a byte order mark", func() {
		BeforeEach(func() {
			input = "\ufeffimage_path,id\na.jpg,1\n"
		})

		It("ignores it", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(transactions[0].Document).To(Equal("a.jpg"))
		})
	})
})

var _ = Describe("ReadManifest", func() {
	It("reads a manifest from disk", func() {
		path := filepath.Join(GinkgoT().TempDir(), "input.csv")
		Expect(os.WriteFile(path, []byte("image_path\na.jpg\n"), 0644)).To(Succeed())

		transactions, err := ReadManifest(path, ManifestOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(transactions).To(HaveLen(1))
	})

	It("fails for a missing file", func() {
		_, err := ReadManifest(filepath.Join(GinkgoT().TempDir(), "nope.csv"), ManifestOptions{})
		Expect(err).To(MatchError(ContainSubstring("opening manifest")))
	})
})

var _ = Describe("ParseDelimiter", func() {
	DescribeTable("valid delimiters",
		func(in string, expected rune) {
			r, err := ParseDelimiter(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(r).To(Equal(expected))
		},
		Entry("default", "", ','),
		Entry("semicolon", ";", ';'),
		Entry("escaped tab", `\t`, '\t'),
		Entry("tab word", "tab", '\t'),
	)

	It("rejects multi-character delimiters", func() {
		_, err := ParseDelimiter(";;")
		Expect(err).To(HaveOccurred())
	})
})
